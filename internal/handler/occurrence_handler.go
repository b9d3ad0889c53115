package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/flashcoder237/oapet-schedule-backend-sub000/internal/dto"
	"github.com/flashcoder237/oapet-schedule-backend-sub000/internal/models"
	"github.com/flashcoder237/oapet-schedule-backend-sub000/internal/service"
	appErrors "github.com/flashcoder237/oapet-schedule-backend-sub000/pkg/errors"
	"github.com/flashcoder237/oapet-schedule-backend-sub000/pkg/response"
)

type occurrenceLifecycle interface {
	Cancel(ctx context.Context, id string, req dto.CancelOccurrenceRequest) (*models.Occurrence, error)
	Reschedule(ctx context.Context, id string, req dto.RescheduleOccurrenceRequest) (*models.Occurrence, error)
	Modify(ctx context.Context, id string, req dto.ModifyOccurrenceRequest) (*models.Occurrence, error)
}

// OccurrenceHandler exposes manual lifecycle operations on dated sessions.
type OccurrenceHandler struct {
	service occurrenceLifecycle
}

// NewOccurrenceHandler constructs the handler.
func NewOccurrenceHandler(svc *service.OccurrenceService) *OccurrenceHandler {
	return &OccurrenceHandler{service: svc}
}

// Cancel godoc
// @Summary Cancel a session occurrence
// @Description Marks the occurrence cancelled with a reason; the record stays for audit.
// @Tags Occurrences
// @Accept json
// @Produce json
// @Param id path string true "Occurrence ID"
// @Param payload body dto.CancelOccurrenceRequest true "Cancellation payload"
// @Success 200 {object} response.Envelope
// @Router /occurrences/{id}/cancel [post]
func (h *OccurrenceHandler) Cancel(c *gin.Context) {
	var req dto.CancelOccurrenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid cancellation payload"))
		return
	}
	occurrence, err := h.service.Cancel(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, occurrence, nil)
}

// Reschedule godoc
// @Summary Reschedule a session occurrence
// @Description Creates a replacement occurrence at the new date and time, chained to the original.
// @Tags Occurrences
// @Accept json
// @Produce json
// @Param id path string true "Occurrence ID"
// @Param payload body dto.RescheduleOccurrenceRequest true "Reschedule payload"
// @Success 201 {object} response.Envelope
// @Router /occurrences/{id}/reschedule [post]
func (h *OccurrenceHandler) Reschedule(c *gin.Context) {
	var req dto.RescheduleOccurrenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid reschedule payload"))
		return
	}
	replacement, err := h.service.Reschedule(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, replacement)
}

// Modify godoc
// @Summary Modify a session occurrence in place
// @Description Patches room, instructor, time or notes and flags the change for regeneration.
// @Tags Occurrences
// @Accept json
// @Produce json
// @Param id path string true "Occurrence ID"
// @Param payload body dto.ModifyOccurrenceRequest true "Modification payload"
// @Success 200 {object} response.Envelope
// @Router /occurrences/{id} [patch]
func (h *OccurrenceHandler) Modify(c *gin.Context) {
	var req dto.ModifyOccurrenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid modification payload"))
		return
	}
	occurrence, err := h.service.Modify(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, occurrence, nil)
}
