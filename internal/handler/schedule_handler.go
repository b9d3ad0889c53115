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

type scheduleManager interface {
	Create(ctx context.Context, classID, academicPeriod string) (*models.Schedule, error)
	Get(ctx context.Context, id string) (*models.Schedule, error)
	List(ctx context.Context, classID string) ([]models.Schedule, error)
	Transition(ctx context.Context, id string, req dto.ScheduleStatusRequest) (*models.Schedule, error)
	Delete(ctx context.Context, id string) error
}

type createScheduleRequest struct {
	ClassID        string `json:"classId" binding:"required"`
	AcademicPeriod string `json:"academicPeriod" binding:"required"`
}

// ScheduleHandler exposes schedule containers and the publication workflow.
type ScheduleHandler struct {
	service scheduleManager
}

// NewScheduleHandler constructs the handler.
func NewScheduleHandler(svc *service.ScheduleService) *ScheduleHandler {
	return &ScheduleHandler{service: svc}
}

// Create godoc
// @Summary Create a draft schedule
// @Tags Schedules
// @Accept json
// @Produce json
// @Param payload body createScheduleRequest true "Schedule payload"
// @Success 201 {object} response.Envelope
// @Router /schedules [post]
func (h *ScheduleHandler) Create(c *gin.Context) {
	var req createScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid schedule payload"))
		return
	}
	schedule, err := h.service.Create(c.Request.Context(), req.ClassID, req.AcademicPeriod)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, schedule)
}

// Get godoc
// @Summary Get a schedule
// @Tags Schedules
// @Produce json
// @Param id path string true "Schedule ID"
// @Success 200 {object} response.Envelope
// @Router /schedules/{id} [get]
func (h *ScheduleHandler) Get(c *gin.Context) {
	schedule, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schedule, nil)
}

// List godoc
// @Summary List schedules
// @Tags Schedules
// @Produce json
// @Param classId query string false "Filter by class"
// @Success 200 {object} response.Envelope
// @Router /schedules [get]
func (h *ScheduleHandler) List(c *gin.Context) {
	schedules, err := h.service.List(c.Request.Context(), c.Query("classId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schedules, nil)
}

// Transition godoc
// @Summary Move a schedule through the publication workflow
// @Tags Schedules
// @Accept json
// @Produce json
// @Param id path string true "Schedule ID"
// @Param payload body dto.ScheduleStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Router /schedules/{id}/status [put]
func (h *ScheduleHandler) Transition(c *gin.Context) {
	var req dto.ScheduleStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid status payload"))
		return
	}
	schedule, err := h.service.Transition(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schedule, nil)
}

// Delete godoc
// @Summary Delete a draft schedule
// @Tags Schedules
// @Param id path string true "Schedule ID"
// @Success 204 {object} nil
// @Router /schedules/{id} [delete]
func (h *ScheduleHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
