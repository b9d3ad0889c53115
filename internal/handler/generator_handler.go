package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/flashcoder237/oapet-schedule-backend-sub000/internal/dto"
	"github.com/flashcoder237/oapet-schedule-backend-sub000/internal/service"
	appErrors "github.com/flashcoder237/oapet-schedule-backend-sub000/pkg/errors"
	"github.com/flashcoder237/oapet-schedule-backend-sub000/pkg/response"
)

type timetableGenerator interface {
	Generate(ctx context.Context, req dto.GenerateScheduleRequest) (*dto.GenerationResult, error)
}

type generationJobRunner interface {
	Enqueue(req dto.GenerateScheduleRequest) (*dto.GenerationJobStatus, error)
	Status(jobID string) (*dto.GenerationJobStatus, error)
}

// GeneratorHandler exposes the timetable generation endpoints.
type GeneratorHandler struct {
	generator timetableGenerator
	jobs      generationJobRunner
}

// NewGeneratorHandler constructs the handler. The job runner may be nil when
// async generation is disabled.
func NewGeneratorHandler(generator *service.GeneratorService, jobs *service.GenerationJobService) *GeneratorHandler {
	h := &GeneratorHandler{generator: generator}
	if jobs != nil {
		h.jobs = jobs
	}
	return h
}

// Generate godoc
// @Summary Generate occurrences for a schedule
// @Description Runs the full pipeline synchronously. Preview mode returns the plan without persisting anything.
// @Tags Generation
// @Accept json
// @Produce json
// @Param payload body dto.GenerateScheduleRequest true "Generation payload"
// @Success 200 {object} response.Envelope
// @Router /schedules/generate [post]
func (h *GeneratorHandler) Generate(c *gin.Context) {
	var req dto.GenerateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid generation payload"))
		return
	}
	result, err := h.generator.Generate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// GenerateAsync godoc
// @Summary Enqueue an asynchronous generation run
// @Description Returns a job id immediately; poll the job endpoint for the result.
// @Tags Generation
// @Accept json
// @Produce json
// @Param payload body dto.GenerateScheduleRequest true "Generation payload"
// @Success 202 {object} response.Envelope
// @Router /schedules/generate/async [post]
func (h *GeneratorHandler) GenerateAsync(c *gin.Context) {
	if h.jobs == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrPreconditionFailed, "asynchronous generation is not enabled"))
		return
	}
	var req dto.GenerateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid generation payload"))
		return
	}
	status, err := h.jobs.Enqueue(req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, status)
}

// JobStatus godoc
// @Summary Get the status of an asynchronous generation job
// @Tags Generation
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Router /schedules/generate/jobs/{id} [get]
func (h *GeneratorHandler) JobStatus(c *gin.Context) {
	if h.jobs == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrPreconditionFailed, "asynchronous generation is not enabled"))
		return
	}
	status, err := h.jobs.Status(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}
