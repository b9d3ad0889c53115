package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/flashcoder237/oapet-schedule-backend-sub000/internal/dto"
	"github.com/flashcoder237/oapet-schedule-backend-sub000/internal/models"
	"github.com/flashcoder237/oapet-schedule-backend-sub000/internal/service"
	"github.com/flashcoder237/oapet-schedule-backend-sub000/pkg/response"
)

type scheduleEvaluator interface {
	Evaluate(ctx context.Context, scheduleID string) (*dto.ScoreReport, error)
}

type conflictDetector interface {
	DetectConflicts(ctx context.Context, scheduleID string) ([]models.Conflict, int, error)
}

// EvaluationHandler exposes scoring and conflict auditing for schedules.
type EvaluationHandler struct {
	evaluator scheduleEvaluator
	conflicts conflictDetector
	metrics   *service.MetricsService
}

// NewEvaluationHandler constructs the handler.
func NewEvaluationHandler(evaluator *service.EvaluatorService, conflicts *service.ConflictService, metrics *service.MetricsService) *EvaluationHandler {
	return &EvaluationHandler{evaluator: evaluator, conflicts: conflicts, metrics: metrics}
}

// Score godoc
// @Summary Evaluate a schedule
// @Description Returns hard violations, weighted soft scores, the global score and the letter grade.
// @Tags Evaluation
// @Produce json
// @Param id path string true "Schedule ID"
// @Success 200 {object} response.Envelope
// @Router /schedules/{id}/score [get]
func (h *EvaluationHandler) Score(c *gin.Context) {
	report, err := h.evaluator.Evaluate(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.ObserveEvaluation(report.GlobalScore)
	response.JSON(c, http.StatusOK, report, nil)
}

// Conflicts godoc
// @Summary Audit a schedule for conflicts
// @Description Runs the post-hoc audit and returns the conflict list with its aggregated risk score.
// @Tags Evaluation
// @Produce json
// @Param id path string true "Schedule ID"
// @Success 200 {object} response.Envelope
// @Router /schedules/{id}/conflicts [get]
func (h *EvaluationHandler) Conflicts(c *gin.Context) {
	conflicts, risk, err := h.conflicts.DetectConflicts(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.CountConflicts(conflicts)
	response.JSON(c, http.StatusOK, gin.H{
		"conflicts": conflicts,
		"riskScore": risk,
		"count":     len(conflicts),
	}, nil)
}
