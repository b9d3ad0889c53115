package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/flashcoder237/oapet-schedule-backend-sub000/internal/dto"
	appErrors "github.com/flashcoder237/oapet-schedule-backend-sub000/pkg/errors"
)

type generatorMock struct {
	captured dto.GenerateScheduleRequest
	result   *dto.GenerationResult
	err      error
}

func (m *generatorMock) Generate(ctx context.Context, req dto.GenerateScheduleRequest) (*dto.GenerationResult, error) {
	m.captured = req
	return m.result, m.err
}

type jobRunnerMock struct {
	status *dto.GenerationJobStatus
	err    error
}

func (m *jobRunnerMock) Enqueue(req dto.GenerateScheduleRequest) (*dto.GenerationJobStatus, error) {
	return m.status, m.err
}

func (m *jobRunnerMock) Status(jobID string) (*dto.GenerationJobStatus, error) {
	return m.status, m.err
}

func validGenerationPayload() []byte {
	return []byte(`{"scheduleId":"sched-1","startDate":"2025-01-06","endDate":"2025-01-31","previewMode":true}`)
}

func newJSONContext(t *testing.T, method, target string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, err := http.NewRequest(method, target, bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func TestGenerateHandlerSuccess(t *testing.T) {
	mockSvc := &generatorMock{result: &dto.GenerationResult{Success: true, OccurrencesCreated: 24}}
	handler := &GeneratorHandler{generator: mockSvc}
	c, w := newJSONContext(t, http.MethodPost, "/schedules/generate", validGenerationPayload())

	handler.Generate(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "sched-1", mockSvc.captured.ScheduleID)
	require.True(t, mockSvc.captured.PreviewMode)
	require.Contains(t, w.Body.String(), `"occurrencesCreated":24`)
}

func TestGenerateHandlerRejectsMalformedPayload(t *testing.T) {
	handler := &GeneratorHandler{generator: &generatorMock{}}
	c, w := newJSONContext(t, http.MethodPost, "/schedules/generate", []byte(`{"scheduleId":`))

	handler.Generate(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), appErrors.ErrValidation.Code)
}

func TestGenerateHandlerMapsServiceErrors(t *testing.T) {
	handler := &GeneratorHandler{generator: &generatorMock{err: appErrors.ErrLocked}}
	c, w := newJSONContext(t, http.MethodPost, "/schedules/generate", validGenerationPayload())

	handler.Generate(c)

	require.Equal(t, http.StatusConflict, w.Code)
	require.Contains(t, w.Body.String(), appErrors.ErrLocked.Code)
}

func TestGenerateAsyncDisabled(t *testing.T) {
	handler := &GeneratorHandler{generator: &generatorMock{}}
	c, w := newJSONContext(t, http.MethodPost, "/schedules/generate/async", validGenerationPayload())

	handler.GenerateAsync(c)

	require.Equal(t, http.StatusPreconditionFailed, w.Code)
}

func TestGenerateAsyncAccepted(t *testing.T) {
	handler := &GeneratorHandler{
		generator: &generatorMock{},
		jobs:      &jobRunnerMock{status: &dto.GenerationJobStatus{JobID: "job-1", State: "queued"}},
	}
	c, w := newJSONContext(t, http.MethodPost, "/schedules/generate/async", validGenerationPayload())

	handler.GenerateAsync(c)

	require.Equal(t, http.StatusAccepted, w.Code)
	require.Contains(t, w.Body.String(), `"jobId":"job-1"`)
}

func TestJobStatusUnknownJob(t *testing.T) {
	handler := &GeneratorHandler{
		generator: &generatorMock{},
		jobs:      &jobRunnerMock{err: appErrors.Clone(appErrors.ErrNotFound, "generation job not found")},
	}
	c, w := newJSONContext(t, http.MethodGet, "/schedules/generate/jobs/no-such-job", nil)
	c.Params = gin.Params{{Key: "id", Value: "no-such-job"}}

	handler.JobStatus(c)

	require.Equal(t, http.StatusNotFound, w.Code)
}
