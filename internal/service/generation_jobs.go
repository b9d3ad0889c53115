package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/flashcoder237/oapet-schedule-backend-sub000/internal/dto"
	appErrors "github.com/flashcoder237/oapet-schedule-backend-sub000/pkg/errors"
	"github.com/flashcoder237/oapet-schedule-backend-sub000/pkg/jobs"
)

const generationJobType = "schedule_generation"

// Job states reported to clients.
const (
	jobStateQueued  = "queued"
	jobStateRunning = "running"
	jobStateDone    = "done"
	jobStateFailed  = "failed"
)

type generationRunner interface {
	Generate(ctx context.Context, req dto.GenerateScheduleRequest) (*dto.GenerationResult, error)
}

// GenerationJobService runs generation requests asynchronously on the worker
// queue and tracks per-job status in memory. Statuses survive only as long
// as the process; clients poll shortly after enqueueing.
type GenerationJobService struct {
	generator generationRunner
	queue     *jobs.Queue
	logger    *zap.Logger

	mu       sync.RWMutex
	statuses map[string]*dto.GenerationJobStatus
}

// NewGenerationJobService builds the async wrapper. Call Start before
// enqueueing.
func NewGenerationJobService(generator generationRunner, cfg jobs.QueueConfig, logger *zap.Logger) *GenerationJobService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &GenerationJobService{
		generator: generator,
		logger:    logger,
		statuses:  make(map[string]*dto.GenerationJobStatus),
	}
	cfg.Logger = logger
	s.queue = jobs.NewQueue(generationJobType, s.handle, cfg)
	return s
}

// Start launches the queue workers.
func (s *GenerationJobService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the workers.
func (s *GenerationJobService) Stop() {
	s.queue.Stop()
}

// Enqueue schedules an asynchronous generation run and returns its job id.
func (s *GenerationJobService) Enqueue(req dto.GenerateScheduleRequest) (*dto.GenerationJobStatus, error) {
	jobID := uuid.NewString()
	status := &dto.GenerationJobStatus{
		JobID:      jobID,
		ScheduleID: req.ScheduleID,
		State:      jobStateQueued,
		EnqueuedAt: time.Now().UTC().Format(time.RFC3339),
	}

	s.mu.Lock()
	s.statuses[jobID] = status
	s.mu.Unlock()

	err := s.queue.Enqueue(jobs.Job{ID: jobID, Type: generationJobType, Payload: req})
	if err != nil {
		s.mu.Lock()
		delete(s.statuses, jobID)
		s.mu.Unlock()
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue generation job")
	}
	return s.snapshot(jobID), nil
}

// Status returns the current state of a job.
func (s *GenerationJobService) Status(jobID string) (*dto.GenerationJobStatus, error) {
	status := s.snapshot(jobID)
	if status == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "generation job not found")
	}
	return status, nil
}

func (s *GenerationJobService) snapshot(jobID string) *dto.GenerationJobStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	status, ok := s.statuses[jobID]
	if !ok {
		return nil
	}
	copied := *status
	return &copied
}

func (s *GenerationJobService) handle(ctx context.Context, job jobs.Job) error {
	req, ok := job.Payload.(dto.GenerateScheduleRequest)
	if !ok {
		s.finish(job.ID, nil, "malformed generation payload")
		return nil
	}

	s.transition(job.ID, jobStateRunning)
	result, err := s.generator.Generate(ctx, req)
	if err != nil {
		s.finish(job.ID, nil, appErrors.FromError(err).Message)
		s.logger.Warn("async generation failed",
			zap.String("job_id", job.ID),
			zap.String("schedule_id", req.ScheduleID),
			zap.Error(err),
		)
		// The failure is recorded on the job status; retrying through the
		// queue would re-run a whole generation against a lock we may
		// still hold.
		return nil
	}
	s.finish(job.ID, result, "")
	return nil
}

func (s *GenerationJobService) transition(jobID, state string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status, ok := s.statuses[jobID]; ok {
		status.State = state
	}
}

func (s *GenerationJobService) finish(jobID string, result *dto.GenerationResult, errMessage string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	status, ok := s.statuses[jobID]
	if !ok {
		return
	}
	status.FinishedAt = time.Now().UTC().Format(time.RFC3339)
	if errMessage != "" {
		status.State = jobStateFailed
		status.Error = errMessage
		return
	}
	status.State = jobStateDone
	status.Result = result
}
