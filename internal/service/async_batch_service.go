package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/class-scheduler-api/internal/models"
	"github.com/noah-isme/class-scheduler-api/pkg/config"
	appErrors "github.com/noah-isme/class-scheduler-api/pkg/errors"
	"github.com/noah-isme/class-scheduler-api/pkg/jobs"
)

type resultCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

const batchResultKeyPrefix = "batch:result:"

// AsyncBatchService runs batch submissions on a background worker pool and
// keeps their results in the cache for later retrieval. Long batches get
// their per-row feedback through the progress notifier attached to the
// underlying BatchService.
type AsyncBatchService struct {
	batches *BatchService
	cache   resultCache
	queue   *jobs.Queue
	ttl     time.Duration
	logger  *zap.Logger
}

type asyncBatchJob struct {
	batchID    string
	submission models.BatchSubmission
}

// NewAsyncBatchService constructs the async runner. Start must be called
// before submissions are accepted.
func NewAsyncBatchService(batches *BatchService, cache resultCache, cfg config.BatchConfig, logger *zap.Logger) *AsyncBatchService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &AsyncBatchService{
		batches: batches,
		cache:   cache,
		ttl:     cfg.AsyncResultTTL,
		logger:  logger,
	}
	svc.queue = jobs.NewQueue("batch-runs", svc.run, jobs.QueueConfig{
		Workers:    cfg.AsyncWorkers,
		BufferSize: cfg.AsyncBuffer,
		Logger:     logger,
	})
	return svc
}

// Start launches the worker pool.
func (s *AsyncBatchService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the worker pool.
func (s *AsyncBatchService) Stop() {
	s.queue.Stop()
}

// Submit enqueues a batch run and returns its id immediately.
func (s *AsyncBatchService) Submit(ctx context.Context, submission models.BatchSubmission) (string, error) {
	batchID := uuid.NewString()

	pending := models.BatchResult{
		BatchID:     batchID,
		Status:      models.BatchStatusProcessing,
		SubmittedAt: time.Now().UTC(),
	}
	if err := s.cache.Set(ctx, batchResultKeyPrefix+batchID, pending, s.ttl); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record batch submission")
	}

	if err := s.queue.Enqueue(jobs.Job{ID: batchID, Payload: asyncBatchJob{batchID: batchID, submission: submission}}); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue batch")
	}
	return batchID, nil
}

// Result returns the stored outcome of an async batch run.
func (s *AsyncBatchService) Result(ctx context.Context, batchID string) (*models.BatchResult, error) {
	var result models.BatchResult
	if err := s.cache.Get(ctx, batchResultKeyPrefix+batchID, &result); err != nil {
		if errors.Is(err, appErrors.ErrCacheMiss) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "batch result not found or expired")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load batch result")
	}
	return &result, nil
}

func (s *AsyncBatchService) run(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(asyncBatchJob)
	if !ok {
		s.logger.Error("unexpected job payload", zap.String("job_id", job.ID))
		return nil
	}

	outcomes, err := s.batches.Process(ctx, payload.submission)

	now := time.Now().UTC()
	result := models.BatchResult{
		BatchID:     payload.batchID,
		Status:      models.BatchStatusCompleted,
		Outcomes:    outcomes,
		SubmittedAt: job.Enqueued,
		FinishedAt:  &now,
	}
	if err != nil {
		result.Status = models.BatchStatusAborted
		result.Error = err.Error()
	}

	if err := s.cache.Set(ctx, batchResultKeyPrefix+payload.batchID, result, s.ttl); err != nil {
		s.logger.Error("store batch result", zap.String("batch_id", payload.batchID), zap.Error(err))
	}
	return nil
}
