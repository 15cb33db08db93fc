package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/class-scheduler-api/internal/models"
	"github.com/noah-isme/class-scheduler-api/pkg/config"
	appErrors "github.com/noah-isme/class-scheduler-api/pkg/errors"
)

// memoryCache mimics the redis-backed result cache through JSON round-trips.
type memoryCache struct {
	mu    sync.Mutex
	items map[string][]byte
}

func newMemoryCache() *memoryCache {
	return &memoryCache{items: make(map[string][]byte)}
}

func (c *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	payload, ok := c.items[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(payload, dest)
}

func (c *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = payload
	return nil
}

func newAsyncService(store *mockRegistrationStore, cache *memoryCache) *AsyncBatchService {
	batches := newBatch(store, nil, nil, batchConfig())
	return NewAsyncBatchService(batches, cache, config.BatchConfig{
		AsyncWorkers:   1,
		AsyncBuffer:    4,
		AsyncResultTTL: time.Minute,
	}, zap.NewNop())
}

func TestAsyncBatchRunsToCompletion(t *testing.T) {
	store := &mockRegistrationStore{}
	cache := newMemoryCache()
	svc := newAsyncService(store, cache)
	svc.Start(context.Background())
	defer svc.Stop()

	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	batchID, err := svc.Submit(context.Background(), models.BatchSubmission{Rows: []models.BatchRow{
		newRow("S1", "I1", "C1", start),
	}})
	require.NoError(t, err)
	require.NotEmpty(t, batchID)

	require.Eventually(t, func() bool {
		result, err := svc.Result(context.Background(), batchID)
		return err == nil && result.Status == models.BatchStatusCompleted
	}, 2*time.Second, 10*time.Millisecond)

	result, err := svc.Result(context.Background(), batchID)
	require.NoError(t, err)
	require.Len(t, result.Outcomes, 1)
	assert.Equal(t, "registration created", result.Outcomes[0].Message)
	assert.NotNil(t, result.FinishedAt)
}

func TestAsyncBatchResultIsProcessingUntilRun(t *testing.T) {
	store := &mockRegistrationStore{}
	cache := newMemoryCache()
	svc := newAsyncService(store, cache)
	svc.Start(context.Background())
	defer svc.Stop()

	// Seed a pending record directly; the worker has nothing to consume for
	// this id, so the status stays PROCESSING.
	require.NoError(t, cache.Set(context.Background(), batchResultKeyPrefix+"pending", models.BatchResult{
		BatchID: "pending",
		Status:  models.BatchStatusProcessing,
	}, time.Minute))

	result, err := svc.Result(context.Background(), "pending")
	require.NoError(t, err)
	assert.Equal(t, models.BatchStatusProcessing, result.Status)
}

func TestAsyncBatchResultUnknownID(t *testing.T) {
	svc := newAsyncService(&mockRegistrationStore{}, newMemoryCache())

	_, err := svc.Result(context.Background(), "ghost")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
