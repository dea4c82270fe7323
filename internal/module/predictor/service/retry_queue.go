package service

import (
	"context"
	"sync"
	"time"

	"personalfinancedss/internal/module/predictor/domain"

	"go.uber.org/zap"
)

// RetryQueue holds events that failed to persist with STORAGE_FAILURE
// so they can be retried with exponential backoff: the event is
// enqueued for deferred application, and forecast reads continue to be
// served from the last good state in the meantime. Uses a
// ticker worker stopped by context cancellation.
type RetryQueue struct {
	service *predictorService
	logger  *zap.Logger

	mu      sync.Mutex
	pending []retryItem

	interval   time.Duration
	maxRetries int

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type retryItem struct {
	input    domain.EventInput
	attempts int
	nextAt   time.Time
}

// NewRetryQueue creates a retry queue for deferred event re-application.
func NewRetryQueue(service *predictorService, logger *zap.Logger) *RetryQueue {
	return &RetryQueue{
		service:    service,
		logger:     logger,
		interval:   10 * time.Second,
		maxRetries: 5,
	}
}

// Enqueue schedules in for deferred retry after a storage failure.
func (q *RetryQueue) Enqueue(in domain.EventInput) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, retryItem{input: in, attempts: 0, nextAt: time.Now().Add(q.interval)})
	q.logger.Warn("predictor event deferred for retry",
		zap.String("household_id", in.HouseholdID),
		zap.String("product_id", in.ProductID),
		zap.String("idempotency_key", in.IdempotencyKey),
	)
}

// Start runs the background retry loop on its own context, independent
// of whatever context the caller used to start it — fx's OnStart
// context is cancelled once startup completes, and the worker must
// keep running for the lifetime of the process, not just the startup
// hook. Stop cancels this context and waits for the loop to exit.
func (q *RetryQueue) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	q.cancel = cancel
	q.wg.Add(1)
	go q.run(ctx)
}

// Stop signals the retry loop to exit and waits for it to finish.
func (q *RetryQueue) Stop() {
	if q.cancel != nil {
		q.cancel()
	}
	q.wg.Wait()
}

// StartRetryLoop starts the predictor service's deferred-write retry
// queue. Exposed on predictorService (rather than the Service interface)
// so fx's lifecycle hook can start/stop it without every Service
// implementation (e.g. test fakes) needing to carry a no-op version.
func (s *predictorService) StartRetryLoop() {
	s.retryQueue.Start()
}

// StopRetryLoop stops the deferred-write retry queue, waiting for the
// in-flight drain to finish.
func (s *predictorService) StopRetryLoop() {
	s.retryQueue.Stop()
}

func (q *RetryQueue) run(ctx context.Context) {
	defer q.wg.Done()

	ticker := time.NewTicker(q.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			q.drain(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (q *RetryQueue) drain(ctx context.Context) {
	q.mu.Lock()
	due := q.pending[:0:0]
	remaining := q.pending[:0]
	now := time.Now()
	for _, item := range q.pending {
		if now.After(item.nextAt) {
			due = append(due, item)
		} else {
			remaining = append(remaining, item)
		}
	}
	q.pending = remaining
	q.mu.Unlock()

	for _, item := range due {
		_, err := q.service.SubmitEvent(ctx, item.input)
		if err == nil {
			q.logger.Info("deferred predictor event applied on retry",
				zap.String("household_id", item.input.HouseholdID),
				zap.String("product_id", item.input.ProductID),
			)
			continue
		}

		item.attempts++
		if item.attempts >= q.maxRetries {
			q.logger.Error("deferred predictor event exhausted retries",
				zap.String("household_id", item.input.HouseholdID),
				zap.String("product_id", item.input.ProductID),
				zap.Int("attempts", item.attempts),
				zap.Error(err),
			)
			continue
		}

		backoff := q.interval * time.Duration(1<<item.attempts)
		item.nextAt = time.Now().Add(backoff)

		q.mu.Lock()
		q.pending = append(q.pending, item)
		q.mu.Unlock()
	}
}
