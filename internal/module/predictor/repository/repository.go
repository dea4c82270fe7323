package repository

import (
	"context"
	"time"

	"personalfinancedss/internal/module/predictor/domain"
)

// StateRepository persists Predictor State. It is the sole mutator of
// the predictor_states table outside of replay/migration tooling.
type StateRepository interface {
	// Get returns the state for (householdID, productID), or nil if none
	// exists yet (first event for the pair).
	Get(ctx context.Context, householdID, productID string) (*domain.PredictorState, error)

	// Upsert creates or replaces the state row for its (household, product).
	Upsert(ctx context.Context, state *domain.PredictorState) error

	// ListAll returns every known Predictor State. The Weekly Anniversary
	// Reconciler filters these by anniversary weekday itself (the
	// anniversary is derived from event log history, not a state column).
	ListAll(ctx context.Context) ([]domain.PredictorState, error)

	// Delete removes the state row (household or product deleted upstream).
	Delete(ctx context.Context, householdID, productID string) error
}

// EventLogRepository appends and reads the immutable event audit trail.
// It is the sole source of truth for replay.
type EventLogRepository interface {
	// Append writes one log entry. Entries are never mutated afterward.
	Append(ctx context.Context, entry *domain.EventLogEntry) error

	// ListByPair returns all log entries for (householdID, productID) in
	// processed order, for audit reads and replay verification.
	ListByPair(ctx context.Context, householdID, productID string) ([]domain.EventLogEntry, error)

	// First returns the earliest log entry for the pair, used by the
	// Reconciler to determine the anniversary weekday. Returns nil if
	// the pair has no history yet.
	First(ctx context.Context, householdID, productID string) (*domain.EventLogEntry, error)

	// LastTimestamp returns the timestamp of the most recently processed
	// event for the pair, used for the out-of-order tolerance check.
	LastTimestamp(ctx context.Context, householdID, productID string) (time.Time, bool, error)

	// FindByIdempotencyKey looks up a previously accepted event by key,
	// for idempotent re-delivery.
	FindByIdempotencyKey(ctx context.Context, householdID, productID, key string) (*domain.EventLogEntry, error)
}

// ForecastRepository appends forecast snapshots.
type ForecastRepository interface {
	Append(ctx context.Context, snapshot *domain.ForecastSnapshot) error
	Latest(ctx context.Context, householdID, productID string) (*domain.ForecastSnapshot, error)
}

// IdempotencyStore tracks accepted idempotency keys with their original
// payload hash, so replayed deliveries with a differing payload can be
// rejected as CONFLICT rather than silently reapplied. Backed by Redis
// in production (fast TTL'd lookups); the GORM event log remains the
// durable source of truth if the cache is cold.
type IdempotencyStore interface {
	// Reserve atomically claims key for (householdID, productID) with the
	// given payload hash. ok is false if the key already exists; in that
	// case match reports whether the stored hash equals payloadHash.
	Reserve(ctx context.Context, householdID, productID, key, payloadHash string, ttl time.Duration) (ok bool, match bool, err error)
}
