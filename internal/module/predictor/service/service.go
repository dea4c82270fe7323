// Package service implements the Consumption Cycle Predictor's
// behavior: the Event Processor, Feedback Applier, Weekly Anniversary
// Reconciler, and Forecast Reader, layered over predictor/repository
// and predictor/domain.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"personalfinancedss/internal/module/predictor/clock"
	"personalfinancedss/internal/module/predictor/domain"
	"personalfinancedss/internal/module/predictor/priors"
	"personalfinancedss/internal/module/predictor/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// EventSubmitter accepts typed events for a (household, product) pair.
type EventSubmitter interface {
	SubmitEvent(ctx context.Context, in domain.EventInput) (domain.Outcome, error)
}

// Forecaster produces read-only forecast snapshots.
type Forecaster interface {
	Forecast(ctx context.Context, householdID, productID string, atTime *time.Time) (*domain.ForecastSnapshot, error)
}

// Resetter reinitialises a pair's state from its category prior.
type Resetter interface {
	Reset(ctx context.Context, householdID, productID, categoryID string) (*domain.PredictorState, error)
}

// Reconciler runs the weekly anniversary sweep.
type Reconciler interface {
	RunWeeklyTick(ctx context.Context, now time.Time) (ReconciliationReport, error)
}

// AuditReader exposes the append-only event log for a pair.
type AuditReader interface {
	ListEvents(ctx context.Context, householdID, productID string) ([]domain.EventLogEntry, error)
}

// Service is the composite interface the predictor module exposes.
type Service interface {
	EventSubmitter
	Forecaster
	Resetter
	Reconciler
	AuditReader
}

// predictorService is the shared struct every sub-role (processor,
// feedback applier, reconciler, forecast reader) hangs methods off of,
// rather than splitting into one struct per role.
type predictorService struct {
	states     repository.StateRepository
	eventLog   repository.EventLogRepository
	forecasts  repository.ForecastRepository
	idempotent repository.IdempotencyStore
	priors     priors.Table
	clock      clock.Clock
	logger     *zap.Logger

	staleWindow time.Duration
	deadline    time.Duration
	idemTTL     time.Duration

	locks singleflight.Group

	retryQueue *RetryQueue
}

// Config bundles the predictorService's tuning knobs, sourced from
// internal/config.PredictorConfig.
type Config struct {
	StaleWindow time.Duration
	Deadline    time.Duration
	IdemTTL     time.Duration
}

// New constructs the predictor Service.
func New(
	states repository.StateRepository,
	eventLog repository.EventLogRepository,
	forecasts repository.ForecastRepository,
	idempotent repository.IdempotencyStore,
	priorTable priors.Table,
	clk clock.Clock,
	logger *zap.Logger,
	cfg Config,
) Service {
	s := &predictorService{
		states:      states,
		eventLog:    eventLog,
		forecasts:   forecasts,
		idempotent:  idempotent,
		priors:      priorTable,
		clock:       clk,
		logger:      logger,
		staleWindow: cfg.StaleWindow,
		deadline:    cfg.Deadline,
		idemTTL:     cfg.IdemTTL,
	}
	s.retryQueue = NewRetryQueue(s, logger)
	return s
}

func pairKey(householdID, productID string) string {
	return householdID + ":" + productID
}

func hashPayload(in domain.EventInput) string {
	sum := sha256.Sum256(payloadJSON(in))
	return hex.EncodeToString(sum[:])
}

// payloadJSON marshals the raw event so it can be stored verbatim on
// the log entry (domain.EventLogEntry.Payload) and hashed for
// idempotency comparison, so both uses agree on the exact same bytes.
func payloadJSON(in domain.EventInput) []byte {
	b, _ := json.Marshal(in)
	return b
}

func newLogEntryID() string {
	return uuid.Must(uuid.NewV7()).String()
}

func (s *predictorService) ListEvents(ctx context.Context, householdID, productID string) ([]domain.EventLogEntry, error) {
	return s.eventLog.ListByPair(ctx, householdID, productID)
}

func (s *predictorService) loadOrInitState(ctx context.Context, householdID, productID, categoryID string, now time.Time) (*domain.PredictorState, bool, error) {
	state, err := s.states.Get(ctx, householdID, productID)
	if err != nil {
		return nil, false, err
	}
	if state != nil {
		return state, false, nil
	}

	prior := s.priors.Lookup(categoryID)
	state = domain.NewInitialState(householdID, productID, categoryID, prior.MeanDays, prior.MADDays, now)
	state.Confidence = domain.Confidence(domain.ConfidenceInputs{
		NCompletedCycles: state.NCompletedCycles,
		CycleMeanDays:    state.CycleMeanDays,
		CycleMADDays:     state.CycleMADDays,
		LastUpdateAt:     state.LastUpdateAt,
	}, now)
	return state, true, nil
}

func fmtDeadlineErr(householdID, productID string) error {
	return fmt.Errorf("event handling deadline exceeded for %s/%s", householdID, productID)
}
