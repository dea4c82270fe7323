package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"personalfinancedss/internal/module/predictor/clock"
	"personalfinancedss/internal/module/predictor/domain"
	"personalfinancedss/internal/module/predictor/priors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// --- in-memory fakes for the repository interfaces ---

type memStateRepo struct {
	mu     sync.Mutex
	states map[string]*domain.PredictorState
}

func newMemStateRepo() *memStateRepo {
	return &memStateRepo{states: make(map[string]*domain.PredictorState)}
}

func (r *memStateRepo) Get(ctx context.Context, householdID, productID string) (*domain.PredictorState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.states[pairKey(householdID, productID)]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (r *memStateRepo) Upsert(ctx context.Context, state *domain.PredictorState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *state
	r.states[pairKey(state.HouseholdID, state.ProductID)] = &cp
	return nil
}

func (r *memStateRepo) ListAll(ctx context.Context) ([]domain.PredictorState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.PredictorState, 0, len(r.states))
	for _, s := range r.states {
		out = append(out, *s)
	}
	return out, nil
}

func (r *memStateRepo) Delete(ctx context.Context, householdID, productID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.states, pairKey(householdID, productID))
	return nil
}

type memEventLogRepo struct {
	mu      sync.Mutex
	entries []domain.EventLogEntry
}

func newMemEventLogRepo() *memEventLogRepo {
	return &memEventLogRepo{}
}

func (r *memEventLogRepo) Append(ctx context.Context, entry *domain.EventLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *memEventLogRepo) ListByPair(ctx context.Context, householdID, productID string) ([]domain.EventLogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.EventLogEntry
	for _, e := range r.entries {
		if e.HouseholdID == householdID && e.ProductID == productID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *memEventLogRepo) First(ctx context.Context, householdID, productID string) (*domain.EventLogEntry, error) {
	entries, _ := r.ListByPair(ctx, householdID, productID)
	if len(entries) == 0 {
		return nil, nil
	}
	first := entries[0]
	for _, e := range entries[1:] {
		if e.Timestamp.Before(first.Timestamp) {
			first = e
		}
	}
	return &first, nil
}

func (r *memEventLogRepo) LastTimestamp(ctx context.Context, householdID, productID string) (time.Time, bool, error) {
	entries, _ := r.ListByPair(ctx, householdID, productID)
	if len(entries) == 0 {
		return time.Time{}, false, nil
	}
	last := entries[0].Timestamp
	for _, e := range entries[1:] {
		if e.Timestamp.After(last) {
			last = e.Timestamp
		}
	}
	return last, true, nil
}

func (r *memEventLogRepo) FindByIdempotencyKey(ctx context.Context, householdID, productID, key string) (*domain.EventLogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.HouseholdID == householdID && e.ProductID == productID && e.IdempotencyKey == key {
			cp := e
			return &cp, nil
		}
	}
	return nil, nil
}

type memForecastRepo struct {
	mu        sync.Mutex
	snapshots []domain.ForecastSnapshot
}

func newMemForecastRepo() *memForecastRepo { return &memForecastRepo{} }

func (r *memForecastRepo) Append(ctx context.Context, s *domain.ForecastSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = append(r.snapshots, *s)
	return nil
}

func (r *memForecastRepo) Latest(ctx context.Context, householdID, productID string) (*domain.ForecastSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *domain.ForecastSnapshot
	for i := range r.snapshots {
		s := r.snapshots[i]
		if s.HouseholdID == householdID && s.ProductID == productID {
			if latest == nil || s.GeneratedAt.After(latest.GeneratedAt) {
				cp := s
				latest = &cp
			}
		}
	}
	return latest, nil
}

func ptrF(v float64) *float64 { return &v }

func newTestService(now time.Time) (*predictorService, *memStateRepo, *memEventLogRepo) {
	stateRepo := newMemStateRepo()
	logRepo := newMemEventLogRepo()
	forecastRepo := newMemForecastRepo()

	svc := New(
		stateRepo,
		logRepo,
		forecastRepo,
		nil,
		priors.NewTable(),
		clock.FixedClock{At: now},
		zap.NewNop(),
		Config{StaleWindow: 24 * time.Hour, Deadline: 2 * time.Second, IdemTTL: 72 * time.Hour},
	).(*predictorService)

	return svc, stateRepo, logRepo
}

func TestSubmitEvent_ColdStartPurchase(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	svc, _, _ := newTestService(now)

	outcome, err := svc.SubmitEvent(context.Background(), domain.EventInput{
		IdempotencyKey: "k1",
		HouseholdID:    "h1",
		ProductID:      "p1",
		CategoryID:     "Dairy & Eggs",
		Timestamp:      now,
		Kind:           domain.EventPurchase,
	})

	require.NoError(t, err)
	assert.True(t, outcome.Applied)
	assert.Equal(t, 5.0, outcome.State.CycleMeanDays)
	assert.Equal(t, 5.0, outcome.State.DaysLeft())
}

func TestSubmitEvent_IdempotentReplay(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	svc, _, _ := newTestService(now)

	in := domain.EventInput{
		IdempotencyKey: "k1",
		HouseholdID:    "h1",
		ProductID:      "p1",
		Timestamp:      now,
		Kind:           domain.EventPurchase,
	}

	first, err := svc.SubmitEvent(context.Background(), in)
	require.NoError(t, err)

	second, err := svc.SubmitEvent(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, first.State.DaysLeft(), second.State.DaysLeft())
}

func TestSubmitEvent_ConflictOnReusedKeyDifferentPayload(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	svc, _, _ := newTestService(now)

	_, err := svc.SubmitEvent(context.Background(), domain.EventInput{
		IdempotencyKey: "k1", HouseholdID: "h1", ProductID: "p1", Timestamp: now, Kind: domain.EventPurchase,
	})
	require.NoError(t, err)

	_, err = svc.SubmitEvent(context.Background(), domain.EventInput{
		IdempotencyKey: "k1", HouseholdID: "h1", ProductID: "p1", Timestamp: now, Kind: domain.EventEmpty,
	})
	assert.Error(t, err)
}

func TestSubmitEvent_StaleEventRejected(t *testing.T) {
	now := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	svc, _, _ := newTestService(now)

	_, err := svc.SubmitEvent(context.Background(), domain.EventInput{
		IdempotencyKey: "k1", HouseholdID: "h1", ProductID: "p1", Timestamp: now, Kind: domain.EventPurchase,
	})
	require.NoError(t, err)

	staleTs := now.Add(-48 * time.Hour)
	_, err = svc.SubmitEvent(context.Background(), domain.EventInput{
		IdempotencyKey: "k2", HouseholdID: "h1", ProductID: "p1", Timestamp: staleTs, Kind: domain.EventEmpty,
	})
	assert.ErrorIs(t, err, domain.ErrStaleEvent)
}

func TestSubmitEvent_OutOfOrderWithinWindowApplied(t *testing.T) {
	now := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	svc, _, logRepo := newTestService(now)

	_, err := svc.SubmitEvent(context.Background(), domain.EventInput{
		IdempotencyKey: "k1", HouseholdID: "h1", ProductID: "p1", Timestamp: now, Kind: domain.EventPurchase,
	})
	require.NoError(t, err)

	withinWindowTs := now.Add(-6 * time.Hour)
	outcome, err := svc.SubmitEvent(context.Background(), domain.EventInput{
		IdempotencyKey: "k2", HouseholdID: "h1", ProductID: "p1", Timestamp: withinWindowTs, Kind: domain.EventManualSet, DaysLeftTarget: ptrF(2.0),
	})
	require.NoError(t, err)
	assert.True(t, outcome.OutOfOrder)

	entries, _ := logRepo.ListByPair(context.Background(), "h1", "p1")
	require.Len(t, entries, 2)
	assert.True(t, entries[1].OutOfOrder)
}

func TestSubmitEvent_RejectsInvalidPayload(t *testing.T) {
	now := time.Now()
	svc, _, _ := newTestService(now)

	_, err := svc.SubmitEvent(context.Background(), domain.EventInput{
		IdempotencyKey: "k1", HouseholdID: "h1", ProductID: "p1", Timestamp: now, Kind: domain.EventConsume, Ratio: ptrF(1.5),
	})
	assert.ErrorIs(t, err, domain.ErrRatioOutOfRange)
}

func TestForecast_DecaysSinceLastUpdate(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	svc, _, _ := newTestService(now)

	_, err := svc.SubmitEvent(context.Background(), domain.EventInput{
		IdempotencyKey: "k1", HouseholdID: "h1", ProductID: "p1", Timestamp: now, Kind: domain.EventPurchase, CategoryID: "Dairy & Eggs",
	})
	require.NoError(t, err)

	later := now.AddDate(0, 0, 2)
	snap, err := svc.Forecast(context.Background(), "h1", "p1", &later)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, snap.ExpectedDaysLeft, 1e-9)
}

func TestForecast_UnknownEntity(t *testing.T) {
	svc, _, _ := newTestService(time.Now())
	_, err := svc.Forecast(context.Background(), "nope", "nope", nil)
	assert.ErrorIs(t, err, domain.ErrUnknownEntity)
}

func TestReset_ReinitialisesFromPrior(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	svc, _, logRepo := newTestService(now)

	_, err := svc.SubmitEvent(context.Background(), domain.EventInput{
		IdempotencyKey: "k1", HouseholdID: "h1", ProductID: "p1", Timestamp: now, Kind: domain.EventPurchase, CategoryID: "Dairy & Eggs",
	})
	require.NoError(t, err)

	state, err := svc.Reset(context.Background(), "h1", "p1", "")
	require.NoError(t, err)
	assert.Equal(t, 5.0, state.CycleMeanDays)
	assert.Equal(t, 0, state.NCompletedCycles)

	entries, _ := logRepo.ListByPair(context.Background(), "h1", "p1")
	require.Len(t, entries, 2)
	assert.Equal(t, domain.EventReset, entries[1].Kind)
}

func TestRunWeeklyTick_AppliesOnAnniversaryWeekday(t *testing.T) {
	firstEvent := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	svc, stateRepo, _ := newTestService(firstEvent)

	_, err := svc.SubmitEvent(context.Background(), domain.EventInput{
		IdempotencyKey: "k1", HouseholdID: "h1", ProductID: "p1", Timestamp: firstEvent, Kind: domain.EventPurchase,
	})
	require.NoError(t, err)

	anniversary := firstEvent.AddDate(0, 0, 7) // same weekday, one week later
	report, err := svc.RunWeeklyTick(context.Background(), anniversary)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Ticked)

	state, err := stateRepo.Get(context.Background(), "h1", "p1")
	require.NoError(t, err)
	require.NotNil(t, state.LastWeeklyTickAt)
}

func TestRunWeeklyTick_SkipsNonAnniversaryWeekday(t *testing.T) {
	firstEvent := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	svc, _, _ := newTestService(firstEvent)

	_, err := svc.SubmitEvent(context.Background(), domain.EventInput{
		IdempotencyKey: "k1", HouseholdID: "h1", ProductID: "p1", Timestamp: firstEvent, Kind: domain.EventPurchase,
	})
	require.NoError(t, err)

	nonAnniversary := firstEvent.AddDate(0, 0, 1)
	report, err := svc.RunWeeklyTick(context.Background(), nonAnniversary)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Ticked)
	assert.Equal(t, 1, report.Skipped)
}

func TestNormalizeFeedbackDirection(t *testing.T) {
	tests := []struct {
		label    FeedbackLabel
		expected domain.FeedbackDirection
		wantErr  bool
	}{
		{"MORE", domain.FeedbackMore, false},
		{"Will Last More", domain.FeedbackMore, false},
		{"arrow-up", domain.FeedbackMore, false},
		{"LESS", domain.FeedbackLess, false},
		{"arrow_down", domain.FeedbackLess, false},
		{"sideways", "", true},
	}

	for _, tt := range tests {
		got, err := NormalizeFeedbackDirection(tt.label)
		if tt.wantErr {
			assert.Error(t, err)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.expected, got)
	}
}
