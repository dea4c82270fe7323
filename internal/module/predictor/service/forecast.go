package service

import (
	"context"
	"time"

	"personalfinancedss/internal/module/predictor/domain"
)

// decayRate holds days_left steady at one real day per real day until a
// future extension hooks in habit-based multipliers.
const decayRate = 1.0

// Forecast produces a read-only snapshot without mutating state. If
// atTime is nil, the service clock's current instant is used.
func (s *predictorService) Forecast(ctx context.Context, householdID, productID string, atTime *time.Time) (*domain.ForecastSnapshot, error) {
	state, err := s.states.Get(ctx, householdID, productID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, domain.ErrUnknownEntity
	}

	now := s.clock.Now()
	if atTime != nil {
		now = *atTime
	}

	elapsedSinceUpdate := now.Sub(state.LastUpdateAt).Hours() / 24.0
	expectedDaysLeft := state.LastPredDaysLeft - elapsedSinceUpdate*decayRate
	if expectedDaysLeft < 0 {
		expectedDaysLeft = 0
	}

	predictedState := domain.Classify(expectedDaysLeft, state.CycleMeanDays)

	confidence := domain.Confidence(domain.ConfidenceInputs{
		NCompletedCycles: state.NCompletedCycles,
		CycleMeanDays:    state.CycleMeanDays,
		CycleMADDays:     state.CycleMADDays,
		LastUpdateAt:     state.LastUpdateAt,
	}, now)

	return &domain.ForecastSnapshot{
		ID:               newLogEntryID(),
		HouseholdID:      householdID,
		ProductID:        productID,
		GeneratedAt:      now,
		ExpectedDaysLeft: expectedDaysLeft,
		PredictedState:   predictedState,
		Confidence:       confidence,
	}, nil
}
