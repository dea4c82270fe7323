package service

import (
	"context"

	"personalfinancedss/internal/module/predictor/domain"

	"go.uber.org/zap"
)

// Reset reinitialises a pair's state from its Category Prior and
// appends a RESET event to the log.
func (s *predictorService) Reset(ctx context.Context, householdID, productID, categoryID string) (*domain.PredictorState, error) {
	key := pairKey(householdID, productID)

	v, err, _ := s.locks.Do(key, func() (interface{}, error) {
		now := s.clock.Now()

		existing, err := s.states.Get(ctx, householdID, productID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			categoryID = resolveResetCategory(existing, categoryID)
		}

		prior := s.priors.Lookup(categoryID)
		state := domain.NewInitialState(householdID, productID, categoryID, prior.MeanDays, prior.MADDays, now)
		if existing != nil {
			state.ID = existing.ID
		}
		state.Confidence = domain.Confidence(domain.ConfidenceInputs{
			NCompletedCycles: state.NCompletedCycles,
			CycleMeanDays:    state.CycleMeanDays,
			CycleMADDays:     state.CycleMADDays,
			LastUpdateAt:     state.LastUpdateAt,
		}, now)

		entry := &domain.EventLogEntry{
			ID:              newLogEntryID(),
			HouseholdID:     householdID,
			ProductID:       productID,
			IdempotencyKey:  "reset-" + newLogEntryID(),
			Kind:            domain.EventReset,
			Timestamp:       now,
			DaysLeftBefore:  0,
			DaysLeftAfter:   state.DaysLeft(),
			CycleMeanBefore: 0,
			CycleMeanAfter:  state.CycleMeanDays,
		}
		if existing != nil {
			entry.DaysLeftBefore = existing.DaysLeft()
			entry.CycleMeanBefore = existing.CycleMeanDays
		}

		if err := s.persist(ctx, state, entry); err != nil {
			return nil, err
		}

		s.logger.Info("predictor state reset",
			zap.String("household_id", householdID),
			zap.String("product_id", productID),
		)

		return state, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.PredictorState), nil
}

func resolveResetCategory(existing *domain.PredictorState, suppliedCategoryID string) string {
	if suppliedCategoryID != "" {
		return suppliedCategoryID
	}
	if existing.CategoryID != nil {
		return *existing.CategoryID
	}
	return ""
}
