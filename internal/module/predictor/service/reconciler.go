package service

import (
	"context"
	"fmt"
	"time"

	"personalfinancedss/internal/module/predictor/domain"

	"go.uber.org/zap"
)

// weeklyTickRefractoryPeriod enforces "no WEEKLY_TICK applied in the
// last 6 days" so a pair never double-ticks within the same week.
const weeklyTickRefractoryPeriod = 6 * 24 * time.Hour

// ReconciliationReport summarises one weekly-tick sweep.
type ReconciliationReport struct {
	Considered int
	Ticked     int
	Skipped    int
	Errored    int
	Errors     []string
}

// RunWeeklyTick sweeps every Predictor State and, for pairs whose
// anniversary weekday matches today and that have not ticked in the
// last 6 days, emits a WEEKLY_TICK event through SubmitEvent — keeping
// the reconciler's mutation path identical to the user-event path so
// replay stays deterministic.
//
// It must yield between pairs so it never starves concurrent
// user-submitted events: each pair's lock is acquired and released by
// the nested SubmitEvent call, not held for the whole sweep.
func (s *predictorService) RunWeeklyTick(ctx context.Context, now time.Time) (ReconciliationReport, error) {
	report := ReconciliationReport{}

	states, err := s.states.ListAll(ctx)
	if err != nil {
		return report, err
	}

	today := now.Weekday()

	for i := range states {
		if err := verifyContextAlive(ctx); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("sweep aborted: %v", err))
			return report, err
		}

		state := states[i]
		report.Considered++

		due, err := s.isDueForTick(ctx, state, today, now)
		if err != nil {
			report.Errored++
			report.Errors = append(report.Errors, fmt.Sprintf("%s/%s: %v", state.HouseholdID, state.ProductID, err))
			continue
		}
		if !due {
			report.Skipped++
			continue
		}

		in := domain.EventInput{
			IdempotencyKey: fmt.Sprintf("weekly-tick-%s-%s-%s", state.HouseholdID, state.ProductID, now.Format("2006-01-02")),
			HouseholdID:    state.HouseholdID,
			ProductID:      state.ProductID,
			Timestamp:      now,
			Kind:           domain.EventWeeklyTick,
		}

		if _, err := s.SubmitEvent(ctx, in); err != nil {
			report.Errored++
			report.Errors = append(report.Errors, fmt.Sprintf("%s/%s: %v", state.HouseholdID, state.ProductID, err))
			continue
		}
		report.Ticked++
	}

	s.logger.Info("weekly reconciliation sweep complete",
		zap.Int("considered", report.Considered),
		zap.Int("ticked", report.Ticked),
		zap.Int("skipped", report.Skipped),
		zap.Int("errored", report.Errored),
	)

	return report, nil
}

func (s *predictorService) isDueForTick(ctx context.Context, state domain.PredictorState, today time.Weekday, now time.Time) (bool, error) {
	first, err := s.eventLog.First(ctx, state.HouseholdID, state.ProductID)
	if err != nil {
		return false, err
	}
	if first == nil {
		return false, nil
	}
	if first.Timestamp.Weekday() != today {
		return false, nil
	}
	if state.LastWeeklyTickAt != nil && now.Sub(*state.LastWeeklyTickAt) < weeklyTickRefractoryPeriod {
		return false, nil
	}
	return true, nil
}

// verifyContextAlive is a cheap cooperative yield point between pairs.
func verifyContextAlive(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
