package domain

import (
	"time"
)

// TransitionResult carries the audit fields a transition needs to hand
// back to the caller for log-entry construction, on top of mutating
// state in place.
type TransitionResult struct {
	DaysLeftBefore  float64
	DaysLeftAfter   float64
	CycleMeanBefore float64
	CycleMeanAfter  float64
}

// Apply runs the transition for in.Kind against state in place and
// returns the before/after snapshot for audit logging. now is the
// instant the event is processed at (not necessarily in.Timestamp,
// which may be in the past for out-of-order arrivals within tolerance).
//
// Apply never blocks and never touches storage; callers own
// persistence, idempotency, and locking.
func Apply(state *PredictorState, in EventInput, now time.Time) (TransitionResult, error) {
	result := TransitionResult{
		DaysLeftBefore:  state.DaysLeft(),
		CycleMeanBefore: state.CycleMeanDays,
	}

	if in.CategoryID != "" {
		state.AdoptCategory(in.CategoryID)
	}

	var elapsed float64
	hasElapsed := false
	if state.CycleStartedAt != nil {
		elapsed = daysBetween(now, *state.CycleStartedAt)
		hasElapsed = true
	}

	switch in.Kind {
	case EventPurchase, EventRepurchase:
		applyPurchase(state, now)

	case EventEmpty:
		applyEmpty(state, hasElapsed, elapsed)

	case EventTrash:
		if err := applyTrash(state, in.Reason, hasElapsed, elapsed); err != nil {
			return result, err
		}

	case EventAdjustFeedback:
		if err := applyAdjustFeedback(state, in.Direction, now); err != nil {
			return result, err
		}

	case EventConsume:
		closed, err := applyConsume(state, in)
		if err != nil {
			return result, err
		}
		if closed {
			// synthesised EMPTY close, applied atomically within CONSUME.
			elapsed = daysBetween(now, *state.CycleStartedAt)
			applyEmpty(state, true, elapsed)
		}

	case EventManualSet:
		if err := applyManualSet(state, in, now); err != nil {
			return result, err
		}

	case EventWeeklyTick:
		applyWeeklyTick(state, hasElapsed, elapsed, now)

	case EventReset:
		// Never reached from the live event path: the service layer
		// rejects EventReset at validation and re-initialises state
		// directly rather than calling Apply. Kept as a named case so
		// EventKind stays exhaustive; any future log-replay driver must
		// re-seed from the RESET entry rather than fold it through here.

	default:
		return result, ErrUnknownEventKind
	}

	state.NTotalUpdates++

	state.LastPredDaysLeft = state.DaysLeft()
	state.LastUpdateAt = now
	state.Confidence = Confidence(ConfidenceInputs{
		NCompletedCycles: state.NCompletedCycles,
		CycleMeanDays:    state.CycleMeanDays,
		CycleMADDays:     state.CycleMADDays,
		LastUpdateAt:     state.LastUpdateAt,
	}, now)

	result.DaysLeftAfter = state.DaysLeft()
	result.CycleMeanAfter = state.CycleMeanDays
	return result, nil
}

func daysBetween(a, b time.Time) float64 {
	return a.Sub(b).Hours() / 24.0
}

func applyPurchase(state *PredictorState, now time.Time) {
	if state.CycleStartedAt != nil {
		state.NCensoredCycles++
	}
	state.CycleStartedAt = &now
	state.LastPurchaseAt = &now
	state.SetDaysLeft(state.CycleMeanDays)
}

func applyEmpty(state *PredictorState, hasElapsed bool, elapsed float64) {
	if hasElapsed && elapsed >= 0.5 {
		n := state.NCompletedCycles
		oldMean := state.CycleMeanDays

		newMean := (oldMean*float64(n) + elapsed) / float64(n+1)

		var newMAD float64
		if n >= 1 {
			prevMADSum := state.CycleMADDays * float64(n)
			newMAD = (prevMADSum + absFloat(elapsed-oldMean)) / float64(n+1)
		} else {
			newMAD = absFloat(elapsed - oldMean)
		}

		state.CycleMeanDays = ClampCycleMean(newMean)
		state.CycleMADDays = newMAD
		state.NCompletedCycles++
		state.NStrongUpdates++
		state.CycleStartedAt = nil
		state.SetDaysLeft(0)
		return
	}

	// already empty, or cycle too young to count: days_left=0 only.
	state.SetDaysLeft(0)
}

func applyTrash(state *PredictorState, reason TrashReason, hasElapsed bool, elapsed float64) error {
	if !reason.IsValid() {
		return ErrUnknownTrashReason
	}

	switch reason {
	case TrashReasonTaste, TrashReasonOther:
		state.CycleStartedAt = nil
		state.SetDaysLeft(0)

	case TrashReasonExpired:
		state.CycleStartedAt = nil
		state.SetDaysLeft(0)

	case TrashReasonRanOut:
		observed := elapsed
		if !hasElapsed {
			observed = 0
		}
		oldMean := state.CycleMeanDays
		oldMAD := state.CycleMADDays

		newMean := 0.80*oldMean + 0.20*observed
		newMAD := 0.80*oldMAD + 0.20*absFloat(observed-oldMean)

		state.CycleMeanDays = ClampCycleMean(newMean)
		state.CycleMADDays = newMAD
		state.NStrongUpdates++
		state.CycleStartedAt = nil
		state.SetDaysLeft(0)
	}

	return nil
}

func applyAdjustFeedback(state *PredictorState, direction FeedbackDirection, now time.Time) error {
	if !direction.IsValid() {
		return ErrUnknownDirection
	}

	cur := state.DaysLeft()
	if cur < 0 {
		cur = 0
	}

	isEmpty := Classify(cur, state.CycleMeanDays) == StockStateEmpty

	if isEmpty {
		switch direction {
		case FeedbackMore:
			state.CycleStartedAt = &now
			state.SetDaysLeft(0.15 * state.CycleMeanDays)
		case FeedbackLess:
			// LESS feedback on an already-empty item is a no-op: there
			// is no current days-left estimate left to adjust.
		}
		return nil
	}

	switch direction {
	case FeedbackMore:
		state.SetDaysLeft(cur * 1.15)
	case FeedbackLess:
		state.SetDaysLeft(cur * 0.85)
	}
	return nil
}

func applyConsume(state *PredictorState, in EventInput) (closedCycle bool, err error) {
	cur := state.DaysLeft()

	switch {
	case in.DeltaDays != nil:
		if *in.DeltaDays < 0 {
			return false, ErrNegativeDelta
		}
		state.SetDaysLeft(cur - *in.DeltaDays)

	case in.Ratio != nil:
		if *in.Ratio <= 0 || *in.Ratio >= 1 {
			return false, ErrRatioOutOfRange
		}
		state.SetDaysLeft(cur * (1 - *in.Ratio))

	default:
		state.SetDaysLeft(cur * (1 - 0.10))
	}

	if state.DaysLeft() == 0 && state.CycleStartedAt != nil {
		return true, nil
	}
	return false, nil
}

func applyManualSet(state *PredictorState, in EventInput, now time.Time) error {
	if in.DaysLeftTarget == nil {
		return ErrInvalidEvent
	}
	if *in.DaysLeftTarget < 0 {
		return ErrNegativeTarget
	}

	state.SetDaysLeft(*in.DaysLeftTarget)
	if state.CycleStartedAt == nil && state.DaysLeft() > 0 {
		state.CycleStartedAt = &now
	}
	return nil
}

func applyWeeklyTick(state *PredictorState, hasElapsed bool, elapsed float64, now time.Time) {
	if hasElapsed && elapsed >= 1.0 {
		oldMean := state.CycleMeanDays
		oldMAD := state.CycleMADDays

		newMean := 0.90*oldMean + 0.10*elapsed
		newMAD := 0.90*oldMAD + 0.10*absFloat(elapsed-oldMean)

		state.CycleMeanDays = ClampCycleMean(newMean)
		state.CycleMADDays = newMAD
		state.NStrongUpdates++
	}
	state.LastWeeklyTickAt = &now
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
