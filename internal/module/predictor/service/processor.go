package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"personalfinancedss/internal/module/predictor/domain"
	"personalfinancedss/internal/shared"

	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// SubmitEvent is the Event Processor's entry point. It validates,
// checks idempotency and ordering, loads-or-initialises state, applies
// the transition under a per-pair single-flight lock, and persists the
// state write, log entry, and optional forecast snapshot.
func (s *predictorService) SubmitEvent(ctx context.Context, in domain.EventInput) (domain.Outcome, error) {
	if err := validateInput(in); err != nil {
		return domain.Outcome{Applied: false, Rejection: domain.RejectionInvalidEvent}, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.deadline)
	defer cancel()

	key := pairKey(in.HouseholdID, in.ProductID)

	type result struct {
		outcome domain.Outcome
		err     error
	}

	v, err, _ := s.locks.Do(key, func() (interface{}, error) {
		outcome, err := s.processLocked(ctx, in)
		return result{outcome, err}, nil
	})
	if err != nil {
		return domain.Outcome{}, err
	}

	r := v.(result)
	return r.outcome, r.err
}

func validateInput(in domain.EventInput) error {
	if in.HouseholdID == "" || in.ProductID == "" {
		return domain.ErrInvalidEvent
	}
	if in.IdempotencyKey == "" {
		return domain.ErrInvalidEvent
	}
	if !in.Kind.IsValid() || in.Kind == domain.EventReset {
		return domain.ErrUnknownEventKind
	}
	if in.Kind == domain.EventTrash && !in.Reason.IsValid() {
		return domain.ErrUnknownTrashReason
	}
	if in.Kind == domain.EventAdjustFeedback && !in.Direction.IsValid() {
		return domain.ErrUnknownDirection
	}
	if in.Kind == domain.EventConsume {
		if in.DeltaDays != nil && *in.DeltaDays < 0 {
			return domain.ErrNegativeDelta
		}
		if in.Ratio != nil && (*in.Ratio <= 0 || *in.Ratio >= 1) {
			return domain.ErrRatioOutOfRange
		}
	}
	if in.Kind == domain.EventManualSet {
		if in.DaysLeftTarget == nil || *in.DaysLeftTarget < 0 {
			return domain.ErrInvalidEvent
		}
	}
	return nil
}

// processLocked runs under the per-pair singleflight lock: idempotency
// check, staleness check, state load/init, transition, and persistence.
func (s *predictorService) processLocked(ctx context.Context, in domain.EventInput) (domain.Outcome, error) {
	select {
	case <-ctx.Done():
		return domain.Outcome{Applied: false, Rejection: domain.RejectionStorageFailed}, fmtDeadlineErr(in.HouseholdID, in.ProductID)
	default:
	}

	payloadHash := hashPayload(in)

	if s.idempotent != nil {
		if ok, match, rerr := s.idempotent.Reserve(ctx, in.HouseholdID, in.ProductID, in.IdempotencyKey, payloadHash, s.idemTTL); rerr == nil && !ok && !match {
			return domain.Outcome{Applied: false, Rejection: domain.RejectionConflict},
				shared.ErrConflict.WithDetails("idempotency_key", in.IdempotencyKey)
		}
	}

	existing, err := s.eventLog.FindByIdempotencyKey(ctx, in.HouseholdID, in.ProductID, in.IdempotencyKey)
	if err != nil {
		return domain.Outcome{Applied: false, Rejection: domain.RejectionStorageFailed}, err
	}
	if existing != nil {
		if hashMatchesEntry(*existing, in) {
			return s.replayOutcome(ctx, in, *existing)
		}
		return domain.Outcome{Applied: false, Rejection: domain.RejectionConflict},
			shared.ErrConflict.WithDetails("idempotency_key", in.IdempotencyKey)
	}

	lastTs, hasLast, err := s.eventLog.LastTimestamp(ctx, in.HouseholdID, in.ProductID)
	if err != nil {
		return domain.Outcome{Applied: false, Rejection: domain.RejectionStorageFailed}, err
	}

	outOfOrder := false
	if hasLast && in.Timestamp.Before(lastTs) {
		age := lastTs.Sub(in.Timestamp)
		if age > s.staleWindow {
			return domain.Outcome{Applied: false, Rejection: domain.RejectionStaleEvent}, domain.ErrStaleEvent
		}
		outOfOrder = true
	}

	now := s.clock.Now()

	state, _, err := s.loadOrInitState(ctx, in.HouseholdID, in.ProductID, in.CategoryID, now)
	if err != nil {
		return domain.Outcome{Applied: false, Rejection: domain.RejectionUnknownEntity}, err
	}

	before := domain.Classify(state.DaysLeft(), state.CycleMeanDays)

	txResult, err := domain.Apply(state, in, now)
	if err != nil {
		return domain.Outcome{Applied: false, Rejection: domain.RejectionInvalidEvent}, err
	}

	after := domain.Classify(state.DaysLeft(), state.CycleMeanDays)

	entry := &domain.EventLogEntry{
		ID:              newLogEntryID(),
		HouseholdID:     in.HouseholdID,
		ProductID:       in.ProductID,
		IdempotencyKey:  in.IdempotencyKey,
		Kind:            in.Kind,
		Reason:          string(in.Reason),
		Direction:       string(in.Direction),
		Note:            in.Note,
		Payload:         datatypes.JSON(payloadJSON(in)),
		Timestamp:       in.Timestamp,
		OutOfOrder:      outOfOrder,
		DaysLeftBefore:  txResult.DaysLeftBefore,
		DaysLeftAfter:   txResult.DaysLeftAfter,
		CycleMeanBefore: txResult.CycleMeanBefore,
		CycleMeanAfter:  txResult.CycleMeanAfter,
	}

	if err := s.persist(ctx, state, entry); err != nil {
		s.retryQueue.Enqueue(in)
		return domain.Outcome{Applied: false, Rejection: domain.RejectionStorageFailed}, shared.ErrStorageFailed.WithError(err)
	}

	var snapshot *domain.ForecastSnapshot
	if before != after || txResult.DaysLeftBefore != txResult.DaysLeftAfter {
		snapshot = &domain.ForecastSnapshot{
			ID:               newLogEntryID(),
			HouseholdID:      in.HouseholdID,
			ProductID:        in.ProductID,
			GeneratedAt:      now,
			ExpectedDaysLeft: state.DaysLeft(),
			PredictedState:   after,
			Confidence:       state.Confidence,
			TriggerEventID:   entry.ID,
		}
		if err := s.forecasts.Append(ctx, snapshot); err != nil {
			s.logger.Warn("failed to append forecast snapshot", zap.Error(err))
		}
	}

	s.logger.Info("predictor event applied",
		zap.String("household_id", in.HouseholdID),
		zap.String("product_id", in.ProductID),
		zap.String("kind", string(in.Kind)),
		zap.Float64("days_left_before", txResult.DaysLeftBefore),
		zap.Float64("days_left_after", txResult.DaysLeftAfter),
		zap.Bool("out_of_order", outOfOrder),
	)

	return domain.Outcome{
		Applied:    true,
		State:      state,
		LogEntry:   entry,
		Snapshot:   snapshot,
		OutOfOrder: outOfOrder,
	}, nil
}

func (s *predictorService) persist(ctx context.Context, state *domain.PredictorState, entry *domain.EventLogEntry) error {
	// The event log is authoritative; append it first so a state-write
	// failure still leaves a replayable trail — state is always
	// rebuildable by replaying the log.
	if err := s.eventLog.Append(ctx, entry); err != nil {
		return fmt.Errorf("append event log: %w", err)
	}
	if err := s.states.Upsert(ctx, state); err != nil {
		return fmt.Errorf("upsert state: %w", err)
	}
	return nil
}

// hashMatchesEntry reports whether in is a true re-delivery of entry,
// by comparing the full submitted payload rather than a subset of
// fields — a reused idempotency key with the same kind/reason/direction
// but a different DeltaDays/Ratio/DaysLeftTarget/Note must still be
// rejected as a conflict, not replayed.
func hashMatchesEntry(entry domain.EventLogEntry, in domain.EventInput) bool {
	sum := sha256.Sum256(entry.Payload)
	return hex.EncodeToString(sum[:]) == hashPayload(in)
}

// replayOutcome returns the prior outcome for a re-delivered idempotency
// key without re-applying the transition.
func (s *predictorService) replayOutcome(ctx context.Context, in domain.EventInput, entry domain.EventLogEntry) (domain.Outcome, error) {
	state, err := s.states.Get(ctx, in.HouseholdID, in.ProductID)
	if err != nil {
		return domain.Outcome{}, err
	}
	if state == nil {
		return domain.Outcome{}, errors.New("replayed idempotency key but state is missing")
	}
	return domain.Outcome{Applied: true, State: state, LogEntry: &entry, OutOfOrder: entry.OutOfOrder}, nil
}
