package dto

import (
	"strings"

	"personalfinancedss/internal/module/predictor/clock"
	"personalfinancedss/internal/module/predictor/domain"
)

// SubmitEventRequest is the wire shape for one incoming stream event.
// Timestamp is a string, not time.Time, so the handler can apply the
// tolerant RFC3339 parsing clock.ParseTimestamp provides instead of
// Gin's strict time-binding.
type SubmitEventRequest struct {
	IdempotencyKey string  `json:"idempotency_key" binding:"required"`
	HouseholdID    string  `json:"household_id" binding:"required"`
	ProductID      string  `json:"product_id" binding:"required"`
	CategoryID     string  `json:"category_id"`
	Timestamp      string  `json:"timestamp" binding:"required"`
	Kind           string  `json:"kind" binding:"required"`
	Reason         string  `json:"reason"`
	Direction      string  `json:"direction"`
	DeltaDays      *float64 `json:"delta_days"`
	Ratio          *float64 `json:"ratio"`
	DaysLeftTarget *float64 `json:"days_left_target"`
	Note           string  `json:"note"`
}

// ToEventInput converts the wire request into the domain's EventInput,
// parsing Timestamp with the tolerant clock parser: RFC3339 with 1-9
// fractional digits, with timestamps that carry no explicit offset
// treated as UTC.
func (r SubmitEventRequest) ToEventInput() (domain.EventInput, error) {
	ts, err := clock.ParseTimestamp(r.Timestamp)
	if err != nil {
		return domain.EventInput{}, domain.ErrInvalidEvent
	}

	return domain.EventInput{
		IdempotencyKey: r.IdempotencyKey,
		HouseholdID:    r.HouseholdID,
		ProductID:      r.ProductID,
		CategoryID:     r.CategoryID,
		Timestamp:      ts,
		Kind:           domain.EventKind(strings.ToUpper(strings.TrimSpace(r.Kind))),
		Reason:         domain.TrashReason(strings.ToUpper(strings.TrimSpace(r.Reason))),
		Direction:      domain.FeedbackDirection(strings.ToUpper(strings.TrimSpace(r.Direction))),
		DeltaDays:      r.DeltaDays,
		Ratio:          r.Ratio,
		DaysLeftTarget: r.DaysLeftTarget,
		Note:           r.Note,
	}, nil
}

// FeedbackRequest is the UI-facing "will last more/less" shortcut that
// normalizes free-form labels before building a SubmitEventRequest.
type FeedbackRequest struct {
	IdempotencyKey string `json:"idempotency_key" binding:"required"`
	HouseholdID    string `json:"household_id" binding:"required"`
	ProductID      string `json:"product_id" binding:"required"`
	Timestamp      string `json:"timestamp" binding:"required"`
	Label          string `json:"label" binding:"required"`
	Note           string `json:"note"`
}

// ResetRequest reinitialises a pair's state from its category prior.
type ResetRequest struct {
	HouseholdID string `json:"household_id" binding:"required"`
	ProductID   string `json:"product_id" binding:"required"`
	CategoryID  string `json:"category_id"`
}

// ReconcileRequest optionally overrides the "now" the reconciler sweeps
// against, for operator-triggered out-of-band runs.
type ReconcileRequest struct {
	At string `json:"at"`
}
