package dto

import (
	"time"

	"personalfinancedss/internal/module/predictor/domain"
	"personalfinancedss/internal/module/predictor/service"
)

// StateResponse mirrors a Predictor State for API consumers.
type StateResponse struct {
	HouseholdID      string     `json:"household_id"`
	ProductID        string     `json:"product_id"`
	CategoryID       *string    `json:"category_id,omitempty"`
	DaysLeft         float64    `json:"days_left"`
	StockState       string     `json:"stock_state"`
	CycleMeanDays    float64    `json:"cycle_mean_days"`
	CycleMADDays     float64    `json:"cycle_mad_days"`
	Confidence       float64    `json:"confidence"`
	NCompletedCycles int        `json:"n_completed_cycles"`
	NCensoredCycles  int        `json:"n_censored_cycles"`
	CycleStartedAt   *time.Time `json:"cycle_started_at,omitempty"`
	LastUpdateAt     time.Time  `json:"last_update_at"`
}

// NewStateResponse converts a domain.PredictorState into its wire form.
func NewStateResponse(state *domain.PredictorState) StateResponse {
	return StateResponse{
		HouseholdID:      state.HouseholdID,
		ProductID:        state.ProductID,
		CategoryID:       state.CategoryID,
		DaysLeft:         state.DaysLeft(),
		StockState:       string(domain.Classify(state.DaysLeft(), state.CycleMeanDays)),
		CycleMeanDays:    state.CycleMeanDays,
		CycleMADDays:     state.CycleMADDays,
		Confidence:       state.Confidence,
		NCompletedCycles: state.NCompletedCycles,
		NCensoredCycles:  state.NCensoredCycles,
		CycleStartedAt:   state.CycleStartedAt,
		LastUpdateAt:     state.LastUpdateAt,
	}
}

// OutcomeResponse reports the result of submitting one event.
type OutcomeResponse struct {
	Applied    bool           `json:"applied"`
	Rejection  string         `json:"rejection,omitempty"`
	OutOfOrder bool           `json:"out_of_order"`
	State      *StateResponse `json:"state,omitempty"`
}

// NewOutcomeResponse converts a domain.Outcome into its wire form.
func NewOutcomeResponse(outcome domain.Outcome) OutcomeResponse {
	resp := OutcomeResponse{
		Applied:    outcome.Applied,
		Rejection:  string(outcome.Rejection),
		OutOfOrder: outcome.OutOfOrder,
	}
	if outcome.State != nil {
		s := NewStateResponse(outcome.State)
		resp.State = &s
	}
	return resp
}

// ForecastResponse is a read-only forecast snapshot.
type ForecastResponse struct {
	HouseholdID      string    `json:"household_id"`
	ProductID        string    `json:"product_id"`
	GeneratedAt      time.Time `json:"generated_at"`
	ExpectedDaysLeft float64   `json:"expected_days_left"`
	PredictedState   string    `json:"predicted_state"`
	Confidence       float64   `json:"confidence"`
}

// NewForecastResponse converts a domain.ForecastSnapshot into its wire form.
func NewForecastResponse(snapshot *domain.ForecastSnapshot) ForecastResponse {
	return ForecastResponse{
		HouseholdID:      snapshot.HouseholdID,
		ProductID:        snapshot.ProductID,
		GeneratedAt:      snapshot.GeneratedAt,
		ExpectedDaysLeft: snapshot.ExpectedDaysLeft,
		PredictedState:   string(snapshot.PredictedState),
		Confidence:       snapshot.Confidence,
	}
}

// EventLogEntryResponse is one row of the audit trail.
type EventLogEntryResponse struct {
	ID              string    `json:"id"`
	Kind            string    `json:"kind"`
	Reason          string    `json:"reason,omitempty"`
	Direction       string    `json:"direction,omitempty"`
	Note            string    `json:"note,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
	OutOfOrder      bool      `json:"out_of_order"`
	DaysLeftBefore  float64   `json:"days_left_before"`
	DaysLeftAfter   float64   `json:"days_left_after"`
	CycleMeanBefore float64   `json:"cycle_mean_before"`
	CycleMeanAfter  float64   `json:"cycle_mean_after"`
}

// NewEventLogEntryResponse converts a domain.EventLogEntry into its wire form.
func NewEventLogEntryResponse(entry domain.EventLogEntry) EventLogEntryResponse {
	return EventLogEntryResponse{
		ID:              entry.ID,
		Kind:            string(entry.Kind),
		Reason:          entry.Reason,
		Direction:       entry.Direction,
		Note:            entry.Note,
		Timestamp:       entry.Timestamp,
		OutOfOrder:      entry.OutOfOrder,
		DaysLeftBefore:  entry.DaysLeftBefore,
		DaysLeftAfter:   entry.DaysLeftAfter,
		CycleMeanBefore: entry.CycleMeanBefore,
		CycleMeanAfter:  entry.CycleMeanAfter,
	}
}

// NewEventLogResponses converts a slice of log entries in one pass.
func NewEventLogResponses(entries []domain.EventLogEntry) []EventLogEntryResponse {
	out := make([]EventLogEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, NewEventLogEntryResponse(e))
	}
	return out
}

// ReconciliationReportResponse reports the result of a weekly-tick sweep.
type ReconciliationReportResponse struct {
	Considered int      `json:"considered"`
	Ticked     int      `json:"ticked"`
	Skipped    int      `json:"skipped"`
	Errored    int      `json:"errored"`
	Errors     []string `json:"errors,omitempty"`
}

// NewReconciliationReportResponse converts a service.ReconciliationReport.
func NewReconciliationReportResponse(report service.ReconciliationReport) ReconciliationReportResponse {
	return ReconciliationReportResponse{
		Considered: report.Considered,
		Ticked:     report.Ticked,
		Skipped:    report.Skipped,
		Errored:    report.Errored,
		Errors:     report.Errors,
	}
}
