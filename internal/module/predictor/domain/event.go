package domain

import (
	"time"

	"gorm.io/datatypes"
)

// EventInput is the normalised, already-validated event payload the
// Event Processor transitions on. DTO-layer wire payloads are parsed
// and converted into this shape before reaching the processor; the
// processor itself never looks at JSON.
type EventInput struct {
	IdempotencyKey string
	HouseholdID    string
	ProductID      string
	CategoryID     string // optional; empty means "not supplied"
	Timestamp      time.Time
	Kind           EventKind

	Reason    TrashReason
	Direction FeedbackDirection

	DeltaDays *float64
	Ratio     *float64

	DaysLeftTarget *float64

	Note string
}

// Outcome describes what happened to a submitted event: either it was
// applied (with the resulting snapshot) or rejected (with a reason).
type Outcome struct {
	Applied    bool
	Rejection  RejectionKind
	State      *PredictorState
	LogEntry   *EventLogEntry
	Snapshot   *ForecastSnapshot
	OutOfOrder bool
}

// EventLogEntry is one append-only audit record. The concatenation of
// entries for a (household, product), replayed from the empty state,
// must reproduce the current Predictor State.
type EventLogEntry struct {
	ID              string         `gorm:"type:varchar(64);primaryKey" json:"id"`
	HouseholdID     string         `gorm:"type:varchar(64);not null;index:idx_event_log_pair" json:"household_id"`
	ProductID       string         `gorm:"type:varchar(64);not null;index:idx_event_log_pair" json:"product_id"`
	IdempotencyKey  string         `gorm:"type:varchar(128);not null;index" json:"idempotency_key"`
	Kind            EventKind      `gorm:"type:varchar(32);not null" json:"kind"`
	Reason          string         `gorm:"type:varchar(32)" json:"reason,omitempty"`
	Direction       string         `gorm:"type:varchar(16)" json:"direction,omitempty"`
	Note            string         `gorm:"type:text" json:"note,omitempty"`
	// Payload is the raw submitted event, captured verbatim so replay
	// never depends on the audit columns above staying in sync with
	// every field EventInput happens to carry.
	Payload         datatypes.JSON `gorm:"type:jsonb;column:payload" json:"payload,omitempty"`
	Timestamp       time.Time      `gorm:"not null;index:idx_event_log_pair" json:"timestamp"`
	OutOfOrder      bool           `gorm:"not null;default:false" json:"out_of_order"`
	DaysLeftBefore  float64        `gorm:"type:decimal(10,4);not null" json:"days_left_before"`
	DaysLeftAfter   float64        `gorm:"type:decimal(10,4);not null" json:"days_left_after"`
	CycleMeanBefore float64        `gorm:"type:decimal(10,4);not null" json:"cycle_mean_before"`
	CycleMeanAfter  float64        `gorm:"type:decimal(10,4);not null" json:"cycle_mean_after"`
	CreatedAt       time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

// TableName specifies the table name for EventLogEntry.
func (EventLogEntry) TableName() string {
	return "predictor_event_log"
}

// ForecastSnapshot is a point-in-time read of a Predictor State's
// forecast, appended whenever days_left or state changes.
type ForecastSnapshot struct {
	ID               string     `gorm:"type:varchar(64);primaryKey" json:"id"`
	HouseholdID      string     `gorm:"type:varchar(64);not null;index:idx_forecast_pair" json:"household_id"`
	ProductID        string     `gorm:"type:varchar(64);not null;index:idx_forecast_pair" json:"product_id"`
	GeneratedAt      time.Time  `gorm:"not null;index:idx_forecast_pair" json:"generated_at"`
	ExpectedDaysLeft float64    `gorm:"type:decimal(10,4);not null" json:"expected_days_left"`
	PredictedState   StockState `gorm:"type:varchar(16);not null" json:"predicted_state"`
	Confidence       float64    `gorm:"type:decimal(5,4);not null" json:"confidence"`
	TriggerEventID   string     `gorm:"type:varchar(64)" json:"trigger_event_id,omitempty"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

// TableName specifies the table name for ForecastSnapshot.
func (ForecastSnapshot) TableName() string {
	return "predictor_forecast_log"
}
