package domain

import (
	"time"

	"github.com/google/uuid"
)

// MinCycleMeanDays is the floor applied to cycle_mean_days on every
// write.
const MinCycleMeanDays = 0.5

// PredictorState is the per (household, product) record the Event
// Processor and Reconciler mutate. It references its owners only by
// opaque id, never by pointer, so replay and persistence stay free of
// cyclic references.
type PredictorState struct {
	ID          uuid.UUID `gorm:"type:uuid;default:uuidv7();primaryKey" json:"id"`
	HouseholdID string    `gorm:"type:varchar(64);not null;index:idx_predictor_state_pair,unique" json:"household_id"`
	ProductID   string    `gorm:"type:varchar(64);not null;index:idx_predictor_state_pair,unique" json:"product_id"`
	CategoryID  *string   `gorm:"type:varchar(64);column:category_id" json:"category_id,omitempty"`

	CycleMeanDays float64 `gorm:"type:decimal(10,4);not null;column:cycle_mean_days" json:"cycle_mean_days"`
	CycleMADDays  float64 `gorm:"type:decimal(10,4);not null;column:cycle_mad_days" json:"cycle_mad_days"`

	CycleStartedAt *time.Time `gorm:"column:cycle_started_at" json:"cycle_started_at,omitempty"`
	LastPurchaseAt *time.Time `gorm:"column:last_purchase_at" json:"last_purchase_at,omitempty"`

	LastPredDaysLeft float64 `gorm:"type:decimal(10,4);not null;column:last_pred_days_left" json:"last_pred_days_left"`

	NCompletedCycles int `gorm:"not null;default:0;column:n_completed_cycles" json:"n_completed_cycles"`
	NCensoredCycles  int `gorm:"not null;default:0;column:n_censored_cycles" json:"n_censored_cycles"`
	NStrongUpdates   int `gorm:"not null;default:0;column:n_strong_updates" json:"n_strong_updates"`
	NTotalUpdates    int `gorm:"not null;default:0;column:n_total_updates" json:"n_total_updates"`

	LastWeeklyTickAt *time.Time `gorm:"column:last_weekly_tick_at" json:"last_weekly_tick_at,omitempty"`

	LastUpdateAt time.Time `gorm:"not null;column:last_update_at" json:"last_update_at"`
	Confidence   float64   `gorm:"type:decimal(5,4);not null;column:confidence" json:"confidence"`

	CreatedAt time.Time `gorm:"autoCreateTime;column:created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime;column:updated_at" json:"updated_at"`
}

// TableName specifies the table name for PredictorState.
func (PredictorState) TableName() string {
	return "predictor_states"
}

// DaysLeft returns the current day's-left estimate, often called
// "days_left". It is not a stored column by itself: it is always kept
// equal to LastPredDaysLeft.
func (s *PredictorState) DaysLeft() float64 {
	return s.LastPredDaysLeft
}

// SetDaysLeft updates days_left, clamping to zero from below.
func (s *PredictorState) SetDaysLeft(v float64) {
	if v < 0 {
		v = 0
	}
	s.LastPredDaysLeft = v
}

// ClampCycleMean enforces the floor on cycle_mean_days (>= 0.5).
func ClampCycleMean(v float64) float64 {
	if v < MinCycleMeanDays {
		return MinCycleMeanDays
	}
	return v
}

// AdoptCategory assigns categoryID only if the state has none yet —
// never overwrite a known category from an incoming event.
func (s *PredictorState) AdoptCategory(categoryID string) {
	if categoryID == "" {
		return
	}
	if s.CategoryID == nil {
		s.CategoryID = &categoryID
	}
}

// IsCycleOpen reports whether a cycle is currently in progress.
func (s *PredictorState) IsCycleOpen() bool {
	return s.CycleStartedAt != nil
}

// NewInitialState initialises a Predictor State from a category prior.
// now is stamped as last_update_at; the category id is adopted if
// supplied. Confidence is left at zero for the caller to compute.
func NewInitialState(householdID, productID, categoryID string, priorMean, priorMAD float64, now time.Time) *PredictorState {
	s := &PredictorState{
		ID:               uuid.Must(uuid.NewV7()),
		HouseholdID:      householdID,
		ProductID:        productID,
		CycleMeanDays:    ClampCycleMean(priorMean),
		CycleMADDays:     priorMAD,
		CycleStartedAt:   nil,
		LastPurchaseAt:   nil,
		LastPredDaysLeft: ClampCycleMean(priorMean),
		NCompletedCycles: 0,
		NCensoredCycles:  0,
		NStrongUpdates:   0,
		NTotalUpdates:    0,
		LastUpdateAt:     now,
	}
	if categoryID != "" {
		s.CategoryID = &categoryID
	}
	return s
}
