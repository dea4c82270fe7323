package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPredictorState_TableName(t *testing.T) {
	assert.Equal(t, "predictor_states", PredictorState{}.TableName())
}

func TestNewInitialState(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewInitialState("house-1", "product-1", "Dairy & Eggs", 5.0, 2.0, now)

	assert.Equal(t, "house-1", s.HouseholdID)
	assert.Equal(t, "product-1", s.ProductID)
	assert.Equal(t, "Dairy & Eggs", *s.CategoryID)
	assert.Equal(t, 5.0, s.CycleMeanDays)
	assert.Equal(t, 2.0, s.CycleMADDays)
	assert.Nil(t, s.CycleStartedAt)
	assert.Nil(t, s.LastPurchaseAt)
	assert.Equal(t, 5.0, s.DaysLeft())
	assert.Equal(t, 0, s.NCompletedCycles)
	assert.Equal(t, now, s.LastUpdateAt)
}

func TestNewInitialState_ClampsLowMean(t *testing.T) {
	now := time.Now()
	s := NewInitialState("h", "p", "", 0.1, 0.1, now)
	assert.Equal(t, MinCycleMeanDays, s.CycleMeanDays)
	assert.Equal(t, MinCycleMeanDays, s.DaysLeft())
	assert.Nil(t, s.CategoryID)
}

func TestSetDaysLeft_ClampsAtZero(t *testing.T) {
	s := &PredictorState{}
	s.SetDaysLeft(-5)
	assert.Equal(t, 0.0, s.DaysLeft())

	s.SetDaysLeft(3.5)
	assert.Equal(t, 3.5, s.DaysLeft())
}

func TestClampCycleMean(t *testing.T) {
	assert.Equal(t, MinCycleMeanDays, ClampCycleMean(0))
	assert.Equal(t, MinCycleMeanDays, ClampCycleMean(0.1))
	assert.Equal(t, 7.0, ClampCycleMean(7.0))
}

func TestAdoptCategory_NeverOverwrites(t *testing.T) {
	s := &PredictorState{}
	s.AdoptCategory("Dairy & Eggs")
	assert.Equal(t, "Dairy & Eggs", *s.CategoryID)

	s.AdoptCategory("Snacks")
	assert.Equal(t, "Dairy & Eggs", *s.CategoryID, "category must not be overwritten once set")
}

func TestAdoptCategory_IgnoresEmpty(t *testing.T) {
	s := &PredictorState{}
	s.AdoptCategory("")
	assert.Nil(t, s.CategoryID)
}

func TestIsCycleOpen(t *testing.T) {
	s := &PredictorState{}
	assert.False(t, s.IsCycleOpen())

	now := time.Now()
	s.CycleStartedAt = &now
	assert.True(t, s.IsCycleOpen())
}
