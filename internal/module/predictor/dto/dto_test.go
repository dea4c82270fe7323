package dto

import (
	"testing"
	"time"

	"personalfinancedss/internal/module/predictor/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitEventRequest_ToEventInput(t *testing.T) {
	req := SubmitEventRequest{
		IdempotencyKey: "k1",
		HouseholdID:    "h1",
		ProductID:      "p1",
		CategoryID:     "Dairy & Eggs",
		Timestamp:      "2026-01-01T00:00:00Z",
		Kind:           "purchase",
	}

	in, err := req.ToEventInput()
	require.NoError(t, err)
	assert.Equal(t, domain.EventPurchase, in.Kind)
	assert.Equal(t, "h1", in.HouseholdID)
	assert.Equal(t, 2026, in.Timestamp.Year())
}

func TestSubmitEventRequest_ToEventInput_InvalidTimestamp(t *testing.T) {
	req := SubmitEventRequest{
		IdempotencyKey: "k1",
		HouseholdID:    "h1",
		ProductID:      "p1",
		Timestamp:      "not-a-timestamp",
		Kind:           "purchase",
	}

	_, err := req.ToEventInput()
	assert.ErrorIs(t, err, domain.ErrInvalidEvent)
}

func TestNewStateResponse(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	state := domain.NewInitialState("h1", "p1", "Dairy & Eggs", 5.0, 2.0, now)

	resp := NewStateResponse(state)
	assert.Equal(t, "h1", resp.HouseholdID)
	assert.Equal(t, 5.0, resp.DaysLeft)
	assert.Equal(t, "FULL", resp.StockState)
}
