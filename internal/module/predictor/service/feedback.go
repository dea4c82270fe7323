package service

import (
	"strings"

	"personalfinancedss/internal/module/predictor/domain"
)

// FeedbackLabel is a UI-layer label for "lasts more / lasts less"
// feedback. The UI exposes several equivalent entry points; this type
// lets callers pass whichever one they collected without knowing about
// the canonical direction enum.
type FeedbackLabel string

// NormalizeFeedbackDirection maps a UI-layer feedback label into the
// canonical FeedbackDirection, rejecting anything it doesn't recognise.
// This is the whole of the Feedback Applier's value: it exists because
// "Will Last More", "arrow-up", and "MORE" all mean the same transition.
func NormalizeFeedbackDirection(label FeedbackLabel) (domain.FeedbackDirection, error) {
	switch strings.ToUpper(strings.TrimSpace(string(label))) {
	case "MORE", "WILL LAST MORE", "ARROW-UP", "ARROW_UP", "UP":
		return domain.FeedbackMore, nil
	case "LESS", "WILL LAST LESS", "ARROW-DOWN", "ARROW_DOWN", "DOWN":
		return domain.FeedbackLess, nil
	default:
		return "", domain.ErrUnknownDirection
	}
}
