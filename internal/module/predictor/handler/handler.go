// Package handler exposes the Consumption Cycle Predictor over HTTP: a
// thin Gin layer that binds DTOs, calls the service, and maps domain
// errors to shared.AppError responses.
package handler

import (
	"errors"
	"net/http"
	"time"

	"personalfinancedss/internal/middleware"
	"personalfinancedss/internal/module/predictor/clock"
	"personalfinancedss/internal/module/predictor/domain"
	"personalfinancedss/internal/module/predictor/dto"
	"personalfinancedss/internal/module/predictor/service"
	"personalfinancedss/internal/shared"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.uber.org/zap"
)

// pairEventsPerSecond/pairEventBurst bound how fast a single
// (household, product) pair can submit events, independent of the
// global per-IP limiter in internal/middleware — a misbehaving
// ingestion worker hammering one pair should not starve the singleflight
// lock that pair shares with the Reconciler.
const (
	pairEventsPerSecond = 5
	pairEventBurst      = 10
)

// pairKeyPeek extracts just enough of the body to key the per-pair rate
// limiter without consuming the request body the real handler needs;
// gin's ShouldBindBodyWith caches the parsed bytes for the later bind.
type pairKeyPeek struct {
	HouseholdID string `json:"household_id"`
	ProductID   string `json:"product_id"`
}

func pairRateLimitKey(c *gin.Context) string {
	var peek pairKeyPeek
	if err := c.ShouldBindBodyWith(&peek, binding.JSON); err != nil {
		return c.ClientIP()
	}
	if peek.HouseholdID == "" || peek.ProductID == "" {
		return c.ClientIP()
	}
	return peek.HouseholdID + ":" + peek.ProductID
}

// Handler handles predictor-related HTTP requests.
type Handler struct {
	service service.Service
	logger  *zap.Logger
}

// NewHandler creates a new predictor handler.
func NewHandler(service service.Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes registers predictor routes. This group carries no auth
// middleware: household/product scoping is supplied by the caller (an
// ingestion worker or the household's own client) in the request body
// rather than derived from a bearer token — household_id/product_id are
// opaque caller-supplied identifiers.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	pairLimiter := middleware.PairRateLimiter(pairEventsPerSecond, pairEventBurst, pairRateLimitKey)

	predictor := router.Group("/api/v1/predictor")
	{
		predictor.POST("/events", pairLimiter, h.SubmitEvent)
		predictor.POST("/feedback", pairLimiter, h.SubmitFeedback)
		predictor.POST("/reset", h.Reset)
		predictor.GET("/forecast", h.Forecast)
		predictor.GET("/events", h.ListEvents)
		predictor.POST("/reconcile", h.RunWeeklyTick)
	}
}

// SubmitEvent godoc
// @Summary Submit a stock-level event
// @Description Apply one typed event to a household/product's Predictor State
// @Tags predictor
// @Accept json
// @Produce json
// @Param event body dto.SubmitEventRequest true "Event payload"
// @Success 200 {object} dto.OutcomeResponse
// @Failure 400 {object} shared.ErrorResponse
// @Failure 409 {object} shared.ErrorResponse
// @Router /api/v1/predictor/events [post]
func (h *Handler) SubmitEvent(c *gin.Context) {
	var req dto.SubmitEventRequest
	if err := c.ShouldBindBodyWith(&req, binding.JSON); err != nil {
		shared.RespondWithError(c, http.StatusBadRequest, "invalid request data: "+err.Error())
		return
	}

	in, err := req.ToEventInput()
	if err != nil {
		shared.RespondWithAppError(c, shared.ErrInvalidEvent.WithError(err))
		return
	}

	outcome, err := h.service.SubmitEvent(c.Request.Context(), in)
	if err != nil {
		h.logger.Warn("predictor event rejected",
			zap.String("household_id", in.HouseholdID),
			zap.String("product_id", in.ProductID),
			zap.Error(err),
		)
		shared.RespondWithAppError(c, predictorErrorToAppError(err))
		return
	}

	shared.RespondWithSuccess(c, http.StatusOK, "event applied", dto.NewOutcomeResponse(outcome))
}

// SubmitFeedback godoc
// @Summary Submit "will last more/less" feedback
// @Description Normalises a UI feedback label into an ADJUST_FEEDBACK event
// @Tags predictor
// @Accept json
// @Produce json
// @Param feedback body dto.FeedbackRequest true "Feedback payload"
// @Success 200 {object} dto.OutcomeResponse
// @Failure 400 {object} shared.ErrorResponse
// @Router /api/v1/predictor/feedback [post]
func (h *Handler) SubmitFeedback(c *gin.Context) {
	var req dto.FeedbackRequest
	if err := c.ShouldBindBodyWith(&req, binding.JSON); err != nil {
		shared.RespondWithError(c, http.StatusBadRequest, "invalid request data: "+err.Error())
		return
	}

	direction, err := service.NormalizeFeedbackDirection(service.FeedbackLabel(req.Label))
	if err != nil {
		shared.RespondWithAppError(c, shared.ErrInvalidEvent.WithError(err).WithDetails("label", req.Label))
		return
	}

	ts, err := clock.ParseTimestamp(req.Timestamp)
	if err != nil {
		shared.RespondWithAppError(c, shared.ErrInvalidEvent.WithError(err))
		return
	}

	in := domain.EventInput{
		IdempotencyKey: req.IdempotencyKey,
		HouseholdID:    req.HouseholdID,
		ProductID:      req.ProductID,
		Timestamp:      ts,
		Kind:           domain.EventAdjustFeedback,
		Direction:      direction,
		Note:           req.Note,
	}

	outcome, err := h.service.SubmitEvent(c.Request.Context(), in)
	if err != nil {
		shared.RespondWithAppError(c, predictorErrorToAppError(err))
		return
	}

	shared.RespondWithSuccess(c, http.StatusOK, "feedback applied", dto.NewOutcomeResponse(outcome))
}

// Reset godoc
// @Summary Reset a pair's Predictor State
// @Description Reinitialises state from the product's category prior
// @Tags predictor
// @Accept json
// @Produce json
// @Param reset body dto.ResetRequest true "Reset payload"
// @Success 200 {object} dto.StateResponse
// @Failure 400 {object} shared.ErrorResponse
// @Router /api/v1/predictor/reset [post]
func (h *Handler) Reset(c *gin.Context) {
	var req dto.ResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		shared.RespondWithError(c, http.StatusBadRequest, "invalid request data: "+err.Error())
		return
	}

	state, err := h.service.Reset(c.Request.Context(), req.HouseholdID, req.ProductID, req.CategoryID)
	if err != nil {
		shared.RespondWithAppError(c, predictorErrorToAppError(err))
		return
	}

	shared.RespondWithSuccess(c, http.StatusOK, "state reset", dto.NewStateResponse(state))
}

// Forecast godoc
// @Summary Read the current forecast for a household/product pair
// @Tags predictor
// @Produce json
// @Param household_id query string true "Household ID"
// @Param product_id query string true "Product ID"
// @Param at query string false "RFC3339 instant to forecast at (defaults to now)"
// @Success 200 {object} dto.ForecastResponse
// @Failure 404 {object} shared.ErrorResponse
// @Router /api/v1/predictor/forecast [get]
func (h *Handler) Forecast(c *gin.Context) {
	householdID := c.Query("household_id")
	productID := c.Query("product_id")
	if householdID == "" || productID == "" {
		shared.RespondWithError(c, http.StatusBadRequest, "household_id and product_id are required")
		return
	}

	var atTime *time.Time
	if at := c.Query("at"); at != "" {
		parsed, err := clock.ParseTimestamp(at)
		if err != nil {
			shared.RespondWithError(c, http.StatusBadRequest, "invalid 'at' timestamp")
			return
		}
		atTime = &parsed
	}

	snapshot, err := h.service.Forecast(c.Request.Context(), householdID, productID, atTime)
	if err != nil {
		shared.RespondWithAppError(c, predictorErrorToAppError(err))
		return
	}

	shared.RespondWithSuccess(c, http.StatusOK, "forecast", dto.NewForecastResponse(snapshot))
}

// ListEvents godoc
// @Summary Read the append-only event log for a household/product pair
// @Tags predictor
// @Produce json
// @Param household_id query string true "Household ID"
// @Param product_id query string true "Product ID"
// @Success 200 {array} dto.EventLogEntryResponse
// @Router /api/v1/predictor/events [get]
func (h *Handler) ListEvents(c *gin.Context) {
	householdID := c.Query("household_id")
	productID := c.Query("product_id")
	if householdID == "" || productID == "" {
		shared.RespondWithError(c, http.StatusBadRequest, "household_id and product_id are required")
		return
	}

	entries, err := h.service.ListEvents(c.Request.Context(), householdID, productID)
	if err != nil {
		shared.RespondWithAppError(c, predictorErrorToAppError(err))
		return
	}

	shared.RespondWithSuccess(c, http.StatusOK, "event log", dto.NewEventLogResponses(entries))
}

// RunWeeklyTick godoc
// @Summary Trigger an out-of-band weekly anniversary reconciliation sweep
// @Tags predictor
// @Accept json
// @Produce json
// @Param body body dto.ReconcileRequest false "Optional 'at' override"
// @Success 200 {object} dto.ReconciliationReportResponse
// @Router /api/v1/predictor/reconcile [post]
func (h *Handler) RunWeeklyTick(c *gin.Context) {
	var req dto.ReconcileRequest
	_ = c.ShouldBindJSON(&req)

	now := time.Now().UTC()
	if req.At != "" {
		parsed, err := clock.ParseTimestamp(req.At)
		if err != nil {
			shared.RespondWithError(c, http.StatusBadRequest, "invalid 'at' timestamp")
			return
		}
		now = parsed
	}

	report, err := h.service.RunWeeklyTick(c.Request.Context(), now)
	if err != nil {
		shared.RespondWithAppError(c, predictorErrorToAppError(err))
		return
	}

	shared.RespondWithSuccess(c, http.StatusOK, "reconciliation complete", dto.NewReconciliationReportResponse(report))
}

// predictorErrorToAppError maps domain sentinel errors to the matching
// shared.AppError, falling back to ToAppError for anything already an
// AppError (e.g. the idempotency CONFLICT raised in service/processor.go).
func predictorErrorToAppError(err error) *shared.AppError {
	switch {
	case errors.Is(err, domain.ErrStaleEvent):
		return shared.ErrStaleEvent.WithError(err)
	case errors.Is(err, domain.ErrUnknownEntity):
		return shared.ErrUnknownEntity.WithError(err)
	case domain.IsInvalidEvent(err):
		return shared.ErrInvalidEvent.WithError(err)
	case errors.Is(err, domain.ErrIdempotencyConflict):
		return shared.ErrConflict.WithError(err)
	case errors.Is(err, domain.ErrStorageFailure):
		return shared.ErrStorageFailed.WithError(err)
	default:
		return shared.ToAppError(err)
	}
}
