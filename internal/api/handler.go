package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/craftwise-app/craftwise/internal/booking"
	"github.com/craftwise-app/craftwise/internal/db"
	"github.com/craftwise-app/craftwise/internal/metrics"
	"github.com/craftwise-app/craftwise/internal/redis"
	"github.com/craftwise-app/craftwise/internal/schedule"
)

// Scheduler creates reminder schedules for confirmed bookings.
type Scheduler interface {
	Generate(ctx context.Context, bookingID string) ([]*db.Reminder, error)
}

// Pipeline is the processing surface exposed to operators.
type Pipeline interface {
	ProcessDueBatch(ctx context.Context, now time.Time) (int, error)
	CancelForBooking(ctx context.Context, bookingID string) error
	History(ctx context.Context, bookingID string) ([]*db.Reminder, error)
}

// ErrorResponse represents an error in problem+json format
type ErrorResponse struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// ScheduleResponse is returned after creating a reminder schedule.
type ScheduleResponse struct {
	BookingID string         `json:"booking_id"`
	Reminders []*db.Reminder `json:"reminders"`
}

// SweepResponse is returned by the manual sweep endpoint.
type SweepResponse struct {
	Processed int       `json:"processed"`
	AsOf      time.Time `json:"as_of"`
}

// Handler holds dependencies for API handlers
type Handler struct {
	logger      *zap.Logger
	scheduler   Scheduler
	pipeline    Pipeline
	idempotency *redis.IdempotencyService // nil if Redis not configured
}

// NewHandler creates a new API handler
func NewHandler(logger *zap.Logger, scheduler Scheduler, pipeline Pipeline) *Handler {
	return &Handler{
		logger:    logger,
		scheduler: scheduler,
		pipeline:  pipeline,
	}
}

// NewHandlerWithIdempotency creates a handler with Idempotency-Key support
// on schedule creation.
func NewHandlerWithIdempotency(logger *zap.Logger, scheduler Scheduler, pipeline Pipeline, idempotency *redis.IdempotencyService) *Handler {
	return &Handler{
		logger:      logger,
		scheduler:   scheduler,
		pipeline:    pipeline,
		idempotency: idempotency,
	}
}

// ScheduleReminders handles POST /v1/bookings/{id}/reminders.
// Called by the booking workflow once a booking is confirmed.
// Supports deduplication via the Idempotency-Key header; the store's
// (booking_id, kind) constraint is the hard guarantee either way.
func (h *Handler) ScheduleReminders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	bookingID := chi.URLParam(r, "id")
	if bookingID == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Missing booking id", "")
		return
	}

	idempotencyKey := r.Header.Get("Idempotency-Key")
	if idempotencyKey != "" && h.idempotency != nil {
		cached, err := h.idempotency.CheckOrReserve(ctx, bookingID, idempotencyKey)
		if err != nil {
			if errors.Is(err, redis.ErrDuplicateRequest) {
				h.writeError(w, http.StatusConflict, "duplicate_request",
					"Request is already being processed",
					"Another request with this idempotency key is in progress")
				return
			}
			h.logger.Warn("idempotency check failed, proceeding", zap.Error(err))
		}
		if cached != nil {
			w.Header().Set("X-Idempotency-Replay", "true")
			h.replayCached(ctx, w, cached)
			return
		}
	}

	reminders, err := h.scheduler.Generate(ctx, bookingID)
	if err != nil {
		switch {
		case errors.Is(err, booking.ErrBookingNotFound):
			h.writeError(w, http.StatusNotFound, "booking_not_found",
				"Booking not found", "No booking exists with id "+bookingID)
		case errors.Is(err, schedule.ErrAlreadyScheduled):
			h.writeError(w, http.StatusConflict, "already_scheduled",
				"Reminders already scheduled", "Booking "+bookingID+" already has a reminder schedule")
		default:
			h.logger.Error("failed to generate schedule",
				zap.Error(err),
				zap.String("booking_id", bookingID),
			)
			h.writeError(w, http.StatusInternalServerError, "internal_error",
				"Failed to schedule reminders", "")
		}
		return
	}

	for _, rem := range reminders {
		metrics.RecordReminderGenerated(rem.Kind)
	}

	if idempotencyKey != "" && h.idempotency != nil {
		result := &redis.IdempotencyResult{
			BookingID:  bookingID,
			StatusCode: http.StatusCreated,
		}
		if err := h.idempotency.Store(ctx, bookingID, idempotencyKey, result, redis.IdempotencyTTL); err != nil {
			h.logger.Warn("failed to store idempotency result", zap.Error(err))
		}
	}

	h.writeJSON(w, http.StatusCreated, ScheduleResponse{
		BookingID: bookingID,
		Reminders: reminders,
	})
}

// replayCached re-reads the schedule for a replayed idempotent request.
func (h *Handler) replayCached(ctx context.Context, w http.ResponseWriter, cached *redis.IdempotencyResult) {
	reminders, err := h.pipeline.History(ctx, cached.BookingID)
	if err != nil {
		h.logger.Error("failed to load schedule for idempotent replay", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "internal_error",
			"Failed to load reminder schedule", "")
		return
	}

	h.writeJSON(w, cached.StatusCode, ScheduleResponse{
		BookingID: cached.BookingID,
		Reminders: reminders,
	})
}

// GetReminderHistory handles GET /v1/bookings/{id}/reminders.
// Returns the full audit trail, terminal records included.
func (h *Handler) GetReminderHistory(w http.ResponseWriter, r *http.Request) {
	bookingID := chi.URLParam(r, "id")
	if bookingID == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Missing booking id", "")
		return
	}

	reminders, err := h.pipeline.History(r.Context(), bookingID)
	if err != nil {
		h.logger.Error("failed to load reminder history",
			zap.Error(err),
			zap.String("booking_id", bookingID),
		)
		h.writeError(w, http.StatusInternalServerError, "internal_error",
			"Failed to load reminder history", "")
		return
	}

	if reminders == nil {
		reminders = []*db.Reminder{}
	}

	h.writeJSON(w, http.StatusOK, ScheduleResponse{
		BookingID: bookingID,
		Reminders: reminders,
	})
}

// CancelReminders handles POST /v1/bookings/{id}/reminders/cancel.
// Called when a booking is withdrawn. Idempotent.
func (h *Handler) CancelReminders(w http.ResponseWriter, r *http.Request) {
	bookingID := chi.URLParam(r, "id")
	if bookingID == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Missing booking id", "")
		return
	}

	if err := h.pipeline.CancelForBooking(r.Context(), bookingID); err != nil {
		h.logger.Error("failed to cancel reminders",
			zap.Error(err),
			zap.String("booking_id", bookingID),
		)
		h.writeError(w, http.StatusInternalServerError, "internal_error",
			"Failed to cancel reminders", "")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Sweep handles POST /v1/reminders/sweep: one manual due-reminder
// sweep, same unit of work the background worker runs per tick.
// Accepts an optional as_of query parameter (RFC 3339) for operators
// draining a backlog.
func (h *Handler) Sweep(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	if asOf := r.URL.Query().Get("as_of"); asOf != "" {
		parsed, err := time.Parse(time.RFC3339, asOf)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid_request",
				"Invalid as_of", "as_of must be an RFC 3339 timestamp")
			return
		}
		now = parsed
	}

	processed, err := h.pipeline.ProcessDueBatch(r.Context(), now)
	if err != nil {
		h.logger.Error("manual sweep failed", zap.Error(err))
		h.writeError(w, http.StatusServiceUnavailable, "store_unavailable",
			"Sweep failed", "The reminder store is unavailable; no reminders were skipped")
		return
	}

	h.writeJSON(w, http.StatusOK, SweepResponse{
		Processed: processed,
		AsOf:      now,
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, errType, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Type:   errType,
		Title:  title,
		Status: status,
		Detail: detail,
	})
}
