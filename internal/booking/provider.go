// Package booking exposes the narrow view of the booking subsystem the
// reminder pipeline needs: enough context to schedule and render a
// notification, nothing more. Bookings and workshops are owned by the
// platform's CRUD managers; this package only reads them.
package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// ErrBookingNotFound is returned when a booking id cannot be resolved.
var ErrBookingNotFound = errors.New("booking not found")

// Context is the denormalized booking data a reminder needs.
// Location may be empty: online workshops carry no venue.
type Context struct {
	BookingID      string
	WorkshopID     string
	RecipientEmail string
	RecipientName  string
	WorkshopName   string
	WorkshopStart  time.Time
	Location       string
}

// ContextProvider resolves a booking id into reminder context.
// Implementations must return ErrBookingNotFound (possibly wrapped)
// for unknown ids so callers can distinguish it from infrastructure
// failures.
type ContextProvider interface {
	GetBookingContext(ctx context.Context, bookingID string) (*Context, error)
}

// PGProvider resolves booking context from the platform's bookings and
// workshops tables.
type PGProvider struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPGProvider creates a provider backed by the shared Postgres pool.
func NewPGProvider(pool *pgxpool.Pool, logger *zap.Logger) *PGProvider {
	return &PGProvider{pool: pool, logger: logger}
}

// GetBookingContext looks up a confirmed booking joined with its workshop.
func (p *PGProvider) GetBookingContext(ctx context.Context, bookingID string) (*Context, error) {
	query := `
		SELECT b.id, b.workshop_id, b.attendee_email, b.attendee_name,
		       w.name, w.starts_at, COALESCE(w.location, '')
		FROM bookings b
		JOIN workshops w ON w.id = b.workshop_id
		WHERE b.id = $1
	`

	var bc Context
	err := p.pool.QueryRow(ctx, query, bookingID).Scan(
		&bc.BookingID,
		&bc.WorkshopID,
		&bc.RecipientEmail,
		&bc.RecipientName,
		&bc.WorkshopName,
		&bc.WorkshopStart,
		&bc.Location,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrBookingNotFound, bookingID)
	}

	if err != nil {
		p.logger.Error("failed to resolve booking context",
			zap.Error(err),
			zap.String("booking_id", bookingID),
		)
		return nil, fmt.Errorf("query booking context: %w", err)
	}

	return &bc, nil
}
