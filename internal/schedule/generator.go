// Package schedule computes a booking's reminder schedule: the fixed
// set of time-anchored records written when a booking is confirmed.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/craftwise-app/craftwise/internal/booking"
	"github.com/craftwise-app/craftwise/internal/db"
)

// ErrAlreadyScheduled is returned when a booking already has a
// reminder schedule. The caller (the booking workflow) decides whether
// that is a conflict or a harmless repeat.
var ErrAlreadyScheduled = errors.New("reminders already scheduled for booking")

// Offsets holds the fixed distance of each reminder kind from the
// workshop start time. Negative offsets fire before the event, the
// post-event follow-up fires after.
var Offsets = map[string]time.Duration{
	db.KindTMinus48h: -48 * time.Hour,
	db.KindTMinus24h: -24 * time.Hour,
	db.KindTMinus2h:  -2 * time.Hour,
	db.KindTPlus2h:   2 * time.Hour,
}

// Store is the slice of the reminder repository the generator needs.
type Store interface {
	CreateReminders(ctx context.Context, reminders []*db.Reminder) error
}

// Generator builds and persists reminder schedules.
type Generator struct {
	store    Store
	provider booking.ContextProvider
	logger   *zap.Logger
}

// NewGenerator creates a schedule generator.
func NewGenerator(store Store, provider booking.ContextProvider, logger *zap.Logger) *Generator {
	return &Generator{
		store:    store,
		provider: provider,
		logger:   logger,
	}
}

// Generate resolves the booking, computes one pending reminder per
// kind anchored to the workshop start time, and persists the set.
// Returns booking.ErrBookingNotFound if the booking cannot be resolved
// and ErrAlreadyScheduled if a schedule already exists; it never
// creates a duplicate (booking_id, kind) pair either way.
func (g *Generator) Generate(ctx context.Context, bookingID string) ([]*db.Reminder, error) {
	bc, err := g.provider.GetBookingContext(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("resolve booking %s: %w", bookingID, err)
	}

	reminders := make([]*db.Reminder, 0, len(db.Kinds))
	for _, kind := range db.Kinds {
		reminders = append(reminders, &db.Reminder{
			ID:             uuid.New(),
			BookingID:      bc.BookingID,
			WorkshopID:     bc.WorkshopID,
			RecipientEmail: bc.RecipientEmail,
			RecipientName:  bc.RecipientName,
			EventTime:      bc.WorkshopStart,
			Kind:           kind,
			ScheduledFor:   bc.WorkshopStart.Add(Offsets[kind]),
			State:          db.StatePending,
			Attempts:       0,
		})
	}

	if err := g.store.CreateReminders(ctx, reminders); err != nil {
		if errors.Is(err, db.ErrDuplicateSchedule) {
			return nil, fmt.Errorf("%w: %s", ErrAlreadyScheduled, bookingID)
		}
		return nil, fmt.Errorf("persist schedule: %w", err)
	}

	g.logger.Info("reminder schedule generated",
		zap.String("booking_id", bookingID),
		zap.String("workshop_id", bc.WorkshopID),
		zap.Time("workshop_start", bc.WorkshopStart),
		zap.Int("reminders", len(reminders)),
	)

	return reminders, nil
}
