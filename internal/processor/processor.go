// Package processor drives due reminders to a terminal state: resolve
// booking context, render the template, dispatch through the email
// channel, record the outcome. It also handles bulk cancellation when
// a booking is withdrawn.
package processor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/craftwise-app/craftwise/internal/booking"
	"github.com/craftwise-app/craftwise/internal/db"
	"github.com/craftwise-app/craftwise/internal/mailer"
	"github.com/craftwise-app/craftwise/internal/metrics"
	"github.com/craftwise-app/craftwise/internal/template"
)

// Store is the slice of the reminder repository the processor needs.
// Terminal transitions are compare-and-set on state: the claimed
// return reports whether this caller won the transition out of
// pending.
type Store interface {
	GetDueReminders(ctx context.Context, now time.Time, limit int) ([]*db.Reminder, error)
	MarkSent(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	MarkFailed(ctx context.Context, id uuid.UUID, at time.Time, lastError string) (bool, error)
	CancelPendingByBooking(ctx context.Context, bookingID string) (int64, error)
	ListByBooking(ctx context.Context, bookingID string) ([]*db.Reminder, error)
}

// Config tunes batch processing.
type Config struct {
	BatchSize       int           // max due reminders per sweep
	MaxParallel     int           // concurrent bookings per sweep
	DispatchTimeout time.Duration // upper bound on one email dispatch
}

// Processor is the reminder state machine. Per-record failures are
// converted into failed transitions; only store-level failures escape
// ProcessDueBatch.
type Processor struct {
	store    Store
	provider booking.ContextProvider
	catalog  *template.Catalog
	sender   mailer.Sender
	config   Config
	logger   *zap.Logger
}

// New creates a processor.
func New(store Store, provider booking.ContextProvider, catalog *template.Catalog, sender mailer.Sender, cfg Config, logger *zap.Logger) *Processor {
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 100
	}
	if cfg.MaxParallel == 0 {
		cfg.MaxParallel = 4
	}
	if cfg.DispatchTimeout == 0 {
		cfg.DispatchTimeout = 15 * time.Second
	}

	return &Processor{
		store:    store,
		provider: provider,
		catalog:  catalog,
		sender:   sender,
		config:   cfg,
		logger:   logger,
	}
}

// ProcessDueBatch selects every pending reminder due at now and drives
// each to a terminal state. Reminders for different bookings run in
// parallel, bounded by MaxParallel; reminders for the same booking run
// in order. Returns the number of reminders attempted. Store-level
// failures abort the sweep and propagate: silently skipping reminders
// would lose them.
func (p *Processor) ProcessDueBatch(ctx context.Context, now time.Time) (int, error) {
	start := time.Now()

	due, err := p.store.GetDueReminders(ctx, now, p.config.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("select due reminders: %w", err)
	}

	metrics.SetDueBacklog(len(due))
	if len(due) == 0 {
		return 0, nil
	}

	// Group by booking, preserving oldest-first order within each group.
	groups := make(map[string][]*db.Reminder)
	var order []string
	for _, rem := range due {
		if _, ok := groups[rem.BookingID]; !ok {
			order = append(order, rem.BookingID)
		}
		groups[rem.BookingID] = append(groups[rem.BookingID], rem)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		processed int
		storeErr  error
	)
	sem := make(chan struct{}, p.config.MaxParallel)

	for _, bookingID := range order {
		batch := groups[bookingID]
		wg.Add(1)
		sem <- struct{}{}

		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			for _, rem := range batch {
				err := p.Process(ctx, rem)

				mu.Lock()
				if err != nil && storeErr == nil {
					storeErr = err
				}
				if err == nil {
					processed++
				}
				mu.Unlock()

				if err != nil {
					return
				}
			}
		}()
	}

	wg.Wait()
	metrics.RecordSweep(time.Since(start))

	if storeErr != nil {
		return processed, fmt.Errorf("sweep aborted: %w", storeErr)
	}

	p.logger.Info("due reminders processed",
		zap.Int("processed", processed),
		zap.Time("as_of", now),
		zap.Duration("took", time.Since(start)),
	)

	return processed, nil
}

// Process drives one reminder to a terminal state. Resolution and
// dispatch errors become a failed transition with last_error set; the
// returned error is non-nil only when the store itself is unavailable.
func (p *Processor) Process(ctx context.Context, rem *db.Reminder) error {
	bc, err := p.provider.GetBookingContext(ctx, rem.BookingID)
	if err != nil {
		return p.fail(ctx, rem, fmt.Errorf("resolve booking: %w", err))
	}

	tmpl, err := p.catalog.Get(rem.Kind)
	if err != nil {
		return p.fail(ctx, rem, err)
	}

	renderCtx := map[string]string{
		"attendeeName": bc.RecipientName,
		"workshopName": bc.WorkshopName,
		"workshopDate": bc.WorkshopStart.Format("Monday, 2 January 2006"),
		"workshopTime": bc.WorkshopStart.Format("15:04 MST"),
	}
	if bc.Location != "" {
		renderCtx["location"] = bc.Location
	}

	subject := template.Render(tmpl.Subject, renderCtx)
	body := template.Render(tmpl.Body, renderCtx)

	dispatchCtx, cancel := context.WithTimeout(ctx, p.config.DispatchTimeout)
	defer cancel()

	dispatchStart := time.Now()
	err = p.sender.Send(dispatchCtx, rem.RecipientEmail, subject, body)
	if err != nil {
		metrics.RecordDispatch("failure", time.Since(dispatchStart))
		return p.fail(ctx, rem, fmt.Errorf("dispatch: %w", err))
	}
	metrics.RecordDispatch("success", time.Since(dispatchStart))

	now := time.Now().UTC()
	claimed, err := p.store.MarkSent(ctx, rem.ID, now)
	if err != nil {
		return fmt.Errorf("record sent transition: %w", err)
	}
	if !claimed {
		// A concurrent sweep moved the record out of pending first.
		p.logger.Warn("sent transition lost race",
			zap.String("reminder_id", rem.ID.String()),
			zap.String("booking_id", rem.BookingID),
		)
		return nil
	}

	rem.State = db.StateSent
	rem.Attempts++
	rem.LastAttemptAt = &now
	rem.SentAt = &now
	metrics.RecordReminderProcessed("sent", rem.Kind)

	p.logger.Info("reminder sent",
		zap.String("reminder_id", rem.ID.String()),
		zap.String("booking_id", rem.BookingID),
		zap.String("kind", rem.Kind),
		zap.String("to", rem.RecipientEmail),
	)

	return nil
}

func (p *Processor) fail(ctx context.Context, rem *db.Reminder, cause error) error {
	now := time.Now().UTC()
	msg := cause.Error()

	claimed, err := p.store.MarkFailed(ctx, rem.ID, now, msg)
	if err != nil {
		return fmt.Errorf("record failed transition: %w", err)
	}
	if !claimed {
		p.logger.Warn("failed transition lost race",
			zap.String("reminder_id", rem.ID.String()),
			zap.String("booking_id", rem.BookingID),
		)
		return nil
	}

	rem.State = db.StateFailed
	rem.Attempts++
	rem.LastAttemptAt = &now
	rem.LastError = &msg
	metrics.RecordReminderProcessed("failed", rem.Kind)

	p.logger.Error("reminder failed",
		zap.String("reminder_id", rem.ID.String()),
		zap.String("booking_id", rem.BookingID),
		zap.String("kind", rem.Kind),
		zap.String("error", msg),
	)

	return nil
}

// CancelForBooking transitions every pending reminder for the booking
// to cancelled. Reminders already sent or failed are left untouched,
// so repeating the call is a no-op.
func (p *Processor) CancelForBooking(ctx context.Context, bookingID string) error {
	cancelled, err := p.store.CancelPendingByBooking(ctx, bookingID)
	if err != nil {
		return fmt.Errorf("cancel reminders for booking %s: %w", bookingID, err)
	}

	metrics.RecordRemindersCancelled(cancelled)

	p.logger.Info("booking reminders cancelled",
		zap.String("booking_id", bookingID),
		zap.Int64("cancelled", cancelled),
	)

	return nil
}

// History returns the full reminder audit trail for a booking.
func (p *Processor) History(ctx context.Context, bookingID string) ([]*db.Reminder, error) {
	reminders, err := p.store.ListByBooking(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("reminder history for booking %s: %w", bookingID, err)
	}
	return reminders, nil
}
