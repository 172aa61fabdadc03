package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

var (
	// ErrDuplicateSchedule is returned when inserting a reminder would
	// violate the (booking_id, kind) uniqueness constraint.
	ErrDuplicateSchedule = errors.New("reminder already scheduled for booking and kind")

	// ErrReminderNotFound is returned when a reminder id does not exist.
	ErrReminderNotFound = errors.New("reminder not found")
)

const uniqueViolation = "23505"

// Repository handles database operations for reminders
type Repository struct {
	db     *DB
	logger *zap.Logger
}

// NewRepository creates a new reminder repository
func NewRepository(db *DB, logger *zap.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

const reminderColumns = `
	id, booking_id, workshop_id, recipient_email, recipient_name,
	event_time, kind, scheduled_for, state, attempts,
	last_attempt_at, sent_at, last_error, created_at, updated_at
`

func scanReminder(row pgx.Row) (*Reminder, error) {
	var rem Reminder
	err := row.Scan(
		&rem.ID,
		&rem.BookingID,
		&rem.WorkshopID,
		&rem.RecipientEmail,
		&rem.RecipientName,
		&rem.EventTime,
		&rem.Kind,
		&rem.ScheduledFor,
		&rem.State,
		&rem.Attempts,
		&rem.LastAttemptAt,
		&rem.SentAt,
		&rem.LastError,
		&rem.CreatedAt,
		&rem.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rem, nil
}

// CreateReminders inserts a booking's reminder schedule in a single
// transaction. The whole batch is rejected with ErrDuplicateSchedule
// if any (booking_id, kind) pair already exists, so re-invoking
// schedule generation can never leave a partial or duplicated set.
func (r *Repository) CreateReminders(ctx context.Context, reminders []*Reminder) error {
	if len(reminders) == 0 {
		return nil
	}

	tx, err := r.db.Pool().Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := `
		INSERT INTO reminders (
			id, booking_id, workshop_id, recipient_email, recipient_name,
			event_time, kind, scheduled_for, state, attempts
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		)
		RETURNING created_at, updated_at
	`

	for _, rem := range reminders {
		err := tx.QueryRow(
			ctx,
			query,
			rem.ID,
			rem.BookingID,
			rem.WorkshopID,
			rem.RecipientEmail,
			rem.RecipientName,
			rem.EventTime,
			rem.Kind,
			rem.ScheduledFor,
			rem.State,
			rem.Attempts,
		).Scan(&rem.CreatedAt, &rem.UpdatedAt)

		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
				return fmt.Errorf("%w: booking %s kind %s", ErrDuplicateSchedule, rem.BookingID, rem.Kind)
			}
			return fmt.Errorf("insert reminder: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	r.logger.Info("reminder schedule created",
		zap.String("booking_id", reminders[0].BookingID),
		zap.Int("count", len(reminders)),
	)

	return nil
}

// GetReminder retrieves a reminder by ID
func (r *Repository) GetReminder(ctx context.Context, id uuid.UUID) (*Reminder, error) {
	query := `SELECT ` + reminderColumns + ` FROM reminders WHERE id = $1`

	rem, err := scanReminder(r.db.Pool().QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrReminderNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("query reminder: %w", err)
	}

	return rem, nil
}

// GetDueReminders returns pending reminders whose scheduled time has
// passed, oldest first so a backlog drains in order. Read-only.
func (r *Repository) GetDueReminders(ctx context.Context, now time.Time, limit int) ([]*Reminder, error) {
	query := `
		SELECT ` + reminderColumns + `
		FROM reminders
		WHERE state = 'pending' AND scheduled_for <= $1
		ORDER BY scheduled_for ASC
		LIMIT $2
	`

	rows, err := r.db.Pool().Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("query due reminders: %w", err)
	}
	defer rows.Close()

	var reminders []*Reminder
	for rows.Next() {
		rem, err := scanReminder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reminder: %w", err)
		}
		reminders = append(reminders, rem)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return reminders, nil
}

// ListByBooking returns the full reminder history for a booking,
// including terminal records, ordered by scheduled time.
func (r *Repository) ListByBooking(ctx context.Context, bookingID string) ([]*Reminder, error) {
	query := `
		SELECT ` + reminderColumns + `
		FROM reminders
		WHERE booking_id = $1
		ORDER BY scheduled_for ASC
	`

	rows, err := r.db.Pool().Query(ctx, query, bookingID)
	if err != nil {
		return nil, fmt.Errorf("query reminders by booking: %w", err)
	}
	defer rows.Close()

	var reminders []*Reminder
	for rows.Next() {
		rem, err := scanReminder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reminder: %w", err)
		}
		reminders = append(reminders, rem)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return reminders, nil
}

// MarkSent transitions a pending reminder to sent. The WHERE clause
// doubles as a compare-and-set on state: if a concurrent sweep already
// moved the record out of pending, no row matches and the transition
// is reported as not claimed rather than applied twice.
func (r *Repository) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	query := `
		UPDATE reminders
		SET state = 'sent',
		    attempts = attempts + 1,
		    last_attempt_at = $1,
		    sent_at = $1,
		    updated_at = NOW()
		WHERE id = $2 AND state = 'pending'
	`

	result, err := r.db.Pool().Exec(ctx, query, at, id)
	if err != nil {
		return false, fmt.Errorf("mark reminder sent: %w", err)
	}

	return result.RowsAffected() == 1, nil
}

// MarkFailed transitions a pending reminder to failed, recording the
// dispatch error. Same compare-and-set semantics as MarkSent.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, at time.Time, lastError string) (bool, error) {
	query := `
		UPDATE reminders
		SET state = 'failed',
		    attempts = attempts + 1,
		    last_attempt_at = $1,
		    last_error = $2,
		    updated_at = NOW()
		WHERE id = $3 AND state = 'pending'
	`

	result, err := r.db.Pool().Exec(ctx, query, at, lastError, id)
	if err != nil {
		return false, fmt.Errorf("mark reminder failed: %w", err)
	}

	return result.RowsAffected() == 1, nil
}

// CancelPendingByBooking transitions every pending reminder for the
// booking to cancelled and returns how many rows changed. Sent and
// failed records are untouched, which also makes the call idempotent.
func (r *Repository) CancelPendingByBooking(ctx context.Context, bookingID string) (int64, error) {
	query := `
		UPDATE reminders
		SET state = 'cancelled', updated_at = NOW()
		WHERE booking_id = $1 AND state = 'pending'
	`

	result, err := r.db.Pool().Exec(ctx, query, bookingID)
	if err != nil {
		return 0, fmt.Errorf("cancel reminders: %w", err)
	}

	cancelled := result.RowsAffected()
	if cancelled > 0 {
		r.logger.Info("pending reminders cancelled",
			zap.String("booking_id", bookingID),
			zap.Int64("count", cancelled),
		)
	}

	return cancelled, nil
}

// CountByBooking returns how many reminder rows exist for a booking.
func (r *Repository) CountByBooking(ctx context.Context, bookingID string) (int, error) {
	var count int
	err := r.db.Pool().QueryRow(ctx,
		`SELECT COUNT(*) FROM reminders WHERE booking_id = $1`, bookingID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count reminders: %w", err)
	}
	return count, nil
}
