package db

import (
	"time"

	"github.com/google/uuid"
)

// Reminder represents one scheduled notification for a booking.
// Rows are created in bulk when a booking is confirmed and are never
// deleted; they remain as the delivery audit trail.
type Reminder struct {
	ID             uuid.UUID  `json:"id"`
	BookingID      string     `json:"booking_id"`
	WorkshopID     string     `json:"workshop_id"`
	RecipientEmail string     `json:"recipient_email"`
	RecipientName  string     `json:"recipient_name"`
	EventTime      time.Time  `json:"event_time"`
	Kind           string     `json:"kind"`
	ScheduledFor   time.Time  `json:"scheduled_for"`
	State          string     `json:"state"`
	Attempts       int        `json:"attempts"`
	LastAttemptAt  *time.Time `json:"last_attempt_at,omitempty"`
	SentAt         *time.Time `json:"sent_at,omitempty"`
	LastError      *string    `json:"last_error,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// State constants. A reminder leaves pending exactly once; sent,
// failed and cancelled are terminal.
const (
	StatePending   = "pending"
	StateSent      = "sent"
	StateFailed    = "failed"
	StateCancelled = "cancelled"
)

// Kind constants. Each kind maps to a fixed offset from the workshop
// start time and to a template in the catalog.
const (
	KindTMinus48h = "t_minus_48h"
	KindTMinus24h = "t_minus_24h"
	KindTMinus2h  = "t_minus_2h"
	KindTPlus2h   = "t_plus_2h"
)

// Kinds lists every reminder kind in schedule order.
var Kinds = []string{KindTMinus48h, KindTMinus24h, KindTMinus2h, KindTPlus2h}

// ValidKind reports whether k is a known reminder kind.
func ValidKind(k string) bool {
	for _, kind := range Kinds {
		if k == kind {
			return true
		}
	}
	return false
}
