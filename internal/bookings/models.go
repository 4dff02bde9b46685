package bookings

import (
	"errors"
	"time"

	"templeq/internal/payments"
	"templeq/internal/temples"
)

// Status is the lifecycle state of a booking record
type Status string

const (
	StatusActive         Status = "ACTIVE"
	StatusExpired        Status = "EXPIRED"
	StatusLeftWithRefund Status = "LEFT_WITH_REFUND"
	StatusLeftNoRefund   Status = "LEFT_NO_REFUND"
	StatusRescheduled    Status = "RESCHEDULED"
)

// Booking is a paid place in a temple's virtual queue
type Booking struct {
	BookingID            string                  `json:"bookingId"`
	TempleID             string                  `json:"templeId"`
	SlotTime             string                  `json:"slotTime"`
	Tier                 temples.Tier            `json:"tier"`
	Visitor              payments.VisitorDetails `json:"visitor"`
	PartySize            int                     `json:"numberOfPeople"`
	AmountCharged        int                     `json:"amount"`
	PaymentID            string                  `json:"paymentId"`
	CreatedAt            time.Time               `json:"createdAt"`
	QueuePosition        int                     `json:"queuePosition"`
	EstimatedWaitMinutes int                     `json:"estimatedTime"`
	Status               Status                  `json:"status"`
	RescheduledFrom      string                  `json:"rescheduledFrom,omitempty"`

	// ExpiresAt is when the ledger stops honouring the booking: the slot
	// plus the ledger's grace period. Zero on records written before it existed.
	ExpiresAt time.Time `json:"expiresAt,omitempty"`
}

// Expired reports whether the booking has outlived its slot
func (b *Booking) Expired(now time.Time) bool {
	return !b.ExpiresAt.IsZero() && !now.Before(b.ExpiresAt)
}

// RefundTier classifies how much of the amount is returned
type RefundTier string

const (
	RefundFull    RefundTier = "FULL"
	RefundPartial RefundTier = "PARTIAL"
	RefundNone    RefundTier = "NONE"
)

// RefundDecision is derived at leave time and never stored on the booking
type RefundDecision struct {
	Amount int        `json:"amount"`
	Tier   RefundTier `json:"tier"`
}

// Error definitions
var (
	ErrNoActiveBooking     = errors.New("no active booking")
	ErrActiveBookingExists = errors.New("an active booking already exists for this temple")
	ErrPersistenceRead     = errors.New("stored booking is unreadable")
)
