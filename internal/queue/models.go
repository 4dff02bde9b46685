package queue

import (
	"errors"
	"fmt"

	"templeq/internal/bookings"
	"templeq/internal/payments"
	"templeq/internal/temples"
)

// State is a queue session's position in the booking lifecycle
type State string

const (
	StateNoBooking             State = "NO_BOOKING"
	StateAwaitingTierSelection State = "AWAITING_TIER_SELECTION"
	StateAwaitingPayment       State = "AWAITING_PAYMENT"
	StateActive                State = "ACTIVE"
)

// LeaveReason is why a visitor left the queue
type LeaveReason string

const (
	ReasonChangePlans         LeaveReason = "change_plans"
	ReasonEmergency           LeaveReason = "emergency"
	ReasonLongWait            LeaveReason = "long_wait"
	ReasonTechnicalIssue      LeaveReason = "technical_issue"
	ReasonFoundAlternative    LeaveReason = "found_alternative"
	ReasonChangeSlot          LeaveReason = "change_slot"
	ReasonSlotChange          LeaveReason = "slot_change"
	ReasonDissatisfiedService LeaveReason = "dissatisfied_service"
	ReasonOther               LeaveReason = "other"
)

// ReasonOption is a leave reason offered to visitors
type ReasonOption struct {
	Reason LeaveReason `json:"reason"`
	Label  string      `json:"label"`
}

// LeaveReasons lists the reasons in display order
func LeaveReasons() []ReasonOption {
	return []ReasonOption{
		{ReasonChangePlans, "Change of plans"},
		{ReasonEmergency, "Emergency"},
		{ReasonLongWait, "Wait time too long"},
		{ReasonTechnicalIssue, "Technical issue"},
		{ReasonFoundAlternative, "Found an alternative"},
		{ReasonChangeSlot, "Change time slot"},
		{ReasonDissatisfiedService, "Dissatisfied with service"},
		{ReasonOther, "Other"},
	}
}

// IsReschedule reports whether the reason moves the booking instead of ending it
func (r LeaveReason) IsReschedule() bool {
	return r == ReasonChangeSlot || r == ReasonSlotChange
}

func (r LeaveReason) valid() bool {
	if r == ReasonSlotChange {
		return true
	}
	for _, opt := range LeaveReasons() {
		if opt.Reason == r {
			return true
		}
	}
	return false
}

// LeaveRequest asks to leave the queue, or to move to NewSlot when the
// reason is a slot change
type LeaveRequest struct {
	Reason  LeaveReason
	Details string
	NewSlot string
}

// LeaveOutcome is the result of a leave or reschedule
type LeaveOutcome struct {
	Status  bookings.Status          `json:"status"`
	Booking *bookings.Booking        `json:"booking"`
	Refund  *bookings.RefundDecision `json:"refund,omitempty"`
}

// Snapshot is a read-only view of a session
type Snapshot struct {
	State         State                    `json:"state"`
	TempleID      string                   `json:"templeId"`
	SlotTime      string                   `json:"slotTime,omitempty"`
	Tier          *temples.Tier            `json:"tier,omitempty"`
	Quote         *payments.Quote          `json:"quote,omitempty"`
	Booking       *bookings.Booking        `json:"booking,omitempty"`
	RefundIfLeft  *bookings.RefundDecision `json:"refundIfLeftNow,omitempty"`
	Busy          bool                     `json:"busy"`
	PaymentFailed bool                     `json:"paymentFailed"`
	Notice        string                   `json:"notice,omitempty"`
}

// ErrOperationInFlight is returned when an action arrives while another
// action on the same session is still running
var ErrOperationInFlight = errors.New("another operation is in progress for this session")

// InvalidTransitionError reports an operation not allowed in the current state
type InvalidTransitionError struct {
	From State
	Op   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s while in state %s", e.Op, e.From)
}
