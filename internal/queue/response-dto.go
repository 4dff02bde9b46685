package queue

import (
	"templeq/internal/bookings"
)

// BookingResponse pairs a booking with the session state after the action
type BookingResponse struct {
	Booking *bookings.Booking `json:"booking"`
	State   Snapshot          `json:"state"`
}

// LeaveResponse pairs a leave outcome with the session state after it
type LeaveResponse struct {
	Outcome *LeaveOutcome `json:"outcome"`
	State   Snapshot      `json:"state"`
}
