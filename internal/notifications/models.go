package notifications

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType names a booking lifecycle transition
type EventType string

const (
	EventBookingCreated     EventType = "booking.created"
	EventBookingRescheduled EventType = "booking.rescheduled"
	EventBookingLeft        EventType = "booking.left"
	EventBookingExpired     EventType = "booking.expired"
)

// LifecycleEvent is published on every booking state change
type LifecycleEvent struct {
	ID                uuid.UUID `json:"id"`
	Type              EventType `json:"type"`
	BookingID         string    `json:"booking_id"`
	PreviousBookingID string    `json:"previous_booking_id,omitempty"`
	TempleID          string    `json:"temple_id"`
	DeviceID          string    `json:"device_id,omitempty"`
	SlotTime          string    `json:"slot_time,omitempty"`
	TierID            string    `json:"tier_id,omitempty"`
	Amount            int       `json:"amount"`
	QueuePosition     int       `json:"queue_position,omitempty"`
	Reason            string    `json:"reason,omitempty"`
	ReasonDetails     string    `json:"reason_details,omitempty"`
	RefundAmount      int       `json:"refund_amount"`
	RefundTier        string    `json:"refund_tier,omitempty"`
	OccurredAt        time.Time `json:"occurred_at"`
}

// NewLifecycleEvent stamps a fresh event id
func NewLifecycleEvent(eventType EventType, bookingID, templeID string, at time.Time) *LifecycleEvent {
	return &LifecycleEvent{
		ID:         uuid.New(),
		Type:       eventType,
		BookingID:  bookingID,
		TempleID:   templeID,
		OccurredAt: at,
	}
}

// GetPartitionKey keeps every event for a booking on one partition
func (e *LifecycleEvent) GetPartitionKey() string {
	return e.BookingID
}

func (e *LifecycleEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// EventPublisher sends lifecycle events out of the queue controller
type EventPublisher interface {
	Publish(ctx context.Context, event *LifecycleEvent) error
}

// EventHandler reacts to lifecycle events
type EventHandler interface {
	HandleEvent(ctx context.Context, event *LifecycleEvent) error
}

// EventHandlerFunc adapts a function to EventHandler
type EventHandlerFunc func(ctx context.Context, event *LifecycleEvent) error

func (f EventHandlerFunc) HandleEvent(ctx context.Context, event *LifecycleEvent) error {
	return f(ctx, event)
}
