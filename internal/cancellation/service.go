package cancellation

import (
	"context"
	"fmt"

	"templeq/internal/notifications"
	"templeq/pkg/logger"

	"github.com/google/uuid"
)

// Service interface defines the contract for leave history and refunds
type Service interface {
	notifications.EventHandler
	GetDeviceRefunds(ctx context.Context, deviceID string) ([]Refund, error)
	GetLeaveReasonStats(ctx context.Context, templeID string) ([]ReasonCount, error)
}

// service implements the Service interface
type service struct {
	repo   Repository
	logger *logger.Logger
}

// NewService creates a new cancellation service
func NewService(repo Repository) Service {
	return &service{repo: repo, logger: logger.GetDefault()}
}

// HandleEvent records booking.left events; other lifecycle events are ignored
func (s *service) HandleEvent(ctx context.Context, event *notifications.LifecycleEvent) error {
	if event.Type != notifications.EventBookingLeft {
		return nil
	}
	if event.BookingID == "" {
		return fmt.Errorf("leave event %s has no booking id", event.ID)
	}

	record := &LeaveRecord{
		ID:            uuid.New(),
		BookingID:     event.BookingID,
		TempleID:      event.TempleID,
		DeviceID:      event.DeviceID,
		Reason:        event.Reason,
		ReasonDetails: event.ReasonDetails,
		QueuePosition: event.QueuePosition,
		LeftAt:        event.OccurredAt,
	}

	var refund *Refund
	if event.RefundAmount > 0 {
		refund = &Refund{
			ID:        uuid.New(),
			BookingID: event.BookingID,
			TempleID:  event.TempleID,
			DeviceID:  event.DeviceID,
			Amount:    event.RefundAmount,
			Tier:      event.RefundTier,
			Reason:    event.Reason,
			Status:    RefundStatusProcessing,
			CreatedAt: event.OccurredAt,
			UpdatedAt: event.OccurredAt,
		}
	}

	if err := s.repo.CreateLeave(ctx, record, refund); err != nil {
		return fmt.Errorf("record leave for %s: %w", event.BookingID, err)
	}

	if refund != nil {
		s.logger.InfoWithContext(ctx, "Refund queued", map[string]interface{}{
			"booking_id": refund.BookingID,
			"amount":     refund.Amount,
			"tier":       refund.Tier,
		})
	}
	return nil
}

func (s *service) GetDeviceRefunds(ctx context.Context, deviceID string) ([]Refund, error) {
	return s.repo.GetRefundsByDeviceID(ctx, deviceID)
}

func (s *service) GetLeaveReasonStats(ctx context.Context, templeID string) ([]ReasonCount, error) {
	return s.repo.CountLeaveReasons(ctx, templeID)
}
