package notifications

import (
	"context"
	"errors"

	"templeq/pkg/logger"
)

// DirectPublisher delivers events in-process when Kafka is disabled
type DirectPublisher struct {
	handlers []EventHandler
	logger   *logger.Logger
}

func NewDirectPublisher(handlers ...EventHandler) *DirectPublisher {
	return &DirectPublisher{handlers: handlers, logger: logger.GetDefault()}
}

// Publish hands the event to every handler and joins their errors
func (p *DirectPublisher) Publish(ctx context.Context, event *LifecycleEvent) error {
	var errs []error
	for _, h := range p.handlers {
		if err := h.HandleEvent(ctx, event); err != nil {
			p.logger.ErrorWithContext(ctx, "Lifecycle handler failed", err, map[string]interface{}{
				"event_type": string(event.Type),
				"booking_id": event.BookingID,
			})
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NopPublisher drops events
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, event *LifecycleEvent) error {
	return nil
}
