package bookings

import (
	"fmt"
	"time"
)

// RefundFor applies the refund tiers to the time left before the slot:
// two hours or more is a full refund, one to two hours is half (rounded
// down) and anything later gets nothing.
func RefundFor(amount int, untilSlot time.Duration) RefundDecision {
	switch {
	case amount <= 0:
		return RefundDecision{Amount: 0, Tier: RefundNone}
	case untilSlot >= 2*time.Hour:
		return RefundDecision{Amount: amount, Tier: RefundFull}
	case untilSlot >= time.Hour:
		return RefundDecision{Amount: amount / 2, Tier: RefundPartial}
	default:
		return RefundDecision{Amount: 0, Tier: RefundNone}
	}
}

// SlotInstant resolves an HH:MM label to the first matching wall-clock
// time at or after from, in loc.
func SlotInstant(from time.Time, slotTime string, loc *time.Location) (time.Time, error) {
	hm, err := time.Parse("15:04", slotTime)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid slot time %q: %w", slotTime, err)
	}
	local := from.In(loc)
	at := time.Date(local.Year(), local.Month(), local.Day(), hm.Hour(), hm.Minute(), 0, 0, loc)
	if at.Before(local) {
		at = at.AddDate(0, 0, 1)
	}
	return at, nil
}
