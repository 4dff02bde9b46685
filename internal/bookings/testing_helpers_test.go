package bookings

import (
	"context"
	"sync"
	"time"

	"templeq/internal/payments"
	"templeq/internal/temples"
)

var ist = time.FixedZone("IST", 5*3600+30*60)

type recordingRevoker struct {
	mu  sync.Mutex
	ids []string
	err error
}

func (r *recordingRevoker) MarkUsed(ctx context.Context, bookingID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.ids = append(r.ids, bookingID)
	return nil
}

func (r *recordingRevoker) revoked() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ids...)
}

func premiumTier() temples.Tier {
	return temples.Tier{ID: temples.TierPremium, DisplayName: "Premium Darshan", Price: 100}
}

func eveningSlot(t string) temples.Slot {
	return temples.Slot{
		Time:           t,
		CapacityByTier: map[string]int{temples.TierPremium: 10},
		BookedByTier:   map[string]int{temples.TierPremium: 2},
	}
}

func testVisitor() payments.VisitorDetails {
	return payments.VisitorDetails{Name: "Ravi Kumar", PhoneNumber: "9876543210", PartySize: 1}
}

func testReceipt() *payments.Receipt {
	return &payments.Receipt{PaymentID: "PAY1-abcdef01", Amount: 128}
}
