package bookings

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"templeq/internal/temples"
	"templeq/pkg/clock"
)

func newTestLedger(t *testing.T, alloc Allocator) (*Ledger, *clock.FakeClock, *recordingRevoker, *MemoryStore) {
	t.Helper()
	clk := clock.Fake(time.Date(2026, 3, 10, 16, 0, 0, 0, ist))
	revoker := &recordingRevoker{}
	store := NewMemoryStore(clk)
	return NewLedger(store, alloc, clk, ist, revoker), clk, revoker, store
}

func TestCreateBooking(t *testing.T) {
	ledger, clk, _, _ := newTestLedger(t, FixedAllocator{Position: 12, Wait: 30})
	ctx := context.Background()
	key := LedgerKey("", "somnath")

	b, err := ledger.CreateBooking(ctx, key, "somnath", eveningSlot("19:00"), premiumTier(), testVisitor(), testReceipt())
	if err != nil {
		t.Fatalf("CreateBooking() error = %v", err)
	}
	if want := "TQ" + strconv.FormatInt(clk.Now().UnixMilli(), 10); b.BookingID != want {
		t.Errorf("BookingID = %q, want %q", b.BookingID, want)
	}
	if b.QueuePosition != 12 || b.EstimatedWaitMinutes != 30 {
		t.Errorf("position/wait = %d/%d, want 12/30", b.QueuePosition, b.EstimatedWaitMinutes)
	}
	if b.Status != StatusActive || b.AmountCharged != 128 || b.PaymentID != "PAY1-abcdef01" {
		t.Errorf("unexpected booking %+v", b)
	}

	got, err := ledger.Active(ctx, key)
	if err != nil {
		t.Fatalf("Active() error = %v", err)
	}
	if got.BookingID != b.BookingID || got.Visitor.Name != "Ravi Kumar" || got.Tier.ID != temples.TierPremium {
		t.Errorf("Active() = %+v", got)
	}

	_, err = ledger.CreateBooking(ctx, key, "somnath", eveningSlot("20:00"), premiumTier(), testVisitor(), testReceipt())
	if !errors.Is(err, ErrActiveBookingExists) {
		t.Errorf("second CreateBooking() error = %v, want ErrActiveBookingExists", err)
	}
}

func TestBookingIDsStrictlyIncrease(t *testing.T) {
	ledger, _, _, _ := newTestLedger(t, FixedAllocator{Position: 5, Wait: 20})
	ctx := context.Background()

	a, err := ledger.CreateBooking(ctx, LedgerKey("a", "somnath"), "somnath", eveningSlot("19:00"), premiumTier(), testVisitor(), testReceipt())
	if err != nil {
		t.Fatalf("CreateBooking() error = %v", err)
	}
	b, err := ledger.CreateBooking(ctx, LedgerKey("b", "somnath"), "somnath", eveningSlot("19:00"), premiumTier(), testVisitor(), testReceipt())
	if err != nil {
		t.Fatalf("CreateBooking() error = %v", err)
	}
	if a.BookingID == b.BookingID {
		t.Fatalf("ids collide: %s", a.BookingID)
	}
	if strings.Compare(a.BookingID, b.BookingID) >= 0 {
		t.Errorf("ids not increasing: %s then %s", a.BookingID, b.BookingID)
	}
}

func TestActiveErrors(t *testing.T) {
	ledger, _, _, store := newTestLedger(t, FixedAllocator{Position: 5, Wait: 20})
	ctx := context.Background()

	if _, err := ledger.Active(ctx, "queue-somnath"); !errors.Is(err, ErrNoActiveBooking) {
		t.Errorf("Active(empty) error = %v, want ErrNoActiveBooking", err)
	}

	_ = store.Put(ctx, "queue-somnath", []byte("{not json"), 0)
	if _, err := ledger.Active(ctx, "queue-somnath"); !errors.Is(err, ErrPersistenceRead) {
		t.Errorf("Active(malformed) error = %v, want ErrPersistenceRead", err)
	}

	_ = store.Put(ctx, "queue-somnath", []byte(`{"bookingId":"TQ1"}`), 0)
	if _, err := ledger.Active(ctx, "queue-somnath"); !errors.Is(err, ErrPersistenceRead) {
		t.Errorf("Active(incomplete) error = %v, want ErrPersistenceRead", err)
	}

	// an unreadable record does not block a new booking
	if _, err := ledger.CreateBooking(ctx, "queue-somnath", "somnath", eveningSlot("19:00"), premiumTier(), testVisitor(), testReceipt()); err != nil {
		t.Errorf("CreateBooking over malformed record error = %v", err)
	}
}

func TestRefreshPositionConverges(t *testing.T) {
	ledger, _, _, _ := newTestLedger(t, FixedAllocator{Position: 5, Wait: 20, Step: 2})
	ctx := context.Background()
	key := "queue-somnath"

	if _, err := ledger.CreateBooking(ctx, key, "somnath", eveningSlot("19:00"), premiumTier(), testVisitor(), testReceipt()); err != nil {
		t.Fatalf("CreateBooking() error = %v", err)
	}

	wantPositions := []int{3, 1, 1}
	for i, want := range wantPositions {
		b, err := ledger.RefreshPosition(ctx, key)
		if err != nil {
			t.Fatalf("RefreshPosition() error = %v", err)
		}
		if b.QueuePosition != want {
			t.Errorf("refresh %d: position = %d, want %d", i, b.QueuePosition, want)
		}
		if b.EstimatedWaitMinutes != 2*want {
			t.Errorf("refresh %d: estimate = %d, want %d", i, b.EstimatedWaitMinutes, 2*want)
		}
	}

	if _, err := ledger.RefreshPosition(ctx, "queue-dwarka"); !errors.Is(err, ErrNoActiveBooking) {
		t.Errorf("RefreshPosition(missing) error = %v", err)
	}
}

func TestRandomAllocatorRefreshNeverIncreases(t *testing.T) {
	ledger, _, _, _ := newTestLedger(t, NewRandomAllocator(nil))
	ctx := context.Background()
	key := "queue-somnath"

	b, err := ledger.CreateBooking(ctx, key, "somnath", eveningSlot("19:00"), premiumTier(), testVisitor(), testReceipt())
	if err != nil {
		t.Fatalf("CreateBooking() error = %v", err)
	}
	if b.QueuePosition < 1 || b.QueuePosition > 50 {
		t.Fatalf("initial position = %d, want [1,50]", b.QueuePosition)
	}
	if b.EstimatedWaitMinutes < 15 || b.EstimatedWaitMinutes >= 45 {
		t.Fatalf("initial wait = %d, want [15,45)", b.EstimatedWaitMinutes)
	}

	prev := b.QueuePosition
	for i := 0; i < 200; i++ {
		b, err = ledger.RefreshPosition(ctx, key)
		if err != nil {
			t.Fatalf("RefreshPosition() error = %v", err)
		}
		if b.QueuePosition > prev || b.QueuePosition < 1 || prev-b.QueuePosition > 2 {
			t.Fatalf("position moved %d -> %d", prev, b.QueuePosition)
		}
		prev = b.QueuePosition
	}
	if prev != 1 {
		t.Errorf("position after 200 refreshes = %d, want 1", prev)
	}
}

func TestReschedule(t *testing.T) {
	ledger, clk, revoker, _ := newTestLedger(t, FixedAllocator{Position: 30, Wait: 40, RescheduledPosition: 7, RescheduledWait: 12})
	ctx := context.Background()
	key := "queue-somnath"

	old, err := ledger.CreateBooking(ctx, key, "somnath", eveningSlot("19:00"), premiumTier(), testVisitor(), testReceipt())
	if err != nil {
		t.Fatalf("CreateBooking() error = %v", err)
	}
	clk.Advance(time.Second)

	next, err := ledger.Reschedule(ctx, key, eveningSlot("20:00"))
	if err != nil {
		t.Fatalf("Reschedule() error = %v", err)
	}
	if next.BookingID == old.BookingID {
		t.Error("Reschedule kept the old booking id")
	}
	if next.RescheduledFrom != old.BookingID {
		t.Errorf("RescheduledFrom = %q, want %q", next.RescheduledFrom, old.BookingID)
	}
	if next.SlotTime != "20:00" || next.QueuePosition != 7 || next.EstimatedWaitMinutes != 12 {
		t.Errorf("rescheduled booking = %+v", next)
	}
	if next.Visitor != old.Visitor || next.Tier.ID != old.Tier.ID || next.AmountCharged != old.AmountCharged || next.PaymentID != old.PaymentID {
		t.Error("visitor, tier and payment must carry over")
	}
	if got := revoker.revoked(); len(got) != 1 || got[0] != old.BookingID {
		t.Errorf("revoked = %v, want [%s]", got, old.BookingID)
	}

	active, err := ledger.Active(ctx, key)
	if err != nil || active.BookingID != next.BookingID {
		t.Errorf("Active() = %v, %v; want the rescheduled booking", active, err)
	}
}

func TestRescheduleIntoFullTier(t *testing.T) {
	ledger, _, revoker, _ := newTestLedger(t, FixedAllocator{Position: 30, Wait: 40})
	ctx := context.Background()
	key := "queue-somnath"

	old, err := ledger.CreateBooking(ctx, key, "somnath", eveningSlot("19:00"), premiumTier(), testVisitor(), testReceipt())
	if err != nil {
		t.Fatalf("CreateBooking() error = %v", err)
	}

	full := temples.Slot{
		Time:           "20:00",
		CapacityByTier: map[string]int{temples.TierPremium: 2, temples.TierFree: 5},
		BookedByTier:   map[string]int{temples.TierPremium: 2},
	}
	if _, err := ledger.Reschedule(ctx, key, full); !errors.Is(err, temples.ErrTierFull) {
		t.Fatalf("Reschedule() error = %v, want ErrTierFull", err)
	}
	if len(revoker.revoked()) != 0 {
		t.Error("failed reschedule must not revoke the pass")
	}
	if active, _ := ledger.Active(ctx, key); active == nil || active.BookingID != old.BookingID {
		t.Error("failed reschedule must keep the original booking")
	}
}

func TestLeave(t *testing.T) {
	tests := []struct {
		name       string
		elapsed    time.Duration
		wantAmount int
		wantTier   RefundTier
		wantStatus Status
	}{
		{"three hours before slot", 0, 128, RefundFull, StatusLeftWithRefund},
		{"ninety minutes before slot", 90 * time.Minute, 64, RefundPartial, StatusLeftWithRefund},
		{"thirty minutes before slot", 150 * time.Minute, 0, RefundNone, StatusLeftNoRefund},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger, clk, revoker, _ := newTestLedger(t, FixedAllocator{Position: 10, Wait: 20})
			ctx := context.Background()
			key := "queue-somnath"

			created, err := ledger.CreateBooking(ctx, key, "somnath", eveningSlot("19:00"), premiumTier(), testVisitor(), testReceipt())
			if err != nil {
				t.Fatalf("CreateBooking() error = %v", err)
			}
			clk.Advance(tt.elapsed)

			left, decision, err := ledger.Leave(ctx, key)
			if err != nil {
				t.Fatalf("Leave() error = %v", err)
			}
			if decision.Amount != tt.wantAmount || decision.Tier != tt.wantTier {
				t.Errorf("decision = %+v, want %d %s", decision, tt.wantAmount, tt.wantTier)
			}
			if left.Status != tt.wantStatus {
				t.Errorf("Status = %s, want %s", left.Status, tt.wantStatus)
			}
			if got := revoker.revoked(); len(got) != 1 || got[0] != created.BookingID {
				t.Errorf("revoked = %v", got)
			}
			if _, err := ledger.Active(ctx, key); !errors.Is(err, ErrNoActiveBooking) {
				t.Errorf("Active() after Leave error = %v, want ErrNoActiveBooking", err)
			}
		})
	}
}

func TestLeaveRevokeFailureKeepsBooking(t *testing.T) {
	ledger, _, revoker, _ := newTestLedger(t, FixedAllocator{Position: 10, Wait: 20})
	ctx := context.Background()
	key := "queue-somnath"

	if _, err := ledger.CreateBooking(ctx, key, "somnath", eveningSlot("19:00"), premiumTier(), testVisitor(), testReceipt()); err != nil {
		t.Fatalf("CreateBooking() error = %v", err)
	}
	revoker.err = errors.New("redis down")

	if _, _, err := ledger.Leave(ctx, key); err == nil {
		t.Fatal("Leave() error = nil, want revoke failure")
	}
	if _, err := ledger.Active(ctx, key); err != nil {
		t.Errorf("booking should survive a failed leave: %v", err)
	}
}

func TestClear(t *testing.T) {
	ledger, _, _, store := newTestLedger(t, FixedAllocator{Position: 10, Wait: 20})
	ctx := context.Background()

	_ = store.Put(ctx, "queue-somnath", []byte("garbage"), 0)
	if err := ledger.Clear(ctx, "queue-somnath"); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if _, found, _ := store.Get(ctx, "queue-somnath"); found {
		t.Error("Clear() left the record in place")
	}
}

func TestBookingExpiresAfterGrace(t *testing.T) {
	ledger, clk, _, store := newTestLedger(t, FixedAllocator{Position: 10, Wait: 20, RescheduledPosition: 4, RescheduledWait: 8})
	ctx := context.Background()
	key := "queue-somnath"

	b, err := ledger.CreateBooking(ctx, key, "somnath", eveningSlot("19:00"), premiumTier(), testVisitor(), testReceipt())
	if err != nil {
		t.Fatalf("CreateBooking() error = %v", err)
	}
	want := time.Date(2026, 3, 10, 21, 0, 0, 0, ist)
	if !b.ExpiresAt.Equal(want) {
		t.Fatalf("ExpiresAt = %v, want %v", b.ExpiresAt, want)
	}

	moved, err := ledger.Reschedule(ctx, key, eveningSlot("20:00"))
	if err != nil {
		t.Fatalf("Reschedule() error = %v", err)
	}
	if want := want.Add(time.Hour); !moved.ExpiresAt.Equal(want) {
		t.Errorf("rescheduled ExpiresAt = %v, want %v", moved.ExpiresAt, want)
	}

	clk.Set(moved.ExpiresAt.Add(-time.Second))
	if _, err := ledger.Active(ctx, key); err != nil {
		t.Fatalf("Active() before expiry error = %v", err)
	}

	clk.Set(moved.ExpiresAt)
	if _, err := ledger.Active(ctx, key); !errors.Is(err, ErrNoActiveBooking) {
		t.Fatalf("Active() at expiry error = %v, want ErrNoActiveBooking", err)
	}
	if _, found, _ := store.Get(ctx, key); found {
		t.Error("expired booking left in the store")
	}
	if _, err := ledger.CreateBooking(ctx, key, "somnath", eveningSlot("19:00"), premiumTier(), testVisitor(), testReceipt()); err != nil {
		t.Errorf("CreateBooking() after expiry error = %v", err)
	}
}

func TestWithGrace(t *testing.T) {
	clk := clock.Fake(time.Date(2026, 3, 10, 16, 0, 0, 0, ist))
	ledger := NewLedger(NewMemoryStore(clk), FixedAllocator{Position: 3, Wait: 6}, clk, ist, nil, WithGrace(30*time.Minute))

	b, err := ledger.CreateBooking(context.Background(), "queue-dwarka", "dwarka", eveningSlot("19:00"), premiumTier(), testVisitor(), testReceipt())
	if err != nil {
		t.Fatalf("CreateBooking() error = %v", err)
	}
	if want := time.Date(2026, 3, 10, 19, 30, 0, 0, ist); !b.ExpiresAt.Equal(want) {
		t.Errorf("ExpiresAt = %v, want %v", b.ExpiresAt, want)
	}
}
