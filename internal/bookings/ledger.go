package bookings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"templeq/internal/payments"
	"templeq/internal/temples"
	"templeq/pkg/clock"
)

// PassRevoker marks a booking's pass as used (to avoid a dependency on the passes package)
type PassRevoker interface {
	MarkUsed(ctx context.Context, bookingID string) error
}

// DefaultGrace is how long a booking outlives its slot by default
const DefaultGrace = 2 * time.Hour

// Ledger owns the single active booking per key and its queue position
type Ledger struct {
	store   Store
	alloc   Allocator
	clock   clock.Clock
	loc     *time.Location
	revoker PassRevoker
	grace   time.Duration

	idMu   sync.Mutex
	lastID int64
}

// LedgerOption configures a Ledger
type LedgerOption func(*Ledger)

// WithGrace sets how long after its slot a booking stays active
func WithGrace(d time.Duration) LedgerOption {
	return func(l *Ledger) {
		if d > 0 {
			l.grace = d
		}
	}
}

// NewLedger creates a booking ledger. loc is the zone slot labels are read in.
func NewLedger(store Store, alloc Allocator, clk clock.Clock, loc *time.Location, revoker PassRevoker, opts ...LedgerOption) *Ledger {
	if clk == nil {
		clk = clock.Real()
	}
	if loc == nil {
		loc = time.UTC
	}
	l := &Ledger{
		store:   store,
		alloc:   alloc,
		clock:   clk,
		loc:     loc,
		revoker: revoker,
		grace:   DefaultGrace,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// CreateBooking records a paid booking. It refuses to replace an existing
// active booking under the same key.
func (l *Ledger) CreateBooking(ctx context.Context, key, templeID string, slot temples.Slot, tier temples.Tier, visitor payments.VisitorDetails, receipt *payments.Receipt) (*Booking, error) {
	if receipt == nil {
		return nil, fmt.Errorf("create booking: missing payment receipt")
	}

	existing, err := l.Active(ctx, key)
	switch {
	case err == nil:
		return nil, fmt.Errorf("%w: %s", ErrActiveBookingExists, existing.BookingID)
	case errors.Is(err, ErrNoActiveBooking), errors.Is(err, ErrPersistenceRead):
		// an unreadable record counts as no booking
	default:
		return nil, err
	}

	now := l.clock.Now()
	expiresAt, err := l.expiry(now, slot.Time)
	if err != nil {
		return nil, err
	}

	position, wait := l.alloc.Initial()
	b := &Booking{
		BookingID:            l.nextID(),
		TempleID:             templeID,
		SlotTime:             slot.Time,
		Tier:                 tier,
		Visitor:              visitor,
		PartySize:            visitor.PartySize,
		AmountCharged:        receipt.Amount,
		PaymentID:            receipt.PaymentID,
		CreatedAt:            now,
		QueuePosition:        position,
		EstimatedWaitMinutes: wait,
		Status:               StatusActive,
		ExpiresAt:            expiresAt,
	}
	if err := l.save(ctx, key, b); err != nil {
		return nil, err
	}
	return b, nil
}

// Active loads the active booking stored under key. A booking past its
// expiry is dropped and reported as ErrNoActiveBooking.
func (l *Ledger) Active(ctx context.Context, key string) (*Booking, error) {
	data, found, err := l.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load booking %s: %w", key, err)
	}
	if !found {
		return nil, ErrNoActiveBooking
	}

	var b Booking
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistenceRead, err)
	}
	if b.BookingID == "" || b.TempleID == "" || b.QueuePosition < 1 {
		return nil, fmt.Errorf("%w: incomplete record under %s", ErrPersistenceRead, key)
	}
	if b.Expired(l.clock.Now()) {
		if err := l.store.Delete(ctx, key); err != nil {
			return nil, fmt.Errorf("drop expired booking %s: %w", key, err)
		}
		return nil, fmt.Errorf("%w: booking %s expired at %s", ErrNoActiveBooking, b.BookingID, b.ExpiresAt.Format(time.RFC3339))
	}
	return &b, nil
}

// RefreshPosition advances the queue position, never moving it backwards,
// and recomputes the estimate as two minutes per place.
func (l *Ledger) RefreshPosition(ctx context.Context, key string) (*Booking, error) {
	b, err := l.Active(ctx, key)
	if err != nil {
		return nil, err
	}

	next := l.alloc.Advance(b.QueuePosition)
	if next > b.QueuePosition {
		next = b.QueuePosition
	}
	if next < 1 {
		next = 1
	}
	b.QueuePosition = next
	b.EstimatedWaitMinutes = 2 * next

	if err := l.save(ctx, key, b); err != nil {
		return nil, err
	}
	return b, nil
}

// Reschedule moves the booking to newSlot under a new booking id. Visitor,
// tier and payment carry over; the old id's pass is revoked.
func (l *Ledger) Reschedule(ctx context.Context, key string, newSlot temples.Slot) (*Booking, error) {
	old, err := l.Active(ctx, key)
	if err != nil {
		return nil, err
	}
	if err := temples.CheckTier(newSlot, old.Tier.ID); err != nil {
		return nil, err
	}

	now := l.clock.Now()
	expiresAt, err := l.expiry(now, newSlot.Time)
	if err != nil {
		return nil, err
	}

	position, wait := l.alloc.Rescheduled()
	next := *old
	next.BookingID = l.nextID()
	next.SlotTime = newSlot.Time
	next.CreatedAt = now
	next.ExpiresAt = expiresAt
	next.QueuePosition = position
	next.EstimatedWaitMinutes = wait
	next.Status = StatusActive
	next.RescheduledFrom = old.BookingID

	if err := l.revoke(ctx, old.BookingID); err != nil {
		return nil, err
	}
	if err := l.save(ctx, key, &next); err != nil {
		return nil, err
	}
	return &next, nil
}

// Leave removes the active booking and returns it with its terminal status
// alongside the refund owed.
func (l *Ledger) Leave(ctx context.Context, key string) (*Booking, RefundDecision, error) {
	b, err := l.Active(ctx, key)
	if err != nil {
		return nil, RefundDecision{}, err
	}

	decision, err := l.RefundDecision(b)
	if err != nil {
		return nil, RefundDecision{}, err
	}

	if err := l.revoke(ctx, b.BookingID); err != nil {
		return nil, RefundDecision{}, err
	}
	if err := l.store.Delete(ctx, key); err != nil {
		return nil, RefundDecision{}, fmt.Errorf("delete booking %s: %w", key, err)
	}

	b.Status = StatusLeftNoRefund
	if decision.Amount > 0 {
		b.Status = StatusLeftWithRefund
	}
	return b, decision, nil
}

// RefundDecision computes the refund owed if b left now
func (l *Ledger) RefundDecision(b *Booking) (RefundDecision, error) {
	slotAt, err := SlotInstant(b.CreatedAt, b.SlotTime, l.loc)
	if err != nil {
		return RefundDecision{}, err
	}
	return RefundFor(b.AmountCharged, slotAt.Sub(l.clock.Now())), nil
}

// Clear drops whatever is stored under key
func (l *Ledger) Clear(ctx context.Context, key string) error {
	if err := l.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("clear booking %s: %w", key, err)
	}
	return nil
}

func (l *Ledger) save(ctx context.Context, key string, b *Booking) error {
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("marshal booking: %w", err)
	}
	// The store drops the record on its own once the booking expires
	var ttl time.Duration
	if !b.ExpiresAt.IsZero() {
		ttl = max(b.ExpiresAt.Sub(l.clock.Now()), time.Second)
	}
	if err := l.store.Put(ctx, key, data, ttl); err != nil {
		return fmt.Errorf("save booking %s: %w", key, err)
	}
	return nil
}

// expiry is the grace period past the next occurrence of slotTime
func (l *Ledger) expiry(now time.Time, slotTime string) (time.Time, error) {
	slotAt, err := SlotInstant(now, slotTime, l.loc)
	if err != nil {
		return time.Time{}, err
	}
	return slotAt.Add(l.grace), nil
}

func (l *Ledger) revoke(ctx context.Context, bookingID string) error {
	if l.revoker == nil {
		return nil
	}
	if err := l.revoker.MarkUsed(ctx, bookingID); err != nil {
		return fmt.Errorf("revoke pass %s: %w", bookingID, err)
	}
	return nil
}

// nextID returns TQ<unix millis>, bumped so ids strictly increase
func (l *Ledger) nextID() string {
	l.idMu.Lock()
	defer l.idMu.Unlock()
	id := l.clock.Now().UnixMilli()
	if id <= l.lastID {
		id = l.lastID + 1
	}
	l.lastID = id
	return "TQ" + strconv.FormatInt(id, 10)
}
