package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"templeq/internal/bookings"
	"templeq/internal/notifications"
	"templeq/internal/passes"
	"templeq/internal/payments"
	"templeq/internal/temples"
	"templeq/pkg/clock"
	"templeq/pkg/logger"
)

// PaymentGateway charges for a tier
type PaymentGateway interface {
	AttemptPayment(ctx context.Context, tier temples.Tier, partySize int, visitor payments.VisitorDetails) (*payments.Receipt, error)
}

// BookingLedger persists the active booking for a session key
type BookingLedger interface {
	CreateBooking(ctx context.Context, key, templeID string, slot temples.Slot, tier temples.Tier, visitor payments.VisitorDetails, receipt *payments.Receipt) (*bookings.Booking, error)
	Active(ctx context.Context, key string) (*bookings.Booking, error)
	RefreshPosition(ctx context.Context, key string) (*bookings.Booking, error)
	Reschedule(ctx context.Context, key string, newSlot temples.Slot) (*bookings.Booking, error)
	Leave(ctx context.Context, key string) (*bookings.Booking, bookings.RefundDecision, error)
	RefundDecision(b *bookings.Booking) (bookings.RefundDecision, error)
	Clear(ctx context.Context, key string) error
}

// PassIssuer builds passes and reports consumption
type PassIssuer interface {
	Pass(ctx context.Context, b *bookings.Booking, t *temples.Temple) (*passes.Pass, error)
	IsUsed(ctx context.Context, bookingID string) (bool, error)
}

// Deps are the collaborators shared by every session
type Deps struct {
	Temples        temples.Store
	Payments       PaymentGateway
	Ledger         BookingLedger
	Passes         PassIssuer
	Events         notifications.EventPublisher
	Clock          clock.Clock
	RefreshLatency time.Duration
	Logger         *logger.Logger
}

// Controller runs the booking lifecycle for one device and temple. Only one
// action runs at a time; a second concurrent action gets ErrOperationInFlight.
type Controller struct {
	deps     Deps
	deviceID string
	templeID string
	key      string

	op sync.Mutex // held for the duration of an action

	mu            sync.Mutex // guards the fields below
	busy          bool
	state         State
	slot          *temples.Slot
	tier          *temples.Tier
	visitor       *payments.VisitorDetails
	paymentFailed bool
	receipt       *payments.Receipt // charged but not yet booked
	booking       *bookings.Booking
	notice        string
	lastUsed      time.Time
}

// NewController creates a session in NoBooking. Call LoadPersistedBooking to
// pick up a stored booking.
func NewController(deps Deps, deviceID, templeID string) *Controller {
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}
	if deps.Events == nil {
		deps.Events = notifications.NopPublisher{}
	}
	if deps.Logger == nil {
		deps.Logger = logger.GetDefault()
	}
	return &Controller{
		deps:     deps,
		deviceID: deviceID,
		templeID: templeID,
		key:      bookings.LedgerKey(deviceID, templeID),
		state:    StateNoBooking,
		lastUsed: deps.Clock.Now(),
	}
}

// begin claims the session for one action or fails fast
func (c *Controller) begin() error {
	if !c.op.TryLock() {
		return ErrOperationInFlight
	}
	c.mu.Lock()
	c.busy = true
	c.mu.Unlock()
	return nil
}

func (c *Controller) end() {
	c.mu.Lock()
	c.busy = false
	c.lastUsed = c.deps.Clock.Now()
	c.mu.Unlock()
	c.op.Unlock()
}

func (c *Controller) touch(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if now.After(c.lastUsed) {
		c.lastUsed = now
	}
}

// empty reports whether the session holds nothing a rebuild would lose
func (c *Controller) empty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateNoBooking && c.notice == "" && c.receipt == nil
}

// idleSince reports when the session last finished an action, and false
// while one is running
func (c *Controller) idleSince() (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastUsed, !c.busy
}

// requireState is called with op held
func (c *Controller) requireState(op string, allowed ...State) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range allowed {
		if c.state == s {
			return nil
		}
	}
	return &InvalidTransitionError{From: c.state, Op: op}
}

// State returns a snapshot of the session
func (c *Controller) State() Snapshot {
	c.mu.Lock()
	snap := Snapshot{
		State:         c.state,
		TempleID:      c.templeID,
		Busy:          c.busy,
		PaymentFailed: c.paymentFailed || c.receipt != nil,
		Notice:        c.notice,
	}
	if c.slot != nil {
		snap.SlotTime = c.slot.Time
	}
	if c.tier != nil {
		tier := *c.tier
		snap.Tier = &tier
		partySize := 1
		if c.visitor != nil && c.visitor.PartySize > 0 {
			partySize = c.visitor.PartySize
		}
		quote := payments.QuoteFor(tier, partySize)
		snap.Quote = &quote
	}
	var booking *bookings.Booking
	if c.booking != nil {
		b := *c.booking
		booking = &b
	}
	c.mu.Unlock()

	if booking != nil {
		snap.Booking = booking
		snap.SlotTime = booking.SlotTime
		if decision, err := c.deps.Ledger.RefundDecision(booking); err == nil {
			snap.RefundIfLeft = &decision
		}
	}
	return snap
}

// TakeNotice returns the pending one-time notice and clears it
func (c *Controller) TakeNotice() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := c.notice
	c.notice = ""
	return n
}

// LoadPersistedBooking resyncs with storage. A used pass expires the
// booking and an unreadable record is discarded; both end in NoBooking.
func (c *Controller) LoadPersistedBooking(ctx context.Context) error {
	if err := c.begin(); err != nil {
		return err
	}
	defer c.end()

	c.mu.Lock()
	selecting := c.state == StateAwaitingTierSelection || c.state == StateAwaitingPayment
	c.mu.Unlock()
	if selecting {
		return nil
	}

	b, err := c.deps.Ledger.Active(ctx, c.key)
	switch {
	case errors.Is(err, bookings.ErrNoActiveBooking):
		c.reset()
		return nil
	case errors.Is(err, bookings.ErrPersistenceRead):
		c.deps.Logger.WarnContext(ctx, "Discarding unreadable booking", slog.String("key", c.key), slog.String("error", err.Error()))
		if err := c.deps.Ledger.Clear(ctx, c.key); err != nil {
			return err
		}
		c.reset()
		return nil
	case err != nil:
		return err
	}

	if err := c.checkPass(ctx, b); err != nil {
		if errors.Is(err, passes.ErrUsedPass) {
			return nil
		}
		return err
	}

	c.mu.Lock()
	c.state = StateActive
	c.booking = b
	c.mu.Unlock()
	return nil
}

// SelectSlot picks a slot with at least one tier that has room
func (c *Controller) SelectSlot(ctx context.Context, slotTime string) error {
	if err := c.begin(); err != nil {
		return err
	}
	defer c.end()

	if err := c.requireState("select a slot", StateNoBooking, StateAwaitingTierSelection, StateAwaitingPayment); err != nil {
		return err
	}
	if err := c.requireNoReceipt("select a slot"); err != nil {
		return err
	}

	slot, err := c.findSlot(ctx, slotTime)
	if err != nil {
		return err
	}
	if err := temples.CheckSlot(slot); err != nil {
		return err
	}

	c.mu.Lock()
	c.state = StateAwaitingTierSelection
	c.slot = &slot
	c.tier = nil
	c.paymentFailed = false
	c.mu.Unlock()
	return nil
}

// SelectTier picks a tier that still has room in the selected slot
func (c *Controller) SelectTier(ctx context.Context, tierID string) error {
	if err := c.begin(); err != nil {
		return err
	}
	defer c.end()

	if err := c.requireState("select a tier", StateAwaitingTierSelection, StateAwaitingPayment); err != nil {
		return err
	}
	if err := c.requireNoReceipt("select a tier"); err != nil {
		return err
	}

	temple, err := c.deps.Temples.GetTemple(ctx, c.templeID)
	if err != nil {
		return err
	}
	tier, err := temple.Tier(tierID)
	if err != nil {
		return err
	}

	c.mu.Lock()
	slotTime := c.slot.Time
	c.mu.Unlock()

	// Re-read capacity; the slot may have filled since it was selected
	slot, err := c.findSlot(ctx, slotTime)
	if err != nil {
		return err
	}
	if err := temples.CheckTier(slot, tier.ID); err != nil {
		return err
	}

	c.mu.Lock()
	c.state = StateAwaitingPayment
	c.slot = &slot
	c.tier = &tier
	c.paymentFailed = false
	c.mu.Unlock()
	return nil
}

// Pay charges for the selected tier and, on success, creates the booking
func (c *Controller) Pay(ctx context.Context, visitor payments.VisitorDetails, partySize int) (*bookings.Booking, error) {
	if err := c.begin(); err != nil {
		return nil, err
	}
	defer c.end()

	if err := c.requireState("pay", StateAwaitingPayment); err != nil {
		return nil, err
	}
	return c.pay(ctx, visitor, partySize)
}

// RetryPayment repeats the last failed attempt with the same visitor. When
// the charge went through but the booking was not recorded, only the
// booking is retried.
func (c *Controller) RetryPayment(ctx context.Context) (*bookings.Booking, error) {
	if err := c.begin(); err != nil {
		return nil, err
	}
	defer c.end()

	if err := c.requireState("retry payment", StateAwaitingPayment); err != nil {
		return nil, err
	}

	c.mu.Lock()
	visitor := c.visitor
	failed := c.paymentFailed || c.receipt != nil
	c.mu.Unlock()
	if visitor == nil || !failed {
		return nil, &InvalidTransitionError{From: StateAwaitingPayment, Op: "retry payment without a declined attempt"}
	}
	return c.pay(ctx, *visitor, visitor.PartySize)
}

// CancelPaymentFlow abandons slot and tier selection
func (c *Controller) CancelPaymentFlow(ctx context.Context) error {
	if err := c.begin(); err != nil {
		return err
	}
	defer c.end()

	if err := c.requireState("cancel payment", StateAwaitingTierSelection, StateAwaitingPayment); err != nil {
		return err
	}
	c.mu.Lock()
	receipt := c.receipt
	c.mu.Unlock()
	if receipt != nil {
		c.deps.Logger.WarnContext(ctx, "Abandoning a charged payment without a booking",
			slog.String("payment_id", receipt.PaymentID), slog.Int("amount", receipt.Amount), slog.String("temple_id", c.templeID))
	}
	c.reset()
	return nil
}

func (c *Controller) requireNoReceipt(op string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.receipt != nil {
		return &InvalidTransitionError{From: c.state, Op: op + " while a completed payment awaits its booking"}
	}
	return nil
}

// pay runs the charge and booking creation detached from ctx cancellation,
// so an abandoned request still lands in a definite state. A receipt kept
// from an earlier attempt is reused instead of charging again.
func (c *Controller) pay(ctx context.Context, visitor payments.VisitorDetails, partySize int) (*bookings.Booking, error) {
	ctx = context.WithoutCancel(ctx)

	c.mu.Lock()
	slot := *c.slot
	tier := *c.tier
	receipt := c.receipt
	if receipt != nil && c.visitor != nil {
		visitor = *c.visitor
		partySize = c.visitor.PartySize
	}
	c.mu.Unlock()

	var err error
	if receipt == nil {
		receipt, err = c.deps.Payments.AttemptPayment(ctx, tier, partySize, visitor)
	}
	if err != nil {
		var verr *payments.ValidationError
		if errors.As(err, &verr) {
			return nil, err
		}

		visitor.PartySize = partySize
		c.mu.Lock()
		c.visitor = &visitor
		c.paymentFailed = errors.Is(err, payments.ErrPaymentDeclined)
		c.mu.Unlock()
		if errors.Is(err, payments.ErrPaymentDeclined) {
			c.deps.Logger.LogPaymentDeclined(ctx, c.templeID, tier.ID, payments.QuoteFor(tier, partySize).Total)
		}
		return nil, err
	}

	visitor.PartySize = partySize
	b, err := c.deps.Ledger.CreateBooking(ctx, c.key, c.templeID, slot, tier, visitor, receipt)
	if err != nil {
		c.mu.Lock()
		c.visitor = &visitor
		c.receipt = receipt
		c.paymentFailed = false
		c.mu.Unlock()
		c.deps.Logger.ErrorWithContext(ctx, "Payment succeeded but booking failed", err, map[string]interface{}{
			"payment_id": receipt.PaymentID,
			"temple_id":  c.templeID,
		})
		return nil, fmt.Errorf("payment %s succeeded but booking failed: %w", receipt.PaymentID, err)
	}

	c.mu.Lock()
	c.state = StateActive
	c.booking = b
	c.slot = nil
	c.tier = nil
	c.visitor = nil
	c.paymentFailed = false
	c.receipt = nil
	c.mu.Unlock()

	c.deps.Logger.LogBookingCreated(ctx, b.BookingID, b.TempleID, b.SlotTime, b.AmountCharged)
	event := c.newEvent(notifications.EventBookingCreated, b)
	c.publish(ctx, event)

	out := *b
	return &out, nil
}

// Refresh advances the queue position after the refresh latency
func (c *Controller) Refresh(ctx context.Context) (*bookings.Booking, error) {
	if err := c.begin(); err != nil {
		return nil, err
	}
	defer c.end()

	if err := c.requireState("refresh", StateActive); err != nil {
		return nil, err
	}
	if _, err := c.active(ctx); err != nil {
		return nil, err
	}

	select {
	case <-c.deps.Clock.After(c.deps.RefreshLatency):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	b, err := c.deps.Ledger.RefreshPosition(ctx, c.key)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.booking = b
	c.mu.Unlock()

	out := *b
	return &out, nil
}

// Leave ends the booking with a refund decision, or moves it to
// req.NewSlot when the reason is a slot change
func (c *Controller) Leave(ctx context.Context, req LeaveRequest) (*LeaveOutcome, error) {
	if err := c.begin(); err != nil {
		return nil, err
	}
	defer c.end()

	if err := c.requireState("leave", StateActive); err != nil {
		return nil, err
	}
	if !req.Reason.valid() {
		return nil, &payments.ValidationError{Field: "reason", Reason: fmt.Sprintf("unknown leave reason %q", req.Reason)}
	}
	if req.Reason == ReasonOther && strings.TrimSpace(req.Details) == "" {
		return nil, &payments.ValidationError{Field: "details", Reason: "please describe the reason"}
	}

	current, err := c.active(ctx)
	if err != nil {
		return nil, err
	}

	if req.Reason.IsReschedule() {
		return c.reschedule(ctx, current, req.NewSlot)
	}

	left, decision, err := c.deps.Ledger.Leave(ctx, c.key)
	if err != nil {
		return nil, err
	}
	c.reset()

	c.deps.Logger.LogBookingLeft(ctx, left.BookingID, string(req.Reason), decision.Amount, string(decision.Tier))
	event := c.newEvent(notifications.EventBookingLeft, left)
	event.Reason = string(req.Reason)
	event.ReasonDetails = strings.TrimSpace(req.Details)
	event.RefundAmount = decision.Amount
	event.RefundTier = string(decision.Tier)
	c.publish(ctx, event)

	return &LeaveOutcome{Status: left.Status, Booking: left, Refund: &decision}, nil
}

func (c *Controller) reschedule(ctx context.Context, current *bookings.Booking, newSlotTime string) (*LeaveOutcome, error) {
	if newSlotTime == "" {
		return nil, &payments.ValidationError{Field: "newSlot", Reason: "choose a new time slot"}
	}
	if newSlotTime == current.SlotTime {
		return nil, &payments.ValidationError{Field: "newSlot", Reason: "new slot must differ from the current slot"}
	}

	slot, err := c.findSlot(ctx, newSlotTime)
	if err != nil {
		return nil, err
	}

	next, err := c.deps.Ledger.Reschedule(ctx, c.key, slot)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.state = StateActive
	c.booking = next
	c.mu.Unlock()

	c.deps.Logger.LogBookingRescheduled(ctx, current.BookingID, next.BookingID, next.SlotTime)
	event := c.newEvent(notifications.EventBookingRescheduled, next)
	event.PreviousBookingID = current.BookingID
	event.Reason = string(ReasonChangeSlot)
	c.publish(ctx, event)

	out := *next
	return &LeaveOutcome{Status: bookings.StatusRescheduled, Booking: &out}, nil
}

// Pass returns the active booking's pass. A pass found used expires the
// session.
func (c *Controller) Pass(ctx context.Context) (*passes.Pass, error) {
	if err := c.begin(); err != nil {
		return nil, err
	}
	defer c.end()

	if err := c.requireState("view the pass", StateActive); err != nil {
		return nil, err
	}
	current, err := c.active(ctx)
	if err != nil {
		return nil, err
	}

	temple, err := c.deps.Temples.GetTemple(ctx, c.templeID)
	if err != nil {
		return nil, err
	}
	return c.deps.Passes.Pass(ctx, current, temple)
}

// active re-reads the booking from the ledger, which is authoritative. A
// booking the ledger no longer holds, or whose pass was used, ends the
// session.
func (c *Controller) active(ctx context.Context) (*bookings.Booking, error) {
	cached := c.current()
	b, err := c.deps.Ledger.Active(ctx, c.key)
	if errors.Is(err, bookings.ErrNoActiveBooking) {
		if err := c.expire(ctx, cached, fmt.Sprintf("Booking %s has ended. You can book again.", cached.BookingID)); err != nil {
			return nil, err
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	if err := c.checkPass(ctx, b); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.booking = b
	c.mu.Unlock()
	out := *b
	return &out, nil
}

// checkPass expires the session when b's pass has been consumed elsewhere
func (c *Controller) checkPass(ctx context.Context, b *bookings.Booking) error {
	used, err := c.deps.Passes.IsUsed(ctx, b.BookingID)
	if err != nil {
		return err
	}
	if !used {
		return nil
	}

	notice := fmt.Sprintf("The pass for booking %s has already been used. Your session was cleared; you can book again.", b.BookingID)
	if err := c.expire(ctx, b, notice); err != nil {
		return err
	}
	return fmt.Errorf("booking %s: %w", b.BookingID, passes.ErrUsedPass)
}

// expire clears b from the ledger and the session, leaving notice for the
// next read
func (c *Controller) expire(ctx context.Context, b *bookings.Booking, notice string) error {
	if err := c.deps.Ledger.Clear(ctx, c.key); err != nil {
		return err
	}
	c.reset()
	c.mu.Lock()
	c.notice = notice
	c.mu.Unlock()

	c.deps.Logger.LogSessionExpired(ctx, b.BookingID, b.TempleID)
	expired := *b
	expired.Status = bookings.StatusExpired
	c.publish(ctx, c.newEvent(notifications.EventBookingExpired, &expired))
	return nil
}

func (c *Controller) findSlot(ctx context.Context, slotTime string) (temples.Slot, error) {
	slots, err := c.deps.Temples.GetSlots(ctx, c.templeID)
	if err != nil {
		return temples.Slot{}, err
	}
	return temples.FindSlot(slots, slotTime)
}

func (c *Controller) current() *bookings.Booking {
	c.mu.Lock()
	defer c.mu.Unlock()
	b := *c.booking
	return &b
}

func (c *Controller) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateNoBooking
	c.slot = nil
	c.tier = nil
	c.visitor = nil
	c.paymentFailed = false
	c.receipt = nil
	c.booking = nil
}

func (c *Controller) newEvent(eventType notifications.EventType, b *bookings.Booking) *notifications.LifecycleEvent {
	event := notifications.NewLifecycleEvent(eventType, b.BookingID, b.TempleID, c.deps.Clock.Now())
	event.DeviceID = c.deviceID
	event.SlotTime = b.SlotTime
	event.TierID = b.Tier.ID
	event.Amount = b.AmountCharged
	event.QueuePosition = b.QueuePosition
	return event
}

// publish never fails the transition that produced the event
func (c *Controller) publish(ctx context.Context, event *notifications.LifecycleEvent) {
	if err := c.deps.Events.Publish(ctx, event); err != nil {
		c.deps.Logger.ErrorWithContext(ctx, "Failed to publish lifecycle event", err, map[string]interface{}{
			"event_type": string(event.Type),
			"booking_id": event.BookingID,
		})
	}
}
