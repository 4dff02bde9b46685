package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"templeq/internal/bookings"
	"templeq/internal/notifications"
	"templeq/internal/passes"
	"templeq/internal/payments"
	"templeq/internal/temples"
	"templeq/pkg/clock"
	"templeq/pkg/logger"
)

var ist = time.FixedZone("IST", 5*3600+30*60)

// 10:00 IST, nine hours before the 19:00 slots
var morning = time.Date(2026, 10, 3, 10, 0, 0, 0, ist)

type recordingPublisher struct {
	mu     sync.Mutex
	events []*notifications.LifecycleEvent
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, event *notifications.LifecycleEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) types() []notifications.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]notifications.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

func (p *recordingPublisher) last() *notifications.LifecycleEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.events) == 0 {
		return nil
	}
	return p.events[len(p.events)-1]
}

// sequence returns the values in order, then repeats the last one
func sequence(values ...float64) func() float64 {
	var mu sync.Mutex
	i := 0
	return func() float64 {
		mu.Lock()
		defer mu.Unlock()
		v := values[min(i, len(values)-1)]
		i++
		return v
	}
}

type fixture struct {
	clock    *clock.FakeClock
	catalog  *temples.Catalog
	ledger   *bookings.Ledger
	issuer   *passes.Issuer
	events   *recordingPublisher
	deps     Deps
	sessions *Manager
}

type fixtureOption func(*payments.SimulatorConfig)

func withLatency(d time.Duration) fixtureOption {
	return func(c *payments.SimulatorConfig) { c.Latency = d }
}

func withRand(r func() float64) fixtureOption {
	return func(c *payments.SimulatorConfig) { c.Rand = r }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	fc := clock.Fake(morning)
	catalog := temples.DefaultCatalog()
	catalog.Put(temples.Temple{
		ID:           "test-temple",
		Name:         "Test Temple",
		Location:     "Gandhinagar, Gujarat",
		PricingTiers: catalogTiers(t, catalog),
	}, []temples.Slot{
		{
			Time:           "19:00",
			CapacityByTier: map[string]int{temples.TierFree: 10, temples.TierPremium: 5},
			BookedByTier:   map[string]int{temples.TierFree: 3, temples.TierPremium: 5},
		},
		{
			Time:           "20:00",
			CapacityByTier: map[string]int{temples.TierFree: 10, temples.TierPremium: 5},
			BookedByTier:   map[string]int{temples.TierFree: 10, temples.TierPremium: 5},
		},
	})

	simCfg := payments.SimulatorConfig{SuccessRate: 0.9, Rand: func() float64 { return 0 }}
	for _, opt := range opts {
		opt(&simCfg)
	}

	issuer := passes.NewIssuer(passes.NewMemoryUsedStore(), fc, ist, passes.IssuerConfig{
		SigningSecret: "test-secret",
		VerifyBaseURL: "https://temple-app.com/verify/",
		ValidFor:      24 * time.Hour,
		UsedRetention: 72 * time.Hour,
	})
	alloc := bookings.FixedAllocator{Position: 30, Wait: 20, RescheduledPosition: 8, RescheduledWait: 12, Step: 2}
	ledger := bookings.NewLedger(bookings.NewMemoryStore(fc), alloc, fc, ist, issuer)
	events := &recordingPublisher{}

	deps := Deps{
		Temples:  catalog,
		Payments: payments.NewSimulator(simCfg, fc),
		Ledger:   ledger,
		Passes:   issuer,
		Events:   events,
		Clock:    fc,
		Logger:   logger.Discard(),
	}
	return &fixture{
		clock:    fc,
		catalog:  catalog,
		ledger:   ledger,
		issuer:   issuer,
		events:   events,
		deps:     deps,
		sessions: NewManager(deps),
	}
}

func catalogTiers(t *testing.T, c *temples.Catalog) []temples.Tier {
	t.Helper()
	somnath, err := c.GetTemple(context.Background(), "somnath")
	if err != nil {
		t.Fatal(err)
	}
	return somnath.PricingTiers
}

func (f *fixture) session(t *testing.T, deviceID, templeID string) *Controller {
	t.Helper()
	c, err := f.sessions.Session(context.Background(), deviceID, templeID)
	if err != nil {
		t.Fatalf("Session(%s, %s): %v", deviceID, templeID, err)
	}
	return c
}

func ravi() payments.VisitorDetails {
	return payments.VisitorDetails{Name: "Ravi Kumar", PhoneNumber: "9876543210", Email: "ravi@example.com"}
}

// book runs a session from NoBooking to Active
func book(t *testing.T, c *Controller, slotTime, tierID string) *bookings.Booking {
	t.Helper()
	ctx := context.Background()
	if err := c.SelectSlot(ctx, slotTime); err != nil {
		t.Fatalf("SelectSlot(%s): %v", slotTime, err)
	}
	if err := c.SelectTier(ctx, tierID); err != nil {
		t.Fatalf("SelectTier(%s): %v", tierID, err)
	}
	b, err := c.Pay(ctx, ravi(), 1)
	if err != nil {
		t.Fatalf("Pay: %v", err)
	}
	return b
}
