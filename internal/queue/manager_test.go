package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"templeq/internal/temples"
)

// blockingTemples stalls GetTemple for one temple until released
type blockingTemples struct {
	temples.Store
	block   string
	entered chan struct{}
	release chan struct{}
}

func (s *blockingTemples) GetTemple(ctx context.Context, id string) (*temples.Temple, error) {
	if id == s.block {
		s.entered <- struct{}{}
		<-s.release
	}
	return s.Store.GetTemple(ctx, id)
}

func TestSweepEvictsIdleSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	active := f.session(t, device, "somnath")
	b := book(t, active, "19:00", temples.TierPremium)
	f.session(t, "browsing-device", "somnath")
	if n := f.sessions.Len(); n != 2 {
		t.Fatalf("Len() = %d, want 2", n)
	}

	f.clock.Advance(2 * time.Minute)
	if removed := f.sessions.Sweep(f.clock.Now()); removed != 1 {
		t.Fatalf("first Sweep() removed %d, want the empty session only", removed)
	}

	f.clock.Advance(DefaultIdleTTL)
	if removed := f.sessions.Sweep(f.clock.Now()); removed != 1 {
		t.Fatalf("second Sweep() removed %d, want 1", removed)
	}
	if n := f.sessions.Len(); n != 0 {
		t.Fatalf("Len() = %d after sweeping everything", n)
	}

	// Evicted sessions come back from the ledger
	rebuilt, err := f.sessions.Session(ctx, device, "somnath")
	if err != nil {
		t.Fatal(err)
	}
	if rebuilt == active {
		t.Fatal("Session() returned the evicted controller")
	}
	snap := rebuilt.State()
	if snap.State != StateActive || snap.Booking.BookingID != b.BookingID {
		t.Fatalf("rebuilt session = %+v", snap)
	}
}

func TestSweepKeepsBusyAndRecentSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	busy := f.session(t, device, "somnath")
	book(t, busy, "19:00", temples.TierPremium)
	selecting := f.session(t, device, "dwarka")
	if err := selecting.SelectSlot(ctx, "19:00"); err != nil {
		t.Fatal(err)
	}

	if err := busy.begin(); err != nil {
		t.Fatal(err)
	}
	f.clock.Advance(10 * time.Minute)
	if removed := f.sessions.Sweep(f.clock.Now()); removed != 0 {
		t.Fatalf("Sweep() removed %d, want a busy session and a recent selection kept", removed)
	}
	busy.end()

	// Ending the action counts as use
	f.clock.Advance(DefaultIdleTTL - time.Minute)
	if removed := f.sessions.Sweep(f.clock.Now()); removed != 1 {
		t.Fatalf("Sweep() removed %d, want only the stale selection", removed)
	}
	if got := f.session(t, device, "somnath"); got != busy {
		t.Error("recently used session was evicted")
	}
}

func TestSweepIdleTTLOption(t *testing.T) {
	f := newFixture(t)
	m := NewManager(f.deps, WithIdleTTL(5*time.Minute))
	c, err := m.Session(context.Background(), device, "somnath")
	if err != nil {
		t.Fatal(err)
	}
	book(t, c, "19:00", temples.TierPremium)

	f.clock.Advance(4 * time.Minute)
	if removed := m.Sweep(f.clock.Now()); removed != 0 {
		t.Fatalf("Sweep() removed %d before the ttl", removed)
	}
	f.clock.Advance(time.Minute)
	job := NewSweepJob(m, time.Minute)
	if removed := job.RunOnce(context.Background()); removed != 1 {
		t.Fatalf("RunOnce() removed %d, want 1", removed)
	}
}

func TestSessionLoadsOutsideManagerLock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cached := f.session(t, device, "somnath")

	slow := &blockingTemples{
		Store:   f.catalog,
		block:   "dwarka",
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	f.sessions.deps.Temples = slow

	done := make(chan error, 1)
	go func() {
		_, err := f.sessions.Session(ctx, device, "dwarka")
		done <- err
	}()
	<-slow.entered

	got := make(chan *Controller, 1)
	go func() {
		c, _ := f.sessions.Session(ctx, device, "somnath")
		got <- c
	}()
	select {
	case c := <-got:
		if c != cached {
			t.Error("Session() returned a different controller for a cached session")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("a cached session waited on another session's load")
	}

	close(slow.release)
	if err := <-done; err != nil {
		t.Fatalf("slow Session() error = %v", err)
	}
}

func TestConcurrentFirstSessionSharesOneController(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const callers = 8
	var wg sync.WaitGroup
	out := make([]*Controller, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := f.sessions.Session(ctx, device, "ambaji")
			if err != nil {
				t.Error(err)
				return
			}
			out[i] = c
		}(i)
	}
	wg.Wait()

	for i := 1; i < callers; i++ {
		if out[i] != out[0] {
			t.Fatalf("caller %d got a different controller", i)
		}
	}
	if n := f.sessions.Len(); n != 1 {
		t.Errorf("Len() = %d, want 1", n)
	}
}
