package queue

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	// DefaultIdleTTL is how long an untouched session is kept in memory
	DefaultIdleTTL = 30 * time.Minute

	// emptyIdleTTL applies to sessions holding nothing but NoBooking
	emptyIdleTTL = time.Minute
)

// Manager hands out one Controller per device and temple. Sessions are a
// cache over the ledger: an evicted session is rebuilt from storage on the
// next request.
type Manager struct {
	deps    Deps
	idleTTL time.Duration
	loads   singleflight.Group

	mu       sync.Mutex
	sessions map[string]*Controller
}

// ManagerOption configures a Manager
type ManagerOption func(*Manager)

// WithIdleTTL sets how long an untouched session stays in memory
func WithIdleTTL(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.idleTTL = d
		}
	}
}

func NewManager(deps Deps, opts ...ManagerOption) *Manager {
	m := &Manager{deps: deps, idleTTL: DefaultIdleTTL, sessions: make(map[string]*Controller)}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Session returns the device's controller for a temple, creating it and
// loading any persisted booking on first use. Storage is read outside the
// manager lock; concurrent first requests share one load.
func (m *Manager) Session(ctx context.Context, deviceID, templeID string) (*Controller, error) {
	key := deviceID + "/" + templeID
	if c := m.lookup(key); c != nil {
		return c, nil
	}

	v, err, _ := m.loads.Do(key, func() (interface{}, error) {
		if c := m.lookup(key); c != nil {
			return c, nil
		}
		if _, err := m.deps.Temples.GetTemple(ctx, templeID); err != nil {
			return nil, err
		}
		c := NewController(m.deps, deviceID, templeID)
		if err := c.LoadPersistedBooking(ctx); err != nil {
			return nil, err
		}

		m.mu.Lock()
		defer m.mu.Unlock()
		m.sessions[key] = c
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Controller), nil
}

func (m *Manager) lookup(key string) *Controller {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.sessions[key]
	if !ok {
		return nil
	}
	c.touch(m.now())
	return c
}

// Sweep evicts idle sessions and returns how many went. A session with an
// action in flight is never evicted.
func (m *Manager) Sweep(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for key, c := range m.sessions {
		lastUsed, idle := c.idleSince()
		if !idle {
			continue
		}
		ttl := m.idleTTL
		if c.empty() {
			ttl = min(ttl, emptyIdleTTL)
		}
		if now.Sub(lastUsed) >= ttl {
			delete(m.sessions, key)
			removed++
		}
	}
	return removed
}

// Len reports how many sessions are held in memory
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) now() time.Time {
	if m.deps.Clock == nil {
		return time.Now()
	}
	return m.deps.Clock.Now()
}
