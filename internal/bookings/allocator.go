package bookings

import (
	"math/rand/v2"
	"sync"
)

// Allocator assigns simulated queue positions and wait estimates
type Allocator interface {
	// Initial is used for a freshly paid booking
	Initial() (position, waitMinutes int)
	// Rescheduled is used for a booking moved to a new slot
	Rescheduled() (position, waitMinutes int)
	// Advance returns the next position; it never exceeds the current one
	Advance(position int) int
}

// RandomAllocator draws positions from bounded uniform ranges
type RandomAllocator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomAllocator seeds from the runtime when rng is nil
func NewRandomAllocator(rng *rand.Rand) *RandomAllocator {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &RandomAllocator{rng: rng}
}

// Initial returns a position in [1,50] and a wait in [15,45)
func (a *RandomAllocator) Initial() (int, int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return 1 + a.rng.IntN(50), 15 + a.rng.IntN(30)
}

// Rescheduled returns a position in [1,20] and a wait in [10,25)
func (a *RandomAllocator) Rescheduled() (int, int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return 1 + a.rng.IntN(20), 10 + a.rng.IntN(15)
}

// Advance moves forward by 0 to 2 places, flooring at 1
func (a *RandomAllocator) Advance(position int) int {
	a.mu.Lock()
	step := a.rng.IntN(3)
	a.mu.Unlock()
	return max(1, position-step)
}

// FixedAllocator returns constant values, for deterministic callers
type FixedAllocator struct {
	Position            int
	Wait                int
	RescheduledPosition int
	RescheduledWait     int
	Step                int
}

func (a FixedAllocator) Initial() (int, int) {
	return a.Position, a.Wait
}

func (a FixedAllocator) Rescheduled() (int, int) {
	return a.RescheduledPosition, a.RescheduledWait
}

func (a FixedAllocator) Advance(position int) int {
	return max(1, position-a.Step)
}
