package payments

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"time"

	"templeq/internal/temples"
	"templeq/pkg/clock"

	"github.com/google/uuid"
)

const (
	bookingFee  = 10
	serviceRate = 0.18
)

// QuoteFor prices a tier for a party. Fee and tax apply only to paid tiers
// and the tax is rounded per person before multiplying.
func QuoteFor(tier temples.Tier, partySize int) Quote {
	q := Quote{Base: tier.Price, PartySize: partySize}
	if tier.Price > 0 {
		q.BookingFee = bookingFee
		q.ServiceTax = int(math.Round(float64(tier.Price) * serviceRate))
	}
	q.PerPerson = q.Base + q.BookingFee + q.ServiceTax
	q.Total = q.PerPerson * partySize
	return q
}

// SimulatorConfig controls the simulated gateway
type SimulatorConfig struct {
	Latency     time.Duration
	SuccessRate float64
	// Rand returns a value in [0,1); nil uses math/rand/v2
	Rand func() float64
}

// DefaultSimulatorConfig mirrors the production gateway behaviour
func DefaultSimulatorConfig() SimulatorConfig {
	return SimulatorConfig{
		Latency:     3 * time.Second,
		SuccessRate: 0.9,
	}
}

// Simulator fakes a card payment with latency and a success probability
type Simulator struct {
	config SimulatorConfig
	clock  clock.Clock
}

// NewSimulator creates a new payment simulator
func NewSimulator(config SimulatorConfig, clk clock.Clock) *Simulator {
	if config.Rand == nil {
		config.Rand = rand.Float64
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &Simulator{config: config, clock: clk}
}

// AttemptPayment validates the visitor, prices the tier and simulates a
// charge. Free bookings succeed immediately. Every success mints a new
// payment id.
func (s *Simulator) AttemptPayment(ctx context.Context, tier temples.Tier, partySize int, visitor VisitorDetails) (*Receipt, error) {
	visitor.PartySize = partySize
	if err := ValidateVisitor(visitor); err != nil {
		return nil, err
	}

	quote := QuoteFor(tier, partySize)
	if quote.Total == 0 {
		return s.receipt(quote), nil
	}

	select {
	case <-s.clock.After(s.config.Latency):
	case <-ctx.Done():
		return nil, fmt.Errorf("payment abandoned: %w", ctx.Err())
	}

	if s.config.Rand() >= s.config.SuccessRate {
		return nil, fmt.Errorf("%w: %d for tier %s", ErrPaymentDeclined, quote.Total, tier.ID)
	}
	return s.receipt(quote), nil
}

func (s *Simulator) receipt(q Quote) *Receipt {
	now := s.clock.Now()
	return &Receipt{
		PaymentID:   newPaymentID(now),
		Amount:      q.Total,
		Quote:       q,
		ProcessedAt: now,
	}
}

func newPaymentID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("PAY%d-%s", now.UnixMilli(), suffix)
}
