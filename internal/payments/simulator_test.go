package payments

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"templeq/internal/temples"
	"templeq/pkg/clock"
)

var (
	epoch   = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	free    = temples.Tier{ID: "free", Price: 0}
	regular = temples.Tier{ID: "regular", Price: 50}
	premium = temples.Tier{ID: "premium", Price: 100}
	visitor = VisitorDetails{Name: "Asha Patel", PhoneNumber: "9876543210", Email: "asha@example.com"}
)

func fixedRand(values ...float64) func() float64 {
	i := 0
	return func() float64 {
		v := values[i%len(values)]
		i++
		return v
	}
}

func TestQuoteFor(t *testing.T) {
	tests := []struct {
		tier      temples.Tier
		partySize int
		wantTax   int
		wantTotal int
	}{
		{premium, 2, 18, 256},
		{premium, 1, 18, 128},
		{regular, 1, 9, 69},
		{temples.Tier{ID: "vip", Price: 200}, 3, 36, 738},
		{temples.Tier{ID: "odd", Price: 75}, 2, 14, 198},
		{free, 4, 0, 0},
	}
	for _, tt := range tests {
		q := QuoteFor(tt.tier, tt.partySize)
		if q.ServiceTax != tt.wantTax || q.Total != tt.wantTotal {
			t.Errorf("QuoteFor(%s, %d) = tax %d total %d, want %d / %d",
				tt.tier.ID, tt.partySize, q.ServiceTax, q.Total, tt.wantTax, tt.wantTotal)
		}
		wantFee := 10
		if tt.tier.Price == 0 {
			wantFee = 0
		}
		if q.BookingFee != wantFee {
			t.Errorf("QuoteFor(%s) fee = %d, want %d", tt.tier.ID, q.BookingFee, wantFee)
		}
	}
}

func TestFreeTierAlwaysSucceeds(t *testing.T) {
	sim := NewSimulator(SimulatorConfig{
		Latency:     time.Hour,
		SuccessRate: 0,
		Rand:        func() float64 { t.Fatal("free tier must not draw randomness"); return 0 },
	}, clock.Fake(epoch))

	for party := 1; party <= 10; party++ {
		receipt, err := sim.AttemptPayment(context.Background(), free, party, visitor)
		if err != nil {
			t.Fatalf("party %d: %v", party, err)
		}
		if receipt.Amount != 0 {
			t.Fatalf("party %d: amount %d, want 0", party, receipt.Amount)
		}
	}
}

func TestPaidTierWaitsForLatency(t *testing.T) {
	fake := clock.Fake(epoch)
	sim := NewSimulator(SimulatorConfig{Latency: 3 * time.Second, SuccessRate: 0.9, Rand: fixedRand(0.5)}, fake)

	type result struct {
		receipt *Receipt
		err     error
	}
	done := make(chan result, 1)
	go func() {
		r, err := sim.AttemptPayment(context.Background(), premium, 2, visitor)
		done <- result{r, err}
	}()

	deadline := time.Now().Add(2 * time.Second)
	for fake.Pending() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("payment never started waiting")
		}
		time.Sleep(time.Millisecond)
	}
	select {
	case <-done:
		t.Fatal("payment finished before latency elapsed")
	default:
	}

	fake.Advance(3 * time.Second)
	res := <-done
	if res.err != nil {
		t.Fatal(res.err)
	}
	if res.receipt.Amount != 256 {
		t.Errorf("Amount = %d, want 256", res.receipt.Amount)
	}
	if !strings.HasPrefix(res.receipt.PaymentID, "PAY") {
		t.Errorf("PaymentID = %q", res.receipt.PaymentID)
	}
}

func TestDeclineThenRetryMintsNewPaymentID(t *testing.T) {
	sim := NewSimulator(SimulatorConfig{SuccessRate: 0.9, Rand: fixedRand(0.95, 0.1, 0.2)}, clock.Fake(epoch))
	ctx := context.Background()

	if _, err := sim.AttemptPayment(ctx, premium, 1, visitor); !errors.Is(err, ErrPaymentDeclined) {
		t.Fatalf("first attempt = %v, want ErrPaymentDeclined", err)
	}
	first, err := sim.AttemptPayment(ctx, premium, 1, visitor)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	second, err := sim.AttemptPayment(ctx, premium, 1, visitor)
	if err != nil {
		t.Fatalf("second retry: %v", err)
	}
	if first.PaymentID == second.PaymentID {
		t.Fatalf("payment ids should differ, both %q", first.PaymentID)
	}
}

func TestAttemptPaymentRespectsContext(t *testing.T) {
	sim := NewSimulator(SimulatorConfig{Latency: time.Hour, SuccessRate: 1}, clock.Fake(epoch))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := sim.AttemptPayment(ctx, premium, 1, visitor); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestValidationFailsBeforeCharge(t *testing.T) {
	sim := NewSimulator(SimulatorConfig{
		SuccessRate: 1,
		Rand:        func() float64 { t.Fatal("no charge attempt expected"); return 0 },
	}, clock.Fake(epoch))

	tests := []struct {
		name      string
		visitor   VisitorDetails
		partySize int
		field     string
	}{
		{"short name", VisitorDetails{Name: "Al", PhoneNumber: "9876543210"}, 1, "name"},
		{"digits in name", VisitorDetails{Name: "R2D2 Unit", PhoneNumber: "9876543210"}, 1, "name"},
		{"missing name", VisitorDetails{PhoneNumber: "9876543210"}, 1, "name"},
		{"phone starts with 5", VisitorDetails{Name: "Asha", PhoneNumber: "5876543210"}, 1, "phoneNumber"},
		{"phone too short", VisitorDetails{Name: "Asha", PhoneNumber: "98765"}, 1, "phoneNumber"},
		{"bad email", VisitorDetails{Name: "Asha", PhoneNumber: "9876543210", Email: "nope"}, 1, "email"},
		{"empty party", VisitorDetails{Name: "Asha", PhoneNumber: "9876543210"}, 0, "partySize"},
		{"party too large", VisitorDetails{Name: "Asha", PhoneNumber: "9876543210"}, 11, "partySize"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := sim.AttemptPayment(context.Background(), premium, tt.partySize, tt.visitor)
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("err = %v, want *ValidationError", err)
			}
			if vErr.Field != tt.field {
				t.Fatalf("Field = %q, want %q (%s)", vErr.Field, tt.field, vErr.Reason)
			}
		})
	}
}

func TestValidVisitorWithDotsAndNoEmail(t *testing.T) {
	v := VisitorDetails{Name: "Dr. K. Mehta", PhoneNumber: "6000000000", PartySize: 10}
	if err := ValidateVisitor(v); err != nil {
		t.Fatalf("ValidateVisitor = %v", err)
	}
}
