package temples

import (
	"context"
	"errors"
	"testing"
)

func TestSlotStatus(t *testing.T) {
	tests := []struct {
		name   string
		slot   Slot
		want   SlotStatus
		hasRow bool
	}{
		{
			name:   "available",
			slot:   Slot{Time: "06:00", CapacityByTier: map[string]int{"free": 10}, BookedByTier: map[string]int{"free": 7}},
			want:   SlotStatusAvailable,
			hasRow: true,
		},
		{
			name:   "filling at 80 percent",
			slot:   Slot{Time: "06:00", CapacityByTier: map[string]int{"free": 10}, BookedByTier: map[string]int{"free": 8}},
			want:   SlotStatusFilling,
			hasRow: true,
		},
		{
			name:   "full",
			slot:   Slot{Time: "06:00", CapacityByTier: map[string]int{"free": 5, "vip": 5}, BookedByTier: map[string]int{"free": 5, "vip": 5}},
			want:   SlotStatusFull,
			hasRow: false,
		},
		{
			name:   "no capacity",
			slot:   Slot{Time: "06:00"},
			want:   SlotStatusFull,
			hasRow: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.slot.Status(); got != tt.want {
				t.Errorf("Status() = %v, want %v", got, tt.want)
			}
			if got := tt.slot.HasAvailability(); got != tt.hasRow {
				t.Errorf("HasAvailability() = %v, want %v", got, tt.hasRow)
			}
		})
	}
}

func TestCheckTierAndSlot(t *testing.T) {
	s := Slot{
		Time:           "19:00",
		CapacityByTier: map[string]int{"premium": 2, "vip": 1},
		BookedByTier:   map[string]int{"premium": 1, "vip": 1},
	}
	if err := CheckSlot(s); err != nil {
		t.Fatalf("CheckSlot = %v, want nil", err)
	}
	if err := CheckTier(s, "premium"); err != nil {
		t.Fatalf("CheckTier(premium) = %v, want nil", err)
	}

	err := CheckTier(s, "vip")
	if !errors.Is(err, ErrTierFull) {
		t.Fatalf("CheckTier(vip) = %v, want ErrTierFull", err)
	}
	var capErr *CapacityError
	if !errors.As(err, &capErr) || capErr.TierID != "vip" || capErr.SlotTime != "19:00" {
		t.Fatalf("CheckTier(vip) error = %#v", err)
	}

	s.BookedByTier["premium"] = 2
	if err := CheckSlot(s); !errors.Is(err, ErrSlotFull) {
		t.Fatalf("CheckSlot on full slot = %v, want ErrSlotFull", err)
	}
}

func TestDefaultCatalogInvariants(t *testing.T) {
	ctx := context.Background()
	c := DefaultCatalog()

	list, err := c.ListTemples(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 4 {
		t.Fatalf("ListTemples returned %d temples, want 4", len(list))
	}

	for _, temple := range list {
		if len(temple.PricingTiers) != 5 || len(temple.ParkingZones) != 3 {
			t.Errorf("%s: tiers=%d zones=%d", temple.ID, len(temple.PricingTiers), len(temple.ParkingZones))
		}
		slots, err := c.GetSlots(ctx, temple.ID)
		if err != nil {
			t.Fatalf("GetSlots(%s): %v", temple.ID, err)
		}
		for _, s := range slots {
			for tierID, capacity := range s.CapacityByTier {
				booked := s.BookedByTier[tierID]
				if booked < 0 || booked > capacity {
					t.Errorf("%s %s %s: booked %d capacity %d", temple.ID, s.Time, tierID, booked, capacity)
				}
			}
		}
	}
}

func TestSomnathEveningSlot(t *testing.T) {
	ctx := context.Background()
	slots, err := DefaultCatalog().GetSlots(ctx, "somnath")
	if err != nil {
		t.Fatal(err)
	}
	evening, err := FindSlot(slots, "19:00")
	if err != nil {
		t.Fatal(err)
	}
	if evening.TotalCapacity() != 100 || evening.TotalBooked() != 85 {
		t.Fatalf("19:00 capacity=%d booked=%d, want 100/85", evening.TotalCapacity(), evening.TotalBooked())
	}
	if evening.Status() != SlotStatusFilling {
		t.Errorf("19:00 status = %v, want filling", evening.Status())
	}
	if evening.Remaining(TierPremium) < 1 {
		t.Errorf("19:00 premium should have room, remaining=%d", evening.Remaining(TierPremium))
	}
	if evening.Remaining(TierVIP) != 0 {
		t.Errorf("19:00 vip remaining = %d, want 0", evening.Remaining(TierVIP))
	}

	morning, err := FindSlot(slots, "08:00")
	if err != nil {
		t.Fatal(err)
	}
	if morning.HasAvailability() {
		t.Error("08:00 should be fully booked")
	}

	if _, err := FindSlot(slots, "23:00"); !errors.Is(err, ErrSlotNotFound) {
		t.Errorf("FindSlot(23:00) = %v, want ErrSlotNotFound", err)
	}
}

func TestCatalogReturnsCopies(t *testing.T) {
	ctx := context.Background()
	c := DefaultCatalog()
	slots, _ := c.GetSlots(ctx, "somnath")
	slots[0].BookedByTier[TierFree] = 9999

	again, _ := c.GetSlots(ctx, "somnath")
	if again[0].BookedByTier[TierFree] == 9999 {
		t.Fatal("mutating returned slots changed the catalog")
	}
}

func TestTempleTierLookup(t *testing.T) {
	temple, err := DefaultCatalog().GetTemple(context.Background(), "dwarka")
	if err != nil {
		t.Fatal(err)
	}
	tier, err := temple.Tier(TierPremium)
	if err != nil || tier.Price != 100 {
		t.Fatalf("Tier(premium) = %+v, %v", tier, err)
	}
	if _, err := temple.Tier("gold"); !errors.Is(err, ErrTierNotFound) {
		t.Fatalf("Tier(gold) = %v, want ErrTierNotFound", err)
	}
	if _, err := DefaultCatalog().GetTemple(context.Background(), "nowhere"); !errors.Is(err, ErrTempleNotFound) {
		t.Fatalf("GetTemple(nowhere) = %v, want ErrTempleNotFound", err)
	}
}

func TestSeedCopiesCatalog(t *testing.T) {
	ctx := context.Background()
	dst := NewCatalog()

	n, err := Seed(ctx, dst, DefaultCatalog())
	if err != nil {
		t.Fatal(err)
	}
	if n != 4 {
		t.Fatalf("seeded %d temples, want 4", n)
	}
	slots, err := dst.GetSlots(ctx, "ambaji")
	if err != nil {
		t.Fatal(err)
	}
	if len(slots) != 12 {
		t.Errorf("ambaji slots = %d, want 12", len(slots))
	}
}
