package temples

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Tier ids shared by every temple
const (
	TierFree    = "free"
	TierRegular = "regular"
	TierPremium = "premium"
	TierVIP     = "vip"
	TierSpecial = "special"
)

var tierOrder = []string{TierFree, TierRegular, TierPremium, TierVIP, TierSpecial}

// Catalog is an in-memory Store seeded with the built-in temples
type Catalog struct {
	mu      sync.RWMutex
	temples map[string]Temple
	slots   map[string][]Slot
}

// NewCatalog creates an empty catalog
func NewCatalog() *Catalog {
	return &Catalog{
		temples: make(map[string]Temple),
		slots:   make(map[string][]Slot),
	}
}

// Put adds or replaces a temple and its slots
func (c *Catalog) Put(t Temple, slots []Slot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.temples[t.ID] = t
	copied := make([]Slot, len(slots))
	for i, s := range slots {
		copied[i] = s.Clone()
	}
	c.slots[t.ID] = copied
}

// SaveTemple lets a Catalog stand in for a Repository
func (c *Catalog) SaveTemple(ctx context.Context, t Temple, slots []Slot) error {
	c.Put(t, slots)
	return nil
}

func (c *Catalog) ListTemples(ctx context.Context) ([]Temple, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Temple, 0, len(c.temples))
	for _, t := range c.temples {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (c *Catalog) GetTemple(ctx context.Context, id string) (*Temple, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.temples[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTempleNotFound, id)
	}
	return &t, nil
}

func (c *Catalog) GetSlots(ctx context.Context, templeID string) ([]Slot, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	slots, ok := c.slots[templeID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTempleNotFound, templeID)
	}
	out := make([]Slot, len(slots))
	for i, s := range slots {
		out[i] = s.Clone()
	}
	return out, nil
}

// DefaultCatalog returns the four Gujarat temples with their darshan slots
func DefaultCatalog() *Catalog {
	c := NewCatalog()

	c.Put(Temple{
		ID:           "somnath",
		Name:         "Somnath Temple",
		Location:     "Somnath, Veraval, Gujarat",
		PricingTiers: standardTiers(),
		ParkingZones: []ParkingZone{
			{ID: "P1", Name: "Main Parking", Capacity: 500, Available: 120, Distance: "200m"},
			{ID: "P2", Name: "Overflow Parking", Capacity: 300, Available: 80, Distance: "400m"},
			{ID: "P3", Name: "VIP Parking", Capacity: 50, Available: 15, Distance: "100m"},
		},
	}, []Slot{
		seedSlot("06:00", 50, 30, 20, 15, 10, 3, 2),
		seedSlot("07:00", 50, 45, 15, 20, 10, 3, 2),
		seedSlot("08:00", 50, 50, 0, 25, 15, 7, 3),
		seedSlot("09:00", 50, 38, 25, 15, 7, 2, 1),
		seedSlot("10:00", 50, 42, 20, 18, 8, 3, 1),
		seedSlot("11:00", 50, 35, 30, 12, 6, 1, 1),
		seedSlot("19:00", 100, 85, 40, 35, 20, 3, 2),
		seedSlot("20:00", 100, 92, 30, 40, 25, 3, 2),
		seedSlot("21:00", 100, 78, 50, 30, 15, 3, 2),
	})

	c.Put(Temple{
		ID:           "dwarka",
		Name:         "Dwarkadhish Temple",
		Location:     "Dwarka, Gujarat",
		PricingTiers: standardTiers(),
		ParkingZones: []ParkingZone{
			{ID: "P1", Name: "Temple Parking", Capacity: 400, Available: 95, Distance: "150m"},
			{ID: "P2", Name: "Market Parking", Capacity: 250, Available: 60, Distance: "300m"},
			{ID: "P3", Name: "Bus Parking", Capacity: 100, Available: 25, Distance: "500m"},
		},
	}, []Slot{
		seedSlot("06:30", 60, 45, 15, 12, 8, 3, 2),
		seedSlot("07:30", 60, 52, 8, 15, 10, 4, 3),
		seedSlot("08:30", 60, 60, 0, 20, 12, 5, 3),
		seedSlot("09:30", 60, 48, 12, 18, 8, 2, 2),
		seedSlot("10:30", 60, 55, 5, 22, 10, 3, 2),
		seedSlot("11:30", 60, 40, 20, 15, 8, 2, 1),
		seedSlot("17:00", 80, 70, 10, 25, 15, 4, 3),
		seedSlot("18:00", 80, 75, 5, 30, 18, 5, 4),
		seedSlot("19:00", 80, 65, 15, 28, 12, 3, 2),
		seedSlot("20:00", 80, 60, 20, 25, 10, 3, 2),
	})

	c.Put(Temple{
		ID:           "ambaji",
		Name:         "Ambaji Temple",
		Location:     "Ambaji, Banaskantha, Gujarat",
		PricingTiers: standardTiers(),
		ParkingZones: []ParkingZone{
			{ID: "P1", Name: "Main Gate Parking", Capacity: 600, Available: 150, Distance: "100m"},
			{ID: "P2", Name: "Hill View Parking", Capacity: 400, Available: 100, Distance: "250m"},
			{ID: "P3", Name: "Bus Stand Parking", Capacity: 200, Available: 45, Distance: "400m"},
		},
	}, []Slot{
		seedSlot("06:00", 80, 70, 10, 20, 15, 4, 3),
		seedSlot("07:00", 80, 80, 0, 25, 18, 6, 4),
		seedSlot("08:00", 80, 80, 0, 30, 20, 7, 5),
		seedSlot("09:00", 80, 75, 5, 28, 16, 4, 3),
		seedSlot("10:00", 80, 68, 12, 25, 12, 3, 2),
		seedSlot("11:00", 80, 60, 20, 22, 10, 2, 2),
		seedSlot("15:00", 100, 90, 10, 35, 25, 6, 4),
		seedSlot("16:00", 100, 95, 5, 40, 28, 8, 5),
		seedSlot("17:00", 100, 85, 15, 38, 22, 5, 3),
		seedSlot("18:00", 100, 80, 20, 35, 18, 4, 3),
		seedSlot("19:00", 100, 75, 25, 32, 15, 3, 2),
		seedSlot("20:00", 100, 70, 30, 28, 12, 2, 2),
	})

	c.Put(Temple{
		ID:           "pavagadh",
		Name:         "Kalika Mata Temple, Pavagadh",
		Location:     "Pavagadh Hill, Panchmahal, Gujarat",
		PricingTiers: standardTiers(),
		ParkingZones: []ParkingZone{
			{ID: "P1", Name: "Base Station Parking", Capacity: 800, Available: 200, Distance: "50m"},
			{ID: "P2", Name: "Ropeway Parking", Capacity: 500, Available: 120, Distance: "100m"},
			{ID: "P3", Name: "Hill Top Parking", Capacity: 100, Available: 30, Distance: "0m"},
		},
	}, []Slot{
		seedSlot("06:00", 40, 35, 5, 12, 8, 2, 1),
		seedSlot("07:00", 40, 40, 0, 15, 10, 3, 2),
		seedSlot("08:00", 40, 38, 2, 14, 9, 2, 1),
		seedSlot("09:00", 40, 32, 8, 12, 6, 1, 1),
		seedSlot("10:00", 40, 28, 12, 10, 5, 1, 1),
		seedSlot("11:00", 40, 25, 15, 8, 4, 1, 1),
		seedSlot("16:00", 60, 55, 5, 18, 12, 3, 2),
		seedSlot("17:00", 60, 58, 2, 20, 14, 4, 2),
		seedSlot("18:00", 60, 50, 10, 16, 10, 2, 2),
		seedSlot("19:00", 60, 45, 15, 14, 8, 2, 1),
	})

	return c
}

func standardTiers() []Tier {
	return []Tier{
		{ID: TierFree, DisplayName: "Free Darshan", Price: 0, Perks: []string{"Basic darshan", "General queue", "Standard timing"}},
		{ID: TierRegular, DisplayName: "Regular Darshan", Price: 50, Perks: []string{"Skip general queue", "Dedicated entrance", "Audio guide"}},
		{ID: TierPremium, DisplayName: "Premium Darshan", Price: 100, Perks: []string{"Priority queue", "Guided tour", "Prasadam included", "Photography allowed"}},
		{ID: TierVIP, DisplayName: "VIP Darshan", Price: 200, Perks: []string{"Immediate access", "Personal guide", "Special prasadam", "VIP seating", "Aarti participation"}},
		{ID: TierSpecial, DisplayName: "Special Darshan", Price: 300, Perks: []string{"Private darshan", "Extended time", "Special aarti", "Personal blessing", "Luxury amenities"}},
	}
}

// seedSlot splits a slot's total capacity and bookings across tiers using
// the per-tier weights (free, regular, premium, vip, special). A tier with
// weight zero gets no capacity.
func seedSlot(at string, capacity, booked int, weights ...int) Slot {
	totalWeight := 0
	for _, w := range weights {
		totalWeight += w
	}
	free := capacity - booked
	if free < 0 {
		free = 0
	}

	capByTier := make(map[string]int, len(tierOrder))
	leftByTier := make(map[string]int, len(tierOrder))
	capSum, leftSum, heaviest := 0, 0, 0
	for i, tierID := range tierOrder {
		w := 0
		if i < len(weights) {
			w = weights[i]
		}
		if totalWeight > 0 {
			capByTier[tierID] = capacity * w / totalWeight
			leftByTier[tierID] = free * w / totalWeight
		}
		capSum += capByTier[tierID]
		leftSum += leftByTier[tierID]
		if w > weights[heaviest] {
			heaviest = i
		}
	}

	// Rounding remainders go to the heaviest tier
	capByTier[tierOrder[heaviest]] += capacity - capSum
	leftByTier[tierOrder[heaviest]] += free - leftSum

	bookedByTier := make(map[string]int, len(tierOrder))
	for _, tierID := range tierOrder {
		b := capByTier[tierID] - leftByTier[tierID]
		if b < 0 {
			b = 0
		}
		bookedByTier[tierID] = b
	}

	return Slot{Time: at, CapacityByTier: capByTier, BookedByTier: bookedByTier}
}
