package temples

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// Tier is an immutable priced service level within a slot
type Tier struct {
	ID          string   `json:"id"`
	DisplayName string   `json:"name"`
	Price       int      `json:"price"`
	Perks       []string `json:"features"`
}

// ParkingZone describes a parking area near a temple
type ParkingZone struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Capacity  int    `json:"capacity"`
	Available int    `json:"available"`
	Distance  string `json:"distance"`
}

// Temple is the reference record a booking is made against
type Temple struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Location     string        `json:"location"`
	PricingTiers []Tier        `json:"pricing_tiers"`
	ParkingZones []ParkingZone `json:"parking_zones"`
}

// Tier looks up a pricing tier by id
func (t *Temple) Tier(id string) (Tier, error) {
	for _, tier := range t.PricingTiers {
		if tier.ID == id {
			return tier, nil
		}
	}
	return Tier{}, fmt.Errorf("%w: %s/%s", ErrTierNotFound, t.ID, id)
}

// SlotStatus is the fill level shown for a slot
type SlotStatus string

const (
	SlotStatusAvailable SlotStatus = "available"
	SlotStatusFilling   SlotStatus = "filling"
	SlotStatusFull      SlotStatus = "full"
)

// Slot is a darshan window with per-tier capacity
type Slot struct {
	Time           string         `json:"time"`
	CapacityByTier map[string]int `json:"capacity_by_tier"`
	BookedByTier   map[string]int `json:"booked_by_tier"`
}

func (s Slot) TotalCapacity() int {
	total := 0
	for _, c := range s.CapacityByTier {
		total += c
	}
	return total
}

func (s Slot) TotalBooked() int {
	total := 0
	for _, b := range s.BookedByTier {
		total += b
	}
	return total
}

// Remaining returns the free places for a tier, never negative
func (s Slot) Remaining(tierID string) int {
	left := s.CapacityByTier[tierID] - s.BookedByTier[tierID]
	if left < 0 {
		return 0
	}
	return left
}

// HasAvailability reports whether any tier still has a free place
func (s Slot) HasAvailability() bool {
	for tierID := range s.CapacityByTier {
		if s.Remaining(tierID) > 0 {
			return true
		}
	}
	return false
}

// Status is full at 100% booked and filling from 80%
func (s Slot) Status() SlotStatus {
	capacity := s.TotalCapacity()
	booked := s.TotalBooked()
	switch {
	case capacity == 0 || booked >= capacity:
		return SlotStatusFull
	case booked*100 >= capacity*80:
		return SlotStatusFilling
	default:
		return SlotStatusAvailable
	}
}

// Clone returns a copy whose maps can be mutated freely
func (s Slot) Clone() Slot {
	out := Slot{
		Time:           s.Time,
		CapacityByTier: make(map[string]int, len(s.CapacityByTier)),
		BookedByTier:   make(map[string]int, len(s.BookedByTier)),
	}
	for k, v := range s.CapacityByTier {
		out.CapacityByTier[k] = v
	}
	for k, v := range s.BookedByTier {
		out.BookedByTier[k] = v
	}
	return out
}

// FindSlot returns the slot starting at the given HH:MM label
func FindSlot(slots []Slot, at string) (Slot, error) {
	for _, s := range slots {
		if s.Time == at {
			return s, nil
		}
	}
	return Slot{}, fmt.Errorf("%w: %s", ErrSlotNotFound, at)
}

// Store is the read-only reference data contract
type Store interface {
	ListTemples(ctx context.Context) ([]Temple, error)
	GetTemple(ctx context.Context, id string) (*Temple, error)
	GetSlots(ctx context.Context, templeID string) ([]Slot, error)
}

// Error definitions
var (
	ErrTempleNotFound = errors.New("temple not found")
	ErrSlotNotFound   = errors.New("slot not found")
	ErrTierNotFound   = errors.New("tier not found")
	ErrSlotFull       = errors.New("slot is full")
	ErrTierFull       = errors.New("tier is full for this slot")
)

// CapacityError reports a full slot or tier; match with errors.Is against
// ErrSlotFull or ErrTierFull.
type CapacityError struct {
	SlotTime string
	TierID   string
	Err      error
}

func (e *CapacityError) Error() string {
	if e.TierID == "" {
		return fmt.Sprintf("slot %s: %v", e.SlotTime, e.Err)
	}
	return fmt.Sprintf("slot %s tier %s: %v", e.SlotTime, e.TierID, e.Err)
}

func (e *CapacityError) Unwrap() error {
	return e.Err
}

// CheckSlot returns a CapacityError when no tier in the slot has room
func CheckSlot(s Slot) error {
	if !s.HasAvailability() {
		return &CapacityError{SlotTime: s.Time, Err: ErrSlotFull}
	}
	return nil
}

// CheckTier returns a CapacityError when the tier has no room in the slot
func CheckTier(s Slot, tierID string) error {
	if s.Remaining(tierID) <= 0 {
		return &CapacityError{SlotTime: s.Time, TierID: tierID, Err: ErrTierFull}
	}
	return nil
}

// TempleRecord is the persisted form of a Temple
type TempleRecord struct {
	ID           string                           `gorm:"type:varchar(64);primaryKey" json:"id"`
	Name         string                           `gorm:"type:varchar(255);not null" json:"name"`
	Location     string                           `gorm:"type:varchar(255)" json:"location"`
	PricingTiers datatypes.JSONSlice[Tier]        `gorm:"type:jsonb" json:"pricing_tiers"`
	ParkingZones datatypes.JSONSlice[ParkingZone] `gorm:"type:jsonb" json:"parking_zones"`
	CreatedAt    time.Time                        `json:"created_at"`
	UpdatedAt    time.Time                        `json:"updated_at"`
}

// TableName sets the table name for TempleRecord
func (TempleRecord) TableName() string {
	return "temples"
}

// SlotRecord is the persisted form of a Slot
type SlotRecord struct {
	ID             uint                               `gorm:"primaryKey" json:"id"`
	TempleID       string                             `gorm:"type:varchar(64);not null;uniqueIndex:idx_slot_temple_time" json:"temple_id"`
	Time           string                             `gorm:"type:varchar(5);not null;uniqueIndex:idx_slot_temple_time" json:"time"`
	CapacityByTier datatypes.JSONType[map[string]int] `gorm:"type:jsonb" json:"capacity_by_tier"`
	BookedByTier   datatypes.JSONType[map[string]int] `gorm:"type:jsonb" json:"booked_by_tier"`
	CreatedAt      time.Time                          `json:"created_at"`
	UpdatedAt      time.Time                          `json:"updated_at"`
}

// TableName sets the table name for SlotRecord
func (SlotRecord) TableName() string {
	return "darshan_slots"
}

func (r TempleRecord) toDomain() Temple {
	return Temple{
		ID:           r.ID,
		Name:         r.Name,
		Location:     r.Location,
		PricingTiers: []Tier(r.PricingTiers),
		ParkingZones: []ParkingZone(r.ParkingZones),
	}
}

func (r SlotRecord) toDomain() Slot {
	return Slot{
		Time:           r.Time,
		CapacityByTier: r.CapacityByTier.Data(),
		BookedByTier:   r.BookedByTier.Data(),
	}
}

func newTempleRecord(t Temple) TempleRecord {
	return TempleRecord{
		ID:           t.ID,
		Name:         t.Name,
		Location:     t.Location,
		PricingTiers: datatypes.NewJSONSlice(t.PricingTiers),
		ParkingZones: datatypes.NewJSONSlice(t.ParkingZones),
	}
}

func newSlotRecord(templeID string, s Slot) SlotRecord {
	return SlotRecord{
		TempleID:       templeID,
		Time:           s.Time,
		CapacityByTier: datatypes.NewJSONType(s.CapacityByTier),
		BookedByTier:   datatypes.NewJSONType(s.BookedByTier),
	}
}
