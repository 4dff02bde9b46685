package temples

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository is the Postgres-backed reference data store
type Repository interface {
	Store
	SaveTemple(ctx context.Context, t Temple, slots []Slot) error
}

// repository implements the Repository interface
type repository struct {
	db *gorm.DB
}

// NewRepository creates a new temple repository instance
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) ListTemples(ctx context.Context) ([]Temple, error) {
	var records []TempleRecord
	if err := r.db.WithContext(ctx).Order("id").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list temples: %w", err)
	}
	out := make([]Temple, 0, len(records))
	for _, rec := range records {
		out = append(out, rec.toDomain())
	}
	return out, nil
}

func (r *repository) GetTemple(ctx context.Context, id string) (*Temple, error) {
	var rec TempleRecord
	err := r.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrTempleNotFound, id)
		}
		return nil, fmt.Errorf("failed to get temple: %w", err)
	}
	t := rec.toDomain()
	return &t, nil
}

func (r *repository) GetSlots(ctx context.Context, templeID string) ([]Slot, error) {
	var records []SlotRecord
	err := r.db.WithContext(ctx).
		Where("temple_id = ?", templeID).
		Order("time").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get slots: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrTempleNotFound, templeID)
	}
	out := make([]Slot, 0, len(records))
	for _, rec := range records {
		out = append(out, rec.toDomain())
	}
	return out, nil
}

// SaveTemple upserts a temple and all of its slots in one transaction
func (r *repository) SaveTemple(ctx context.Context, t Temple, slots []Slot) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec := newTempleRecord(t)
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&rec).Error; err != nil {
			return fmt.Errorf("failed to save temple %s: %w", t.ID, err)
		}
		for _, s := range slots {
			slotRec := newSlotRecord(t.ID, s)
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "temple_id"}, {Name: "time"}},
				DoUpdates: clause.AssignmentColumns([]string{"capacity_by_tier", "booked_by_tier", "updated_at"}),
			}).Create(&slotRec).Error
			if err != nil {
				return fmt.Errorf("failed to save slot %s/%s: %w", t.ID, s.Time, err)
			}
		}
		return nil
	})
}

// Seed copies every temple and its slots from src into repo and returns how
// many temples were written
func Seed(ctx context.Context, repo Repository, src Store) (int, error) {
	list, err := src.ListTemples(ctx)
	if err != nil {
		return 0, err
	}
	for i, t := range list {
		slots, err := src.GetSlots(ctx, t.ID)
		if err != nil {
			return i, err
		}
		if err := repo.SaveTemple(ctx, t, slots); err != nil {
			return i, err
		}
	}
	return len(list), nil
}
