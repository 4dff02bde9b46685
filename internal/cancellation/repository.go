package cancellation

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository interface defines the contract for leave and refund data operations
type Repository interface {
	// CreateLeave stores the leave record and, when non-nil, the refund in
	// one transaction. Replays of the same booking are ignored.
	CreateLeave(ctx context.Context, record *LeaveRecord, refund *Refund) error
	GetRefundsByDeviceID(ctx context.Context, deviceID string) ([]Refund, error)
	CountLeaveReasons(ctx context.Context, templeID string) ([]ReasonCount, error)
}

// repository implements the Repository interface
type repository struct {
	db *gorm.DB
}

// NewRepository creates a new cancellation repository instance
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CreateLeave(ctx context.Context, record *LeaveRecord, refund *Refund) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(record).Error; err != nil {
			return fmt.Errorf("failed to create leave record: %w", err)
		}
		if refund == nil {
			return nil
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(refund).Error; err != nil {
			return fmt.Errorf("failed to create refund: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	return nil
}

// GetRefundsByDeviceID retrieves a device's refunds, newest first
func (r *repository) GetRefundsByDeviceID(ctx context.Context, deviceID string) ([]Refund, error) {
	var refunds []Refund
	err := r.db.WithContext(ctx).
		Where("device_id = ?", deviceID).
		Order("created_at DESC").
		Find(&refunds).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get device refunds: %w", err)
	}
	return refunds, nil
}

// CountLeaveReasons groups a temple's leave records by reason
func (r *repository) CountLeaveReasons(ctx context.Context, templeID string) ([]ReasonCount, error) {
	var counts []ReasonCount
	err := r.db.WithContext(ctx).
		Model(&LeaveRecord{}).
		Select("reason, COUNT(*) AS count").
		Where("temple_id = ?", templeID).
		Group("reason").
		Order("count DESC").
		Scan(&counts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count leave reasons: %w", err)
	}
	return counts, nil
}

// memoryRepository keeps leave history in process when Postgres is disabled
type memoryRepository struct {
	mu      sync.RWMutex
	records map[string]LeaveRecord
	refunds map[string]Refund
}

// NewMemoryRepository creates an in-process repository
func NewMemoryRepository() Repository {
	return &memoryRepository{
		records: make(map[string]LeaveRecord),
		refunds: make(map[string]Refund),
	}
}

func (r *memoryRepository) CreateLeave(ctx context.Context, record *LeaveRecord, refund *Refund) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[record.BookingID]; ok {
		return nil
	}
	r.records[record.BookingID] = *record
	if refund != nil {
		r.refunds[refund.BookingID] = *refund
	}
	return nil
}

func (r *memoryRepository) GetRefundsByDeviceID(ctx context.Context, deviceID string) ([]Refund, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []Refund{}
	for _, refund := range r.refunds {
		if refund.DeviceID == deviceID {
			out = append(out, refund)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *memoryRepository) CountLeaveReasons(ctx context.Context, templeID string) ([]ReasonCount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	byReason := make(map[string]int64)
	for _, rec := range r.records {
		if rec.TempleID == templeID {
			byReason[rec.Reason]++
		}
	}
	out := make([]ReasonCount, 0, len(byReason))
	for reason, n := range byReason {
		out = append(out, ReasonCount{Reason: reason, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Reason < out[j].Reason
	})
	return out, nil
}
