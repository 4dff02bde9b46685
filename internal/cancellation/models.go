package cancellation

import (
	"time"

	"github.com/google/uuid"
)

// RefundStatus tracks a refund after the visitor has left the queue
type RefundStatus string

const (
	RefundStatusProcessing RefundStatus = "PROCESSING"
	RefundStatusCompleted  RefundStatus = "COMPLETED"
)

// LeaveRecord is kept for every visitor who leaves a queue; analytics only
type LeaveRecord struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	BookingID     string    `gorm:"type:varchar(32);uniqueIndex;not null" json:"booking_id"`
	TempleID      string    `gorm:"type:varchar(64);index;not null" json:"temple_id"`
	DeviceID      string    `gorm:"type:varchar(64);index" json:"device_id"`
	Reason        string    `gorm:"type:varchar(32);not null" json:"reason"`
	ReasonDetails string    `gorm:"type:varchar(500)" json:"reason_details,omitempty"`
	QueuePosition int       `json:"queue_position"`
	LeftAt        time.Time `json:"left_at"`
	CreatedAt     time.Time `json:"created_at"`
}

// Refund is a pending refund; only created when the amount is positive
type Refund struct {
	ID        uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	BookingID string       `gorm:"type:varchar(32);uniqueIndex;not null" json:"booking_id"`
	TempleID  string       `gorm:"type:varchar(64);not null" json:"temple_id"`
	DeviceID  string       `gorm:"type:varchar(64);index" json:"device_id"`
	Amount    int          `gorm:"not null;check:amount > 0" json:"amount"`
	Tier      string       `gorm:"type:varchar(16);not null" json:"tier"`
	Reason    string       `gorm:"type:varchar(32)" json:"reason"`
	Status    RefundStatus `gorm:"type:varchar(20);check:status IN ('PROCESSING', 'COMPLETED');default:'PROCESSING'" json:"status"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// TableName sets the table name for LeaveRecord
func (LeaveRecord) TableName() string {
	return "queue_leave_records"
}

// TableName sets the table name for Refund
func (Refund) TableName() string {
	return "refunds"
}

// ReasonCount is one row of the leave reason breakdown
type ReasonCount struct {
	Reason string `json:"reason"`
	Count  int64  `json:"count"`
}
