package database

import (
	"gorm.io/gorm"
)

// MigrateConstraints adds the indexes behind the refund history and leave
// reason queries
func MigrateConstraints(db *gorm.DB) error {
	// Refund history per device, newest first
	err := db.Exec(`
		CREATE INDEX CONCURRENTLY IF NOT EXISTS idx_refunds_device_created
		ON refunds (device_id, created_at DESC);
	`).Error
	if err != nil {
		return err
	}

	// Leave reason breakdown per temple
	err = db.Exec(`
		CREATE INDEX CONCURRENTLY IF NOT EXISTS idx_queue_leave_records_temple_reason
		ON queue_leave_records (temple_id, reason);
	`).Error
	if err != nil {
		return err
	}

	return nil
}
