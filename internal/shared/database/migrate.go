package database

import (
	"templeq/internal/cancellation"
	"templeq/internal/temples"

	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&temples.TempleRecord{},
		&temples.SlotRecord{},
		&cancellation.LeaveRecord{},
		&cancellation.Refund{},
	)
}
