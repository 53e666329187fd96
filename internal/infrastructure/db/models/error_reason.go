package models

import "time"

type ErrorReason struct {
	ID        int64  `gorm:"primaryKey"`
	TaskID    string `gorm:"type:uuid;not null;index"`
	UserEmail string `gorm:"size:320"`
	Reason    string `gorm:"size:500;not null"`
	CreatedAt time.Time
}

func (ErrorReason) TableName() string {
	return "error_reasons"
}
