package models

import "time"

type RecallTask struct {
	ID              string `gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	OwnerEmail      string `gorm:"size:320;not null"`
	Domain          string `gorm:"size:255;not null;index"`
	MessageCriteria string `gorm:"size:100;not null"`
	TaskState       string `gorm:"type:text;not null;default:'Started'"`
	IsAborted       bool   `gorm:"not null;default:true"`
	Attempts        int    `gorm:"not null;default:0"`
	MaxAttempts     int    `gorm:"not null;default:3"`
	ErrorMessage    *string `gorm:"type:text"`
	HeartbeatAt     *time.Time
	LeaseExpiresAt  *time.Time
	StartedAt       time.Time `gorm:"not null;index:idx_recall_tasks_domain_started,priority:2,sort:desc"`
	EndedAt         *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (RecallTask) TableName() string {
	return "recall_tasks"
}
