package models

import "time"

type TaskUser struct {
	ID           int64  `gorm:"primaryKey"`
	TaskID       string `gorm:"type:uuid;not null;uniqueIndex:uq_task_users_task_email,priority:1"`
	UserEmail    string `gorm:"size:320;not null;uniqueIndex:uq_task_users_task_email,priority:2"`
	UserState    string `gorm:"type:text;not null;default:'Started'"`
	MessageState string `gorm:"type:text;not null;default:'Unknown'"`
	StartedAt    *time.Time
	EndedAt      *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (TaskUser) TableName() string {
	return "task_users"
}
