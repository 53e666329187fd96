package models

// TaskCounter is a per-task named counter. A single row per name is
// enough under Postgres; increments are atomic updates.
type TaskCounter struct {
	TaskID string `gorm:"type:uuid;primaryKey"`
	Name   string `gorm:"size:64;primaryKey"`
	Count  int64  `gorm:"not null;default:0"`
}

func (TaskCounter) TableName() string {
	return "task_counters"
}
