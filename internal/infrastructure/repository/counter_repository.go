package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// CounterRepository keeps per-task named counters. A single row per name
// updated atomically is plenty here; the write rate is one increment per
// retrieval partition or worker error.
type CounterRepository struct {
	db *gorm.DB
}

func NewCounterRepository(db *gorm.DB) *CounterRepository {
	return &CounterRepository{db: db}
}

// Increment adjusts a counter by delta (which may be negative) and
// returns the new value.
func (r *CounterRepository) Increment(ctx context.Context, taskID, name string, delta int64) (int64, error) {
	if delta == 0 {
		return r.Get(ctx, taskID, name)
	}

	var counts []int64
	err := r.db.WithContext(ctx).Raw(`
INSERT INTO task_counters (task_id, name, count)
VALUES (?, ?, ?)
ON CONFLICT (task_id, name) DO UPDATE SET count = task_counters.count + EXCLUDED.count
RETURNING count`, taskID, name, delta).Scan(&counts).Error
	if err != nil {
		return 0, fmt.Errorf("increment counter %s: %w", name, err)
	}
	if len(counts) == 0 {
		return 0, fmt.Errorf("increment counter %s: no row returned", name)
	}
	return counts[0], nil
}

// Get returns the counter value, zero for a counter never incremented.
func (r *CounterRepository) Get(ctx context.Context, taskID, name string) (int64, error) {
	var counts []int64
	err := r.db.WithContext(ctx).Raw(`
SELECT count FROM task_counters WHERE task_id = ? AND name = ?`, taskID, name).Scan(&counts).Error
	if err != nil {
		return 0, fmt.Errorf("get counter %s: %w", name, err)
	}
	if len(counts) == 0 {
		return 0, nil
	}
	return counts[0], nil
}
