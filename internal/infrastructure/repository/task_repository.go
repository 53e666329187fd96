package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gappsops/message-recall/internal/domain/recall"
	"github.com/gappsops/message-recall/internal/infrastructure/db/models"
	"gorm.io/gorm"
)

const taskPageSize = 10

type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) Create(ctx context.Context, ownerEmail, domain, messageCriteria string) (recall.Task, error) {
	row := models.RecallTask{
		ID:              uuid.NewString(),
		OwnerEmail:      ownerEmail,
		Domain:          domain,
		MessageCriteria: messageCriteria,
		TaskState:       string(recall.TaskStarted),
		IsAborted:       true,
		MaxAttempts:     3,
		StartedAt:       time.Now().UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return recall.Task{}, fmt.Errorf("create recall task: %w", err)
	}
	return taskFromModel(row), nil
}

// GetForDomain fetches one task, refusing to serve a task belonging to
// another Apps domain.
func (r *TaskRepository) GetForDomain(ctx context.Context, domain, taskID string) (recall.Task, error) {
	var row models.RecallTask
	err := r.db.WithContext(ctx).
		First(&row, "id = ? AND domain = ?", taskID, domain).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return recall.Task{}, recall.ErrTaskNotFound
		}
		return recall.Task{}, fmt.Errorf("get recall task: %w", err)
	}
	return taskFromModel(row), nil
}

func (r *TaskRepository) Get(ctx context.Context, taskID string) (recall.Task, error) {
	var row models.RecallTask
	err := r.db.WithContext(ctx).First(&row, "id = ?", taskID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return recall.Task{}, recall.ErrTaskNotFound
		}
		return recall.Task{}, fmt.Errorf("get recall task: %w", err)
	}
	return taskFromModel(row), nil
}

// ListForDomain returns one page of the domain's tasks, newest first.
func (r *TaskRepository) ListForDomain(ctx context.Context, domain, cursorToken string) (recall.TaskPage, error) {
	cur, err := decodeCursor(cursorToken)
	if err != nil {
		return recall.TaskPage{}, err
	}

	query := r.db.WithContext(ctx).
		Where("domain = ?", domain).
		Order("started_at DESC, id DESC").
		Limit(taskPageSize + 1)
	if cur.Time != "" {
		startedAt, parseErr := time.Parse(time.RFC3339Nano, cur.Time)
		if parseErr != nil {
			return recall.TaskPage{}, recall.ErrInvalidCursor
		}
		query = query.Where("(started_at, id) < (?, ?)", startedAt, cur.ID)
	}

	var rows []models.RecallTask
	if err := query.Find(&rows).Error; err != nil {
		return recall.TaskPage{}, fmt.Errorf("list recall tasks: %w", err)
	}

	page := recall.TaskPage{}
	if len(rows) > taskPageSize {
		rows = rows[:taskPageSize]
		page.More = true
	}
	for _, row := range rows {
		page.Tasks = append(page.Tasks, taskFromModel(row))
	}
	if page.More {
		last := rows[len(rows)-1]
		page.Cursor = encodeCursor(pageCursor{
			Time: last.StartedAt.UTC().Format(time.RFC3339Nano),
			ID:   last.ID,
		})
	}
	return page, nil
}

// ClaimNext leases the oldest claimable task for this worker. A task is
// claimable while not Done and its previous lease has lapsed, so a task
// held by a crashed worker comes back on its own. Returns nil when the
// queue is empty.
func (r *TaskRepository) ClaimNext(ctx context.Context, leaseDuration time.Duration) (*recall.Task, error) {
	var rows []models.RecallTask
	err := r.db.WithContext(ctx).Raw(`
UPDATE recall_tasks SET
  lease_expires_at = NOW() + make_interval(secs => ?),
  heartbeat_at = NOW(),
  attempts = attempts + 1,
  updated_at = NOW()
WHERE id = (
  SELECT id FROM recall_tasks
  WHERE task_state <> 'Done'
    AND attempts < max_attempts
    AND (lease_expires_at IS NULL OR lease_expires_at < NOW())
  ORDER BY created_at
  FOR UPDATE SKIP LOCKED
  LIMIT 1
)
RETURNING *`, leaseDuration.Seconds()).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("claim next recall task: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	task := taskFromModel(rows[0])
	return &task, nil
}

func (r *TaskRepository) Heartbeat(ctx context.Context, taskID string, leaseDuration time.Duration) error {
	err := r.db.WithContext(ctx).Exec(`
UPDATE recall_tasks SET
  heartbeat_at = NOW(),
  lease_expires_at = NOW() + make_interval(secs => ?),
  updated_at = NOW()
WHERE id = ?`, leaseDuration.Seconds(), taskID).Error
	if err != nil {
		return fmt.Errorf("heartbeat recall task: %w", err)
	}
	return nil
}

// SetState advances the task state. A Done task never changes state again.
func (r *TaskRepository) SetState(ctx context.Context, taskID string, state recall.TaskState) error {
	err := r.db.WithContext(ctx).Model(&models.RecallTask{}).
		Where("id = ? AND task_state <> ?", taskID, string(recall.TaskDone)).
		Update("task_state", string(state)).Error
	if err != nil {
		return fmt.Errorf("set recall task state: %w", err)
	}
	return nil
}

// Finalize marks a successful completion: Done with the aborted flag
// cleared, which is the only path that clears it.
func (r *TaskRepository) Finalize(ctx context.Context, taskID string) error {
	now := time.Now().UTC()
	err := r.db.WithContext(ctx).Model(&models.RecallTask{}).
		Where("id = ? AND task_state <> ?", taskID, string(recall.TaskDone)).
		Updates(map[string]any{
			"task_state":       string(recall.TaskDone),
			"is_aborted":       false,
			"ended_at":         now,
			"lease_expires_at": nil,
		}).Error
	if err != nil {
		return fmt.Errorf("finalize recall task: %w", err)
	}
	return nil
}

// Fail ends the task as aborted and records why.
func (r *TaskRepository) Fail(ctx context.Context, taskID, reason string) error {
	reason = recall.TruncateReason(reason)
	now := time.Now().UTC()
	err := r.db.WithContext(ctx).Model(&models.RecallTask{}).
		Where("id = ?", taskID).
		Updates(map[string]any{
			"task_state":       string(recall.TaskDone),
			"is_aborted":       true,
			"error_message":    reason,
			"ended_at":         now,
			"lease_expires_at": nil,
		}).Error
	if err != nil {
		return fmt.Errorf("fail recall task: %w", err)
	}
	return nil
}

// Requeue releases the lease so another worker picks the task up again.
func (r *TaskRepository) Requeue(ctx context.Context, taskID, reason string) error {
	err := r.db.WithContext(ctx).Model(&models.RecallTask{}).
		Where("id = ?", taskID).
		Updates(map[string]any{
			"error_message":    recall.TruncateReason(reason),
			"lease_expires_at": nil,
		}).Error
	if err != nil {
		return fmt.Errorf("requeue recall task: %w", err)
	}
	return nil
}

// IsAborted reports whether another actor ended the task underneath a
// running worker.
func (r *TaskRepository) IsAborted(ctx context.Context, taskID string) (bool, error) {
	task, err := r.Get(ctx, taskID)
	if err != nil {
		return false, err
	}
	return task.Aborted(), nil
}

func taskFromModel(row models.RecallTask) recall.Task {
	return recall.Task{
		ID:              row.ID,
		OwnerEmail:      row.OwnerEmail,
		Domain:          row.Domain,
		MessageCriteria: row.MessageCriteria,
		State:           recall.TaskState(row.TaskState),
		IsAborted:       row.IsAborted,
		Attempts:        row.Attempts,
		MaxAttempts:     row.MaxAttempts,
		StartedAt:       row.StartedAt,
		EndedAt:         row.EndedAt,
	}
}
