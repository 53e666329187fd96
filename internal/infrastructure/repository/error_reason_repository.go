package repository

import (
	"context"
	"fmt"
	"strconv"

	"github.com/gappsops/message-recall/internal/domain/recall"
	"github.com/gappsops/message-recall/internal/infrastructure/db/models"
	"gorm.io/gorm"
)

const errorPageSize = 20

type ErrorReasonRepository struct {
	db *gorm.DB
}

func NewErrorReasonRepository(db *gorm.DB) *ErrorReasonRepository {
	return &ErrorReasonRepository{db: db}
}

// Add records one failure against a task. userEmail is empty for failures
// that happened before any per-user work.
func (r *ErrorReasonRepository) Add(ctx context.Context, taskID, userEmail, reason string) error {
	row := models.ErrorReason{
		TaskID:    taskID,
		UserEmail: userEmail,
		Reason:    recall.TruncateReason(reason),
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("add error reason: %w", err)
	}
	return nil
}

// ListForTask returns one page of a task's error reasons, oldest first.
func (r *ErrorReasonRepository) ListForTask(ctx context.Context, taskID, cursorToken string) (recall.ErrorPage, error) {
	cur, err := decodeCursor(cursorToken)
	if err != nil {
		return recall.ErrorPage{}, err
	}

	query := r.db.WithContext(ctx).
		Where("task_id = ?", taskID).
		Order("id").
		Limit(errorPageSize + 1)
	if cur.ID != "" {
		lastID, parseErr := strconv.ParseInt(cur.ID, 10, 64)
		if parseErr != nil {
			return recall.ErrorPage{}, recall.ErrInvalidCursor
		}
		query = query.Where("id > ?", lastID)
	}

	var rows []models.ErrorReason
	if err := query.Find(&rows).Error; err != nil {
		return recall.ErrorPage{}, fmt.Errorf("list error reasons: %w", err)
	}

	page := recall.ErrorPage{}
	if len(rows) > errorPageSize {
		rows = rows[:errorPageSize]
		page.More = true
	}
	for _, row := range rows {
		page.Errors = append(page.Errors, recall.ErrorReason{
			ID:        row.ID,
			TaskID:    row.TaskID,
			UserEmail: row.UserEmail,
			Reason:    row.Reason,
			CreatedAt: row.CreatedAt,
		})
	}
	if page.More {
		page.Cursor = encodeCursor(pageCursor{ID: strconv.FormatInt(rows[len(rows)-1].ID, 10)})
	}
	return page, nil
}

func (r *ErrorReasonRepository) CountForTask(ctx context.Context, taskID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.ErrorReason{}).
		Where("task_id = ?", taskID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count error reasons: %w", err)
	}
	return count, nil
}
