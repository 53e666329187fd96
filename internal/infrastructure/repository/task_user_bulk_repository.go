package repository

import (
	"context"
	"fmt"

	"github.com/gappsops/message-recall/internal/domain/recall"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TaskUserBulkRepository lands retrieved directory users in bulk. Pages
// are copied into a staging table and folded into task_users with a
// conflict-ignoring insert, so overlapping retrievals of the same prefix
// never duplicate a user within a task.
type TaskUserBulkRepository struct {
	pool *pgxpool.Pool
}

func NewTaskUserBulkRepository(pool *pgxpool.Pool) *TaskUserBulkRepository {
	return &TaskUserBulkRepository{pool: pool}
}

func (r *TaskUserBulkRepository) StageUsers(ctx context.Context, taskID string, users []recall.DirectoryUser) (int64, error) {
	if len(users) == 0 {
		return 0, nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	stagingRows := make([][]any, 0, len(users))
	for _, user := range users {
		stagingRows = append(stagingRows, []any{taskID, user.Email, user.Suspended})
	}

	if _, err := tx.CopyFrom(
		ctx,
		pgx.Identifier{"stg_task_users"},
		[]string{"task_id", "user_email", "suspended"},
		pgx.CopyFromRows(stagingRows),
	); err != nil {
		return 0, fmt.Errorf("copy task users staging: %w", err)
	}

	tag, err := tx.Exec(ctx, `
INSERT INTO task_users (task_id, user_email, user_state, message_state, created_at, updated_at)
SELECT DISTINCT ON (user_email)
  task_id,
  user_email,
  CASE WHEN suspended THEN 'Suspended' ELSE 'Started' END,
  'Unknown',
  NOW(),
  NOW()
FROM stg_task_users
WHERE task_id = $1
ORDER BY user_email
ON CONFLICT (task_id, user_email) DO NOTHING
`, taskID)
	if err != nil {
		return 0, fmt.Errorf("insert task users from staging: %w", err)
	}

	if _, err := tx.Exec(ctx, "DELETE FROM stg_task_users WHERE task_id = $1", taskID); err != nil {
		return 0, fmt.Errorf("cleanup stg_task_users: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit staged task users: %w", err)
	}
	return tag.RowsAffected(), nil
}
