package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gappsops/message-recall/internal/domain/recall"
	"github.com/gappsops/message-recall/internal/infrastructure/db/models"
	"gorm.io/gorm"
)

const userPageSize = 10

type TaskUserRepository struct {
	db *gorm.DB
}

func NewTaskUserRepository(db *gorm.DB) *TaskUserRepository {
	return &TaskUserRepository{db: db}
}

// ListForTask returns one UI page of a task's users. Unfiltered listings
// order by email; filtered listings order by id, matching what the keyset
// cursor can resume in each case.
func (r *TaskUserRepository) ListForTask(ctx context.Context, taskID string, filter recall.UserFilter, cursorToken string) (recall.UserPage, error) {
	cur, err := decodeCursor(cursorToken)
	if err != nil {
		return recall.UserPage{}, err
	}

	query := r.db.WithContext(ctx).
		Where("task_id = ?", taskID).
		Limit(userPageSize + 1)
	query = applyUserFilter(query, filter)

	byEmail := filter.Empty()
	if byEmail {
		query = query.Order("user_email, id")
		if cur.Email != "" {
			lastID, parseErr := strconv.ParseInt(cur.ID, 10, 64)
			if parseErr != nil {
				return recall.UserPage{}, recall.ErrInvalidCursor
			}
			query = query.Where("(user_email, id) > (?, ?)", cur.Email, lastID)
		}
	} else {
		query = query.Order("id")
		if cur.ID != "" {
			lastID, parseErr := strconv.ParseInt(cur.ID, 10, 64)
			if parseErr != nil {
				return recall.UserPage{}, recall.ErrInvalidCursor
			}
			query = query.Where("id > ?", lastID)
		}
	}

	var rows []models.TaskUser
	if err := query.Find(&rows).Error; err != nil {
		return recall.UserPage{}, fmt.Errorf("list task users: %w", err)
	}

	page := recall.UserPage{}
	if len(rows) > userPageSize {
		rows = rows[:userPageSize]
		page.More = true
	}
	for _, row := range rows {
		page.Users = append(page.Users, taskUserFromModel(row))
	}
	if page.More {
		last := rows[len(rows)-1]
		next := pageCursor{ID: strconv.FormatInt(last.ID, 10)}
		if byEmail {
			next.Email = last.UserEmail
		}
		page.Cursor = encodeCursor(next)
	}
	return page, nil
}

// FetchActivePage pages through the users the recall stage still owes
// work, by ascending id. Used by the worker, not the UI.
func (r *TaskUserRepository) FetchActivePage(ctx context.Context, taskID string, afterID int64, limit int) ([]recall.TaskUser, error) {
	var rows []models.TaskUser
	err := r.db.WithContext(ctx).
		Where("task_id = ? AND id > ?", taskID, afterID).
		Where("user_state IN ?", stateStrings(recall.ActiveUserStates)).
		Order("id").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("fetch active task users: %w", err)
	}
	users := make([]recall.TaskUser, 0, len(rows))
	for _, row := range rows {
		users = append(users, taskUserFromModel(row))
	}
	return users, nil
}

// MarkRecalling moves a user into Recalling and stamps the start of its
// processing window. Terminal users are left alone.
func (r *TaskUserRepository) MarkRecalling(ctx context.Context, userID int64) error {
	now := time.Now().UTC()
	err := r.db.WithContext(ctx).Model(&models.TaskUser{}).
		Where("id = ? AND user_state NOT IN ?", userID, stateStrings(recall.TerminalUserStates)).
		Updates(map[string]any{
			"user_state": string(recall.UserRecalling),
			"started_at": now,
		}).Error
	if err != nil {
		return fmt.Errorf("mark task user recalling: %w", err)
	}
	return nil
}

// SetUserState updates a user's processing state unless it is already
// terminal. Reaching a terminal state stamps the end of the window.
func (r *TaskUserRepository) SetUserState(ctx context.Context, userID int64, state recall.UserState) error {
	updates := map[string]any{"user_state": string(state)}
	if state.Terminal() {
		updates["ended_at"] = time.Now().UTC()
	}
	err := r.db.WithContext(ctx).Model(&models.TaskUser{}).
		Where("id = ? AND user_state NOT IN ?", userID, stateStrings(recall.TerminalUserStates)).
		Updates(updates).Error
	if err != nil {
		return fmt.Errorf("set task user state: %w", err)
	}
	return nil
}

func (r *TaskUserRepository) SetMessageState(ctx context.Context, userID int64, state recall.MessageState) error {
	err := r.db.WithContext(ctx).Model(&models.TaskUser{}).
		Where("id = ?", userID).
		Update("message_state", string(state)).Error
	if err != nil {
		return fmt.Errorf("set task user message state: %w", err)
	}
	return nil
}

func (r *TaskUserRepository) CountForTask(ctx context.Context, taskID string, filter recall.UserFilter) (int64, error) {
	query := r.db.WithContext(ctx).Model(&models.TaskUser{}).
		Where("task_id = ?", taskID)
	query = applyUserFilter(query, filter)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count task users: %w", err)
	}
	return count, nil
}

// CountTerminal counts the users whose processing has finished, which the
// finalize stage compares against the full user count.
func (r *TaskUserRepository) CountTerminal(ctx context.Context, taskID string) (int64, error) {
	return r.CountForTask(ctx, taskID, recall.UserFilter{UserStates: recall.TerminalUserStates})
}

// StateCounts aggregates the per-state totals shown on the report page.
func (r *TaskUserRepository) StateCounts(ctx context.Context, taskID string) (map[recall.UserState]int64, map[recall.MessageState]int64, error) {
	type stateCount struct {
		State string
		Count int64
	}

	var userCounts []stateCount
	err := r.db.WithContext(ctx).Model(&models.TaskUser{}).
		Select("user_state AS state, COUNT(*) AS count").
		Where("task_id = ?", taskID).
		Group("user_state").
		Scan(&userCounts).Error
	if err != nil {
		return nil, nil, fmt.Errorf("count user states: %w", err)
	}

	var messageCounts []stateCount
	err = r.db.WithContext(ctx).Model(&models.TaskUser{}).
		Select("message_state AS state, COUNT(*) AS count").
		Where("task_id = ?", taskID).
		Group("message_state").
		Scan(&messageCounts).Error
	if err != nil {
		return nil, nil, fmt.Errorf("count message states: %w", err)
	}

	byUserState := make(map[recall.UserState]int64, len(userCounts))
	for _, c := range userCounts {
		byUserState[recall.UserState(c.State)] = c.Count
	}
	byMessageState := make(map[recall.MessageState]int64, len(messageCounts))
	for _, c := range messageCounts {
		byMessageState[recall.MessageState(c.State)] = c.Count
	}
	return byUserState, byMessageState, nil
}

func applyUserFilter(query *gorm.DB, filter recall.UserFilter) *gorm.DB {
	if len(filter.UserStates) > 0 {
		query = query.Where("user_state IN ?", stateStrings(filter.UserStates))
	}
	if len(filter.MessageStates) > 0 {
		states := make([]string, 0, len(filter.MessageStates))
		for _, s := range filter.MessageStates {
			states = append(states, string(s))
		}
		query = query.Where("message_state IN ?", states)
	}
	return query
}

func stateStrings(states []recall.UserState) []string {
	out := make([]string, 0, len(states))
	for _, s := range states {
		out = append(out, string(s))
	}
	return out
}

func taskUserFromModel(row models.TaskUser) recall.TaskUser {
	return recall.TaskUser{
		ID:           row.ID,
		TaskID:       row.TaskID,
		UserEmail:    row.UserEmail,
		UserState:    recall.UserState(row.UserState),
		MessageState: recall.MessageState(row.MessageState),
		StartedAt:    row.StartedAt,
		EndedAt:      row.EndedAt,
	}
}
