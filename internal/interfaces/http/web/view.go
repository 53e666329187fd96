package web

import (
	"net/url"
	"time"

	domain "github.com/gappsops/message-recall/internal/domain/recall"
)

const displayTimeFormat = "2006-01-02 15:04:05"

// taskUserRow is one line of the per-user progress table. Elapsed values
// are present only when the record carries both timestamps.
type taskUserRow struct {
	UserEmail      string
	UserState      string
	MessageState   string
	Started        string
	Ended          string
	HasElapsed     bool
	ElapsedMinutes int
	ElapsedSeconds int
}

func newTaskUserRow(user domain.TaskUser) taskUserRow {
	row := taskUserRow{
		UserEmail:    user.UserEmail,
		UserState:    string(user.UserState),
		MessageState: string(user.MessageState),
	}
	if user.StartedAt != nil {
		row.Started = user.StartedAt.UTC().Format(displayTimeFormat)
	}
	if user.EndedAt != nil {
		row.Ended = user.EndedAt.UTC().Format(displayTimeFormat)
	}
	if elapsed, ok := user.Elapsed(); ok {
		row.HasElapsed = true
		row.ElapsedMinutes = int(elapsed.Minutes())
		row.ElapsedSeconds = int(elapsed.Seconds()) - 60*row.ElapsedMinutes
	}
	return row
}

type taskRow struct {
	ID              string
	OwnerEmail      string
	MessageCriteria string
	State           string
	Aborted         bool
	Started         string
	Ended           string
	HasElapsed      bool
	Elapsed         string
}

func newTaskRow(task domain.Task) taskRow {
	row := taskRow{
		ID:              task.ID,
		OwnerEmail:      task.OwnerEmail,
		MessageCriteria: task.MessageCriteria,
		State:           string(task.State),
		Aborted:         task.Aborted(),
		Started:         task.StartedAt.UTC().Format(displayTimeFormat),
	}
	if task.EndedAt != nil {
		row.Ended = task.EndedAt.UTC().Format(displayTimeFormat)
	}
	if elapsed, ok := task.Elapsed(); ok {
		row.HasElapsed = true
		row.Elapsed = elapsed.Round(time.Second).String()
	}
	return row
}

// usersPageURL rebuilds the users-page link for the next cursor while
// preserving the active state filters.
func usersPageURL(taskID string, userStates, messageStates []string, cursor string) string {
	params := url.Values{}
	for _, s := range userStates {
		params.Add("user_state", s)
	}
	for _, s := range messageStates {
		params.Add("message_state", s)
	}
	if cursor != "" {
		params.Set("user_cursor", cursor)
	}
	u := "/task/" + url.PathEscape(taskID) + "/users"
	if encoded := params.Encode(); encoded != "" {
		u += "?" + encoded
	}
	return u
}
