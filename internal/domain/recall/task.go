package recall

import (
	"regexp"
	"strings"
	"time"
)

type TaskState string

const (
	TaskStarted      TaskState = "Started"
	TaskGettingUsers TaskState = "Getting Users"
	TaskRecalling    TaskState = "Recalling"
	TaskDone         TaskState = "Done"
)

var TaskStates = []TaskState{TaskStarted, TaskGettingUsers, TaskRecalling, TaskDone}

const messageIDMaxLen = 100

var messageIDPattern = regexp.MustCompile(`^[\w+\-=.]+@[\w.]+$`)

// Task is one domain-wide recall run: find a message by Message-ID in every
// mailbox of the owner's domain and purge it.
type Task struct {
	ID              string
	OwnerEmail      string
	Domain          string
	MessageCriteria string
	State           TaskState
	IsAborted       bool
	Attempts        int
	MaxAttempts     int
	StartedAt       time.Time
	EndedAt         *time.Time
}

// Aborted reports whether the task finished without completing the recall.
// IsAborted stays true from creation until successful finalization, so it
// only means "aborted" once the task is Done.
func (t Task) Aborted() bool {
	return t.IsAborted && t.State == TaskDone
}

func (t Task) Elapsed() (time.Duration, bool) {
	if t.EndedAt == nil {
		return 0, false
	}
	return t.EndedAt.Sub(t.StartedAt), true
}

// ValidateMessageCriteria checks a submitted Message-ID. The allowed shape
// is local-part@domain with no spaces or markup, at most 100 characters.
func ValidateMessageCriteria(criteria string) (string, error) {
	criteria = strings.TrimSpace(criteria)
	if criteria == "" || len(criteria) > messageIDMaxLen {
		return "", ErrInvalidMessageCriteria
	}
	if !messageIDPattern.MatchString(criteria) {
		return "", ErrInvalidMessageCriteria
	}
	return criteria, nil
}

// OwnerDomain extracts the Apps domain from the task owner's address.
func OwnerDomain(ownerEmail string) (string, error) {
	at := strings.LastIndex(ownerEmail, "@")
	if at <= 0 || at == len(ownerEmail)-1 {
		return "", ErrInvalidOwnerEmail
	}
	return ownerEmail[at+1:], nil
}
