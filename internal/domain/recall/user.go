package recall

import "time"

type UserState string

const (
	UserStarted       UserState = "Started"
	UserRecalling     UserState = "Recalling"
	UserConnectFailed UserState = "Imap Connect Failed"
	UserImapDisabled  UserState = "Imap Disabled"
	UserDone          UserState = "Done"
	UserAborted       UserState = "Aborted"
	UserSuspended     UserState = "Suspended"
)

var (
	UserStates = []UserState{
		UserStarted, UserRecalling, UserConnectFailed,
		UserImapDisabled, UserDone, UserAborted, UserSuspended,
	}

	// ActiveUserStates are the states the recall stage still has work for.
	// Suspended users are deliberately excluded.
	ActiveUserStates = []UserState{
		UserStarted, UserRecalling, UserConnectFailed,
		UserImapDisabled, UserAborted,
	}

	// TerminalUserStates mark users whose processing has finished. A
	// terminal user state is never overwritten.
	TerminalUserStates = []UserState{
		UserConnectFailed, UserImapDisabled, UserDone,
		UserAborted, UserSuspended,
	}
)

type MessageState string

const (
	MessageUnknown        MessageState = "Unknown"
	MessageFound          MessageState = "Found"
	MessageNotFound       MessageState = "Not Found"
	MessagePurged         MessageState = "Purged"
	MessageVerifiedPurged MessageState = "Verified Purged"
	MessageDeleteFailed   MessageState = "Delete Failed"
	MessageVerifyFailed   MessageState = "Verify Failed"
)

var MessageStates = []MessageState{
	MessageUnknown, MessageFound, MessageNotFound, MessagePurged,
	MessageVerifiedPurged, MessageDeleteFailed, MessageVerifyFailed,
}

// TaskUser tracks recall progress against one mailbox of the domain.
type TaskUser struct {
	ID           int64
	TaskID       string
	UserEmail    string
	UserState    UserState
	MessageState MessageState
	StartedAt    *time.Time
	EndedAt      *time.Time
}

func (s UserState) Terminal() bool {
	for _, terminal := range TerminalUserStates {
		if s == terminal {
			return true
		}
	}
	return false
}

// Elapsed returns the processing duration, defined only when both
// timestamps are present.
func (u TaskUser) Elapsed() (time.Duration, bool) {
	if u.StartedAt == nil || u.EndedAt == nil {
		return 0, false
	}
	return u.EndedAt.Sub(*u.StartedAt), true
}

func ValidUserState(s string) bool {
	for _, state := range UserStates {
		if UserState(s) == state {
			return true
		}
	}
	return false
}

func ValidMessageState(s string) bool {
	for _, state := range MessageStates {
		if MessageState(s) == state {
			return true
		}
	}
	return false
}
