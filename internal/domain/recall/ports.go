package recall

import "context"

// UserFilter narrows task-user listings. States within one slice are ORed,
// the two slices are ANDed.
type UserFilter struct {
	UserStates    []UserState
	MessageStates []MessageState
}

func (f UserFilter) Empty() bool {
	return len(f.UserStates) == 0 && len(f.MessageStates) == 0
}

// UserPage is one page of task users plus the cursor to resume from.
// Cursor is opaque and forward-only; More is false on the last page.
type UserPage struct {
	Users  []TaskUser
	Cursor string
	More   bool
}

type TaskPage struct {
	Tasks  []Task
	Cursor string
	More   bool
}

type ErrorPage struct {
	Errors []ErrorReason
	Cursor string
	More   bool
}

// DirectoryUser is one entry returned from the domain user directory.
type DirectoryUser struct {
	Email     string
	Suspended bool
}

// Directory looks up users of the Apps domain. Implemented against the
// Admin SDK directory API.
type Directory interface {
	// ListUsers streams all users whose email starts with prefix,
	// invoking page once per retrieved page.
	ListUsers(ctx context.Context, domain, prefix string, page func([]DirectoryUser) error) error
	// IsAdmin reports whether the user is a super-admin of its domain.
	IsAdmin(ctx context.Context, userEmail string) (bool, error)
}

// Mailbox is one user's mailbox, opened for a recall pass.
type Mailbox interface {
	// MessageExists searches every searchable folder for the Message-ID.
	MessageExists(ctx context.Context, messageID string) (bool, error)
	// PurgeMessage trashes and expunges all matches of the Message-ID
	// found by the preceding MessageExists call and reports whether
	// anything was purged. Callers verify with another MessageExists.
	PurgeMessage(ctx context.Context, messageID string) (bool, error)
	Close() error
}

// MailboxDialer opens a user's mailbox. Connect failures are classified
// with ErrImapDisabled when the domain has IMAP access switched off.
type MailboxDialer interface {
	Dial(ctx context.Context, userEmail string) (Mailbox, error)
}
