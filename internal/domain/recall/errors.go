package recall

import "errors"

var (
	ErrInvalidMessageCriteria = errors.New("invalid message criteria")
	ErrInvalidOwnerEmail      = errors.New("invalid owner email")
	ErrTaskNotFound           = errors.New("recall task not found")
	ErrTaskAborted            = errors.New("recall task aborted")
	ErrInvalidCursor          = errors.New("invalid page cursor")
	ErrImapDisabled           = errors.New("imap access is disabled for the domain")
	ErrInvalidStateFilter     = errors.New("invalid state filter")
)
