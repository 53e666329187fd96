package recall

import "errors"

var (
	ErrNotAuthorized = errors.New("user is not authorized for message recall in this domain")
	ErrCreateTask    = errors.New("failed to create recall task")
	ErrAbortTask     = errors.New("failed to abort recall task")
)
