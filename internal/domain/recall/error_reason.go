package recall

import "time"

const errorReasonMaxLen = 500

// ErrorReason records one failure encountered while running a task, for
// post-recall reporting. UserEmail is empty for failures that happened
// before any per-user work.
type ErrorReason struct {
	ID        int64
	TaskID    string
	UserEmail string
	Reason    string
	CreatedAt time.Time
}

// TruncateReason caps a failure description at the stored column length.
func TruncateReason(reason string) string {
	if len(reason) <= errorReasonMaxLen {
		return reason
	}
	return reason[:errorReasonMaxLen]
}
