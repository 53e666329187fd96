package recall

import (
	"context"
	"fmt"

	domain "github.com/gappsops/message-recall/internal/domain/recall"
	"github.com/sirupsen/logrus"
)

type AbortTaskInput struct {
	AppsDomain  string
	TaskID      string
	RequestedBy string
}

type AbortTask interface {
	Execute(ctx context.Context, in AbortTaskInput) error
}

type taskAborter interface {
	GetForDomain(ctx context.Context, appsDomain, taskID string) (domain.Task, error)
	Fail(ctx context.Context, taskID, reason string) error
}

type errorRecorder interface {
	Add(ctx context.Context, taskID, userEmail, reason string) error
}

type abortTask struct {
	tasks  taskAborter
	errors errorRecorder
}

// NewAbortTask ends a running recall. Workers observe the aborted flag
// between stages and per-user dispatches and stop on their own.
func NewAbortTask(tasks taskAborter, errors errorRecorder) AbortTask {
	return &abortTask{tasks: tasks, errors: errors}
}

func (uc *abortTask) Execute(ctx context.Context, in AbortTaskInput) error {
	task, err := uc.tasks.GetForDomain(ctx, in.AppsDomain, in.TaskID)
	if err != nil {
		return err
	}
	if task.State == domain.TaskDone {
		return nil
	}

	reason := fmt.Sprintf("Aborted by %s.", in.RequestedBy)
	if err := uc.errors.Add(ctx, task.ID, "", reason); err != nil {
		return fmt.Errorf("%w: %v", ErrAbortTask, err)
	}
	if err := uc.tasks.Fail(ctx, task.ID, reason); err != nil {
		return fmt.Errorf("%w: %v", ErrAbortTask, err)
	}

	logrus.WithFields(logrus.Fields{
		"task_id":      task.ID,
		"requested_by": in.RequestedBy,
	}).Warn("recall task aborted")
	return nil
}
