package recall

import (
	"context"
	"fmt"

	domain "github.com/gappsops/message-recall/internal/domain/recall"
	"github.com/gappsops/message-recall/internal/metrics"
	"github.com/sirupsen/logrus"
)

type CreateTaskInput struct {
	OwnerEmail      string
	MessageCriteria string
}

type CreateTaskOutput struct {
	TaskID string
}

type CreateTask interface {
	Execute(ctx context.Context, in CreateTaskInput) (CreateTaskOutput, error)
}

type taskCreator interface {
	Create(ctx context.Context, ownerEmail, domain, messageCriteria string) (domain.Task, error)
}

type createTask struct {
	tasks taskCreator
}

// NewCreateTask wires task creation. A created task sits in state Started
// until a recall worker claims it; no separate enqueue step exists.
func NewCreateTask(tasks taskCreator) CreateTask {
	return &createTask{tasks: tasks}
}

func (uc *createTask) Execute(ctx context.Context, in CreateTaskInput) (CreateTaskOutput, error) {
	criteria, err := domain.ValidateMessageCriteria(in.MessageCriteria)
	if err != nil {
		return CreateTaskOutput{}, err
	}
	ownerDomain, err := domain.OwnerDomain(in.OwnerEmail)
	if err != nil {
		return CreateTaskOutput{}, err
	}

	task, err := uc.tasks.Create(ctx, in.OwnerEmail, ownerDomain, criteria)
	if err != nil {
		return CreateTaskOutput{}, fmt.Errorf("%w: %v", ErrCreateTask, err)
	}

	metrics.TasksStarted.Inc()
	logrus.WithFields(logrus.Fields{
		"task_id":     task.ID,
		"owner_email": task.OwnerEmail,
	}).Info("recall task created")
	return CreateTaskOutput{TaskID: task.ID}, nil
}
