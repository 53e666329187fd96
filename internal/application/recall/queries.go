package recall

import (
	"context"
	"fmt"

	domain "github.com/gappsops/message-recall/internal/domain/recall"
)

// Narrow read-side ports; the repository package satisfies all of them.

type taskReader interface {
	GetForDomain(ctx context.Context, appsDomain, taskID string) (domain.Task, error)
}

type taskLister interface {
	ListForDomain(ctx context.Context, appsDomain, cursor string) (domain.TaskPage, error)
}

type userLister interface {
	ListForTask(ctx context.Context, taskID string, filter domain.UserFilter, cursor string) (domain.UserPage, error)
	StateCounts(ctx context.Context, taskID string) (map[domain.UserState]int64, map[domain.MessageState]int64, error)
}

type errorLister interface {
	ListForTask(ctx context.Context, taskID, cursor string) (domain.ErrorPage, error)
	CountForTask(ctx context.Context, taskID string) (int64, error)
}

type counterReader interface {
	Get(ctx context.Context, taskID, name string) (int64, error)
}

// GetTaskDetail backs the single-task page: the task row plus the number
// of recorded error reasons.
type GetTaskDetailOutput struct {
	Task       domain.Task
	ErrorCount int64
}

type GetTaskDetail interface {
	Execute(ctx context.Context, appsDomain, taskID string) (GetTaskDetailOutput, error)
}

type getTaskDetail struct {
	tasks  taskReader
	errors errorLister
}

func NewGetTaskDetail(tasks taskReader, errors errorLister) GetTaskDetail {
	return &getTaskDetail{tasks: tasks, errors: errors}
}

func (uc *getTaskDetail) Execute(ctx context.Context, appsDomain, taskID string) (GetTaskDetailOutput, error) {
	task, err := uc.tasks.GetForDomain(ctx, appsDomain, taskID)
	if err != nil {
		return GetTaskDetailOutput{}, err
	}
	errorCount, err := uc.errors.CountForTask(ctx, taskID)
	if err != nil {
		return GetTaskDetailOutput{}, err
	}
	return GetTaskDetailOutput{Task: task, ErrorCount: errorCount}, nil
}

// ListTasks backs the history page.
type ListTasks interface {
	Execute(ctx context.Context, appsDomain, cursor string) (domain.TaskPage, error)
}

type listTasks struct {
	tasks taskLister
}

func NewListTasks(tasks taskLister) ListTasks {
	return &listTasks{tasks: tasks}
}

func (uc *listTasks) Execute(ctx context.Context, appsDomain, cursor string) (domain.TaskPage, error) {
	return uc.tasks.ListForDomain(ctx, appsDomain, cursor)
}

// ListTaskUsers backs the per-user progress page. State filters arrive as
// raw query values and are validated against the known state sets.
type ListTaskUsersInput struct {
	AppsDomain    string
	TaskID        string
	UserStates    []string
	MessageStates []string
	Cursor        string
}

type ListTaskUsers interface {
	Execute(ctx context.Context, in ListTaskUsersInput) (domain.UserPage, error)
}

type listTaskUsers struct {
	tasks taskReader
	users userLister
}

func NewListTaskUsers(tasks taskReader, users userLister) ListTaskUsers {
	return &listTaskUsers{tasks: tasks, users: users}
}

func (uc *listTaskUsers) Execute(ctx context.Context, in ListTaskUsersInput) (domain.UserPage, error) {
	if _, err := uc.tasks.GetForDomain(ctx, in.AppsDomain, in.TaskID); err != nil {
		return domain.UserPage{}, err
	}

	filter := domain.UserFilter{}
	for _, s := range in.UserStates {
		if !domain.ValidUserState(s) {
			return domain.UserPage{}, fmt.Errorf("%w: %q", domain.ErrInvalidStateFilter, s)
		}
		filter.UserStates = append(filter.UserStates, domain.UserState(s))
	}
	for _, s := range in.MessageStates {
		if !domain.ValidMessageState(s) {
			return domain.UserPage{}, fmt.Errorf("%w: %q", domain.ErrInvalidStateFilter, s)
		}
		filter.MessageStates = append(filter.MessageStates, domain.MessageState(s))
	}

	return uc.users.ListForTask(ctx, in.TaskID, filter, in.Cursor)
}

// ListTaskErrors backs the task problems page.
type ListTaskErrors interface {
	Execute(ctx context.Context, appsDomain, taskID, cursor string) (domain.ErrorPage, error)
}

type listTaskErrors struct {
	tasks  taskReader
	errors errorLister
}

func NewListTaskErrors(tasks taskReader, errors errorLister) ListTaskErrors {
	return &listTaskErrors{tasks: tasks, errors: errors}
}

func (uc *listTaskErrors) Execute(ctx context.Context, appsDomain, taskID, cursor string) (domain.ErrorPage, error) {
	if _, err := uc.tasks.GetForDomain(ctx, appsDomain, taskID); err != nil {
		return domain.ErrorPage{}, err
	}
	return uc.errors.ListForTask(ctx, taskID, cursor)
}

// TaskReport aggregates per-state user counts for the summary page.
type TaskReportOutput struct {
	Task          domain.Task
	UserCounts    map[domain.UserState]int64
	MessageCounts map[domain.MessageState]int64
}

type TaskReport interface {
	Execute(ctx context.Context, appsDomain, taskID string) (TaskReportOutput, error)
}

type taskReport struct {
	tasks taskReader
	users userLister
}

func NewTaskReport(tasks taskReader, users userLister) TaskReport {
	return &taskReport{tasks: tasks, users: users}
}

func (uc *taskReport) Execute(ctx context.Context, appsDomain, taskID string) (TaskReportOutput, error) {
	task, err := uc.tasks.GetForDomain(ctx, appsDomain, taskID)
	if err != nil {
		return TaskReportOutput{}, err
	}
	userCounts, messageCounts, err := uc.users.StateCounts(ctx, taskID)
	if err != nil {
		return TaskReportOutput{}, err
	}
	return TaskReportOutput{
		Task:          task,
		UserCounts:    userCounts,
		MessageCounts: messageCounts,
	}, nil
}

// TaskDebug exposes the pipeline counters for the debug page.
type TaskDebugOutput struct {
	Task             domain.Task
	RetrievalStarted int64
	RetrievalEnded   int64
	WorkerErrors     int64
}

type TaskDebug interface {
	Execute(ctx context.Context, appsDomain, taskID string) (TaskDebugOutput, error)
}

type taskDebug struct {
	tasks    taskReader
	counters counterReader
}

func NewTaskDebug(tasks taskReader, counters counterReader) TaskDebug {
	return &taskDebug{tasks: tasks, counters: counters}
}

func (uc *taskDebug) Execute(ctx context.Context, appsDomain, taskID string) (TaskDebugOutput, error) {
	task, err := uc.tasks.GetForDomain(ctx, appsDomain, taskID)
	if err != nil {
		return TaskDebugOutput{}, err
	}

	out := TaskDebugOutput{Task: task}
	if out.RetrievalStarted, err = uc.counters.Get(ctx, taskID, domain.CounterRetrievalStarted); err != nil {
		return TaskDebugOutput{}, err
	}
	if out.RetrievalEnded, err = uc.counters.Get(ctx, taskID, domain.CounterRetrievalEnded); err != nil {
		return TaskDebugOutput{}, err
	}
	if out.WorkerErrors, err = uc.counters.Get(ctx, taskID, domain.CounterRecallError); err != nil {
		return TaskDebugOutput{}, err
	}
	return out, nil
}
