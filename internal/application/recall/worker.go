package recall

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	domain "github.com/gappsops/message-recall/internal/domain/recall"
	"github.com/gappsops/message-recall/internal/metrics"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Directory pages are copied into the store in batches of this size.
const stageBatchSize = 100

type workerTaskRepo interface {
	ClaimNext(ctx context.Context, leaseDuration time.Duration) (*domain.Task, error)
	Heartbeat(ctx context.Context, taskID string, leaseDuration time.Duration) error
	SetState(ctx context.Context, taskID string, state domain.TaskState) error
	Finalize(ctx context.Context, taskID string) error
	Fail(ctx context.Context, taskID, reason string) error
	Requeue(ctx context.Context, taskID, reason string) error
	IsAborted(ctx context.Context, taskID string) (bool, error)
}

type workerUserRepo interface {
	FetchActivePage(ctx context.Context, taskID string, afterID int64, limit int) ([]domain.TaskUser, error)
	MarkRecalling(ctx context.Context, userID int64) error
	SetUserState(ctx context.Context, userID int64, state domain.UserState) error
	SetMessageState(ctx context.Context, userID int64, state domain.MessageState) error
	CountForTask(ctx context.Context, taskID string, filter domain.UserFilter) (int64, error)
	CountTerminal(ctx context.Context, taskID string) (int64, error)
}

type userStager interface {
	StageUsers(ctx context.Context, taskID string, users []domain.DirectoryUser) (int64, error)
}

type counterRepo interface {
	Increment(ctx context.Context, taskID, name string, delta int64) (int64, error)
}

type WorkerConfig struct {
	Workers           int
	RetrievalWorkers  int
	RecallConcurrency int
	PollInterval      time.Duration
	LeaseDuration     time.Duration
	HeartbeatInterval time.Duration
	MonitorInterval   time.Duration
}

// Worker drains the recall task queue. Each claimed task runs the full
// pipeline in-process: retrieve the domain's users, recall the message
// from each mailbox, finalize when every user is terminal.
type Worker struct {
	tasks     workerTaskRepo
	users     workerUserRepo
	stager    userStager
	errs      errorRecorder
	counters  counterRepo
	directory domain.Directory
	dialer    domain.MailboxDialer
	cfg       WorkerConfig
	log       *logrus.Entry

	once sync.Once
}

func NewWorker(
	tasks workerTaskRepo,
	users workerUserRepo,
	stager userStager,
	errs errorRecorder,
	counters counterRepo,
	dir domain.Directory,
	dialer domain.MailboxDialer,
	cfg WorkerConfig,
) *Worker {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.RetrievalWorkers <= 0 {
		cfg.RetrievalWorkers = 6
	}
	if cfg.RecallConcurrency <= 0 {
		cfg.RecallConcurrency = 10
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.LeaseDuration <= 0 {
		cfg.LeaseDuration = 2 * time.Minute
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = cfg.LeaseDuration / 2
	}
	if cfg.MonitorInterval <= 0 {
		cfg.MonitorInterval = 10 * time.Second
	}

	return &Worker{
		tasks:     tasks,
		users:     users,
		stager:    stager,
		errs:      errs,
		counters:  counters,
		directory: dir,
		dialer:    dialer,
		cfg:       cfg,
		log:       logrus.WithField("component", "recall_worker"),
	}
}

func (w *Worker) Start(ctx context.Context) {
	w.once.Do(func() {
		for i := 0; i < w.cfg.Workers; i++ {
			go w.workerLoop(ctx)
		}
	})
}

func (w *Worker) workerLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		task, err := w.tasks.ClaimNext(ctx, w.cfg.LeaseDuration)
		if err != nil {
			w.log.WithError(err).Error("claim next recall task failed")
			if !sleepWithContext(ctx, w.cfg.PollInterval) {
				return
			}
			continue
		}
		if task == nil {
			if !sleepWithContext(ctx, w.cfg.PollInterval) {
				return
			}
			continue
		}

		if err := w.ProcessTask(ctx, *task); err != nil {
			w.log.WithError(err).WithField("task_id", task.ID).Error("process recall task failed")
		}
	}
}

// ProcessTask runs the pipeline for one claimed task. It is resumable: a
// re-claimed task redoes the current stage, and both the staging insert
// and the per-user state guards make redone work a no-op.
func (w *Worker) ProcessTask(ctx context.Context, task domain.Task) error {
	procCtx, stopHeartbeat := context.WithCancel(ctx)
	defer stopHeartbeat()
	go w.heartbeatLoop(procCtx, task.ID)

	if err := w.retrieveUsers(procCtx, task); err != nil {
		return w.onProcessingError(ctx, task, err)
	}
	if err := w.recallUsers(procCtx, task); err != nil {
		return w.onProcessingError(ctx, task, err)
	}
	if err := w.waitForCompletion(procCtx, task); err != nil {
		return w.onProcessingError(ctx, task, err)
	}
	return nil
}

func (w *Worker) heartbeatLoop(ctx context.Context, taskID string) {
	ticker := time.NewTicker(w.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.tasks.Heartbeat(ctx, taskID, w.cfg.LeaseDuration); err != nil && ctx.Err() == nil {
				w.log.WithError(err).WithField("task_id", taskID).Warn("heartbeat failed")
			}
		}
	}
}

// emailPrefixPartitions divides the email namespace so retrieval can fan
// out. Gmail usernames start with a letter or digit.
func emailPrefixPartitions() []string {
	parts := make([]string, 0, 36)
	for _, r := range "abcdefghijklmnopqrstuvwxyz0123456789" {
		parts = append(parts, string(r))
	}
	return parts
}

func (w *Worker) retrieveUsers(ctx context.Context, task domain.Task) error {
	if err := w.checkAborted(ctx, task.ID); err != nil {
		return err
	}
	if err := w.tasks.SetState(ctx, task.ID, domain.TaskGettingUsers); err != nil {
		return err
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(w.cfg.RetrievalWorkers)
	for _, prefix := range emailPrefixPartitions() {
		prefix := prefix
		group.Go(func() error {
			return w.retrievePartition(groupCtx, task, prefix)
		})
	}
	return group.Wait()
}

func (w *Worker) retrievePartition(ctx context.Context, task domain.Task, prefix string) error {
	if _, err := w.counters.Increment(ctx, task.ID, domain.CounterRetrievalStarted, 1); err != nil {
		return err
	}

	batch := make([]domain.DirectoryUser, 0, stageBatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if _, err := w.stager.StageUsers(ctx, task.ID, batch); err != nil {
			return err
		}
		batch = batch[:0]
		return nil
	}

	err := w.directory.ListUsers(ctx, task.Domain, prefix, func(users []domain.DirectoryUser) error {
		if err := w.checkAborted(ctx, task.ID); err != nil {
			return err
		}
		for _, user := range users {
			batch = append(batch, user)
			if len(batch) >= stageBatchSize {
				if err := flush(); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		// Undo the started mark so the debug counters stay honest
		// about how many partitions actually completed.
		if _, decErr := w.counters.Increment(ctx, task.ID, domain.CounterRetrievalStarted, -1); decErr != nil {
			w.log.WithError(decErr).WithField("task_id", task.ID).Warn("failed to unwind retrieval counter")
		}
		return fmt.Errorf("retrieve users with prefix %q: %w", prefix, err)
	}
	if err := flush(); err != nil {
		return err
	}

	_, err = w.counters.Increment(ctx, task.ID, domain.CounterRetrievalEnded, 1)
	return err
}

func (w *Worker) recallUsers(ctx context.Context, task domain.Task) error {
	if err := w.checkAborted(ctx, task.ID); err != nil {
		return err
	}
	if err := w.tasks.SetState(ctx, task.ID, domain.TaskRecalling); err != nil {
		return err
	}

	afterID := int64(0)
	for {
		users, err := w.users.FetchActivePage(ctx, task.ID, afterID, stageBatchSize)
		if err != nil {
			return err
		}
		if len(users) == 0 {
			return nil
		}

		group, groupCtx := errgroup.WithContext(ctx)
		group.SetLimit(w.cfg.RecallConcurrency)
		for _, user := range users {
			user := user
			group.Go(func() error {
				return w.recallUser(groupCtx, task, user)
			})
		}
		if err := group.Wait(); err != nil {
			return err
		}
		afterID = users[len(users)-1].ID
	}
}

// recallUser performs the IMAP pass for one mailbox. Mailbox trouble is
// recorded in the user's states and the error log; it never fails the
// task.
func (w *Worker) recallUser(ctx context.Context, task domain.Task, user domain.TaskUser) error {
	if err := w.checkAborted(ctx, task.ID); err != nil {
		return err
	}
	if err := w.users.MarkRecalling(ctx, user.ID); err != nil {
		return err
	}

	mbox, err := w.dialer.Dial(ctx, user.UserEmail)
	if err != nil {
		state := domain.UserConnectFailed
		if errors.Is(err, domain.ErrImapDisabled) {
			state = domain.UserImapDisabled
		}
		return w.finishUser(ctx, task, user, state, err)
	}
	defer mbox.Close()

	exists, err := mbox.MessageExists(ctx, task.MessageCriteria)
	if err != nil {
		return w.finishUser(ctx, task, user, domain.UserConnectFailed, err)
	}
	if !exists {
		if err := w.users.SetMessageState(ctx, user.ID, domain.MessageNotFound); err != nil {
			return err
		}
		return w.finishUser(ctx, task, user, domain.UserDone, nil)
	}
	if err := w.users.SetMessageState(ctx, user.ID, domain.MessageFound); err != nil {
		return err
	}

	purged, err := mbox.PurgeMessage(ctx, task.MessageCriteria)
	if err != nil || !purged {
		if stateErr := w.users.SetMessageState(ctx, user.ID, domain.MessageDeleteFailed); stateErr != nil {
			return stateErr
		}
		return w.finishUser(ctx, task, user, domain.UserDone, err)
	}
	if err := w.users.SetMessageState(ctx, user.ID, domain.MessagePurged); err != nil {
		return err
	}

	// The purge only counts once the message can no longer be found.
	stillThere, err := mbox.MessageExists(ctx, task.MessageCriteria)
	verifyState := domain.MessageVerifiedPurged
	if err != nil || stillThere {
		verifyState = domain.MessageVerifyFailed
	}
	if stateErr := w.users.SetMessageState(ctx, user.ID, verifyState); stateErr != nil {
		return stateErr
	}
	return w.finishUser(ctx, task, user, domain.UserDone, err)
}

// finishUser records the user's terminal state, logging mailboxErr as an
// error reason when present.
func (w *Worker) finishUser(ctx context.Context, task domain.Task, user domain.TaskUser, state domain.UserState, mailboxErr error) error {
	if mailboxErr != nil && !errors.Is(mailboxErr, context.Canceled) {
		if err := w.errs.Add(ctx, task.ID, user.UserEmail, mailboxErr.Error()); err != nil {
			return err
		}
	}
	if err := w.users.SetUserState(ctx, user.ID, state); err != nil {
		return err
	}
	metrics.UsersProcessed.WithLabelValues(string(state)).Inc()
	return nil
}

// waitForCompletion holds the task open until every user record is in a
// terminal state, then finalizes. The in-process pools have drained by
// now, but a re-claimed task can arrive here with work done by a
// previous holder still settling.
func (w *Worker) waitForCompletion(ctx context.Context, task domain.Task) error {
	for {
		if err := w.checkAborted(ctx, task.ID); err != nil {
			return err
		}

		total, err := w.users.CountForTask(ctx, task.ID, domain.UserFilter{})
		if err != nil {
			return err
		}
		terminal, err := w.users.CountTerminal(ctx, task.ID)
		if err != nil {
			return err
		}
		if terminal >= total {
			w.log.WithField("task_id", task.ID).Warn("recall task done")
			return w.tasks.Finalize(ctx, task.ID)
		}

		if !sleepWithContext(ctx, w.cfg.MonitorInterval) {
			return ctx.Err()
		}
	}
}

func (w *Worker) checkAborted(ctx context.Context, taskID string) error {
	aborted, err := w.tasks.IsAborted(ctx, taskID)
	if err != nil {
		return err
	}
	if aborted {
		return domain.ErrTaskAborted
	}
	return nil
}

func (w *Worker) onProcessingError(ctx context.Context, task domain.Task, err error) error {
	if errors.Is(err, domain.ErrTaskAborted) {
		// Someone ended the task under us; nothing left to do.
		return nil
	}

	metrics.WorkerErrors.Inc()
	if _, cntErr := w.counters.Increment(ctx, task.ID, domain.CounterRecallError, 1); cntErr != nil {
		w.log.WithError(cntErr).WithField("task_id", task.ID).Warn("failed to bump error counter")
	}

	reason := domain.TruncateReason(err.Error())
	if addErr := w.errs.Add(ctx, task.ID, "", reason); addErr != nil {
		w.log.WithError(addErr).WithField("task_id", task.ID).Warn("failed to record error reason")
	}

	if task.Attempts < task.MaxAttempts {
		if requeueErr := w.tasks.Requeue(ctx, task.ID, reason); requeueErr != nil {
			return fmt.Errorf("%v; requeue failed: %w", err, requeueErr)
		}
		return err
	}
	if failErr := w.tasks.Fail(ctx, task.ID, reason); failErr != nil {
		return fmt.Errorf("%v; fail update failed: %w", err, failErr)
	}
	return err
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
