package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	repository "github.com/ds124wfegd/task-reminder/internal/database/postgres"
	"github.com/ds124wfegd/task-reminder/internal/entity"
	"github.com/ds124wfegd/task-reminder/pkg/phone"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const defaultTestMessage = "This is a test reminder from your task tracker."

type SchedulerConfig struct {
	TemplateName    string
	Language        string
	QueueSize       int
	LedgerRetention time.Duration
	CountryCode     string
	Location        *time.Location
	ScheduledLayout string
	DueLayout       string

	// Now overrides the clock, used by tests
	Now func() time.Time
}

type EvaluationAction string

const (
	ActionSkipped EvaluationAction = "skipped"
	ActionSent    EvaluationAction = "sent"
	ActionFailed  EvaluationAction = "failed"
	ActionError   EvaluationAction = "error"
)

// Evaluation описывает результат прохода задачи через конвейер напоминаний
type Evaluation struct {
	TaskID         int64                  `json:"task_id"`
	Action         EvaluationAction       `json:"action"`
	Reason         SkipReason             `json:"reason,omitempty"`
	Classification *entity.Classification `json:"classification,omitempty"`
	Channel        string                 `json:"channel,omitempty"`
	Result         *entity.DeliveryResult `json:"result,omitempty"`
	Error          string                 `json:"error,omitempty"`
}

type SweepReport struct {
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Checked   int           `json:"checked"`
	Sent      int           `json:"sent"`
	Failed    int           `json:"failed"`
	Skipped   int           `json:"skipped"`
	Errors    int           `json:"errors"`
}

type SchedulerStatus struct {
	Running       bool       `json:"running"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	LastSweepAt   *time.Time `json:"last_sweep_at,omitempty"`
	QueueDepth    int        `json:"queue_depth"`
	QueueCapacity int        `json:"queue_capacity"`
	Sent          int64      `json:"sent"`
	Failed        int64      `json:"failed"`
	Skipped       int64      `json:"skipped"`
	Dropped       int64      `json:"dropped"`
}

type TestSendRequest struct {
	Phone   string `json:"phone" binding:"required"`
	Message string `json:"message"`
}

// job is either a task change or a sweep request
type job struct {
	change *entity.TaskChange
	sweep  bool
}

type reminderScheduler struct {
	tasks      repository.TaskRepository
	users      repository.UserRepository
	ledger     Ledger
	gateway    Gateway
	feed       ChangeFeed
	events     EventPublisher
	normalizer *phone.Normalizer
	composer   *Composer
	cfg        SchedulerConfig

	mu          sync.Mutex
	running     bool
	startedAt   time.Time
	jobs        chan job
	cancel      context.CancelFunc
	unsubscribe func()
	wg          sync.WaitGroup

	lastSweep atomic.Pointer[time.Time]
	sent      atomic.Int64
	failed    atomic.Int64
	skipped   atomic.Int64
	dropped   atomic.Int64
}

// NewReminderScheduler wires the pipeline. events may be nil.
func NewReminderScheduler(
	tasks repository.TaskRepository,
	users repository.UserRepository,
	ledger Ledger,
	gateway Gateway,
	feed ChangeFeed,
	events EventPublisher,
	cfg SchedulerConfig,
) ReminderScheduler {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.LedgerRetention <= 0 {
		cfg.LedgerRetention = entity.LedgerRetention
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &reminderScheduler{
		tasks:      tasks,
		users:      users,
		ledger:     ledger,
		gateway:    gateway,
		feed:       feed,
		events:     events,
		normalizer: phone.NewNormalizer(cfg.CountryCode),
		composer:   NewComposer(cfg.Location, cfg.ScheduledLayout, cfg.DueLayout),
		cfg:        cfg,
	}
}

// Start subscribes to the change feed, starts the worker and queues one sweep.
// Calling it while running only logs a warning.
func (s *reminderScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		logrus.Warn("Reminder scheduler is already running")
		return nil
	}

	// планировщик переживает запрос, который его запустил
	workerCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	jobs := make(chan job, s.cfg.QueueSize)

	s.wg.Add(1)
	go s.worker(workerCtx, jobs)

	unsubscribe, err := s.feed.Subscribe(workerCtx, func(change entity.TaskChange) {
		s.enqueueChange(workerCtx, jobs, change)
	})
	if err != nil {
		cancel()
		s.wg.Wait()
		return fmt.Errorf("failed to subscribe to task changes: %w", err)
	}

	s.jobs = jobs
	s.cancel = cancel
	s.unsubscribe = unsubscribe
	s.running = true
	s.startedAt = s.cfg.Now()

	// очередь может быть уже заполнена событиями из Subscribe
	select {
	case jobs <- job{sweep: true}:
	default:
		s.dropped.Add(1)
		logrus.Warn("Reminder queue is full, initial sweep dropped")
	}

	logrus.WithField("queue_size", s.cfg.QueueSize).Info("Reminder scheduler started")
	return nil
}

func (s *reminderScheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		logrus.Warn("Reminder scheduler is not running")
		return
	}
	s.running = false
	cancel, unsubscribe := s.cancel, s.unsubscribe
	s.cancel, s.unsubscribe = nil, nil
	s.mu.Unlock()

	cancel()
	unsubscribe()
	s.wg.Wait()

	logrus.Info("Reminder scheduler stopped")
}

func (s *reminderScheduler) Status() SchedulerStatus {
	s.mu.Lock()
	status := SchedulerStatus{
		Running:       s.running,
		QueueCapacity: s.cfg.QueueSize,
		Sent:          s.sent.Load(),
		Failed:        s.failed.Load(),
		Skipped:       s.skipped.Load(),
		Dropped:       s.dropped.Load(),
	}
	if s.running {
		startedAt := s.startedAt
		status.StartedAt = &startedAt
		status.QueueDepth = len(s.jobs)
	}
	s.mu.Unlock()

	status.LastSweepAt = s.lastSweep.Load()
	return status
}

// Sweep queues an overdue sweep without waiting for it.
func (s *reminderScheduler) Sweep() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return entity.ErrSchedulerNotRunning
	}

	select {
	case s.jobs <- job{sweep: true}:
		return nil
	default:
		s.dropped.Add(1)
		logrus.Warn("Reminder queue is full, sweep dropped")
		return entity.ErrQueueFull
	}
}

// enqueueChange blocks the feed until there is room in the queue or the scheduler stops.
func (s *reminderScheduler) enqueueChange(ctx context.Context, jobs chan<- job, change entity.TaskChange) {
	if change.Type == entity.ChangeRemoved {
		logrus.WithField("task_id", change.Task.ID).Debug("Task left the feed, ignoring")
		return
	}

	select {
	case jobs <- job{change: &change}:
	case <-ctx.Done():
		s.dropped.Add(1)
	}
}

func (s *reminderScheduler) worker(ctx context.Context, jobs <-chan job) {
	defer s.wg.Done()

	logrus.Info("Reminder worker started")

	for {
		select {
		case <-ctx.Done():
			logrus.Info("Reminder worker stopped")
			return
		case j := <-jobs:
			if j.sweep {
				if _, err := s.RunSweep(ctx); err != nil {
					logrus.WithError(err).Error("Overdue sweep failed")
				}
				continue
			}
			s.Evaluate(ctx, &j.change.Task)
		}
	}
}

// RunSweep re-evaluates every open task whose due date has passed.
func (s *reminderScheduler) RunSweep(ctx context.Context) (*SweepReport, error) {
	startedAt := s.cfg.Now()
	report := &SweepReport{StartedAt: startedAt}

	tasks, err := s.tasks.GetOverdueTasks(ctx, startedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to load overdue tasks: %w", err)
	}

	for _, task := range tasks {
		if ctx.Err() != nil {
			logrus.Info("Overdue sweep interrupted by context cancellation")
			break
		}

		ev := s.Evaluate(ctx, task)
		report.Checked++
		switch ev.Action {
		case ActionSent:
			report.Sent++
		case ActionFailed:
			report.Failed++
		case ActionError:
			report.Errors++
		default:
			report.Skipped++
		}
	}

	report.Duration = s.cfg.Now().Sub(startedAt)
	s.lastSweep.Store(&startedAt)

	logrus.WithFields(logrus.Fields{
		"checked": report.Checked,
		"sent":    report.Sent,
		"failed":  report.Failed,
		"skipped": report.Skipped,
		"errors":  report.Errors,
	}).Info("Overdue sweep completed")

	return report, nil
}

func (s *reminderScheduler) EvaluateTask(ctx context.Context, taskID int64) (*Evaluation, error) {
	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}

	ev := s.Evaluate(ctx, task)
	return &ev, nil
}

// Evaluate runs one task through classifier, owner lookup, normalizer, ledger and gateway.
func (s *reminderScheduler) Evaluate(ctx context.Context, task *entity.Task) Evaluation {
	now := s.cfg.Now()
	log := logrus.WithField("task_id", task.ID)

	class, reason := Classify(task, now)
	if reason != "" {
		return s.skip(log, task.ID, reason, nil)
	}
	log = log.WithField("kind", class.Kind)

	user, err := s.users.GetByID(ctx, *task.AssigneeID)
	if errors.Is(err, entity.ErrUserNotFound) {
		return s.skip(log, task.ID, SkipOwnerNotFound, &class)
	}
	if err != nil {
		log.WithError(err).Error("Failed to resolve task owner")
		return Evaluation{TaskID: task.ID, Action: ActionError, Classification: &class, Error: err.Error()}
	}

	if user.Phone == "" {
		return s.skip(log, task.ID, SkipNoAddress, &class)
	}
	address, ok := s.normalizer.Canonical(user.Phone)
	if !ok {
		return s.skip(log.WithField("raw_phone", user.Phone), task.ID, SkipInvalidAddress, &class)
	}
	log = log.WithField("channel", address)

	key := entity.LedgerKey{TaskID: task.ID, Channel: address}
	allowed, err := s.ledger.Reserve(ctx, key, class.Kind, class.Cooldown, now)
	if err != nil {
		log.WithError(err).Error("Failed to check reminder ledger")
		return Evaluation{TaskID: task.ID, Action: ActionError, Classification: &class, Channel: address, Error: err.Error()}
	}
	if !allowed {
		ev := s.skip(log, task.ID, SkipCooldown, &class)
		ev.Channel = address
		return ev
	}

	result := s.deliver(ctx, class, user, task, address, now)

	if err := s.ledger.Complete(ctx, key, result); err != nil {
		log.WithError(err).Warn("Failed to store delivery outcome in ledger")
	}
	s.recordOutcome(ctx, log, task.ID, class.Kind, now)
	s.publishOutcome(ctx, log, key, class.Kind, result, now)

	ev := Evaluation{
		TaskID:         task.ID,
		Classification: &class,
		Channel:        address,
		Result:         &result,
	}
	if result.Success {
		s.sent.Add(1)
		ev.Action = ActionSent
		log.WithField("message_id", result.MessageID).Info("Reminder sent")
	} else {
		s.failed.Add(1)
		ev.Action = ActionFailed
		log.WithFields(logrus.Fields{
			"status_code": result.StatusCode,
			"error":       result.Error,
		}).Warn("Reminder delivery failed")
	}
	return ev
}

func (s *reminderScheduler) skip(log *logrus.Entry, taskID int64, reason SkipReason, class *entity.Classification) Evaluation {
	s.skipped.Add(1)
	log.WithField("reason", reason).Debug("Reminder skipped")
	return Evaluation{TaskID: taskID, Action: ActionSkipped, Reason: reason, Classification: class}
}

// deliver keeps the two send paths apart: template for due, free text for overdue.
func (s *reminderScheduler) deliver(ctx context.Context, class entity.Classification, user *entity.User, task *entity.Task, address string, now time.Time) entity.DeliveryResult {
	switch class.Kind {
	case entity.ReminderOverdue:
		return s.gateway.SendText(ctx, address, s.composer.OverdueText(user, task, now))
	default:
		return s.gateway.SendTemplate(ctx, address, s.cfg.TemplateName, s.cfg.Language, s.composer.Placeholders(user, task))
	}
}

// recordOutcome writes the bookkeeping counters back. Errors are only logged.
func (s *reminderScheduler) recordOutcome(ctx context.Context, log *logrus.Entry, taskID int64, kind entity.ReminderKind, now time.Time) {
	var err error
	switch kind {
	case entity.ReminderOverdue:
		err = s.tasks.MarkOverdueReminderSent(ctx, taskID, now)
	default:
		err = s.tasks.MarkReminderSent(ctx, taskID, now)
	}
	if err != nil {
		log.WithError(err).Warn("Failed to update reminder bookkeeping")
	}
}

func (s *reminderScheduler) publishOutcome(ctx context.Context, log *logrus.Entry, key entity.LedgerKey, kind entity.ReminderKind, result entity.DeliveryResult, now time.Time) {
	if s.events == nil {
		return
	}

	event := entity.ReminderEvent{
		ID:          uuid.NewString(),
		TaskID:      key.TaskID,
		Channel:     key.Channel,
		Kind:        kind,
		Success:     result.Success,
		Error:       result.Error,
		AttemptedAt: now,
	}
	if err := s.events.Publish(ctx, event); err != nil {
		log.WithError(err).Warn("Failed to publish reminder event")
	}
}

// SendTest sends a free-form message outside the ledger.
func (s *reminderScheduler) SendTest(ctx context.Context, req *TestSendRequest) (*entity.DeliveryResult, error) {
	address, ok := s.normalizer.Canonical(req.Phone)
	if !ok {
		return nil, fmt.Errorf("%w: phone %q is not a valid channel address", entity.ErrInvalidInput, req.Phone)
	}

	message := req.Message
	if message == "" {
		message = defaultTestMessage
	}

	result := s.gateway.SendText(ctx, address, message)
	logrus.WithFields(logrus.Fields{
		"channel": address,
		"success": result.Success,
	}).Info("Test message sent")

	return &result, nil
}

func (s *reminderScheduler) ListLedger(ctx context.Context) ([]entity.ReminderRecord, error) {
	records, err := s.ledger.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list reminder ledger: %w", err)
	}
	return records, nil
}

// PruneLedger drops ledger entries idle for longer than the retention period.
func (s *reminderScheduler) PruneLedger(ctx context.Context) (int, error) {
	removed, err := s.ledger.Prune(ctx, s.cfg.Now().Add(-s.cfg.LedgerRetention))
	if err != nil {
		return 0, fmt.Errorf("failed to prune reminder ledger: %w", err)
	}
	return removed, nil
}
