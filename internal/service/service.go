package service

import (
	"context"
	"time"

	"github.com/ds124wfegd/task-reminder/internal/entity"
)

// ReminderScheduler ведет жизненный цикл планировщика напоминаний
type ReminderScheduler interface {
	// Жизненный цикл
	Start(ctx context.Context) error
	Stop()
	Status() SchedulerStatus

	// Оценка задач
	Evaluate(ctx context.Context, task *entity.Task) Evaluation
	EvaluateTask(ctx context.Context, taskID int64) (*Evaluation, error)
	Sweep() error
	RunSweep(ctx context.Context) (*SweepReport, error)

	// Журнал и ручные отправки
	SendTest(ctx context.Context, req *TestSendRequest) (*entity.DeliveryResult, error)
	ListLedger(ctx context.Context) ([]entity.ReminderRecord, error)
	PruneLedger(ctx context.Context) (int, error)
}

type SettingsService interface {
	GetSettings(ctx context.Context, userID int64) (*entity.ReminderSettings, error)
	UpdateSettings(ctx context.Context, userID int64, req *UpdateSettingsRequest) (*entity.ReminderSettings, error)
}

// Ledger is the dedup ledger keyed by (task, channel address).
// The scheduler only uses Reserve and Complete. ShouldSend and Record are the
// non-atomic check and write, kept for callers that inspect or seed the ledger.
type Ledger interface {
	ShouldSend(ctx context.Context, key entity.LedgerKey, cooldown time.Duration, now time.Time) (bool, error)
	Record(ctx context.Context, key entity.LedgerKey, kind entity.ReminderKind, now time.Time) error
	Reserve(ctx context.Context, key entity.LedgerKey, kind entity.ReminderKind, cooldown time.Duration, now time.Time) (bool, error)
	Complete(ctx context.Context, key entity.LedgerKey, result entity.DeliveryResult) error
	Prune(ctx context.Context, before time.Time) (int, error)
	List(ctx context.Context) ([]entity.ReminderRecord, error)
}

// Gateway delivers messages. Failures are reported in the result, never as errors.
type Gateway interface {
	SendTemplate(ctx context.Context, to, templateName, language string, placeholders []string) entity.DeliveryResult
	SendText(ctx context.Context, to, text string) entity.DeliveryResult
}

// ChangeFeed pushes changes of open tasks until the returned unsubscribe func is called.
type ChangeFeed interface {
	Subscribe(ctx context.Context, handle func(entity.TaskChange)) (func(), error)
}

// EventPublisher интерфейс для публикации результатов отправки
type EventPublisher interface {
	Publish(ctx context.Context, event entity.ReminderEvent) error
}
