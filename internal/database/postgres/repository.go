package repository

import (
	"context"
	"time"

	"github.com/ds124wfegd/task-reminder/internal/entity"
)

type TaskRepository interface {
	GetByID(ctx context.Context, id int64) (*entity.Task, error)

	// Query operations
	GetOpenTasks(ctx context.Context) ([]*entity.Task, error)
	GetOverdueTasks(ctx context.Context, now time.Time) ([]*entity.Task, error)

	// Bookkeeping, narrow updates only
	MarkReminderSent(ctx context.Context, id int64, at time.Time) error
	MarkOverdueReminderSent(ctx context.Context, id int64, at time.Time) error
}

type UserRepository interface {
	GetByID(ctx context.Context, id int64) (*entity.User, error)
}

type SettingsRepository interface {
	GetByUserID(ctx context.Context, userID int64) (*entity.ReminderSettings, error)
	Upsert(ctx context.Context, settings *entity.ReminderSettings) error
}
