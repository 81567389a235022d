package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ds124wfegd/task-reminder/internal/entity"
)

const taskColumns = `id, title, description, status, priority, assignee_id, due_date,
		last_reminder_sent, reminder_count, last_overdue_reminder_sent, overdue_reminder_count,
		created_at, updated_at`

type taskRepository struct {
	db *sql.DB
}

func NewTaskRepository(db *sql.DB) TaskRepository {
	return &taskRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(row rowScanner) (*entity.Task, error) {
	var (
		task         entity.Task
		assigneeID   sql.NullInt64
		dueDate      sql.NullTime
		lastReminder sql.NullTime
		lastOverdue  sql.NullTime
		createdAt    sql.NullTime
		updatedAt    sql.NullTime
	)

	err := row.Scan(
		&task.ID,
		&task.Title,
		&task.Description,
		&task.Status,
		&task.Priority,
		&assigneeID,
		&dueDate,
		&lastReminder,
		&task.ReminderCount,
		&lastOverdue,
		&task.OverdueReminderCount,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if assigneeID.Valid {
		task.AssigneeID = &assigneeID.Int64
	}
	task.DueDate = nullTime(dueDate)
	task.LastReminderSent = nullTime(lastReminder)
	task.LastOverdueReminderSent = nullTime(lastOverdue)
	task.CreatedAt = createdAt.Time
	task.UpdatedAt = updatedAt.Time

	return &task, nil
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func (r *taskRepository) GetByID(ctx context.Context, id int64) (*entity.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`

	task, err := scanTask(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task %d: %w", id, err)
	}
	return task, nil
}

// GetOpenTasks возвращает все незавершенные задачи
func (r *taskRepository) GetOpenTasks(ctx context.Context) ([]*entity.Task, error) {
	query := `SELECT ` + taskColumns + `
		FROM tasks
		WHERE status <> $1
		ORDER BY id`

	return r.queryTasks(ctx, query, entity.TaskStatusCompleted)
}

// GetOverdueTasks возвращает незавершенные задачи с истекшим сроком
func (r *taskRepository) GetOverdueTasks(ctx context.Context, now time.Time) ([]*entity.Task, error) {
	query := `SELECT ` + taskColumns + `
		FROM tasks
		WHERE status <> $1 AND due_date IS NOT NULL AND due_date < $2
		ORDER BY due_date`

	return r.queryTasks(ctx, query, entity.TaskStatusCompleted, now)
}

func (r *taskRepository) queryTasks(ctx context.Context, query string, args ...interface{}) ([]*entity.Task, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*entity.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tasks: %w", err)
	}
	return tasks, nil
}

func (r *taskRepository) MarkReminderSent(ctx context.Context, id int64, at time.Time) error {
	query := `
		UPDATE tasks
		SET last_reminder_sent = $1, reminder_count = reminder_count + 1
		WHERE id = $2
	`
	return r.execBookkeeping(ctx, query, at, id)
}

func (r *taskRepository) MarkOverdueReminderSent(ctx context.Context, id int64, at time.Time) error {
	query := `
		UPDATE tasks
		SET last_overdue_reminder_sent = $1, overdue_reminder_count = overdue_reminder_count + 1
		WHERE id = $2
	`
	return r.execBookkeeping(ctx, query, at, id)
}

func (r *taskRepository) execBookkeeping(ctx context.Context, query string, at time.Time, id int64) error {
	result, err := r.db.ExecContext(ctx, query, at, id)
	if err != nil {
		return fmt.Errorf("failed to update reminder bookkeeping for task %d: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return entity.ErrTaskNotFound
	}
	return nil
}
