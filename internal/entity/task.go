package entity

import (
	"time"
)

type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "todo"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
)

// IsTerminal сообщает, что по задаче больше не отправляются напоминания
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

type Task struct {
	ID          int64      `json:"id" db:"id"`
	Title       string     `json:"title" db:"title"`
	Description string     `json:"description" db:"description"`
	Status      TaskStatus `json:"status" db:"status"`
	Priority    Priority   `json:"priority" db:"priority"`
	AssigneeID  *int64     `json:"assignee_id,omitempty" db:"assignee_id"`
	DueDate     *time.Time `json:"due_date,omitempty" db:"due_date"`

	// bookkeeping, written after each attempt and never read by the classifier
	LastReminderSent        *time.Time `json:"last_reminder_sent,omitempty" db:"last_reminder_sent"`
	ReminderCount           int        `json:"reminder_count" db:"reminder_count"`
	LastOverdueReminderSent *time.Time `json:"last_overdue_reminder_sent,omitempty" db:"last_overdue_reminder_sent"`
	OverdueReminderCount    int        `json:"overdue_reminder_count" db:"overdue_reminder_count"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type ChangeType string

const (
	ChangeAdded    ChangeType = "added"
	ChangeModified ChangeType = "modified"
	ChangeRemoved  ChangeType = "removed"
)

// TaskChange событие ленты изменений задач
type TaskChange struct {
	Type ChangeType `json:"type"`
	Task Task       `json:"task"`
}
