package service

import (
	"math"
	"time"

	"github.com/ds124wfegd/task-reminder/internal/entity"
)

type SkipReason string

const (
	SkipCompleted      SkipReason = "completed"
	SkipNoDueDate      SkipReason = "no_due_date"
	SkipNoOwner        SkipReason = "no_owner"
	SkipOutsideWindow  SkipReason = "outside_window"
	SkipOwnerNotFound  SkipReason = "owner_not_found"
	SkipNoAddress      SkipReason = "no_address"
	SkipInvalidAddress SkipReason = "invalid_address"
	SkipCooldown       SkipReason = "cooldown"
)

const day = 24 * time.Hour

// DaysUntilDue rounds up, so anything less than a full day past due still counts as today.
func DaysUntilDue(due, now time.Time) int {
	return int(math.Ceil(float64(due.Sub(now)) / float64(day)))
}

// Classify decides whether a task warrants a reminder at now.
// An empty SkipReason means the returned classification is actionable.
func Classify(task *entity.Task, now time.Time) (entity.Classification, SkipReason) {
	if task.Status.IsTerminal() {
		return entity.Classification{}, SkipCompleted
	}
	if task.AssigneeID == nil {
		return entity.Classification{}, SkipNoOwner
	}
	if task.DueDate == nil {
		return entity.Classification{}, SkipNoDueDate
	}

	days := DaysUntilDue(*task.DueDate, now)
	switch {
	case days == 1:
		return entity.Classification{
			Kind:         entity.ReminderDue,
			Window:       entity.DueTomorrow,
			DaysUntilDue: days,
			Cooldown:     entity.CooldownDueTomorrow,
		}, ""
	case days == 0:
		return entity.Classification{
			Kind:         entity.ReminderDue,
			Window:       entity.DueToday,
			DaysUntilDue: days,
			Cooldown:     entity.CooldownDueToday,
		}, ""
	case days < 0:
		return entity.Classification{
			Kind:         entity.ReminderOverdue,
			DaysUntilDue: days,
			Cooldown:     entity.CooldownOverdue,
		}, ""
	default:
		return entity.Classification{DaysUntilDue: days}, SkipOutsideWindow
	}
}
