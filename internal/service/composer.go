package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/ds124wfegd/task-reminder/internal/entity"
)

const (
	defaultLayout      = "02/01/2006"
	defaultDisplayName = "there"
)

// Composer renders reminder content. Due reminders use the five-slot template,
// overdue reminders are free-form text.
type Composer struct {
	location        *time.Location
	scheduledLayout string
	dueLayout       string
}

func NewComposer(location *time.Location, scheduledLayout, dueLayout string) *Composer {
	if location == nil {
		location = time.UTC
	}
	if scheduledLayout == "" {
		scheduledLayout = defaultLayout
	}
	if dueLayout == "" {
		dueLayout = defaultLayout
	}
	return &Composer{
		location:        location,
		scheduledLayout: scheduledLayout,
		dueLayout:       dueLayout,
	}
}

// Placeholders returns name, title, scheduled date, priority label, due date.
// Both dates are taken from the due date.
func (c *Composer) Placeholders(user *entity.User, task *entity.Task) []string {
	var scheduled, due string
	if task.DueDate != nil {
		local := task.DueDate.In(c.location)
		scheduled = local.Format(c.scheduledLayout)
		due = local.Format(c.dueLayout)
	}

	return []string{
		displayName(user),
		task.Title,
		scheduled,
		priorityLabel(task.Priority),
		due,
	}
}

func (c *Composer) OverdueText(user *entity.User, task *entity.Task, now time.Time) string {
	var b strings.Builder

	fmt.Fprintf(&b, "URGENT: Hi %s, your task \"%s\" is overdue", displayName(user), task.Title)
	if task.DueDate != nil {
		overdue := -DaysUntilDue(*task.DueDate, now)
		fmt.Fprintf(&b, " by %d %s (was due %s)", overdue, plural(overdue, "day", "days"),
			task.DueDate.In(c.location).Format(c.dueLayout))
	}
	fmt.Fprintf(&b, ". Priority: %s. Please complete it or update the due date as soon as possible.",
		priorityLabel(task.Priority))

	return b.String()
}

func displayName(user *entity.User) string {
	if user == nil || strings.TrimSpace(user.Name) == "" {
		return defaultDisplayName
	}
	return strings.TrimSpace(user.Name)
}

func priorityLabel(p entity.Priority) string {
	if p == "" {
		p = entity.PriorityMedium
	}
	return strings.ToUpper(string(p))
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
