package entity

import (
	"fmt"
	"time"
)

type ReminderKind string

const (
	ReminderDue     ReminderKind = "due"
	ReminderOverdue ReminderKind = "overdue"
)

type DueWindow string

const (
	DueTomorrow DueWindow = "tomorrow"
	DueToday    DueWindow = "today"
)

const (
	CooldownDueTomorrow = 24 * time.Hour
	CooldownDueToday    = 12 * time.Hour
	CooldownOverdue     = 6 * time.Hour

	// записи журнала без активности дольше этого срока удаляются
	LedgerRetention = 30 * 24 * time.Hour
)

// Classification результат классификации задачи, пригодной к отправке
type Classification struct {
	Kind         ReminderKind  `json:"kind"`
	Window       DueWindow     `json:"window,omitempty"`
	DaysUntilDue int           `json:"days_until_due"`
	Cooldown     time.Duration `json:"cooldown"`
}

type LedgerKey struct {
	TaskID  int64  `json:"task_id"`
	Channel string `json:"channel"`
}

func (k LedgerKey) String() string {
	return fmt.Sprintf("%d:%s", k.TaskID, k.Channel)
}

type DeliveryOutcome string

const (
	OutcomePending DeliveryOutcome = "pending"
	OutcomeSent    DeliveryOutcome = "sent"
	OutcomeFailed  DeliveryOutcome = "failed"
)

type ReminderRecord struct {
	Key      LedgerKey       `json:"key"`
	LastSent time.Time       `json:"last_sent"`
	Kind     ReminderKind    `json:"kind"`
	Outcome  DeliveryOutcome `json:"outcome"`
	Error    string          `json:"error,omitempty"`
}

// DeliveryResult результат обращения к шлюзу, всегда значение, а не ошибка
type DeliveryResult struct {
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
	StatusCode int    `json:"status_code,omitempty"`
	MessageID  string `json:"message_id,omitempty"`
}

func (r DeliveryResult) Outcome() DeliveryOutcome {
	if r.Success {
		return OutcomeSent
	}
	return OutcomeFailed
}

// ReminderSettings per-user preferences. Stored and served, not enforced by the classifier.
type ReminderSettings struct {
	UserID        int64     `json:"user_id" db:"user_id"`
	Enabled       bool      `json:"enabled" db:"enabled"`
	LeadTimes     []int64   `json:"lead_times" db:"lead_times" validate:"dive,gt=0"` // minutes before due
	BeforeDue     bool      `json:"before_due" db:"before_due"`
	Overdue       bool      `json:"overdue" db:"overdue"`
	PreferredTime string    `json:"preferred_time" db:"preferred_time" validate:"omitempty,datetime=15:04"`
	Timezone      string    `json:"timezone" db:"timezone" validate:"omitempty,timezone"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

func DefaultReminderSettings(userID int64) *ReminderSettings {
	return &ReminderSettings{
		UserID:        userID,
		Enabled:       true,
		LeadTimes:     []int64{24 * 60},
		BeforeDue:     true,
		Overdue:       true,
		PreferredTime: "09:00",
		Timezone:      "Asia/Kolkata",
	}
}

// ReminderEvent публикуется после каждой попытки отправки
type ReminderEvent struct {
	ID          string       `json:"id"`
	TaskID      int64        `json:"task_id"`
	Channel     string       `json:"channel"`
	Kind        ReminderKind `json:"kind"`
	Success     bool         `json:"success"`
	Error       string       `json:"error,omitempty"`
	AttemptedAt time.Time    `json:"attempted_at"`
}
