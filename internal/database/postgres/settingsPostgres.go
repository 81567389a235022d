package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ds124wfegd/task-reminder/internal/entity"

	"github.com/lib/pq"
)

const foreignKeyViolation = "23503"

type settingsRepository struct {
	db *sql.DB
}

func NewSettingsRepository(db *sql.DB) SettingsRepository {
	return &settingsRepository{db: db}
}

func (r *settingsRepository) GetByUserID(ctx context.Context, userID int64) (*entity.ReminderSettings, error) {
	query := `
		SELECT user_id, enabled, lead_times, before_due, overdue, preferred_time, timezone, updated_at
		FROM reminder_settings
		WHERE user_id = $1
	`

	var s entity.ReminderSettings
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&s.UserID,
		&s.Enabled,
		pq.Array(&s.LeadTimes),
		&s.BeforeDue,
		&s.Overdue,
		&s.PreferredTime,
		&s.Timezone,
		&s.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrSettingsNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reminder settings for user %d: %w", userID, err)
	}

	return &s, nil
}

func (r *settingsRepository) Upsert(ctx context.Context, s *entity.ReminderSettings) error {
	query := `
		INSERT INTO reminder_settings (user_id, enabled, lead_times, before_due, overdue, preferred_time, timezone, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			enabled = EXCLUDED.enabled,
			lead_times = EXCLUDED.lead_times,
			before_due = EXCLUDED.before_due,
			overdue = EXCLUDED.overdue,
			preferred_time = EXCLUDED.preferred_time,
			timezone = EXCLUDED.timezone,
			updated_at = NOW()
		RETURNING updated_at
	`

	err := r.db.QueryRowContext(ctx, query,
		s.UserID,
		s.Enabled,
		pq.Array(s.LeadTimes),
		s.BeforeDue,
		s.Overdue,
		s.PreferredTime,
		s.Timezone,
	).Scan(&s.UpdatedAt)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == foreignKeyViolation {
		return entity.ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to save reminder settings for user %d: %w", s.UserID, err)
	}
	return nil
}
