package service

import (
	"context"
	"errors"
	"fmt"

	repository "github.com/ds124wfegd/task-reminder/internal/database/postgres"
	"github.com/ds124wfegd/task-reminder/internal/entity"

	"github.com/go-playground/validator/v10"
)

// UpdateSettingsRequest представляет данные для обновления настроек напоминаний
type UpdateSettingsRequest struct {
	Enabled       bool    `json:"enabled"`
	LeadTimes     []int64 `json:"lead_times"`
	BeforeDue     bool    `json:"before_due"`
	Overdue       bool    `json:"overdue"`
	PreferredTime string  `json:"preferred_time"`
	Timezone      string  `json:"timezone"`
}

type settingsService struct {
	settingsRepo repository.SettingsRepository
	validate     *validator.Validate
}

func NewSettingsService(settingsRepo repository.SettingsRepository) SettingsService {
	return &settingsService{
		settingsRepo: settingsRepo,
		validate:     validator.New(),
	}
}

// GetSettings returns stored settings or the defaults for users who never saved any.
func (s *settingsService) GetSettings(ctx context.Context, userID int64) (*entity.ReminderSettings, error) {
	if userID <= 0 {
		return nil, entity.ErrInvalidInput
	}

	settings, err := s.settingsRepo.GetByUserID(ctx, userID)
	if errors.Is(err, entity.ErrSettingsNotFound) {
		return entity.DefaultReminderSettings(userID), nil
	}
	if err != nil {
		return nil, err
	}
	return settings, nil
}

func (s *settingsService) UpdateSettings(ctx context.Context, userID int64, req *UpdateSettingsRequest) (*entity.ReminderSettings, error) {
	if userID <= 0 {
		return nil, entity.ErrInvalidInput
	}

	defaults := entity.DefaultReminderSettings(userID)
	settings := &entity.ReminderSettings{
		UserID:        userID,
		Enabled:       req.Enabled,
		LeadTimes:     req.LeadTimes,
		BeforeDue:     req.BeforeDue,
		Overdue:       req.Overdue,
		PreferredTime: req.PreferredTime,
		Timezone:      req.Timezone,
	}
	if settings.LeadTimes == nil {
		settings.LeadTimes = []int64{}
	}
	if settings.PreferredTime == "" {
		settings.PreferredTime = defaults.PreferredTime
	}
	if settings.Timezone == "" {
		settings.Timezone = defaults.Timezone
	}

	if err := s.validate.Struct(settings); err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrInvalidSettings, err)
	}

	if err := s.settingsRepo.Upsert(ctx, settings); err != nil {
		return nil, err
	}
	return settings, nil
}
