package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bandonotifier/internal/entity"
	"bandonotifier/internal/repository"

	"go.uber.org/zap"
)

type (
	// SettingsAdmin is the read-write settings store behind the operator API.
	SettingsAdmin interface {
		GetByEmail(ctx context.Context, qe repository.QueryExecuter, email string) (*entity.NotificationSettings, error)
		Upsert(ctx context.Context, qe repository.QueryExecuter, s entity.NotificationSettings) error
	}

	// RecipientAdmin manages the always-notified address list.
	RecipientAdmin interface {
		ListActive(ctx context.Context, qe repository.QueryExecuter) ([]entity.AdditionalRecipient, error)
		Add(ctx context.Context, qe repository.QueryExecuter, email string) error
		Deactivate(ctx context.Context, qe repository.QueryExecuter, email string) error
	}

	// ProfileCacheInvalidator drops a cached profile after a write. A nil
	// invalidator disables caching.
	ProfileCacheInvalidator interface {
		Invalidate(ctx context.Context, email string) error
	}

	// SettingsService is the profile and recipient management surface.
	SettingsService struct {
		settings   SettingsAdmin
		recipients RecipientAdmin
		cache      ProfileCacheInvalidator
		log        *zap.SugaredLogger
	}
)

func NewSettingsService(
	settings SettingsAdmin,
	recipients RecipientAdmin,
	cache ProfileCacheInvalidator,
	log *zap.SugaredLogger,
) *SettingsService {
	return &SettingsService{
		settings:   settings,
		recipients: recipients,
		cache:      cache,
		log:        log,
	}
}

// GetProfile returns the stored profile, or the documented defaults when the
// user has never saved one.
func (s *SettingsService) GetProfile(ctx context.Context, email string) (*entity.NotificationSettings, error) {
	const op = "service.SettingsService.GetProfile"

	email = normalizeEmail(email)
	if email == "" {
		return nil, fmt.Errorf("%s: empty email: %w", op, entity.ErrInvalidData)
	}

	settings, err := s.settings.GetByEmail(ctx, nil, email)
	if err != nil {
		if errors.Is(err, entity.ErrDataNotFound) {
			defaults := entity.DefaultSettings(email)
			return &defaults, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return settings, nil
}

// UpdateProfile persists the profile and drops any cached copy so the next
// sweep sees the change.
func (s *SettingsService) UpdateProfile(ctx context.Context, settings entity.NotificationSettings) error {
	const op = "service.SettingsService.UpdateProfile"

	settings.UserEmail = normalizeEmail(settings.UserEmail)
	if settings.UserEmail == "" {
		return fmt.Errorf("%s: empty email: %w", op, entity.ErrInvalidData)
	}

	if settings.QuietHoursEnabled {
		if _, err := parseClock(settings.QuietHoursStart); err != nil {
			return fmt.Errorf("%s: quiet hours start: %w", op, entity.ErrInvalidData)
		}
		if _, err := parseClock(settings.QuietHoursEnd); err != nil {
			return fmt.Errorf("%s: quiet hours end: %w", op, entity.ErrInvalidData)
		}
	}

	if err := s.settings.Upsert(ctx, nil, settings); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, settings.UserEmail); err != nil {
			s.log.Warnw("settings cache invalidation failed", "email", settings.UserEmail, "error", err)
		}
	}
	return nil
}

// ListRecipients returns the active always-notified addresses.
func (s *SettingsService) ListRecipients(ctx context.Context) ([]entity.AdditionalRecipient, error) {
	const op = "service.SettingsService.ListRecipients"

	recipients, err := s.recipients.ListActive(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return recipients, nil
}

// AddRecipient registers or reactivates an always-notified address.
func (s *SettingsService) AddRecipient(ctx context.Context, email string) error {
	const op = "service.SettingsService.AddRecipient"

	email = normalizeEmail(email)
	if email == "" {
		return fmt.Errorf("%s: empty email: %w", op, entity.ErrInvalidData)
	}

	if err := s.recipients.Add(ctx, nil, email); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// RemoveRecipient soft-deletes an always-notified address.
func (s *SettingsService) RemoveRecipient(ctx context.Context, email string) error {
	const op = "service.SettingsService.RemoveRecipient"

	email = normalizeEmail(email)
	if email == "" {
		return fmt.Errorf("%s: empty email: %w", op, entity.ErrInvalidData)
	}

	if err := s.recipients.Deactivate(ctx, nil, email); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
