package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bandonotifier/internal/entity"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const settingsColumns = `user_email, email_enabled, threshold_1_day, threshold_3_days, threshold_7_days,
threshold_15_days, weekly_digest, project_assigned, calendar_enabled, calendar_id,
calendar_sync_deadlines, calendar_sync_milestones, quiet_hours_enabled, quiet_hours_start,
quiet_hours_end, updated_at`

type SettingsRepository struct {
	db *Postgres
}

func NewSettingsRepository(db *Postgres) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// GetByEmail loads the saved profile for a user. Callers fall back to
// entity.DefaultSettings when ErrDataNotFound comes back.
func (r *SettingsRepository) GetByEmail(ctx context.Context, qe QueryExecuter, email string) (*entity.NotificationSettings, error) {
	const op = "repository.SettingsRepository.GetByEmail"

	executor := r.db.exec(qe)

	sql, args, err := r.db.Builder.Select(settingsColumns).
		From("notification_settings").
		Where(squirrel.Eq{"user_email": email}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: building query: %w", op, err)
	}

	var s entity.NotificationSettings
	var calendarID, quietStart, quietEnd pgtype.Text

	err = executor.QueryRow(ctx, sql, args...).Scan(
		&s.UserEmail,
		&s.EmailEnabled,
		&s.Threshold1Day,
		&s.Threshold3Days,
		&s.Threshold7Days,
		&s.Threshold15Days,
		&s.WeeklyDigest,
		&s.ProjectAssigned,
		&s.CalendarEnabled,
		&calendarID,
		&s.CalendarSyncDeadlines,
		&s.CalendarSyncMilestone,
		&s.QuietHoursEnabled,
		&quietStart,
		&quietEnd,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrDataNotFound)
		}
		return nil, fmt.Errorf("%s: scan row: %w", op, err)
	}

	if calendarID.Valid {
		s.CalendarID = calendarID.String
	}
	if quietStart.Valid {
		s.QuietHoursStart = quietStart.String
	}
	if quietEnd.Valid {
		s.QuietHoursEnd = quietEnd.String
	}

	return &s, nil
}

// Upsert saves the profile, inserting or overwriting the row for the email.
func (r *SettingsRepository) Upsert(ctx context.Context, qe QueryExecuter, s entity.NotificationSettings) error {
	const op = "repository.SettingsRepository.Upsert"

	executor := r.db.exec(qe)
	s.UpdatedAt = time.Now().UTC()

	sql, args, err := r.db.Builder.Insert("notification_settings").
		Columns("user_email", "email_enabled", "threshold_1_day", "threshold_3_days", "threshold_7_days",
			"threshold_15_days", "weekly_digest", "project_assigned", "calendar_enabled", "calendar_id",
			"calendar_sync_deadlines", "calendar_sync_milestones", "quiet_hours_enabled", "quiet_hours_start",
			"quiet_hours_end", "updated_at").
		Values(s.UserEmail, s.EmailEnabled, s.Threshold1Day, s.Threshold3Days, s.Threshold7Days,
			s.Threshold15Days, s.WeeklyDigest, s.ProjectAssigned, s.CalendarEnabled, s.CalendarID,
			s.CalendarSyncDeadlines, s.CalendarSyncMilestone, s.QuietHoursEnabled, s.QuietHoursStart,
			s.QuietHoursEnd, s.UpdatedAt).
		Suffix(`ON CONFLICT (user_email) DO UPDATE SET
email_enabled = EXCLUDED.email_enabled,
threshold_1_day = EXCLUDED.threshold_1_day,
threshold_3_days = EXCLUDED.threshold_3_days,
threshold_7_days = EXCLUDED.threshold_7_days,
threshold_15_days = EXCLUDED.threshold_15_days,
weekly_digest = EXCLUDED.weekly_digest,
project_assigned = EXCLUDED.project_assigned,
calendar_enabled = EXCLUDED.calendar_enabled,
calendar_id = EXCLUDED.calendar_id,
calendar_sync_deadlines = EXCLUDED.calendar_sync_deadlines,
calendar_sync_milestones = EXCLUDED.calendar_sync_milestones,
quiet_hours_enabled = EXCLUDED.quiet_hours_enabled,
quiet_hours_start = EXCLUDED.quiet_hours_start,
quiet_hours_end = EXCLUDED.quiet_hours_end,
updated_at = EXCLUDED.updated_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: building query: %w", op, err)
	}

	if _, err := executor.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("%s: exec: %w", op, err)
	}

	return nil
}
