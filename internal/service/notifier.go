package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"bandonotifier/internal/entity"
	"bandonotifier/internal/repository"
	"bandonotifier/pkg/metric"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	_alertHorizonDays  = 15
	_digestHorizonDays = 7
)

type (
	// DeadlineStore reads the deadlines under notification.
	DeadlineStore interface {
		ListDueWithin(ctx context.Context, qe repository.QueryExecuter, from, to time.Time) ([]entity.Deadline, error)
		ListByProject(ctx context.Context, qe repository.QueryExecuter, projectID uuid.UUID) ([]entity.Deadline, error)
	}

	// SettingsStore reads per-user notification profiles.
	SettingsStore interface {
		GetByEmail(ctx context.Context, qe repository.QueryExecuter, email string) (*entity.NotificationSettings, error)
	}

	// SettingsProfileCache fronts the SettingsStore; a nil cache disables it.
	SettingsProfileCache interface {
		Get(ctx context.Context, email string) (*entity.NotificationSettings, error)
		Set(ctx context.Context, settings *entity.NotificationSettings) error
	}

	// LogStore is the append-only sent-alert record.
	LogStore interface {
		WasSent(ctx context.Context, qe repository.QueryExecuter, entityID uuid.UUID, typ entity.NotificationType, day time.Time) (bool, error)
		Record(ctx context.Context, qe repository.QueryExecuter, entityID uuid.UUID, typ entity.NotificationType, day time.Time) error
	}

	// AlertEnqueuer is the email service as seen by the rule evaluator.
	AlertEnqueuer interface {
		EnqueueDeadlineAlert(ctx context.Context, d entity.Deadline, daysLeft int, typ entity.NotificationType) (int, error)
		EnqueueDigest(ctx context.Context, deadlines []entity.Deadline) (int, error)
		EnqueueProjectAssigned(ctx context.Context, projectID uuid.UUID, userEmail, projectTitle string, deadlines []entity.Deadline) error
	}

	// CalendarSyncer is the calendar service as seen by the rule evaluator.
	CalendarSyncer interface {
		UpsertDeadlineEvent(ctx context.Context, d entity.Deadline, settings entity.NotificationSettings) error
		UpsertMilestone(ctx context.Context, entityID uuid.UUID, title string, date time.Time, description, calendarID string, attendees []string) error
	}

	// NotifierService decides, per deadline and per user, whether an alert
	// or a calendar upsert is due right now.
	NotifierService struct {
		deadlines DeadlineStore
		settings  SettingsStore
		cache     SettingsProfileCache
		logStore  LogStore
		email     AlertEnqueuer
		calendar  CalendarSyncer
		log       *zap.SugaredLogger
		metrics   *metric.Metrics
		now       func() time.Time
	}

	// SweepStats summarizes one deadline-alert sweep.
	SweepStats struct {
		Evaluated     int
		Enqueued      int
		SkippedQuiet  int
		SkippedOptOut int
		Failed        int
		Duration      time.Duration
	}
)

func NewNotifierService(
	deadlines DeadlineStore,
	settings SettingsStore,
	logStore LogStore,
	email AlertEnqueuer,
	calendar CalendarSyncer,
	log *zap.SugaredLogger,
	opts ...NotifierOption,
) *NotifierService {
	s := &NotifierService{
		deadlines: deadlines,
		settings:  settings,
		logStore:  logStore,
		email:     email,
		calendar:  calendar,
		log:       log,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// selectThreshold picks the notification threshold for a deadline given the
// user's flags. Flags are independent floors: any enabled threshold at or
// above days-remaining satisfies, and the smallest satisfied one names the
// alert. Overdue deadlines map to the smallest enabled threshold.
func selectThreshold(settings entity.NotificationSettings, daysLeft int) (int, bool) {
	for _, t := range entity.AlertThresholds {
		if !settings.ThresholdEnabled(t) {
			continue
		}
		if daysLeft < 0 || daysLeft <= t {
			return t, true
		}
	}
	return 0, false
}

// RunDeadlineSweep evaluates every alertable deadline due within the next 15
// days against its responsible party's profile, enqueuing at most one alert
// per (deadline, threshold) per calendar day. Per-group and per-deadline
// failures are counted and logged, never propagated.
func (s *NotifierService) RunDeadlineSweep(ctx context.Context) (*SweepStats, error) {
	const op = "service.NotifierService.RunDeadlineSweep"

	now := s.now()
	stats := &SweepStats{}
	defer func() { stats.Duration = s.now().Sub(now) }()

	if s.metrics != nil {
		s.metrics.SweepsTotal.Inc()
	}

	due, err := s.deadlines.ListDueWithin(ctx, nil, now, now.AddDate(0, 0, _alertHorizonDays))
	if err != nil {
		if s.metrics != nil {
			s.metrics.SweepFailures.Inc()
		}
		return stats, fmt.Errorf("%s: %w", op, err)
	}

	groups := make(map[string][]entity.Deadline)
	for _, d := range due {
		if !d.Alertable() || d.ResponsibleEmail == "" {
			continue
		}
		groups[d.ResponsibleEmail] = append(groups[d.ResponsibleEmail], d)
	}

	emails := make([]string, 0, len(groups))
	for email := range groups {
		emails = append(emails, email)
	}
	sort.Strings(emails)

	for _, email := range emails {
		s.sweepUserGroup(ctx, email, groups[email], now, stats)
	}

	s.log.Infow("deadline sweep completed",
		"evaluated", stats.Evaluated,
		"enqueued", stats.Enqueued,
		"skipped_quiet", stats.SkippedQuiet,
		"skipped_opt_out", stats.SkippedOptOut,
		"failed", stats.Failed,
	)

	return stats, nil
}

func (s *NotifierService) sweepUserGroup(ctx context.Context, email string, group []entity.Deadline, now time.Time, stats *SweepStats) {
	settings := s.loadSettings(ctx, email)

	if !settings.EmailEnabled && !settings.CalendarEnabled {
		stats.SkippedOptOut += len(group)
		return
	}

	if settings.QuietHoursEnabled {
		quiet, err := inQuietWindow(settings.QuietHoursStart, settings.QuietHoursEnd, now)
		if err != nil {
			s.log.Warnw("invalid quiet hours window, ignoring",
				"user", email, "start", settings.QuietHoursStart, "end", settings.QuietHoursEnd, "error", err)
		} else if quiet {
			// Not queued for later: the deadline stays eligible and a later
			// tick outside the window picks it up while still in threshold.
			stats.SkippedQuiet += len(group)
			return
		}
	}

	for _, d := range group {
		stats.Evaluated++

		daysLeft := d.DaysUntil(now)

		if settings.EmailEnabled {
			if threshold, ok := selectThreshold(*settings, daysLeft); ok {
				n, err := s.alertOnce(ctx, d, daysLeft, threshold, now)
				if err != nil {
					stats.Failed++
					s.log.Errorw("deadline alert failed", "deadline_id", d.ID, "user", email, "error", err)
				}
				stats.Enqueued += n
			}
		}

		// Calendar sync has its own idempotency through the event reference
		// table and is not gated by the notification log.
		if settings.CalendarEnabled && settings.CalendarSyncDeadlines {
			if err := s.calendar.UpsertDeadlineEvent(ctx, d, *settings); err != nil {
				s.log.Errorw("calendar upsert failed", "deadline_id", d.ID, "user", email, "error", err)
			}
		}
	}
}

func (s *NotifierService) alertOnce(ctx context.Context, d entity.Deadline, daysLeft, threshold int, now time.Time) (int, error) {
	typ := entity.ThresholdType(threshold)

	sent, err := s.logStore.WasSent(ctx, nil, d.ID, typ, now)
	if err != nil {
		return 0, fmt.Errorf("check log: %w", err)
	}
	if sent {
		return 0, nil
	}

	n, err := s.email.EnqueueDeadlineAlert(ctx, d, daysLeft, typ)
	if err != nil {
		return 0, fmt.Errorf("enqueue: %w", err)
	}

	// The log entry is written only after a successful enqueue. A concurrent
	// manual check may have raced us to it; the unique key makes that benign.
	if err := s.logStore.Record(ctx, nil, d.ID, typ, now); err != nil && !errors.Is(err, entity.ErrConflictingData) {
		return n, fmt.Errorf("record log: %w", err)
	}

	return n, nil
}

// RunWeeklyDigest enqueues a single summary of everything due in the next
// seven days, across all users, addressed only to the additional recipients.
func (s *NotifierService) RunWeeklyDigest(ctx context.Context) (int, error) {
	const op = "service.NotifierService.RunWeeklyDigest"

	now := s.now()
	due, err := s.deadlines.ListDueWithin(ctx, nil, now, now.AddDate(0, 0, _digestHorizonDays))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	var eligible []entity.Deadline
	for _, d := range due {
		if d.Alertable() {
			eligible = append(eligible, d)
		}
	}
	if len(eligible) == 0 {
		s.log.Debugw("weekly digest skipped, nothing due")
		return 0, nil
	}

	n, err := s.email.EnqueueDigest(ctx, eligible)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Infow("weekly digest enqueued", "deadlines", len(eligible), "recipients", n)
	return n, nil
}

// NotifyProjectAssigned reacts to a project being assigned to a user. The
// caller guarantees at-most-once invocation per assignment; no further
// deduplication happens here.
func (s *NotifierService) NotifyProjectAssigned(ctx context.Context, projectID uuid.UUID, userEmail, projectTitle string) error {
	const op = "service.NotifierService.NotifyProjectAssigned"

	settings := s.loadSettings(ctx, userEmail)
	if !settings.ProjectAssigned {
		return nil
	}

	deadlines, err := s.deadlines.ListByProject(ctx, nil, projectID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if settings.EmailEnabled {
		if err := s.email.EnqueueProjectAssigned(ctx, projectID, userEmail, projectTitle, deadlines); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	if settings.CalendarEnabled && settings.CalendarSyncMilestone {
		for _, d := range deadlines {
			title := fmt.Sprintf("%s: %s", projectTitle, d.Title)
			if err := s.calendar.UpsertMilestone(ctx, d.ID, title, d.DueDate, d.Note, settings.CalendarID, []string{userEmail}); err != nil {
				s.log.Errorw("milestone upsert failed", "project_id", projectID, "deadline_id", d.ID, "error", err)
			}
		}
	}

	return nil
}

// loadSettings resolves a user's profile through the cache, the store, and
// finally the documented defaults. Cache failures degrade to the database.
func (s *NotifierService) loadSettings(ctx context.Context, email string) *entity.NotificationSettings {
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, email); err == nil {
			return cached
		}
	}

	settings, err := s.settings.GetByEmail(ctx, nil, email)
	if err != nil {
		if !errors.Is(err, entity.ErrDataNotFound) {
			s.log.Warnw("settings lookup failed, using defaults", "user", email, "error", err)
		}
		def := entity.DefaultSettings(email)
		return &def
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, settings); err != nil {
			s.log.Debugw("settings cache write failed", "user", email, "error", err)
		}
	}

	return settings
}
