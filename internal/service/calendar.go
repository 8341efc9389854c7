package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bandonotifier/internal/entity"
	"bandonotifier/internal/repository"
	"bandonotifier/pkg/metric"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type (
	// RefStore persists the (entity, event type) → external event id mapping.
	RefStore interface {
		Get(ctx context.Context, qe repository.QueryExecuter, entityID uuid.UUID, eventType entity.CalendarEventType) (*entity.CalendarEventRef, error)
		Put(ctx context.Context, qe repository.QueryExecuter, ref entity.CalendarEventRef) error
		Delete(ctx context.Context, qe repository.QueryExecuter, entityID uuid.UUID, eventType entity.CalendarEventType) error
	}

	// CalendarClient is the external calendar collaborator.
	CalendarClient interface {
		CreateEvent(ctx context.Context, ev entity.CalendarEvent) (string, error)
		UpdateEvent(ctx context.Context, externalID string, ev entity.CalendarEvent) error
		DeleteEvent(ctx context.Context, externalID string) error
	}

	// CalendarService mirrors deadlines and milestones into an external
	// calendar, one event per (entity, type).
	CalendarService struct {
		refs    RefStore
		client  CalendarClient
		log     *zap.SugaredLogger
		metrics *metric.Metrics
	}
)

func NewCalendarService(refs RefStore, client CalendarClient, log *zap.SugaredLogger, metrics *metric.Metrics) *CalendarService {
	return &CalendarService{
		refs:    refs,
		client:  client,
		log:     log,
		metrics: metrics,
	}
}

// reminderPolicy maps deadline priority to reminder lead times. Critical and
// high get the full ladder, medium loses the week-out email, low keeps only
// the day-before email and the short popup.
var reminderPolicy = map[entity.DeadlinePriority][]entity.Reminder{
	entity.PriorityCritical: {
		{Method: "email", Lead: 7 * 24 * time.Hour},
		{Method: "email", Lead: 3 * 24 * time.Hour},
		{Method: "email", Lead: 24 * time.Hour},
		{Method: "popup", Lead: 2 * time.Hour},
	},
	entity.PriorityHigh: {
		{Method: "email", Lead: 7 * 24 * time.Hour},
		{Method: "email", Lead: 3 * 24 * time.Hour},
		{Method: "email", Lead: 24 * time.Hour},
		{Method: "popup", Lead: 2 * time.Hour},
	},
	entity.PriorityMedium: {
		{Method: "email", Lead: 3 * 24 * time.Hour},
		{Method: "email", Lead: 24 * time.Hour},
		{Method: "popup", Lead: 2 * time.Hour},
	},
	entity.PriorityLow: {
		{Method: "email", Lead: 24 * time.Hour},
		{Method: "popup", Lead: 2 * time.Hour},
	},
}

// RemindersFor returns the reminder ladder for a priority.
func RemindersFor(p entity.DeadlinePriority) []entity.Reminder {
	if r, ok := reminderPolicy[p]; ok {
		return r
	}
	return reminderPolicy[entity.PriorityLow]
}

// UpsertDeadlineEvent creates or updates the external event mirroring a
// deadline. Content is recomputed from current deadline state on every call,
// so repeating the call is harmless and the sweep invokes it unconditionally.
func (s *CalendarService) UpsertDeadlineEvent(ctx context.Context, d entity.Deadline, settings entity.NotificationSettings) error {
	const op = "service.CalendarService.UpsertDeadlineEvent"

	ev := entity.CalendarEvent{
		Title:       fmt.Sprintf("Scadenza: %s", d.Title),
		Description: d.Note,
		Date:        entity.Midnight(d.DueDate),
		CalendarID:  settings.CalendarID,
		Attendees:   []string{d.ResponsibleEmail},
		Reminders:   RemindersFor(d.Priority),
	}

	if err := s.upsert(ctx, d.ID, entity.EventTypeDeadline, ev); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// UpsertMilestone mirrors a project milestone, keyed separately from the
// deadline event so both can exist for the same entity.
func (s *CalendarService) UpsertMilestone(ctx context.Context, entityID uuid.UUID, title string, date time.Time, description, calendarID string, attendees []string) error {
	const op = "service.CalendarService.UpsertMilestone"

	ev := entity.CalendarEvent{
		Title:       title,
		Description: description,
		Date:        entity.Midnight(date),
		CalendarID:  calendarID,
		Attendees:   attendees,
		Reminders:   RemindersFor(entity.PriorityMedium),
	}

	if err := s.upsert(ctx, entityID, entity.EventTypeMilestone, ev); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *CalendarService) upsert(ctx context.Context, entityID uuid.UUID, eventType entity.CalendarEventType, ev entity.CalendarEvent) error {
	ref, err := s.refs.Get(ctx, nil, entityID, eventType)
	switch {
	case err == nil:
		if err := s.client.UpdateEvent(ctx, ref.ExternalID, ev); err != nil {
			return fmt.Errorf("update event %s: %w", ref.ExternalID, err)
		}

	case errors.Is(err, entity.ErrDataNotFound):
		externalID, err := s.client.CreateEvent(ctx, ev)
		if err != nil {
			return fmt.Errorf("create event: %w", err)
		}
		if err := s.refs.Put(ctx, nil, entity.CalendarEventRef{
			EntityID:   entityID,
			EventType:  eventType,
			ExternalID: externalID,
			CalendarID: ev.CalendarID,
		}); err != nil {
			return fmt.Errorf("store ref: %w", err)
		}

	default:
		return err
	}

	if s.metrics != nil {
		s.metrics.CalendarSyncs.Inc()
	}
	return nil
}

// DeleteEvent removes the external event and its reference. A missing
// reference is a no-op: the event is treated as already deleted.
func (s *CalendarService) DeleteEvent(ctx context.Context, entityID uuid.UUID, eventType entity.CalendarEventType) error {
	const op = "service.CalendarService.DeleteEvent"

	ref, err := s.refs.Get(ctx, nil, entityID, eventType)
	if err != nil {
		if errors.Is(err, entity.ErrDataNotFound) {
			return nil
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.client.DeleteEvent(ctx, ref.ExternalID); err != nil {
		s.log.Warnw("external delete failed, removing ref anyway",
			"entity_id", entityID, "external_id", ref.ExternalID, "error", err)
	}

	if err := s.refs.Delete(ctx, nil, entityID, eventType); err != nil && !errors.Is(err, entity.ErrDataNotFound) {
		return fmt.Errorf("%s: delete ref: %w", op, err)
	}

	return nil
}
