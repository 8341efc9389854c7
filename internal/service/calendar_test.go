package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"bandonotifier/internal/entity"
	"bandonotifier/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type memRefStore struct {
	refs map[string]entity.CalendarEventRef
}

func newMemRefStore() *memRefStore {
	return &memRefStore{refs: make(map[string]entity.CalendarEventRef)}
}

func refKey(entityID uuid.UUID, eventType entity.CalendarEventType) string {
	return fmt.Sprintf("%s|%s", entityID, eventType)
}

func (s *memRefStore) Get(_ context.Context, _ repository.QueryExecuter, entityID uuid.UUID, eventType entity.CalendarEventType) (*entity.CalendarEventRef, error) {
	if ref, ok := s.refs[refKey(entityID, eventType)]; ok {
		return &ref, nil
	}
	return nil, entity.ErrDataNotFound
}

func (s *memRefStore) Put(_ context.Context, _ repository.QueryExecuter, ref entity.CalendarEventRef) error {
	s.refs[refKey(ref.EntityID, ref.EventType)] = ref
	return nil
}

func (s *memRefStore) Delete(_ context.Context, _ repository.QueryExecuter, entityID uuid.UUID, eventType entity.CalendarEventType) error {
	key := refKey(entityID, eventType)
	if _, ok := s.refs[key]; !ok {
		return entity.ErrDataNotFound
	}
	delete(s.refs, key)
	return nil
}

type fakeCalClient struct {
	creates   int
	updates   int
	deletes   int
	deleteErr error
	lastEvent entity.CalendarEvent
}

func (c *fakeCalClient) CreateEvent(_ context.Context, ev entity.CalendarEvent) (string, error) {
	c.creates++
	c.lastEvent = ev
	return fmt.Sprintf("ext-%d", c.creates), nil
}

func (c *fakeCalClient) UpdateEvent(_ context.Context, _ string, ev entity.CalendarEvent) error {
	c.updates++
	c.lastEvent = ev
	return nil
}

func (c *fakeCalClient) DeleteEvent(context.Context, string) error {
	c.deletes++
	return c.deleteErr
}

func newCalendarFixture() (*CalendarService, *memRefStore, *fakeCalClient) {
	refs := newMemRefStore()
	client := &fakeCalClient{}
	svc := NewCalendarService(refs, client, zap.NewNop().Sugar(), nil)
	return svc, refs, client
}

func TestUpsertDeadlineEventCreateThenUpdate(t *testing.T) {
	svc, refs, client := newCalendarFixture()

	d := entity.Deadline{
		ID:               uuid.New(),
		Title:            "Presentazione domanda",
		DueDate:          time.Date(2026, 4, 1, 15, 30, 0, 0, time.UTC),
		Priority:         entity.PriorityHigh,
		ResponsibleEmail: "mario@example.com",
	}
	settings := entity.DefaultSettings("mario@example.com")
	settings.CalendarID = "primary"

	if err := svc.UpsertDeadlineEvent(context.Background(), d, settings); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if client.creates != 1 || client.updates != 0 {
		t.Fatalf("creates=%d updates=%d, want 1/0", client.creates, client.updates)
	}
	if len(refs.refs) != 1 {
		t.Fatalf("refs = %d, want 1", len(refs.refs))
	}
	if !client.lastEvent.Date.Equal(time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("event date = %v, want due date truncated to midnight", client.lastEvent.Date)
	}

	d.Title = "Presentazione domanda (rettifica)"
	if err := svc.UpsertDeadlineEvent(context.Background(), d, settings); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if client.creates != 1 || client.updates != 1 {
		t.Errorf("creates=%d updates=%d, want 1/1 on repeat", client.creates, client.updates)
	}
	if len(refs.refs) != 1 {
		t.Errorf("refs = %d after update, want still 1", len(refs.refs))
	}
}

func TestMilestoneAndDeadlineCoexist(t *testing.T) {
	svc, refs, _ := newCalendarFixture()

	id := uuid.New()
	d := entity.Deadline{ID: id, Title: "Scadenza", DueDate: time.Now(), Priority: entity.PriorityLow}
	if err := svc.UpsertDeadlineEvent(context.Background(), d, entity.DefaultSettings("u@example.com")); err != nil {
		t.Fatalf("deadline upsert: %v", err)
	}
	if err := svc.UpsertMilestone(context.Background(), id, "Milestone", time.Now(), "", "", nil); err != nil {
		t.Fatalf("milestone upsert: %v", err)
	}
	if len(refs.refs) != 2 {
		t.Errorf("refs = %d, want separate rows for deadline and milestone", len(refs.refs))
	}
}

func TestRemindersFor(t *testing.T) {
	tests := []struct {
		priority entity.DeadlinePriority
		count    int
		longest  time.Duration
	}{
		{entity.PriorityCritical, 4, 7 * 24 * time.Hour},
		{entity.PriorityHigh, 4, 7 * 24 * time.Hour},
		{entity.PriorityMedium, 3, 3 * 24 * time.Hour},
		{entity.PriorityLow, 2, 24 * time.Hour},
		{entity.DeadlinePriority("unknown"), 2, 24 * time.Hour},
	}

	for _, tt := range tests {
		got := RemindersFor(tt.priority)
		if len(got) != tt.count {
			t.Errorf("RemindersFor(%s) len = %d, want %d", tt.priority, len(got), tt.count)
			continue
		}
		if got[0].Lead != tt.longest {
			t.Errorf("RemindersFor(%s) longest lead = %v, want %v", tt.priority, got[0].Lead, tt.longest)
		}
	}
}

func TestDeleteEventMissingRefIsNoop(t *testing.T) {
	svc, _, client := newCalendarFixture()

	if err := svc.DeleteEvent(context.Background(), uuid.New(), entity.EventTypeDeadline); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if client.deletes != 0 {
		t.Errorf("external deletes = %d, want 0 when no ref exists", client.deletes)
	}
}

func TestDeleteEventRemovesRefDespiteClientError(t *testing.T) {
	svc, refs, client := newCalendarFixture()
	client.deleteErr = errors.New("api unavailable")

	id := uuid.New()
	d := entity.Deadline{ID: id, Title: "x", DueDate: time.Now(), Priority: entity.PriorityLow}
	if err := svc.UpsertDeadlineEvent(context.Background(), d, entity.DefaultSettings("u@example.com")); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	if err := svc.DeleteEvent(context.Background(), id, entity.EventTypeDeadline); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(refs.refs) != 0 {
		t.Errorf("refs = %d after delete, want 0 even when the external call fails", len(refs.refs))
	}
}
