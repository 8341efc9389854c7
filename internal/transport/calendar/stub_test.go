package calendar

import (
	"context"
	"errors"
	"testing"
	"time"

	"bandonotifier/internal/entity"

	"go.uber.org/zap"
)

func TestStubClientLifecycle(t *testing.T) {
	c := NewStubClient(zap.NewNop().Sugar())

	ev := entity.CalendarEvent{
		Title: "Scadenza: Rendicontazione",
		Date:  time.Date(2026, 3, 13, 0, 0, 0, 0, time.UTC),
	}

	id, err := c.CreateEvent(context.Background(), ev)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if id == "" {
		t.Fatal("create returned an empty external id")
	}
	if c.EventCount() != 1 {
		t.Fatalf("events = %d, want 1", c.EventCount())
	}

	ev.Title = "Scadenza: Rendicontazione finale"
	if err := c.UpdateEvent(context.Background(), id, ev); err != nil {
		t.Fatalf("update: %v", err)
	}
	if c.EventCount() != 1 {
		t.Errorf("events = %d, update must not add", c.EventCount())
	}

	if err := c.DeleteEvent(context.Background(), id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if c.EventCount() != 0 {
		t.Errorf("events = %d after delete, want 0", c.EventCount())
	}
}

func TestStubClientUpdateUnknownEvent(t *testing.T) {
	c := NewStubClient(zap.NewNop().Sugar())

	err := c.UpdateEvent(context.Background(), "missing", entity.CalendarEvent{Title: "x"})
	if !errors.Is(err, entity.ErrEventRefNotFound) {
		t.Errorf("err = %v, want ErrEventRefNotFound", err)
	}

	// Deleting an unknown event is a no-op, matching the service's
	// already-deleted semantics.
	if err := c.DeleteEvent(context.Background(), "missing"); err != nil {
		t.Errorf("delete unknown: %v", err)
	}
}
