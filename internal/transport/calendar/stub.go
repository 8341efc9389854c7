// Package calendar holds the external calendar collaborator.
//
// The production integration behind this interface is not wired yet; the
// stub client satisfies the contract and keeps event payloads in memory so
// the sync path is exercised end to end.
package calendar

import (
	"context"
	"fmt"
	"sync"

	"bandonotifier/internal/entity"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StubClient is an in-memory stand-in for the external calendar API.
type StubClient struct {
	mu     sync.Mutex
	events map[string]entity.CalendarEvent
	log    *zap.SugaredLogger
}

func NewStubClient(log *zap.SugaredLogger) *StubClient {
	return &StubClient{
		events: make(map[string]entity.CalendarEvent),
		log:    log,
	}
}

func (c *StubClient) CreateEvent(_ context.Context, ev entity.CalendarEvent) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("calendar.StubClient.CreateEvent: %w", err)
	}
	externalID := id.String()

	c.mu.Lock()
	c.events[externalID] = ev
	c.mu.Unlock()

	c.log.Debugw("calendar event created", "external_id", externalID, "title", ev.Title)
	return externalID, nil
}

func (c *StubClient) UpdateEvent(_ context.Context, externalID string, ev entity.CalendarEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.events[externalID]; !ok {
		return fmt.Errorf("calendar.StubClient.UpdateEvent: event %s: %w", externalID, entity.ErrEventRefNotFound)
	}
	c.events[externalID] = ev

	c.log.Debugw("calendar event updated", "external_id", externalID, "title", ev.Title)
	return nil
}

func (c *StubClient) DeleteEvent(_ context.Context, externalID string) error {
	c.mu.Lock()
	delete(c.events, externalID)
	c.mu.Unlock()

	c.log.Debugw("calendar event deleted", "external_id", externalID)
	return nil
}

// EventCount reports how many events the stub currently holds.
func (c *StubClient) EventCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}
