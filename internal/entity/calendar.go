package entity

import (
	"time"

	"github.com/google/uuid"
)

// CalendarEventType distinguishes what kind of record an external event mirrors.
type CalendarEventType string

const (
	EventTypeDeadline  CalendarEventType = "deadline"
	EventTypeMilestone CalendarEventType = "milestone"
)

// CalendarEventRef maps an internal entity to the external calendar event
// mirroring it. One row per (entity, type); overwritten on update, removed on
// delete.
type CalendarEventRef struct {
	EntityID   uuid.UUID         `json:"entity_id"`
	EventType  CalendarEventType `json:"event_type"`
	ExternalID string            `json:"external_id"`
	CalendarID string            `json:"calendar_id,omitempty"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// CalendarEvent is the payload handed to the external calendar collaborator.
type CalendarEvent struct {
	Title       string
	Description string
	Date        time.Time
	CalendarID  string
	Attendees   []string
	Reminders   []Reminder
}

// Reminder is a single lead-time reminder attached to an event.
type Reminder struct {
	Method string // "email" or "popup"
	Lead   time.Duration
}
