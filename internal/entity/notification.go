package entity

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NotificationType tags a log or queue row with the rule that produced it.
type NotificationType string

const (
	TypeWeeklyDigest    NotificationType = "weekly-digest"
	TypeProjectAssigned NotificationType = "project-assigned"
)

// ThresholdType returns the tag for a days-remaining threshold alert,
// e.g. "threshold-3-days".
func ThresholdType(days int) NotificationType {
	return NotificationType(fmt.Sprintf("threshold-%d-days", days))
}

// NotificationLogEntry records that an alert of a given type went out for an
// entity on a given day. The (EntityID, Type, SentOn) triple is unique per
// calendar day and is the pipeline's sole idempotency mechanism: entries are
// written once, after a successful enqueue, and never updated or deleted.
type NotificationLogEntry struct {
	ID        uuid.UUID        `json:"id"`
	EntityID  uuid.UUID        `json:"entity_id"`
	Type      NotificationType `json:"type"`
	SentOn    time.Time        `json:"sent_on"` // date only, midnight UTC
	CreatedAt time.Time        `json:"created_at"`
}
