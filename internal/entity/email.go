package entity

import (
	"time"

	"github.com/google/uuid"
)

type EmailPriority int

const (
	EmailPriorityLow    EmailPriority = 0
	EmailPriorityNormal EmailPriority = 1
	EmailPriorityHigh   EmailPriority = 2
)

func (p EmailPriority) String() string {
	switch p {
	case EmailPriorityHigh:
		return "high"
	case EmailPriorityNormal:
		return "normal"
	default:
		return "low"
	}
}

type EmailStatus int

const (
	EmailStatusPending EmailStatus = 0
	EmailStatusSent    EmailStatus = 1
	EmailStatusFailed  EmailStatus = -1
)

func (s EmailStatus) String() string {
	switch s {
	case EmailStatusSent:
		return "sent"
	case EmailStatusFailed:
		return "failed"
	default:
		return "pending"
	}
}

// EmailQueueRow is one persisted outbound message. Status transitions are
// one-way: pending moves to sent or failed and a failed row is never
// retried automatically; re-evaluation happens upstream, if at all.
type EmailQueueRow struct {
	ID          uuid.UUID        `json:"id"`
	Recipient   string           `json:"recipient"`
	Subject     string           `json:"subject"`
	Body        string           `json:"body"` // pre-rendered HTML, opaque to the queue
	Type        NotificationType `json:"type"`
	Priority    EmailPriority    `json:"priority"`
	Status      EmailStatus      `json:"status"`
	ScheduledAt time.Time        `json:"scheduled_at"`
	SentAt      *time.Time       `json:"sent_at,omitempty"`
	RetryCount  int              `json:"retry_count"`
	LastError   string           `json:"last_error,omitempty"`
	EntityID    *uuid.UUID       `json:"entity_id,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}
