package entity

import (
	"time"

	"github.com/google/uuid"
)

type DeadlineStatus string

const (
	DeadlineNotStarted DeadlineStatus = "not_started"
	DeadlineInProgress DeadlineStatus = "in_progress"
	DeadlineDone       DeadlineStatus = "done"
	DeadlineCancelled  DeadlineStatus = "cancelled"
)

type DeadlinePriority string

const (
	PriorityLow      DeadlinePriority = "low"
	PriorityMedium   DeadlinePriority = "medium"
	PriorityHigh     DeadlinePriority = "high"
	PriorityCritical DeadlinePriority = "critical"
)

// Deadline is a dated obligation tracked against a client, grant or project.
// At most one of ClientID/GrantID/ProjectID is set. DueDate carries a calendar
// date only; the time component is always midnight UTC.
type Deadline struct {
	ID               uuid.UUID        `json:"id"`
	Title            string           `json:"title"`
	DueDate          time.Time        `json:"due_date"`
	Status           DeadlineStatus   `json:"status"`
	Priority         DeadlinePriority `json:"priority"`
	ResponsibleEmail string           `json:"responsible_email"`
	Note             string           `json:"note,omitempty"`
	ClientID         *uuid.UUID       `json:"client_id,omitempty"`
	GrantID          *uuid.UUID       `json:"grant_id,omitempty"`
	ProjectID        *uuid.UUID       `json:"project_id,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// Alertable reports whether the deadline is still eligible for alerts.
func (d Deadline) Alertable() bool {
	return d.Status == DeadlineNotStarted || d.Status == DeadlineInProgress
}

// DaysUntil returns the whole-day difference between the due date and now,
// both truncated to midnight so clock time and DST shifts cannot skew the
// count. Negative values mean overdue.
func (d Deadline) DaysUntil(now time.Time) int {
	due := Midnight(d.DueDate)
	today := Midnight(now)
	return int(due.Sub(today).Hours() / 24)
}

// Midnight truncates t to the start of its day in UTC.
func Midnight(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
