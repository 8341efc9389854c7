package entity

import (
	"testing"
	"time"
)

func TestDaysUntil(t *testing.T) {
	tests := []struct {
		name string
		due  time.Time
		now  time.Time
		want int
	}{
		{
			"same day ignores clock time",
			time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
			time.Date(2026, 3, 10, 23, 59, 0, 0, time.UTC),
			0,
		},
		{
			"three days out",
			time.Date(2026, 3, 13, 0, 0, 0, 0, time.UTC),
			time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
			3,
		},
		{
			"overdue is negative",
			time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC),
			time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
			-2,
		},
		{
			"late evening due date still counts as its day",
			time.Date(2026, 3, 11, 23, 0, 0, 0, time.UTC),
			time.Date(2026, 3, 10, 1, 0, 0, 0, time.UTC),
			1,
		},
	}

	for _, tt := range tests {
		d := Deadline{DueDate: tt.due}
		if got := d.DaysUntil(tt.now); got != tt.want {
			t.Errorf("%s: DaysUntil = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestAlertable(t *testing.T) {
	tests := []struct {
		status DeadlineStatus
		want   bool
	}{
		{DeadlineNotStarted, true},
		{DeadlineInProgress, true},
		{DeadlineDone, false},
		{DeadlineCancelled, false},
	}
	for _, tt := range tests {
		d := Deadline{Status: tt.status}
		if got := d.Alertable(); got != tt.want {
			t.Errorf("Alertable(%s) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestThresholdType(t *testing.T) {
	if got := ThresholdType(7); got != "threshold-7-days" {
		t.Errorf("ThresholdType(7) = %s", got)
	}
	if got := ThresholdType(1); got != "threshold-1-days" {
		t.Errorf("ThresholdType(1) = %s", got)
	}
}

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings("mario@example.com")

	if !s.EmailEnabled || !s.WeeklyDigest || !s.ProjectAssigned {
		t.Errorf("defaults must enable all email notifications: %+v", s)
	}
	for _, days := range AlertThresholds {
		if !s.ThresholdEnabled(days) {
			t.Errorf("default threshold %d disabled", days)
		}
	}
	if s.CalendarEnabled || s.QuietHoursEnabled {
		t.Errorf("defaults must leave calendar and quiet hours off: %+v", s)
	}
	if s.ThresholdEnabled(5) {
		t.Error("unknown threshold must report disabled")
	}
}
