package entity

import "time"

// AlertThresholds are the days-remaining floors a user can subscribe to.
// Each flag is independent: a deadline alerts when days-remaining is at or
// below any enabled threshold, not only within a band.
var AlertThresholds = []int{1, 3, 7, 15}

// NotificationSettings is the per-user alert profile. It is keyed by the
// user's email address, not by a user id; the surrounding application writes
// it that way and this pipeline reproduces the keying faithfully.
type NotificationSettings struct {
	UserEmail string `json:"user_email"`

	EmailEnabled    bool `json:"email_enabled"`
	Threshold1Day   bool `json:"threshold_1_day"`
	Threshold3Days  bool `json:"threshold_3_days"`
	Threshold7Days  bool `json:"threshold_7_days"`
	Threshold15Days bool `json:"threshold_15_days"`
	WeeklyDigest    bool `json:"weekly_digest"`
	ProjectAssigned bool `json:"project_assigned"`

	CalendarEnabled       bool   `json:"calendar_enabled"`
	CalendarID            string `json:"calendar_id,omitempty"`
	CalendarSyncDeadlines bool   `json:"calendar_sync_deadlines"`
	CalendarSyncMilestone bool   `json:"calendar_sync_milestones"`

	QuietHoursEnabled bool   `json:"quiet_hours_enabled"`
	QuietHoursStart   string `json:"quiet_hours_start,omitempty"` // "HH:MM"
	QuietHoursEnd     string `json:"quiet_hours_end,omitempty"`   // "HH:MM"

	UpdatedAt time.Time `json:"updated_at"`
}

// DefaultSettings returns the documented fallback profile used when a user
// has never saved settings: every email alert on, calendar and quiet hours off.
func DefaultSettings(email string) NotificationSettings {
	return NotificationSettings{
		UserEmail:       email,
		EmailEnabled:    true,
		Threshold1Day:   true,
		Threshold3Days:  true,
		Threshold7Days:  true,
		Threshold15Days: true,
		WeeklyDigest:    true,
		ProjectAssigned: true,
	}
}

// ThresholdEnabled reports whether the given threshold flag is on.
func (s NotificationSettings) ThresholdEnabled(days int) bool {
	switch days {
	case 1:
		return s.Threshold1Day
	case 3:
		return s.Threshold3Days
	case 7:
		return s.Threshold7Days
	case 15:
		return s.Threshold15Days
	default:
		return false
	}
}

// AdditionalRecipient is an address that receives every deadline alert and
// the weekly digest regardless of per-user settings. Rows are soft-deleted
// via Active so the audit trail survives removal.
type AdditionalRecipient struct {
	Email     string    `json:"email"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}
