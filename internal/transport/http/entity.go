// nolint: revive
// swagger:meta
package httpt

import (
	"time"

	"bandonotifier/internal/entity"
)

// swagger:model ErrorResponse
type ErrorResponse struct {
	Error   string `json:"error"             example:"settings not found"`
	Code    string `json:"code,omitempty"    example:"not_found"`
	Details string `json:"details,omitempty" example:"no profile stored for mario.rossi@example.com"`
}

// swagger:model SuccessResponse
type SuccessResponse struct {
	Message string `json:"message" example:"scheduler stopped"`
}

// swagger:model ManualCheckResponse
type ManualCheckResponse struct {
	Evaluated     int           `json:"evaluated"       example:"12"`
	Enqueued      int           `json:"enqueued"        example:"4"`
	SkippedQuiet  int           `json:"skipped_quiet"   example:"1"`
	SkippedOptOut int           `json:"skipped_opt_out" example:"2"`
	SweepFailed   int           `json:"sweep_failed"    example:"0"`
	EmailsSent    int           `json:"emails_sent"     example:"4"`
	EmailsFailed  int           `json:"emails_failed"   example:"0"`
	Duration      time.Duration `json:"duration_ns"     example:"152000000"`
}

// swagger:model SettingsRequest
type SettingsRequest struct {
	EmailEnabled    bool `json:"email_enabled"`
	Threshold1Day   bool `json:"threshold_1_day"`
	Threshold3Days  bool `json:"threshold_3_days"`
	Threshold7Days  bool `json:"threshold_7_days"`
	Threshold15Days bool `json:"threshold_15_days"`
	WeeklyDigest    bool `json:"weekly_digest"`
	ProjectAssigned bool `json:"project_assigned"`

	CalendarEnabled       bool   `json:"calendar_enabled"`
	CalendarID            string `json:"calendar_id"`
	CalendarSyncDeadlines bool   `json:"calendar_sync_deadlines"`
	CalendarSyncMilestone bool   `json:"calendar_sync_milestones"`

	QuietHoursEnabled bool   `json:"quiet_hours_enabled"`
	QuietHoursStart   string `json:"quiet_hours_start" example:"22:00"`
	QuietHoursEnd     string `json:"quiet_hours_end"   example:"08:00"`
}

func (r SettingsRequest) toEntity(email string) entity.NotificationSettings {
	return entity.NotificationSettings{
		UserEmail:             email,
		EmailEnabled:          r.EmailEnabled,
		Threshold1Day:         r.Threshold1Day,
		Threshold3Days:        r.Threshold3Days,
		Threshold7Days:        r.Threshold7Days,
		Threshold15Days:       r.Threshold15Days,
		WeeklyDigest:          r.WeeklyDigest,
		ProjectAssigned:       r.ProjectAssigned,
		CalendarEnabled:       r.CalendarEnabled,
		CalendarID:            r.CalendarID,
		CalendarSyncDeadlines: r.CalendarSyncDeadlines,
		CalendarSyncMilestone: r.CalendarSyncMilestone,
		QuietHoursEnabled:     r.QuietHoursEnabled,
		QuietHoursStart:       r.QuietHoursStart,
		QuietHoursEnd:         r.QuietHoursEnd,
	}
}

// swagger:model RecipientRequest
type RecipientRequest struct {
	Email string `json:"email" binding:"required,email" example:"direzione@example.com"`
}

// swagger:model ProjectAssignedRequest
type ProjectAssignedRequest struct {
	ProjectID    string `json:"project_id"    binding:"required,uuid" example:"0192c6a1-7f2e-7bb1-9c1d-2f61a1b0c9d4"`
	UserEmail    string `json:"user_email"    binding:"required,email" example:"mario.rossi@example.com"`
	ProjectTitle string `json:"project_title" binding:"required" example:"PNRR Digitalizzazione PMI"`
}
