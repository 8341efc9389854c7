package httpt

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"bandonotifier/internal/entity"
	"bandonotifier/internal/scheduler"
)

const _defaultContextTimeout = 10 * time.Second

// @Summary Start the scheduler loops
// @Tags Scheduler
// @Accept json
// @Produce json
// @Param config body scheduler.Patch false "Partial loop configuration"
// @Success 200 {object} httpt.SuccessResponse
// @Failure 409 {object} httpt.ErrorResponse "Another instance holds the lease"
// @Router /scheduler/start [post]
func (h *Handler) startScheduler(c *gin.Context) {
	const op = "transport.http.startScheduler"

	var patch scheduler.Patch
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&patch); err != nil {
			h.handleBindError(c, op, err)
			return
		}
	}

	if err := h.sched.Start(c.Request.Context(), patch); err != nil {
		h.handleServiceError(c, op, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "scheduler started"})
}

// @Summary Stop the scheduler loops
// @Tags Scheduler
// @Produce json
// @Success 200 {object} httpt.SuccessResponse
// @Failure 409 {object} httpt.ErrorResponse "Scheduler is not running"
// @Router /scheduler/stop [post]
func (h *Handler) stopScheduler(c *gin.Context) {
	const op = "transport.http.stopScheduler"

	if !h.sched.Status().Running {
		h.handleServiceError(c, op, entity.ErrSchedulerStopped)
		return
	}

	h.sched.Stop()
	c.JSON(http.StatusOK, SuccessResponse{Message: "scheduler stopped"})
}

// @Summary Scheduler status
// @Description Reports running state, effective configuration and the next expected fire times.
// @Tags Scheduler
// @Produce json
// @Success 200 {object} scheduler.Status
// @Router /scheduler/status [get]
func (h *Handler) schedulerStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.sched.Status())
}

// @Summary Update scheduler configuration
// @Description Merges the patch into the current configuration. Running loops restart so new intervals take effect immediately.
// @Tags Scheduler
// @Accept json
// @Produce json
// @Param config body scheduler.Patch true "Partial loop configuration"
// @Success 200 {object} scheduler.Status
// @Failure 400 {object} httpt.ErrorResponse
// @Router /scheduler/config [patch]
func (h *Handler) updateSchedulerConfig(c *gin.Context) {
	const op = "transport.http.updateSchedulerConfig"

	var patch scheduler.Patch
	if err := c.ShouldBindJSON(&patch); err != nil {
		h.handleBindError(c, op, err)
		return
	}

	if err := h.sched.UpdateConfig(c.Request.Context(), patch); err != nil {
		h.handleServiceError(c, op, err)
		return
	}

	c.JSON(http.StatusOK, h.sched.Status())
}

// @Summary Run one sweep and drain immediately
// @Description Bypasses the time-window gating. Idempotency still holds: alerts already sent today are not re-enqueued.
// @Tags Scheduler
// @Produce json
// @Success 200 {object} httpt.ManualCheckResponse
// @Failure 500 {object} httpt.ErrorResponse
// @Router /scheduler/run [post]
func (h *Handler) runManualCheck(c *gin.Context) {
	const op = "transport.http.runManualCheck"

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Minute)
	defer cancel()

	sweep, drain, err := h.sched.RunManualCheck(ctx)
	if err != nil {
		h.handleServiceError(c, op, err)
		return
	}

	resp := ManualCheckResponse{}
	if sweep != nil {
		resp.Evaluated = sweep.Evaluated
		resp.Enqueued = sweep.Enqueued
		resp.SkippedQuiet = sweep.SkippedQuiet
		resp.SkippedOptOut = sweep.SkippedOptOut
		resp.SweepFailed = sweep.Failed
		resp.Duration = sweep.Duration
	}
	if drain != nil {
		resp.EmailsSent = drain.Sent
		resp.EmailsFailed = drain.Failed
		resp.Duration += drain.Duration
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Get a user's notification profile
// @Description Returns the stored profile, or the defaults when the user has never saved one.
// @Tags Settings
// @Produce json
// @Param email path string true "User email"
// @Success 200 {object} entity.NotificationSettings
// @Failure 400 {object} httpt.ErrorResponse
// @Router /settings/{email} [get]
func (h *Handler) getSettings(c *gin.Context) {
	const op = "transport.http.getSettings"

	ctx, cancel := context.WithTimeout(c.Request.Context(), _defaultContextTimeout)
	defer cancel()

	settings, err := h.profiles.GetProfile(ctx, c.Param("email"))
	if err != nil {
		h.handleServiceError(c, op, err)
		return
	}

	c.JSON(http.StatusOK, settings)
}

// @Summary Save a user's notification profile
// @Tags Settings
// @Accept json
// @Produce json
// @Param email path string true "User email"
// @Param settings body httpt.SettingsRequest true "Profile"
// @Success 200 {object} httpt.SuccessResponse
// @Failure 400 {object} httpt.ErrorResponse
// @Router /settings/{email} [put]
func (h *Handler) putSettings(c *gin.Context) {
	const op = "transport.http.putSettings"

	var req SettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.handleBindError(c, op, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), _defaultContextTimeout)
	defer cancel()

	if err := h.profiles.UpdateProfile(ctx, req.toEntity(c.Param("email"))); err != nil {
		h.handleServiceError(c, op, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "settings saved"})
}

// @Summary List always-notified recipients
// @Tags Recipients
// @Produce json
// @Success 200 {array} entity.AdditionalRecipient
// @Router /recipients [get]
func (h *Handler) listRecipients(c *gin.Context) {
	const op = "transport.http.listRecipients"

	ctx, cancel := context.WithTimeout(c.Request.Context(), _defaultContextTimeout)
	defer cancel()

	recipients, err := h.profiles.ListRecipients(ctx)
	if err != nil {
		h.handleServiceError(c, op, err)
		return
	}

	c.JSON(http.StatusOK, recipients)
}

// @Summary Register an always-notified recipient
// @Description Adding an address that was removed earlier reactivates it.
// @Tags Recipients
// @Accept json
// @Produce json
// @Param recipient body httpt.RecipientRequest true "Recipient"
// @Success 201 {object} httpt.SuccessResponse
// @Failure 400 {object} httpt.ErrorResponse
// @Router /recipients [post]
func (h *Handler) addRecipient(c *gin.Context) {
	const op = "transport.http.addRecipient"

	var req RecipientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.handleBindError(c, op, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), _defaultContextTimeout)
	defer cancel()

	if err := h.profiles.AddRecipient(ctx, req.Email); err != nil {
		h.handleServiceError(c, op, err)
		return
	}

	c.JSON(http.StatusCreated, SuccessResponse{Message: "recipient added"})
}

// @Summary Remove an always-notified recipient
// @Description Soft delete. The row stays for auditing but stops receiving alerts.
// @Tags Recipients
// @Produce json
// @Param email path string true "Recipient email"
// @Success 200 {object} httpt.SuccessResponse
// @Failure 404 {object} httpt.ErrorResponse
// @Router /recipients/{email} [delete]
func (h *Handler) removeRecipient(c *gin.Context) {
	const op = "transport.http.removeRecipient"

	ctx, cancel := context.WithTimeout(c.Request.Context(), _defaultContextTimeout)
	defer cancel()

	if err := h.profiles.RemoveRecipient(ctx, c.Param("email")); err != nil {
		h.handleServiceError(c, op, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "recipient removed"})
}

// @Summary Notify a user about a project assignment
// @Description Queues the assignment email and syncs project milestones to the user's calendar, per their profile.
// @Tags Notifications
// @Accept json
// @Produce json
// @Param assignment body httpt.ProjectAssignedRequest true "Assignment"
// @Success 202 {object} httpt.SuccessResponse
// @Failure 400 {object} httpt.ErrorResponse
// @Router /notifications/project-assigned [post]
func (h *Handler) projectAssigned(c *gin.Context) {
	const op = "transport.http.projectAssigned"

	var req ProjectAssignedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.handleBindError(c, op, err)
		return
	}

	projectID, err := uuid.Parse(req.ProjectID)
	if err != nil {
		h.handleBindError(c, op, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), _defaultContextTimeout)
	defer cancel()

	if err := h.notifier.NotifyProjectAssigned(ctx, projectID, req.UserEmail, req.ProjectTitle); err != nil {
		h.handleServiceError(c, op, err)
		return
	}

	c.JSON(http.StatusAccepted, SuccessResponse{Message: "assignment notification queued"})
}

// @Summary Health check
// @Tags Health
// @Produce json
// @Success 200 {object} httpt.SuccessResponse
// @Router /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, SuccessResponse{Message: "ok"})
}
