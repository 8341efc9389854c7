// Package httpt exposes the operator API: scheduler control, notification
// profiles and the always-notified recipient list.
package httpt

import (
	"context"

	"bandonotifier/internal/entity"
	"bandonotifier/internal/scheduler"
	"bandonotifier/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type (
	// SchedulerControl is the scheduler as seen by the operator endpoints.
	SchedulerControl interface {
		Start(ctx context.Context, patch scheduler.Patch) error
		Stop()
		RunManualCheck(ctx context.Context) (*service.SweepStats, *service.DrainStats, error)
		Status() scheduler.Status
		UpdateConfig(ctx context.Context, patch scheduler.Patch) error
	}

	// ProjectNotifier triggers the assignment notification path.
	ProjectNotifier interface {
		NotifyProjectAssigned(ctx context.Context, projectID uuid.UUID, userEmail, projectTitle string) error
	}

	// ProfileManager is the settings service as seen by the handlers.
	ProfileManager interface {
		GetProfile(ctx context.Context, email string) (*entity.NotificationSettings, error)
		UpdateProfile(ctx context.Context, settings entity.NotificationSettings) error
		ListRecipients(ctx context.Context) ([]entity.AdditionalRecipient, error)
		AddRecipient(ctx context.Context, email string) error
		RemoveRecipient(ctx context.Context, email string) error
	}

	Handler struct {
		sched    SchedulerControl
		notifier ProjectNotifier
		profiles ProfileManager
		log      *zap.SugaredLogger
		router   *gin.Engine
	}
)

func NewHandler(
	sched SchedulerControl,
	notifier ProjectNotifier,
	profiles ProfileManager,
	log *zap.SugaredLogger,
) *Handler {
	h := &Handler{
		sched:    sched,
		notifier: notifier,
		profiles: profiles,
		log:      log,
	}

	router := gin.New()
	router.Use(h.requestIDMiddleware())
	router.Use(h.loggingMiddleware())
	router.Use(gin.Recovery())

	h.router = router
	h.setupRoutes()

	return h
}

func (h *Handler) Engine() *gin.Engine {
	return h.router
}
