package httpt

import (
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title           Bando Notifier API
// @version         1.0
// @description     Operator API for the grant deadline notification pipeline.
// @host            localhost:8080
// @BasePath        /
func (h *Handler) setupRoutes() {
	h.router.GET("/health", h.health)

	sched := h.router.Group("/scheduler")
	{
		sched.POST("/start", h.startScheduler)
		sched.POST("/stop", h.stopScheduler)
		sched.POST("/run", h.runManualCheck)
		sched.GET("/status", h.schedulerStatus)
		sched.PATCH("/config", h.updateSchedulerConfig)
	}

	h.router.GET("/settings/:email", h.getSettings)
	h.router.PUT("/settings/:email", h.putSettings)

	h.router.GET("/recipients", h.listRecipients)
	h.router.POST("/recipients", h.addRecipient)
	h.router.DELETE("/recipients/:email", h.removeRecipient)

	h.router.POST("/notifications/project-assigned", h.projectAssigned)

	h.router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}
