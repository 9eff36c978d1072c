package api

import (
	"github.com/gin-gonic/gin"

	"github.com/kbukum/asrgate/server/endpoint"
	"github.com/kbukum/asrgate/server/middleware"
)

// Register mounts all routes on r. checker feeds the health and readiness
// endpoints.
func (h *Handler) Register(r gin.IRouter, checker endpoint.HealthChecker) {
	r.POST("/transcribe", h.Transcribe)

	keys := r.Group("/keys", middleware.APIKey(h.cfg.KeyHeader, h.keys))
	keys.POST("/reload", h.ReloadKeys)
	keys.GET("/count", h.KeyCount)

	r.GET("/health", endpoint.Health(h.cfg.ServiceName, checker, h.healthExtras))
	r.GET("/live", endpoint.Liveness(h.cfg.ServiceName))
	r.GET("/ready", endpoint.Readiness(h.cfg.ServiceName, checker))
	r.GET("/info", endpoint.Info(h.cfg.ServiceName))
	r.GET("/metrics", endpoint.Metrics(h.runtimeExtras))
}
