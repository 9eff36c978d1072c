package endpoint

import (
	"context"
	"maps"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/asrgate/component"
)

// HealthChecker returns health status for registered components.
type HealthChecker func(ctx context.Context) []component.Health

// HealthExtras adds service-specific fields to the health body.
type HealthExtras func(ctx context.Context) map[string]any

// Health returns a handler that reports service health including component
// statuses. Only an unhealthy component turns the response into a 503;
// degraded still answers 200.
func Health(serviceName string, checker HealthChecker, extras HealthExtras) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		status := component.StatusHealthy
		var components []component.Health

		if checker != nil {
			components = checker(ctx)
			status = aggregate(components)
		}

		httpStatus := http.StatusOK
		if status == component.StatusUnhealthy {
			httpStatus = http.StatusServiceUnavailable
		}

		body := gin.H{
			"status":     status,
			"service":    serviceName,
			"timestamp":  time.Now().UTC().Format(time.RFC3339),
			"components": components,
		}
		if extras != nil {
			maps.Copy(body, extras(ctx))
		}
		c.JSON(httpStatus, body)
	}
}

func aggregate(components []component.Health) component.HealthStatus {
	status := component.StatusHealthy
	for _, ch := range components {
		switch ch.Status {
		case component.StatusUnhealthy:
			return component.StatusUnhealthy
		case component.StatusDegraded:
			status = component.StatusDegraded
		}
	}
	return status
}
