package endpoint

import (
	"maps"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
)

const mb = 1024 * 1024

// Metrics returns a handler that reports Go runtime statistics plus any
// service gauges from extras.
func Metrics(extras HealthExtras) gin.HandlerFunc {
	return func(c *gin.Context) {
		var m runtime.MemStats
		runtime.ReadMemStats(&m)

		body := gin.H{
			"timestamp":  time.Now().UTC().Format(time.RFC3339),
			"uptime_s":   int64(time.Since(startTime).Seconds()),
			"goroutines": runtime.NumGoroutine(),
			"cpus":       runtime.NumCPU(),
			"memory": gin.H{
				"heap_alloc_mb":  m.HeapAlloc / mb,
				"total_alloc_mb": m.TotalAlloc / mb,
				"sys_mb":         m.Sys / mb,
				"gc_runs":        m.NumGC,
				"gc_pause_ms":    float64(m.PauseTotalNs) / float64(time.Millisecond),
			},
		}
		if extras != nil {
			maps.Copy(body, extras(c.Request.Context()))
		}
		c.JSON(http.StatusOK, body)
	}
}
