package handlers

import (
	"net/http"

	"github.com/VictoriaMetrics/metrics"
	"github.com/gin-gonic/gin"
)

// HandleMetrics writes every source's metric set in Prometheus text format,
// followed by the Go runtime and process metrics.
func HandleMetrics(sources ...MetricsSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		c.Status(http.StatusOK)
		for _, src := range sources {
			if src == nil {
				continue
			}
			src.Metrics().WritePrometheus(c.Writer)
		}
		metrics.WriteProcessMetrics(c.Writer)
	}
}
