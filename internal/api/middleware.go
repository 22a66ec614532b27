package api

import (
	"strings"
	"time"

	"github.com/concave-dev/lattice/internal/logging"
	"github.com/gin-gonic/gin"
)

// pollingPaths are scraped or watched on a timer and logged at debug level
var pollingPaths = []string{"/metrics", "/api/v1/health"}

// loggingMiddleware provides request logging
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		format := "%s - [%s] \"%s %s %s %d %s \"%s\" %s\""
		args := []any{
			param.ClientIP,
			param.TimeStamp.Format(time.RFC1123),
			param.Method,
			param.Path,
			param.Request.Proto,
			param.StatusCode,
			param.Latency,
			param.Request.UserAgent(),
			param.ErrorMessage,
		}

		switch {
		case param.StatusCode >= 500:
			logging.Error(format, args...)
		case isPolling(param.Method, param.Path):
			logging.Debug(format, args...)
		default:
			logging.Info(format, args...)
		}
		return ""
	})
}

func isPolling(method, path string) bool {
	if method != "GET" {
		return false
	}
	for _, p := range pollingPaths {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// corsMiddleware provides CORS headers
func (s *Server) corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-CSRF-Token")
		c.Header("Access-Control-Expose-Headers", "Link")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "300")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
