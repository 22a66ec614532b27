package api

import (
	"net"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func newMiddlewareServer(t *testing.T) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to create test listener: %v", err)
	}
	t.Cleanup(func() { listener.Close() })

	server, err := NewServerWithListener(stubConfig(), listener)
	if err != nil {
		t.Fatalf("NewServerWithListener() error = %v", err)
	}
	return server
}

// TestCORSMiddleware tests CORS headers on normal and preflight requests
func TestCORSMiddleware(t *testing.T) {
	server := newMiddlewareServer(t)

	router := gin.New()
	router.Use(server.corsMiddleware())
	router.POST("/api/v1/leadership/*path", func(c *gin.Context) {
		c.JSON(202, gin.H{"path": c.Param("path")})
	})

	tests := []struct {
		method string
		want   int
	}{
		{"POST", 202},
		{"OPTIONS", 204},
	}

	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/v1/leadership/devices/of:1", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
			if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
				t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
			}
			if got := w.Header().Get("Access-Control-Allow-Methods"); got != "GET, POST, PUT, DELETE, OPTIONS" {
				t.Errorf("Access-Control-Allow-Methods = %q", got)
			}
		})
	}
}

// TestIsPolling tests which requests are logged at debug level
func TestIsPolling(t *testing.T) {
	tests := []struct {
		method string
		path   string
		want   bool
	}{
		{"GET", "/metrics", true},
		{"GET", "/api/v1/health", true},
		{"GET", "/api/v1/cluster/nodes", false},
		{"POST", "/api/v1/health", false},
	}

	for _, tt := range tests {
		if got := isPolling(tt.method, tt.path); got != tt.want {
			t.Errorf("isPolling(%s, %s) = %v, want %v", tt.method, tt.path, got, tt.want)
		}
	}
}
