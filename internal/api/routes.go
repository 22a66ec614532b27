package api

import "github.com/gin-gonic/gin"

// setupRoutes configures all API routes
func (s *Server) setupRoutes(router *gin.Engine) {
	router.GET("/metrics", s.getHandlerMetrics())

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", s.handleHealth)

		// Cluster view
		v1.GET("/cluster/nodes", s.getHandlerNodes())
		v1.GET("/cluster/nodes/:id", s.getHandlerNodeByID())
		v1.GET("/cluster/streams", s.getHandlerStreams())
		v1.GET("/cluster/info", s.getHandlerClusterInfo())

		// Leadership paths contain slashes, so they are matched as a catch-all
		v1.GET("/leadership", s.getHandlerLeaderBoard())
		v1.GET("/leadership/*path", s.getHandlerLeaderByPath())
		v1.POST("/leadership/*path", s.getHandlerRunForLeadership())
		v1.DELETE("/leadership/*path", s.getHandlerWithdraw())
		v1.POST("/stepdown/*path", s.getHandlerStepdown())
	}
}
