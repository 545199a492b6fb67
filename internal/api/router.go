package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

func NewRouter(sessionHandler *SessionHandler, workspaceHandler *WorkspaceHandler, systemToken string) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware())
	r.Use(CORSMiddleware())
	r.Use(RequestIDMiddleware())

	// Global health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, HealthResponse{
			Status:    "ok",
			Timestamp: formatTime(time.Now()),
		})
	})

	v1 := r.Group("/api/v1")
	{
		sessions := v1.Group("/sessions")
		{
			sessions.POST("", sessionHandler.CreateSession)
			sessions.GET("", sessionHandler.ListSessions)
			sessions.GET("/:id", sessionHandler.GetSession)
			sessions.PUT("/:id", sessionHandler.UpdateSession)
			sessions.DELETE("/:id", sessionHandler.DeleteSession)
			sessions.GET("/:id/stream", sessionHandler.StreamEvents)

			// Operator repair
			sessions.POST("/:id/sync", sessionHandler.ForceSync)
			sessions.POST("/:id/poll", sessionHandler.ForcePoll)

			// Workspaces under a session
			sessions.POST("/:id/workspaces", workspaceHandler.CreateWorkspace)
			sessions.GET("/:id/workspaces", workspaceHandler.ListWorkspaces)
		}

		workspaces := v1.Group("/workspaces")
		{
			workspaces.GET("/:id", workspaceHandler.GetWorkspace)
			workspaces.POST("/:id/start", workspaceHandler.StartWorkspace)
			workspaces.POST("/:id/stop", workspaceHandler.StopWorkspace)
			workspaces.DELETE("/:id", workspaceHandler.DeleteWorkspace)
		}
	}

	// 特权系统接口：session status 的唯一外部写入口
	internal := r.Group("/internal/v1", SystemTokenMiddleware(systemToken))
	{
		internal.PUT("/sessions/:id/status", sessionHandler.SystemUpdateStatus)
	}

	return r
}
