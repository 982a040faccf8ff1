package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/medquiz-pro/session-service/internal/services"
	"github.com/medquiz-pro/session-service/internal/utils"
)

type HandlerManager struct {
	sessionHandler *SessionHandler
}

func NewHandlerManager(
	sessionService services.SessionService,
	exportService services.ExportService,
	logger utils.Logger,
) *HandlerManager {
	return &HandlerManager{
		sessionHandler: NewSessionHandler(sessionService, exportService, logger),
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		sessions := v1.Group("/sessions")
		{
			sessions.POST("", hm.sessionHandler.StartSession)
			sessions.GET("/:id", hm.sessionHandler.GetSession)
			sessions.GET("/:id/questions", hm.sessionHandler.GetSessionQuestions)
			sessions.POST("/:id/answers", hm.sessionHandler.SubmitAnswer)

			// Navigation
			sessions.POST("/:id/next", hm.sessionHandler.NextQuestion)
			sessions.POST("/:id/previous", hm.sessionHandler.PreviousQuestion)
			sessions.POST("/:id/questions/:index", hm.sessionHandler.GoToQuestion)

			// Countdowns
			sessions.GET("/:id/countdowns", hm.sessionHandler.GetCountdowns)

			// Lifecycle
			sessions.POST("/:id/complete", hm.sessionHandler.CompleteSession)
			sessions.POST("/:id/abandon", hm.sessionHandler.AbandonSession)

			// Results
			sessions.GET("/:id/result", hm.sessionHandler.GetResult)
			sessions.GET("/:id/result/export", hm.sessionHandler.ExportResult)
		}

		recovery := v1.Group("/recovery")
		{
			recovery.GET("", hm.sessionHandler.GetRecoveryStatus)
			recovery.POST("/reset", hm.sessionHandler.ResetRecovery)
		}
	}

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"service": "session-service",
		})
	})
}
