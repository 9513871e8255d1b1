package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/greenroomhq/greenroom/internal/api/handlers"
	"github.com/greenroomhq/greenroom/internal/api/middleware"
)

type Deps struct {
	Session *handlers.SessionHandler
	Live    *handlers.LiveHandler
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	// Health-ish
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	// Protected routes (JWT)
	auth := r.Group("/")
	auth.Use(middleware.JWTAuth())

	auth.POST("/session/start", d.Session.Start)
	auth.GET("/session/:session_id", d.Session.Get)
	auth.POST("/session/:session_id/end", d.Session.End)
	auth.POST("/session/:session_id/export", d.Session.Export)
	auth.GET("/session/:session_id/answers", d.Session.Answers)

	// WebSocket live gateway
	auth.GET("/ws/live/:session_id", d.Live.LiveWS)

	// Ops (admin only)
	auth.GET("/ops/session/:session_id/segments", middleware.RequireAdmin(), d.Session.Segments)
}
