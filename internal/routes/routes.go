package routes

import (
	"github.com/gin-gonic/gin"

	"taskboard/internal/handlers"
	"taskboard/internal/middleware"
)

func SetupRoutes(
	r *gin.Engine,
	authHandler *handlers.AuthHandler,
	boardHandler *handlers.BoardHandler,
	taskHandler *handlers.TaskHandler,
	eventHandler *handlers.EventHandler,
	streamHandler *handlers.StreamHandler,
) *gin.Engine {

	// ---- public
	r.POST("/login", authHandler.Login)
	r.GET("/healthz", func(c *gin.Context) { c.JSON(200, gin.H{"ok": true}) })

	// ---- protected
	r.Use(middleware.AuthMiddleware())

	r.GET("/board", boardHandler.GetBoard)

	groups := r.Group("/groups")
	{
		groups.POST("/", boardHandler.CreateGroup)
		groups.GET("/", boardHandler.ListGroups)
		groups.POST("/reorder", boardHandler.ReorderGroups)
	}

	tasks := r.Group("/tasks")
	{
		tasks.POST("/", taskHandler.Create)
		tasks.GET("/:id", taskHandler.GetByID)
		tasks.PUT("/:id", taskHandler.Update)
		tasks.DELETE("/:id", taskHandler.Archive)
		tasks.POST("/:id/move", taskHandler.Move)
		tasks.GET("/:id/stream", streamHandler.StreamTask)
	}

	r.GET("/events", eventHandler.List)
	r.GET("/stream", streamHandler.StreamAll)

	return r
}
