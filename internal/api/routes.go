package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"komensa/internal/api/handlers"
	"komensa/internal/middleware"
	"komensa/internal/service"
)

func SetupRoutes(r *gin.Engine, services *service.Services, db handlers.Database) {
	chatHandler := handlers.NewChatHandler(services.Chat)
	setupHandler := handlers.NewSetupHandler(services.Setup)
	typingHandler := handlers.NewTypingHandler(services.Presence)
	adminHandler := handlers.NewAdminHandler(services.Chat, db)
	wsHandler := handlers.NewWebSocketHandler(services.Hub)

	r.Use(middleware.CORSMiddleware())

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Route not found",
		})
	})

	api := r.Group("/api")
	{
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		// Chat
		api.GET("/messages", chatHandler.GetMessages)
		api.POST("/messages", chatHandler.PostMessage)
		api.GET("/turn", chatHandler.GetTurn)
		api.GET("/users", chatHandler.GetUsers)
		api.POST("/system-message", chatHandler.PostSystemMessage)

		// Typing presence
		api.GET("/typing", typingHandler.GetTyping)
		api.POST("/typing", typingHandler.PostTyping)

		// Setup questionnaire
		api.GET("/setup/status", setupHandler.GetStatus)
		api.POST("/setup/answer", setupHandler.PostAnswer)

		// Push channel
		api.GET("/ws", wsHandler.Handle)

		// Operational
		api.POST("/reset", adminHandler.Reset)
		api.GET("/db-check", adminHandler.DBCheck)
		api.GET("/init-db", adminHandler.InitDB)
		api.GET("/db-migrate", adminHandler.DBMigrate)
	}
}
