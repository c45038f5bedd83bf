package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"komensa/internal/models"
	"komensa/internal/service"
)

// Database is the slice of the storage layer the operational endpoints
// need.
type Database interface {
	Ping() error
	AutoMigrate(models ...interface{}) error
}

// AdminHandler serves reset and the operational/diagnostic endpoints.
type AdminHandler struct {
	chatService *service.ChatService
	db          Database
}

func NewAdminHandler(chatService *service.ChatService, db Database) *AdminHandler {
	return &AdminHandler{chatService: chatService, db: db}
}

// Reset wipes the room and reseeds it. This is also the manual recovery
// path for a room stuck assistant-busy.
func (h *AdminHandler) Reset(c *gin.Context) {
	if err := h.chatService.Reset(); err != nil {
		slog.Error("failed to reset chat", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reset chat"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Chat reset successfully",
	})
}

// DBCheck verifies database connectivity.
func (h *AdminHandler) DBCheck(c *gin.Context) {
	if err := h.db.Ping(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"database": "connected",
	})
}

// InitDB ensures the schema exists and the main room is seeded.
func (h *AdminHandler) InitDB(c *gin.Context) {
	if err := h.migrate(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  err.Error(),
		})
		return
	}
	if err := h.chatService.EnsureRoom(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "Database initialized successfully",
	})
}

// DBMigrate brings the schema up to date without touching data.
func (h *AdminHandler) DBMigrate(c *gin.Context) {
	if err := h.migrate(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "Database migration completed successfully",
	})
}

func (h *AdminHandler) migrate() error {
	return h.db.AutoMigrate(
		&models.Message{},
		&models.RoomState{},
		&models.ConversationSetup{},
	)
}
