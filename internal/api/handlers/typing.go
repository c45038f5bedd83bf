package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"komensa/internal/service"
)

// TypingHandler exposes the ephemeral typing-presence list.
type TypingHandler struct {
	presence *service.PresenceService
}

func NewTypingHandler(presence *service.PresenceService) *TypingHandler {
	return &TypingHandler{presence: presence}
}

// TypingInput is the body of POST /api/typing.
type TypingInput struct {
	User     string `json:"user"`
	IsTyping bool   `json:"isTyping"`
}

func (h *TypingHandler) PostTyping(c *gin.Context) {
	var input TypingInput
	if err := c.ShouldBindJSON(&input); err != nil || input.User == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "User is required"})
		return
	}

	h.presence.SetTyping(input.User, input.IsTyping)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *TypingHandler) GetTyping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"typingUsers": h.presence.TypingUsers()})
}
