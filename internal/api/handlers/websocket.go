package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"komensa/internal/service"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // the SPA is served from another origin
	},
}

// WebSocketHandler subscribes clients to the room event stream.
type WebSocketHandler struct {
	hub *service.EventHub
}

func NewWebSocketHandler(hub *service.EventHub) *WebSocketHandler {
	return &WebSocketHandler{hub: hub}
}

// Handle upgrades the connection and serves events until disconnect.
func (h *WebSocketHandler) Handle(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}

	h.hub.HandleConnection(conn)
}
