package service

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"komensa/internal/models"
)

// Event types pushed to connected clients.
const (
	EventMessage = "message"
	EventTurn    = "turn"
	EventTyping  = "typing"
	EventReset   = "reset"
)

// Event is the JSON payload broadcast over the push channel. Clients that
// prefer polling can ignore it; the REST endpoints stay authoritative.
type Event struct {
	Type            string             `json:"type"`
	Message         *models.Message    `json:"message,omitempty"`
	CurrentTurn     models.Participant `json:"current_turn,omitempty"`
	AssistantActive bool               `json:"assistant_active,omitempty"`
	TypingUsers     []string           `json:"typing_users,omitempty"`
}

// HubClient is one connected WebSocket subscriber.
type HubClient struct {
	Conn     *websocket.Conn
	SendChan chan Event
}

// EventHub fans out room events to all connected clients. There is only
// one room, so a single client set suffices.
type EventHub struct {
	clients    map[*HubClient]bool
	clientsMux sync.RWMutex
}

func NewEventHub() *EventHub {
	return &EventHub{
		clients: make(map[*HubClient]bool),
	}
}

// HandleConnection serves one subscriber until it disconnects. Inbound
// frames are read and discarded; the channel is push-only.
func (h *EventHub) HandleConnection(conn *websocket.Conn) {
	client := &HubClient{
		Conn:     conn,
		SendChan: make(chan Event, 256),
	}

	h.addClient(client)

	defer func() {
		h.dropClient(client)
		conn.Close()
	}()

	go h.writePump(client)
	h.readPump(client)
}

func (h *EventHub) readPump(client *HubClient) {
	client.Conn.SetReadLimit(4096)
	client.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	client.Conn.SetPongHandler(func(string) error {
		client.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := client.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Warn("websocket unexpected close", "error", err)
			}
			return
		}
	}
}

func (h *EventHub) writePump(client *HubClient) {
	ticker := time.NewTicker(54 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-client.SendChan:
			client.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.Conn.WriteJSON(event); err != nil {
				return
			}

		case <-ticker.C:
			client.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Broadcast queues an event for every connected client. Clients with a
// full queue are dropped rather than allowed to block the room. Sends
// happen under the read lock so they cannot race a dropClient close.
func (h *EventHub) Broadcast(event Event) {
	var slow []*HubClient

	h.clientsMux.RLock()
	for client := range h.clients {
		select {
		case client.SendChan <- event:
		default:
			slow = append(slow, client)
		}
	}
	h.clientsMux.RUnlock()

	for _, client := range slow {
		h.dropClient(client)
		client.Conn.Close()
	}
}

// ClientCount returns the number of connected subscribers.
func (h *EventHub) ClientCount() int {
	h.clientsMux.RLock()
	defer h.clientsMux.RUnlock()
	return len(h.clients)
}

func (h *EventHub) addClient(client *HubClient) {
	h.clientsMux.Lock()
	defer h.clientsMux.Unlock()
	h.clients[client] = true
}

// dropClient unregisters a client and closes its queue. Idempotent, and
// the exclusive lock keeps the close ordered against in-flight sends.
func (h *EventHub) dropClient(client *HubClient) {
	h.clientsMux.Lock()
	defer h.clientsMux.Unlock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.SendChan)
	}
}
