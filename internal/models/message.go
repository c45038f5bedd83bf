package models

import "time"

// Message is one entry in the room's append-only message log. Entries are
// never updated or deleted except on a full room reset.
type Message struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	RoomID    string    `gorm:"type:varchar(50);not null;index" json:"room_id"`
	Sender    string    `gorm:"type:varchar(50);not null" json:"sender"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// NewUserMessage creates a message posted by a participant.
func NewUserMessage(roomID string, sender Participant, content string) Message {
	return Message{
		RoomID:  roomID,
		Sender:  string(sender),
		Content: content,
	}
}

// NewAssistantMessage creates a message attributed to the AI assistant.
func NewAssistantMessage(roomID, content string) Message {
	return Message{
		RoomID:  roomID,
		Sender:  SenderAssistant,
		Content: content,
	}
}
