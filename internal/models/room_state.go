package models

import (
	"time"

	"gorm.io/datatypes"
)

// MainRoomID is the identifier of the single supported room.
const MainRoomID = "main-room"

// RoomState holds the turn-taking state of a room. One row per room;
// in practice there is only ever the main room.
//
// AssistantActive acts as the busy lock: while true, neither participant
// may post. ThreadID is the opaque handle of the persistent conversation
// kept by the external assistant service, created lazily on first use.
type RoomState struct {
	RoomID          string         `gorm:"type:varchar(50);primaryKey" json:"room_id"`
	CurrentTurn     Participant    `gorm:"type:varchar(1);not null" json:"current_turn"`
	AssistantActive bool           `gorm:"not null;default:false" json:"assistant_active"`
	ThreadID        string         `gorm:"type:text" json:"thread_id,omitempty"`
	StructuredState datatypes.JSON `gorm:"type:jsonb;not null;default:'{}'" json:"structured_state"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

func (RoomState) TableName() string { return "room_state" }
