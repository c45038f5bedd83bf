package models

import (
	"time"

	"gorm.io/datatypes"
)

// SetupStatus is the state of the pre-chat questionnaire.
type SetupStatus string

const (
	SetupAwaitingM           SetupStatus = "awaiting_M"
	SetupAwaitingE           SetupStatus = "awaiting_E"
	SetupSummarizing         SetupStatus = "summarizing"
	SetupComplete            SetupStatus = "complete"
	SetupSummarizationFailed SetupStatus = "summarization_failed"
)

// Closed reports whether the setup no longer accepts answers.
func (s SetupStatus) Closed() bool {
	return s == SetupComplete || s == SetupSummarizing || s == SetupSummarizationFailed
}

// AwaitedParticipant returns the participant expected to answer next,
// or false if the status is not an awaiting state.
func (s SetupStatus) AwaitedParticipant() (Participant, bool) {
	switch s {
	case SetupAwaitingM:
		return ParticipantM, true
	case SetupAwaitingE:
		return ParticipantE, true
	default:
		return "", false
	}
}

// ConversationSetup is the questionnaire phase gating access to the chat.
// One row per room, recreated on reset. Questions is a JSON array of
// strings; Answers maps participant -> question index -> answer text.
type ConversationSetup struct {
	SetupID   uint           `gorm:"primaryKey;column:setup_id" json:"setup_id"`
	RoomID    string         `gorm:"type:varchar(50);not null;uniqueIndex" json:"room_id"`
	Questions datatypes.JSON `gorm:"type:jsonb" json:"questions"`
	Answers   datatypes.JSON `gorm:"type:jsonb;not null;default:'{}'" json:"answers"`
	Summary   *string        `gorm:"type:text" json:"summary,omitempty"`
	Status    SetupStatus    `gorm:"type:text;not null;default:'awaiting_M'" json:"status"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func (ConversationSetup) TableName() string { return "conversation_setup" }
