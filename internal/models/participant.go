package models

// Participant identifies one of the two humans sharing the room.
type Participant string

const (
	ParticipantM Participant = "M"
	ParticipantE Participant = "E"
)

// SenderAssistant is the reserved sender name used for AI replies.
// It is never a valid Participant.
const SenderAssistant = "assistant"

// Valid reports whether p is one of the two known participants.
func (p Participant) Valid() bool {
	return p == ParticipantM || p == ParticipantE
}

// Other returns the opposing participant.
func (p Participant) Other() Participant {
	if p == ParticipantM {
		return ParticipantE
	}
	return ParticipantM
}
