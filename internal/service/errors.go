package service

import "errors"

// Sentinel errors the handlers map onto HTTP statuses. Only validation
// and turn-ownership violations ever reach the client as errors; the
// assistant and state-merge layers degrade internally.
var (
	ErrInvalidInput        = errors.New("sender and content are required")
	ErrInvalidParticipant  = errors.New("participant must be M or E")
	ErrRoomNotFound        = errors.New("room not found")
	ErrNotYourTurn         = errors.New("not your turn")
	ErrSetupNotFound       = errors.New("no active setup found for this room")
	ErrSetupClosed         = errors.New("setup is already complete or in progress")
	ErrNotYourSetupTurn    = errors.New("not your turn to answer setup questions")
	ErrSummarizationFailed = errors.New("AI summarization failed")
)
