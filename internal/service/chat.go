package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"komensa/internal/assistant"
	"komensa/internal/convstate"
	"komensa/internal/models"
	"komensa/internal/repository"
)

// WelcomeMessage seeds a fresh room.
const WelcomeMessage = "Welcome to Komensa Chat! I'm your AI assistant. M and E can take turns chatting with me. Who would like to start?"

// ResetMessage seeds the room after a reset.
const ResetMessage = "Chat has been reset. Welcome to Komensa!"

// AssistantClient is the slice of the assistant package the chat and
// setup services depend on.
type AssistantClient interface {
	Reply(ctx context.Context, in assistant.ReplyInput) assistant.ReplyOutput
	Summarize(ctx context.Context, questions []string, answers map[string]map[string]string) (string, error)
}

// ChatService owns the turn-taking state machine: it gates who may post,
// drives the assistant invocation and advances the turn afterwards.
type ChatService struct {
	messageRepo repository.MessageRepository
	roomRepo    repository.RoomStateRepository
	setupRepo   repository.SetupRepository
	assistant   AssistantClient
	hub         *EventHub

	// replyDelay paces the UI typing indicator before each invocation.
	replyDelay time.Duration
}

func NewChatService(repos *repository.Repositories, ai AssistantClient, hub *EventHub, replyDelay time.Duration) *ChatService {
	return &ChatService{
		messageRepo: repos.Message,
		roomRepo:    repos.RoomState,
		setupRepo:   repos.Setup,
		assistant:   ai,
		hub:         hub,
		replyDelay:  replyDelay,
	}
}

// PostResult is what a successful post returns to the client: the full
// ordered log and whose turn it is now.
type PostResult struct {
	Messages    []models.Message
	CurrentTurn models.Participant
}

func (s *ChatService) GetMessages() ([]models.Message, error) {
	return s.messageRepo.FindByRoomID(models.MainRoomID)
}

func (s *ChatService) GetRoomState() (*models.RoomState, error) {
	state, err := s.roomRepo.Find(models.MainRoomID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	return state, nil
}

// ActiveUsers lists participants seen in the log and which participant
// slot, if any, is still free.
func (s *ChatService) ActiveUsers() (active []string, available string, err error) {
	senders, err := s.messageRepo.DistinctSenders(models.MainRoomID)
	if err != nil {
		return nil, "", err
	}

	hasM, hasE := false, false
	for _, sender := range senders {
		switch models.Participant(sender) {
		case models.ParticipantM:
			hasM = true
		case models.ParticipantE:
			hasE = true
		}
	}

	switch {
	case hasM && !hasE:
		available = string(models.ParticipantE)
	case hasE && !hasM:
		available = string(models.ParticipantM)
	}
	return senders, available, nil
}

// PostMessage runs the full turn sequence: gate, persist, invoke, merge,
// advance. The multi-step write sequence is not transactional; a crash
// mid-flight leaves the room busy until the watchdog releases it.
func (s *ChatService) PostMessage(ctx context.Context, sender, content string) (*PostResult, error) {
	sender = strings.TrimSpace(sender)
	content = strings.TrimSpace(content)
	if sender == "" || content == "" {
		return nil, ErrInvalidInput
	}
	participant := models.Participant(sender)
	if !participant.Valid() {
		return nil, ErrInvalidParticipant
	}

	state, err := s.GetRoomState()
	if err != nil {
		return nil, err
	}

	// Turn gate: reject unless it is this sender's turn and the
	// assistant is idle. No mutation on rejection.
	if state.CurrentTurn != participant || state.AssistantActive {
		return nil, ErrNotYourTurn
	}

	userMessage := models.NewUserMessage(models.MainRoomID, participant, content)
	if err := s.messageRepo.Create(&userMessage); err != nil {
		return nil, fmt.Errorf("failed to persist message: %w", err)
	}
	s.hub.Broadcast(Event{Type: EventMessage, Message: &userMessage})

	// Hand-off point: from here the room is locked until the turn
	// advances below.
	if err := s.roomRepo.SetAssistantActive(models.MainRoomID, true); err != nil {
		return nil, fmt.Errorf("failed to mark assistant busy: %w", err)
	}
	s.hub.Broadcast(Event{Type: EventTurn, CurrentTurn: state.CurrentTurn, AssistantActive: true})

	s.pace(ctx)

	history, err := s.messageRepo.FindByRoomID(models.MainRoomID)
	if err != nil {
		slog.Error("failed to load history for assistant, using latest message only", "error", err)
		history = []models.Message{userMessage}
	}

	out := s.assistant.Reply(ctx, assistant.ReplyInput{
		ThreadID:      state.ThreadID,
		History:       history,
		Latest:        userMessage,
		StateSnapshot: convstate.Render(state.StructuredState),
	})
	if out.ThreadID != "" && out.ThreadID != state.ThreadID {
		state.ThreadID = out.ThreadID
		if err := s.roomRepo.SetThreadID(models.MainRoomID, out.ThreadID); err != nil {
			slog.Error("failed to persist thread handle", "error", err)
		}
	}

	replyText, update, hasUpdate := convstate.ParseReply(out.Text)
	if hasUpdate {
		merged, err := convstate.Merge(state.StructuredState, update)
		if err != nil {
			slog.Error("failed to merge state update, keeping previous state", "error", err)
		} else {
			state.StructuredState = merged
		}
	}
	if strings.TrimSpace(replyText) == "" {
		replyText = assistant.ApologyReply
	}

	replyMessage := models.NewAssistantMessage(models.MainRoomID, replyText)
	if err := s.messageRepo.Create(&replyMessage); err != nil {
		slog.Error("failed to persist assistant reply", "error", err)
	} else {
		s.hub.Broadcast(Event{Type: EventMessage, Message: &replyMessage})
	}

	// Turn advancer: must happen unconditionally after invocation,
	// including on the fallback path, or the room locks up.
	state.CurrentTurn = participant.Other()
	state.AssistantActive = false
	if err := s.roomRepo.Save(state); err != nil {
		return nil, fmt.Errorf("failed to advance turn: %w", err)
	}
	s.hub.Broadcast(Event{Type: EventTurn, CurrentTurn: state.CurrentTurn, AssistantActive: false})

	messages, err := s.messageRepo.FindByRoomID(models.MainRoomID)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	return &PostResult{Messages: messages, CurrentTurn: state.CurrentTurn}, nil
}

// PostSystemMessage inserts an assistant-attributed message without going
// through the turn gate and hands the turn to M. Used for welcome text.
func (s *ChatService) PostSystemMessage(content string) (*PostResult, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrInvalidInput
	}

	message := models.NewAssistantMessage(models.MainRoomID, content)
	if err := s.messageRepo.Create(&message); err != nil {
		return nil, fmt.Errorf("failed to persist system message: %w", err)
	}
	s.hub.Broadcast(Event{Type: EventMessage, Message: &message})

	state, err := s.GetRoomState()
	if err != nil {
		return nil, err
	}
	state.CurrentTurn = models.ParticipantM
	state.AssistantActive = false
	if err := s.roomRepo.Save(state); err != nil {
		return nil, fmt.Errorf("failed to update room state: %w", err)
	}
	s.hub.Broadcast(Event{Type: EventTurn, CurrentTurn: state.CurrentTurn})

	messages, err := s.messageRepo.FindByRoomID(models.MainRoomID)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	return &PostResult{Messages: messages, CurrentTurn: state.CurrentTurn}, nil
}

// EnsureRoom creates the main room with a random first turn and a welcome
// message if it does not exist yet. Safe to call repeatedly.
func (s *ChatService) EnsureRoom() error {
	_, err := s.roomRepo.Find(models.MainRoomID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to check room state: %w", err)
	}

	firstTurn := models.ParticipantM
	if rand.Intn(2) == 1 {
		firstTurn = models.ParticipantE
	}
	state := &models.RoomState{
		RoomID:          models.MainRoomID,
		CurrentTurn:     firstTurn,
		AssistantActive: false,
		StructuredState: datatypes.JSON(`{}`),
	}
	if err := s.roomRepo.Create(state); err != nil {
		return fmt.Errorf("failed to create room state: %w", err)
	}

	welcome := models.NewAssistantMessage(models.MainRoomID, WelcomeMessage)
	if err := s.messageRepo.Create(&welcome); err != nil {
		return fmt.Errorf("failed to seed welcome message: %w", err)
	}
	slog.Info("seeded main room", "first_turn", firstTurn)
	return nil
}

// Reset wipes the message log, the room state and the setup row, then
// reseeds a welcome message with the turn handed to M.
func (s *ChatService) Reset() error {
	if err := s.messageRepo.DeleteByRoomID(models.MainRoomID); err != nil {
		return fmt.Errorf("failed to clear messages: %w", err)
	}
	if err := s.setupRepo.DeleteByRoomID(models.MainRoomID); err != nil {
		return fmt.Errorf("failed to clear setup: %w", err)
	}

	state, err := s.roomRepo.Find(models.MainRoomID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to load room state: %w", err)
		}
		state = &models.RoomState{RoomID: models.MainRoomID}
	}
	state.CurrentTurn = models.ParticipantM
	state.AssistantActive = false
	state.ThreadID = ""
	state.StructuredState = datatypes.JSON(`{}`)
	if err := s.roomRepo.Save(state); err != nil {
		return fmt.Errorf("failed to reset room state: %w", err)
	}

	seed := models.NewAssistantMessage(models.MainRoomID, ResetMessage)
	if err := s.messageRepo.Create(&seed); err != nil {
		return fmt.Errorf("failed to seed reset message: %w", err)
	}

	s.hub.Broadcast(Event{Type: EventReset})
	slog.Info("room reset")
	return nil
}

// pace inserts the fixed artificial delay before invocation so the
// typing indicator is visible. UX only, not a correctness requirement.
func (s *ChatService) pace(ctx context.Context) {
	if s.replyDelay <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(s.replyDelay):
	}
}
