package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"komensa/internal/models"
	"komensa/internal/repository"
)

func newChatFixture(t *testing.T, state *models.RoomState, ai *stubAssistant) (*ChatService, *fakeMessageRepo, *fakeRoomRepo) {
	t.Helper()
	messageRepo := &fakeMessageRepo{}
	roomRepo := &fakeRoomRepo{state: state}
	repos := &repository.Repositories{
		Message:   messageRepo,
		RoomState: roomRepo,
		Setup:     &fakeSetupRepo{},
	}
	svc := NewChatService(repos, ai, NewEventHub(), 0)
	return svc, messageRepo, roomRepo
}

func mainRoomState(turn models.Participant) *models.RoomState {
	return &models.RoomState{
		RoomID:          models.MainRoomID,
		CurrentTurn:     turn,
		StructuredState: datatypes.JSON(`{}`),
	}
}

func TestPostMessageAdvancesTurn(t *testing.T) {
	ai := &stubAssistant{replyText: "Glad you're both here."}
	svc, messageRepo, roomRepo := newChatFixture(t, mainRoomState(models.ParticipantM), ai)

	result, err := svc.PostMessage(context.Background(), "M", "hi")
	require.NoError(t, err)

	assert.Equal(t, models.ParticipantE, result.CurrentTurn)
	require.Len(t, result.Messages, 2)
	assert.Equal(t, "M", result.Messages[0].Sender)
	assert.Equal(t, "hi", result.Messages[0].Content)
	assert.Equal(t, models.SenderAssistant, result.Messages[1].Sender)
	assert.Equal(t, "Glad you're both here.", result.Messages[1].Content)

	assert.Equal(t, models.ParticipantE, roomRepo.state.CurrentTurn)
	assert.False(t, roomRepo.state.AssistantActive)
	assert.Len(t, messageRepo.messages, 2)
}

func TestPostMessageRejectsWrongSender(t *testing.T) {
	ai := &stubAssistant{replyText: "unused"}
	svc, messageRepo, roomRepo := newChatFixture(t, mainRoomState(models.ParticipantM), ai)

	_, err := svc.PostMessage(context.Background(), "E", "hi")

	assert.ErrorIs(t, err, ErrNotYourTurn)
	assert.Empty(t, messageRepo.messages)
	assert.Equal(t, models.ParticipantM, roomRepo.state.CurrentTurn)
}

func TestPostMessageRejectsWhileAssistantBusy(t *testing.T) {
	state := mainRoomState(models.ParticipantM)
	state.AssistantActive = true
	svc, messageRepo, _ := newChatFixture(t, state, &stubAssistant{})

	_, err := svc.PostMessage(context.Background(), "M", "hi")

	assert.ErrorIs(t, err, ErrNotYourTurn)
	assert.Empty(t, messageRepo.messages)
}

func TestPostMessageValidation(t *testing.T) {
	svc, _, _ := newChatFixture(t, mainRoomState(models.ParticipantM), &stubAssistant{})

	_, err := svc.PostMessage(context.Background(), "", "hi")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.PostMessage(context.Background(), "M", "   ")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.PostMessage(context.Background(), "X", "hi")
	assert.ErrorIs(t, err, ErrInvalidParticipant)
}

func TestPostMessageRoomMissing(t *testing.T) {
	svc, _, _ := newChatFixture(t, nil, &stubAssistant{})

	_, err := svc.PostMessage(context.Background(), "M", "hi")

	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestPostMessageMergesStateUpdate(t *testing.T) {
	state := mainRoomState(models.ParticipantE)
	state.StructuredState = datatypes.JSON(`{"goals_for_session":["a","b"],"summary_of_session_progress":"s"}`)
	ai := &stubAssistant{replyText: "Noted.\n\nSTATE_UPDATE_JSON:\n{\"goals_for_session\":[\"x\"]}"}
	svc, _, roomRepo := newChatFixture(t, state, ai)

	result, err := svc.PostMessage(context.Background(), "E", "let's focus")
	require.NoError(t, err)

	// Conversational portion only is persisted.
	assert.Equal(t, "Noted.", result.Messages[1].Content)

	var merged map[string]any
	require.NoError(t, json.Unmarshal(roomRepo.state.StructuredState, &merged))
	assert.Equal(t, []any{"x"}, merged["goals_for_session"])
	assert.Equal(t, "s", merged["summary_of_session_progress"])
	assert.Equal(t, models.ParticipantM, roomRepo.state.CurrentTurn)
}

func TestPostMessagePersistsNewThreadHandle(t *testing.T) {
	ai := &stubAssistant{replyText: "ok", threadID: "thread_abc"}
	svc, _, roomRepo := newChatFixture(t, mainRoomState(models.ParticipantM), ai)

	_, err := svc.PostMessage(context.Background(), "M", "hi")
	require.NoError(t, err)

	assert.Equal(t, "thread_abc", roomRepo.state.ThreadID)
}

func TestPostMessageSubstitutesApologyForEmptyReply(t *testing.T) {
	ai := &stubAssistant{replyText: "   "}
	svc, _, roomRepo := newChatFixture(t, mainRoomState(models.ParticipantM), ai)

	result, err := svc.PostMessage(context.Background(), "M", "hi")
	require.NoError(t, err)

	assert.NotEmpty(t, result.Messages[1].Content)
	// The turn still advances even though the assistant had nothing to say.
	assert.Equal(t, models.ParticipantE, roomRepo.state.CurrentTurn)
	assert.False(t, roomRepo.state.AssistantActive)
}

func TestPostMessageSendsStateSnapshotToAssistant(t *testing.T) {
	state := mainRoomState(models.ParticipantM)
	state.StructuredState = datatypes.JSON(`{"goals_for_session":["resolve chores"]}`)
	ai := &stubAssistant{replyText: "ok"}
	svc, _, _ := newChatFixture(t, state, ai)

	_, err := svc.PostMessage(context.Background(), "M", "hi")
	require.NoError(t, err)

	assert.Contains(t, ai.lastReplyInput.StateSnapshot, "resolve chores")
	require.NotEmpty(t, ai.lastReplyInput.History)
	assert.Equal(t, "hi", ai.lastReplyInput.Latest.Content)
}

func TestPostSystemMessageBypassesGate(t *testing.T) {
	state := mainRoomState(models.ParticipantE)
	state.AssistantActive = true
	svc, _, roomRepo := newChatFixture(t, state, &stubAssistant{})

	result, err := svc.PostSystemMessage("Welcome back!")
	require.NoError(t, err)

	assert.Equal(t, models.ParticipantM, result.CurrentTurn)
	assert.Equal(t, models.SenderAssistant, result.Messages[0].Sender)
	assert.False(t, roomRepo.state.AssistantActive)
}

func TestEnsureRoomSeedsOnce(t *testing.T) {
	svc, messageRepo, roomRepo := newChatFixture(t, nil, &stubAssistant{})

	require.NoError(t, svc.EnsureRoom())
	require.NotNil(t, roomRepo.state)
	assert.True(t, roomRepo.state.CurrentTurn.Valid())
	require.Len(t, messageRepo.messages, 1)
	assert.Equal(t, models.SenderAssistant, messageRepo.messages[0].Sender)

	// Second call is a no-op.
	require.NoError(t, svc.EnsureRoom())
	assert.Len(t, messageRepo.messages, 1)
}

func TestResetClearsEverything(t *testing.T) {
	state := mainRoomState(models.ParticipantE)
	state.AssistantActive = true
	state.ThreadID = "thread_abc"
	state.StructuredState = datatypes.JSON(`{"goals_for_session":["x"]}`)
	svc, messageRepo, roomRepo := newChatFixture(t, state, &stubAssistant{replyText: "ok"})
	messageRepo.messages = []models.Message{
		{ID: 1, RoomID: models.MainRoomID, Sender: "M", Content: "old"},
	}

	require.NoError(t, svc.Reset())

	assert.Equal(t, models.ParticipantM, roomRepo.state.CurrentTurn)
	assert.False(t, roomRepo.state.AssistantActive)
	assert.Empty(t, roomRepo.state.ThreadID)
	assert.Equal(t, datatypes.JSON(`{}`), roomRepo.state.StructuredState)

	require.Len(t, messageRepo.messages, 1)
	assert.Equal(t, models.SenderAssistant, messageRepo.messages[0].Sender)
}

func TestActiveUsers(t *testing.T) {
	svc, messageRepo, _ := newChatFixture(t, mainRoomState(models.ParticipantM), &stubAssistant{})
	messageRepo.messages = []models.Message{
		{ID: 1, RoomID: models.MainRoomID, Sender: models.SenderAssistant, Content: "hi"},
		{ID: 2, RoomID: models.MainRoomID, Sender: "M", Content: "hello"},
	}

	active, available, err := svc.ActiveUsers()
	require.NoError(t, err)

	assert.Equal(t, []string{"M"}, active)
	assert.Equal(t, "E", available)

	messageRepo.messages = append(messageRepo.messages,
		models.Message{ID: 3, RoomID: models.MainRoomID, Sender: "E", Content: "hey"})

	active, available, err = svc.ActiveUsers()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"M", "E"}, active)
	assert.Empty(t, available)
}
