package service

import (
	"context"
	"time"

	"gorm.io/gorm"

	"komensa/internal/assistant"
	"komensa/internal/models"
)

type fakeMessageRepo struct {
	messages   []models.Message
	nextID     uint
	createErr  error
	findErr    error
	deleteErr  error
	sendersErr error
}

func (r *fakeMessageRepo) Create(message *models.Message) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.nextID++
	message.ID = r.nextID
	message.CreatedAt = time.Now()
	r.messages = append(r.messages, *message)
	return nil
}

func (r *fakeMessageRepo) FindByRoomID(roomID string) ([]models.Message, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}
	var out []models.Message
	for _, msg := range r.messages {
		if msg.RoomID == roomID {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (r *fakeMessageRepo) DistinctSenders(roomID string) ([]string, error) {
	if r.sendersErr != nil {
		return nil, r.sendersErr
	}
	seen := map[string]bool{}
	var out []string
	for _, msg := range r.messages {
		if msg.RoomID != roomID || msg.Sender == models.SenderAssistant || seen[msg.Sender] {
			continue
		}
		seen[msg.Sender] = true
		out = append(out, msg.Sender)
	}
	return out, nil
}

func (r *fakeMessageRepo) DeleteByRoomID(roomID string) error {
	if r.deleteErr != nil {
		return r.deleteErr
	}
	var kept []models.Message
	for _, msg := range r.messages {
		if msg.RoomID != roomID {
			kept = append(kept, msg)
		}
	}
	r.messages = kept
	return nil
}

type fakeRoomRepo struct {
	state   *models.RoomState
	findErr error
	saveErr error
}

func (r *fakeRoomRepo) Find(roomID string) (*models.RoomState, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}
	if r.state == nil || r.state.RoomID != roomID {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *r.state
	return &copied, nil
}

func (r *fakeRoomRepo) Create(state *models.RoomState) error {
	copied := *state
	r.state = &copied
	return nil
}

func (r *fakeRoomRepo) Save(state *models.RoomState) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	copied := *state
	copied.UpdatedAt = time.Now()
	r.state = &copied
	return nil
}

func (r *fakeRoomRepo) SetAssistantActive(roomID string, active bool) error {
	if r.state == nil {
		return gorm.ErrRecordNotFound
	}
	r.state.AssistantActive = active
	r.state.UpdatedAt = time.Now()
	return nil
}

func (r *fakeRoomRepo) SetThreadID(roomID, threadID string) error {
	if r.state == nil {
		return gorm.ErrRecordNotFound
	}
	r.state.ThreadID = threadID
	return nil
}

func (r *fakeRoomRepo) DeleteByRoomID(roomID string) error {
	r.state = nil
	return nil
}

func (r *fakeRoomRepo) ReleaseStuck(cutoff time.Time) (int64, error) {
	if r.findErr != nil {
		return 0, r.findErr
	}
	if r.state != nil && r.state.AssistantActive && r.state.UpdatedAt.Before(cutoff) {
		r.state.AssistantActive = false
		return 1, nil
	}
	return 0, nil
}

type fakeSetupRepo struct {
	setup     *models.ConversationSetup
	createErr error
	saveErr   error
}

func (r *fakeSetupRepo) FindByRoomID(roomID string) (*models.ConversationSetup, error) {
	if r.setup == nil || r.setup.RoomID != roomID {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *r.setup
	return &copied, nil
}

func (r *fakeSetupRepo) Create(setup *models.ConversationSetup) error {
	if r.createErr != nil {
		return r.createErr
	}
	setup.SetupID = 1
	copied := *setup
	r.setup = &copied
	return nil
}

func (r *fakeSetupRepo) Save(setup *models.ConversationSetup) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	copied := *setup
	r.setup = &copied
	return nil
}

func (r *fakeSetupRepo) DeleteByRoomID(roomID string) error {
	r.setup = nil
	return nil
}

type stubAssistant struct {
	replyText  string
	threadID   string
	summary    string
	summaryErr error

	lastReplyInput   assistant.ReplyInput
	summarizeCalls   int
	lastSummaryInput map[string]map[string]string
}

func (a *stubAssistant) Reply(_ context.Context, in assistant.ReplyInput) assistant.ReplyOutput {
	a.lastReplyInput = in
	threadID := in.ThreadID
	if a.threadID != "" {
		threadID = a.threadID
	}
	return assistant.ReplyOutput{Text: a.replyText, ThreadID: threadID}
}

func (a *stubAssistant) Summarize(_ context.Context, _ []string, answers map[string]map[string]string) (string, error) {
	a.summarizeCalls++
	a.lastSummaryInput = answers
	if a.summaryErr != nil {
		return "", a.summaryErr
	}
	return a.summary, nil
}
