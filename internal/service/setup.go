package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"komensa/internal/models"
	"komensa/internal/repository"
)

// DefaultSetupQuestions is the fixed questionnaire both participants
// answer before the chat unlocks.
var DefaultSetupQuestions = []string{
	"What is the primary issue or topic you are hoping to discuss or resolve today?",
	"Briefly, what is your perspective or feeling about this issue?",
	"What is one specific outcome you would consider a success for this session?",
	"Is there any important background information the other person or the facilitator should know about this issue?",
	"On a scale of 1-10, how open do you feel to exploring different solutions right now?",
}

// SetupService runs the pre-chat questionnaire state machine:
// awaiting_M -> awaiting_E -> summarizing -> complete, with
// summarization_failed as the terminal failure state.
type SetupService struct {
	setupRepo repository.SetupRepository
	assistant AssistantClient
}

func NewSetupService(setupRepo repository.SetupRepository, ai AssistantClient) *SetupService {
	return &SetupService{setupRepo: setupRepo, assistant: ai}
}

// SetupStatusResult is the view of the setup a single participant gets:
// only their own answers are echoed back.
type SetupStatusResult struct {
	Status      models.SetupStatus
	Questions   []string
	UserAnswers map[string]string
	Summary     *string
}

// SubmitResult reports the state transition a submission caused.
type SubmitResult struct {
	NextStatus models.SetupStatus
	Summary    *string
}

// Status returns the current setup for the given participant, lazily
// creating the row on first access.
func (s *SetupService) Status(user models.Participant) (*SetupStatusResult, error) {
	if !user.Valid() {
		return nil, ErrInvalidParticipant
	}

	setup, err := s.setupRepo.FindByRoomID(models.MainRoomID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("failed to load setup: %w", err)
		}
		setup, err = s.createSetup()
		if err != nil {
			return nil, err
		}
	}

	questions := decodeQuestions(setup.Questions)
	answers := decodeAnswers(setup.Answers)

	return &SetupStatusResult{
		Status:      setup.Status,
		Questions:   questions,
		UserAnswers: answers[string(user)],
		Summary:     setup.Summary,
	}, nil
}

// SubmitAnswers records one participant's questionnaire answers and
// advances the state machine. When both participants have answered it
// synchronously summarizes and completes the setup.
func (s *SetupService) SubmitAnswers(ctx context.Context, user models.Participant, userAnswers map[string]string) (*SubmitResult, error) {
	if !user.Valid() {
		return nil, ErrInvalidParticipant
	}
	if len(userAnswers) == 0 {
		return nil, ErrInvalidInput
	}

	setup, err := s.setupRepo.FindByRoomID(models.MainRoomID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSetupNotFound
		}
		return nil, fmt.Errorf("failed to load setup: %w", err)
	}

	if setup.Status.Closed() {
		return nil, ErrSetupClosed
	}
	awaited, ok := setup.Status.AwaitedParticipant()
	if !ok {
		return nil, ErrSetupClosed
	}
	if user != awaited {
		return nil, ErrNotYourSetupTurn
	}

	answers := decodeAnswers(setup.Answers)
	_, otherAnswered := answers[string(user.Other())]
	answers[string(user)] = userAnswers
	if err := setEncodedAnswers(setup, answers); err != nil {
		return nil, err
	}

	if !otherAnswered {
		setup.Status = models.SetupStatus("awaiting_" + string(user.Other()))
		if err := s.setupRepo.Save(setup); err != nil {
			return nil, fmt.Errorf("failed to save answers: %w", err)
		}
		return &SubmitResult{NextStatus: setup.Status}, nil
	}

	// Both sets are in: summarize now. The summarizing status is
	// persisted first so a concurrent submission is rejected.
	setup.Status = models.SetupSummarizing
	if err := s.setupRepo.Save(setup); err != nil {
		return nil, fmt.Errorf("failed to save answers: %w", err)
	}

	summary, err := s.assistant.Summarize(ctx, decodeQuestions(setup.Questions), answers)
	if err != nil {
		slog.Error("setup summarization failed", "error", err)
		setup.Status = models.SetupSummarizationFailed
		if saveErr := s.setupRepo.Save(setup); saveErr != nil {
			slog.Error("failed to persist summarization failure", "error", saveErr)
		}
		return &SubmitResult{NextStatus: models.SetupSummarizationFailed}, ErrSummarizationFailed
	}

	setup.Summary = &summary
	setup.Status = models.SetupComplete
	if err := s.setupRepo.Save(setup); err != nil {
		return nil, fmt.Errorf("failed to persist summary: %w", err)
	}
	return &SubmitResult{NextStatus: models.SetupComplete, Summary: &summary}, nil
}

func (s *SetupService) createSetup() (*models.ConversationSetup, error) {
	questions, err := json.Marshal(DefaultSetupQuestions)
	if err != nil {
		return nil, fmt.Errorf("failed to encode questions: %w", err)
	}
	setup := &models.ConversationSetup{
		RoomID:    models.MainRoomID,
		Questions: datatypes.JSON(questions),
		Answers:   datatypes.JSON(`{}`),
		Status:    models.SetupAwaitingM,
	}
	if err := s.setupRepo.Create(setup); err != nil {
		return nil, fmt.Errorf("failed to create setup: %w", err)
	}
	slog.Info("created setup row", "room_id", models.MainRoomID)
	return setup, nil
}

func decodeQuestions(raw datatypes.JSON) []string {
	var questions []string
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &questions); err != nil {
			slog.Warn("stored questions are unreadable, using defaults", "error", err)
		}
	}
	if len(questions) == 0 {
		return DefaultSetupQuestions
	}
	return questions
}

func decodeAnswers(raw datatypes.JSON) map[string]map[string]string {
	answers := map[string]map[string]string{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &answers); err != nil {
			slog.Warn("stored answers are unreadable, starting empty", "error", err)
			answers = map[string]map[string]string{}
		}
	}
	return answers
}

func setEncodedAnswers(setup *models.ConversationSetup, answers map[string]map[string]string) error {
	encoded, err := json.Marshal(answers)
	if err != nil {
		return fmt.Errorf("failed to encode answers: %w", err)
	}
	setup.Answers = datatypes.JSON(encoded)
	return nil
}
