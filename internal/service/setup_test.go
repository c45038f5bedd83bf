package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"komensa/internal/models"
)

func answersFor(n int) map[string]string {
	answers := make(map[string]string, n)
	for i := 0; i < n; i++ {
		answers[string(rune('0'+i))] = "answer"
	}
	return answers
}

func TestStatusCreatesSetupLazily(t *testing.T) {
	repo := &fakeSetupRepo{}
	svc := NewSetupService(repo, &stubAssistant{})

	result, err := svc.Status(models.ParticipantM)
	require.NoError(t, err)

	assert.Equal(t, models.SetupAwaitingM, result.Status)
	assert.Equal(t, DefaultSetupQuestions, result.Questions)
	assert.Nil(t, result.UserAnswers)
	assert.Nil(t, result.Summary)
	require.NotNil(t, repo.setup)
}

func TestStatusRejectsUnknownParticipant(t *testing.T) {
	svc := NewSetupService(&fakeSetupRepo{}, &stubAssistant{})

	_, err := svc.Status(models.Participant("X"))

	assert.ErrorIs(t, err, ErrInvalidParticipant)
}

func TestSubmitWrongParticipantRejected(t *testing.T) {
	repo := &fakeSetupRepo{}
	svc := NewSetupService(repo, &stubAssistant{})
	_, err := svc.Status(models.ParticipantM)
	require.NoError(t, err)

	// Status is awaiting_M; E may not answer yet.
	_, err = svc.SubmitAnswers(context.Background(), models.ParticipantE, answersFor(5))
	assert.ErrorIs(t, err, ErrNotYourSetupTurn)
}

func TestSubmitFullSequence(t *testing.T) {
	repo := &fakeSetupRepo{}
	ai := &stubAssistant{summary: "They want to settle the chores dispute."}
	svc := NewSetupService(repo, ai)
	_, err := svc.Status(models.ParticipantM)
	require.NoError(t, err)

	result, err := svc.SubmitAnswers(context.Background(), models.ParticipantM, answersFor(5))
	require.NoError(t, err)
	assert.Equal(t, models.SetupAwaitingE, result.NextStatus)
	assert.Nil(t, result.Summary)
	assert.Zero(t, ai.summarizeCalls)

	result, err = svc.SubmitAnswers(context.Background(), models.ParticipantE, answersFor(5))
	require.NoError(t, err)
	assert.Equal(t, models.SetupComplete, result.NextStatus)
	require.NotNil(t, result.Summary)
	assert.Equal(t, "They want to settle the chores dispute.", *result.Summary)
	assert.Equal(t, 1, ai.summarizeCalls)
	assert.Contains(t, ai.lastSummaryInput, "M")
	assert.Contains(t, ai.lastSummaryInput, "E")

	assert.Equal(t, models.SetupComplete, repo.setup.Status)
	require.NotNil(t, repo.setup.Summary)

	// Any further submission bounces off the terminal state.
	_, err = svc.SubmitAnswers(context.Background(), models.ParticipantM, answersFor(5))
	assert.ErrorIs(t, err, ErrSetupClosed)
}

func TestSubmitSummarizationFailure(t *testing.T) {
	repo := &fakeSetupRepo{}
	ai := &stubAssistant{summaryErr: errors.New("model unavailable")}
	svc := NewSetupService(repo, ai)
	_, err := svc.Status(models.ParticipantM)
	require.NoError(t, err)

	_, err = svc.SubmitAnswers(context.Background(), models.ParticipantM, answersFor(5))
	require.NoError(t, err)

	result, err := svc.SubmitAnswers(context.Background(), models.ParticipantE, answersFor(5))
	assert.ErrorIs(t, err, ErrSummarizationFailed)
	require.NotNil(t, result)
	assert.Equal(t, models.SetupSummarizationFailed, result.NextStatus)
	assert.Equal(t, models.SetupSummarizationFailed, repo.setup.Status)

	// No automatic retry: the failure state is terminal.
	_, err = svc.SubmitAnswers(context.Background(), models.ParticipantE, answersFor(5))
	assert.ErrorIs(t, err, ErrSetupClosed)
}

func TestSubmitWithoutSetupRow(t *testing.T) {
	svc := NewSetupService(&fakeSetupRepo{}, &stubAssistant{})

	_, err := svc.SubmitAnswers(context.Background(), models.ParticipantM, answersFor(5))

	assert.ErrorIs(t, err, ErrSetupNotFound)
}

func TestSubmitEmptyAnswersRejected(t *testing.T) {
	svc := NewSetupService(&fakeSetupRepo{}, &stubAssistant{})

	_, err := svc.SubmitAnswers(context.Background(), models.ParticipantM, nil)

	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestStatusReturnsOnlyOwnAnswers(t *testing.T) {
	repo := &fakeSetupRepo{}
	svc := NewSetupService(repo, &stubAssistant{summary: "s"})
	_, err := svc.Status(models.ParticipantM)
	require.NoError(t, err)

	_, err = svc.SubmitAnswers(context.Background(), models.ParticipantM, map[string]string{"0": "mine"})
	require.NoError(t, err)

	mView, err := svc.Status(models.ParticipantM)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"0": "mine"}, mView.UserAnswers)

	eView, err := svc.Status(models.ParticipantE)
	require.NoError(t, err)
	assert.Nil(t, eView.UserAnswers)
}
