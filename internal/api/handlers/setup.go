package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"komensa/internal/models"
	"komensa/internal/service"
)

// SetupHandler serves the pre-chat questionnaire endpoints. The acting
// participant is identified by the `user` query parameter.
type SetupHandler struct {
	setupService *service.SetupService
}

func NewSetupHandler(setupService *service.SetupService) *SetupHandler {
	return &SetupHandler{setupService: setupService}
}

// GetStatus returns the questionnaire state for one participant,
// creating the setup row on first access. Store failures degrade to the
// default questions so the setup UI always renders.
func (h *SetupHandler) GetStatus(c *gin.Context) {
	user := models.Participant(c.Query("user"))

	result, err := h.setupService.Status(user)
	if err != nil {
		if errors.Is(err, service.ErrInvalidParticipant) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Valid user (M or E) must be specified"})
			return
		}
		slog.Error("failed to fetch setup status, serving defaults", "error", err)
		c.JSON(http.StatusOK, gin.H{
			"status":      models.SetupAwaitingM,
			"questions":   service.DefaultSetupQuestions,
			"userAnswers": nil,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":      result.Status,
		"questions":   result.Questions,
		"userAnswers": result.UserAnswers,
		"summary":     result.Summary,
	})
}

// SetupAnswerInput is the body of POST /api/setup/answer.
type SetupAnswerInput struct {
	Answers map[string]string `json:"answers"`
}

// PostAnswer records one participant's answers and reports the
// transition, including the synchronously generated summary when the
// submission completes the questionnaire.
func (h *SetupHandler) PostAnswer(c *gin.Context) {
	user := models.Participant(c.Query("user"))

	var input SetupAnswerInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid or empty answers format"})
		return
	}

	result, err := h.setupService.SubmitAnswers(c.Request.Context(), user, input.Answers)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidParticipant):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Valid user (M or E) must be specified"})
		case errors.Is(err, service.ErrInvalidInput):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid or empty answers format"})
		case errors.Is(err, service.ErrSetupNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "No active setup found for this room"})
		case errors.Is(err, service.ErrSetupClosed):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Setup is already complete or in progress"})
		case errors.Is(err, service.ErrNotYourSetupTurn):
			c.JSON(http.StatusForbidden, gin.H{"error": "Not your turn to answer setup questions"})
		case errors.Is(err, service.ErrSummarizationFailed):
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":      "AI summarization failed",
				"nextStatus": result.NextStatus,
			})
		default:
			slog.Error("failed to save setup answer", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save setup answer"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"nextStatus": result.NextStatus,
		"summary":    result.Summary,
	})
}
