// Package assistant wraps the external language-model service. The
// primary invocation path keeps a persistent per-room thread with the
// provider's assistant API; when that is unconfigured or fails, a flat
// chat-completion call over the full message log is used instead. Both
// failure modes fall through to the same fallback.
package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"komensa/internal/models"
)

// ApologyReply is substituted when neither invocation path produces a
// usable reply. The turn still advances so the room never locks up.
const ApologyReply = "I'm sorry, I'm having trouble responding right now. Please try again in a moment."

const systemPrompt = "You are a helpful AI assistant mediating a chat between two users, M and E. " +
	"Be warm, loving and respectful. Keep responses concise but helpful."

const stateInstruction = "When the conversation surfaces new issues, perspectives, agreements or goals, " +
	"end your reply with the marker STATE_UPDATE_JSON: followed by a single JSON object containing only " +
	"the changed top-level keys (discussed_issues, participant_perspectives, agreements_reached, " +
	"goals_for_session, summary_of_session_progress)."

type Config struct {
	APIKey       string
	BaseURL      string
	Model        string
	SummaryModel string
	AssistantID  string

	RunPollInterval time.Duration
	RunPollAttempts int
}

type Client struct {
	api *openai.Client
	cfg Config
}

func NewClient(cfg Config) *Client {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	if cfg.RunPollInterval <= 0 {
		cfg.RunPollInterval = time.Second
	}
	if cfg.RunPollAttempts <= 0 {
		cfg.RunPollAttempts = 30
	}
	return &Client{
		api: openai.NewClientWithConfig(clientConfig),
		cfg: cfg,
	}
}

// ReplyInput carries everything the invocation needs: the full message
// log, the latest user message (already part of History), the rendered
// structured-state snapshot and the room's thread handle, if any.
type ReplyInput struct {
	ThreadID      string
	History       []models.Message
	Latest        models.Message
	StateSnapshot string
}

// ReplyOutput is the raw reply text plus the thread handle, which differs
// from the input handle when a thread was created on this call.
type ReplyOutput struct {
	Text     string
	ThreadID string
}

// Reply produces the assistant's next reply. It never returns an error:
// invocation failures degrade to the fallback path and finally to a fixed
// apology, so the caller can always advance the turn.
func (c *Client) Reply(ctx context.Context, in ReplyInput) ReplyOutput {
	out := ReplyOutput{ThreadID: in.ThreadID}

	if c.cfg.AssistantID != "" {
		text, threadID, err := c.replyViaThread(ctx, in)
		if threadID != "" {
			out.ThreadID = threadID
		}
		if err == nil && strings.TrimSpace(text) != "" {
			out.Text = text
			return out
		}
		slog.Warn("assistant thread path failed, falling back to chat completion", "error", err)
	}

	text, err := c.replyViaCompletion(ctx, in)
	if err != nil || strings.TrimSpace(text) == "" {
		slog.Error("chat completion fallback failed, substituting apology", "error", err)
		out.Text = ApologyReply
		return out
	}

	out.Text = text
	return out
}

// replyViaThread posts the latest message to the room's persistent thread
// and polls the resulting run. A poll timeout and a failed run are
// treated identically: the returned error sends the caller down the
// fallback path.
func (c *Client) replyViaThread(ctx context.Context, in ReplyInput) (string, string, error) {
	threadID := in.ThreadID
	created := ""
	if threadID == "" {
		thread, err := c.api.CreateThread(ctx, openai.ThreadRequest{})
		if err != nil {
			return "", "", fmt.Errorf("create thread: %w", err)
		}
		threadID = thread.ID
		created = thread.ID
	}

	content := fmt.Sprintf("[%s]: %s", in.Latest.Sender, in.Latest.Content)
	if in.StateSnapshot != "" {
		content = in.StateSnapshot + "\n" + content
	}

	if _, err := c.api.CreateMessage(ctx, threadID, openai.MessageRequest{
		Role:    string(openai.ThreadMessageRoleUser),
		Content: content,
	}); err != nil {
		return "", created, fmt.Errorf("post thread message: %w", err)
	}

	run, err := c.api.CreateRun(ctx, threadID, openai.RunRequest{
		AssistantID: c.cfg.AssistantID,
	})
	if err != nil {
		return "", created, fmt.Errorf("create run: %w", err)
	}

	if err := c.waitForRun(ctx, threadID, run.ID); err != nil {
		return "", created, err
	}

	text, err := c.latestAssistantMessage(ctx, threadID, run.ID)
	if err != nil {
		return "", created, err
	}
	return text, created, nil
}

func (c *Client) waitForRun(ctx context.Context, threadID, runID string) error {
	for attempt := 0; attempt < c.cfg.RunPollAttempts; attempt++ {
		run, err := c.api.RetrieveRun(ctx, threadID, runID)
		if err != nil {
			return fmt.Errorf("retrieve run: %w", err)
		}

		switch run.Status {
		case openai.RunStatusCompleted:
			return nil
		case openai.RunStatusFailed, openai.RunStatusCancelled, openai.RunStatusExpired, openai.RunStatusRequiresAction:
			return fmt.Errorf("run ended with status %q", run.Status)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.cfg.RunPollInterval):
		}
	}
	return fmt.Errorf("run %s still not complete after %d polls", runID, c.cfg.RunPollAttempts)
}

func (c *Client) latestAssistantMessage(ctx context.Context, threadID, runID string) (string, error) {
	limit := 1
	order := "desc"
	list, err := c.api.ListMessage(ctx, threadID, &limit, &order, nil, nil, &runID)
	if err != nil {
		return "", fmt.Errorf("list thread messages: %w", err)
	}
	for _, msg := range list.Messages {
		for _, part := range msg.Content {
			if part.Text != nil && part.Text.Value != "" {
				return part.Text.Value, nil
			}
		}
	}
	return "", fmt.Errorf("run %s produced no text message", runID)
}

// replyViaCompletion performs a single flat chat-completion call over the
// full stored message log. No retry: if this fails the caller substitutes
// the apology.
func (c *Client) replyViaCompletion(ctx context.Context, in ReplyInput) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.cfg.Model,
		Messages: buildChatMessages(in.History, in.StateSnapshot),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// buildChatMessages maps the stored log onto completion roles: assistant
// messages keep the assistant role, everything else becomes a user
// message prefixed with its sender.
func buildChatMessages(history []models.Message, stateSnapshot string) []openai.ChatCompletionMessage {
	system := systemPrompt
	if stateSnapshot != "" {
		system += "\n\n" + stateSnapshot
	}
	system += "\n\n" + stateInstruction

	messages := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: system,
	})

	for _, msg := range history {
		if msg.Sender == models.SenderAssistant {
			messages = append(messages, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: msg.Content,
			})
			continue
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: fmt.Sprintf("[%s]: %s", msg.Sender, msg.Content),
		})
	}
	return messages
}

// Summarize condenses both participants' setup answers into a short
// background paragraph for the mediation session.
func (c *Client) Summarize(ctx context.Context, questions []string, answers map[string]map[string]string) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.cfg.SummaryModel,
		MaxTokens:   200,
		Temperature: 0.5,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: buildSummaryPrompt(questions, answers)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("summary completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("summary completion returned no choices")
	}
	summary := strings.TrimSpace(resp.Choices[0].Message.Content)
	if summary == "" {
		return "", fmt.Errorf("summary completion returned empty text")
	}
	return summary, nil
}

func buildSummaryPrompt(questions []string, answers map[string]map[string]string) string {
	var b strings.Builder
	b.WriteString("Two partners, M and E, answered the following setup questions for a mediation session. ")
	b.WriteString("Summarize their answers into a concise background context paragraph (max 150 words) ")
	b.WriteString("that captures the key issues, perspectives, and goals.\n\nQuestions:\n")
	for i, q := range questions {
		fmt.Fprintf(&b, "%d. %s\n", i+1, q)
	}
	for _, participant := range []string{"M", "E"} {
		userAnswers, ok := answers[participant]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "\n%s's Answers:\n", participant)
		for i := range questions {
			key := fmt.Sprintf("%d", i)
			if answer, ok := userAnswers[key]; ok {
				fmt.Fprintf(&b, "%d. %s\n", i+1, answer)
			}
		}
	}
	b.WriteString("\nSummary:")
	return b.String()
}
