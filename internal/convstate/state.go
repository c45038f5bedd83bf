// Package convstate handles the structured memory the assistant carries
// across turns: extracting state updates from raw replies, merging them
// into the persisted room state, and rendering snapshots for prompts.
package convstate

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"gorm.io/datatypes"
)

// UpdateMarker separates the conversational part of an assistant reply
// from the trailing JSON state update.
const UpdateMarker = "STATE_UPDATE_JSON:"

// Known top-level keys of the structured state.
const (
	KeyDiscussedIssues = "discussed_issues"
	KeyPerspectives    = "participant_perspectives"
	KeyAgreements      = "agreements_reached"
	KeyGoals           = "goals_for_session"
	KeyProgressSummary = "summary_of_session_progress"
)

// ParseReply splits a raw assistant reply at the last UpdateMarker
// occurrence. It returns the conversational text, the parsed state update
// and whether a usable update was found.
//
// Parsing never fails hard: an empty, truncated or non-object payload is
// logged and reported as "no update". When no marker exists the full
// reply is the conversational text.
func ParseReply(raw string) (string, map[string]any, bool) {
	idx := strings.LastIndex(raw, UpdateMarker)
	if idx < 0 {
		return raw, nil, false
	}

	text := strings.TrimSpace(raw[:idx])
	payload := strings.TrimSpace(raw[idx+len(UpdateMarker):])

	if payload == "" || !strings.HasPrefix(payload, "{") || !strings.HasSuffix(payload, "}") {
		slog.Warn("state update payload is not a JSON object, discarding",
			"payload_len", len(payload))
		return text, nil, false
	}

	var update map[string]any
	if err := json.Unmarshal([]byte(payload), &update); err != nil {
		slog.Warn("failed to parse state update JSON, discarding", "error", err)
		return text, nil, false
	}

	repairPerspectives(update)
	return text, update, true
}

// repairPerspectives fills in missing participant keys so that partial AI
// output still yields a complete perspectives section.
func repairPerspectives(update map[string]any) {
	raw, ok := update[KeyPerspectives]
	if !ok {
		return
	}
	perspectives, ok := raw.(map[string]any)
	if !ok {
		// Not the expected shape, leave it to the shallow merge as-is.
		return
	}
	for _, participant := range []string{"M", "E"} {
		if _, ok := perspectives[participant]; !ok {
			perspectives[participant] = map[string]any{
				"feelings": []any{},
				"needs":    []any{},
				"views":    map[string]any{},
			}
		}
	}
}

// Merge applies a shallow merge of update over the current persisted
// state: top-level keys from the update replace the corresponding current
// keys wholesale, everything else is preserved. Nested structures are
// deliberately not deep-merged.
func Merge(current datatypes.JSON, update map[string]any) (datatypes.JSON, error) {
	merged := map[string]any{}
	if len(current) > 0 {
		if err := json.Unmarshal(current, &merged); err != nil {
			slog.Warn("persisted structured state is not valid JSON, starting fresh", "error", err)
			merged = map[string]any{}
		}
	}

	for key, value := range update {
		merged[key] = value
	}

	out, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("failed to encode merged state: %w", err)
	}
	return datatypes.JSON(out), nil
}

// Render produces a plain-text snapshot of the structured state for
// inclusion in assistant prompts. An empty or unreadable state renders as
// the empty string.
func Render(current datatypes.JSON) string {
	if len(current) == 0 {
		return ""
	}
	var state map[string]any
	if err := json.Unmarshal(current, &state); err != nil || len(state) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("Current mediation state:\n")

	if issues := stringList(state[KeyDiscussedIssues]); len(issues) > 0 {
		b.WriteString("Discussed issues: " + strings.Join(issues, "; ") + "\n")
	}
	if perspectives, ok := state[KeyPerspectives].(map[string]any); ok {
		for _, participant := range []string{"M", "E"} {
			p, ok := perspectives[participant].(map[string]any)
			if !ok {
				continue
			}
			var parts []string
			if feelings := stringList(p["feelings"]); len(feelings) > 0 {
				parts = append(parts, "feelings: "+strings.Join(feelings, ", "))
			}
			if needs := stringList(p["needs"]); len(needs) > 0 {
				parts = append(parts, "needs: "+strings.Join(needs, ", "))
			}
			if len(parts) > 0 {
				b.WriteString(participant + "'s perspective: " + strings.Join(parts, "; ") + "\n")
			}
		}
	}
	if agreements := stringList(state[KeyAgreements]); len(agreements) > 0 {
		b.WriteString("Agreements reached: " + strings.Join(agreements, "; ") + "\n")
	}
	if goals := stringList(state[KeyGoals]); len(goals) > 0 {
		b.WriteString("Goals for this session: " + strings.Join(goals, "; ") + "\n")
	}
	if summary, ok := state[KeyProgressSummary].(string); ok && summary != "" {
		b.WriteString("Progress so far: " + summary + "\n")
	}

	snapshot := b.String()
	if snapshot == "Current mediation state:\n" {
		return ""
	}
	return snapshot
}

func stringList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range items {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}
