package flow

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/ldvarela/agendabot/internal/models"
)

// Fixed apology replies. These are the only replies not authored by the model.
const (
	// ApologyParseFailure is sent when the model's output cannot be parsed
	// into a reply list.
	ApologyParseFailure = "Desculpe, não consegui processar minha resposta."
	// ApologyInternalError is sent when the turn fails before a model reply
	// exists at all.
	ApologyInternalError = "Desculpe, ocorreu um erro interno. Tente novamente."
)

// replyEnvelope is the structured output contract the system prompt requests.
type replyEnvelope struct {
	Replies []string `json:"replies"`
}

// ParseReplies turns raw model output into a guaranteed non-empty reply list,
// degrading through three tiers: the structured contract, recovery of an
// embedded JSON object from free text, and a fixed apology.
func ParseReplies(raw string) models.ReplySet {
	trimmed := strings.TrimSpace(raw)

	if replies, ok := parseEnvelope(trimmed); ok {
		return models.ReplySet{Replies: replies, Source: models.ReplySourceStructured}
	}

	if recovered, ok := recoverEnvelope(trimmed); ok {
		slog.Debug("flow.ParseReplies: recovered reply list from free text", "rawLength", len(raw))
		return models.ReplySet{Replies: recovered, Source: models.ReplySourceRecovered}
	}

	slog.Warn("flow.ParseReplies: unparseable model output, using apology", "rawLength", len(raw))
	return models.ReplySet{Replies: []string{ApologyParseFailure}, Source: models.ReplySourceFallback}
}

// FallbackReplySet returns the fixed internal-error apology.
func FallbackReplySet() models.ReplySet {
	return models.ReplySet{Replies: []string{ApologyInternalError}, Source: models.ReplySourceFallback}
}

// parseEnvelope attempts a direct unmarshal of the structured contract.
// A decoded envelope whose reply list is empty or all-blank does not count.
func parseEnvelope(s string) ([]string, bool) {
	var env replyEnvelope
	if err := json.Unmarshal([]byte(s), &env); err != nil {
		return nil, false
	}
	return nonBlank(env.Replies)
}

// recoverEnvelope attempts to pull a reply envelope out of free text: first
// by stripping markdown code fences, then by extracting the outermost brace
// span.
func recoverEnvelope(s string) ([]string, bool) {
	if fenced, ok := stripCodeFence(s); ok {
		if replies, ok := parseEnvelope(fenced); ok {
			return replies, true
		}
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end <= start {
		return nil, false
	}
	return parseEnvelope(s[start : end+1])
}

// stripCodeFence removes a surrounding ``` or ```json fence.
func stripCodeFence(s string) (string, bool) {
	if !strings.HasPrefix(s, "```") {
		return "", false
	}
	body := strings.TrimPrefix(s, "```json")
	body = strings.TrimPrefix(body, "```")
	body = strings.TrimSuffix(strings.TrimSpace(body), "```")
	return strings.TrimSpace(body), true
}

// nonBlank filters blank entries and reports whether anything remains.
func nonBlank(replies []string) ([]string, bool) {
	var out []string
	for _, r := range replies {
		if strings.TrimSpace(r) != "" {
			out = append(out, r)
		}
	}
	return out, len(out) > 0
}
