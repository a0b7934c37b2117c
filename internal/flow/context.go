package flow

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/goodsign/monday"
	openai "github.com/openai/openai-go"

	"github.com/ldvarela/agendabot/internal/models"
)

// businessZone is the clinic's fixed UTC-3 offset. A fixed offset instead of
// a DST-aware zone keeps business-hours checks stable year round.
var businessZone = time.FixedZone("UTC-3", -3*3600)

// Portuguese layouts rendered through the pt-BR locale tables.
const (
	currentTimeLayout = "Monday, 2 de January de 2006, 15:04"
	slotLayout        = "Monday, 2 de January às 15:04"
)

// newUserContext is injected when nothing is known about the sender yet.
const newUserContext = "Este é um novo usuário."

// BusinessZone returns the business timezone used for slot interpretation.
func BusinessZone() *time.Location {
	return businessZone
}

// RenderCurrentTime formats the wall clock in Portuguese for the system
// context, so the model can resolve relative dates like "amanhã".
func RenderCurrentTime(t time.Time) string {
	return monday.Format(t.In(businessZone), currentTimeLayout, monday.LocalePtBR)
}

// FormatSlot formats an appointment slot in Portuguese for user-facing
// confirmations.
func FormatSlot(t time.Time) string {
	return monday.Format(t.In(businessZone), slotLayout, monday.LocalePtBR)
}

// RenderUserContext renders the known profile facts as a JSON fragment, or a
// new-user marker when nothing has been learned yet.
func RenderUserContext(profile models.Profile) string {
	if !profile.Known() {
		return newUserContext
	}
	data, err := json.Marshal(profile)
	if err != nil {
		slog.Error("flow.RenderUserContext: failed to marshal profile", "error", err)
		return newUserContext
	}
	return string(data)
}

// withinBusinessHours reports whether t falls inside bookable hours:
// Monday through Friday, starting from 08:00 up to but excluding 17:00.
// On rejection it returns a reason the model can relay.
func withinBusinessHours(t time.Time) (bool, string) {
	local := t.In(businessZone)
	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return false, "appointments are only available Monday through Friday"
	}
	if h := local.Hour(); h < 8 || h >= 17 {
		return false, "appointments are only available between 08:00 and 17:00"
	}
	return true, ""
}

// buildMessages assembles the completion request: system prompt, wall clock
// and user context as system messages, then the persisted history, then the
// current inbound message.
func buildMessages(systemPrompt string, now time.Time, profile models.Profile, history []models.HistoryEntry, userMessage string) []openai.ChatCompletionMessageParamUnion {
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(systemPrompt),
		openai.SystemMessage(fmt.Sprintf("HORÁRIO ATUAL: %s", RenderCurrentTime(now))),
		openai.SystemMessage(fmt.Sprintf("DADOS DO USUÁRIO: %s", RenderUserContext(profile))),
	}
	for _, entry := range history {
		switch entry.Type {
		case models.HistoryEntryAI:
			messages = append(messages, openai.AssistantMessage(entry.Content))
		default:
			messages = append(messages, openai.UserMessage(entry.Content))
		}
	}
	messages = append(messages, openai.UserMessage(userMessage))
	return messages
}
