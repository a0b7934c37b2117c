package flow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	_ "embed"

	"github.com/google/uuid"
	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/packages/param"

	"github.com/ldvarela/agendabot/internal/genai"
	"github.com/ldvarela/agendabot/internal/models"
	"github.com/ldvarela/agendabot/internal/store"
)

//go:embed default_system_prompt.txt
var defaultSystemPrompt string

// SchedulingFlow orchestrates one conversation turn: it loads the user's
// record, runs the tool-calling agent loop, parses the reply list and
// persists the updated profile and history.
type SchedulingFlow struct {
	store            store.Store
	genaiClient      genai.ClientInterface
	availabilityTool *AvailabilityTool
	registerTool     *RegisterTool
	reminders        *ReminderScheduler
	systemPrompt     string
	systemPromptFile string
	now              func() time.Time
}

// FlowOpts holds configuration options for the scheduling flow.
type FlowOpts struct {
	SystemPromptFile string
	Reminders        *ReminderScheduler
}

// FlowOption defines a configuration option for the scheduling flow.
type FlowOption func(*FlowOpts)

// WithSystemPromptFile overrides the embedded default system prompt.
func WithSystemPromptFile(path string) FlowOption {
	return func(o *FlowOpts) { o.SystemPromptFile = path }
}

// WithReminderScheduler enables proactive appointment reminders.
func WithReminderScheduler(rs *ReminderScheduler) FlowOption {
	return func(o *FlowOpts) { o.Reminders = rs }
}

// NewSchedulingFlow creates the flow with its dependencies.
func NewSchedulingFlow(st store.Store, genaiClient genai.ClientInterface, availabilityTool *AvailabilityTool, registerTool *RegisterTool, opts ...FlowOption) *SchedulingFlow {
	var cfg FlowOpts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("SchedulingFlow.NewSchedulingFlow: creating flow with dependencies",
		"hasGenAI", genaiClient != nil,
		"systemPromptFile", cfg.SystemPromptFile,
		"hasReminders", cfg.Reminders != nil)
	return &SchedulingFlow{
		store:            st,
		genaiClient:      genaiClient,
		availabilityTool: availabilityTool,
		registerTool:     registerTool,
		reminders:        cfg.Reminders,
		systemPrompt:     defaultSystemPrompt,
		systemPromptFile: cfg.SystemPromptFile,
		now:              time.Now,
	}
}

// LoadSystemPrompt loads the system prompt from the configured file. Without
// a configured file the embedded default stays in effect.
func (f *SchedulingFlow) LoadSystemPrompt() error {
	if f.systemPromptFile == "" {
		slog.Debug("SchedulingFlow.LoadSystemPrompt: no file configured, using embedded default")
		return nil
	}
	slog.Debug("SchedulingFlow.LoadSystemPrompt: loading system prompt from file", "file", f.systemPromptFile)

	if _, err := os.Stat(f.systemPromptFile); os.IsNotExist(err) {
		slog.Error("SchedulingFlow.LoadSystemPrompt: system prompt file does not exist", "file", f.systemPromptFile)
		return fmt.Errorf("system prompt file does not exist: %s", f.systemPromptFile)
	}

	content, err := os.ReadFile(f.systemPromptFile)
	if err != nil {
		slog.Error("SchedulingFlow.LoadSystemPrompt: failed to read system prompt file", "file", f.systemPromptFile, "error", err)
		return fmt.Errorf("failed to read system prompt file: %w", err)
	}

	f.systemPrompt = strings.TrimSpace(string(content))
	slog.Info("SchedulingFlow.LoadSystemPrompt: system prompt loaded successfully", "file", f.systemPromptFile, "length", len(f.systemPrompt))
	return nil
}

// RunTurn processes one inbound message and always produces a deliverable
// reply set. Failures anywhere in the turn degrade to a fixed apology; they
// never propagate to the webhook.
func (f *SchedulingFlow) RunTurn(ctx context.Context, senderID, text string) models.ReplySet {
	slog.Debug("SchedulingFlow.RunTurn: turn start", "senderID", senderID, "textLength", len(text))

	rec := f.loadUser(senderID)

	messages := buildMessages(f.systemPrompt, f.now(), rec.Profile, rec.History, text)

	content, facts, err := f.runAgentLoop(ctx, senderID, messages)

	var replies models.ReplySet
	if err != nil {
		slog.Error("SchedulingFlow.RunTurn: agent loop failed, using apology", "error", err, "senderID", senderID)
		replies = FallbackReplySet()
	} else {
		replies = ParseReplies(content)
	}

	rec.Profile.Merge(facts.AsProfile())

	rec.History = append(rec.History,
		models.HistoryEntry{Type: models.HistoryEntryHuman, Content: text},
		models.HistoryEntry{Type: models.HistoryEntryAI, Content: strings.Join(replies.Replies, " ")},
	)
	f.saveUser(senderID, rec.Profile, models.TruncateHistory(rec.History))

	slog.Debug("SchedulingFlow.RunTurn: turn complete", "senderID", senderID, "replyCount", len(replies.Replies), "source", replies.Source)
	return replies
}

// loadUser retrieves the sender record, degrading to a fresh record on any
// storage failure so the turn can proceed without memory.
func (f *SchedulingFlow) loadUser(senderID string) *models.UserRecord {
	rec, err := f.store.LoadUser(senderID)
	if err != nil {
		slog.Error("SchedulingFlow.loadUser: load failed, proceeding without stored state", "error", err, "senderID", senderID)
		return &models.UserRecord{SenderID: senderID}
	}
	if rec == nil {
		slog.Debug("SchedulingFlow.loadUser: new sender", "senderID", senderID)
		return &models.UserRecord{SenderID: senderID}
	}
	return rec
}

// saveUser persists the turn outcome. Persistence failures are logged and
// swallowed; the reply has already been produced and must still go out.
func (f *SchedulingFlow) saveUser(senderID string, profile models.Profile, history []models.HistoryEntry) {
	if err := f.store.SaveUser(senderID, profile, history); err != nil {
		slog.Error("SchedulingFlow.saveUser: save failed, turn state lost", "error", err, "senderID", senderID)
	}
}

// runAgentLoop calls the model until it produces a final text reply,
// executing any requested tool calls between rounds.
func (f *SchedulingFlow) runAgentLoop(ctx context.Context, senderID string, messages []openai.ChatCompletionMessageParamUnion) (string, models.LearnedFacts, error) {
	const maxToolRounds = 8 // Prevent infinite loops
	tools := []openai.ChatCompletionToolParam{
		f.availabilityTool.GetToolDefinition(),
		f.registerTool.GetToolDefinition(),
	}

	var facts models.LearnedFacts
	currentMessages := messages

	for round := 1; round <= maxToolRounds; round++ {
		slog.Debug("SchedulingFlow.runAgentLoop: round start", "senderID", senderID, "round", round, "messageCount", len(currentMessages))

		resp, err := f.genaiClient.GenerateWithTools(ctx, currentMessages, tools)
		if err != nil {
			slog.Error("SchedulingFlow.runAgentLoop: tool generation failed", "error", err, "senderID", senderID, "round", round)
			return "", facts, fmt.Errorf("failed to generate response with tools: %w", err)
		}

		if len(resp.ToolCalls) > 0 {
			slog.Info("SchedulingFlow.runAgentLoop: processing tool calls", "senderID", senderID, "round", round, "toolCallCount", len(resp.ToolCalls))
			updatedMessages, learned := f.executeToolCalls(ctx, senderID, resp, currentMessages)
			currentMessages = updatedMessages
			facts.Merge(learned)
			continue
		}

		if resp.Content != "" {
			slog.Debug("SchedulingFlow.runAgentLoop: final response", "senderID", senderID, "round", round, "responseLength", len(resp.Content))
			return resp.Content, facts, nil
		}

		slog.Warn("SchedulingFlow.runAgentLoop: empty content and no tool calls", "senderID", senderID, "round", round)
		return "", facts, fmt.Errorf("model returned neither content nor tool calls")
	}

	slog.Warn("SchedulingFlow.runAgentLoop: hit maximum tool rounds", "senderID", senderID, "maxRounds", maxToolRounds)
	return "", facts, fmt.Errorf("agent exceeded %d tool rounds without a final reply", maxToolRounds)
}

// executeToolCalls appends the assistant tool-call message, dispatches each
// call and appends its result, so the loop can continue with full context.
// It returns the facts the registration tool reported, if any.
func (f *SchedulingFlow) executeToolCalls(ctx context.Context, senderID string, resp *genai.ToolCallResponse, messages []openai.ChatCompletionMessageParamUnion) ([]openai.ChatCompletionMessageParamUnion, models.LearnedFacts) {
	var toolCalls []openai.ChatCompletionMessageToolCallParam
	for _, tc := range resp.ToolCalls {
		toolCalls = append(toolCalls, openai.ChatCompletionMessageToolCallParam{
			ID:   tc.ID,
			Type: "function",
			Function: openai.ChatCompletionMessageToolCallFunctionParam{
				Name:      tc.Function.Name,
				Arguments: string(tc.Function.Arguments),
			},
		})
	}
	assistantMessage := openai.ChatCompletionAssistantMessageParam{
		Content: openai.ChatCompletionAssistantMessageParamContentUnion{
			OfString: param.NewOpt(resp.Content),
		},
		ToolCalls: toolCalls,
	}
	messages = append(messages, openai.ChatCompletionMessageParamUnion{OfAssistant: &assistantMessage})

	var learned models.LearnedFacts
	for _, tc := range resp.ToolCalls {
		slog.Info("SchedulingFlow.executeToolCalls: executing tool call", "senderID", senderID, "toolName", tc.Function.Name, "toolCallID", tc.ID)
		result, facts := f.dispatchToolCall(ctx, senderID, tc)
		learned.Merge(facts)
		messages = append(messages, openai.ToolMessage(result, tc.ID))
	}
	return messages, learned
}

// dispatchToolCall routes a single tool call by name and returns its result
// string plus any reported facts. Registration side effects (local ledger,
// reminder) happen here.
func (f *SchedulingFlow) dispatchToolCall(ctx context.Context, senderID string, tc genai.ToolCall) (string, models.LearnedFacts) {
	switch tc.Function.Name {
	case models.ToolNameCheckAvailability:
		return f.availabilityTool.ExecuteAvailabilityCheck(ctx, tc.Function.Arguments), models.LearnedFacts{}

	case models.ToolNameRegisterAppointment:
		result, facts := f.registerTool.ExecuteRegistration(ctx, senderID, tc.Function.Arguments)
		if strings.HasPrefix(result, models.OutcomeConfirmedPrefix) {
			f.recordAppointment(senderID, tc.Function.Arguments)
		}
		return result, facts

	default:
		slog.Warn("SchedulingFlow.dispatchToolCall: unknown tool requested", "senderID", senderID, "toolName", tc.Function.Name)
		return models.OutcomeErrorPrefix + "unknown tool: " + tc.Function.Name, models.LearnedFacts{}
	}
}

// recordAppointment writes the confirmed booking to the local ledger and
// arms the reminder. Failures are logged; the confirmation already happened
// upstream in the calendar and sheet.
func (f *SchedulingFlow) recordAppointment(senderID string, args json.RawMessage) {
	var params models.RegisterParams
	if err := json.Unmarshal(args, &params); err != nil {
		slog.Error("SchedulingFlow.recordAppointment: failed to parse registration arguments", "error", err, "senderID", senderID)
		return
	}
	start, err := models.ParseToolTimestamp(params.Timestamp, businessZone)
	if err != nil {
		slog.Error("SchedulingFlow.recordAppointment: failed to parse registration timestamp", "error", err, "senderID", senderID)
		return
	}

	appt := models.Appointment{
		ID:         uuid.NewString(),
		FullName:   params.FullName,
		NationalID: params.NationalID,
		Phone:      senderID,
		StartsAt:   start,
		CreatedAt:  f.now(),
	}
	if err := f.store.SaveAppointment(appt); err != nil {
		slog.Error("SchedulingFlow.recordAppointment: ledger write failed", "error", err, "appointmentID", appt.ID)
	}
	if f.reminders != nil {
		f.reminders.Schedule(appt)
	}
}
