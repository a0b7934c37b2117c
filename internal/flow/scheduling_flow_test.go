package flow

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	openai "github.com/openai/openai-go"

	"github.com/ldvarela/agendabot/internal/calendar"
	"github.com/ldvarela/agendabot/internal/genai"
	"github.com/ldvarela/agendabot/internal/models"
	"github.com/ldvarela/agendabot/internal/sheets"
	"github.com/ldvarela/agendabot/internal/store"
)

// scriptedGenAI returns pre-programmed responses in order and records the
// message sequences it was called with.
type scriptedGenAI struct {
	responses []*genai.ToolCallResponse
	err       error
	calls     [][]openai.ChatCompletionMessageParamUnion
}

func (s *scriptedGenAI) GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	resp, err := s.next(messages)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

func (s *scriptedGenAI) GenerateWithTools(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion, tools []openai.ChatCompletionToolParam) (*genai.ToolCallResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.next(messages)
}

func (s *scriptedGenAI) next(messages []openai.ChatCompletionMessageParamUnion) (*genai.ToolCallResponse, error) {
	s.calls = append(s.calls, messages)
	if len(s.responses) == 0 {
		return nil, fmt.Errorf("scripted client exhausted")
	}
	resp := s.responses[0]
	s.responses = s.responses[1:]
	return resp, nil
}

func newTestFlow(client genai.ClientInterface, st store.Store, cal *calendar.MockService, sheet *sheets.MockService) *SchedulingFlow {
	return NewSchedulingFlow(st, client,
		NewAvailabilityTool(cal),
		NewRegisterTool(cal, sheet),
	)
}

func structuredReply(replies ...string) *genai.ToolCallResponse {
	data, _ := json.Marshal(map[string][]string{"replies": replies})
	return &genai.ToolCallResponse{Content: string(data)}
}

func toolCallResponse(name string, args map[string]string) *genai.ToolCallResponse {
	data, _ := json.Marshal(args)
	return &genai.ToolCallResponse{
		ToolCalls: []genai.ToolCall{{
			ID:       "call_1",
			Function: genai.FunctionCall{Name: name, Arguments: data},
		}},
	}
}

func TestRunTurnPlainReply(t *testing.T) {
	st := store.NewInMemoryStore()
	client := &scriptedGenAI{responses: []*genai.ToolCallResponse{
		structuredReply("Olá!", "Como posso ajudar?"),
	}}
	f := newTestFlow(client, st, &calendar.MockService{}, &sheets.MockService{})

	got := f.RunTurn(context.Background(), "5511999990000", "oi")
	if got.Source != models.ReplySourceStructured {
		t.Errorf("Source = %q, want structured", got.Source)
	}
	if len(got.Replies) != 2 {
		t.Fatalf("expected 2 replies, got %+v", got.Replies)
	}

	rec, err := st.LoadUser("5511999990000")
	if err != nil || rec == nil {
		t.Fatalf("expected persisted record, got %v / %v", rec, err)
	}
	if len(rec.History) != 2 {
		t.Fatalf("expected human+ai pair in history, got %d entries", len(rec.History))
	}
	if rec.History[0].Type != models.HistoryEntryHuman || rec.History[0].Content != "oi" {
		t.Errorf("unexpected human entry: %+v", rec.History[0])
	}
	if rec.History[1].Type != models.HistoryEntryAI || rec.History[1].Content != "Olá! Como posso ajudar?" {
		t.Errorf("ai entry must join replies with spaces: %+v", rec.History[1])
	}
}

func TestRunTurnToolRoundThenReply(t *testing.T) {
	st := store.NewInMemoryStore()
	cal := &calendar.MockService{Busy: false}
	client := &scriptedGenAI{responses: []*genai.ToolCallResponse{
		toolCallResponse(models.ToolNameCheckAvailability, map[string]string{"timestamp": "2025-06-25T14:00:00"}),
		structuredReply("O horário de 14:00 está livre. Confirmo?"),
	}}
	f := newTestFlow(client, st, cal, &sheets.MockService{})

	got := f.RunTurn(context.Background(), "5511999990000", "tem horário amanhã às 14h?")
	if got.Source != models.ReplySourceStructured {
		t.Errorf("Source = %q, want structured", got.Source)
	}
	if len(client.calls) != 2 {
		t.Fatalf("expected 2 model rounds, got %d", len(client.calls))
	}
	// Second round must carry the assistant tool-call message and its result.
	if len(client.calls[1]) != len(client.calls[0])+2 {
		t.Errorf("tool round must append assistant and tool messages: %d -> %d", len(client.calls[0]), len(client.calls[1]))
	}
}

func TestRunTurnRegistrationPersistsFactsAndLedger(t *testing.T) {
	st := store.NewInMemoryStore()
	cal := &calendar.MockService{}
	sheet := &sheets.MockService{}
	client := &scriptedGenAI{responses: []*genai.ToolCallResponse{
		toolCallResponse(models.ToolNameRegisterAppointment, map[string]string{
			"full_name":   "Maria Souza",
			"national_id": "12345678900",
			"timestamp":   "2025-06-25T14:00:00",
		}),
		structuredReply("Consulta confirmada para quarta-feira às 14:00!"),
	}}
	f := newTestFlow(client, st, cal, sheet)

	got := f.RunTurn(context.Background(), "5511999990000", "pode confirmar")
	if len(got.Replies) != 1 {
		t.Fatalf("unexpected replies: %+v", got.Replies)
	}

	rec, _ := st.LoadUser("5511999990000")
	if rec == nil {
		t.Fatal("expected persisted record")
	}
	if rec.Profile.FullName != "Maria Souza" || rec.Profile.NationalID != "12345678900" {
		t.Errorf("facts not merged into profile: %+v", rec.Profile)
	}

	appts, _ := st.ListAppointments()
	if len(appts) != 1 {
		t.Fatalf("expected 1 ledger entry, got %d", len(appts))
	}
	if appts[0].Phone != "5511999990000" || appts[0].ID == "" {
		t.Errorf("unexpected ledger entry: %+v", appts[0])
	}
	if len(sheet.Appended) != 1 || len(cal.Inserted) != 1 {
		t.Errorf("external writes missing: %d rows, %d events", len(sheet.Appended), len(cal.Inserted))
	}
}

func TestRunTurnGenAIFailureApology(t *testing.T) {
	st := store.NewInMemoryStore()
	client := &scriptedGenAI{err: fmt.Errorf("api down")}
	f := newTestFlow(client, st, &calendar.MockService{}, &sheets.MockService{})

	got := f.RunTurn(context.Background(), "5511999990000", "oi")
	if got.Source != models.ReplySourceFallback {
		t.Errorf("Source = %q, want fallback", got.Source)
	}
	if len(got.Replies) != 1 || got.Replies[0] != ApologyInternalError {
		t.Errorf("unexpected replies: %+v", got.Replies)
	}

	// The failed turn is still recorded.
	rec, _ := st.LoadUser("5511999990000")
	if rec == nil || len(rec.History) != 2 {
		t.Fatalf("expected history persisted even on failure, got %+v", rec)
	}
}

func TestRunTurnStoreFailureStillReplies(t *testing.T) {
	client := &scriptedGenAI{responses: []*genai.ToolCallResponse{
		structuredReply("Olá!"),
	}}
	f := newTestFlow(client, &failingStore{}, &calendar.MockService{}, &sheets.MockService{})

	got := f.RunTurn(context.Background(), "5511999990000", "oi")
	if got.Source != models.ReplySourceStructured || len(got.Replies) != 1 {
		t.Errorf("storage failure must not block the reply: %+v", got)
	}
}

func TestRunTurnHistoryTruncation(t *testing.T) {
	st := store.NewInMemoryStore()
	sender := "5511999990000"

	var seed []models.HistoryEntry
	for i := 0; i < 12; i++ {
		seed = append(seed, models.HistoryEntry{Type: models.HistoryEntryHuman, Content: fmt.Sprintf("mensagem %d", i)})
	}
	if err := st.SaveUser(sender, models.Profile{}, seed); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	client := &scriptedGenAI{responses: []*genai.ToolCallResponse{
		structuredReply("Certo!"),
	}}
	f := newTestFlow(client, st, &calendar.MockService{}, &sheets.MockService{})
	f.RunTurn(context.Background(), sender, "nova mensagem")

	rec, _ := st.LoadUser(sender)
	if len(rec.History) != models.MaxPersistedHistoryEntries {
		t.Fatalf("history length = %d, want %d", len(rec.History), models.MaxPersistedHistoryEntries)
	}
	last := rec.History[len(rec.History)-1]
	if last.Type != models.HistoryEntryAI || !strings.Contains(last.Content, "Certo!") {
		t.Errorf("newest entries must survive truncation: %+v", last)
	}
}

func TestRunTurnMaxToolRounds(t *testing.T) {
	st := store.NewInMemoryStore()
	var responses []*genai.ToolCallResponse
	for i := 0; i < 10; i++ {
		responses = append(responses, toolCallResponse(models.ToolNameCheckAvailability, map[string]string{"timestamp": "2025-06-25T14:00:00"}))
	}
	client := &scriptedGenAI{responses: responses}
	f := newTestFlow(client, st, &calendar.MockService{}, &sheets.MockService{})

	got := f.RunTurn(context.Background(), "5511999990000", "oi")
	if got.Source != models.ReplySourceFallback {
		t.Errorf("endless tool loop must degrade to apology, got %+v", got)
	}
}

// failingStore errors on every operation.
type failingStore struct{}

func (failingStore) LoadUser(string) (*models.UserRecord, error) {
	return nil, fmt.Errorf("store down")
}
func (failingStore) SaveUser(string, models.Profile, []models.HistoryEntry) error {
	return fmt.Errorf("store down")
}
func (failingStore) SaveAppointment(models.Appointment) error { return fmt.Errorf("store down") }
func (failingStore) ListAppointments() ([]models.Appointment, error) {
	return nil, fmt.Errorf("store down")
}
func (failingStore) Close() error { return nil }
