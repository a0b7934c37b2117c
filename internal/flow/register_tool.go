package flow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/shared"

	"github.com/ldvarela/agendabot/internal/calendar"
	"github.com/ldvarela/agendabot/internal/models"
	"github.com/ldvarela/agendabot/internal/sheets"
)

// RegisterTool books an appointment: it appends a row to the booking sheet
// and creates the calendar event. The two writes are not transactional; a
// failure after the sheet append leaves the row in place and reports a single
// error outcome.
type RegisterTool struct {
	calendarService calendar.Service
	sheetsService   sheets.Service
}

// NewRegisterTool creates the appointment registration tool.
func NewRegisterTool(calendarService calendar.Service, sheetsService sheets.Service) *RegisterTool {
	return &RegisterTool{calendarService: calendarService, sheetsService: sheetsService}
}

// GetToolDefinition returns the OpenAI tool definition for registering an appointment.
func (rt *RegisterTool) GetToolDefinition() openai.ChatCompletionToolParam {
	return openai.ChatCompletionToolParam{
		Type: "function",
		Function: shared.FunctionDefinitionParam{
			Name:        models.ToolNameRegisterAppointment,
			Description: openai.String("Register a confirmed appointment. Only call this after the user has confirmed the slot and provided their full name and national id (CPF, 11 digits)."),
			Parameters: shared.FunctionParameters{
				"type": "object",
				"properties": map[string]interface{}{
					"full_name": map[string]interface{}{
						"type":        "string",
						"description": "The patient's full name",
					},
					"national_id": map[string]interface{}{
						"type":        "string",
						"description": "The patient's CPF, 11 digits",
					},
					"timestamp": map[string]interface{}{
						"type":        "string",
						"description": "Confirmed slot start as an ISO-8601 date-time, e.g. '2025-06-25T14:00:00'. Interpreted in the clinic timezone when no offset is given.",
					},
				},
				"required": []string{"full_name", "national_id", "timestamp"},
			},
		},
	}
}

// ExecuteRegistration runs the tool: sheet append first, then the calendar
// event. It always returns the facts the model supplied so the caller can
// merge them into the profile even when booking fails.
func (rt *RegisterTool) ExecuteRegistration(ctx context.Context, phone string, args json.RawMessage) (string, models.LearnedFacts) {
	var params models.RegisterParams
	if err := json.Unmarshal(args, &params); err != nil {
		slog.Error("RegisterTool.ExecuteRegistration: failed to parse arguments", "error", err)
		return models.OutcomeErrorPrefix + "invalid arguments: " + err.Error(), models.LearnedFacts{}
	}

	facts := models.LearnedFacts{FullName: params.FullName, NationalID: params.NationalID}

	if err := params.Validate(businessZone); err != nil {
		slog.Warn("RegisterTool.ExecuteRegistration: invalid parameters", "error", err)
		return models.OutcomeErrorPrefix + err.Error(), facts
	}
	start, _ := models.ParseToolTimestamp(params.Timestamp, businessZone)

	if ok, reason := withinBusinessHours(start); !ok {
		slog.Debug("RegisterTool.ExecuteRegistration: slot out of hours", "start", start, "reason", reason)
		return models.OutcomeOutOfHoursPrefix + reason, facts
	}

	row := sheets.BookingRow{
		FullName:   params.FullName,
		NationalID: params.NationalID,
		Phone:      phone,
		StartsAt:   start,
		Status:     sheets.StatusConfirmed,
	}
	if err := rt.sheetsService.AppendBooking(ctx, row); err != nil {
		slog.Error("RegisterTool.ExecuteRegistration: sheet append failed", "error", err)
		return models.OutcomeErrorPrefix + "could not record the booking, try again", facts
	}

	event := calendar.Event{
		Summary:     fmt.Sprintf("Consulta: %s", params.FullName),
		Description: fmt.Sprintf("CPF: %s\nTelefone: %s", params.NationalID, phone),
		Start:       start,
		End:         start.Add(models.SlotDuration),
	}
	if err := rt.calendarService.Insert(ctx, event); err != nil {
		slog.Error("RegisterTool.ExecuteRegistration: calendar insert failed after sheet append", "error", err)
		return models.OutcomeErrorPrefix + "could not create the calendar event, try again", facts
	}

	slog.Info("RegisterTool.ExecuteRegistration: appointment registered", "fullName", params.FullName, "start", start)
	return models.OutcomeConfirmedPrefix + FormatSlot(start), facts
}
