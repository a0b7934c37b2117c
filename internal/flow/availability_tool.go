package flow

import (
	"context"
	"encoding/json"
	"log/slog"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/shared"

	"github.com/ldvarela/agendabot/internal/calendar"
	"github.com/ldvarela/agendabot/internal/models"
)

// AvailabilityTool checks whether a requested slot is free. Outcomes are
// informative strings the model relays conversationally.
type AvailabilityTool struct {
	calendarService calendar.Service
}

// NewAvailabilityTool creates the availability checking tool.
func NewAvailabilityTool(calendarService calendar.Service) *AvailabilityTool {
	return &AvailabilityTool{calendarService: calendarService}
}

// GetToolDefinition returns the OpenAI tool definition for checking slot availability.
func (at *AvailabilityTool) GetToolDefinition() openai.ChatCompletionToolParam {
	return openai.ChatCompletionToolParam{
		Type: "function",
		Function: shared.FunctionDefinitionParam{
			Name:        models.ToolNameCheckAvailability,
			Description: openai.String("Check whether a 30-minute appointment slot starting at the given date and time is free. Always call this before offering a slot to the user."),
			Parameters: shared.FunctionParameters{
				"type": "object",
				"properties": map[string]interface{}{
					"timestamp": map[string]interface{}{
						"type":        "string",
						"description": "Slot start as an ISO-8601 date-time, e.g. '2025-06-25T14:00:00'. Interpreted in the clinic timezone when no offset is given.",
					},
				},
				"required": []string{"timestamp"},
			},
		},
	}
}

// ExecuteAvailabilityCheck runs the tool against the calendar.
func (at *AvailabilityTool) ExecuteAvailabilityCheck(ctx context.Context, args json.RawMessage) string {
	var params models.AvailabilityParams
	if err := json.Unmarshal(args, &params); err != nil {
		slog.Error("AvailabilityTool.ExecuteAvailabilityCheck: failed to parse arguments", "error", err)
		return models.OutcomeErrorPrefix + "invalid arguments: " + err.Error()
	}

	start, err := models.ParseToolTimestamp(params.Timestamp, businessZone)
	if err != nil {
		slog.Warn("AvailabilityTool.ExecuteAvailabilityCheck: bad timestamp", "timestamp", params.Timestamp, "error", err)
		return models.OutcomeErrorPrefix + err.Error()
	}

	if ok, reason := withinBusinessHours(start); !ok {
		slog.Debug("AvailabilityTool.ExecuteAvailabilityCheck: slot out of hours", "start", start, "reason", reason)
		return models.OutcomeOutOfHoursPrefix + reason
	}

	busy, err := at.calendarService.BusyWithin(ctx, start, start.Add(models.SlotDuration))
	if err != nil {
		slog.Error("AvailabilityTool.ExecuteAvailabilityCheck: calendar query failed", "error", err, "start", start)
		return models.OutcomeErrorPrefix + "could not check the calendar, try again"
	}

	if busy {
		slog.Debug("AvailabilityTool.ExecuteAvailabilityCheck: slot busy", "start", start)
		return models.OutcomeBusy
	}
	slog.Debug("AvailabilityTool.ExecuteAvailabilityCheck: slot available", "start", start)
	return models.OutcomeAvailable
}
