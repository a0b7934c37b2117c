package store

import (
	"encoding/json"
	"log/slog"

	"github.com/ldvarela/agendabot/internal/models"
)

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns so that empty profile fields are stored
// as NULL and the upsert's COALESCE merge preserves prior values.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// encodeHistory serializes a history tail for the chat_history column.
func encodeHistory(history []models.HistoryEntry) (string, error) {
	if history == nil {
		history = []models.HistoryEntry{}
	}
	data, err := json.Marshal(history)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// decodeHistory parses the chat_history column. A corrupt payload degrades to
// an empty history rather than failing the load.
func decodeHistory(raw string, senderID string) []models.HistoryEntry {
	if raw == "" {
		return nil
	}
	var history []models.HistoryEntry
	if err := json.Unmarshal([]byte(raw), &history); err != nil {
		slog.Error("store.decodeHistory: failed to parse stored history, starting fresh", "error", err, "senderID", senderID)
		return nil
	}
	return history
}
