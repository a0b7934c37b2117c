package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestProfileMerge(t *testing.T) {
	p := Profile{FullName: "Ana Souza"}
	p.Merge(Profile{NationalID: "12345678901"})
	if p.FullName != "Ana Souza" || p.NationalID != "12345678901" {
		t.Errorf("merge lost a field: %+v", p)
	}

	// Empty incoming values must not clear known facts.
	p.Merge(Profile{})
	if p.FullName != "Ana Souza" || p.NationalID != "12345678901" {
		t.Errorf("empty merge cleared a field: %+v", p)
	}

	// Non-empty incoming values replace.
	p.Merge(Profile{FullName: "Ana Clara Souza"})
	if p.FullName != "Ana Clara Souza" {
		t.Errorf("expected replacement, got %q", p.FullName)
	}
}

func TestProfileKnown(t *testing.T) {
	if (Profile{}).Known() {
		t.Error("empty profile should not be known")
	}
	if !(Profile{NationalID: "12345678901"}).Known() {
		t.Error("profile with national id should be known")
	}
}

func TestTruncateHistory(t *testing.T) {
	var history []HistoryEntry
	for i := 0; i < 25; i++ {
		entry := HistoryEntry{Type: HistoryEntryHuman, Content: string(rune('a' + i))}
		if i%2 == 1 {
			entry.Type = HistoryEntryAI
		}
		history = append(history, entry)
	}

	trimmed := TruncateHistory(history)
	if len(trimmed) != MaxPersistedHistoryEntries {
		t.Fatalf("expected %d entries, got %d", MaxPersistedHistoryEntries, len(trimmed))
	}
	// Most recent entries, original order.
	if trimmed[0] != history[15] || trimmed[len(trimmed)-1] != history[24] {
		t.Errorf("truncation did not keep the most recent tail: %+v", trimmed)
	}

	short := []HistoryEntry{{Type: HistoryEntryHuman, Content: "oi"}}
	if got := TruncateHistory(short); len(got) != 1 {
		t.Errorf("short history should be unchanged, got %d entries", len(got))
	}
}

func TestHistoryEntryJSONShape(t *testing.T) {
	data, err := json.Marshal(HistoryEntry{Type: HistoryEntryAI, Content: "olá"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `{"type":"ai","content":"olá"}`
	if string(data) != want {
		t.Errorf("unexpected JSON shape: %s", data)
	}
}

func TestParseToolTimestamp(t *testing.T) {
	loc := time.FixedZone("UTC-3", -3*60*60)

	got, err := ParseToolTimestamp("2025-06-25T14:00:00", loc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Hour() != 14 || got.Location() != loc {
		t.Errorf("offset-less timestamp not interpreted in business zone: %v", got)
	}

	// Offset-carrying timestamps are converted.
	got, err = ParseToolTimestamp("2025-06-25T17:00:00Z", loc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Hour() != 14 {
		t.Errorf("expected 14h local, got %dh", got.Hour())
	}

	if _, err := ParseToolTimestamp("tomorrow at noon", loc); err == nil {
		t.Error("expected error for non-ISO timestamp")
	}
	if _, err := ParseToolTimestamp("", loc); err == nil {
		t.Error("expected error for empty timestamp")
	}
}

func TestRegisterParamsValidate(t *testing.T) {
	loc := time.FixedZone("UTC-3", -3*60*60)

	valid := RegisterParams{FullName: "Ana Souza", NationalID: "12345678901", Timestamp: "2025-06-25T14:00:00"}
	if err := valid.Validate(loc); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	missingName := RegisterParams{NationalID: "12345678901", Timestamp: "2025-06-25T14:00:00"}
	if err := missingName.Validate(loc); err != ErrEmptyFullName {
		t.Errorf("expected ErrEmptyFullName, got %v", err)
	}

	badTime := RegisterParams{FullName: "Ana", NationalID: "12345678901", Timestamp: "25/06/2025"}
	if err := badTime.Validate(loc); err == nil {
		t.Error("expected error for malformed timestamp")
	}
}
