package main

import (
	"testing"
	"time"
)

func strPtr(s string) *string { return &s }

func TestBuildRunConfig(t *testing.T) {
	lead := 36 * time.Hour
	flags := Flags{
		dbDSN:            strPtr("postgres://localhost/agendabot"),
		openaiKey:        strPtr("sk-test"),
		openaiModel:      strPtr(""),
		googleCreds:      strPtr("/etc/agendabot/creds.json"),
		calendarID:       strPtr("primary"),
		sheetID:          strPtr("sheet-1"),
		twilioSID:        strPtr(""),
		twilioToken:      strPtr(""),
		twilioFrom:       strPtr(""),
		apiAddr:          strPtr(":9090"),
		systemPromptFile: strPtr(""),
		reminderLead:     &lead,
	}

	cfg := buildRunConfig(flags)

	if cfg.DSN != "postgres://localhost/agendabot" {
		t.Errorf("DSN = %q", cfg.DSN)
	}
	if cfg.ReminderLead != lead {
		t.Errorf("ReminderLead = %v, want %v", cfg.ReminderLead, lead)
	}
	if len(cfg.GenAIOpts) != 1 {
		t.Errorf("expected 1 GenAI option, got %d", len(cfg.GenAIOpts))
	}
	// Shared credentials file feeds both Google services.
	if len(cfg.CalendarOpts) != 2 || len(cfg.SheetsOpts) != 2 {
		t.Errorf("Google options = %d calendar / %d sheets, want 2 / 2", len(cfg.CalendarOpts), len(cfg.SheetsOpts))
	}
	if len(cfg.MessagingOpts) != 0 {
		t.Errorf("expected no Twilio options, got %d", len(cfg.MessagingOpts))
	}
	if len(cfg.APIOpts) != 1 {
		t.Errorf("expected 1 API option, got %d", len(cfg.APIOpts))
	}
}
