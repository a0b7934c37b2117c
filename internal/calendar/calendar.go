// Package calendar wraps the Google Calendar API for slot availability
// queries and appointment event creation.
package calendar

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// BusinessTimeZone is the IANA zone attached to created events.
const BusinessTimeZone = "America/Sao_Paulo"

// Event is the subset of an appointment event the service creates.
type Event struct {
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
}

// Service is the calendar contract consumed by the scheduling tools.
type Service interface {
	// BusyWithin reports whether any event overlaps the given window.
	BusyWithin(ctx context.Context, start, end time.Time) (bool, error)
	// Insert creates an event on the configured calendar.
	Insert(ctx context.Context, ev Event) error
}

// Opts holds configuration options for the Google Calendar service.
type Opts struct {
	CredentialsFile string
	CalendarID      string
}

// Option defines a configuration option for the Google Calendar service.
type Option func(*Opts)

// WithCredentialsFile sets the service account credentials file path.
func WithCredentialsFile(path string) Option {
	return func(o *Opts) { o.CredentialsFile = path }
}

// WithCalendarID sets the target calendar.
func WithCalendarID(id string) Option {
	return func(o *Opts) { o.CalendarID = id }
}

// GoogleService implements Service against the Google Calendar API.
type GoogleService struct {
	svc        *gcal.Service
	calendarID string
}

// NewGoogleService creates a calendar service based on provided options,
// falling back to the GOOGLE_CREDENTIALS_FILE and GOOGLE_CALENDAR_ID
// environment variables.
func NewGoogleService(ctx context.Context, opts ...Option) (*GoogleService, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.CredentialsFile == "" {
		cfg.CredentialsFile = os.Getenv("GOOGLE_CREDENTIALS_FILE")
	}
	if cfg.CalendarID == "" {
		cfg.CalendarID = os.Getenv("GOOGLE_CALENDAR_ID")
	}
	slog.Debug("Calendar.NewGoogleService: creating service", "credentialsFile_set", cfg.CredentialsFile != "", "calendarID_set", cfg.CalendarID != "")
	if cfg.CredentialsFile == "" {
		slog.Error("Calendar.NewGoogleService: credentials file not set")
		return nil, fmt.Errorf("Google credentials file not set")
	}
	if cfg.CalendarID == "" {
		slog.Error("Calendar.NewGoogleService: calendar ID not set")
		return nil, fmt.Errorf("Google calendar ID not set")
	}

	svc, err := gcal.NewService(ctx,
		option.WithCredentialsFile(cfg.CredentialsFile),
		option.WithScopes(gcal.CalendarScope),
	)
	if err != nil {
		slog.Error("Calendar.NewGoogleService: failed to create Calendar client", "error", err)
		return nil, fmt.Errorf("failed to create Calendar client: %w", err)
	}
	return &GoogleService{svc: svc, calendarID: cfg.CalendarID}, nil
}

// BusyWithin lists events overlapping [start, end) and reports whether any
// exist.
func (g *GoogleService) BusyWithin(ctx context.Context, start, end time.Time) (bool, error) {
	slog.Debug("Calendar.BusyWithin: querying events", "start", start, "end", end)
	events, err := g.svc.Events.List(g.calendarID).
		TimeMin(start.Format(time.RFC3339)).
		TimeMax(end.Format(time.RFC3339)).
		SingleEvents(true).
		Context(ctx).
		Do()
	if err != nil {
		slog.Error("Calendar.BusyWithin: events query failed", "error", err)
		return false, fmt.Errorf("failed to list calendar events: %w", err)
	}
	busy := len(events.Items) > 0
	slog.Debug("Calendar.BusyWithin: query complete", "busy", busy, "eventCount", len(events.Items))
	return busy, nil
}

// Insert creates the event with the business timezone attached.
func (g *GoogleService) Insert(ctx context.Context, ev Event) error {
	slog.Debug("Calendar.Insert: creating event", "summary", ev.Summary, "start", ev.Start)
	event := &gcal.Event{
		Summary:     ev.Summary,
		Description: ev.Description,
		Start: &gcal.EventDateTime{
			DateTime: ev.Start.Format(time.RFC3339),
			TimeZone: BusinessTimeZone,
		},
		End: &gcal.EventDateTime{
			DateTime: ev.End.Format(time.RFC3339),
			TimeZone: BusinessTimeZone,
		},
	}
	if _, err := g.svc.Events.Insert(g.calendarID, event).Context(ctx).Do(); err != nil {
		slog.Error("Calendar.Insert: event creation failed", "error", err)
		return fmt.Errorf("failed to insert calendar event: %w", err)
	}
	slog.Debug("Calendar.Insert: event created", "summary", ev.Summary)
	return nil
}

// MockService is a mock implementation of Service for testing.
type MockService struct {
	Busy      bool
	BusyErr   error
	InsertErr error
	Inserted  []Event
}

// BusyWithin returns the configured busy flag or error.
func (m *MockService) BusyWithin(ctx context.Context, start, end time.Time) (bool, error) {
	if m.BusyErr != nil {
		return false, m.BusyErr
	}
	return m.Busy, nil
}

// Insert records the event or returns the configured error.
func (m *MockService) Insert(ctx context.Context, ev Event) error {
	if m.InsertErr != nil {
		return m.InsertErr
	}
	m.Inserted = append(m.Inserted, ev)
	return nil
}
