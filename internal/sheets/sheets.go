// Package sheets wraps the Google Sheets API for the booking log the
// registration tool appends to.
package sheets

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	gsheets "google.golang.org/api/sheets/v4"
	"google.golang.org/api/option"
)

// Booking log constants.
const (
	// DefaultAppendRange targets the first sheet; the API appends after the
	// last non-empty row.
	DefaultAppendRange = "A:E"
	// StatusConfirmed is the status written for every registered booking.
	StatusConfirmed = "Confirmado"
	// RowTimeLayout formats the appointment start time in the sheet row.
	RowTimeLayout = "02/01/2006 15:04"
)

// BookingRow is one appended booking log entry.
type BookingRow struct {
	FullName   string
	NationalID string
	Phone      string
	StartsAt   time.Time
	Status     string
}

// Service is the booking log contract consumed by the registration tool.
type Service interface {
	// AppendBooking appends one row to the booking log.
	AppendBooking(ctx context.Context, row BookingRow) error
}

// Opts holds configuration options for the Google Sheets service.
type Opts struct {
	CredentialsFile string
	SpreadsheetID   string
}

// Option defines a configuration option for the Google Sheets service.
type Option func(*Opts)

// WithCredentialsFile sets the service account credentials file path.
func WithCredentialsFile(path string) Option {
	return func(o *Opts) { o.CredentialsFile = path }
}

// WithSpreadsheetID sets the target spreadsheet.
func WithSpreadsheetID(id string) Option {
	return func(o *Opts) { o.SpreadsheetID = id }
}

// GoogleService implements Service against the Google Sheets API.
type GoogleService struct {
	svc           *gsheets.Service
	spreadsheetID string
}

// NewGoogleService creates a sheets service based on provided options,
// falling back to the GOOGLE_CREDENTIALS_FILE and GOOGLE_SHEET_ID
// environment variables.
func NewGoogleService(ctx context.Context, opts ...Option) (*GoogleService, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.CredentialsFile == "" {
		cfg.CredentialsFile = os.Getenv("GOOGLE_CREDENTIALS_FILE")
	}
	if cfg.SpreadsheetID == "" {
		cfg.SpreadsheetID = os.Getenv("GOOGLE_SHEET_ID")
	}
	slog.Debug("Sheets.NewGoogleService: creating service", "credentialsFile_set", cfg.CredentialsFile != "", "spreadsheetID_set", cfg.SpreadsheetID != "")
	if cfg.CredentialsFile == "" {
		slog.Error("Sheets.NewGoogleService: credentials file not set")
		return nil, fmt.Errorf("Google credentials file not set")
	}
	if cfg.SpreadsheetID == "" {
		slog.Error("Sheets.NewGoogleService: spreadsheet ID not set")
		return nil, fmt.Errorf("Google spreadsheet ID not set")
	}

	svc, err := gsheets.NewService(ctx,
		option.WithCredentialsFile(cfg.CredentialsFile),
		option.WithScopes(gsheets.SpreadsheetsScope),
	)
	if err != nil {
		slog.Error("Sheets.NewGoogleService: failed to create Sheets client", "error", err)
		return nil, fmt.Errorf("failed to create Sheets client: %w", err)
	}
	return &GoogleService{svc: svc, spreadsheetID: cfg.SpreadsheetID}, nil
}

// AppendBooking appends the row [name, national id, phone, slot, status].
func (g *GoogleService) AppendBooking(ctx context.Context, row BookingRow) error {
	slog.Debug("Sheets.AppendBooking: appending row", "fullName", row.FullName, "startsAt", row.StartsAt)
	status := row.Status
	if status == "" {
		status = StatusConfirmed
	}
	values := &gsheets.ValueRange{
		Values: [][]interface{}{{
			row.FullName,
			row.NationalID,
			row.Phone,
			row.StartsAt.Format(RowTimeLayout),
			status,
		}},
	}
	_, err := g.svc.Spreadsheets.Values.
		Append(g.spreadsheetID, DefaultAppendRange, values).
		ValueInputOption("USER_ENTERED").
		Context(ctx).
		Do()
	if err != nil {
		slog.Error("Sheets.AppendBooking: append failed", "error", err)
		return fmt.Errorf("failed to append booking row: %w", err)
	}
	slog.Debug("Sheets.AppendBooking: row appended", "fullName", row.FullName)
	return nil
}

// MockService is a mock implementation of Service for testing.
type MockService struct {
	AppendErr error
	Appended  []BookingRow
}

// AppendBooking records the row or returns the configured error.
func (m *MockService) AppendBooking(ctx context.Context, row BookingRow) error {
	if m.AppendErr != nil {
		return m.AppendErr
	}
	m.Appended = append(m.Appended, row)
	return nil
}
