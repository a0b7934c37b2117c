package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	"github.com/ldvarela/agendabot/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions is the default permission mode for created directories
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store based on provided options.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("SQLiteStore.NewSQLiteStore: creating SQLite store", "dbPath", cfg.DSN)
	if cfg.DSN == "" {
		slog.Error("SQLiteStore database path not set")
		return nil, fmt.Errorf("database path not set")
	}

	if dir := filepath.Dir(cfg.DSN); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
			slog.Error("Failed to create database directory", "error", err, "dir", dir)
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", cfg.DSN)
	if err != nil {
		slog.Error("Failed to open SQLite database", "error", err, "dbPath", cfg.DSN)
		return nil, err
	}

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err, "dbPath", cfg.DSN)
		return nil, err
	}

	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run SQLite migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully", "dbPath", cfg.DSN)
	return &SQLiteStore{db: db}, nil
}

// LoadUser retrieves the record for a sender, or nil if none exists.
func (s *SQLiteStore) LoadUser(senderID string) (*models.UserRecord, error) {
	query := `SELECT name, national_id, chat_history, created_at, updated_at FROM users WHERE sender_id = ?`

	var name, nationalID, historyJSON sql.NullString
	rec := models.UserRecord{SenderID: senderID}

	err := s.db.QueryRow(query, senderID).Scan(&name, &nationalID, &historyJSON, &rec.CreatedAt, &rec.UpdatedAt)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore LoadUser not found", "senderID", senderID)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore LoadUser failed", "error", err, "senderID", senderID)
		return nil, fmt.Errorf("failed to load user %s: %w", senderID, err)
	}

	rec.Profile = models.Profile{FullName: name.String, NationalID: nationalID.String}
	rec.History = decodeHistory(historyJSON.String, senderID)
	slog.Debug("SQLiteStore LoadUser found", "senderID", senderID, "historyLen", len(rec.History))
	return &rec, nil
}

// SaveUser upserts the user row with SQL-level profile merge, mirroring the
// Postgres implementation.
func (s *SQLiteStore) SaveUser(senderID string, profile models.Profile, history []models.HistoryEntry) error {
	historyJSON, err := encodeHistory(history)
	if err != nil {
		slog.Error("SQLiteStore SaveUser history marshal failed", "error", err, "senderID", senderID)
		return fmt.Errorf("failed to marshal history for %s: %w", senderID, err)
	}

	query := `
		INSERT INTO users (sender_id, name, national_id, chat_history, created_at, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT (sender_id) DO UPDATE SET
			name = COALESCE(excluded.name, users.name),
			national_id = COALESCE(excluded.national_id, users.national_id),
			chat_history = excluded.chat_history,
			updated_at = CURRENT_TIMESTAMP`

	_, err = s.db.Exec(query, senderID, nilIfEmpty(profile.FullName), nilIfEmpty(profile.NationalID), historyJSON)
	if err != nil {
		slog.Error("SQLiteStore SaveUser failed", "error", err, "senderID", senderID)
		return fmt.Errorf("failed to upsert user %s: %w", senderID, err)
	}
	slog.Debug("SQLiteStore SaveUser succeeded", "senderID", senderID, "historyLen", len(history))
	return nil
}

// SaveAppointment records a confirmed booking.
func (s *SQLiteStore) SaveAppointment(appt models.Appointment) error {
	query := `INSERT INTO appointments (id, full_name, national_id, phone, starts_at, created_at) VALUES (?, ?, ?, ?, ?, ?)`
	_, err := s.db.Exec(query, appt.ID, appt.FullName, appt.NationalID, appt.Phone, appt.StartsAt, appt.CreatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveAppointment failed", "error", err, "id", appt.ID)
		return fmt.Errorf("failed to insert appointment %s: %w", appt.ID, err)
	}
	slog.Debug("SQLiteStore SaveAppointment succeeded", "id", appt.ID)
	return nil
}

// ListAppointments retrieves all recorded bookings, most recent first.
func (s *SQLiteStore) ListAppointments() ([]models.Appointment, error) {
	query := `SELECT id, full_name, national_id, phone, starts_at, created_at FROM appointments ORDER BY created_at DESC`

	rows, err := s.db.Query(query)
	if err != nil {
		slog.Error("SQLiteStore ListAppointments failed", "error", err)
		return nil, fmt.Errorf("failed to query appointments: %w", err)
	}
	defer rows.Close()

	var appointments []models.Appointment
	for rows.Next() {
		var a models.Appointment
		if err := rows.Scan(&a.ID, &a.FullName, &a.NationalID, &a.Phone, &a.StartsAt, &a.CreatedAt); err != nil {
			slog.Error("SQLiteStore ListAppointments scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan appointment row: %w", err)
		}
		appointments = append(appointments, a)
	}
	if err := rows.Err(); err != nil {
		slog.Error("SQLiteStore ListAppointments rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate appointment rows: %w", err)
	}
	slog.Debug("SQLiteStore ListAppointments succeeded", "count", len(appointments))
	return appointments, nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close SQLite database", "error", err)
	}
	return err
}
