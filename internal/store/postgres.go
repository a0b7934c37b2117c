// Package store provides storage backends for agendabot.
//
// This file implements the PostgreSQL-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/ldvarela/agendabot/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")
	if cfg.DSN == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running Postgres migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")
	return &PostgresStore{db: db}, nil
}

// LoadUser retrieves the record for a sender, or nil if none exists.
func (s *PostgresStore) LoadUser(senderID string) (*models.UserRecord, error) {
	query := `SELECT name, national_id, chat_history, created_at, updated_at FROM users WHERE sender_id = $1`

	var name, nationalID, historyJSON sql.NullString
	rec := models.UserRecord{SenderID: senderID}

	err := s.db.QueryRow(query, senderID).Scan(&name, &nationalID, &historyJSON, &rec.CreatedAt, &rec.UpdatedAt)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore LoadUser not found", "senderID", senderID)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore LoadUser failed", "error", err, "senderID", senderID)
		return nil, fmt.Errorf("failed to load user %s: %w", senderID, err)
	}

	rec.Profile = models.Profile{FullName: name.String, NationalID: nationalID.String}
	rec.History = decodeHistory(historyJSON.String, senderID)
	slog.Debug("PostgresStore LoadUser found", "senderID", senderID, "historyLen", len(rec.History))
	return &rec, nil
}

// SaveUser upserts the user row. Profile fields merge at the SQL level so
// concurrent last-writer-wins races cannot mix partial fields: an empty
// incoming value is stored as NULL and COALESCE keeps the prior value.
func (s *PostgresStore) SaveUser(senderID string, profile models.Profile, history []models.HistoryEntry) error {
	historyJSON, err := encodeHistory(history)
	if err != nil {
		slog.Error("PostgresStore SaveUser history marshal failed", "error", err, "senderID", senderID)
		return fmt.Errorf("failed to marshal history for %s: %w", senderID, err)
	}

	query := `
		INSERT INTO users (sender_id, name, national_id, chat_history, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (sender_id) DO UPDATE SET
			name = COALESCE(EXCLUDED.name, users.name),
			national_id = COALESCE(EXCLUDED.national_id, users.national_id),
			chat_history = EXCLUDED.chat_history,
			updated_at = NOW()`

	_, err = s.db.Exec(query, senderID, nilIfEmpty(profile.FullName), nilIfEmpty(profile.NationalID), historyJSON)
	if err != nil {
		slog.Error("PostgresStore SaveUser failed", "error", err, "senderID", senderID)
		return fmt.Errorf("failed to upsert user %s: %w", senderID, err)
	}
	slog.Debug("PostgresStore SaveUser succeeded", "senderID", senderID, "historyLen", len(history))
	return nil
}

// SaveAppointment records a confirmed booking.
func (s *PostgresStore) SaveAppointment(appt models.Appointment) error {
	query := `INSERT INTO appointments (id, full_name, national_id, phone, starts_at, created_at) VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := s.db.Exec(query, appt.ID, appt.FullName, appt.NationalID, appt.Phone, appt.StartsAt, appt.CreatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveAppointment failed", "error", err, "id", appt.ID)
		return fmt.Errorf("failed to insert appointment %s: %w", appt.ID, err)
	}
	slog.Debug("PostgresStore SaveAppointment succeeded", "id", appt.ID)
	return nil
}

// ListAppointments retrieves all recorded bookings, most recent first.
func (s *PostgresStore) ListAppointments() ([]models.Appointment, error) {
	query := `SELECT id, full_name, national_id, phone, starts_at, created_at FROM appointments ORDER BY created_at DESC`

	rows, err := s.db.Query(query)
	if err != nil {
		slog.Error("PostgresStore ListAppointments failed", "error", err)
		return nil, fmt.Errorf("failed to query appointments: %w", err)
	}
	defer rows.Close()

	var appointments []models.Appointment
	for rows.Next() {
		var a models.Appointment
		if err := rows.Scan(&a.ID, &a.FullName, &a.NationalID, &a.Phone, &a.StartsAt, &a.CreatedAt); err != nil {
			slog.Error("PostgresStore ListAppointments scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan appointment row: %w", err)
		}
		appointments = append(appointments, a)
	}
	if err := rows.Err(); err != nil {
		slog.Error("PostgresStore ListAppointments rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate appointment rows: %w", err)
	}
	slog.Debug("PostgresStore ListAppointments succeeded", "count", len(appointments))
	return appointments, nil
}

// Close closes the PostgreSQL database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing PostgreSQL database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close PostgreSQL database", "error", err)
	}
	return err
}
