// Package store provides storage backends for agendabot.
//
// It persists one record per distinct sender (profile fields plus a trimmed
// conversation history) and a local ledger of registered appointments.
// PostgreSQL and SQLite backends are selected by DSN detection; an in-memory
// store backs tests.
package store

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ldvarela/agendabot/internal/models"
)

// Store is the persistence contract consumed by the conversation flow and
// the admin API.
type Store interface {
	// LoadUser returns the stored record for senderID, or nil if none exists.
	LoadUser(senderID string) (*models.UserRecord, error)
	// SaveUser upserts the record for senderID. Profile fields follow merge
	// semantics (non-empty incoming replaces, empty preserves); history is
	// replaced wholesale with the provided, already-truncated sequence.
	SaveUser(senderID string, profile models.Profile, history []models.HistoryEntry) error
	// SaveAppointment records a confirmed booking.
	SaveAppointment(appt models.Appointment) error
	// ListAppointments returns all recorded bookings, most recent first.
	ListAppointments() ([]models.Appointment, error)
	// Close releases the underlying connection, if any.
	Close() error
}

// Opts holds configuration options for store backends.
type Opts struct {
	DSN string
}

// Option defines a configuration option for store backends.
type Option func(*Opts)

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType classifies a DSN as "postgres" or "sqlite". PostgreSQL DSNs
// use URL or key=value forms; anything else is treated as a SQLite file path.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}

// InMemoryStore is a map-backed Store used in tests and as a degraded
// fallback when no DSN is configured.
type InMemoryStore struct {
	mu           sync.Mutex
	users        map[string]*models.UserRecord
	appointments []models.Appointment
	now          func() time.Time
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		users: make(map[string]*models.UserRecord),
		now:   time.Now,
	}
}

// LoadUser returns a copy of the stored record, or nil if the sender is unknown.
func (s *InMemoryStore) LoadUser(senderID string) (*models.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[senderID]
	if !ok {
		return nil, nil
	}
	out := *rec
	out.History = append([]models.HistoryEntry(nil), rec.History...)
	return &out, nil
}

// SaveUser upserts with the documented merge semantics.
func (s *InMemoryStore) SaveUser(senderID string, profile models.Profile, history []models.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	rec, ok := s.users[senderID]
	if !ok {
		rec = &models.UserRecord{SenderID: senderID, CreatedAt: now}
		s.users[senderID] = rec
	}
	rec.Profile.Merge(profile)
	rec.History = append([]models.HistoryEntry(nil), history...)
	rec.UpdatedAt = now
	return nil
}

// SaveAppointment records a booking.
func (s *InMemoryStore) SaveAppointment(appt models.Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appointments = append(s.appointments, appt)
	return nil
}

// ListAppointments returns recorded bookings, most recently created first.
func (s *InMemoryStore) ListAppointments() ([]models.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]models.Appointment(nil), s.appointments...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error { return nil }
