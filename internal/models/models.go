// Package models defines the core data structures for agendabot.
//
// It includes the per-user conversation record, profile merge semantics,
// and the reply-set type returned by a conversation turn.
package models

import (
	"errors"
	"time"
)

// HistoryEntryType tags a conversation history entry by speaker.
type HistoryEntryType string

const (
	// HistoryEntryHuman marks an inbound user message.
	HistoryEntryHuman HistoryEntryType = "human"
	// HistoryEntryAI marks an assistant reply.
	HistoryEntryAI HistoryEntryType = "ai"
)

// MaxPersistedHistoryEntries bounds the history tail kept after each turn.
// Older entries are permanently discarded.
const MaxPersistedHistoryEntries = 10

// Error variables for better error handling and testability
var (
	ErrEmptySenderID    = errors.New("sender id cannot be empty")
	ErrEmptyTimestamp   = errors.New("timestamp is required")
	ErrInvalidTimestamp = errors.New("timestamp is not a valid ISO-8601 date-time")
	ErrEmptyFullName    = errors.New("full name is required")
	ErrEmptyNationalID  = errors.New("national id is required")
)

// HistoryEntry is one turn entry in a user's conversation history.
type HistoryEntry struct {
	Type    HistoryEntryType `json:"type"`    // "human" or "ai"
	Content string           `json:"content"` // message text
}

// Profile holds the recognized learned facts about a user.
// An empty string means the fact is not known yet.
type Profile struct {
	FullName   string `json:"full_name,omitempty"`
	NationalID string `json:"national_id,omitempty"`
}

// Known reports whether at least one profile field has been learned.
func (p Profile) Known() bool {
	return p.FullName != "" || p.NationalID != ""
}

// Merge applies incoming facts onto the profile. A non-empty incoming value
// replaces the stored one; an empty incoming value leaves it intact. Fields,
// once known, survive turns whose extraction yields nothing.
func (p *Profile) Merge(incoming Profile) {
	if incoming.FullName != "" {
		p.FullName = incoming.FullName
	}
	if incoming.NationalID != "" {
		p.NationalID = incoming.NationalID
	}
}

// UserRecord is the persisted state for one distinct sender identity.
type UserRecord struct {
	SenderID  string         `json:"sender_id"`
	Profile   Profile        `json:"profile"`
	History   []HistoryEntry `json:"history"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// TruncateHistory returns the most recent MaxPersistedHistoryEntries entries
// in original order. Shorter histories are returned unchanged.
func TruncateHistory(history []HistoryEntry) []HistoryEntry {
	if len(history) <= MaxPersistedHistoryEntries {
		return history
	}
	return history[len(history)-MaxPersistedHistoryEntries:]
}

// Appointment is a locally recorded booking, written alongside the external
// calendar and spreadsheet entries.
type Appointment struct {
	ID         string    `json:"id"`
	FullName   string    `json:"full_name"`
	NationalID string    `json:"national_id"`
	Phone      string    `json:"phone"`
	StartsAt   time.Time `json:"starts_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// ReplySource tags which parsing tier produced a turn's reply list.
type ReplySource string

const (
	// ReplySourceStructured means the model honored the structured output contract.
	ReplySourceStructured ReplySource = "structured"
	// ReplySourceRecovered means the reply list was recovered from free text.
	ReplySourceRecovered ReplySource = "recovered"
	// ReplySourceFallback means the fixed apology reply was used.
	ReplySourceFallback ReplySource = "fallback"
)

// ReplySet is the outcome of one conversation turn: a non-empty ordered list
// of reply strings plus the parse tier that produced it.
type ReplySet struct {
	Replies []string    `json:"replies"`
	Source  ReplySource `json:"source"`
}
