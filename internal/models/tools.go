// Package models defines tool parameter structures for LLM function calling.
package models

import (
	"fmt"
	"time"
)

// Tool names exposed to the model.
const (
	// ToolNameCheckAvailability queries the calendar for a free slot.
	ToolNameCheckAvailability = "check_availability"
	// ToolNameRegisterAppointment books a confirmed appointment.
	ToolNameRegisterAppointment = "register_appointment"
)

// Tool outcome strings. Tools report informative strings rather than machine
// error codes so the model can relay rejections conversationally.
const (
	OutcomeAvailable        = "available"
	OutcomeBusy             = "busy"
	OutcomeOutOfHoursPrefix = "out-of-hours: "
	OutcomeErrorPrefix      = "error: "
	OutcomeConfirmedPrefix  = "confirmed: "
)

// SlotDuration is the fixed appointment slot length.
const SlotDuration = 30 * time.Minute

// timestampLayouts are the accepted ISO-8601 shapes for tool timestamps.
// Offset-less forms are interpreted in the business timezone by the tools.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// ParseToolTimestamp parses an ISO-8601 date-time as supplied by the model.
// Offset-less timestamps are interpreted in loc.
func ParseToolTimestamp(value string, loc *time.Location) (time.Time, error) {
	if value == "" {
		return time.Time{}, ErrEmptyTimestamp
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t.In(loc), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, value)
}

// AvailabilityParams are the arguments of the check_availability tool call.
type AvailabilityParams struct {
	Timestamp string `json:"timestamp"`
}

// Validate ensures the availability parameters are well formed.
func (ap *AvailabilityParams) Validate(loc *time.Location) error {
	_, err := ParseToolTimestamp(ap.Timestamp, loc)
	return err
}

// RegisterParams are the arguments of the register_appointment tool call.
// The national id format (11 digits) is advisory: confirming it is the
// agent's conversational responsibility, not the tool's.
type RegisterParams struct {
	FullName   string `json:"full_name"`
	NationalID string `json:"national_id"`
	Timestamp  string `json:"timestamp"`
}

// Validate ensures the registration parameters are well formed.
func (rp *RegisterParams) Validate(loc *time.Location) error {
	if rp.FullName == "" {
		return ErrEmptyFullName
	}
	if rp.NationalID == "" {
		return ErrEmptyNationalID
	}
	_, err := ParseToolTimestamp(rp.Timestamp, loc)
	return err
}

// LearnedFacts is the explicit side channel through which a tool reports
// profile facts the model acted on. The orchestration loop merges non-empty
// facts into the user's profile; reply delivery never depends on it.
type LearnedFacts struct {
	FullName   string
	NationalID string
}

// AsProfile converts the learned facts into a mergeable profile fragment.
func (lf LearnedFacts) AsProfile() Profile {
	return Profile{FullName: lf.FullName, NationalID: lf.NationalID}
}

// Merge keeps existing facts and overlays any non-empty incoming ones.
func (lf *LearnedFacts) Merge(incoming LearnedFacts) {
	if incoming.FullName != "" {
		lf.FullName = incoming.FullName
	}
	if incoming.NationalID != "" {
		lf.NationalID = incoming.NationalID
	}
}
