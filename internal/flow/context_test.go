package flow

import (
	"strings"
	"testing"
	"time"

	"github.com/ldvarela/agendabot/internal/models"
)

func TestWithinBusinessHours(t *testing.T) {
	cases := []struct {
		name string
		t    time.Time
		want bool
	}{
		{"weekday morning", time.Date(2025, 6, 23, 9, 0, 0, 0, businessZone), true},   // Monday
		{"weekday opening", time.Date(2025, 6, 23, 8, 0, 0, 0, businessZone), true},   // Monday 08:00
		{"weekday last slot", time.Date(2025, 6, 27, 16, 59, 0, 0, businessZone), true}, // Friday 16:59
		{"weekday closing", time.Date(2025, 6, 27, 17, 0, 0, 0, businessZone), false}, // Friday 17:00
		{"weekday early", time.Date(2025, 6, 24, 7, 59, 0, 0, businessZone), false},
		{"saturday", time.Date(2025, 6, 28, 10, 0, 0, 0, businessZone), false},
		{"sunday", time.Date(2025, 6, 29, 10, 0, 0, 0, businessZone), false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, reason := withinBusinessHours(c.t)
			if got != c.want {
				t.Errorf("withinBusinessHours(%v) = %v, want %v", c.t, got, c.want)
			}
			if !got && reason == "" {
				t.Error("rejection must carry a reason")
			}
		})
	}
}

func TestWithinBusinessHoursConvertsZone(t *testing.T) {
	// 19:30 UTC is 16:30 at the clinic, still bookable.
	in := time.Date(2025, 6, 25, 19, 30, 0, 0, time.UTC)
	if ok, _ := withinBusinessHours(in); !ok {
		t.Error("expected 19:30 UTC on a Wednesday to be within business hours")
	}
	// 21:00 UTC is 18:00 at the clinic.
	late := time.Date(2025, 6, 25, 21, 0, 0, 0, time.UTC)
	if ok, _ := withinBusinessHours(late); ok {
		t.Error("expected 21:00 UTC to be outside business hours")
	}
}

func TestRenderCurrentTimePortuguese(t *testing.T) {
	// Wednesday, June 25th 2025 at 14:00 clinic time.
	got := RenderCurrentTime(time.Date(2025, 6, 25, 14, 0, 0, 0, businessZone))
	if !strings.Contains(got, "quarta-feira") {
		t.Errorf("expected Portuguese weekday in %q", got)
	}
	if !strings.Contains(got, "junho") {
		t.Errorf("expected Portuguese month in %q", got)
	}
	if !strings.Contains(got, "14:00") {
		t.Errorf("expected wall clock in %q", got)
	}
}

func TestFormatSlot(t *testing.T) {
	got := FormatSlot(time.Date(2025, 6, 27, 10, 30, 0, 0, businessZone))
	if !strings.Contains(got, "sexta-feira") || !strings.Contains(got, "10:30") {
		t.Errorf("unexpected slot format: %q", got)
	}
}

func TestRenderUserContext(t *testing.T) {
	if got := RenderUserContext(models.Profile{}); got != newUserContext {
		t.Errorf("expected new-user marker, got %q", got)
	}
	got := RenderUserContext(models.Profile{FullName: "Maria Souza"})
	if !strings.Contains(got, "Maria Souza") {
		t.Errorf("expected known facts in context, got %q", got)
	}
	if strings.Contains(got, "national_id") {
		t.Errorf("unknown fields must be omitted, got %q", got)
	}
}
