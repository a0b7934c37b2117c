package flow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ldvarela/agendabot/internal/messaging"
	"github.com/ldvarela/agendabot/internal/models"
)

// DefaultReminderLead is how long before the slot the reminder goes out.
const DefaultReminderLead = 24 * time.Hour

// ReminderScheduler sends a WhatsApp reminder ahead of each registered
// appointment. Reminders are in-process only; they do not survive a restart.
type ReminderScheduler struct {
	timer      Timer
	msgService messaging.Service
	lead       time.Duration
	now        func() time.Time
}

// NewReminderScheduler creates a reminder scheduler with the given lead time.
// A non-positive lead falls back to DefaultReminderLead.
func NewReminderScheduler(timer Timer, msgService messaging.Service, lead time.Duration) *ReminderScheduler {
	if lead <= 0 {
		lead = DefaultReminderLead
	}
	return &ReminderScheduler{
		timer:      timer,
		msgService: msgService,
		lead:       lead,
		now:        time.Now,
	}
}

// Schedule arms a reminder for the appointment. Appointments whose reminder
// time has already passed are skipped.
func (rs *ReminderScheduler) Schedule(appt models.Appointment) {
	if rs == nil || rs.msgService == nil {
		return
	}
	remindAt := appt.StartsAt.Add(-rs.lead)
	if !remindAt.After(rs.now()) {
		slog.Debug("ReminderScheduler.Schedule: reminder time already passed, skipping", "appointmentID", appt.ID, "remindAt", remindAt)
		return
	}

	phone := appt.Phone
	body := fmt.Sprintf("Lembrete: sua consulta está marcada para %s.", FormatSlot(appt.StartsAt))
	id, err := rs.timer.ScheduleAt(remindAt, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := rs.msgService.SendMessage(ctx, phone, body); err != nil {
			slog.Error("ReminderScheduler: reminder send failed", "error", err, "appointmentID", appt.ID, "to", phone)
		}
	})
	if err != nil {
		slog.Error("ReminderScheduler.Schedule: failed to arm timer", "error", err, "appointmentID", appt.ID)
		return
	}
	slog.Debug("ReminderScheduler.Schedule: reminder armed", "appointmentID", appt.ID, "timerID", id, "remindAt", remindAt)
}
