package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ldvarela/agendabot/internal/flow"
	"github.com/ldvarela/agendabot/internal/models"
)

// turnTimeout bounds one webhook turn end to end, including model rounds and
// tool calls. Twilio times out inbound webhooks around 15 seconds later.
const turnTimeout = 60 * time.Second

// webhookHandler receives Twilio's inbound WhatsApp form post and answers
// with TwiML. It always produces a deliverable reply: when the flow is not
// available the fixed apology goes out instead of a bare error status.
func (s *Server) webhookHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseForm(); err != nil {
		slog.Warn("Server.webhookHandler: failed to parse form", "error", err)
		http.Error(w, "invalid form payload", http.StatusBadRequest)
		return
	}

	from := strings.TrimPrefix(r.PostFormValue("From"), "whatsapp:")
	body := r.PostFormValue("Body")
	if from == "" || body == "" {
		slog.Warn("Server.webhookHandler: missing required fields", "from_set", from != "", "body_set", body != "")
		http.Error(w, "From and Body are required", http.StatusBadRequest)
		return
	}

	if s.flow == nil {
		slog.Error("Server.webhookHandler: flow unavailable, sending apology", "from", from)
		writeTwiMLResponse(w, []string{flow.ApologyInternalError})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), turnTimeout)
	defer cancel()

	replies := s.flow.RunTurn(ctx, from, body)
	slog.Debug("Server.webhookHandler: turn complete", "from", from, "replyCount", len(replies.Replies), "source", replies.Source)
	writeTwiMLResponse(w, replies.Replies)
}

// healthHandler reports liveness.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]string{"status": "healthy"}))
}

// appointmentsHandler lists the locally recorded bookings.
func (s *Server) appointmentsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	appointments, err := s.store.ListAppointments()
	if err != nil {
		slog.Error("Server.appointmentsHandler: list failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("failed to list appointments"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(appointments))
}
