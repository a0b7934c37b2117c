package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/ldvarela/agendabot/internal/flow"
	"github.com/ldvarela/agendabot/internal/models"
	"github.com/ldvarela/agendabot/internal/store"
)

// stubRunner returns a fixed reply set and records the inputs it saw.
type stubRunner struct {
	replies    models.ReplySet
	lastSender string
	lastText   string
}

func (s *stubRunner) RunTurn(ctx context.Context, senderID, text string) models.ReplySet {
	s.lastSender = senderID
	s.lastText = text
	return s.replies
}

func postWebhook(t *testing.T, srv *Server, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook/twilio", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func TestWebhookHandlerRepliesTwiML(t *testing.T) {
	runner := &stubRunner{replies: models.ReplySet{
		Replies: []string{"Olá!", "Como posso ajudar?"},
		Source:  models.ReplySourceStructured,
	}}
	srv := NewServer(runner, store.NewInMemoryStore())

	w := postWebhook(t, srv, url.Values{
		"From": {"whatsapp:+5511999990000"},
		"Body": {"oi"},
	})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/xml" {
		t.Errorf("Content-Type = %q, want application/xml", ct)
	}
	body := w.Body.String()
	if strings.Count(body, "<Message>") != 2 {
		t.Errorf("expected 2 messages in %q", body)
	}
	if runner.lastSender != "+5511999990000" {
		t.Errorf("whatsapp: prefix not stripped, sender = %q", runner.lastSender)
	}
	if runner.lastText != "oi" {
		t.Errorf("body not forwarded: %q", runner.lastText)
	}
}

func TestWebhookHandlerMissingFields(t *testing.T) {
	srv := NewServer(&stubRunner{}, store.NewInMemoryStore())

	w := postWebhook(t, srv, url.Values{"From": {"whatsapp:+5511999990000"}})
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing Body: status = %d, want 400", w.Code)
	}

	w = postWebhook(t, srv, url.Values{"Body": {"oi"}})
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing From: status = %d, want 400", w.Code)
	}
}

func TestWebhookHandlerMethodNotAllowed(t *testing.T) {
	srv := NewServer(&stubRunner{}, store.NewInMemoryStore())
	req := httptest.NewRequest(http.MethodGet, "/webhook/twilio", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", w.Code)
	}
	if allow := w.Header().Get("Allow"); allow != http.MethodPost {
		t.Errorf("Allow = %q, want POST", allow)
	}
}

func TestWebhookHandlerDegradedMode(t *testing.T) {
	// A nil flow must still answer valid TwiML with the apology, not a 500.
	srv := NewServer(nil, store.NewInMemoryStore())

	w := postWebhook(t, srv, url.Values{
		"From": {"whatsapp:+5511999990000"},
		"Body": {"oi"},
	})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), flow.ApologyInternalError) {
		t.Errorf("expected apology in degraded mode, got %q", w.Body.String())
	}
}

func TestHealthHandler(t *testing.T) {
	srv := NewServer(&stubRunner{}, store.NewInMemoryStore())
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "healthy") {
		t.Errorf("unexpected health body: %q", w.Body.String())
	}
}

func TestAppointmentsHandler(t *testing.T) {
	st := store.NewInMemoryStore()
	if err := st.SaveAppointment(models.Appointment{ID: "appt-1", FullName: "Maria Souza"}); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	srv := NewServer(&stubRunner{}, st)

	req := httptest.NewRequest(http.MethodGet, "/appointments", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, `"status":"ok"`) || !strings.Contains(body, "Maria Souza") {
		t.Errorf("unexpected body: %q", body)
	}
}
