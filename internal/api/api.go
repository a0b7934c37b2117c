package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ldvarela/agendabot/internal/calendar"
	"github.com/ldvarela/agendabot/internal/flow"
	"github.com/ldvarela/agendabot/internal/genai"
	"github.com/ldvarela/agendabot/internal/messaging"
	"github.com/ldvarela/agendabot/internal/models"
	"github.com/ldvarela/agendabot/internal/sheets"
	"github.com/ldvarela/agendabot/internal/store"
)

// DefaultAddr is the listen address when none is configured.
const DefaultAddr = ":8080"

// Server HTTP timeouts.
const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 10 * time.Second
)

// TurnRunner processes one inbound message into a deliverable reply set.
// SchedulingFlow is the production implementation.
type TurnRunner interface {
	RunTurn(ctx context.Context, senderID, text string) models.ReplySet
}

// Opts holds configuration options for the API server.
type Opts struct {
	Addr string
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// Server hosts the webhook and admin endpoints.
type Server struct {
	addr  string
	flow  TurnRunner
	store store.Store
}

// NewServer creates the HTTP server around its dependencies. A nil flow puts
// the webhook in degraded mode: inbound messages get the fixed apology.
func NewServer(turnRunner TurnRunner, st store.Store, opts ...Option) *Server {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	return &Server{addr: cfg.Addr, flow: turnRunner, store: st}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/webhook/twilio", s.webhookHandler)
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/appointments", s.appointmentsHandler)
	return mux
}

// Serve runs the HTTP server until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server.Serve: listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		slog.Info("Server.Serve: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// RunConfig carries the per-component options Run wires together.
type RunConfig struct {
	DSN              string
	GenAIOpts        []genai.Option
	CalendarOpts     []calendar.Option
	SheetsOpts       []sheets.Option
	MessagingOpts    []messaging.Option
	FlowOpts         []flow.FlowOption
	APIOpts          []Option
	ReminderLead     time.Duration
	SystemPromptFile string
}

// Run wires the full application and serves until ctx is cancelled.
// Components that fail to initialize degrade the webhook to apology replies
// instead of preventing startup, so Twilio keeps getting valid TwiML.
func Run(ctx context.Context, cfg RunConfig) error {
	st, err := openStore(cfg.DSN)
	if err != nil {
		return err
	}
	defer st.Close()

	turnRunner, timer, err := buildFlow(ctx, st, cfg)
	if err != nil {
		return err
	}
	if timer != nil {
		defer timer.Stop()
	}

	srv := NewServer(turnRunner, st, cfg.APIOpts...)
	return srv.Serve(ctx)
}

// openStore selects the backend by DSN. An empty DSN degrades to the
// in-memory store; state then lives only for the process lifetime.
func openStore(dsn string) (store.Store, error) {
	if dsn == "" {
		slog.Warn("api.openStore: no DSN configured, using in-memory store")
		return store.NewInMemoryStore(), nil
	}
	switch store.DetectDSNType(dsn) {
	case "postgres":
		return store.NewPostgresStore(store.WithPostgresDSN(dsn))
	default:
		return store.NewSQLiteStore(store.WithSQLiteDSN(dsn))
	}
}

// buildFlow assembles the scheduling flow and its collaborators. Any
// missing collaborator yields a nil TurnRunner (degraded mode) and the
// reason is logged once at startup.
func buildFlow(ctx context.Context, st store.Store, cfg RunConfig) (TurnRunner, *flow.SimpleTimer, error) {
	genaiClient, err := genai.NewClient(cfg.GenAIOpts...)
	if err != nil {
		slog.Error("api.buildFlow: GenAI client unavailable, webhook degraded", "error", err)
		return nil, nil, nil
	}

	calSvc, err := calendar.NewGoogleService(ctx, cfg.CalendarOpts...)
	if err != nil {
		slog.Error("api.buildFlow: Calendar service unavailable, webhook degraded", "error", err)
		return nil, nil, nil
	}

	sheetSvc, err := sheets.NewGoogleService(ctx, cfg.SheetsOpts...)
	if err != nil {
		slog.Error("api.buildFlow: Sheets service unavailable, webhook degraded", "error", err)
		return nil, nil, nil
	}

	flowOpts := append([]flow.FlowOption{}, cfg.FlowOpts...)
	if cfg.SystemPromptFile != "" {
		flowOpts = append(flowOpts, flow.WithSystemPromptFile(cfg.SystemPromptFile))
	}

	// Reminders are best effort: without Twilio credentials the assistant
	// still books appointments, it just cannot send proactive messages.
	var timer *flow.SimpleTimer
	msgSvc, err := messaging.NewTwilioService(cfg.MessagingOpts...)
	if err != nil {
		slog.Warn("api.buildFlow: Twilio sender unavailable, reminders disabled", "error", err)
	} else {
		timer = flow.NewSimpleTimer()
		flowOpts = append(flowOpts, flow.WithReminderScheduler(flow.NewReminderScheduler(timer, msgSvc, cfg.ReminderLead)))
	}

	f := flow.NewSchedulingFlow(st, genaiClient,
		flow.NewAvailabilityTool(calSvc),
		flow.NewRegisterTool(calSvc, sheetSvc),
		flowOpts...,
	)
	if err := f.LoadSystemPrompt(); err != nil {
		return nil, timer, fmt.Errorf("failed to load system prompt: %w", err)
	}
	return f, timer, nil
}
