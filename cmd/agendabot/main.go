package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ldvarela/agendabot/internal/api"
	"github.com/ldvarela/agendabot/internal/calendar"
	"github.com/ldvarela/agendabot/internal/flow"
	"github.com/ldvarela/agendabot/internal/genai"
	"github.com/ldvarela/agendabot/internal/messaging"
	"github.com/ldvarela/agendabot/internal/sheets"
	"github.com/ldvarela/agendabot/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for agendabot state data
	DefaultStateDir = "/var/lib/agendabot"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "agendabot.db"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	cfg := buildRunConfig(flags)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Bootstrapping agendabot with configured modules")
	slog.Debug("Final configuration", "dsn_set", *flags.dbDSN != "", "api_addr", *flags.apiAddr, "system_prompt", *flags.systemPromptFile)
	if err := api.Run(ctx, cfg); err != nil {
		slog.Error("agendabot failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("agendabot exited successfully")
}

// Config holds environment configuration
type Config struct {
	DatabaseURL      string
	StateDir         string
	OpenAIKey        string
	OpenAIModel      string
	GoogleCreds      string
	CalendarID       string
	SheetID          string
	TwilioSID        string
	TwilioToken      string
	TwilioFrom       string
	APIAddr          string
	SystemPromptFile string
	ReminderLead     time.Duration
}

// Flags holds command line flag values
type Flags struct {
	dbDSN            *string
	openaiKey        *string
	openaiModel      *string
	googleCreds      *string
	calendarID       *string
	sheetID          *string
	twilioSID        *string
	twilioToken      *string
	twilioFrom       *string
	apiAddr          *string
	systemPromptFile *string
	reminderLead     *time.Duration
}

// initializeLogger sets up structured logging. DEBUG=1 enables debug level.
func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("DEBUG", false) {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		StateDir:         os.Getenv("AGENDABOT_STATE_DIR"),
		OpenAIKey:        os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:      os.Getenv("OPENAI_MODEL"),
		GoogleCreds:      os.Getenv("GOOGLE_CREDENTIALS_FILE"),
		CalendarID:       os.Getenv("GOOGLE_CALENDAR_ID"),
		SheetID:          os.Getenv("GOOGLE_SHEET_ID"),
		TwilioSID:        os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioToken:      os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFrom:       os.Getenv("TWILIO_FROM_NUMBER"),
		APIAddr:          os.Getenv("API_ADDR"),
		SystemPromptFile: os.Getenv("SYSTEM_PROMPT_FILE"),
		ReminderLead:     util.ParseDurationEnv("REMINDER_LEAD", flow.DefaultReminderLead),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No AGENDABOT_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}

	// If no database URL is provided, default to SQLite in the state directory
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"AGENDABOT_STATE_DIR", config.StateDir,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"GOOGLE_CREDENTIALS_FILE_SET", config.GoogleCreds != "",
		"GOOGLE_CALENDAR_ID_SET", config.CalendarID != "",
		"GOOGLE_SHEET_ID_SET", config.SheetID != "",
		"TWILIO_ACCOUNT_SID_SET", config.TwilioSID != "",
		"API_ADDR", config.APIAddr)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		dbDSN:            flag.String("db-dsn", config.DatabaseURL, "Database DSN (PostgreSQL URL or SQLite file path)"),
		openaiKey:        flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key"),
		openaiModel:      flag.String("openai-model", config.OpenAIModel, "OpenAI chat model override"),
		googleCreds:      flag.String("google-credentials", config.GoogleCreds, "Google service account credentials file"),
		calendarID:       flag.String("calendar-id", config.CalendarID, "Google Calendar ID"),
		sheetID:          flag.String("sheet-id", config.SheetID, "Google Sheets spreadsheet ID"),
		twilioSID:        flag.String("twilio-account-sid", config.TwilioSID, "Twilio account SID"),
		twilioToken:      flag.String("twilio-auth-token", config.TwilioToken, "Twilio auth token"),
		twilioFrom:       flag.String("twilio-from", config.TwilioFrom, "Twilio WhatsApp sender number"),
		apiAddr:          flag.String("addr", config.APIAddr, "API server listen address"),
		systemPromptFile: flag.String("system-prompt", config.SystemPromptFile, "System prompt file (overrides the embedded default)"),
		reminderLead:     flag.Duration("reminder-lead", config.ReminderLead, "How long before a slot the reminder is sent"),
	}
	flag.Parse()
	return flags
}

// buildRunConfig maps flags onto per-component options.
func buildRunConfig(flags Flags) api.RunConfig {
	cfg := api.RunConfig{
		DSN:              *flags.dbDSN,
		ReminderLead:     *flags.reminderLead,
		SystemPromptFile: *flags.systemPromptFile,
	}

	if *flags.openaiKey != "" {
		cfg.GenAIOpts = append(cfg.GenAIOpts, genai.WithAPIKey(*flags.openaiKey))
	}
	if *flags.openaiModel != "" {
		cfg.GenAIOpts = append(cfg.GenAIOpts, genai.WithModel(*flags.openaiModel))
	}

	if *flags.googleCreds != "" {
		cfg.CalendarOpts = append(cfg.CalendarOpts, calendar.WithCredentialsFile(*flags.googleCreds))
		cfg.SheetsOpts = append(cfg.SheetsOpts, sheets.WithCredentialsFile(*flags.googleCreds))
	}
	if *flags.calendarID != "" {
		cfg.CalendarOpts = append(cfg.CalendarOpts, calendar.WithCalendarID(*flags.calendarID))
	}
	if *flags.sheetID != "" {
		cfg.SheetsOpts = append(cfg.SheetsOpts, sheets.WithSpreadsheetID(*flags.sheetID))
	}

	if *flags.twilioSID != "" {
		cfg.MessagingOpts = append(cfg.MessagingOpts, messaging.WithAccountSID(*flags.twilioSID))
	}
	if *flags.twilioToken != "" {
		cfg.MessagingOpts = append(cfg.MessagingOpts, messaging.WithAuthToken(*flags.twilioToken))
	}
	if *flags.twilioFrom != "" {
		cfg.MessagingOpts = append(cfg.MessagingOpts, messaging.WithFromWhats(*flags.twilioFrom))
	}

	if *flags.apiAddr != "" {
		cfg.APIOpts = append(cfg.APIOpts, api.WithAddr(*flags.apiAddr))
	}
	return cfg
}
