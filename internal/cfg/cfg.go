package cfg

import (
	"errors"
	"flag"
	"fmt"
)

// Config adds service-specific configuration fields to the
// common cfg.Registerable and cfg.Validatable interfaces
type Config struct {
	DrainSeconds          int
	ShutdownBudgetSeconds int
	APIPort               int
	DatabaseURL           string
	SlackWebhookURL       string
	ClaudeAPIKey          string
	ClaudeModel           string
	ReopenOnFiring        bool
	BusBuffer             int
	NotifyTimeoutSeconds  int
	WSWriteTimeoutSeconds int
}

// RegisterFlags binds Config fields to the given FlagSet with defaults inline
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.DrainSeconds, "drain-seconds", 60, "seconds to wait for in-flight requests to drain before shutdown (1..300)")
	fs.IntVar(&c.ShutdownBudgetSeconds, "shutdown-budget-seconds", 90, "total seconds for component shutdown after drain (1..300)")
	fs.IntVar(&c.APIPort, "http-port", 8080, "API listen TCP port (1..65535)")
	fs.StringVar(&c.DatabaseURL, "database-url", "", "PostgreSQL connection URL (empty = in-memory store)")
	fs.StringVar(&c.SlackWebhookURL, "slack-webhook-url", "", "Slack webhook URL for notifications (empty = notifications disabled)")
	fs.StringVar(&c.ClaudeAPIKey, "claude-api-key", "", "API key for Claude incident summaries (empty = summaries disabled)")
	fs.StringVar(&c.ClaudeModel, "claude-model", "claude-sonnet-4-20250514", "Claude model to use")
	fs.BoolVar(&c.ReopenOnFiring, "reopen-on-firing", true, "allow a firing event to reopen a resolved incident")
	fs.IntVar(&c.BusBuffer, "bus-buffer", 64, "per-subscriber buffer of the incident event bus (1..4096)")
	fs.IntVar(&c.NotifyTimeoutSeconds, "notify-timeout-seconds", 15, "per-notification delivery timeout (1..120)")
	fs.IntVar(&c.WSWriteTimeoutSeconds, "ws-write-timeout-seconds", 10, "websocket write timeout (1..60)")
}

// Validate checks all configuration fields for correctness.
// It returns an error if any field is invalid, or nil if all fields are valid.
func (c *Config) Validate() error {
	var errs []error

	// Drain and shutdown budgets
	if c.DrainSeconds <= 0 || c.DrainSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid DRAIN_SECONDS %d (must be 1..300)", c.DrainSeconds))
	}
	if c.ShutdownBudgetSeconds <= 0 || c.ShutdownBudgetSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid SHUTDOWN_BUDGET_SECONDS %d (must be 1..300)", c.ShutdownBudgetSeconds))
	}

	// Shutdown budget must be greater than drain time
	if c.ShutdownBudgetSeconds <= c.DrainSeconds {
		errs = append(errs, fmt.Errorf("SHUTDOWN_BUDGET_SECONDS %d must be greater than DRAIN_SECONDS %d", c.ShutdownBudgetSeconds, c.DrainSeconds))
	}

	// API port must be valid TCP port number
	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.APIPort))
	}

	// Claude summaries ride on Slack delivery; a key without a webhook is a
	// config mistake worth failing fast on
	if c.ClaudeAPIKey != "" && c.SlackWebhookURL == "" {
		errs = append(errs, errors.New("CLAUDE_API_KEY is set but SLACK_WEBHOOK_URL is empty"))
	}
	if c.ClaudeAPIKey != "" && c.ClaudeModel == "" {
		errs = append(errs, errors.New("CLAUDE_MODEL is required when CLAUDE_API_KEY is set"))
	}

	if c.BusBuffer <= 0 || c.BusBuffer > 4096 {
		errs = append(errs, fmt.Errorf("invalid BUS_BUFFER %d (must be 1..4096)", c.BusBuffer))
	}
	if c.NotifyTimeoutSeconds <= 0 || c.NotifyTimeoutSeconds > 120 {
		errs = append(errs, fmt.Errorf("invalid NOTIFY_TIMEOUT_SECONDS %d (must be 1..120)", c.NotifyTimeoutSeconds))
	}
	if c.WSWriteTimeoutSeconds <= 0 || c.WSWriteTimeoutSeconds > 60 {
		errs = append(errs, fmt.Errorf("invalid WS_WRITE_TIMEOUT_SECONDS %d (must be 1..60)", c.WSWriteTimeoutSeconds))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
