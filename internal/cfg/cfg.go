package cfg

import (
	"errors"
	"flag"
	"fmt"
)

// Config adds breachwatch-specific configuration fields to the
// common cfg.Registerable and cfg.Validatable interfaces
type Config struct {
	DrainSeconds          int
	ShutdownBudgetSeconds int
	APIPort               int
	APIToken              string
	DatabaseURL           string
	BreachEndpoint        string
	BreachAPIKey          string
	WorkOrderEndpoint     string
	WorkOrderAPIKey       string
	MailWebhookURL        string
	SweepIntervalSeconds  int
	PollIntervalSeconds   int
}

// RegisterFlags binds Config fields to the given FlagSet with defaults inline
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.DrainSeconds, "drain-seconds", 60, "seconds to wait for in-flight requests to drain before shutdown (1..300)")
	fs.IntVar(&c.ShutdownBudgetSeconds, "shutdown-budget-seconds", 90, "total seconds for component shutdown after drain (1..300)")
	fs.IntVar(&c.APIPort, "http-port", 8080, "API listen TCP port (1..65535)")
	fs.StringVar(&c.APIToken, "api-token", "", "bearer token required on API routes (empty = no auth)")
	fs.StringVar(&c.DatabaseURL, "database-url", "", "PostgreSQL connection URL (empty = in-memory store)")
	fs.StringVar(&c.BreachEndpoint, "breach-endpoint", "", "base URL of the breach intelligence lookup service")
	fs.StringVar(&c.BreachAPIKey, "breach-api-key", "", "API key for the breach intelligence lookup service")
	fs.StringVar(&c.WorkOrderEndpoint, "work-order-endpoint", "", "base URL of the work order status service")
	fs.StringVar(&c.WorkOrderAPIKey, "work-order-api-key", "", "API key for the work order status service")
	fs.StringVar(&c.MailWebhookURL, "mail-webhook-url", "", "email relay webhook URL for notifications (empty = notifications off)")
	fs.IntVar(&c.SweepIntervalSeconds, "sweep-interval-seconds", 21600, "seconds between scheduled breach sweeps (0 = scheduled sweeps off)")
	fs.IntVar(&c.PollIntervalSeconds, "poll-interval-seconds", 30, "seconds between work order status polls (1..3600)")
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

	// Breach provider credentials are required before any sweep can run
	if c.BreachEndpoint == "" {
		errs = append(errs, errors.New("BREACH_ENDPOINT is required"))
	}
	if c.BreachAPIKey == "" {
		errs = append(errs, errors.New("BREACH_API_KEY is required"))
	}

	// Work order endpoint is required for the poller
	if c.WorkOrderEndpoint == "" {
		errs = append(errs, errors.New("WORK_ORDER_ENDPOINT is required"))
	}

	if c.SweepIntervalSeconds < 0 {
		errs = append(errs, fmt.Errorf("invalid SWEEP_INTERVAL_SECONDS %d (must be >= 0)", c.SweepIntervalSeconds))
	}
	if c.PollIntervalSeconds <= 0 || c.PollIntervalSeconds > 3600 {
		errs = append(errs, fmt.Errorf("invalid POLL_INTERVAL_SECONDS %d (must be 1..3600)", c.PollIntervalSeconds))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
