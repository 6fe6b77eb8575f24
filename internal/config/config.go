package config

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// MismatchPolicy decides how an amount mismatch is reported to the payment gateway.
type MismatchPolicy string

const (
	// MismatchAck acknowledges the delivery so the gateway stops retrying.
	MismatchAck MismatchPolicy = "ack"
	// MismatchRetry answers with a client error so the gateway redelivers.
	MismatchRetry MismatchPolicy = "retry"
)

// Config holds application level configuration loaded from environment and flags.
type Config struct {
	RunAddress      string
	DatabaseURI     string
	// WebhookAPIKey is the plain secret or its bcrypt hash. A hash makes every
	// request, forged ones included, pay a full bcrypt compare before it is
	// rejected; high-volume endpoints should configure the plain secret.
	WebhookAPIKey   string
	MismatchPolicy  MismatchPolicy
	LogLevel        slog.Level
	ShutdownTimeout time.Duration

	ExpirySweepInterval time.Duration
	ExpiryBatchSize     int

	RabbitURL        string
	PaymentsExchange string
	OutboxInterval   time.Duration
	OutboxBatch      int

	SepayAPIURL        string
	SepayAPIToken      string
	SepayAccountNumber string
	BackfillInterval   time.Duration
	WorkerPoolSize     int
}

const (
	defaultRunAddress          = ":8080"
	defaultMismatchPolicy      = MismatchAck
	defaultLogLevel            = "info"
	defaultShutdownTimeout     = 10 * time.Second
	defaultExpirySweepInterval = time.Minute
	defaultExpiryBatchSize     = 100
	defaultPaymentsExchange    = "payments.events"
	defaultOutboxInterval      = 2 * time.Second
	defaultOutboxBatch         = 32
	defaultSepayAPIURL         = "https://my.sepay.vn"
	defaultBackfillInterval    = time.Minute
	defaultWorkerPoolSize      = 4
)

// Load parses configuration from flags and environment variables.
func Load() (*Config, error) {
	return load(os.Args[1:], os.LookupEnv)
}

type envLookup func(string) (string, bool)

func load(args []string, lookup envLookup) (*Config, error) {
	cfg := &Config{
		RunAddress:          getString(lookup, "RUN_ADDRESS", defaultRunAddress),
		DatabaseURI:         getString(lookup, "DATABASE_URI", ""),
		WebhookAPIKey:       getString(lookup, "WEBHOOK_API_KEY", ""),
		ShutdownTimeout:     getDuration(lookup, "SHUTDOWN_TIMEOUT", defaultShutdownTimeout),
		ExpirySweepInterval: getDuration(lookup, "EXPIRY_SWEEP_INTERVAL", defaultExpirySweepInterval),
		ExpiryBatchSize:     getInt(lookup, "EXPIRY_BATCH_SIZE", defaultExpiryBatchSize),
		RabbitURL:           getString(lookup, "RABBIT_URL", ""),
		PaymentsExchange:    getString(lookup, "PAYMENTS_EXCHANGE", defaultPaymentsExchange),
		OutboxInterval:      getDuration(lookup, "OUTBOX_INTERVAL", defaultOutboxInterval),
		OutboxBatch:         getInt(lookup, "OUTBOX_BATCH", defaultOutboxBatch),
		SepayAPIURL:         getString(lookup, "SEPAY_API_URL", defaultSepayAPIURL),
		SepayAPIToken:       getString(lookup, "SEPAY_API_TOKEN", ""),
		SepayAccountNumber:  getString(lookup, "SEPAY_ACCOUNT_NUMBER", ""),
		BackfillInterval:    getDuration(lookup, "BACKFILL_INTERVAL", defaultBackfillInterval),
		WorkerPoolSize:      getInt(lookup, "WORKER_POOL_SIZE", defaultWorkerPoolSize),
	}

	fs := flag.NewFlagSet("storepay", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		policyStr          = getString(lookup, "MISMATCH_POLICY", string(defaultMismatchPolicy))
		logLevelStr        = getString(lookup, "LOG_LEVEL", defaultLogLevel)
		shutdownTimeoutStr = cfg.ShutdownTimeout.String()
	)

	fs.StringVar(&cfg.RunAddress, "a", cfg.RunAddress, "HTTP server listen address")
	fs.StringVar(&cfg.DatabaseURI, "d", cfg.DatabaseURI, "PostgreSQL DSN")
	fs.StringVar(&cfg.WebhookAPIKey, "k", cfg.WebhookAPIKey, "Webhook API key or its bcrypt hash")
	fs.StringVar(&policyStr, "mismatch-policy", policyStr, "Amount mismatch policy: ack or retry")
	fs.StringVar(&logLevelStr, "log-level", logLevelStr, "Log level: debug, info, warn, error")
	fs.StringVar(&shutdownTimeoutStr, "shutdown-timeout", shutdownTimeoutStr, "Graceful shutdown timeout")
	fs.StringVar(&cfg.RabbitURL, "rabbit", cfg.RabbitURL, "RabbitMQ URL for payment events")
	fs.IntVar(&cfg.WorkerPoolSize, "worker-pool", cfg.WorkerPoolSize, "Number of concurrent backfill workers")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	var err error

	if cfg.ShutdownTimeout, err = time.ParseDuration(shutdownTimeoutStr); err != nil {
		return nil, fmt.Errorf("invalid shutdown timeout: %w", err)
	}

	if cfg.MismatchPolicy, err = parsePolicy(policyStr); err != nil {
		return nil, err
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(logLevelStr)); err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	if keyFile, ok := lookup("WEBHOOK_API_KEY_FILE"); ok && keyFile != "" {
		content, err := os.ReadFile(keyFile)
		if err != nil {
			return nil, fmt.Errorf("read webhook api key file: %w", err)
		}
		cfg.WebhookAPIKey = strings.TrimSpace(string(content))
	}

	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}

	if cfg.ExpirySweepInterval <= 0 {
		cfg.ExpirySweepInterval = defaultExpirySweepInterval
	}

	if cfg.ExpiryBatchSize <= 0 {
		cfg.ExpiryBatchSize = defaultExpiryBatchSize
	}

	if cfg.OutboxInterval <= 0 {
		cfg.OutboxInterval = defaultOutboxInterval
	}

	if cfg.OutboxBatch <= 0 {
		cfg.OutboxBatch = defaultOutboxBatch
	}

	if cfg.BackfillInterval <= 0 {
		cfg.BackfillInterval = defaultBackfillInterval
	}

	if cfg.WorkerPoolSize <= 0 {
		cfg.WorkerPoolSize = defaultWorkerPoolSize
	}

	if cfg.DatabaseURI == "" {
		return nil, fmt.Errorf("database URI must be provided")
	}

	if cfg.WebhookAPIKey == "" {
		return nil, fmt.Errorf("webhook api key must be provided")
	}

	return cfg, nil
}

// BackfillEnabled reports whether the aggregator API is configured for polling.
func (c *Config) BackfillEnabled() bool {
	return c.SepayAPIToken != ""
}

func parsePolicy(raw string) (MismatchPolicy, error) {
	switch p := MismatchPolicy(strings.ToLower(strings.TrimSpace(raw))); p {
	case MismatchAck, MismatchRetry:
		return p, nil
	default:
		return "", fmt.Errorf("invalid mismatch policy %q", raw)
	}
}

func getString(lookup envLookup, key, def string) string {
	if v, ok := lookup(key); ok && v != "" {
		return v
	}
	return def
}

func getInt(lookup envLookup, key string, def int) int {
	if v, ok := lookup(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getDuration(lookup envLookup, key string, def time.Duration) time.Duration {
	if v, ok := lookup(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
