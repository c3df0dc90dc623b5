package pressd

import (
	"log/slog"
	"time"

	"github.com/pressassist/pressd/internal/platform"
	"github.com/pressassist/pressd/pkg/core"
	"github.com/pressassist/pressd/pkg/hooks"
)

// --- Types ---

// Document is a public alias for the root persisted structure.
type Document = core.Document

// Session is a public alias for the session record.
type Session = core.Session

// AuditEntry is a public alias for the ledger record.
type AuditEntry = core.AuditEntry

// Manifest is a public alias for the plugin capability manifest.
type Manifest = hooks.Manifest

// Service aggregates the wired subsystems over one data directory.
type Service = platform.Runtime

// Config is the environment/file deployment configuration.
type Config = platform.Config

// --- Configuration ---

// Option defines a functional option for configuring the service.
type Option = platform.Option

// WithLogger sets the logger for all subsystems.
func WithLogger(logger *slog.Logger) Option {
	return platform.WithLogger(logger)
}

// WithClock injects the time source used across subsystems.
func WithClock(clock func() time.Time) Option {
	return platform.WithClock(clock)
}

// WithDocumentFile overrides the document filename inside the data directory.
func WithDocumentFile(name string) Option {
	return platform.WithDocumentFile(name)
}

// WithAuditFile overrides the audit ledger filename inside the data directory.
func WithAuditFile(name string) Option {
	return platform.WithAuditFile(name)
}

// WithLockTimeout bounds how long a mutation waits for the document lock.
func WithLockTimeout(timeout time.Duration) Option {
	return platform.WithLockTimeout(timeout)
}

// WithRetryAttempts bounds internal retries on lock contention.
func WithRetryAttempts(attempts int) Option {
	return platform.WithRetryAttempts(attempts)
}

// WithRateLimit sets the login-throttling threshold and window.
func WithRateLimit(maxAttempts int, window time.Duration) Option {
	return platform.WithRateLimit(maxAttempts, window)
}

// WithAuditFallback registers a callback receiving audit append failures.
func WithAuditFallback(fn func(error)) Option {
	return platform.WithAuditFallback(fn)
}

// --- Factory ---

// New wires a pressd service rooted at dataDir.
func New(dataDir string, opts ...Option) (*Service, error) {
	return platform.New(dataDir, opts...)
}

// LoadConfig builds the deployment configuration from the environment,
// overlaid by the YAML file at path when present.
func LoadConfig(path string) (Config, error) {
	return platform.LoadConfig(path)
}

// NewFromConfig wires a service from a loaded configuration. Explicit
// options take precedence over the configuration.
func NewFromConfig(cfg Config, opts ...Option) (*Service, error) {
	return platform.New(cfg.DataDir, append(cfg.Options(), opts...)...)
}
