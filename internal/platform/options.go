package platform

import (
	"log/slog"
	"time"
)

// options holds the internal configuration for the pressd runtime.
type options struct {
	logger          *slog.Logger
	clock           func() time.Time
	documentFile    string
	auditFile       string
	lockTimeout     time.Duration
	retryAttempts   int
	rateLimitMax    int
	rateLimitWindow time.Duration
	auditFallback   func(error)
}

// Option defines a functional option for configuring the runtime.
type Option func(*options)

// defaultOptions returns the default configuration.
func defaultOptions() *options {
	return &options{
		documentFile: "db.json",
		auditFile:    "audit.log",
		clock:        time.Now,
	}
}

// WithLogger sets the logger for all subsystems.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithClock injects the time source used for session expiry, rate-limit
// windows and audit timestamps. Defaults to time.Now.
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithDocumentFile overrides the document filename inside the data
// directory.
func WithDocumentFile(name string) Option {
	return func(o *options) {
		if name != "" {
			o.documentFile = name
		}
	}
}

// WithAuditFile overrides the audit ledger filename inside the data
// directory.
func WithAuditFile(name string) Option {
	return func(o *options) {
		if name != "" {
			o.auditFile = name
		}
	}
}

// WithLockTimeout bounds how long a mutation waits for the document lock.
func WithLockTimeout(timeout time.Duration) Option {
	return func(o *options) {
		o.lockTimeout = timeout
	}
}

// WithRetryAttempts bounds internal retries on lock contention.
func WithRetryAttempts(attempts int) Option {
	return func(o *options) {
		o.retryAttempts = attempts
	}
}

// WithRateLimit sets the failure threshold and sliding-window length for
// login throttling.
func WithRateLimit(maxAttempts int, window time.Duration) Option {
	return func(o *options) {
		o.rateLimitMax = maxAttempts
		o.rateLimitWindow = window
	}
}

// WithAuditFallback registers a callback receiving audit append failures,
// which never propagate to the operation that emitted the entry.
func WithAuditFallback(fn func(error)) Option {
	return func(o *options) {
		o.auditFallback = fn
	}
}
