// Package platform is the composition root wiring the persistence and
// security subsystems together.
package platform

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/pressassist/pressd/pkg/audit"
	"github.com/pressassist/pressd/pkg/hooks"
	"github.com/pressassist/pressd/pkg/lockfile"
	"github.com/pressassist/pressd/pkg/ratelimit"
	"github.com/pressassist/pressd/pkg/session"
	"github.com/pressassist/pressd/pkg/store"
)

// Runtime aggregates the wired subsystems over one data directory.
type Runtime struct {
	Store    *store.Store
	Sessions *session.Registry
	Limiter  *ratelimit.Limiter
	Audit    *audit.Log
	Hooks    *hooks.Dispatcher
	Locks    *lockfile.Manager
	Logger   *slog.Logger
}

// New wires a runtime rooted at dataDir. All subsystems share one lock
// manager so resource names stay in a single namespace.
func New(dataDir string, opts ...Option) (*Runtime, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("platform: data directory is required")
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	locks := lockfile.NewManager(dataDir, logger)

	st := store.New(store.Config{
		Path:          filepath.Join(dataDir, o.documentFile),
		Locks:         locks,
		Logger:        logger,
		Clock:         o.clock,
		LockTimeout:   o.lockTimeout,
		RetryAttempts: o.retryAttempts,
	})

	return &Runtime{
		Store: st,
		Sessions: session.New(session.Config{
			Store:  st,
			Logger: logger,
			Clock:  o.clock,
		}),
		Limiter: ratelimit.New(ratelimit.Config{
			Store:       st,
			MaxAttempts: o.rateLimitMax,
			Window:      o.rateLimitWindow,
			Logger:      logger,
			Clock:       o.clock,
		}),
		Audit: audit.New(audit.Config{
			Path:     filepath.Join(dataDir, o.auditFile),
			Locks:    locks,
			Logger:   logger,
			Clock:    o.clock,
			Fallback: o.auditFallback,
		}),
		Hooks:  hooks.New(logger),
		Locks:  locks,
		Logger: logger,
	}, nil
}
