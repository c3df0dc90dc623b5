// Package ratelimit throttles login failures per client key with a sliding
// window of attempt timestamps.
//
// Buckets are persisted through the document store, so the count is shared
// by all worker processes. The window slides over individual timestamps
// rather than fixed intervals; a fixed window would admit double the
// threshold across a boundary.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/pressassist/pressd/pkg/core"
	"github.com/pressassist/pressd/pkg/docpath"
	"github.com/pressassist/pressd/pkg/store"
)

// ErrExceeded signals that a key has used up its failure budget. It is
// expected control flow, surfaced to the end user as a throttling response.
var ErrExceeded = errors.New("ratelimit: too many attempts")

// LimitError carries how long the caller must wait before the oldest
// attempt ages out of the window. It unwraps to ErrExceeded.
type LimitError struct {
	RetryAfter time.Duration
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("ratelimit: too many attempts, retry after %s", e.RetryAfter.Round(time.Second))
}

func (e *LimitError) Unwrap() error {
	return ErrExceeded
}

// Defaults applied by New when the corresponding Config field is zero.
const (
	DefaultMaxAttempts = 5
	DefaultWindow      = 15 * time.Minute
)

// Config holds the configuration for the limiter.
type Config struct {
	Store *store.Store
	// MaxAttempts is the failure threshold within the window.
	MaxAttempts int
	// Window is the sliding-window length.
	Window time.Duration
	Logger *slog.Logger
	// Clock supplies timestamps. Defaults to time.Now.
	Clock func() time.Time
}

// Status reports a key's standing after a recorded failure.
type Status struct {
	Key      string
	Failures int
	// Remaining is how many more failures the key can absorb before it is
	// limited. Zero when already limited.
	Remaining int
	Limited   bool
	// RetryAfter is non-zero only when Limited.
	RetryAfter time.Duration
}

// Limiter tracks per-key failure buckets in the shared document.
type Limiter struct {
	store  *store.Store
	max    int
	window time.Duration
	logger *slog.Logger
	clock  func() time.Time
}

// New creates a limiter backed by the given store.
func New(cfg Config) *Limiter {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Limiter{
		store:  cfg.Store,
		max:    cfg.MaxAttempts,
		window: cfg.Window,
		logger: cfg.Logger,
		clock:  cfg.Clock,
	}
}

// RecordFailure appends the current timestamp to key's bucket, prunes
// entries older than the window and returns the key's standing.
func (l *Limiter) RecordFailure(ctx context.Context, key string) (Status, error) {
	now := l.clock().UTC()
	var status Status

	_, err := l.store.Save(ctx, func(doc core.Document) error {
		buckets := doc.Section(core.SectionAttempts)
		if buckets == nil {
			return fmt.Errorf("ratelimit: %w: %s", docpath.ErrTypeConflict, core.SectionAttempts)
		}
		stamps := append(l.bucket(buckets, key, now), now)
		buckets[key] = encodeBucket(stamps)
		status = l.status(key, stamps, now)
		return nil
	})
	if err != nil {
		return Status{}, err
	}

	if status.Limited {
		l.logger.Info("rate limit reached", "key", key, "failures", status.Failures)
	}
	return status, nil
}

// RecordSuccess clears key's bucket: a successful authentication forgives
// prior failures immediately.
func (l *Limiter) RecordSuccess(ctx context.Context, key string) error {
	_, err := l.store.Save(ctx, func(doc core.Document) error {
		delete(doc.Section(core.SectionAttempts), key)
		return nil
	})
	return err
}

// CheckAllowed evaluates key without mutating. It returns nil when the key
// is under the threshold and a *LimitError (unwrapping to ErrExceeded)
// otherwise.
func (l *Limiter) CheckAllowed(key string) error {
	stamps, now, err := l.load(key)
	if err != nil {
		return err
	}
	if status := l.status(key, stamps, now); status.Limited {
		return &LimitError{RetryAfter: status.RetryAfter}
	}
	return nil
}

// FailureCount returns key's windowed failure count without mutating.
func (l *Limiter) FailureCount(key string) (int, error) {
	stamps, _, err := l.load(key)
	if err != nil {
		return 0, err
	}
	return len(stamps), nil
}

func (l *Limiter) load(key string) ([]time.Time, time.Time, error) {
	doc, _, err := l.store.Load()
	if err != nil {
		return nil, time.Time{}, err
	}
	now := l.clock().UTC()
	return l.bucket(doc.Section(core.SectionAttempts), key, now), now, nil
}

// bucket decodes and prunes key's attempt timestamps. Malformed entries are
// dropped; an empty bucket is equivalent to an absent one.
func (l *Limiter) bucket(buckets map[string]any, key string, now time.Time) []time.Time {
	raw, ok := buckets[key].([]any)
	if !ok {
		return nil
	}

	cutoff := now.Add(-l.window)
	stamps := make([]time.Time, 0, len(raw))
	for _, v := range raw {
		s, ok := v.(string)
		if !ok {
			continue
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			continue
		}
		if t.After(cutoff) {
			stamps = append(stamps, t)
		}
	}
	sort.Slice(stamps, func(i, j int) bool { return stamps[i].Before(stamps[j]) })
	return stamps
}

func (l *Limiter) status(key string, stamps []time.Time, now time.Time) Status {
	status := Status{Key: key, Failures: len(stamps)}
	if len(stamps) >= l.max {
		status.Limited = true
		oldest := stamps[len(stamps)-l.max]
		status.RetryAfter = oldest.Add(l.window).Sub(now)
		if status.RetryAfter < 0 {
			status.RetryAfter = 0
		}
	} else {
		status.Remaining = l.max - len(stamps)
	}
	return status
}

func encodeBucket(stamps []time.Time) []any {
	out := make([]any, len(stamps))
	for i, t := range stamps {
		out[i] = t.Format(time.RFC3339Nano)
	}
	return out
}
