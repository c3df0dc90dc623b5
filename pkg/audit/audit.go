// Package audit maintains the append-only security-event ledger.
//
// The ledger is its own file with its own lock, independent of the document
// lock: audit writes must never contend with content mutations. Each entry
// is one JSON line; appends happen under the audit lock so two processes
// never interleave within a line.
//
// Audit durability is best-effort relative to the primary operation: append
// failures are reported to a fallback channel and never block the caller.
package audit

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/pressassist/pressd/internal/atomicfile"
	"github.com/pressassist/pressd/pkg/core"
	"github.com/pressassist/pressd/pkg/lockfile"
)

// ErrWrite wraps append failures handed to the fallback channel.
var ErrWrite = errors.New("audit: write failed")

// auditResource names the advisory lock guarding the ledger file.
const auditResource = "audit"

// DefaultLockTimeout bounds the wait for the audit lock. Kept short: a
// blocked audit write must not stall the primary operation for long.
const DefaultLockTimeout = 2 * time.Second

// Config holds the configuration for the audit log.
type Config struct {
	// Path is the ledger file location.
	Path  string
	Locks *lockfile.Manager
	// Logger receives append failures in addition to Fallback.
	Logger *slog.Logger
	// Clock supplies timestamps. Defaults to time.Now.
	Clock func() time.Time
	// Fallback, if set, receives every append failure.
	Fallback    func(error)
	LockTimeout time.Duration
}

// Log is the append-only ledger.
type Log struct {
	path        string
	locks       *lockfile.Manager
	logger      *slog.Logger
	clock       func() time.Time
	fallback    func(error)
	lockTimeout time.Duration
}

// New creates an audit log. The ledger file is created on first append.
func New(cfg Config) *Log {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Locks == nil {
		cfg.Locks = lockfile.NewManager(filepath.Dir(cfg.Path), cfg.Logger)
	}
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = DefaultLockTimeout
	}
	return &Log{
		path:        cfg.Path,
		locks:       cfg.Locks,
		logger:      cfg.Logger,
		clock:       cfg.Clock,
		fallback:    cfg.Fallback,
		lockTimeout: cfg.LockTimeout,
	}
}

// Append writes one entry to the ledger. The entry's timestamp is stamped
// from the clock if unset. Failures are reported to the fallback channel;
// they never propagate, so the primary operation is never blocked by a
// logging failure.
func (l *Log) Append(entry core.AuditEntry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = l.clock().UTC()
	} else {
		entry.Timestamp = entry.Timestamp.UTC()
	}

	line, err := json.Marshal(entry)
	if err != nil {
		l.report(fmt.Errorf("%w: encoding entry: %w", ErrWrite, err))
		return
	}
	line = append(line, '\n')

	handle, err := l.locks.Acquire(auditResource, l.lockTimeout)
	if err != nil {
		l.report(fmt.Errorf("%w: %w", ErrWrite, err))
		return
	}
	defer handle.Release()

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		l.report(fmt.Errorf("%w: %w", ErrWrite, err))
		return
	}
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		l.report(fmt.Errorf("%w: %w", ErrWrite, err))
		return
	}
	defer f.Close()

	if _, err := f.Write(line); err != nil {
		l.report(fmt.Errorf("%w: %w", ErrWrite, err))
	}
}

// Tail returns the n most recent entries, newest first. Malformed lines are
// skipped. A missing ledger is empty, not an error.
func (l *Log) Tail(n int) ([]core.AuditEntry, error) {
	entries, err := l.scan()
	if err != nil {
		return nil, err
	}
	if n > 0 && len(entries) > n {
		entries = entries[len(entries)-n:]
	}
	// Newest first for the admin viewer.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

// Since returns all entries stamped at or after t, in ledger (chronological)
// order.
func (l *Log) Since(t time.Time) ([]core.AuditEntry, error) {
	entries, err := l.scan()
	if err != nil {
		return nil, err
	}
	out := entries[:0]
	for _, e := range entries {
		if !e.Timestamp.Before(t) {
			out = append(out, e)
		}
	}
	return out, nil
}

// Prune rewrites the ledger keeping only entries younger than maxAge and
// returns the number removed. Lines that do not parse are kept; dropping
// them silently would defeat the ledger's purpose. Retention scheduling
// itself belongs to the caller.
func (l *Log) Prune(maxAge time.Duration) (int, error) {
	handle, err := l.locks.Acquire(auditResource, l.lockTimeout)
	if err != nil {
		return 0, err
	}
	defer handle.Release()

	raw, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("audit: reading ledger: %w", err)
	}

	cutoff := l.clock().UTC().Add(-maxAge)
	var kept bytes.Buffer
	removed := 0

	scanner := bufio.NewScanner(bytes.NewReader(raw))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var entry core.AuditEntry
		if err := json.Unmarshal(line, &entry); err == nil && entry.Timestamp.Before(cutoff) {
			removed++
			continue
		}
		kept.Write(line)
		kept.WriteByte('\n')
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("audit: scanning ledger: %w", err)
	}

	if removed == 0 {
		return 0, nil
	}
	if err := atomicfile.WriteFile(l.path, kept.Bytes(), 0o600); err != nil {
		return 0, fmt.Errorf("audit: rewriting ledger: %w", err)
	}
	return removed, nil
}

func (l *Log) scan() ([]core.AuditEntry, error) {
	raw, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("audit: reading ledger: %w", err)
	}

	var entries []core.AuditEntry
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var entry core.AuditEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("audit: scanning ledger: %w", err)
	}
	return entries, nil
}

func (l *Log) report(err error) {
	l.logger.Error("audit append failed", "error", err)
	if l.fallback != nil {
		l.fallback(err)
	}
}
