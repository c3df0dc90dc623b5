// Package store implements the atomic, crash-consistent document store.
//
// All CMS state lives in one JSON document on disk. Mutations run under a
// cross-process advisory lock and commit through an atomic temp-write-rename,
// so concurrent worker processes never lose updates and readers never observe
// a half-written document.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/pressassist/pressd/internal/atomicfile"
	"github.com/pressassist/pressd/pkg/core"
	"github.com/pressassist/pressd/pkg/lockfile"
)

// Store errors.
var (
	// ErrCorruptDocument means the file on disk is not a well-formed
	// document. The store never substitutes a default; the operator must
	// intervene (e.g. restore a backup).
	ErrCorruptDocument = errors.New("store: corrupt document")
	// ErrNotFound means the document file does not exist yet.
	ErrNotFound = errors.New("store: document not found")
	// ErrAlreadyInitialized guards Initialize against overwriting live data.
	ErrAlreadyInitialized = errors.New("store: document already initialized")
	// ErrInvalidSnapshot rejects restore payloads that do not parse or lack
	// the required top-level sections.
	ErrInvalidSnapshot = errors.New("store: invalid snapshot")
)

// documentResource names the advisory lock guarding the document file.
const documentResource = "document"

// Defaults applied by New when the corresponding Config field is zero.
const (
	DefaultLockTimeout   = 5 * time.Second
	defaultRetryAttempts = 3
	filePerms            = 0o644
)

// Config holds the configuration for the document store.
type Config struct {
	// Path is the location of the document file.
	Path string
	// Locks coordinates cross-process access. If nil, a manager rooted in
	// the document's directory is created.
	Locks *lockfile.Manager
	// Logger receives operational diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
	// Clock supplies timestamps. Defaults to time.Now.
	Clock func() time.Time
	// LockTimeout bounds how long one Save waits for the document lock.
	LockTimeout time.Duration
	// RetryAttempts bounds internal retries on lock contention before the
	// timeout surfaces to the caller.
	RetryAttempts int
}

// Store is the single-document persistence layer.
type Store struct {
	path          string
	locks         *lockfile.Manager
	logger        *slog.Logger
	clock         func() time.Time
	lockTimeout   time.Duration
	retryAttempts int
}

// New creates a document store. It performs no I/O; the file is touched on
// the first Initialize, Save or Restore.
func New(cfg Config) *Store {
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
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = defaultRetryAttempts
	}
	return &Store{
		path:          cfg.Path,
		locks:         cfg.Locks,
		logger:        cfg.Logger,
		clock:         cfg.Clock,
		lockTimeout:   cfg.LockTimeout,
		retryAttempts: cfg.RetryAttempts,
	}
}

// Path returns the document file location.
func (s *Store) Path() string {
	return s.path
}

// Exists reports whether the document file is present.
func (s *Store) Exists() bool {
	info, err := os.Stat(s.path)
	return err == nil && !info.IsDir()
}

// Load reads and parses the current committed document. It never blocks:
// commits are atomic swaps, so the file always holds a complete version.
// The returned document is a private copy of the on-disk state.
func (s *Store) Load() (core.Document, int64, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, fmt.Errorf("%w: %s", ErrNotFound, filepath.Base(s.path))
		}
		return nil, 0, fmt.Errorf("store: reading document: %w", err)
	}

	doc, err := decode(raw)
	if err != nil {
		return nil, 0, err
	}
	return doc, doc.Version(), nil
}

// Save runs one read-modify-write cycle under the document lock: it reloads
// the latest on-disk version, applies mutate to it, increments the version
// counter and commits via atomic replace. Lock contention is retried a
// bounded number of times with jitter before ErrTimeout reaches the caller.
//
// Once the lock is held the write either completes or the process dies; the
// prior committed file survives either way.
func (s *Store) Save(ctx context.Context, mutate func(core.Document) error) (core.Document, error) {
	var lastErr error
	for attempt := 0; attempt < s.retryAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		doc, err := s.commit(mutate)
		if err == nil {
			return doc, nil
		}
		if !errors.Is(err, lockfile.ErrTimeout) {
			return nil, err
		}
		lastErr = err
		s.logger.Debug("document lock contended, retrying", "attempt", attempt+1)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(jitter()):
		}
	}
	return nil, lastErr
}

func (s *Store) commit(mutate func(core.Document) error) (core.Document, error) {
	handle, err := s.locks.Acquire(documentResource, s.lockTimeout)
	if err != nil {
		return nil, err
	}
	defer handle.Release()

	doc, version, err := s.Load()
	if err != nil {
		return nil, err
	}

	if err := mutate(doc); err != nil {
		return nil, err
	}

	doc.SetVersion(version + 1)
	if config := doc.Section(core.SectionConfig); config != nil {
		config["last_modified"] = s.clock().UTC().Format(time.RFC3339)
	}

	if err := s.write(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Snapshot returns the raw bytes of the current committed document, after
// verifying they parse. Consumed by the backup collaborator.
func (s *Store) Snapshot() ([]byte, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, filepath.Base(s.path))
		}
		return nil, fmt.Errorf("store: reading document: %w", err)
	}
	if _, err := decode(raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// Restore replaces the document with a snapshot, going through the same
// locked atomic-replace path as Save. The incoming version is advanced past
// the current one so the commit counter stays monotonic across a restore.
func (s *Store) Restore(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	doc, err := decode(data)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidSnapshot, "payload is not a well-formed document")
	}
	for _, section := range []string{core.SectionConfig, core.SectionPages, core.SectionBlocks} {
		if _, ok := doc[section]; !ok {
			return fmt.Errorf("%w: missing %s section", ErrInvalidSnapshot, section)
		}
	}

	handle, err := s.locks.Acquire(documentResource, s.lockTimeout)
	if err != nil {
		return err
	}
	defer handle.Release()

	var current int64
	if _, version, err := s.Load(); err == nil {
		current = version
	}
	if doc.Version() <= current {
		doc.SetVersion(current + 1)
	}

	s.logger.Info("restoring document from snapshot", "version", doc.Version())
	return s.write(doc)
}

func (s *Store) write(doc core.Document) error {
	raw, err := encode(doc)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("store: creating data directory: %w", err)
	}
	if err := atomicfile.WriteFile(s.path, raw, filePerms); err != nil {
		return fmt.Errorf("store: committing document: %w", err)
	}
	return nil
}

func decode(raw []byte) (core.Document, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var tree map[string]any
	if err := dec.Decode(&tree); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptDocument, err)
	}
	// Trailing garbage after the object also counts as corruption.
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data after document", ErrCorruptDocument)
	}
	return core.Document(tree), nil
}

func encode(doc core.Document) ([]byte, error) {
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("store: encoding document: %w", err)
	}
	return append(raw, '\n'), nil
}

// jitter spreads out retry attempts so contending workers do not stampede.
func jitter() time.Duration {
	return time.Duration(10+rand.Intn(40)) * time.Millisecond
}
