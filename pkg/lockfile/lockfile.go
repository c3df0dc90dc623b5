// Package lockfile provides cross-process mutual exclusion over named
// resources using OS advisory file locks.
//
// Each resource maps to an empty sentinel file inside the manager's
// directory. The file is only ever locked, never interpreted as data, so
// multiple worker processes sharing no memory can coordinate through it.
package lockfile

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// ErrTimeout is returned when a lock cannot be acquired within the caller's
// deadline. Contention is transient; callers may retry.
var ErrTimeout = errors.New("lockfile: timeout acquiring lock")

// retryInterval is the pause between non-blocking flock attempts.
const retryInterval = 10 * time.Millisecond

// Manager hands out advisory locks scoped per resource name, so the
// document lock, the audit-log lock and any future per-key locks stay
// independent of each other.
type Manager struct {
	dir    string
	logger *slog.Logger
}

// NewManager creates a lock manager rooted at dir. The directory is created
// on first acquire if absent.
func NewManager(dir string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{dir: dir, logger: logger}
}

// Handle represents a held lock. Release is idempotent.
type Handle struct {
	resource string
	file     *os.File

	mu       sync.Mutex
	released bool
}

// Acquire blocks up to timeout waiting for an exclusive advisory lock on the
// resource's lock file, creating the file on first use. It fails with
// ErrTimeout when the lock is still held elsewhere at the deadline.
func (m *Manager) Acquire(resource string, timeout time.Duration) (*Handle, error) {
	name := sanitize(resource)
	if name == "" {
		return nil, fmt.Errorf("lockfile: empty resource name")
	}

	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return nil, fmt.Errorf("lockfile: creating lock directory: %w", err)
	}

	path := filepath.Join(m.dir, name+".lock")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("lockfile: opening lock file: %w", err)
	}

	deadline := time.Now().Add(timeout)
	for {
		err := unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB)
		if err == nil {
			return &Handle{resource: resource, file: file}, nil
		}
		if !errors.Is(err, unix.EWOULDBLOCK) && !errors.Is(err, unix.EINTR) {
			_ = file.Close()
			return nil, fmt.Errorf("lockfile: flock %s: %w", resource, err)
		}
		if !time.Now().Before(deadline) {
			_ = file.Close()
			m.logger.Debug("lock acquisition timed out", "resource", resource, "timeout", timeout)
			return nil, fmt.Errorf("%w: %s", ErrTimeout, resource)
		}
		time.Sleep(retryInterval)
	}
}

// Release drops the lock and closes the sentinel file. Calling it more than
// once is a no-op.
func (h *Handle) Release() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.released {
		return nil
	}
	h.released = true

	if err := unix.Flock(int(h.file.Fd()), unix.LOCK_UN); err != nil {
		_ = h.file.Close()
		return fmt.Errorf("lockfile: unlock %s: %w", h.resource, err)
	}
	return h.file.Close()
}

// Resource returns the name the handle was acquired under.
func (h *Handle) Resource() string {
	return h.resource
}

// sanitize keeps resource names from escaping the lock directory.
func sanitize(resource string) string {
	r := strings.NewReplacer("/", "-", string(filepath.Separator), "-", "..", "-")
	return strings.TrimSpace(r.Replace(resource))
}
