package ratelimit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/pressassist/pressd/pkg/core"
	"github.com/pressassist/pressd/pkg/docpath"
	"github.com/pressassist/pressd/pkg/store"
)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time {
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func newTestLimiter(t *testing.T) (*Limiter, *testClock) {
	t.Helper()

	clock := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := store.New(store.Config{
		Path:   filepath.Join(t.TempDir(), "db.json"),
		Logger: logger,
		Clock:  clock.Now,
	})
	if _, err := st.Initialize("slug", "hash"); err != nil {
		t.Fatalf("initialize failed: %v", err)
	}

	l := New(Config{
		Store:       st,
		MaxAttempts: 5,
		Window:      15 * time.Minute,
		Logger:      logger,
		Clock:       clock.Now,
	})
	return l, clock
}

func TestUnderThresholdAllowed(t *testing.T) {
	l, _ := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		status, err := l.RecordFailure(ctx, "10.0.0.5")
		if err != nil {
			t.Fatalf("record failure: %v", err)
		}
		if status.Limited {
			t.Fatalf("limited after %d failures", i+1)
		}
	}

	if err := l.CheckAllowed("10.0.0.5"); err != nil {
		t.Fatalf("expected allowed, got %v", err)
	}
}

func TestThresholdBlocks(t *testing.T) {
	l, _ := newTestLimiter(t)
	ctx := context.Background()

	var status Status
	for i := 0; i < 5; i++ {
		var err error
		status, err = l.RecordFailure(ctx, "10.0.0.5")
		if err != nil {
			t.Fatalf("record failure: %v", err)
		}
	}
	if !status.Limited {
		t.Fatal("expected limited after 5 failures")
	}

	err := l.CheckAllowed("10.0.0.5")
	if !errors.Is(err, ErrExceeded) {
		t.Fatalf("expected ErrExceeded, got %v", err)
	}
	var le *LimitError
	if !errors.As(err, &le) {
		t.Fatalf("expected *LimitError, got %T", err)
	}
	if le.RetryAfter <= 0 || le.RetryAfter > 15*time.Minute {
		t.Fatalf("implausible retry-after: %v", le.RetryAfter)
	}

	// Another key is unaffected.
	if err := l.CheckAllowed("10.0.0.6"); err != nil {
		t.Fatalf("unrelated key throttled: %v", err)
	}
}

// TestSlidingWindow replays the boundary scenario: five failures spread
// over the first minutes block the key; by minute 16 the oldest ones have
// aged out and a sixth attempt is allowed again.
func TestSlidingWindow(t *testing.T) {
	l, clock := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := l.RecordFailure(ctx, "10.0.0.5"); err != nil {
			t.Fatalf("record failure: %v", err)
		}
		clock.Advance(time.Minute)
	}
	// Now at minute 5 with failures at minutes 0-4.
	if err := l.CheckAllowed("10.0.0.5"); !errors.Is(err, ErrExceeded) {
		t.Fatalf("expected blocked at minute 5, got %v", err)
	}

	clock.Advance(11 * time.Minute) // minute 16; failures at 0 and 1 aged out

	if err := l.CheckAllowed("10.0.0.5"); err != nil {
		t.Fatalf("expected allowed at minute 16, got %v", err)
	}
	status, err := l.RecordFailure(ctx, "10.0.0.5")
	if err != nil {
		t.Fatalf("record failure: %v", err)
	}
	if status.Limited {
		t.Fatalf("sixth failure after pruning should not block, status: %+v", status)
	}
}

func TestSuccessForgivesFailures(t *testing.T) {
	l, _ := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := l.RecordFailure(ctx, "10.0.0.5"); err != nil {
			t.Fatalf("record failure: %v", err)
		}
	}
	if err := l.CheckAllowed("10.0.0.5"); !errors.Is(err, ErrExceeded) {
		t.Fatalf("expected blocked, got %v", err)
	}

	if err := l.RecordSuccess(ctx, "10.0.0.5"); err != nil {
		t.Fatalf("record success: %v", err)
	}
	if err := l.CheckAllowed("10.0.0.5"); err != nil {
		t.Fatalf("expected allowed after success, got %v", err)
	}
	count, err := l.FailureCount("10.0.0.5")
	if err != nil || count != 0 {
		t.Fatalf("expected empty bucket, got %d (%v)", count, err)
	}
}

// TestRecordFailureOnClobberedSection fails cleanly instead of panicking
// when the login-attempts section has been replaced with a non-mapping
// value.
func TestRecordFailureOnClobberedSection(t *testing.T) {
	l, _ := newTestLimiter(t)
	ctx := context.Background()

	if _, err := l.store.Save(ctx, func(doc core.Document) error {
		return docpath.Set(doc, core.SectionAttempts, "not a mapping")
	}); err != nil {
		t.Fatalf("clobbering save failed: %v", err)
	}

	_, err := l.RecordFailure(ctx, "10.0.0.5")
	if !errors.Is(err, docpath.ErrTypeConflict) {
		t.Fatalf("expected ErrTypeConflict, got %v", err)
	}
}

func TestFailureCount(t *testing.T) {
	l, clock := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := l.RecordFailure(ctx, "10.0.0.5"); err != nil {
			t.Fatalf("record failure: %v", err)
		}
	}
	count, err := l.FailureCount("10.0.0.5")
	if err != nil || count != 3 {
		t.Fatalf("expected 3 failures, got %d (%v)", count, err)
	}

	clock.Advance(16 * time.Minute)
	count, err = l.FailureCount("10.0.0.5")
	if err != nil || count != 0 {
		t.Fatalf("expected aged-out bucket, got %d (%v)", count, err)
	}
}
