package audit

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/pressassist/pressd/pkg/core"
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

func newTestLog(t *testing.T) (*Log, *testClock) {
	t.Helper()
	clock := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	l := New(Config{
		Path:   filepath.Join(t.TempDir(), "audit.log"),
		Logger: logger,
		Clock:  clock.Now,
	})
	return l, clock
}

func TestAppendAndTail(t *testing.T) {
	l, clock := newTestLog(t)

	for i := 0; i < 3; i++ {
		l.Append(core.AuditEntry{
			Event:  fmt.Sprintf("event_%d", i),
			Actor:  "admin",
			Origin: "10.0.0.5",
		})
		clock.Advance(time.Second)
	}

	entries, err := l.Tail(2)
	if err != nil {
		t.Fatalf("tail failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	// Newest first.
	if entries[0].Event != "event_2" || entries[1].Event != "event_1" {
		t.Fatalf("wrong order: %s, %s", entries[0].Event, entries[1].Event)
	}
	if entries[0].Actor != "admin" || entries[0].Origin != "10.0.0.5" {
		t.Fatalf("entry fields lost: %+v", entries[0])
	}
}

func TestTailOnMissingLedger(t *testing.T) {
	l, _ := newTestLog(t)
	entries, err := l.Tail(10)
	if err != nil {
		t.Fatalf("tail on missing ledger: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty, got %d", len(entries))
	}
}

func TestSince(t *testing.T) {
	l, clock := newTestLog(t)

	l.Append(core.AuditEntry{Event: "old", Actor: "a"})
	clock.Advance(time.Hour)
	cutoff := clock.Now()
	l.Append(core.AuditEntry{Event: "new", Actor: "a"})

	entries, err := l.Since(cutoff)
	if err != nil {
		t.Fatalf("since failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Event != "new" {
		t.Fatalf("expected only the new entry, got %+v", entries)
	}
}

func TestDetailsRoundTrip(t *testing.T) {
	l, _ := newTestLog(t)

	l.Append(core.AuditEntry{
		Event:   "page_edit",
		Actor:   "admin",
		Details: map[string]any{"page": "home", "fields": []any{"title"}},
	})

	entries, err := l.Tail(1)
	if err != nil || len(entries) != 1 {
		t.Fatalf("tail failed: %v", err)
	}
	if entries[0].Details["page"] != "home" {
		t.Fatalf("details lost: %+v", entries[0].Details)
	}
}

// TestConcurrentAppendLineAtomicity runs two independent log handles (as
// two worker processes would hold) appending in parallel; every resulting
// line must be one complete entry.
func TestConcurrentAppendLineAtomicity(t *testing.T) {
	l1, _ := newTestLog(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	l2 := New(Config{Path: l1.path, Logger: logger})

	const perWriter = 200
	var wg sync.WaitGroup
	for i, l := range []*Log{l1, l2} {
		wg.Add(1)
		go func(writer int, l *Log) {
			defer wg.Done()
			for n := 0; n < perWriter; n++ {
				l.Append(core.AuditEntry{
					Event: fmt.Sprintf("writer_%d_entry_%d", writer, n),
					Actor: "stress",
				})
			}
		}(i, l)
	}
	wg.Wait()

	raw, err := os.ReadFile(l1.path)
	if err != nil {
		t.Fatal(err)
	}
	lines := 0
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var entry core.AuditEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			t.Fatalf("interleaved or torn line: %q", line)
		}
		lines++
	}
	if lines != 2*perWriter {
		t.Fatalf("expected %d lines, got %d", 2*perWriter, lines)
	}
}

func TestAppendFailureGoesToFallback(t *testing.T) {
	var got error
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	dir := t.TempDir()
	// Point the ledger at a directory so the open fails.
	ledger := filepath.Join(dir, "audit.log")
	if err := os.Mkdir(ledger, 0o755); err != nil {
		t.Fatal(err)
	}

	l := New(Config{
		Path:     ledger,
		Logger:   logger,
		Fallback: func(err error) { got = err },
	})

	// Must not panic and must not return an error to the caller.
	l.Append(core.AuditEntry{Event: "x", Actor: "y"})

	if got == nil {
		t.Fatal("fallback not invoked")
	}
	if !errors.Is(got, ErrWrite) {
		t.Fatalf("expected ErrWrite, got %v", got)
	}
}

func TestPrune(t *testing.T) {
	l, clock := newTestLog(t)

	l.Append(core.AuditEntry{Event: "ancient", Actor: "a"})
	clock.Advance(48 * time.Hour)
	l.Append(core.AuditEntry{Event: "recent", Actor: "a"})

	removed, err := l.Prune(24 * time.Hour)
	if err != nil {
		t.Fatalf("prune failed: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}

	entries, err := l.Tail(10)
	if err != nil {
		t.Fatalf("tail failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Event != "recent" {
		t.Fatalf("wrong survivors: %+v", entries)
	}
}

func TestPruneKeepsUnparseableLines(t *testing.T) {
	l, clock := newTestLog(t)

	l.Append(core.AuditEntry{Event: "ancient", Actor: "a"})
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString("garbage line\n"); err != nil {
		t.Fatal(err)
	}
	f.Close()

	clock.Advance(48 * time.Hour)
	if _, err := l.Prune(24 * time.Hour); err != nil {
		t.Fatalf("prune failed: %v", err)
	}

	raw, err := os.ReadFile(l.path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(raw, []byte("garbage line")) {
		t.Fatal("prune dropped a line it could not parse")
	}
}
