// Package pressd is the persistence and concurrency core of the pressassist
// content-management backend.
//
// All site state (pages, navigation, static regions, settings, upload
// metadata, sessions, security counters) lives in one JSON document on
// disk. The packages under pkg/ make that safe across multiple independent
// worker processes that share no memory:
//
//   - pkg/lockfile: cross-process advisory locks over named resources.
//   - pkg/store: atomic, crash-consistent load/save of the root document.
//   - pkg/docpath: dot-notation navigation inside a mutation.
//   - pkg/session: persisted session records with TTL and rotation.
//   - pkg/ratelimit: sliding-window login throttling.
//   - pkg/audit: the append-only security-event ledger.
//   - pkg/hooks: the capability-gated plugin event bus.
//
// A mutation acquires the document lock, reloads the latest committed
// version, applies its change, and commits via an atomic temp-write-rename;
// readers never block and never observe a partial document.
//
// Usage:
//
//	svc, err := pressd.New("./data", pressd.WithLogger(logger))
//	if err != nil { ... }
//
//	_, err = svc.Store.Save(ctx, func(doc pressd.Document) error {
//		return docpath.Set(doc, "pages.home.title", "New Title")
//	})
package pressd
