// Package session persists authenticated-principal records through the
// document store.
//
// Sessions live inside the shared document rather than process memory, so a
// session created by one worker process is immediately visible to requests
// served by any other worker.
package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pressassist/pressd/pkg/core"
	"github.com/pressassist/pressd/pkg/docpath"
	"github.com/pressassist/pressd/pkg/store"
)

// Registry errors. Both force re-authentication; neither is operational.
var (
	ErrNotFound = errors.New("session: not found")
	ErrExpired  = errors.New("session: expired")
)

// tokenBytes gives 256 bits of entropy; collisions are negligible over the
// registry's lifetime.
const tokenBytes = 32

// Config holds the configuration for the session registry.
type Config struct {
	Store  *store.Store
	Logger *slog.Logger
	// Clock supplies timestamps. Defaults to time.Now.
	Clock func() time.Time
}

// Registry manages session records persisted in the shared document.
type Registry struct {
	store  *store.Store
	logger *slog.Logger
	clock  func() time.Time
}

// New creates a session registry backed by the given store.
func New(cfg Config) *Registry {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Registry{store: cfg.Store, logger: cfg.Logger, clock: cfg.Clock}
}

// Create generates a fresh token and persists a session record for subject.
// Expired records are swept as part of the same mutation cycle.
func (r *Registry) Create(ctx context.Context, subject, role string, ttl time.Duration, originIP string) (core.Session, error) {
	token, err := generateToken()
	if err != nil {
		return core.Session{}, fmt.Errorf("session: generating token: %w", err)
	}

	now := r.clock().UTC()
	sess := core.Session{
		ID:        uuid.NewString(),
		Token:     token,
		Subject:   subject,
		Role:      role,
		OriginIP:  originIP,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	_, err = r.store.Save(ctx, func(doc core.Document) error {
		r.sweep(doc)
		return put(doc, sess)
	})
	if err != nil {
		return core.Session{}, err
	}

	r.logger.Debug("session created", "subject", subject, "role", role)
	return sess, nil
}

// Lookup resolves a bearer token to its session record without writing.
// A record past its TTL yields ErrExpired, never the stale record itself;
// the row is removed opportunistically by the next mutation.
func (r *Registry) Lookup(token string) (core.Session, error) {
	doc, _, err := r.store.Load()
	if err != nil {
		return core.Session{}, err
	}

	sessions := doc.Section(core.SectionSessions)
	raw, ok := sessions[token]
	if !ok {
		return core.Session{}, ErrNotFound
	}

	var sess core.Session
	if err := core.FromTree(raw, &sess); err != nil {
		r.logger.Warn("discarding undecodable session record")
		return core.Session{}, ErrNotFound
	}
	if sess.Expired(r.clock()) {
		return core.Session{}, ErrExpired
	}
	return sess, nil
}

// Invalidate removes the record for token. Idempotent: unknown tokens are
// not an error.
func (r *Registry) Invalidate(ctx context.Context, token string) error {
	_, err := r.store.Save(ctx, func(doc core.Document) error {
		r.sweep(doc)
		delete(doc.Section(core.SectionSessions), token)
		return nil
	})
	return err
}

// Rotate creates a new session with the old session's subject, role and
// origin, and removes the old record in the same mutation cycle, so the
// previous token is never valid alongside the new one even momentarily.
// The stable session ID survives rotation.
func (r *Registry) Rotate(ctx context.Context, oldToken string) (core.Session, error) {
	token, err := generateToken()
	if err != nil {
		return core.Session{}, fmt.Errorf("session: generating token: %w", err)
	}

	var rotated core.Session
	_, err = r.store.Save(ctx, func(doc core.Document) error {
		sessions := doc.Section(core.SectionSessions)
		raw, ok := sessions[oldToken]
		if !ok {
			return ErrNotFound
		}
		var old core.Session
		if err := core.FromTree(raw, &old); err != nil {
			return ErrNotFound
		}
		now := r.clock().UTC()
		if old.Expired(now) {
			// Returning aborts the commit; the stale row is swept by the
			// next successful mutation.
			return ErrExpired
		}

		rotated = old
		rotated.Token = token
		rotated.CreatedAt = now
		rotated.ExpiresAt = now.Add(old.ExpiresAt.Sub(old.CreatedAt))

		delete(sessions, oldToken)
		r.sweep(doc)
		return put(doc, rotated)
	})
	if err != nil {
		return core.Session{}, err
	}

	r.logger.Debug("session rotated", "subject", rotated.Subject)
	return rotated, nil
}

// InvalidateSubject removes every session belonging to subject and returns
// how many were dropped. Used on password change.
func (r *Registry) InvalidateSubject(ctx context.Context, subject string) (int, error) {
	removed := 0
	_, err := r.store.Save(ctx, func(doc core.Document) error {
		removed = 0
		sessions := doc.Section(core.SectionSessions)
		for token, raw := range sessions {
			var sess core.Session
			if err := core.FromTree(raw, &sess); err != nil {
				continue
			}
			if sess.Subject == subject {
				delete(sessions, token)
				removed++
			}
		}
		r.sweep(doc)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// PurgeExpired sweeps all expired or undecodable records and returns the
// number removed.
func (r *Registry) PurgeExpired(ctx context.Context) (int, error) {
	purged := 0
	_, err := r.store.Save(ctx, func(doc core.Document) error {
		purged = r.sweep(doc)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return purged, nil
}

// Count returns the number of live sessions, optionally filtered to one
// subject (empty subject counts all).
func (r *Registry) Count(subject string) (int, error) {
	doc, _, err := r.store.Load()
	if err != nil {
		return 0, err
	}

	now := r.clock()
	count := 0
	for _, raw := range doc.Section(core.SectionSessions) {
		var sess core.Session
		if err := core.FromTree(raw, &sess); err != nil {
			continue
		}
		if sess.Expired(now) {
			continue
		}
		if subject == "" || sess.Subject == subject {
			count++
		}
	}
	return count, nil
}

// sweep drops expired and undecodable records from the working document.
// Only called inside a store mutation.
func (r *Registry) sweep(doc core.Document) int {
	sessions := doc.Section(core.SectionSessions)
	now := r.clock()

	removed := 0
	for token, raw := range sessions {
		var sess core.Session
		if err := core.FromTree(raw, &sess); err != nil || sess.Expired(now) {
			delete(sessions, token)
			removed++
		}
	}
	return removed
}

func put(doc core.Document, sess core.Session) error {
	sessions := doc.Section(core.SectionSessions)
	if sessions == nil {
		return fmt.Errorf("session: %w: %s", docpath.ErrTypeConflict, core.SectionSessions)
	}
	tree, err := core.ToTree(sess)
	if err != nil {
		return fmt.Errorf("session: encoding record: %w", err)
	}
	sessions[sess.Token] = tree
	return nil
}

// generateToken creates a cryptographically secure random token encoded as
// URL-safe base64 without padding.
func generateToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
