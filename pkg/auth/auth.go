// Package auth provides the password-hashing primitive and secret
// generation consumed by the authentication collaborator. The core never
// interprets passwords itself; it stores and compares hashes.
package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is the bcrypt cost factor used when the caller passes zero.
const DefaultCost = 12

// loginSlugBytes sizes the secret login path; 24 random bytes yield a
// 32-character URL-safe slug.
const loginSlugBytes = 24

// HashPassword hashes a password with bcrypt at the given cost factor
// (DefaultCost when cost is zero).
func HashPassword(password string, cost int) (string, error) {
	if cost == 0 {
		cost = DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword reports whether password matches the stored bcrypt hash.
func VerifyPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// GenerateLoginSlug returns a random URL-safe slug for the secret login
// path.
func GenerateLoginSlug() (string, error) {
	b := make([]byte, loginSlugBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("auth: generating login slug: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
