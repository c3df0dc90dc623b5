// Package core holds the domain model shared by every pressd subsystem.
package core

import (
	"encoding/json"
	"time"
)

// Top-level sections of the persisted document.
const (
	SectionConfig    = "config"
	SectionPages     = "pages"
	SectionBlocks    = "blocks"
	SectionMenuItems = "menu_items"
	SectionUploads   = "uploads"
	SectionSessions  = "sessions"
	SectionAttempts  = "login_attempts"
)

// VersionKey is the top-level field carrying the monotonic commit counter.
const VersionKey = "version"

// Document is the single root persisted structure holding all CMS state.
// It is a raw tree so plugins and the path accessor can navigate it without
// schema coupling; the typed leaf records below are the canonical shapes of
// the values stored inside it.
type Document map[string]any

// NewDocument returns an empty document with all sections present.
func NewDocument() Document {
	return Document{
		VersionKey:       int64(0),
		SectionConfig:    map[string]any{},
		SectionPages:     map[string]any{},
		SectionBlocks:    map[string]any{},
		SectionMenuItems: []any{},
		SectionUploads:   map[string]any{},
		SectionSessions:  map[string]any{},
		SectionAttempts:  map[string]any{},
	}
}

// Version returns the document's commit counter. Numbers decoded from JSON
// arrive as json.Number or float64 depending on the decoder.
func (d Document) Version() int64 {
	switch v := d[VersionKey].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

// SetVersion stamps the commit counter.
func (d Document) SetVersion(v int64) {
	d[VersionKey] = v
}

// Section returns the named top-level mapping, creating it if absent.
// Returns nil if the slot exists but holds a non-mapping value.
func (d Document) Section(name string) map[string]any {
	if v, ok := d[name]; ok {
		m, ok := v.(map[string]any)
		if !ok {
			return nil
		}
		return m
	}
	m := map[string]any{}
	d[name] = m
	return m
}

// Clone returns a deep copy so callers never hold a live reference into
// another caller's tree.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	return Document(copyTree(map[string]any(d)))
}

func copyTree(src map[string]any) map[string]any {
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = copyValue(v)
	}
	return dst
}

func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return copyTree(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = copyValue(e)
		}
		return out
	default:
		// Scalars (string, bool, numbers, json.Number, nil) are immutable.
		return v
	}
}

// Page is a content page record, keyed by slug in the pages section.
type Page struct {
	Slug          string         `json:"slug"`
	Title         string         `json:"title"`
	Content       string         `json:"content"`
	ContentFormat string         `json:"content_format"`
	Description   string         `json:"description,omitempty"`
	Keywords      string         `json:"keywords,omitempty"`
	Visibility    string         `json:"visibility"`
	Subpages      map[string]any `json:"subpages"`
	CreatedAt     time.Time      `json:"created_at"`
	ModifiedAt    time.Time      `json:"modified_at"`
	ModifiedBy    string         `json:"modified_by"`
}

// Block is a static region record, keyed by name in the blocks section.
type Block struct {
	Name          string `json:"name"`
	Content       string `json:"content"`
	ContentFormat string `json:"content_format"`
}

// MenuItem is one entry of the ordered navigation sequence.
type MenuItem struct {
	Name       string   `json:"name"`
	Slug       string   `json:"slug"`
	Visibility string   `json:"visibility"`
	Order      int      `json:"order"`
	Subpages   []string `json:"subpages"`
}

// UploadRecord is the metadata of one stored upload, keyed by ID.
type UploadRecord struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	Size       int64     `json:"size"`
	UploadedBy string    `json:"uploaded_by"`
	UploadedAt time.Time `json:"uploaded_at"`
}
