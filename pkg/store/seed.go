package store

import (
	"fmt"
	"time"

	"github.com/pressassist/pressd/pkg/core"
)

// Initialize seeds a brand-new document with the default site content and
// commits it as version 1. It refuses to overwrite an existing document.
func (s *Store) Initialize(loginSlug, adminPasswordHash string) (core.Document, error) {
	handle, err := s.locks.Acquire(documentResource, s.lockTimeout)
	if err != nil {
		return nil, err
	}
	defer handle.Release()

	if s.Exists() {
		return nil, ErrAlreadyInitialized
	}

	doc, err := s.seed(loginSlug, adminPasswordHash)
	if err != nil {
		return nil, err
	}

	if err := s.write(doc); err != nil {
		return nil, err
	}
	s.logger.Info("initialized new document", "path", s.path)
	return doc, nil
}

func (s *Store) seed(loginSlug, adminPasswordHash string) (core.Document, error) {
	now := s.clock().UTC()
	stamp := now.Format(time.RFC3339)

	doc := core.NewDocument()
	doc.SetVersion(1)

	doc[core.SectionConfig] = map[string]any{
		"site_title":       "My Website",
		"site_lang":        "en",
		"admin_lang":       "en",
		"theme":            "default",
		"default_page":     "home",
		"login_slug":       loginSlug,
		"force_https":      true,
		"disabled_plugins": []any{},
		"last_modified":    stamp,
		"admin": map[string]any{
			"username":      "admin",
			"password_hash": adminPasswordHash,
			"role":          "admin",
			"created_at":    stamp,
		},
	}

	pages := []core.Page{
		{
			Slug:          "home",
			Title:         "Home",
			Content:       "# Welcome to Your Website\n\nThis is your homepage. Edit this content from the admin panel.\n\n## Getting Started\n\n1. Log in using your secret login URL\n2. Navigate to the admin panel\n3. Start creating content!",
			ContentFormat: "markdown",
			Description:   "Welcome to my website",
			Keywords:      "home, welcome",
			Visibility:    "show",
			Subpages:      map[string]any{},
			CreatedAt:     now,
			ModifiedAt:    now,
			ModifiedBy:    "system",
		},
		{
			Slug:          "about",
			Title:         "About",
			Content:       "# About Us\n\nTell visitors about yourself or your site.",
			ContentFormat: "markdown",
			Description:   "About this website",
			Keywords:      "about",
			Visibility:    "show",
			Subpages:      map[string]any{},
			CreatedAt:     now,
			ModifiedAt:    now,
			ModifiedBy:    "system",
		},
		{
			Slug:          "404",
			Title:         "Page Not Found",
			Content:       "# 404 - Page Not Found\n\nThe page you're looking for doesn't exist.\n\n[Go back to homepage](/)",
			ContentFormat: "markdown",
			Description:   "Page not found",
			Keywords:      "404, not found",
			Visibility:    "system",
			Subpages:      map[string]any{},
			CreatedAt:     now,
			ModifiedAt:    now,
			ModifiedBy:    "system",
		},
	}
	pageTrees := doc.Section(core.SectionPages)
	for _, p := range pages {
		tree, err := core.ToTree(p)
		if err != nil {
			return nil, fmt.Errorf("store: seeding page %s: %w", p.Slug, err)
		}
		pageTrees[p.Slug] = tree
	}

	blocks := []core.Block{
		{Name: "header", Content: "My Website", ContentFormat: "markdown"},
		{Name: "footer", Content: fmt.Sprintf("Copyright %d", now.Year()), ContentFormat: "markdown"},
		{Name: "sidebar", Content: "## About\n\nThis is the sidebar. It appears on every page.", ContentFormat: "markdown"},
	}
	blockTrees := doc.Section(core.SectionBlocks)
	for _, b := range blocks {
		tree, err := core.ToTree(b)
		if err != nil {
			return nil, fmt.Errorf("store: seeding block %s: %w", b.Name, err)
		}
		blockTrees[b.Name] = tree
	}

	menu := []core.MenuItem{
		{Name: "Home", Slug: "home", Visibility: "show", Order: 0, Subpages: []string{}},
		{Name: "About", Slug: "about", Visibility: "show", Order: 1, Subpages: []string{}},
	}
	items := make([]any, 0, len(menu))
	for _, m := range menu {
		tree, err := core.ToTree(m)
		if err != nil {
			return nil, fmt.Errorf("store: seeding menu item %s: %w", m.Slug, err)
		}
		items = append(items, tree)
	}
	doc[core.SectionMenuItems] = items

	return doc, nil
}
