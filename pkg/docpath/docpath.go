// Package docpath implements dot-notation navigation over the document's
// nested mapping structure.
//
// All functions are pure: they operate on an in-memory tree and perform no
// I/O or locking, keeping the store's atomic-write critical section short.
// They are meant to run inside a store mutation.
package docpath

import (
	"errors"
	"fmt"
	"strings"
)

// Navigation errors.
var (
	// ErrNotFound means the path does not resolve to a value.
	ErrNotFound = errors.New("docpath: path not found")
	// ErrTypeConflict means an intermediate segment already holds a
	// non-mapping value, so the path cannot descend through it.
	ErrTypeConflict = errors.New("docpath: path type conflict")
)

// Get resolves a dot-separated path (e.g. "pages.home.title") and returns
// the value it points at.
func Get(root map[string]any, path string) (any, error) {
	keys := split(path)
	if len(keys) == 0 {
		return nil, fmt.Errorf("%w: empty path", ErrNotFound)
	}

	var current any = root
	for _, key := range keys {
		node, ok := current.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		current, ok = node[key]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
	}
	return current, nil
}

// Set writes value at the dot-separated path, creating intermediate mapping
// nodes as needed. It fails with ErrTypeConflict if an intermediate segment
// already holds a non-mapping value.
func Set(root map[string]any, path string, value any) error {
	keys := split(path)
	if len(keys) == 0 {
		return fmt.Errorf("docpath: empty path")
	}

	node := root
	for i, key := range keys[:len(keys)-1] {
		next, ok := node[key]
		if !ok {
			child := map[string]any{}
			node[key] = child
			node = child
			continue
		}
		child, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("%w: %s", ErrTypeConflict, strings.Join(keys[:i+1], "."))
		}
		node = child
	}
	node[keys[len(keys)-1]] = value
	return nil
}

// Delete removes the leaf at the dot-separated path. Absent paths are a
// no-op, as are paths blocked by a non-mapping intermediate.
func Delete(root map[string]any, path string) {
	keys := split(path)
	if len(keys) == 0 {
		return
	}

	node := root
	for _, key := range keys[:len(keys)-1] {
		next, ok := node[key]
		if !ok {
			return
		}
		child, ok := next.(map[string]any)
		if !ok {
			return
		}
		node = child
	}
	delete(node, keys[len(keys)-1])
}

func split(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}
