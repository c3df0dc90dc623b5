// Package atomicfile commits file contents via temp-write, fsync and rename.
package atomicfile

import (
	"fmt"
	"os"
	"path/filepath"
)

// TempPrefix marks in-flight temporary files. A crash can leave one behind;
// it is garbage, never the committed document.
const TempPrefix = "pressd-tmp-"

// WriteFile replaces filename with data in a single atomic step: the bytes
// are staged in a temporary file, flushed to stable storage, then renamed
// over the target. A concurrent reader sees the prior content or the new
// content in full, never a mix.
func WriteFile(filename string, data []byte, perm os.FileMode) error {
	// rename(2) is only atomic within one filesystem, so the staging file
	// must share the target's directory.
	dir := filepath.Dir(filename)
	staging, err := os.CreateTemp(dir, TempPrefix+"*")
	if err != nil {
		return fmt.Errorf("staging %s: %w", filepath.Base(filename), err)
	}
	// No-op once the rename has consumed the staging file.
	defer os.Remove(staging.Name())

	if _, err := staging.Write(data); err != nil {
		staging.Close()
		return fmt.Errorf("writing staging file: %w", err)
	}
	// The fsync must land before the rename publishes the file, or a power
	// loss could expose an empty committed document.
	if err := staging.Sync(); err != nil {
		staging.Close()
		return fmt.Errorf("syncing staging file: %w", err)
	}
	if err := staging.Close(); err != nil {
		return fmt.Errorf("closing staging file: %w", err)
	}

	// CreateTemp uses 0600; widen to the caller's mode before publishing.
	if err := os.Chmod(staging.Name(), perm); err != nil {
		return fmt.Errorf("setting mode on staging file: %w", err)
	}
	if err := os.Rename(staging.Name(), filename); err != nil {
		return fmt.Errorf("publishing %s: %w", filepath.Base(filename), err)
	}
	return nil
}
