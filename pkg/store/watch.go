package store

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceWindow coalesces the burst of filesystem events produced by one
// temp-write-rename commit into a single notification.
const debounceWindow = 50 * time.Millisecond

// Watch returns a channel that receives a signal after another process
// commits the document, so workers can drop per-process caches. The channel
// is closed when ctx is cancelled or the underlying watcher fails.
//
// The watch is on the directory, not the file: the atomic rename replaces
// the inode, which would silently detach a file-level watch.
func (s *Store) Watch(ctx context.Context) (<-chan struct{}, error) {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, err
	}

	notify := make(chan struct{}, 1)
	go s.watchLoop(ctx, watcher, notify)
	return notify, nil
}

func (s *Store) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, notify chan<- struct{}) {
	defer watcher.Close()
	defer close(notify)

	debounce := time.NewTimer(debounceWindow)
	if !debounce.Stop() {
		<-debounce.C
	}
	pending := false

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Name != s.path {
				continue
			}
			if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Rename) {
				continue
			}
			if pending && !debounce.Stop() {
				<-debounce.C
			}
			debounce.Reset(debounceWindow)
			pending = true

		case <-debounce.C:
			pending = false
			select {
			case notify <- struct{}{}:
			default:
				// Receiver hasn't drained the last signal; one is enough.
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("document watcher error", "error", err)
		}
	}
}
