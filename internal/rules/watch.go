package rules

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reloadDelay = 150 * time.Millisecond

// Live is a rule set backed by a file that can be reloaded while the
// application runs. It is safe for concurrent use.
type Live struct {
	path    string
	limit   int
	logger  *slog.Logger
	current atomic.Pointer[Set]
}

// NewLive loads path once. See Load for how missing files are handled.
func NewLive(path string, limit int, logger *slog.Logger) (*Live, error) {
	if logger == nil {
		logger = slog.Default()
	}
	set, err := Load(path, limit)
	if err != nil {
		return nil, err
	}
	l := &Live{path: path, limit: limit, logger: logger}
	l.current.Store(set)
	return l, nil
}

// Apply runs the most recently loaded rules.
func (l *Live) Apply(text string) (string, error) {
	return l.current.Load().Apply(text)
}

func (l *Live) Len() int {
	return l.current.Load().Len()
}

// Reload re-reads the rules file. On error the current rules stay in place.
func (l *Live) Reload() error {
	set, err := Load(l.path, l.limit)
	if err != nil {
		return err
	}
	l.current.Store(set)
	return nil
}

// Watch reloads the rules whenever the file is written, created, renamed or
// removed, until ctx is done. onError, if set, receives reload failures.
// Watching an empty path is a no-op.
func (l *Live) Watch(ctx context.Context, onError func(error)) error {
	if strings.TrimSpace(l.path) == "" {
		return nil
	}
	target, err := filepath.Abs(l.path)
	if err != nil {
		return fmt.Errorf("resolve rules path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create rules watcher: %w", err)
	}
	// Editors often replace the file, so watch its directory.
	dir := filepath.Dir(target)
	if _, err := os.Stat(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch rules directory: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch rules directory: %w", err)
	}

	go l.loop(ctx, watcher, target, onError)
	return nil
}

func (l *Live) loop(ctx context.Context, watcher *fsnotify.Watcher, target string, onError func(error)) {
	defer watcher.Close()

	timer := time.NewTimer(reloadDelay)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) {
				timer.Reset(reloadDelay)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			l.logger.Warn("rules watcher error", "error", err)

		case <-timer.C:
			if err := l.Reload(); err != nil {
				l.logger.Warn("keeping previous rules", "path", target, "error", err)
				if onError != nil {
					onError(err)
				}
				continue
			}
			l.logger.Info("rules reloaded", "path", target, "rules", l.Len())
		}
	}
}
