package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period after the last input change before a
// rebuild starts.
const DefaultDebounce = 250 * time.Millisecond

// WatchOptions configures Watch.
type WatchOptions struct {
	Debounce time.Duration
	// OnBuild is called after every build, including the initial one.
	OnBuild func(*Result, error)
}

// Watch builds once, then rebuilds whenever a CSV under the data or reference
// directory changes, until ctx is cancelled. Builds run on the calling
// goroutine, so at most one is in flight. A failed build does not stop the loop.
func (o *Orchestrator) Watch(ctx context.Context, opts WatchOptions) error {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	notify := func(res *Result, err error) {
		if opts.OnBuild != nil {
			opts.OnBuild(res, err)
		}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	for _, dir := range []string{o.cfg.DataDir, o.cfg.ReferenceDir} {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	notify(o.Build(ctx))
	o.logger.Info("watching for changes", "data_dir", o.cfg.DataDir, "reference_dir", o.cfg.ReferenceDir)

	var (
		timer   *time.Timer
		fire    <-chan time.Time
		changed []string
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !relevant(event) {
				continue
			}
			changed = append(changed, filepath.Base(event.Name))
			if timer == nil {
				timer = time.NewTimer(opts.Debounce)
			} else {
				timer.Reset(opts.Debounce)
			}
			fire = timer.C

		case <-fire:
			o.logger.Info("change detected, rebuilding", "files", changed)
			fire, changed = nil, nil
			notify(o.Build(ctx))

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			o.logger.Warn("watcher error", "error", err)
		}
	}
}

// relevant reports whether an event touches a CSV input.
func relevant(event fsnotify.Event) bool {
	if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) &&
		!event.Op.Has(fsnotify.Remove) && !event.Op.Has(fsnotify.Rename) {
		return false
	}
	name := filepath.Base(event.Name)
	if strings.HasPrefix(name, ".") {
		return false
	}
	return strings.EqualFold(filepath.Ext(name), ".csv")
}
