package sentences

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// fileState is the last observed grammar file fingerprint per language.
type fileState struct {
	modTime time.Time
	size    int64
}

// Watcher monitors a sentences directory for grammar changes and rebuilds
// the affected corpora through a [Cache]. It uses polling (not fsnotify)
// to keep dependencies minimal.
type Watcher struct {
	cache    *Cache
	dir      string
	interval time.Duration
	onChange func(language string, cfg *Config)

	done     chan struct{}
	stopOnce sync.Once

	mu   sync.Mutex
	seen map[string]fileState
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval sets the polling interval. The default is 5 seconds.
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithOnChange sets a callback invoked after a language's corpus was
// built because its grammar file changed or appeared after the initial
// scan. Builds during the initial scan do not fire it.
func WithOnChange(fn func(language string, cfg *Config)) WatcherOption {
	return func(w *Watcher) {
		w.onChange = fn
	}
}

// NewWatcher creates a grammar directory watcher backed by cache. It
// builds every grammar currently in dir before returning and then polls
// for changes in a background goroutine until [Watcher.Stop] or ctx
// cancellation.
func NewWatcher(ctx context.Context, cache *Cache, dir string, opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		cache:    cache,
		dir:      dir,
		interval: 5 * time.Second,
		done:     make(chan struct{}),
		seen:     map[string]fileState{},
	}
	for _, opt := range opts {
		opt(w)
	}

	if err := w.check(ctx, false); err != nil {
		return nil, err
	}

	go w.poll(ctx)
	return w, nil
}

// Stop stops the directory watcher.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
	})
}

// poll runs in a background goroutine, scanning the grammar directory
// periodically.
func (w *Watcher) poll(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.check(ctx, true); err != nil {
				slog.Warn("grammar watcher: scan failed", "dir", w.dir, "err", err)
			}
		}
	}
}

// check scans the directory once and rebuilds every language whose
// grammar file is new or changed since the previous scan. A language
// that fails to build keeps its previous corpus and is retried on the
// next change. notify controls whether successful builds fire the
// onChange callback; the initial scan passes false.
func (w *Watcher) check(ctx context.Context, notify bool) error {
	paths, err := filepath.Glob(filepath.Join(w.dir, "*.yaml"))
	if err != nil {
		return err
	}

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			slog.Warn("grammar watcher: cannot stat file", "path", path, "err", err)
			continue
		}

		language := strings.TrimSuffix(filepath.Base(path), ".yaml")

		w.mu.Lock()
		last, ok := w.seen[language]
		w.mu.Unlock()
		if ok && last.modTime.Equal(info.ModTime()) && last.size == info.Size() {
			continue
		}

		cfg, err := w.cache.GetOrBuild(ctx, language)
		if err != nil {
			slog.Warn("grammar watcher: rebuild failed", "language", language, "err", err)
			continue
		}

		w.mu.Lock()
		w.seen[language] = fileState{modTime: info.ModTime(), size: info.Size()}
		w.mu.Unlock()

		if notify && cfg != nil && w.onChange != nil {
			w.onChange(language, cfg)
		}
	}
	return nil
}
