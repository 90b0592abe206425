package sentences

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/dekiesel/wyoming-vosk/internal/observe"
)

// Config is the cached per-language state: the fingerprint of the
// grammar source it was built from, the path of its corpus database,
// the compiled bypass patterns, and the optional fallback text for
// unrecognized input. A Config is replaced wholesale when the source
// fingerprint changes; it is never partially mutated.
type Config struct {
	Language string

	// SentencesModTime and SentencesSize fingerprint the grammar source
	// file. The corpus is rebuilt whenever either changes.
	SentencesModTime time.Time
	SentencesSize    int64

	// DatabasePath is the corpus database file for this language.
	DatabasePath string

	// NoCorrectPatterns disable correction for transcripts whose prefix
	// matches any of them.
	NoCorrectPatterns []*regexp.Regexp

	// UnknownText is an optional fallback for transcripts the corrector
	// rejects; consumed by the caller, not by the corrector itself.
	UnknownText string
}

// CacheOption configures a [Cache].
type CacheOption func(*Cache)

// WithMetrics attaches metric instruments recording cache lookups and
// build statistics. When nil (the default), nothing is recorded.
func WithMetrics(m *observe.Metrics) CacheOption {
	return func(c *Cache) {
		c.metrics = m
	}
}

// Cache builds and caches one [Config] per language. Rebuilds are
// atomic: the corpus is written to a temporary file and renamed over
// the previous database, so a reader never observes a half-built store.
// Distinct languages may build concurrently; lookups for one language
// serialize.
type Cache struct {
	sentencesDir string
	databaseDir  string
	metrics      *observe.Metrics

	mu      sync.Mutex
	configs map[string]*Config
	locks   map[string]*sync.Mutex
}

// NewCache creates a cache that reads `<language>.yaml` grammar sources
// from sentencesDir and keeps `<language>.db` corpus databases in
// databaseDir.
func NewCache(sentencesDir, databaseDir string, opts ...CacheOption) *Cache {
	c := &Cache{
		sentencesDir: sentencesDir,
		databaseDir:  databaseDir,
		configs:      map[string]*Config{},
		locks:        map[string]*sync.Mutex{},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// GetOrBuild returns the configuration for language, rebuilding the
// corpus when the grammar source changed since the cached build.
//
// It returns (nil, nil) — no configuration, not an error — when the
// source file is missing, empty, or declares no sentences, so callers
// can skip the language gracefully.
func (c *Cache) GetOrBuild(ctx context.Context, language string) (*Config, error) {
	lock := c.languageLock(language)
	lock.Lock()
	defer lock.Unlock()

	sentencesPath := filepath.Join(c.sentencesDir, language+".yaml")
	info, err := os.Stat(sentencesPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sentences: stat %q: %w", sentencesPath, err)
	}

	if cfg := c.cached(language); cfg != nil &&
		cfg.SentencesModTime.Equal(info.ModTime()) &&
		cfg.SentencesSize == info.Size() {
		c.metrics.RecordCacheLookup(ctx, language, observe.CacheHit)
		slog.Debug("sentences cache hit", "language", language)
		return cfg, nil
	}
	c.metrics.RecordCacheLookup(ctx, language, observe.CacheMiss)

	slog.Debug("loading sentences", "path", sentencesPath)
	doc, err := LoadDocument(sentencesPath)
	if err != nil {
		return nil, err
	}
	if len(doc.Sentences) == 0 {
		slog.Warn("no sentences in grammar source, skipping language",
			"language", language,
			"path", sentencesPath,
		)
		return nil, nil
	}

	cfg := &Config{
		Language:         language,
		SentencesModTime: info.ModTime(),
		SentencesSize:    info.Size(),
		DatabasePath:     filepath.Join(c.databaseDir, language+".db"),
		UnknownText:      doc.UnknownText,
	}
	for _, pattern := range doc.NoCorrectPatterns {
		re, err := compilePrefixPattern(pattern)
		if err != nil {
			return nil, fmt.Errorf("sentences: no_correct_patterns %q: %w", pattern, err)
		}
		cfg.NoCorrectPatterns = append(cfg.NoCorrectPatterns, re)
	}

	stats, elapsed, err := c.rebuild(ctx, doc, cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	c.metrics.RecordCacheLookup(ctx, language, observe.CacheRebuild)
	c.metrics.RecordBuild(ctx, language, elapsed.Seconds(), stats.Sentences, stats.Words)
	slog.Info("generated sentences",
		"language", language,
		"sentences", stats.Sentences,
		"words", stats.Words,
		"elapsed", elapsed,
	)

	c.mu.Lock()
	c.configs[language] = cfg
	c.mu.Unlock()

	return cfg, nil
}

// Invalidate drops the cached configuration for language. The next
// GetOrBuild rebuilds unconditionally. The corpus database is left on
// disk.
func (c *Cache) Invalidate(language string) {
	c.mu.Lock()
	delete(c.configs, language)
	c.mu.Unlock()
}

// rebuild writes a fresh corpus for doc into databasePath. The build
// happens in a temporary sibling file that replaces the previous
// database only after a fully successful build.
func (c *Cache) rebuild(ctx context.Context, doc *Document, databasePath string) (BuildStats, time.Duration, error) {
	if err := os.MkdirAll(filepath.Dir(databasePath), 0o755); err != nil {
		return BuildStats{}, 0, fmt.Errorf("sentences: create database dir: %w", err)
	}

	tmpPath := databasePath + ".tmp"
	if err := os.Remove(tmpPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return BuildStats{}, 0, fmt.Errorf("sentences: remove stale build %q: %w", tmpPath, err)
	}

	start := time.Now()
	store, err := CreateStore(ctx, tmpPath)
	if err != nil {
		return BuildStats{}, 0, err
	}
	stats, err := Build(ctx, doc, store)
	closeErr := store.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmpPath)
		return BuildStats{}, 0, err
	}

	if err := os.Remove(databasePath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		os.Remove(tmpPath)
		return BuildStats{}, 0, fmt.Errorf("sentences: remove previous database: %w", err)
	}
	if err := os.Rename(tmpPath, databasePath); err != nil {
		os.Remove(tmpPath)
		return BuildStats{}, 0, fmt.Errorf("sentences: activate database: %w", err)
	}

	return stats, time.Since(start), nil
}

// cached returns the stored configuration without fingerprint checks.
func (c *Cache) cached(language string) *Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.configs[language]
}

// languageLock returns the mutex serializing lookups for one language.
func (c *Cache) languageLock(language string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	lock, ok := c.locks[language]
	if !ok {
		lock = &sync.Mutex{}
		c.locks[language] = lock
	}
	return lock
}

// compilePrefixPattern compiles a bypass pattern anchored at the start
// of the transcript. Patterns match a prefix unless they end with $.
func compilePrefixPattern(pattern string) (*regexp.Regexp, error) {
	return regexp.Compile("^(?:" + pattern + ")")
}
