package sentences_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dekiesel/wyoming-vosk/internal/sentences"
)

// writeGrammar writes a grammar source for language into dir.
func writeGrammar(t *testing.T, dir, language, content string) {
	t.Helper()
	path := filepath.Join(dir, language+".yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write grammar: %v", err)
	}
}

// corpusRows reads all rows of a corpus database.
func corpusRows(t *testing.T, path string) []row {
	t.Helper()
	store, err := sentences.OpenStore(path)
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	defer store.Close()

	var rows []row
	if err := store.ScanSentences(context.Background(), func(in, out string) error {
		rows = append(rows, row{in, out})
		return nil
	}); err != nil {
		t.Fatalf("ScanSentences: %v", err)
	}
	return rows
}

func TestCache_BuildsCorpus(t *testing.T) {
	t.Parallel()

	sentencesDir := t.TempDir()
	databaseDir := t.TempDir()
	writeGrammar(t, sentencesDir, "en", "sentences:\n  - turn on the light\n")

	cache := sentences.NewCache(sentencesDir, databaseDir)
	cfg, err := cache.GetOrBuild(context.Background(), "en")
	if err != nil {
		t.Fatalf("GetOrBuild: %v", err)
	}
	if cfg == nil {
		t.Fatal("GetOrBuild returned no config")
	}
	if cfg.Language != "en" {
		t.Errorf("Language = %q", cfg.Language)
	}
	if cfg.DatabasePath != filepath.Join(databaseDir, "en.db") {
		t.Errorf("DatabasePath = %q", cfg.DatabasePath)
	}

	rows := corpusRows(t, cfg.DatabasePath)
	if len(rows) != 1 || rows[0] != (row{"turn on the light", "turn on the light"}) {
		t.Errorf("rows = %#v", rows)
	}
}

func TestCache_HitLeavesStoreUntouched(t *testing.T) {
	t.Parallel()

	sentencesDir := t.TempDir()
	databaseDir := t.TempDir()
	writeGrammar(t, sentencesDir, "en", "sentences:\n  - hello there\n")

	cache := sentences.NewCache(sentencesDir, databaseDir)
	ctx := context.Background()

	first, err := cache.GetOrBuild(ctx, "en")
	if err != nil {
		t.Fatalf("GetOrBuild #1: %v", err)
	}
	info1, err := os.Stat(first.DatabasePath)
	if err != nil {
		t.Fatalf("stat database: %v", err)
	}

	second, err := cache.GetOrBuild(ctx, "en")
	if err != nil {
		t.Fatalf("GetOrBuild #2: %v", err)
	}
	if first != second {
		t.Error("unchanged fingerprint returned a new config, want cached pointer")
	}
	info2, err := os.Stat(second.DatabasePath)
	if err != nil {
		t.Fatalf("stat database: %v", err)
	}
	if !info1.ModTime().Equal(info2.ModTime()) {
		t.Error("cache hit touched the store file")
	}
}

func TestCache_RebuildLeavesNoResidualRows(t *testing.T) {
	t.Parallel()

	sentencesDir := t.TempDir()
	databaseDir := t.TempDir()
	writeGrammar(t, sentencesDir, "en", "sentences:\n  - old sentence one\n  - old sentence two\n")

	cache := sentences.NewCache(sentencesDir, databaseDir)
	ctx := context.Background()

	cfg, err := cache.GetOrBuild(ctx, "en")
	if err != nil {
		t.Fatalf("GetOrBuild #1: %v", err)
	}
	if got := corpusRows(t, cfg.DatabasePath); len(got) != 2 {
		t.Fatalf("initial rows = %d, want 2", len(got))
	}

	// Different byte size guarantees a changed fingerprint even when the
	// filesystem's mtime granularity is coarse.
	writeGrammar(t, sentencesDir, "en", "sentences:\n  - replacement\n")

	cfg2, err := cache.GetOrBuild(ctx, "en")
	if err != nil {
		t.Fatalf("GetOrBuild #2: %v", err)
	}
	rows := corpusRows(t, cfg2.DatabasePath)
	if len(rows) != 1 || rows[0] != (row{"replacement", "replacement"}) {
		t.Errorf("rows after rebuild = %#v, want only the replacement", rows)
	}
}

func TestCache_MissingGrammarIsNoConfig(t *testing.T) {
	t.Parallel()

	cache := sentences.NewCache(t.TempDir(), t.TempDir())
	cfg, err := cache.GetOrBuild(context.Background(), "xx")
	if err != nil {
		t.Fatalf("GetOrBuild: %v", err)
	}
	if cfg != nil {
		t.Errorf("cfg = %#v, want nil for missing grammar", cfg)
	}
}

func TestCache_EmptyGrammarIsNoConfig(t *testing.T) {
	t.Parallel()

	sentencesDir := t.TempDir()
	writeGrammar(t, sentencesDir, "en", "")

	cache := sentences.NewCache(sentencesDir, t.TempDir())
	cfg, err := cache.GetOrBuild(context.Background(), "en")
	if err != nil {
		t.Fatalf("GetOrBuild: %v", err)
	}
	if cfg != nil {
		t.Errorf("cfg = %#v, want nil for empty grammar", cfg)
	}
}

func TestCache_GrammarWithoutSentencesIsNoConfig(t *testing.T) {
	t.Parallel()

	sentencesDir := t.TempDir()
	writeGrammar(t, sentencesDir, "en", "lists:\n  colors:\n    - red\n")

	cache := sentences.NewCache(sentencesDir, t.TempDir())
	cfg, err := cache.GetOrBuild(context.Background(), "en")
	if err != nil {
		t.Fatalf("GetOrBuild: %v", err)
	}
	if cfg != nil {
		t.Errorf("cfg = %#v, want nil for grammar without sentences", cfg)
	}
}

func TestCache_FailedRebuildKeepsPreviousStore(t *testing.T) {
	t.Parallel()

	sentencesDir := t.TempDir()
	databaseDir := t.TempDir()
	writeGrammar(t, sentencesDir, "en", "sentences:\n  - good sentence\n")

	cache := sentences.NewCache(sentencesDir, databaseDir)
	ctx := context.Background()

	cfg, err := cache.GetOrBuild(ctx, "en")
	if err != nil {
		t.Fatalf("GetOrBuild #1: %v", err)
	}

	// The replacement grammar references an undefined list, so the
	// rebuild must fail — and must not clobber the existing store.
	writeGrammar(t, sentencesDir, "en", "sentences:\n  - turn on {missing}\n")

	if _, err := cache.GetOrBuild(ctx, "en"); err == nil {
		t.Fatal("GetOrBuild succeeded, want missing-list failure")
	}

	rows := corpusRows(t, cfg.DatabasePath)
	if len(rows) != 1 || rows[0] != (row{"good sentence", "good sentence"}) {
		t.Errorf("previous store rows = %#v, want intact", rows)
	}
}

func TestCache_InvalidateForcesRebuild(t *testing.T) {
	t.Parallel()

	sentencesDir := t.TempDir()
	writeGrammar(t, sentencesDir, "en", "sentences:\n  - hello\n")

	cache := sentences.NewCache(sentencesDir, t.TempDir())
	ctx := context.Background()

	first, err := cache.GetOrBuild(ctx, "en")
	if err != nil {
		t.Fatalf("GetOrBuild #1: %v", err)
	}
	cache.Invalidate("en")
	second, err := cache.GetOrBuild(ctx, "en")
	if err != nil {
		t.Fatalf("GetOrBuild #2: %v", err)
	}
	if first == second {
		t.Error("GetOrBuild after Invalidate returned the cached pointer, want a rebuild")
	}
}

func TestCache_CompilesBypassPatternsAndUnknownText(t *testing.T) {
	t.Parallel()

	sentencesDir := t.TempDir()
	writeGrammar(t, sentencesDir, "en", `
sentences:
  - turn on the light
no_correct_patterns:
  - ^yes$
  - thanks
unknown_text: sorry?
`)

	cache := sentences.NewCache(sentencesDir, t.TempDir())
	cfg, err := cache.GetOrBuild(context.Background(), "en")
	if err != nil {
		t.Fatalf("GetOrBuild: %v", err)
	}
	if len(cfg.NoCorrectPatterns) != 2 {
		t.Fatalf("NoCorrectPatterns = %d, want 2", len(cfg.NoCorrectPatterns))
	}
	if !cfg.NoCorrectPatterns[0].MatchString("yes") {
		t.Error("^yes$ should match \"yes\"")
	}
	// Patterns anchor at the transcript start.
	if !cfg.NoCorrectPatterns[1].MatchString("thanks a lot") {
		t.Error("prefix pattern should match \"thanks a lot\"")
	}
	if cfg.NoCorrectPatterns[1].MatchString("many thanks") {
		t.Error("prefix pattern must not match mid-string")
	}
	if cfg.UnknownText != "sorry?" {
		t.Errorf("UnknownText = %q", cfg.UnknownText)
	}
}

func TestCache_FingerprintUsesModTime(t *testing.T) {
	t.Parallel()

	sentencesDir := t.TempDir()
	databaseDir := t.TempDir()
	writeGrammar(t, sentencesDir, "en", "sentences:\n  - same size aa\n")

	cache := sentences.NewCache(sentencesDir, databaseDir)
	ctx := context.Background()

	first, err := cache.GetOrBuild(ctx, "en")
	if err != nil {
		t.Fatalf("GetOrBuild #1: %v", err)
	}

	// Same byte size, different content: force a distinct mtime so the
	// fingerprint still changes.
	writeGrammar(t, sentencesDir, "en", "sentences:\n  - same size bb\n")
	future := time.Now().Add(2 * time.Second)
	path := filepath.Join(sentencesDir, "en.yaml")
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	second, err := cache.GetOrBuild(ctx, "en")
	if err != nil {
		t.Fatalf("GetOrBuild #2: %v", err)
	}
	if first == second {
		t.Error("changed mtime returned the cached config, want a rebuild")
	}
	rows := corpusRows(t, second.DatabasePath)
	if len(rows) != 1 || rows[0].in != "same size bb" {
		t.Errorf("rows = %#v, want rebuilt content", rows)
	}
}
