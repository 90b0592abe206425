// Command sentences builds speech-recognition correction corpora from
// per-language YAML sentence grammars and corrects transcripts against
// them.
//
// With no -language flag it builds every `<language>.yaml` grammar found
// in the sentences directory. With -language it builds that language and
// then corrects either the one-shot -correct text or every line read
// from stdin.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dekiesel/wyoming-vosk/internal/correct"
	"github.com/dekiesel/wyoming-vosk/internal/observe"
	"github.com/dekiesel/wyoming-vosk/internal/sentences"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	sentencesDir := flag.String("sentences-dir", "sentences", "directory with <language>.yaml grammar files")
	databaseDir := flag.String("database-dir", "databases", "directory for generated <language>.db corpus files")
	language := flag.String("language", "", "language to build and correct for; empty builds all languages")
	correctText := flag.String("correct", "", "one-shot transcript to correct (requires -language)")
	scoreCutoff := flag.Float64("score-cutoff", 0, "maximum accepted edit distance; <= 0 accepts any best match")
	phoneticPrefilter := flag.Bool("phonetic-prefilter", false, "narrow the correction scan with a Double Metaphone candidate filter")
	watch := flag.Bool("watch", false, "keep running and rebuild corpora when grammar files change")
	watchInterval := flag.Duration("watch-interval", 5*time.Second, "grammar polling interval in watch mode")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	// ── Logger ─────────────────────────────────────────────────────────────────
	logger := newLogger(*logLevel)
	slog.SetDefault(logger)

	ctx := context.Background()

	// ── Telemetry ──────────────────────────────────────────────────────────────
	shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	cache := sentences.NewCache(*sentencesDir, *databaseDir, sentences.WithMetrics(metrics))

	// ── Build all languages ────────────────────────────────────────────────────
	if *language == "" {
		if *correctText != "" {
			fmt.Fprintln(os.Stderr, "sentences: -correct requires -language")
			return 1
		}
		if *watch {
			return watchGrammars(ctx, cache, *sentencesDir, *watchInterval)
		}
		if err := buildAll(ctx, cache, *sentencesDir); err != nil {
			slog.Error("build failed", "err", err)
			return 1
		}
		return 0
	}

	// ── Build one language, then correct ───────────────────────────────────────
	cfg, err := cache.GetOrBuild(ctx, *language)
	if err != nil {
		slog.Error("build failed", "language", *language, "err", err)
		return 1
	}
	if cfg == nil {
		slog.Warn("no grammar for language", "language", *language, "dir", *sentencesDir)
		return 1
	}

	var opts []correct.Option
	if *phoneticPrefilter {
		opts = append(opts, correct.WithPhoneticPrefilter())
	}
	opts = append(opts, correct.WithMetrics(metrics))
	corrector := correct.New(opts...)

	if *correctText != "" {
		return correctOne(ctx, corrector, *correctText, cfg, *scoreCutoff, os.Stdout)
	}
	return correctLines(ctx, corrector, cfg, *scoreCutoff, os.Stdin, os.Stdout)
}

// buildAll discovers every `<language>.yaml` grammar in dir and builds
// the corpora concurrently. Languages are independent stores, so the
// parallelism is safe.
func buildAll(ctx context.Context, cache *sentences.Cache, dir string) error {
	entries, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return fmt.Errorf("glob %q: %w", dir, err)
	}
	if len(entries) == 0 {
		return fmt.Errorf("no grammar files in %q", dir)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, path := range entries {
		lang := strings.TrimSuffix(filepath.Base(path), ".yaml")
		g.Go(func() error {
			cfg, err := cache.GetOrBuild(gctx, lang)
			if err != nil {
				return fmt.Errorf("language %q: %w", lang, err)
			}
			if cfg == nil {
				slog.Warn("skipped language", "language", lang)
			}
			return nil
		})
	}
	return g.Wait()
}

// watchGrammars builds every grammar once and then keeps polling the
// directory, rebuilding corpora as their grammar files change, until
// the process is interrupted.
func watchGrammars(ctx context.Context, cache *sentences.Cache, dir string, interval time.Duration) int {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	watcher, err := sentences.NewWatcher(ctx, cache, dir,
		sentences.WithInterval(interval),
		sentences.WithOnChange(func(language string, _ *sentences.Config) {
			slog.Info("corpus rebuilt", "language", language)
		}),
	)
	if err != nil {
		slog.Error("watch failed", "dir", dir, "err", err)
		return 1
	}
	defer watcher.Stop()

	slog.Info("watching grammars", "dir", dir, "interval", interval)
	<-ctx.Done()
	return 0
}

// correctOne corrects a single transcript and prints the result.
func correctOne(ctx context.Context, corrector *correct.Corrector, text string, cfg *sentences.Config, cutoff float64, out io.Writer) int {
	result, err := corrector.Correct(ctx, text, cfg, cutoff)
	if err != nil {
		slog.Error("correction failed", "err", err)
		return 1
	}
	fmt.Fprintln(out, finalText(result, cfg))
	return 0
}

// correctLines corrects every input line until EOF.
func correctLines(ctx context.Context, corrector *correct.Corrector, cfg *sentences.Config, cutoff float64, in io.Reader, out io.Writer) int {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		result, err := corrector.Correct(ctx, line, cfg, cutoff)
		if err != nil {
			slog.Error("correction failed", "err", err)
			return 1
		}
		fmt.Fprintln(out, finalText(result, cfg))
	}
	if err := scanner.Err(); err != nil {
		slog.Error("read input", "err", err)
		return 1
	}
	return 0
}

// finalText maps a rejected match onto the grammar's unknown_text
// fallback when one is declared.
func finalText(result correct.Correction, cfg *sentences.Config) string {
	if result.Outcome == correct.OutcomeCutoffExceeded && cfg.UnknownText != "" {
		return cfg.UnknownText
	}
	return result.Text
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
