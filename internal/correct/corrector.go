// Package correct maps noisy speech-recognition transcripts onto the
// closest sentence of a generated corpus, substituting the corpus's
// canonical output text. Closeness is a weighted Levenshtein distance
// where substitutions cost three times as much as insertions or
// deletions, which favors candidates sharing most characters over ones
// that merely land at a similar edit count via substitution.
package correct

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/dekiesel/wyoming-vosk/internal/observe"
	"github.com/dekiesel/wyoming-vosk/internal/sentences"
)

// Edit costs of the corpus distance scan.
const (
	insertCost     = 1
	deleteCost     = 1
	substituteCost = 3
)

// Outcome classifies what a correction call did.
type Outcome string

const (
	// OutcomeCorrected means the best match's output text was accepted.
	OutcomeCorrected Outcome = "corrected"

	// OutcomeBypassed means the transcript matched a bypass pattern and
	// was returned unchanged.
	OutcomeBypassed Outcome = "bypassed"

	// OutcomeNoStore means no corpus database exists for the language.
	OutcomeNoStore Outcome = "no_store"

	// OutcomeNoMatch means the corpus holds no sentence rows.
	OutcomeNoMatch Outcome = "no_match"

	// OutcomeCutoffExceeded means the best match's distance was above
	// the score cutoff and the transcript was returned unchanged.
	OutcomeCutoffExceeded Outcome = "cutoff_exceeded"
)

// Correction is the result of one correction call. Text is always
// populated: the matched row's output text when the match was accepted,
// the original transcript otherwise.
type Correction struct {
	Text    string
	Outcome Outcome

	// MatchedInput and Distance describe the winning corpus row. They
	// are only meaningful for OutcomeCorrected and OutcomeCutoffExceeded.
	MatchedInput string
	Distance     int
}

// Option configures a [Corrector].
type Option func(*Corrector)

// WithPhoneticPrefilter narrows the distance scan to corpus rows that
// share at least one Double Metaphone code with the transcript. When no
// row shares a code, the corrector falls back to a full scan, so a
// result is always produced. Off by default: the filter trades a small
// chance of missing the true best match for a much cheaper scan of
// large corpora.
func WithPhoneticPrefilter() Option {
	return func(c *Corrector) {
		c.prefilter = true
	}
}

// WithMetrics attaches metric instruments recording correction outcomes
// and winning distances. When nil (the default), nothing is recorded.
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Corrector) {
		c.metrics = m
	}
}

// Corrector finds the nearest stored sentence for a transcript. It is
// stateless between calls and safe for concurrent use.
type Corrector struct {
	prefilter bool
	metrics   *observe.Metrics
}

// New constructs a [Corrector] with the supplied options.
func New(opts ...Option) *Corrector {
	c := &Corrector{}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Correct returns the corpus output text nearest to text.
//
// The transcript is returned unchanged when the language has no corpus
// database, when text matches one of the config's bypass patterns, when
// the corpus is empty, or when the winning distance exceeds
// scoreCutoff. A scoreCutoff <= 0 means no cutoff: the best match is
// always accepted. Ties between equal distances keep the first row in
// store order.
func (c *Corrector) Correct(ctx context.Context, text string, cfg *sentences.Config, scoreCutoff float64) (Correction, error) {
	if _, err := os.Stat(cfg.DatabasePath); errors.Is(err, fs.ErrNotExist) {
		return c.finish(ctx, cfg, Correction{Text: text, Outcome: OutcomeNoStore}), nil
	}

	for _, pattern := range cfg.NoCorrectPatterns {
		if pattern.MatchString(text) {
			return c.finish(ctx, cfg, Correction{Text: text, Outcome: OutcomeBypassed}), nil
		}
	}

	store, err := sentences.OpenStore(cfg.DatabasePath)
	if err != nil {
		return Correction{}, err
	}
	defer store.Close()

	best, found, err := c.bestMatch(ctx, store, text)
	if err != nil {
		return Correction{}, err
	}
	if !found {
		return c.finish(ctx, cfg, Correction{Text: text, Outcome: OutcomeNoMatch}), nil
	}

	result := Correction{
		MatchedInput: best.input,
		Distance:     best.distance,
	}
	if scoreCutoff <= 0 || float64(best.distance) <= scoreCutoff {
		result.Text = best.output
		result.Outcome = OutcomeCorrected
	} else {
		result.Text = text
		result.Outcome = OutcomeCutoffExceeded
	}

	slog.Debug("correction scored",
		"score", best.distance,
		"cutoff", scoreCutoff,
		"original", text,
		"final", result.Text,
	)
	return c.finish(ctx, cfg, result), nil
}

type match struct {
	input    string
	output   string
	distance int
}

// bestMatch scans the stored sentences for the minimum-distance input
// text. With the phonetic prefilter enabled it first scans only rows
// sharing a Double Metaphone code with text and falls back to the full
// corpus when that yields nothing.
func (c *Corrector) bestMatch(ctx context.Context, store *sentences.Store, text string) (match, bool, error) {
	if c.prefilter {
		codes := metaphoneCodes(text)
		if len(codes) > 0 {
			best, found, err := scan(ctx, store, text, func(input string) bool {
				return codesOverlap(codes, metaphoneCodes(input))
			})
			if err != nil || found {
				return best, found, err
			}
		}
	}
	return scan(ctx, store, text, nil)
}

// scan computes the weighted distance from text to every stored input
// accepted by filter (nil accepts all) and keeps the first minimum.
func scan(ctx context.Context, store *sentences.Store, text string, filter func(string) bool) (match, bool, error) {
	var best match
	found := false

	err := store.ScanSentences(ctx, func(inputText, outputText string) error {
		if filter != nil && !filter(inputText) {
			return nil
		}
		d := Distance(text, inputText, insertCost, deleteCost, substituteCost)
		if !found || d < best.distance {
			best = match{input: inputText, output: outputText, distance: d}
			found = true
		}
		return nil
	})
	if err != nil {
		return match{}, false, err
	}
	return best, found, nil
}

// finish records metrics for a completed correction and returns it.
func (c *Corrector) finish(ctx context.Context, cfg *sentences.Config, result Correction) Correction {
	c.metrics.RecordCorrection(ctx, cfg.Language, string(result.Outcome),
		float64(result.Distance), result.Outcome == OutcomeCorrected)
	return result
}

// metaphoneCodes returns the union of Double Metaphone codes of the
// whitespace-delimited tokens of text.
func metaphoneCodes(text string) map[string]struct{} {
	tokens := strings.Fields(strings.ToLower(text))
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

// codesOverlap reports whether the two code sets share at least one code.
func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}
