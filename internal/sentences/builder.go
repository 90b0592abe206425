package sentences

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/dekiesel/wyoming-vosk/internal/grammar"
)

// BuildStats summarizes a completed corpus build.
type BuildStats struct {
	Sentences int64
	Words     int64
}

// Build expands every sentence template of doc and populates store with
// the resulting (input_text, output_text) rows plus the vocabulary of
// input tokens. Rows for one template are committed together; the
// vocabulary is committed last. Any error — an undefined list or rule, a
// malformed template, a storage failure — aborts the build, and the
// caller must treat the store as unbuilt.
func Build(ctx context.Context, doc *Document, store *Store) (BuildStats, error) {
	sampler, err := compileSampler(doc)
	if err != nil {
		return BuildStats{}, err
	}

	var stats BuildStats
	vocabulary := map[string]struct{}{}

	for i, entry := range doc.Sentences {
		w, err := store.BeginSentences(ctx)
		if err != nil {
			return BuildStats{}, err
		}
		if err := buildTemplate(ctx, sampler, entry, w, vocabulary, &stats); err != nil {
			w.Rollback()
			return BuildStats{}, fmt.Errorf("sentences: template %d: %w", i, err)
		}
		if err := w.Commit(); err != nil {
			return BuildStats{}, err
		}
	}

	words := make([]string, 0, len(vocabulary))
	for word := range vocabulary {
		words = append(words, word)
	}
	sort.Strings(words)
	if err := store.InsertWords(ctx, words); err != nil {
		return BuildStats{}, err
	}
	stats.Words = int64(len(words))

	return stats, nil
}

// buildTemplate writes every concrete sentence of one template entry.
func buildTemplate(
	ctx context.Context,
	sampler *grammar.Sampler,
	entry SentenceEntry,
	w *SentenceWriter,
	vocabulary map[string]struct{},
	stats *BuildStats,
) error {
	for _, inputTemplate := range entry.In {
		if !grammar.IsTemplate(inputTemplate) {
			outputText := entry.Out
			if outputText == "" {
				outputText = inputTemplate
			}
			if err := w.Insert(ctx, inputTemplate, outputText); err != nil {
				return err
			}
			addWords(vocabulary, inputTemplate)
			stats.Sentences++
			continue
		}

		expr, err := grammar.ParseSentence(inputTemplate)
		if err != nil {
			return err
		}
		err = sampler.Sample(expr, func(sm grammar.Sample) error {
			outputText := entry.Out
			if outputText == "" {
				if sm.HasOutput && sm.Output != "" {
					outputText = sm.Output
				} else {
					outputText = sm.Input
				}
			}
			outputText = grammar.Resolve(outputText, sm.Subs)

			if err := w.Insert(ctx, sm.Input, outputText); err != nil {
				return err
			}
			addWords(vocabulary, sm.Input)
			stats.Sentences++
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// compileSampler parses the document's lists and expansion rules into a
// [grammar.Sampler].
//
// List values whose input text is itself a template are pre-expanded
// into one value per surface form, all sharing the declared output.
// Rule bodies are parsed as sentence templates.
func compileSampler(doc *Document) (*grammar.Sampler, error) {
	lists := make(map[string]grammar.List, len(doc.Lists))
	for name, entry := range doc.Lists {
		if len(entry.Values) == 0 {
			slog.Warn("no values for list, skipping", "list", name)
			continue
		}
		list := grammar.List{}
		for _, value := range entry.Values {
			expanded, err := expandListValue(value)
			if err != nil {
				return nil, fmt.Errorf("sentences: list %q: %w", name, err)
			}
			list.Values = append(list.Values, expanded...)
		}
		lists[name] = list
	}

	rules := make(map[string]grammar.Expression, len(doc.ExpansionRules))
	for name, template := range doc.ExpansionRules {
		expr, err := grammar.ParseSentence(template)
		if err != nil {
			return nil, fmt.Errorf("sentences: expansion rule %q: %w", name, err)
		}
		rules[name] = expr
	}

	return &grammar.Sampler{Lists: lists, Rules: rules}, nil
}

// expandListValue turns one declared list value into its concrete
// surface forms. Templated inputs are sampled with an empty sampler:
// list values may use alternation and optionals but not nested list or
// rule references.
func expandListValue(value ListValueEntry) ([]grammar.ListValue, error) {
	if !grammar.IsTemplate(value.In) {
		return []grammar.ListValue{{In: grammar.TextChunk{Text: value.In}, Out: value.Out}}, nil
	}

	expr, err := grammar.ParseSentence(value.In)
	if err != nil {
		return nil, err
	}
	var values []grammar.ListValue
	sampler := &grammar.Sampler{}
	err = sampler.Sample(expr, func(sm grammar.Sample) error {
		values = append(values, grammar.ListValue{
			In:  grammar.TextChunk{Text: sm.Input},
			Out: value.Out,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return values, nil
}

// addWords accumulates the whitespace-delimited tokens of an input text.
// Output text is not tokenized.
func addWords(vocabulary map[string]struct{}, inputText string) {
	for _, word := range strings.Fields(inputText) {
		vocabulary[word] = struct{}{}
	}
}
