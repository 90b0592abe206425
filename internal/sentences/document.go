// Package sentences turns a per-language YAML sentence grammar into a
// SQLite corpus of (input_text, output_text) pairs plus a vocabulary
// table, and caches the resulting per-language configuration keyed by a
// fingerprint of the source file.
package sentences

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Document is the parsed per-language grammar source.
//
// YAML shape:
//
//	sentences:
//	  - same text in and out
//	  - in: text in
//	    out: different text out
//	  - in:
//	      - multiple text
//	      - multiple text in
//	    out: different text out
//	lists:
//	  <name>:
//	    - value 1
//	    - in: value 2 spoken form
//	      out: value 2 output
//	expansion_rules:
//	  <name>: sentence template
//	no_correct_patterns:
//	  - ^regex$
//	unknown_text: fallback for unrecognized input
type Document struct {
	Sentences         []SentenceEntry      `yaml:"sentences"`
	Lists             map[string]ListEntry `yaml:"lists"`
	ExpansionRules    map[string]string    `yaml:"expansion_rules"`
	NoCorrectPatterns []string             `yaml:"no_correct_patterns"`
	UnknownText       string               `yaml:"unknown_text"`
}

// SentenceEntry is one sentence template declaration: one or more input
// templates and an optional shared output text. A plain string entry is
// shorthand for a single input with no explicit output.
type SentenceEntry struct {
	In  []string
	Out string
}

// UnmarshalYAML accepts either a plain string or an {in, out} mapping
// where in is a string or a list of strings.
func (e *SentenceEntry) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		e.In = []string{s}
		e.Out = ""
		return nil
	}

	var aux struct {
		In  oneOrMany `yaml:"in"`
		Out string    `yaml:"out"`
	}
	if err := node.Decode(&aux); err != nil {
		return fmt.Errorf("sentences: decode sentence entry: %w", err)
	}
	if len(aux.In) == 0 {
		return fmt.Errorf("sentences: sentence entry at line %d has no input templates", node.Line)
	}
	e.In = aux.In
	e.Out = aux.Out
	return nil
}

// oneOrMany decodes a YAML value that is either a single string or a
// sequence of strings.
type oneOrMany []string

func (o *oneOrMany) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		*o = []string{s}
		return nil
	}
	var many []string
	if err := node.Decode(&many); err != nil {
		return err
	}
	*o = many
	return nil
}

// ListEntry declares the values of one named list. A bare YAML sequence
// and a {values: [...]} mapping are equivalent.
type ListEntry struct {
	Values []ListValueEntry
}

func (l *ListEntry) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.SequenceNode {
		return node.Decode(&l.Values)
	}
	var aux struct {
		Values []ListValueEntry `yaml:"values"`
	}
	if err := node.Decode(&aux); err != nil {
		return fmt.Errorf("sentences: decode list entry: %w", err)
	}
	l.Values = aux.Values
	return nil
}

// ListValueEntry is one list value. A plain string is both the spoken
// form and the output; an {in, out} mapping separates them. In may
// itself be a template, in which case it is pre-expanded at compile
// time into one value per surface form.
type ListValueEntry struct {
	In  string
	Out string
}

func (v *ListValueEntry) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		v.In = s
		v.Out = s
		return nil
	}

	var aux struct {
		In  string `yaml:"in"`
		Out string `yaml:"out"`
	}
	if err := node.Decode(&aux); err != nil {
		return fmt.Errorf("sentences: decode list value: %w", err)
	}
	if aux.In == "" {
		return fmt.Errorf("sentences: list value at line %d has no input text", node.Line)
	}
	v.In = aux.In
	v.Out = aux.Out
	return nil
}

// LoadDocument reads and decodes the grammar source at path.
func LoadDocument(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("sentences: open %q: %w", path, err)
	}
	defer f.Close()

	doc, err := LoadDocumentFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("sentences: parse %q: %w", path, err)
	}
	return doc, nil
}

// LoadDocumentFromReader decodes a grammar source document from r.
// An empty input yields an empty Document, not an error, so callers can
// treat blank files as "no configuration".
func LoadDocumentFromReader(r io.Reader) (*Document, error) {
	doc := &Document{}
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(doc); err != nil {
		if errors.Is(err, io.EOF) {
			return &Document{}, nil
		}
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return doc, nil
}
