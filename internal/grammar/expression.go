// Package grammar implements the templated sentence grammar used to
// generate speech-recognition correction corpora: a closed expression
// algebra (literal text, alternation, concatenation, list references,
// rule references), a parser for the compact template syntax, and an
// expansion sampler that enumerates every concrete sentence an
// expression can produce while tracking which substitutions were chosen
// along each derivation path.
package grammar

import (
	"fmt"
	"strings"
)

// Expression is one node of a parsed sentence template. The set of
// implementations is closed: [TextChunk], [Alternation], [Group],
// [ListRef] and [RuleRef]. Code that walks an expression tree should
// type-switch over these five kinds and treat anything else as a
// programming error.
type Expression interface {
	isExpression()
}

// TextChunk is a literal run of text, including any surrounding
// whitespace from the source template. Concatenation relies on chunks
// keeping their original spacing; the sampler normalizes whitespace
// after joining.
type TextChunk struct {
	Text string
}

// Alternation produces exactly one of its items per generated sentence,
// in declaration order. The template syntax `(a|b|c)` parses to an
// Alternation with three items; `[x]` parses to an Alternation of x and
// an empty chunk.
type Alternation struct {
	Items []Expression
}

// Group concatenates its items. Each generated sentence is one element
// of the Cartesian product of the items' expansions, with the leftmost
// item varying slowest.
type Group struct {
	Items []Expression
}

// ListRef references a named list by `{name}`. The list supplies the
// possible surface forms and their canonical output values.
type ListRef struct {
	Name string
}

// RuleRef references a named expansion rule by `<name>`. The rule body
// is sampled in place, and literal text chosen inside it is recorded
// under the rule name in the substitution context.
type RuleRef struct {
	Name string
}

func (TextChunk) isExpression()   {}
func (Alternation) isExpression() {}
func (Group) isExpression()       {}
func (ListRef) isExpression()     {}
func (RuleRef) isExpression()     {}

// ListValue is one entry of a [List]: a surface-form expression and the
// canonical output text it maps to. An empty Out means the entry has no
// declared output and the sampled surface text passes through instead.
type ListValue struct {
	In  Expression
	Out string
}

// List is a named collection of surface forms referenced by `{name}`.
type List struct {
	Values []ListValue
}

// templateChars are the metacharacters of the template syntax. A string
// containing none of them is a plain sentence that needs no expansion.
const templateChars = "(){}<>[]|"

// IsTemplate reports whether text contains template syntax and therefore
// must be parsed and sampled rather than used verbatim.
func IsTemplate(text string) bool {
	return strings.ContainsAny(text, templateChars)
}

// normalizeWhitespace collapses runs of whitespace into single spaces
// and trims the ends. Concatenated chunks carry their source spacing,
// so joins can produce doubled or dangling spaces.
func normalizeWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// exprString renders an expression for error messages and debugging.
func exprString(expr Expression) string {
	switch e := expr.(type) {
	case TextChunk:
		return fmt.Sprintf("%q", e.Text)
	case Alternation:
		parts := make([]string, len(e.Items))
		for i, it := range e.Items {
			parts[i] = exprString(it)
		}
		return "(" + strings.Join(parts, "|") + ")"
	case Group:
		parts := make([]string, len(e.Items))
		for i, it := range e.Items {
			parts[i] = exprString(it)
		}
		return strings.Join(parts, " + ")
	case ListRef:
		return "{" + e.Name + "}"
	case RuleRef:
		return "<" + e.Name + ">"
	default:
		return fmt.Sprintf("unknown expression %T", expr)
	}
}
