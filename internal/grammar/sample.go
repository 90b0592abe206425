package grammar

import (
	"fmt"
)

// MissingListError reports a `{name}` reference to a list that was never
// defined. It aborts the enumeration that encountered it.
type MissingListError struct {
	Name string
}

func (e *MissingListError) Error() string {
	return fmt.Sprintf("grammar: missing list {%s}", e.Name)
}

// MissingRuleError reports a `<name>` reference to an expansion rule
// that was never defined. It aborts the enumeration that encountered it.
type MissingRuleError struct {
	Name string
}

func (e *MissingRuleError) Error() string {
	return fmt.Sprintf("grammar: missing expansion rule <%s>", e.Name)
}

// Substitutions records which list value and rule expansion was chosen
// along one enumerated derivation path. Each recursive sampling step
// works on a private copy, so sibling branches never observe each
// other's choices.
type Substitutions struct {
	// Lists maps list name → the chosen entry's canonical output value.
	Lists map[string]string

	// Rules maps rule name → the literal text chosen inside that rule's
	// body.
	Rules map[string]string

	// currentRule marks that the sampler is descending into the named
	// rule's body; literal text encountered during the descent is
	// recorded under that name.
	currentRule string
}

// NewSubstitutions returns an empty substitution record.
func NewSubstitutions() Substitutions {
	return Substitutions{
		Lists: map[string]string{},
		Rules: map[string]string{},
	}
}

// Empty reports whether no choices have been recorded.
func (s Substitutions) Empty() bool {
	return len(s.Lists) == 0 && len(s.Rules) == 0
}

// clone returns a deep copy. Every sampling step clones before writing
// so that yielded samples own their substitution record outright.
func (s Substitutions) clone() Substitutions {
	out := Substitutions{
		Lists:       make(map[string]string, len(s.Lists)),
		Rules:       make(map[string]string, len(s.Rules)),
		currentRule: s.currentRule,
	}
	for k, v := range s.Lists {
		out.Lists[k] = v
	}
	for k, v := range s.Rules {
		out.Rules[k] = v
	}
	return out
}

// merge copies other's recorded choices into s, overwriting on
// collision. Grammars do not reuse a name within one production, so a
// collision only happens for repeated chunks inside one rule body, where
// last-one-wins matches the concatenation result.
func (s Substitutions) merge(other Substitutions) {
	for k, v := range other.Lists {
		s.Lists[k] = v
	}
	for k, v := range other.Rules {
		s.Rules[k] = v
	}
}

// Sample is one concrete sentence produced by expanding an expression:
// the recognizable input text, the canonical output text when one was
// determined along the way, and the substitutions chosen on this path.
type Sample struct {
	Input string

	// Output carries canonical output text when HasOutput is true. A
	// list entry that expands to several surface forms declares its
	// output on the first form only; the rest yield HasOutput == false
	// so that the caller falls back to the input text instead of
	// duplicating the canonical row.
	Output    string
	HasOutput bool

	Subs Substitutions
}

// Sampler enumerates every concrete sentence an expression can produce,
// resolving `{list}` references against Lists and `<rule>` references
// against Rules.
//
// Enumeration is deterministic and follows declaration order:
// alternation branches and list entries in written order, concatenation
// as a Cartesian product with the leftmost operand varying slowest.
// Every call to [Sampler.Sample] is a fresh, independent enumeration.
type Sampler struct {
	Lists map[string]List
	Rules map[string]Expression
}

// Sample invokes fn once per generated sentence, in enumeration order.
// It stops and returns the first error from fn, a [*MissingListError],
// or a [*MissingRuleError]. Samples are delivered as they are produced;
// the full expansion is never materialized at once.
func (s *Sampler) Sample(expr Expression, fn func(Sample) error) error {
	return s.sample(expr, NewSubstitutions(), fn)
}

func (s *Sampler) sample(expr Expression, subs Substitutions, fn func(Sample) error) error {
	switch e := expr.(type) {
	case TextChunk:
		out := subs.clone()
		if out.currentRule != "" {
			out.Rules[out.currentRule] = e.Text
		}
		return fn(Sample{Input: e.Text, Output: e.Text, HasOutput: true, Subs: out})

	case Alternation:
		for _, item := range e.Items {
			if err := s.sample(item, subs, fn); err != nil {
				return err
			}
		}
		return nil

	case Group:
		return s.sampleGroup(e, subs, fn)

	case ListRef:
		return s.sampleList(e, subs, fn)

	case RuleRef:
		body, ok := s.Rules[e.Name]
		if !ok {
			return &MissingRuleError{Name: e.Name}
		}
		inRule := subs.clone()
		inRule.currentRule = e.Name
		return s.sample(body, inRule, fn)

	default:
		return fmt.Errorf("grammar: unexpected expression %s", exprString(expr))
	}
}

// sampleGroup yields the Cartesian product of the items' expansions.
// Each item is expanded once up front with the same incoming
// substitutions — the product machinery needs re-iterable sequences —
// and combinations stream out one at a time.
func (s *Sampler) sampleGroup(g Group, subs Substitutions, fn func(Sample) error) error {
	pools := make([][]Sample, len(g.Items))
	for i, item := range g.Items {
		pool, err := s.collect(item, subs)
		if err != nil {
			return err
		}
		if len(pool) == 0 {
			// An empty operand empties the whole product.
			return nil
		}
		pools[i] = pool
	}

	combo := make([]Sample, len(pools))
	var walk func(depth int) error
	walk = func(depth int) error {
		if depth == len(pools) {
			return fn(joinSamples(combo, subs))
		}
		for _, sm := range pools[depth] {
			combo[depth] = sm
			if err := walk(depth + 1); err != nil {
				return err
			}
		}
		return nil
	}
	return walk(0)
}

// joinSamples concatenates one combination of per-item samples into a
// single sentence: inputs join directly, outputs join skipping absent
// ones, and the substitution records union into a copy of the incoming
// context.
func joinSamples(combo []Sample, subs Substitutions) Sample {
	var in, out []byte
	merged := subs.clone()
	for _, sm := range combo {
		in = append(in, sm.Input...)
		if sm.HasOutput {
			out = append(out, sm.Output...)
		}
		merged.merge(sm.Subs)
	}
	return Sample{
		Input:     normalizeWhitespace(string(in)),
		Output:    normalizeWhitespace(string(out)),
		HasOutput: true,
		Subs:      merged,
	}
}

// collect materializes one item's expansion for product iteration.
func (s *Sampler) collect(expr Expression, subs Substitutions) ([]Sample, error) {
	var pool []Sample
	err := s.sample(expr, subs, func(sm Sample) error {
		pool = append(pool, sm)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pool, nil
}

// sampleList expands a `{name}` reference entry by entry.
//
// An entry with a declared output yields that output on its first
// surface form only; further forms of the same entry yield no output so
// that one canonical row does not repeat. An entry without a declared
// output passes its sampled output through. Either way the chosen
// entry's output value is recorded under the list name, and choices made
// while sampling the entry's surface form (a rule-literal record, for
// one) stay in the yielded substitutions.
func (s *Sampler) sampleList(ref ListRef, subs Substitutions, fn func(Sample) error) error {
	list, ok := s.Lists[ref.Name]
	if !ok {
		return &MissingListError{Name: ref.Name}
	}

	for _, value := range list.Values {
		chosen := subs.clone()
		chosen.Lists[ref.Name] = value.Out

		if value.Out != "" {
			first := true
			err := s.sample(value.In, chosen, func(sm Sample) error {
				out := Sample{Input: sm.Input, Subs: sm.Subs}
				if first {
					out.Output = value.Out
					out.HasOutput = true
					first = false
				}
				return fn(out)
			})
			if err != nil {
				return err
			}
			continue
		}

		if err := s.sample(value.In, chosen, fn); err != nil {
			return err
		}
	}
	return nil
}
