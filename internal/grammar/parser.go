package grammar

import (
	"fmt"
	"strings"
)

// ParseError reports a malformed sentence template. Position is a byte
// offset into the template.
type ParseError struct {
	Template string
	Position int
	Message  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("grammar: parse %q at offset %d: %s", e.Template, e.Position, e.Message)
}

// ParseSentence parses a sentence template into an [Expression].
//
// Syntax:
//
//	plain text          literal chunk (whitespace preserved)
//	(a|b|c)             alternation — exactly one branch per sentence
//	[optional]          sugar for an alternation with an empty branch
//	{list_name}         reference to a named list
//	<rule_name>         reference to a named expansion rule
//
// Alternation bars are only recognized inside parentheses or brackets;
// everything at the top level concatenates.
func ParseSentence(template string) (Expression, error) {
	p := &parser{src: template}
	expr, err := p.parseGroup(false)
	if err != nil {
		return nil, err
	}
	if p.pos < len(p.src) {
		return nil, p.errorf("unexpected %q", p.src[p.pos])
	}
	return expr, nil
}

type parser struct {
	src string
	pos int
}

func (p *parser) errorf(format string, args ...any) error {
	return &ParseError{Template: p.src, Position: p.pos, Message: fmt.Sprintf(format, args...)}
}

// parseGroup parses a concatenation of items until end of input or,
// when nested is true, until a closing delimiter or alternation bar.
func (p *parser) parseGroup(nested bool) (Expression, error) {
	var items []Expression

	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch c {
		case ')', ']', '|':
			if !nested {
				return nil, p.errorf("unexpected %q outside a group", c)
			}
			return groupOf(items), nil

		case '(':
			p.pos++
			alt, err := p.parseAlternation(')')
			if err != nil {
				return nil, err
			}
			items = append(items, alt)

		case '[':
			p.pos++
			alt, err := p.parseAlternation(']')
			if err != nil {
				return nil, err
			}
			// Optional: one extra empty branch.
			opt := alt.(Alternation)
			opt.Items = append(opt.Items, TextChunk{})
			items = append(items, opt)

		case '{':
			name, err := p.parseName('}')
			if err != nil {
				return nil, err
			}
			items = append(items, ListRef{Name: name})

		case '<':
			name, err := p.parseName('>')
			if err != nil {
				return nil, err
			}
			items = append(items, RuleRef{Name: name})

		case '}', '>':
			return nil, p.errorf("unexpected %q", c)

		default:
			items = append(items, TextChunk{Text: p.parseText()})
		}
	}

	if nested {
		return nil, p.errorf("unterminated group")
	}
	return groupOf(items), nil
}

// parseAlternation parses bar-separated branches up to the given closing
// delimiter, consuming the delimiter. A single branch still yields an
// Alternation so that `[x]` can append its empty branch uniformly.
func (p *parser) parseAlternation(closing byte) (Expression, error) {
	var branches []Expression

	for {
		branch, err := p.parseGroup(true)
		if err != nil {
			return nil, err
		}
		branches = append(branches, branch)

		if p.pos >= len(p.src) {
			return nil, p.errorf("missing %q", closing)
		}
		switch p.src[p.pos] {
		case '|':
			p.pos++
		case closing:
			p.pos++
			return Alternation{Items: branches}, nil
		default:
			return nil, p.errorf("expected %q, found %q", closing, p.src[p.pos])
		}
	}
}

// parseName reads a list or rule name up to the given closing delimiter,
// consuming the delimiter. The opening delimiter is at the current
// position when called.
func (p *parser) parseName(closing byte) (string, error) {
	start := p.pos
	p.pos++ // opening delimiter
	end := strings.IndexByte(p.src[p.pos:], closing)
	if end < 0 {
		p.pos = start
		return "", p.errorf("missing %q", closing)
	}
	name := strings.TrimSpace(p.src[p.pos : p.pos+end])
	p.pos += end + 1
	if name == "" {
		p.pos = start
		return "", p.errorf("empty name")
	}
	return name, nil
}

// parseText consumes a literal run up to the next metacharacter.
func (p *parser) parseText() string {
	start := p.pos
	for p.pos < len(p.src) && !strings.ContainsRune(templateChars, rune(p.src[p.pos])) {
		p.pos++
	}
	return p.src[start:p.pos]
}

// groupOf wraps items in a [Group] unless a single item suffices.
func groupOf(items []Expression) Expression {
	switch len(items) {
	case 0:
		return TextChunk{}
	case 1:
		return items[0]
	default:
		return Group{Items: items}
	}
}
