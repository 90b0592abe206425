package grammar_test

import (
	"errors"
	"testing"

	"github.com/dekiesel/wyoming-vosk/internal/grammar"
)

func TestIsTemplate(t *testing.T) {
	t.Parallel()

	templates := []string{"(a|b)", "[maybe] stop", "turn on {device}", "do <thing>", "a|b"}
	for _, s := range templates {
		if !grammar.IsTemplate(s) {
			t.Errorf("IsTemplate(%q) = false, want true", s)
		}
	}
	plain := []string{"turn on the light", "", "hello world."}
	for _, s := range plain {
		if grammar.IsTemplate(s) {
			t.Errorf("IsTemplate(%q) = true, want false", s)
		}
	}
}

func TestParseSentence_PlainText(t *testing.T) {
	t.Parallel()

	expr, err := grammar.ParseSentence("turn on the light")
	if err != nil {
		t.Fatalf("ParseSentence: %v", err)
	}
	chunk, ok := expr.(grammar.TextChunk)
	if !ok {
		t.Fatalf("expr = %T, want TextChunk", expr)
	}
	if chunk.Text != "turn on the light" {
		t.Errorf("chunk.Text = %q", chunk.Text)
	}
}

func TestParseSentence_Alternation(t *testing.T) {
	t.Parallel()

	expr, err := grammar.ParseSentence("(red|blue|green)")
	if err != nil {
		t.Fatalf("ParseSentence: %v", err)
	}
	alt, ok := expr.(grammar.Alternation)
	if !ok {
		t.Fatalf("expr = %T, want Alternation", expr)
	}
	if len(alt.Items) != 3 {
		t.Fatalf("len(alt.Items) = %d, want 3", len(alt.Items))
	}
	want := []string{"red", "blue", "green"}
	for i, item := range alt.Items {
		chunk, ok := item.(grammar.TextChunk)
		if !ok {
			t.Fatalf("alt.Items[%d] = %T, want TextChunk", i, item)
		}
		if chunk.Text != want[i] {
			t.Errorf("alt.Items[%d].Text = %q, want %q", i, chunk.Text, want[i])
		}
	}
}

func TestParseSentence_OptionalAddsEmptyBranch(t *testing.T) {
	t.Parallel()

	expr, err := grammar.ParseSentence("[please] stop")
	if err != nil {
		t.Fatalf("ParseSentence: %v", err)
	}
	group, ok := expr.(grammar.Group)
	if !ok {
		t.Fatalf("expr = %T, want Group", expr)
	}
	if len(group.Items) != 2 {
		t.Fatalf("len(group.Items) = %d, want 2", len(group.Items))
	}
	alt, ok := group.Items[0].(grammar.Alternation)
	if !ok {
		t.Fatalf("group.Items[0] = %T, want Alternation", group.Items[0])
	}
	if len(alt.Items) != 2 {
		t.Fatalf("len(alt.Items) = %d, want 2 (content + empty branch)", len(alt.Items))
	}
	last, ok := alt.Items[1].(grammar.TextChunk)
	if !ok || last.Text != "" {
		t.Errorf("alt.Items[1] = %#v, want empty TextChunk", alt.Items[1])
	}
}

func TestParseSentence_References(t *testing.T) {
	t.Parallel()

	expr, err := grammar.ParseSentence("turn on {device} in <area>")
	if err != nil {
		t.Fatalf("ParseSentence: %v", err)
	}
	group, ok := expr.(grammar.Group)
	if !ok {
		t.Fatalf("expr = %T, want Group", expr)
	}
	var listName, ruleName string
	for _, item := range group.Items {
		switch it := item.(type) {
		case grammar.ListRef:
			listName = it.Name
		case grammar.RuleRef:
			ruleName = it.Name
		}
	}
	if listName != "device" {
		t.Errorf("list name = %q, want %q", listName, "device")
	}
	if ruleName != "area" {
		t.Errorf("rule name = %q, want %q", ruleName, "area")
	}
}

func TestParseSentence_NestedAlternation(t *testing.T) {
	t.Parallel()

	expr, err := grammar.ParseSentence("((a|b) c|d)")
	if err != nil {
		t.Fatalf("ParseSentence: %v", err)
	}
	alt, ok := expr.(grammar.Alternation)
	if !ok {
		t.Fatalf("expr = %T, want Alternation", expr)
	}
	if len(alt.Items) != 2 {
		t.Fatalf("len(alt.Items) = %d, want 2", len(alt.Items))
	}
}

func TestParseSentence_Errors(t *testing.T) {
	t.Parallel()

	bad := []string{
		"(a|b",
		"[maybe stop",
		"{device",
		"<area",
		"a)b",
		"a|b",
		"{}",
		"a}b",
	}
	for _, template := range bad {
		_, err := grammar.ParseSentence(template)
		if err == nil {
			t.Errorf("ParseSentence(%q) succeeded, want error", template)
			continue
		}
		var perr *grammar.ParseError
		if !errors.As(err, &perr) {
			t.Errorf("ParseSentence(%q) error = %T, want *ParseError", template, err)
		}
	}
}
