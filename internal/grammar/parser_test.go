package grammar_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/voulterra/lexigraph/internal/grammar"
)

func TestParse_SentencesAndRules(t *testing.T) {
	t.Parallel()
	src := `
# templates for light control
colors = (red | green | blue){color}
set the light to <colors>
turn [the] light (on | off){state}
`
	intent, err := grammar.Parse("SetLightColor", src)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(intent.Sentences) != 2 {
		t.Fatalf("expected 2 sentences, got %d", len(intent.Sentences))
	}
	if len(intent.Rules) != 1 {
		t.Fatalf("expected 1 rule, got %d", len(intent.Rules))
	}
	if _, ok := intent.Rules["colors"]; !ok {
		t.Error("rule \"colors\" not registered")
	}
	if intent.RuleOrder[0] != "colors" {
		t.Errorf("RuleOrder[0] = %q, want colors", intent.RuleOrder[0])
	}
}

func TestParse_TagWithSynonym(t *testing.T) {
	t.Parallel()
	intent, err := grammar.Parse("Lamp", "turn on the (living room lamp){name:lamp_1}")
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	seq, ok := intent.Sentences[0].(grammar.Sequence)
	if !ok {
		t.Fatalf("sentence is %T, want Sequence", intent.Sentences[0])
	}
	tagged, ok := seq.Children[len(seq.Children)-1].(grammar.Tagged)
	if !ok {
		t.Fatalf("last child is %T, want Tagged", seq.Children[len(seq.Children)-1])
	}
	if tagged.Tag != "name" || tagged.Synonym != "lamp_1" {
		t.Errorf("tag = %q synonym = %q, want name/lamp_1", tagged.Tag, tagged.Synonym)
	}
	if _, ok := tagged.Child.(grammar.Sequence); !ok {
		t.Errorf("tagged child is %T, want Sequence of words", tagged.Child)
	}
}

func TestParse_TagWithConverter(t *testing.T) {
	t.Parallel()
	node, err := grammar.ParseFragment("test", "(0..10){count!int}")
	if err != nil {
		t.Fatalf("ParseFragment returned error: %v", err)
	}
	conv, ok := node.(grammar.Converted)
	if !ok {
		t.Fatalf("node is %T, want Converted", node)
	}
	if conv.Name != "int" {
		t.Errorf("converter = %q, want int", conv.Name)
	}
	tagged, ok := conv.Child.(grammar.Tagged)
	if !ok {
		t.Fatalf("converted child is %T, want Tagged", conv.Child)
	}
	rng, ok := tagged.Child.(grammar.NumberRange)
	if !ok {
		t.Fatalf("tagged child is %T, want NumberRange", tagged.Child)
	}
	if rng.Min != 0 || rng.Max != 10 || rng.Step != 1 {
		t.Errorf("range = %+v, want 0..10 step 1", rng)
	}
}

func TestParse_RangeWithStep(t *testing.T) {
	t.Parallel()
	node, err := grammar.ParseFragment("test", "0..100,10")
	if err != nil {
		t.Fatalf("ParseFragment returned error: %v", err)
	}
	rng, ok := node.(grammar.NumberRange)
	if !ok {
		t.Fatalf("node is %T, want NumberRange", node)
	}
	if rng.Step != 10 {
		t.Errorf("step = %d, want 10", rng.Step)
	}
}

func TestParse_QualifiedRuleAndSlotRefs(t *testing.T) {
	t.Parallel()
	node, err := grammar.ParseFragment("test", "is the light <SetLightColor.colors> in the $room")
	if err != nil {
		t.Fatalf("ParseFragment returned error: %v", err)
	}
	var rules, slots []string
	grammar.Walk(node, func(n grammar.Node) {
		switch v := n.(type) {
		case grammar.RuleRef:
			rules = append(rules, v.Name)
		case grammar.SlotRef:
			slots = append(slots, v.Name)
		}
	})
	if len(rules) != 1 || rules[0] != "SetLightColor.colors" {
		t.Errorf("rule refs = %v, want [SetLightColor.colors]", rules)
	}
	if len(slots) != 1 || slots[0] != "room" {
		t.Errorf("slot refs = %v, want [room]", slots)
	}
}

func TestParse_OptionalWithAlternatives(t *testing.T) {
	t.Parallel()
	node, err := grammar.ParseFragment("test", "[please | kindly]")
	if err != nil {
		t.Fatalf("ParseFragment returned error: %v", err)
	}
	opt, ok := node.(grammar.Optional)
	if !ok {
		t.Fatalf("node is %T, want Optional", node)
	}
	alts, ok := opt.Child.(grammar.Alternatives)
	if !ok {
		t.Fatalf("optional child is %T, want Alternatives", opt.Child)
	}
	if len(alts.Options) != 2 {
		t.Errorf("options = %d, want 2", len(alts.Options))
	}
}

func TestParse_SyntaxErrors(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		src  string
		want string
	}{
		{"unclosed group", "turn (on | off", "missing closing"},
		{"unclosed optional", "turn [maybe", "missing closing"},
		{"unclosed rule ref", "use <colors", "unclosed rule reference"},
		{"empty slot", "use $ now", "empty slot reference"},
		{"unclosed tag", "red{color", "unclosed tag"},
		{"empty tag", "red{}", "empty tag name"},
		{"dangling pipe", "a | b", "unexpected"},
		{"empty range", "9..3", "range 9..3 is empty"},
		{"zero step", "0..10,0", "step must be positive"},
		{"duplicate rule", "r = a\nr = b", "defined twice"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := grammar.Parse("Broken", tc.src)
			if err == nil {
				t.Fatalf("Parse(%q) succeeded, want error", tc.src)
			}
			var syn *grammar.SyntaxError
			if !errors.As(err, &syn) {
				t.Fatalf("error is %T, want *SyntaxError", err)
			}
			if syn.Intent != "Broken" {
				t.Errorf("error intent = %q, want Broken", syn.Intent)
			}
			if syn.Line == 0 || syn.Column == 0 {
				t.Errorf("error missing position: %+v", syn)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not contain %q", err, tc.want)
			}
		})
	}
}

func TestParse_EscapedMetacharacters(t *testing.T) {
	t.Parallel()
	node, err := grammar.ParseFragment("test", `what\(s up`)
	if err != nil {
		t.Fatalf("ParseFragment returned error: %v", err)
	}
	seq, ok := node.(grammar.Sequence)
	if !ok {
		t.Fatalf("node is %T, want Sequence", node)
	}
	lit, ok := seq.Children[0].(grammar.Literal)
	if !ok || lit.Word != "what(s" {
		t.Errorf("first word = %#v, want literal %q", seq.Children[0], "what(s")
	}
}

func TestParse_Deterministic(t *testing.T) {
	t.Parallel()
	src := "colors = (red | green)\nset <colors> [now]"
	a, err := grammar.Parse("X", src)
	if err != nil {
		t.Fatal(err)
	}
	b, err := grammar.Parse("X", src)
	if err != nil {
		t.Fatal(err)
	}
	if len(a.Sentences) != len(b.Sentences) || len(a.Rules) != len(b.Rules) {
		t.Error("repeated parses disagree")
	}
}
