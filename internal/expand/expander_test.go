package expand_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/voulterra/lexigraph/internal/expand"
	"github.com/voulterra/lexigraph/internal/grammar"
	"github.com/voulterra/lexigraph/internal/slots"
)

// expandIntent parses one intent block (plus optional extra intents for
// cross-intent rules) and expands it with the given static slots.
func expandIntent(t *testing.T, name, src string, static map[string][]string, extra ...*grammar.Intent) []expand.Fragment {
	t.Helper()
	frags, err := tryExpandIntent(t, name, src, static, 0, extra...)
	if err != nil {
		t.Fatalf("ExpandIntent returned error: %v", err)
	}
	return frags
}

func tryExpandIntent(t *testing.T, name, src string, static map[string][]string, limit int, extra ...*grammar.Intent) ([]expand.Fragment, error) {
	t.Helper()
	intent, err := grammar.Parse(name, src)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	reg := grammar.NewRegistry(append([]*grammar.Intent{intent}, extra...))
	if err := reg.CheckCycles(); err != nil {
		t.Fatalf("CheckCycles returned error: %v", err)
	}
	resolver, err := slots.NewResolver(static, nil, nil)
	if err != nil {
		t.Fatalf("NewResolver returned error: %v", err)
	}
	exp := expand.New(name, reg, resolver, limit)
	return exp.ExpandIntent(context.Background(), intent)
}

func texts(frags []expand.Fragment) []string {
	out := make([]string, len(frags))
	for i, f := range frags {
		out[i] = strings.Join(f.Words, " ")
	}
	return out
}

func TestExpand_AlternativesProduct(t *testing.T) {
	t.Parallel()
	frags := expandIntent(t, "T", "(a | b | c) (x | y)", nil)
	want := []string{"a x", "a y", "b x", "b y", "c x", "c y"}
	got := texts(frags)
	if len(got) != len(want) {
		t.Fatalf("got %d sentences, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sentence[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestExpand_OptionalUnionEpsilonFirst(t *testing.T) {
	t.Parallel()
	frags := expandIntent(t, "T", "turn [the] light", nil)
	got := texts(frags)
	want := []string{"turn light", "turn the light"}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestExpand_Restartable(t *testing.T) {
	t.Parallel()
	intent, err := grammar.Parse("T", "(a | b) [x] (1..3)")
	if err != nil {
		t.Fatal(err)
	}
	reg := grammar.NewRegistry([]*grammar.Intent{intent})
	resolver, _ := slots.NewResolver(nil, nil, nil)
	exp := expand.New("T", reg, resolver, 0)

	first, err := exp.ExpandIntent(context.Background(), intent)
	if err != nil {
		t.Fatal(err)
	}
	second, err := exp.ExpandIntent(context.Background(), intent)
	if err != nil {
		t.Fatal(err)
	}
	a, b := texts(first), texts(second)
	if len(a) != len(b) {
		t.Fatalf("re-iteration changed count: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("re-iteration changed order at %d: %q vs %q", i, a[i], b[i])
		}
	}
}

func TestExpand_TagSynonym(t *testing.T) {
	t.Parallel()
	frags := expandIntent(t, "Lamp", "turn on the (living room lamp){name:lamp_1}", nil)
	if len(frags) != 1 {
		t.Fatalf("got %d sentences, want 1", len(frags))
	}
	frag := frags[0]
	if got := strings.Join(frag.Words, " "); got != "turn on the living room lamp" {
		t.Errorf("text = %q", got)
	}
	if len(frag.Spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(frag.Spans))
	}
	span := frag.Spans[0]
	if span.Tag != "name" || span.Synonym != "lamp_1" {
		t.Errorf("span = %+v, want tag name synonym lamp_1", span)
	}
	if matched := strings.Join(frag.Words[span.Start:span.End], " "); matched != "living room lamp" {
		t.Errorf("matched tokens = %q, want %q", matched, "living room lamp")
	}
}

func TestExpand_RuleRefAndTaggedRule(t *testing.T) {
	t.Parallel()
	src := "colors = (red | green | blue){color}\nset the light to <colors>"
	frags := expandIntent(t, "SetLightColor", src, nil)
	got := texts(frags)
	want := []string{
		"set the light to red",
		"set the light to green",
		"set the light to blue",
	}
	if len(got) != 3 {
		t.Fatalf("got %d sentences, want 3: %v", len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sentence[%d] = %q, want %q", i, got[i], want[i])
		}
		span := frags[i].Spans[0]
		matched := strings.Join(frags[i].Words[span.Start:span.End], " ")
		if span.Tag != "color" || matched != strings.Fields(want[i])[4] {
			t.Errorf("sentence[%d] span = %+v matched %q", i, span, matched)
		}
	}
}

func TestExpand_CrossIntentRuleMatchesLocal(t *testing.T) {
	t.Parallel()
	setIntent, err := grammar.Parse("SetLightColor", "colors = (red | green | blue)\nset <colors>")
	if err != nil {
		t.Fatal(err)
	}
	local := expandIntent(t, "SetLightColor", "colors = (red | green | blue)\nset <colors>", nil)
	remote := expandIntent(t, "GetLightColor", "is it <SetLightColor.colors>", nil, setIntent)

	localColors := make([]string, len(local))
	for i, f := range local {
		localColors[i] = f.Words[len(f.Words)-1]
	}
	remoteColors := make([]string, len(remote))
	for i, f := range remote {
		remoteColors[i] = f.Words[len(f.Words)-1]
	}
	if len(localColors) != len(remoteColors) {
		t.Fatalf("local %v vs remote %v", localColors, remoteColors)
	}
	for i := range localColors {
		if localColors[i] != remoteColors[i] {
			t.Errorf("expansion set diverges at %d: %q vs %q", i, localColors[i], remoteColors[i])
		}
	}
}

func TestExpand_SlotValues(t *testing.T) {
	t.Parallel()
	static := map[string][]string{"room": {"kitchen", "living room"}}
	frags := expandIntent(t, "T", "lights in the ($room){room}", static)
	got := texts(frags)
	want := []string{"lights in the kitchen", "lights in the living room"}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("got %v, want %v", got, want)
	}
	span := frags[1].Spans[0]
	if matched := strings.Join(frags[1].Words[span.Start:span.End], " "); matched != "living room" {
		t.Errorf("multi-word slot span matched %q", matched)
	}
}

func TestExpand_SlotValueWithNestedTag(t *testing.T) {
	t.Parallel()
	static := map[string][]string{"device": {"(ceiling fan){name:fan_1}"}}
	frags := expandIntent(t, "T", "turn off $device", static)
	if len(frags) != 1 {
		t.Fatalf("got %d sentences, want 1", len(frags))
	}
	if len(frags[0].Spans) != 1 || frags[0].Spans[0].Synonym != "fan_1" {
		t.Errorf("spans = %+v, want nested slot tag preserved", frags[0].Spans)
	}
}

func TestExpand_NumberRange(t *testing.T) {
	t.Parallel()
	frags := expandIntent(t, "T", "0..2", nil)
	got := texts(frags)
	want := []string{"zero", "one", "two"}
	if len(got) != 3 {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("range value[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestExpand_TaggedRangeEmitsInteger(t *testing.T) {
	t.Parallel()
	frags := expandIntent(t, "T", "set volume to (0..10,5){level}", nil)
	if len(frags) != 3 {
		t.Fatalf("got %d sentences, want 3", len(frags))
	}
	wantValues := []string{"0", "5", "10"}
	for i, f := range frags {
		if len(f.Spans) != 1 {
			t.Fatalf("sentence %d has %d spans", i, len(f.Spans))
		}
		if f.Spans[0].Synonym != wantValues[i] {
			t.Errorf("sentence %d value = %q, want %q", i, f.Spans[0].Synonym, wantValues[i])
		}
	}
}

func TestExpand_ConverterMarksOuterSpan(t *testing.T) {
	t.Parallel()
	frags := expandIntent(t, "T", "wait (1..2){minutes!int}", nil)
	for _, f := range frags {
		if len(f.Spans) != 1 || f.Spans[0].Converter != "int" {
			t.Errorf("spans = %+v, want converter int on the tag span", f.Spans)
		}
	}
}

func TestExpand_NestedTagsStayIndependent(t *testing.T) {
	t.Parallel()
	frags := expandIntent(t, "T", "((red){color} light){subject}", nil)
	if len(frags) != 1 {
		t.Fatalf("got %d sentences, want 1", len(frags))
	}
	spans := frags[0].Spans
	if len(spans) != 2 {
		t.Fatalf("got %d spans, want inner and outer: %+v", len(spans), spans)
	}
	// Inner spans precede the outer span that wraps them.
	if spans[0].Tag != "color" || spans[1].Tag != "subject" {
		t.Errorf("span order = %q, %q; want color then subject", spans[0].Tag, spans[1].Tag)
	}
	if spans[1].Start != 0 || spans[1].End != 2 {
		t.Errorf("outer span = %+v, want full coverage", spans[1])
	}
}

func TestExpand_LimitExceededIsFatal(t *testing.T) {
	t.Parallel()
	_, err := tryExpandIntent(t, "Big", "(a | b | c | d) (a | b | c | d) (a | b | c | d)", nil, 10)
	var limitErr *expand.LimitError
	if !errors.As(err, &limitErr) {
		t.Fatalf("error is %T, want *LimitError", err)
	}
	if limitErr.Intent != "Big" || limitErr.Limit != 10 {
		t.Errorf("error = %+v", limitErr)
	}
}

func TestExpand_UndefinedSlotBeforeIteration(t *testing.T) {
	t.Parallel()
	_, err := tryExpandIntent(t, "T", "open the $nonexistent", nil, 0)
	var undef *slots.UndefinedSlotError
	if !errors.As(err, &undef) {
		t.Fatalf("error is %T, want *UndefinedSlotError", err)
	}
}

func TestExpand_UndefinedRuleBeforeIteration(t *testing.T) {
	t.Parallel()
	_, err := tryExpandIntent(t, "T", "say <nothing>", nil, 0)
	var undef *grammar.UndefinedRuleError
	if !errors.As(err, &undef) {
		t.Fatalf("error is %T, want *UndefinedRuleError", err)
	}
}

func TestConverters_Builtins(t *testing.T) {
	t.Parallel()
	table := expand.NewConverters(nil)

	if v, err := table.Apply("int", "21"); err != nil || v != 21 {
		t.Errorf("int(21) = %v, %v", v, err)
	}
	if v, err := table.Apply("bool", "on"); err != nil || v != true {
		t.Errorf("bool(on) = %v, %v", v, err)
	}
	if v, err := table.Apply("upper", "red"); err != nil || v != "RED" {
		t.Errorf("upper(red) = %v, %v", v, err)
	}
	if v, err := table.Apply("", "as-is"); err != nil || v != "as-is" {
		t.Errorf("passthrough = %v, %v", v, err)
	}

	var convErr *expand.ConverterError
	if _, err := table.Apply("nope", "x"); !errors.As(err, &convErr) {
		t.Errorf("unknown converter error is %T, want *ConverterError", err)
	}
	if _, err := table.Apply("int", "red"); !errors.As(err, &convErr) {
		t.Errorf("rejected value error is %T, want *ConverterError", err)
	}
}

func TestConverters_CustomShadowsBuiltin(t *testing.T) {
	t.Parallel()
	table := expand.NewConverters(expand.Converters{
		"int": func(v string) (any, error) { return "custom", nil },
	})
	if v, _ := table.Apply("int", "5"); v != "custom" {
		t.Errorf("custom converter not applied, got %v", v)
	}
}
