// Package corpus assembles expanded intent fragments into the three
// training artifacts: the plain sentence corpus, the tagged corpus, and
// the vocabulary. Assembly is deterministic end to end — identical input
// grammar and slot data yield byte-identical output — so callers can skip
// retraining by comparing input fingerprints.
package corpus

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/voulterra/lexigraph/internal/expand"
)

// Casing selects the normalization applied to every token before joining.
type Casing string

const (
	CasingLower Casing = "lower"
	CasingUpper Casing = "upper"
	CasingNone  Casing = "none"
)

// IsValid reports whether c is a recognised casing mode.
func (c Casing) IsValid() bool {
	switch c {
	case CasingLower, CasingUpper, CasingNone:
		return true
	}
	return false
}

// Replacement is one ordered text-substitution rule applied to each token
// after casing.
type Replacement struct {
	Pattern string
	With    string
}

// Options configures corpus assembly.
type Options struct {
	// Casing normalizes token case. Default: lower.
	Casing Casing

	// Replace lists substitution rules applied per token, in order.
	Replace []Replacement

	// SplitPattern re-splits each token after substitution. Default: any
	// whitespace run.
	SplitPattern string

	// Balance repeats each intent's sentences in the plain corpus so no
	// intent is underrepresented relative to the largest one.
	Balance bool
}

// Entity is one resolved entity span of a generated sentence. Start and
// End are byte offsets into the sentence's final text, so consumers can
// slice the text directly: text[Start:End] == Raw.
type Entity struct {
	Tag   string `json:"entity"`
	Value any    `json:"value"`
	Raw   string `json:"raw_value"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// Sentence is one generated training sentence with its entity records.
type Sentence struct {
	Intent   string   `json:"intent"`
	Text     string   `json:"text"`
	Entities []Entity `json:"entities"`
}

// Assembler applies casing, substitution, and tokenization rules to
// expanded fragments and resolves entity spans to character offsets.
// Read-only after construction; safe for concurrent use across intents.
type Assembler struct {
	opts       Options
	replace    []compiledReplacement
	split      *regexp.Regexp
	converters expand.Converters
}

type compiledReplacement struct {
	pattern *regexp.Regexp
	with    string
}

// NewAssembler compiles the substitution and split patterns. Invalid
// patterns fail here, before any expansion work is spent.
func NewAssembler(opts Options, converters expand.Converters) (*Assembler, error) {
	if opts.Casing == "" {
		opts.Casing = CasingLower
	}
	if !opts.Casing.IsValid() {
		return nil, fmt.Errorf("corpus: invalid casing %q", opts.Casing)
	}
	if opts.SplitPattern == "" {
		opts.SplitPattern = `\s+`
	}
	if converters == nil {
		converters = expand.NewConverters(nil)
	}

	a := &Assembler{opts: opts, converters: converters}
	for _, r := range opts.Replace {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("corpus: replace pattern %q: %w", r.Pattern, err)
		}
		a.replace = append(a.replace, compiledReplacement{pattern: re, with: r.With})
	}
	split, err := regexp.Compile(opts.SplitPattern)
	if err != nil {
		return nil, fmt.Errorf("corpus: split pattern %q: %w", opts.SplitPattern, err)
	}
	a.split = split
	return a, nil
}

// Sentences converts an intent's fragments into finished sentences:
// normalized, tokenized, offset-resolved, converter-applied, and
// deduplicated by raw text (first occurrence wins, order preserved).
func (a *Assembler) Sentences(intent string, frags []expand.Fragment) ([]Sentence, error) {
	seen := make(map[string]bool, len(frags))
	out := make([]Sentence, 0, len(frags))

	for _, frag := range frags {
		sentence, err := a.assemble(intent, frag)
		if err != nil {
			return nil, err
		}
		if sentence.Text == "" || seen[sentence.Text] {
			continue
		}
		seen[sentence.Text] = true
		out = append(out, sentence)
	}
	return out, nil
}

// assemble processes a single fragment.
func (a *Assembler) assemble(intent string, frag expand.Fragment) (Sentence, error) {
	// Normalize and re-tokenize each word, remembering how many final
	// tokens each original word produced so spans can be remapped.
	var tokens []string
	starts := make([]int, len(frag.Words)) // first final token of word i
	counts := make([]int, len(frag.Words)) // final tokens produced by word i
	for i, word := range frag.Words {
		starts[i] = len(tokens)
		for _, tok := range a.tokenize(word) {
			tokens = append(tokens, tok)
		}
		counts[i] = len(tokens) - starts[i]
	}

	// Character offset of each final token in the joined text.
	offsets := make([]int, len(tokens))
	pos := 0
	for i, tok := range tokens {
		offsets[i] = pos
		pos += len(tok) + 1
	}
	text := strings.Join(tokens, " ")

	entities := make([]Entity, 0, len(frag.Spans))
	for _, span := range frag.Spans {
		first, last := remapSpan(span, starts, counts)
		var start, end int
		var raw string
		if last > first {
			start = offsets[first]
			end = offsets[last-1] + len(tokens[last-1])
			raw = text[start:end]
		}

		value := span.Synonym
		if value == "" {
			value = raw
		}
		converted, err := a.converters.Apply(span.Converter, value)
		if err != nil {
			return Sentence{}, err
		}
		entities = append(entities, Entity{
			Tag:   span.Tag,
			Value: converted,
			Raw:   raw,
			Start: start,
			End:   end,
		})
	}

	return Sentence{Intent: intent, Text: text, Entities: entities}, nil
}

// tokenize applies casing, the ordered substitutions, and the split
// pattern to one word. The result may be zero or more tokens.
func (a *Assembler) tokenize(word string) []string {
	switch a.opts.Casing {
	case CasingLower:
		word = strings.ToLower(word)
	case CasingUpper:
		word = strings.ToUpper(word)
	}
	for _, r := range a.replace {
		word = r.pattern.ReplaceAllString(word, r.with)
	}

	var tokens []string
	for _, part := range a.split.Split(word, -1) {
		if part != "" {
			tokens = append(tokens, part)
		}
	}
	return tokens
}

// remapSpan translates a span from original word indexes to final token
// indexes, accounting for words that split or vanished during tokenization.
func remapSpan(span expand.Span, starts, counts []int) (first, last int) {
	if span.Start >= span.End || span.Start >= len(starts) {
		return 0, 0
	}
	first = starts[span.Start]
	lastWord := span.End - 1
	if lastWord >= len(starts) {
		lastWord = len(starts) - 1
	}
	last = starts[lastWord] + counts[lastWord]
	if last < first {
		last = first
	}
	return first, last
}

// Corpus is the assembled output across all intents, in sorted intent
// order.
type Corpus struct {
	// ByIntent holds each intent's deduplicated sentences.
	ByIntent map[string][]Sentence

	// Intents lists intent names in sorted order, fixing iteration order
	// for all outputs.
	Intents []string

	// Repeats is the plain-corpus repetition factor per intent (always 1
	// when balancing is off).
	Repeats map[string]int
}

// Build combines per-intent sentences into a Corpus, computing balancing
// repetition factors: each intent's block is repeated ⌊max/n⌋ times
// (minimum 1), by whole repetition rather than resampling, preserving
// reproducibility.
func Build(byIntent map[string][]Sentence, balance bool) *Corpus {
	c := &Corpus{
		ByIntent: byIntent,
		Repeats:  make(map[string]int, len(byIntent)),
	}
	for name := range byIntent {
		c.Intents = append(c.Intents, name)
		c.Repeats[name] = 1
	}
	sort.Strings(c.Intents)

	if balance {
		maxCount := 0
		for _, sentences := range byIntent {
			if len(sentences) > maxCount {
				maxCount = len(sentences)
			}
		}
		for name, sentences := range byIntent {
			if n := len(sentences); n > 0 {
				if r := maxCount / n; r > 1 {
					c.Repeats[name] = r
				}
			}
		}
	}
	return c
}

// PlainLines returns the plain sentence corpus: one raw text per line,
// with balancing repetitions applied.
func (c *Corpus) PlainLines() []string {
	var lines []string
	for _, name := range c.Intents {
		for range c.Repeats[name] {
			for _, s := range c.ByIntent[name] {
				lines = append(lines, s.Text)
			}
		}
	}
	return lines
}

// Tagged returns the tagged corpus in deterministic order, one entry per
// distinct sentence (no repetition).
func (c *Corpus) Tagged() []Sentence {
	var out []Sentence
	for _, name := range c.Intents {
		out = append(out, c.ByIntent[name]...)
	}
	return out
}

// Vocabulary returns the sorted set of distinct case-folded tokens across
// all generated sentences.
func (c *Corpus) Vocabulary() []string {
	seen := make(map[string]bool)
	for _, name := range c.Intents {
		for _, s := range c.ByIntent[name] {
			for _, tok := range strings.Fields(s.Text) {
				seen[strings.ToLower(tok)] = true
			}
		}
	}
	words := make([]string, 0, len(seen))
	for w := range seen {
		words = append(words, w)
	}
	sort.Strings(words)
	return words
}
