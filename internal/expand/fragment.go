// Package expand turns a grammar AST into the full set of concrete token
// sequences it denotes, together with the entity spans contributed by tag
// annotations.
//
// Expansion is lazy, finite, and deterministically ordered: a Sequence is
// the Cartesian product of its children in declaration order, Alternatives
// is the ordered concatenation of each option's expansions, and Optional is
// the union {ε, child} with ε first. The sequences are built from explicit
// combinator closures (product, concat), so re-iterating from scratch
// always yields the identical order — restartability is by construction,
// not a side effect of a generator runtime.
package expand

// Span records one entity contributed by a Tagged node, in token
// coordinates relative to the owning fragment. Character offsets are
// computed later by the corpus assembler, once casing and joining are
// final.
type Span struct {
	// Tag is the entity name.
	Tag string

	// Start and End delimit the tagged tokens, half-open, as indexes into
	// the fragment's Words.
	Start int
	End   int

	// Synonym, when non-empty, is the explicit value emitted for the
	// entity in place of the matched text.
	Synonym string

	// Converter names the post-assembly converter applied to the entity's
	// value. Empty means none.
	Converter string
}

// Fragment is one concrete expansion of a grammar node: its tokens plus
// the entity spans accumulated so far. Inner (nested) spans precede the
// outer spans that wrap them.
type Fragment struct {
	Words []string
	Spans []Span

	// Value is a fragment-level substitution value. A NumberRange sets it
	// to the integer's decimal form so that a wrapping tag emits the
	// number itself rather than its word rendering. It does not survive
	// concatenation with non-empty siblings.
	Value string
}

// merge concatenates two fragments: words append, and the right fragment's
// spans shift by the left word count. Slices are copied so fragments can be
// reused across product iterations.
func merge(a, b Fragment) Fragment {
	out := Fragment{
		Words: make([]string, 0, len(a.Words)+len(b.Words)),
		Spans: make([]Span, 0, len(a.Spans)+len(b.Spans)),
	}
	out.Words = append(append(out.Words, a.Words...), b.Words...)
	out.Spans = append(out.Spans, a.Spans...)
	for _, s := range b.Spans {
		s.Start += len(a.Words)
		s.End += len(a.Words)
		out.Spans = append(out.Spans, s)
	}

	// A substitution value only survives when the other side is empty
	// (e.g. an ε branch of an Optional next to a tagged range).
	switch {
	case len(a.Words) == 0 && len(a.Spans) == 0:
		out.Value = b.Value
	case len(b.Words) == 0 && len(b.Spans) == 0:
		out.Value = a.Value
	}
	return out
}
