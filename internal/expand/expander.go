package expand

import (
	"context"
	"fmt"
	"iter"
	"strconv"
	"strings"

	"github.com/voulterra/lexigraph/internal/grammar"
	"github.com/voulterra/lexigraph/internal/slots"
)

// DefaultLimit caps concrete sentences per intent when the profile does
// not set a limit.
const DefaultLimit = 100_000

// LimitError reports that an intent's templates denote more concrete
// sentences than the configured cap. Exceeding the cap is fatal, never a
// silent truncation, so authors must simplify combinatorial templates.
type LimitError struct {
	Intent string
	Limit  int
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("expand: intent %q exceeds the expansion limit of %d sentences", e.Intent, e.Limit)
}

// SlotResolver is the read-only slot lookup the expander depends on.
// *slots.Resolver implements it.
type SlotResolver interface {
	Resolve(ctx context.Context, name string) ([]grammar.Node, error)
	Known(name string) bool
}

// Expander expands one intent's templates against a frozen rule registry
// and slot resolver. It holds no mutable state shared across intents, so
// independent intents may expand in parallel with their own Expanders.
type Expander struct {
	intent   string
	registry *grammar.Registry
	resolver SlotResolver
	limit    int

	// slotCache pins the resolved value list of every referenced slot
	// before iteration begins, so iteration itself cannot fail.
	slotCache map[string][]grammar.Node
}

// New returns an Expander for the named intent. limit <= 0 selects
// [DefaultLimit].
func New(intent string, registry *grammar.Registry, resolver SlotResolver, limit int) *Expander {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Expander{
		intent:    intent,
		registry:  registry,
		resolver:  resolver,
		limit:     limit,
		slotCache: make(map[string][]grammar.Node),
	}
}

// ExpandIntent materializes every sentence the intent denotes, in
// template order then structural order, enforcing the per-intent cap.
// All reference errors (undefined rules or slots, failed slot programs)
// surface here, before any fragment is produced.
func (e *Expander) ExpandIntent(ctx context.Context, intent *grammar.Intent) ([]Fragment, error) {
	for _, sentence := range intent.Sentences {
		if err := e.validate(ctx, sentence, e.intent, make(map[string]bool)); err != nil {
			return nil, err
		}
	}

	var out []Fragment
	for _, sentence := range intent.Sentences {
		for frag := range e.All(sentence) {
			if len(out) >= e.limit {
				return nil, &LimitError{Intent: e.intent, Limit: e.limit}
			}
			out = append(out, frag)
		}
	}
	return out, nil
}

// All returns the lazy, restartable expansion sequence for node. Callers
// must run [Expander.ExpandIntent] or [Expander.validate] first so every
// referenced rule and slot is known; All itself cannot fail.
func (e *Expander) All(node grammar.Node) iter.Seq[Fragment] {
	return e.all(node, e.intent)
}

// validate resolves every rule and slot reference reachable from node,
// caching slot values. seen guards against rule revisits; cycles proper
// are the registry's concern and were rejected before expansion.
func (e *Expander) validate(ctx context.Context, node grammar.Node, owner string, seen map[string]bool) error {
	var walkErr error
	grammar.Walk(node, func(n grammar.Node) {
		if walkErr != nil {
			return
		}
		switch v := n.(type) {
		case grammar.RuleRef:
			target, err := e.registry.Resolve(owner, v.Name)
			if err != nil {
				walkErr = err
				return
			}
			qualified := v.Name
			if !strings.Contains(qualified, ".") {
				qualified = owner + "." + qualified
			}
			if seen[qualified] {
				return
			}
			seen[qualified] = true
			walkErr = e.validate(ctx, target, ownerOf(qualified), seen)
		case grammar.SlotRef:
			if _, ok := e.slotCache[v.Name]; ok {
				return
			}
			values, err := e.resolver.Resolve(ctx, v.Name)
			if err != nil {
				walkErr = err
				return
			}
			e.slotCache[v.Name] = values
			for _, value := range values {
				if walkErr != nil {
					return
				}
				walkErr = e.validate(ctx, value, owner, seen)
			}
		}
	})
	return walkErr
}

// all builds the combinator sequence for node. owner is the intent whose
// namespace unqualified rule references resolve in; it changes when
// expansion crosses into a rule defined by another intent.
func (e *Expander) all(node grammar.Node, owner string) iter.Seq[Fragment] {
	switch n := node.(type) {
	case grammar.Literal:
		return one(Fragment{Words: []string{n.Word}})

	case grammar.Sequence:
		return e.product(n.Children, owner)

	case grammar.Optional:
		// ε first, then the child's expansions.
		return concat(one(Fragment{}), e.all(n.Child, owner))

	case grammar.Alternatives:
		seqs := make([]iter.Seq[Fragment], len(n.Options))
		for i, option := range n.Options {
			seqs[i] = e.all(option, owner)
		}
		return concat(seqs...)

	case grammar.RuleRef:
		qualified := n.Name
		if !strings.Contains(qualified, ".") {
			qualified = owner + "." + qualified
		}
		target, err := e.registry.Resolve(owner, n.Name)
		if err != nil {
			// validate pinned every reference; an unresolvable rule here
			// is a programming error, not author input.
			panic(fmt.Sprintf("expand: unvalidated rule reference <%s>", n.Name))
		}
		return e.all(target, ownerOf(qualified))

	case grammar.SlotRef:
		values, ok := e.slotCache[n.Name]
		if !ok {
			panic(fmt.Sprintf("expand: unvalidated slot reference $%s", n.Name))
		}
		seqs := make([]iter.Seq[Fragment], len(values))
		for i, value := range values {
			seqs[i] = e.all(value, owner)
		}
		return concat(seqs...)

	case grammar.NumberRange:
		return func(yield func(Fragment) bool) {
			for v := n.Min; v <= n.Max; v += n.Step {
				frag := Fragment{
					Words: strings.Fields(slots.NumberWords(v)),
					Value: strconv.Itoa(v),
				}
				if !yield(frag) {
					return
				}
			}
		}

	case grammar.Tagged:
		child := e.all(n.Child, owner)
		return func(yield func(Fragment) bool) {
			for frag := range child {
				out := frag
				out.Spans = make([]Span, 0, len(frag.Spans)+1)
				out.Spans = append(out.Spans, frag.Spans...)
				value := n.Synonym
				if value == "" {
					value = frag.Value
				}
				// The outer span comes after any nested spans the child
				// produced; inner tags stay independent entities.
				out.Spans = append(out.Spans, Span{
					Tag:     n.Tag,
					Start:   0,
					End:     len(frag.Words),
					Synonym: value,
				})
				if !yield(out) {
					return
				}
			}
		}

	case grammar.Converted:
		child := e.all(n.Child, owner)
		return func(yield func(Fragment) bool) {
			for frag := range child {
				out := frag
				if len(frag.Spans) > 0 {
					out.Spans = append([]Span{}, frag.Spans...)
					// The parser only emits Converted around a Tagged, so
					// the last span is the one the converter belongs to.
					out.Spans[len(out.Spans)-1].Converter = n.Name
				}
				if !yield(out) {
					return
				}
			}
		}

	default:
		panic(fmt.Sprintf("expand: unknown node type %T", node))
	}
}

// product is the lazy Cartesian product of the children's expansions in
// declaration order. Nothing is materialized: the tail sequence restarts
// for every head fragment.
func (e *Expander) product(children []grammar.Node, owner string) iter.Seq[Fragment] {
	if len(children) == 0 {
		return one(Fragment{})
	}
	head := e.all(children[0], owner)
	tail := e.product(children[1:], owner)
	return func(yield func(Fragment) bool) {
		for h := range head {
			for t := range tail {
				if !yield(merge(h, t)) {
					return
				}
			}
		}
	}
}

// one yields a single fragment.
func one(frag Fragment) iter.Seq[Fragment] {
	return func(yield func(Fragment) bool) {
		yield(frag)
	}
}

// concat yields each sequence's fragments in order.
func concat(seqs ...iter.Seq[Fragment]) iter.Seq[Fragment] {
	return func(yield func(Fragment) bool) {
		for _, seq := range seqs {
			for frag := range seq {
				if !yield(frag) {
					return
				}
			}
		}
	}
}

func ownerOf(qualified string) string {
	return qualified[:strings.Index(qualified, ".")]
}
