// Package grammar implements the sentence-template language used to author
// voice-command intents: the AST node types, the per-intent parser, and the
// cross-intent rule registry.
//
// A template is a single line of text combining plain words with optional
// groups ("[maybe]"), alternative sets ("(a | b)"), rule references
// ("<rule>" or "<Intent.rule>"), slot references ("$color"), number ranges
// ("0..10"), and entity tags ("(red | green){color}", "{color:syn}",
// "{count!int}"). Rule-definition lines ("name = template") bind a reusable
// fragment under the intent's namespace.
//
// Parsing is pure: the same text always yields the same AST, independent of
// the order intents are parsed in, so intents may be parsed in parallel.
package grammar

import "fmt"

// Node is the tagged variant over all template grammar constructs. Exactly
// the types in this file implement it; consumers switch exhaustively and
// treat any other type as a programming error.
type Node interface {
	isNode()
}

// Literal is a single word token.
type Literal struct {
	Word string
}

// Sequence is the concatenation of its children in declaration order.
type Sequence struct {
	Children []Node
}

// Optional denotes the set {ε, Child}, with ε ordered first.
type Optional struct {
	Child Node
}

// Alternatives denotes the ordered union of each option's expansions.
// Options are mutually exclusive per generated sentence.
type Alternatives struct {
	Options []Node
}

// RuleRef is a reference to a named rule, resolved against the [Registry]
// at expansion time. Name is either local ("colors") or qualified with the
// defining intent ("SetLightColor.colors").
type RuleRef struct {
	Name string
}

// SlotRef is a reference to a named slot value list, resolved by the slot
// resolver at expansion time.
type SlotRef struct {
	Name string
}

// NumberRange is sugar for an Alternatives over the integers of the closed
// range [Min, Max] at the given step, rendered as words.
type NumberRange struct {
	Min  int
	Max  int
	Step int
}

// Tagged marks every expansion of Child as an entity of type Tag. When
// Synonym is non-empty it becomes the entity's emitted value while the
// matched text remains whatever Child expanded to.
type Tagged struct {
	Child   Node
	Tag     string
	Synonym string
}

// Converted marks the entity value produced by Child (always a [Tagged] as
// emitted by the parser) for post-processing by the named converter. The
// converter runs after sentence assembly and never alters matched text.
type Converted struct {
	Child Node
	Name  string
}

func (Literal) isNode()      {}
func (Sequence) isNode()     {}
func (Optional) isNode()     {}
func (Alternatives) isNode() {}
func (RuleRef) isNode()      {}
func (SlotRef) isNode()      {}
func (NumberRange) isNode()  {}
func (Tagged) isNode()       {}
func (Converted) isNode()    {}

// Intent is one named voice-command category: its sentence templates in
// authoring order plus its locally defined rules. Immutable once parsed.
type Intent struct {
	// Name is the unique, case-sensitive intent identifier.
	Name string

	// Sentences holds one AST per sentence line, in file order.
	Sentences []Node

	// Rules maps local rule names to their template ASTs.
	Rules map[string]Node

	// RuleOrder lists rule names in definition order, for deterministic
	// traversal of Rules.
	RuleOrder []string
}

// Walk calls fn for node and every descendant, depth first in declaration
// order. It is the single traversal used for reference validation so new
// node kinds cannot be silently skipped.
func Walk(node Node, fn func(Node)) {
	fn(node)
	switch n := node.(type) {
	case Literal, RuleRef, SlotRef, NumberRange:
		// leaves
	case Sequence:
		for _, c := range n.Children {
			Walk(c, fn)
		}
	case Optional:
		Walk(n.Child, fn)
	case Alternatives:
		for _, o := range n.Options {
			Walk(o, fn)
		}
	case Tagged:
		Walk(n.Child, fn)
	case Converted:
		Walk(n.Child, fn)
	default:
		panic(fmt.Sprintf("grammar: unknown node type %T", node))
	}
}
