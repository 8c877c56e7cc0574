package grammar

import (
	"fmt"
	"sort"
	"strings"
)

// Registry is the read-only lookup table of every named rule across all
// intents, keyed by qualified name ("Intent.rule"). It is built once from
// the full parsed intent set and passed by reference into the expander;
// it is never mutated after construction.
type Registry struct {
	rules map[string]Node
}

// NewRegistry builds the qualified rule namespace from all parsed intents.
func NewRegistry(intents []*Intent) *Registry {
	r := &Registry{rules: make(map[string]Node)}
	for _, it := range intents {
		for name, node := range it.Rules {
			r.rules[it.Name+"."+name] = node
		}
	}
	return r
}

// Resolve looks up a rule reference made from within fromIntent. An
// unqualified name resolves against the referencing intent; a dotted name
// resolves across intents. Returns [*UndefinedRuleError] when absent.
func (r *Registry) Resolve(fromIntent string, ref string) (Node, error) {
	qualified := ref
	if !strings.Contains(ref, ".") {
		qualified = fromIntent + "." + ref
	}
	node, ok := r.rules[qualified]
	if !ok {
		return nil, &UndefinedRuleError{Intent: fromIntent, Name: ref}
	}
	return node, nil
}

// Len reports the number of registered rules.
func (r *Registry) Len() int { return len(r.rules) }

// CheckCycles verifies that the rule reference graph is acyclic, so
// expansion can never recurse without bound. It runs a depth-first
// traversal from every rule exactly once per training pass. A cycle is
// reported as [*CycleError] naming the full reference chain; a dangling
// reference encountered along the way is reported as
// [*UndefinedRuleError]. Both are detected before any expansion begins.
func (r *Registry) CheckCycles() error {
	const (
		white = iota // unvisited
		gray         // on the current DFS path
		black        // fully explored
	)
	state := make(map[string]int, len(r.rules))

	names := make([]string, 0, len(r.rules))
	for name := range r.rules {
		names = append(names, name)
	}
	sort.Strings(names)

	var visit func(qualified string, path []string) error
	visit = func(qualified string, path []string) error {
		switch state[qualified] {
		case gray:
			// Close the chain at the repeated rule.
			start := 0
			for i, p := range path {
				if p == qualified {
					start = i
					break
				}
			}
			return &CycleError{Chain: append(append([]string{}, path[start:]...), qualified)}
		case black:
			return nil
		}
		state[qualified] = gray
		path = append(path, qualified)

		owner := qualified[:strings.Index(qualified, ".")]
		var walkErr error
		Walk(r.rules[qualified], func(n Node) {
			if walkErr != nil {
				return
			}
			ref, ok := n.(RuleRef)
			if !ok {
				return
			}
			target := ref.Name
			if !strings.Contains(target, ".") {
				target = owner + "." + target
			}
			if _, exists := r.rules[target]; !exists {
				walkErr = &UndefinedRuleError{Intent: owner, Name: ref.Name}
				return
			}
			walkErr = visit(target, path)
		})
		if walkErr != nil {
			return walkErr
		}

		state[qualified] = black
		return nil
	}

	for _, name := range names {
		if err := visit(name, nil); err != nil {
			return err
		}
	}
	return nil
}

// String renders the registry's rule names for logging.
func (r *Registry) String() string {
	return fmt.Sprintf("Registry(%d rules)", len(r.rules))
}
