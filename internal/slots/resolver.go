package slots

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/voulterra/lexigraph/internal/grammar"
)

// UndefinedSlotError reports a $slot reference with no value source.
type UndefinedSlotError struct {
	Slot string
}

func (e *UndefinedSlotError) Error() string {
	return fmt.Sprintf("slots: no value source for slot $%s", e.Slot)
}

// ProgramError reports a failed external slot value program. Cause carries
// the underlying failure: non-zero exit, timeout, or malformed output.
type ProgramError struct {
	Slot  string
	Cause error
}

func (e *ProgramError) Error() string {
	return fmt.Sprintf("slots: value program for $%s failed: %v", e.Slot, e.Cause)
}

func (e *ProgramError) Unwrap() error { return e.Cause }

// Program declares an external executable that prints one slot value per
// line on stdout. It is invoked at most once per training pass, bounded by
// Timeout (zero selects [DefaultProgramTimeout]).
type Program struct {
	Command string
	Args    []string
	Timeout time.Duration
}

// Runner invokes external slot value programs. It is a capability injected
// into the [Resolver] so tests can fake process execution; the production
// implementation is [ExecRunner].
type Runner interface {
	// Run executes the program and returns its stdout split into lines.
	Run(ctx context.Context, prog Program) ([]string, error)
}

// builtinSlots are available to every profile without declaration. Static
// slot lists with the same name shadow them.
var builtinSlots = map[string][]string{
	"days": {
		"monday", "tuesday", "wednesday", "thursday", "friday",
		"saturday", "sunday",
	},
	"months": {
		"january", "february", "march", "april", "may", "june", "july",
		"august", "september", "october", "november", "december",
	},
	"ordinals": ordinalValues(),
}

func ordinalValues() []string {
	vals := make([]string, 0, 31)
	for n := 1; n <= 31; n++ {
		vals = append(vals, OrdinalWords(n))
	}
	return vals
}

// Resolver maps slot names to their ordered value lists. Sources are
// checked in fixed precedence: static lists, builtin slots, then external
// programs. Program output is memoized for the pass, so a Resolver is
// effectively frozen after the first full resolution sweep and safe for
// concurrent use during expansion.
type Resolver struct {
	static   map[string][]grammar.Node
	programs map[string]Program
	runner   Runner

	mu   sync.Mutex
	memo map[string][]grammar.Node
}

// NewResolver builds a Resolver from static slot value lists and external
// program declarations. Each static value is parsed as a grammar fragment
// immediately so malformed slot data fails before any expansion; duplicate
// value lines are dropped, first occurrence wins.
func NewResolver(static map[string][]string, programs map[string]Program, runner Runner) (*Resolver, error) {
	r := &Resolver{
		static:   make(map[string][]grammar.Node, len(static)),
		programs: programs,
		runner:   runner,
		memo:     make(map[string][]grammar.Node),
	}
	for name, values := range static {
		nodes, err := parseValues(name, values)
		if err != nil {
			return nil, err
		}
		r.static[name] = nodes
	}
	return r, nil
}

// Resolve returns the ordered value list for slot name. Unknown slots yield
// [*UndefinedSlotError]; failed programs yield [*ProgramError]. A program
// is run at most once per Resolver; later calls return the memoized list.
func (r *Resolver) Resolve(ctx context.Context, name string) ([]grammar.Node, error) {
	if nodes, ok := r.static[name]; ok {
		return nodes, nil
	}
	if values, ok := builtinSlots[name]; ok {
		nodes, err := parseValues(name, values)
		if err != nil {
			// Builtin values are plain words; this cannot happen.
			return nil, err
		}
		return nodes, nil
	}

	prog, ok := r.programs[name]
	if !ok {
		return nil, &UndefinedSlotError{Slot: name}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if nodes, ok := r.memo[name]; ok {
		return nodes, nil
	}

	slog.Debug("slots: running value program", "slot", name, "command", prog.Command)
	lines, err := r.runner.Run(ctx, prog)
	if err != nil {
		return nil, &ProgramError{Slot: name, Cause: err}
	}
	nodes, err := parseValues(name, lines)
	if err != nil {
		return nil, &ProgramError{Slot: name, Cause: err}
	}
	if len(nodes) == 0 {
		return nil, &ProgramError{Slot: name, Cause: fmt.Errorf("program printed no values")}
	}
	r.memo[name] = nodes
	return nodes, nil
}

// Known reports whether name has any value source, without running
// programs. Used by reference validation before expansion.
func (r *Resolver) Known(name string) bool {
	if _, ok := r.static[name]; ok {
		return true
	}
	if _, ok := builtinSlots[name]; ok {
		return true
	}
	_, ok := r.programs[name]
	return ok
}

// parseValues parses each value line as a grammar fragment, skipping blank
// lines and deduplicating identical lines while preserving first-seen order.
func parseValues(slot string, values []string) ([]grammar.Node, error) {
	seen := make(map[string]bool, len(values))
	nodes := make([]grammar.Node, 0, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" || seen[trimmed] {
			continue
		}
		seen[trimmed] = true
		node, err := grammar.ParseFragment("$"+slot, trimmed)
		if err != nil {
			return nil, fmt.Errorf("slot $%s value %q: %w", slot, trimmed, err)
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}
