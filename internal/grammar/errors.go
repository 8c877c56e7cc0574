package grammar

import (
	"fmt"
	"strings"
)

// SyntaxError reports malformed template text. Line and Column are 1-based
// and refer to the intent's source block as passed to [Parse].
type SyntaxError struct {
	Intent string
	Line   int
	Column int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("grammar: intent %q line %d col %d: %s", e.Intent, e.Line, e.Column, e.Msg)
}

// UndefinedRuleError reports a rule reference that resolves to nothing in
// the registry. Intent is the intent the reference was made from.
type UndefinedRuleError struct {
	Intent string
	Name   string
}

func (e *UndefinedRuleError) Error() string {
	return fmt.Sprintf("grammar: intent %q references undefined rule <%s>", e.Intent, e.Name)
}

// CycleError reports a cycle in the rule reference graph. Chain holds the
// qualified rule names along the cycle, ending where it started.
type CycleError struct {
	Chain []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("grammar: rule reference cycle: %s", strings.Join(e.Chain, " -> "))
}
