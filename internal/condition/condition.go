// Package condition evaluates boolean expressions for conditional steps.
package condition

import (
	"regexp"
	"strings"

	"github.com/taskpilot/taskpilot/internal/types"
)

var varPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Evaluator evaluates conditions with ${var} substitution. Evaluation is a
// pure function of the expression and the variable mappings: the same inputs
// always select the same branch.
type Evaluator struct{}

// New creates an Evaluator.
func New() *Evaluator {
	return &Evaluator{}
}

// Evaluate substitutes every ${name} token using the condition's own
// variables first and the execution context as fallback, then evaluates the
// expression. An expression referencing an unbound variable evaluates to
// false rather than erroring, so conditional branching stays total.
func (e *Evaluator) Evaluate(cond types.Condition, context map[string]string) bool {
	expr, ok := Substitute(cond.Expression, cond.Variables, context)
	if !ok {
		return false
	}
	return evaluate(expr)
}

// Substitute replaces ${name} tokens in s, consulting the mappings in order.
// Returns false when any token is unbound.
func Substitute(s string, mappings ...map[string]string) (string, bool) {
	unbound := false
	out := varPattern.ReplaceAllStringFunc(s, func(token string) string {
		name := token[2 : len(token)-1]
		for _, m := range mappings {
			if v, ok := m[name]; ok {
				return v
			}
		}
		unbound = true
		return token
	})
	return out, !unbound
}

// evaluate handles the supported expression forms: boolean literals,
// equality, inequality, and non-empty truthiness.
func evaluate(expr string) bool {
	expr = strings.TrimSpace(expr)

	switch strings.ToLower(expr) {
	case "true":
		return true
	case "false", "":
		return false
	}

	if lhs, rhs, found := strings.Cut(expr, "!="); found {
		return trimOperand(lhs) != trimOperand(rhs)
	}
	if lhs, rhs, found := strings.Cut(expr, "=="); found {
		return trimOperand(lhs) == trimOperand(rhs)
	}

	// Bare value: non-empty truthiness.
	return expr != "0" && !strings.EqualFold(expr, "false")
}

// trimOperand strips whitespace and surrounding quotes from one side of a
// comparison.
func trimOperand(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		if (s[0] == '\'' && s[len(s)-1] == '\'') || (s[0] == '"' && s[len(s)-1] == '"') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
