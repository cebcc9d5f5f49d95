package geom

import "context"

// Model is the variable/geometry collaborator the optimization driver talks
// to. Implementations own the construction state; the driver only reads
// values, writes candidate values and evaluates constraint expressions.
//
// Error handling conventions:
//   - Value/SetValues return an error for unknown variable names
//   - Evaluate returns an error satisfying errors.Is(err, ErrNotEvaluable)
//     when the expression cannot be reduced to a finite number
type Model interface {
	// Value returns the current value of a named variable or derived
	// quantity.
	Value(name string) (float64, error)

	// SetValues writes the given variable values into the construction.
	// All names must refer to free variables.
	SetValues(values map[string]float64) error

	// Evaluate computes the numeric value of an expression against the
	// current construction state.
	Evaluate(expr string) (float64, error)

	// Settle gives the construction one scheduling tick to recompute any
	// quantities that depend on recently written variables. The driver
	// calls this after each candidate application, before reading
	// constraint values.
	Settle(ctx context.Context) error
}

// ErrNotEvaluable is returned when an expression does not reduce to a finite
// number. Use errors.Is(err, ErrNotEvaluable) to check for it.
var ErrNotEvaluable = &NotEvaluableError{}

// NotEvaluableError carries the offending expression and the reason it could
// not be evaluated.
type NotEvaluableError struct {
	Expr   string
	Reason string
}

func (e *NotEvaluableError) Error() string {
	if e.Expr == "" {
		return "expression not evaluable"
	}
	return "expression not evaluable: " + e.Expr + ": " + e.Reason
}

func (e *NotEvaluableError) Is(target error) bool {
	_, ok := target.(*NotEvaluableError)
	return ok
}
