package driver

import "fmt"

// Kind distinguishes hard constraints (enforced through the solver's
// Augmented-Lagrangian terms) from soft constraints (weighted quadratic
// penalty added to the objective).
type Kind string

const (
	Hard Kind = "hard"
	Soft Kind = "soft"
)

// Operator relates a constraint expression to zero.
type Operator string

const (
	Eq  Operator = "eq"
	Lt  Operator = "lt"
	Lte Operator = "lte"
	Gt  Operator = "gt"
	Gte Operator = "gte"
)

// Constraint is one declared condition on the construction. Expression is
// always compared against zero; callers that accept relational syntax must
// rewrite "lhs op rhs" into "(lhs)-(rhs)" before constructing a Constraint.
type Constraint struct {
	Kind       Kind     `json:"kind"`
	Operator   Operator `json:"operator"`
	Expression string   `json:"expression"`

	// Tolerance overrides the run-level default when > 0.
	Tolerance float64 `json:"tolerance,omitempty"`

	// Weight applies to soft constraints only; <= 0 means default 1.
	Weight float64 `json:"weight,omitempty"`

	// Disabled constraints are carried through evaluation for diagnostics
	// but never contribute a violation or penalty.
	Disabled bool `json:"disabled,omitempty"`
}

func (c Constraint) enabled() bool { return !c.Disabled }

func (c Constraint) weight() float64 {
	if c.Weight > 0 {
		return c.Weight
	}
	return 1
}

func (c Constraint) tolerance(def float64) float64 {
	if c.Tolerance > 0 {
		return c.Tolerance
	}
	return def
}

// termCount is how many standard-form terms the constraint expands to.
func (c Constraint) termCount() int {
	if c.Operator == Eq {
		return 2
	}
	return 1
}

// disabledSentinel is emitted for each term of a disabled constraint so it
// can never register as violated, whatever the solver's multipliers do.
const disabledSentinel = -1e10

// NormalizeHard converts hard constraints and their raw evaluated values into
// standard-form inequality terms, each <= 0 when satisfied. Term order is
// stable: constraint declaration order, with equality constraints expanding
// to two terms in place. values must be index-aligned with constraints.
func NormalizeHard(constraints []Constraint, values []float64, defaultTolerance float64) ([]float64, error) {
	if len(values) != len(constraints) {
		return nil, fmt.Errorf("constraint value count mismatch: %d values for %d constraints", len(values), len(constraints))
	}

	terms := make([]float64, 0, len(constraints)+1)
	for i, c := range constraints {
		if !c.enabled() {
			for j := 0; j < c.termCount(); j++ {
				terms = append(terms, disabledSentinel)
			}
			continue
		}

		g := values[i]
		tol := c.tolerance(defaultTolerance)

		switch c.Operator {
		case Eq:
			// two-sided band of width 2*tol around zero
			terms = append(terms, g-tol, -g-tol)
		case Gt, Gte:
			terms = append(terms, -g-tol)
		case Lt, Lte:
			terms = append(terms, g-tol)
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownOperator, c.Operator)
		}
	}
	return terms, nil
}

// HardTermCount returns the length of the normalized term vector for the
// given constraints, before any evaluation happens. The oracle needs this to
// size its multiplier state.
func HardTermCount(constraints []Constraint) int {
	n := 0
	for _, c := range constraints {
		n += c.termCount()
	}
	return n
}

// ParseOperator accepts both symbolic and mnemonic operator spellings.
func ParseOperator(s string) (Operator, error) {
	switch s {
	case "==", "=", "eq":
		return Eq, nil
	case "<", "lt":
		return Lt, nil
	case "<=", "lte":
		return Lte, nil
	case ">", "gt":
		return Gt, nil
	case ">=", "gte":
		return Gte, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownOperator, s)
}
