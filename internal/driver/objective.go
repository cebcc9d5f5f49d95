package driver

import "fmt"

// MovementPenalty is the weighted squared displacement of each non-hidden
// variable from its value at run start.
func MovementPenalty(current, initial []float64, variables []Variable) float64 {
	penalty := 0.0
	for i, v := range variables {
		if v.Hidden {
			continue
		}
		d := current[i] - initial[i]
		w := v.Weight
		if w <= 0 {
			w = 1
		}
		penalty += w * d * d
	}
	return penalty
}

// softPenalty is one enabled soft constraint's contribution for raw value v.
func softPenalty(c Constraint, v float64) (float64, error) {
	var excess float64
	switch c.Operator {
	case Eq:
		excess = v
	case Lt, Lte:
		if v > 0 {
			excess = v
		}
	case Gt, Gte:
		if v < 0 {
			excess = -v
		}
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownOperator, c.Operator)
	}
	return c.weight() * excess * excess, nil
}

// EvaluateObjective computes the full per-candidate evaluation: movement
// penalty, soft penalty, combined objective, normalized hard terms and the
// raw value of every constraint in declaration order. The raw vector covers
// hard, soft and disabled constraints alike, so it can feed diagnostics.
//
// current holds the candidate's variable values, index-aligned with
// variables/initial. constraintValues holds the raw evaluated value of each
// constraint expression, index-aligned with constraints.
func EvaluateObjective(current, initial []float64, variables []Variable, constraints []Constraint, constraintValues []float64, defaultTolerance float64) (*EvaluationResult, error) {
	if len(constraintValues) != len(constraints) {
		return nil, fmt.Errorf("constraint value count mismatch: %d values for %d constraints", len(constraintValues), len(constraints))
	}

	movement := MovementPenalty(current, initial, variables)

	soft := 0.0
	var hard []Constraint
	var hardValues []float64
	for i, c := range constraints {
		switch c.Kind {
		case Hard:
			hard = append(hard, c)
			hardValues = append(hardValues, constraintValues[i])
		case Soft:
			if !c.enabled() {
				continue
			}
			p, err := softPenalty(c, constraintValues[i])
			if err != nil {
				return nil, err
			}
			soft += p
		default:
			return nil, fmt.Errorf("unknown constraint kind: %q", c.Kind)
		}
	}

	hardTerms, err := NormalizeHard(hard, hardValues, defaultTolerance)
	if err != nil {
		return nil, err
	}

	return &EvaluationResult{
		Objective:            movement + soft,
		MovementPenalty:      movement,
		SoftViolation:        soft,
		HardTerms:            hardTerms,
		EvaluatedConstraints: append([]float64(nil), constraintValues...),
	}, nil
}
