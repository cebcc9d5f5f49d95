package driver

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/weberBen/geoopt/internal/geom"
	"github.com/weberBen/geoopt/internal/opt"
)

// hardPenaltyWeight makes any hard-constraint violation dominate the polish
// cost.
const hardPenaltyWeight = 1e6

// Polish refines a completed run's solution with a one-shot bounded local
// search. Hard constraints are folded into the cost as a heavy quadratic
// penalty on the normalized terms. The polished point replaces the result
// only when it does not lose feasibility and improves the objective;
// whichever point wins is left applied on the model.
func Polish(ctx context.Context, model geom.Model, req RunRequest, result *RunResult, optimizer opt.Optimizer) (*RunResult, error) {
	names := make([]string, len(req.Variables))
	lower := make([]float64, len(req.Variables))
	upper := make([]float64, len(req.Variables))
	initial := make([]float64, len(req.Variables))
	for i, v := range req.Variables {
		names[i] = v.Name
		lower[i] = v.Min
		upper[i] = v.Max
		initial[i] = result.Values[v.Name] - result.Deltas[v.Name]
	}

	tol := req.DefaultTolerance
	if tol <= 0 {
		tol = DefaultTolerance
	}

	evaluate := func(x []float64) (*EvaluationResult, error) {
		if err := model.SetValues(valuesMap(names, x)); err != nil {
			return nil, err
		}
		if err := model.Settle(ctx); err != nil {
			return nil, err
		}
		raw := make([]float64, len(req.Constraints))
		for i, c := range req.Constraints {
			v, err := model.Evaluate(c.Expression)
			if err != nil {
				return nil, err
			}
			raw[i] = v
		}
		return EvaluateObjective(x, initial, req.Variables, req.Constraints, raw, tol)
	}

	var evalErr error
	cost := func(x []float64) float64 {
		res, err := evaluate(x)
		if err != nil {
			if evalErr == nil {
				evalErr = err
			}
			return math.Inf(1)
		}
		c := res.Objective
		for _, g := range res.HardTerms {
			if g > 0 {
				c += hardPenaltyWeight * g * g
			}
		}
		return c
	}

	polished, polishedCost := optimizer.Run(cost, lower, upper, len(names))
	if evalErr != nil {
		return nil, fmt.Errorf("polish evaluation failed: %w", evalErr)
	}

	res, err := evaluate(polished)
	if err != nil {
		return nil, fmt.Errorf("polish evaluation failed: %w", err)
	}
	polishedFeasible := true
	for _, g := range res.HardTerms {
		if g > 0 {
			polishedFeasible = false
			break
		}
	}

	keep := res.Objective < result.Objective && (polishedFeasible || !result.Feasible)
	if !keep {
		// restore the original solution, the polish did not help
		if _, err := evaluate(result.Solution); err != nil {
			return nil, fmt.Errorf("restoring solution after polish: %w", err)
		}
		slog.Debug("Polish rejected", "cost", polishedCost, "objective", res.Objective)
		return result, nil
	}

	slog.Info("Polish accepted", "objective", res.Objective, "previous", result.Objective, "feasible", polishedFeasible)

	out := *result
	out.Solution = append([]float64(nil), polished...)
	out.Values = valuesMap(names, polished)
	out.Deltas = deltasMap(names, polished, initial)
	out.Objective = res.Objective
	out.Movement = res.MovementPenalty
	out.Soft = res.SoftViolation
	out.Feasible = polishedFeasible
	return &out, nil
}
