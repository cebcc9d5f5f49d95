package cmaes

import (
	"context"
	"math"
	"testing"

	"github.com/weberBen/geoopt/internal/driver"
	"github.com/weberBen/geoopt/internal/geom"
)

func TestNewOracleValidation(t *testing.T) {
	_, err := NewOracle(driver.OracleConfig{
		Initial:        []float64{0},
		Lower:          []float64{1},
		Upper:          []float64{0},
		Sigma:          0.3,
		PopulationSize: 10,
	})
	if err == nil {
		t.Error("Expected error for inverted bounds")
	}
}

func TestScoreBatchTermCountMismatch(t *testing.T) {
	o, err := NewOracle(driver.OracleConfig{
		Initial:         []float64{0},
		Lower:           []float64{-1},
		Upper:           []float64{1},
		Sigma:           0.3,
		PopulationSize:  4,
		ConstraintTerms: 2,
		Seed:            1,
	})
	if err != nil {
		t.Fatalf("NewOracle failed: %v", err)
	}

	_, err = o.ScoreBatch([]driver.Evaluation{
		{Candidate: []float64{0}, Objective: 0, HardTerms: []float64{-1}},
	})
	if err == nil {
		t.Error("Expected error for mismatched hard term count")
	}
}

func TestScoreBatchDiagnostics(t *testing.T) {
	o, err := NewOracle(driver.OracleConfig{
		Initial:         []float64{0},
		Lower:           []float64{-1},
		Upper:           []float64{1},
		Sigma:           0.3,
		PopulationSize:  4,
		ConstraintTerms: 1,
		Seed:            1,
	})
	if err != nil {
		t.Fatalf("NewOracle failed: %v", err)
	}

	scores, err := o.ScoreBatch([]driver.Evaluation{
		{Candidate: []float64{0}, Objective: 0, HardTerms: []float64{-1}},
		{Candidate: []float64{1}, Objective: 0, HardTerms: []float64{2}},
	})
	if err != nil {
		t.Fatalf("ScoreBatch failed: %v", err)
	}
	if !scores.Feasible[0] || scores.Feasible[1] {
		t.Errorf("Feasibility flags wrong: %v", scores.Feasible)
	}
	if scores.Diagnostics["feasibleRatio"] != 0.5 {
		t.Errorf("feasibleRatio = %g, want 0.5", scores.Diagnostics["feasibleRatio"])
	}
}

// Full-stack run: two free variables, one hard equality constraint tying
// them together. The search must end feasible, with the residual inside the
// constraint's tolerance band.
func TestDriverWithOracleEqualityConstraint(t *testing.T) {
	model, err := geom.NewConstruction(map[string]float64{"x": 0.3, "y": 0.7}, nil)
	if err != nil {
		t.Fatalf("NewConstruction failed: %v", err)
	}

	d := driver.New(model, NewOracle, nil)
	result, err := d.Optimize(context.Background(), driver.RunRequest{
		Variables: []driver.Variable{
			{Name: "x", Min: 0, Max: 1},
			{Name: "y", Min: 0, Max: 1},
		},
		Constraints: []driver.Constraint{
			{Kind: driver.Hard, Operator: driver.Eq, Expression: "x - y"},
		},
		Solver: driver.SolverParams{
			MaxGenerations:    300,
			PopulationSize:    20,
			Sigma:             0.3,
			FunctionTolerance: 1e-12,
			Seed:              7,
		},
	})
	if err != nil {
		t.Fatalf("Optimize failed: %v", err)
	}

	if !result.Feasible {
		t.Fatalf("Expected a feasible result, stop reason %q after %d generations", result.StopReason, result.Generations)
	}

	residual := math.Abs(result.Values["x"] - result.Values["y"])
	if residual > 1e-4 {
		t.Errorf("Equality residual %g exceeds tolerance band", residual)
	}

	// both variables can satisfy the constraint near 0.5; the movement
	// penalty keeps them from drifting to an arbitrary corner
	if result.Movement > 0.16 {
		t.Errorf("Movement penalty %g is far above the symmetric optimum", result.Movement)
	}
}

// With no constraints the result is trivially feasible and the best
// candidate is the one that moves least.
func TestDriverWithOracleUnconstrained(t *testing.T) {
	model, err := geom.NewConstruction(map[string]float64{"x": 0.5}, nil)
	if err != nil {
		t.Fatalf("NewConstruction failed: %v", err)
	}

	d := driver.New(model, NewOracle, nil)
	result, err := d.Optimize(context.Background(), driver.RunRequest{
		Variables: []driver.Variable{{Name: "x", Min: 0, Max: 1}},
		Solver: driver.SolverParams{
			MaxGenerations: 100,
			PopulationSize: 10,
			Seed:           3,
		},
	})
	if err != nil {
		t.Fatalf("Optimize failed: %v", err)
	}

	if !result.Feasible {
		t.Error("Unconstrained run should be trivially feasible")
	}
	if math.Abs(result.Deltas["x"]) > 0.05 {
		t.Errorf("Best candidate should stay near the initial point, delta %g", result.Deltas["x"])
	}
}
