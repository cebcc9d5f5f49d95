// Package problem loads optimization problem definitions: the construction's
// free variables and derived quantities, the declared constraints and the
// solver parameters. Definitions are YAML files for the CLI and the same
// shape as JSON for the server API.
package problem

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/weberBen/geoopt/internal/driver"
	"github.com/weberBen/geoopt/internal/geom"
)

// VariableSpec declares one free variable of the construction.
type VariableSpec struct {
	Name   string   `yaml:"name" json:"name"`
	Min    float64  `yaml:"min" json:"min"`
	Max    float64  `yaml:"max" json:"max"`
	Value  *float64 `yaml:"value" json:"value"`
	Weight float64  `yaml:"weight,omitempty" json:"weight,omitempty"`
	Hidden bool     `yaml:"hidden,omitempty" json:"hidden,omitempty"`
}

// DerivedSpec declares a named quantity computed from other values.
type DerivedSpec struct {
	Name       string `yaml:"name" json:"name"`
	Expression string `yaml:"expression" json:"expression"`
}

// ConstraintSpec declares one constraint. Expression is either zero-compared
// (with Operator set) or a full relation like "AB > 50", which the loader
// rewrites into zero-compared form.
type ConstraintSpec struct {
	Kind       string  `yaml:"kind" json:"kind"`
	Expression string  `yaml:"expression" json:"expression"`
	Operator   string  `yaml:"operator,omitempty" json:"operator,omitempty"`
	Tolerance  float64 `yaml:"tolerance,omitempty" json:"tolerance,omitempty"`
	Weight     float64 `yaml:"weight,omitempty" json:"weight,omitempty"`
	Disabled   bool    `yaml:"disabled,omitempty" json:"disabled,omitempty"`
}

// SolverSpec mirrors driver.SolverParams; zero values fall back to defaults.
type SolverSpec struct {
	MaxGenerations      int     `yaml:"maxGenerations,omitempty" json:"maxGenerations,omitempty"`
	PopulationSize      int     `yaml:"populationSize,omitempty" json:"populationSize,omitempty"`
	Sigma               float64 `yaml:"sigma,omitempty" json:"sigma,omitempty"`
	FunctionTolerance   float64 `yaml:"functionTolerance,omitempty" json:"functionTolerance,omitempty"`
	ProgressStepPercent float64 `yaml:"progressStepPercent,omitempty" json:"progressStepPercent,omitempty"`
	Seed                int64   `yaml:"seed,omitempty" json:"seed,omitempty"`
}

// Problem is a complete problem definition.
type Problem struct {
	Name             string           `yaml:"name" json:"name"`
	DefaultTolerance float64          `yaml:"defaultTolerance,omitempty" json:"defaultTolerance,omitempty"`
	Variables        []VariableSpec   `yaml:"variables" json:"variables"`
	Derived          []DerivedSpec    `yaml:"derived,omitempty" json:"derived,omitempty"`
	Constraints      []ConstraintSpec `yaml:"constraints,omitempty" json:"constraints,omitempty"`
	Solver           SolverSpec       `yaml:"solver,omitempty" json:"solver,omitempty"`
}

// Load reads and validates a YAML problem file.
func Load(path string) (*Problem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read problem file: %w", err)
	}

	var p Problem
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse problem file: %w", err)
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks the definition for structural errors before anything is
// built from it.
func (p *Problem) Validate() error {
	if len(p.Variables) == 0 {
		return fmt.Errorf("problem must declare at least one variable")
	}

	seen := make(map[string]bool)
	for i, v := range p.Variables {
		if v.Name == "" {
			return fmt.Errorf("variable %d: missing name", i)
		}
		if seen[v.Name] {
			return fmt.Errorf("variable %q: duplicate name", v.Name)
		}
		seen[v.Name] = true
		if v.Min >= v.Max {
			return fmt.Errorf("variable %q: min must be < max, got [%g, %g]", v.Name, v.Min, v.Max)
		}
		if v.Value == nil {
			return fmt.Errorf("variable %q: missing initial value", v.Name)
		}
		if *v.Value < v.Min || *v.Value > v.Max {
			return fmt.Errorf("variable %q: initial value %g outside bounds [%g, %g]", v.Name, *v.Value, v.Min, v.Max)
		}
		if v.Weight < 0 {
			return fmt.Errorf("variable %q: weight must be >= 0", v.Name)
		}
	}

	for i, d := range p.Derived {
		if d.Name == "" || d.Expression == "" {
			return fmt.Errorf("derived %d: name and expression are required", i)
		}
		if seen[d.Name] {
			return fmt.Errorf("derived %q: name collides with another definition", d.Name)
		}
		seen[d.Name] = true
	}

	for i := range p.Constraints {
		if _, err := p.normalizeConstraint(i); err != nil {
			return err
		}
	}
	return nil
}

// normalizeConstraint resolves one spec into a zero-compared driver
// constraint, rewriting relational expressions on the way.
func (p *Problem) normalizeConstraint(i int) (driver.Constraint, error) {
	spec := p.Constraints[i]

	var kind driver.Kind
	switch spec.Kind {
	case "hard", "":
		kind = driver.Hard
	case "soft":
		kind = driver.Soft
	default:
		return driver.Constraint{}, fmt.Errorf("constraint %d: unknown kind %q", i, spec.Kind)
	}

	expr := spec.Expression
	if expr == "" {
		return driver.Constraint{}, fmt.Errorf("constraint %d: missing expression", i)
	}

	opSpec := spec.Operator
	if lhs, op, rhs, found := splitRelation(expr); found {
		if opSpec != "" {
			return driver.Constraint{}, fmt.Errorf("constraint %d: both operator field and relational expression given", i)
		}
		expr = "(" + lhs + ")-(" + rhs + ")"
		opSpec = op
	}
	if opSpec == "" {
		return driver.Constraint{}, fmt.Errorf("constraint %d: missing operator", i)
	}

	op, err := driver.ParseOperator(opSpec)
	if err != nil {
		return driver.Constraint{}, fmt.Errorf("constraint %d: %w", i, err)
	}
	if spec.Weight < 0 {
		return driver.Constraint{}, fmt.Errorf("constraint %d: weight must be >= 0", i)
	}

	return driver.Constraint{
		Kind:       kind,
		Operator:   op,
		Expression: expr,
		Tolerance:  spec.Tolerance,
		Weight:     spec.Weight,
		Disabled:   spec.Disabled,
	}, nil
}

// Construction builds the in-memory geometry model for this problem.
func (p *Problem) Construction() (*geom.Construction, error) {
	vars := make(map[string]float64, len(p.Variables))
	for _, v := range p.Variables {
		vars[v.Name] = *v.Value
	}
	derived := make([]geom.Derived, len(p.Derived))
	for i, d := range p.Derived {
		derived[i] = geom.Derived{Name: d.Name, Expression: d.Expression}
	}
	return geom.NewConstruction(vars, derived)
}

// Request builds the driver run request for this problem.
func (p *Problem) Request() (driver.RunRequest, error) {
	variables := make([]driver.Variable, len(p.Variables))
	for i, v := range p.Variables {
		variables[i] = driver.Variable{
			Name:   v.Name,
			Min:    v.Min,
			Max:    v.Max,
			Weight: v.Weight,
			Hidden: v.Hidden,
		}
	}

	constraints := make([]driver.Constraint, 0, len(p.Constraints))
	for i := range p.Constraints {
		c, err := p.normalizeConstraint(i)
		if err != nil {
			return driver.RunRequest{}, err
		}
		constraints = append(constraints, c)
	}

	return driver.RunRequest{
		Variables:        variables,
		Constraints:      constraints,
		DefaultTolerance: p.DefaultTolerance,
		Solver: driver.SolverParams{
			MaxGenerations:      p.Solver.MaxGenerations,
			PopulationSize:      p.Solver.PopulationSize,
			Sigma:               p.Solver.Sigma,
			FunctionTolerance:   p.Solver.FunctionTolerance,
			ProgressStepPercent: p.Solver.ProgressStepPercent,
			Seed:                p.Solver.Seed,
		},
	}, nil
}
