package geom

import (
	"context"
	"errors"
	"math"
	"testing"
)

func TestNewConstructionSettlesDerived(t *testing.T) {
	c, err := NewConstruction(
		map[string]float64{"x": 3, "y": 4},
		[]Derived{{Name: "dist", Expression: "sqrt(x^2 + y^2)"}},
	)
	if err != nil {
		t.Fatalf("NewConstruction failed: %v", err)
	}

	v, err := c.Value("dist")
	if err != nil {
		t.Fatalf("Value failed: %v", err)
	}
	if math.Abs(v-5) > 1e-12 {
		t.Errorf("dist = %g, want 5", v)
	}
}

func TestNewConstructionBadDerived(t *testing.T) {
	_, err := NewConstruction(
		map[string]float64{"x": 1},
		[]Derived{{Name: "bad", Expression: "undefined + 1"}},
	)
	if err == nil {
		t.Fatal("Expected error for unresolvable derived expression")
	}
}

func TestDerivedChainInDeclarationOrder(t *testing.T) {
	c, err := NewConstruction(
		map[string]float64{"x": 2},
		[]Derived{
			{Name: "a", Expression: "x * 3"},
			{Name: "b", Expression: "a + 1"},
		},
	)
	if err != nil {
		t.Fatalf("NewConstruction failed: %v", err)
	}

	v, _ := c.Value("b")
	if v != 7 {
		t.Errorf("b = %g, want 7", v)
	}
}

func TestSetValuesThenSettle(t *testing.T) {
	c, err := NewConstruction(
		map[string]float64{"x": 1},
		[]Derived{{Name: "double", Expression: "x * 2"}},
	)
	if err != nil {
		t.Fatalf("NewConstruction failed: %v", err)
	}

	if err := c.SetValues(map[string]float64{"x": 5}); err != nil {
		t.Fatalf("SetValues failed: %v", err)
	}

	// derived values are stale until Settle
	v, _ := c.Value("double")
	if v != 2 {
		t.Errorf("Pre-settle derived = %g, want stale 2", v)
	}

	if err := c.Settle(context.Background()); err != nil {
		t.Fatalf("Settle failed: %v", err)
	}
	v, _ = c.Value("double")
	if v != 10 {
		t.Errorf("Post-settle derived = %g, want 10", v)
	}
}

func TestSetValuesUnknownVariable(t *testing.T) {
	c, err := NewConstruction(map[string]float64{"x": 1}, nil)
	if err != nil {
		t.Fatalf("NewConstruction failed: %v", err)
	}
	if err := c.SetValues(map[string]float64{"nope": 1}); err == nil {
		t.Error("Expected error for unknown variable")
	}
	// derived names are not writable either
	c2, _ := NewConstruction(map[string]float64{"x": 1}, []Derived{{Name: "d", Expression: "x"}})
	if err := c2.SetValues(map[string]float64{"d": 1}); err == nil {
		t.Error("Expected error when writing a derived name")
	}
}

func TestEvaluateAgainstState(t *testing.T) {
	c, err := NewConstruction(
		map[string]float64{"x": 3, "y": 4},
		[]Derived{{Name: "dist", Expression: "hypot(x, y)"}},
	)
	if err != nil {
		t.Fatalf("NewConstruction failed: %v", err)
	}

	v, err := c.Evaluate("dist - 5")
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if math.Abs(v) > 1e-12 {
		t.Errorf("dist - 5 = %g, want 0", v)
	}

	_, err = c.Evaluate("1 / (x - x)")
	if !errors.Is(err, ErrNotEvaluable) {
		t.Errorf("Expected ErrNotEvaluable for division by zero, got %v", err)
	}
}

func TestSettleCancelledContext(t *testing.T) {
	c, err := NewConstruction(map[string]float64{"x": 1}, nil)
	if err != nil {
		t.Fatalf("NewConstruction failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.Settle(ctx); err == nil {
		t.Error("Expected error from cancelled context")
	}
}

func TestVariableNames(t *testing.T) {
	c, err := NewConstruction(map[string]float64{"a": 1, "b": 2}, nil)
	if err != nil {
		t.Fatalf("NewConstruction failed: %v", err)
	}
	names := c.VariableNames()
	if len(names) != 2 {
		t.Errorf("Expected 2 names, got %v", names)
	}
}
