package driver

import (
	"errors"
	"math"
	"testing"
)

func TestNormalizeHardEqualityBand(t *testing.T) {
	constraints := []Constraint{
		{Kind: Hard, Operator: Eq, Expression: "x - y"},
	}

	// Inside the band: both terms <= 0
	terms, err := NormalizeHard(constraints, []float64{0.00005}, 1e-4)
	if err != nil {
		t.Fatalf("NormalizeHard failed: %v", err)
	}
	if len(terms) != 2 {
		t.Fatalf("Expected 2 terms for equality, got %d", len(terms))
	}
	for i, g := range terms {
		if g > 0 {
			t.Errorf("Term %d should be satisfied inside the band, got %g", i, g)
		}
	}

	// Above the band: first term violated
	terms, _ = NormalizeHard(constraints, []float64{0.01}, 1e-4)
	if terms[0] <= 0 {
		t.Errorf("Expected positive violation above the band, got %g", terms[0])
	}
	if terms[1] > 0 {
		t.Errorf("Lower-side term should stay satisfied above the band, got %g", terms[1])
	}

	// Below the band: second term violated
	terms, _ = NormalizeHard(constraints, []float64{-0.01}, 1e-4)
	if terms[0] > 0 {
		t.Errorf("Upper-side term should stay satisfied below the band, got %g", terms[0])
	}
	if terms[1] <= 0 {
		t.Errorf("Expected positive violation below the band, got %g", terms[1])
	}
}

func TestNormalizeHardInequalities(t *testing.T) {
	tests := []struct {
		name      string
		op        Operator
		value     float64
		satisfied bool
	}{
		{"lt satisfied", Lt, -1.0, true},
		{"lt violated", Lt, 1.0, false},
		{"lte satisfied", Lte, 0.0, true},
		{"gt satisfied", Gt, 1.0, true},
		{"gt violated", Gt, -1.0, false},
		{"gte violated", Gte, -0.5, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			constraints := []Constraint{{Kind: Hard, Operator: tt.op, Expression: "d"}}
			terms, err := NormalizeHard(constraints, []float64{tt.value}, 1e-4)
			if err != nil {
				t.Fatalf("NormalizeHard failed: %v", err)
			}
			if len(terms) != 1 {
				t.Fatalf("Expected 1 term, got %d", len(terms))
			}
			if tt.satisfied && terms[0] > 0 {
				t.Errorf("Expected satisfied term, got %g", terms[0])
			}
			if !tt.satisfied && terms[0] <= 0 {
				t.Errorf("Expected violated term, got %g", terms[0])
			}
		})
	}
}

func TestNormalizeHardDisabledSentinel(t *testing.T) {
	constraints := []Constraint{
		{Kind: Hard, Operator: Eq, Expression: "a", Disabled: true},
		{Kind: Hard, Operator: Lt, Expression: "b"},
	}

	// the disabled constraint's value is huge; it must not register
	terms, err := NormalizeHard(constraints, []float64{1e9, -1.0}, 1e-4)
	if err != nil {
		t.Fatalf("NormalizeHard failed: %v", err)
	}
	if len(terms) != 3 {
		t.Fatalf("Expected 3 terms (2 disabled + 1 active), got %d", len(terms))
	}
	if terms[0] != disabledSentinel || terms[1] != disabledSentinel {
		t.Errorf("Disabled terms should be the sentinel, got %g, %g", terms[0], terms[1])
	}
	if terms[2] > 0 {
		t.Errorf("Active term should be satisfied, got %g", terms[2])
	}
}

func TestNormalizeHardPerConstraintTolerance(t *testing.T) {
	constraints := []Constraint{
		{Kind: Hard, Operator: Lte, Expression: "d", Tolerance: 0.5},
	}

	terms, err := NormalizeHard(constraints, []float64{0.4}, 1e-4)
	if err != nil {
		t.Fatalf("NormalizeHard failed: %v", err)
	}
	if terms[0] > 0 {
		t.Errorf("Value within the per-constraint tolerance should satisfy, got %g", terms[0])
	}
}

func TestNormalizeHardValueCountMismatch(t *testing.T) {
	constraints := []Constraint{{Kind: Hard, Operator: Lt, Expression: "d"}}
	if _, err := NormalizeHard(constraints, []float64{1, 2}, 1e-4); err == nil {
		t.Fatal("Expected error for mismatched value count")
	}
}

func TestHardTermCount(t *testing.T) {
	constraints := []Constraint{
		{Kind: Hard, Operator: Eq, Expression: "a"},
		{Kind: Hard, Operator: Lt, Expression: "b"},
		{Kind: Hard, Operator: Gte, Expression: "c", Disabled: true},
	}
	// disabled constraints still reserve their slots
	if got := HardTermCount(constraints); got != 4 {
		t.Errorf("Expected 4 terms, got %d", got)
	}
}

func TestParseOperator(t *testing.T) {
	tests := []struct {
		input string
		want  Operator
	}{
		{"==", Eq}, {"=", Eq}, {"eq", Eq},
		{"<", Lt}, {"lt", Lt},
		{"<=", Lte}, {"lte", Lte},
		{">", Gt}, {"gt", Gt},
		{">=", Gte}, {"gte", Gte},
	}
	for _, tt := range tests {
		got, err := ParseOperator(tt.input)
		if err != nil {
			t.Errorf("ParseOperator(%q) failed: %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseOperator(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}

	if _, err := ParseOperator("!="); !errors.Is(err, ErrUnknownOperator) {
		t.Errorf("Expected ErrUnknownOperator, got %v", err)
	}
}

func TestDisabledSentinelNeverViolates(t *testing.T) {
	// the sentinel must stay strictly negative even after a tolerance shift
	if disabledSentinel >= 0 || math.IsInf(disabledSentinel, -1) {
		t.Fatalf("Sentinel must be a large finite negative value, got %g", disabledSentinel)
	}
}
