package cmaes

import (
	"math"
	"math/rand"
	"testing"
)

func newTestStrategy(t *testing.T, initial, lower, upper []float64, sigma float64, popSize int) *strategy {
	t.Helper()
	s, err := newStrategy(initial, lower, upper, sigma, popSize, 1e-9, rand.New(rand.NewSource(42)))
	if err != nil {
		t.Fatalf("newStrategy failed: %v", err)
	}
	return s
}

func TestNewStrategyValidation(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	if _, err := newStrategy(nil, nil, nil, 0.3, 10, 1e-9, rng); err == nil {
		t.Error("Expected error for empty initial point")
	}
	if _, err := newStrategy([]float64{0}, []float64{0}, []float64{0, 1}, 0.3, 10, 1e-9, rng); err == nil {
		t.Error("Expected error for bounds dimension mismatch")
	}
	if _, err := newStrategy([]float64{0}, []float64{1}, []float64{0}, 0.3, 10, 1e-9, rng); err == nil {
		t.Error("Expected error for inverted bounds")
	}
	if _, err := newStrategy([]float64{0}, []float64{-1}, []float64{1}, 0.3, 1, 1e-9, rng); err == nil {
		t.Error("Expected error for population size < 2")
	}
	if _, err := newStrategy([]float64{0}, []float64{-1}, []float64{1}, 0, 10, 1e-9, rng); err == nil {
		t.Error("Expected error for non-positive sigma")
	}
}

func TestAskRespectsBounds(t *testing.T) {
	s := newTestStrategy(t, []float64{0.5, 0.5}, []float64{0, 0}, []float64{1, 1}, 2.0, 20)

	for gen := 0; gen < 5; gen++ {
		pop := s.ask()
		if len(pop) != 20 {
			t.Fatalf("Expected 20 candidates, got %d", len(pop))
		}
		for _, cand := range pop {
			for d, v := range cand {
				if v < 0 || v > 1 {
					t.Fatalf("Candidate dimension %d out of bounds: %g", d, v)
				}
			}
		}
		// arbitrary fitness keeps the protocol moving
		fitness := make([]float64, len(pop))
		for i, cand := range pop {
			fitness[i] = cand[0]
		}
		if err := s.tell(pop, fitness); err != nil {
			t.Fatalf("tell failed: %v", err)
		}
	}
}

func TestTellRejectsMisalignedFitness(t *testing.T) {
	s := newTestStrategy(t, []float64{0}, []float64{-1}, []float64{1}, 0.3, 4)
	pop := s.ask()
	if err := s.tell(pop, make([]float64, len(pop)-1)); err == nil {
		t.Error("Expected error for misaligned fitness vector")
	}
}

func TestStrategyMinimizesSphere(t *testing.T) {
	target := []float64{0.7, -0.2, 0.3}
	s := newTestStrategy(t,
		[]float64{0, 0, 0},
		[]float64{-5, -5, -5},
		[]float64{5, 5, 5},
		0.5, 16,
	)

	sphere := func(x []float64) float64 {
		sum := 0.0
		for i := range x {
			d := x[i] - target[i]
			sum += d * d
		}
		return sum
	}

	bestCost := math.Inf(1)
	var best []float64
	for gen := 0; gen < 300; gen++ {
		pop := s.ask()
		fitness := make([]float64, len(pop))
		for i, cand := range pop {
			fitness[i] = sphere(cand)
			if fitness[i] < bestCost {
				bestCost = fitness[i]
				best = append([]float64(nil), cand...)
			}
		}
		if err := s.tell(pop, fitness); err != nil {
			t.Fatalf("tell failed: %v", err)
		}
		if s.stop() != "" {
			break
		}
	}

	if bestCost > 1e-4 {
		t.Errorf("Sphere not minimized: best cost %g at %v", bestCost, best)
	}
	for i := range target {
		if math.Abs(best[i]-target[i]) > 0.05 {
			t.Errorf("Dimension %d: got %g, want near %g", i, best[i], target[i])
		}
	}
}

func TestStrategyStopsOnFlatFitness(t *testing.T) {
	s := newTestStrategy(t, []float64{0}, []float64{-1}, []float64{1}, 0.3, 8)

	stopped := ""
	for gen := 0; gen < 500; gen++ {
		pop := s.ask()
		// constant fitness: the history spread collapses to zero
		fitness := make([]float64, len(pop))
		if err := s.tell(pop, fitness); err != nil {
			t.Fatalf("tell failed: %v", err)
		}
		if reason := s.stop(); reason != "" {
			stopped = reason
			break
		}
	}
	if stopped == "" {
		t.Error("Expected the strategy to stop on flat fitness")
	}
}
