package cmaes

import "math"

// augmented carries the Augmented-Lagrangian constraint state: one
// multiplier/penalty pair per normalized hard term, plus the best feasible
// candidate seen so far. Until the first feasible candidate appears the
// objective is suppressed from the fitness so the search is pulled toward
// the feasible region first.
type augmented struct {
	lambda []float64
	mu     []float64

	foundFeasible bool
	bestX         []float64
	bestObjective float64

	// last scored generation, consumed by update()
	lastTerms   [][]float64
	lastFitness []float64
}

func newAugmented(terms int) *augmented {
	a := &augmented{
		lambda: make([]float64, terms),
		mu:     make([]float64, terms),
	}
	for i := range a.mu {
		a.mu[i] = 1
	}
	return a
}

// fitness combines one candidate's objective with the AL terms.
func (a *augmented) fitness(objective float64, terms []float64) float64 {
	f := 0.0
	if a.foundFeasible {
		f = objective
	}
	for j, g := range terms {
		lam, mu := a.lambda[j], a.mu[j]
		if g >= -lam/mu {
			f += lam*g + 0.5*mu*g*g
		} else {
			f += -lam * lam / (2 * mu)
		}
	}
	return f
}

func feasible(terms []float64) bool {
	for _, g := range terms {
		if g > 0 {
			return false
		}
	}
	return true
}

// observe records one candidate's feasibility and best-feasible standing.
func (a *augmented) observe(candidate []float64, objective float64, terms []float64) bool {
	if !feasible(terms) {
		return false
	}
	a.foundFeasible = true
	if a.bestX == nil || objective < a.bestObjective {
		a.bestX = append([]float64(nil), candidate...)
		a.bestObjective = objective
	}
	return true
}

// update adapts multipliers once per generation, using the constraint terms
// of the generation's best-fitness candidate.
func (a *augmented) update() {
	if len(a.lastTerms) == 0 {
		return
	}

	best := 0
	for i := 1; i < len(a.lastFitness); i++ {
		if a.lastFitness[i] < a.lastFitness[best] {
			best = i
		}
	}
	terms := a.lastTerms[best]

	for j, g := range terms {
		a.lambda[j] = math.Max(0, a.lambda[j]+a.mu[j]*g)
		switch {
		case g > 0:
			// still violated: push harder next generation
			a.mu[j] *= 2
		case g < -a.lambda[j]/a.mu[j]:
			a.mu[j] = math.Max(1e-12, a.mu[j]*0.9)
		}
	}

	a.lastTerms = nil
	a.lastFitness = nil
}
