// Package cmaes implements the external search oracle: a separable
// (diagonal-covariance) CMA evolution strategy combined with an
// Augmented-Lagrangian constraint layer, driven through the ask/score/tell
// protocol one generation at a time.
package cmaes

import (
	"fmt"
	"math"
	"math/rand"
)

// strategy is the unconstrained sep-CMA-ES core: sampling, recombination,
// step-size control and diagonal covariance adaptation.
type strategy struct {
	dim    int
	lambda int
	mu     int

	weights []float64
	muEff   float64

	cSigma float64
	dSigma float64
	cc     float64
	c1     float64
	cMu    float64
	chiN   float64

	mean   []float64
	sigma  float64
	sigma0 float64
	cVar   []float64 // diagonal of the covariance matrix
	ps     []float64
	pc     []float64

	lower []float64
	upper []float64

	rng        *rand.Rand
	generation int
	tolFun     float64
	bestHist   []float64 // best fitness per generation, for the tolfun stop
	lastSpread float64   // fitness spread of the last told generation
}

func newStrategy(initial, lower, upper []float64, sigma float64, popSize int, tolFun float64, rng *rand.Rand) (*strategy, error) {
	n := len(initial)
	if n == 0 {
		return nil, fmt.Errorf("empty initial point")
	}
	if len(lower) != n || len(upper) != n {
		return nil, fmt.Errorf("bounds dimension mismatch: %d/%d for %d variables", len(lower), len(upper), n)
	}
	for i := range lower {
		if lower[i] >= upper[i] {
			return nil, fmt.Errorf("invalid bounds for dimension %d: [%g, %g]", i, lower[i], upper[i])
		}
	}
	if popSize < 2 {
		return nil, fmt.Errorf("population size must be >= 2, got %d", popSize)
	}
	if sigma <= 0 {
		return nil, fmt.Errorf("sigma must be > 0, got %g", sigma)
	}

	s := &strategy{
		dim:    n,
		lambda: popSize,
		mu:     popSize / 2,
		sigma:  sigma,
		sigma0: sigma,
		tolFun: tolFun,
		rng:    rng,
		mean:   append([]float64(nil), initial...),
		lower:  append([]float64(nil), lower...),
		upper:  append([]float64(nil), upper...),
		cVar:   make([]float64, n),
		ps:     make([]float64, n),
		pc:     make([]float64, n),
	}
	for i := range s.cVar {
		s.cVar[i] = 1
	}

	// log-decreasing recombination weights over the better half
	s.weights = make([]float64, s.mu)
	sum := 0.0
	for i := range s.weights {
		s.weights[i] = math.Log(float64(s.mu)+0.5) - math.Log(float64(i+1))
		sum += s.weights[i]
	}
	sqSum := 0.0
	for i := range s.weights {
		s.weights[i] /= sum
		sqSum += s.weights[i] * s.weights[i]
	}
	s.muEff = 1 / sqSum

	nf := float64(n)
	s.cSigma = (s.muEff + 2) / (nf + s.muEff + 5)
	s.dSigma = 1 + 2*math.Max(0, math.Sqrt((s.muEff-1)/(nf+1))-1) + s.cSigma
	s.cc = (4 + s.muEff/nf) / (nf + 4 + 2*s.muEff/nf)
	s.c1 = 2 / ((nf+1.3)*(nf+1.3) + s.muEff)
	s.cMu = math.Min(1-s.c1, 2*(s.muEff-2+1/s.muEff)/((nf+2)*(nf+2)+s.muEff))
	// separable variant learns the diagonal faster
	sepScale := (nf + 2) / 3
	s.c1 = math.Min(1, s.c1*sepScale)
	s.cMu = math.Min(1-s.c1, s.cMu*sepScale)
	s.chiN = math.Sqrt(nf) * (1 - 1/(4*nf) + 1/(21*nf*nf))

	return s, nil
}

// ask samples one population, clamped into the search box.
func (s *strategy) ask() [][]float64 {
	pop := make([][]float64, s.lambda)
	for k := range pop {
		x := make([]float64, s.dim)
		for i := 0; i < s.dim; i++ {
			x[i] = s.mean[i] + s.sigma*math.Sqrt(s.cVar[i])*s.rng.NormFloat64()
			if x[i] < s.lower[i] {
				x[i] = s.lower[i]
			} else if x[i] > s.upper[i] {
				x[i] = s.upper[i]
			}
		}
		pop[k] = x
	}
	return pop
}

// tell ranks the generation by fitness and updates mean, paths, step size
// and the covariance diagonal.
func (s *strategy) tell(candidates [][]float64, fitness []float64) error {
	if len(candidates) != len(fitness) {
		return fmt.Errorf("candidate/fitness count mismatch: %d vs %d", len(candidates), len(fitness))
	}
	if len(candidates) < s.mu {
		return fmt.Errorf("need at least %d candidates, got %d", s.mu, len(candidates))
	}

	order := argsort(fitness)

	oldMean := append([]float64(nil), s.mean...)
	yw := make([]float64, s.dim)
	for i := 0; i < s.dim; i++ {
		m := 0.0
		for k := 0; k < s.mu; k++ {
			m += s.weights[k] * candidates[order[k]][i]
		}
		s.mean[i] = m
		yw[i] = (m - oldMean[i]) / s.sigma
	}

	// cumulative step-size adaptation
	csn := math.Sqrt(s.cSigma * (2 - s.cSigma) * s.muEff)
	psNorm := 0.0
	for i := 0; i < s.dim; i++ {
		s.ps[i] = (1-s.cSigma)*s.ps[i] + csn*yw[i]/math.Sqrt(s.cVar[i])
		psNorm += s.ps[i] * s.ps[i]
	}
	psNorm = math.Sqrt(psNorm)
	s.sigma *= math.Exp((s.cSigma / s.dSigma) * (psNorm/s.chiN - 1))

	expo := 2 * float64(s.generation+1)
	hSigma := 0.0
	if psNorm/math.Sqrt(1-math.Pow(1-s.cSigma, expo)) < (1.4+2/float64(s.dim+1))*s.chiN {
		hSigma = 1
	}

	ccn := math.Sqrt(s.cc * (2 - s.cc) * s.muEff)
	for i := 0; i < s.dim; i++ {
		s.pc[i] = (1-s.cc)*s.pc[i] + hSigma*ccn*yw[i]
	}

	for i := 0; i < s.dim; i++ {
		rankMu := 0.0
		for k := 0; k < s.mu; k++ {
			y := (candidates[order[k]][i] - oldMean[i]) / s.sigma
			rankMu += s.weights[k] * y * y
		}
		s.cVar[i] = (1-s.c1-s.cMu)*s.cVar[i] +
			s.c1*(s.pc[i]*s.pc[i]+(1-hSigma)*s.cc*(2-s.cc)*s.cVar[i]) +
			s.cMu*rankMu
		if s.cVar[i] < 1e-30 {
			s.cVar[i] = 1e-30
		}
	}

	s.generation++
	s.bestHist = append(s.bestHist, fitness[order[0]])
	s.lastSpread = fitness[order[len(order)-1]] - fitness[order[0]]
	return nil
}

// stop reports a convergence reason, or "".
func (s *strategy) stop() string {
	histLen := 10 + 30*s.dim/s.lambda
	if len(s.bestHist) >= histLen {
		recent := s.bestHist[len(s.bestHist)-histLen:]
		lo, hi := recent[0], recent[0]
		for _, v := range recent[1:] {
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		if hi-lo < s.tolFun && s.lastSpread < s.tolFun {
			return "tolfun"
		}
	}

	maxVar := 0.0
	for _, v := range s.cVar {
		maxVar = math.Max(maxVar, v)
	}
	if s.sigma*math.Sqrt(maxVar) < 1e-12*s.sigma0 {
		return "tolx"
	}
	return ""
}

func argsort(values []float64) []int {
	order := make([]int, len(values))
	for i := range order {
		order[i] = i
	}
	// insertion sort keeps ranking stable for equal fitness
	for i := 1; i < len(order); i++ {
		for j := i; j > 0 && values[order[j]] < values[order[j-1]]; j-- {
			order[j], order[j-1] = order[j-1], order[j]
		}
	}
	return order
}
