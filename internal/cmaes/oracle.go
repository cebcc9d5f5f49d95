package cmaes

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/weberBen/geoopt/internal/driver"
)

// Oracle implements driver.Oracle: sep-CMA-ES sampling plus
// Augmented-Lagrangian scoring.
type Oracle struct {
	es *strategy
	al *augmented
}

// NewOracle is the driver.OracleFactory for this package.
func NewOracle(cfg driver.OracleConfig) (driver.Oracle, error) {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	es, err := newStrategy(cfg.Initial, cfg.Lower, cfg.Upper, cfg.Sigma, cfg.PopulationSize, cfg.FunctionTolerance, rng)
	if err != nil {
		return nil, err
	}

	return &Oracle{
		es: es,
		al: newAugmented(cfg.ConstraintTerms),
	}, nil
}

// Ask produces the next population.
func (o *Oracle) Ask() ([][]float64, error) {
	return o.es.ask(), nil
}

// ScoreBatch folds objective and hard terms into AL fitness and judges
// feasibility. The batch is retained until Tell so the multiplier update can
// use it.
func (o *Oracle) ScoreBatch(evals []driver.Evaluation) (driver.BatchScores, error) {
	scores := driver.BatchScores{
		Fitness:  make([]float64, len(evals)),
		Feasible: make([]bool, len(evals)),
	}

	terms := make([][]float64, len(evals))
	feasibleCount := 0
	for i, ev := range evals {
		if len(ev.HardTerms) != len(o.al.lambda) {
			return driver.BatchScores{}, fmt.Errorf("constraint term count mismatch: got %d, expected %d", len(ev.HardTerms), len(o.al.lambda))
		}
		scores.Feasible[i] = o.al.observe(ev.Candidate, ev.Objective, ev.HardTerms)
		if scores.Feasible[i] {
			feasibleCount++
		}
		terms[i] = ev.HardTerms
	}
	// fitness is computed after all feasibility observations so the
	// find-feasible-first switch applies uniformly across the batch
	for i, ev := range evals {
		scores.Fitness[i] = o.al.fitness(ev.Objective, ev.HardTerms)
	}

	o.al.lastTerms = terms
	o.al.lastFitness = scores.Fitness

	scores.Diagnostics = map[string]float64{
		"sigma":         o.es.sigma,
		"feasibleRatio": ratio(feasibleCount, len(evals)),
	}
	return scores, nil
}

// Tell feeds the scored generation back into the strategy and adapts the AL
// multipliers.
func (o *Oracle) Tell(candidates [][]float64, fitness []float64) error {
	if err := o.es.tell(candidates, fitness); err != nil {
		return err
	}
	o.al.update()
	return nil
}

// Converged reports the strategy's stop reason, or "".
func (o *Oracle) Converged() string {
	return o.es.stop()
}

// BestFeasible returns the oracle-side best feasible candidate, if any.
func (o *Oracle) BestFeasible() ([]float64, bool) {
	if o.al.bestX == nil {
		return nil, false
	}
	return append([]float64(nil), o.al.bestX...), true
}

func ratio(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total)
}
