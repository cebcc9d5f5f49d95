package driver

// BestEntry is a snapshot of one tracked candidate and its score.
type BestEntry struct {
	Solution []float64
	Score    float64
}

// BestTracker keeps the best-by-fitness and best-feasible candidates in two
// independent strictly-better slots. The two scores live on different
// scales: Overall tracks the solver's raw fitness (movement + soft + AL
// terms), Feasible tracks the plain objective among feasible candidates.
type BestTracker struct {
	overall  *BestEntry
	feasible *BestEntry
}

// NewBestTracker returns a tracker with both slots empty.
func NewBestTracker() *BestTracker { return &BestTracker{} }

// ConsiderOverall replaces the best-overall slot if empty or strictly
// improved; ties keep the earlier candidate. Reports whether it replaced.
func (bt *BestTracker) ConsiderOverall(candidate []float64, fitness float64) bool {
	if bt.overall != nil && fitness >= bt.overall.Score {
		return false
	}
	bt.overall = &BestEntry{Solution: append([]float64(nil), candidate...), Score: fitness}
	return true
}

// ConsiderFeasible replaces the best-feasible slot if the candidate is
// feasible and strictly improves the objective. Infeasible candidates never
// touch the slot, whatever their objective.
func (bt *BestTracker) ConsiderFeasible(candidate []float64, objective float64, isFeasible bool) bool {
	if !isFeasible {
		return false
	}
	if bt.feasible != nil && objective >= bt.feasible.Score {
		return false
	}
	bt.feasible = &BestEntry{Solution: append([]float64(nil), candidate...), Score: objective}
	return true
}

// Overall returns a snapshot of the best-overall slot, or false if empty.
func (bt *BestTracker) Overall() (BestEntry, bool) { return snapshot(bt.overall) }

// Feasible returns a snapshot of the best-feasible slot, or false if empty.
func (bt *BestTracker) Feasible() (BestEntry, bool) { return snapshot(bt.feasible) }

func snapshot(e *BestEntry) (BestEntry, bool) {
	if e == nil {
		return BestEntry{}, false
	}
	return BestEntry{
		Solution: append([]float64(nil), e.Solution...),
		Score:    e.Score,
	}, true
}
