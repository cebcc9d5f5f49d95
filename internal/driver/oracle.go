package driver

// OracleConfig carries everything the external search oracle needs at
// initialization: the starting point, per-variable bounds and the search
// parameters.
type OracleConfig struct {
	Initial           []float64
	Lower             []float64
	Upper             []float64
	Sigma             float64
	PopulationSize    int
	MaxGenerations    int
	FunctionTolerance float64
	ConstraintTerms   int // number of normalized hard terms, 0 = unconstrained
	Seed              int64
}

// Evaluation is one candidate's scored inputs sent to the oracle in a batch.
type Evaluation struct {
	Candidate []float64
	Objective float64
	HardTerms []float64
}

// BatchScores is the oracle's per-candidate feedback, index-aligned with the
// submitted batch.
type BatchScores struct {
	Fitness     []float64
	Feasible    []bool
	Diagnostics map[string]float64
}

// Oracle is the external stochastic search collaborator, driven one
// generation at a time. Its internal adaptation rules are opaque; only this
// ask/score/tell contract matters to the driver.
type Oracle interface {
	// Ask produces the next population of candidates.
	Ask() ([][]float64, error)

	// ScoreBatch folds each candidate's objective and hard terms into a
	// single fitness value and a feasibility verdict. With zero constraint
	// terms every candidate is feasible.
	ScoreBatch(evals []Evaluation) (BatchScores, error)

	// Tell feeds the scored fitness back for internal adaptation. Must be
	// called once per generation after ScoreBatch, with the same
	// candidates.
	Tell(candidates [][]float64, fitness []float64) error

	// Converged reports a stop reason, or "" to keep going.
	Converged() string

	// BestFeasible returns the oracle's own best feasible candidate, if it
	// tracks one. Diagnostic only.
	BestFeasible() ([]float64, bool)
}

// OracleFactory creates a fresh oracle for one run.
type OracleFactory func(cfg OracleConfig) (Oracle, error)
