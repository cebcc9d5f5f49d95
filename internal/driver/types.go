package driver

// Variable describes one selected construction parameter. The driver treats
// the slice of variables as an immutable snapshot for the duration of a run;
// Initial is captured from the model at run start.
type Variable struct {
	Name   string  `json:"name"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Weight float64 `json:"weight"` // movement penalty weight, >= 0, default 1

	// Hidden variables are still optimized but their displacement does not
	// contribute to the movement penalty.
	Hidden bool `json:"hidden,omitempty"`
}

// SolverParams configures the external search oracle and the progress
// throttle for one run.
type SolverParams struct {
	MaxGenerations      int     `json:"maxGenerations"`
	PopulationSize      int     `json:"populationSize"`
	Sigma               float64 `json:"sigma"`
	FunctionTolerance   float64 `json:"functionTolerance"`
	ProgressStepPercent float64 `json:"progressStepPercent"`
	Seed                int64   `json:"seed"`
}

// Defaults mirrored from the public run request contract.
const (
	DefaultTolerance    = 1e-4
	DefaultProgressStep = 1.0
	DefaultSigma        = 0.3
	DefaultFunctionTol  = 1e-9
	DefaultGenerations  = 100
	DefaultPopulation   = 10
)

func (p SolverParams) withDefaults() SolverParams {
	if p.MaxGenerations <= 0 {
		p.MaxGenerations = DefaultGenerations
	}
	if p.PopulationSize <= 0 {
		p.PopulationSize = DefaultPopulation
	}
	if p.Sigma <= 0 {
		p.Sigma = DefaultSigma
	}
	if p.FunctionTolerance <= 0 {
		p.FunctionTolerance = DefaultFunctionTol
	}
	if p.ProgressStepPercent == 0 {
		p.ProgressStepPercent = DefaultProgressStep
	}
	return p
}

// RunRequest is the public request to start an optimization run.
type RunRequest struct {
	Variables        []Variable   `json:"variables"`
	Constraints      []Constraint `json:"constraints,omitempty"`
	DefaultTolerance float64      `json:"defaultTolerance,omitempty"`
	Solver           SolverParams `json:"solver"`
}

// EvaluationResult holds everything computed for one candidate. Created
// fresh per candidate and never mutated afterwards.
type EvaluationResult struct {
	Objective            float64
	MovementPenalty      float64
	SoftViolation        float64
	HardTerms            []float64
	EvaluatedConstraints []float64
}

// RunResult is returned by a completed (or cancelled) run and mirrors the
// completion event.
type RunResult struct {
	Solution    []float64          `json:"solution"`
	Values      map[string]float64 `json:"values"`
	Deltas      map[string]float64 `json:"deltas"`
	Objective   float64            `json:"objective"`
	Movement    float64            `json:"movementPenalty"`
	Soft        float64            `json:"softViolation"`
	Feasible    bool               `json:"feasible"`
	Cancelled   bool               `json:"cancelled"`
	Evaluations int                `json:"evaluations"`
	Generations int                `json:"generations"`
	StopReason  string             `json:"stopReason"`
}
