package driver

// Event is the typed event stream emitted during a run. Events are emitted
// strictly in increasing evaluation order, at most once per occurrence, from
// the driver's goroutine only.
type Event interface {
	EventType() string
}

// EventFunc receives each emitted event. A nil sink drops events.
type EventFunc func(Event)

// RunStarted opens the run's event stream.
type RunStarted struct {
	Variables      []string `json:"variables"`
	MaxEvaluations int      `json:"maxEvaluations"`
	Constraints    int      `json:"constraints"`
}

// ProgressUpdated is throttled by the progress tracker's step.
type ProgressUpdated struct {
	Percent        float64            `json:"percent"`
	Evaluations    int                `json:"evaluations"`
	MaxEvaluations int                `json:"maxEvaluations"`
	Deltas         map[string]float64 `json:"deltas"`
	Values         map[string]float64 `json:"values"`
}

// GenerationProgressed summarizes one completed generation.
type GenerationProgressed struct {
	Generation       int     `json:"generation"`
	Evaluations      int     `json:"evaluations"`
	Objective        float64 `json:"objective"`
	MovementPenalty  float64 `json:"movementPenalty"`
	SoftViolation    float64 `json:"softViolation"`
	BestObjective    float64 `json:"bestObjective"`
	BestFeasibleSeen bool    `json:"bestFeasibleSeen"`
}

// NewBest fires immediately (unthrottled) when a new best-feasible candidate
// is found.
type NewBest struct {
	Objective       float64            `json:"objective"`
	MovementPenalty float64            `json:"movementPenalty"`
	SoftViolation   float64            `json:"softViolation"`
	Deltas          map[string]float64 `json:"deltas"`
	Values          map[string]float64 `json:"values"`
}

// RunCompleted closes a run that terminated without cancellation.
type RunCompleted struct {
	Result RunResult `json:"result"`
}

// RunStopped closes a cancelled run; Result reflects the best candidate
// applied before stopping.
type RunStopped struct {
	Result RunResult `json:"result"`
}

// RunFailed surfaces a fatal error once before it is re-raised to the
// caller.
type RunFailed struct {
	Context string `json:"context"`
	Err     error  `json:"-"`
	Message string `json:"error"`
}

func (RunStarted) EventType() string           { return "run:start" }
func (ProgressUpdated) EventType() string      { return "progress:update" }
func (GenerationProgressed) EventType() string { return "generation:progress" }
func (NewBest) EventType() string              { return "best:new" }
func (RunCompleted) EventType() string         { return "run:complete" }
func (RunStopped) EventType() string           { return "run:stopped" }
func (RunFailed) EventType() string            { return "run:error" }
