package driver

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/weberBen/geoopt/internal/geom"
)

// State is the driver's externally visible lifecycle state. Terminal states
// (converged, exhausted, cancelled, failed) collapse back to Idle before
// Optimize returns; they are carried on the terminal event instead.
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
)

// Driver orchestrates one optimization run at a time: it snapshots the
// selected variables, drives the oracle's ask/score/tell protocol, tracks
// the best candidates and emits the typed event stream. All model and oracle
// calls happen sequentially on the Optimize goroutine; candidates within a
// generation are never evaluated concurrently because each application
// mutates shared construction state.
type Driver struct {
	model     geom.Model
	newOracle OracleFactory
	sink      EventFunc

	mu      sync.Mutex
	running bool
	stop    atomic.Bool
}

// New creates a driver bound to a model and an oracle factory. sink may be
// nil.
func New(model geom.Model, factory OracleFactory, sink EventFunc) *Driver {
	return &Driver{model: model, newOracle: factory, sink: sink}
}

// Running reports whether a run is active.
func (d *Driver) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// State reports Idle or Running.
func (d *Driver) State() State {
	if d.Running() {
		return StateRunning
	}
	return StateIdle
}

// Stop requests cooperative cancellation. It takes effect at the next
// checkpoint (before a generation, or between candidates of a batch) and is
// idempotent; calling it when no run is active is a no-op.
func (d *Driver) Stop() {
	d.stop.Store(true)
}

func (d *Driver) emit(ev Event) {
	if d.sink != nil {
		d.sink(ev)
	}
}

func (d *Driver) cancelled(ctx context.Context) bool {
	return d.stop.Load() || ctx.Err() != nil
}

// Optimize executes one run to termination. It returns ErrAlreadyRunning or
// ErrNoVariables without any state change; any mid-run failure emits a
// run:error event, restores the Idle state and is returned to the caller.
func (d *Driver) Optimize(ctx context.Context, req RunRequest) (*RunResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return nil, ErrAlreadyRunning
	}
	if len(req.Variables) == 0 {
		d.mu.Unlock()
		return nil, ErrNoVariables
	}
	d.running = true
	d.stop.Store(false)
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		d.running = false
		d.mu.Unlock()
	}()

	params := req.Solver.withDefaults()
	tol := req.DefaultTolerance
	if tol <= 0 {
		tol = DefaultTolerance
	}

	tracker, err := NewProgressTracker(params.MaxGenerations*params.PopulationSize, params.ProgressStepPercent)
	if err != nil {
		return nil, err
	}

	result, err := d.run(ctx, req, params, tol, tracker)
	if err != nil {
		d.emit(RunFailed{Context: "optimization run", Err: err, Message: err.Error()})
		return nil, err
	}
	return result, nil
}

func (d *Driver) run(ctx context.Context, req RunRequest, params SolverParams, tol float64, tracker *ProgressTracker) (*RunResult, error) {
	names := make([]string, len(req.Variables))
	lower := make([]float64, len(req.Variables))
	upper := make([]float64, len(req.Variables))
	initial := make([]float64, len(req.Variables))
	for i, v := range req.Variables {
		names[i] = v.Name
		lower[i] = v.Min
		upper[i] = v.Max
		value, err := d.model.Value(v.Name)
		if err != nil {
			return nil, fmt.Errorf("reading initial value of %q: %w", v.Name, err)
		}
		initial[i] = value
	}

	var hard []Constraint
	for _, c := range req.Constraints {
		if c.Kind == Hard {
			hard = append(hard, c)
		}
	}
	if len(req.Constraints) == 0 {
		slog.Warn("No constraints declared, proceeding objective-only")
	}

	oracle, err := d.newOracle(OracleConfig{
		Initial:           initial,
		Lower:             lower,
		Upper:             upper,
		Sigma:             params.Sigma,
		PopulationSize:    params.PopulationSize,
		MaxGenerations:    params.MaxGenerations,
		FunctionTolerance: params.FunctionTolerance,
		ConstraintTerms:   HardTermCount(hard),
		Seed:              params.Seed,
	})
	if err != nil {
		return nil, &SolverError{Op: "init", Err: err}
	}

	d.emit(RunStarted{
		Variables:      names,
		MaxEvaluations: tracker.MaxEvaluations(),
		Constraints:    len(req.Constraints),
	})

	best := NewBestTracker()
	evaluations := 0
	generations := 0
	cancelled := false
	stopReason := ""

	for gen := 0; gen < params.MaxGenerations; gen++ {
		if d.cancelled(ctx) {
			cancelled = true
			break
		}

		candidates, err := oracle.Ask()
		if err != nil {
			return nil, &SolverError{Op: "ask", Err: err}
		}
		if len(candidates) == 0 {
			return nil, &SolverError{Op: "ask", Err: fmt.Errorf("empty population")}
		}

		batch := make([]Evaluation, 0, len(candidates))
		results := make([]*EvaluationResult, 0, len(candidates))
		for _, cand := range candidates {
			if d.cancelled(ctx) {
				cancelled = true
				break
			}
			res, err := d.evaluateCandidate(ctx, cand, names, initial, req, tol)
			if err != nil {
				return nil, err
			}
			batch = append(batch, Evaluation{Candidate: cand, Objective: res.Objective, HardTerms: res.HardTerms})
			results = append(results, res)
		}
		if cancelled {
			// no partial batch reaches the oracle
			break
		}

		scores, err := oracle.ScoreBatch(batch)
		if err != nil {
			return nil, &SolverError{Op: "score", Err: err}
		}
		if len(scores.Fitness) != len(batch) || len(scores.Feasible) != len(batch) {
			return nil, &SolverError{Op: "score", Err: fmt.Errorf("misaligned batch scores: %d/%d for %d candidates", len(scores.Fitness), len(scores.Feasible), len(batch))}
		}

		for i, eval := range batch {
			evaluations++
			if tracker.Update(evaluations) {
				d.emit(ProgressUpdated{
					Percent:        tracker.Percent(evaluations),
					Evaluations:    evaluations,
					MaxEvaluations: tracker.MaxEvaluations(),
					Deltas:         deltasMap(names, eval.Candidate, initial),
					Values:         valuesMap(names, eval.Candidate),
				})
			}
			best.ConsiderOverall(eval.Candidate, scores.Fitness[i])
			if best.ConsiderFeasible(eval.Candidate, results[i].Objective, scores.Feasible[i]) {
				d.emit(NewBest{
					Objective:       results[i].Objective,
					MovementPenalty: results[i].MovementPenalty,
					SoftViolation:   results[i].SoftViolation,
					Deltas:          deltasMap(names, eval.Candidate, initial),
					Values:          valuesMap(names, eval.Candidate),
				})
			}
		}

		if err := oracle.Tell(candidates, scores.Fitness); err != nil {
			return nil, &SolverError{Op: "tell", Err: err}
		}
		generations++

		last := results[len(results)-1]
		bestObjective := 0.0
		bestFeasibleSeen := false
		if fe, ok := best.Feasible(); ok {
			bestObjective = fe.Score
			bestFeasibleSeen = true
		} else if ov, ok := best.Overall(); ok {
			bestObjective = ov.Score
		}
		d.emit(GenerationProgressed{
			Generation:       generations,
			Evaluations:      evaluations,
			Objective:        last.Objective,
			MovementPenalty:  last.MovementPenalty,
			SoftViolation:    last.SoftViolation,
			BestObjective:    bestObjective,
			BestFeasibleSeen: bestFeasibleSeen,
		})

		if reason := oracle.Converged(); reason != "" {
			slog.Info("Solver converged", "reason", reason, "generation", generations)
			stopReason = reason
			break
		}
	}

	switch {
	case cancelled:
		stopReason = "cancelled"
	case stopReason == "":
		stopReason = "exhausted"
	}

	if sol, ok := oracle.BestFeasible(); ok {
		slog.Debug("Solver-side best feasible candidate", "solution", sol)
	}

	return d.finish(ctx, req, names, initial, best, tol, evaluations, generations, cancelled, stopReason)
}

// evaluateCandidate applies one candidate to the model, lets it settle, then
// computes its full evaluation. An expression that fails to evaluate aborts
// the run: silently zeroing it would corrupt the search.
func (d *Driver) evaluateCandidate(ctx context.Context, cand []float64, names []string, initial []float64, req RunRequest, tol float64) (*EvaluationResult, error) {
	if err := d.model.SetValues(valuesMap(names, cand)); err != nil {
		return nil, fmt.Errorf("applying candidate: %w", err)
	}
	if err := d.model.Settle(ctx); err != nil {
		return nil, fmt.Errorf("settling model: %w", err)
	}

	raw := make([]float64, len(req.Constraints))
	for i, c := range req.Constraints {
		v, err := d.model.Evaluate(c.Expression)
		if err != nil {
			return nil, fmt.Errorf("evaluating constraint %d: %w", i, err)
		}
		raw[i] = v
	}

	return EvaluateObjective(cand, initial, req.Variables, req.Constraints, raw, tol)
}

// finish applies the best candidate back onto the model (feasible preferred,
// falling back to best-overall, then the initial point), recomputes final
// metrics and emits the terminal event.
func (d *Driver) finish(ctx context.Context, req RunRequest, names []string, initial []float64, best *BestTracker, tol float64, evaluations, generations int, cancelled bool, stopReason string) (*RunResult, error) {
	solution := initial
	feasible := false
	if fe, ok := best.Feasible(); ok {
		solution = fe.Solution
		feasible = true
	} else if ov, ok := best.Overall(); ok {
		solution = ov.Solution
	}

	// context may already be cancelled on a cooperative stop; the final
	// application must still go through
	final, err := d.evaluateCandidate(context.WithoutCancel(ctx), solution, names, initial, req, tol)
	if err != nil {
		return nil, fmt.Errorf("applying final solution: %w", err)
	}

	result := &RunResult{
		Solution:    append([]float64(nil), solution...),
		Values:      valuesMap(names, solution),
		Deltas:      deltasMap(names, solution, initial),
		Objective:   final.Objective,
		Movement:    final.MovementPenalty,
		Soft:        final.SoftViolation,
		Feasible:    feasible,
		Cancelled:   cancelled,
		Evaluations: evaluations,
		Generations: generations,
		StopReason:  stopReason,
	}

	if cancelled {
		d.emit(RunStopped{Result: *result})
	} else {
		d.emit(RunCompleted{Result: *result})
	}
	return result, nil
}

func valuesMap(names []string, values []float64) map[string]float64 {
	m := make(map[string]float64, len(names))
	for i, name := range names {
		m[name] = values[i]
	}
	return m
}

func deltasMap(names []string, current, initial []float64) map[string]float64 {
	m := make(map[string]float64, len(names))
	for i, name := range names {
		m[name] = current[i] - initial[i]
	}
	return m
}
