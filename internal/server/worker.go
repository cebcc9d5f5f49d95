package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/weberBen/geoopt/internal/cmaes"
	"github.com/weberBen/geoopt/internal/driver"
	"github.com/weberBen/geoopt/internal/store"
)

// runJob executes an optimization run in the background. If runStore is not
// nil, the final record and a per-generation trace are persisted.
func runJob(ctx context.Context, rm *RunManager, runStore *store.FSStore, hub *Hub, runID string) error {
	run, exists := rm.GetRun(runID)
	if !exists {
		return fmt.Errorf("run not found: %s", runID)
	}

	if err := rm.UpdateRun(runID, func(r *Run) { r.State = StateRunning }); err != nil {
		return err
	}
	defer rm.detachDriver(runID)

	slog.Info("Starting run", "run_id", runID, "problem", run.Problem.Name)

	model, err := run.Problem.Construction()
	if err != nil {
		markRunFailed(rm, hub, runID, fmt.Errorf("building construction: %w", err))
		return err
	}
	req, err := run.Problem.Request()
	if err != nil {
		markRunFailed(rm, hub, runID, fmt.Errorf("building run request: %w", err))
		return err
	}

	var trace *store.TraceWriter
	if runStore != nil {
		trace, err = store.NewTraceWriter(runStore.RunDir(runID))
		if err != nil {
			slog.Warn("Trace disabled", "run_id", runID, "error", err)
		} else {
			defer trace.Close()
		}
	}

	countedEvals := 0
	sink := func(ev driver.Event) {
		if gp, ok := ev.(driver.GenerationProgressed); ok {
			evaluationsTotal.Add(float64(gp.Evaluations - countedEvals))
			countedEvals = gp.Evaluations
		}
		applyEvent(rm, runID, ev)
		if trace != nil {
			if gp, ok := ev.(driver.GenerationProgressed); ok {
				if err := trace.Write(store.TraceEntry{
					Generation:    gp.Generation,
					Evaluations:   gp.Evaluations,
					Objective:     gp.Objective,
					BestObjective: gp.BestObjective,
					Feasible:      gp.BestFeasibleSeen,
					Timestamp:     time.Now(),
				}); err != nil {
					slog.Warn("Failed to write trace entry", "run_id", runID, "error", err)
				}
			}
		}
		broadcast(rm, hub, runID, ev)
	}

	d := driver.New(model, cmaes.NewOracle, sink)
	rm.attachDriver(runID, d)

	start := time.Now()
	result, err := d.Optimize(ctx, req)
	if err != nil {
		// the driver already emitted run:error through the sink
		markRunFailed(rm, nil, runID, err)
		return err
	}

	elapsed := time.Since(start)
	endTime := time.Now()
	state := StateCompleted
	if result.Cancelled {
		state = StateCancelled
	}

	if err := rm.UpdateRun(runID, func(r *Run) {
		r.State = state
		r.Result = result
		r.Evaluations = result.Evaluations
		r.Generations = result.Generations
		r.Best = result.Objective
		r.Feasible = result.Feasible
		r.EndTime = &endTime
	}); err != nil {
		return err
	}

	runsTotal.WithLabelValues(string(state)).Inc()
	runDuration.Observe(elapsed.Seconds())

	if runStore != nil {
		record := &store.RunRecord{
			RunID:     runID,
			Problem:   run.Problem.Name,
			Request:   req,
			Result:    *result,
			StartTime: run.StartTime,
			EndTime:   endTime,
		}
		if err := runStore.SaveRun(runID, record); err != nil {
			slog.Error("Failed to persist run record", "run_id", runID, "error", err)
		}
	}

	slog.Info("Run finished",
		"run_id", runID,
		"state", state,
		"elapsed", elapsed,
		"objective", result.Objective,
		"feasible", result.Feasible,
		"stop_reason", result.StopReason,
	)
	return nil
}

// applyEvent folds a driver event into the run's visible state.
func applyEvent(rm *RunManager, runID string, ev driver.Event) {
	switch e := ev.(type) {
	case driver.ProgressUpdated:
		rm.UpdateRun(runID, func(r *Run) {
			r.Percent = e.Percent
			r.Evaluations = e.Evaluations
		})
	case driver.GenerationProgressed:
		rm.UpdateRun(runID, func(r *Run) {
			r.Generations = e.Generation
			r.Evaluations = e.Evaluations
			r.Best = e.BestObjective
			r.Feasible = e.BestFeasibleSeen
		})
	case driver.NewBest:
		rm.UpdateRun(runID, func(r *Run) {
			r.Best = e.Objective
			r.Feasible = true
		})
	}
}

// broadcast mirrors one driver event to SSE and websocket subscribers.
func broadcast(rm *RunManager, hub *Hub, runID string, ev driver.Event) {
	event := RunEvent{
		RunID:     runID,
		Type:      ev.EventType(),
		Timestamp: time.Now(),
		Payload:   ev,
	}
	rm.broadcaster.Broadcast(event)
	if hub != nil {
		hub.BroadcastEvent(event)
	}
}

// markRunFailed marks a run as failed with an error message
func markRunFailed(rm *RunManager, hub *Hub, runID string, err error) {
	endTime := time.Now()
	rm.UpdateRun(runID, func(r *Run) {
		r.State = StateFailed
		r.Error = err.Error()
		r.EndTime = &endTime
	})
	runsTotal.WithLabelValues(string(StateFailed)).Inc()
	if hub != nil {
		broadcastFailure(rm, hub, runID, err)
	}
	slog.Error("Run failed", "run_id", runID, "error", err)
}

func broadcastFailure(rm *RunManager, hub *Hub, runID string, err error) {
	event := RunEvent{
		RunID:     runID,
		Type:      "run:error",
		Timestamp: time.Now(),
		Payload:   map[string]string{"error": err.Error()},
	}
	rm.broadcaster.Broadcast(event)
	if hub != nil {
		hub.BroadcastEvent(event)
	}
}
