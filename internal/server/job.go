package server

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/weberBen/geoopt/internal/driver"
	"github.com/weberBen/geoopt/internal/problem"
)

// RunState represents the current state of a run
type RunState string

const (
	StatePending   RunState = "pending"
	StateRunning   RunState = "running"
	StateCompleted RunState = "completed"
	StateFailed    RunState = "failed"
	StateCancelled RunState = "cancelled"
)

// Run represents one optimization run owned by the server
type Run struct {
	ID          string            `json:"id"`
	State       RunState          `json:"state"`
	Problem     problem.Problem   `json:"problem"`
	Percent     float64           `json:"percent"`
	Evaluations int               `json:"evaluations"`
	Generations int               `json:"generations"`
	Best        float64           `json:"bestObjective"`
	Feasible    bool              `json:"feasible"`
	Result      *driver.RunResult `json:"result,omitempty"`
	StartTime   time.Time         `json:"startTime"`
	EndTime     *time.Time        `json:"endTime,omitempty"`
	Error       string            `json:"error,omitempty"`
}

// RunManager manages the lifecycle of runs
type RunManager struct {
	mu          sync.RWMutex
	runs        map[string]*Run
	drivers     map[string]*driver.Driver
	broadcaster *EventBroadcaster
}

// NewRunManager creates a new RunManager
func NewRunManager() *RunManager {
	return &RunManager{
		runs:        make(map[string]*Run),
		drivers:     make(map[string]*driver.Driver),
		broadcaster: NewEventBroadcaster(),
	}
}

// CreateRun registers a new pending run for the given problem
func (rm *RunManager) CreateRun(p problem.Problem) *Run {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	run := &Run{
		ID:        uuid.New().String(),
		State:     StatePending,
		Problem:   p,
		StartTime: time.Now(),
	}
	rm.runs[run.ID] = run
	return run
}

// GetRun retrieves a snapshot of a run by ID
func (rm *RunManager) GetRun(id string) (Run, bool) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	run, exists := rm.runs[id]
	if !exists {
		return Run{}, false
	}
	return *run, true
}

// ListRuns returns snapshots of all runs
func (rm *RunManager) ListRuns() []Run {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	runs := make([]Run, 0, len(rm.runs))
	for _, run := range rm.runs {
		runs = append(runs, *run)
	}
	return runs
}

// UpdateRun atomically updates a run using the provided function
func (rm *RunManager) UpdateRun(id string, updateFn func(*Run)) error {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	run, exists := rm.runs[id]
	if !exists {
		return fmt.Errorf("run not found: %s", id)
	}
	updateFn(run)
	return nil
}

// attachDriver remembers the driver owning a run so Cancel can reach it
func (rm *RunManager) attachDriver(id string, d *driver.Driver) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.drivers[id] = d
}

// detachDriver drops the driver reference once a run has terminated
func (rm *RunManager) detachDriver(id string) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	delete(rm.drivers, id)
}

// Cancel requests cooperative cancellation of a running run. Reports false
// if the run does not exist or is not cancellable.
func (rm *RunManager) Cancel(id string) bool {
	rm.mu.RLock()
	run, exists := rm.runs[id]
	d := rm.drivers[id]
	rm.mu.RUnlock()

	if !exists || d == nil {
		return false
	}
	if run.State != StatePending && run.State != StateRunning {
		return false
	}
	d.Stop()
	return true
}
