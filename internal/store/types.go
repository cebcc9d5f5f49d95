package store

import (
	"time"

	"github.com/weberBen/geoopt/internal/driver"
)

// RunRecord is the persisted outcome of one optimization run. All fields
// are serialized to JSON. The record stores the final solution and metrics,
// not the oracle's internal state: runs are re-created from the problem
// definition, never resumed mid-search.
type RunRecord struct {
	// RunID is the unique identifier for this run
	RunID string `json:"runId"`

	// Problem is the name from the problem definition
	Problem string `json:"problem"`

	// Request snapshots the variables, constraints and solver parameters
	// the run was started with
	Request driver.RunRequest `json:"request"`

	// Result holds the final solution, metrics and stop reason
	Result driver.RunResult `json:"result"`

	// StartTime/EndTime bound the run's wall-clock duration
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
}

// RunInfo contains metadata about a stored run without the full solution
// payload. Used for listing runs efficiently.
type RunInfo struct {
	RunID       string    `json:"runId"`
	Problem     string    `json:"problem"`
	Objective   float64   `json:"objective"`
	Feasible    bool      `json:"feasible"`
	Cancelled   bool      `json:"cancelled"`
	StopReason  string    `json:"stopReason"`
	Evaluations int       `json:"evaluations"`
	EndTime     time.Time `json:"endTime"`
}

// ToInfo extracts listing metadata from a full record.
func (r *RunRecord) ToInfo() RunInfo {
	return RunInfo{
		RunID:       r.RunID,
		Problem:     r.Problem,
		Objective:   r.Result.Objective,
		Feasible:    r.Result.Feasible,
		Cancelled:   r.Result.Cancelled,
		StopReason:  r.Result.StopReason,
		Evaluations: r.Result.Evaluations,
		EndTime:     r.EndTime,
	}
}
