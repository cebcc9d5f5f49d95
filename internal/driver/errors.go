package driver

import "errors"

var (
	// ErrAlreadyRunning rejects a start while a run is active. No state
	// changes.
	ErrAlreadyRunning = errors.New("optimization already running")

	// ErrNoVariables rejects a start with an empty variable selection.
	ErrNoVariables = errors.New("no variables selected")

	// ErrUnknownOperator flags a constraint operator outside the supported
	// set. This is a configuration/programming error and aborts the run.
	ErrUnknownOperator = errors.New("unknown constraint operator")

	// ErrConfiguration flags invalid solver/tracker parameters, detected
	// before any oracle state is created.
	ErrConfiguration = errors.New("invalid configuration")
)

// SolverError wraps any error surfaced by the external search oracle.
type SolverError struct {
	Op  string // ask, score, tell, converge
	Err error
}

func (e *SolverError) Error() string { return "solver " + e.Op + ": " + e.Err.Error() }
func (e *SolverError) Unwrap() error { return e.Err }
