package driver

import (
	"fmt"
	"math"
)

// ProgressTracker converts a raw evaluation counter into throttled
// percentage notifications: Update reports true exactly once per crossed
// step boundary.
type ProgressTracker struct {
	maxEvaluations int
	stepPercent    float64
	lastThreshold  int
}

// NewProgressTracker validates its parameters up front; an invalid max or
// step rejects the run before any oracle state exists.
func NewProgressTracker(maxEvaluations int, stepPercent float64) (*ProgressTracker, error) {
	if maxEvaluations <= 0 {
		return nil, fmt.Errorf("%w: maxEvaluations must be > 0, got %d", ErrConfiguration, maxEvaluations)
	}
	if stepPercent <= 0 || stepPercent > 100 {
		return nil, fmt.Errorf("%w: stepPercent must be in (0,100], got %g", ErrConfiguration, stepPercent)
	}
	return &ProgressTracker{
		maxEvaluations: maxEvaluations,
		stepPercent:    stepPercent,
		lastThreshold:  -1,
	}, nil
}

// Update recomputes the exact percentage for the given evaluation count and
// reports whether a new step boundary was crossed. Monotonic: a crossed
// threshold is never re-reported, even for non-increasing counters.
func (pt *ProgressTracker) Update(evaluations int) bool {
	threshold := int(math.Floor(pt.Percent(evaluations) / pt.stepPercent))
	if threshold > pt.lastThreshold {
		pt.lastThreshold = threshold
		return true
	}
	return false
}

// Percent returns the exact, unrounded percentage for a counter value.
func (pt *ProgressTracker) Percent(evaluations int) float64 {
	return 100 * float64(evaluations) / float64(pt.maxEvaluations)
}

// MaxEvaluations returns the configured evaluation budget.
func (pt *ProgressTracker) MaxEvaluations() int { return pt.maxEvaluations }

// Reset restores the initial threshold without touching max/step, for
// drivers reused across successive runs.
func (pt *ProgressTracker) Reset() { pt.lastThreshold = -1 }
