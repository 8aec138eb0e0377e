package cell

import "fmt"

// Status is the runtime status of a cell. The zero value is StatusUnset,
// meaning the cell has never run. Status is written only by the graph's
// disable/enable APIs and by executors honoring the executor contract;
// all writes go through SetStatus so transitions stay validated in one place.
type Status string

const (
	// StatusUnset means the cell has never been run.
	StatusUnset Status = ""
	// StatusIdle means the cell is at rest with no pending work.
	StatusIdle Status = "idle"
	// StatusQueued means the cell is scheduled to run.
	StatusQueued Status = "queued"
	// StatusRunning means the cell's body is executing.
	StatusRunning Status = "running"
	// StatusDisabledTransitively means an ancestor of the cell is disabled.
	StatusDisabledTransitively Status = "disabled-transitively"
	// StatusInterrupted means the last run was interrupted.
	StatusInterrupted Status = "interrupted"
	// StatusCancelled means the last run was cancelled before completing.
	StatusCancelled Status = "cancelled"
	// StatusErrored means the last run failed.
	StatusErrored Status = "errored"
)

// terminal statuses indicating a run that did not complete; referrers of an
// import block's already-bound names are pulled back into staleness
// propagation when stuck in one of these.
var recoveryStatuses = map[Status]struct{}{
	StatusUnset:       {},
	StatusInterrupted: {},
	StatusCancelled:   {},
	StatusErrored:     {},
}

// NeedsRecovery reports whether s is a terminal status from which a cell's
// dependents may hold partial results and require re-execution.
func NeedsRecovery(s Status) bool {
	_, ok := recoveryStatuses[s]
	return ok
}

// allowedTransitions lists the valid sources for each target status.
// StatusIdle and StatusDisabledTransitively are reachable from any state:
// enable/disable act on cells regardless of what they were doing.
var allowedTransitions = map[Status]map[Status]struct{}{
	StatusQueued: {
		StatusUnset:                {},
		StatusIdle:                 {},
		StatusDisabledTransitively: {},
		StatusErrored:              {},
		StatusInterrupted:          {},
		StatusCancelled:            {},
	},
	StatusRunning: {
		StatusUnset:                {},
		StatusIdle:                 {},
		StatusQueued:               {},
		StatusDisabledTransitively: {},
		StatusErrored:              {},
		StatusInterrupted:          {},
		StatusCancelled:            {},
	},
	StatusErrored:     {StatusRunning: {}},
	StatusInterrupted: {StatusRunning: {}},
	StatusCancelled:   {StatusQueued: {}, StatusRunning: {}},
}

// Status returns the cell's current runtime status.
func (c *Cell) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// SetStatus transitions the cell to the given status, validating the
// transition. Transitioning to the current status is a no-op.
func (c *Cell) SetStatus(to Status) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status == to {
		return nil
	}
	// Idle and disabled-transitively are universal targets.
	if to != StatusIdle && to != StatusDisabledTransitively {
		sources, ok := allowedTransitions[to]
		if !ok {
			return fmt.Errorf("unknown target status %q for cell %s", to, c.ID)
		}
		if _, ok := sources[c.status]; !ok {
			return fmt.Errorf("invalid status transition for cell %s: %q -> %q", c.ID, c.status, to)
		}
	}
	c.status = to
	return nil
}
