package core

import (
	"fmt"
	"os"
	"time"
)

// Request is a single hook invocation as handed over by the torrent client
type Request struct {
	Name     string
	Labels   []string
	FilePath string
	Remove   bool
}

// Validate checks the invocation parameters before any work is done
func (r *Request) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("torrent name is required")
	}
	if r.FilePath == "" {
		return fmt.Errorf("file path is required")
	}

	info, err := os.Stat(r.FilePath)
	if err != nil {
		return &IOError{Op: "stat", Path: r.FilePath, Err: err}
	}
	if !info.Mode().IsRegular() {
		return &IOError{Op: "stat", Path: r.FilePath, Err: fmt.Errorf("not a regular file")}
	}

	return nil
}

// ActionKind identifies the delivery capability behind an action
type ActionKind string

const (
	ActionIngest ActionKind = "ingest"
	ActionDevice ActionKind = "device"
)

// ActionStatus is the outcome of a single delivery attempt
type ActionStatus string

const (
	StatusSucceeded ActionStatus = "succeeded"
	StatusFailed    ActionStatus = "failed"
)

// ActionResult records what happened for one dispatched label
type ActionResult struct {
	Label    string
	Kind     ActionKind
	Target   string
	Device   string
	Status   ActionStatus
	Err      error
	Duration time.Duration
}

// Unexpected reports whether the action failed with an error outside the
// anticipated delivery failure kinds
func (r ActionResult) Unexpected() bool {
	return r.Err != nil && !IsExpected(r.Err)
}

// RunState tracks where a run ended up
type RunState string

const (
	StateValidating  RunState = "validating"
	StateSkipped     RunState = "skipped"
	StateDispatching RunState = "dispatching"
	StateFailed      RunState = "failed"
	StateCleanup     RunState = "cleanup"
	StateDone        RunState = "done"
)

// RunReport is the aggregate outcome of one hook run
type RunReport struct {
	RunID     string
	Name      string
	Labels    []string
	State     RunState
	Results   []ActionResult
	Removed   bool
	RemoveErr error
}

// Succeeded counts the actions that completed without error
func (r *RunReport) Succeeded() int {
	n := 0
	for _, res := range r.Results {
		if res.Status == StatusSucceeded {
			n++
		}
	}
	return n
}

// Failed counts the actions that returned an error
func (r *RunReport) Failed() int {
	return len(r.Results) - r.Succeeded()
}
