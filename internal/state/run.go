// Package state defines the persisted run record and the uniform step result.
package state

import (
	"time"

	"github.com/stevehiehn/orquestator/internal/workflow"
)

// Status represents the lifecycle state of a run.
type Status string

const (
	StatusPending   Status = "pending"   // Persisted, not yet picked up
	StatusRunning   Status = "running"   // Background execution owns the record
	StatusFailed    Status = "failed"    // A step returned a non-zero code
	StatusCompleted Status = "completed" // Every step returned code 0
)

// Valid returns true if this is a recognized run status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusFailed, StatusCompleted:
		return true
	}
	return false
}

// IsTerminal returns true once no further step will execute.
func (s Status) IsTerminal() bool {
	return s == StatusFailed || s == StatusCompleted
}

// LogEntry records the result of one executed step.
type LogEntry struct {
	StepName string `json:"step_name"`
	Result   Result `json:"result"`
}

// Run is one execution instance of a workflow.
type Run struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Steps   []workflow.Step `json:"steps"`
	Current int             `json:"current"`
	Status  Status          `json:"status"`
	Log     []LogEntry      `json:"log"`

	CreatedAt  time.Time  `json:"created_at,omitempty"`
	UpdatedAt  time.Time  `json:"updated_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// NewRun builds the initial pending record for a workflow. Steps are copied
// so later edits to the definition do not reach the run.
func NewRun(id, name string, wf *workflow.Workflow) *Run {
	steps := make([]workflow.Step, 0, len(wf.Steps))
	for _, s := range wf.Steps {
		steps = append(steps, s.Clone())
	}
	now := time.Now().UTC()
	return &Run{
		ID:        id,
		Name:      name,
		Steps:     steps,
		Current:   0,
		Status:    StatusPending,
		Log:       []LogEntry{},
		CreatedAt: now,
	}
}

// Start marks the run as running.
func (r *Run) Start() {
	r.Status = StatusRunning
}

// Record appends a step result to the log. On success the progress pointer
// moves past the step; on failure it stays and the run fails.
func (r *Run) Record(index int, stepName string, result Result) {
	r.Log = append(r.Log, LogEntry{StepName: stepName, Result: result})
	if !result.Succeeded() {
		r.fail()
		return
	}
	r.Current = index + 1
}

// Complete marks the run as completed.
func (r *Run) Complete() {
	now := time.Now().UTC()
	r.Status = StatusCompleted
	r.FinishedAt = &now
}

func (r *Run) fail() {
	now := time.Now().UTC()
	r.Status = StatusFailed
	r.FinishedAt = &now
}

// LastResult returns the most recent log entry, if any.
func (r *Run) LastResult() (LogEntry, bool) {
	if len(r.Log) == 0 {
		return LogEntry{}, false
	}
	return r.Log[len(r.Log)-1], true
}

// Done reports whether every step has been executed.
func (r *Run) Done() bool {
	return r.Current >= len(r.Steps)
}
