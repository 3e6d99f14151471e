package state

import (
	"encoding/json"
	"testing"

	"github.com/stevehiehn/orquestator/internal/workflow"
)

func TestResultCode(t *testing.T) {
	tests := []struct {
		name    string
		result  Result
		code    int
		present bool
		success bool
	}{
		{"int zero", Result{"code": 0}, 0, true, true},
		{"int nonzero", Result{"code": 3}, 3, true, false},
		{"float from json", Result{"code": float64(0)}, 0, true, true},
		{"json number", Result{"code": json.Number("2")}, 2, true, false},
		{"missing", Result{"out": "hi"}, 0, false, false},
		{"string code", Result{"code": "0"}, 0, false, false},
		{"fractional", Result{"code": 0.5}, 0, false, false},
		{"nil result", nil, 0, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, ok := tt.result.Code()
			if ok != tt.present || code != tt.code {
				t.Errorf("Code() = (%d, %v), want (%d, %v)", code, ok, tt.code, tt.present)
			}
			if tt.result.Succeeded() != tt.success {
				t.Errorf("Succeeded() = %v, want %v", tt.result.Succeeded(), tt.success)
			}
		})
	}
}

func TestCodeOrDefault(t *testing.T) {
	if got := (Result{}).CodeOrDefault(); got != MissingCode {
		t.Errorf("expected %d for missing code, got %d", MissingCode, got)
	}
	if got := Failure("boom").CodeOrDefault(); got != 1 {
		t.Errorf("expected 1, got %d", got)
	}
}

func TestNewRunCopiesSteps(t *testing.T) {
	wf := &workflow.Workflow{Steps: []workflow.Step{{"type": "noop", "name": "a"}}}
	r := NewRun("id1", "wf", wf)
	wf.Steps[0]["name"] = "changed"

	if r.Steps[0].Name() != "a" {
		t.Errorf("expected copied step name 'a', got %q", r.Steps[0].Name())
	}
	if r.Status != StatusPending || r.Current != 0 || len(r.Log) != 0 {
		t.Errorf("unexpected initial run: %+v", r)
	}
}

func TestRecordTransitions(t *testing.T) {
	wf := &workflow.Workflow{Steps: []workflow.Step{
		{"type": "noop", "name": "a"},
		{"type": "noop", "name": "b"},
	}}
	r := NewRun("id1", "wf", wf)
	r.Start()

	r.Record(0, "a", Success())
	if r.Current != 1 || r.Status != StatusRunning {
		t.Fatalf("expected current=1 running, got current=%d status=%s", r.Current, r.Status)
	}

	r.Record(1, "b", Result{"out": "no code"})
	if r.Current != 1 {
		t.Errorf("expected current to stay at failed step, got %d", r.Current)
	}
	if r.Status != StatusFailed {
		t.Errorf("expected failed, got %s", r.Status)
	}
	if r.FinishedAt == nil {
		t.Error("expected finished_at to be set")
	}
	last, ok := r.LastResult()
	if !ok || last.StepName != "b" {
		t.Errorf("unexpected last entry: %+v", last)
	}
}

func TestStatusHelpers(t *testing.T) {
	if !StatusCompleted.IsTerminal() || !StatusFailed.IsTerminal() {
		t.Error("expected completed and failed to be terminal")
	}
	if StatusRunning.IsTerminal() || StatusPending.IsTerminal() {
		t.Error("did not expect pending/running to be terminal")
	}
	if Status("cancelled").Valid() {
		t.Error("did not expect unknown status to be valid")
	}
}

func TestRunJSONFieldNames(t *testing.T) {
	r := NewRun("abc", "deploy", &workflow.Workflow{})
	data, err := json.Marshal(r)
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"id", "name", "steps", "current", "status", "log"} {
		if _, ok := m[key]; !ok {
			t.Errorf("expected key %q in %s", key, data)
		}
	}
}
