package workflow

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	runerrors "github.com/stevehiehn/orquestator/internal/errors"
)

func writeWorkflow(t *testing.T, dir, file, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, file), []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write workflow: %v", err)
	}
}

func TestLoadJSONWorkflow(t *testing.T) {
	dir := t.TempDir()
	writeWorkflow(t, dir, "smoke.json", `{"steps":[{"type":"noop","name":"a"},{"type":"api","name":"b","url":"http://x","retries":3}]}`)

	wf, err := NewDirSource(dir).Load("smoke")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if wf.Name != "smoke" {
		t.Errorf("expected name 'smoke', got %q", wf.Name)
	}
	if len(wf.Steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(wf.Steps))
	}
	if wf.Steps[1].Type() != "api" || wf.Steps[1].Name() != "b" {
		t.Errorf("unexpected step: %v", wf.Steps[1])
	}
	if wf.Steps[1]["retries"] != float64(3) {
		t.Errorf("expected retries 3, got %v", wf.Steps[1]["retries"])
	}
}

func TestLoadYAMLWorkflow(t *testing.T) {
	dir := t.TempDir()
	writeWorkflow(t, dir, "deploy.yaml", `
description: deploy the app
steps:
  - type: shell
    name: build
    command: make build
    env:
      CI: "1"
`)
	wf, err := NewDirSource(dir).Load("deploy")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if wf.Description != "deploy the app" {
		t.Errorf("unexpected description %q", wf.Description)
	}
	env, ok := wf.Steps[0]["env"].(map[string]any)
	if !ok || env["CI"] != "1" {
		t.Errorf("expected nested env map, got %#v", wf.Steps[0]["env"])
	}
}

func TestLoadPrefersJSON(t *testing.T) {
	dir := t.TempDir()
	writeWorkflow(t, dir, "dup.json", `{"steps":[{"type":"noop","name":"from-json"}]}`)
	writeWorkflow(t, dir, "dup.yaml", "steps:\n  - type: noop\n    name: from-yaml\n")

	wf, err := NewDirSource(dir).Load("dup")
	if err != nil {
		t.Fatal(err)
	}
	if wf.Steps[0].Name() != "from-json" {
		t.Errorf("expected json definition to win, got %q", wf.Steps[0].Name())
	}
}

func TestLoadMissingWorkflow(t *testing.T) {
	_, err := NewDirSource(t.TempDir()).Load("nope")
	if !errors.Is(err, runerrors.ErrWorkflowNotFound) {
		t.Fatalf("expected workflow-not-found, got %v", err)
	}
}

func TestLoadRejectsPathTraversal(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"../etc/passwd", "a/b", "", ".."} {
		if _, err := NewDirSource(dir).Load(name); !errors.Is(err, runerrors.ErrWorkflowNotFound) {
			t.Errorf("name %q: expected not-found, got %v", name, err)
		}
	}
}

func TestLoadInvalidJSON(t *testing.T) {
	dir := t.TempDir()
	writeWorkflow(t, dir, "bad.json", `{"steps": [`)
	_, err := NewDirSource(dir).Load("bad")
	if err == nil {
		t.Fatal("expected parse error")
	}
	if errors.Is(err, runerrors.ErrWorkflowNotFound) {
		t.Error("parse error should not be reported as not found")
	}
}

func TestParseEmptySteps(t *testing.T) {
	wf, err := Parse([]byte(`{}`), ".json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if wf.Steps == nil || len(wf.Steps) != 0 {
		t.Errorf("expected empty non-nil steps, got %#v", wf.Steps)
	}
}

func TestList(t *testing.T) {
	dir := t.TempDir()
	writeWorkflow(t, dir, "b.yaml", "steps: []\n")
	writeWorkflow(t, dir, "a.json", `{"steps":[]}`)
	writeWorkflow(t, dir, "a.yml", "steps: []\n")
	writeWorkflow(t, dir, "notes.txt", "ignored")

	names, err := NewDirSource(dir).List()
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(names, []string{"a", "b"}) {
		t.Errorf("unexpected names: %v", names)
	}
}

func TestStepCloneIsDeep(t *testing.T) {
	s := Step{"type": "npm", "args": []any{"--port", "3000"}, "env": map[string]any{"A": "1"}}
	c := s.Clone()
	c["env"].(map[string]any)["A"] = "2"
	c["args"].([]any)[0] = "--host"

	if s["env"].(map[string]any)["A"] != "1" {
		t.Error("clone shares nested map with original")
	}
	if s["args"].([]any)[0] != "--port" {
		t.Error("clone shares slice with original")
	}
}

func TestDisplayName(t *testing.T) {
	if got := (Step{"type": "noop"}).DisplayName(2); got != "noop#2" {
		t.Errorf("expected 'noop#2', got %q", got)
	}
	if got := (Step{"type": "noop", "name": "a"}).DisplayName(2); got != "a" {
		t.Errorf("expected 'a', got %q", got)
	}
}
