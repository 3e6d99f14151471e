package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stevehiehn/orquestator/internal/state"
	"github.com/stevehiehn/orquestator/internal/store"
	"github.com/stevehiehn/orquestator/internal/workflow"
)

func setupProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	os.MkdirAll(filepath.Join(dir, "workflows"), 0o755)
	files := map[string]string{
		"orquestator.toml": "[logging]\nlevel = \"error\"\n",
		"workflows/hello.yaml": `steps:
  - type: shell
    name: greet
    command: echo hello
  - type: file
    name: mark
    path: out/done.txt
    content: "{{run.name}}"
`,
		"workflows/broken.json": `{"steps":[{"type":"noop","name":"ok"},{"type":"shell","name":"boom","command":"exit 7"}]}`,
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func executeCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	jsonOutput, configPath, workDir, verbose = false, "", "", false
	runPoll = 10 * time.Millisecond
	proxyListen = ""

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func decodeRun(t *testing.T, out string) *state.Run {
	t.Helper()
	var run state.Run
	if err := json.Unmarshal([]byte(out), &run); err != nil {
		t.Fatalf("expected a JSON run record, got %q: %v", out, err)
	}
	return &run
}

func TestRunCommandCompletes(t *testing.T) {
	dir := setupProject(t)
	out, err := executeCLI(t, "-C", dir, "--json", "run", "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v\n%s", err, out)
	}
	run := decodeRun(t, out)
	if run.Status != state.StatusCompleted || len(run.Log) != 2 {
		t.Fatalf("unexpected run %+v", run)
	}
	if run.Log[0].Result[state.KeyOut] != "hello\n" {
		t.Errorf("expected shell output, got %v", run.Log[0].Result)
	}
	data, _ := os.ReadFile(filepath.Join(dir, "out", "done.txt"))
	if string(data) != "hello" {
		t.Errorf("expected file step to resolve run name, got %q", data)
	}
	if _, err := os.Stat(filepath.Join(dir, "runs", run.ID+".json")); err != nil {
		t.Errorf("expected persisted record: %v", err)
	}

	out, err = executeCLI(t, "-C", dir, "--json", "status", run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if again := decodeRun(t, out); again.ID != run.ID || again.Status != state.StatusCompleted {
		t.Errorf("unexpected status %+v", again)
	}
}

func TestRunCommandFailure(t *testing.T) {
	dir := setupProject(t)
	out, err := executeCLI(t, "-C", dir, "run", "broken")
	if err == nil {
		t.Fatal("expected error for failed run")
	}
	if !strings.Contains(err.Error(), "failed at step 1 (boom)") {
		t.Errorf("unexpected error %v", err)
	}
	if !strings.Contains(out, "boom") || !strings.Contains(out, "code 7") {
		t.Errorf("expected step progress in output, got %q", out)
	}
}

func TestRunUnknownWorkflow(t *testing.T) {
	dir := setupProject(t)
	_, err := executeCLI(t, "-C", dir, "run", "nope")
	if err == nil || !strings.Contains(err.Error(), `"nope" not found`) {
		t.Errorf("expected workflow not found, got %v", err)
	}
}

func TestRunsAndWorkflowsCommands(t *testing.T) {
	dir := setupProject(t)
	executeCLI(t, "-C", dir, "run", "hello")
	executeCLI(t, "-C", dir, "run", "broken")

	out, err := executeCLI(t, "-C", dir, "--json", "runs", "--status", "failed")
	if err != nil {
		t.Fatal(err)
	}
	var runs []state.Run
	if err := json.Unmarshal([]byte(out), &runs); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if len(runs) != 1 || runs[0].Name != "broken" {
		t.Errorf("expected only the broken run, got %+v", runs)
	}

	out, err = executeCLI(t, "-C", dir, "workflows")
	if err != nil {
		t.Fatal(err)
	}
	if out != "broken\nhello\n" {
		t.Errorf("unexpected workflows output %q", out)
	}
}

func TestResumeCommand(t *testing.T) {
	dir := setupProject(t)
	fs, err := store.NewFileStore(filepath.Join(dir, "runs"))
	if err != nil {
		t.Fatal(err)
	}
	wf := &workflow.Workflow{Steps: []workflow.Step{
		{"type": "noop", "name": "done-before"},
		{"type": "shell", "name": "after", "command": "echo resumed"},
	}}
	run := state.NewRun("r1", "manual", wf)
	run.Start()
	run.Record(0, "done-before", state.Success())
	if err := fs.Save(context.Background(), run); err != nil {
		t.Fatal(err)
	}

	out, err := executeCLI(t, "-C", dir, "--json", "resume")
	if err != nil {
		t.Fatalf("unexpected error: %v\n%s", err, out)
	}
	var runs []state.Run
	if err := json.Unmarshal([]byte(out), &runs); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if len(runs) != 1 || runs[0].Status != state.StatusCompleted || len(runs[0].Log) != 2 {
		t.Fatalf("unexpected resumed runs %+v", runs)
	}
	if runs[0].Log[1].Result[state.KeyOut] != "resumed\n" {
		t.Errorf("unexpected log %+v", runs[0].Log)
	}
}

func TestProxyRequiresUpstream(t *testing.T) {
	dir := setupProject(t)
	_, err := executeCLI(t, "-C", dir, "proxy")
	if err == nil || !strings.Contains(err.Error(), "upstream_host") {
		t.Errorf("expected missing upstream error, got %v", err)
	}
}

func TestLastLines(t *testing.T) {
	if got := lastLines("a\nb\nc\n", 2); got != "b\n      c" {
		t.Errorf("unexpected %q", got)
	}
}
