package action

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stevehiehn/orquestator/internal/state"
	"github.com/stevehiehn/orquestator/internal/workflow"
)

func writeScript(t *testing.T, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatal(err)
	}
}

func fakeNPM(t *testing.T, body string) *NPM {
	path := filepath.Join(t.TempDir(), "npm")
	writeScript(t, path, body)
	return &NPM{LookPath: func(string) (string, error) { return path, nil }}
}

func TestNPMRunsInstallThenScript(t *testing.T) {
	project := t.TempDir()
	os.WriteFile(filepath.Join(project, ".env"), []byte("GREETING=hi\n"), 0o644)
	npm := fakeNPM(t, `echo "$*" >> calls.log
echo "args=$*"
echo "greeting=$GREETING"
echo "path=$PATH"
`)

	step := workflow.Step{"type": "npm", "script": "build", "args": []any{"--prod"}}
	res, err := npm.Execute(context.Background(), step, Env{WorkDir: project})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Succeeded() {
		t.Fatalf("expected success, got %v", res)
	}
	out := res[state.KeyOut].(string)
	if !strings.Contains(out, "args=run build --prod") {
		t.Errorf("unexpected args in %q", out)
	}
	if !strings.Contains(out, "greeting=hi") {
		t.Errorf("expected .env values in %q", out)
	}
	if !strings.Contains(out, "path="+filepath.Join(project, "node_modules", ".bin")) {
		t.Errorf("expected node_modules/.bin first on PATH in %q", out)
	}

	calls, _ := os.ReadFile(filepath.Join(project, "calls.log"))
	if string(calls) != "install\nrun build --prod\n" {
		t.Errorf("unexpected npm calls %q", calls)
	}
}

func TestNPMSkipInstall(t *testing.T) {
	project := t.TempDir()
	npm := fakeNPM(t, `echo "$*" >> calls.log`)

	step := workflow.Step{"type": "npm", "script": "test", "skip_install": true}
	if res, err := npm.Execute(context.Background(), step, Env{WorkDir: project}); err != nil || !res.Succeeded() {
		t.Fatalf("unexpected result %v %v", res, err)
	}
	calls, _ := os.ReadFile(filepath.Join(project, "calls.log"))
	if string(calls) != "run test\n" {
		t.Errorf("expected install skipped, got %q", calls)
	}
}

func TestNPMInstallFailure(t *testing.T) {
	npm := fakeNPM(t, `if [ "$1" = install ]; then echo "E404" >&2; exit 3; fi`)

	res, err := npm.Execute(context.Background(), workflow.Step{"type": "npm", "script": "build"}, Env{WorkDir: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	if code, _ := res.Code(); code != 3 {
		t.Errorf("expected install exit code, got %v", res)
	}
	if res.ErrorMessage() != "npm install failed" || !strings.Contains(res[state.KeyErr].(string), "E404") {
		t.Errorf("unexpected result %v", res)
	}
}

func TestNPMPreconditions(t *testing.T) {
	res, _ := fakeNPM(t, "").Execute(context.Background(), workflow.Step{"type": "npm", "script": "b", "project": "missing"}, Env{WorkDir: t.TempDir()})
	if !strings.HasPrefix(res.ErrorMessage(), "Project folder not found") {
		t.Errorf("unexpected result %v", res)
	}

	npm := &NPM{LookPath: func(string) (string, error) { return "", errors.New("not found") }}
	res, _ = npm.Execute(context.Background(), workflow.Step{"type": "npm", "script": "b"}, Env{WorkDir: t.TempDir()})
	if res.ErrorMessage() != "npm executable not found in PATH" {
		t.Errorf("unexpected result %v", res)
	}

	if _, err := npm.Execute(context.Background(), workflow.Step{"type": "npm"}, Env{}); err == nil {
		t.Error("expected validation error for missing script")
	}
}

func TestCypressUsesLocalBinary(t *testing.T) {
	project := t.TempDir()
	os.MkdirAll(filepath.Join(project, "cypress", "e2e", "smoke"), 0o755)
	os.WriteFile(filepath.Join(project, ".env"), []byte("FOO=bar\n"), 0o644)
	writeScript(t, filepath.Join(project, "node_modules", ".bin", "cypress"), `echo "$*"
echo "proxy=${HTTP_PROXY:-none}"
echo "foo=$FOO"
`)

	c := &Cypress{Modules: map[string]string{"smoke": "cypress/e2e/smoke"}}
	env := Env{WorkDir: project, Environ: []string{"PATH=/usr/bin:/bin", "HTTP_PROXY=http://corp:3128"}}
	res, err := c.Execute(context.Background(), workflow.Step{"type": "cypress", "module": "smoke"}, env)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Succeeded() {
		t.Fatalf("expected success, got %v", res)
	}

	out := res[state.KeyOut].(string)
	specDir := filepath.Join(project, "cypress", "e2e", "smoke")
	wantSpec := "run --spec " + filepath.Join(specDir, "**", "*.cy.js") + "," + filepath.Join(specDir, "**", "*.spec.js")
	if !strings.Contains(out, wantSpec) {
		t.Errorf("expected %q in %q", wantSpec, out)
	}
	if !strings.Contains(out, "proxy=none") {
		t.Errorf("expected inherited proxy stripped, got %q", out)
	}
	if !strings.Contains(out, "foo=bar") {
		t.Errorf("expected .env values, got %q", out)
	}
}

func TestCypressPreconditions(t *testing.T) {
	project := t.TempDir()
	c := &Cypress{}

	res, _ := c.Execute(context.Background(), workflow.Step{"type": "cypress"}, Env{WorkDir: project})
	if res.ErrorMessage() != "Must specify 'folder' or 'module'" {
		t.Errorf("unexpected result %v", res)
	}
	res, _ = c.Execute(context.Background(), workflow.Step{"type": "cypress", "folder": "nope"}, Env{WorkDir: project})
	if !strings.HasPrefix(res.ErrorMessage(), "Spec folder not found") {
		t.Errorf("unexpected result %v", res)
	}
}

func TestWithoutProxy(t *testing.T) {
	got := withoutProxy([]string{"PATH=/bin", "http_proxy=x", "HTTPS_PROXY=y", "NO_PROXY=z", "PROXY_HOST=keep"})
	if len(got) != 2 || got[0] != "PATH=/bin" || got[1] != "PROXY_HOST=keep" {
		t.Errorf("unexpected environment %v", got)
	}
}

func TestPythonUsesVenv(t *testing.T) {
	dir := t.TempDir()
	os.MkdirAll(filepath.Join(dir, "scripts"), 0o755)
	os.WriteFile(filepath.Join(dir, "scripts", "job.py"), []byte("print('x')\n"), 0o644)
	writeScript(t, filepath.Join(dir, ".venv", "bin", "python"), `echo "py $*"`)

	step := workflow.Step{"type": "python", "script": "scripts/job.py", "venv": ".venv", "args": []any{"--dry-run"}}
	res, err := Python{}.Execute(context.Background(), step, Env{WorkDir: dir})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "py " + filepath.Join(dir, "scripts", "job.py") + " --dry-run\n"
	if !res.Succeeded() || res[state.KeyOut] != want {
		t.Errorf("expected out %q, got %v", want, res)
	}
}

func TestPythonPreconditions(t *testing.T) {
	dir := t.TempDir()
	res, _ := Python{}.Execute(context.Background(), workflow.Step{"type": "python", "script": "none.py"}, Env{WorkDir: dir})
	if !strings.HasPrefix(res.ErrorMessage(), "Script not found") {
		t.Errorf("unexpected result %v", res)
	}

	os.WriteFile(filepath.Join(dir, "a.py"), nil, 0o644)
	os.MkdirAll(filepath.Join(dir, "venv"), 0o755)
	res, _ = Python{}.Execute(context.Background(), workflow.Step{"type": "python", "script": "a.py", "venv": "venv"}, Env{WorkDir: dir})
	if !strings.HasPrefix(res.ErrorMessage(), "Python binary not found in venv") {
		t.Errorf("unexpected result %v", res)
	}
}
