package action

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/stevehiehn/orquestator/internal/runner"
	"github.com/stevehiehn/orquestator/internal/state"
	"github.com/stevehiehn/orquestator/internal/workflow"
)

// dotenv reads <dir>/.env, returning nil when there is none.
func dotenv(dir string) (map[string]string, error) {
	path := filepath.Join(dir, ".env")
	if _, err := os.Stat(path); err != nil {
		return nil, nil
	}
	vars, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return vars, nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// NPM runs `npm install` and then `npm run <script>` in a Node project.
type NPM struct {
	// LookPath finds the npm binary; exec.LookPath when nil.
	LookPath func(file string) (string, error)
}

type npmParams struct {
	Project     string            `mapstructure:"project" default:"."`
	Script      string            `mapstructure:"script" validate:"required"`
	Args        []string          `mapstructure:"args"`
	Env         map[string]string `mapstructure:"env"`
	SkipInstall bool              `mapstructure:"skip_install"`
	Timeout     time.Duration     `mapstructure:"timeout"`
}

func (n *NPM) Execute(ctx context.Context, step workflow.Step, env Env) (state.Result, error) {
	var p npmParams
	if err := decode(step, &p); err != nil {
		return nil, err
	}
	project := env.Path(p.Project)
	if !isDir(project) {
		return state.Failuref("Project folder not found: %s", project), nil
	}
	vars, err := dotenv(project)
	if err != nil {
		return nil, err
	}

	lookPath := n.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	npm, err := lookPath("npm")
	if err != nil {
		return state.Failure("npm executable not found in PATH"), nil
	}

	environ := runner.MergeEnv(env.Environment(), vars)
	if !p.SkipInstall {
		install, err := runCommand(ctx, runner.Command{Path: npm, Args: []string{"install"}, Dir: project, Env: environ, Timeout: p.Timeout})
		if err != nil {
			return install, err
		}
		if !install.Succeeded() {
			return install.With(state.KeyError, "npm install failed"), nil
		}
	}

	path, _ := runner.LookupEnv(environ, "PATH")
	bin := filepath.Join(project, "node_modules", ".bin")
	overrides := map[string]string{"PATH": bin + string(os.PathListSeparator) + path}
	for k, v := range p.Env {
		overrides[k] = v
	}
	args := append([]string{"run", p.Script}, p.Args...)
	return runCommand(ctx, runner.Command{
		Path:    npm,
		Args:    args,
		Dir:     project,
		Env:     runner.MergeEnv(environ, overrides),
		Timeout: p.Timeout,
	})
}

// Cypress runs a Cypress spec folder, picked directly or through a
// configured module name.
type Cypress struct {
	Modules map[string]string
}

type cypressParams struct {
	Project string        `mapstructure:"project" default:"."`
	Folder  string        `mapstructure:"folder"`
	Module  string        `mapstructure:"module"`
	Timeout time.Duration `mapstructure:"timeout"`
}

func (c *Cypress) Execute(ctx context.Context, step workflow.Step, env Env) (state.Result, error) {
	var p cypressParams
	if err := decode(step, &p); err != nil {
		return nil, err
	}
	project := env.Path(p.Project)
	if !isDir(project) {
		return state.Failuref("Project folder not found: %s", project), nil
	}
	vars, err := dotenv(project)
	if err != nil {
		return nil, err
	}

	folder := p.Folder
	if p.Module != "" {
		if f, ok := c.Modules[p.Module]; ok {
			folder = f
		}
	}
	if folder == "" {
		return state.Failure("Must specify 'folder' or 'module'"), nil
	}
	specDir := filepath.Join(project, folder)
	if _, err := os.Stat(specDir); err != nil {
		return state.Failuref("Spec folder not found: %s", specDir), nil
	}
	pattern := strings.Join([]string{
		filepath.Join(specDir, "**", "*.cy.js"),
		filepath.Join(specDir, "**", "*.spec.js"),
	}, ",")

	cmd := runner.Command{Dir: project, Env: runner.MergeEnv(withoutProxy(env.Environment()), vars), Timeout: p.Timeout}
	bin := filepath.Join(project, "node_modules", ".bin")
	if local := filepath.Join(bin, "cypress"); isFile(local) {
		cmd.Path = local
		cmd.Args = []string{"run", "--spec", pattern}
	} else {
		cmd.Path = "npx"
		if local := filepath.Join(bin, "npx"); isFile(local) {
			cmd.Path = local
		}
		cmd.Args = []string{"cypress", "run", "--spec", pattern}
	}
	return runCommand(ctx, cmd)
}

// withoutProxy drops inherited *_proxy variables.
func withoutProxy(environ []string) []string {
	out := environ[:0:0]
	for _, kv := range environ {
		key := kv
		if i := strings.IndexByte(kv, '='); i >= 0 {
			key = kv[:i]
		}
		if strings.HasSuffix(strings.ToLower(key), "_proxy") {
			continue
		}
		out = append(out, kv)
	}
	return out
}
