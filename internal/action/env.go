package action

import (
	"os"
	"path/filepath"

	"github.com/stevehiehn/orquestator/internal/runner"
	"github.com/stevehiehn/orquestator/internal/template"
)

// Env is what an executor may know about the run it serves.
type Env struct {
	WorkDir string
	Environ []string // nil means the process environment
	RunID   string
	RunName string
}

// Lookup finds an environment variable.
func (e Env) Lookup(name string) (string, bool) {
	if e.Environ == nil {
		return os.LookupEnv(name)
	}
	return runner.LookupEnv(e.Environ, name)
}

// Environment returns a copy of the environment list.
func (e Env) Environment() []string {
	if e.Environ == nil {
		return os.Environ()
	}
	return append([]string(nil), e.Environ...)
}

// Path resolves p against WorkDir unless it is absolute.
func (e Env) Path(p string) string {
	if p == "" {
		p = "."
	}
	if filepath.IsAbs(p) || e.WorkDir == "" {
		abs, err := filepath.Abs(p)
		if err != nil {
			return p
		}
		return abs
	}
	return filepath.Join(e.WorkDir, p)
}

func (e Env) templateContext() *template.Context {
	return &template.Context{Env: e.Lookup, RunID: e.RunID, RunName: e.RunName}
}
