package action

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/stevehiehn/orquestator/internal/state"
	"github.com/stevehiehn/orquestator/internal/workflow"
)

// File writes or appends content to a file.
type File struct{}

type fileParams struct {
	Path    string `mapstructure:"path" validate:"required"`
	Content string `mapstructure:"content"`
	Mode    string `mapstructure:"mode" default:"write" validate:"oneof=write append"`
}

func (File) Execute(ctx context.Context, step workflow.Step, env Env) (state.Result, error) {
	var p fileParams
	if err := decode(step, &p); err != nil {
		return nil, err
	}
	path := env.Path(p.Path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("file: %w", err)
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if p.Mode == "append" {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("file: %w", err)
	}
	defer f.Close()
	n, err := f.WriteString(p.Content)
	if err != nil {
		return nil, fmt.Errorf("file: %w", err)
	}
	return state.Result{state.KeyCode: 0, "path": path, "bytes": n}, nil
}
