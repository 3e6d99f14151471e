package action

import (
	"context"
	"fmt"
	"os"

	"github.com/Jeffail/gabs/v2"

	"github.com/stevehiehn/orquestator/internal/state"
	"github.com/stevehiehn/orquestator/internal/workflow"
)

// JSON reads or writes a dotted path inside a JSON file.
type JSON struct{}

type jsonParams struct {
	File  string `mapstructure:"file" validate:"required"`
	Path  string `mapstructure:"path" validate:"required"`
	Op    string `mapstructure:"op" default:"get" validate:"oneof=get set"`
	Value any    `mapstructure:"value"`
}

func (JSON) Execute(ctx context.Context, step workflow.Step, env Env) (state.Result, error) {
	var p jsonParams
	if err := decode(step, &p); err != nil {
		return nil, err
	}
	file := env.Path(p.File)
	if p.Op == "set" {
		return jsonSet(file, p.Path, p.Value)
	}
	return jsonGet(file, p.Path)
}

func jsonGet(file, path string) (state.Result, error) {
	doc, err := gabs.ParseJSONFile(file)
	if err != nil {
		return nil, fmt.Errorf("json get: %w", err)
	}
	if !doc.ExistsP(path) {
		return state.Failuref("key %q not found in %s", path, file), nil
	}
	return state.Result{state.KeyCode: 0, "value": doc.Path(path).Data()}, nil
}

func jsonSet(file, path string, value any) (state.Result, error) {
	doc := gabs.New()
	if _, err := os.Stat(file); err == nil {
		if doc, err = gabs.ParseJSONFile(file); err != nil {
			return nil, fmt.Errorf("json set: %w", err)
		}
	}
	if _, err := doc.SetP(value, path); err != nil {
		return nil, fmt.Errorf("json set: %w", err)
	}
	if err := os.WriteFile(file, []byte(doc.StringIndent("", "  ")), 0o644); err != nil {
		return nil, fmt.Errorf("json set: %w", err)
	}
	return state.Result{state.KeyCode: 0, "file": file}, nil
}
