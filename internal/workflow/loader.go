package workflow

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	runerrors "github.com/stevehiehn/orquestator/internal/errors"
)

// Source loads workflow definitions by name.
type Source interface {
	Load(name string) (*Workflow, error)
}

// extensions are tried in order when resolving a workflow name.
var extensions = []string{".json", ".yaml", ".yml"}

// DirSource reads definitions from <Dir>/<name>.{json,yaml,yml}.
type DirSource struct {
	Dir string
}

// NewDirSource creates a file-backed workflow source.
func NewDirSource(dir string) *DirSource {
	return &DirSource{Dir: dir}
}

// Load reads and parses the named workflow.
func (s *DirSource) Load(name string) (*Workflow, error) {
	if !validName(name) {
		return nil, runerrors.NewWorkflowNotFound(name)
	}
	for _, ext := range extensions {
		path := filepath.Join(s.Dir, name+ext)
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("reading workflow file: %w", err)
		}
		wf, err := Parse(data, ext)
		if err != nil {
			return nil, fmt.Errorf("workflow %q: %w", name, err)
		}
		if wf.Name == "" {
			wf.Name = name
		}
		return wf, nil
	}
	return nil, runerrors.NewWorkflowNotFound(name)
}

// List returns the names of all definitions in the directory.
func (s *DirSource) List() ([]string, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading workflows dir: %w", err)
	}
	seen := map[string]bool{}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if !knownExtension(ext) {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ext)
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Parse decodes a definition. ext selects the format: ".json" uses
// encoding/json, anything else YAML.
func Parse(data []byte, ext string) (*Workflow, error) {
	var wf Workflow
	if ext == ".json" {
		if err := json.Unmarshal(data, &wf); err != nil {
			return nil, fmt.Errorf("parsing JSON: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, &wf); err != nil {
			return nil, fmt.Errorf("parsing YAML: %w", err)
		}
	}
	if wf.Steps == nil {
		wf.Steps = []Step{}
	}
	for i, s := range wf.Steps {
		if s == nil {
			return nil, fmt.Errorf("step at index %d is empty", i)
		}
	}
	return &wf, nil
}

func knownExtension(ext string) bool {
	for _, e := range extensions {
		if e == ext {
			return true
		}
	}
	return false
}

func validName(name string) bool {
	if name == "" || name == "." || strings.Contains(name, "..") {
		return false
	}
	return !strings.ContainsAny(name, `/\`)
}
