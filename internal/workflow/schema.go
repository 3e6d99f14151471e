package workflow

import "fmt"

// Workflow is an ordered, named list of step definitions.
type Workflow struct {
	Name        string `json:"name,omitempty" yaml:"name,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Steps       []Step `json:"steps" yaml:"steps"`
}

// Step is one unit of work. Besides the "type" discriminator and "name",
// every key is a parameter interpreted only by the step's executor.
type Step map[string]any

// Reserved step keys.
const (
	KeyType = "type"
	KeyName = "name"
)

// Type returns the executor-selecting discriminator.
func (s Step) Type() string {
	t, _ := s[KeyType].(string)
	return t
}

// Name returns the declared step name.
func (s Step) Name() string {
	n, _ := s[KeyName].(string)
	return n
}

// DisplayName returns the step name, or "<type>#<index>" when none is set.
func (s Step) DisplayName(index int) string {
	if n := s.Name(); n != "" {
		return n
	}
	return fmt.Sprintf("%s#%d", s.Type(), index)
}

// Clone returns a deep copy of the step.
func (s Step) Clone() Step {
	if s == nil {
		return nil
	}
	return Step(cloneMap(s))
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case Step:
		return t.Clone()
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}
