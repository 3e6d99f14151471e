package poll

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/Jeffail/gabs/v2"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

type predicate interface {
	match(obs Observation, attempt int) (bool, error)
	describe() string
}

// newPredicate picks the success test. Precedence: success_when,
// status_field/desired_status, expected_status, then structural success.
func newPredicate(opts Options) (predicate, error) {
	switch {
	case opts.SuccessWhen != "":
		return compileExpr(opts.SuccessWhen)
	case opts.StatusField != "" && opts.DesiredStatus != nil:
		return fieldMatch{field: opts.StatusField, want: opts.DesiredStatus}, nil
	case opts.ExpectedStatus != "":
		return substringMatch{want: opts.ExpectedStatus}, nil
	}
	return structural{}, nil
}

type fieldMatch struct {
	field string
	want  any
}

func (f fieldMatch) match(obs Observation, _ int) (bool, error) {
	m, ok := obs.Parsed.(map[string]any)
	if !ok {
		return false, nil
	}
	// a literal key wins over the dotted path
	if v, ok := m[f.field]; ok {
		return valuesEqual(v, f.want), nil
	}
	got := gabs.Wrap(m).Path(f.field)
	if got == nil {
		return false, nil
	}
	return valuesEqual(got.Data(), f.want), nil
}

func (f fieldMatch) describe() string {
	return fmt.Sprintf("Did not reach desired status '%v'", f.want)
}

type substringMatch struct {
	want string
}

func (s substringMatch) match(obs Observation, _ int) (bool, error) {
	return strings.Contains(obs.Raw, s.want), nil
}

func (s substringMatch) describe() string {
	return fmt.Sprintf("Did not find expected status '%s'", s.want)
}

type structural struct{}

func (structural) match(obs Observation, _ int) (bool, error) {
	return obs.OK, nil
}

func (structural) describe() string {
	return "Did not get a successful response"
}

type exprMatch struct {
	source  string
	program *vm.Program
}

func exprEnv(obs Observation, attempt int) map[string]any {
	return map[string]any{
		"response":    obs.Parsed,
		"raw":         obs.Raw,
		"status_code": obs.StatusCode,
		"attempt":     attempt,
	}
}

func compileExpr(source string) (predicate, error) {
	program, err := expr.Compile(source,
		expr.Env(exprEnv(Observation{}, 0)),
		expr.AllowUndefinedVariables(),
		expr.AsBool(),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid success_when expression: %w", err)
	}
	return exprMatch{source: source, program: program}, nil
}

func (e exprMatch) match(obs Observation, attempt int) (bool, error) {
	out, err := expr.Run(e.program, exprEnv(obs, attempt))
	if err != nil {
		return false, err
	}
	ok, _ := out.(bool)
	return ok, nil
}

func (e exprMatch) describe() string {
	return fmt.Sprintf("Condition '%s' not met", e.source)
}

// valuesEqual compares decoded values, treating numbers of different Go
// types as equal when they hold the same value.
func valuesEqual(a, b any) bool {
	if reflect.DeepEqual(a, b) {
		return true
	}
	fa, aok := toFloat(a)
	fb, bok := toFloat(b)
	return aok && bok && fa == fb
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
