// Package template expands {{env.NAME}}, {{run.id}} and {{run.name}}
// placeholders in step parameters.
package template

import (
	"fmt"
	"regexp"
)

var envRefRe = regexp.MustCompile(`\{\{\s*env\.([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)
var runRefRe = regexp.MustCompile(`\{\{\s*run\.([a-z_]+)\s*\}\}`)

// Context holds available values for template resolution.
type Context struct {
	Env     func(name string) (string, bool)
	RunID   string
	RunName string
}

// Resolve replaces all {{env.X}} and {{run.Y}} in s.
func Resolve(s string, ctx *Context) (string, error) {
	var resolveErr error

	result := runRefRe.ReplaceAllStringFunc(s, func(match string) string {
		field := runRefRe.FindStringSubmatch(match)[1]
		switch field {
		case "id":
			return ctx.RunID
		case "name":
			return ctx.RunName
		}
		resolveErr = fmt.Errorf("unknown run field %q", field)
		return match
	})
	if resolveErr != nil {
		return "", resolveErr
	}

	result = envRefRe.ReplaceAllStringFunc(result, func(match string) string {
		name := envRefRe.FindStringSubmatch(match)[1]
		if ctx.Env != nil {
			if val, ok := ctx.Env(name); ok {
				return val
			}
		}
		resolveErr = fmt.Errorf("unresolved environment variable %q", name)
		return match
	})
	if resolveErr != nil {
		return "", resolveErr
	}

	return result, nil
}

// ResolveAll returns a copy of params with every string value, at any
// depth, resolved. Keys listed in skip are copied untouched.
func ResolveAll(params map[string]any, ctx *Context, skip ...string) (map[string]any, error) {
	out := make(map[string]any, len(params))
	for k, v := range params {
		if contains(skip, k) {
			out[k] = v
			continue
		}
		rv, err := resolveValue(v, ctx)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		out[k] = rv
	}
	return out, nil
}

func resolveValue(v any, ctx *Context) (any, error) {
	switch t := v.(type) {
	case string:
		return Resolve(t, ctx)
	case map[string]any:
		return ResolveAll(t, ctx)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			rv, err := resolveValue(e, ctx)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = rv
		}
		return out, nil
	case []string:
		out := make([]string, len(t))
		for i, e := range t {
			rv, err := Resolve(e, ctx)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = rv
		}
		return out, nil
	}
	return v, nil
}

func contains(list []string, s string) bool {
	for _, e := range list {
		if e == s {
			return true
		}
	}
	return false
}
