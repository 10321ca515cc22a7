// Package template expands ${...} placeholders in task definitions against a
// slot scope and extracts values from JSON responses back into it.
package template

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// Vars resolves placeholder names. *scope.Scope satisfies it, so lookups
// fall back from the slot to the workload and benchmark scopes.
type Vars interface {
	Get(name string) (any, bool)
}

// placeholder matches ${name}, ${env:NAME} and ${fn(args)}.
var placeholder = regexp.MustCompile(`\$\{([^}]+)\}`)

// Substitute expands every placeholder in text. Environment variables are
// addressed as ${env:NAME} and built-in functions as ${name(args)}; anything
// else is looked up in vars. Every unresolved placeholder is reported.
func Substitute(text string, vars Vars) (string, error) {
	if !strings.Contains(text, "${") {
		return text, nil
	}

	var errs []error
	out := placeholder.ReplaceAllStringFunc(text, func(match string) string {
		expr := strings.TrimSpace(match[2 : len(match)-1])
		v, err := resolve(expr, vars)
		if err != nil {
			errs = append(errs, err)
			return match
		}
		return v
	})
	if err := errors.Join(errs...); err != nil {
		return "", err
	}
	return out, nil
}

func resolve(expr string, vars Vars) (string, error) {
	if name, ok := strings.CutPrefix(expr, "env:"); ok {
		if v, ok := os.LookupEnv(name); ok {
			return v, nil
		}
		return "", fmt.Errorf("env var %q not set", name)
	}
	if v, isCall, err := call(expr); isCall {
		return v, err
	}
	if vars != nil {
		if v, ok := vars.Get(expr); ok {
			return fmt.Sprint(v), nil
		}
	}
	return "", fmt.Errorf("variable %q not found", expr)
}

// SubstituteMap expands the values of m, naming the failing keys.
func SubstituteMap(m map[string]string, vars Vars) (map[string]string, error) {
	if m == nil {
		return nil, nil
	}
	out := make(map[string]string, len(m))
	var errs []error
	for k, v := range m {
		s, err := Substitute(v, vars)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", k, err))
			continue
		}
		out[k] = s
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return out, nil
}
