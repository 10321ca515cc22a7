package template

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Func is a built-in placeholder function. args holds the trimmed,
// comma-separated arguments; it is empty for a call without arguments.
type Func func(args []string) (string, error)

var functions = map[string]Func{
	"uuid":          noArgs(func() string { return uuid.NewString() }),
	"timestamp":     noArgs(func() string { return strconv.FormatInt(time.Now().Unix(), 10) }),
	"timestamp_ms":  noArgs(func() string { return strconv.FormatInt(time.Now().UnixMilli(), 10) }),
	"random":        randomInt,
	"random_string": randomString,
	"date":          date,
}

// call evaluates expr when it has the shape name(args) and name is a
// built-in function.
func call(expr string) (string, bool, error) {
	open := strings.IndexByte(expr, '(')
	if open <= 0 || !strings.HasSuffix(expr, ")") {
		return "", false, nil
	}
	name := expr[:open]
	fn, ok := functions[name]
	if !ok {
		return "", false, nil
	}

	var args []string
	if raw := strings.TrimSpace(expr[open+1 : len(expr)-1]); raw != "" {
		for _, a := range strings.Split(raw, ",") {
			args = append(args, strings.TrimSpace(a))
		}
	}
	v, err := fn(args)
	if err != nil {
		return "", true, fmt.Errorf("%s(): %w", name, err)
	}
	return v, true, nil
}

func noArgs(f func() string) Func {
	return func(args []string) (string, error) {
		if len(args) != 0 {
			return "", fmt.Errorf("takes no arguments")
		}
		return f(), nil
	}
}

// randomInt returns an integer in [min, max].
func randomInt(args []string) (string, error) {
	if len(args) != 2 {
		return "", fmt.Errorf("requires exactly 2 arguments")
	}
	lo, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return "", fmt.Errorf("invalid min value: %w", err)
	}
	hi, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return "", fmt.Errorf("invalid max value: %w", err)
	}
	if lo > hi {
		return "", fmt.Errorf("min (%d) must be <= max (%d)", lo, hi)
	}
	return strconv.FormatInt(lo+rand.Int64N(hi-lo+1), 10), nil
}

const alphanumeric = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func randomString(args []string) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("requires a length")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return "", fmt.Errorf("invalid length: %w", err)
	}
	if n <= 0 || n > 1000 {
		return "", fmt.Errorf("length must be in 1..1000, got %d", n)
	}
	b := make([]byte, n)
	for i := range b {
		b[i] = alphanumeric[rand.IntN(len(alphanumeric))]
	}
	return string(b), nil
}

// date formats the current time with a Go layout, RFC 3339 by default. The
// layout is taken verbatim, so it may not contain commas.
func date(args []string) (string, error) {
	layout := time.RFC3339
	switch len(args) {
	case 0:
	case 1:
		layout = args[0]
	default:
		return "", fmt.Errorf("takes at most one layout")
	}
	return time.Now().Format(layout), nil
}
