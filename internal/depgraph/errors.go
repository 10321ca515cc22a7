package depgraph

import (
	"errors"
	"fmt"
)

// Kind classifies a structural problem in a workload graph.
type Kind int

const (
	MissingFactory Kind = iota + 1
	MissingStart
	MissingDuration
	StartCycle
	DurationCycle
	UnknownDependency
)

func (k Kind) String() string {
	switch k {
	case MissingFactory:
		return "missing task factory"
	case MissingStart:
		return "missing start condition"
	case MissingDuration:
		return "missing duration"
	case StartCycle:
		return "cycle in start condition"
	case DurationCycle:
		return "cycle in duration"
	case UnknownDependency:
		return "unknown dependency"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is a single validation failure for one workload.
type Error struct {
	Kind       Kind
	Workload   string
	Dependency string // set for UnknownDependency
}

func (e *Error) Error() string {
	if e.Dependency != "" {
		return fmt.Sprintf("workload %q: %s %q", e.Workload, e.Kind, e.Dependency)
	}
	return fmt.Sprintf("workload %q: %s", e.Workload, e.Kind)
}

// Errors extracts every *Error contained in err, which may be a joined error.
func Errors(err error) []*Error {
	var out []*Error
	var walk func(error)
	walk = func(e error) {
		if e == nil {
			return
		}
		if ve, ok := e.(*Error); ok {
			out = append(out, ve)
			return
		}
		if j, ok := e.(interface{ Unwrap() []error }); ok {
			for _, inner := range j.Unwrap() {
				walk(inner)
			}
			return
		}
		walk(errors.Unwrap(e))
	}
	walk(err)
	return out
}

// HasKind reports whether err contains a validation failure of kind k.
func HasKind(err error, k Kind) bool {
	for _, e := range Errors(err) {
		if e.Kind == k {
			return true
		}
	}
	return false
}
