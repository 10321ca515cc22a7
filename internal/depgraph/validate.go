// Package depgraph validates the dependency graph formed by workload start
// and duration conditions before anything is scheduled.
package depgraph

import (
	"errors"

	"benchlab/internal/workload"
)

// Validate checks every workload for a task factory, a start condition and a
// duration, and checks that following dependent start edges and dependent
// duration edges always terminates. All failures are returned joined; nil
// means the set can be scheduled.
//
// Dependencies must point at workloads inside the set; a dependency on a
// workload that will never run would block its dependents forever.
func Validate(workloads []*workload.Workload) error {
	members := make(map[*workload.Workload]bool, len(workloads))
	for _, w := range workloads {
		members[w] = true
	}

	var errs []error
	for _, w := range workloads {
		if w.TaskFactory() == nil {
			errs = append(errs, &Error{Kind: MissingFactory, Workload: w.Name()})
		}
		if w.StartCondition() == nil {
			errs = append(errs, &Error{Kind: MissingStart, Workload: w.Name()})
		}
		if w.Duration() == nil {
			errs = append(errs, &Error{Kind: MissingDuration, Workload: w.Name()})
		}
		if p := workload.StartPredecessor(w.StartCondition()); p != nil && !members[p] {
			errs = append(errs, &Error{Kind: UnknownDependency, Workload: w.Name(), Dependency: p.Name()})
		}
		if d := workload.DurationDependency(w.Duration()); d != nil && !members[d] {
			errs = append(errs, &Error{Kind: UnknownDependency, Workload: w.Name(), Dependency: d.Name()})
		}
	}

	for _, w := range workloads {
		if !terminates(w, startEdge) {
			errs = append(errs, &Error{Kind: StartCycle, Workload: w.Name()})
		}
		if !terminates(w, durationEdge) {
			errs = append(errs, &Error{Kind: DurationCycle, Workload: w.Name()})
		}
	}
	return errors.Join(errs...)
}

type edgeFunc func(*workload.Workload) *workload.Workload

func startEdge(w *workload.Workload) *workload.Workload {
	return workload.StartPredecessor(w.StartCondition())
}

func durationEdge(w *workload.Workload) *workload.Workload {
	return workload.DurationDependency(w.Duration())
}

// terminates follows next from w until it reaches a workload without a
// dependent edge. Revisiting a workload means the chain is a cycle. The
// visited set is fresh for every starting workload.
func terminates(w *workload.Workload, next edgeFunc) bool {
	visited := make(map[*workload.Workload]bool)
	for cur := next(w); cur != nil; cur = next(cur) {
		if visited[cur] {
			return false
		}
		visited[cur] = true
	}
	return true
}

// StartOrder returns the workloads sorted so that every start predecessor
// precedes its dependents. Workloads that are not reachable through start
// edges keep their relative order. The input must already be valid.
func StartOrder(workloads []*workload.Workload) []*workload.Workload {
	placed := make(map[*workload.Workload]bool, len(workloads))
	order := make([]*workload.Workload, 0, len(workloads))
	var place func(w *workload.Workload)
	place = func(w *workload.Workload) {
		if placed[w] {
			return
		}
		placed[w] = true
		if p := startEdge(w); p != nil {
			place(p)
		}
		order = append(order, w)
	}
	for _, w := range workloads {
		place(w)
	}
	return order
}

// CompletionCycle returns the workloads of a cycle that mixes start and
// duration edges, or nil. Such a set passes Validate, but every workload on
// the cycle waits for the completion of the next one, so the run only ends
// when it is cancelled.
func CompletionCycle(workloads []*workload.Workload) []*workload.Workload {
	const (
		unvisited = iota
		active
		done
	)
	state := make(map[*workload.Workload]int, len(workloads))
	var stack, cycle []*workload.Workload

	var visit func(w *workload.Workload) bool
	visit = func(w *workload.Workload) bool {
		state[w] = active
		stack = append(stack, w)
		for _, next := range [2]*workload.Workload{startEdge(w), durationEdge(w)} {
			if next == nil {
				continue
			}
			switch state[next] {
			case active:
				for i := len(stack) - 1; i >= 0; i-- {
					if stack[i] == next {
						cycle = append([]*workload.Workload(nil), stack[i:]...)
						return true
					}
				}
			case unvisited:
				if visit(next) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[w] = done
		return false
	}

	for _, w := range workloads {
		if state[w] == unvisited && visit(w) {
			return cycle
		}
	}
	return nil
}
