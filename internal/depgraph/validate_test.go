package depgraph

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"benchlab/internal/scope"
	"benchlab/internal/workload"
)

var noopFactory = workload.TaskFactoryFunc(func(*scope.Scope) (workload.Task, error) {
	return workload.TaskFunc(func(context.Context, *scope.Scope) error { return nil }), nil
})

func newWorkload(name string) *workload.Workload {
	return workload.New(name).SetTaskFactory(noopFactory).StartImmediately().RunRepetitions(1)
}

func TestValidate_WellFormedGraph(t *testing.T) {
	a := newWorkload("a")
	b := newWorkload("b").StartAfterCompletion(a).RunFor(0)
	c := newWorkload("c").StartAfterCompletion(b).RunUntilCompletion(b)
	d := newWorkload("d").StartAfter(0).RunUntilCompletion(c)

	assert.NoError(t, Validate([]*workload.Workload{a, b, c, d}))
}

func TestValidate_Empty(t *testing.T) {
	assert.NoError(t, Validate(nil))
}

func TestValidate_MissingParts(t *testing.T) {
	w := workload.New("bare")

	err := Validate([]*workload.Workload{w})

	require.Error(t, err)
	assert.True(t, HasKind(err, MissingFactory))
	assert.True(t, HasKind(err, MissingStart))
	assert.True(t, HasKind(err, MissingDuration))
	assert.Len(t, Errors(err), 3)
}

func TestValidate_MutualStartDependency(t *testing.T) {
	a := newWorkload("a")
	b := newWorkload("b")
	a.StartAfterCompletion(b)
	b.StartAfterCompletion(a)

	err := Validate([]*workload.Workload{a, b})

	require.Error(t, err)
	assert.True(t, HasKind(err, StartCycle))
	assert.False(t, HasKind(err, DurationCycle))
}

func TestValidate_SelfDependency(t *testing.T) {
	a := newWorkload("a")
	a.RunUntilCompletion(a)

	err := Validate([]*workload.Workload{a})

	require.Error(t, err)
	assert.True(t, HasKind(err, DurationCycle))
}

func TestValidate_IndirectCycles(t *testing.T) {
	tests := []struct {
		name string
		hops int
		kind Kind
		link func(from, to *workload.Workload)
	}{
		{"start 3 hops", 3, StartCycle, func(f, t *workload.Workload) { f.StartAfterCompletion(t) }},
		{"start 7 hops", 7, StartCycle, func(f, t *workload.Workload) { f.StartAfterCompletion(t) }},
		{"duration 4 hops", 4, DurationCycle, func(f, t *workload.Workload) { f.RunUntilCompletion(t) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ws := make([]*workload.Workload, tt.hops)
			for i := range ws {
				ws[i] = newWorkload(fmt.Sprintf("w%d", i))
			}
			for i := range ws {
				tt.link(ws[i], ws[(i+1)%len(ws)])
			}
			// a workload leading into the cycle is also reported
			entry := newWorkload("entry")
			tt.link(entry, ws[0])

			err := Validate(append(ws, entry))

			require.Error(t, err)
			assert.True(t, HasKind(err, tt.kind))
			assert.Len(t, Errors(err), tt.hops+1)
		})
	}
}

func TestValidate_StartAndDurationEdgesAreIndependent(t *testing.T) {
	// a starts after b, b runs until a: no cycle within either edge set
	a := newWorkload("a")
	b := newWorkload("b")
	a.StartAfterCompletion(b)
	b.RunUntilCompletion(a)

	assert.NoError(t, Validate([]*workload.Workload{a, b}))
	assert.ElementsMatch(t, []*workload.Workload{a, b}, CompletionCycle([]*workload.Workload{a, b}))
}

func TestCompletionCycle_NoneForChains(t *testing.T) {
	a := newWorkload("a")
	b := newWorkload("b").StartAfterCompletion(a)
	c := newWorkload("c").StartAfterCompletion(a).RunUntilCompletion(b)

	assert.Nil(t, CompletionCycle([]*workload.Workload{a, b, c}))
}

func TestCompletionCycle_ThroughSeveralHops(t *testing.T) {
	a := newWorkload("a")
	b := newWorkload("b").StartAfterCompletion(a)
	c := newWorkload("c").RunUntilCompletion(b)
	a.StartAfterCompletion(c)
	unrelated := newWorkload("unrelated")

	require.NoError(t, Validate([]*workload.Workload{unrelated, a, b, c}))
	cycle := CompletionCycle([]*workload.Workload{unrelated, a, b, c})
	assert.ElementsMatch(t, []*workload.Workload{a, b, c}, cycle)
}

func TestValidate_UnknownDependency(t *testing.T) {
	outside := newWorkload("outside")
	w := newWorkload("w").StartAfterCompletion(outside)

	err := Validate([]*workload.Workload{w})

	require.Error(t, err)
	errs := Errors(err)
	require.Len(t, errs, 1)
	assert.Equal(t, UnknownDependency, errs[0].Kind)
	assert.Equal(t, "outside", errs[0].Dependency)
	assert.Equal(t, `workload "w": unknown dependency "outside"`, errs[0].Error())
}

func TestErrors_WrappedError(t *testing.T) {
	err := fmt.Errorf("benchmark %q: %w", "x", errors.Join(&Error{Kind: StartCycle, Workload: "a"}))

	assert.True(t, HasKind(err, StartCycle))
	var ve *Error
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "a", ve.Workload)
}

func TestStartOrder(t *testing.T) {
	c := newWorkload("c")
	b := newWorkload("b")
	a := newWorkload("a")
	c.StartAfterCompletion(b)
	b.StartAfterCompletion(a)
	d := newWorkload("d")

	order := StartOrder([]*workload.Workload{c, d, b, a})

	names := make([]string, len(order))
	for i, w := range order {
		names[i] = w.Name()
	}
	assert.Equal(t, []string{"a", "b", "c", "d"}, names)
}
