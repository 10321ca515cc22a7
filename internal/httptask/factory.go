package httptask

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"benchlab/internal/coordinator"
	"benchlab/internal/scope"
	"benchlab/internal/workload"
)

// DefaultTimeout bounds a single request when no client is supplied.
const DefaultTimeout = 30 * time.Second

// Factory creates one Task per workload slot. All tasks share the client.
type Factory struct {
	steps  []Step
	client *http.Client
	debug  *DebugLogger
}

var _ workload.TaskFactory = (*Factory)(nil)

// NewFactory validates steps and returns a factory running them in order.
// A nil client gets DefaultTimeout; a nil debug logger disables dumps.
func NewFactory(steps []Step, client *http.Client, debug *DebugLogger) (*Factory, error) {
	if len(steps) == 0 {
		return nil, errors.New("http task needs at least one step")
	}
	var errs []error
	for i, s := range steps {
		if err := s.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("step %d (%s): %w", i, s.Name, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	return &Factory{steps: steps, client: client, debug: debug}, nil
}

func (f *Factory) Create(sc *scope.Scope) (workload.Task, error) {
	slot, _ := scope.Lookup[int](sc, coordinator.SlotKey)
	t := &Task{slot: slot, steps: make([]*step, len(f.steps))}
	for i, s := range f.steps {
		t.steps[i] = &step{Step: s, client: f.client, debug: f.debug}
	}
	return t, nil
}

// Task runs every step once per iteration and stops at the first failing
// step. Extracted values stay on the slot scope across iterations.
type Task struct {
	slot  int
	steps []*step
}

func (t *Task) Run(ctx context.Context, sc *scope.Scope) error {
	for _, s := range t.steps {
		if err := s.execute(ctx, t.slot, sc); err != nil {
			return err
		}
	}
	return nil
}
