package workload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"benchlab/internal/scope"
)

// Event identifies a workload lifecycle event.
type Event int

const (
	// Initialization fires once, before any task slot starts.
	Initialization Event = iota
	// Completion fires once, after every task slot has finished.
	Completion
)

func (e Event) String() string {
	switch e {
	case Initialization:
		return "initialization"
	case Completion:
		return "completion"
	default:
		return fmt.Sprintf("event(%d)", int(e))
	}
}

// Handler reacts to a workload event. It receives the workload's scope.
type Handler interface {
	Handle(sc *scope.Scope) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(sc *scope.Scope) error

func (f HandlerFunc) Handle(sc *scope.Scope) error { return f(sc) }

// Task is one executable unit created per parallel slot. Run is invoked once
// per iteration; ctx is cancelled when the workload is stopped.
type Task interface {
	Run(ctx context.Context, sc *scope.Scope) error
}

// TaskFunc adapts a function to Task.
type TaskFunc func(ctx context.Context, sc *scope.Scope) error

func (f TaskFunc) Run(ctx context.Context, sc *scope.Scope) error { return f(ctx, sc) }

// TaskFactory creates a fresh task for a slot, bound to that slot's scope.
type TaskFactory interface {
	Create(sc *scope.Scope) (Task, error)
}

// TaskFactoryFunc adapts a function to TaskFactory.
type TaskFactoryFunc func(sc *scope.Scope) (Task, error)

func (f TaskFactoryFunc) Create(sc *scope.Scope) (Task, error) { return f(sc) }

// Fire invokes every handler registered for ev in registration order.
// A failing or panicking handler is logged and does not prevent the
// remaining handlers from running. The failures are returned joined.
func (w *Workload) Fire(ev Event, sc *scope.Scope, logger *slog.Logger) error {
	var errs []error
	for i, h := range w.Handlers(ev) {
		if err := invoke(h, sc); err != nil {
			if logger != nil {
				logger.Error("event handler failed",
					"workload", w.name, "event", ev.String(), "handler", i, "error", err)
			}
			errs = append(errs, fmt.Errorf("%s handler %d: %w", ev, i, err))
		}
	}
	return errors.Join(errs...)
}

func invoke(h Handler, sc *scope.Scope) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return h.Handle(sc)
}
