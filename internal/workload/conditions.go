package workload

import (
	"fmt"
	"time"
)

// StartCondition decides when a workload begins. The set of variants is
// closed: Immediately, AfterDelay and AfterCompletion.
type StartCondition interface {
	fmt.Stringer
	startCondition()
}

// Immediately starts the workload as soon as the benchmark launches.
type Immediately struct{}

// AfterDelay starts the workload a fixed time after the benchmark launches.
type AfterDelay struct {
	Delay time.Duration
}

// AfterCompletion starts the workload when Predecessor fires Completion.
type AfterCompletion struct {
	Predecessor *Workload
}

func (Immediately) startCondition()     {}
func (AfterDelay) startCondition()      {}
func (AfterCompletion) startCondition() {}

func (Immediately) String() string { return "Starts immediately" }

func (c AfterDelay) String() string { return fmt.Sprintf("Starts after %v", c.Delay) }

func (c AfterCompletion) String() string {
	return fmt.Sprintf("Starts after %s", nameOf(c.Predecessor))
}

// Duration decides when a workload's slots stop iterating. The set of
// variants is closed: Repetitions, TimeSpan and UntilCompletion.
type Duration interface {
	fmt.Stringer
	duration()
}

// Repetitions runs every slot's task exactly Count times.
type Repetitions struct {
	Count int
}

// TimeSpan keeps slots iterating until Span has elapsed since Initialization.
type TimeSpan struct {
	Span time.Duration
}

// UntilCompletion keeps slots iterating until Dependency fires Completion.
type UntilCompletion struct {
	Dependency *Workload
}

func (Repetitions) duration()     {}
func (TimeSpan) duration()        {}
func (UntilCompletion) duration() {}

func (d Repetitions) String() string { return fmt.Sprintf("Runs %d repetitions", d.Count) }

func (d TimeSpan) String() string { return fmt.Sprintf("Runs for %v", d.Span) }

func (d UntilCompletion) String() string {
	return fmt.Sprintf("Runs until %s completes", nameOf(d.Dependency))
}

// StartPredecessor returns the workload c waits for, or nil when c does not
// depend on another workload.
func StartPredecessor(c StartCondition) *Workload {
	if ac, ok := c.(AfterCompletion); ok {
		return ac.Predecessor
	}
	return nil
}

// DurationDependency returns the workload d runs until, or nil when d does
// not depend on another workload.
func DurationDependency(d Duration) *Workload {
	if uc, ok := d.(UntilCompletion); ok {
		return uc.Dependency
	}
	return nil
}

func nameOf(w *Workload) string {
	if w == nil {
		return "<nil>"
	}
	return w.Name()
}
