// Package progress prints a status line while benchmarks run. A Progress is
// a core.Reporter and counts the iteration events it receives.
package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"benchlab/internal/core"
)

const DefaultInterval = time.Second

type Progress struct {
	interval time.Duration
	quiet    bool

	total  atomic.Int64
	failed atomic.Int64

	mu        sync.Mutex
	output    io.Writer
	startTime time.Time
	ticker    *time.Ticker
	stopCh    chan struct{}
	stopped   atomic.Bool
}

var _ core.Reporter = (*Progress)(nil)

// NewProgress returns a Progress printing every interval; a non-positive
// interval uses DefaultInterval.
func NewProgress(quiet bool, interval time.Duration) *Progress {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Progress{
		interval: interval,
		quiet:    quiet,
		output:   os.Stderr,
	}
}

func (p *Progress) SetOutput(w io.Writer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.output = w
}

// Report counts one iteration.
func (p *Progress) Report(e core.Event) {
	p.total.Add(1)
	if !e.Success {
		p.failed.Add(1)
	}
}

// Counts returns the iterations seen so far and how many failed.
func (p *Progress) Counts() (total, failed int64) {
	return p.total.Load(), p.failed.Load()
}

func (p *Progress) Start() {
	if p.quiet {
		return
	}
	p.mu.Lock()
	p.startTime = time.Now()
	p.stopCh = make(chan struct{})
	p.ticker = time.NewTicker(p.interval)
	ticker, stop := p.ticker, p.stopCh
	p.mu.Unlock()
	go p.run(ticker, stop)
}

func (p *Progress) run(ticker *time.Ticker, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			p.printProgress()
		}
	}
}

func (p *Progress) printProgress() {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprint(p.output, p.line(time.Since(p.startTime)))
}

func (p *Progress) line(elapsed time.Duration) string {
	total, failed := p.Counts()
	elapsed = elapsed.Round(time.Second)
	mins := int(elapsed.Minutes())
	secs := int(elapsed.Seconds()) % 60
	rate, failRate := 0.0, 0.0
	if elapsed > 0 {
		rate = float64(total) / elapsed.Seconds()
	}
	if total > 0 {
		failRate = float64(failed) / float64(total) * 100
	}
	return fmt.Sprintf("\033[K[%02d:%02d] Iterations: %d | Rate: %.1f/s | Failed: %d (%.1f%%)\r",
		mins, secs, total, rate, failed, failRate)
}

// Stop ends the status line. It is safe to call more than once and without
// Start.
func (p *Progress) Stop() {
	if p.quiet || p.stopped.Swap(true) {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ticker != nil {
		p.ticker.Stop()
	}
	if p.stopCh != nil {
		close(p.stopCh)
	}
	fmt.Fprint(p.output, "\033[K")
}

// Print writes message on its own line, clearing the status line first.
func (p *Progress) Print(message string) {
	if p.quiet {
		return
	}
	p.mu.Lock()
	fmt.Fprintf(p.output, "\033[K%s\n", message)
	p.mu.Unlock()
}

func (p *Progress) Printf(format string, args ...any) {
	p.Print(fmt.Sprintf(format, args...))
}
