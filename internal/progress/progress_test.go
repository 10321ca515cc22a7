package progress

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"benchlab/internal/core"
)

func TestNewProgress(t *testing.T) {
	p := NewProgress(false, 0)
	assert.False(t, p.quiet)
	assert.Equal(t, DefaultInterval, p.interval)

	q := NewProgress(true, 50*time.Millisecond)
	assert.True(t, q.quiet)
	assert.Equal(t, 50*time.Millisecond, q.interval)
}

func TestProgress_CountsEvents(t *testing.T) {
	p := NewProgress(true, 0)
	p.Report(core.Event{Success: true})
	p.Report(core.Event{Success: false})
	p.Report(core.Event{Success: true})

	total, failed := p.Counts()
	assert.EqualValues(t, 3, total)
	assert.EqualValues(t, 1, failed)
}

func TestProgress_Line(t *testing.T) {
	p := NewProgress(false, 0)
	for range 4 {
		p.Report(core.Event{Success: true})
	}
	p.Report(core.Event{Success: false})

	line := p.line(65 * time.Second)
	for _, want := range []string{"[01:05]", "Iterations: 5", "Rate: 0.1/s", "Failed: 1 (20.0%)"} {
		assert.Contains(t, line, want)
	}
}

func TestProgress_PrintsWhileRunning(t *testing.T) {
	var buf core.SyncWriter
	p := NewProgress(false, 10*time.Millisecond)
	p.SetOutput(&buf)
	p.Report(core.Event{Success: true})

	p.Start()
	time.Sleep(50 * time.Millisecond)
	p.Stop()

	assert.True(t, buf.Contains("Iterations: 1"), "expected a status line, got %q", buf.String())
}

func TestProgress_QuietMode(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgress(true, time.Millisecond)
	p.SetOutput(&buf)

	p.Start()
	time.Sleep(10 * time.Millisecond)
	p.Print("hello")
	p.Stop()

	assert.Zero(t, buf.Len(), "expected no output in quiet mode, got %q", buf.String())
}

func TestProgress_DoubleStopAndStopWithoutStart(t *testing.T) {
	p := NewProgress(false, 0)
	p.SetOutput(&bytes.Buffer{})
	assert.NotPanics(t, func() {
		p.Stop()
		p.Stop()
	})

	started := NewProgress(false, time.Hour)
	started.SetOutput(&bytes.Buffer{})
	started.Start()
	assert.NotPanics(t, func() {
		started.Stop()
		started.Stop()
	})
}

func TestProgress_Print(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgress(false, 0)
	p.SetOutput(&buf)

	p.Printf("Benchmark: %s (%d workloads)", "checkout", 3)

	assert.Contains(t, buf.String(), "\033[K")
	assert.Contains(t, buf.String(), "Benchmark: checkout (3 workloads)\n")
}

func TestProgress_SetOutput(t *testing.T) {
	var buf1, buf2 bytes.Buffer
	p := NewProgress(false, 0)

	p.SetOutput(&buf1)
	p.Print("message1")
	p.SetOutput(&buf2)
	p.Print("message2")

	assert.Contains(t, buf1.String(), "message1")
	assert.NotContains(t, buf1.String(), "message2")
	assert.Contains(t, buf2.String(), "message2")
}
