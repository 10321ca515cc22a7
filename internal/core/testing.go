package core

import (
	"strings"
	"sync"
)

// SyncWriter is a thread-safe io.Writer that captures output, used as a
// benchmark log stream in tests.
type SyncWriter struct {
	mu   sync.Mutex
	data []byte
}

func (w *SyncWriter) Write(p []byte) (n int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.data = append(w.data, p...)
	return len(p), nil
}

func (w *SyncWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return string(w.data)
}

// Contains reports whether the captured output contains substr.
func (w *SyncWriter) Contains(substr string) bool {
	return strings.Contains(w.String(), substr)
}
