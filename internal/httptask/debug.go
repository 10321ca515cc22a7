package httptask

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"
)

const maxBodyLogSize = 1024

// DebugLogger dumps requests and responses of HTTP steps. A nil
// *DebugLogger logs nothing.
type DebugLogger struct {
	logger *slog.Logger
}

func NewDebugLogger(logger *slog.Logger) *DebugLogger {
	return &DebugLogger{logger: logger.With("component", "httptask")}
}

func (d *DebugLogger) LogRequest(slot int, step string, req *http.Request) {
	if d == nil {
		return
	}
	attrs := []any{"slot", slot, "step", step, "method", req.Method, "url", req.URL.String()}
	if len(req.Header) > 0 {
		attrs = append(attrs, "headers", headerString(req.Header))
	}
	if req.GetBody != nil {
		if rc, err := req.GetBody(); err == nil {
			body, _ := io.ReadAll(rc)
			rc.Close()
			if len(body) > 0 {
				attrs = append(attrs, "body", truncateBody(body))
			}
		}
	} else if req.Body != nil && req.Body != http.NoBody {
		body, err := io.ReadAll(req.Body)
		if err == nil {
			req.Body = io.NopCloser(bytes.NewReader(body))
			if len(body) > 0 {
				attrs = append(attrs, "body", truncateBody(body))
			}
		}
	}
	d.logger.Debug("request", attrs...)
}

func (d *DebugLogger) LogResponse(slot int, step string, resp *http.Response, body []byte, elapsed time.Duration) {
	if d == nil {
		return
	}
	attrs := []any{
		"slot", slot, "step", step,
		"status", resp.StatusCode,
		"elapsed", elapsed.Round(time.Millisecond),
	}
	if len(resp.Header) > 0 {
		attrs = append(attrs, "headers", headerString(resp.Header))
	}
	if len(body) > 0 {
		attrs = append(attrs, "body", truncateBody(body))
	}
	d.logger.Debug("response", attrs...)
}

func (d *DebugLogger) LogError(slot int, step string, err error, elapsed time.Duration) {
	if d == nil {
		return
	}
	d.logger.Debug("step failed", "slot", slot, "step", step,
		"elapsed", elapsed.Round(time.Millisecond), "error", err)
}

func headerString(h http.Header) string {
	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = name + ": " + strings.Join(h[name], ", ")
	}
	return strings.Join(parts, "; ")
}

func truncateBody(body []byte) string {
	if len(body) <= maxBodyLogSize {
		return string(body)
	}
	return string(body[:maxBodyLogSize]) + fmt.Sprintf("... (truncated, %d bytes total)", len(body))
}
