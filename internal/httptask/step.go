// Package httptask provides a task factory whose tasks run a sequence of
// HTTP requests per iteration. Values extracted from responses are stored on
// the slot scope and feed the placeholders of later requests.
package httptask

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"benchlab/internal/scope"
	"benchlab/internal/template"
)

const (
	// maxDebugBodySize limits the response body read for debug logging.
	maxDebugBodySize = 4096
	// maxExtractBodySize limits the response body read for extraction.
	maxExtractBodySize = 10 * 1024 * 1024
)

// StatusKey is the slot scope key holding the status code of the last response.
const StatusKey = "status"

// Step describes one HTTP request. URL, headers and body may contain
// ${...} placeholders resolved against the slot scope.
type Step struct {
	Name    string            `yaml:"name"`
	Method  string            `yaml:"method"`
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers"`
	Body    string            `yaml:"body"`
	Extract map[string]string `yaml:"extract"`
}

// Validate checks the parts of a step that cannot depend on placeholders.
func (s Step) Validate() error {
	var errs []error
	if s.URL == "" {
		errs = append(errs, errors.New("url is required"))
	}
	if s.Method != "" && strings.ContainsAny(s.Method, " \t") {
		errs = append(errs, fmt.Errorf("invalid method %q", s.Method))
	}
	return errors.Join(errs...)
}

// StepError is returned when a step fails. Status is zero when no response
// was received.
type StepError struct {
	Step   string
	Status int
	Err    error
}

func (e *StepError) Error() string { return fmt.Sprintf("step %q: %v", e.Step, e.Err) }

func (e *StepError) Unwrap() error { return e.Err }

type step struct {
	Step
	client *http.Client
	debug  *DebugLogger
}

func (s *step) execute(ctx context.Context, slot int, sc *scope.Scope) error {
	start := time.Now()
	fail := func(status int, err error) error {
		s.debug.LogError(slot, s.Name, err, time.Since(start))
		return &StepError{Step: s.Name, Status: status, Err: err}
	}

	url, err := template.Substitute(s.URL, sc)
	if err != nil {
		return fail(0, fmt.Errorf("url: %w", err))
	}
	body, err := template.Substitute(s.Body, sc)
	if err != nil {
		return fail(0, fmt.Errorf("body: %w", err))
	}
	headers, err := template.SubstituteMap(s.Headers, sc)
	if err != nil {
		return fail(0, fmt.Errorf("headers: %w", err))
	}

	method := s.Method
	if method == "" {
		method = http.MethodGet
	}
	req, err := http.NewRequestWithContext(ctx, method, url, strings.NewReader(body))
	if err != nil {
		return fail(0, err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	s.debug.LogRequest(slot, s.Name, req)

	resp, err := s.client.Do(req)
	if err != nil {
		return fail(0, err)
	}
	defer resp.Body.Close()

	var respBody []byte
	if len(s.Extract) > 0 || s.debug != nil {
		limit := int64(maxDebugBodySize)
		if len(s.Extract) > 0 {
			limit = maxExtractBodySize
		}
		respBody, _ = io.ReadAll(io.LimitReader(resp.Body, limit))
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	debugBody := respBody
	if len(debugBody) > maxDebugBodySize {
		debugBody = debugBody[:maxDebugBodySize]
	}
	s.debug.LogResponse(slot, s.Name, resp, debugBody, time.Since(start))

	sc.Set(StatusKey, resp.StatusCode)
	if resp.StatusCode >= 400 {
		return &StepError{Step: s.Name, Status: resp.StatusCode, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}
	if err := template.Extract(respBody, s.Extract, sc); err != nil {
		return &StepError{Step: s.Name, Status: resp.StatusCode, Err: fmt.Errorf("extract: %w", err)}
	}
	return nil
}
