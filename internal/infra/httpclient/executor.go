package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/getodk/briefcase-sub006/internal/domain"
)

// ResponseData captures the response details and duration.
type ResponseData struct {
	Status    int
	Headers   http.Header
	BodyBytes []byte
	Duration  time.Duration
}

// Executor executes HTTP requests with timing.
type Executor struct {
	client  *http.Client
	timeout time.Duration

	mu      sync.Mutex
	digests map[[2]string]*http.Client
}

// ExecutorOption allows configuring an Executor.
type ExecutorOption func(*Executor)

// WithTimeout sets the default timeout applied to requests.
func WithTimeout(timeout time.Duration) ExecutorOption {
	return func(e *Executor) { e.timeout = timeout }
}

// WithClient sets a custom HTTP client.
func WithClient(client *http.Client) ExecutorOption {
	return func(e *Executor) { e.client = client }
}

// NewExecutor builds an Executor with a default client and timeout.
func NewExecutor(opts ...ExecutorOption) *Executor {
	cfg := DefaultConfig()
	e := &Executor{
		client:  New(cfg),
		timeout: cfg.Timeout,
		digests: map[[2]string]*http.Client{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Do executes the request and returns response data plus duration.
func (e *Executor) Do(ctx context.Context, req *http.Request) (ResponseData, error) {
	return e.do(ctx, e.client, req)
}

func (e *Executor) do(ctx context.Context, client *http.Client, req *http.Request) (ResponseData, error) {
	start := time.Now()
	ctxWithTimeout := ctx
	cancel := func() {}
	if e.timeout > 0 {
		ctxWithTimeout, cancel = context.WithTimeout(ctx, e.timeout)
	}
	defer cancel()

	resp, err := client.Do(req.WithContext(ctxWithTimeout))
	duration := time.Since(start)
	if err != nil {
		return ResponseData{Duration: duration}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return ResponseData{Duration: duration}, err
	}

	return ResponseData{
		Status:    resp.StatusCode,
		Headers:   resp.Header.Clone(),
		BodyBytes: body,
		Duration:  duration,
	}, nil
}

// Send builds spec, executes it with the right authentication and maps the
// outcome onto the engine's error kinds:
//
//	transport failure → network
//	401, 403          → authentication
//	404               → not_found
//	409               → already_exists
//	other non-2xx     → protocol
//
// The response is returned alongside status errors so callers can inspect it.
func (e *Executor) Send(ctx context.Context, spec domain.RequestSpec) (ResponseData, error) {
	req, err := BuildRequest(ctx, spec)
	if err != nil {
		return ResponseData{}, err
	}

	client := e.client
	if spec.Auth.Type == domain.AuthDigest {
		client = e.digestClient(spec.Auth.Username, spec.Auth.Password)
	}

	resp, err := e.do(ctx, client, req)
	if err != nil {
		return resp, domain.NetworkError(spec.Name, spec.URL, err)
	}
	return resp, classifyStatus(spec, resp)
}

func (e *Executor) digestClient(username, password string) *http.Client {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.digests == nil {
		e.digests = map[[2]string]*http.Client{}
	}
	k := [2]string{username, password}
	if c, ok := e.digests[k]; ok {
		return c
	}
	c := WithDigest(e.client, username, password)
	e.digests[k] = c
	return c
}

// StatusError describes an unexpected HTTP status.
type StatusError struct {
	Status int
	Body   string
}

func (s *StatusError) Error() string {
	if s.Body == "" {
		return fmt.Sprintf("unexpected status %d", s.Status)
	}
	return fmt.Sprintf("unexpected status %d: %s", s.Status, s.Body)
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status
	}
	return 0
}

const maxErrorBody = 512

func classifyStatus(spec domain.RequestSpec, resp ResponseData) error {
	if resp.Status >= 200 && resp.Status < 300 {
		return nil
	}

	body := string(resp.BodyBytes)
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	se := &StatusError{Status: resp.Status, Body: body}

	switch resp.Status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return domain.AuthError(spec.Name, spec.URL, fmt.Errorf("%w: %w", domain.ErrUnauthorized, se))
	case http.StatusNotFound:
		return &domain.OpError{Op: spec.Name, Kind: domain.KindNotFound, Path: spec.URL, Err: se}
	case http.StatusConflict:
		return &domain.OpError{Op: spec.Name, Kind: domain.KindAlreadyExists, Path: spec.URL, Err: se}
	default:
		return domain.ProtocolError(spec.Name, spec.URL, se)
	}
}
