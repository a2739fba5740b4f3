// Package transport implements the JSON-over-HTTP plumbing shared by the
// billing and library clients: per-call deadlines, circuit breaking, retries
// for idempotent calls, and classification of every failure as a remote call
// failure.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/campus-ledger/student-service/internal/domain/shared"
	"github.com/campus-ledger/student-service/pkg/circuitbreaker"
	"github.com/campus-ledger/student-service/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config contains configuration for a remote service client.
type Config struct {
	// Service names the remote system in errors and logs ("billing", "library").
	Service string

	// BaseURL is the service base URL without a trailing slash.
	BaseURL string

	// Timeout bounds every single call, retries included.
	Timeout time.Duration

	// Retrier is applied to idempotent requests only. Nil means one attempt.
	Retrier *retry.Retrier

	// Breaker guards every request. Nil disables circuit breaking.
	Breaker *circuitbreaker.CircuitBreaker

	// HTTPClient overrides the default client (tests).
	HTTPClient *http.Client

	// Logger for structured logging
	Logger *slog.Logger

	// Debug enables request logging
	Debug bool
}

// DefaultConfig returns sensible defaults.
func DefaultConfig(service, baseURL string) Config {
	return Config{
		Service: service,
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
		Retrier: retry.NoRetry(),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

// Error describes a failed remote call. Every Error matches
// shared.ErrRemoteCallFailed; a 404 additionally matches shared.ErrNotFound
// and a deadline matches shared.ErrTimeout.
type Error struct {
	Service    string
	Method     string
	Path       string
	StatusCode int    // 0 for transport-level failures
	Message    string // remote error text or failure description
	Err        error  // underlying cause (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %s", e.Service, e.Method, e.Path)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": status %d", e.StatusCode)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is implements errors.Is() matching.
func (e *Error) Is(target error) bool {
	switch target {
	case shared.ErrRemoteCallFailed:
		return true
	case shared.ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case shared.ErrTimeout:
		return errors.Is(e.Err, context.DeadlineExceeded) || isNetTimeout(e.Err)
	}
	return false
}

// IsServerSide reports whether the failure says something about remote health:
// transport errors, timeouts, 5xx, 429 and unparseable bodies. Such failures
// trip the breaker and are retried; other 4xx responses are not.
func (e *Error) IsServerSide() bool {
	return e.StatusCode == 0 ||
		e.StatusCode >= http.StatusInternalServerError ||
		e.StatusCode == http.StatusTooManyRequests
}

// StatusCode extracts the HTTP status of a remote error, or 0.
func StatusCode(err error) int {
	var remoteErr *Error
	if errors.As(err, &remoteErr) {
		return remoteErr.StatusCode
	}
	return 0
}

func isNetTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Request describes one JSON call.
type Request struct {
	Method string
	Path   string
	Body   any // marshaled as JSON when non-nil
	Result any // unmarshaled from the response body when non-nil

	// Idempotent requests go through the retrier.
	Idempotent bool
}

// Client performs JSON requests against one remote service.
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a new remote service client.
func New(config Config) *Client {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if config.Retrier == nil {
		config.Retrier = retry.NoRetry()
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &Client{
		config:     config,
		httpClient: httpClient,
		logger:     config.Logger.With("service", config.Service),
	}
}

// Service returns the remote service name.
func (c *Client) Service() string {
	return c.config.Service
}

// BreakerState returns the circuit state, or closed when no breaker is set.
func (c *Client) BreakerState() circuitbreaker.State {
	if c.config.Breaker == nil {
		return circuitbreaker.StateClosed
	}
	return c.config.Breaker.State()
}

// Do performs the request with a bounded deadline. The returned error, if
// any, always matches shared.ErrRemoteCallFailed.
func (c *Client) Do(ctx context.Context, req Request) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	call := func(ctx context.Context) error {
		if !req.Idempotent {
			return c.doSingleRequest(ctx, req)
		}
		return c.config.Retrier.Do(ctx, func(ctx context.Context) error {
			err := c.doSingleRequest(ctx, req)
			var remoteErr *Error
			if errors.As(err, &remoteErr) && remoteErr.IsServerSide() && ctx.Err() == nil {
				return retry.Retryable(err)
			}
			return err
		})
	}

	var err error
	if c.config.Breaker != nil {
		err = c.config.Breaker.Execute(ctx, call)
	} else {
		err = call(ctx)
	}
	if err == nil {
		return nil
	}

	var remoteErr *Error
	if errors.As(err, &remoteErr) {
		return remoteErr
	}
	// Circuit open or context ended before a request went out.
	return &Error{
		Service: c.config.Service,
		Method:  req.Method,
		Path:    req.Path,
		Err:     err,
	}
}

// doSingleRequest performs a single HTTP request.
func (c *Client) doSingleRequest(ctx context.Context, req Request) error {
	fail := func(status int, msg string, cause error) *Error {
		return &Error{
			Service:    c.config.Service,
			Method:     req.Method,
			Path:       req.Path,
			StatusCode: status,
			Message:    msg,
			Err:        cause,
		}
	}

	var bodyReader io.Reader
	if req.Body != nil {
		jsonBody, err := json.Marshal(req.Body)
		if err != nil {
			return fail(0, "marshal body", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.config.BaseURL+req.Path, bodyReader)
	if err != nil {
		return fail(0, "create request", err)
	}

	httpReq.Header.Set("Accept", "application/json")
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if id := RequestIDFromContext(ctx); id != "" {
		httpReq.Header.Set("X-Request-ID", id)
	}

	if c.config.Debug {
		c.logger.Debug("remote request", "method", req.Method, "path", req.Path)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fail(0, "http request", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fail(resp.StatusCode, "read response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fail(resp.StatusCode, remoteMessage(respBody), nil)
	}

	if req.Result != nil {
		if len(bytes.TrimSpace(respBody)) == 0 {
			return fail(0, "empty response body", nil)
		}
		if err := json.Unmarshal(respBody, req.Result); err != nil {
			return fail(0, "malformed response body", err)
		}
	}

	return nil
}

// remoteMessage extracts a short error text from an error response body.
func remoteMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}

	return truncate(strings.TrimSpace(string(body)), maxRemoteMessage)
}

// maxRemoteMessage caps the error text kept from a response body, in bytes.
const maxRemoteMessage = 200

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST CORRELATION
// ══════════════════════════════════════════════════════════════════════════════

type requestIDKey struct{}

// ContextWithRequestID attaches a correlation id that is forwarded to remote
// services as X-Request-ID.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the correlation id, or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// BreakerFailure is the circuitbreaker failure predicate for remote calls:
// only server-side failures count.
func BreakerFailure(err error) bool {
	var remoteErr *Error
	if errors.As(err, &remoteErr) {
		return remoteErr.IsServerSide()
	}
	return err != nil
}
