package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/golabing/console/internal/models"
	appErrors "github.com/golabing/console/pkg/errors"
)

const (
	apiPath         = "/api/v1/"
	maxErrorBody    = 64 << 10
	fallbackMessage = "Something went wrong"
)

// UpstreamObserver records the outcome of backend calls.
type UpstreamObserver interface {
	ObserveUpstream(route string, status int, duration time.Duration)
}

// BackendOptions configures a BackendClient.
type BackendOptions struct {
	BaseURL          string
	Timeout          time.Duration
	BreakerFailures  int
	BreakerOpenFor   time.Duration
	BreakerHalfOpenN int
	HTTPClient       *http.Client
	Observer         UpstreamObserver
}

// BackendClient issues requests against the lab backend REST API through a
// circuit breaker. Only transport failures and 5xx replies count against the
// breaker.
type BackendClient struct {
	baseURL  string
	http     *http.Client
	breaker  *gobreaker.CircuitBreaker
	observer UpstreamObserver
	logger   *zap.Logger
}

// NewBackendClient constructs a backend client.
func NewBackendClient(opts BackendOptions, logger *zap.Logger) *BackendClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	failures := opts.BreakerFailures
	if failures <= 0 {
		failures = 5
	}
	openFor := opts.BreakerOpenFor
	if openFor <= 0 {
		openFor = 30 * time.Second
	}
	halfOpen := opts.BreakerHalfOpenN
	if halfOpen <= 0 {
		halfOpen = 3
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "lab-backend",
		MaxRequests: uint32(halfOpen),
		Interval:    10 * time.Second,
		Timeout:     openFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(failures)
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &BackendClient{
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		http:     httpClient,
		breaker:  breaker,
		observer: opts.Observer,
		logger:   logger,
	}
}

// Get starts a GET request. Path arguments are escaped and appended to route.
func (c *BackendClient) Get(route string, args ...string) *BackendRequest {
	return c.newRequest(http.MethodGet, route, args)
}

// Post starts a POST request.
func (c *BackendClient) Post(route string, args ...string) *BackendRequest {
	return c.newRequest(http.MethodPost, route, args)
}

// Put starts a PUT request.
func (c *BackendClient) Put(route string, args ...string) *BackendRequest {
	return c.newRequest(http.MethodPut, route, args)
}

// Delete starts a DELETE request.
func (c *BackendClient) Delete(route string, args ...string) *BackendRequest {
	return c.newRequest(http.MethodDelete, route, args)
}

// BreakerState exposes the breaker state for readiness checks.
func (c *BackendClient) BreakerState() gobreaker.State {
	return c.breaker.State()
}

func (c *BackendClient) newRequest(method, route string, args []string) *BackendRequest {
	endpoint := strings.Trim(route, "/")
	for _, arg := range args {
		endpoint += "/" + url.PathEscape(arg)
	}
	return &BackendRequest{client: c, method: method, route: route, endpoint: endpoint}
}

// BackendRequest is a request under construction.
type BackendRequest struct {
	client      *BackendClient
	method      string
	route       string
	endpoint    string
	headers     map[string]string
	params      url.Values
	cookies     []models.BackendCookie
	payload     interface{}
	body        []byte
	contentType string
	buildErr    error
}

// Header sets a request header.
func (r *BackendRequest) Header(key, value string) *BackendRequest {
	if r.headers == nil {
		r.headers = make(map[string]string)
	}
	r.headers[key] = value
	return r
}

// Param adds a query parameter.
func (r *BackendRequest) Param(key, value string) *BackendRequest {
	if r.params == nil {
		r.params = url.Values{}
	}
	r.params.Add(key, value)
	return r
}

// Cookies forwards the session's backend credentials.
func (r *BackendRequest) Cookies(cookies []models.BackendCookie) *BackendRequest {
	r.cookies = cookies
	return r
}

// JSON sets a JSON request body.
func (r *BackendRequest) JSON(payload interface{}) *BackendRequest {
	r.payload = payload
	return r
}

// Multipart sets a multipart/form-data body from plain fields.
func (r *BackendRequest) Multipart(fields map[string]string) *BackendRequest {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf := new(bytes.Buffer)
	writer := multipart.NewWriter(buf)
	for _, k := range keys {
		if err := writer.WriteField(k, fields[k]); err != nil {
			r.buildErr = fmt.Errorf("write multipart field %s: %w", k, err)
			return r
		}
	}
	if err := writer.Close(); err != nil {
		r.buildErr = fmt.Errorf("close multipart body: %w", err)
		return r
	}
	r.body = buf.Bytes()
	r.contentType = writer.FormDataContentType()
	return r
}

// BackendReply is a raw backend response.
type BackendReply struct {
	Status  int
	Body    []byte
	Cookies []*http.Cookie
}

// Do sends the request and decodes a successful reply into result.
func (r *BackendRequest) Do(ctx context.Context, result interface{}) error {
	_, err := r.Exchange(ctx, result)
	return err
}

// Exchange sends the request, decodes a successful reply into result and
// returns the raw reply so callers can read response cookies.
func (r *BackendRequest) Exchange(ctx context.Context, result interface{}) (*BackendReply, error) {
	reply, err := r.send(ctx)
	if err != nil {
		return nil, err
	}

	if reply.Status >= http.StatusBadRequest {
		return reply, r.statusError(reply)
	}

	var env envelope
	if len(bytes.TrimSpace(reply.Body)) > 0 {
		if err := json.Unmarshal(reply.Body, &env); err == nil && env.Success != nil && !*env.Success {
			return reply, appErrors.Wrap(
				&StatusError{Route: r.route, Status: reply.Status, Message: env.message()},
				appErrors.ErrUpstreamRejected.Code,
				appErrors.ErrUpstreamRejected.Status,
				env.message(),
			)
		}
	}

	if result != nil && len(bytes.TrimSpace(reply.Body)) > 0 {
		if err := json.Unmarshal(reply.Body, result); err != nil {
			return reply, appErrors.Wrap(
				fmt.Errorf("decode %s %s: %w", r.method, r.route, err),
				appErrors.ErrUpstream.Code,
				appErrors.ErrUpstream.Status,
				"lab service returned an unexpected response",
			)
		}
	}

	return reply, nil
}

func (r *BackendRequest) send(ctx context.Context) (*BackendReply, error) {
	if r.buildErr != nil {
		return nil, appErrors.Wrap(r.buildErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, appErrors.ErrInternal.Message)
	}

	c := r.client
	start := time.Now()
	out, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := r.build(ctx)
		if err != nil {
			return nil, err
		}
		res, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", r.method, r.route, err)
		}
		defer res.Body.Close()

		body, err := io.ReadAll(io.LimitReader(res.Body, 16<<20))
		if err != nil {
			return nil, fmt.Errorf("read %s %s: %w", r.method, r.route, err)
		}
		reply := &BackendReply{Status: res.StatusCode, Body: body, Cookies: res.Cookies()}
		if res.StatusCode >= http.StatusInternalServerError {
			return reply, &StatusError{Route: r.route, Status: res.StatusCode, Message: extractMessage(body)}
		}
		return reply, nil
	})
	duration := time.Since(start)

	reply, _ := out.(*BackendReply)
	status := 0
	if reply != nil {
		status = reply.Status
	}
	if c.observer != nil {
		c.observer.ObserveUpstream(r.route, status, duration)
	}
	c.logger.Debug("lab backend call",
		zap.String("method", r.method),
		zap.String("route", r.route),
		zap.Int("status", status),
		zap.Duration("duration", duration),
	)

	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) {
			message := appErrors.ErrUpstream.Message
			if statusErr.Message != fallbackMessage {
				message = statusErr.Message
			}
			return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, message)
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, http.StatusServiceUnavailable, "lab service is temporarily unavailable")
		}
		c.logger.Warn("lab backend unreachable", zap.String("route", r.route), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, appErrors.ErrUpstream.Message)
	}

	return reply, nil
}

func (r *BackendRequest) build(ctx context.Context) (*http.Request, error) {
	target := r.client.baseURL + apiPath + r.endpoint
	if len(r.params) > 0 {
		target += "?" + r.params.Encode()
	}

	var body io.Reader
	contentType := r.contentType
	switch {
	case r.payload != nil:
		encoded, err := json.Marshal(r.payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s body: %w", r.method, r.route, err)
		}
		body = bytes.NewReader(encoded)
		contentType = "application/json"
	case r.body != nil:
		body = bytes.NewReader(r.body)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build %s %s: %w", r.method, r.route, err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}
	for _, ck := range r.cookies {
		req.AddCookie(&http.Cookie{Name: ck.Name, Value: ck.Value})
	}
	return req, nil
}

func (r *BackendRequest) statusError(reply *BackendReply) error {
	message := extractMessage(reply.Body)
	cause := &StatusError{Route: r.route, Status: reply.Status, Message: message}

	switch reply.Status {
	case http.StatusUnauthorized:
		return appErrors.Wrap(cause, appErrors.ErrSessionExpired.Code, appErrors.ErrSessionExpired.Status, appErrors.ErrSessionExpired.Message)
	case http.StatusForbidden:
		return appErrors.Wrap(cause, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, message)
	case http.StatusNotFound:
		return appErrors.Wrap(cause, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, message)
	case http.StatusConflict:
		return appErrors.Wrap(cause, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, message)
	default:
		return appErrors.Wrap(cause, appErrors.ErrUpstreamRejected.Code, appErrors.ErrUpstreamRejected.Status, message)
	}
}

// StatusError is a non-success backend reply.
type StatusError struct {
	Route   string
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("lab backend %s returned %d: %s", e.Route, e.Status, e.Message)
}

// IsAuthFailure reports whether err carries a 401 or 403 backend reply.
func IsAuthFailure(err error) bool {
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		return false
	}
	return statusErr.Status == http.StatusUnauthorized || statusErr.Status == http.StatusForbidden
}

type envelope struct {
	Success *bool  `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (e envelope) message() string {
	if msg := strings.TrimSpace(e.Message); msg != "" {
		return msg
	}
	if msg := strings.TrimSpace(e.Error); msg != "" {
		return msg
	}
	return fallbackMessage
}

func extractMessage(body []byte) string {
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fallbackMessage
	}
	return env.message()
}
