package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	MethodGet  = http.MethodGet
	MethodPost = http.MethodPost

	maxErrorBody = 512
)

// ClientOption configures Client.
type ClientOption func(*Client)

// RequestOptions holds HTTP request parameters.
type RequestOptions struct {
	Method      string
	URL         string
	Headers     map[string]string
	QueryParams map[string][]string
	Body        interface{}
}

// StatusError is returned for a non-2xx response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

// Retryable reports whether the server asked the client to come back later.
func (e *StatusError) Retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code == http.StatusBadGateway ||
		e.Code == http.StatusServiceUnavailable || e.Code == http.StatusGatewayTimeout
}

// Client is a JSON HTTP client for the outbound APIs (FRED, chat completions).
// It retries throttled or unavailable responses and keeps secret query
// parameters out of error messages.
type Client struct {
	timeout    time.Duration
	userAgent  string
	maxRetries int
	backoff    time.Duration
	redact     []string
	client     *http.Client
}

// NewClient creates a new HTTP client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		timeout:   30 * time.Second,
		userAgent: "agentomics",
		backoff:   time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}

	c.client = &http.Client{Timeout: c.timeout}
	return c
}

// SendAndParse sends the request, retrying retryable statuses, and decodes a
// JSON response into dest. dest may also be *[]byte or an io.Writer.
func (c *Client) SendAndParse(ctx context.Context, opts *RequestOptions, dest interface{}) error {
	payload, err := encodeBody(opts.Body)
	if err != nil {
		return fmt.Errorf("create body: %w", err)
	}

	for attempt := 0; ; attempt++ {
		err = c.do(ctx, opts, payload, dest)
		var se *retryAfterError
		if !errors.As(err, &se) {
			return err
		}
		if attempt >= c.maxRetries {
			return se.StatusError
		}
		wait := se.wait
		if wait <= 0 {
			wait = c.backoff << attempt
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

// retryAfterError carries a retryable status and the server's Retry-After.
type retryAfterError struct {
	*StatusError
	wait time.Duration
}

func (c *Client) do(ctx context.Context, opts *RequestOptions, payload []byte, dest interface{}) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, opts.Method, opts.URL, body)
	if err != nil {
		return fmt.Errorf("new request: %w", c.scrub(err))
	}
	addQueryParams(req, opts.QueryParams)
	req.Header.Set("User-Agent", c.userAgent)
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}
	if payload != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", c.scrub(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		se := &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}
		if se.Retryable() {
			return &retryAfterError{StatusError: se, wait: retryAfter(resp.Header.Get("Retry-After"))}
		}
		return se
	}

	if dest == nil {
		return nil
	}
	switch v := dest.(type) {
	case *[]byte:
		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read body: %w", err)
		}
		*v = b
	case io.Writer:
		if _, err := io.Copy(v, resp.Body); err != nil {
			return fmt.Errorf("copy body: %w", err)
		}
	default:
		if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
			return fmt.Errorf("decode json: %w", err)
		}
	}
	return nil
}

// scrub blanks redacted query parameters in a *url.Error.
func (c *Client) scrub(err error) error {
	var ue *url.Error
	if len(c.redact) == 0 || !errors.As(err, &ue) {
		return err
	}
	u, perr := url.Parse(ue.URL)
	if perr != nil {
		return err
	}
	q := u.Query()
	for _, k := range c.redact {
		if q.Has(k) {
			q.Set(k, "REDACTED")
		}
	}
	u.RawQuery = q.Encode()
	return &url.Error{Op: ue.Op, URL: u.String(), Err: ue.Err}
}

func encodeBody(b interface{}) ([]byte, error) {
	switch v := b.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	case io.Reader:
		return io.ReadAll(v)
	default:
		return json.Marshal(v)
	}
}

func addQueryParams(req *http.Request, params map[string][]string) {
	if len(params) == 0 {
		return
	}
	q := req.URL.Query()
	for key, values := range params {
		for _, value := range values {
			q.Add(key, value)
		}
	}
	req.URL.RawQuery = q.Encode()
}

// retryAfter parses a Retry-After header given in seconds.
func retryAfter(h string) time.Duration {
	if h == "" {
		return 0
	}
	if s, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && s >= 0 {
		return time.Duration(s) * time.Second
	}
	return 0
}

// WithTimeout sets client timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithRetry retries 429/502/503/504 up to max times. Without a Retry-After
// header the wait doubles from backoff.
func WithRetry(max int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		c.maxRetries = max
		c.backoff = backoff
	}
}

// WithRedactedParams hides the given query parameters in transport errors.
func WithRedactedParams(keys ...string) ClientOption {
	return func(c *Client) {
		c.redact = append(c.redact, keys...)
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		c.userAgent = ua
	}
}
