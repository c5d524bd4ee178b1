package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Common errors.
var (
	ErrNotFound     = errors.New("http: resource not found")
	ErrForbidden    = errors.New("http: access forbidden")
	ErrUnauthorized = errors.New("http: unauthorized")
	ErrServerError  = errors.New("http: server error")
	ErrStatus       = errors.New("http: unexpected status")
)

// Options configures the HTTP client.
type Options struct {
	// MaxIdleConnsPerHost sets the maximum idle connections per host.
	// Default: 100
	MaxIdleConnsPerHost int

	// Timeout bounds one attempt, from sending the request until the body
	// has been fully read or closed.
	// Default: 10s
	Timeout time.Duration

	// RequestsPerSecond caps the request rate across all callers.
	// Zero disables the limit.
	RequestsPerSecond float64

	// UserAgent is sent with every request.
	UserAgent string
}

// DefaultOptions returns options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		MaxIdleConnsPerHost: 100,
		Timeout:             10 * time.Second,
		UserAgent:           "gridcore",
	}
}

// Response is the body of a successful GET.
type Response struct {
	Body          io.ReadCloser
	ContentLength int64
}

// Client performs single-attempt GET requests. Retrying is left to callers.
type Client struct {
	client  *http.Client
	opts    Options
	limiter *rate.Limiter
}

// NewClient creates a new HTTP client with the given options.
func NewClient(opts Options) *Client {
	if opts.MaxIdleConnsPerHost <= 0 {
		opts.MaxIdleConnsPerHost = DefaultOptions().MaxIdleConnsPerHost
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultOptions().Timeout
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConnsPerHost: opts.MaxIdleConnsPerHost,
		MaxIdleConns:        opts.MaxIdleConnsPerHost * 2,
		IdleConnTimeout:     90 * time.Second,
	}

	c := &Client{
		client: &http.Client{Transport: transport},
		opts:   opts,
	}
	if opts.RequestsPerSecond > 0 {
		burst := int(opts.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}
	return c
}

// Timeout returns the per-attempt timeout.
func (c *Client) Timeout() time.Duration {
	return c.opts.Timeout
}

// Get performs one GET request. The attempt, including reading the body,
// is bounded by the configured timeout; callers must close the body.
// Non-success statuses are returned as errors.
func (c *Client) Get(ctx context.Context, url string) (*Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("create request: %w", err)
	}
	if c.opts.UserAgent != "" {
		req.Header.Set("User-Agent", c.opts.UserAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		cancel()
		return nil, err
	}

	if err := checkStatusCode(resp.StatusCode); err != nil {
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}

	return &Response{
		Body:          &cancelBody{ReadCloser: resp.Body, cancel: cancel},
		ContentLength: resp.ContentLength,
	}, nil
}

// cancelBody releases the attempt's timeout when the body is closed.
type cancelBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelBody) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}

// checkStatusCode returns an appropriate error for non-success status codes.
func checkStatusCode(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusForbidden:
		return ErrForbidden
	case code == http.StatusUnauthorized:
		return ErrUnauthorized
	case code >= 500:
		return fmt.Errorf("%w: %d", ErrServerError, code)
	default:
		return fmt.Errorf("%w: %d", ErrStatus, code)
	}
}
