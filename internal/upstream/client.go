// Package upstream provides the HTTP plumbing shared by third-party API
// clients: tuned transport, typed status errors and bounded retries.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/kaancat/elportal-forside-design-sub009/internal/metrics"
)

const (
	// ClientTimeout is the total request timeout.
	ClientTimeout = 30 * time.Second
	// DialTimeout is the connection timeout.
	DialTimeout = 10 * time.Second
	// TLSHandshakeTimeout is the TLS negotiation timeout.
	TLSHandshakeTimeout = 10 * time.Second
	// ResponseHeaderTimeout is time to wait for response headers.
	ResponseHeaderTimeout = 20 * time.Second

	// maxBodyBytes caps how much of a response body is read.
	maxBodyBytes = 32 << 20
	// maxErrorBody caps the body kept on an Error.
	maxErrorBody = 2048

	userAgent = "dinelportal-tracking/1.0"
)

// NewHTTPClient creates an HTTP client for upstream APIs.
// It has bounded timeouts and does not follow redirects.
func NewHTTPClient() *http.Client {
	return &http.Client{
		Timeout: ClientTimeout,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   DialTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   TLSHandshakeTimeout,
			ResponseHeaderTimeout: ResponseHeaderTimeout,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// Error is a non-2xx upstream response.
type Error struct {
	Service string
	Status  int
	Body    string // truncated
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: upstream status %d", e.Service, e.Status)
}

// StatusOf returns the upstream status carried by err, or 0.
func StatusOf(err error) int {
	var ue *Error
	if errors.As(err, &ue) {
		return ue.Status
	}
	return 0
}

// Caller issues requests against one upstream service.
type Caller struct {
	Service string
	Client  *http.Client
	Retry   RetryPolicy
	Metrics metrics.Recorder
	Logger  *slog.Logger
}

// NewCaller creates a Caller with the default client and retry policy.
func NewCaller(service string, logger *slog.Logger, recorder metrics.Recorder) *Caller {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Caller{
		Service: service,
		Client:  NewHTTPClient(),
		Retry:   DefaultRetryPolicy(),
		Metrics: recorder,
		Logger:  logger.With("component", "upstream."+service),
	}
}

// Do sends the request built by newReq and returns the response body.
// newReq is invoked once per attempt. Only statuses accepted by the retry
// policy are retried; transport errors and other statuses fail at once.
// When attempts run out the last error is returned.
func (c *Caller) Do(ctx context.Context, newReq func(ctx context.Context) (*http.Request, error)) ([]byte, error) {
	attempts := c.Retry.attempts()

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		body, err := c.once(ctx, newReq)
		if err == nil {
			c.Metrics.IncUpstreamAttempt(c.Service, "success")
			return body, nil
		}
		lastErr = err

		status := StatusOf(err)
		if status == 0 || !c.Retry.retryable(status) || attempt == attempts {
			c.Metrics.IncUpstreamAttempt(c.Service, "error")
			return nil, lastErr
		}

		delay := c.Retry.Delay(attempt)
		c.Metrics.IncUpstreamAttempt(c.Service, "retry")
		c.Logger.Warn("upstream request failed, retrying",
			"status", status,
			"attempt", attempt,
			"delay", delay,
		)
		if err := c.Retry.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

func (c *Caller) once(ctx context.Context, newReq func(ctx context.Context) (*http.Request, error)) ([]byte, error) {
	req, err := newReq(ctx)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", c.Service, err)
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", userAgent)
	}

	start := time.Now()
	resp, err := c.Client.Do(req)
	c.Metrics.ObserveUpstreamDuration(c.Service, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", c.Service, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", c.Service, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return nil, &Error{Service: c.Service, Status: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}
