// Package production serves the trailing 12-month production and
// consumption settlement data from Energi Data Service through a
// two-level read-through cache.
package production

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"

	"github.com/kaancat/elportal-forside-design-sub009/internal/upstream"
)

// ServiceName labels upstream metrics and errors.
const ServiceName = "energidataservice"

// Circuit breaker settings.
const (
	breakerFailures = 5
	breakerTimeout  = 30 * time.Second
)

// ErrInvalidPayload is returned when the upstream answers 2xx with non-JSON.
var ErrInvalidPayload = errors.New("production: upstream returned invalid JSON")

// Fetcher loads the raw upstream payload for a date range.
type Fetcher interface {
	Fetch(ctx context.Context, start, end string) ([]byte, error)
}

// Client fetches settlement data with retries behind a circuit breaker.
type Client struct {
	baseURL string
	caller  *upstream.Caller
	breaker *gobreaker.CircuitBreaker[[]byte]
}

// NewClient creates a client for the dataset at baseURL.
func NewClient(baseURL string, caller *upstream.Caller, logger *slog.Logger) *Client {
	logger = logger.With("component", "production.client")
	return &Client{
		baseURL: baseURL,
		caller:  caller,
		breaker: gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
			Name:        ServiceName,
			MaxRequests: 1,
			Timeout:     breakerTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= breakerFailures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("circuit breaker state change",
					"breaker", name,
					"from", from.String(),
					"to", to.String(),
				)
			},
		}),
	}
}

// Fetch returns the dataset rows between start and end (YYYY-MM-DD).
func (c *Client) Fetch(ctx context.Context, start, end string) ([]byte, error) {
	return c.breaker.Execute(func() ([]byte, error) {
		body, err := c.caller.Do(ctx, func(ctx context.Context) (*http.Request, error) {
			return c.newRequest(ctx, start, end)
		})
		if err != nil {
			return nil, err
		}
		if !json.Valid(body) {
			return nil, ErrInvalidPayload
		}
		return body, nil
	})
}

func (c *Client) newRequest(ctx context.Context, start, end string) (*http.Request, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse production url: %w", err)
	}
	q := u.Query()
	q.Set("start", start)
	q.Set("end", end)
	q.Set("sort", "HourDK ASC")
	q.Set("limit", "0")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// Window returns the trailing 12-month range ending on now's UTC date.
func Window(now time.Time) (start, end string) {
	today := now.UTC()
	return today.AddDate(-1, 0, 0).Format("2006-01-02"), today.Format("2006-01-02")
}
