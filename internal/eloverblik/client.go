// Package eloverblik proxies consumption data from the Eloverblik
// metering API (customer and third-party variants).
package eloverblik

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/kaancat/elportal-forside-design-sub009/internal/kv"
	"github.com/kaancat/elportal-forside-design-sub009/internal/upstream"
)

// ServiceName labels upstream metrics and errors.
const ServiceName = "eloverblik"

// API variants.
const (
	CustomerAPI   = "customerapi"
	ThirdPartyAPI = "thirdpartyapi"
)

const (
	// BatchSize is the upstream limit of metering points per call.
	BatchSize = 10

	thirdPartyTokenKey = "eloverblik:thirdparty:access_token"
	thirdPartyTokenTTL = 23 * time.Hour

	// Eloverblik allows roughly 120 calls per minute per client.
	requestsPerSecond = 2
	requestBurst      = 2
)

// ErrNotConfigured is returned for third-party calls without a server refresh token.
var ErrNotConfigured = errors.New("eloverblik: third-party refresh token not configured")

// Client calls the Eloverblik API.
type Client struct {
	baseURL           string
	caller            *upstream.Caller
	limiter           *rate.Limiter
	store             kv.Store
	thirdPartyRefresh string
	logger            *slog.Logger
}

// NewClient creates a client. store caches third-party access tokens.
func NewClient(baseURL, thirdPartyRefresh string, caller *upstream.Caller, store kv.Store, logger *slog.Logger) *Client {
	return &Client{
		baseURL:           baseURL,
		caller:            caller,
		limiter:           rate.NewLimiter(rate.Limit(requestsPerSecond), requestBurst),
		store:             store,
		thirdPartyRefresh: thirdPartyRefresh,
		logger:            logger.With("component", "eloverblik.client"),
	}
}

// CustomerConsumption fetches time series with the caller's refresh token.
func (c *Client) CustomerConsumption(ctx context.Context, req ConsumptionRequest) (*Result, error) {
	token, err := c.accessToken(ctx, CustomerAPI, req.RefreshToken)
	if err != nil {
		return nil, err
	}
	return c.timeSeries(ctx, CustomerAPI, token, req.MeteringPoints, req.DateFrom, req.DateTo, req.Aggregation)
}

// ThirdPartyConsumption fetches time series with the server's refresh token.
// Access tokens are cached in the KV store.
func (c *Client) ThirdPartyConsumption(ctx context.Context, req ThirdPartyRequest) (*Result, error) {
	if c.thirdPartyRefresh == "" {
		return nil, ErrNotConfigured
	}

	token, err := c.cachedThirdPartyToken(ctx)
	if err != nil {
		return nil, err
	}

	res, err := c.timeSeries(ctx, ThirdPartyAPI, token, req.MeteringPointIDs, req.DateFrom, req.DateTo, req.Aggregation)
	if upstream.StatusOf(err) == http.StatusUnauthorized {
		// Cached token revoked early; a fresh one is fetched next time.
		if delErr := c.store.Delete(ctx, thirdPartyTokenKey); delErr != nil {
			c.logger.Warn("failed to drop cached token", "error", delErr)
		}
	}
	return res, err
}

func (c *Client) cachedThirdPartyToken(ctx context.Context) (string, error) {
	cached, err := c.store.Get(ctx, thirdPartyTokenKey)
	switch {
	case err == nil:
		return string(cached), nil
	case err != nil && !errors.Is(err, kv.ErrNotFound):
		c.logger.Warn("token cache read failed", "error", err)
	}

	token, err := c.accessToken(ctx, ThirdPartyAPI, c.thirdPartyRefresh)
	if err != nil {
		return "", err
	}
	if err := c.store.Set(ctx, thirdPartyTokenKey, []byte(token), thirdPartyTokenTTL); err != nil {
		c.logger.Warn("token cache write failed", "error", err)
	}
	return token, nil
}

func (c *Client) accessToken(ctx context.Context, api, refreshToken string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	body, err := c.caller.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+api+"/api/token", nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+refreshToken)
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
	if err != nil {
		return "", fmt.Errorf("get access token: %w", err)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil || tr.Result == "" {
		return "", fmt.Errorf("get access token: malformed response")
	}
	return tr.Result, nil
}

func (c *Client) timeSeries(ctx context.Context, api, token string, points []string, from, to, aggregation string) (*Result, error) {
	url := fmt.Sprintf("%s/%s/api/meterdata/gettimeseries/%s/%s/%s", c.baseURL, api, from, to, aggregation)

	batches := Batch(points, BatchSize)
	res := &Result{Result: []json.RawMessage{}, MeteringPoints: len(points), Batches: len(batches)}

	for i, batch := range batches {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		payload, err := json.Marshal(timeSeriesRequest{MeteringPoints: meteringPointList{MeteringPoint: batch}})
		if err != nil {
			return nil, fmt.Errorf("marshal batch: %w", err)
		}

		body, err := c.caller.Do(ctx, func(ctx context.Context) (*http.Request, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
			if err != nil {
				return nil, err
			}
			req.Header.Set("Authorization", "Bearer "+token)
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Accept", "application/json")
			return req, nil
		})
		if err != nil {
			return nil, fmt.Errorf("batch %d/%d: %w", i+1, len(batches), err)
		}

		var ts timeSeriesResponse
		if err := json.Unmarshal(body, &ts); err != nil {
			return nil, fmt.Errorf("decode batch %d/%d: %w", i+1, len(batches), err)
		}
		res.Result = append(res.Result, ts.Result...)
	}

	c.logger.Debug("consumption fetched",
		"api", api,
		"metering_points", len(points),
		"batches", len(batches),
	)
	return res, nil
}
