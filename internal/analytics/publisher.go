// Package analytics streams stored clicks into the Postgres archive.
package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/kaancat/elportal-forside-design-sub009/internal/metrics"
	"github.com/kaancat/elportal-forside-design-sub009/internal/model"
)

const (
	// StreamKey is the Redis stream for archived clicks.
	StreamKey = "stream:clicks"

	// DeadLetterStreamKey receives messages the worker cannot parse.
	DeadLetterStreamKey = "stream:clicks:dlq"

	// MaxStreamLen is the approximate max length of the stream.
	MaxStreamLen = 100000

	// PublishTimeout bounds a single asynchronous publish.
	PublishTimeout = 100 * time.Millisecond
)

// ClickPayload is the compact stream encoding of a click.
type ClickPayload struct {
	ClickID     string          `json:"cid"`
	PartnerID   string          `json:"pid"`
	Timestamp   int64           `json:"t"` // epoch ms
	Source      json.RawMessage `json:"src,omitempty"`
	Consumption *float64        `json:"kwh,omitempty"`
	Region      string          `json:"reg,omitempty"`
	PageURL     string          `json:"url,omitempty"`
}

// PayloadFromEvent flattens a stored click into its stream payload.
func PayloadFromEvent(event model.ClickEvent) ClickPayload {
	p := ClickPayload{
		ClickID:   event.ClickID,
		PartnerID: event.PartnerID,
		Timestamp: event.Timestamp,
		Source:    event.Source,
		PageURL:   truncate(event.PageURL, maxPageURLLength),
	}
	if event.Metadata != nil {
		p.Consumption = event.Metadata.Consumption
		p.Region = event.Metadata.Region
	}
	return p
}

// Publisher appends clicks to the archive stream.
type Publisher struct {
	redis   *redis.Client
	logger  *slog.Logger
	metrics metrics.Recorder
}

// NewPublisher creates a new archive publisher.
func NewPublisher(client *redis.Client, logger *slog.Logger, recorder metrics.Recorder) *Publisher {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Publisher{
		redis:   client,
		logger:  logger.With("component", "analytics.publisher"),
		metrics: recorder,
	}
}

// Publish adds a click to the stream synchronously and returns the entry ID.
func (p *Publisher) Publish(ctx context.Context, event model.ClickEvent) (string, error) {
	data, err := json.Marshal(PayloadFromEvent(event))
	if err != nil {
		return "", fmt.Errorf("marshal click: %w", err)
	}

	id, err := p.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey,
		MaxLen: MaxStreamLen,
		Approx: true,
		ID:     "*",
		Values: map[string]interface{}{
			"payload": string(data),
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xadd: %w", err)
	}

	return id, nil
}

// PublishAsync publishes without blocking the caller. Failures are logged
// and counted, never returned.
func (p *Publisher) PublishAsync(ctx context.Context, event model.ClickEvent) {
	ctx = context.WithoutCancel(ctx)
	go func() {
		ctx, cancel := context.WithTimeout(ctx, PublishTimeout)
		defer cancel()

		streamID, err := p.Publish(ctx, event)
		if err != nil {
			p.logger.Warn("failed to publish click",
				"click_id", event.ClickID,
				"error", err,
			)
			p.metrics.IncArchiveEvent("dropped")
			return
		}

		p.logger.Debug("click published",
			"click_id", event.ClickID,
			"stream_id", streamID,
		)
		p.metrics.IncArchiveEvent("published")
	}()
}
