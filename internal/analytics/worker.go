package analytics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"

	"github.com/kaancat/elportal-forside-design-sub009/internal/metrics"
	"github.com/kaancat/elportal-forside-design-sub009/internal/model"
)

const (
	// ConsumerGroup is the Redis consumer group name.
	ConsumerGroup = "click_archivers"

	// DefaultBatchSize is the max messages per batch.
	DefaultBatchSize = 500

	// DefaultBlockTimeout is how long to block waiting for messages.
	DefaultBlockTimeout = 5 * time.Second

	// DefaultMaxRetries is the number of insert attempts per batch.
	DefaultMaxRetries = 3

	// DefaultClaimInterval is how often to scan pending messages.
	DefaultClaimInterval = 10 * time.Second

	// DefaultClaimIdle is the idle time before reclaiming pending messages.
	DefaultClaimIdle = 30 * time.Second

	deadLetterMaxLen = 10000
)

// Archive persists archived clicks. Re-inserting a stream ID is a no-op.
type Archive interface {
	InsertBatch(ctx context.Context, clicks []*model.ArchivedClick) (int64, error)
}

// Worker moves clicks from the stream into the archive.
type Worker struct {
	redis         *redis.Client
	archive       Archive
	logger        *slog.Logger
	metrics       metrics.Recorder
	consumerID    string
	batchSize     int
	blockTimeout  time.Duration
	maxRetries    int
	backoff       func(attempt int) time.Duration
	claimInterval time.Duration
	claimIdle     time.Duration
	claimStartID  string
	lastClaim     time.Time

	started  bool
	draining bool
	cancel   context.CancelFunc
	done     chan struct{}
	mu       sync.Mutex
}

// NewWorker creates a new archive worker.
func NewWorker(client *redis.Client, archive Archive, logger *slog.Logger, consumerID string, recorder metrics.Recorder) *Worker {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Worker{
		redis:         client,
		archive:       archive,
		logger:        logger.With("component", "analytics.worker", "consumer_id", consumerID),
		metrics:       recorder,
		consumerID:    consumerID,
		batchSize:     DefaultBatchSize,
		blockTimeout:  DefaultBlockTimeout,
		maxRetries:    DefaultMaxRetries,
		backoff:       exponentialBackoff,
		claimInterval: DefaultClaimInterval,
		claimIdle:     DefaultClaimIdle,
		claimStartID:  "0-0",
	}
}

// exponentialBackoff waits 2s, 4s, 8s... after each failed attempt.
func exponentialBackoff(attempt int) time.Duration {
	return time.Duration(1<<attempt) * time.Second
}

// Run starts the worker loop. Blocks until ctx is cancelled or Shutdown is called.
func (w *Worker) Run(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return errors.New("worker already started")
	}
	w.started = true
	w.done = make(chan struct{})
	ctx, w.cancel = context.WithCancel(ctx)
	w.mu.Unlock()

	defer close(w.done)

	if err := w.ensureConsumerGroup(ctx); err != nil {
		return fmt.Errorf("ensure consumer group: %w", err)
	}

	w.logger.Info("archive worker started")

	for {
		w.mu.Lock()
		draining := w.draining
		w.mu.Unlock()

		if draining {
			w.logger.Info("archive worker draining, stopping")
			return nil
		}

		select {
		case <-ctx.Done():
			w.logger.Info("archive worker stopping")
			return nil
		default:
			if err := w.processOnce(ctx); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				w.logger.Error("process error", "error", err)
				sleepCtx(ctx, time.Second)
			}
		}
	}
}

// Shutdown stops the worker after the in-flight batch.
func (w *Worker) Shutdown(ctx context.Context) error {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return nil
	}
	w.draining = true
	cancel := w.cancel
	done := w.done
	w.mu.Unlock()

	w.logger.Info("archive worker shutdown initiated")

	if cancel != nil {
		cancel()
	}

	select {
	case <-done:
		w.logger.Info("archive worker shutdown complete")
		return nil
	case <-ctx.Done():
		w.logger.Warn("archive worker shutdown timed out")
		return ctx.Err()
	}
}

// SetBatchSize overrides the default batch size.
func (w *Worker) SetBatchSize(size int) {
	if size > 0 {
		w.batchSize = size
	}
}

// SetBlockTimeout overrides the default blocking timeout.
func (w *Worker) SetBlockTimeout(timeout time.Duration) {
	if timeout > 0 {
		w.blockTimeout = timeout
	}
}

func (w *Worker) ensureConsumerGroup(ctx context.Context) error {
	err := w.redis.XGroupCreateMkStream(ctx, StreamKey, ConsumerGroup, "0").Err()
	if err != nil && !isGroupExistsError(err) {
		return err
	}
	return nil
}

// processOnce reads, archives and acknowledges a single batch.
func (w *Worker) processOnce(ctx context.Context) error {
	claimed, err := w.maybeClaimPending(ctx)
	if err != nil {
		w.logger.Warn("failed to claim pending messages", "error", err)
	}

	messages := claimed
	if len(messages) == 0 {
		messages, err = w.readBatch(ctx)
		if err != nil {
			return err
		}
	}
	if len(messages) == 0 {
		return nil
	}

	clicks, messageIDs := w.parseMessages(ctx, messages)
	if len(clicks) == 0 {
		// Nothing archivable; ack so poison messages do not block the group.
		return w.ackMessages(ctx, messageIDs)
	}

	if err := w.archiveWithRetry(ctx, clicks); err != nil {
		w.logger.Error("batch archive failed after retries",
			"batch_size", len(clicks),
			"error", err,
		)
		// Left pending for a later claim.
		return err
	}

	return w.ackMessages(ctx, messageIDs)
}

func (w *Worker) maybeClaimPending(ctx context.Context) ([]redis.XMessage, error) {
	if w.claimInterval <= 0 || w.claimIdle <= 0 {
		return nil, nil
	}
	if !w.lastClaim.IsZero() && time.Since(w.lastClaim) < w.claimInterval {
		return nil, nil
	}

	w.lastClaim = time.Now()
	messages, start, err := w.redis.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   StreamKey,
		Group:    ConsumerGroup,
		Consumer: w.consumerID,
		MinIdle:  w.claimIdle,
		Start:    w.claimStartID,
		Count:    int64(w.batchSize),
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("xautoclaim: %w", err)
	}
	if start != "" {
		w.claimStartID = start
	}
	return messages, nil
}

func (w *Worker) readBatch(ctx context.Context) ([]redis.XMessage, error) {
	streams, err := w.redis.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    ConsumerGroup,
		Consumer: w.consumerID,
		Streams:  []string{StreamKey, ">"},
		Count:    int64(w.batchSize),
		Block:    w.blockTimeout,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("xreadgroup: %w", err)
	}
	if len(streams) == 0 {
		return nil, nil
	}
	return streams[0].Messages, nil
}

// parseMessages converts stream entries to archive rows. Every message ID
// is returned for acking; unparseable ones are dead-lettered.
func (w *Worker) parseMessages(ctx context.Context, messages []redis.XMessage) ([]*model.ArchivedClick, []string) {
	clicks := make([]*model.ArchivedClick, 0, len(messages))
	messageIDs := make([]string, 0, len(messages))

	for _, msg := range messages {
		messageIDs = append(messageIDs, msg.ID)

		raw, ok := msg.Values["payload"].(string)
		if !ok {
			w.deadLetter(ctx, msg, "invalid_format", "payload field missing or not a string")
			continue
		}

		var p ClickPayload
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			w.deadLetter(ctx, msg, "unmarshal_error", err.Error())
			continue
		}
		if err := ValidateClickPayload(p); err != nil {
			w.deadLetter(ctx, msg, "validation_error", err.Error())
			continue
		}

		clicks = append(clicks, &model.ArchivedClick{
			ID:          ulid.Make().String(),
			StreamID:    msg.ID,
			ClickID:     p.ClickID,
			PartnerID:   p.PartnerID,
			ClickedAt:   time.UnixMilli(p.Timestamp).UTC(),
			Source:      p.Source,
			Consumption: p.Consumption,
			Region:      p.Region,
			PageURL:     p.PageURL,
		})
	}

	return clicks, messageIDs
}

func (w *Worker) deadLetter(ctx context.Context, msg redis.XMessage, reason, detail string) {
	w.logger.Warn("dead-lettering message",
		"message_id", msg.ID,
		"reason", reason,
		"detail", detail,
	)

	payload, _ := msg.Values["payload"].(string)
	err := w.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: DeadLetterStreamKey,
		MaxLen: deadLetterMaxLen,
		Approx: true,
		ID:     "*",
		Values: map[string]interface{}{
			"original_id":      msg.ID,
			"reason":           reason,
			"detail":           detail,
			"payload":          payload,
			"dead_lettered_at": time.Now().UTC().Format(time.RFC3339),
		},
	}).Err()
	if err != nil {
		w.logger.Error("failed to write dead-letter entry",
			"message_id", msg.ID,
			"error", err,
		)
	}

	w.metrics.IncArchiveEvent("skipped")
}

func (w *Worker) archiveWithRetry(ctx context.Context, clicks []*model.ArchivedClick) error {
	var lastErr error

	for attempt := 1; attempt <= w.maxRetries; attempt++ {
		lastErr = w.archiveBatch(ctx, clicks)
		if lastErr == nil {
			return nil
		}
		if attempt == w.maxRetries {
			break
		}

		backoff := w.backoff(attempt)
		w.logger.Warn("batch archive failed, retrying",
			"attempt", attempt,
			"backoff", backoff,
			"error", lastErr,
		)
		if err := sleepCtx(ctx, backoff); err != nil {
			return err
		}
	}

	for range clicks {
		w.metrics.IncArchiveEvent("failed")
	}
	return lastErr
}

func (w *Worker) archiveBatch(ctx context.Context, clicks []*model.ArchivedClick) error {
	start := time.Now()

	inserted, err := w.archive.InsertBatch(ctx, clicks)
	if err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}

	w.logger.Info("batch archived",
		"batch_size", len(clicks),
		"inserted", inserted,
		"duration_ms", float64(time.Since(start).Microseconds())/1000,
	)
	for range clicks {
		w.metrics.IncArchiveEvent("archived")
	}
	return nil
}

func (w *Worker) ackMessages(ctx context.Context, messageIDs []string) error {
	if len(messageIDs) == 0 {
		return nil
	}
	if err := w.redis.XAck(ctx, StreamKey, ConsumerGroup, messageIDs...).Err(); err != nil {
		return fmt.Errorf("xack: %w", err)
	}
	return nil
}

func isGroupExistsError(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "BUSYGROUP")
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
