package tracking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/goccy/go-json"

	"github.com/kaancat/elportal-forside-design-sub009/internal/kv"
	"github.com/kaancat/elportal-forside-design-sub009/internal/model"
)

// ErrClickNotFound is returned when a click record does not exist or has expired.
var ErrClickNotFound = errors.New("click not found")

// ArchiveSink receives clicks after they are stored. It must not block.
type ArchiveSink interface {
	PublishAsync(ctx context.Context, event model.ClickEvent)
}

// ClickService stores clicks and maintains the daily click counters.
type ClickService struct {
	store   kv.Store
	archive ArchiveSink
	logger  *slog.Logger
	now     func() time.Time
}

// NewClickService creates a click service. archive may be nil.
func NewClickService(store kv.Store, archive ArchiveSink, logger *slog.Logger) *ClickService {
	return &ClickService{
		store:   store,
		archive: archive,
		logger:  logger.With("component", "tracking.clicks"),
		now:     time.Now,
	}
}

// Now returns the service clock in epoch milliseconds.
func (s *ClickService) Now() int64 {
	return s.now().UnixMilli()
}

// Record writes click:<id> and then bumps today's partner counter. The two
// writes are independent; a failure of the second leaves the record stored.
// The same click id written twice overwrites the first record.
func (s *ClickService) Record(ctx context.Context, event model.ClickEvent) error {
	if err := putJSON(ctx, s.store, ClickKey(event.ClickID), event, ClickTTL); err != nil {
		return fmt.Errorf("store click: %w", err)
	}

	key := DailyClicksKey(DateKey(s.now()), event.PartnerID)
	count, err := s.store.Incr(ctx, key)
	if err != nil {
		return fmt.Errorf("increment daily clicks: %w", err)
	}
	if count == 1 {
		if err := s.store.Expire(ctx, key, DailyCounterTTL); err != nil {
			return fmt.Errorf("expire daily clicks: %w", err)
		}
	}

	s.logger.Debug("click recorded",
		"click_id", event.ClickID,
		"partner_id", event.PartnerID,
		"daily_count", count,
	)

	if s.archive != nil {
		s.archive.PublishAsync(ctx, event)
	}
	return nil
}

// Get reads a stored click record.
func (s *ClickService) Get(ctx context.Context, clickID string) (*model.ClickEvent, error) {
	var event model.ClickEvent
	if err := getJSON(ctx, s.store, ClickKey(clickID), &event); err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, ErrClickNotFound
		}
		return nil, err
	}
	return &event, nil
}

func putJSON(ctx context.Context, store kv.Store, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return store.Set(ctx, key, data, ttl)
}

func getJSON(ctx context.Context, store kv.Store, key string, v any) error {
	data, err := store.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}
