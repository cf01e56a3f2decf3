package tracking

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/kaancat/elportal-forside-design-sub009/internal/kv"
	"github.com/kaancat/elportal-forside-design-sub009/internal/metrics"
	"github.com/kaancat/elportal-forside-design-sub009/internal/model"
)

// PixelHit is a resolved pixel request.
type PixelHit struct {
	Event     model.PixelEvent
	ClientIP  string
	UserAgent string
	Referer   string // request Referer header, not the reported referrer
}

// PixelRecorder stores pixel events and their daily metrics.
type PixelRecorder struct {
	store   kv.Store
	metrics metrics.Recorder
	logger  *slog.Logger
	now     func() time.Time
	suffix  func() string
}

// NewPixelRecorder creates a pixel recorder.
func NewPixelRecorder(store kv.Store, logger *slog.Logger, recorder metrics.Recorder) *PixelRecorder {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &PixelRecorder{
		store:   store,
		metrics: recorder,
		logger:  logger.With("component", "tracking.pixel"),
		now:     time.Now,
		suffix:  randomSuffix,
	}
}

// Record stores a hit. Hits without a partner are ignored. Writes run in
// order and the first failure is returned; earlier writes are kept.
func (p *PixelRecorder) Record(ctx context.Context, hit PixelHit) error {
	ev := hit.Event
	if ev.PartnerID == "" {
		return nil
	}

	now := p.now()
	nowMs := now.UnixMilli()
	ts := ev.Timestamp
	if ts == 0 {
		ts = nowMs
	}

	tracking := model.TrackingEvent{
		Type:          model.TrackingEventType,
		PartnerID:     ev.PartnerID,
		PartnerDomain: refererDomain(hit.Referer),
		Data: model.TrackingEventData{
			ClickID:   ev.ClickID,
			SessionID: ev.SessionID,
			PageURL:   ev.PageURL,
			Timestamp: ts,
			EventType: ev.EventType,
		},
		ClientInfo: model.ClientInfo{
			IP:        hit.ClientIP,
			UserAgent: hit.UserAgent,
			Timestamp: nowMs,
		},
	}
	if err := putJSON(ctx, p.store, EventKey(ev.PartnerID, nowMs, p.suffix()), tracking, EventTTL); err != nil {
		return fmt.Errorf("store event: %w", err)
	}

	metricsKey := DailyMetricsKey(DateKey(now), ev.PartnerID)
	switch ev.EventType {
	case model.EventConversion:
		if err := p.bump(ctx, metricsKey, FieldConversions); err != nil {
			return err
		}
		if ev.ClickID != "" {
			record := ev.ConversionRecord(nowMs)
			if err := putJSON(ctx, p.store, ConversionKey(ev.PartnerID, ev.ClickID), record, ConversionTTL); err != nil {
				return fmt.Errorf("store conversion: %w", err)
			}
		}
	default:
		if err := p.bump(ctx, metricsKey, FieldPageViews); err != nil {
			return err
		}
	}

	if ev.EventType == model.EventLanding && ev.ClickID != "" {
		click := model.ClickEvent{
			ClickID:   ev.ClickID,
			PartnerID: ev.PartnerID,
			Timestamp: ts,
			Source:    model.SourcePixelTracking,
			PageURL:   ev.PageURL,
			ClientIP:  hit.ClientIP,
			UserAgent: hit.UserAgent,
		}
		if err := putJSON(ctx, p.store, ClickKey(ev.ClickID), click, ClickTTL); err != nil {
			return fmt.Errorf("store landing click: %w", err)
		}
	}

	p.metrics.IncPixelEvent(ev.EventType)
	return nil
}

// bump increments a daily metrics field and refreshes the hash expiry.
func (p *PixelRecorder) bump(ctx context.Context, key, field string) error {
	if _, err := p.store.HIncrBy(ctx, key, field, 1); err != nil {
		return fmt.Errorf("increment %s: %w", field, err)
	}
	if err := p.store.Expire(ctx, key, DailyCounterTTL); err != nil {
		return fmt.Errorf("expire daily metrics: %w", err)
	}
	return nil
}

func refererDomain(referer string) string {
	if referer == "" {
		return "direct"
	}
	u, err := url.Parse(referer)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return u.Hostname()
}
