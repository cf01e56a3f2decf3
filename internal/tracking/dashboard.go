package tracking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/kaancat/elportal-forside-design-sub009/internal/kv"
	"github.com/kaancat/elportal-forside-design-sub009/internal/model"
)

// Dashboard sampling limits.
const (
	clickSampleSize      = 100
	conversionSampleSize = 50
	recentClicks         = 50
	recentConversions    = 20
)

// Dashboard assembles admin metrics from the raw keys in the store.
type Dashboard struct {
	store  kv.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewDashboard creates a dashboard aggregator.
func NewDashboard(store kv.Store, logger *slog.Logger) *Dashboard {
	return &Dashboard{
		store:  store,
		logger: logger.With("component", "tracking.dashboard"),
		now:    time.Now,
	}
}

// Metrics reads today's counters and a sample of click and conversion
// records. Records that vanish or fail to decode are skipped; store
// failures are returned.
func (d *Dashboard) Metrics(ctx context.Context) (*model.DashboardMetrics, error) {
	date := DateKey(d.now())

	realtime, err := d.today(ctx, date)
	if err != nil {
		return nil, err
	}

	clicks, err := d.sampleClicks(ctx)
	if err != nil {
		return nil, err
	}
	conversions, err := d.sampleConversions(ctx)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(clicks, func(i, j int) bool { return clicks[i].Timestamp > clicks[j].Timestamp })
	sort.SliceStable(conversions, func(i, j int) bool {
		return conversions[i].ConversionTime > conversions[j].ConversionTime
	})

	return &model.DashboardMetrics{
		Realtime: realtime,
		Partners: rollup(clicks, conversions),
		Recent: model.RecentActivity{
			Clicks:      head(clicks, recentClicks),
			Conversions: head(conversions, recentConversions),
		},
	}, nil
}

// today sums the date's click counters and metrics hashes by enumeration.
func (d *Dashboard) today(ctx context.Context, date string) (model.RealtimeMetrics, error) {
	rt := model.RealtimeMetrics{ActivePartners: []string{}}

	keys, err := d.store.Keys(ctx, dailyClicksPrefix+date+":*", 0)
	if err != nil {
		return rt, fmt.Errorf("list daily clicks: %w", err)
	}
	for _, key := range keys {
		raw, err := d.store.Get(ctx, key)
		if errors.Is(err, kv.ErrNotFound) {
			continue
		}
		if err != nil {
			return rt, fmt.Errorf("read %s: %w", key, err)
		}
		n, err := strconv.ParseInt(string(raw), 10, 64)
		if err != nil {
			d.logger.Warn("skipping non-numeric counter", "key", key)
			continue
		}
		rt.TodayClicks += n
		if n > 0 {
			rt.ActivePartners = append(rt.ActivePartners, partnerFromDailyKey(dailyClicksPrefix, date, key))
		}
	}
	sort.Strings(rt.ActivePartners)

	keys, err = d.store.Keys(ctx, dailyMetricsPrefix+date+":*", 0)
	if err != nil {
		return rt, fmt.Errorf("list daily metrics: %w", err)
	}
	for _, key := range keys {
		fields, err := d.store.HGetAll(ctx, key)
		if err != nil {
			return rt, fmt.Errorf("read %s: %w", key, err)
		}
		rt.TodayConversions += parseCount(fields[FieldConversions])
		rt.TodayPageViews += parseCount(fields[FieldPageViews])
	}

	return rt, nil
}

func (d *Dashboard) sampleClicks(ctx context.Context) ([]model.ClickEvent, error) {
	keys, err := d.store.Keys(ctx, clickPrefix+model.ClickIDPrefix+"*", clickSampleSize)
	if err != nil {
		return nil, fmt.Errorf("list clicks: %w", err)
	}

	out := make([]model.ClickEvent, 0, len(keys))
	for _, key := range keys {
		var c model.ClickEvent
		if ok, err := d.read(ctx, key, &c); err != nil {
			return nil, err
		} else if ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (d *Dashboard) sampleConversions(ctx context.Context) ([]model.ConversionRecord, error) {
	keys, err := d.store.Keys(ctx, conversionPrefix+"*", conversionSampleSize)
	if err != nil {
		return nil, fmt.Errorf("list conversions: %w", err)
	}

	out := make([]model.ConversionRecord, 0, len(keys))
	for _, key := range keys {
		var c model.ConversionRecord
		if ok, err := d.read(ctx, key, &c); err != nil {
			return nil, err
		} else if ok {
			out = append(out, c)
		}
	}
	return out, nil
}

// read decodes key into v. It reports false for missing or undecodable records.
func (d *Dashboard) read(ctx context.Context, key string, v any) (bool, error) {
	data, err := d.store.Get(ctx, key)
	switch {
	case errors.Is(err, kv.ErrNotFound), errors.Is(err, kv.ErrWrongType):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("read %s: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		d.logger.Warn("skipping unreadable record", "key", key, "error", err)
		return false, nil
	}
	return true, nil
}

// rollup builds per-partner stats, most clicks first.
func rollup(clicks []model.ClickEvent, conversions []model.ConversionRecord) []model.PartnerStats {
	byPartner := make(map[string]*model.PartnerStats)
	get := func(id string) *model.PartnerStats {
		s, ok := byPartner[id]
		if !ok {
			s = &model.PartnerStats{PartnerID: id}
			byPartner[id] = s
		}
		return s
	}

	for _, c := range clicks {
		get(c.PartnerID).Clicks++
	}
	for _, c := range conversions {
		s := get(c.PartnerID)
		s.Conversions++
		s.Revenue += c.Revenue()
		if s.LastConversion == nil || c.ConversionTime > *s.LastConversion {
			t := c.ConversionTime
			s.LastConversion = &t
		}
	}

	out := make([]model.PartnerStats, 0, len(byPartner))
	for _, s := range byPartner {
		s.ConversionRate = ConversionRate(s.Conversions, s.Clicks)
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Clicks != out[j].Clicks {
			return out[i].Clicks > out[j].Clicks
		}
		return out[i].PartnerID < out[j].PartnerID
	})
	return out
}

// ConversionRate is conversions per click in percent, 0 without clicks.
func ConversionRate(conversions, clicks int64) float64 {
	if clicks == 0 {
		return 0
	}
	return float64(conversions) / float64(clicks) * 100
}

func parseCount(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}

func head[T any](s []T, n int) []T {
	if len(s) > n {
		return s[:n]
	}
	return s
}
