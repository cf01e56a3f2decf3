package tracking

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/kaancat/elportal-forside-design-sub009/internal/kv"
	"github.com/kaancat/elportal-forside-design-sub009/internal/model"
	"github.com/kaancat/elportal-forside-design-sub009/internal/testutil"
)

func seedDashboard(t *testing.T, store kv.Store) {
	t.Helper()
	ctx := context.Background()

	clicks := NewClickService(store, nil, testutil.DiscardLogger())
	clicks.now = func() time.Time { return fixedNow }
	pixel := NewPixelRecorder(store, testutil.DiscardLogger(), nil)

	// p1: 4 clicks, 1 conversion. p2: 2 clicks, 2 conversions. p3: 0 clicks, 1 conversion.
	for i := 0; i < 4; i++ {
		ev := model.ClickEvent{ClickID: fmt.Sprintf("dep_p1_%d", i), PartnerID: "p1", Timestamp: int64(1000 + i)}
		if err := clicks.Record(ctx, ev); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}
	for i := 0; i < 2; i++ {
		ev := model.ClickEvent{ClickID: fmt.Sprintf("dep_p2_%d", i), PartnerID: "p2", Timestamp: int64(2000 + i)}
		if err := clicks.Record(ctx, ev); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	value, contract := 100.0, 40.0
	conversions := []struct {
		partner string
		click   string
		at      int64
		value   *float64
		cv      *float64
	}{
		{"p1", "dep_p1_0", 5000, &value, nil},
		{"p2", "dep_p2_0", 6000, nil, &contract},
		{"p2", "dep_p2_1", 7000, &value, &contract},
		{"p3", "dep_p3_0", 8000, nil, nil},
	}
	for _, c := range conversions {
		at := c.at
		pixel.now = func() time.Time { return time.UnixMilli(at) }
		hit := PixelHit{Event: model.PixelEvent{
			PartnerID: c.partner, EventType: model.EventConversion, ClickID: c.click,
			Value: c.value, ContractValue: c.cv,
		}}
		if err := pixel.Record(ctx, hit); err != nil {
			t.Fatalf("pixel Record() error = %v", err)
		}
	}

	// Today's page views and conversions for the realtime section.
	pixel.now = func() time.Time { return fixedNow }
	for _, ev := range []string{model.EventPageView, model.EventPageView, model.EventConversion} {
		if err := pixel.Record(ctx, PixelHit{Event: model.PixelEvent{PartnerID: "p1", EventType: ev}}); err != nil {
			t.Fatalf("pixel Record() error = %v", err)
		}
	}

	// An unreadable record is skipped.
	if err := store.Set(ctx, "click:dep_garbage", []byte("{"), 0); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
}

func TestDashboard_Metrics(t *testing.T) {
	t.Parallel()

	store, _ := testutil.NewRedisStore(t)
	seedDashboard(t, store)

	d := NewDashboard(store, testutil.DiscardLogger())
	d.now = func() time.Time { return fixedNow }

	m, err := d.Metrics(context.Background())
	if err != nil {
		t.Fatalf("Metrics() error = %v", err)
	}

	if m.Realtime.TodayClicks != 6 {
		t.Errorf("TodayClicks = %d, want 6", m.Realtime.TodayClicks)
	}
	if m.Realtime.TodayPageViews != 2 || m.Realtime.TodayConversions != 1 {
		t.Errorf("realtime = %+v", m.Realtime)
	}
	if len(m.Realtime.ActivePartners) != 2 || m.Realtime.ActivePartners[0] != "p1" || m.Realtime.ActivePartners[1] != "p2" {
		t.Errorf("ActivePartners = %v, want [p1 p2]", m.Realtime.ActivePartners)
	}

	if len(m.Partners) != 3 {
		t.Fatalf("Partners = %+v, want 3 entries", m.Partners)
	}
	byID := make(map[string]model.PartnerStats)
	for _, p := range m.Partners {
		byID[p.PartnerID] = p
		want := 0.0
		if p.Clicks > 0 {
			want = float64(p.Conversions) / float64(p.Clicks) * 100
		}
		if p.ConversionRate != want {
			t.Errorf("%s ConversionRate = %v, want %v", p.PartnerID, p.ConversionRate, want)
		}
	}
	if m.Partners[0].PartnerID != "p1" {
		t.Errorf("partners not sorted by clicks: %+v", m.Partners)
	}
	if p := byID["p2"]; p.Revenue != 140 || p.Conversions != 2 || *p.LastConversion != 7000 {
		t.Errorf("p2 = %+v", p)
	}
	if p := byID["p3"]; p.Clicks != 0 || p.ConversionRate != 0 {
		t.Errorf("p3 = %+v", p)
	}

	if len(m.Recent.Clicks) != 6 {
		t.Fatalf("recent clicks = %d, want 6", len(m.Recent.Clicks))
	}
	for i := 1; i < len(m.Recent.Clicks); i++ {
		if m.Recent.Clicks[i-1].Timestamp < m.Recent.Clicks[i].Timestamp {
			t.Fatal("recent clicks not sorted descending")
		}
	}
	if m.Recent.Conversions[0].ConversionTime != 8000 {
		t.Errorf("newest conversion = %d, want 8000", m.Recent.Conversions[0].ConversionTime)
	}
}

func TestDashboard_RecentCaps(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, _ := testutil.NewRedisStore(t)
	for i := 0; i < 80; i++ {
		if err := putJSON(ctx, store, ClickKey(fmt.Sprintf("dep_%03d", i)), model.ClickEvent{
			ClickID: fmt.Sprintf("dep_%03d", i), PartnerID: "p", Timestamp: int64(i),
		}, 0); err != nil {
			t.Fatalf("putJSON() error = %v", err)
		}
	}
	for i := 0; i < 30; i++ {
		if err := putJSON(ctx, store, ConversionKey("p", fmt.Sprintf("dep_%03d", i)), model.ConversionRecord{
			PartnerID: "p", ClickID: fmt.Sprintf("dep_%03d", i), ConversionTime: int64(i),
		}, 0); err != nil {
			t.Fatalf("putJSON() error = %v", err)
		}
	}

	m, err := NewDashboard(store, testutil.DiscardLogger()).Metrics(ctx)
	if err != nil {
		t.Fatalf("Metrics() error = %v", err)
	}
	if len(m.Recent.Clicks) != recentClicks {
		t.Errorf("recent clicks = %d, want %d", len(m.Recent.Clicks), recentClicks)
	}
	if len(m.Recent.Conversions) != recentConversions {
		t.Errorf("recent conversions = %d, want %d", len(m.Recent.Conversions), recentConversions)
	}
	if len(m.Partners) != 1 || m.Partners[0].Clicks != 80 || m.Partners[0].Conversions != 30 {
		t.Errorf("partners = %+v", m.Partners)
	}
}

func TestDashboard_StoreError(t *testing.T) {
	t.Parallel()

	d := NewDashboard(testutil.FailingStore{}, testutil.DiscardLogger())
	if _, err := d.Metrics(context.Background()); !errors.Is(err, testutil.ErrStoreDown) {
		t.Errorf("Metrics() error = %v, want ErrStoreDown", err)
	}
}

func TestConversionRate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		conversions, clicks int64
		want                float64
	}{
		{0, 0, 0},
		{3, 0, 0},
		{1, 4, 25},
		{2, 2, 100},
	}
	for _, tt := range tests {
		if got := ConversionRate(tt.conversions, tt.clicks); got != tt.want {
			t.Errorf("ConversionRate(%d, %d) = %v, want %v", tt.conversions, tt.clicks, got, tt.want)
		}
	}
}
