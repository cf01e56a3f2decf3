package tracking

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/kaancat/elportal-forside-design-sub009/internal/model"
	"github.com/kaancat/elportal-forside-design-sub009/internal/testutil"
)

var fixedNow = time.Date(2024, 5, 10, 12, 30, 0, 0, time.UTC)

type captureSink struct {
	mu     sync.Mutex
	events []model.ClickEvent
}

func (c *captureSink) PublishAsync(_ context.Context, event model.ClickEvent) {
	c.mu.Lock()
	c.events = append(c.events, event)
	c.mu.Unlock()
}

func newClickService(t *testing.T, sink ArchiveSink) (*ClickService, *miniredis.Miniredis) {
	t.Helper()
	store, mr := testutil.NewRedisStore(t)
	svc := NewClickService(store, sink, testutil.DiscardLogger())
	svc.now = func() time.Time { return fixedNow }
	return svc, mr
}

func TestClickService_RecordAndGet(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	sink := &captureSink{}
	svc, mr := newClickService(t, sink)

	in := testutil.NewTestClick(t, "partner-a")
	if err := svc.Record(ctx, in); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	got, err := svc.Get(ctx, in.ClickID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !reflect.DeepEqual(*got, in) {
		t.Errorf("Get() = %+v, want %+v", *got, in)
	}

	if ttl := mr.TTL(ClickKey(in.ClickID)); ttl != ClickTTL {
		t.Errorf("click TTL = %s, want %s", ttl, ClickTTL)
	}

	dailyKey := DailyClicksKey("2024-05-10", "partner-a")
	if v, _ := mr.Get(dailyKey); v != "1" {
		t.Errorf("daily counter = %q, want 1", v)
	}
	if ttl := mr.TTL(dailyKey); ttl != DailyCounterTTL {
		t.Errorf("daily counter TTL = %s, want %s", ttl, DailyCounterTTL)
	}

	if len(sink.events) != 1 || sink.events[0].ClickID != in.ClickID {
		t.Errorf("archive sink received %v", sink.events)
	}
}

func TestClickService_DailyCounterExpirySetOnce(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, mr := newClickService(t, nil)
	dailyKey := DailyClicksKey("2024-05-10", "partner-b")

	if err := svc.Record(ctx, testutil.NewTestClick(t, "partner-b")); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	mr.FastForward(time.Hour)
	if err := svc.Record(ctx, testutil.NewTestClick(t, "partner-b")); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	if v, _ := mr.Get(dailyKey); v != "2" {
		t.Errorf("daily counter = %q, want 2", v)
	}
	if ttl := mr.TTL(dailyKey); ttl != DailyCounterTTL-time.Hour {
		t.Errorf("daily counter TTL = %s, want %s", ttl, DailyCounterTTL-time.Hour)
	}
}

func TestClickService_ReplayOverwrites(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, _ := newClickService(t, nil)

	first := model.ClickEvent{ClickID: "dep_same", PartnerID: "p1", Timestamp: 1}
	second := model.ClickEvent{ClickID: "dep_same", PartnerID: "p2", Timestamp: 2}
	if err := svc.Record(ctx, first); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if err := svc.Record(ctx, second); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	got, err := svc.Get(ctx, "dep_same")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.PartnerID != "p2" {
		t.Errorf("PartnerID = %s, want last write p2", got.PartnerID)
	}
}

func TestClickService_Errors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, _ := newClickService(t, nil)
	if _, err := svc.Get(ctx, "dep_missing"); !errors.Is(err, ErrClickNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrClickNotFound", err)
	}

	sink := &captureSink{}
	failing := NewClickService(testutil.FailingStore{}, sink, testutil.DiscardLogger())
	err := failing.Record(ctx, model.ClickEvent{ClickID: "dep_1", PartnerID: "p1"})
	if !errors.Is(err, testutil.ErrStoreDown) {
		t.Errorf("Record() error = %v, want ErrStoreDown", err)
	}
	if len(sink.events) != 0 {
		t.Error("failed clicks must not reach the archive")
	}
}
