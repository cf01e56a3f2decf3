package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/kaancat/elportal-forside-design-sub009/internal/metrics"
	"github.com/kaancat/elportal-forside-design-sub009/internal/model"
	"github.com/kaancat/elportal-forside-design-sub009/internal/testutil"
)

func newRedisClient(t *testing.T) *redis.Client {
	t.Helper()
	store, _ := testutil.NewRedisStore(t)
	return store.Client()
}

func testClick() model.ClickEvent {
	kwh := 4000.0
	return model.ClickEvent{
		ClickID:   "dep_abc123",
		PartnerID: "andel-energi",
		Timestamp: 1715342400000,
		Source:    json.RawMessage(`{"page":"/elpriser","component":"provider_card"}`),
		Metadata:  &model.ClickMetadata{Consumption: &kwh, Region: "DK2"},
		PageURL:   "https://dinelportal.dk/elpriser",
		ClientIP:  "203.0.113.7",
		UserAgent: "Mozilla/5.0",
	}
}

func TestPayloadFromEvent(t *testing.T) {
	t.Parallel()

	p := PayloadFromEvent(testClick())

	if p.ClickID != "dep_abc123" || p.PartnerID != "andel-energi" || p.Timestamp != 1715342400000 {
		t.Errorf("identity fields = %+v", p)
	}
	if p.Consumption == nil || *p.Consumption != 4000 || p.Region != "DK2" {
		t.Errorf("metadata not flattened: %+v", p)
	}

	bare := PayloadFromEvent(model.ClickEvent{ClickID: "dep_x", PartnerID: "p", Timestamp: 1})
	if bare.Consumption != nil || bare.Region != "" {
		t.Errorf("empty metadata should stay empty: %+v", bare)
	}
}

func TestPublisher_Publish(t *testing.T) {
	t.Parallel()

	client := newRedisClient(t)
	p := NewPublisher(client, testutil.DiscardLogger(), nil)

	id, err := p.Publish(context.Background(), testClick())
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	entries, err := client.XRange(context.Background(), StreamKey, "-", "+").Result()
	if err != nil {
		t.Fatalf("xrange: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != id {
		t.Fatalf("entries = %+v, want one with id %s", entries, id)
	}

	var got ClickPayload
	if err := json.Unmarshal([]byte(entries[0].Values["payload"].(string)), &got); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if got.ClickID != "dep_abc123" || got.Region != "DK2" {
		t.Errorf("payload = %+v", got)
	}
}

func TestPublisher_PublishAsync(t *testing.T) {
	t.Parallel()

	client := newRedisClient(t)
	rec := metrics.NewInMemory()
	p := NewPublisher(client, testutil.DiscardLogger(), rec)

	ctx, cancel := context.WithCancel(context.Background())
	p.PublishAsync(ctx, testClick())
	// The caller's request context ending must not abort the publish.
	cancel()

	waitFor(t, func() bool { return rec.Snapshot().ArchiveEvents["published"] == 1 })

	if n := client.XLen(context.Background(), StreamKey).Val(); n != 1 {
		t.Errorf("stream length = %d, want 1", n)
	}
}

func TestPublisher_PublishAsyncDropsOnFailure(t *testing.T) {
	t.Parallel()

	store, mr := testutil.NewRedisStore(t)
	rec := metrics.NewInMemory()
	p := NewPublisher(store.Client(), testutil.DiscardLogger(), rec)
	mr.Close()

	p.PublishAsync(context.Background(), testClick())

	waitFor(t, func() bool { return rec.Snapshot().ArchiveEvents["dropped"] == 1 })
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
