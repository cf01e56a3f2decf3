package production

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/kaancat/elportal-forside-design-sub009/internal/kv"
	"github.com/kaancat/elportal-forside-design-sub009/internal/metrics"
)

// Result reports which layer answered a lookup.
type Result string

const (
	HitMemory Result = "HIT-MEMORY"
	HitKV     Result = "HIT-KV"
	Miss      Result = "MISS"
)

const (
	// DefaultTTL is the freshness window of both cache layers.
	DefaultTTL = 24 * time.Hour
	// inflightLinger keeps a settled call joinable for late arrivals.
	inflightLinger = 100 * time.Millisecond

	kvPrefix = "production:"
)

type memEntry struct {
	data      []byte
	fetchedAt time.Time
}

type call struct {
	done   chan struct{}
	data   []byte
	result Result
	err    error
}

// Cache is a read-through cache over an in-process map and the shared
// KV store. Concurrent lookups of the same range share one load.
type Cache struct {
	store   kv.Store
	fetcher Fetcher
	ttl     time.Duration
	linger  time.Duration
	logger  *slog.Logger
	metrics metrics.Recorder
	now     func() time.Time

	mu       sync.Mutex
	memory   map[string]memEntry
	inflight map[string]*call
}

// NewCache creates a cache. A non-positive ttl uses DefaultTTL.
func NewCache(store kv.Store, fetcher Fetcher, ttl time.Duration, logger *slog.Logger, recorder metrics.Recorder) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Cache{
		store:    store,
		fetcher:  fetcher,
		ttl:      ttl,
		linger:   inflightLinger,
		logger:   logger.With("component", "production.cache"),
		metrics:  recorder,
		now:      time.Now,
		memory:   make(map[string]memEntry),
		inflight: make(map[string]*call),
	}
}

// Get returns the payload for [start, end]. The memory layer is consulted
// first, then the KV store, then the upstream.
func (c *Cache) Get(ctx context.Context, start, end string) ([]byte, Result, error) {
	key := start + "_" + end

	c.mu.Lock()
	if data, ok := c.fresh(key); ok {
		c.mu.Unlock()
		c.metrics.IncProductionCache(string(HitMemory))
		return data, HitMemory, nil
	}

	cl, joined := c.inflight[key]
	if !joined {
		cl = &call{done: make(chan struct{})}
		c.inflight[key] = cl
		go c.run(context.WithoutCancel(ctx), key, start, end, cl)
	}
	c.mu.Unlock()

	select {
	case <-cl.done:
	case <-ctx.Done():
		return nil, "", ctx.Err()
	}

	if cl.err == nil {
		c.metrics.IncProductionCache(string(cl.result))
	}
	return cl.data, cl.result, cl.err
}

func (c *Cache) run(ctx context.Context, key, start, end string, cl *call) {
	cl.data, cl.result, cl.err = c.load(ctx, key, start, end)
	close(cl.done)

	time.AfterFunc(c.linger, func() {
		c.mu.Lock()
		if c.inflight[key] == cl {
			delete(c.inflight, key)
		}
		c.mu.Unlock()
	})
}

func (c *Cache) load(ctx context.Context, key, start, end string) ([]byte, Result, error) {
	kvKey := kvPrefix + start + ":" + end

	data, err := c.store.Get(ctx, kvKey)
	switch {
	case err == nil:
		c.remember(key, data)
		return data, HitKV, nil
	case !errors.Is(err, kv.ErrNotFound):
		c.logger.Warn("kv cache read failed", "key", kvKey, "error", err)
	}

	data, err = c.fetcher.Fetch(ctx, start, end)
	if err != nil {
		return nil, Miss, err
	}

	c.remember(key, data)
	if err := c.store.Set(ctx, kvKey, data, c.ttl); err != nil {
		// The KV layer is best effort.
		c.logger.Warn("kv cache write failed", "key", kvKey, "error", err)
	}
	return data, Miss, nil
}

// fresh must be called with c.mu held.
func (c *Cache) fresh(key string) ([]byte, bool) {
	e, ok := c.memory[key]
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.fetchedAt) >= c.ttl {
		delete(c.memory, key)
		return nil, false
	}
	return e.data, true
}

func (c *Cache) remember(key string, data []byte) {
	c.mu.Lock()
	c.memory[key] = memEntry{data: data, fetchedAt: c.now()}
	c.mu.Unlock()
}
