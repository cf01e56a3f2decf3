package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	ClicksRecorded    uint64
	ClicksRejected    map[string]uint64
	RateLimitFailOpen uint64
	PixelEvents       map[string]uint64
	PixelErrors       uint64
	ProductionCache   map[string]uint64
	UpstreamAttempts  map[string]uint64 // key: service/outcome
	ArchiveEvents     map[string]uint64
}

// InMemoryRecorder stores metrics in memory for tests.
type InMemoryRecorder struct {
	clicksRecorded    uint64
	rateLimitFailOpen uint64
	pixelErrors       uint64

	mu               sync.Mutex
	clicksRejected   map[string]uint64
	pixelEvents      map[string]uint64
	productionCache  map[string]uint64
	upstreamAttempts map[string]uint64
	archiveEvents    map[string]uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{
		clicksRejected:   make(map[string]uint64),
		pixelEvents:      make(map[string]uint64),
		productionCache:  make(map[string]uint64),
		upstreamAttempts: make(map[string]uint64),
		archiveEvents:    make(map[string]uint64),
	}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Snapshot{
		ClicksRecorded:    atomic.LoadUint64(&m.clicksRecorded),
		ClicksRejected:    copyCounts(m.clicksRejected),
		RateLimitFailOpen: atomic.LoadUint64(&m.rateLimitFailOpen),
		PixelEvents:       copyCounts(m.pixelEvents),
		PixelErrors:       atomic.LoadUint64(&m.pixelErrors),
		ProductionCache:   copyCounts(m.productionCache),
		UpstreamAttempts:  copyCounts(m.upstreamAttempts),
		ArchiveEvents:     copyCounts(m.archiveEvents),
	}
}

func (m *InMemoryRecorder) IncClickRecorded() {
	atomic.AddUint64(&m.clicksRecorded, 1)
}

func (m *InMemoryRecorder) IncClickRejected(reason string) {
	m.inc(m.clicksRejected, reason)
}

func (m *InMemoryRecorder) IncRateLimitFailOpen() {
	atomic.AddUint64(&m.rateLimitFailOpen, 1)
}

func (m *InMemoryRecorder) IncPixelEvent(eventType string) {
	m.inc(m.pixelEvents, eventType)
}

func (m *InMemoryRecorder) IncPixelError() {
	atomic.AddUint64(&m.pixelErrors, 1)
}

func (m *InMemoryRecorder) IncProductionCache(result string) {
	m.inc(m.productionCache, result)
}

func (m *InMemoryRecorder) IncUpstreamAttempt(service, outcome string) {
	m.inc(m.upstreamAttempts, service+"/"+outcome)
}

// ObserveUpstreamDuration is not tracked in memory.
func (m *InMemoryRecorder) ObserveUpstreamDuration(string, time.Duration) {}

func (m *InMemoryRecorder) IncArchiveEvent(status string) {
	m.inc(m.archiveEvents, status)
}

func (m *InMemoryRecorder) inc(counts map[string]uint64, label string) {
	m.mu.Lock()
	counts[label]++
	m.mu.Unlock()
}

func copyCounts(in map[string]uint64) map[string]uint64 {
	out := make(map[string]uint64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
