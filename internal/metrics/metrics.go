// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Click rejection reasons.
const (
	ReasonRateLimited = "rate_limited"
	ReasonInvalid     = "invalid"
	ReasonStoreError  = "store_error"
)

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus or keep them in memory.
type Recorder interface {
	// Click tracking
	IncClickRecorded()
	IncClickRejected(reason string)
	IncRateLimitFailOpen()

	// Pixel tracking
	IncPixelEvent(eventType string)
	IncPixelError()

	// Production data cache; result is HIT-MEMORY, HIT-KV or MISS
	IncProductionCache(result string)

	// Upstream calls; outcome: "success", "retry", "error"
	IncUpstreamAttempt(service, outcome string)
	ObserveUpstreamDuration(service string, duration time.Duration)

	// Click archive; status: "published", "dropped", "archived", "failed", "skipped"
	IncArchiveEvent(status string)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
