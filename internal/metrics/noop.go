package metrics

import "time"

// Noop discards all metrics.
type Noop struct{}

// NewNoop returns a Recorder that does nothing.
func NewNoop() Noop {
	return Noop{}
}

func (Noop) IncClickRecorded()                             {}
func (Noop) IncClickRejected(string)                       {}
func (Noop) IncRateLimitFailOpen()                         {}
func (Noop) IncPixelEvent(string)                          {}
func (Noop) IncPixelError()                                {}
func (Noop) IncProductionCache(string)                     {}
func (Noop) IncUpstreamAttempt(string, string)             {}
func (Noop) ObserveUpstreamDuration(string, time.Duration) {}
func (Noop) IncArchiveEvent(string)                        {}
