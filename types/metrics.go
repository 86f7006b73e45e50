package types

// This file defines how the cache reports what it is doing.

/*
Metrics receives cache lifecycle events.
The store keeps its own counters for Stats(); this interface exists so the same
events can be exported (see the metrics package for the Prometheus collector).
*/
type Metrics interface {

	// Hit is called when a live entry is returned.
	Hit()

	// Miss is called when a key is absent or expired.
	Miss()

	// Eviction is called when an entry is removed to make room for a new one.
	Eviction()

	// Expire is called once per entry removed because its TTL elapsed.
	Expire()

	// Size reports the number of entries after a mutation.
	Size(n int)
}

// NoopMetrics ignores every event. It is the default when no collector is configured.
type NoopMetrics struct{}

func (NoopMetrics) Hit()      {}
func (NoopMetrics) Miss()     {}
func (NoopMetrics) Eviction() {}
func (NoopMetrics) Expire()   {}
func (NoopMetrics) Size(int)  {}
