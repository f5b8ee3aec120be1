package metrics

import (
	"sort"
	"sync"
	"time"
)

// Counter names recorded by the focus pipeline.
const (
	CounterSamples                = "samples"
	CounterAccepted               = "accepted"
	CounterSuppressedJitter       = "suppressedJitter"
	CounterSuppressedSameWindow   = "suppressedSameWindow"
	CounterSuppressedKeyboardRect = "suppressedKeyboardRect"
	CounterScheduled              = "scheduled"
	CounterFired                  = "fired"
	CounterCancelled              = "cancelled"
	CounterSkippedGate            = "skippedGate"
	CounterSkippedGuard           = "skippedGuard"
	CounterSkippedBand            = "skippedBand"
	CounterSkippedIgnored         = "skippedIgnored"
	CounterSkippedFocused         = "skippedFocused"
	CounterSkippedRateLimited     = "skippedRateLimited"
	CounterResolveFallbacks       = "resolveFallbacks"
	CounterResolveMisses          = "resolveMisses"
	CounterFocusRequests          = "focusRequests"
	CounterFocusErrors            = "focusErrors"
)

// Collector aggregates anonymous counters for the focus pipeline.
type Collector struct {
	mu       sync.RWMutex
	enabled  bool
	started  time.Time
	counters map[string]*CounterMetrics
}

// CounterMetrics captures one named counter and when it last moved.
type CounterMetrics struct {
	Name  string    `json:"name"`
	Count uint64    `json:"count"`
	Last  time.Time `json:"last,omitempty"`
}

// Totals surfaces the headline counters of a snapshot.
type Totals struct {
	Samples       uint64 `json:"samples"`
	FocusRequests uint64 `json:"focusRequests"`
	FocusErrors   uint64 `json:"focusErrors"`
}

// Snapshot is the serializable view of the current metrics state.
type Snapshot struct {
	Enabled  bool             `json:"enabled"`
	Started  time.Time        `json:"started,omitempty"`
	Totals   Totals           `json:"totals"`
	Counters []CounterMetrics `json:"counters,omitempty"`
}

// NewCollector returns a collector with the provided opt-in state.
func NewCollector(enabled bool) *Collector {
	c := &Collector{}
	c.SetEnabled(enabled)
	return c
}

// Enabled reports whether collection is currently active.
func (c *Collector) Enabled() bool {
	if c == nil {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.enabled
}

// SetEnabled toggles collection, resetting counters when enabling.
func (c *Collector) SetEnabled(enabled bool) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.enabled == enabled {
		return
	}
	c.enabled = enabled
	if !enabled {
		c.counters = nil
		c.started = time.Time{}
		return
	}
	c.started = time.Now()
	c.counters = make(map[string]*CounterMetrics)
}

// Record increments the named counter.
func (c *Collector) Record(name string) {
	if c == nil {
		return
	}
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.enabled {
		return
	}
	if c.counters == nil {
		c.counters = make(map[string]*CounterMetrics)
	}
	counter, exists := c.counters[name]
	if !exists {
		counter = &CounterMetrics{Name: name}
		c.counters[name] = counter
	}
	counter.Count++
	counter.Last = now
}

// Value returns the current count for name, 0 when disabled or unseen.
func (c *Collector) Value(name string) uint64 {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if counter, ok := c.counters[name]; ok {
		return counter.Count
	}
	return 0
}

// Snapshot returns the current counters for serialization or display.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	snap := Snapshot{Enabled: c.enabled}
	if !c.enabled {
		return snap
	}
	snap.Started = c.started
	if len(c.counters) == 0 {
		return snap
	}
	snap.Counters = make([]CounterMetrics, 0, len(c.counters))
	for _, counter := range c.counters {
		if counter == nil {
			continue
		}
		clone := *counter
		snap.Counters = append(snap.Counters, clone)
		switch clone.Name {
		case CounterSamples:
			snap.Totals.Samples = clone.Count
		case CounterFocusRequests:
			snap.Totals.FocusRequests = clone.Count
		case CounterFocusErrors:
			snap.Totals.FocusErrors = clone.Count
		}
	}
	sort.Slice(snap.Counters, func(i, j int) bool {
		return snap.Counters[i].Name < snap.Counters[j].Name
	})
	return snap
}
