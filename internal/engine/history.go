package engine

import (
	"time"

	"github.com/Dadams2/AeroSpace/internal/layout"
)

const defaultDecisionHistoryLimit = 128

// Decision records one outcome of the focus pipeline, from dropped
// pointer samples to dispatched focus commands.
type Decision struct {
	Timestamp time.Time    `json:"timestamp"`
	Point     layout.Point `json:"point"`
	Stage     string       `json:"stage"`
	Reason    string       `json:"reason"`
	WindowID  uint32       `json:"windowId,omitempty"`
	App       string       `json:"app,omitempty"`
	Strategy  string       `json:"strategy,omitempty"`
}

// decisionLog is a fixed-capacity ring of recent decisions, oldest
// entries evicted first. Not safe for concurrent use; the engine
// guards it with its own mutex.
type decisionLog struct {
	capacity int
	entries  []Decision
	start    int
	count    int
}

func newDecisionLog(capacity int) *decisionLog {
	if capacity <= 0 {
		capacity = defaultDecisionHistoryLimit
	}
	return &decisionLog{capacity: capacity, entries: make([]Decision, 0, capacity)}
}

func (l *decisionLog) add(d Decision) {
	if l.capacity == 0 {
		return
	}
	if l.count < l.capacity {
		l.entries = append(l.entries, d)
		l.count++
		return
	}
	l.entries[l.start] = d
	l.start = (l.start + 1) % l.capacity
}

// snapshot returns the retained decisions oldest first.
func (l *decisionLog) snapshot() []Decision {
	out := make([]Decision, 0, l.count)
	for i := 0; i < l.count; i++ {
		idx := (l.start + i) % l.capacity
		out = append(out, l.entries[idx])
	}
	return out
}
