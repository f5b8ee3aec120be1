package engine

import (
	"strings"
	"sync"

	"github.com/Dadams2/AeroSpace/internal/layout"
)

// FocusSource identifies what originated the most recent focus change.
type FocusSource string

const (
	FocusSourceMouse    FocusSource = "mouse"
	FocusSourceKeyboard FocusSource = "keyboard"
	FocusSourceUnknown  FocusSource = "unknown"
)

// ParseFocusSource maps an event payload token to a FocusSource,
// defaulting to unknown.
func ParseFocusSource(s string) FocusSource {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mouse":
		return FocusSourceMouse
	case "keyboard":
		return FocusSourceKeyboard
	default:
		return FocusSourceUnknown
	}
}

// FocusTracker remembers how focus was last set and, for keyboard
// focus, which screen rectangle received it. Source and rectangle are
// updated as a pair: only keyboard transitions replace the rectangle,
// and it stops being visible the moment the source is anything else.
type FocusTracker struct {
	mu     sync.Mutex
	source FocusSource
	rect   *layout.Rect
}

// NewFocusTracker starts with an unknown source and no rectangle.
func NewFocusTracker() *FocusTracker {
	return &FocusTracker{source: FocusSourceUnknown}
}

// Set overwrites the source. Only keyboard transitions overwrite the
// remembered rectangle; mouse and unknown transitions leave the previous
// value in place, where it stays ignored until the next keyboard focus.
func (t *FocusTracker) Set(source FocusSource, rect *layout.Rect) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.source = source
	if source != FocusSourceKeyboard {
		return
	}
	if rect == nil {
		t.rect = nil
		return
	}
	r := *rect
	t.rect = &r
}

// Snapshot returns the current source and the keyboard rectangle. The
// rectangle is nil unless the source is keyboard.
func (t *FocusTracker) Snapshot() (FocusSource, *layout.Rect) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.source != FocusSourceKeyboard || t.rect == nil {
		return t.source, nil
	}
	r := *t.rect
	return t.source, &r
}
