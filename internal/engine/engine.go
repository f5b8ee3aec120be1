package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/Dadams2/AeroSpace/internal/config"
	"github.com/Dadams2/AeroSpace/internal/ipc"
	"github.com/Dadams2/AeroSpace/internal/layout"
	"github.com/Dadams2/AeroSpace/internal/metrics"
	"github.com/Dadams2/AeroSpace/internal/state"
	"github.com/Dadams2/AeroSpace/internal/util"
)

// serverClient bundles the queries and the single command the engine
// needs from the window server.
type serverClient interface {
	state.DataSource
	WindowAt(ctx context.Context, p layout.Point) (uint32, bool, error)
	MouseState(ctx context.Context) (state.MouseState, error)
	AutomationEnabled(ctx context.Context) (bool, error)
	FocusWindow(ctx context.Context, id uint32, source string) error
}

var _ serverClient = (*ipc.Client)(nil)

type subscribeFunc func(ctx context.Context, logger *util.Logger) (<-chan ipc.Event, error)

// Engine drives focus-follows-mouse. It consumes the server's pointer
// and focus events, filters and debounces them, and asks the server to
// focus the window under the pointer. One Engine value lives for the
// whole process; reloads restart its listener session but never touch
// the focus tracker.
type Engine struct {
	server  serverClient
	logger  *util.Logger
	metrics *metrics.Collector
	tracker *FocusTracker
	dryRun  bool

	resolver  *Resolver
	subscribe subscribeFunc

	mu         sync.Mutex
	opts       Options
	limiter    *rate.Limiter
	paused     bool
	running    bool
	lastPoint  layout.Point
	hasLast    bool
	generation uint64
	timer      *time.Timer
	pendingPt  layout.Point
	pendingCtx context.Context
	history    *decisionLog
	reloadCh   chan struct{}

	// resolveMu serializes arbiter passes so a fired resolution always
	// finishes before the next one observes the world.
	resolveMu sync.Mutex
}

// New creates an engine with the given compiled options. A disabled or
// nil metrics collector is tolerated.
func New(server serverClient, logger *util.Logger, collector *metrics.Collector, opts Options, dryRun bool) *Engine {
	return &Engine{
		server:    server,
		logger:    logger,
		metrics:   collector,
		tracker:   NewFocusTracker(),
		dryRun:    dryRun,
		resolver:  NewResolver(server),
		subscribe: ipc.Subscribe,
		opts:      opts,
		limiter:   rate.NewLimiter(opts.FocusRate, opts.FocusBurst),
		history:   newDecisionLog(0),
		reloadCh:  make(chan struct{}, 1),
	}
}

// Run consumes the event stream until ctx is cancelled. Every reload
// tears the current listener session down, including any pending
// resolution, and starts a fresh one under the new options. While the
// feature is disabled the loop idles and waits for a reload that
// re-enables it.
func (e *Engine) Run(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return fmt.Errorf("engine already running")
	}
	e.running = true
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()

	for {
		if err := e.runSession(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
	}
}

// runSession runs one listener session. A nil return means a reload was
// requested and the caller should start the next session.
func (e *Engine) runSession(ctx context.Context) error {
	e.mu.Lock()
	opts := e.opts
	e.mu.Unlock()

	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer e.teardownSession()

	if !opts.Enabled {
		e.logger.Infof("focus-follows-mouse disabled; listener idle")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.reloadCh:
			e.logger.Infof("reload requested; restarting listener")
			return nil
		}
	}

	world, err := state.NewWorld(sessionCtx, e.server)
	if err != nil {
		return fmt.Errorf("initial world snapshot: %w", err)
	}
	e.logger.Infof("tracking %d windows across %d workspaces on %d monitors",
		len(world.Windows), len(world.Workspaces), len(world.Monitors))

	events, err := e.subscribe(sessionCtx, e.logger)
	if err != nil {
		return fmt.Errorf("subscribe to events: %w", err)
	}
	e.logger.Infof("focus-follows-mouse active (boundaryMode=%s debounce=%s threshold=%.1fpx)",
		opts.BoundaryMode, opts.Debounce, opts.MovementThreshold)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.reloadCh:
			e.logger.Infof("reload requested; restarting listener")
			return nil
		case ev, ok := <-events:
			if !ok {
				return fmt.Errorf("event stream closed")
			}
			e.handleEvent(sessionCtx, ev)
		}
	}
}

// teardownSession drops listener-session state. The focus tracker is
// deliberately left alone so keyboard-rect suppression survives
// reloads.
func (e *Engine) teardownSession() {
	e.cancelPending()
	e.mu.Lock()
	e.hasLast = false
	e.mu.Unlock()
}

func (e *Engine) handleEvent(ctx context.Context, ev ipc.Event) {
	switch ev.Kind {
	case "mouse-moved":
		p, err := parseMouseMovedPayload(ev.Payload)
		if err != nil {
			e.logger.Debugf("dropping event: %v", err)
			return
		}
		e.HandlePointerMoved(ctx, p)
	case "focus-changed":
		id, source, rect, err := parseFocusChangedPayload(ev.Payload)
		if err != nil {
			e.logger.Debugf("dropping event: %v", err)
			return
		}
		e.trace("focus.changed", map[string]any{"windowId": id, "source": string(source)})
		e.NotifyFocusChanged(source, rect)
	default:
		// The server emits more event kinds than this daemon consumes.
	}
}

// HandlePointerMoved runs the intake filter and boundary check for one
// pointer sample and schedules a debounced resolution when the sample
// survives both.
func (e *Engine) HandlePointerMoved(ctx context.Context, p layout.Point) {
	e.metrics.Record(metrics.CounterSamples)

	e.mu.Lock()
	opts := e.opts
	prev := e.lastPoint
	hasPrev := e.hasLast
	if hasPrev && layout.Distance(p, prev) <= opts.MovementThreshold {
		e.mu.Unlock()
		e.metrics.Record(metrics.CounterSuppressedJitter)
		return
	}
	e.lastPoint = p
	e.hasLast = true
	e.mu.Unlock()
	e.metrics.Record(metrics.CounterAccepted)

	if opts.BoundaryMode == config.BoundaryModeCross {
		if reason, counter, suppressed := e.suppressCrossing(ctx, prev, hasPrev, p); suppressed {
			e.metrics.Record(counter)
			e.addDecision(Decision{Point: p, Stage: "boundary", Reason: reason})
			return
		}
	}
	e.schedule(ctx, p)
}

// suppressCrossing decides whether a movement that passed the jitter
// filter should still be dropped: either the pointer sits inside the
// rectangle keyboard navigation focused, or both endpoints resolve to
// the same window in one snapshot.
func (e *Engine) suppressCrossing(ctx context.Context, prev layout.Point, hasPrev bool, curr layout.Point) (string, string, bool) {
	if source, rect := e.tracker.Snapshot(); source == FocusSourceKeyboard && rect != nil && rect.Contains(curr) {
		return "keyboard-rect", metrics.CounterSuppressedKeyboardRect, true
	}
	if !hasPrev {
		return "", "", false
	}
	world, err := state.NewWorld(ctx, e.server)
	if err != nil {
		// Without a snapshot there is no way to tell whether a boundary
		// was crossed; schedule and let the arbiter decide.
		e.logger.Debugf("boundary snapshot failed: %v", err)
		return "", "", false
	}
	prevRes := e.resolver.Resolve(ctx, world, prev)
	currRes := e.resolver.Resolve(ctx, world, curr)
	if prevRes.Window != nil && currRes.Window != nil && prevRes.Window.ID == currRes.Window.ID {
		return "same-window", metrics.CounterSuppressedSameWindow, true
	}
	return "", "", false
}

// schedule replaces any pending resolution with one for p. The
// generation counter makes a superseded timer that already fired a
// no-op even if it wins the race to the arbiter lock.
func (e *Engine) schedule(ctx context.Context, p layout.Point) {
	e.mu.Lock()
	delay := e.opts.Debounce
	e.generation++
	gen := e.generation
	if e.timer != nil && e.timer.Stop() {
		e.metrics.Record(metrics.CounterCancelled)
	}
	e.pendingPt = p
	e.pendingCtx = ctx
	e.timer = time.AfterFunc(delay, func() { e.fire(gen) })
	e.mu.Unlock()
	e.metrics.Record(metrics.CounterScheduled)
}

// cancelPending discards the pending resolution, if any. Cancellation
// is silent: beyond the cancel counter the dropped unit produces no
// logs and no focus traffic.
func (e *Engine) cancelPending() {
	e.mu.Lock()
	e.generation++
	if e.timer != nil {
		if e.timer.Stop() {
			e.metrics.Record(metrics.CounterCancelled)
		}
		e.timer = nil
	}
	e.mu.Unlock()
}

func (e *Engine) fire(gen uint64) {
	e.resolveMu.Lock()
	defer e.resolveMu.Unlock()

	e.mu.Lock()
	if gen != e.generation {
		e.mu.Unlock()
		return
	}
	p := e.pendingPt
	ctx := e.pendingCtx
	e.timer = nil
	e.mu.Unlock()

	if ctx == nil {
		ctx = context.Background()
	}
	e.metrics.Record(metrics.CounterFired)
	e.attemptFocus(ctx, p)
}

// attemptFocus is the focus arbiter: one debounced pass over a fresh
// world snapshot that either dispatches a single focus command or does
// nothing at all. Every early exit leaves focus untouched.
func (e *Engine) attemptFocus(ctx context.Context, p layout.Point) {
	e.mu.Lock()
	opts := e.opts
	paused := e.paused
	limiter := e.limiter
	e.mu.Unlock()

	if paused {
		e.metrics.Record(metrics.CounterSkippedGate)
		e.addDecision(Decision{Point: p, Stage: "arbiter", Reason: "paused"})
		return
	}
	enabled, err := e.server.AutomationEnabled(ctx)
	if err != nil {
		e.logger.Debugf("automation gate query failed: %v", err)
	}
	if err != nil || !enabled {
		e.metrics.Record(metrics.CounterSkippedGate)
		e.addDecision(Decision{Point: p, Stage: "arbiter", Reason: "automation-disabled"})
		return
	}

	ms, err := e.server.MouseState(ctx)
	if err != nil {
		e.logger.Debugf("mouse state query failed: %v", err)
		e.metrics.Record(metrics.CounterSkippedGuard)
		e.addDecision(Decision{Point: p, Stage: "arbiter", Reason: "mouse-state-error"})
		return
	}
	if ms.ManipulatedWindowID != 0 && ms.ButtonDown {
		e.metrics.Record(metrics.CounterSkippedGuard)
		e.addDecision(Decision{Point: p, Stage: "arbiter", Reason: "manipulating", WindowID: ms.ManipulatedWindowID})
		return
	}

	world, err := state.NewWorld(ctx, e.server)
	if err != nil {
		e.logger.Debugf("world snapshot failed: %v", err)
		e.addDecision(Decision{Point: p, Stage: "arbiter", Reason: "world-error"})
		return
	}

	if opts.IgnoreMenuBarAndDock {
		if reason, inBand := pointInReservedBand(world, p); inBand {
			e.metrics.Record(metrics.CounterSkippedBand)
			e.addDecision(Decision{Point: p, Stage: "arbiter", Reason: reason})
			return
		}
	}

	res := e.resolver.Resolve(ctx, world, p)
	if res.Window == nil {
		e.metrics.Record(metrics.CounterResolveMisses)
		e.addDecision(Decision{Point: p, Stage: "arbiter", Reason: "no-window"})
		return
	}
	if res.Strategy != StrategyHitTest {
		e.metrics.Record(metrics.CounterResolveFallbacks)
	}

	if opts.ignores(res.Window) {
		e.metrics.Record(metrics.CounterSkippedIgnored)
		e.addDecision(Decision{Point: p, Stage: "arbiter", Reason: "ignored",
			WindowID: res.Window.ID, App: res.Window.App, Strategy: res.Strategy})
		return
	}
	if res.Window.ID == world.FocusedWindowID {
		e.metrics.Record(metrics.CounterSkippedFocused)
		e.addDecision(Decision{Point: p, Stage: "arbiter", Reason: "already-focused",
			WindowID: res.Window.ID, App: res.Window.App, Strategy: res.Strategy})
		return
	}
	if opts.rateLimited() && !limiter.Allow() {
		e.metrics.Record(metrics.CounterSkippedRateLimited)
		e.addDecision(Decision{Point: p, Stage: "arbiter", Reason: "rate-limited",
			WindowID: res.Window.ID, App: res.Window.App, Strategy: res.Strategy})
		return
	}

	// Mark the change as mouse-driven before the command goes out so
	// the echoed focus-changed event finds the tracker already set.
	e.tracker.Set(FocusSourceMouse, nil)

	if e.dryRun {
		e.logger.Infof("dry-run: would focus window %d (%s) via %s", res.Window.ID, res.Window.App, res.Strategy)
		e.addDecision(Decision{Point: p, Stage: "dispatch", Reason: "dry-run",
			WindowID: res.Window.ID, App: res.Window.App, Strategy: res.Strategy})
		return
	}
	if err := e.server.FocusWindow(ctx, res.Window.ID, string(FocusSourceMouse)); err != nil {
		// Never retried; the next movement resolves from scratch.
		e.logger.Debugf("focus request for window %d failed: %v", res.Window.ID, err)
		e.metrics.Record(metrics.CounterFocusErrors)
		e.addDecision(Decision{Point: p, Stage: "dispatch", Reason: "focus-error",
			WindowID: res.Window.ID, App: res.Window.App, Strategy: res.Strategy})
		return
	}
	e.metrics.Record(metrics.CounterFocusRequests)
	e.addDecision(Decision{Point: p, Stage: "dispatch", Reason: "focused",
		WindowID: res.Window.ID, App: res.Window.App, Strategy: res.Strategy})
	e.trace("focus.dispatch", map[string]any{
		"windowId": res.Window.ID,
		"app":      res.Window.App,
		"strategy": res.Strategy,
	})
	e.logger.Debugf("focused window %d (%s) via %s", res.Window.ID, res.Window.App, res.Strategy)
}

// pointInReservedBand reports whether p falls in the main monitor's
// menu bar or dock strip. Only the vertical coordinate is checked, so
// the bands extend across every monitor at the same height.
func pointInReservedBand(world *state.World, p layout.Point) (string, bool) {
	main := world.MainMonitor()
	if main == nil {
		return "", false
	}
	if band := layout.MenuBarBand(main.Frame, main.VisibleFrame); band.ContainsY(p.Y) {
		return "menu-bar", true
	}
	if band, ok := layout.DockBand(main.Frame, main.VisibleFrame); ok && band.ContainsY(p.Y) {
		return "dock", true
	}
	return "", false
}

// NotifyFocusChanged records an externally observed focus change so
// keyboard-rect suppression stays accurate. Echoes of this daemon's own
// mouse-sourced commands land here too and are harmless.
func (e *Engine) NotifyFocusChanged(source FocusSource, rect *layout.Rect) {
	e.tracker.Set(source, rect)
}

// Reload swaps in new options and discards any pending resolution so
// nothing scheduled under the old options can still fire. When the
// engine is running the listener session restarts as well; the focus
// tracker carries over untouched.
func (e *Engine) Reload(opts Options) {
	e.mu.Lock()
	e.opts = opts
	e.limiter = rate.NewLimiter(opts.FocusRate, opts.FocusBurst)
	running := e.running
	e.mu.Unlock()
	e.cancelPending()
	if !running {
		return
	}
	select {
	case e.reloadCh <- struct{}{}:
	default:
	}
}

// Pause stops focus dispatch while leaving event consumption alive.
func (e *Engine) Pause() { e.setPaused(true) }

// Resume re-enables focus dispatch.
func (e *Engine) Resume() { e.setPaused(false) }

func (e *Engine) setPaused(paused bool) {
	e.mu.Lock()
	changed := e.paused != paused
	e.paused = paused
	e.mu.Unlock()
	if !changed {
		return
	}
	if paused {
		e.logger.Infof("focus dispatch paused")
	} else {
		e.logger.Infof("focus dispatch resumed")
	}
}

// Paused reports whether focus dispatch is currently paused.
func (e *Engine) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}

// Status is the engine state served over the control socket.
type Status struct {
	Enabled              bool          `json:"enabled"`
	Paused               bool          `json:"paused"`
	DryRun               bool          `json:"dryRun"`
	BoundaryMode         string        `json:"boundaryMode"`
	IgnoreMenuBarAndDock bool          `json:"ignoreMenuBarAndDock"`
	DebounceMs           int64         `json:"debounceMs"`
	MovementThresholdPx  float64       `json:"movementThresholdPx"`
	FocusSource          string        `json:"focusSource"`
	KeyboardRect         *layout.Rect  `json:"keyboardRect,omitempty"`
	LastPoint            *layout.Point `json:"lastPoint,omitempty"`
	PendingResolution    bool          `json:"pendingResolution"`
}

// Status returns a point-in-time view of the engine.
func (e *Engine) Status() Status {
	source, rect := e.tracker.Snapshot()
	e.mu.Lock()
	defer e.mu.Unlock()
	st := Status{
		Enabled:              e.opts.Enabled,
		Paused:               e.paused,
		DryRun:               e.dryRun,
		BoundaryMode:         string(e.opts.BoundaryMode),
		IgnoreMenuBarAndDock: e.opts.IgnoreMenuBarAndDock,
		DebounceMs:           e.opts.Debounce.Milliseconds(),
		MovementThresholdPx:  e.opts.MovementThreshold,
		FocusSource:          string(source),
		KeyboardRect:         rect,
		PendingResolution:    e.timer != nil,
	}
	if e.hasLast {
		p := e.lastPoint
		st.LastPoint = &p
	}
	return st
}

// History returns the retained pipeline decisions, oldest first.
func (e *Engine) History() []Decision {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.history.snapshot()
}

// ResolvePoint runs one resolution pass against a fresh snapshot
// without dispatching anything. It backs the control socket's resolve
// action and the smoke tool.
func (e *Engine) ResolvePoint(ctx context.Context, p layout.Point) (Resolution, error) {
	world, err := state.NewWorld(ctx, e.server)
	if err != nil {
		return Resolution{}, err
	}
	return e.resolver.Resolve(ctx, world, p), nil
}

func (e *Engine) addDecision(d Decision) {
	d.Timestamp = time.Now()
	e.mu.Lock()
	e.history.add(d)
	e.mu.Unlock()
	e.trace("focus.decision", map[string]any{
		"stage":  d.Stage,
		"reason": d.Reason,
		"point":  d.Point,
	})
}

// trace emits a sorted-key field line at trace level. The enabled check
// comes first so suppressed traces never pay for field encoding.
func (e *Engine) trace(event string, fields map[string]any) {
	if e.logger == nil || !e.logger.Enabled(util.LevelTrace) {
		return
	}
	if len(fields) == 0 {
		e.logger.Tracef("%s", event)
		return
	}
	e.logger.Tracef("%s %s", event, formatTraceFields(fields))
}

func formatTraceFields(fields map[string]any) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		encoded, err := json.Marshal(fields[k])
		if err != nil {
			encoded = []byte(strconv.Quote(fmt.Sprintf("%v", fields[k])))
		}
		parts = append(parts, fmt.Sprintf("%s=%s", k, encoded))
	}
	return strings.Join(parts, " ")
}

func parseMouseMovedPayload(payload string) (layout.Point, error) {
	parts := splitPayload(payload, 2)
	if len(parts) != 2 {
		return layout.Point{}, fmt.Errorf("invalid mouse-moved payload %q", payload)
	}
	x, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return layout.Point{}, fmt.Errorf("invalid mouse-moved x %q: %w", parts[0], err)
	}
	y, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return layout.Point{}, fmt.Errorf("invalid mouse-moved y %q: %w", parts[1], err)
	}
	return layout.Point{X: x, Y: y}, nil
}

// parseFocusChangedPayload accepts "id,source" and, for keyboard focus,
// "id,source,x,y,w,h".
func parseFocusChangedPayload(payload string) (uint32, FocusSource, *layout.Rect, error) {
	parts := splitPayload(payload, 6)
	if len(parts) != 2 && len(parts) != 6 {
		return 0, FocusSourceUnknown, nil, fmt.Errorf("invalid focus-changed payload %q", payload)
	}
	id, err := strconv.ParseUint(parts[0], 10, 32)
	if err != nil {
		return 0, FocusSourceUnknown, nil, fmt.Errorf("invalid focus-changed window id %q: %w", parts[0], err)
	}
	source := ParseFocusSource(parts[1])
	var rect *layout.Rect
	if len(parts) == 6 {
		vals := make([]float64, 4)
		for i := range vals {
			v, err := strconv.ParseFloat(parts[2+i], 64)
			if err != nil {
				return 0, FocusSourceUnknown, nil, fmt.Errorf("invalid focus-changed rect component %q: %w", parts[2+i], err)
			}
			vals[i] = v
		}
		rect = &layout.Rect{X: vals[0], Y: vals[1], Width: vals[2], Height: vals[3]}
	}
	return uint32(id), source, rect, nil
}

func splitPayload(payload string, maxParts int) []string {
	trimmed := strings.TrimSpace(payload)
	if trimmed == "" {
		return nil
	}
	parts := strings.SplitN(trimmed, ",", maxParts)
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
