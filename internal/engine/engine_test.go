package engine

import (
	"bytes"
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/Dadams2/AeroSpace/internal/config"
	"github.com/Dadams2/AeroSpace/internal/ipc"
	"github.com/Dadams2/AeroSpace/internal/layout"
	"github.com/Dadams2/AeroSpace/internal/metrics"
	"github.com/Dadams2/AeroSpace/internal/state"
	"github.com/Dadams2/AeroSpace/internal/util"
)

type focusCall struct {
	id     uint32
	source string
}

// fakeServer stands in for the window server. The default fixture is a
// 1440x900 main monitor with a 25px menu bar and 70px dock, two tiled
// windows splitting it vertically, plus an empty 1920x1080 side
// monitor.
type fakeServer struct {
	mu         sync.Mutex
	windows    []state.Window
	workspaces []state.Workspace
	monitors   []state.Monitor
	focusedID  uint32
	mouse      state.MouseState
	automation bool
	windowAtID uint32
	windowAtOK bool
	focusErr   error
	focused    []focusCall
}

func newFakeServer() *fakeServer {
	return &fakeServer{
		windows: []state.Window{
			{ID: 1, App: "Editor", Title: "main.go", Workspace: "main", Frame: layout.Rect{X: 0, Y: 0, Width: 720, Height: 900}},
			{ID: 2, App: "Browser", Title: "docs", Workspace: "main", Frame: layout.Rect{X: 720, Y: 0, Width: 720, Height: 900}},
		},
		workspaces: []state.Workspace{
			{ID: 1, Name: "main", MonitorID: 1, Visible: true},
			{ID: 2, Name: "side", MonitorID: 2, Visible: true},
		},
		monitors: []state.Monitor{
			{ID: 1, Name: "Built-in", Main: true,
				Frame:        layout.Rect{X: 0, Y: 0, Width: 1440, Height: 900},
				VisibleFrame: layout.Rect{X: 0, Y: 25, Width: 1440, Height: 805}},
			{ID: 2, Name: "External",
				Frame:        layout.Rect{X: 1440, Y: 0, Width: 1920, Height: 1080},
				VisibleFrame: layout.Rect{X: 1440, Y: 0, Width: 1920, Height: 1080}},
		},
		focusedID:  1,
		automation: true,
	}
}

func (f *fakeServer) ListWindows(context.Context) ([]state.Window, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]state.Window(nil), f.windows...), nil
}

func (f *fakeServer) ListWorkspaces(context.Context) ([]state.Workspace, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]state.Workspace(nil), f.workspaces...), nil
}

func (f *fakeServer) ListMonitors(context.Context) ([]state.Monitor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]state.Monitor(nil), f.monitors...), nil
}

func (f *fakeServer) FocusedWindowID(context.Context) (uint32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.focusedID, nil
}

func (f *fakeServer) WindowAt(context.Context, layout.Point) (uint32, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.windowAtID, f.windowAtOK, nil
}

func (f *fakeServer) MouseState(context.Context) (state.MouseState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mouse, nil
}

func (f *fakeServer) AutomationEnabled(context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.automation, nil
}

func (f *fakeServer) FocusWindow(_ context.Context, id uint32, source string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.focused = append(f.focused, focusCall{id: id, source: source})
	if f.focusErr != nil {
		return f.focusErr
	}
	f.focusedID = id
	return nil
}

func (f *fakeServer) focusCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.focused)
}

func (f *fakeServer) focusCalls() []focusCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]focusCall(nil), f.focused...)
}

func (f *fakeServer) setMouse(ms state.MouseState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mouse = ms
}

func (f *fakeServer) setAutomation(enabled bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.automation = enabled
}

func (f *fakeServer) setFocused(id uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.focusedID = id
}

func (f *fakeServer) setFocusErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.focusErr = err
}

func testOptions() Options {
	return Options{
		Enabled:              true,
		BoundaryMode:         config.BoundaryModeAlways,
		IgnoreMenuBarAndDock: true,
		Debounce:             10 * time.Millisecond,
		MovementThreshold:    1.0,
		FocusRate:            rate.Inf,
		FocusBurst:           1,
	}
}

func newTestEngine(t *testing.T, srv *fakeServer, opts Options) (*Engine, *metrics.Collector, *bytes.Buffer) {
	t.Helper()
	var logs bytes.Buffer
	logger := util.NewLoggerWithWriter(util.LevelDebug, &logs)
	coll := metrics.NewCollector(true)
	return New(srv, logger, coll, opts, false), coll, &logs
}

func waitForCondition(t *testing.T, timeout time.Duration, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}

func lastReason(eng *Engine) string {
	decisions := eng.History()
	if len(decisions) == 0 {
		return ""
	}
	return decisions[len(decisions)-1].Reason
}

func TestPointerMoveFocusesWindowUnderCursor(t *testing.T) {
	srv := newFakeServer()
	eng, coll, _ := newTestEngine(t, srv, testOptions())

	eng.HandlePointerMoved(context.Background(), layout.Point{X: 1080, Y: 450})

	waitForCondition(t, time.Second, func() bool { return srv.focusCount() == 1 })
	calls := srv.focusCalls()
	if calls[0].id != 2 || calls[0].source != "mouse" {
		t.Fatalf("unexpected focus call %+v", calls[0])
	}
	if got := coll.Value(metrics.CounterFocusRequests); got != 1 {
		t.Fatalf("expected 1 focus request, got %d", got)
	}
	if got := lastReason(eng); got != "focused" {
		t.Fatalf("expected focused decision, got %q", got)
	}
}

func TestMovementAtOrBelowThresholdIsDropped(t *testing.T) {
	srv := newFakeServer()
	opts := testOptions()
	opts.MovementThreshold = 5.0
	opts.Debounce = 200 * time.Millisecond
	eng, coll, _ := newTestEngine(t, srv, opts)

	ctx := context.Background()
	eng.HandlePointerMoved(ctx, layout.Point{X: 100, Y: 100})
	// Distance is exactly 5, which still counts as jitter.
	eng.HandlePointerMoved(ctx, layout.Point{X: 103, Y: 104})

	if got := coll.Value(metrics.CounterAccepted); got != 1 {
		t.Fatalf("expected 1 accepted sample, got %d", got)
	}
	if got := coll.Value(metrics.CounterSuppressedJitter); got != 1 {
		t.Fatalf("expected 1 suppressed sample, got %d", got)
	}
	if got := coll.Value(metrics.CounterScheduled); got != 1 {
		t.Fatalf("expected 1 scheduled resolution, got %d", got)
	}
	eng.cancelPending()
}

func TestDebounceCoalescesBurstIntoLastPoint(t *testing.T) {
	srv := newFakeServer()
	opts := testOptions()
	opts.Debounce = 150 * time.Millisecond
	eng, coll, _ := newTestEngine(t, srv, opts)

	ctx := context.Background()
	for _, p := range []layout.Point{{X: 360, Y: 450}, {X: 700, Y: 450}, {X: 1080, Y: 450}} {
		eng.HandlePointerMoved(ctx, p)
		time.Sleep(5 * time.Millisecond)
	}

	waitForCondition(t, time.Second, func() bool { return srv.focusCount() == 1 })
	if calls := srv.focusCalls(); calls[0].id != 2 {
		t.Fatalf("expected resolution of the last point (window 2), got %+v", calls[0])
	}
	if got := coll.Value(metrics.CounterScheduled); got != 3 {
		t.Fatalf("expected 3 scheduled resolutions, got %d", got)
	}
	if got := coll.Value(metrics.CounterCancelled); got != 2 {
		t.Fatalf("expected 2 superseded resolutions, got %d", got)
	}
	if got := coll.Value(metrics.CounterFired); got != 1 {
		t.Fatalf("expected 1 fired resolution, got %d", got)
	}
}

func TestArbiterSkipsAlreadyFocusedWindow(t *testing.T) {
	srv := newFakeServer()
	eng, coll, _ := newTestEngine(t, srv, testOptions())

	eng.HandlePointerMoved(context.Background(), layout.Point{X: 360, Y: 450})

	waitForCondition(t, time.Second, func() bool {
		return coll.Value(metrics.CounterSkippedFocused) == 1
	})
	if srv.focusCount() != 0 {
		t.Fatalf("expected no focus traffic, got %d calls", srv.focusCount())
	}
}

func TestManipulationGuardBlocksDispatch(t *testing.T) {
	srv := newFakeServer()
	srv.setMouse(state.MouseState{ManipulatedWindowID: 1, ButtonDown: true})
	eng, coll, _ := newTestEngine(t, srv, testOptions())
	ctx := context.Background()

	eng.HandlePointerMoved(ctx, layout.Point{X: 1080, Y: 450})
	waitForCondition(t, time.Second, func() bool {
		return coll.Value(metrics.CounterSkippedGuard) == 1
	})
	if srv.focusCount() != 0 {
		t.Fatalf("expected drag in progress to block focus, got %d calls", srv.focusCount())
	}

	// Button released with the manipulated flag still set is safe again.
	srv.setMouse(state.MouseState{ManipulatedWindowID: 1, ButtonDown: false})
	eng.HandlePointerMoved(ctx, layout.Point{X: 1084, Y: 454})
	waitForCondition(t, time.Second, func() bool { return srv.focusCount() == 1 })
}

func TestAutomationGateDeniesSilently(t *testing.T) {
	srv := newFakeServer()
	srv.setAutomation(false)
	eng, coll, logs := newTestEngine(t, srv, testOptions())
	ctx := context.Background()

	eng.HandlePointerMoved(ctx, layout.Point{X: 1080, Y: 450})
	waitForCondition(t, time.Second, func() bool {
		return coll.Value(metrics.CounterSkippedGate) == 1
	})
	if srv.focusCount() != 0 {
		t.Fatalf("expected gate to block focus, got %d calls", srv.focusCount())
	}
	if strings.Contains(logs.String(), "[WARN]") || strings.Contains(logs.String(), "[ERROR]") {
		t.Fatalf("gate denial should stay below warn, got %q", logs.String())
	}

	srv.setAutomation(true)
	eng.HandlePointerMoved(ctx, layout.Point{X: 1084, Y: 454})
	waitForCondition(t, time.Second, func() bool { return srv.focusCount() == 1 })
}

func TestPauseAndResume(t *testing.T) {
	srv := newFakeServer()
	eng, coll, _ := newTestEngine(t, srv, testOptions())
	ctx := context.Background()

	eng.Pause()
	if !eng.Paused() {
		t.Fatal("expected engine to report paused")
	}
	eng.HandlePointerMoved(ctx, layout.Point{X: 1080, Y: 450})
	waitForCondition(t, time.Second, func() bool {
		return coll.Value(metrics.CounterSkippedGate) == 1
	})
	if got := lastReason(eng); got != "paused" {
		t.Fatalf("expected paused decision, got %q", got)
	}
	if srv.focusCount() != 0 {
		t.Fatalf("expected pause to block focus, got %d calls", srv.focusCount())
	}

	eng.Resume()
	eng.HandlePointerMoved(ctx, layout.Point{X: 1084, Y: 454})
	waitForCondition(t, time.Second, func() bool { return srv.focusCount() == 1 })
}

func TestReservedBandsIgnored(t *testing.T) {
	srv := newFakeServer()
	eng, coll, _ := newTestEngine(t, srv, testOptions())
	ctx := context.Background()

	eng.HandlePointerMoved(ctx, layout.Point{X: 500, Y: 10})
	waitForCondition(t, time.Second, func() bool {
		return coll.Value(metrics.CounterSkippedBand) == 1
	})
	if got := lastReason(eng); got != "menu-bar" {
		t.Fatalf("expected menu-bar decision, got %q", got)
	}

	eng.HandlePointerMoved(ctx, layout.Point{X: 500, Y: 880})
	waitForCondition(t, time.Second, func() bool {
		return coll.Value(metrics.CounterSkippedBand) == 2
	})
	if got := lastReason(eng); got != "dock" {
		t.Fatalf("expected dock decision, got %q", got)
	}
	if srv.focusCount() != 0 {
		t.Fatalf("expected reserved bands to block focus, got %d calls", srv.focusCount())
	}
}

func TestReservedBandsHonoredOnlyWhenConfigured(t *testing.T) {
	srv := newFakeServer()
	srv.setFocused(2)
	opts := testOptions()
	opts.IgnoreMenuBarAndDock = false
	eng, _, _ := newTestEngine(t, srv, opts)

	// The menu-bar strip overlaps window 1's frame, so with the bands
	// disabled the point resolves and focuses normally.
	eng.HandlePointerMoved(context.Background(), layout.Point{X: 500, Y: 10})
	waitForCondition(t, time.Second, func() bool { return srv.focusCount() == 1 })
	if calls := srv.focusCalls(); calls[0].id != 1 {
		t.Fatalf("expected window 1 focused, got %+v", calls[0])
	}
}

func TestIgnorePatternSkipsMatchingApp(t *testing.T) {
	srv := newFakeServer()
	opts := testOptions()
	opts.IgnoreApps = []*regexp.Regexp{regexp.MustCompile(`^Browser$`)}
	eng, coll, _ := newTestEngine(t, srv, opts)

	eng.HandlePointerMoved(context.Background(), layout.Point{X: 1080, Y: 450})
	waitForCondition(t, time.Second, func() bool {
		return coll.Value(metrics.CounterSkippedIgnored) == 1
	})
	if srv.focusCount() != 0 {
		t.Fatalf("expected ignored app to block focus, got %d calls", srv.focusCount())
	}
}

func TestRateLimiterBoundsDispatch(t *testing.T) {
	srv := newFakeServer()
	opts := testOptions()
	opts.FocusRate = rate.Limit(0.001)
	opts.FocusBurst = 1
	eng, coll, _ := newTestEngine(t, srv, opts)
	ctx := context.Background()

	eng.HandlePointerMoved(ctx, layout.Point{X: 1080, Y: 450})
	waitForCondition(t, time.Second, func() bool { return srv.focusCount() == 1 })

	// Focus moved to window 2; heading back to window 1 exceeds the
	// budget and is skipped rather than queued.
	eng.HandlePointerMoved(ctx, layout.Point{X: 360, Y: 450})
	waitForCondition(t, time.Second, func() bool {
		return coll.Value(metrics.CounterSkippedRateLimited) == 1
	})
	if srv.focusCount() != 1 {
		t.Fatalf("expected rate limiter to hold at 1 call, got %d", srv.focusCount())
	}
}

func TestFocusFailureIsCountedNotRetried(t *testing.T) {
	srv := newFakeServer()
	srv.setFocusErr(errors.New("window vanished"))
	eng, coll, _ := newTestEngine(t, srv, testOptions())
	ctx := context.Background()

	eng.HandlePointerMoved(ctx, layout.Point{X: 1080, Y: 450})
	waitForCondition(t, time.Second, func() bool {
		return coll.Value(metrics.CounterFocusErrors) == 1
	})
	if got := srv.focusCount(); got != 1 {
		t.Fatalf("expected exactly one attempt, got %d", got)
	}

	// The next movement starts from scratch.
	srv.setFocusErr(nil)
	eng.HandlePointerMoved(ctx, layout.Point{X: 1084, Y: 454})
	waitForCondition(t, time.Second, func() bool {
		return coll.Value(metrics.CounterFocusRequests) == 1
	})
}

func TestKeyboardRectSuppressesCrossing(t *testing.T) {
	srv := newFakeServer()
	srv.setFocused(2)
	opts := testOptions()
	opts.BoundaryMode = config.BoundaryModeCross
	eng, coll, _ := newTestEngine(t, srv, opts)
	ctx := context.Background()

	rect := layout.Rect{X: 720, Y: 0, Width: 720, Height: 900}
	eng.NotifyFocusChanged(FocusSourceKeyboard, &rect)

	// Drift inside the keyboard-focused frame stays suppressed.
	eng.HandlePointerMoved(ctx, layout.Point{X: 1080, Y: 450})
	if got := coll.Value(metrics.CounterSuppressedKeyboardRect); got != 1 {
		t.Fatalf("expected keyboard-rect suppression, got %d", got)
	}
	if got := coll.Value(metrics.CounterScheduled); got != 0 {
		t.Fatalf("expected nothing scheduled, got %d", got)
	}

	// Leaving the rectangle re-enables focus-follows-mouse.
	eng.HandlePointerMoved(ctx, layout.Point{X: 360, Y: 450})
	waitForCondition(t, time.Second, func() bool { return srv.focusCount() == 1 })
	if calls := srv.focusCalls(); calls[0].id != 1 {
		t.Fatalf("expected window 1 focused, got %+v", calls[0])
	}

	// That dispatch flipped the source to mouse, so the old rectangle
	// no longer suppresses anything.
	eng.HandlePointerMoved(ctx, layout.Point{X: 1080, Y: 450})
	waitForCondition(t, time.Second, func() bool { return srv.focusCount() == 2 })
	if calls := srv.focusCalls(); calls[1].id != 2 {
		t.Fatalf("expected window 2 focused, got %+v", calls[1])
	}
	if got := coll.Value(metrics.CounterSuppressedKeyboardRect); got != 1 {
		t.Fatalf("expected no further keyboard-rect suppression, got %d", got)
	}
}

func TestCrossingWithinSameWindowSuppressed(t *testing.T) {
	srv := newFakeServer()
	opts := testOptions()
	opts.BoundaryMode = config.BoundaryModeCross
	eng, coll, _ := newTestEngine(t, srv, opts)
	ctx := context.Background()

	eng.HandlePointerMoved(ctx, layout.Point{X: 360, Y: 450})
	waitForCondition(t, time.Second, func() bool {
		return coll.Value(metrics.CounterSkippedFocused) == 1
	})

	// Still inside window 1, well past the jitter threshold.
	eng.HandlePointerMoved(ctx, layout.Point{X: 400, Y: 480})
	if got := coll.Value(metrics.CounterSuppressedSameWindow); got != 1 {
		t.Fatalf("expected same-window suppression, got %d", got)
	}
	if got := coll.Value(metrics.CounterScheduled); got != 1 {
		t.Fatalf("expected no new resolution, got %d scheduled", got)
	}

	// Crossing into window 2 schedules again.
	eng.HandlePointerMoved(ctx, layout.Point{X: 1080, Y: 450})
	waitForCondition(t, time.Second, func() bool { return srv.focusCount() == 1 })
	if calls := srv.focusCalls(); calls[0].id != 2 {
		t.Fatalf("expected window 2 focused, got %+v", calls[0])
	}
}

func TestReloadCancelsPendingResolution(t *testing.T) {
	srv := newFakeServer()
	opts := testOptions()
	opts.Debounce = 50 * time.Millisecond
	eng, coll, _ := newTestEngine(t, srv, opts)

	eng.HandlePointerMoved(context.Background(), layout.Point{X: 1080, Y: 450})
	eng.Reload(opts)

	time.Sleep(150 * time.Millisecond)
	if got := srv.focusCount(); got != 0 {
		t.Fatalf("expected cancelled resolution to stay silent, got %d calls", got)
	}
	if got := coll.Value(metrics.CounterCancelled); got != 1 {
		t.Fatalf("expected 1 cancelled resolution, got %d", got)
	}
}

func TestRunConsumesEventsAndReloadRestartsSession(t *testing.T) {
	srv := newFakeServer()
	eng, _, _ := newTestEngine(t, srv, testOptions())

	var subMu sync.Mutex
	var channels []chan ipc.Event
	eng.subscribe = func(ctx context.Context, logger *util.Logger) (<-chan ipc.Event, error) {
		subMu.Lock()
		defer subMu.Unlock()
		ch := make(chan ipc.Event, 16)
		channels = append(channels, ch)
		return ch, nil
	}
	subscribeCount := func() int {
		subMu.Lock()
		defer subMu.Unlock()
		return len(channels)
	}
	channel := func(i int) chan ipc.Event {
		subMu.Lock()
		defer subMu.Unlock()
		return channels[i]
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() {
		errCh <- eng.Run(ctx)
	}()

	waitForCondition(t, time.Second, func() bool { return subscribeCount() == 1 })
	channel(0) <- ipc.Event{Kind: "mouse-moved", Payload: "1080,450"}
	waitForCondition(t, time.Second, func() bool { return srv.focusCount() == 1 })

	rect := layout.Rect{X: 720, Y: 0, Width: 720, Height: 900}
	eng.NotifyFocusChanged(FocusSourceKeyboard, &rect)

	// Disabling tears the session down and idles without subscribing.
	disabled := testOptions()
	disabled.Enabled = false
	eng.Reload(disabled)
	waitForCondition(t, time.Second, func() bool { return !eng.Status().Enabled })
	if got := subscribeCount(); got != 1 {
		t.Fatalf("expected no new subscription while disabled, got %d", got)
	}

	// The tracker is engine state, not session state.
	st := eng.Status()
	if st.FocusSource != string(FocusSourceKeyboard) || st.KeyboardRect == nil {
		t.Fatalf("expected keyboard focus to survive reload, got %+v", st)
	}

	// Re-enabling starts a fresh session with a fresh subscription.
	eng.Reload(testOptions())
	waitForCondition(t, time.Second, func() bool { return subscribeCount() == 2 })
	channel(1) <- ipc.Event{Kind: "mouse-moved", Payload: "360,450"}
	waitForCondition(t, time.Second, func() bool { return srv.focusCount() == 2 })
	if calls := srv.focusCalls(); calls[1].id != 1 {
		t.Fatalf("expected window 1 focused after restart, got %+v", calls[1])
	}

	cancel()
	select {
	case err := <-errCh:
		if err != context.Canceled {
			t.Fatalf("expected context canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("engine Run did not exit after cancel")
	}
}

func TestFocusChangedEventUpdatesTracker(t *testing.T) {
	srv := newFakeServer()
	eng, _, _ := newTestEngine(t, srv, testOptions())

	eng.handleEvent(context.Background(), ipc.Event{
		Kind:    "focus-changed",
		Payload: "2,keyboard,720,0,720,900",
	})

	st := eng.Status()
	if st.FocusSource != string(FocusSourceKeyboard) {
		t.Fatalf("expected keyboard source, got %q", st.FocusSource)
	}
	if st.KeyboardRect == nil || st.KeyboardRect.X != 720 || st.KeyboardRect.Width != 720 {
		t.Fatalf("unexpected keyboard rect %+v", st.KeyboardRect)
	}

	eng.handleEvent(context.Background(), ipc.Event{Kind: "focus-changed", Payload: "2,mouse"})
	if st := eng.Status(); st.FocusSource != string(FocusSourceMouse) || st.KeyboardRect != nil {
		t.Fatalf("expected mouse source without rect, got %+v", st)
	}
}

func TestDryRunResolvesWithoutDispatch(t *testing.T) {
	srv := newFakeServer()
	var logs bytes.Buffer
	logger := util.NewLoggerWithWriter(util.LevelDebug, &logs)
	coll := metrics.NewCollector(true)
	eng := New(srv, logger, coll, testOptions(), true)

	eng.HandlePointerMoved(context.Background(), layout.Point{X: 1080, Y: 450})
	waitForCondition(t, time.Second, func() bool { return lastReason(eng) == "dry-run" })
	if srv.focusCount() != 0 {
		t.Fatalf("expected dry-run to skip dispatch, got %d calls", srv.focusCount())
	}
	if !strings.Contains(logs.String(), "dry-run: would focus window 2") {
		t.Fatalf("expected dry-run log, got %q", logs.String())
	}
}

func TestStatusReportsEngineState(t *testing.T) {
	srv := newFakeServer()
	opts := testOptions()
	opts.Debounce = 200 * time.Millisecond
	eng, _, _ := newTestEngine(t, srv, opts)

	st := eng.Status()
	if !st.Enabled || st.Paused || st.DryRun {
		t.Fatalf("unexpected initial status %+v", st)
	}
	if st.BoundaryMode != string(config.BoundaryModeAlways) || st.DebounceMs != 200 {
		t.Fatalf("unexpected option echo %+v", st)
	}
	if st.FocusSource != string(FocusSourceUnknown) || st.LastPoint != nil || st.PendingResolution {
		t.Fatalf("expected pristine tracker state, got %+v", st)
	}

	eng.HandlePointerMoved(context.Background(), layout.Point{X: 1080, Y: 450})
	st = eng.Status()
	if st.LastPoint == nil || st.LastPoint.X != 1080 {
		t.Fatalf("expected last point recorded, got %+v", st.LastPoint)
	}
	if !st.PendingResolution {
		t.Fatal("expected a pending resolution")
	}
	eng.cancelPending()
}

func TestHistoryRecordsDecisionsInOrder(t *testing.T) {
	srv := newFakeServer()
	eng, coll, _ := newTestEngine(t, srv, testOptions())
	ctx := context.Background()

	eng.HandlePointerMoved(ctx, layout.Point{X: 500, Y: 10})
	waitForCondition(t, time.Second, func() bool {
		return coll.Value(metrics.CounterSkippedBand) == 1
	})
	eng.HandlePointerMoved(ctx, layout.Point{X: 1080, Y: 450})
	waitForCondition(t, time.Second, func() bool { return srv.focusCount() == 1 })

	var reasons []string
	for _, d := range eng.History() {
		reasons = append(reasons, d.Reason)
	}
	if len(reasons) != 2 || reasons[0] != "menu-bar" || reasons[1] != "focused" {
		t.Fatalf("unexpected decision trail %v", reasons)
	}
}

func TestTraceLogsDecisionFields(t *testing.T) {
	srv := newFakeServer()
	var logs bytes.Buffer
	logger := util.NewLoggerWithWriter(util.LevelTrace, &logs)
	coll := metrics.NewCollector(true)
	eng := New(srv, logger, coll, testOptions(), false)

	eng.HandlePointerMoved(context.Background(), layout.Point{X: 1080, Y: 450})
	waitForCondition(t, time.Second, func() bool { return srv.focusCount() == 1 })

	out := logs.String()
	if !strings.Contains(out, "focus.decision") || !strings.Contains(out, `reason="focused"`) {
		t.Fatalf("expected decision trace, got %q", out)
	}
	if !strings.Contains(out, "focus.dispatch") || !strings.Contains(out, `strategy="`) {
		t.Fatalf("expected dispatch trace, got %q", out)
	}
}

func TestResolvePointReportsStrategy(t *testing.T) {
	srv := newFakeServer()
	eng, _, _ := newTestEngine(t, srv, testOptions())

	res, err := eng.ResolvePoint(context.Background(), layout.Point{X: 360, Y: 450})
	if err != nil {
		t.Fatalf("ResolvePoint returned error: %v", err)
	}
	if res.Window == nil || res.Window.ID != 1 {
		t.Fatalf("unexpected resolution %+v", res)
	}
	if res.Strategy != StrategyTiled {
		t.Fatalf("expected tiled strategy, got %q", res.Strategy)
	}
	if srv.focusCount() != 0 {
		t.Fatalf("expected no dispatch from ResolvePoint, got %d calls", srv.focusCount())
	}
}

func TestParseMouseMovedPayload(t *testing.T) {
	cases := []struct {
		name    string
		payload string
		want    layout.Point
		wantErr bool
	}{
		{name: "plain", payload: "100,200", want: layout.Point{X: 100, Y: 200}},
		{name: "fractional with spaces", payload: " 512.5 , 33.25 ", want: layout.Point{X: 512.5, Y: 33.25}},
		{name: "negative", payload: "-120,45", want: layout.Point{X: -120, Y: 45}},
		{name: "missing y", payload: "100", wantErr: true},
		{name: "empty", payload: "", wantErr: true},
		{name: "garbage", payload: "abc,def", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseMouseMovedPayload(tc.payload)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tc.payload)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %+v, got %+v", tc.want, got)
			}
		})
	}
}

func TestParseFocusChangedPayload(t *testing.T) {
	id, source, rect, err := parseFocusChangedPayload("42,keyboard,10,20,300,400")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != 42 || source != FocusSourceKeyboard {
		t.Fatalf("unexpected id/source %d/%q", id, source)
	}
	if rect == nil || rect.X != 10 || rect.Y != 20 || rect.Width != 300 || rect.Height != 400 {
		t.Fatalf("unexpected rect %+v", rect)
	}

	id, source, rect, err = parseFocusChangedPayload("7,mouse")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != 7 || source != FocusSourceMouse || rect != nil {
		t.Fatalf("unexpected parse %d/%q/%+v", id, source, rect)
	}

	for _, payload := range []string{"", "x,mouse", "7,keyboard,1,2,3", "7,keyboard,a,b,c,d"} {
		if _, _, _, err := parseFocusChangedPayload(payload); err == nil {
			t.Fatalf("expected error for %q", payload)
		}
	}
}
