package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"sort"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/Dadams2/AeroSpace/internal/config"
	"github.com/Dadams2/AeroSpace/internal/engine"
	"github.com/Dadams2/AeroSpace/internal/layout"
	"github.com/Dadams2/AeroSpace/internal/metrics"
	"github.com/Dadams2/AeroSpace/internal/state"
	"github.com/Dadams2/AeroSpace/internal/util"
)

type benchFixture struct {
	Name            string
	Windows         []state.Window
	Workspaces      []state.Workspace
	Monitors        []state.Monitor
	FocusedWindowID uint32
	Samples         []benchSample
}

type benchSample struct {
	Point layout.Point
	Delay time.Duration
}

// fixtureFile is the serialized fixture layout. The state types carry no
// JSON tags, so the wire form is declared here and converted.
type fixtureFile struct {
	Name    string          `json:"name"`
	World   fixtureWorld    `json:"world"`
	Samples []fixtureSample `json:"samples"`
}

type fixtureWorld struct {
	Windows         []fixtureWindow    `json:"windows"`
	Workspaces      []fixtureWorkspace `json:"workspaces"`
	Monitors        []fixtureMonitor   `json:"monitors"`
	FocusedWindowID uint32             `json:"focusedWindowId"`
}

type fixtureWindow struct {
	ID        uint32      `json:"id"`
	App       string      `json:"app"`
	Title     string      `json:"title,omitempty"`
	Workspace string      `json:"workspace"`
	Floating  bool        `json:"floating,omitempty"`
	Frame     layout.Rect `json:"frame"`
}

type fixtureWorkspace struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	MonitorID   int    `json:"monitorId"`
	Visible     bool   `json:"visible"`
	MRUWindowID uint32 `json:"mruWindowId,omitempty"`
}

type fixtureMonitor struct {
	ID           int         `json:"id"`
	Name         string      `json:"name"`
	Frame        layout.Rect `json:"frame"`
	VisibleFrame layout.Rect `json:"visibleFrame"`
	Main         bool        `json:"main,omitempty"`
}

type fixtureSample struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Delay string  `json:"delay,omitempty"`
}

type benchStageStats struct {
	Min  float64 `json:"minMs"`
	Mean float64 `json:"meanMs"`
	P50  float64 `json:"p50Ms"`
	P95  float64 `json:"p95Ms"`
	P99  float64 `json:"p99Ms"`
	Max  float64 `json:"maxMs"`
}

type benchFocusStats struct {
	Total        int     `json:"total"`
	PerIteration float64 `json:"perIteration"`
	PerSample    float64 `json:"perSample"`
}

type benchAllocationStats struct {
	Total            uint64  `json:"totalAllocations"`
	PerSample        float64 `json:"allocationsPerSample"`
	BytesTotal       uint64  `json:"bytesTotal"`
	BytesPerSample   float64 `json:"bytesPerSample"`
	HeapAllocStart   uint64  `json:"heapAllocStartBytes"`
	HeapAllocEnd     uint64  `json:"heapAllocEndBytes"`
	HeapAllocDelta   int64   `json:"heapAllocDeltaBytes"`
	HeapObjectsDelta int64   `json:"heapObjectsDelta"`
}

type benchSummary struct {
	Fixture             string               `json:"fixture"`
	Iterations          int                  `json:"iterations"`
	WarmupIterations    int                  `json:"warmupIterations"`
	SamplesPerIteration int                  `json:"samplesPerIteration"`
	TotalSamples        int                  `json:"totalSamples"`
	FocusRequests       benchFocusStats      `json:"focusRequests"`
	Counters            map[string]uint64    `json:"counters"`
	Intake              benchStageStats      `json:"intakeLatency"`
	Resolve             benchStageStats      `json:"resolveLatency"`
	IterationDuration   benchStageStats      `json:"iterationDuration"`
	Allocations         benchAllocationStats `json:"allocations"`
	TotalDurationMs     float64              `json:"totalDurationMs"`
	SamplesPerSecond    float64              `json:"samplesPerSecond"`
}

type benchReport struct {
	Summary benchSummary `json:"summary"`
}

// benchServer is an in-process stand-in for the window server. Windows
// are held in z-order, topmost first, so hit-testing returns the first
// frame containing the probe point.
type benchServer struct {
	mu         sync.Mutex
	windows    []state.Window
	workspaces []state.Workspace
	monitors   []state.Monitor
	focusedID  uint32
	requests   int
}

func (b *benchServer) ListWindows(context.Context) ([]state.Window, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	windows := make([]state.Window, len(b.windows))
	copy(windows, b.windows)
	return windows, nil
}

func (b *benchServer) ListWorkspaces(context.Context) ([]state.Workspace, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	workspaces := make([]state.Workspace, len(b.workspaces))
	copy(workspaces, b.workspaces)
	return workspaces, nil
}

func (b *benchServer) ListMonitors(context.Context) ([]state.Monitor, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	monitors := make([]state.Monitor, len(b.monitors))
	copy(monitors, b.monitors)
	return monitors, nil
}

func (b *benchServer) FocusedWindowID(context.Context) (uint32, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.focusedID, nil
}

func (b *benchServer) WindowAt(_ context.Context, p layout.Point) (uint32, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, win := range b.windows {
		if win.Frame.Contains(p) {
			return win.ID, true, nil
		}
	}
	return 0, false, nil
}

func (b *benchServer) MouseState(context.Context) (state.MouseState, error) {
	return state.MouseState{}, nil
}

func (b *benchServer) AutomationEnabled(context.Context) (bool, error) {
	return true, nil
}

func (b *benchServer) FocusWindow(_ context.Context, id uint32, _ string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requests++
	b.focusedID = id
	return nil
}

func (b *benchServer) FocusRequests() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.requests
}

func main() {
	fixturePath := flag.String("fixture", "", "path to JSON replay fixture (default: built-in synthetic trace)")
	iterations := flag.Int("iterations", 10, "number of times to replay the fixture")
	warmup := flag.Int("warmup", 1, "number of warm-up iterations to run before timing")
	debounce := flag.Duration("debounce", 5*time.Millisecond, "engine debounce during replay")
	boundaryMode := flag.String("boundary-mode", string(config.BoundaryModeCross), "boundary mode during replay (crossBoundary|always)")
	respectDelays := flag.Bool("respect-delays", true, "sleep for sample delays declared in the fixture")
	jsonOutput := flag.Bool("json", false, "emit the report as JSON instead of the tabular summary")
	writeFixture := flag.String("write-fixture", "", "write the built-in synthetic fixture to a file and exit")
	cpuProfile := flag.String("cpu-profile", "", "write CPU profile to file")
	memProfile := flag.String("mem-profile", "", "write heap profile to file")
	logLevel := flag.String("log-level", "warn", "log level (trace|debug|info|warn|error)")
	flag.Parse()

	if *writeFixture != "" {
		if err := writeFixtureFile(defaultFixture(), *writeFixture); err != nil {
			exitErr(fmt.Errorf("write fixture: %w", err))
		}
		fmt.Printf("wrote %s\n", *writeFixture)
		return
	}

	if *iterations <= 0 {
		fmt.Fprintln(os.Stderr, "iterations must be positive")
		os.Exit(1)
	}
	if *warmup < 0 {
		fmt.Fprintln(os.Stderr, "warmup must be zero or positive")
		os.Exit(1)
	}

	logger := util.NewLogger(util.ParseLogLevel(*logLevel))

	opts, err := buildBenchOptions(*debounce, *boundaryMode)
	if err != nil {
		exitErr(err)
	}

	fixture := defaultFixture()
	if *fixturePath != "" {
		loaded, loadErr := loadFixture(*fixturePath, fixture)
		if loadErr != nil {
			exitErr(fmt.Errorf("load fixture: %w", loadErr))
		}
		fixture = loaded
	}
	if len(fixture.Samples) == 0 {
		exitErr(errors.New("fixture contains no samples"))
	}

	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			exitErr(fmt.Errorf("create cpu profile: %w", err))
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			exitErr(fmt.Errorf("start cpu profile: %w", err))
		}
		defer pprof.StopCPUProfile()
	}

	ctx := context.Background()

	for i := 0; i < *warmup; i++ {
		if _, err := replayIteration(ctx, fixture, opts, logger, *respectDelays, false); err != nil {
			exitErr(fmt.Errorf("warmup iteration %d: %w", i+1, err))
		}
	}

	runtime.GC()
	var startMem runtime.MemStats
	runtime.ReadMemStats(&startMem)

	results := make([]iterationResult, 0, *iterations)
	for i := 0; i < *iterations; i++ {
		result, err := replayIteration(ctx, fixture, opts, logger, *respectDelays, true)
		if err != nil {
			exitErr(fmt.Errorf("iteration %d: %w", i+1, err))
		}
		results = append(results, result)
	}

	runtime.GC()
	var endMem runtime.MemStats
	runtime.ReadMemStats(&endMem)

	if *memProfile != "" {
		f, err := os.Create(*memProfile)
		if err != nil {
			exitErr(fmt.Errorf("create mem profile: %w", err))
		}
		defer f.Close()
		if err := pprof.WriteHeapProfile(f); err != nil {
			exitErr(fmt.Errorf("write heap profile: %w", err))
		}
	}

	report := buildReport(fixture, *iterations, *warmup, results, startMem, endMem)
	if *jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			exitErr(fmt.Errorf("encode report: %w", err))
		}
		return
	}
	if err := printHumanSummary(report.Summary, os.Stdout); err != nil {
		exitErr(fmt.Errorf("print summary: %w", err))
	}
}

func buildBenchOptions(debounce time.Duration, boundaryMode string) (engine.Options, error) {
	cfg := config.Default()
	// The default rate limit would cap dispatch counts over a long replay.
	cfg.FocusRateLimit.PerSecond = 0
	opts, err := engine.BuildOptions(cfg)
	if err != nil {
		return engine.Options{}, fmt.Errorf("compile options: %w", err)
	}
	if debounce > 0 {
		opts.Debounce = debounce
	}
	mode := config.BoundaryMode(strings.TrimSpace(boundaryMode))
	switch mode {
	case config.BoundaryModeCross, config.BoundaryModeAlways:
		opts.BoundaryMode = mode
	default:
		return engine.Options{}, fmt.Errorf("unsupported boundary mode %q", boundaryMode)
	}
	return opts, nil
}

type iterationResult struct {
	Duration      time.Duration
	FocusRequests int
	Counters      map[string]uint64
	Intake        []time.Duration
	Resolve       []time.Duration
}

func replayIteration(ctx context.Context, fixture benchFixture, opts engine.Options, logger *util.Logger, respectDelays bool, capture bool) (iterationResult, error) {
	srv := fixture.newServer()
	collector := metrics.NewCollector(true)
	eng := engine.New(srv, logger, collector, opts, false)

	var intake, resolve []time.Duration
	if capture {
		intake = make([]time.Duration, 0, len(fixture.Samples))
		resolve = make([]time.Duration, 0, len(fixture.Samples))
	}

	start := time.Now()
	for _, sample := range fixture.Samples {
		if respectDelays && sample.Delay > 0 {
			time.Sleep(sample.Delay)
		}
		intakeStart := time.Now()
		eng.HandlePointerMoved(ctx, sample.Point)
		intakeElapsed := time.Since(intakeStart)

		resolveStart := time.Now()
		if _, err := eng.ResolvePoint(ctx, sample.Point); err != nil {
			return iterationResult{}, fmt.Errorf("resolve %.0f,%.0f: %w", sample.Point.X, sample.Point.Y, err)
		}
		resolveElapsed := time.Since(resolveStart)

		if capture {
			intake = append(intake, intakeElapsed)
			resolve = append(resolve, resolveElapsed)
		}
	}
	drainPending(eng, opts.Debounce)

	return iterationResult{
		Duration:      time.Since(start),
		FocusRequests: srv.FocusRequests(),
		Counters:      counterMap(collector.Snapshot()),
		Intake:        intake,
		Resolve:       resolve,
	}, nil
}

// drainPending waits for a scheduled resolution left over from the last
// sample to fire before the iteration is scored.
func drainPending(eng *engine.Engine, debounce time.Duration) {
	deadline := time.Now().Add(debounce + 250*time.Millisecond)
	for time.Now().Before(deadline) {
		if !eng.Status().PendingResolution {
			return
		}
		time.Sleep(time.Millisecond)
	}
}

func counterMap(snap metrics.Snapshot) map[string]uint64 {
	counters := make(map[string]uint64, len(snap.Counters))
	for _, counter := range snap.Counters {
		counters[counter.Name] = counter.Count
	}
	return counters
}

func buildReport(fixture benchFixture, iterations int, warmup int, results []iterationResult, start, end runtime.MemStats) benchReport {
	totalSamples := len(fixture.Samples) * iterations

	var (
		intake             []time.Duration
		resolve            []time.Duration
		iterationDurations []time.Duration
		focusRequests      int
	)
	counters := make(map[string]uint64)
	for _, result := range results {
		intake = append(intake, result.Intake...)
		resolve = append(resolve, result.Resolve...)
		iterationDurations = append(iterationDurations, result.Duration)
		focusRequests += result.FocusRequests
		for name, count := range result.Counters {
			counters[name] += count
		}
	}

	intakeStats, _ := buildStageStats(intake)
	resolveStats, _ := buildStageStats(resolve)
	iterationStats, totalDuration := buildStageStats(iterationDurations)

	allocs := end.Mallocs - start.Mallocs
	bytesAllocated := end.TotalAlloc - start.TotalAlloc
	summary := benchSummary{
		Fixture:             fixture.Name,
		Iterations:          iterations,
		WarmupIterations:    warmup,
		SamplesPerIteration: len(fixture.Samples),
		TotalSamples:        totalSamples,
		FocusRequests: benchFocusStats{
			Total:        focusRequests,
			PerIteration: safeDivide(focusRequests, iterations),
			PerSample:    safeDivide(focusRequests, totalSamples),
		},
		Counters:          counters,
		Intake:            intakeStats,
		Resolve:           resolveStats,
		IterationDuration: iterationStats,
		Allocations: benchAllocationStats{
			Total:            allocs,
			PerSample:        safeDivideUint(allocs, totalSamples),
			BytesTotal:       bytesAllocated,
			BytesPerSample:   safeDivideUint(bytesAllocated, totalSamples),
			HeapAllocStart:   start.HeapAlloc,
			HeapAllocEnd:     end.HeapAlloc,
			HeapAllocDelta:   int64(end.HeapAlloc) - int64(start.HeapAlloc),
			HeapObjectsDelta: int64(end.HeapObjects) - int64(start.HeapObjects),
		},
		TotalDurationMs:  toMillis(totalDuration),
		SamplesPerSecond: samplesPerSecond(totalDuration, totalSamples),
	}

	return benchReport{Summary: summary}
}

func buildStageStats(durations []time.Duration) (benchStageStats, time.Duration) {
	stats := benchStageStats{}
	if len(durations) == 0 {
		return stats, 0
	}
	total := time.Duration(0)
	for _, d := range durations {
		total += d
	}
	mean := total / time.Duration(len(durations))
	sorted := append([]time.Duration(nil), durations...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	stats.Min = toMillis(sorted[0])
	stats.Mean = toMillis(mean)
	stats.P50 = toMillis(percentile(sorted, 0.50))
	stats.P95 = toMillis(percentile(sorted, 0.95))
	stats.P99 = toMillis(percentile(sorted, 0.99))
	stats.Max = toMillis(sorted[len(sorted)-1])
	return stats, total
}

func safeDivide(total int, count int) float64 {
	if count == 0 {
		return 0
	}
	return float64(total) / float64(count)
}

func safeDivideUint(total uint64, count int) float64 {
	if count == 0 {
		return 0
	}
	return float64(total) / float64(count)
}

func printHumanSummary(summary benchSummary, w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Fixture:\t%s\n", summary.Fixture)
	fmt.Fprintf(tw, "Iterations:\t%d\n", summary.Iterations)
	fmt.Fprintf(tw, "Warmup iterations:\t%d\n", summary.WarmupIterations)
	fmt.Fprintf(tw, "Samples/iteration:\t%d\n", summary.SamplesPerIteration)
	fmt.Fprintf(tw, "Total samples:\t%d\n", summary.TotalSamples)
	fmt.Fprintf(tw, "Focus requests:\t%d (%.2f / iter, %.2f / sample)\n",
		summary.FocusRequests.Total, summary.FocusRequests.PerIteration, summary.FocusRequests.PerSample)
	fmt.Fprintf(tw, "Suppressed:\tjitter %d | same-window %d | keyboard-rect %d\n",
		summary.Counters[metrics.CounterSuppressedJitter],
		summary.Counters[metrics.CounterSuppressedSameWindow],
		summary.Counters[metrics.CounterSuppressedKeyboardRect])
	fmt.Fprintf(tw, "Scheduler:\tscheduled %d | fired %d | cancelled %d\n",
		summary.Counters[metrics.CounterScheduled],
		summary.Counters[metrics.CounterFired],
		summary.Counters[metrics.CounterCancelled])
	fmt.Fprintf(tw, "Intake latency (ms):\t%s\n", formatStage(summary.Intake))
	fmt.Fprintf(tw, "Resolve latency (ms):\t%s\n", formatStage(summary.Resolve))
	fmt.Fprintf(tw, "Iteration duration (ms):\t%s\n", formatStage(summary.IterationDuration))
	fmt.Fprintf(tw, "Allocations:\t%d total (%.2f / sample)\n",
		summary.Allocations.Total, summary.Allocations.PerSample)
	fmt.Fprintf(tw, "Bytes allocated:\t%s (%.2f / sample)\n",
		formatBytesUnsigned(summary.Allocations.BytesTotal), summary.Allocations.BytesPerSample)
	fmt.Fprintf(tw, "Heap delta:\t%s change, %d objects\n",
		formatBytesSigned(summary.Allocations.HeapAllocDelta), summary.Allocations.HeapObjectsDelta)
	fmt.Fprintf(tw, "Samples/sec:\t%.2f\n", summary.SamplesPerSecond)
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w)
	return err
}

func formatStage(stats benchStageStats) string {
	return fmt.Sprintf("min %.3f | mean %.3f | p50 %.3f | p95 %.3f | p99 %.3f | max %.3f",
		stats.Min, stats.Mean, stats.P50, stats.P95, stats.P99, stats.Max)
}

func formatBytesUnsigned(bytes uint64) string {
	const miB = 1024 * 1024
	if bytes == 0 {
		return "0 B (0.00 MiB)"
	}
	return fmt.Sprintf("%d B (%.2f MiB)", bytes, float64(bytes)/float64(miB))
}

func formatBytesSigned(delta int64) string {
	if delta == 0 {
		return "0 B (0.00 MiB)"
	}
	sign := ""
	if delta < 0 {
		sign = "-"
		delta = -delta
	}
	return fmt.Sprintf("%s%s", sign, formatBytesUnsigned(uint64(delta)))
}

func samplesPerSecond(total time.Duration, samples int) float64 {
	if total <= 0 || samples == 0 {
		return 0
	}
	seconds := total.Seconds()
	if seconds <= 0 {
		return 0
	}
	return float64(samples) / seconds
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[len(sorted)-1]
	}
	idx := int(p*float64(len(sorted)-1) + 0.5)
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func toMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func (f benchFixture) newServer() *benchServer {
	windows := make([]state.Window, len(f.Windows))
	copy(windows, f.Windows)
	workspaces := make([]state.Workspace, len(f.Workspaces))
	copy(workspaces, f.Workspaces)
	monitors := make([]state.Monitor, len(f.Monitors))
	copy(monitors, f.Monitors)
	return &benchServer{
		windows:    windows,
		workspaces: workspaces,
		monitors:   monitors,
		focusedID:  f.FocusedWindowID,
	}
}

func loadFixture(path string, base benchFixture) (benchFixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return benchFixture{}, err
	}
	var payload fixtureFile
	if err := json.Unmarshal(data, &payload); err != nil {
		return benchFixture{}, err
	}

	fixture := benchFixture{
		Name:            fallback(payload.Name, filepath.Base(path)),
		FocusedWindowID: payload.World.FocusedWindowID,
	}
	for _, win := range payload.World.Windows {
		fixture.Windows = append(fixture.Windows, state.Window{
			ID:        win.ID,
			App:       win.App,
			Title:     win.Title,
			Workspace: win.Workspace,
			Floating:  win.Floating,
			Frame:     win.Frame,
		})
	}
	for _, ws := range payload.World.Workspaces {
		fixture.Workspaces = append(fixture.Workspaces, state.Workspace{
			ID:          ws.ID,
			Name:        ws.Name,
			MonitorID:   ws.MonitorID,
			Visible:     ws.Visible,
			MRUWindowID: ws.MRUWindowID,
		})
	}
	for _, mon := range payload.World.Monitors {
		fixture.Monitors = append(fixture.Monitors, state.Monitor{
			ID:           mon.ID,
			Name:         mon.Name,
			Frame:        mon.Frame,
			VisibleFrame: mon.VisibleFrame,
			Main:         mon.Main,
		})
	}
	for _, sample := range payload.Samples {
		delay := time.Duration(0)
		if sample.Delay != "" {
			d, err := time.ParseDuration(sample.Delay)
			if err != nil {
				return benchFixture{}, fmt.Errorf("parse delay %q: %w", sample.Delay, err)
			}
			delay = d
		}
		fixture.Samples = append(fixture.Samples, benchSample{
			Point: layout.Point{X: sample.X, Y: sample.Y},
			Delay: delay,
		})
	}

	if len(fixture.Windows) == 0 {
		fixture.Windows = append([]state.Window(nil), base.Windows...)
	}
	if len(fixture.Workspaces) == 0 {
		fixture.Workspaces = append([]state.Workspace(nil), base.Workspaces...)
	}
	if len(fixture.Monitors) == 0 {
		fixture.Monitors = append([]state.Monitor(nil), base.Monitors...)
	}
	if fixture.FocusedWindowID == 0 {
		fixture.FocusedWindowID = base.FocusedWindowID
	}
	if len(fixture.Samples) == 0 {
		if len(base.Samples) == 0 {
			return benchFixture{}, errors.New("fixture contains no samples")
		}
		fixture.Samples = append([]benchSample(nil), base.Samples...)
	}
	return fixture, nil
}

func writeFixtureFile(fixture benchFixture, path string) error {
	payload := fixtureFile{
		Name: fixture.Name,
		World: fixtureWorld{
			FocusedWindowID: fixture.FocusedWindowID,
		},
	}
	for _, win := range fixture.Windows {
		payload.World.Windows = append(payload.World.Windows, fixtureWindow{
			ID:        win.ID,
			App:       win.App,
			Title:     win.Title,
			Workspace: win.Workspace,
			Floating:  win.Floating,
			Frame:     win.Frame,
		})
	}
	for _, ws := range fixture.Workspaces {
		payload.World.Workspaces = append(payload.World.Workspaces, fixtureWorkspace{
			ID:          ws.ID,
			Name:        ws.Name,
			MonitorID:   ws.MonitorID,
			Visible:     ws.Visible,
			MRUWindowID: ws.MRUWindowID,
		})
	}
	for _, mon := range fixture.Monitors {
		payload.World.Monitors = append(payload.World.Monitors, fixtureMonitor{
			ID:           mon.ID,
			Name:         mon.Name,
			Frame:        mon.Frame,
			VisibleFrame: mon.VisibleFrame,
			Main:         mon.Main,
		})
	}
	for _, sample := range fixture.Samples {
		entry := fixtureSample{X: sample.Point.X, Y: sample.Point.Y}
		if sample.Delay > 0 {
			entry.Delay = sample.Delay.String()
		}
		payload.Samples = append(payload.Samples, entry)
	}

	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create fixture dir: %w", err)
		}
	}
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer out.Close()
	enc := json.NewEncoder(out)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}

// defaultFixture models a laptop display with two tiled windows and one
// floating scratchpad. The sample trace opens with sub-threshold jitter,
// sweeps from the editor into the browser, detours through the floating
// window and the menu bar band, then settles back in the editor.
func defaultFixture() benchFixture {
	samples := []benchSample{
		{Point: layout.Point{X: 360, Y: 450}},
		{Point: layout.Point{X: 360.4, Y: 450.2}, Delay: time.Millisecond},
		{Point: layout.Point{X: 360.1, Y: 449.8}, Delay: time.Millisecond},
		{Point: layout.Point{X: 360.6, Y: 450.4}, Delay: time.Millisecond},
		{Point: layout.Point{X: 420, Y: 452}, Delay: 2 * time.Millisecond},
		{Point: layout.Point{X: 480, Y: 455}, Delay: 2 * time.Millisecond},
		{Point: layout.Point{X: 545, Y: 458}, Delay: 2 * time.Millisecond},
		{Point: layout.Point{X: 610, Y: 460}, Delay: 2 * time.Millisecond},
		{Point: layout.Point{X: 680, Y: 462}, Delay: 2 * time.Millisecond},
		{Point: layout.Point{X: 760, Y: 463}, Delay: 2 * time.Millisecond},
		{Point: layout.Point{X: 860, Y: 464}, Delay: 2 * time.Millisecond},
		{Point: layout.Point{X: 960, Y: 465}, Delay: 60 * time.Millisecond},
		{Point: layout.Point{X: 1120, Y: 660}, Delay: 30 * time.Millisecond},
		{Point: layout.Point{X: 1150, Y: 690}, Delay: 30 * time.Millisecond},
		{Point: layout.Point{X: 700, Y: 10}, Delay: 30 * time.Millisecond},
		{Point: layout.Point{X: 400, Y: 12}, Delay: 2 * time.Millisecond},
		{Point: layout.Point{X: 500, Y: 430}, Delay: 30 * time.Millisecond},
		{Point: layout.Point{X: 420, Y: 440}, Delay: 30 * time.Millisecond},
		{Point: layout.Point{X: 420.5, Y: 440.3}, Delay: time.Millisecond},
		{Point: layout.Point{X: 419.8, Y: 439.9}, Delay: time.Millisecond},
		{Point: layout.Point{X: 300, Y: 500}, Delay: 30 * time.Millisecond},
		{Point: layout.Point{X: 200, Y: 520}, Delay: 30 * time.Millisecond},
		{Point: layout.Point{X: 960, Y: 465}, Delay: 60 * time.Millisecond},
		{Point: layout.Point{X: 360, Y: 450}, Delay: 60 * time.Millisecond},
	}
	return benchFixture{
		Name: "synthetic-editor",
		Windows: []state.Window{
			{
				ID:        3,
				App:       "Scratchpad",
				Title:     "notes",
				Workspace: "main",
				Floating:  true,
				Frame:     layout.Rect{X: 1040, Y: 590, Width: 320, Height: 240},
			},
			{
				ID:        1,
				App:       "Editor",
				Title:     "main.go",
				Workspace: "main",
				Frame:     layout.Rect{X: 0, Y: 25, Width: 720, Height: 875},
			},
			{
				ID:        2,
				App:       "Browser",
				Title:     "docs",
				Workspace: "main",
				Frame:     layout.Rect{X: 720, Y: 25, Width: 720, Height: 875},
			},
		},
		Workspaces: []state.Workspace{
			{ID: 1, Name: "main", MonitorID: 1, Visible: true, MRUWindowID: 1},
		},
		Monitors: []state.Monitor{
			{
				ID:           1,
				Name:         "Built-in",
				Frame:        layout.Rect{Width: 1440, Height: 900},
				VisibleFrame: layout.Rect{Y: 25, Width: 1440, Height: 805},
				Main:         true,
			},
		},
		FocusedWindowID: 1,
		Samples:         samples,
	}
}

func fallback(value, def string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return def
}

func exitErr(err error) {
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		fmt.Fprintf(os.Stderr, "error: %v\n", pathErr)
	} else {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	}
	os.Exit(1)
}
