package tui

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/Dadams2/AeroSpace/internal/control/client"
	"github.com/Dadams2/AeroSpace/internal/engine"
	"github.com/Dadams2/AeroSpace/internal/layout"
	"github.com/Dadams2/AeroSpace/internal/metrics"
)

const (
	defaultRefresh = 500 * time.Millisecond
	decisionRows   = 12
	titleWidth     = 40
)

// Renderer periodically polls the daemon and renders a textual dashboard.
type Renderer struct {
	Client  *client.Client
	Writer  io.Writer
	Refresh time.Duration
}

// New returns a renderer configured with sensible defaults.
func New(cli *client.Client, w io.Writer) *Renderer {
	return &Renderer{Client: cli, Writer: w, Refresh: defaultRefresh}
}

// Run starts the render loop until the context is cancelled.
func (r *Renderer) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if r.Writer == nil {
		r.Writer = os.Stdout
	}
	if r.Client == nil {
		return fmt.Errorf("tui renderer requires a control client")
	}

	refresh := r.Refresh
	if refresh <= 0 {
		refresh = defaultRefresh
	}

	ticker := time.NewTicker(refresh)
	defer ticker.Stop()

	fmt.Fprint(r.Writer, "\033[?25l")
	defer fmt.Fprint(r.Writer, "\033[?25h")

	r.render(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.render(ctx)
		}
	}
}

func (r *Renderer) render(ctx context.Context) {
	status, err := r.Client.Status(ctx)

	var buf bytes.Buffer
	buf.WriteString("\033[H\033[2J")
	buf.WriteString("aerospace-ffm — Ctrl+C to exit\n")
	buf.WriteString(time.Now().Format(time.RFC1123))
	buf.WriteString("\n\n")

	if err != nil {
		buf.WriteString(fmt.Sprintf("error: %v\n", err))
		fmt.Fprint(r.Writer, buf.String())
		return
	}

	buf.WriteString(formatEngine(status.Engine))
	buf.WriteString(renderCounters(status.Metrics))

	if history, err := r.Client.History(ctx); err == nil {
		buf.WriteString(renderDecisions(history.Decisions))
	}
	fmt.Fprint(r.Writer, buf.String())
}

func formatEngine(st engine.Status) string {
	var b strings.Builder
	b.WriteString("Engine:\n")
	tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "State\t%s\n", engineState(st))
	fmt.Fprintf(tw, "Boundary mode\t%s\n", st.BoundaryMode)
	fmt.Fprintf(tw, "Debounce\t%dms\n", st.DebounceMs)
	fmt.Fprintf(tw, "Threshold\t%.1fpx\n", st.MovementThresholdPx)
	fmt.Fprintf(tw, "Focus source\t%s\n", formatFocusSource(st))
	fmt.Fprintf(tw, "Last point\t%s\n", formatLastPoint(st))
	tw.Flush()
	b.WriteByte('\n')
	return b.String()
}

func engineState(st engine.Status) string {
	var parts []string
	if st.Enabled {
		parts = append(parts, "enabled")
	} else {
		parts = append(parts, "disabled")
	}
	if st.Paused {
		parts = append(parts, "paused")
	}
	if st.DryRun {
		parts = append(parts, "dry-run")
	}
	if st.PendingResolution {
		parts = append(parts, "pending resolution")
	}
	return strings.Join(parts, ", ")
}

func formatFocusSource(st engine.Status) string {
	if st.KeyboardRect == nil {
		return st.FocusSource
	}
	return fmt.Sprintf("%s at %s", st.FocusSource, formatRect(*st.KeyboardRect))
}

func formatLastPoint(st engine.Status) string {
	if st.LastPoint == nil {
		return "-"
	}
	return fmt.Sprintf("%.0f,%.0f", st.LastPoint.X, st.LastPoint.Y)
}

func renderCounters(snapshot metrics.Snapshot) string {
	var b strings.Builder
	b.WriteString("Counters:\n")
	if !snapshot.Enabled {
		b.WriteString("  (telemetry disabled)\n\n")
		return b.String()
	}
	if len(snapshot.Counters) == 0 {
		b.WriteString("  (none yet)\n\n")
		return b.String()
	}
	tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "Counter\tCount\tLast")
	for _, counter := range snapshot.Counters {
		last := "-"
		if !counter.Last.IsZero() {
			last = counter.Last.Format("15:04:05")
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\n", counter.Name, counter.Count, last)
	}
	tw.Flush()
	b.WriteByte('\n')
	return b.String()
}

func renderDecisions(decisions []engine.Decision) string {
	var b strings.Builder
	b.WriteString("Recent decisions:\n")
	if len(decisions) == 0 {
		b.WriteString("  (none)\n\n")
		return b.String()
	}
	if len(decisions) > decisionRows {
		decisions = decisions[len(decisions)-decisionRows:]
	}
	tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "Time\tPoint\tStage\tReason\tWindow")
	for _, d := range decisions {
		window := "-"
		if d.WindowID != 0 {
			window = fmt.Sprintf("%d", d.WindowID)
			if d.App != "" {
				window = fmt.Sprintf("%d %s", d.WindowID, truncate(d.App, titleWidth))
			}
		}
		fmt.Fprintf(tw, "%s\t%.0f,%.0f\t%s\t%s\t%s\n",
			d.Timestamp.Format("15:04:05.000"), d.Point.X, d.Point.Y, d.Stage, d.Reason, window)
	}
	tw.Flush()
	b.WriteByte('\n')
	return b.String()
}

func formatRect(rect layout.Rect) string {
	return fmt.Sprintf("%.0fx%.0f @ %.0f,%.0f", rect.Width, rect.Height, rect.X, rect.Y)
}

func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 1 {
		return string(runes[:max])
	}
	return string(runes[:max-1]) + "…"
}
