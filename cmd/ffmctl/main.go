package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/Dadams2/AeroSpace/internal/config"
	"github.com/Dadams2/AeroSpace/internal/control/client"
	"github.com/Dadams2/AeroSpace/internal/ui/tui"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(argv []string) error {
	fs := flag.NewFlagSet("ffmctl", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	socket := fs.String("socket", "", "path to aerospace-ffm control socket")
	timeout := fs.Duration("timeout", 3*time.Second, "control request timeout")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: %s [flags] <command> [args]\n", fs.Name())
		fmt.Fprintln(fs.Output())
		fmt.Fprintln(fs.Output(), "Commands:")
		fmt.Fprintln(fs.Output(), "  status\t\t\tshow engine and telemetry state")
		fmt.Fprintln(fs.Output(), "  pause\t\t\tpause focus dispatch")
		fmt.Fprintln(fs.Output(), "  resume\t\t\tresume focus dispatch")
		fmt.Fprintln(fs.Output(), "  reload\t\t\ttrigger a live config reload")
		fmt.Fprintln(fs.Output(), "  resolve <x> <y>\tshow which window a point would focus")
		fmt.Fprintln(fs.Output(), "  history [--limit N]\tshow recent focus decisions")
		fmt.Fprintln(fs.Output(), "  check --config <path>\tvalidate a configuration file")
		fmt.Fprintln(fs.Output(), "  tui\t\t\tlaunch the refreshing dashboard")
		fmt.Fprintln(fs.Output())
		fmt.Fprintln(fs.Output(), "Flags:")
		fs.PrintDefaults()
	}
	if err := fs.Parse(argv); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	args := fs.Args()
	if len(args) == 0 {
		fs.Usage()
		return fmt.Errorf("missing subcommand")
	}

	if args[0] == "check" {
		return runCheck(args[1:], os.Stdout, os.Stderr)
	}

	cli, err := client.New(*socket)
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}

	ctx := context.Background()
	if *timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}

	switch args[0] {
	case "status":
		return runStatus(ctx, cli, os.Stdout)
	case "pause":
		if err := cli.Pause(ctx); err != nil {
			return err
		}
		fmt.Println("Focus dispatch paused")
		return nil
	case "resume":
		if err := cli.Resume(ctx); err != nil {
			return err
		}
		fmt.Println("Focus dispatch resumed")
		return nil
	case "reload":
		if err := cli.Reload(ctx); err != nil {
			return err
		}
		fmt.Println("Reload requested")
		return nil
	case "resolve":
		return runResolve(ctx, cli, args[1:], os.Stdout)
	case "history":
		return runHistory(ctx, cli, args[1:], os.Stdout)
	case "tui":
		return runTUI(cli, args[1:])
	default:
		fs.Usage()
		return fmt.Errorf("unknown subcommand %q", args[0])
	}
}

func runCheck(args []string, stdout io.Writer, stderr io.Writer) error {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to configuration file")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	if *configPath == "" {
		fs.Usage()
		return fmt.Errorf("check requires --config <path>")
	}

	lintErrs, err := config.LintFile(*configPath)
	if err != nil {
		return err
	}
	if len(lintErrs) == 0 {
		fmt.Fprintln(stdout, "Configuration OK")
		return nil
	}

	fmt.Fprintf(stderr, "Configuration has %d issue(s):\n", len(lintErrs))
	for _, lintErr := range lintErrs {
		fmt.Fprintf(stderr, "- %s\n", lintErr.Error())
	}
	return fmt.Errorf("configuration validation failed")
}

func runStatus(ctx context.Context, cli *client.Client, stdout io.Writer) error {
	status, err := cli.Status(ctx)
	if err != nil {
		return err
	}
	eng := status.Engine
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Enabled\t%t\n", eng.Enabled)
	fmt.Fprintf(tw, "Paused\t%t\n", eng.Paused)
	fmt.Fprintf(tw, "Dry run\t%t\n", eng.DryRun)
	fmt.Fprintf(tw, "Boundary mode\t%s\n", eng.BoundaryMode)
	fmt.Fprintf(tw, "Ignore menu bar and dock\t%t\n", eng.IgnoreMenuBarAndDock)
	fmt.Fprintf(tw, "Debounce\t%dms\n", eng.DebounceMs)
	fmt.Fprintf(tw, "Movement threshold\t%.1fpx\n", eng.MovementThresholdPx)
	fmt.Fprintf(tw, "Focus source\t%s\n", eng.FocusSource)
	if eng.KeyboardRect != nil {
		r := *eng.KeyboardRect
		fmt.Fprintf(tw, "Keyboard rect\t%.0fx%.0f @ %.0f,%.0f\n", r.Width, r.Height, r.X, r.Y)
	}
	if eng.LastPoint != nil {
		fmt.Fprintf(tw, "Last point\t%.0f,%.0f\n", eng.LastPoint.X, eng.LastPoint.Y)
	}
	fmt.Fprintf(tw, "Pending resolution\t%t\n", eng.PendingResolution)
	if status.Metrics.Enabled {
		fmt.Fprintf(tw, "Samples\t%d\n", status.Metrics.Totals.Samples)
		fmt.Fprintf(tw, "Focus requests\t%d\n", status.Metrics.Totals.FocusRequests)
		fmt.Fprintf(tw, "Focus errors\t%d\n", status.Metrics.Totals.FocusErrors)
	}
	return tw.Flush()
}

func runResolve(ctx context.Context, cli *client.Client, args []string, stdout io.Writer) error {
	if len(args) != 2 {
		return fmt.Errorf("resolve requires <x> <y>")
	}
	x, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return fmt.Errorf("parse x: %w", err)
	}
	y, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("parse y: %w", err)
	}

	result, err := cli.Resolve(ctx, x, y)
	if err != nil {
		return err
	}
	if !result.Resolved {
		fmt.Fprintf(stdout, "No window at %.0f,%.0f\n", x, y)
		return nil
	}
	fmt.Fprintf(stdout, "Window %d (%s) via %s\n", result.WindowID, result.App, result.Strategy)
	if result.Title != "" {
		fmt.Fprintf(stdout, "  title: %s\n", result.Title)
	}
	return nil
}

func runHistory(ctx context.Context, cli *client.Client, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	limit := fs.Int("limit", 0, "show only the most recent N decisions")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	result, err := cli.History(ctx)
	if err != nil {
		return err
	}
	decisions := result.Decisions
	if *limit > 0 && len(decisions) > *limit {
		decisions = decisions[len(decisions)-*limit:]
	}
	if len(decisions) == 0 {
		fmt.Fprintln(stdout, "No decisions recorded")
		return nil
	}

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tPOINT\tSTAGE\tREASON\tWINDOW\tSTRATEGY")
	for _, d := range decisions {
		window := "-"
		if d.WindowID != 0 {
			window = strconv.FormatUint(uint64(d.WindowID), 10)
			if d.App != "" {
				window += " " + d.App
			}
		}
		strategy := d.Strategy
		if strategy == "" {
			strategy = "-"
		}
		fmt.Fprintf(tw, "%s\t%.0f,%.0f\t%s\t%s\t%s\t%s\n",
			d.Timestamp.Format("15:04:05.000"), d.Point.X, d.Point.Y, d.Stage, d.Reason, window, strategy)
	}
	return tw.Flush()
}

func runTUI(cli *client.Client, args []string) error {
	fs := flag.NewFlagSet("tui", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	interval := fs.Duration("interval", 500*time.Millisecond, "refresh interval")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	renderer := tui.New(cli, os.Stdout)
	renderer.Refresh = *interval
	if err := renderer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
