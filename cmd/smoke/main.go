package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Dadams2/AeroSpace/internal/config"
	"github.com/Dadams2/AeroSpace/internal/engine"
	"github.com/Dadams2/AeroSpace/internal/ipc"
	"github.com/Dadams2/AeroSpace/internal/layout"
	"github.com/Dadams2/AeroSpace/internal/metrics"
	"github.com/Dadams2/AeroSpace/internal/state"
	"github.com/Dadams2/AeroSpace/internal/util"
)

func main() {
	home, _ := os.UserHomeDir()
	defaultConfig := filepath.Join(home, ".config", "aerospace-ffm", "config.yaml")

	cfgPath := flag.String("config", defaultConfig, "path to YAML config")
	logLevel := flag.String("log-level", "info", "log level (trace|debug|info|warn|error)")
	pointFlag := flag.String("point", "", "probe point as \"x,y\" (defaults to the main monitor's center)")
	flag.Parse()

	logger := util.NewLogger(util.ParseLogLevel(*logLevel))

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			exitErr(fmt.Errorf("load config: %w", err))
		}
		logger.Debugf("no config at %s, using defaults", *cfgPath)
		cfg = config.Default()
	}
	opts, err := engine.BuildOptions(cfg)
	if err != nil {
		exitErr(fmt.Errorf("compile config: %w", err))
	}

	client := ipc.NewClient()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	world, err := state.NewWorld(ctx, client)
	if err != nil {
		exitErr(fmt.Errorf("build world: %w", err))
	}

	fmt.Printf("Loaded config from %s\n", *cfgPath)
	fmt.Println("\n=== Configuration ===")
	if err := marshalYAML(cfg); err != nil {
		logger.Warnf("failed to print config: %v", err)
	}

	fmt.Println("\n=== World Snapshot ===")
	if err := marshalJSON(world); err != nil {
		logger.Warnf("failed to print world snapshot: %v", err)
	}

	mouse, err := client.MouseState(ctx)
	if err != nil {
		exitErr(fmt.Errorf("query mouse state: %w", err))
	}
	fmt.Printf("\nMouse: button down=%t, manipulated window=%d\n", mouse.ButtonDown, mouse.ManipulatedWindowID)

	automation, err := client.AutomationEnabled(ctx)
	if err != nil {
		exitErr(fmt.Errorf("query automation state: %w", err))
	}
	fmt.Printf("Automation enabled: %t\n", automation)
	if !automation {
		logger.Warnf("automation is disabled, focus commands would be denied")
	}

	probe := defaultProbePoint(world)
	if strings.TrimSpace(*pointFlag) != "" {
		parsed, err := parsePoint(*pointFlag)
		if err != nil {
			exitErr(fmt.Errorf("parse point: %w", err))
		}
		probe = parsed
	}

	eng := engine.New(client, logger, metrics.NewCollector(false), opts, true)
	resolution, err := eng.ResolvePoint(ctx, probe)
	if err != nil {
		exitErr(fmt.Errorf("resolve point: %w", err))
	}

	fmt.Printf("\n=== Resolution at %.0f,%.0f ===\n", probe.X, probe.Y)
	if resolution.Window == nil {
		fmt.Println("No window under the probe point.")
		return
	}
	fmt.Printf("window: %d (%s)\n", resolution.Window.ID, resolution.Window.App)
	if resolution.Window.Title != "" {
		fmt.Printf("title: %s\n", resolution.Window.Title)
	}
	fmt.Printf("strategy: %s\n", resolution.Strategy)
	if resolution.Window.ID == world.FocusedWindowID {
		fmt.Println("already focused; a pointer move here would be a no-op")
	}
}

func defaultProbePoint(world *state.World) layout.Point {
	for _, mon := range world.Monitors {
		if mon.Main {
			return mon.Frame.Center()
		}
	}
	if len(world.Monitors) > 0 {
		return world.Monitors[0].Frame.Center()
	}
	return layout.Point{}
}

func parsePoint(raw string) (layout.Point, error) {
	parts := strings.SplitN(strings.TrimSpace(raw), ",", 2)
	if len(parts) != 2 {
		return layout.Point{}, fmt.Errorf("expected \"x,y\", got %q", raw)
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return layout.Point{}, fmt.Errorf("parse x: %w", err)
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return layout.Point{}, fmt.Errorf("parse y: %w", err)
	}
	return layout.Point{X: x, Y: y}, nil
}

func exitErr(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

func marshalYAML(v any) error {
	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(v)
}

func marshalJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
