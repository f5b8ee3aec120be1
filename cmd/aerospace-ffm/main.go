package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/Dadams2/AeroSpace/internal/config"
	"github.com/Dadams2/AeroSpace/internal/control"
	"github.com/Dadams2/AeroSpace/internal/engine"
	"github.com/Dadams2/AeroSpace/internal/ipc"
	"github.com/Dadams2/AeroSpace/internal/metrics"
	"github.com/Dadams2/AeroSpace/internal/util"
	"github.com/fsnotify/fsnotify"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	home, _ := os.UserHomeDir()
	defaultConfig := filepath.Join(home, ".config", "aerospace-ffm", "config.yaml")

	cfgPath := flag.String("config", defaultConfig, "path to YAML config")
	logLevel := flag.String("log-level", "info", "log level (trace|debug|info|warn|error)")
	watchFlag := flag.Bool("watch-config", true, "reload when the config file changes")
	dryRun := flag.Bool("dry-run", false, "resolve focus targets without dispatching focus commands")
	controlSocket := flag.String("control-socket", "", "control socket path (default under XDG_RUNTIME_DIR)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		return
	}

	explicitConfig := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "config" {
			explicitConfig = true
		}
	})

	logger := util.NewLogger(util.ParseLogLevel(*logLevel))
	logger.Infof("aerospace-ffm %s starting", version)

	cfg, raw, err := loadConfig(*cfgPath, explicitConfig, logger)
	if err != nil {
		exitErr(err)
	}
	opts, err := engine.BuildOptions(cfg)
	if err != nil {
		exitErr(fmt.Errorf("compile config: %w", err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	collector := metrics.NewCollector(cfg.Telemetry.Enabled)
	eng := engine.New(ipc.NewClient(), logger, collector, opts, *dryRun)
	if *dryRun {
		logger.Infof("dry-run enabled, focus commands will be logged instead of dispatched")
	}

	reloader := newConfigReloader(*cfgPath, logger, eng, collector, raw)

	reloadRequests := make(chan string, 1)
	if *watchFlag {
		if err := watchConfig(ctx, logger, *cfgPath, reloadRequests); err != nil {
			logger.Warnf("config watch disabled: %v", err)
		}
	}

	ctrlSrv, err := control.NewServer(eng, collector, logger, reloader.Reload, *controlSocket)
	if err != nil {
		exitErr(fmt.Errorf("start control server: %w", err))
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)

	errs := make(chan error, 2)
	go func() {
		errs <- eng.Run(ctx)
	}()
	go func() {
		errs <- ctrlSrv.Serve(ctx)
	}()

	for {
		select {
		case err := <-errs:
			if err != nil && err != context.Canceled {
				logger.Errorf("engine exited: %v", err)
				os.Exit(1)
			}
			logger.Infof("engine stopped")
			return
		case reason := <-reloadRequests:
			if err := reloader.Reload(reason); err != nil {
				logger.Errorf("reload failed: %v", err)
			}
		case sig := <-sigs:
			switch sig {
			case syscall.SIGHUP:
				if err := reloader.Reload("received SIGHUP"); err != nil {
					logger.Errorf("reload failed: %v", err)
				}
			case os.Interrupt, syscall.SIGTERM:
				logger.Infof("received %s, shutting down", sig)
				cancel()
			}
		}
	}
}

// loadConfig reads the startup configuration. A missing file at the
// default path falls back to defaults; a missing file named explicitly
// via --config is an error.
func loadConfig(path string, explicit bool, logger *util.Logger) (*config.Config, []byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			logger.Infof("no config at %s, using defaults", path)
			return config.Default(), nil, nil
		}
		return nil, nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := config.Parse(raw)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return cfg, raw, nil
}

func watchConfig(ctx context.Context, logger *util.Logger, cfgPath string, reloadRequests chan<- string) error {
	target, err := filepath.Abs(cfgPath)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}
	target = filepath.Clean(target)
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch config dir: %w", err)
	}
	if err := watcher.Add(target); err != nil {
		logger.Debugf("unable to watch config file directly: %v", err)
	}
	go runWatch(ctx, logger, watcher, target, reloadRequests)
	return nil
}

// runWatch coalesces bursts of filesystem events into one reload request.
// Editors that write via rename produce several events per save.
func runWatch(ctx context.Context, logger *util.Logger, watcher *fsnotify.Watcher, target string, reloadRequests chan<- string) {
	defer watcher.Close()
	const debounceWindow = 250 * time.Millisecond
	var (
		timer   *time.Timer
		timerCh <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounceWindow)
				timerCh = timer.C
			} else {
				if !timer.Stop() {
					<-timerCh
				}
				timer.Reset(debounceWindow)
			}
		case <-timerCh:
			timer = nil
			timerCh = nil
			select {
			case reloadRequests <- "config file updated":
			default:
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Warnf("config watcher error: %v", err)
		}
	}
}

func exitErr(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
