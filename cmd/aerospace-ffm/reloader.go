package main

import (
	"fmt"
	"os"
	"sync"

	"github.com/Dadams2/AeroSpace/internal/config"
	"github.com/Dadams2/AeroSpace/internal/engine"
	"github.com/Dadams2/AeroSpace/internal/metrics"
	"github.com/Dadams2/AeroSpace/internal/util"
)

// configReloader applies config file changes to a running engine. Reload
// arrives from the signal loop, the fsnotify watcher, and the control
// server, so the whole pass is serialized.
type configReloader struct {
	mu             sync.Mutex
	path           string
	logger         *util.Logger
	engine         *engine.Engine
	metrics        *metrics.Collector
	lastSerialized []byte
}

func newConfigReloader(path string, logger *util.Logger, eng *engine.Engine, collector *metrics.Collector, serialized []byte) *configReloader {
	return &configReloader{
		path:           path,
		logger:         logger,
		engine:         eng,
		metrics:        collector,
		lastSerialized: append([]byte(nil), serialized...),
	}
}

// Reload re-reads the config file and applies it to the running engine.
// A file that fails to read, parse, lint, or compile leaves the previous
// configuration in place.
func (r *configReloader) Reload(reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger.Infof("%s, reloading config", reason)
	raw, err := os.ReadFile(r.path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	cfg, err := config.Parse(raw)
	if err != nil {
		r.logDiff(raw)
		return err
	}
	if lintErrs := cfg.Lint(); len(lintErrs) > 0 {
		r.logLintErrors(lintErrs)
		r.logDiff(raw)
		return fmt.Errorf("configuration has %d issue(s)", len(lintErrs))
	}
	opts, err := engine.BuildOptions(cfg)
	if err != nil {
		r.logDiff(raw)
		return fmt.Errorf("compile config: %w", err)
	}

	r.engine.Reload(opts)
	if r.metrics != nil {
		r.metrics.SetEnabled(cfg.Telemetry.Enabled)
	}

	r.lastSerialized = append([]byte(nil), raw...)
	r.logger.Infof("config reloaded (enabled=%t boundaryMode=%s debounce=%dms)", cfg.Enabled, cfg.BoundaryMode, cfg.DebounceMs)
	return nil
}

func (r *configReloader) logDiff(current []byte) {
	diff := config.DiffSerialized(r.lastSerialized, current)
	if diff == "" {
		r.logger.Warnf("config change rejected; unable to compute diff vs last valid config")
		return
	}
	r.logger.Warnf("config change rejected; diff vs last valid config:\n%s", diff)
}

func (r *configReloader) logLintErrors(errs []config.LintError) {
	r.logger.Warnf("config validation failed with %d issue(s):", len(errs))
	for _, lintErr := range errs {
		if lintErr.Path != "" {
			r.logger.Warnf(" - %s: %s", lintErr.Path, lintErr.Message)
			continue
		}
		r.logger.Warnf(" - %s", lintErr.Message)
	}
}
