package engine

import (
	"fmt"
	"regexp"
	"time"

	"golang.org/x/time/rate"

	"github.com/Dadams2/AeroSpace/internal/config"
	"github.com/Dadams2/AeroSpace/internal/state"
)

// Options is the engine's compiled view of the configuration: durations
// resolved, ignore patterns compiled, limiter parameters fixed. A value
// is immutable once built; reloads swap the whole thing.
type Options struct {
	Enabled              bool
	BoundaryMode         config.BoundaryMode
	IgnoreMenuBarAndDock bool
	Debounce             time.Duration
	MovementThreshold    float64
	IgnoreApps           []*regexp.Regexp
	IgnoreTitles         []*regexp.Regexp
	FocusRate            rate.Limit
	FocusBurst           int
}

// BuildOptions compiles a configuration into engine options. Invalid
// ignore patterns fail the build; configurations that passed Validate
// never do.
func BuildOptions(cfg *config.Config) (Options, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	opts := Options{
		Enabled:              cfg.Enabled,
		BoundaryMode:         cfg.BoundaryMode,
		IgnoreMenuBarAndDock: cfg.IgnoreMenuBarAndDock,
		Debounce:             time.Duration(cfg.DebounceMs) * time.Millisecond,
		MovementThreshold:    cfg.MovementThresholdPx,
		FocusRate:            rate.Inf,
		FocusBurst:           1,
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 50 * time.Millisecond
	}
	if opts.MovementThreshold <= 0 {
		opts.MovementThreshold = 1.0
	}
	var err error
	opts.IgnoreApps, err = compilePatterns("ignore.apps", cfg.Ignore.Apps)
	if err != nil {
		return Options{}, err
	}
	opts.IgnoreTitles, err = compilePatterns("ignore.titles", cfg.Ignore.Titles)
	if err != nil {
		return Options{}, err
	}
	if cfg.FocusRateLimit.PerSecond > 0 {
		opts.FocusRate = rate.Limit(cfg.FocusRateLimit.PerSecond)
		opts.FocusBurst = cfg.FocusRateLimit.Burst
		if opts.FocusBurst < 1 {
			opts.FocusBurst = 1
		}
	}
	return opts, nil
}

func compilePatterns(path string, patterns []string) ([]*regexp.Regexp, error) {
	if len(patterns) == 0 {
		return nil, nil
	}
	out := make([]*regexp.Regexp, 0, len(patterns))
	for i, pattern := range patterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", path, i, err)
		}
		out = append(out, re)
	}
	return out, nil
}

// ignores reports whether any ignore pattern matches the window's app
// name or title.
func (o *Options) ignores(win *state.Window) bool {
	for _, re := range o.IgnoreApps {
		if re.MatchString(win.App) {
			return true
		}
	}
	for _, re := range o.IgnoreTitles {
		if re.MatchString(win.Title) {
			return true
		}
	}
	return false
}

func (o *Options) rateLimited() bool {
	return o.FocusRate != rate.Inf
}
