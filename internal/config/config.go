package config

import (
	"bytes"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// BoundaryMode controls when pointer movement may trigger focus
// resolution.
type BoundaryMode string

const (
	// BoundaryModeCross schedules resolution only when the pointer leaves
	// the window it was previously over.
	BoundaryModeCross BoundaryMode = "crossBoundary"
	// BoundaryModeAlways schedules resolution on every accepted movement.
	BoundaryModeAlways BoundaryMode = "always"
)

// Config is the top-level configuration document.
type Config struct {
	Enabled              bool            `yaml:"enabled"`
	BoundaryMode         BoundaryMode    `yaml:"boundaryMode"`
	IgnoreMenuBarAndDock bool            `yaml:"ignoreMenuBarAndDock"`
	DebounceMs           int             `yaml:"debounceMs"`
	MovementThresholdPx  float64         `yaml:"movementThresholdPx"`
	Ignore               IgnoreConfig    `yaml:"ignore"`
	FocusRateLimit       RateLimitConfig `yaml:"focusRateLimit"`
	Telemetry            TelemetryConfig `yaml:"telemetry"`
}

// IgnoreConfig lists windows focus-follows-mouse must never target.
// Entries are RE2 patterns matched against app names and window titles.
type IgnoreConfig struct {
	Apps   []string `yaml:"apps"`
	Titles []string `yaml:"titles"`
}

// RateLimitConfig caps how fast focus commands may be issued.
// PerSecond <= 0 disables the cap.
type RateLimitConfig struct {
	PerSecond float64 `yaml:"perSecond"`
	Burst     int     `yaml:"burst"`
}

// TelemetryConfig toggles the in-memory counters served over the control
// socket.
type TelemetryConfig struct {
	Enabled bool `yaml:"enabled"`
}

// UnmarshalYAML handles absent-vs-false booleans and deprecated fields
// while decoding configuration files.
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	type rawConfig struct {
		Enabled              *bool            `yaml:"enabled"`
		BoundaryMode         string           `yaml:"boundaryMode"`
		IgnoreMenuBarAndDock *bool            `yaml:"ignoreMenuBarAndDock"`
		DebounceMs           *int             `yaml:"debounceMs"`
		LegacyDelayMs        *int             `yaml:"delayMs"`
		MovementThresholdPx  *float64         `yaml:"movementThresholdPx"`
		Ignore               IgnoreConfig     `yaml:"ignore"`
		FocusRateLimit       *RateLimitConfig `yaml:"focusRateLimit"`
		Telemetry            *TelemetryConfig `yaml:"telemetry"`
	}

	var raw rawConfig
	if err := value.Decode(&raw); err != nil {
		return err
	}

	c.Enabled = true
	if raw.Enabled != nil {
		c.Enabled = *raw.Enabled
	}
	c.BoundaryMode = BoundaryMode(raw.BoundaryMode)
	c.IgnoreMenuBarAndDock = true
	if raw.IgnoreMenuBarAndDock != nil {
		c.IgnoreMenuBarAndDock = *raw.IgnoreMenuBarAndDock
	}

	// delayMs is the pre-1.0 name for debounceMs; the new field wins when
	// both are present.
	switch {
	case raw.DebounceMs != nil:
		c.DebounceMs = *raw.DebounceMs
	case raw.LegacyDelayMs != nil:
		c.DebounceMs = *raw.LegacyDelayMs
	default:
		c.DebounceMs = 0
	}

	if raw.MovementThresholdPx != nil {
		c.MovementThresholdPx = *raw.MovementThresholdPx
	}
	c.Ignore = raw.Ignore
	if raw.FocusRateLimit != nil {
		c.FocusRateLimit = *raw.FocusRateLimit
	} else {
		c.FocusRateLimit = defaultRateLimit()
	}
	c.Telemetry = TelemetryConfig{Enabled: true}
	if raw.Telemetry != nil {
		c.Telemetry = *raw.Telemetry
	}
	return nil
}

func defaultRateLimit() RateLimitConfig {
	return RateLimitConfig{PerSecond: 20, Burst: 10}
}

// Default returns the configuration used when no file is provided.
func Default() *Config {
	cfg := &Config{
		Enabled:              true,
		IgnoreMenuBarAndDock: true,
		FocusRateLimit:       defaultRateLimit(),
		Telemetry:            TelemetryConfig{Enabled: true},
	}
	cfg.applyDefaults()
	return cfg
}

// Load reads, defaults, and validates a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes a configuration document and applies defaults. Callers
// that need the document to be valid run Validate or Lint afterwards.
func Parse(data []byte) (*Config, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Default(), nil
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	switch {
	case strings.EqualFold(string(c.BoundaryMode), string(BoundaryModeCross)):
		c.BoundaryMode = BoundaryModeCross
	case strings.EqualFold(string(c.BoundaryMode), string(BoundaryModeAlways)):
		c.BoundaryMode = BoundaryModeAlways
	case c.BoundaryMode == "":
		c.BoundaryMode = BoundaryModeCross
	}
	if c.DebounceMs == 0 {
		c.DebounceMs = 50
	}
	if c.MovementThresholdPx == 0 {
		c.MovementThresholdPx = 1.0
	}
	if c.FocusRateLimit.PerSecond > 0 && c.FocusRateLimit.Burst <= 0 {
		c.FocusRateLimit.Burst = 1
	}
}

// LintError describes a single configuration issue.
type LintError struct {
	Path    string
	Message string
}

func (e LintError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// Lint returns every detectable issue with the configuration.
func (c *Config) Lint() []LintError {
	var errs []LintError
	switch c.BoundaryMode {
	case BoundaryModeCross, BoundaryModeAlways:
	default:
		errs = append(errs, LintError{
			Path:    "boundaryMode",
			Message: fmt.Sprintf("must be %q or %q, got %q", BoundaryModeCross, BoundaryModeAlways, c.BoundaryMode),
		})
	}
	if c.DebounceMs < 0 {
		errs = append(errs, LintError{
			Path:    "debounceMs",
			Message: fmt.Sprintf("cannot be negative, got %d", c.DebounceMs),
		})
	}
	if c.MovementThresholdPx < 0 {
		errs = append(errs, LintError{
			Path:    "movementThresholdPx",
			Message: fmt.Sprintf("cannot be negative, got %v", c.MovementThresholdPx),
		})
	}
	if c.FocusRateLimit.Burst < 0 {
		errs = append(errs, LintError{
			Path:    "focusRateLimit.burst",
			Message: fmt.Sprintf("cannot be negative, got %d", c.FocusRateLimit.Burst),
		})
	}
	errs = append(errs, lintPatterns("ignore.apps", c.Ignore.Apps)...)
	errs = append(errs, lintPatterns("ignore.titles", c.Ignore.Titles)...)
	return errs
}

func lintPatterns(path string, patterns []string) []LintError {
	var errs []LintError
	for i, pattern := range patterns {
		if pattern == "" {
			errs = append(errs, LintError{
				Path:    fmt.Sprintf("%s[%d]", path, i),
				Message: "pattern cannot be empty",
			})
			continue
		}
		if _, err := regexp.Compile(pattern); err != nil {
			errs = append(errs, LintError{
				Path:    fmt.Sprintf("%s[%d]", path, i),
				Message: err.Error(),
			})
		}
	}
	return errs
}

// Validate returns an error aggregating all lint findings.
func (c *Config) Validate() error {
	errs := c.Lint()
	if len(errs) == 0 {
		return nil
	}
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		parts = append(parts, e.Error())
	}
	return fmt.Errorf("configuration has %d issue(s): %s", len(errs), strings.Join(parts, "; "))
}

// LintFile reads and decodes a configuration file, reporting issues
// without requiring the document to be valid.
func LintFile(path string) ([]LintError, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return cfg.Lint(), nil
}
