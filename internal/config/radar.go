// Package config loads the radar's startup configuration.
//
// Every field is optional. A nil field means "use the default", which the
// Get* accessors supply, so a partial file (or no file at all) is valid.
package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the canonical defaults file shipped with the repo.
const DefaultConfigPath = "config/radar.defaults.json"

// Operator-adjustable bounds.
const (
	MinRangeNm       = 0.1
	MaxRangeNm       = 48.0
	MinCpaThreshNm   = 0.05
	MaxCpaThreshNm   = 5.0
	MinTcpaThreshMin = 1.0
	MaxTcpaThreshMin = 120.0
)

// Subscribe modes for the Signal K stream.
const (
	SubscribeAll  = "all"
	SubscribeSelf = "self"
)

// RadarConfig is the root configuration. Durations are strings such as
// "500ms" or "6m".
type RadarConfig struct {
	ServerURL *string `json:"server_url,omitempty"`
	Subscribe *string `json:"subscribe,omitempty"`

	// Display defaults
	DefaultRangeNm     *float64 `json:"default_range_nm,omitempty"`
	ShowVectorsDefault *bool    `json:"show_vectors_default,omitempty"`
	ShowLabelsDefault  *bool    `json:"show_labels_default,omitempty"`

	// Alerting
	CpaThresholdNm   *float64 `json:"cpa_threshold_nm,omitempty"`
	TcpaThresholdMin *float64 `json:"tcpa_threshold_min,omitempty"`
	DangerEnabled    *bool    `json:"danger_enabled,omitempty"`

	// Track lifetime
	LivenessHorizon *string `json:"liveness_horizon,omitempty"`
	PruneAfter      *string `json:"prune_after,omitempty"`
	StaleFadeStart  *string `json:"stale_fade_start,omitempty"`
	StaleFadeFull   *string `json:"stale_fade_full,omitempty"`

	EvaluateInterval *string `json:"evaluate_interval,omitempty"`

	// Reconnect
	BackoffFloor      *string  `json:"backoff_floor,omitempty"`
	BackoffCeiling    *string  `json:"backoff_ceiling,omitempty"`
	BackoffMultiplier *float64 `json:"backoff_multiplier,omitempty"`

	SeedTimeout *string `json:"seed_timeout,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }

// DefaultRadarConfig returns a config with every field set to its default.
func DefaultRadarConfig() *RadarConfig {
	return &RadarConfig{
		ServerURL:          ptrString("http://localhost:3000"),
		Subscribe:          ptrString(SubscribeAll),
		DefaultRangeNm:     ptrFloat64(2),
		ShowVectorsDefault: ptrBool(true),
		ShowLabelsDefault:  ptrBool(true),
		CpaThresholdNm:     ptrFloat64(0.5),
		TcpaThresholdMin:   ptrFloat64(15),
		DangerEnabled:      ptrBool(true),
		LivenessHorizon:    ptrString("6m"),
		PruneAfter:         ptrString("30m"),
		StaleFadeStart:     ptrString("2m"),
		StaleFadeFull:      ptrString("6m"),
		EvaluateInterval:   ptrString("500ms"),
		BackoffFloor:       ptrString("500ms"),
		BackoffCeiling:     ptrString("8s"),
		BackoffMultiplier:  ptrFloat64(1.6),
		SeedTimeout:        ptrString("2s"),
	}
}

// LoadRadarConfig loads and validates a config from a .json file of at most
// 1MB. Omitted fields keep their defaults.
func LoadRadarConfig(path string) (*RadarConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &RadarConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func checkRange(name string, v *float64, lo, hi float64) error {
	if v != nil && (*v < lo || *v > hi) {
		return fmt.Errorf("%s must be between %g and %g, got %g", name, lo, hi, *v)
	}
	return nil
}

func checkDuration(name string, v *string) error {
	if v == nil || *v == "" {
		return nil
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
	}
	if d <= 0 {
		return fmt.Errorf("%s must be positive, got %s", name, *v)
	}
	return nil
}

// Validate checks every set field and the relations between durations.
func (c *RadarConfig) Validate() error {
	if c.Subscribe != nil && *c.Subscribe != SubscribeAll && *c.Subscribe != SubscribeSelf {
		return fmt.Errorf("subscribe must be %q or %q, got %q", SubscribeAll, SubscribeSelf, *c.Subscribe)
	}
	if c.ServerURL != nil && *c.ServerURL == "" {
		return fmt.Errorf("server_url must not be empty")
	}

	for _, r := range []struct {
		name   string
		v      *float64
		lo, hi float64
	}{
		{"default_range_nm", c.DefaultRangeNm, MinRangeNm, MaxRangeNm},
		{"cpa_threshold_nm", c.CpaThresholdNm, MinCpaThreshNm, MaxCpaThreshNm},
		{"tcpa_threshold_min", c.TcpaThresholdMin, MinTcpaThreshMin, MaxTcpaThreshMin},
	} {
		if err := checkRange(r.name, r.v, r.lo, r.hi); err != nil {
			return err
		}
	}

	for _, d := range []struct {
		name string
		v    *string
	}{
		{"liveness_horizon", c.LivenessHorizon},
		{"prune_after", c.PruneAfter},
		{"stale_fade_start", c.StaleFadeStart},
		{"stale_fade_full", c.StaleFadeFull},
		{"evaluate_interval", c.EvaluateInterval},
		{"backoff_floor", c.BackoffFloor},
		{"backoff_ceiling", c.BackoffCeiling},
		{"seed_timeout", c.SeedTimeout},
	} {
		if err := checkDuration(d.name, d.v); err != nil {
			return err
		}
	}

	if c.BackoffMultiplier != nil && *c.BackoffMultiplier <= 1 {
		return fmt.Errorf("backoff_multiplier must be greater than 1, got %g", *c.BackoffMultiplier)
	}

	// Relations are checked on the effective values so that a partial file
	// cannot contradict a default.
	if c.GetPruneAfter() < c.GetLivenessHorizon() {
		return fmt.Errorf("prune_after (%v) must not be shorter than liveness_horizon (%v)", c.GetPruneAfter(), c.GetLivenessHorizon())
	}
	if c.GetStaleFadeStart() >= c.GetStaleFadeFull() {
		return fmt.Errorf("stale_fade_start (%v) must be before stale_fade_full (%v)", c.GetStaleFadeStart(), c.GetStaleFadeFull())
	}
	if c.GetBackoffFloor() > c.GetBackoffCeiling() {
		return fmt.Errorf("backoff_floor (%v) must not exceed backoff_ceiling (%v)", c.GetBackoffFloor(), c.GetBackoffCeiling())
	}
	return nil
}

func durationOr(v *string, def time.Duration) time.Duration {
	if v == nil || *v == "" {
		return def
	}
	d, err := time.ParseDuration(*v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// GetServerURL returns the Signal K server base URL.
func (c *RadarConfig) GetServerURL() string {
	if c.ServerURL == nil || *c.ServerURL == "" {
		return "http://localhost:3000"
	}
	return *c.ServerURL
}

// GetSubscribe returns the stream subscribe mode.
func (c *RadarConfig) GetSubscribe() string {
	if c.Subscribe == nil || *c.Subscribe == "" {
		return SubscribeAll
	}
	return *c.Subscribe
}

// GetDefaultRangeNm returns the initial display range.
func (c *RadarConfig) GetDefaultRangeNm() float64 {
	if c.DefaultRangeNm == nil {
		return 2
	}
	return *c.DefaultRangeNm
}

// GetShowVectorsDefault returns whether velocity vectors start enabled.
func (c *RadarConfig) GetShowVectorsDefault() bool {
	if c.ShowVectorsDefault == nil {
		return true
	}
	return *c.ShowVectorsDefault
}

// GetShowLabelsDefault returns whether target labels start enabled.
func (c *RadarConfig) GetShowLabelsDefault() bool {
	if c.ShowLabelsDefault == nil {
		return true
	}
	return *c.ShowLabelsDefault
}

// GetCpaThresholdNm returns the CPA alert threshold.
func (c *RadarConfig) GetCpaThresholdNm() float64 {
	if c.CpaThresholdNm == nil {
		return 0.5
	}
	return *c.CpaThresholdNm
}

// GetTcpaThresholdMin returns the TCPA alert threshold.
func (c *RadarConfig) GetTcpaThresholdMin() float64 {
	if c.TcpaThresholdMin == nil {
		return 15
	}
	return *c.TcpaThresholdMin
}

// GetDangerEnabled returns whether danger alerting starts enabled.
func (c *RadarConfig) GetDangerEnabled() bool {
	if c.DangerEnabled == nil {
		return true
	}
	return *c.DangerEnabled
}

func (c *RadarConfig) GetLivenessHorizon() time.Duration {
	return durationOr(c.LivenessHorizon, 6*time.Minute)
}

func (c *RadarConfig) GetPruneAfter() time.Duration {
	return durationOr(c.PruneAfter, 30*time.Minute)
}

func (c *RadarConfig) GetStaleFadeStart() time.Duration {
	return durationOr(c.StaleFadeStart, 2*time.Minute)
}

func (c *RadarConfig) GetStaleFadeFull() time.Duration {
	return durationOr(c.StaleFadeFull, 6*time.Minute)
}

func (c *RadarConfig) GetEvaluateInterval() time.Duration {
	return durationOr(c.EvaluateInterval, 500*time.Millisecond)
}

func (c *RadarConfig) GetBackoffFloor() time.Duration {
	return durationOr(c.BackoffFloor, 500*time.Millisecond)
}

func (c *RadarConfig) GetBackoffCeiling() time.Duration {
	return durationOr(c.BackoffCeiling, 8*time.Second)
}

// GetBackoffMultiplier returns the reconnect growth factor.
func (c *RadarConfig) GetBackoffMultiplier() float64 {
	if c.BackoffMultiplier == nil {
		return 1.6
	}
	return *c.BackoffMultiplier
}

func (c *RadarConfig) GetSeedTimeout() time.Duration {
	return durationOr(c.SeedTimeout, 2*time.Second)
}

// ClampRangeNm bounds a display range to the operator limits.
func ClampRangeNm(v float64) float64 { return clamp(v, MinRangeNm, MaxRangeNm) }

// ClampCpaThreshNm bounds a CPA threshold to the operator limits.
func ClampCpaThreshNm(v float64) float64 { return clamp(v, MinCpaThreshNm, MaxCpaThreshNm) }

// ClampTcpaThreshMin bounds a TCPA threshold to the operator limits.
func ClampTcpaThreshMin(v float64) float64 { return clamp(v, MinTcpaThreshMin, MaxTcpaThreshMin) }

// clamp maps NaN to lo.
func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return max(lo, min(v, hi))
}
