// Package config loads the boostd daemon configuration from TOML, with
// defaults mirroring the reference platform tuning.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config holds all daemon configuration.
type Config struct {
	HTTP    HTTPConfig    `toml:"http"`
	Logging LoggingConfig `toml:"logging"`
	Boost   BoostConfig   `toml:"boost"`
	Pools   []PoolConfig  `toml:"pools"`
	Saver   SaverConfig   `toml:"saver"`
}

// HTTPConfig controls the metrics/debug HTTP server.
type HTTPConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Addr returns the listen address.
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LoggingConfig controls log verbosity.
type LoggingConfig struct {
	// Verbosity is the maximum enabled logr V level.
	Verbosity int `toml:"verbosity"`
	// Development enables human-readable console output.
	Development bool `toml:"development"`
}

// BoostConfig controls the boost controller.
type BoostConfig struct {
	InputBoostDurationMS int    `toml:"input_boost_duration_ms"`
	MaxBoostDurationMS   int    `toml:"max_boost_duration_ms"`
	CPUBandwidthFreq     uint64 `toml:"cpubw_boost_freq"`
	LLCBandwidthFreq     uint64 `toml:"llccbw_boost_freq"`
}

// PoolConfig describes one page pool to create at startup.
type PoolConfig struct {
	Order   uint `toml:"order"`
	Cached  bool `toml:"cached"`
	Highmem bool `toml:"highmem"`
}

// ClusterConfig carries the saver limits for one CPU cluster. Zero
// values leave the cluster unmanaged.
type ClusterConfig struct {
	ScreenOnMin       uint64 `toml:"screen_on_min_freq"`
	ScreenOffMax      uint64 `toml:"screen_off_max_freq"`
	ScreenOffSoundMax uint64 `toml:"screen_off_sound_max_freq"`
}

// WritebackConfig carries VM writeback knobs for one screen state.
type WritebackConfig struct {
	Swappiness              uint `toml:"swappiness"`
	DirtyExpireCentisecs    uint `toml:"dirty_expire_centisecs"`
	DirtyWritebackCentisecs uint `toml:"dirty_writeback_centisecs"`
	DirtyBackgroundRatio    uint `toml:"dirty_background_ratio"`
	DirtyRatio              uint `toml:"dirty_ratio"`
}

// SaverConfig controls the power saver.
type SaverConfig struct {
	Enabled          bool                     `toml:"enabled"`
	Clusters         map[string]ClusterConfig `toml:"clusters"`
	ScreenOn         WritebackConfig          `toml:"screen_on"`
	ScreenOff        WritebackConfig          `toml:"screen_off"`
	DevfreqCaps      map[string]uint64        `toml:"devfreq_caps"`
	DevfreqSoundCaps map[string]uint64        `toml:"devfreq_sound_caps"`
}

// DefaultConfig returns the reference tuning.
func DefaultConfig() Config {
	return Config{
		HTTP: HTTPConfig{
			Host: "127.0.0.1",
			Port: 9370,
		},
		Logging: LoggingConfig{
			Verbosity:   2,
			Development: false,
		},
		Boost: BoostConfig{
			InputBoostDurationMS: 100,
			MaxBoostDurationMS:   1000,
			CPUBandwidthFreq:     8368,
			LLCBandwidthFreq:     7216,
		},
		Pools: []PoolConfig{
			{Order: 0, Cached: false},
			{Order: 0, Cached: true},
			{Order: 4, Cached: false, Highmem: true},
			{Order: 8, Cached: false, Highmem: true},
		},
		Saver: SaverConfig{
			Enabled: true,
			Clusters: map[string]ClusterConfig{
				"little": {ScreenOnMin: 576000, ScreenOffMax: 1209600, ScreenOffSoundMax: 1440000},
				"big":    {ScreenOnMin: 710400, ScreenOffMax: 1056000, ScreenOffSoundMax: 1286400},
				"prime":  {ScreenOnMin: 825600, ScreenOffMax: 940800, ScreenOffSoundMax: 1171200},
			},
			ScreenOn: WritebackConfig{
				Swappiness:              100,
				DirtyExpireCentisecs:    3000,
				DirtyWritebackCentisecs: 3000,
				DirtyBackgroundRatio:    10,
				DirtyRatio:              30,
			},
			ScreenOff: WritebackConfig{
				Swappiness:              60,
				DirtyExpireCentisecs:    6000,
				DirtyWritebackCentisecs: 6000,
				DirtyBackgroundRatio:    5,
				DirtyRatio:              20,
			},
			DevfreqCaps: map[string]uint64{
				"cpu-llcc-ddr-bw":  2086,
				"cpu-ddr-latfloor": 2086,
				"llcc-ddr-lat":     2086,
				"cpu-llcc-bw":      2288,
				"cpu-llcc-lat":     300,
			},
			DevfreqSoundCaps: map[string]uint64{
				"cpu-llcc-ddr-bw":  3879,
				"cpu-ddr-latfloor": 3879,
				"llcc-ddr-lat":     3879,
				"cpu-llcc-bw":      4577,
				"cpu-llcc-lat":     556,
			},
		},
	}
}

// Load returns the defaults overridden by the TOML file at path. An
// empty path, or a missing file, yields the plain defaults.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}
