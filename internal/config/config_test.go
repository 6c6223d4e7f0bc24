package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "127.0.0.1:9370", cfg.HTTP.Addr())
	assert.Equal(t, 100, cfg.Boost.InputBoostDurationMS)
	assert.Equal(t, 1000, cfg.Boost.MaxBoostDurationMS)
	assert.NotEmpty(t, cfg.Pools)
	assert.True(t, cfg.Saver.Enabled)
	assert.Contains(t, cfg.Saver.Clusters, "little")
	assert.Contains(t, cfg.Saver.DevfreqCaps, "cpu-llcc-bw")
}

func TestLoad_EmptyPathYieldsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "boostd.toml")
	contents := `
[http]
host = "0.0.0.0"
port = 8125

[boost]
input_boost_duration_ms = 64
max_boost_duration_ms = 2000
cpubw_boost_freq = 9887
llccbw_boost_freq = 6881
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8125", cfg.HTTP.Addr())
	assert.Equal(t, 64, cfg.Boost.InputBoostDurationMS)
	assert.Equal(t, uint64(9887), cfg.Boost.CPUBandwidthFreq)

	// Untouched sections keep their defaults.
	assert.True(t, cfg.Saver.Enabled)
	assert.NotEmpty(t, cfg.Pools)
}

func TestLoad_RejectsMalformedTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[http\nport="), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
