package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamrocket/dhtnode"
	"github.com/teamrocket/dhtnode/wifi"
)

func TestDefaultValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 80, cfg.WiFi.Attempts)
	assert.Equal(t, 250*time.Millisecond, cfg.WiFi.PollInterval)
	assert.Equal(t, 10*time.Second, cfg.Sensor.Interval)
	assert.Equal(t, "ap", cfg.Storage.Path)
	assert.EqualValues(t, 80, cfg.Server.Port)
	assert.True(t, cfg.Signal.ActiveLow)
}

func TestParseOverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
hostname: greenhouse
log_level: debug
wifi:
  poll_interval: 500ms
  attempts: 40
  scan_failure_fatal: true
sensor:
  interval: 30s
faults:
  connect-rejected: false
`))
	require.NoError(t, err)
	assert.Equal(t, "greenhouse", cfg.Hostname)
	assert.Equal(t, 500*time.Millisecond, cfg.WiFi.PollInterval)
	assert.Equal(t, 40, cfg.WiFi.Attempts)
	assert.Equal(t, 30*time.Second, cfg.Sensor.Interval)
	assert.Equal(t, 10*time.Second, cfg.Boot.Countdown, "unset fields keep defaults")

	lvl, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, lvl)

	policy := cfg.Policy()
	assert.False(t, policy.Restart(dhtnode.FaultConnectRejected))
	assert.True(t, policy.Restart(dhtnode.FaultConnectTimeout))

	bcfg := cfg.BootConfig(nil)
	assert.True(t, bcfg.ScanFailureFatal)
	assert.Equal(t, "greenhouse", bcfg.Hostname)
	assert.Equal(t, wifi.SlowConfig().Attempts, cfg.WiFiConfig(nil).Attempts)
	assert.Equal(t, wifi.SlowConfig().PollInterval, cfg.WiFiConfig(nil).PollInterval)
}

func TestParseRejectsInvalid(t *testing.T) {
	for _, tc := range []struct {
		name string
		doc  string
	}{
		{name: "syntax", doc: "wifi: [unterminated"},
		{name: "unknown fault", doc: "faults:\n  melted: true\n"},
		{name: "zero attempts", doc: "wifi:\n  attempts: 0\n"},
		{name: "bad level", doc: "log_level: loud\n"},
		{name: "empty hostname", doc: "hostname: \"\"\n"},
		{name: "bad duration", doc: "sensor:\n  interval: soon\n"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.doc))
			require.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	path := filepath.Join(t.TempDir(), "node.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 8080\n"), 0o644))
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.EqualValues(t, 8080, cfg.Server.Port)
	assert.EqualValues(t, 8080, cfg.ServerConfig(nil, nil).Port)
}

func TestComponentConfigs(t *testing.T) {
	cfg := Default()
	sc := cfg.SignalConfig(nil, nil)
	assert.True(t, sc.ActiveLow)
	assert.Equal(t, 5, sc.Timing.Bursts)
	assert.Equal(t, time.Second, sc.Timing.PhaseUnit)
	assert.Equal(t, "ap", cfg.StoreConfig(nil).Path)
	assert.Equal(t, 10*time.Second, cfg.SensorConfig(nil).Interval)
}
