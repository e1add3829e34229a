// Package config holds the node configuration. The firmware embeds a YAML
// document; host tools load one from disk.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/teamrocket/dhtnode"
	"github.com/teamrocket/dhtnode/boot"
	"github.com/teamrocket/dhtnode/credentials"
	"github.com/teamrocket/dhtnode/sensor"
	"github.com/teamrocket/dhtnode/signal"
	"github.com/teamrocket/dhtnode/statusserver"
	"github.com/teamrocket/dhtnode/wifi"
)

// Config represents the node configuration.
type Config struct {
	Hostname string        `yaml:"hostname"`
	LogLevel string        `yaml:"log_level"`
	Boot     BootConfig    `yaml:"boot"`
	Signal   SignalConfig  `yaml:"signal"`
	WiFi     WiFiConfig    `yaml:"wifi"`
	Sensor   SensorConfig  `yaml:"sensor"`
	Storage  StorageConfig `yaml:"storage"`
	Server   ServerConfig  `yaml:"server"`
	// Faults maps fault names (e.g. "connect-timeout") to restart (true) or
	// halt forever (false). Unlisted faults restart.
	Faults map[string]bool `yaml:"faults"`
}

// BootConfig contains startup timings.
type BootConfig struct {
	Flicker        int           `yaml:"flicker"`
	FlickerPeriod  time.Duration `yaml:"flicker_period"`
	Countdown      time.Duration `yaml:"countdown"`
	ConsoleTimeout time.Duration `yaml:"console_timeout"`
	LoopDelay      time.Duration `yaml:"loop_delay"`
}

// SignalConfig contains status LED settings.
type SignalConfig struct {
	// Pin is the GPIO of an external status LED. Negative selects the
	// on-board LED behind the radio.
	Pin        int           `yaml:"pin"`
	ActiveLow  bool          `yaml:"active_low"`
	Preamble   time.Duration `yaml:"preamble"`
	PhaseUnit  time.Duration `yaml:"phase_unit"`
	PhaseTail  time.Duration `yaml:"phase_tail"`
	Blink      time.Duration `yaml:"blink"`
	BurstPause time.Duration `yaml:"burst_pause"`
	Bursts     int           `yaml:"bursts"`
}

// WiFiConfig contains the connect budget.
type WiFiConfig struct {
	PollInterval     time.Duration `yaml:"poll_interval"`
	Attempts         int           `yaml:"attempts"`
	ScanFailureFatal bool          `yaml:"scan_failure_fatal"`
}

// SensorConfig contains sampling parameters.
type SensorConfig struct {
	Interval time.Duration `yaml:"interval"`
	Pin      int           `yaml:"pin"` // GPIO number of the DHT11 data line.
}

// StorageConfig contains the credential record location.
type StorageConfig struct {
	Path               string `yaml:"path"`
	FormatOnMountError bool   `yaml:"format_on_mount_error"`
}

// ServerConfig contains HTTP settings.
type ServerConfig struct {
	Port       uint16 `yaml:"port"`
	BufferSize int    `yaml:"buffer_size"`
}

// Default returns the stock node configuration.
func Default() *Config {
	timing := signal.DefaultTiming()
	wcfg := wifi.DefaultConfig()
	bcfg := boot.DefaultConfig()
	return &Config{
		Hostname: bcfg.Hostname,
		LogLevel: "info",
		Boot: BootConfig{
			Flicker:        bcfg.Flicker,
			FlickerPeriod:  bcfg.FlickerPeriod,
			Countdown:      bcfg.Countdown,
			ConsoleTimeout: bcfg.ConsoleTimeout,
		},
		Signal: SignalConfig{
			Pin:        -1,
			ActiveLow:  true,
			Preamble:   timing.Preamble,
			PhaseUnit:  timing.PhaseUnit,
			PhaseTail:  timing.PhaseTail,
			Blink:      timing.Blink,
			BurstPause: timing.BurstPause,
			Bursts:     timing.Bursts,
		},
		WiFi: WiFiConfig{
			PollInterval: wcfg.PollInterval,
			Attempts:     wcfg.Attempts,
		},
		Sensor: SensorConfig{
			Interval: sensor.DefaultInterval,
			Pin:      15,
		},
		Storage: StorageConfig{
			Path:               credentials.DefaultPath,
			FormatOnMountError: true,
		},
		Server: ServerConfig{
			Port:       statusserver.DefaultPort,
			BufferSize: 1024,
		},
		Faults: map[string]bool{},
	}
}

// Parse decodes a YAML document over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads a YAML file. A missing file yields the defaults.
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Validate checks that every field is usable.
func (c *Config) Validate() error {
	var errs []error
	if c.Hostname == "" {
		errs = append(errs, errors.New("hostname is empty"))
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	if c.Boot.Flicker < 0 || c.Boot.FlickerPeriod < 0 || c.Boot.Countdown < 0 || c.Boot.LoopDelay < 0 {
		errs = append(errs, errors.New("boot timings must not be negative"))
	}
	if c.Boot.ConsoleTimeout <= 0 {
		errs = append(errs, errors.New("boot.console_timeout must be positive"))
	}
	if c.WiFi.PollInterval <= 0 || c.WiFi.Attempts <= 0 {
		errs = append(errs, errors.New("wifi.poll_interval and wifi.attempts must be positive"))
	}
	if c.Sensor.Interval <= 0 {
		errs = append(errs, errors.New("sensor.interval must be positive"))
	}
	if c.Signal.Bursts <= 0 || c.Signal.Blink <= 0 || c.Signal.PhaseUnit <= 0 {
		errs = append(errs, errors.New("signal.bursts, signal.blink and signal.phase_unit must be positive"))
	}
	if c.Storage.Path == "" {
		errs = append(errs, errors.New("storage.path is empty"))
	}
	if c.Server.Port == 0 {
		errs = append(errs, errors.New("server.port is zero"))
	}
	for name := range c.Faults {
		if _, err := dhtnode.ParseFault(name); err != nil {
			errs = append(errs, fmt.Errorf("faults: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Level returns the parsed log level.
func (c *Config) Level() (slog.Level, error) {
	var lvl slog.Level
	err := lvl.UnmarshalText([]byte(strings.ToUpper(c.LogLevel)))
	if err != nil {
		return slog.LevelInfo, fmt.Errorf("log_level: %w", err)
	}
	return lvl, nil
}

// Policy returns the per-fault restart policy.
func (c *Config) Policy() boot.Policy {
	p := boot.DefaultPolicy()
	for name, restart := range c.Faults {
		if f, err := dhtnode.ParseFault(name); err == nil {
			p[f] = restart
		}
	}
	return p
}

// BootConfig returns the Sequencer configuration.
func (c *Config) BootConfig(logger *slog.Logger) boot.Config {
	return boot.Config{
		Hostname:         c.Hostname,
		Flicker:          c.Boot.Flicker,
		FlickerPeriod:    c.Boot.FlickerPeriod,
		Countdown:        c.Boot.Countdown,
		ConsoleTimeout:   c.Boot.ConsoleTimeout,
		ScanFailureFatal: c.WiFi.ScanFailureFatal,
		Policy:           c.Policy(),
		LoopDelay:        c.Boot.LoopDelay,
		Logger:           logger,
	}
}

// SignalConfig returns the status LED configuration.
func (c *Config) SignalConfig(reset func(), logger *slog.Logger) signal.Config {
	return signal.Config{
		ActiveLow: c.Signal.ActiveLow,
		Timing: signal.Timing{
			Preamble:   c.Signal.Preamble,
			PhaseUnit:  c.Signal.PhaseUnit,
			PhaseTail:  c.Signal.PhaseTail,
			Blink:      c.Signal.Blink,
			BurstPause: c.Signal.BurstPause,
			Bursts:     c.Signal.Bursts,
		},
		Reset:  reset,
		Logger: logger,
	}
}

// WiFiConfig returns the Manager configuration.
func (c *Config) WiFiConfig(logger *slog.Logger) wifi.Config {
	return wifi.Config{
		PollInterval: c.WiFi.PollInterval,
		Attempts:     c.WiFi.Attempts,
		Logger:       logger,
	}
}

// SensorConfig returns the Sampler configuration.
func (c *Config) SensorConfig(logger *slog.Logger) sensor.Config {
	return sensor.Config{Interval: c.Sensor.Interval, Logger: logger}
}

// StoreConfig returns the credential Store configuration.
func (c *Config) StoreConfig(logger *slog.Logger) credentials.StoreConfig {
	return credentials.StoreConfig{
		Path:               c.Storage.Path,
		FormatOnMountError: c.Storage.FormatOnMountError,
		Logger:             logger,
	}
}

// ServerConfig returns the status server configuration.
func (c *Config) ServerConfig(listen statusserver.ListenFunc, logger *slog.Logger) statusserver.Config {
	return statusserver.Config{
		Port:       c.Server.Port,
		Listen:     listen,
		BufferSize: c.Server.BufferSize,
		Logger:     logger,
	}
}
