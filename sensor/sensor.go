// Package sensor samples a temperature/humidity source at a fixed rate,
// keeping the last known good value of each field across invalid reads.
package sensor

import (
	"context"
	"log/slog"
	"time"

	"github.com/chewxy/math32"

	"github.com/teamrocket/dhtnode"
)

// DefaultInterval is the minimum time between two driver reads.
const DefaultInterval = 10000 * time.Millisecond

// Driver takes one measurement. A field that could not be measured is NaN.
type Driver interface {
	Sample() (temperature, humidity float32)
}

// Configurer is implemented by drivers that need setup before sampling.
type Configurer interface {
	Configure() error
}

// Reading is the latest sensor state. A NaN field is unknown: no valid
// measurement has been observed for it yet.
type Reading struct {
	Temperature float32 // degrees Celsius
	Humidity    float32 // relative humidity, percent
	// SampledAt is the time the last driver read completed, or the creation
	// time of the Sampler if none has happened.
	SampledAt time.Time
}

func (r Reading) TemperatureKnown() bool { return !math32.IsNaN(r.Temperature) }
func (r Reading) HumidityKnown() bool    { return !math32.IsNaN(r.Humidity) }

// Age returns how old the reading is at now.
func (r Reading) Age(now time.Time) time.Duration { return now.Sub(r.SampledAt) }

// Config configures a Sampler.
type Config struct {
	// Interval between driver reads. DefaultInterval if zero.
	Interval time.Duration
	Logger   *slog.Logger
}

// Sampler owns the Reading. It is not safe for concurrent use; the run loop
// is its only caller.
type Sampler struct {
	drv      Driver
	clk      dhtnode.Clock
	interval time.Duration
	reading  Reading
	sampled  bool
	reads    int
	logger   *slog.Logger
}

func NewSampler(drv Driver, clk dhtnode.Clock, cfg Config) *Sampler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	return &Sampler{
		drv:      drv,
		clk:      clk,
		interval: cfg.Interval,
		logger:   cfg.Logger,
		reading: Reading{
			Temperature: math32.NaN(),
			Humidity:    math32.NaN(),
			SampledAt:   clk.Now(),
		},
	}
}

// Init configures the driver if it needs it. Errors are logged and returned
// for information; sampling proceeds regardless since sensor faults are
// transient.
func (s *Sampler) Init() error {
	c, ok := s.drv.(Configurer)
	if !ok {
		return nil
	}
	err := c.Configure()
	if err != nil {
		s.log(slog.LevelError, "sensor:configure", slog.String("err", err.Error()))
	}
	return err
}

// Update reads the driver if the sampling interval has elapsed since the last
// read, and reports whether it did. NaN fields keep their previous value.
func (s *Sampler) Update(now time.Time) bool {
	if s.sampled && now.Sub(s.reading.SampledAt) < s.interval {
		return false
	}
	temp, hum := s.drv.Sample()
	s.reads++
	if !math32.IsNaN(temp) {
		s.reading.Temperature = temp
	} else {
		s.log(slog.LevelWarn, "sensor:temperature-nan")
	}
	if !math32.IsNaN(hum) {
		s.reading.Humidity = hum
	} else {
		s.log(slog.LevelWarn, "sensor:humidity-nan")
	}
	// Take the timestamp after the read to account for sampling latency.
	s.reading.SampledAt = s.clk.Now()
	s.sampled = true
	s.log(slog.LevelInfo, "sensor:update",
		slog.Float64("temperature", float64(s.reading.Temperature)),
		slog.Float64("humidity", float64(s.reading.Humidity)),
	)
	return true
}

// Reading returns the current reading.
func (s *Sampler) Reading() Reading { return s.reading }

// Age returns the age of the current reading at now.
func (s *Sampler) Age(now time.Time) time.Duration { return s.reading.Age(now) }

// Reads returns the number of driver reads performed.
func (s *Sampler) Reads() int { return s.reads }

func (s *Sampler) log(level slog.Level, msg string, attrs ...slog.Attr) {
	if s.logger != nil {
		s.logger.LogAttrs(context.Background(), level, msg, attrs...)
	}
}
