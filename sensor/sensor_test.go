package sensor

import (
	"errors"
	"testing"
	"time"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamrocket/dhtnode/internal/clocktest"
)

type sample struct{ t, h float32 }

// scriptedDriver returns samples in order, taking latency of clock time per read.
type scriptedDriver struct {
	clk     *clocktest.Clock
	samples []sample
	latency time.Duration
	reads   int
	cfgErr  error
	cfgd    bool
}

func (d *scriptedDriver) Sample() (float32, float32) {
	d.clk.Advance(d.latency)
	s := d.samples[d.reads%len(d.samples)]
	d.reads++
	return s.t, s.h
}

func (d *scriptedDriver) Configure() error {
	d.cfgd = true
	return d.cfgErr
}

func TestSamplerFirstUpdateFires(t *testing.T) {
	clk := clocktest.New()
	drv := &scriptedDriver{clk: clk, samples: []sample{{22.5, 48}}}
	s := NewSampler(drv, clk, Config{})
	r := s.Reading()
	assert.False(t, r.TemperatureKnown())
	assert.False(t, r.HumidityKnown())

	require.True(t, s.Update(clk.Now()))
	r = s.Reading()
	assert.Equal(t, float32(22.5), r.Temperature)
	assert.Equal(t, float32(48), r.Humidity)
}

func TestSamplerRateLimit(t *testing.T) {
	clk := clocktest.New()
	drv := &scriptedDriver{clk: clk, samples: []sample{{20, 40}, {21, 41}}}
	s := NewSampler(drv, clk, Config{})
	require.True(t, s.Update(clk.Now()))

	clk.Advance(3 * time.Second)
	age1 := s.Age(clk.Now())
	assert.False(t, s.Update(clk.Now()))
	clk.Advance(4 * time.Second)
	age2 := s.Age(clk.Now())
	assert.False(t, s.Update(clk.Now()))
	assert.Equal(t, 1, drv.reads, "at most one driver read within the interval")
	assert.GreaterOrEqual(t, age2-age1, 4*time.Second)

	clk.Advance(3 * time.Second)
	assert.True(t, s.Update(clk.Now()), "fires once the interval elapsed")
	assert.Equal(t, float32(21), s.Reading().Temperature)
	assert.Equal(t, 2, s.Reads())
}

func TestSamplerKeepsLastKnownGood(t *testing.T) {
	nan := math32.NaN()
	clk := clocktest.New()
	drv := &scriptedDriver{clk: clk, samples: []sample{
		{nan, nan},
		{22.5, nan},
		{nan, 48},
		{nan, nan},
		{23, 50},
	}}
	s := NewSampler(drv, clk, Config{Interval: time.Second})
	type want struct {
		tKnown, hKnown bool
		t, h           float32
	}
	steps := []want{
		{false, false, 0, 0},
		{true, false, 22.5, 0},
		{true, true, 22.5, 48},
		{true, true, 22.5, 48},
		{true, true, 23, 50},
	}
	for i, w := range steps {
		before := s.Reading()
		require.True(t, s.Update(clk.Now()), "step %d", i)
		r := s.Reading()
		assert.Equal(t, w.tKnown, r.TemperatureKnown(), "step %d", i)
		assert.Equal(t, w.hKnown, r.HumidityKnown(), "step %d", i)
		if w.tKnown {
			assert.Equal(t, w.t, r.Temperature, "step %d", i)
		}
		if w.hKnown {
			assert.Equal(t, w.h, r.Humidity, "step %d", i)
		}
		cur := drv.samples[i]
		if math32.IsNaN(cur.t) && before.TemperatureKnown() {
			assert.Equal(t, before.Temperature, r.Temperature, "no regression at step %d", i)
		}
		if math32.IsNaN(cur.h) && before.HumidityKnown() {
			assert.Equal(t, before.Humidity, r.Humidity, "no regression at step %d", i)
		}
		clk.Advance(time.Second)
	}
}

func TestSamplerTimestampAfterRead(t *testing.T) {
	clk := clocktest.New()
	drv := &scriptedDriver{clk: clk, samples: []sample{{20, 40}}, latency: 25 * time.Millisecond}
	s := NewSampler(drv, clk, Config{})
	start := clk.Now()
	s.Update(start)
	assert.Equal(t, start.Add(25*time.Millisecond), s.Reading().SampledAt)
}

func TestSamplerInit(t *testing.T) {
	clk := clocktest.New()
	drv := &scriptedDriver{clk: clk, samples: []sample{{20, 40}}, cfgErr: errors.New("no pullup")}
	s := NewSampler(drv, clk, Config{})
	assert.Error(t, s.Init())
	assert.True(t, drv.cfgd)
	assert.True(t, s.Update(clk.Now()), "sampling proceeds after a configure error")
}
