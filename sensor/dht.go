//go:build tinygo

package sensor

import (
	"machine"

	"github.com/chewxy/math32"
	"tinygo.org/x/drivers/dht"
)

// DHT is a Driver for a DHT11 connected to a single data pin.
type DHT struct {
	pin machine.Pin
	dev dht.Device
}

// NewDHT11 returns a driver for a DHT11 on pin. Call Configure (or
// Sampler.Init) before sampling.
func NewDHT11(pin machine.Pin) *DHT {
	return &DHT{pin: pin}
}

func (d *DHT) Configure() error {
	d.dev = dht.New(d.pin, dht.DHT11)
	return nil
}

// Sample performs one bus transaction. Checksum and timeout errors yield NaN
// for both fields.
func (d *DHT) Sample() (temperature, humidity float32) {
	if d.dev == nil {
		return math32.NaN(), math32.NaN()
	}
	if err := d.dev.ReadMeasurements(); err != nil {
		return math32.NaN(), math32.NaN()
	}
	t, h, err := d.dev.Measurements()
	if err != nil {
		return math32.NaN(), math32.NaN()
	}
	// Measurements are reported in tenths.
	return float32(t) / 10, float32(h) / 10
}
