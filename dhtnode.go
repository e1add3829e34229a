// Package dhtnode holds the definitions shared by the firmware of a
// self-provisioning temperature/humidity node: boot phases, fault codes and
// the clock abstraction every waiting loop in the firmware goes through.
//
// The node reads a DHT11 sensor, obtains WiFi credentials from the serial
// console or from flash, and serves the latest reading over HTTP. Components
// live in their own packages:
//
//   - [github.com/teamrocket/dhtnode/signal]: LED blink patterns and halting.
//   - [github.com/teamrocket/dhtnode/credentials]: console protocol and flash record.
//   - [github.com/teamrocket/dhtnode/sensor]: rate limited last-known-good sampling.
//   - [github.com/teamrocket/dhtnode/wifi]: connect/retry/health-check state machine.
//   - [github.com/teamrocket/dhtnode/boot]: ordered bring-up and the run loop.
//   - [github.com/teamrocket/dhtnode/statusserver]: text/plain status endpoint.
package dhtnode

import "time"

// Clock is the time source used by all blocking waits in the firmware.
// Sleep blocks the whole device for d; there is no cancellation.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// SystemClock is the Clock backed by package time.
type SystemClock struct{}

func (SystemClock) Now() time.Time        { return time.Now() }
func (SystemClock) Sleep(d time.Duration) { time.Sleep(d) }
