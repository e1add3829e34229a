// Package signal drives the single status LED of the node. Boot progress and
// terminal faults are encoded as blink patterns so the device state can be
// read without a serial console or network.
package signal

import (
	"context"
	"log/slog"

	"github.com/teamrocket/dhtnode"
)

// Pin sets the electrical level of the status output.
type Pin func(level bool)

// Config configures a Signal.
type Config struct {
	// ActiveLow is set when the LED lights with the pin driven low.
	ActiveLow bool
	Timing    Timing
	// Reset performs a full device reset. It is called after a bounded halt
	// repetition when restart is requested. On hardware it does not return.
	Reset  func()
	Logger *slog.Logger
}

// Signal owns the status LED. The zero value is not usable; use New.
type Signal struct {
	pin       Pin
	activeLow bool
	on        bool
	timing    Timing
	clk       dhtnode.Clock
	reset     func()
	logger    *slog.Logger
	buf       []Pulse
}

// New returns a Signal driving pin. The LED is switched off.
func New(pin Pin, clk dhtnode.Clock, cfg Config) *Signal {
	if cfg.Timing == (Timing{}) {
		cfg.Timing = DefaultTiming()
	}
	s := &Signal{
		pin:       pin,
		activeLow: cfg.ActiveLow,
		timing:    cfg.Timing,
		clk:       clk,
		reset:     cfg.Reset,
		logger:    cfg.Logger,
	}
	s.Off()
	return s
}

// IsOn reports the logical LED state.
func (s *Signal) IsOn() bool { return s.on }

// Timing returns the pattern timings in use.
func (s *Signal) Timing() Timing { return s.timing }

func (s *Signal) On()  { s.set(true) }
func (s *Signal) Off() { s.set(false) }

// Flip inverts the LED.
func (s *Signal) Flip() { s.set(!s.on) }

func (s *Signal) set(on bool) {
	s.on = on
	s.pin(on != s.activeLow)
}

// Play renders pattern on the LED, blocking for its full duration.
func (s *Signal) Play(pattern []Pulse) {
	for _, p := range pattern {
		s.set(p.On)
		s.clk.Sleep(p.Duration)
	}
}

// Phase blinks the progress pattern of a boot phase and leaves the LED off.
func (s *Signal) Phase(code int) {
	s.buf = AppendPhase(s.buf[:0], code, s.timing)
	s.Play(s.buf)
}

// Halt enters the terminal fault state, blinking blinks times per burst.
// With restart set one bounded repetition is played and the device reset hook
// is called; Halt returns only if that hook returns. Without restart Halt
// never returns.
func (s *Signal) Halt(blinks int, restart bool) {
	s.log(slog.LevelError, "signal:halt", slog.Int("blinks", blinks), slog.Bool("restart", restart))
	s.Off()
	s.buf = AppendHalt(s.buf[:0], blinks, s.timing)
	for {
		s.Play(s.buf)
		if restart {
			break
		}
	}
	if s.reset != nil {
		s.log(slog.LevelWarn, "signal:reset")
		s.reset()
	}
}

func (s *Signal) log(level slog.Level, msg string, attrs ...slog.Attr) {
	if s.logger != nil {
		s.logger.LogAttrs(context.Background(), level, msg, attrs...)
	}
}
