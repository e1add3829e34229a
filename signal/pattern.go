package signal

import "time"

// Pulse is one segment of a blink pattern: the LED held at a level for a duration.
type Pulse struct {
	On       bool
	Duration time.Duration
}

// Timing holds the durations that make up phase and fault patterns.
type Timing struct {
	// Preamble is the length of each of the three short segments that open a
	// phase pattern.
	Preamble time.Duration
	// PhaseUnit is multiplied by the phase code to get the long "on" segment.
	PhaseUnit time.Duration
	// PhaseTail is the "off" segment that closes a phase pattern.
	PhaseTail time.Duration
	// Blink is the on time and the off time of a single fault blink.
	Blink time.Duration
	// BurstPause separates fault bursts.
	BurstPause time.Duration
	// Bursts is the number of bursts in one bounded halt repetition.
	Bursts int
}

// DefaultTiming returns the stock pattern timings.
func DefaultTiming() Timing {
	return Timing{
		Preamble:   250 * time.Millisecond,
		PhaseUnit:  time.Second,
		PhaseTail:  500 * time.Millisecond,
		Blink:      500 * time.Millisecond,
		BurstPause: 2 * time.Second,
		Bursts:     5,
	}
}

// AppendPhase appends the progress pattern of a boot phase to dst:
// off, on, off, then on for code phase units, then off.
func AppendPhase(dst []Pulse, code int, t Timing) []Pulse {
	if code < 0 {
		code = 0
	}
	return append(dst,
		Pulse{On: false, Duration: t.Preamble},
		Pulse{On: true, Duration: t.Preamble},
		Pulse{On: false, Duration: t.Preamble},
		Pulse{On: true, Duration: time.Duration(code) * t.PhaseUnit},
		Pulse{On: false, Duration: t.PhaseTail},
	)
}

// AppendBurst appends one fault burst to dst: blinks on/off cycles followed by
// the inter-burst pause.
func AppendBurst(dst []Pulse, blinks int, t Timing) []Pulse {
	for i := 0; i < blinks; i++ {
		dst = append(dst,
			Pulse{On: true, Duration: t.Blink},
			Pulse{On: false, Duration: t.Blink},
		)
	}
	return append(dst, Pulse{On: false, Duration: t.BurstPause})
}

// AppendHalt appends one bounded halt repetition (t.Bursts bursts) to dst.
func AppendHalt(dst []Pulse, blinks int, t Timing) []Pulse {
	for i := 0; i < t.Bursts; i++ {
		dst = AppendBurst(dst, blinks, t)
	}
	return dst
}

// Duration returns the total length of a pattern.
func Duration(pattern []Pulse) (d time.Duration) {
	for _, p := range pattern {
		d += p.Duration
	}
	return d
}

// CountOn returns the number of distinct "on" segments in pattern.
// Adjacent "on" pulses count once.
func CountOn(pattern []Pulse) (n int) {
	prev := false
	for _, p := range pattern {
		if p.On && !prev {
			n++
		}
		prev = p.On
	}
	return n
}
