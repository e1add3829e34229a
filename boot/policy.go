package boot

import (
	"errors"
	"log/slog"

	"github.com/teamrocket/dhtnode"
)

// Policy decides per fault whether halting ends in a device restart. Faults
// missing from the map restart.
type Policy map[dhtnode.Fault]bool

// DefaultPolicy restarts on every fault.
func DefaultPolicy() Policy {
	p := make(Policy, len(dhtnode.Faults))
	for _, f := range dhtnode.Faults {
		p[f] = true
	}
	return p
}

// Restart reports whether f halts with a restart.
func (p Policy) Restart(f dhtnode.Fault) bool {
	restart, ok := p[f]
	return restart || !ok
}

// Halter is the terminal fault indicator. *signal.Signal satisfies it.
type Halter interface {
	Halt(blinks int, restart bool)
}

// Halt routes err to the fault indicator. A *dhtnode.FaultError blinks its
// fault code with the restart behavior set by p. Any other error restarts
// without a blink code. Halt returns only if the restart hook returns.
func Halt(h Halter, p Policy, err error, logger *slog.Logger) {
	var fe *dhtnode.FaultError
	if !errors.As(err, &fe) {
		logattrs(logger, slog.LevelError, "boot:unclassified", slog.String("err", errString(err)))
		h.Halt(0, true)
		return
	}
	restart := p.Restart(fe.Fault)
	attrs := []slog.Attr{
		slog.String("fault", fe.Fault.String()),
		slog.Int("blinks", fe.Fault.Blinks()),
		slog.Bool("restart", restart),
	}
	if fe.Phase != 0 {
		attrs = append(attrs, slog.String("phase", fe.Phase.String()))
	}
	if fe.Err != nil {
		attrs = append(attrs, slog.String("err", fe.Err.Error()))
	}
	logattrs(logger, slog.LevelError, "boot:fault", attrs...)
	h.Halt(fe.Fault.Blinks(), restart)
}

func errString(err error) string {
	if err == nil {
		return "<nil>"
	}
	return err.Error()
}
