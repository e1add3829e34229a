package dhtnode

import (
	"errors"
	"strconv"
)

// Phase identifies a boot stage. The numeric value is the phase code blinked
// on the status LED before the stage starts.
type Phase uint8

const (
	PhaseAuthAcquire     Phase = 2
	PhaseRadioConnect    Phase = 3
	PhaseSensorInit      Phase = 4
	PhaseRadioInit       Phase = 5
	PhaseRadioScan       Phase = 6
	PhaseNameServiceInit Phase = 7
	PhaseServerInit      Phase = 8
)

// BootOrder lists phases in the order they execute.
var BootOrder = [...]Phase{
	PhaseAuthAcquire,
	PhaseSensorInit,
	PhaseRadioInit,
	PhaseRadioScan,
	PhaseRadioConnect,
	PhaseNameServiceInit,
	PhaseServerInit,
}

// Code returns the phase code.
func (p Phase) Code() int { return int(p) }

func (p Phase) String() string {
	switch p {
	case PhaseAuthAcquire:
		return "auth-acquire"
	case PhaseRadioConnect:
		return "radio-connect"
	case PhaseSensorInit:
		return "sensor-init"
	case PhaseRadioInit:
		return "radio-init"
	case PhaseRadioScan:
		return "radio-scan"
	case PhaseNameServiceInit:
		return "name-service-init"
	case PhaseServerInit:
		return "server-init"
	}
	return "phase(" + strconv.Itoa(int(p)) + ")"
}

// Fault identifies a terminal error condition. The numeric value is the
// number of blinks per burst while halted.
type Fault uint8

const (
	FaultNoCredentials   Fault = 1
	FaultNoRadioHardware Fault = 2
	FaultConnectRejected Fault = 3
	FaultConnectTimeout  Fault = 4
	FaultServerBind      Fault = 5
	FaultScanFailed      Fault = 6
)

// Faults lists every defined fault.
var Faults = [...]Fault{
	FaultNoCredentials,
	FaultNoRadioHardware,
	FaultConnectRejected,
	FaultConnectTimeout,
	FaultServerBind,
	FaultScanFailed,
}

// Blinks returns the number of blinks per burst that signal f.
func (f Fault) Blinks() int { return int(f) }

func (f Fault) IsValid() bool { return f >= FaultNoCredentials && f <= FaultScanFailed }

func (f Fault) String() string {
	switch f {
	case FaultNoCredentials:
		return "no-credentials"
	case FaultNoRadioHardware:
		return "no-radio-hardware"
	case FaultConnectRejected:
		return "connect-rejected"
	case FaultConnectTimeout:
		return "connect-timeout"
	case FaultServerBind:
		return "server-bind"
	case FaultScanFailed:
		return "scan-failed"
	}
	return "fault(" + strconv.Itoa(int(f)) + ")"
}

// ParseFault returns the fault whose String form is s.
func ParseFault(s string) (Fault, error) {
	for _, f := range Faults {
		if f.String() == s {
			return f, nil
		}
	}
	return 0, errors.New("dhtnode: unknown fault " + strconv.Quote(s))
}

// FaultError carries a fatal fault up to the code that halts the device.
type FaultError struct {
	Fault Fault
	// Phase is the boot phase that failed, or zero if the fault happened
	// during normal operation.
	Phase Phase
	Err   error
}

func (e *FaultError) Error() string {
	msg := "fault " + e.Fault.String()
	if e.Phase != 0 {
		msg += " in " + e.Phase.String()
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FaultError) Unwrap() error { return e.Err }

// AsFault reports the fault carried by err, if any.
func AsFault(err error) (Fault, bool) {
	var fe *FaultError
	if errors.As(err, &fe) {
		return fe.Fault, true
	}
	return 0, false
}
