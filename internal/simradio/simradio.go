// Package simradio provides a scripted wifi.Radio used by tests and the host
// simulator.
package simradio

import (
	"errors"
	"net"
	"net/netip"
	"sync"

	"github.com/teamrocket/dhtnode/wifi"
)

var errNoHardware = errors.New("simradio: no hardware")

// Radio replays a status script. Each Status call consumes one entry of the
// script; once exhausted the last entry repeats. Connect restarts the script
// from the beginning. Safe for concurrent use so the simulator can drop the
// link from another goroutine.
type Radio struct {
	mu       sync.Mutex
	script   []wifi.LinkStatus
	pos      int
	forced   *wifi.LinkStatus
	addr     netip.Addr
	mac      net.HardwareAddr
	networks []wifi.Network
	scanErr  error
	missing  bool

	// Counters for assertions.
	Connects    int
	Disconnects int
	Polls       int
	LastSSID    string
	LastSecret  string
}

// New returns a radio that reports script on successive polls after every
// Connect and assigns addr once connected.
func New(addr netip.Addr, script ...wifi.LinkStatus) *Radio {
	return &Radio{
		script: script,
		addr:   addr,
		mac:    net.HardwareAddr{0x28, 0xcd, 0xc1, 0x00, 0x00, 0x01},
	}
}

// SetNetworks sets the scan result.
func (r *Radio) SetNetworks(nets ...wifi.Network) {
	r.mu.Lock()
	r.networks = nets
	r.mu.Unlock()
}

// FailScan makes subsequent scans return err.
func (r *Radio) FailScan(err error) {
	r.mu.Lock()
	r.scanErr = err
	r.mu.Unlock()
}

// RemoveHardware makes HardwareAddr fail and Status report no hardware.
func (r *Radio) RemoveHardware() {
	r.mu.Lock()
	r.missing = true
	r.mu.Unlock()
}

// Drop forces Status to report disconnected until the next Connect.
func (r *Radio) Drop() {
	r.mu.Lock()
	st := wifi.StatusDisconnected
	r.forced = &st
	r.mu.Unlock()
}

// Rescript replaces the script used after the next Connect.
func (r *Radio) Rescript(script ...wifi.LinkStatus) {
	r.mu.Lock()
	r.script = script
	r.mu.Unlock()
}

func (r *Radio) Disconnect() error {
	r.mu.Lock()
	r.Disconnects++
	r.mu.Unlock()
	return nil
}

func (r *Radio) StationMode() error { return nil }

func (r *Radio) Connect(ssid, secret string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Connects++
	r.LastSSID = ssid
	r.LastSecret = secret
	r.pos = 0
	r.forced = nil
	return nil
}

func (r *Radio) Status() wifi.LinkStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Polls++
	switch {
	case r.missing:
		return wifi.StatusNoHardware
	case r.forced != nil:
		return *r.forced
	case len(r.script) == 0:
		return wifi.StatusConnected
	}
	st := r.script[r.pos]
	if r.pos < len(r.script)-1 {
		r.pos++
	}
	return st
}

func (r *Radio) Addr() netip.Addr {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.addr
}

func (r *Radio) HardwareAddr() (net.HardwareAddr, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.missing {
		return nil, errNoHardware
	}
	return r.mac, nil
}

func (r *Radio) Scan() ([]wifi.Network, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.scanErr != nil {
		return nil, r.scanErr
	}
	return append([]wifi.Network(nil), r.networks...), nil
}

var _ wifi.Radio = (*Radio)(nil)
