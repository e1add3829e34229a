//go:build tinygo && (rp2040 || rp2350)

package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/netip"
	"strings"
	"sync/atomic"
	"time"

	"github.com/soypat/cyw43439"

	"github.com/teamrocket/dhtnode"
	"github.com/teamrocket/dhtnode/netstack"
	"github.com/teamrocket/dhtnode/wifi"
)

const (
	dhcpPoll    = 50 * time.Millisecond
	dhcpTimeout = 10 * time.Second
	pumpIdle    = 5 * time.Millisecond
)

var errScanUnsupported = errors.New("radio: scan not supported by driver")

// picoRadio drives the CYW43439 as a wifi.Radio. Join is synchronous in the
// driver, so Connect returns with the outcome already known and Status
// reports it on the first poll.
type picoRadio struct {
	dev    *cyw43439.Device
	devcfg cyw43439.Config
	stack  *netstack.Stack
	clk    dhtnode.Clock
	logger *slog.Logger
	status wifi.LinkStatus
	// ready gates the packet pump while the chip is down.
	ready atomic.Bool
	// joined is set by a successful Join and cleared by Disconnect.
	joined bool
}

func newPicoRadio(dev *cyw43439.Device, devcfg cyw43439.Config, stack *netstack.Stack, clk dhtnode.Clock, logger *slog.Logger) *picoRadio {
	return &picoRadio{dev: dev, devcfg: devcfg, stack: stack, clk: clk, logger: logger}
}

// Init powers up the radio and starts the packet pump.
func (r *picoRadio) Init() error {
	start := time.Now()
	if err := r.powerUp(); err != nil {
		return err
	}
	elapsed := time.Since(start)
	r.stack.MixSeed(uint32(elapsed) ^ uint32(elapsed>>32))
	go r.pump()
	return nil
}

// powerUp loads the chip firmware and binds the stack to the radio.
func (r *picoRadio) powerUp() error {
	err := r.dev.Init(r.devcfg)
	if err != nil {
		r.status = wifi.StatusNoHardware
		return err
	}
	mac, err := r.dev.HardwareAddr6()
	if err != nil {
		r.status = wifi.StatusNoHardware
		return err
	}
	r.dev.RecvEthHandle(func(pkt []byte) error {
		return r.stack.Demux(pkt, 0)
	})
	err = r.stack.SetHardwareAddress(mac)
	if err != nil {
		return err
	}
	r.ready.Store(true)
	return nil
}

func (r *picoRadio) pump() {
	for {
		if !r.ready.Load() {
			time.Sleep(pumpIdle)
			continue
		}
		send, recv, _ := r.recvAndSend()
		if send == 0 && recv == 0 {
			time.Sleep(pumpIdle)
		}
	}
}

func (r *picoRadio) recvAndSend() (send, recv int, err error) {
	gotRecv, errrecv := r.dev.PollOne()
	if gotRecv {
		recv = r.stack.LastReceived()
	}
	if errrecv != nil {
		r.logerr("radio:poll", slog.String("err", errrecv.Error()))
	}
	buf := r.stack.SendBuffer()
	send, err = r.stack.Encapsulate(buf, 0)
	if err != nil {
		r.logerr("radio:encapsulate", slog.Int("plen", send), slog.String("err", err.Error()))
		return send, recv, err
	}
	if send == 0 {
		return send, recv, errrecv
	}
	err = r.dev.SendEth(buf[:send])
	if err != nil {
		r.logerr("radio:send", slog.Int("plen", send), slog.String("err", err.Error()))
	}
	return send, recv, err
}

// Disconnect drops the address and, after a successful join, the
// association. The driver has no leave request, so the chip is power cycled
// and brought up again.
func (r *picoRadio) Disconnect() error {
	r.status = wifi.StatusDisconnected
	err := r.stack.SetIPAddr(netip.IPv4Unspecified())
	if !r.joined {
		return err
	}
	r.joined = false
	r.ready.Store(false)
	r.dev.Reset()
	return errors.Join(err, r.powerUp())
}

// StationMode is implied by Join on this driver.
func (r *picoRadio) StationMode() error { return nil }

func (r *picoRadio) Connect(ssid, secret string) error {
	if !r.ready.Load() {
		r.status = wifi.StatusNoHardware
		return errors.New("radio: not initialized")
	}
	r.status = wifi.StatusConnecting
	err := r.dev.Join(ssid, cyw43439.JoinOptions{Passphrase: secret})
	if err != nil {
		// The driver reports an access point refusal as a failed SET_SSID.
		if strings.Contains(err.Error(), "SET_SSID") {
			r.status = wifi.StatusRejected
		} else {
			r.status = wifi.StatusDisconnected
		}
		return err
	}
	r.joined = true
	_, err = r.stack.DoDHCPv4(r.clk, [4]byte{}, dhcpPoll, dhcpTimeout)
	if err != nil {
		r.status = wifi.StatusDisconnected
		return err
	}
	r.status = wifi.StatusConnected
	return nil
}

func (r *picoRadio) Status() wifi.LinkStatus {
	if r.status == wifi.StatusConnected && !r.dev.IsLinkUp() {
		r.status = wifi.StatusDisconnected
	}
	return r.status
}

func (r *picoRadio) Addr() netip.Addr { return r.stack.Addr() }

func (r *picoRadio) HardwareAddr() (net.HardwareAddr, error) {
	mac, err := r.dev.HardwareAddr6()
	if err != nil {
		return nil, err
	}
	return net.HardwareAddr(mac[:]), nil
}

func (r *picoRadio) Scan() ([]wifi.Network, error) { return nil, errScanUnsupported }

func (r *picoRadio) logerr(msg string, attrs ...slog.Attr) {
	if r.logger != nil {
		r.logger.LogAttrs(context.Background(), slog.LevelError, msg, attrs...)
	}
}
