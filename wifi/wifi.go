// Package wifi implements the connectivity state machine of the node:
// connect with a bounded poll budget, and reconnect from the run loop health
// check when the link drops.
package wifi

import (
	"context"
	"errors"
	"log/slog"
	"net/netip"
	"strconv"
	"time"

	"github.com/teamrocket/dhtnode"
	"github.com/teamrocket/dhtnode/credentials"
)

// WaitSeconds is the nominal connect window in seconds.
const WaitSeconds = 20

// State of the connection as seen by the Manager.
type State uint8

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	}
	return "state(" + strconv.Itoa(int(s)) + ")"
}

var (
	errRejected     = errors.New("wifi: credentials rejected")
	errTimeout      = errors.New("wifi: connect timed out")
	errNoCredential = errors.New("wifi: health check before first connect")
)

// Indicator shows liveness while connecting. *signal.Signal satisfies it.
type Indicator interface {
	Flip()
	Off()
}

// Config configures a Manager.
type Config struct {
	// PollInterval between link status polls.
	PollInterval time.Duration
	// Attempts is the poll budget of a single connect cycle.
	Attempts int
	// OnTransition is called on every state change. May be nil.
	OnTransition func(from, to State)
	Logger       *slog.Logger
}

// DefaultConfig polls every 250ms for 4*WaitSeconds attempts, a 20 second window.
func DefaultConfig() Config {
	return Config{
		PollInterval: 250 * time.Millisecond,
		Attempts:     4 * WaitSeconds,
	}
}

// SlowConfig polls every 500ms for 2*WaitSeconds attempts. It spans the same
// window with half the status queries.
func SlowConfig() Config {
	return Config{
		PollInterval: 500 * time.Millisecond,
		Attempts:     2 * WaitSeconds,
	}
}

// Manager owns the connection state. Not safe for concurrent use.
type Manager struct {
	radio    Radio
	led      Indicator
	clk      dhtnode.Clock
	interval time.Duration
	attempts int
	logger   *slog.Logger

	onTransition func(from, to State)
	onReconnect  func()

	creds      credentials.Credentials
	haveCreds  bool
	state      State
	addr       netip.Addr
	polls      int // polls of the last connect cycle
	reconnects int
}

// NewManager returns a Manager in StateDisconnected. led may be nil.
func NewManager(radio Radio, led Indicator, clk dhtnode.Clock, cfg Config) *Manager {
	def := DefaultConfig()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = def.Attempts
	}
	return &Manager{
		radio:    radio,
		led:      led,
		clk:      clk,
		interval: cfg.PollInterval,
		attempts: cfg.Attempts,
		logger:   cfg.Logger,
		state:    StateDisconnected,

		onTransition: cfg.OnTransition,
	}
}

func (m *Manager) State() State { return m.state }

// Addr returns the address assigned on the last successful connect.
func (m *Manager) Addr() netip.Addr { return m.addr }

// Polls returns the number of status polls made by the last connect cycle.
func (m *Manager) Polls() int { return m.polls }

// Reconnects returns how many times the health check re-entered Connecting.
func (m *Manager) Reconnects() int { return m.reconnects }

// OnReconnect sets fn to run each time the health check starts a reconnect,
// before the connect cycle begins. The boot sequencer uses it to replay the
// connect phase pattern.
func (m *Manager) OnReconnect(fn func()) { m.onReconnect = fn }

// Connect runs one connect cycle with c. It returns nil once connected.
// A rejection or an exhausted poll budget leaves the Manager in StateFailed
// and returns a *dhtnode.FaultError; neither is retried here.
func (m *Manager) Connect(c credentials.Credentials) error {
	m.creds = c
	m.haveCreds = true
	m.setState(StateConnecting)
	m.addr = netip.Addr{}
	m.polls = 0
	m.info("wifi:connect", slog.String("ssid", c.SSID))
	if err := m.radio.Disconnect(); err != nil {
		m.debug("wifi:disconnect", slog.String("err", err.Error()))
	}
	if err := m.radio.StationMode(); err != nil {
		m.logerr("wifi:station-mode", slog.String("err", err.Error()))
	}
	if err := m.radio.Connect(c.SSID, c.Password); err != nil {
		// The link status decides the outcome; the driver may still associate.
		m.logerr("wifi:connect-request", slog.String("err", err.Error()))
	}
	for i := 0; i < m.attempts; i++ {
		status := m.radio.Status()
		m.polls++
		m.debug("wifi:poll", slog.Int("attempt", i+1), slog.String("status", status.String()))
		switch status {
		case StatusRejected:
			m.setState(StateFailed)
			m.logerr("wifi:rejected", slog.String("ssid", c.SSID))
			return &dhtnode.FaultError{Fault: dhtnode.FaultConnectRejected, Err: errRejected}
		case StatusConnected:
			m.addr = m.radio.Addr()
			m.setState(StateConnected)
			if m.led != nil {
				m.led.Off()
			}
			m.info("wifi:connected", slog.String("addr", m.addr.String()), slog.Int("polls", m.polls))
			return nil
		}
		m.clk.Sleep(m.interval)
		if m.led != nil {
			m.led.Flip()
		}
	}
	m.setState(StateFailed)
	m.logerr("wifi:timeout", slog.Int("polls", m.polls))
	return &dhtnode.FaultError{Fault: dhtnode.FaultConnectTimeout, Err: errTimeout}
}

// Check is the run loop health check. When the radio reports anything but
// connected it re-enters Connecting with the same credentials.
func (m *Manager) Check() error {
	status := m.radio.Status()
	if status == StatusConnected {
		if m.state != StateConnected {
			m.setState(StateConnected)
		}
		return nil
	}
	if !m.haveCreds {
		return errNoCredential
	}
	m.logerr("wifi:link-lost", slog.String("status", status.String()))
	m.reconnects++
	if m.onReconnect != nil {
		m.onReconnect()
	}
	return m.Connect(m.creds)
}

// Scan lists visible networks and logs each of them.
func (m *Manager) Scan() ([]Network, error) {
	nets, err := m.radio.Scan()
	if err != nil {
		m.logerr("wifi:scan", slog.String("err", err.Error()))
		return nil, err
	}
	m.info("wifi:scan", slog.Int("found", len(nets)))
	for _, n := range nets {
		m.info("wifi:network",
			slog.String("ssid", n.SSID),
			slog.Int("rssi", n.RSSI),
			slog.String("security", n.Security.String()),
		)
	}
	return nets, nil
}

func (m *Manager) setState(s State) {
	from := m.state
	m.state = s
	if m.onTransition != nil {
		m.onTransition(from, s)
	}
}

func (m *Manager) info(msg string, attrs ...slog.Attr) {
	m.logattrs(slog.LevelInfo, msg, attrs...)
}

func (m *Manager) debug(msg string, attrs ...slog.Attr) {
	m.logattrs(slog.LevelDebug, msg, attrs...)
}

func (m *Manager) logerr(msg string, attrs ...slog.Attr) {
	m.logattrs(slog.LevelError, msg, attrs...)
}

func (m *Manager) logattrs(level slog.Level, msg string, attrs ...slog.Attr) {
	if m.logger != nil {
		m.logger.LogAttrs(context.Background(), level, msg, attrs...)
	}
}
