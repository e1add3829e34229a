// Package netstack wires the lneto TCP/IP stack for the node: Ethernet, ARP,
// IPv4, a DHCP client, and a TCP listener for the status server. It is
// driven by whatever link carries Ethernet frames (the CYW43439 radio on
// hardware).
package netstack

import (
	"errors"
	"log/slog"
	"net/netip"
	"sync"

	"github.com/soypat/lneto/arp"
	"github.com/soypat/lneto/dhcpv4"
	"github.com/soypat/lneto/ethernet"
	"github.com/soypat/lneto/internet"
)

// Stack is safe for concurrent use: the packet pump and the run loop both
// call into it.
type Stack struct {
	mu       sync.Mutex
	logger   *slog.Logger
	hostname string
	rand     xorshift32

	link internet.StackEthernet
	ip   internet.StackIP
	arp  arp.Handler
	udps internet.StackPorts
	tcps internet.StackPorts

	dhcp     dhcpv4.Client
	dhcpPort internet.StackUDPPort
	// dhcpOpen is set once dhcpPort is registered; renewals reuse it.
	dhcpOpen bool
	dns      []netip.Addr

	lastrecv int
	sendbuf  []byte
}

// Config configures a Stack.
type Config struct {
	// StaticAddress skips DHCP when valid.
	StaticAddress   netip.Addr
	Hostname        string
	MaxTCPConns     int
	RandSeed        uint32
	HardwareAddress [6]byte
	MTU             uint16
	Logger          *slog.Logger
}

var (
	errZeroSeed      = errors.New("netstack: zero random seed")
	errIPv6          = errors.New("netstack: IPv6 unsupported")
	errInvalidIPAddr = errors.New("netstack: invalid IP address")
	errNoHostname    = errors.New("netstack: empty hostname")
)

// addr returns the address the IP layer starts with.
func (cfg *Config) addr() (netip.Addr, error) {
	switch {
	case cfg.RandSeed == 0:
		return netip.Addr{}, errZeroSeed
	case cfg.Hostname == "":
		return netip.Addr{}, errNoHostname
	case !cfg.StaticAddress.IsValid():
		return netip.IPv4Unspecified(), nil
	case !cfg.StaticAddress.Is4():
		return netip.Addr{}, errIPv6
	}
	return cfg.StaticAddress, nil
}

// Reset configures every layer and drops any lease. TCP is only enabled
// when MaxTCPConns > 0.
func (s *Stack) Reset(cfg Config) error {
	addr, err := cfg.addr()
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hostname = cfg.Hostname
	s.logger = cfg.Logger
	s.rand = xorshift32(cfg.RandSeed)
	s.dhcpOpen = false
	s.dns = s.dns[:0]

	// ARP and IP hang off Ethernet; UDP and TCP ports hang off IP.
	if err = s.link.Reset6(cfg.HardwareAddress, ethernet.BroadcastAddr(), int(cfg.MTU), 2); err != nil {
		return err
	}
	if err = s.ip.Reset(addr, 2); err != nil {
		return err
	}
	if err = s.resetARP(); err != nil {
		return err
	}
	if err = s.udps.ResetUDP(1); err != nil { // DHCP only.
		return err
	}
	register := []func() error{
		func() error { return s.link.Register(&s.arp) },
		func() error { return s.link.Register(&s.ip) },
		func() error { return s.ip.Register(&s.udps) },
	}
	if cfg.MaxTCPConns > 0 {
		if err = s.tcps.ResetTCP(cfg.MaxTCPConns); err != nil {
			return err
		}
		register = append(register, func() error { return s.ip.Register(&s.tcps) })
	}
	for _, fn := range register {
		if err = fn(); err != nil {
			return err
		}
	}
	return nil
}

// resetARP rebinds the ARP handler to the current hardware and IP address.
// Callers hold s.mu.
func (s *Stack) resetARP() error {
	addr := s.ip.Addr()
	if !addr.Is4() {
		return errInvalidIPAddr
	}
	hw := s.link.HardwareAddr6()
	return s.arp.Reset(arp.HandlerConfig{
		HardwareAddr: hw[:],
		ProtocolAddr: addr.AsSlice(),
		MaxQueries:   3,
		MaxPending:   3,
		HardwareType: 1, // Ethernet.
		ProtocolType: ethernet.TypeIPv4,
	})
}

func (s *Stack) Hostname() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hostname
}

// SetHostname changes the name sent on the next DHCP exchange.
func (s *Stack) SetHostname(name string) {
	s.mu.Lock()
	s.hostname = name
	s.mu.Unlock()
}

// Demux hands a received frame to the stack.
func (s *Stack) Demux(frame []byte, etherOff int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastrecv = len(frame)
	return s.link.Demux(frame, etherOff)
}

// Encapsulate writes the next outgoing frame, if any, and returns its length.
func (s *Stack) Encapsulate(frame []byte, etherOff int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.link.Encapsulate(frame, etherOff)
}

// LastReceived returns the length of the last demuxed frame.
func (s *Stack) LastReceived() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastrecv
}

// SendBuffer returns a frame sized scratch buffer for Encapsulate.
func (s *Stack) SendBuffer() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendbuf == nil {
		s.sendbuf = make([]byte, s.link.MTU())
	}
	return s.sendbuf
}

// Prand32 returns the next pseudo random value.
func (s *Stack) Prand32() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rand.next()
}

// MixSeed folds v into the random state. Entropy gathered after Reset, such
// as radio bring-up latency, goes here.
func (s *Stack) MixSeed(v uint32) {
	s.mu.Lock()
	s.rand.mix(v)
	s.mu.Unlock()
}

func (s *Stack) Addr() netip.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ip.Addr()
}

func (s *Stack) SetIPAddr(addr netip.Addr) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ip.SetAddr(addr); err != nil {
		return err
	}
	return s.resetARP()
}

func (s *Stack) SetHardwareAddress(hw [6]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.link.SetHardwareAddr6(hw)
	return s.resetARP()
}

// xorshift32 never yields zero from a non-zero state.
type xorshift32 uint32

func (x *xorshift32) next() uint32 {
	v := uint32(*x)
	v ^= v << 13
	v ^= v >> 17
	v ^= v << 5
	*x = xorshift32(v)
	return v
}

func (x *xorshift32) mix(v uint32) {
	*x ^= xorshift32(v)
	if *x == 0 {
		*x = 1
	}
}
