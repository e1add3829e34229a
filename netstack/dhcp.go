package netstack

import (
	"errors"
	"net/netip"
	"time"

	"github.com/soypat/lneto/dhcpv4"

	"github.com/teamrocket/dhtnode"
)

var (
	errDHCPIncomplete = errors.New("netstack: DHCP not completed")
	errDHCPNack       = errors.New("netstack: DHCP NACK")
	errDHCPTimeout    = errors.New("netstack: DHCP timed out")
	errDHCPNoAddr     = errors.New("netstack: DHCP lease without address")
)

// Lease is the address configuration held by the DHCP client.
type Lease struct {
	Addr   netip.Addr
	Router netip.Addr
	Subnet netip.Prefix
	DNS    []netip.Addr
	// Renewal is T1, when the client should renew with its server.
	// Zero when the server did not send it.
	Renewal  time.Duration
	Rebind   time.Duration
	Duration time.Duration
}

// RenewAfter returns how long after acquisition the lease is due for
// renewal: T1 when known, half the lease otherwise.
func (l Lease) RenewAfter() time.Duration {
	if l.Renewal > 0 {
		return l.Renewal
	}
	return l.Duration / 2
}

// StartDHCPv4Request begins a DHCP exchange advertising the stack hostname.
// request may be zero. Calling it on a bound client starts a renewal.
func (s *Stack) StartDHCPv4Request(request [4]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.dhcp.BeginRequest(s.rand.next(), dhcpv4.RequestConfig{
		RequestedAddr:      request,
		ClientHardwareAddr: s.link.HardwareAddr6(),
		Hostname:           s.hostname,
	})
	if err != nil || s.dhcpOpen {
		return err
	}
	s.dhcpPort.SetStackNode(&s.dhcp, nil, dhcpv4.DefaultServerPort)
	if err = s.udps.Register(&s.dhcpPort); err != nil {
		return err
	}
	s.dhcpOpen = true
	return nil
}

// dhcpProgress reports whether the client is bound. requested latches once
// the exchange has left the init state; falling back to init after that is a NACK.
func (s *Stack) dhcpProgress(requested *bool) (bound bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := s.dhcp.State()
	*requested = *requested || state > dhcpv4.StateInit
	if *requested && state == dhcpv4.StateInit {
		return false, errDHCPNack
	}
	return state == dhcpv4.StateBound, nil
}

// DoDHCPv4 runs a DHCP exchange to completion, polling every poll until
// timeout. The packet pump must be running. The assigned address is applied
// to the stack.
func (s *Stack) DoDHCPv4(clk dhtnode.Clock, request [4]byte, poll, timeout time.Duration) (Lease, error) {
	if err := s.StartDHCPv4Request(request); err != nil {
		return Lease{}, err
	}
	requested := false
	deadline := clk.Now().Add(timeout)
	for clk.Now().Before(deadline) {
		bound, err := s.dhcpProgress(&requested)
		if err != nil {
			return Lease{}, err
		}
		if bound {
			lease, err := s.Lease()
			if err != nil {
				return Lease{}, err
			}
			return lease, s.SetIPAddr(lease.Addr)
		}
		clk.Sleep(poll)
	}
	return Lease{}, errDHCPTimeout
}

// Lease returns the current lease once the client holds an address. The DNS
// slice is reused by the next call.
func (s *Stack) Lease() (Lease, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dhcp.State().HasIP() {
		return Lease{}, errDHCPIncomplete
	}
	assigned, ok := s.dhcp.AssignedAddr()
	if !ok {
		return Lease{}, errDHCPNoAddr
	}
	lease := Lease{
		Addr:     netip.AddrFrom4(assigned),
		Renewal:  seconds(s.dhcp.RenewalSeconds()),
		Rebind:   seconds(s.dhcp.RebindingSeconds()),
		Duration: seconds(s.dhcp.IPLeaseSeconds()),
	}
	if router, ok := s.dhcp.RouterAddr(); ok {
		lease.Router = netip.AddrFrom4(router)
		lease.Subnet = netip.PrefixFrom(lease.Router, int(s.dhcp.SubnetCIDRBits())).Masked()
	}
	s.dns = s.dhcp.AppendDNSServers(s.dns[:0])
	lease.DNS = s.dns
	return lease, nil
}

func seconds(n uint32) time.Duration { return time.Duration(n) * time.Second }
