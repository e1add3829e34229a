package netstack

import (
	"context"
	"log/slog"
	"time"

	"github.com/soypat/lneto/dns"

	"github.com/teamrocket/dhtnode"
)

// Names advertises the hostname through the DHCP hostname option and keeps
// the lease alive so the local resolver keeps the name.
type Names struct {
	stack   *Stack
	clk     dhtnode.Clock
	every   time.Duration // zero without a lease
	due     time.Time
	renewed int
}

func NewNames(stack *Stack, clk dhtnode.Clock) *Names {
	return &Names{stack: stack, clk: clk}
}

// Begin validates hostname as a DNS label and starts advertising it on the
// next DHCP exchange.
func (n *Names) Begin(hostname string) error {
	if _, err := dns.NewName(hostname); err != nil {
		return err
	}
	n.stack.SetHostname(hostname)
	if lease, err := n.stack.Lease(); err == nil {
		n.schedule(lease)
	}
	return nil
}

// schedule plans the next renewal from a freshly acquired lease.
func (n *Names) schedule(lease Lease) {
	n.every = lease.RenewAfter()
	n.due = n.clk.Now().Add(n.every)
}

// Update starts a lease renewal once T1 is reached. It never blocks; the
// renewal completes through the packet pump.
func (n *Names) Update() {
	if n.every <= 0 || n.clk.Now().Before(n.due) {
		return
	}
	addr := n.stack.Addr()
	if !addr.Is4() || addr.IsUnspecified() {
		return
	}
	if lease, err := n.stack.Lease(); err == nil && lease.RenewAfter() > 0 {
		n.every = lease.RenewAfter()
	}
	n.due = n.clk.Now().Add(n.every)
	err := n.stack.StartDHCPv4Request(addr.As4())
	if err != nil {
		n.stack.logerr("names:renew", slog.String("err", err.Error()))
		return
	}
	n.renewed++
	n.stack.loginfo("names:renew", slog.String("addr", addr.String()), slog.Duration("next", n.every))
}

// Renewals returns how many lease renewals were started.
func (n *Names) Renewals() int { return n.renewed }

// Due returns when the next renewal starts. It is zero without a lease.
func (n *Names) Due() time.Time { return n.due }

func (s *Stack) loginfo(msg string, attrs ...slog.Attr) {
	s.logattrs(slog.LevelInfo, msg, attrs...)
}

func (s *Stack) logerr(msg string, attrs ...slog.Attr) {
	s.logattrs(slog.LevelError, msg, attrs...)
}

func (s *Stack) logattrs(level slog.Level, msg string, attrs ...slog.Attr) {
	if s.logger != nil {
		s.logger.LogAttrs(context.Background(), level, msg, attrs...)
	}
}
