package netstack

import (
	"io"
	"time"

	"github.com/soypat/lneto/tcp"
	"github.com/soypat/lneto/x/xnet"

	"github.com/teamrocket/dhtnode/statusserver"
)

// ListenConfig sizes the TCP connection pool behind a Listener.
type ListenConfig struct {
	MaxConns   int
	QueueSize  int
	BufferSize int
	// Timeout bounds established and closing connections.
	Timeout time.Duration
}

// DefaultListenConfig fits a few concurrent HTTP clients in RAM.
func DefaultListenConfig() ListenConfig {
	return ListenConfig{
		MaxConns:   3,
		QueueSize:  3,
		BufferSize: 2030, // MTU - ethhdr - iphdr - tcphdr
		Timeout:    3 * time.Second,
	}
}

// Listener accepts TCP connections without blocking.
type Listener struct {
	l    tcp.Listener
	pool interface{ CheckTimeouts() }
}

// Listen registers a TCP listener on port.
func (s *Stack) Listen(port uint16, cfg ListenConfig) (*Listener, error) {
	pool, err := xnet.NewTCPPool(xnet.TCPPoolConfig{
		PoolSize:           cfg.MaxConns,
		QueueSize:          cfg.QueueSize,
		BufferSize:         cfg.BufferSize,
		EstablishedTimeout: cfg.Timeout,
		ClosingTimeout:     cfg.Timeout,
	})
	if err != nil {
		return nil, err
	}
	ln := &Listener{pool: pool}
	err = ln.l.Reset(port, pool)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	err = s.tcps.Register(&ln.l)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return ln, nil
}

// ListenFunc adapts Listen to the status server.
func (s *Stack) ListenFunc(cfg ListenConfig) statusserver.ListenFunc {
	return func(port uint16) (statusserver.Acceptor, error) {
		return s.Listen(port, cfg)
	}
}

// Accept returns the next established connection, or nil when none is ready.
func (ln *Listener) Accept() (io.ReadWriteCloser, error) {
	ln.pool.CheckTimeouts()
	if ln.l.NumberOfReadyToAccept() == 0 {
		return nil, nil
	}
	conn, err := ln.l.TryAccept()
	if err != nil {
		return nil, err
	}
	return conn, nil
}
