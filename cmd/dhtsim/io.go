package main

import (
	"bufio"
	"errors"
	"io"
	"math/rand"
	"net"
	"strconv"
	"sync"

	"github.com/chewxy/math32"

	"github.com/teamrocket/dhtnode/statusserver"
)

var errNoInput = errors.New("no console input")

// stdinConsole buffers bytes read from r by a background goroutine.
type stdinConsole struct {
	ch chan byte
}

func newStdinConsole(r io.Reader) *stdinConsole {
	c := &stdinConsole{ch: make(chan byte, 256)}
	go func() {
		br := bufio.NewReader(r)
		for {
			b, err := br.ReadByte()
			if err != nil {
				return
			}
			c.ch <- b
		}
	}()
	return c
}

func (c *stdinConsole) Buffered() int { return len(c.ch) }

func (c *stdinConsole) ReadByte() (byte, error) {
	select {
	case b := <-c.ch:
		return b, nil
	default:
		return 0, errNoInput
	}
}

// simDHT random walks around room conditions and fails now and then.
type simDHT struct {
	rng  *rand.Rand
	nan  float64
	temp float32
	hum  float32
}

func newSimDHT(nan float64) *simDHT {
	return &simDHT{rng: rand.New(rand.NewSource(1)), nan: nan, temp: 22.5, hum: 48}
}

func (d *simDHT) Sample() (float32, float32) {
	d.temp += float32(d.rng.NormFloat64() * 0.2)
	d.hum += float32(d.rng.NormFloat64() * 0.5)
	t, h := d.temp, d.hum
	if d.rng.Float64() < d.nan {
		t = math32.NaN()
	}
	if d.rng.Float64() < d.nan {
		h = math32.NaN()
	}
	return t, h
}

// tcpAcceptor hands out connections accepted by a background goroutine.
type tcpAcceptor struct {
	addr  net.Addr
	conns chan net.Conn
	mu    sync.Mutex
	err   error
}

// tcpListeners keeps sockets bound across simulated restarts, since a real
// device would get its port back after a reset.
type tcpListeners struct {
	bound map[uint16]*tcpAcceptor
}

func (l *tcpListeners) listen(port uint16) (statusserver.Acceptor, error) {
	if a, ok := l.bound[port]; ok {
		return a, nil
	}
	a, err := listenTCP(port)
	if err != nil {
		return nil, err
	}
	if l.bound == nil {
		l.bound = make(map[uint16]*tcpAcceptor)
	}
	l.bound[port] = a
	return a, nil
}

func listenTCP(port uint16) (*tcpAcceptor, error) {
	ln, err := net.Listen("tcp", ":"+strconv.Itoa(int(port)))
	if err != nil {
		return nil, err
	}
	a := &tcpAcceptor{addr: ln.Addr(), conns: make(chan net.Conn, 4)}
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				a.mu.Lock()
				a.err = err
				a.mu.Unlock()
				return
			}
			a.conns <- conn
		}
	}()
	return a, nil
}

func (a *tcpAcceptor) Accept() (io.ReadWriteCloser, error) {
	select {
	case conn := <-a.conns:
		return conn, nil
	default:
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return nil, a.err
}
