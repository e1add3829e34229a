// Package statusserver serves the latest sensor reading as a one line
// text/plain HTTP response. Every path gets the same answer.
package statusserver

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"

	"github.com/soypat/lneto/http/httpraw"

	"github.com/teamrocket/dhtnode"
	"github.com/teamrocket/dhtnode/sensor"
)

// DefaultPort is the HTTP port of the node.
const DefaultPort = 80

var errNotStarted = errors.New("statusserver: not started")

// Source provides the reading to report. *sensor.Sampler satisfies it.
type Source interface {
	Reading() sensor.Reading
}

// Acceptor hands out pending connections. Accept must not block: it returns
// a nil connection and nil error when nobody is waiting.
type Acceptor interface {
	Accept() (io.ReadWriteCloser, error)
}

// ListenFunc binds the transport on port.
type ListenFunc func(port uint16) (Acceptor, error)

// Config configures a Server.
type Config struct {
	Port   uint16
	Listen ListenFunc
	// BufferSize sizes the request and response buffers. Requests longer
	// than BufferSize are truncated before parsing.
	BufferSize int
	Logger     *slog.Logger
}

// Server is a cooperative HTTP responder driven from the run loop.
type Server struct {
	src    Source
	clk    dhtnode.Clock
	port   uint16
	listen ListenFunc
	logger *slog.Logger
	acc    Acceptor

	req    httpraw.Header
	rx     []byte
	tx     []byte
	body   []byte
	served int
}

// New returns a Server reporting readings from src. Call Start before HandleClient.
func New(src Source, clk dhtnode.Clock, cfg Config) *Server {
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1024
	}
	return &Server{
		src:    src,
		clk:    clk,
		port:   cfg.Port,
		listen: cfg.Listen,
		logger: cfg.Logger,
		rx:     make([]byte, cfg.BufferSize),
		tx:     make([]byte, 0, cfg.BufferSize),
		body:   make([]byte, 0, 64),
	}
}

// Port returns the configured listening port.
func (s *Server) Port() uint16 { return s.port }

// Served returns the number of responses written.
func (s *Server) Served() int { return s.served }

// Start binds the transport. A bind failure is fatal at boot.
func (s *Server) Start() error {
	if s.listen == nil {
		return errors.New("statusserver: no listen function")
	}
	acc, err := s.listen(s.port)
	if err != nil {
		return err
	}
	s.acc = acc
	s.info("http:listen", slog.Int("port", int(s.port)))
	return nil
}

// HandleClient serves at most one pending connection and returns without
// waiting when none is pending.
func (s *Server) HandleClient() error {
	if s.acc == nil {
		return errNotStarted
	}
	conn, err := s.acc.Accept()
	if err != nil {
		return err
	} else if conn == nil {
		return nil
	}
	defer conn.Close()
	n, err := conn.Read(s.rx)
	if n == 0 && err != nil {
		return err
	}
	s.tx = s.Respond(s.tx[:0], s.rx[:n])
	_, err = conn.Write(s.tx)
	if err != nil {
		return err
	}
	s.served++
	return nil
}

// Respond appends the full HTTP response to request to dst. The request is
// parsed for logging only; malformed requests still get the reading.
func (s *Server) Respond(dst, request []byte) []byte {
	s.req.Reset(request[:0])
	s.req.ReadFromBytes(request)
	needMore, err := s.req.TryParse(false)
	if err != nil && !needMore {
		s.debug("http:parse", slog.String("err", err.Error()))
	} else {
		s.debug("http:request", slog.String("uri", string(s.req.RequestURI())))
	}

	r := s.src.Reading()
	s.body = AppendBody(s.body[:0], r, r.Age(s.clk.Now()))

	var resp httpraw.Header
	resp.SetProtocol("HTTP/1.1")
	resp.SetStatus("200", "OK")
	resp.Set("Content-Type", "text/plain")
	resp.Set("Content-Length", strconv.Itoa(len(s.body)))
	resp.Set("Connection", "close")
	out, err := resp.AppendResponse(dst)
	if err != nil {
		s.logerr("http:response", slog.String("err", err.Error()))
		return dst
	}
	return append(out, s.body...)
}

func (s *Server) info(msg string, attrs ...slog.Attr) {
	s.logattrs(slog.LevelInfo, msg, attrs...)
}

func (s *Server) debug(msg string, attrs ...slog.Attr) {
	s.logattrs(slog.LevelDebug, msg, attrs...)
}

func (s *Server) logerr(msg string, attrs ...slog.Attr) {
	s.logattrs(slog.LevelError, msg, attrs...)
}

func (s *Server) logattrs(level slog.Level, msg string, attrs ...slog.Attr) {
	if s.logger != nil {
		s.logger.LogAttrs(context.Background(), level, msg, attrs...)
	}
}
