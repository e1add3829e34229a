// Package boot brings the node up in a fixed phase order and then runs the
// cooperative service loop. Every wait in here goes through a dhtnode.Clock.
package boot

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/teamrocket/dhtnode"
	"github.com/teamrocket/dhtnode/credentials"
	"github.com/teamrocket/dhtnode/sensor"
	"github.com/teamrocket/dhtnode/signal"
	"github.com/teamrocket/dhtnode/wifi"
)

// NameService advertises the hostname on the local network.
type NameService interface {
	Begin(hostname string) error
	// Update services pending queries. Called once per loop iteration.
	Update()
}

// Server is the transport the status endpoint runs on.
// *statusserver.Server satisfies it.
type Server interface {
	Start() error
	HandleClient() error
}

// Config configures the Sequencer.
type Config struct {
	Hostname string
	// Flicker is the number of LED flips at power on, FlickerPeriod apart.
	Flicker       int
	FlickerPeriod time.Duration
	// Countdown is the settle delay before the first phase. The LED flips
	// once per second while it runs.
	Countdown      time.Duration
	ConsoleTimeout time.Duration
	// ScanFailureFatal turns a failed scan into FaultScanFailed.
	ScanFailureFatal bool
	Policy           Policy
	// LoopDelay is slept at the end of every run loop iteration.
	LoopDelay time.Duration
	Logger    *slog.Logger
}

// DefaultConfig returns the stock boot timings.
func DefaultConfig() Config {
	return Config{
		Hostname:       "dhtnode",
		Flicker:        8,
		FlickerPeriod:  250 * time.Millisecond,
		Countdown:      10 * time.Second,
		ConsoleTimeout: time.Second,
		Policy:         DefaultPolicy(),
	}
}

// Components are the collaborators the Sequencer brings up. Names may be nil.
type Components struct {
	Signal  *signal.Signal
	Console credentials.Console
	// Prompt receives the credential prompt, usually the console itself.
	Prompt  io.Writer
	Store   *credentials.Store
	Sampler *sensor.Sampler
	Radio   wifi.Radio
	// RadioInit powers up the radio. Optional.
	RadioInit func() error
	WiFi      *wifi.Manager
	Names     NameService
	Server    Server
}

// Sequencer runs the boot phases once.
type Sequencer struct {
	c      Components
	clk    dhtnode.Clock
	cfg    Config
	logger *slog.Logger
	// OnPhase, if set, is called as each phase starts.
	OnPhase func(dhtnode.Phase)
}

func NewSequencer(c Components, clk dhtnode.Clock, cfg Config) *Sequencer {
	if cfg.Policy == nil {
		cfg.Policy = DefaultPolicy()
	}
	return &Sequencer{c: c, clk: clk, cfg: cfg, logger: cfg.Logger}
}

var (
	errRadioAbsent = errors.New("boot: radio reports no hardware")
	errNoServer    = errors.New("boot: no server configured")
)

// Run flickers the LED, counts down, then executes every phase in
// dhtnode.BootOrder. Each phase is announced on the LED before it starts.
// The first failing phase stops boot and its *dhtnode.FaultError is returned.
func (s *Sequencer) Run() (*Node, error) {
	s.startup()
	var creds credentials.Credentials
	for _, phase := range dhtnode.BootOrder {
		if s.OnPhase != nil {
			s.OnPhase(phase)
		}
		s.info("boot:phase", slog.String("phase", phase.String()), slog.Int("code", phase.Code()))
		s.c.Signal.Phase(phase.Code())
		var err error
		switch phase {
		case dhtnode.PhaseAuthAcquire:
			creds, err = s.acquire()
		case dhtnode.PhaseSensorInit:
			s.sensorInit()
		case dhtnode.PhaseRadioInit:
			err = s.radioInit()
		case dhtnode.PhaseRadioScan:
			err = s.scan()
		case dhtnode.PhaseRadioConnect:
			err = s.c.WiFi.Connect(creds)
		case dhtnode.PhaseNameServiceInit:
			s.nameService()
		case dhtnode.PhaseServerInit:
			err = s.serverInit()
		}
		if err != nil {
			var fe *dhtnode.FaultError
			if errors.As(err, &fe) && fe.Phase == 0 {
				fe.Phase = phase
			}
			return nil, err
		}
	}
	s.c.Signal.On()
	s.info("boot:done", slog.String("addr", s.c.WiFi.Addr().String()))
	s.c.WiFi.OnReconnect(func() {
		s.info("loop:reconnect", slog.Int("code", dhtnode.PhaseRadioConnect.Code()))
		s.c.Signal.Phase(dhtnode.PhaseRadioConnect.Code())
	})
	return &Node{
		sampler: s.c.Sampler,
		wifi:    s.c.WiFi,
		server:  s.c.Server,
		names:   s.c.Names,
		sig:     s.c.Signal,
		clk:     s.clk,
		delay:   s.cfg.LoopDelay,
		policy:  s.cfg.Policy,
		logger:  s.logger,
	}, nil
}

// Halt routes a boot error to the LED with the configured policy.
func (s *Sequencer) Halt(err error) {
	Halt(s.c.Signal, s.cfg.Policy, err, s.logger)
}

func (s *Sequencer) startup() {
	sig := s.c.Signal
	for i := 0; i < s.cfg.Flicker; i++ {
		sig.Flip()
		s.clk.Sleep(s.cfg.FlickerPeriod)
	}
	secs := int(s.cfg.Countdown / time.Second)
	for i := secs; i > 0; i-- {
		s.info("boot:countdown", slog.Int("remaining", i))
		sig.Flip()
		s.clk.Sleep(time.Second)
	}
	sig.Off()
	s.info("boot:hello", slog.String("whoami", s.cfg.Hostname))
}

func (s *Sequencer) acquire() (credentials.Credentials, error) {
	c, src, err := credentials.Acquire(s.c.Console, s.c.Store, s.clk, credentials.AcquireConfig{
		ConsoleTimeout: s.cfg.ConsoleTimeout,
		PromptTo:       s.c.Prompt,
		Logger:         s.logger,
	})
	if err != nil {
		return c, &dhtnode.FaultError{Fault: dhtnode.FaultNoCredentials, Err: err}
	}
	s.info("boot:credentials", slog.String("source", src.String()), slog.String("ssid", c.SSID))
	return c, nil
}

// sensorInit never fails boot. A sensor that does not answer shows up as
// unknown readings.
func (s *Sequencer) sensorInit() {
	if err := s.c.Sampler.Init(); err != nil {
		s.logerr("boot:sensor-init", slog.String("err", err.Error()))
	}
}

func (s *Sequencer) radioInit() error {
	if s.c.RadioInit != nil {
		if err := s.c.RadioInit(); err != nil {
			return &dhtnode.FaultError{Fault: dhtnode.FaultNoRadioHardware, Err: err}
		}
	}
	mac, err := s.c.Radio.HardwareAddr()
	if err != nil {
		return &dhtnode.FaultError{Fault: dhtnode.FaultNoRadioHardware, Err: err}
	}
	if s.c.Radio.Status() == wifi.StatusNoHardware {
		return &dhtnode.FaultError{Fault: dhtnode.FaultNoRadioHardware, Err: errRadioAbsent}
	}
	s.info("boot:mac", slog.String("mac", mac.String()))
	return nil
}

func (s *Sequencer) scan() error {
	_, err := s.c.WiFi.Scan()
	if err == nil {
		return nil
	}
	if s.cfg.ScanFailureFatal {
		return &dhtnode.FaultError{Fault: dhtnode.FaultScanFailed, Err: err}
	}
	s.logerr("boot:scan-ignored", slog.String("err", err.Error()))
	return nil
}

func (s *Sequencer) nameService() {
	if s.c.Names == nil {
		return
	}
	if err := s.c.Names.Begin(s.cfg.Hostname); err != nil {
		s.logerr("boot:mdns", slog.String("err", err.Error()))
		s.c.Names = nil
		return
	}
	s.info("boot:mdns", slog.String("hostname", s.cfg.Hostname+".local"))
}

func (s *Sequencer) serverInit() error {
	if s.c.Server == nil {
		return &dhtnode.FaultError{Fault: dhtnode.FaultServerBind, Err: errNoServer}
	}
	if err := s.c.Server.Start(); err != nil {
		return &dhtnode.FaultError{Fault: dhtnode.FaultServerBind, Err: err}
	}
	return nil
}

func (s *Sequencer) info(msg string, attrs ...slog.Attr) {
	logattrs(s.logger, slog.LevelInfo, msg, attrs...)
}

func (s *Sequencer) logerr(msg string, attrs ...slog.Attr) {
	logattrs(s.logger, slog.LevelError, msg, attrs...)
}

func logattrs(logger *slog.Logger, level slog.Level, msg string, attrs ...slog.Attr) {
	if logger != nil {
		logger.LogAttrs(context.Background(), level, msg, attrs...)
	}
}
