package boot

import (
	"log/slog"
	"time"

	"github.com/teamrocket/dhtnode"
	"github.com/teamrocket/dhtnode/sensor"
	"github.com/teamrocket/dhtnode/signal"
	"github.com/teamrocket/dhtnode/wifi"
)

// Node is a booted device. It owns the run loop.
type Node struct {
	sampler    *sensor.Sampler
	wifi       *wifi.Manager
	server     Server
	names      NameService
	sig        *signal.Signal
	clk        dhtnode.Clock
	delay      time.Duration
	policy     Policy
	logger     *slog.Logger
	iterations int
}

// Iterations returns the number of completed run loop steps.
func (n *Node) Iterations() int { return n.iterations }

// Step runs one iteration of the service loop: sample, health check, serve at
// most one client and update the name service. The LED is forced on between
// stages. Only a fatal fault from the health check is returned; serving
// errors are logged.
func (n *Node) Step() error {
	n.sampler.Update(n.clk.Now())
	n.sig.On()
	if err := n.wifi.Check(); err != nil {
		return err
	}
	n.sig.On()
	if err := n.server.HandleClient(); err != nil {
		logattrs(n.logger, slog.LevelWarn, "loop:http", slog.String("err", err.Error()))
	}
	n.sig.On()
	if n.names != nil {
		n.names.Update()
	}
	n.sig.On()
	n.iterations++
	return nil
}

// Run steps the loop until a fatal fault occurs, halts on it and returns it.
// On hardware the halt resets or blinks forever, so Run does not return.
func (n *Node) Run() error {
	for {
		err := n.Step()
		if err != nil {
			Halt(n.sig, n.policy, err, n.logger)
			return err
		}
		if n.delay > 0 {
			n.clk.Sleep(n.delay)
		}
	}
}
