// Command dhtsim runs the node firmware on a host computer: the console is
// stdin, flash is a littlefs image in memory, the radio is scripted and the
// status server listens on a real TCP port.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"net/netip"
	"os"
	"time"

	"tinygo.org/x/tinyfs"
	"tinygo.org/x/tinyfs/littlefs"

	"github.com/teamrocket/dhtnode"
	"github.com/teamrocket/dhtnode/boot"
	"github.com/teamrocket/dhtnode/config"
	"github.com/teamrocket/dhtnode/credentials"
	"github.com/teamrocket/dhtnode/internal/simradio"
	"github.com/teamrocket/dhtnode/netstack"
	"github.com/teamrocket/dhtnode/sensor"
	"github.com/teamrocket/dhtnode/signal"
	"github.com/teamrocket/dhtnode/statusserver"
	"github.com/teamrocket/dhtnode/wifi"
)

func main() {
	var (
		flagConfig  = flag.String("config", "node.yaml", "YAML configuration file; defaults apply if missing")
		flagPort    = flag.Uint("port", 8080, "HTTP port, overrides the configuration")
		flagFast    = flag.Bool("fast", false, "skip startup countdown and shorten blink patterns")
		flagReject  = flag.Bool("reject", false, "make the simulated access point reject credentials")
		flagPolls   = flag.Int("polls", 3, "connecting polls before the simulated link comes up")
		flagNaN     = flag.Float64("nan", 0.1, "probability of a failed sensor read")
		flagRestart = flag.Int("restarts", 3, "simulated device restarts before exiting")
	)
	flag.Parse()
	cfg, err := config.Load(*flagConfig)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg.Server.Port = uint16(*flagPort)
	if cfg.Boot.LoopDelay == 0 {
		cfg.Boot.LoopDelay = 10 * time.Millisecond
	}
	if *flagFast {
		cfg.Boot.Flicker = 0
		cfg.Boot.Countdown = 0
		cfg.Signal.Preamble /= 10
		cfg.Signal.PhaseUnit /= 10
		cfg.Signal.PhaseTail /= 10
		cfg.Signal.Blink /= 10
		cfg.Signal.BurstPause /= 10
	}
	level, _ := cfg.Level()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	// Flash and console outlive restarts, like on hardware.
	dev := tinyfs.NewMemoryDevice(256, 4096, 64)
	lfs := littlefs.New(dev)
	lfs.Configure(&littlefs.Config{
		CacheSize:     256,
		LookaheadSize: 64,
		BlockCycles:   500,
	})
	console := newStdinConsole(os.Stdin)

	script := make([]wifi.LinkStatus, 0, *flagPolls+1)
	for i := 0; i < *flagPolls; i++ {
		script = append(script, wifi.StatusConnecting)
	}
	if *flagReject {
		script = append(script, wifi.StatusRejected)
	} else {
		script = append(script, wifi.StatusConnected)
	}
	radio := simradio.New(netip.MustParseAddr("127.0.0.1"), script...)
	radio.SetNetworks(
		wifi.Network{SSID: "simnet", RSSI: -42, Security: wifi.SecurityWPA2},
		wifi.Network{SSID: "guest", RSSI: -71, Security: wifi.SecurityOpen},
	)

	var listeners tcpListeners
	for restarts := 0; restarts <= *flagRestart; restarts++ {
		restarted := false
		err = runNode(cfg, logger, lfs, console, radio, listeners.listen, *flagNaN, func() { restarted = true })
		if !restarted {
			break
		}
		logger.Warn("sim:restart", slog.Int("restarts", restarts+1))
	}
	if err != nil {
		logger.Error("sim:exit", slog.String("err", err.Error()))
		os.Exit(1)
	}
}

func runNode(cfg *config.Config, logger *slog.Logger, fs tinyfs.Filesystem, console credentials.Console, radio *simradio.Radio, listen statusserver.ListenFunc, nan float64, reset func()) error {
	clk := dhtnode.SystemClock{}
	sig := signal.New(ledLogger(logger), clk, cfg.SignalConfig(reset, logger))
	store := credentials.NewStore(credentials.NewTinyFSVolume(fs), cfg.StoreConfig(logger))
	sampler := sensor.NewSampler(newSimDHT(nan), clk, cfg.SensorConfig(logger))
	manager := wifi.NewManager(radio, sig, clk, cfg.WiFiConfig(logger))
	server := statusserver.New(sampler, clk, cfg.ServerConfig(listen, logger))

	var stack netstack.Stack
	err := stack.Reset(netstack.Config{
		Hostname:        cfg.Hostname,
		RandSeed:        uint32(time.Now().UnixNano()) | 1,
		HardwareAddress: [6]byte{0x02, 0, 0, 0, 0, 1},
		MTU:             1500,
		Logger:          logger,
	})
	if err != nil {
		return err
	}

	seq := boot.NewSequencer(boot.Components{
		Signal:  sig,
		Console: console,
		Prompt:  os.Stdout,
		Store:   store,
		Sampler: sampler,
		Radio:   radio,
		WiFi:    manager,
		Names:   netstack.NewNames(&stack, clk),
		Server:  server,
	}, clk, cfg.BootConfig(logger))
	node, err := seq.Run()
	if err != nil {
		seq.Halt(err)
		return err
	}
	logger.Info("sim:ready", slog.String("url", fmt.Sprintf("http://localhost:%d/", cfg.Server.Port)))
	return node.Run()
}

func ledLogger(logger *slog.Logger) signal.Pin {
	return func(level bool) {
		logger.Debug("sim:led", slog.Bool("level", level))
	}
}
