//go:build tinygo && (rp2040 || rp2350)

// Command dhtnode is the Pico W firmware: a DHT11 reading served over HTTP,
// with WiFi credentials typed on the USB console or loaded from flash.
package main

import (
	_ "embed"
	"log/slog"
	"machine"
	"time"

	"github.com/soypat/cyw43439"
	"tinygo.org/x/tinyfs/littlefs"

	"github.com/teamrocket/dhtnode"
	"github.com/teamrocket/dhtnode/boot"
	"github.com/teamrocket/dhtnode/config"
	"github.com/teamrocket/dhtnode/credentials"
	"github.com/teamrocket/dhtnode/netstack"
	"github.com/teamrocket/dhtnode/sensor"
	"github.com/teamrocket/dhtnode/signal"
	"github.com/teamrocket/dhtnode/statusserver"
	"github.com/teamrocket/dhtnode/wifi"
)

//go:embed node.yaml
var nodeYAML []byte

func main() {
	time.Sleep(2 * time.Second) // Give time to connect to USB and monitor output.
	cfg, err := config.Parse(nodeYAML)
	if err != nil {
		panic("config: " + err.Error())
	}
	level, _ := cfg.Level()
	logger := slog.New(slog.NewTextHandler(machine.Serial, &slog.HandlerOptions{
		Level: level,
	}))
	clk := dhtnode.SystemClock{}

	dev := cyw43439.NewPicoWDevice()
	devcfg := cyw43439.DefaultWifiConfig()
	// devcfg.Logger = logger // Uncomment for radio driver internals.

	// The on-board LED is wired to the radio, so it only lights once the
	// radio is up. An external LED shows the early boot phases too.
	led := func(level bool) { dev.GPIOSet(0, level) }
	if cfg.Signal.Pin >= 0 {
		pin := machine.Pin(cfg.Signal.Pin)
		pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
		led = pin.Set
	}
	sig := signal.New(led, clk, cfg.SignalConfig(machine.CPUReset, logger))

	lfs := littlefs.New(machine.Flash)
	lfs.Configure(&littlefs.Config{
		CacheSize:     512,
		LookaheadSize: 512,
		BlockCycles:   100,
	})
	store := credentials.NewStore(credentials.NewTinyFSVolume(lfs), cfg.StoreConfig(logger))

	sampler := sensor.NewSampler(sensor.NewDHT11(machine.Pin(cfg.Sensor.Pin)), clk, cfg.SensorConfig(logger))

	var stack netstack.Stack
	err = stack.Reset(netstack.Config{
		Hostname:    cfg.Hostname,
		MaxTCPConns: netstack.DefaultListenConfig().MaxConns,
		RandSeed:    uint32(time.Now().UnixNano()) | 1,
		MTU:         cyw43439.MTU,
		Logger:      logger,
	})
	if err != nil {
		panic("netstack: " + err.Error())
	}
	radio := newPicoRadio(dev, devcfg, &stack, clk, logger)
	manager := wifi.NewManager(radio, sig, clk, cfg.WiFiConfig(logger))
	server := statusserver.New(sampler, clk, cfg.ServerConfig(stack.ListenFunc(netstack.DefaultListenConfig()), logger))

	seq := boot.NewSequencer(boot.Components{
		Signal:    sig,
		Console:   machine.Serial,
		Prompt:    machine.Serial,
		Store:     store,
		Sampler:   sampler,
		Radio:     radio,
		RadioInit: radio.Init,
		WiFi:      manager,
		Names:     netstack.NewNames(&stack, clk),
		Server:    server,
	}, clk, cfg.BootConfig(logger))

	node, err := seq.Run()
	if err != nil {
		seq.Halt(err)
		return
	}
	node.Run()
}
