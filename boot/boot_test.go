package boot_test

import (
	"errors"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamrocket/dhtnode"
	"github.com/teamrocket/dhtnode/boot"
	"github.com/teamrocket/dhtnode/credentials"
	"github.com/teamrocket/dhtnode/internal/clocktest"
	"github.com/teamrocket/dhtnode/internal/memvol"
	"github.com/teamrocket/dhtnode/internal/simradio"
	"github.com/teamrocket/dhtnode/sensor"
	"github.com/teamrocket/dhtnode/signal"
	"github.com/teamrocket/dhtnode/wifi"
)

type lineConsole struct{ data []byte }

func (c *lineConsole) Buffered() int { return len(c.data) }

func (c *lineConsole) ReadByte() (byte, error) {
	if len(c.data) == 0 {
		return 0, errors.New("empty")
	}
	b := c.data[0]
	c.data = c.data[1:]
	return b, nil
}

type constDriver struct{ t, h float32 }

func (d constDriver) Sample() (float32, float32) { return d.t, d.h }

type fakeServer struct {
	startErr error
	started  bool
	handled  int
}

func (s *fakeServer) Start() error {
	s.started = s.startErr == nil
	return s.startErr
}

func (s *fakeServer) HandleClient() error {
	s.handled++
	return nil
}

type fakeNames struct {
	beginErr error
	hostname string
	updates  int
}

func (n *fakeNames) Begin(hostname string) error {
	n.hostname = hostname
	return n.beginErr
}

func (n *fakeNames) Update() { n.updates++ }

type rig struct {
	clk     *clocktest.Clock
	vol     *memvol.Volume
	radio   *simradio.Radio
	server  *fakeServer
	names   *fakeNames
	sampler *sensor.Sampler
	wifi    *wifi.Manager
	seq     *boot.Sequencer
	phases  []dhtnode.Phase
	resets  int
	ledOn   bool
}

func newRig(t *testing.T, input string, cfg boot.Config) *rig {
	t.Helper()
	r := &rig{
		clk:    clocktest.New(),
		vol:    memvol.New(),
		radio:  simradio.New(netip.MustParseAddr("10.0.0.7"), wifi.StatusConnecting, wifi.StatusConnected),
		server: &fakeServer{},
		names:  &fakeNames{},
	}
	sig := signal.New(func(level bool) { r.ledOn = !level }, r.clk, signal.Config{
		ActiveLow: true,
		Reset:     func() { r.resets++ },
	})
	r.sampler = sensor.NewSampler(constDriver{t: 22.5, h: 48}, r.clk, sensor.Config{})
	r.wifi = wifi.NewManager(r.radio, sig, r.clk, wifi.DefaultConfig())
	r.seq = boot.NewSequencer(boot.Components{
		Signal:  sig,
		Console: &lineConsole{data: []byte(input)},
		Store:   credentials.NewStore(r.vol, credentials.StoreConfig{FormatOnMountError: true}),
		Sampler: r.sampler,
		Radio:   r.radio,
		WiFi:    r.wifi,
		Names:   r.names,
		Server:  r.server,
	}, r.clk, cfg)
	r.seq.OnPhase = func(p dhtnode.Phase) { r.phases = append(r.phases, p) }
	return r
}

func requireFault(t *testing.T, err error, want dhtnode.Fault, phase dhtnode.Phase) {
	t.Helper()
	var fe *dhtnode.FaultError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, want, fe.Fault)
	assert.Equal(t, phase, fe.Phase)
}

func TestRunBootsInOrder(t *testing.T) {
	r := newRig(t, "home/hunter22\n", boot.DefaultConfig())
	node, err := r.seq.Run()
	require.NoError(t, err)
	require.NotNil(t, node)
	assert.Equal(t, dhtnode.BootOrder[:], r.phases)
	assert.True(t, r.ledOn, "LED on after boot")
	assert.True(t, r.server.started)
	assert.Equal(t, "dhtnode", r.names.hostname)
	assert.Equal(t, "home", r.radio.LastSSID)
	assert.Equal(t, wifi.StateConnected, r.wifi.State())
	assert.Contains(t, r.vol.Files, credentials.DefaultPath, "console credentials persisted")

	// Flicker, countdown and one phase pattern per phase at the very least.
	minimum := 8*250*time.Millisecond + 10*time.Second
	for _, p := range dhtnode.BootOrder {
		minimum += signal.Duration(signal.AppendPhase(nil, p.Code(), signal.DefaultTiming()))
	}
	assert.GreaterOrEqual(t, r.clk.Elapsed(), minimum)
}

func TestRunUsesStoredCredentials(t *testing.T) {
	r := newRig(t, "", boot.DefaultConfig())
	store := credentials.NewStore(r.vol, credentials.StoreConfig{})
	require.NoError(t, store.Save(credentials.Credentials{SSID: "stored", Password: "stored-pass"}))
	_, err := r.seq.Run()
	require.NoError(t, err)
	assert.Equal(t, "stored", r.radio.LastSSID)
}

func TestRunNoCredentials(t *testing.T) {
	r := newRig(t, "", boot.DefaultConfig())
	node, err := r.seq.Run()
	assert.Nil(t, node)
	requireFault(t, err, dhtnode.FaultNoCredentials, dhtnode.PhaseAuthAcquire)
	assert.Equal(t, []dhtnode.Phase{dhtnode.PhaseAuthAcquire}, r.phases)
	assert.Zero(t, r.radio.Connects)

	start := r.clk.Elapsed()
	r.seq.Halt(err)
	assert.Equal(t, 1, r.resets, "default policy restarts")
	halt := signal.AppendHalt(nil, dhtnode.FaultNoCredentials.Blinks(), signal.DefaultTiming())
	assert.Equal(t, signal.Duration(halt), r.clk.Elapsed()-start)
}

func TestRunFaults(t *testing.T) {
	for _, tc := range []struct {
		name  string
		setup func(r *rig)
		fault dhtnode.Fault
		phase dhtnode.Phase
	}{
		{
			name:  "no radio hardware",
			setup: func(r *rig) { r.radio.RemoveHardware() },
			fault: dhtnode.FaultNoRadioHardware,
			phase: dhtnode.PhaseRadioInit,
		},
		{
			name:  "rejected",
			setup: func(r *rig) { r.radio.Rescript(wifi.StatusRejected) },
			fault: dhtnode.FaultConnectRejected,
			phase: dhtnode.PhaseRadioConnect,
		},
		{
			name:  "timeout",
			setup: func(r *rig) { r.radio.Rescript(wifi.StatusConnecting) },
			fault: dhtnode.FaultConnectTimeout,
			phase: dhtnode.PhaseRadioConnect,
		},
		{
			name:  "server bind",
			setup: func(r *rig) { r.server.startErr = errors.New("port in use") },
			fault: dhtnode.FaultServerBind,
			phase: dhtnode.PhaseServerInit,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			r := newRig(t, "home/hunter22\n", boot.DefaultConfig())
			tc.setup(r)
			_, err := r.seq.Run()
			requireFault(t, err, tc.fault, tc.phase)
			assert.Equal(t, tc.phase, r.phases[len(r.phases)-1], "boot stops at failing phase")
		})
	}
}

func TestRunRadioInitHook(t *testing.T) {
	r := newRig(t, "home/hunter22\n", boot.DefaultConfig())
	seq := boot.NewSequencer(boot.Components{
		Signal:    signal.New(func(bool) {}, r.clk, signal.Config{}),
		Console:   &lineConsole{data: []byte("home/hunter22\n")},
		Store:     credentials.NewStore(r.vol, credentials.StoreConfig{FormatOnMountError: true}),
		Sampler:   r.sampler,
		Radio:     r.radio,
		RadioInit: func() error { return errors.New("chip id mismatch") },
		WiFi:      r.wifi,
		Server:    r.server,
	}, r.clk, boot.DefaultConfig())
	_, err := seq.Run()
	requireFault(t, err, dhtnode.FaultNoRadioHardware, dhtnode.PhaseRadioInit)
}

func TestRunScanFailure(t *testing.T) {
	r := newRig(t, "home/hunter22\n", boot.DefaultConfig())
	r.radio.FailScan(errors.New("scan busy"))
	_, err := r.seq.Run()
	require.NoError(t, err, "scan failure is best effort by default")

	cfg := boot.DefaultConfig()
	cfg.ScanFailureFatal = true
	r = newRig(t, "home/hunter22\n", cfg)
	r.radio.FailScan(errors.New("scan busy"))
	_, err = r.seq.Run()
	requireFault(t, err, dhtnode.FaultScanFailed, dhtnode.PhaseRadioScan)
}

func TestRunNameServiceBestEffort(t *testing.T) {
	r := newRig(t, "home/hunter22\n", boot.DefaultConfig())
	r.names.beginErr = errors.New("no multicast")
	node, err := r.seq.Run()
	require.NoError(t, err)
	require.NoError(t, node.Step())
	assert.Zero(t, r.names.updates, "failed name service is not updated")
}

func TestNodeStep(t *testing.T) {
	cfg := boot.DefaultConfig()
	cfg.Countdown = 0
	cfg.Flicker = 0
	r := newRig(t, "home/hunter22\n", cfg)
	node, err := r.seq.Run()
	require.NoError(t, err)

	require.NoError(t, node.Step())
	assert.Equal(t, 1, r.sampler.Reads(), "first step samples")
	assert.Equal(t, float32(22.5), r.sampler.Reading().Temperature)
	assert.Equal(t, 1, r.server.handled)
	assert.Equal(t, 1, r.names.updates)
	assert.True(t, r.ledOn)

	require.NoError(t, node.Step())
	assert.Equal(t, 1, r.sampler.Reads(), "rate limited")
	r.clk.Advance(sensor.DefaultInterval)
	require.NoError(t, node.Step())
	assert.Equal(t, 2, r.sampler.Reads())
	assert.Equal(t, 3, node.Iterations())
}

func TestNodeReconnectsOnLinkLoss(t *testing.T) {
	r := newRig(t, "home/hunter22\n", boot.DefaultConfig())
	node, err := r.seq.Run()
	require.NoError(t, err)
	connectPattern := signal.Duration(signal.AppendPhase(nil, dhtnode.PhaseRadioConnect.Code(), signal.DefaultTiming()))

	before := r.clk.Slept()
	require.NoError(t, node.Step())
	assert.Equal(t, before, r.clk.Slept(), "healthy link plays nothing")

	r.radio.Drop()
	before = r.clk.Slept()
	require.NoError(t, node.Step())
	assert.Equal(t, 1, r.wifi.Reconnects())
	assert.Equal(t, wifi.StateConnected, r.wifi.State())
	// Connect phase pattern, then one unsuccessful poll before the link is up.
	assert.Equal(t, connectPattern+250*time.Millisecond, r.clk.Slept()-before)
	assert.True(t, r.ledOn)
}

func TestNodeRunHaltsOnFault(t *testing.T) {
	cfg := boot.DefaultConfig()
	cfg.Policy = boot.Policy{dhtnode.FaultConnectTimeout: true}
	r := newRig(t, "home/hunter22\n", cfg)
	node, err := r.seq.Run()
	require.NoError(t, err)

	r.radio.Drop()
	r.radio.Rescript(wifi.StatusConnecting)
	err = node.Run()
	requireFault(t, err, dhtnode.FaultConnectTimeout, 0)
	assert.Equal(t, 1, r.resets)
}

type recordHalter struct {
	blinks  int
	restart bool
}

func (h *recordHalter) Halt(blinks int, restart bool) { h.blinks, h.restart = blinks, restart }

func TestHaltPolicy(t *testing.T) {
	p := boot.Policy{dhtnode.FaultConnectRejected: false}
	assert.False(t, p.Restart(dhtnode.FaultConnectRejected))
	assert.True(t, p.Restart(dhtnode.FaultConnectTimeout), "missing faults restart")

	var h recordHalter
	boot.Halt(&h, p, &dhtnode.FaultError{Fault: dhtnode.FaultConnectRejected}, nil)
	assert.Equal(t, dhtnode.FaultConnectRejected.Blinks(), h.blinks)
	assert.False(t, h.restart)

	boot.Halt(&h, p, errors.New("unexpected"), nil)
	assert.Zero(t, h.blinks)
	assert.True(t, h.restart)

	for _, f := range dhtnode.Faults {
		assert.True(t, boot.DefaultPolicy().Restart(f), f.String())
	}
}
