package bridge

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/rfxcom/internal/capture"
	"github.com/muurk/rfxcom/internal/config"
	"github.com/muurk/rfxcom/internal/discovery"
	"github.com/muurk/rfxcom/internal/logging"
	"github.com/muurk/rfxcom/internal/protocol"
)

// shutdownTimeout bounds graceful shutdown
const shutdownTimeout = 10 * time.Second

// Gateway is the frame stream the bridge serves. *transport.Conn satisfies it.
type Gateway interface {
	ReadFrame() ([]byte, error)
	WriteFrame(frame []byte) error
	NextSequence() byte
	Close() error
}

// Config holds the bridge configuration
type Config struct {
	Listen     string // host:port for HTTP and WebSocket
	CertFile   string // TLS certificate (optional)
	KeyFile    string // TLS private key (optional)
	SelfSigned bool   // Serve TLS with a generated in-memory certificate
	CaptureDir string // Directory for CBOR frame captures (empty = disabled)
	Advertise  bool   // Announce the bridge over mDNS
	Name       string // mDNS instance name
	GatewayURL string // Gateway address, reported on /healthz and in captures
	Version    string

	// Devices are the resolved bindings from the configuration file
	Devices []*config.ResolvedDevice
}

// ConfigFromRegistry builds a bridge Config from a loaded registry
func ConfigFromRegistry(reg *config.Registry) (Config, error) {
	devices, err := reg.ResolveDevices()
	if err != nil {
		return Config{}, err
	}
	return Config{
		Listen:     reg.Bridge.Listen,
		CertFile:   reg.Bridge.CertFile,
		KeyFile:    reg.Bridge.KeyFile,
		CaptureDir: reg.Bridge.CaptureDir,
		Advertise:  reg.Bridge.Advertise,
		Name:       reg.Bridge.Name,
		GatewayURL: reg.Gateway.Address,
		Devices:    devices,
	}, nil
}

// itemBinding locates an item for outbound commands
type itemBinding struct {
	device   *config.ResolvedDevice
	selector protocol.ValueSelector
}

// bindings indexes the configured devices by address and by item
type bindings struct {
	devices map[config.DeviceKey]*config.ResolvedDevice
	items   map[string]itemBinding
}

func newBindings(devices []*config.ResolvedDevice) (*bindings, error) {
	bs := &bindings{
		devices: make(map[config.DeviceKey]*config.ResolvedDevice, len(devices)),
		items:   make(map[string]itemBinding),
	}
	for _, d := range devices {
		key := config.DeviceKey{PacketType: d.PacketType, ID: d.ID}
		if _, dup := bs.devices[key]; dup {
			return nil, fmt.Errorf("device %s id %s configured twice", d.PacketType, d.ID)
		}
		bs.devices[key] = d
		for _, binding := range d.Bindings {
			if _, dup := bs.items[binding.Item]; dup {
				return nil, fmt.Errorf("item %q bound twice", binding.Item)
			}
			bs.items[binding.Item] = itemBinding{device: d, selector: binding.Selector}
		}
	}
	return bs, nil
}

// ItemState is the last published state of an item
type ItemState struct {
	State   protocol.State `json:"state"`
	Updated time.Time      `json:"updated"`
}

// Bridge relays decoded gateway frames to WebSocket subscribers and
// subscriber commands back to the gateway
type Bridge struct {
	config   Config
	gateway  Gateway
	version  string
	bindings atomic.Pointer[bindings]
	metrics  *metrics
	hub      *hub
	upgrader websocket.Upgrader
	recorder *capture.Recorder
	now      func() time.Time

	stateMu sync.RWMutex
	states  map[string]ItemState

	frames atomic.Uint64

	wg         sync.WaitGroup
	mu         sync.Mutex
	httpServer *http.Server
	advert     *discovery.Advertisement
	closeOnce  sync.Once
}

// New creates a Bridge serving gw
func New(cfg Config, gw Gateway) (*Bridge, error) {
	b := &Bridge{
		config:  cfg,
		gateway: gw,
		version: cfg.Version,
		metrics: newMetrics(),
		states:  make(map[string]ItemState),
		now:     time.Now,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Subscribers are automation hosts, not browsers
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	b.hub = newHub(b.metrics)

	if err := b.SetDevices(cfg.Devices); err != nil {
		return nil, err
	}

	if cfg.CaptureDir != "" {
		rec, err := capture.Create(cfg.CaptureDir, cfg.GatewayURL)
		if err != nil {
			return nil, err
		}
		b.recorder = rec
		logging.Info("Capturing gateway frames", zap.String("file", rec.Path()))
	}

	return b, nil
}

// SetDevices replaces the device bindings. Frames and commands already in
// flight finish against the previous bindings. Last known states of items
// that are no longer bound are dropped.
func (b *Bridge) SetDevices(devices []*config.ResolvedDevice) error {
	bs, err := newBindings(devices)
	if err != nil {
		return err
	}
	b.bindings.Store(bs)

	b.stateMu.Lock()
	for item := range b.states {
		if _, bound := bs.items[item]; !bound {
			delete(b.states, item)
		}
	}
	b.stateMu.Unlock()
	return nil
}

// deviceCount is the number of configured devices
func (b *Bridge) deviceCount() int {
	return len(b.bindings.Load().devices)
}

// HandleFrame decodes one gateway frame and publishes its states. Frames
// that do not decode are counted and logged, never fatal.
func (b *Bridge) HandleFrame(frame []byte) {
	b.frames.Add(1)
	logging.LogFrame("received", frame)
	b.record(capture.DirectionReceived, frame)

	pt := protocol.PacketTypeUnknown
	if len(frame) > 1 {
		pt = protocol.PacketType(frame[1])
	}
	b.metrics.framesReceived.WithLabelValues(pt.String()).Inc()

	msg, err := protocol.Decode(frame)
	if err != nil {
		b.metrics.decodeFailures.WithLabelValues(protocol.ErrorKind(err)).Inc()
		logging.LogDecodeFailure(frame, err)
		return
	}
	b.publish(msg, OriginGateway)
}

// publish sends a state event per bound selector, or one message event with
// every convertible selector when the device has no bindings
func (b *Bridge) publish(msg protocol.Message, origin string) {
	env := msg.Envelope()
	base := Event{
		Timestamp:  b.now(),
		Origin:     origin,
		Device:     msg.DeviceID(),
		PacketType: env.PacketType.String(),
		SubType:    env.SubType.String(),
	}

	device, bound := b.bindings.Load().devices[config.DeviceKey{PacketType: msg.PacketType(), ID: msg.DeviceID()}]
	if !bound {
		states := make(map[string]protocol.State)
		for _, sel := range msg.SupportedSelectors() {
			st, err := msg.ToState(sel)
			if err != nil {
				b.metrics.decodeFailures.WithLabelValues(protocol.ErrorKind(err)).Inc()
				continue
			}
			states[sel.Name] = st
		}
		ev := base
		ev.Type = EventMessage
		ev.States = states
		b.broadcast(ev)
		return
	}

	for _, binding := range device.Bindings {
		st, err := msg.ToState(binding.Selector)
		if err != nil {
			b.metrics.decodeFailures.WithLabelValues(protocol.ErrorKind(err)).Inc()
			logging.Warn("Failed to convert bound selector",
				zap.String("item", binding.Item),
				zap.String("selector", binding.Selector.Name),
				zap.Error(err),
			)
			continue
		}
		b.setItemState(binding.Item, st, base.Timestamp)

		ev := base
		ev.Type = EventState
		ev.Item = binding.Item
		ev.Selector = binding.Selector.Name
		ev.State = &st
		b.broadcast(ev)
		b.metrics.statesPublished.Inc()
	}
}

func (b *Bridge) broadcast(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		logging.Error("Failed to marshal event", zap.Error(err))
		return
	}
	b.hub.broadcast(data)
}

func (b *Bridge) setItemState(item string, st protocol.State, at time.Time) {
	b.stateMu.Lock()
	b.states[item] = ItemState{State: st, Updated: at}
	b.stateMu.Unlock()
}

// ItemStates returns a snapshot of the last state of every item
func (b *Bridge) ItemStates() map[string]ItemState {
	b.stateMu.RLock()
	defer b.stateMu.RUnlock()
	out := make(map[string]ItemState, len(b.states))
	for k, v := range b.states {
		out[k] = v
	}
	return out
}

// HandleCommand builds, encodes and writes one command. The write is
// attempted once; failures are reported to the caller.
func (b *Bridge) HandleCommand(cmd Command) Result {
	res := Result{Type: EventResult, ID: cmd.ID}

	msg, err := b.buildCommand(cmd)
	if err != nil {
		res.Error = err.Error()
		res.ErrorKind = protocol.ErrorKind(err)
		b.metrics.commandsSent.WithLabelValues(b.commandLabel(cmd), "rejected").Inc()
		return res
	}

	frame := msg.Encode()
	pt := msg.PacketType().String()
	logging.LogFrame("sent", frame)
	if err := b.gateway.WriteFrame(frame); err != nil {
		res.Error = err.Error()
		res.ErrorKind = "transport"
		b.metrics.commandsSent.WithLabelValues(pt, "failed").Inc()
		logging.Error("Failed to write command", zap.String("packet_type", pt), zap.Error(err))
		return res
	}
	b.record(capture.DirectionSent, frame)
	b.metrics.commandsSent.WithLabelValues(pt, "sent").Inc()

	res.OK = true
	res.Frame = fmt.Sprintf("%X", frame)

	// Tell the other subscribers what was commanded
	b.publish(msg, OriginCommand)
	return res
}

// commandLabel names the packet type of a rejected command without letting
// arbitrary subscriber input into metric labels
func (b *Bridge) commandLabel(cmd Command) string {
	if ib, ok := b.bindings.Load().items[cmd.Item]; ok {
		return ib.device.PacketType.String()
	}
	if pt, err := protocol.ParsePacketTypeName(cmd.PacketType); err == nil {
		return pt.String()
	}
	return "invalid"
}

func (b *Bridge) buildCommand(cmd Command) (protocol.Message, error) {
	var (
		codec   protocol.Codec
		subType protocol.SubType
		sel     protocol.ValueSelector
		device  = cmd.Device
		err     error
	)

	if cmd.Item != "" {
		ib, ok := b.bindings.Load().items[cmd.Item]
		if !ok {
			return nil, fmt.Errorf("unknown item %q", cmd.Item)
		}
		if codec, err = protocol.CodecFor(ib.device.PacketType); err != nil {
			return nil, err
		}
		subType, sel, device = ib.device.SubType, ib.selector, ib.device.ID
	} else {
		pt, perr := protocol.ParsePacketTypeName(cmd.PacketType)
		if perr != nil {
			return nil, perr
		}
		if codec, err = protocol.CodecFor(pt); err != nil {
			return nil, err
		}
		if subType, err = codec.ParseSubTypeName(cmd.SubType); err != nil {
			return nil, err
		}
		if sel, err = protocol.ParseValueSelector(cmd.Selector); err != nil {
			return nil, err
		}
	}

	value, err := parseValue(sel, cmd.Value)
	if err != nil {
		return nil, fmt.Errorf("value for %s: %w", sel.Name, err)
	}
	return codec.FromState(sel, device, subType, value, b.gateway.NextSequence())
}

func (b *Bridge) record(dir capture.Direction, frame []byte) {
	if b.recorder == nil {
		return
	}
	if err := b.recorder.Record(dir, frame); err != nil {
		logging.Warn("Failed to capture frame", zap.Error(err))
	}
}

// Subscribers returns the number of connected subscribers
func (b *Bridge) Subscribers() int {
	return b.hub.count()
}

// Run serves HTTP and relays gateway frames until ctx is cancelled or the
// gateway stream fails. Either way the bridge is shut down before Run returns.
// A gateway failure is returned; there is no reconnect.
func (b *Bridge) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", b.config.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", b.config.Listen, err)
	}
	return b.Serve(ctx, ln)
}

// Serve is Run on an existing listener
func (b *Bridge) Serve(ctx context.Context, ln net.Listener) error {
	tlsConfig, err := b.tlsConfig()
	if err != nil {
		_ = ln.Close()
		return err
	}
	if tlsConfig != nil {
		logging.Info("TLS Configuration", zap.Any("tls_info", GetTLSInfo(tlsConfig)))
		ln = tls.NewListener(ln, tlsConfig)
	}

	srv := &http.Server{
		Handler:           b.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	b.mu.Lock()
	b.httpServer = srv
	b.mu.Unlock()

	logging.Info("Bridge listening",
		zap.String("addr", ln.Addr().String()),
		zap.String("gateway", b.config.GatewayURL),
		zap.Int("devices", b.deviceCount()),
		zap.Bool("tls", tlsConfig != nil),
	)

	if b.config.Advertise {
		b.advertise(ln.Addr(), tlsConfig != nil)
	}

	errChan := make(chan error, 2)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server: %w", err)
		}
	}()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for {
			frame, err := b.gateway.ReadFrame()
			if err != nil {
				errChan <- fmt.Errorf("gateway read: %w", err)
				return
			}
			b.HandleFrame(frame)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logging.Info("Shutdown requested, stopping bridge...")
	case runErr = <-errChan:
		logging.Error("Bridge stopping", zap.Error(runErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	b.Shutdown(shutdownCtx)
	return runErr
}

func (b *Bridge) tlsConfig() (*tls.Config, error) {
	switch {
	case b.config.CertFile != "" && b.config.KeyFile != "":
		return NewTLSConfig(b.config.CertFile, b.config.KeyFile)
	case b.config.SelfSigned:
		host, _, _ := net.SplitHostPort(b.config.Listen)
		hosts := []string{"localhost", "127.0.0.1"}
		if host != "" {
			hosts = append(hosts, host)
		}
		certPEM, keyPEM, err := GenerateSelfSigned(hosts)
		if err != nil {
			return nil, fmt.Errorf("failed to generate certificate: %w", err)
		}
		return NewTLSConfigFromMemory(certPEM, keyPEM)
	default:
		return nil, nil
	}
}

func (b *Bridge) advertise(addr net.Addr, useTLS bool) {
	tcpAddr, ok := addr.(*net.TCPAddr)
	if !ok {
		return
	}
	name := b.config.Name
	if name == "" {
		name = "rfxcom-bridge"
	}
	txt := map[string]string{
		"role":    discovery.RoleBridge,
		"version": b.version,
		"devices": strconv.Itoa(b.deviceCount()),
	}
	if useTLS {
		txt["tls"] = "1"
	}

	advert, err := discovery.Advertise(name, tcpAddr.Port, txt)
	if err != nil {
		logging.Warn("mDNS advertisement failed", zap.Error(err))
		return
	}
	b.mu.Lock()
	b.advert = advert
	b.mu.Unlock()
}

// Shutdown stops HTTP, disconnects subscribers, closes the gateway and the
// capture file, then waits for the relay goroutines. Safe to call more than once.
func (b *Bridge) Shutdown(ctx context.Context) {
	b.closeOnce.Do(func() {
		logging.Info("Shutting down bridge...")

		b.mu.Lock()
		srv, advert := b.httpServer, b.advert
		b.mu.Unlock()

		if advert != nil {
			advert.Shutdown()
		}
		if srv != nil {
			if err := srv.Shutdown(ctx); err != nil {
				logging.Warn("HTTP shutdown incomplete", zap.Error(err))
			}
		}

		b.hub.closeAll()

		// Unblocks the gateway read loop
		if err := b.gateway.Close(); err != nil {
			logging.Debug("Gateway close", zap.Error(err))
		}

		done := make(chan struct{})
		go func() {
			b.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			logging.Info("All subscribers closed gracefully")
		case <-ctx.Done():
			logging.Warn("Shutdown timeout, forcing close")
		}

		if b.recorder != nil {
			if err := b.recorder.Close(); err != nil {
				logging.Warn("Failed to close capture file", zap.Error(err))
			}
		}

		logging.Sync()
	})
}
