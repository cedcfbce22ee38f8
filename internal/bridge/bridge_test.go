package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muurk/rfxcom/internal/capture"
	"github.com/muurk/rfxcom/internal/config"
	"github.com/muurk/rfxcom/internal/protocol"
	"github.com/muurk/rfxcom/internal/transport"
)

var (
	// Lighting2 AC, id 19088743.10, ON, signal 7
	lighting2On = []byte{0x0B, 0x11, 0x00, 0x2A, 0x01, 0x23, 0x45, 0x67, 0x0A, 0x01, 0x00, 0x70}
	// TH1, id 43794, 21.5C, 45%, DRY, signal 7, battery 9
	thFrame = []byte{0x0A, 0x52, 0x01, 0x03, 0xAB, 0x12, 0x00, 0xD7, 0x2D, 0x02, 0x79}
	// SECURITY1 has no codec
	securityFrame = []byte{0x0B, 0x20, 0xFF, 0x07, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07}
)

const testConfig = `version: 1
devices:
  hall_light:
    packet_type: LIGHTING2
    sub_type: AC
    id: "19088743.10"
    bindings:
      - selector: Command
        item: HallLight
      - selector: DimmingLevel
        item: HallLightLevel
  outside:
    packet_type: TEMPERATURE
    sub_type: TEMP1
    id: "43794"
    bindings:
      - selector: Temperature
        item: OutsideTemperature
`

// fakeGateway replays queued frames and records writes
type fakeGateway struct {
	frames   chan []byte
	closed   chan struct{}
	once     sync.Once
	seq      transport.Sequence
	writeErr error

	mu      sync.Mutex
	written [][]byte
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{frames: make(chan []byte, 16), closed: make(chan struct{})}
}

func (g *fakeGateway) ReadFrame() ([]byte, error) {
	select {
	case f, ok := <-g.frames:
		if !ok {
			return nil, io.EOF
		}
		return f, nil
	case <-g.closed:
		return nil, net.ErrClosed
	}
}

func (g *fakeGateway) WriteFrame(frame []byte) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.writeErr != nil {
		g.written = append(g.written, nil)
		return g.writeErr
	}
	g.written = append(g.written, append([]byte(nil), frame...))
	return nil
}

func (g *fakeGateway) NextSequence() byte { return g.seq.Next() }

func (g *fakeGateway) Close() error {
	g.once.Do(func() { close(g.closed) })
	return nil
}

func (g *fakeGateway) writes() [][]byte {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([][]byte(nil), g.written...)
}

func newTestBridge(t *testing.T, cfg Config) (*Bridge, *fakeGateway) {
	t.Helper()
	reg, err := config.Parse([]byte(testConfig), config.FormatYAML)
	require.NoError(t, err)
	devices, err := reg.ResolveDevices()
	require.NoError(t, err)
	cfg.Devices = devices

	gw := newFakeGateway()
	b, err := New(cfg, gw)
	require.NoError(t, err)
	b.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { b.Shutdown(context.Background()) })
	return b, gw
}

func dialSubscriber(t *testing.T, srv *httptest.Server) (*websocket.Conn, Event) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	hello := readEvent(t, conn)
	require.Equal(t, EventHello, hello.Type)
	return conn, hello
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var ev Event
	require.NoError(t, json.Unmarshal(data, &ev))
	return ev
}

func readResult(t *testing.T, conn *websocket.Conn) Result {
	t.Helper()
	for {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		var head struct {
			Type string `json:"type"`
		}
		require.NoError(t, json.Unmarshal(data, &head))
		if head.Type != EventResult {
			continue
		}
		var res Result
		require.NoError(t, json.Unmarshal(data, &res))
		return res
	}
}

func TestBridge_PublishesBoundStates(t *testing.T) {
	b, _ := newTestBridge(t, Config{Version: "test"})
	srv := httptest.NewServer(b.Handler())
	defer srv.Close()

	conn, hello := dialSubscriber(t, srv)
	assert.NotEmpty(t, hello.Subscriber)
	assert.Equal(t, "test", hello.Version)
	require.Eventually(t, func() bool { return b.Subscribers() == 1 }, time.Second, 10*time.Millisecond)

	b.HandleFrame(lighting2On)

	ev := readEvent(t, conn)
	assert.Equal(t, EventState, ev.Type)
	assert.Equal(t, OriginGateway, ev.Origin)
	assert.Equal(t, "HallLight", ev.Item)
	assert.Equal(t, "19088743.10", ev.Device)
	assert.Equal(t, "LIGHTING2", ev.PacketType)
	assert.Equal(t, "AC", ev.SubType)
	assert.Equal(t, "Command", ev.Selector)
	require.NotNil(t, ev.State)
	assert.Equal(t, protocol.BooleanState(true), *ev.State)

	ev = readEvent(t, conn)
	assert.Equal(t, "HallLightLevel", ev.Item)
	assert.Equal(t, protocol.PercentState(100), *ev.State)

	states := b.ItemStates()
	assert.Equal(t, protocol.BooleanState(true), states["HallLight"].State)
	assert.Equal(t, protocol.PercentState(100), states["HallLightLevel"].State)
	assert.Equal(t, float64(1), testutil.ToFloat64(b.metrics.framesReceived.WithLabelValues("LIGHTING2")))
	assert.Equal(t, float64(2), testutil.ToFloat64(b.metrics.statesPublished))
}

func TestBridge_UnboundDeviceMessage(t *testing.T) {
	b, _ := newTestBridge(t, Config{})
	srv := httptest.NewServer(b.Handler())
	defer srv.Close()

	conn, _ := dialSubscriber(t, srv)
	require.Eventually(t, func() bool { return b.Subscribers() == 1 }, time.Second, 10*time.Millisecond)

	b.HandleFrame(thFrame)

	ev := readEvent(t, conn)
	assert.Equal(t, EventMessage, ev.Type)
	assert.Equal(t, "43794", ev.Device)
	assert.Equal(t, "TEMPERATURE_HUMIDITY", ev.PacketType)
	assert.Equal(t, protocol.NumberState(21.5), ev.States["Temperature"])
	assert.Equal(t, protocol.NumberState(45), ev.States["Humidity"])
	assert.Equal(t, protocol.StringState("DRY"), ev.States["HumidityStatus"])
	assert.Equal(t, protocol.NumberState(9), ev.States["BatteryLevel"])
}

func TestBridge_DecodeFailureCounted(t *testing.T) {
	b, _ := newTestBridge(t, Config{})

	b.HandleFrame(securityFrame)
	b.HandleFrame([]byte{0x02, 0x11, 0x00})

	assert.Equal(t, float64(1), testutil.ToFloat64(b.metrics.decodeFailures.WithLabelValues("unsupported packet type")))
	assert.Equal(t, float64(1), testutil.ToFloat64(b.metrics.decodeFailures.WithLabelValues("malformed frame")))
	assert.Equal(t, float64(1), testutil.ToFloat64(b.metrics.framesReceived.WithLabelValues("SECURITY1")))
	assert.Empty(t, b.ItemStates())
}

func TestBridge_CommandOverWebSocket(t *testing.T) {
	b, gw := newTestBridge(t, Config{})
	srv := httptest.NewServer(b.Handler())
	defer srv.Close()

	conn, _ := dialSubscriber(t, srv)
	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"id":    "42",
		"item":  "HallLight",
		"value": "ON",
	}))

	res := readResult(t, conn)
	require.True(t, res.OK, res.Error)
	assert.Equal(t, "42", res.ID)
	assert.Equal(t, "0B110000012345670A010000", res.Frame)

	writes := gw.writes()
	require.Len(t, writes, 1)
	assert.Equal(t, "0B110000012345670A010000", fmt.Sprintf("%X", writes[0]))
	assert.Equal(t, protocol.BooleanState(true), b.ItemStates()["HallLight"].State)
}

func TestBridge_HandleCommand(t *testing.T) {
	tests := []struct {
		name      string
		cmd       Command
		wantFrame string
		wantKind  string
	}{
		{
			name:      "device dimming level",
			cmd:       Command{Device: "19088743.10", PacketType: "LIGHTING2", SubType: "AC", Selector: "DimmingLevel", Value: json.RawMessage(`100`)},
			wantFrame: "0B110000012345670A020F00",
		},
		{
			name:      "tagged state",
			cmd:       Command{Item: "HallLight", Value: json.RawMessage(`{"kind":"boolean","value":false}`)},
			wantFrame: "0B110000012345670A000000",
		},
		{
			name:     "unknown item",
			cmd:      Command{Item: "Kitchen", Value: json.RawMessage(`"ON"`)},
			wantKind: "other",
		},
		{
			name:     "read only packet type",
			cmd:      Command{Item: "OutsideTemperature", Value: json.RawMessage(`20`)},
			wantKind: "unsupported operation",
		},
		{
			name:     "receive only selector",
			cmd:      Command{Device: "1.1", PacketType: "LIGHTING2", SubType: "AC", Selector: "SignalLevel", Value: json.RawMessage(`3`)},
			wantKind: "unsupported operation",
		},
		{
			name:     "unsupported selector",
			cmd:      Command{Device: "1.1", PacketType: "LIGHTING2", SubType: "AC", Selector: "Temperature", Value: json.RawMessage(`3`)},
			wantKind: "unsupported selector",
		},
		{
			name:     "kind mismatch",
			cmd:      Command{Item: "HallLight", Value: json.RawMessage(`{"kind":"string","value":"ON"}`)},
			wantKind: "kind mismatch",
		},
		{
			name:     "unknown sub type",
			cmd:      Command{Device: "1.1", PacketType: "LIGHTING2", SubType: "ac", Selector: "Command", Value: json.RawMessage(`true`)},
			wantKind: "unknown sub type name",
		},
		{
			name:     "no codec",
			cmd:      Command{Device: "1.1", PacketType: "SECURITY1", SubType: "X", Selector: "Command", Value: json.RawMessage(`true`)},
			wantKind: "unsupported packet type",
		},
		{
			name:     "bad device id",
			cmd:      Command{Device: "lamp", PacketType: "LIGHTING2", SubType: "AC", Selector: "Command", Value: json.RawMessage(`true`)},
			wantKind: "invalid value",
		},
		{
			name:     "missing value",
			cmd:      Command{Item: "HallLight"},
			wantKind: "other",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, gw := newTestBridge(t, Config{})
			res := b.HandleCommand(tt.cmd)

			if tt.wantKind != "" {
				assert.False(t, res.OK)
				assert.Equal(t, tt.wantKind, res.ErrorKind, res.Error)
				assert.Empty(t, gw.writes())
				return
			}
			require.True(t, res.OK, res.Error)
			assert.Equal(t, tt.wantFrame, res.Frame)
			require.Len(t, gw.writes(), 1)
		})
	}
}

func TestBridge_CommandWriteFailureNotRetried(t *testing.T) {
	b, gw := newTestBridge(t, Config{})
	gw.writeErr = errors.New("port gone")

	res := b.HandleCommand(Command{Item: "HallLight", Value: json.RawMessage(`"OFF"`)})
	assert.False(t, res.OK)
	assert.Equal(t, "transport", res.ErrorKind)
	assert.Contains(t, res.Error, "port gone")
	assert.Len(t, gw.writes(), 1)
	assert.Equal(t, float64(1), testutil.ToFloat64(b.metrics.commandsSent.WithLabelValues("LIGHTING2", "failed")))
}

func TestBridge_Capture(t *testing.T) {
	dir := t.TempDir()
	b, _ := newTestBridge(t, Config{CaptureDir: dir, GatewayURL: "tcp://rfx:10001"})

	b.HandleFrame(thFrame)
	res := b.HandleCommand(Command{Item: "HallLight", Value: json.RawMessage(`true`)})
	require.True(t, res.OK, res.Error)
	b.Shutdown(context.Background())

	files, err := filepath.Glob(filepath.Join(dir, "capture-*.cbor"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	r, err := capture.OpenReader(files[0], capture.Filter{})
	require.NoError(t, err)
	defer r.Close()

	rec, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, capture.DirectionReceived, rec.Direction)
	assert.Equal(t, thFrame, rec.Frame)
	assert.Equal(t, "tcp://rfx:10001", rec.Source)

	rec, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, capture.DirectionSent, rec.Direction)

	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestBridge_ServeStopsOnGatewayFailure(t *testing.T) {
	b, gw := newTestBridge(t, Config{})
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	gw.frames <- thFrame
	close(gw.frames)

	err = b.Serve(context.Background(), ln)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, uint64(1), b.frames.Load())

	select {
	case <-gw.closed:
	default:
		t.Fatal("gateway not closed after shutdown")
	}
}

func TestBridge_ServeCancelled(t *testing.T) {
	b, _ := newTestBridge(t, Config{})
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Serve(ctx, ln) }()

	// Wait until the server answers
	require.Eventually(t, func() bool {
		conn, err := net.Dial("tcp", ln.Addr().String())
		if err != nil {
			return false
		}
		conn.Close()
		return true
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestNew_DuplicateItem(t *testing.T) {
	dev := func(id, item string) *config.ResolvedDevice {
		return &config.ResolvedDevice{
			Name:       id,
			PacketType: protocol.PacketTypeLighting2,
			SubType:    protocol.Lighting2AC,
			ID:         id,
			Bindings:   []config.ResolvedBinding{{Selector: protocol.SelectorCommand, Item: item}},
		}
	}
	_, err := New(Config{Devices: []*config.ResolvedDevice{dev("1.1", "Lamp"), dev("1.2", "Lamp")}}, newFakeGateway())
	assert.ErrorContains(t, err, "bound twice")
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		sel     protocol.ValueSelector
		raw     string
		want    protocol.State
		wantErr bool
	}{
		{protocol.SelectorCommand, `"ON"`, protocol.BooleanState(true), false},
		{protocol.SelectorCommand, `false`, protocol.BooleanState(false), false},
		{protocol.SelectorDimmingLevel, `40`, protocol.PercentState(40), false},
		{protocol.SelectorDimmingLevel, `"40%"`, protocol.PercentState(40), false},
		{protocol.SelectorDimmingLevel, `140`, protocol.Undef, true},
		{protocol.SelectorDimmingLevel, `"NaN"`, protocol.Undef, true},
		{protocol.SelectorDimmingLevel, `{"kind":"percent","value":150}`, protocol.Undef, true},
		{protocol.SelectorDimmingLevel, `{"kind":"percent","value":"150"}`, protocol.Undef, true},
		{protocol.SelectorTemperature, `"Inf"`, protocol.Undef, true},
		{protocol.SelectorTemperature, `-3.5`, protocol.NumberState(-3.5), false},
		{protocol.SelectorRawData, `{"kind":"string","value":"0B"}`, protocol.StringState("0B"), false},
		{protocol.SelectorCommand, `null`, protocol.Undef, true},
		{protocol.SelectorCommand, ``, protocol.Undef, true},
		{protocol.SelectorCommand, `[1]`, protocol.Undef, true},
	}

	for _, tt := range tests {
		t.Run(tt.sel.Name+"/"+tt.raw, func(t *testing.T) {
			got, err := parseValue(tt.sel, json.RawMessage(tt.raw))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBridge_SetDevices(t *testing.T) {
	b, _ := newTestBridge(t, Config{})
	b.HandleFrame(lighting2On)
	require.Contains(t, b.ItemStates(), "HallLight")

	reg, err := config.Parse([]byte(`version: 1
devices:
  porch:
    packet_type: TEMPERATURE_HUMIDITY
    sub_type: TH1
    id: "43794"
    bindings:
      - selector: Humidity
        item: PorchHumidity
`), config.FormatYAML)
	require.NoError(t, err)
	devices, err := reg.ResolveDevices()
	require.NoError(t, err)

	require.NoError(t, b.SetDevices(devices))
	assert.Equal(t, 1, b.deviceCount())
	assert.NotContains(t, b.ItemStates(), "HallLight", "states of unbound items are dropped")

	b.HandleFrame(thFrame)
	assert.Equal(t, protocol.NumberState(45), b.ItemStates()["PorchHumidity"].State)

	res := b.HandleCommand(Command{Item: "HallLight", Value: json.RawMessage(`"ON"`)})
	assert.False(t, res.OK, "old item should no longer be commandable")

	dup := append(devices, devices[0])
	assert.Error(t, b.SetDevices(dup))
	assert.Equal(t, 1, b.deviceCount(), "a rejected set keeps the current bindings")
}
