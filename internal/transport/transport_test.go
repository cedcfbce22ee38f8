package transport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muurk/rfxcom/internal/protocol"
)

func TestReader_ReadFrame(t *testing.T) {
	stream := []byte{
		0x00, 0x00, // noise
		0x03, 0x03, 0x00, 0x01,
		0x08, 0x50, 0x01, 0x10, 0xAB, 0x12, 0x00, 0xD7, 0x79,
		0x02, 0x03, 0x00, // too short for an envelope, still one frame
		0x0B, 0x11, 0x00, // cut off
	}
	r := NewReader(bytes.NewReader(stream))

	frame, err := r.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x03, 0x03, 0x00, 0x01}, frame)
	assert.Equal(t, uint64(2), r.Skipped())

	frame, err = r.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x08, 0x50, 0x01, 0x10, 0xAB, 0x12, 0x00, 0xD7, 0x79}, frame)

	frame, err = r.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x02, 0x03, 0x00}, frame)

	_, err = r.ReadFrame()
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestReader_EOFBetweenFrames(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte{0x03, 0x03, 0x00, 0x01}))
	_, err := r.ReadFrame()
	require.NoError(t, err)

	_, err = r.ReadFrame()
	assert.ErrorIs(t, err, io.EOF)
	assert.NotErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestReader_FramesSplitAcrossReads(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() {
		_, _ = server.Write([]byte{0x08, 0x50, 0x01})
		time.Sleep(10 * time.Millisecond)
		_, _ = server.Write([]byte{0x10, 0xAB, 0x12, 0x00, 0xD7, 0x79})
	}()

	frame, err := NewReader(client).ReadFrame()
	require.NoError(t, err)

	msg, err := protocol.Decode(frame)
	require.NoError(t, err)
	assert.Equal(t, "43794", msg.DeviceID())
}

func TestWriter_WriteFrame(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	require.NoError(t, w.WriteFrame([]byte{0x03, 0x03, 0x00, 0x01}))
	assert.Equal(t, []byte{0x03, 0x03, 0x00, 0x01}, buf.Bytes())

	assert.Error(t, w.WriteFrame(nil))
	assert.Error(t, w.WriteFrame([]byte{0x05, 0x03, 0x00, 0x01}))
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("device unplugged") }

func TestWriter_ErrorNotRetried(t *testing.T) {
	err := NewWriter(failingWriter{}).WriteFrame([]byte{0x03, 0x03, 0x00, 0x01})
	assert.ErrorContains(t, err, "device unplugged")
}

func TestWriter_ConcurrentFramesStayWhole(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	frame := protocol.BuildInterfaceCommand(protocol.InterfaceGetStatus, 7)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, w.WriteFrame(frame))
		}()
	}
	wg.Wait()

	r := NewReader(&buf)
	for i := 0; i < 20; i++ {
		got, err := r.ReadFrame()
		require.NoError(t, err)
		assert.Equal(t, frame, got)
	}
}

func TestSequence_Wraps(t *testing.T) {
	var s Sequence
	for i := 0; i < 256; i++ {
		assert.Equal(t, byte(i), s.Next())
	}
	assert.Equal(t, byte(0), s.Next())
}

type rwcBuffer struct {
	bytes.Buffer
	flushed bool
	closed  bool
}

func (b *rwcBuffer) Close() error            { b.closed = true; return nil }
func (b *rwcBuffer) ResetInputBuffer() error { b.flushed = true; return nil }

func TestConn_Initialize(t *testing.T) {
	rwc := &rwcBuffer{}
	c := NewConn(rwc, "serial:///dev/null")
	c.settle = time.Millisecond

	require.NoError(t, c.Initialize(context.Background()))
	assert.True(t, rwc.flushed)

	r := NewReader(bytes.NewReader(rwc.Bytes()))
	want := [][]byte{
		protocol.BuildInterfaceCommand(protocol.InterfaceReset, 0),
		protocol.BuildInterfaceCommand(protocol.InterfaceGetStatus, 0),
		protocol.BuildInterfaceCommand(protocol.InterfaceStartReceiver, 1),
	}
	for _, w := range want {
		got, err := r.ReadFrame()
		require.NoError(t, err)
		assert.Equal(t, w, got)
	}

	require.NoError(t, c.Close())
	assert.True(t, rwc.closed)
}

func TestConn_InitializeCancelled(t *testing.T) {
	c := NewConn(&rwcBuffer{}, "test")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, c.Initialize(ctx), context.Canceled)
}

func TestDial_TCP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_, _ = conn.Write([]byte{0x03, 0x03, 0x16, 0x05})
	}()

	addr := "tcp://" + ln.Addr().String()
	c, err := Dial(context.Background(), addr, Options{})
	require.NoError(t, err)
	defer c.Close()
	assert.Equal(t, addr, c.Addr())

	frame, err := c.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x03, 0x03, 0x16, 0x05}, frame)
}

func TestDial_Serial(t *testing.T) {
	var gotName string
	var gotBaud int
	prev := openSerial
	openSerial = func(name string, baud int) (io.ReadWriteCloser, error) {
		gotName, gotBaud = name, baud
		return &rwcBuffer{}, nil
	}
	t.Cleanup(func() { openSerial = prev })

	_, err := Dial(context.Background(), "/dev/ttyUSB0", Options{})
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB0", gotName)
	assert.Equal(t, DefaultBaudRate, gotBaud)

	_, err = Dial(context.Background(), "serial:///dev/ttyACM1", Options{BaudRate: 9600})
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyACM1", gotName)
	assert.Equal(t, 9600, gotBaud)
}

func TestDial_Errors(t *testing.T) {
	_, err := Dial(context.Background(), "udp://127.0.0.1:1", Options{})
	assert.ErrorContains(t, err, "unsupported gateway address scheme")

	_, err = Dial(context.Background(), "tcp://", Options{})
	assert.ErrorContains(t, err, "empty gateway address")
}
