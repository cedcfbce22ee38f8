package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"

	"github.com/muurk/rfxcom/internal/logging"
	"github.com/muurk/rfxcom/internal/protocol"
)

const (
	// DefaultBaudRate is the fixed line speed of RFXtrx USB transceivers
	DefaultBaudRate = 38400

	// DefaultDialTimeout bounds TCP connection setup
	DefaultDialTimeout = 10 * time.Second

	// resetSettle is how long the gateway ignores input after a reset
	resetSettle = time.Second
)

// Reader splits a gateway byte stream into whole frames
type Reader struct {
	br      *bufio.Reader
	skipped atomic.Uint64
}

// NewReader wraps r. Reads are buffered, so r must not be read elsewhere.
func NewReader(r io.Reader) *Reader {
	return &Reader{br: bufio.NewReaderSize(r, protocol.MaxFrameSize)}
}

// ReadFrame blocks until a complete frame is available and returns it with
// its length byte. Zero length bytes are line noise and are skipped. Frames
// with a length byte below the envelope size are still returned whole; the
// codec rejects them.
func (r *Reader) ReadFrame() ([]byte, error) {
	for {
		length, err := r.br.ReadByte()
		if err != nil {
			return nil, err
		}
		if length == 0 {
			r.skipped.Add(1)
			continue
		}

		frame := make([]byte, 1+int(length))
		frame[0] = length
		if n, err := io.ReadFull(r.br, frame[1:]); err != nil {
			logging.LogRawBytes("Partial frame", frame[:1+n])
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return nil, fmt.Errorf("reading %d byte frame: %w", length, err)
		}
		return frame, nil
	}
}

// Skipped returns the number of noise bytes discarded so far
func (r *Reader) Skipped() uint64 {
	return r.skipped.Load()
}

// Writer serializes outbound frames. It is safe for concurrent use; each
// frame is written with a single Write call.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteFrame writes one encoded frame. The length byte must match the
// frame size.
func (w *Writer) WriteFrame(frame []byte) error {
	if len(frame) == 0 || int(frame[0])+1 != len(frame) {
		return fmt.Errorf("refusing to write %d bytes: length byte does not describe the frame", len(frame))
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.w.Write(frame); err != nil {
		return fmt.Errorf("writing frame: %w", err)
	}
	return nil
}

// Sequence hands out wrapping 8-bit sequence numbers for outbound frames
type Sequence struct {
	n atomic.Uint32
}

// Next returns the next sequence number, starting at 0 and wrapping at 256
func (s *Sequence) Next() byte {
	return byte(s.n.Add(1) - 1)
}

// Options tune Dial
type Options struct {
	BaudRate    int           // Serial line speed, DefaultBaudRate when zero
	DialTimeout time.Duration // TCP connect timeout, DefaultDialTimeout when zero
}

// Conn is an open gateway stream
type Conn struct {
	*Reader
	*Writer

	rwc    io.ReadWriteCloser
	addr   string
	seq    Sequence
	settle time.Duration
}

// NewConn wraps an already open stream
func NewConn(rwc io.ReadWriteCloser, addr string) *Conn {
	return &Conn{
		Reader: NewReader(rwc),
		Writer: NewWriter(rwc),
		rwc:    rwc,
		addr:   addr,
		settle: resetSettle,
	}
}

// Addr returns the address the connection was opened with
func (c *Conn) Addr() string { return c.addr }

// NextSequence returns the sequence number for the next outbound frame
func (c *Conn) NextSequence() byte { return c.seq.Next() }

// Close closes the underlying stream. A blocked ReadFrame returns an error.
func (c *Conn) Close() error {
	logging.LogConnection(c.addr, "gateway_closed")
	return c.rwc.Close()
}

type inputFlusher interface {
	ResetInputBuffer() error
}

// Initialize runs the gateway start-up sequence: reset, settle, get status
// and start receiver. The status reply arrives through ReadFrame.
func (c *Conn) Initialize(ctx context.Context) error {
	if err := c.WriteFrame(protocol.BuildInterfaceCommand(protocol.InterfaceReset, 0)); err != nil {
		return fmt.Errorf("reset: %w", err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.settle):
	}

	// Serial ports can drop whatever arrived while the gateway was resetting
	if f, ok := c.rwc.(inputFlusher); ok {
		if err := f.ResetInputBuffer(); err != nil {
			logging.Warn("Failed to flush gateway input", zap.String("addr", c.addr), zap.Error(err))
		}
	}

	for _, cmd := range []protocol.InterfaceCommand{protocol.InterfaceGetStatus, protocol.InterfaceStartReceiver} {
		frame := protocol.BuildInterfaceCommand(cmd, c.NextSequence())
		logging.LogFrame("sent", frame)
		if err := c.WriteFrame(frame); err != nil {
			return fmt.Errorf("interface command 0x%02X: %w", byte(cmd), err)
		}
	}
	return nil
}

// openSerial is replaced in tests
var openSerial = func(name string, baud int) (io.ReadWriteCloser, error) {
	port, err := serial.Open(name, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, err
	}
	return port, nil
}

// Dial opens a gateway stream. addr is a serial device path, optionally
// prefixed with serial://, or tcp://host:port.
func Dial(ctx context.Context, addr string, opts Options) (*Conn, error) {
	if opts.BaudRate == 0 {
		opts.BaudRate = DefaultBaudRate
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = DefaultDialTimeout
	}

	scheme, target := splitAddr(addr)
	if target == "" {
		return nil, fmt.Errorf("empty gateway address %q", addr)
	}

	switch scheme {
	case "tcp":
		d := net.Dialer{Timeout: opts.DialTimeout}
		nc, err := d.DialContext(ctx, "tcp", target)
		if err != nil {
			return nil, fmt.Errorf("connecting to gateway %s: %w", target, err)
		}
		logging.LogConnection(target, "gateway_connected")
		return NewConn(nc, addr), nil

	case "serial":
		port, err := openSerial(target, opts.BaudRate)
		if err != nil {
			return nil, fmt.Errorf("opening serial port %s: %w", target, err)
		}
		logging.Info("Gateway serial port opened",
			zap.String("port", target),
			zap.Int("baud_rate", opts.BaudRate),
		)
		return NewConn(port, addr), nil

	default:
		return nil, fmt.Errorf("unsupported gateway address scheme %q", scheme)
	}
}

// splitAddr returns the scheme (serial when absent) and the target
func splitAddr(addr string) (scheme, target string) {
	if s, rest, ok := strings.Cut(addr, "://"); ok {
		return s, rest
	}
	return "serial", addr
}

// SerialPorts lists the serial devices present on this machine
func SerialPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("listing serial ports: %w", err)
	}
	return ports, nil
}
