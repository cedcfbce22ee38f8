// Package capture records raw gateway frames to CBOR files and reads them back.
//
// A capture file is a plain sequence of CBOR records, one per frame, so an
// interrupted capture stays readable up to the last complete record and new
// sessions can append to an existing file.
package capture

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Direction indicates which way a frame travelled
type Direction uint8

const (
	// DirectionReceived is a frame read from the gateway
	DirectionReceived Direction = 0
	// DirectionSent is a frame written to the gateway
	DirectionSent Direction = 1
)

// String returns the direction name
func (d Direction) String() string {
	switch d {
	case DirectionReceived:
		return "received"
	case DirectionSent:
		return "sent"
	default:
		return fmt.Sprintf("Direction(%d)", d)
	}
}

// Record is one captured frame. CBOR encoding uses integer keys.
type Record struct {
	Timestamp time.Time `cbor:"1,keyasint"`
	Direction Direction `cbor:"2,keyasint"`
	Source    string    `cbor:"3,keyasint,omitempty"` // Gateway address
	Frame     []byte    `cbor:"4,keyasint"`           // Whole frame, length byte included
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeRFC3339Nano,
	}
	encMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create capture CBOR encoder mode: %v", err))
	}

	decOpts := cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyQuiet,
		IndefLength: cbor.IndefLengthAllowed,
	}
	decMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create capture CBOR decoder mode: %v", err))
	}
}

// Recorder appends records to a capture file. It is safe for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	file    *os.File
	encoder *cbor.Encoder
	source  string
	now     func() time.Time
	count   int
	closed  bool
}

// FileName returns the capture file name for a session started at t
func FileName(t time.Time) string {
	return fmt.Sprintf("capture-%s.cbor", t.Format("20060102-150405"))
}

// Create opens a new capture file in dir, named after the current time.
// source is stored with every record.
func Create(dir string, source string) (*Recorder, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating capture directory: %w", err)
	}
	return Open(filepath.Join(dir, FileName(time.Now())), source)
}

// Open appends to the capture file at path, creating it if needed
func Open(path string, source string) (*Recorder, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening capture file: %w", err)
	}
	return &Recorder{
		file:    f,
		encoder: encMode.NewEncoder(f),
		source:  source,
		now:     time.Now,
	}, nil
}

// Path returns the capture file path
func (r *Recorder) Path() string {
	return r.file.Name()
}

// Record appends one frame. Calls after Close are ignored.
func (r *Recorder) Record(dir Direction, frame []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}

	rec := Record{
		Timestamp: r.now(),
		Direction: dir,
		Source:    r.source,
		Frame:     frame,
	}
	if err := r.encoder.Encode(rec); err != nil {
		return fmt.Errorf("writing capture record: %w", err)
	}
	r.count++
	return nil
}

// Count returns the number of records written by this recorder
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Close closes the capture file. It is safe to call Close multiple times.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	return r.file.Close()
}

// Filter selects records. Zero fields match everything.
type Filter struct {
	Direction *Direction
	// PacketType matches frame byte 1
	PacketType *byte
	Since      time.Time
}

func (f *Filter) matches(rec Record) bool {
	if f.Direction != nil && rec.Direction != *f.Direction {
		return false
	}
	if f.PacketType != nil && (len(rec.Frame) < 2 || rec.Frame[1] != *f.PacketType) {
		return false
	}
	if !f.Since.IsZero() && rec.Timestamp.Before(f.Since) {
		return false
	}
	return true
}

// Reader streams records from a capture
type Reader struct {
	closer  io.Closer
	decoder *cbor.Decoder
	filter  Filter
}

// NewReader reads records from r
func NewReader(r io.Reader, filter Filter) *Reader {
	rd := &Reader{decoder: decMode.NewDecoder(r), filter: filter}
	if c, ok := r.(io.Closer); ok {
		rd.closer = c
	}
	return rd
}

// OpenReader opens the capture file at path
func OpenReader(path string, filter Filter) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening capture file: %w", err)
	}
	return NewReader(f, filter), nil
}

// Next returns the next matching record, or io.EOF at the end of the capture.
// A record cut off by an interrupted capture is reported as io.EOF.
func (r *Reader) Next() (Record, error) {
	for {
		var rec Record
		if err := r.decoder.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return Record{}, io.EOF
			}
			return Record{}, fmt.Errorf("reading capture record: %w", err)
		}
		if r.filter.matches(rec) {
			return rec, nil
		}
	}
}

// Close closes the underlying file, if any
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}
