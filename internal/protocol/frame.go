package protocol

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Frame layout constants
const (
	// EnvelopeSize is the minimum value of the length byte:
	// packet type + sub type + sequence number
	EnvelopeSize = 3

	// HeaderSize is the number of bytes before the payload, length byte included
	HeaderSize = 1 + EnvelopeSize

	// MaxFrameSize is the largest frame the one-byte length prefix can describe
	MaxFrameSize = 1 + 0xFF
)

// Frame is one complete length-delimited message as delivered by the transport.
//
// Wire layout:
//
//	[0]     length          Count of bytes that follow this byte
//	[1]     packet type     Top-level discriminator
//	[2]     sub type        Variant ordinal within the packet type
//	[3]     sequence number Wraps at 256, managed by the sender
//	[4..N]  payload         Packet-type-specific, length-3 bytes
type Frame struct {
	Length         byte
	PacketType     PacketType
	SubType        byte
	SequenceNumber byte
	Payload        []byte
	Raw            []byte // Original frame bytes, length byte included
}

// ParseFrame splits raw bytes into the shared envelope and the payload.
//
// It fails with ErrMalformedFrame when data is shorter than the header or the
// length byte announces fewer than EnvelopeSize bytes. A frame holding fewer
// bytes than announced keeps what was delivered; codecs that need a longer
// payload reject it. Bytes past the announced length are ignored.
func ParseFrame(data []byte) (*Frame, error) {
	if len(data) < HeaderSize {
		return nil, newError(ErrTypeMalformedFrame, PacketTypeUnknown,
			"frame too short: %d bytes (minimum %d)", len(data), HeaderSize)
	}

	length := int(data[0])
	if length < EnvelopeSize {
		return nil, newError(ErrTypeMalformedFrame, PacketTypeUnknown,
			"length byte %d smaller than envelope (%d)", length, EnvelopeSize)
	}

	raw := data[:min(len(data), 1+length)]
	return &Frame{
		Length:         data[0],
		PacketType:     PacketType(data[1]),
		SubType:        data[2],
		SequenceNumber: data[3],
		Payload:        raw[HeaderSize:],
		Raw:            raw,
	}, nil
}

// ParseHexFrame parses a frame written as hex text. Whitespace and
// colons between byte pairs are accepted.
func ParseHexFrame(text string) (*Frame, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r', ':':
			return -1
		}
		return r
	}, text)
	data, err := hex.DecodeString(cleaned)
	if err != nil {
		return nil, newError(ErrTypeMalformedFrame, PacketTypeUnknown, "invalid hex: %v", err)
	}
	return ParseFrame(data)
}

// encodeFrame builds the wire bytes for an envelope and payload.
// The length byte is derived from the payload and never taken from the caller.
func encodeFrame(pt PacketType, subType byte, seq byte, payload []byte) []byte {
	data := make([]byte, HeaderSize+len(payload))
	data[0] = byte(EnvelopeSize + len(payload))
	data[1] = byte(pt)
	data[2] = subType
	data[3] = seq
	copy(data[HeaderSize:], payload)
	return data
}

// Bytes re-serializes the frame from its fields
func (f *Frame) Bytes() []byte {
	return encodeFrame(f.PacketType, f.SubType, f.SequenceNumber, f.Payload)
}

// Hex returns the uppercase hex encoding of the original frame bytes
func (f *Frame) Hex() string {
	return strings.ToUpper(hex.EncodeToString(f.Raw))
}

// String returns a debug representation of the frame
func (f *Frame) String() string {
	return fmt.Sprintf("Frame{len=%d, type=%s, subtype=0x%02X, seq=%d, payload=%d bytes}",
		f.Length, f.PacketType, f.SubType, f.SequenceNumber, len(f.Payload))
}

// malformedIfShort reports ErrMalformedFrame when the payload is shorter
// than the fixed layout of a packet type
func malformedIfShort(f *Frame, minLen int) error {
	if f == nil {
		return newError(ErrTypeMalformedFrame, PacketTypeUnknown, "nil frame")
	}
	if len(f.Payload) < minLen {
		return newError(ErrTypeMalformedFrame, f.PacketType,
			"payload too short: %d bytes (minimum %d)", len(f.Payload), minLen)
	}
	return nil
}
