package protocol

import (
	"encoding/hex"
	"fmt"
	"slices"
	"strings"
)

// Envelope holds the fields every packet type shares
type Envelope struct {
	PacketType     PacketType
	SubType        SubType
	SequenceNumber byte
}

// Message is a decoded (or caller-built) message of one packet type.
//
// Messages are owned by the pipeline invocation that created them and are
// never mutated after decode.
type Message interface {
	// PacketType returns the packet type the message belongs to
	PacketType() PacketType
	// Envelope returns the shared envelope fields
	Envelope() Envelope
	// DeviceID derives the correlation key from addressable payload fields
	DeviceID() string
	// Encode serializes the message to wire bytes, length byte included
	Encode() []byte
	// SupportedSelectors lists the selectors ToState accepts
	SupportedSelectors() []ValueSelector
	// ToState converts a decoded field into a kind-tagged state
	ToState(sel ValueSelector) (State, error)
	// String returns a multi-line debug rendering
	String() string
}

// Codec converts frames of one packet type to messages and builds command
// messages from host values. Codecs hold no mutable state and are safe for
// concurrent use.
type Codec interface {
	PacketType() PacketType
	// Decode parses a frame whose packet type byte matches the codec
	Decode(f *Frame) (Message, error)
	// FromState builds a command message. Read-only packet types always
	// fail with ErrUnsupportedOperation.
	FromState(sel ValueSelector, id string, subType SubType, value State, seq byte) (Message, error)
	// SubTypeFromByte maps a wire byte to a sub type, UNKNOWN when unnamed
	SubTypeFromByte(b byte) SubType
	// ParseSubTypeName resolves an exact canonical sub type name
	ParseSubTypeName(name string) (SubType, error)
	// SubTypes lists the named sub types followed by UNKNOWN
	SubTypes() []SubType
	SupportedSelectors() []ValueSelector
}

var codecs = func() map[PacketType]Codec {
	m := make(map[PacketType]Codec)
	for _, c := range []Codec{
		UndecodedRFCodec{},
		Lighting2Codec{},
		TemperatureCodec{},
		TemperatureHumidityCodec{},
	} {
		m[c.PacketType()] = c
	}
	return m
}()

// CodecFor returns the codec registered for a packet type
func CodecFor(pt PacketType) (Codec, error) {
	c, ok := codecs[pt]
	if !ok {
		return nil, newError(ErrTypeUnsupportedPacketType, pt, "no codec for %s", pt)
	}
	return c, nil
}

// Codecs returns every registered codec ordered by packet type byte
func Codecs() []Codec {
	out := make([]Codec, 0, len(codecs))
	for _, c := range codecs {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b Codec) int {
		return int(a.PacketType()) - int(b.PacketType())
	})
	return out
}

// Decode parses raw frame bytes and dispatches once on the packet type byte
func Decode(data []byte) (Message, error) {
	f, err := ParseFrame(data)
	if err != nil {
		return nil, err
	}
	return DecodeFrame(f)
}

// DecodeFrame dispatches an already parsed frame to its codec
func DecodeFrame(f *Frame) (Message, error) {
	c, err := CodecFor(f.PacketType)
	if err != nil {
		return nil, err
	}
	return c.Decode(f)
}

// checkRoute enforces the codec precondition that the frame belongs to pt
func checkRoute(pt PacketType, f *Frame) error {
	if f == nil {
		return newError(ErrTypeMalformedFrame, pt, "nil frame")
	}
	if f.PacketType != pt {
		return newError(ErrTypePacketTypeMismatch, pt, "frame of type %s routed to %s codec", f.PacketType, pt)
	}
	return nil
}

// subTypeOf narrows a SubType to the concrete type of one packet type
func subTypeOf[T SubType](pt PacketType, st SubType) (T, error) {
	var zero T
	if st == nil {
		return zero, newError(ErrTypeSubTypeMismatch, pt, "missing sub type")
	}
	v, ok := st.(T)
	if !ok {
		return zero, newError(ErrTypeSubTypeMismatch, pt, "%s sub type %s used with %s", st.PacketType(), st, pt)
	}
	return v, nil
}

// subTypeList converts a concrete sub type slice to the interface form
func subTypeList[T SubType](values []T) []SubType {
	out := make([]SubType, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func hexUpper(b []byte) string {
	return strings.ToUpper(hex.EncodeToString(b))
}

// describe renders the common header of Message.String
func describe(raw []byte, env Envelope) string {
	var b strings.Builder
	if raw != nil {
		fmt.Fprintf(&b, "Raw data = %s\n", hexUpper(raw))
	}
	fmt.Fprintf(&b, " - Packet type = %s\n", env.PacketType)
	fmt.Fprintf(&b, " - Seq number = %d\n", env.SequenceNumber)
	fmt.Fprintf(&b, " - Sub type = %s", env.SubType)
	return b.String()
}
