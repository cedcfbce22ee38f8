package protocol

import (
	"fmt"
	"slices"
)

// UndecodedRFSubType identifies the RF protocol the gateway recognised but
// could not decode further
type UndecodedRFSubType byte

const (
	UndecodedRFAC             UndecodedRFSubType = 0x00
	UndecodedRFARC            UndecodedRFSubType = 0x01
	UndecodedRFATI            UndecodedRFSubType = 0x02
	UndecodedRFHidekiUPM      UndecodedRFSubType = 0x03
	UndecodedRFLaCrosseViking UndecodedRFSubType = 0x04
	UndecodedRFAD             UndecodedRFSubType = 0x05
	UndecodedRFMertik         UndecodedRFSubType = 0x06
	UndecodedRFOregon1        UndecodedRFSubType = 0x07
	UndecodedRFOregon2        UndecodedRFSubType = 0x08
	UndecodedRFOregon3        UndecodedRFSubType = 0x09
	UndecodedRFProGuard       UndecodedRFSubType = 0x0A
	UndecodedRFVisonic        UndecodedRFSubType = 0x0B
	UndecodedRFNEC            UndecodedRFSubType = 0x0C
	UndecodedRFFS20           UndecodedRFSubType = 0x0D
	UndecodedRFReserved0E     UndecodedRFSubType = 0x0E
	UndecodedRFBlinds         UndecodedRFSubType = 0x0F
	UndecodedRFRubicson       UndecodedRFSubType = 0x10
	UndecodedRFAE             UndecodedRFSubType = 0x11
	UndecodedRFFineOffset     UndecodedRFSubType = 0x12
	UndecodedRFRGB            UndecodedRFSubType = 0x13
	UndecodedRFRTS            UndecodedRFSubType = 0x14
	UndecodedRFSelectPlus     UndecodedRFSubType = 0x15
	UndecodedRFHomeConfort    UndecodedRFSubType = 0x16
	UndecodedRFUnknown        UndecodedRFSubType = 0xFF
)

var undecodedRFSubTypes = newSubTypeTable(PacketTypeUndecodedRF, map[UndecodedRFSubType]string{
	UndecodedRFAC:             "AC",
	UndecodedRFARC:            "ARC",
	UndecodedRFATI:            "ATI",
	UndecodedRFHidekiUPM:      "HIDEKI_UPM",
	UndecodedRFLaCrosseViking: "LACROSSE_VIKING",
	UndecodedRFAD:             "AD",
	UndecodedRFMertik:         "MERTIK",
	UndecodedRFOregon1:        "OREGON1",
	UndecodedRFOregon2:        "OREGON2",
	UndecodedRFOregon3:        "OREGON3",
	UndecodedRFProGuard:       "PROGUARD",
	UndecodedRFVisonic:        "VISONIC",
	UndecodedRFNEC:            "NEC",
	UndecodedRFFS20:           "FS20",
	UndecodedRFReserved0E:     "RESERVED_0E",
	UndecodedRFBlinds:         "BLINDS",
	UndecodedRFRubicson:       "RUBICSON",
	UndecodedRFAE:             "AE",
	UndecodedRFFineOffset:     "FINE_OFFSET",
	UndecodedRFRGB:            "RGB",
	UndecodedRFRTS:            "RTS",
	UndecodedRFSelectPlus:     "SELECT_PLUS",
	UndecodedRFHomeConfort:    "HOME_CONFORT",
})

// UndecodedRFSubTypeFromByte never fails: unnamed bytes become UndecodedRFUnknown
func UndecodedRFSubTypeFromByte(b byte) UndecodedRFSubType {
	return undecodedRFSubTypes.fromByte(b)
}

// ParseUndecodedRFSubType resolves an exact canonical name, "UNKNOWN" included
func ParseUndecodedRFSubType(name string) (UndecodedRFSubType, error) {
	return undecodedRFSubTypes.parse(name)
}

func (s UndecodedRFSubType) Byte() byte             { return undecodedRFSubTypes.toByte(s) }
func (s UndecodedRFSubType) String() string         { return undecodedRFSubTypes.name(s) }
func (s UndecodedRFSubType) Known() bool            { return undecodedRFSubTypes.known(s) }
func (s UndecodedRFSubType) PacketType() PacketType { return PacketTypeUndecodedRF }

// undecodedDeviceID is the fixed identity of every undecoded message
const undecodedDeviceID = "UNDECODED"

var undecodedRFSelectors = []ValueSelector{SelectorRawData}

// UndecodedRFMessage carries RF data the gateway received but did not decode.
// The payload is opaque.
type UndecodedRFMessage struct {
	SubType        UndecodedRFSubType
	SequenceNumber byte
	Data           []byte // Payload bytes after the envelope
	Raw            []byte // Full received frame, nil for constructed messages
}

// DecodeUndecodedRF builds a message from a frame already routed to this
// packet type. The packet type byte itself is not inspected.
func DecodeUndecodedRF(f *Frame) (*UndecodedRFMessage, error) {
	if f == nil {
		return nil, newError(ErrTypeMalformedFrame, PacketTypeUndecodedRF, "nil frame")
	}
	return &UndecodedRFMessage{
		SubType:        UndecodedRFSubTypeFromByte(f.SubType),
		SequenceNumber: f.SequenceNumber,
		Data:           append([]byte(nil), f.Payload...),
		Raw:            append([]byte(nil), f.Raw...),
	}, nil
}

func (m *UndecodedRFMessage) PacketType() PacketType { return PacketTypeUndecodedRF }

func (m *UndecodedRFMessage) Envelope() Envelope {
	return Envelope{PacketType: PacketTypeUndecodedRF, SubType: m.SubType, SequenceNumber: m.SequenceNumber}
}

func (m *UndecodedRFMessage) DeviceID() string { return undecodedDeviceID }

// Encode emits the envelope only. The type carries no encodable payload,
// so the length byte is always EnvelopeSize.
func (m *UndecodedRFMessage) Encode() []byte {
	return encodeFrame(PacketTypeUndecodedRF, m.SubType.Byte(), m.SequenceNumber, nil)
}

func (m *UndecodedRFMessage) SupportedSelectors() []ValueSelector {
	return slices.Clone(undecodedRFSelectors)
}

// ToState supports RawData only. The value is the uppercase hex of the
// whole received frame, envelope included. A message that was not decoded
// from a frame has no raw data and yields Undef.
func (m *UndecodedRFMessage) ToState(sel ValueSelector) (State, error) {
	if err := checkSelector(PacketTypeUndecodedRF, undecodedRFSelectors, sel); err != nil {
		return Undef, err
	}
	if m.Raw == nil {
		return Undef, nil
	}
	return StringState(hexUpper(m.Raw)), nil
}

func (m *UndecodedRFMessage) String() string {
	return fmt.Sprintf("%s\n - Id = %s\n - Data = %s",
		describe(m.Raw, m.Envelope()), m.DeviceID(), hexUpper(m.Data))
}

// UndecodedRFCodec is the codec for PacketTypeUndecodedRF
type UndecodedRFCodec struct{}

func (UndecodedRFCodec) PacketType() PacketType { return PacketTypeUndecodedRF }

func (UndecodedRFCodec) Decode(f *Frame) (Message, error) {
	if err := checkRoute(PacketTypeUndecodedRF, f); err != nil {
		return nil, err
	}
	msg, err := DecodeUndecodedRF(f)
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// FromState always fails: undecoded messages are informational only
func (UndecodedRFCodec) FromState(sel ValueSelector, _ string, _ SubType, _ State, _ byte) (Message, error) {
	return nil, newError(ErrTypeUnsupportedOperation, PacketTypeUndecodedRF, "%s cannot be commanded (selector %s)", PacketTypeUndecodedRF, sel.Name)
}

func (UndecodedRFCodec) SubTypeFromByte(b byte) SubType {
	return UndecodedRFSubTypeFromByte(b)
}

func (UndecodedRFCodec) ParseSubTypeName(name string) (SubType, error) {
	st, err := ParseUndecodedRFSubType(name)
	if err != nil {
		return nil, err
	}
	return st, nil
}

func (UndecodedRFCodec) SubTypes() []SubType {
	return subTypeList(undecodedRFSubTypes.values())
}

func (UndecodedRFCodec) SupportedSelectors() []ValueSelector {
	return slices.Clone(undecodedRFSelectors)
}
