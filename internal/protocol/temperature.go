package protocol

import (
	"encoding/binary"
	"fmt"
	"math"
	"slices"
	"strconv"
)

// TemperatureSubType identifies the temperature sensor model family
type TemperatureSubType byte

const (
	Temperature1       TemperatureSubType = 0x01
	Temperature2       TemperatureSubType = 0x02
	Temperature3       TemperatureSubType = 0x03
	Temperature4       TemperatureSubType = 0x04
	Temperature5       TemperatureSubType = 0x05
	Temperature6       TemperatureSubType = 0x06
	Temperature7       TemperatureSubType = 0x07
	Temperature8       TemperatureSubType = 0x08
	Temperature9       TemperatureSubType = 0x09
	Temperature10      TemperatureSubType = 0x0A
	Temperature11      TemperatureSubType = 0x0B
	TemperatureUnknown TemperatureSubType = 0xFF
)

var temperatureSubTypes = newSubTypeTable(PacketTypeTemperature, map[TemperatureSubType]string{
	Temperature1:  "TEMP1",
	Temperature2:  "TEMP2",
	Temperature3:  "TEMP3",
	Temperature4:  "TEMP4",
	Temperature5:  "TEMP5",
	Temperature6:  "TEMP6",
	Temperature7:  "TEMP7",
	Temperature8:  "TEMP8",
	Temperature9:  "TEMP9",
	Temperature10: "TEMP10",
	Temperature11: "TEMP11",
})

func TemperatureSubTypeFromByte(b byte) TemperatureSubType { return temperatureSubTypes.fromByte(b) }

func ParseTemperatureSubType(name string) (TemperatureSubType, error) {
	return temperatureSubTypes.parse(name)
}

func (s TemperatureSubType) Byte() byte             { return temperatureSubTypes.toByte(s) }
func (s TemperatureSubType) String() string         { return temperatureSubTypes.name(s) }
func (s TemperatureSubType) Known() bool            { return temperatureSubTypes.known(s) }
func (s TemperatureSubType) PacketType() PacketType { return PacketTypeTemperature }

// temperaturePayloadSize covers id (2), temperature (2) and battery/signal
const temperaturePayloadSize = 5

var temperatureSelectors = []ValueSelector{
	SelectorTemperature,
	SelectorSignalLevel,
	SelectorBatteryLevel,
}

// TemperatureMessage is a temperature-only sensor reading
type TemperatureMessage struct {
	SubType        TemperatureSubType
	SequenceNumber byte
	SensorID       uint16
	Temperature    float64 // Degrees Celsius, one decimal
	SignalLevel    byte    // 0..15
	BatteryLevel   byte    // 0..15
	Raw            []byte
}

// DecodeTemperature builds a message from a frame already routed to this packet type
func DecodeTemperature(f *Frame) (*TemperatureMessage, error) {
	if err := malformedIfShort(f, temperaturePayloadSize); err != nil {
		return nil, err
	}
	p := f.Payload
	signal, battery := decodeSignalBattery(p[4])
	return &TemperatureMessage{
		SubType:        TemperatureSubTypeFromByte(f.SubType),
		SequenceNumber: f.SequenceNumber,
		SensorID:       binary.BigEndian.Uint16(p[0:2]),
		Temperature:    decodeTemperature(p[2], p[3]),
		SignalLevel:    signal,
		BatteryLevel:   battery,
		Raw:            append([]byte(nil), f.Raw...),
	}, nil
}

func (m *TemperatureMessage) PacketType() PacketType { return PacketTypeTemperature }

func (m *TemperatureMessage) Envelope() Envelope {
	return Envelope{PacketType: PacketTypeTemperature, SubType: m.SubType, SequenceNumber: m.SequenceNumber}
}

// DeviceID is the decimal sensor id
func (m *TemperatureMessage) DeviceID() string {
	return strconv.Itoa(int(m.SensorID))
}

func (m *TemperatureMessage) Encode() []byte {
	payload := make([]byte, temperaturePayloadSize)
	binary.BigEndian.PutUint16(payload[0:2], m.SensorID)
	payload[2], payload[3] = encodeTemperature(m.Temperature)
	payload[4] = encodeSignalBattery(m.SignalLevel, m.BatteryLevel)
	return encodeFrame(PacketTypeTemperature, m.SubType.Byte(), m.SequenceNumber, payload)
}

func (m *TemperatureMessage) SupportedSelectors() []ValueSelector {
	return slices.Clone(temperatureSelectors)
}

func (m *TemperatureMessage) ToState(sel ValueSelector) (State, error) {
	if err := checkSelector(PacketTypeTemperature, temperatureSelectors, sel); err != nil {
		return Undef, err
	}
	switch sel.Name {
	case SelectorTemperature.Name:
		return NumberState(m.Temperature), nil
	case SelectorSignalLevel.Name:
		return NumberState(float64(m.SignalLevel)), nil
	default:
		return NumberState(float64(m.BatteryLevel)), nil
	}
}

func (m *TemperatureMessage) String() string {
	return fmt.Sprintf("%s\n - Id = %s\n - Temperature = %.1f\n - Signal level = %d\n - Battery level = %d",
		describe(m.Raw, m.Envelope()), m.DeviceID(), m.Temperature, m.SignalLevel, m.BatteryLevel)
}

// TemperatureCodec is the codec for PacketTypeTemperature
type TemperatureCodec struct{}

func (TemperatureCodec) PacketType() PacketType { return PacketTypeTemperature }

func (TemperatureCodec) Decode(f *Frame) (Message, error) {
	if err := checkRoute(PacketTypeTemperature, f); err != nil {
		return nil, err
	}
	msg, err := DecodeTemperature(f)
	if err != nil {
		return nil, err
	}
	return msg, nil
}

func (TemperatureCodec) FromState(sel ValueSelector, _ string, _ SubType, _ State, _ byte) (Message, error) {
	return nil, readOnly(PacketTypeTemperature, sel)
}

func (TemperatureCodec) SubTypeFromByte(b byte) SubType { return TemperatureSubTypeFromByte(b) }

func (TemperatureCodec) ParseSubTypeName(name string) (SubType, error) {
	st, err := ParseTemperatureSubType(name)
	if err != nil {
		return nil, err
	}
	return st, nil
}

func (TemperatureCodec) SubTypes() []SubType { return subTypeList(temperatureSubTypes.values()) }

func (TemperatureCodec) SupportedSelectors() []ValueSelector {
	return slices.Clone(temperatureSelectors)
}

// decodeTemperature reads a 15-bit magnitude in tenths of a degree with the
// sign in bit 7 of the high byte. A negative zero is kept as -0.0 so that
// re-encoding is byte exact.
func decodeTemperature(hi, lo byte) float64 {
	v := float64(uint16(hi&0x7F)<<8|uint16(lo)) / 10
	if hi&0x80 != 0 {
		return math.Copysign(v, -1)
	}
	return v
}

func encodeTemperature(t float64) (hi, lo byte) {
	tenths := math.Round(math.Abs(t) * 10)
	if tenths > 0x7FFF {
		tenths = 0x7FFF
	}
	raw := uint16(tenths)
	hi = byte(raw >> 8)
	lo = byte(raw)
	if math.Signbit(t) {
		hi |= 0x80
	}
	return hi, lo
}

// decodeSignalBattery splits the trailing sensor byte: signal in the high
// nibble, battery in the low nibble
func decodeSignalBattery(b byte) (signal, battery byte) {
	return b >> 4, b & 0x0F
}

func encodeSignalBattery(signal, battery byte) byte {
	return (signal&0x0F)<<4 | battery&0x0F
}

func readOnly(pt PacketType, sel ValueSelector) error {
	return newError(ErrTypeUnsupportedOperation, pt, "%s is a read-only sensor (selector %s)", pt, sel.Name)
}
