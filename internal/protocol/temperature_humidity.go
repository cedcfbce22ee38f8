package protocol

import (
	"encoding/binary"
	"fmt"
	"slices"
	"strconv"
)

// TemperatureHumiditySubType identifies the combined sensor model family
type TemperatureHumiditySubType byte

const (
	TemperatureHumidity1       TemperatureHumiditySubType = 0x01
	TemperatureHumidity2       TemperatureHumiditySubType = 0x02
	TemperatureHumidity3       TemperatureHumiditySubType = 0x03
	TemperatureHumidity4       TemperatureHumiditySubType = 0x04
	TemperatureHumidity5       TemperatureHumiditySubType = 0x05
	TemperatureHumidity6       TemperatureHumiditySubType = 0x06
	TemperatureHumidity7       TemperatureHumiditySubType = 0x07
	TemperatureHumidity8       TemperatureHumiditySubType = 0x08
	TemperatureHumidity9       TemperatureHumiditySubType = 0x09
	TemperatureHumidity10      TemperatureHumiditySubType = 0x0A
	TemperatureHumidity11      TemperatureHumiditySubType = 0x0B
	TemperatureHumidity12      TemperatureHumiditySubType = 0x0C
	TemperatureHumidity13      TemperatureHumiditySubType = 0x0D
	TemperatureHumidity14      TemperatureHumiditySubType = 0x0E
	TemperatureHumidityUnknown TemperatureHumiditySubType = 0xFF
)

var temperatureHumiditySubTypes = newSubTypeTable(PacketTypeTemperatureHumidity, map[TemperatureHumiditySubType]string{
	TemperatureHumidity1:  "TH1",
	TemperatureHumidity2:  "TH2",
	TemperatureHumidity3:  "TH3",
	TemperatureHumidity4:  "TH4",
	TemperatureHumidity5:  "TH5",
	TemperatureHumidity6:  "TH6",
	TemperatureHumidity7:  "TH7",
	TemperatureHumidity8:  "TH8",
	TemperatureHumidity9:  "TH9",
	TemperatureHumidity10: "TH10",
	TemperatureHumidity11: "TH11",
	TemperatureHumidity12: "TH12",
	TemperatureHumidity13: "TH13",
	TemperatureHumidity14: "TH14",
})

func TemperatureHumiditySubTypeFromByte(b byte) TemperatureHumiditySubType {
	return temperatureHumiditySubTypes.fromByte(b)
}

func ParseTemperatureHumiditySubType(name string) (TemperatureHumiditySubType, error) {
	return temperatureHumiditySubTypes.parse(name)
}

func (s TemperatureHumiditySubType) Byte() byte     { return temperatureHumiditySubTypes.toByte(s) }
func (s TemperatureHumiditySubType) String() string { return temperatureHumiditySubTypes.name(s) }
func (s TemperatureHumiditySubType) Known() bool    { return temperatureHumiditySubTypes.known(s) }
func (s TemperatureHumiditySubType) PacketType() PacketType {
	return PacketTypeTemperatureHumidity
}

// HumidityStatus is the comfort classification reported with humidity
type HumidityStatus byte

const (
	HumidityNormal  HumidityStatus = 0x00
	HumidityComfort HumidityStatus = 0x01
	HumidityDry     HumidityStatus = 0x02
	HumidityWet     HumidityStatus = 0x03
)

// String returns the status name. Bytes outside the table read as UNKNOWN
// but are kept as received.
func (h HumidityStatus) String() string {
	switch h {
	case HumidityNormal:
		return "NORMAL"
	case HumidityComfort:
		return "COMFORT"
	case HumidityDry:
		return "DRY"
	case HumidityWet:
		return "WET"
	default:
		return unknownSubTypeName
	}
}

// temperatureHumidityPayloadSize covers id (2), temperature (2), humidity,
// humidity status and battery/signal
const temperatureHumidityPayloadSize = 7

var temperatureHumiditySelectors = []ValueSelector{
	SelectorTemperature,
	SelectorHumidity,
	SelectorHumidityStatus,
	SelectorSignalLevel,
	SelectorBatteryLevel,
}

// TemperatureHumidityMessage is a combined temperature and humidity reading
type TemperatureHumidityMessage struct {
	SubType        TemperatureHumiditySubType
	SequenceNumber byte
	SensorID       uint16
	Temperature    float64
	Humidity       byte // Percent relative humidity
	HumidityStatus HumidityStatus
	SignalLevel    byte
	BatteryLevel   byte
	Raw            []byte
}

// DecodeTemperatureHumidity builds a message from a frame already routed to this packet type
func DecodeTemperatureHumidity(f *Frame) (*TemperatureHumidityMessage, error) {
	if err := malformedIfShort(f, temperatureHumidityPayloadSize); err != nil {
		return nil, err
	}
	p := f.Payload
	signal, battery := decodeSignalBattery(p[6])
	return &TemperatureHumidityMessage{
		SubType:        TemperatureHumiditySubTypeFromByte(f.SubType),
		SequenceNumber: f.SequenceNumber,
		SensorID:       binary.BigEndian.Uint16(p[0:2]),
		Temperature:    decodeTemperature(p[2], p[3]),
		Humidity:       p[4],
		HumidityStatus: HumidityStatus(p[5]),
		SignalLevel:    signal,
		BatteryLevel:   battery,
		Raw:            append([]byte(nil), f.Raw...),
	}, nil
}

func (m *TemperatureHumidityMessage) PacketType() PacketType {
	return PacketTypeTemperatureHumidity
}

func (m *TemperatureHumidityMessage) Envelope() Envelope {
	return Envelope{PacketType: PacketTypeTemperatureHumidity, SubType: m.SubType, SequenceNumber: m.SequenceNumber}
}

func (m *TemperatureHumidityMessage) DeviceID() string {
	return strconv.Itoa(int(m.SensorID))
}

func (m *TemperatureHumidityMessage) Encode() []byte {
	payload := make([]byte, temperatureHumidityPayloadSize)
	binary.BigEndian.PutUint16(payload[0:2], m.SensorID)
	payload[2], payload[3] = encodeTemperature(m.Temperature)
	payload[4] = m.Humidity
	payload[5] = byte(m.HumidityStatus)
	payload[6] = encodeSignalBattery(m.SignalLevel, m.BatteryLevel)
	return encodeFrame(PacketTypeTemperatureHumidity, m.SubType.Byte(), m.SequenceNumber, payload)
}

func (m *TemperatureHumidityMessage) SupportedSelectors() []ValueSelector {
	return slices.Clone(temperatureHumiditySelectors)
}

func (m *TemperatureHumidityMessage) ToState(sel ValueSelector) (State, error) {
	if err := checkSelector(PacketTypeTemperatureHumidity, temperatureHumiditySelectors, sel); err != nil {
		return Undef, err
	}
	switch sel.Name {
	case SelectorTemperature.Name:
		return NumberState(m.Temperature), nil
	case SelectorHumidity.Name:
		return NumberState(float64(m.Humidity)), nil
	case SelectorHumidityStatus.Name:
		return StringState(m.HumidityStatus.String()), nil
	case SelectorSignalLevel.Name:
		return NumberState(float64(m.SignalLevel)), nil
	default:
		return NumberState(float64(m.BatteryLevel)), nil
	}
}

func (m *TemperatureHumidityMessage) String() string {
	return fmt.Sprintf("%s\n - Id = %s\n - Temperature = %.1f\n - Humidity = %d\n - Humidity status = %s\n - Signal level = %d\n - Battery level = %d",
		describe(m.Raw, m.Envelope()), m.DeviceID(), m.Temperature, m.Humidity, m.HumidityStatus, m.SignalLevel, m.BatteryLevel)
}

// TemperatureHumidityCodec is the codec for PacketTypeTemperatureHumidity
type TemperatureHumidityCodec struct{}

func (TemperatureHumidityCodec) PacketType() PacketType { return PacketTypeTemperatureHumidity }

func (TemperatureHumidityCodec) Decode(f *Frame) (Message, error) {
	if err := checkRoute(PacketTypeTemperatureHumidity, f); err != nil {
		return nil, err
	}
	msg, err := DecodeTemperatureHumidity(f)
	if err != nil {
		return nil, err
	}
	return msg, nil
}

func (TemperatureHumidityCodec) FromState(sel ValueSelector, _ string, _ SubType, _ State, _ byte) (Message, error) {
	return nil, readOnly(PacketTypeTemperatureHumidity, sel)
}

func (TemperatureHumidityCodec) SubTypeFromByte(b byte) SubType {
	return TemperatureHumiditySubTypeFromByte(b)
}

func (TemperatureHumidityCodec) ParseSubTypeName(name string) (SubType, error) {
	st, err := ParseTemperatureHumiditySubType(name)
	if err != nil {
		return nil, err
	}
	return st, nil
}

func (TemperatureHumidityCodec) SubTypes() []SubType {
	return subTypeList(temperatureHumiditySubTypes.values())
}

func (TemperatureHumidityCodec) SupportedSelectors() []ValueSelector {
	return slices.Clone(temperatureHumiditySelectors)
}
