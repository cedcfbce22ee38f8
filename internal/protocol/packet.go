package protocol

import "fmt"

// PacketType is the top-level wire discriminator (frame byte 1)
type PacketType byte

// Packet types of the RFXtrx serial protocol
const (
	PacketTypeInterfaceControl              PacketType = 0x00
	PacketTypeInterfaceMessage              PacketType = 0x01
	PacketTypeTransmitterMessage            PacketType = 0x02
	PacketTypeUndecodedRF                   PacketType = 0x03
	PacketTypeLighting1                     PacketType = 0x10
	PacketTypeLighting2                     PacketType = 0x11
	PacketTypeLighting3                     PacketType = 0x12
	PacketTypeLighting4                     PacketType = 0x13
	PacketTypeLighting5                     PacketType = 0x14
	PacketTypeLighting6                     PacketType = 0x15
	PacketTypeChime                         PacketType = 0x16
	PacketTypeFan                           PacketType = 0x17
	PacketTypeCurtain1                      PacketType = 0x18
	PacketTypeBlinds1                       PacketType = 0x19
	PacketTypeRFY                           PacketType = 0x1A
	PacketTypeHomeConfort                   PacketType = 0x1B
	PacketTypeSecurity1                     PacketType = 0x20
	PacketTypeSecurity2                     PacketType = 0x21
	PacketTypeCamera1                       PacketType = 0x28
	PacketTypeRemoteControl                 PacketType = 0x30
	PacketTypeThermostat1                   PacketType = 0x40
	PacketTypeThermostat2                   PacketType = 0x41
	PacketTypeThermostat3                   PacketType = 0x42
	PacketTypeBBQ1                          PacketType = 0x4E
	PacketTypeTemperatureRain               PacketType = 0x4F
	PacketTypeTemperature                   PacketType = 0x50
	PacketTypeHumidity                      PacketType = 0x51
	PacketTypeTemperatureHumidity           PacketType = 0x52
	PacketTypeBarometric                    PacketType = 0x53
	PacketTypeTemperatureHumidityBarometric PacketType = 0x54
	PacketTypeRain                          PacketType = 0x55
	PacketTypeWind                          PacketType = 0x56
	PacketTypeUV                            PacketType = 0x57
	PacketTypeDateTime                      PacketType = 0x58
	PacketTypeCurrent                       PacketType = 0x59
	PacketTypeEnergy                        PacketType = 0x5A
	PacketTypeCurrentEnergy                 PacketType = 0x5B
	PacketTypePower                         PacketType = 0x5C
	PacketTypeWeight                        PacketType = 0x5D
	PacketTypeGas                           PacketType = 0x5E
	PacketTypeWater                         PacketType = 0x5F
	PacketTypeRFXSensor                     PacketType = 0x70
	PacketTypeRFXMeter                      PacketType = 0x71
	PacketTypeFS20                          PacketType = 0x72
	PacketTypeIOLines                       PacketType = 0x80
	PacketTypeUnknown                       PacketType = 0xFF
)

var packetTypeNames = map[PacketType]string{
	PacketTypeInterfaceControl:              "INTERFACE_CONTROL",
	PacketTypeInterfaceMessage:              "INTERFACE_MESSAGE",
	PacketTypeTransmitterMessage:            "TRANSMITTER_MESSAGE",
	PacketTypeUndecodedRF:                   "UNDECODED_RF_MESSAGE",
	PacketTypeLighting1:                     "LIGHTING1",
	PacketTypeLighting2:                     "LIGHTING2",
	PacketTypeLighting3:                     "LIGHTING3",
	PacketTypeLighting4:                     "LIGHTING4",
	PacketTypeLighting5:                     "LIGHTING5",
	PacketTypeLighting6:                     "LIGHTING6",
	PacketTypeChime:                         "CHIME",
	PacketTypeFan:                           "FAN",
	PacketTypeCurtain1:                      "CURTAIN1",
	PacketTypeBlinds1:                       "BLINDS1",
	PacketTypeRFY:                           "RFY",
	PacketTypeHomeConfort:                   "HOME_CONFORT",
	PacketTypeSecurity1:                     "SECURITY1",
	PacketTypeSecurity2:                     "SECURITY2",
	PacketTypeCamera1:                       "CAMERA1",
	PacketTypeRemoteControl:                 "REMOTE_CONTROL",
	PacketTypeThermostat1:                   "THERMOSTAT1",
	PacketTypeThermostat2:                   "THERMOSTAT2",
	PacketTypeThermostat3:                   "THERMOSTAT3",
	PacketTypeBBQ1:                          "BBQ1",
	PacketTypeTemperatureRain:               "TEMPERATURE_RAIN",
	PacketTypeTemperature:                   "TEMPERATURE",
	PacketTypeHumidity:                      "HUMIDITY",
	PacketTypeTemperatureHumidity:           "TEMPERATURE_HUMIDITY",
	PacketTypeBarometric:                    "BAROMETRIC",
	PacketTypeTemperatureHumidityBarometric: "TEMPERATURE_HUMIDITY_BAROMETRIC",
	PacketTypeRain:                          "RAIN",
	PacketTypeWind:                          "WIND",
	PacketTypeUV:                            "UV",
	PacketTypeDateTime:                      "DATE_TIME",
	PacketTypeCurrent:                       "CURRENT",
	PacketTypeEnergy:                        "ENERGY",
	PacketTypeCurrentEnergy:                 "CURRENT_ENERGY",
	PacketTypePower:                         "POWER",
	PacketTypeWeight:                        "WEIGHT",
	PacketTypeGas:                           "GAS",
	PacketTypeWater:                         "WATER",
	PacketTypeRFXSensor:                     "RFXSENSOR",
	PacketTypeRFXMeter:                      "RFXMETER",
	PacketTypeFS20:                          "FS20",
	PacketTypeIOLines:                       "IO_LINES",
	PacketTypeUnknown:                       "UNKNOWN",
}

// String returns the canonical name of the packet type, or a hex
// placeholder for bytes outside the catalogue
func (p PacketType) String() string {
	if name, ok := packetTypeNames[p]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(0x%02X)", byte(p))
}

// Known reports whether the packet type is part of the catalogue
func (p PacketType) Known() bool {
	_, ok := packetTypeNames[p]
	return ok && p != PacketTypeUnknown
}

// ParsePacketTypeName resolves a canonical packet type name (case-sensitive)
func ParsePacketTypeName(name string) (PacketType, error) {
	for pt, n := range packetTypeNames {
		if n == name {
			return pt, nil
		}
	}
	return PacketTypeUnknown, newError(ErrTypeUnknownName, PacketTypeUnknown, "packet type %q", name)
}
