package protocol

// InterfaceCommand is the command byte of an interface control frame
type InterfaceCommand byte

const (
	InterfaceReset         InterfaceCommand = 0x00
	InterfaceGetStatus     InterfaceCommand = 0x02
	InterfaceSetMode       InterfaceCommand = 0x03
	InterfaceSave          InterfaceCommand = 0x06
	InterfaceStartReceiver InterfaceCommand = 0x07
)

// interfaceControlPayloadSize is the fixed payload after the command byte
const interfaceControlPayloadSize = 10

// BuildInterfaceCommand encodes a control frame addressed to the gateway
// itself. The reset command must be followed by a pause of at least 50ms
// before the next frame, during which the gateway discards input.
func BuildInterfaceCommand(cmd InterfaceCommand, seq byte) []byte {
	payload := make([]byte, interfaceControlPayloadSize)
	payload[0] = byte(cmd)
	return encodeFrame(PacketTypeInterfaceControl, 0x00, seq, payload)
}
