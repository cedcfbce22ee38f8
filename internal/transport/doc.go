// Package transport moves whole RFXtrx frames between the gateway and the
// codec.
//
// The gateway speaks a byte stream. Each frame starts with a length byte
// counting the bytes that follow it. Reader splits the stream into frames,
// Writer serializes outbound frames, and Dial opens the stream over a local
// serial device or over TCP to a LAN gateway or ser2net.
//
// Frames leave this package complete: a frame cut short by the stream
// ending is reported as io.ErrUnexpectedEOF, never delivered.
//
// Addresses accepted by Dial:
//
//	/dev/ttyUSB0            serial device, 38400 8N1
//	serial:///dev/ttyUSB0   same, explicit scheme
//	tcp://192.168.1.20:10001
//
// Failed writes are not retried.
package transport
