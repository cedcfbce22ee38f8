// Package protocol implements the RFXtrx gateway binary message codec.
//
// This package parses length-delimited frames received from an RFXCOM
// transceiver into typed messages, re-encodes typed messages into the exact
// wire bytes the gateway expects, and converts message fields to and from
// kind-tagged states for a host automation framework.
//
// # Frame Format
//
// Every frame shares the same envelope:
//   - Length: 1 byte, count of the bytes that follow it
//   - Packet type: 1 byte, selects the device protocol family
//   - Sub type: 1 byte, selects a variant within the packet type
//   - Sequence number: 1 byte, wraps at 256
//   - Payload: length-3 bytes, layout owned by the packet type
//
// # Sub Types
//
// Each packet type has a closed sub type table. Conversion from a wire byte
// never fails: bytes that are not in the table decode to UNKNOWN (ordinal
// 255). Re-encoding UNKNOWN always emits 255, so the original byte is lost.
// Frames too short for their envelope or payload fail with ErrMalformedFrame.
//
// # Usage Example - Decoding
//
//	msg, err := protocol.Decode(frameBytes)
//	if err != nil {
//	    return err
//	}
//	state, err := msg.ToState(protocol.SelectorTemperature)
//
// # Usage Example - Commanding
//
//	codec, _ := protocol.CodecFor(protocol.PacketTypeLighting2)
//	st, _ := codec.ParseSubTypeName("AC")
//	msg, err := codec.FromState(protocol.SelectorCommand, "1193046.10", st,
//	    protocol.BooleanState(true), seq)
//	if err != nil {
//	    return err
//	}
//	_, err = w.Write(msg.Encode())
//
// # Thread Safety
//
// Codecs and sub type tables are immutable after package initialisation.
// Every function in this package is safe for concurrent use.
package protocol
