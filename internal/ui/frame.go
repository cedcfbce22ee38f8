package ui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/muurk/rfxcom/internal/protocol"
)

// FrameSummary is the one-line view of a frame used by the monitor and by
// plain replay output.
type FrameSummary struct {
	PacketType string
	SubType    string
	Sequence   byte
	Device     string
	States     []Detail
	Hex        string
	Err        error
}

// SummarizeFrame decodes raw and flattens the result. Undecodable frames
// still report whatever the envelope reveals, with Err set.
func SummarizeFrame(raw []byte) FrameSummary {
	s := FrameSummary{Hex: fmt.Sprintf("%X", raw)}

	msg, err := protocol.Decode(raw)
	if err != nil {
		s.Err = err
		if f, ferr := protocol.ParseFrame(raw); ferr == nil {
			s.PacketType = f.PacketType.String()
			s.SubType = fmt.Sprintf("0x%02X", f.SubType)
			s.Sequence = f.SequenceNumber
		}
		return s
	}

	env := msg.Envelope()
	s.PacketType = env.PacketType.String()
	s.SubType = env.SubType.String()
	s.Sequence = env.SequenceNumber
	s.Device = msg.DeviceID()
	s.States = MessageStates(msg)
	return s
}

// MessageStates reads every supported selector of msg. Selectors that fail
// to convert are omitted.
func MessageStates(msg protocol.Message) []Detail {
	var states []Detail
	for _, sel := range msg.SupportedSelectors() {
		st, err := msg.ToState(sel)
		if err != nil {
			continue
		}
		states = append(states, Detail{Key: sel.Name, Value: st.String()})
	}
	return states
}

// StatesLine joins the states as "Key=Value" pairs
func (s FrameSummary) StatesLine() string {
	if s.Err != nil {
		return "error: " + s.Err.Error()
	}
	parts := make([]string, 0, len(s.States))
	for _, d := range s.States {
		parts = append(parts, d.Key+"="+d.Value)
	}
	return strings.Join(parts, " ")
}

// String renders the summary on a single line
func (s FrameSummary) String() string {
	pt := s.PacketType
	if pt == "" {
		pt = "?"
	}
	return fmt.Sprintf("%-22s %-16s %-14s %s", pt, s.SubType, s.Device, s.StatesLine())
}

// MessageResult builds the result box printed by decode and encode
func MessageResult(msg protocol.Message) *Result {
	env := msg.Envelope()
	raw := msg.Encode()

	r := NewSuccessResult(fmt.Sprintf("%s / %s", env.PacketType, env.SubType))
	r.AddDetail("Device", msg.DeviceID())
	r.AddDetail("Sequence", fmt.Sprintf("%d", env.SequenceNumber))
	r.AddDetail("Frame", HexStyle.Render(fmt.Sprintf("%X", raw)))
	r.Details = append(r.Details, MessageStates(msg)...)
	return r
}

// DecodeFailureResult builds the failure box for a frame that did not decode
func DecodeFailureResult(raw []byte, err error) *Result {
	var tips []string
	switch {
	case protocol.IsMalformedFrame(err):
		tips = append(tips,
			"The first byte must equal the number of bytes that follow it",
			"Frames are at least four bytes: length, packet type, sub type, sequence",
		)
	case errors.Is(err, protocol.ErrUnsupportedPacketType):
		tips = append(tips, "Run 'rfxcom subtypes' to list the packet types this build decodes")
	}
	r := NewFailureResult("Frame did not decode", err, tips...)
	if len(raw) > 0 {
		r.AddDetail("Frame", fmt.Sprintf("%X", raw))
	}
	return r
}
