package bridge

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/muurk/rfxcom/internal/protocol"
)

// Event types sent to subscribers
const (
	EventHello   = "hello"   // First event on every connection
	EventState   = "state"   // A bound item changed
	EventMessage = "message" // A message from a device with no bindings
	EventResult  = "result"  // Reply to a command
)

// Event origins
const (
	OriginGateway = "gateway"
	OriginCommand = "command"
)

// Event is the JSON envelope of everything the bridge sends to a subscriber
type Event struct {
	Type       string                    `json:"type"`
	Timestamp  time.Time                 `json:"timestamp"`
	Subscriber string                    `json:"subscriber,omitempty"`
	Version    string                    `json:"version,omitempty"`
	Origin     string                    `json:"origin,omitempty"`
	Item       string                    `json:"item,omitempty"`
	Device     string                    `json:"device,omitempty"`
	PacketType string                    `json:"packet_type,omitempty"`
	SubType    string                    `json:"sub_type,omitempty"`
	Selector   string                    `json:"selector,omitempty"`
	State      *protocol.State           `json:"state,omitempty"`
	States     map[string]protocol.State `json:"states,omitempty"`
}

// Command is a subscriber request to send a device command. Either Item, or
// Device with PacketType, SubType and Selector, addresses the target.
//
// Value is a kind-tagged state object, or a bare JSON string, number or
// boolean interpreted with the selector's kind.
type Command struct {
	ID         string          `json:"id,omitempty"`
	Item       string          `json:"item,omitempty"`
	Device     string          `json:"device,omitempty"`
	PacketType string          `json:"packet_type,omitempty"`
	SubType    string          `json:"sub_type,omitempty"`
	Selector   string          `json:"selector,omitempty"`
	Value      json.RawMessage `json:"value"`
}

// Result is the reply to a Command
type Result struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	OK        bool   `json:"ok"`
	Frame     string `json:"frame,omitempty"` // Hex of the frame written to the gateway
	Error     string `json:"error,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`
}

// parseValue converts a command value to a state of the selector's kind
func parseValue(sel protocol.ValueSelector, raw json.RawMessage) (protocol.State, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return protocol.Undef, fmt.Errorf("missing value")
	}

	switch raw[0] {
	case '{':
		var st protocol.State
		if err := json.Unmarshal(raw, &st); err != nil {
			return protocol.Undef, err
		}
		return st, nil
	case '"':
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return protocol.Undef, err
		}
		return protocol.ParseState(sel.Kind, text)
	case 't', 'f':
		var flag bool
		if err := json.Unmarshal(raw, &flag); err != nil {
			return protocol.Undef, err
		}
		return protocol.BooleanState(flag), nil
	default:
		var n float64
		if err := json.Unmarshal(raw, &n); err != nil {
			return protocol.Undef, err
		}
		if sel.Kind == protocol.KindPercent {
			return protocol.ParseState(protocol.KindPercent, string(raw))
		}
		return protocol.NumberState(n), nil
	}
}
