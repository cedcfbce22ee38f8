package protocol

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ValueKind is the abstract type of a value exchanged with the host
type ValueKind int

const (
	KindUndefined ValueKind = iota
	KindString
	KindNumber
	KindBoolean
	KindPercent
)

var kindNames = map[ValueKind]string{
	KindUndefined: "undefined",
	KindString:    "string",
	KindNumber:    "number",
	KindBoolean:   "boolean",
	KindPercent:   "percent",
}

func (k ValueKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ValueKind(%d)", int(k))
}

// ParseValueKind resolves a kind name such as "number" or "boolean"
func ParseValueKind(name string) (ValueKind, error) {
	for k, n := range kindNames {
		if n == name {
			return k, nil
		}
	}
	return KindUndefined, newError(ErrTypeUnknownName, PacketTypeUnknown, "value kind %q", name)
}

// State is a kind-tagged value. The zero value is Undef.
type State struct {
	kind   ValueKind
	text   string
	number float64
	flag   bool
}

// Undef is the explicit "no value available" state. It is not an error.
var Undef = State{}

func StringState(s string) State {
	return State{kind: KindString, text: s}
}

func NumberState(v float64) State {
	return State{kind: KindNumber, number: v}
}

func BooleanState(v bool) State {
	return State{kind: KindBoolean, flag: v}
}

// PercentState clamps v into 0..100
func PercentState(v float64) State {
	return State{kind: KindPercent, number: math.Max(0, math.Min(100, v))}
}

func (s State) Kind() ValueKind { return s.kind }

func (s State) IsUndef() bool { return s.kind == KindUndefined }

// Text returns the value of a string state
func (s State) Text() (string, bool) {
	return s.text, s.kind == KindString
}

// Number returns the value of a number or percent state
func (s State) Number() (float64, bool) {
	return s.number, s.kind == KindNumber || s.kind == KindPercent
}

// Bool returns the value of a boolean state
func (s State) Bool() (bool, bool) {
	return s.flag, s.kind == KindBoolean
}

// String renders the state the way the host framework displays it
func (s State) String() string {
	switch s.kind {
	case KindString:
		return s.text
	case KindNumber, KindPercent:
		return strconv.FormatFloat(s.number, 'f', -1, 64)
	case KindBoolean:
		if s.flag {
			return "ON"
		}
		return "OFF"
	default:
		return "UNDEF"
	}
}

// ParseState builds a state of the given kind from text.
// Booleans accept ON/OFF, true/false and 1/0 in any case.
func ParseState(kind ValueKind, text string) (State, error) {
	text = strings.TrimSpace(text)
	switch kind {
	case KindString:
		return StringState(text), nil
	case KindNumber:
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return Undef, newError(ErrTypeInvalidValue, PacketTypeUnknown, "%q is not a number", text)
		}
		return numericState(kind, v)
	case KindPercent:
		v, err := strconv.ParseFloat(strings.TrimSuffix(text, "%"), 64)
		if err != nil {
			return Undef, newError(ErrTypeInvalidValue, PacketTypeUnknown, "%q is not a percentage", text)
		}
		return numericState(kind, v)
	case KindBoolean:
		switch strings.ToUpper(text) {
		case "ON", "TRUE", "1":
			return BooleanState(true), nil
		case "OFF", "FALSE", "0":
			return BooleanState(false), nil
		}
		return Undef, newError(ErrTypeInvalidValue, PacketTypeUnknown, "%q is not ON or OFF", text)
	default:
		return Undef, newError(ErrTypeInvalidValue, PacketTypeUnknown, "cannot parse a %s state", kind)
	}
}

type stateJSON struct {
	Kind  string `json:"kind"`
	Value any    `json:"value,omitempty"`
}

// MarshalJSON encodes the state as {"kind": ..., "value": ...}
func (s State) MarshalJSON() ([]byte, error) {
	out := stateJSON{Kind: s.kind.String()}
	switch s.kind {
	case KindString:
		out.Value = s.text
	case KindNumber, KindPercent:
		out.Value = s.number
	case KindBoolean:
		out.Value = s.flag
	}
	return json.Marshal(out)
}

// numericState rejects NaN and infinities, and percentages outside 0-100
func numericState(kind ValueKind, v float64) (State, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Undef, newError(ErrTypeInvalidValue, PacketTypeUnknown, "%v is not a finite %s", v, kind)
	}
	if kind == KindPercent {
		if v < 0 || v > 100 {
			return Undef, newError(ErrTypeInvalidValue, PacketTypeUnknown, "%v is not a percentage", v)
		}
		return PercentState(v), nil
	}
	return NumberState(v), nil
}

// UnmarshalJSON accepts the MarshalJSON form. A value may also be given as
// text, in which case it is parsed with ParseState.
func (s *State) UnmarshalJSON(data []byte) error {
	var in struct {
		Kind  string          `json:"kind"`
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	kind, err := ParseValueKind(in.Kind)
	if err != nil {
		return err
	}
	if kind == KindUndefined {
		*s = Undef
		return nil
	}

	var text string
	if err := json.Unmarshal(in.Value, &text); err == nil {
		parsed, err := ParseState(kind, text)
		if err != nil {
			return err
		}
		*s = parsed
		return nil
	}

	switch kind {
	case KindNumber, KindPercent:
		var v float64
		if err := json.Unmarshal(in.Value, &v); err != nil {
			return fmt.Errorf("state value: %w", err)
		}
		st, err := numericState(kind, v)
		if err != nil {
			return err
		}
		*s = st
	case KindBoolean:
		var v bool
		if err := json.Unmarshal(in.Value, &v); err != nil {
			return fmt.Errorf("state value: %w", err)
		}
		*s = BooleanState(v)
	default:
		return fmt.Errorf("state value: unexpected %s payload", kind)
	}
	return nil
}
