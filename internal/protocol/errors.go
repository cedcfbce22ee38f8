package protocol

import (
	"errors"
	"fmt"
)

// ErrorType represents the category of a codec failure
type ErrorType int

const (
	// ErrTypeMalformedFrame indicates a frame shorter than its envelope or
	// than the minimum payload of its packet type
	ErrTypeMalformedFrame ErrorType = iota
	// ErrTypeUnsupportedSelector indicates a selector the message type does not advertise
	ErrTypeUnsupportedSelector
	// ErrTypeKindMismatch indicates a requested or supplied value kind that
	// differs from the kind the message type produces or accepts
	ErrTypeKindMismatch
	// ErrTypeUnsupportedOperation indicates a command requested on a read-only message type
	ErrTypeUnsupportedOperation
	// ErrTypeUnknownSubTypeName indicates a sub type name lookup miss
	ErrTypeUnknownSubTypeName
	// ErrTypeUnsupportedPacketType indicates a packet type with no registered codec
	ErrTypeUnsupportedPacketType
	// ErrTypePacketTypeMismatch indicates a frame routed to the wrong codec
	ErrTypePacketTypeMismatch
	// ErrTypeSubTypeMismatch indicates a sub type belonging to another packet type
	ErrTypeSubTypeMismatch
	// ErrTypeUnknownName indicates a packet type, selector or kind name lookup miss
	ErrTypeUnknownName
	// ErrTypeInvalidValue indicates a command argument that cannot be encoded
	ErrTypeInvalidValue
)

// String returns a human-readable name for the error type
func (et ErrorType) String() string {
	switch et {
	case ErrTypeMalformedFrame:
		return "malformed frame"
	case ErrTypeUnsupportedSelector:
		return "unsupported selector"
	case ErrTypeKindMismatch:
		return "kind mismatch"
	case ErrTypeUnsupportedOperation:
		return "unsupported operation"
	case ErrTypeUnknownSubTypeName:
		return "unknown sub type name"
	case ErrTypeUnsupportedPacketType:
		return "unsupported packet type"
	case ErrTypePacketTypeMismatch:
		return "packet type mismatch"
	case ErrTypeSubTypeMismatch:
		return "sub type mismatch"
	case ErrTypeUnknownName:
		return "unknown name"
	case ErrTypeInvalidValue:
		return "invalid value"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// Error is returned by every failing codec and converter call.
// It never carries state across calls.
type Error struct {
	Type       ErrorType  // Category of failure
	PacketType PacketType // Packet type involved, PacketTypeUnknown when not applicable
	Message    string     // Human-readable detail
}

// Sentinels for errors.Is. They match any *Error of the same Type.
var (
	ErrMalformedFrame        = &Error{Type: ErrTypeMalformedFrame}
	ErrUnsupportedSelector   = &Error{Type: ErrTypeUnsupportedSelector}
	ErrKindMismatch          = &Error{Type: ErrTypeKindMismatch}
	ErrUnsupportedOperation  = &Error{Type: ErrTypeUnsupportedOperation}
	ErrUnknownSubTypeName    = &Error{Type: ErrTypeUnknownSubTypeName}
	ErrUnsupportedPacketType = &Error{Type: ErrTypeUnsupportedPacketType}
	ErrPacketTypeMismatch    = &Error{Type: ErrTypePacketTypeMismatch}
	ErrSubTypeMismatch       = &Error{Type: ErrTypeSubTypeMismatch}
	ErrUnknownName           = &Error{Type: ErrTypeUnknownName}
	ErrInvalidValue          = &Error{Type: ErrTypeInvalidValue}
)

// Error implements the error interface
func (e *Error) Error() string {
	if e.Message == "" {
		return "rfxcom: " + e.Type.String()
	}
	return fmt.Sprintf("rfxcom: %s: %s", e.Type, e.Message)
}

// Is reports whether target is an *Error of the same type
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Type == e.Type
}

func newError(et ErrorType, pt PacketType, format string, args ...any) *Error {
	return &Error{
		Type:       et,
		PacketType: pt,
		Message:    fmt.Sprintf(format, args...),
	}
}

// ErrorTypeOf returns the category of err and whether err is a codec error
func ErrorTypeOf(err error) (ErrorType, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Type, true
	}
	return 0, false
}

// ErrorKind names the category of err for metrics labels and JSON
// replies, "other" for errors that did not come from the codec
func ErrorKind(err error) string {
	if et, ok := ErrorTypeOf(err); ok {
		return et.String()
	}
	return "other"
}

// IsMalformedFrame checks if an error is a malformed frame error
func IsMalformedFrame(err error) bool {
	return errors.Is(err, ErrMalformedFrame)
}

// IsUnsupportedSelector checks if an error is an unsupported selector error
func IsUnsupportedSelector(err error) bool {
	return errors.Is(err, ErrUnsupportedSelector)
}

// IsKindMismatch checks if an error is a kind mismatch error
func IsKindMismatch(err error) bool {
	return errors.Is(err, ErrKindMismatch)
}

// IsUnsupportedOperation checks if an error is an unsupported operation error
func IsUnsupportedOperation(err error) bool {
	return errors.Is(err, ErrUnsupportedOperation)
}
