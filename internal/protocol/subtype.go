package protocol

import "slices"

// SubTypeUnknownOrdinal is the reserved wire ordinal every UNKNOWN sub type encodes to
const SubTypeUnknownOrdinal byte = 0xFF

const unknownSubTypeName = "UNKNOWN"

// SubType is a protocol variant within one packet type.
//
// Each packet type declares its own small integer type backed by a fixed
// ordinal table. Conversion from a wire byte is total: bytes missing from the
// table become UNKNOWN instead of failing, so firmware that introduces new
// variants keeps decoding.
type SubType interface {
	// Byte returns the wire ordinal (255 for UNKNOWN and any unnamed value)
	Byte() byte
	// String returns the canonical variant name
	String() string
	// Known reports whether the value is a named variant
	Known() bool
	// PacketType returns the packet type the variant belongs to
	PacketType() PacketType
}

// subTypeTable is the immutable ordinal table behind one packet type's
// sub types. It is built once at package init and only read afterwards.
type subTypeTable[T ~byte] struct {
	packetType PacketType
	byOrdinal  map[T]string
	byName     map[string]T
	ordered    []T
}

func newSubTypeTable[T ~byte](pt PacketType, names map[T]string) *subTypeTable[T] {
	t := &subTypeTable[T]{
		packetType: pt,
		byOrdinal:  make(map[T]string, len(names)),
		byName:     make(map[string]T, len(names)+1),
	}
	for v, name := range names {
		if byte(v) == SubTypeUnknownOrdinal {
			continue
		}
		t.byOrdinal[v] = name
		t.byName[name] = v
		t.ordered = append(t.ordered, v)
	}
	slices.Sort(t.ordered)
	t.byName[unknownSubTypeName] = T(SubTypeUnknownOrdinal)
	return t
}

func (t *subTypeTable[T]) fromByte(b byte) T {
	v := T(b)
	if _, ok := t.byOrdinal[v]; ok {
		return v
	}
	return T(SubTypeUnknownOrdinal)
}

func (t *subTypeTable[T]) toByte(v T) byte {
	if _, ok := t.byOrdinal[v]; ok {
		return byte(v)
	}
	return SubTypeUnknownOrdinal
}

func (t *subTypeTable[T]) known(v T) bool {
	_, ok := t.byOrdinal[v]
	return ok
}

func (t *subTypeTable[T]) name(v T) string {
	if name, ok := t.byOrdinal[v]; ok {
		return name
	}
	return unknownSubTypeName
}

func (t *subTypeTable[T]) parse(name string) (T, error) {
	if v, ok := t.byName[name]; ok {
		return v, nil
	}
	return T(SubTypeUnknownOrdinal), newError(ErrTypeUnknownSubTypeName, t.packetType, "%q is not a %s sub type", name, t.packetType)
}

// values returns every named variant in ordinal order followed by UNKNOWN
func (t *subTypeTable[T]) values() []T {
	out := make([]T, 0, len(t.ordered)+1)
	out = append(out, t.ordered...)
	return append(out, T(SubTypeUnknownOrdinal))
}
