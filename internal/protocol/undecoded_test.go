package protocol

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeUndecoded(t *testing.T, data []byte) *UndecodedRFMessage {
	t.Helper()
	f, err := ParseFrame(data)
	require.NoError(t, err)
	msg, err := DecodeUndecodedRF(f)
	require.NoError(t, err)
	return msg
}

func TestDecodeUndecodedRF_UnrecognisedSubType(t *testing.T) {
	// Packet type byte 0x20 is not inspected once the frame is routed here.
	data := []byte{0x0B, 0x20, 0xFF, 0x07, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07}
	msg := decodeUndecoded(t, data)

	assert.Equal(t, UndecodedRFUnknown, msg.SubType)
	assert.Equal(t, byte(0x07), msg.SequenceNumber)
	assert.Equal(t, "UNDECODED", msg.DeviceID())
	assert.Equal(t, []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07}, msg.Data)

	state, err := msg.ToState(SelectorRawData)
	require.NoError(t, err)
	text, ok := state.Text()
	require.True(t, ok)
	assert.Equal(t, "0B20FF0701020304050607", text)
}

func TestUndecodedRF_RawDataIsWholeFrame(t *testing.T) {
	// RawData covers the envelope as well as the payload.
	msg := decodeUndecoded(t, []byte{0x0B, 0x20, 0x00, 0x01, 0x02, 0x03, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f})

	state, err := msg.ToState(SelectorRawData)
	require.NoError(t, err)
	assert.Equal(t, KindString, state.Kind())
	assert.Equal(t, "0B2000010203"+"0A0B0C0D0E0F", state.String())
}

func TestUndecodedRF_RoutedThroughCodec(t *testing.T) {
	msg, err := Decode([]byte{0x07, 0x03, 0x0B, 0x42, 0xDE, 0xAD, 0xBE, 0xEF})
	require.NoError(t, err)

	m, ok := msg.(*UndecodedRFMessage)
	require.True(t, ok)
	assert.Equal(t, UndecodedRFVisonic, m.SubType)
	assert.Equal(t, byte(0x42), m.Envelope().SequenceNumber)
	assert.Equal(t, PacketTypeUndecodedRF, m.Envelope().PacketType)
}

func TestUndecodedRFCodec_RejectsOtherPacketTypes(t *testing.T) {
	f, err := ParseFrame([]byte{0x0B, 0x20, 0xFF, 0x07, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07})
	require.NoError(t, err)

	_, err = UndecodedRFCodec{}.Decode(f)
	assert.True(t, errors.Is(err, ErrPacketTypeMismatch))
}

func TestUndecodedRF_EncodeDecodeNamedSubTypes(t *testing.T) {
	for _, st := range undecodedRFSubTypes.values() {
		if !st.Known() {
			continue
		}
		t.Run(st.String(), func(t *testing.T) {
			data := []byte{0x03, byte(PacketTypeUndecodedRF), byte(st), 0x2A}
			msg := decodeUndecoded(t, data)
			assert.Equal(t, st, msg.SubType)
			assert.Equal(t, data, msg.Encode())
		})
	}
}

func TestUndecodedRFSubType_UnknownBytes(t *testing.T) {
	known := 0
	for b := 0; b < 256; b++ {
		st := UndecodedRFSubTypeFromByte(byte(b))
		if b <= int(UndecodedRFHomeConfort) {
			known++
			assert.Equal(t, byte(b), st.Byte())
			assert.True(t, st.Known())
			continue
		}
		assert.Equal(t, UndecodedRFUnknown, st, "byte 0x%02X", b)
		assert.Equal(t, SubTypeUnknownOrdinal, st.Byte(), "byte 0x%02X", b)
		assert.False(t, st.Known())
	}
	assert.Equal(t, 23, known)
}

func TestUndecodedRF_EncodeUnknownIsLossy(t *testing.T) {
	msg := decodeUndecoded(t, []byte{0x03, 0x03, 0x7F, 0x01})
	assert.Equal(t, UndecodedRFUnknown, msg.SubType)
	assert.Equal(t, []byte{0x03, 0x03, 0xFF, 0x01}, msg.Encode())
}

func TestUndecodedRF_EncodeConstructed(t *testing.T) {
	msg := &UndecodedRFMessage{SubType: UndecodedRFAD, SequenceNumber: 9}
	assert.Equal(t, []byte{0x03, 0x03, 0x05, 0x09}, msg.Encode())

	// Nothing was received, so there is no raw data to report.
	state, err := msg.ToState(SelectorRawData)
	require.NoError(t, err)
	assert.True(t, state.IsUndef())
}

func TestUndecodedRF_UnsupportedSelectors(t *testing.T) {
	msg := decodeUndecoded(t, []byte{0x04, 0x03, 0x00, 0x01, 0x99})

	for _, sel := range Selectors() {
		if sel == SelectorRawData {
			continue
		}
		_, err := msg.ToState(sel)
		assert.True(t, IsUnsupportedSelector(err), "selector %s: %v", sel, err)
	}

	_, err := msg.ToState(SelectorRawData.As(KindNumber))
	assert.True(t, IsKindMismatch(err))
}

func TestUndecodedRFCodec_FromStateUnsupported(t *testing.T) {
	codec := UndecodedRFCodec{}
	inputs := []struct {
		sel   ValueSelector
		value State
		st    SubType
	}{
		{SelectorRawData, StringState("0B20"), UndecodedRFAC},
		{SelectorCommand, BooleanState(true), UndecodedRFUnknown},
		{SelectorDimmingLevel, PercentState(50), nil},
		{ValueSelector{Name: "Bogus"}, Undef, Lighting2AC},
	}
	for _, in := range inputs {
		msg, err := codec.FromState(in.sel, "UNDECODED", in.st, in.value, 1)
		assert.Nil(t, msg)
		assert.True(t, IsUnsupportedOperation(err), "selector %s: %v", in.sel, err)
	}
}

func TestUndecodedRFCodec_ParseSubTypeName(t *testing.T) {
	codec := UndecodedRFCodec{}

	st, err := codec.ParseSubTypeName("UNKNOWN")
	require.NoError(t, err)
	assert.Equal(t, UndecodedRFUnknown, st)

	st, err = codec.ParseSubTypeName("HOME_CONFORT")
	require.NoError(t, err)
	assert.Equal(t, UndecodedRFHomeConfort, st)

	for _, name := range []string{"NOT_A_REAL_NAME", "home_confort", ""} {
		_, err = codec.ParseSubTypeName(name)
		assert.True(t, errors.Is(err, ErrUnknownSubTypeName), "name %q", name)
	}
}

func TestUndecodedRF_String(t *testing.T) {
	msg := decodeUndecoded(t, []byte{0x05, 0x03, 0x02, 0x01, 0xAA, 0xBB})
	out := msg.String()
	assert.Contains(t, out, "Raw data = 05030201AABB")
	assert.Contains(t, out, "Packet type = UNDECODED_RF_MESSAGE")
	assert.Contains(t, out, "Sub type = ATI")
	assert.Contains(t, out, "Id = UNDECODED")
	assert.Contains(t, out, "Data = AABB")
}

func TestUndecodedRF_ConcurrentDecode(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(seq byte) {
			defer wg.Done()
			data := []byte{0x05, 0x03, seq % 30, seq, 0x01, 0x02}
			msg, err := Decode(data)
			if !assert.NoError(t, err) {
				return
			}
			state, err := msg.ToState(SelectorRawData)
			assert.NoError(t, err)
			assert.Equal(t, hexUpper(data), state.String())
		}(byte(i))
	}
	wg.Wait()
}

func BenchmarkDecodeUndecodedRF(b *testing.B) {
	data := []byte{0x0B, 0x03, 0x08, 0x07, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = Decode(data)
	}
}

func TestUndecodedRF_TruncatedFrameKeepsDeliveredBytes(t *testing.T) {
	// The length byte announces 11 bytes; 10 arrived.
	msg, err := Decode([]byte{0x0B, 0x03, 0xFF, 0x07, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07})
	require.NoError(t, err)

	m, ok := msg.(*UndecodedRFMessage)
	require.True(t, ok)
	assert.Equal(t, UndecodedRFUnknown, m.SubType)
	assert.Equal(t, "UNDECODED", m.DeviceID())

	state, err := m.ToState(SelectorRawData)
	require.NoError(t, err)
	assert.Equal(t, StringState("0B03FF0701020304050607"), state)
}
