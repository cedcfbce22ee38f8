package capture

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	temperatureFrame = []byte{0x08, 0x50, 0x01, 0x10, 0xAB, 0x12, 0x00, 0xD7, 0x79}
	lightingFrame    = []byte{0x0B, 0x11, 0x00, 0x2A, 0x01, 0x23, 0x45, 0x67, 0x0A, 0x01, 0x00, 0x70}
)

func TestRecorder_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.cbor")

	rec, err := Open(path, "tcp://gateway:10001")
	require.NoError(t, err)

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	rec.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	require.NoError(t, rec.Record(DirectionReceived, temperatureFrame))
	require.NoError(t, rec.Record(DirectionSent, lightingFrame))
	assert.Equal(t, 2, rec.Count())
	require.NoError(t, rec.Close())

	r, err := OpenReader(path, Filter{})
	require.NoError(t, err)
	defer r.Close()

	first, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, DirectionReceived, first.Direction)
	assert.Equal(t, temperatureFrame, first.Frame)
	assert.Equal(t, "tcp://gateway:10001", first.Source)
	assert.True(t, base.Add(time.Second).Equal(first.Timestamp))

	second, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, DirectionSent, second.Direction)
	assert.Equal(t, lightingFrame, second.Frame)

	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestRecorder_Appends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.cbor")

	for i := 0; i < 2; i++ {
		rec, err := Open(path, "")
		require.NoError(t, err)
		require.NoError(t, rec.Record(DirectionReceived, temperatureFrame))
		require.NoError(t, rec.Close())
	}

	r, err := OpenReader(path, Filter{})
	require.NoError(t, err)
	defer r.Close()

	n := 0
	for {
		_, err := r.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		n++
	}
	assert.Equal(t, 2, n)
}

func TestRecorder_CloseTwice(t *testing.T) {
	rec, err := Open(filepath.Join(t.TempDir(), "c.cbor"), "")
	require.NoError(t, err)
	require.NoError(t, rec.Close())
	require.NoError(t, rec.Close())

	// Ignored once closed
	assert.NoError(t, rec.Record(DirectionReceived, temperatureFrame))
	assert.Equal(t, 0, rec.Count())
}

func TestRecorder_Concurrent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.cbor")
	rec, err := Open(path, "")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, rec.Record(DirectionReceived, lightingFrame))
		}()
	}
	wg.Wait()
	require.NoError(t, rec.Close())

	r, err := OpenReader(path, Filter{})
	require.NoError(t, err)
	defer r.Close()
	for i := 0; i < 50; i++ {
		got, err := r.Next()
		require.NoError(t, err)
		assert.Equal(t, lightingFrame, got.Frame)
	}
	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestCreate_NamesFileByTime(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "captures")
	rec, err := Create(dir, "")
	require.NoError(t, err)
	defer rec.Close()

	assert.Equal(t, dir, filepath.Dir(rec.Path()))
	assert.Regexp(t, `^capture-\d{8}-\d{6}\.cbor$`, filepath.Base(rec.Path()))
}

func TestReader_Filter(t *testing.T) {
	var buf bytes.Buffer
	enc := encMode.NewEncoder(&buf)
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	records := []Record{
		{Timestamp: base, Direction: DirectionReceived, Frame: temperatureFrame},
		{Timestamp: base.Add(time.Minute), Direction: DirectionSent, Frame: lightingFrame},
		{Timestamp: base.Add(2 * time.Minute), Direction: DirectionReceived, Frame: lightingFrame},
	}
	for _, rec := range records {
		require.NoError(t, enc.Encode(rec))
	}

	sent := DirectionSent
	lighting := byte(0x11)

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"all", Filter{}, 3},
		{"direction", Filter{Direction: &sent}, 1},
		{"packet type", Filter{PacketType: &lighting}, 2},
		{"since", Filter{Since: base.Add(30 * time.Second)}, 2},
		{"combined", Filter{Direction: &sent, PacketType: &lighting}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReader(bytes.NewReader(buf.Bytes()), tt.filter)
			n := 0
			for {
				_, err := r.Next()
				if err == io.EOF {
					break
				}
				require.NoError(t, err)
				n++
			}
			assert.Equal(t, tt.want, n)
			assert.NoError(t, r.Close())
		})
	}
}

func TestReader_TruncatedTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cut.cbor")
	rec, err := Open(path, "")
	require.NoError(t, err)
	require.NoError(t, rec.Record(DirectionReceived, temperatureFrame))
	require.NoError(t, rec.Record(DirectionReceived, lightingFrame))
	require.NoError(t, rec.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data[:len(data)-3], 0644))

	r, err := OpenReader(path, Filter{})
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Next()
	require.NoError(t, err)
	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestDirection_String(t *testing.T) {
	assert.Equal(t, "received", DirectionReceived.String())
	assert.Equal(t, "sent", DirectionSent.String())
	assert.Equal(t, "Direction(7)", Direction(7).String())
}
