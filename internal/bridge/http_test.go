package bridge

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muurk/rfxcom/internal/protocol"
)

func TestHandler_Decode(t *testing.T) {
	b, _ := newTestBridge(t, Config{})
	srv := httptest.NewServer(b.Handler())
	defer srv.Close()

	tests := []struct {
		name       string
		body       string
		wantStatus int
		verify     func(t *testing.T, body []byte)
	}{
		{
			name:       "lighting2",
			body:       "0B 11 00 2A 01 23 45 67 0A 01 00 70",
			wantStatus: http.StatusOK,
			verify: func(t *testing.T, body []byte) {
				var d Decoded
				require.NoError(t, json.Unmarshal(body, &d))
				assert.Equal(t, "LIGHTING2", d.PacketType)
				assert.Equal(t, "AC", d.SubType)
				assert.Equal(t, byte(0x2A), d.SequenceNumber)
				assert.Equal(t, "19088743.10", d.Device)
				assert.Equal(t, protocol.BooleanState(true), d.States["Command"])
				assert.Equal(t, protocol.NumberState(7), d.States["SignalLevel"])
				assert.Contains(t, d.Description, "Raw data = 0B11002A012345670A010070")
			},
		},
		{
			name:       "undecoded rf",
			body:       "0703160501020304",
			wantStatus: http.StatusOK,
			verify: func(t *testing.T, body []byte) {
				var d Decoded
				require.NoError(t, json.Unmarshal(body, &d))
				assert.Equal(t, "UNDECODED_RF_MESSAGE", d.PacketType)
				assert.Equal(t, "HOME_CONFORT", d.SubType)
				assert.Equal(t, protocol.StringState("0703160501020304"), d.States["RawData"])
			},
		},
		{
			name:       "malformed",
			body:       "0B2",
			wantStatus: http.StatusBadRequest,
			verify: func(t *testing.T, body []byte) {
				var e APIError
				require.NoError(t, json.Unmarshal(body, &e))
				assert.Equal(t, "malformed frame", e.Kind)
			},
		},
		{
			name:       "no codec",
			body:       "0B20FF070102030405060708",
			wantStatus: http.StatusUnprocessableEntity,
			verify: func(t *testing.T, body []byte) {
				var e APIError
				require.NoError(t, json.Unmarshal(body, &e))
				assert.Equal(t, "unsupported packet type", e.Kind)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/api/decode", "text/plain", strings.NewReader(tt.body))
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			tt.verify(t, body)
		})
	}
}

func TestHandler_Health(t *testing.T) {
	b, _ := newTestBridge(t, Config{GatewayURL: "/dev/ttyUSB0", Version: "1.0.0"})
	b.HandleFrame(thFrame)

	rec := httptest.NewRecorder()
	b.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var h Health
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &h))
	assert.Equal(t, Health{
		Status:  "ok",
		Gateway: "/dev/ttyUSB0",
		Version: "1.0.0",
		Frames:  1,
		Devices: 2,
	}, h)
}

func TestHandler_Metrics(t *testing.T) {
	b, _ := newTestBridge(t, Config{})
	b.HandleFrame(thFrame)
	b.HandleFrame(securityFrame)

	rec := httptest.NewRecorder()
	b.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `rfxcom_frames_received_total{packet_type="TEMPERATURE_HUMIDITY"} 1`)
	assert.Contains(t, body, `rfxcom_decode_failures_total{kind="unsupported packet type"} 1`)
	assert.Contains(t, body, "rfxcom_active_subscribers 0")
	assert.Contains(t, body, "go_goroutines")
}

func TestHandler_Items(t *testing.T) {
	b, _ := newTestBridge(t, Config{})
	h := b.Handler()

	// Bound but not yet seen
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/items/HallLight", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var st ItemState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.True(t, st.State.IsUndef())

	b.HandleFrame(lighting2On)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/items/HallLightLevel", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, protocol.PercentState(100), st.State)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/items", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var all map[string]ItemState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
	assert.Len(t, all, 2)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/items/Kitchen", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
