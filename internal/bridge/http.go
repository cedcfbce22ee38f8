package bridge

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/muurk/rfxcom/internal/logging"
	"github.com/muurk/rfxcom/internal/protocol"
)

// maxDecodeBody bounds /api/decode request bodies
const maxDecodeBody = 4096

// Handler returns the bridge HTTP routes
func (b *Bridge) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/ws", b.handleWebSocket)
	r.Get("/healthz", b.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(b.metrics.registry, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Post("/decode", b.handleDecode)
		r.Get("/items", b.handleItems)
		r.Get("/items/{item}", b.handleItem)
	})
	return r
}

// requestLogger logs every request through the bridge logger
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		status := ww.Status()
		if status == 0 {
			// Hijacked by the WebSocket upgrade
			status = http.StatusSwitchingProtocols
		}
		logging.LogHTTPRequest(r.RemoteAddr, r.Method, r.URL.Path, status, time.Since(start))
	})
}

// Health is the /healthz body
type Health struct {
	Status      string `json:"status"`
	Gateway     string `json:"gateway,omitempty"`
	Version     string `json:"version,omitempty"`
	Subscribers int    `json:"subscribers"`
	Frames      uint64 `json:"frames"`
	Devices     int    `json:"devices"`
}

func (b *Bridge) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Health{
		Status:      "ok",
		Gateway:     b.config.GatewayURL,
		Version:     b.version,
		Subscribers: b.hub.count(),
		Frames:      b.frames.Load(),
		Devices:     b.deviceCount(),
	})
}

// Decoded is the /api/decode response body
type Decoded struct {
	PacketType     string                    `json:"packet_type"`
	SubType        string                    `json:"sub_type"`
	SequenceNumber byte                      `json:"sequence_number"`
	Device         string                    `json:"device"`
	States         map[string]protocol.State `json:"states"`
	Description    string                    `json:"description"`
}

// NewDecoded flattens msg. Selectors that fail to convert are left out.
func NewDecoded(msg protocol.Message) Decoded {
	states := make(map[string]protocol.State)
	for _, sel := range msg.SupportedSelectors() {
		if st, err := msg.ToState(sel); err == nil {
			states[sel.Name] = st
		}
	}
	env := msg.Envelope()
	return Decoded{
		PacketType:     env.PacketType.String(),
		SubType:        env.SubType.String(),
		SequenceNumber: env.SequenceNumber,
		Device:         msg.DeviceID(),
		States:         states,
		Description:    msg.String(),
	}
}

// APIError is the body of every failed API request
type APIError struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// handleDecode decodes a hex frame posted as the request body
func (b *Bridge) handleDecode(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxDecodeBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, APIError{Error: err.Error(), Kind: "other"})
		return
	}

	msg, err := decodeHex(strings.TrimSpace(string(body)))
	if err != nil {
		status := http.StatusUnprocessableEntity
		if protocol.IsMalformedFrame(err) {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, APIError{Error: err.Error(), Kind: protocol.ErrorKind(err)})
		return
	}

	writeJSON(w, http.StatusOK, NewDecoded(msg))
}

func decodeHex(text string) (protocol.Message, error) {
	f, err := protocol.ParseHexFrame(text)
	if err != nil {
		return nil, err
	}
	return protocol.DecodeFrame(f)
}

func (b *Bridge) handleItems(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, b.ItemStates())
}

func (b *Bridge) handleItem(w http.ResponseWriter, r *http.Request) {
	item := chi.URLParam(r, "item")
	if _, bound := b.bindings.Load().items[item]; !bound {
		writeJSON(w, http.StatusNotFound, APIError{Error: "unknown item " + item, Kind: "other"})
		return
	}
	st, ok := b.ItemStates()[item]
	if !ok {
		st = ItemState{State: protocol.Undef}
	}
	writeJSON(w, http.StatusOK, st)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Debug("Failed to write response", zap.Error(err))
	}
}
