package bridge

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "rfxcom"

// metrics holds the Prometheus metrics of one bridge
type metrics struct {
	registry *prometheus.Registry

	framesReceived    *prometheus.CounterVec
	decodeFailures    *prometheus.CounterVec
	commandsSent      *prometheus.CounterVec
	statesPublished   prometheus.Counter
	activeSubscribers prometheus.Gauge
	droppedEvents     prometheus.Counter
}

// newMetrics registers the bridge metrics on a private registry, alongside
// the Go runtime and process collectors
func newMetrics() *metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &metrics{
		registry: reg,

		framesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "frames_received_total",
			Help:      "Frames read from the gateway, by packet type",
		}, []string{"packet_type"}),

		decodeFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "decode_failures_total",
			Help:      "Frames or fields that could not be converted, by error kind",
		}, []string{"kind"}),

		commandsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "commands_total",
			Help:      "Subscriber commands, by packet type and result",
		}, []string{"packet_type", "result"}),

		statesPublished: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "states_published_total",
			Help:      "State events sent to subscribers",
		}),

		activeSubscribers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "active_subscribers",
			Help:      "Connected WebSocket subscribers",
		}),

		droppedEvents: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "dropped_events_total",
			Help:      "Events dropped because a subscriber fell behind",
		}),
	}
}
