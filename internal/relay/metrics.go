package relay

import (
	"github.com/prometheus/client_golang/prometheus"
)

type relayMetrics struct {
	eventsIn            *prometheus.CounterVec
	eventsOut           *prometheus.CounterVec
	dropped             *prometheus.CounterVec
	panics              prometheus.Counter
	chatPersistFailures prometheus.Counter
	legacyRooms         prometheus.Gauge
	projectRooms        prometheus.Gauge
}

func newRelayMetrics(reg prometheus.Registerer) *relayMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &relayMetrics{
		eventsIn: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "collabrelay_events_received_total",
			Help: "Inbound client events by event name.",
		}, []string{"event"}),
		eventsOut: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "collabrelay_events_delivered_total",
			Help: "Outbound relayed events by event name, counting receivers.",
		}, []string{"event"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "collabrelay_events_dropped_total",
			Help: "Events dropped silently, grouped by reason.",
		}, []string{"reason"}),
		panics: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "collabrelay_handler_panics_total",
			Help: "Event handlers recovered from a panic.",
		}),
		chatPersistFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "collabrelay_chat_persist_failures_total",
			Help: "Chat messages the store failed to persist.",
		}),
		legacyRooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "collabrelay_legacy_rooms",
			Help: "Current number of legacy rooms.",
		}),
		projectRooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "collabrelay_project_rooms",
			Help: "Current number of project rooms.",
		}),
	}

	reg.MustRegister(
		m.eventsIn,
		m.eventsOut,
		m.dropped,
		m.panics,
		m.chatPersistFailures,
		m.legacyRooms,
		m.projectRooms,
	)
	return m
}
