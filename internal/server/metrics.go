package server

import (
	"github.com/prometheus/client_golang/prometheus"
)

type serverMetrics struct {
	activeConnections prometheus.Gauge
	connectionsTotal  prometheus.Counter
	upgradeFailures   prometheus.Counter
}

func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &serverMetrics{
		activeConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "collabrelay_connections_active",
			Help: "Current number of live client connections.",
		}),
		connectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "collabrelay_connections_total",
			Help: "Total client connections accepted since start.",
		}),
		upgradeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "collabrelay_upgrade_failures_total",
			Help: "WebSocket upgrade attempts that failed.",
		}),
	}

	reg.MustRegister(
		m.activeConnections,
		m.connectionsTotal,
		m.upgradeFailures,
	)
	return m
}
