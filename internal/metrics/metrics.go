// ABOUTME: Prometheus collectors for the realtime delivery pipeline
// ABOUTME: Tracks live connections, online users, sends, and push outcomes

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the collectors for one courier instance. Instances use
// their own registry so tests can construct as many as they need without
// duplicate-registration panics.
type Metrics struct {
	registry *prometheus.Registry

	Connections   prometheus.Gauge
	OnlineUsers   prometheus.Gauge
	MessagesSent  prometheus.Counter
	PushDelivered prometheus.Counter
	PushDropped   prometheus.Counter
}

// New creates a Metrics instance backed by its own registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "courier_live_connections",
			Help: "Number of live WebSocket connections.",
		}),
		OnlineUsers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "courier_online_users",
			Help: "Number of users with at least one live connection.",
		}),
		MessagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "courier_messages_sent_total",
			Help: "Messages durably persisted via the send path.",
		}),
		PushDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "courier_push_delivered_total",
			Help: "newMessage frames handed to a live connection.",
		}),
		PushDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "courier_push_dropped_total",
			Help: "newMessage frames dropped because a connection was saturated or closed.",
		}),
	}

	reg.MustRegister(
		m.Connections,
		m.OnlineUsers,
		m.MessagesSent,
		m.PushDelivered,
		m.PushDropped,
	)

	return m
}

// Handler returns the HTTP handler serving this instance's registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
