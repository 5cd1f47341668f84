// Package metrics holds the Prometheus collectors shared across services.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "shortener"

type Metrics struct {
	registry *prometheus.Registry

	// notification pipeline
	MessagesQueued   prometheus.Counter
	MessagesDeduped  prometheus.Counter
	MessagesAcked    prometheus.Counter
	MessagesPurged   prometheus.Counter
	DeliveriesSent   prometheus.Counter
	SendFailures     *prometheus.CounterVec
	ClientsConnected prometheus.Gauge

	// url shortening
	URLsCreated prometheus.Counter
	Redirects   prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		MessagesQueued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "messages_queued_total",
			Help:      "Messages accepted into the durable store",
		}),
		MessagesDeduped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "messages_deduped_total",
			Help:      "Add calls suppressed by the content dedup guard",
		}),
		MessagesAcked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "messages_acked_total",
			Help:      "Messages removed by client acknowledgment",
		}),
		MessagesPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "messages_purged_total",
			Help:      "Messages discarded as stale",
		}),
		DeliveriesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "deliveries_sent_total",
			Help:      "DELIVERY frames written to client connections",
		}),
		SendFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "send_failures_total",
			Help:      "Delivery attempts routed to the backoff path",
		}, []string{"reason"}),
		ClientsConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "clients_connected",
			Help:      "Currently registered client connections",
		}),

		URLsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "urls",
			Name:      "created_total",
			Help:      "Short codes created",
		}),
		Redirects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "urls",
			Name:      "redirects_total",
			Help:      "Successful redirect lookups",
		}),
	}

	m.registry.MustRegister(
		m.MessagesQueued,
		m.MessagesDeduped,
		m.MessagesAcked,
		m.MessagesPurged,
		m.DeliveriesSent,
		m.SendFailures,
		m.ClientsConnected,
		m.URLsCreated,
		m.Redirects,
	)
	return m
}

// Handler serves the /metrics endpoint for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
