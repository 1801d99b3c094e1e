package coordinator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "voice"

// Metrics are the relay counters exported over the monitoring server.
type Metrics struct {
	Signals     *prometheus.CounterVec
	Players     prometheus.Gauge
	Connections prometheus.Counter
	Broadcasts  prometheus.Counter
	Dropped     *prometheus.CounterVec
}

// NewMetrics creates the relay metrics and registers them with the reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Signals: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signals_total",
			Help:      "Signaling messages by relay outcome.",
		}, []string{"outcome"}),
		Players: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "players",
			Help:      "Registered players.",
		}),
		Connections: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_total",
			Help:      "Accepted websocket connections.",
		}),
		Broadcasts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcasts_total",
			Help:      "Player list broadcasts.",
		}),
		Dropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_dropped_total",
			Help:      "Inbound frames ignored by reason.",
		}, []string{"reason"}),
	}
}
