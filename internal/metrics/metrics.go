// Package metrics exposes sync instrumentation for the long-running daemon.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics carries the collectors the synchronizer reports into. A fresh
// registry per instance keeps tests isolated from global state.
type Metrics struct {
	reg *prometheus.Registry

	QueueDepth   prometheus.Gauge
	Replayed     prometheus.Counter
	ReplayFailed prometheus.Counter
	PassDuration prometheus.Histogram
}

// New builds and registers all collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		reg: reg,
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "maintsync",
			Name:      "pending_actions",
			Help:      "Number of sync actions waiting for replay.",
		}),
		Replayed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "maintsync",
			Name:      "replayed_actions_total",
			Help:      "Actions confirmed by the remote authority.",
		}),
		ReplayFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "maintsync",
			Name:      "replay_failures_total",
			Help:      "Replay attempts that failed and halted a sync pass.",
		}),
		PassDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "maintsync",
			Name:      "sync_pass_seconds",
			Help:      "Duration of synchronizer passes.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.QueueDepth, m.Replayed, m.ReplayFailed, m.PassDuration)
	return m
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
