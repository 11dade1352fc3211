package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for dispatch ticks.
type Metrics struct {
	ticks        *prometheus.CounterVec
	reminders    *prometheus.CounterVec
	tickDuration prometheus.Histogram
	lastTick     prometheus.Gauge
}

// MustNewMetrics registers the collectors with reg. Tests should pass a fresh registry.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		ticks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "event_memo",
				Subsystem: "dispatch",
				Name:      "ticks_total",
				Help:      "Dispatch ticks by result (completed, aborted, skipped).",
			},
			[]string{"result"},
		),
		reminders: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "event_memo",
				Subsystem: "dispatch",
				Name:      "reminders_total",
				Help:      "Reminders processed by outcome (sent, failed).",
			},
			[]string{"outcome"},
		),
		tickDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "event_memo",
				Subsystem: "dispatch",
				Name:      "tick_duration_seconds",
				Help:      "Wall time of one dispatch tick.",
				Buckets:   prometheus.DefBuckets,
			},
		),
		lastTick: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "event_memo",
				Subsystem: "dispatch",
				Name:      "last_tick_timestamp_seconds",
				Help:      "Unix time the last dispatch tick started.",
			},
		),
	}
	reg.MustRegister(m.ticks, m.reminders, m.tickDuration, m.lastTick)
	return m
}

func (m *Metrics) observe(s Summary) {
	if m == nil {
		return
	}
	result := "completed"
	if s.Error != "" {
		result = "aborted"
	}
	m.ticks.WithLabelValues(result).Inc()
	m.reminders.WithLabelValues("sent").Add(float64(s.Sent))
	m.reminders.WithLabelValues("failed").Add(float64(s.Failed))
	m.tickDuration.Observe(s.Duration.Seconds())
	m.lastTick.Set(float64(s.Timestamp.Unix()))
}

// TickSkipped counts a tick dropped because the previous one was still running.
func (m *Metrics) TickSkipped() {
	if m == nil {
		return
	}
	m.ticks.WithLabelValues("skipped").Inc()
}
