package daemon

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/theaxonlab/physioevents/internal/model"
)

// metrics exports the folder state on /metrics. Each service owns its
// registry so several services can coexist in one process.
type metrics struct {
	registry *prometheus.Registry

	sessions     *prometheus.GaugeVec
	events       *prometheus.GaugeVec
	failed       *prometheus.GaugeVec
	polls        *prometheus.CounterVec
	written      prometheus.Counter
	pollDuration prometheus.Summary
}

func newMetrics() *metrics {
	m := &metrics{registry: prometheus.NewRegistry()}
	m.sessions = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "physioevents",
		Name:      "sessions",
		Help:      "Sessions found in the watched folder by task and kind",
	}, []string{"task", "kind"})
	m.events = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "physioevents",
		Name:      "events",
		Help:      "Events extracted from the watched folder by trial type",
	}, []string{"trial_type"})
	m.failed = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "physioevents",
		Name:      "failed_sessions",
		Help:      "Sessions that could not be converted by task",
	}, []string{"task"})
	m.polls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "physioevents",
		Name:      "polls_total",
		Help:      "Number of folder polls by status",
	}, []string{"status"})
	m.written = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "physioevents",
		Name:      "sessions_written_total",
		Help:      "Number of sessions written as event files",
	})
	m.pollDuration = prometheus.NewSummary(prometheus.SummaryOpts{
		Namespace: "physioevents",
		Name:      "poll_duration_seconds",
		Help:      "Time spent converting the watched folder",
	})

	m.registry.MustRegister(
		m.sessions, m.events, m.failed,
		m.polls, m.written, m.pollDuration,
	)
	return m
}

// observe replaces the folder gauges with the state of sessions.
func (m *metrics) observe(sessions []model.Session) {
	m.sessions.Reset()
	m.events.Reset()
	m.failed.Reset()
	for _, s := range sessions {
		task := s.Task.String()
		m.sessions.WithLabelValues(task, string(s.Kind)).Inc()
		if !s.OK() {
			m.failed.WithLabelValues(task).Inc()
			continue
		}
		for tt, n := range s.Table.CountByType() {
			m.events.WithLabelValues(string(tt)).Add(float64(n))
		}
	}
}
