package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
)

const namespace = "chatflow"

// Metrics holds the client-side counters. A nil *Metrics is valid and
// records nothing, so library code never has to check.
type Metrics struct {
	registry *prometheus.Registry

	skippedRecords *prometheus.CounterVec
	historyFetches *prometheus.CounterVec
	polls          *prometheus.CounterVec
	sent           *prometheus.CounterVec
	replies        *prometheus.CounterVec
	uploads        *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		skippedRecords: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "history_records_skipped_total",
				Help:      "History records that could not be parsed and were skipped or downgraded to plain text.",
			},
			[]string{"reason"},
		),
		historyFetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "history_fetches_total",
				Help:      "Full history synchronizations by result.",
			},
			[]string{"result"},
		),
		polls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notification_polls_total",
				Help:      "Notification polls by result.",
			},
			[]string{"result"},
		),
		sent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "messages_sent_total",
				Help:      "Outbound user turns by kind.",
			},
			[]string{"kind"},
		),
		replies: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bot_responses_total",
				Help:      "Decoded chat endpoint responses by shape.",
			},
			[]string{"kind"},
		),
		uploads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "media_uploads_total",
				Help:      "Attachment uploads by result.",
			},
			[]string{"result"},
		),
	}

	m.registry.MustRegister(m.skippedRecords, m.historyFetches, m.polls, m.sent, m.replies, m.uploads)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) RecordSkipped(reason string) {
	if m == nil {
		return
	}
	m.skippedRecords.WithLabelValues(reason).Inc()
}

func (m *Metrics) RecordHistoryFetch(result string) {
	if m == nil {
		return
	}
	m.historyFetches.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordPoll(result string) {
	if m == nil {
		return
	}
	m.polls.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordSent(kind string) {
	if m == nil {
		return
	}
	m.sent.WithLabelValues(kind).Inc()
}

func (m *Metrics) RecordResponse(kind string) {
	if m == nil {
		return
	}
	m.replies.WithLabelValues(kind).Inc()
}

func (m *Metrics) RecordUpload(result string) {
	if m == nil {
		return
	}
	m.uploads.WithLabelValues(result).Inc()
}

// SkippedCount reads the skip counter for reason. Used by tests and the CLI
// status line.
func (m *Metrics) SkippedCount(reason string) float64 {
	if m == nil {
		return 0
	}
	return counterValue(m.skippedRecords.WithLabelValues(reason))
}

func (m *Metrics) HistoryFetchCount(result string) float64 {
	if m == nil {
		return 0
	}
	return counterValue(m.historyFetches.WithLabelValues(result))
}

func counterValue(c prometheus.Counter) float64 {
	var out dto.Metric
	if err := c.Write(&out); err != nil {
		return 0
	}
	return out.GetCounter().GetValue()
}
