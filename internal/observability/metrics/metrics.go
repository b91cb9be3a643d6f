package metrics

import "github.com/prometheus/client_golang/prometheus"

// PipelineMetrics exposes counters/histograms for the insight pipeline.
type PipelineMetrics struct {
	extractionsTotal *prometheus.CounterVec
	synthesesTotal   *prometheus.CounterVec
	stageDuration    *prometheus.HistogramVec
	conversations    prometheus.Histogram
}

func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	m := &PipelineMetrics{
		extractionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatinsights",
			Subsystem: "pipeline",
			Name:      "extractions_total",
			Help:      "Total Stage-1 conversation extractions",
		}, []string{"outcome"}),
		synthesesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatinsights",
			Subsystem: "pipeline",
			Name:      "syntheses_total",
			Help:      "Total Stage-2 report syntheses",
		}, []string{"kind", "outcome"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "chatinsights",
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"stage"}),
		conversations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "chatinsights",
			Subsystem: "pipeline",
			Name:      "conversations_per_job",
			Help:      "Conversations parsed per analysis job",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.extractionsTotal, m.synthesesTotal, m.stageDuration, m.conversations)
	return m
}

func (m *PipelineMetrics) ObserveExtraction(outcome string) {
	if m == nil {
		return
	}
	m.extractionsTotal.WithLabelValues(outcome).Inc()
}

func (m *PipelineMetrics) ObserveSynthesis(kind, outcome string) {
	if m == nil {
		return
	}
	m.synthesesTotal.WithLabelValues(kind, outcome).Inc()
}

func (m *PipelineMetrics) ObserveStageDuration(stage string, seconds float64) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(seconds)
}

func (m *PipelineMetrics) ObserveConversations(count int) {
	if m == nil {
		return
	}
	m.conversations.Observe(float64(count))
}
