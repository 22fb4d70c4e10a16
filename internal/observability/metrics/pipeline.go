package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/knowledge-assistant/internal/core/domain"
)

const namespace = "knowledge"

// PipelineMetrics counts fallback decisions, tier attempts and ingestion outcomes.
type PipelineMetrics struct {
	service string

	decisionsTotal   *prometheus.CounterVec
	attemptsTotal    *prometheus.CounterVec
	answerConfidence *prometheus.HistogramVec
	ingestDocuments  *prometheus.CounterVec
	ingestChunks     *prometheus.CounterVec
}

func NewPipelineMetrics(service string, registerer prometheus.Registerer) *PipelineMetrics {
	decisionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fallback",
			Name:      "decisions_total",
			Help:      "Total routed queries by the tier that answered.",
		},
		[]string{"service", "tier"},
	)
	attemptsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fallback",
			Name:      "tier_attempts_total",
			Help:      "Total tier attempts by outcome.",
		},
		[]string{"service", "tier", "outcome"},
	)
	answerConfidence := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "fallback",
			Name:      "answer_confidence",
			Help:      "Confidence of routed answers by tier.",
			Buckets:   []float64{0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
		},
		[]string{"service", "tier"},
	)
	ingestDocuments := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "documents_total",
			Help:      "Total submitted documents by status.",
		},
		[]string{"service", "status"},
	)
	ingestChunks := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "chunks_total",
			Help:      "Total chunks added to the index.",
		},
		[]string{"service"},
	)

	registerer.MustRegister(decisionsTotal, attemptsTotal, answerConfidence, ingestDocuments, ingestChunks)

	return &PipelineMetrics{
		service:          service,
		decisionsTotal:   decisionsTotal,
		attemptsTotal:    attemptsTotal,
		answerConfidence: answerConfidence,
		ingestDocuments:  ingestDocuments,
		ingestChunks:     ingestChunks,
	}
}

func (m *PipelineMetrics) ObserveDecision(decision *domain.FallbackDecision) {
	if decision == nil {
		return
	}
	tier := string(decision.Tier)
	m.decisionsTotal.WithLabelValues(m.service, tier).Inc()
	m.answerConfidence.WithLabelValues(m.service, tier).Observe(decision.Confidence)
	for _, attempt := range decision.Attempts {
		m.attemptsTotal.WithLabelValues(m.service, string(attempt.Tier), string(attempt.Outcome)).Inc()
	}
}

func (m *PipelineMetrics) ObserveIngest(result *domain.IngestResult) {
	if result == nil {
		return
	}
	indexed := len(result.FilesProcessed) - result.DuplicatesSkipped
	if indexed > 0 {
		m.ingestDocuments.WithLabelValues(m.service, "indexed").Add(float64(indexed))
	}
	if result.DuplicatesSkipped > 0 {
		m.ingestDocuments.WithLabelValues(m.service, "duplicate").Add(float64(result.DuplicatesSkipped))
	}
	if n := len(result.FilesRejected); n > 0 {
		m.ingestDocuments.WithLabelValues(m.service, "rejected").Add(float64(n))
	}
	if result.DocumentsAdded > 0 {
		m.ingestChunks.WithLabelValues(m.service).Add(float64(result.DocumentsAdded))
	}
}
