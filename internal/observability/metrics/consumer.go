package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/knowledge-assistant/internal/core/domain"
)

// ConsumerMetrics tracks documents consumed from the ingestion queue.
type ConsumerMetrics struct {
	processTotal    *prometheus.CounterVec
	processDuration *prometheus.HistogramVec
	processInFlight prometheus.Gauge
}

func NewConsumerMetrics(service string, registerer prometheus.Registerer) *ConsumerMetrics {
	processTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "consumer",
			Name:      "messages_total",
			Help:      "Total consumed ingestion messages by status.",
		},
		[]string{"service", "status"},
	)
	processDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "consumer",
			Name:      "message_duration_seconds",
			Help:      "Ingestion message handling duration in seconds by status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)
	processInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "consumer",
			Name:      "messages_in_flight",
			Help:      "Number of ingestion messages being handled.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)

	registerer.MustRegister(processTotal, processDuration, processInFlight)

	return &ConsumerMetrics{
		processTotal:    processTotal,
		processDuration: processDuration,
		processInFlight: processInFlight,
	}
}

func (m *ConsumerMetrics) StartMessage() {
	m.processInFlight.Inc()
}

// FinishMessage records a handled message. Documents the pipeline refused
// count as "rejected" so broken uploads do not read as consumer failures.
func (m *ConsumerMetrics) FinishMessage(service string, duration time.Duration, err error) {
	m.processInFlight.Dec()

	status := "success"
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		status = "rejected"
	case err != nil:
		status = "error"
	}

	m.processTotal.WithLabelValues(service, status).Inc()
	m.processDuration.WithLabelValues(service, status).Observe(duration.Seconds())
}
