package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/prototype-classifier/internal/core/domain"
)

// ClassifierMetrics records classification outcomes. It satisfies
// ports.ClassificationObserver.
type ClassifierMetrics struct {
	service string

	classifyTotal      *prometheus.CounterVec
	classifyDuration   *prometheus.HistogramVec
	chunks             *prometheus.HistogramVec
	chunksSkippedTotal *prometheus.CounterVec
	dominantTotal      *prometheus.CounterVec
	reconfiguredTotal  *prometheus.CounterVec
	breakerOpen        *prometheus.GaugeVec
}

func NewClassifierMetrics(service string, registerer prometheus.Registerer) *ClassifierMetrics {
	classifyTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pcls",
			Subsystem: "classifier",
			Name:      "classify_total",
			Help:      "Total classifications by outcome kind.",
		},
		[]string{"service", "status"},
	)
	classifyDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pcls",
			Subsystem: "classifier",
			Name:      "classify_duration_seconds",
			Help:      "Classification duration in seconds by outcome kind.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"service", "status"},
	)
	chunks := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pcls",
			Subsystem: "classifier",
			Name:      "classify_chunks",
			Help:      "Embedded chunks per successful classification.",
			Buckets:   []float64{1, 2, 4, 8, 16, 32, 64, 128},
		},
		[]string{"service"},
	)
	chunksSkippedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pcls",
			Subsystem: "classifier",
			Name:      "classify_chunks_skipped_total",
			Help:      "Chunks dropped as noise or embedder failures.",
		},
		[]string{"service"},
	)
	dominantTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pcls",
			Subsystem: "classifier",
			Name:      "classify_dominant_total",
			Help:      "Successful classifications by dominant category index.",
		},
		[]string{"service", "index"},
	)
	reconfiguredTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pcls",
			Subsystem: "classifier",
			Name:      "categories_reconfigured_total",
			Help:      "Category set reconfigurations by outcome.",
		},
		[]string{"service", "status"},
	)
	breakerOpen := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "pcls",
			Subsystem: "resilience",
			Name:      "breaker_open",
			Help:      "1 while the circuit breaker of an operation is open or half-open.",
		},
		[]string{"service", "operation"},
	)

	registerer.MustRegister(
		classifyTotal,
		classifyDuration,
		chunks,
		chunksSkippedTotal,
		dominantTotal,
		reconfiguredTotal,
		breakerOpen,
	)

	return &ClassifierMetrics{
		service:            service,
		classifyTotal:      classifyTotal,
		classifyDuration:   classifyDuration,
		chunks:             chunks,
		chunksSkippedTotal: chunksSkippedTotal,
		dominantTotal:      dominantTotal,
		reconfiguredTotal:  reconfiguredTotal,
		breakerOpen:        breakerOpen,
	}
}

func (m *ClassifierMetrics) ObserveClassification(result *domain.ClassificationResult, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = domain.KindName(err)
	}
	m.classifyTotal.WithLabelValues(m.service, status).Inc()
	m.classifyDuration.WithLabelValues(m.service, status).Observe(duration.Seconds())

	if err != nil || result == nil {
		return
	}
	m.chunks.WithLabelValues(m.service).Observe(float64(result.ChunksProcessed))
	if result.ChunksSkipped > 0 {
		m.chunksSkippedTotal.WithLabelValues(m.service).Add(float64(result.ChunksSkipped))
	}
	m.dominantTotal.WithLabelValues(m.service, strconv.Itoa(result.DominantIndex)).Inc()
}

func (m *ClassifierMetrics) ObserveReconfiguration(err error) {
	status := "success"
	if err != nil {
		status = domain.KindName(err)
	}
	m.reconfiguredTotal.WithLabelValues(m.service, status).Inc()
}

// ObserveBreakerState matches resilience.Config.OnStateChange.
func (m *ClassifierMetrics) ObserveBreakerState(operation, _, to string) {
	value := 0.0
	if to != "closed" {
		value = 1
	}
	m.breakerOpen.WithLabelValues(m.service, operation).Set(value)
}
