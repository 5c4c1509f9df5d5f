package advisor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metrics holds the pipeline metrics. Registered with promauto.With so
// tests can pass a private registry, or nil to skip registration.
type metrics struct {
	answersTotal      *prometheus.CounterVec
	stageSeconds      *prometheus.HistogramVec
	answerConfidence  prometheus.Histogram
	generationRetries prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)

	return &metrics{
		// outcome is "ok", "degraded" or the error code.
		answersTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kisan",
			Subsystem: "advisor",
			Name:      "answers_total",
			Help:      "Answer requests completed, partitioned by outcome.",
		}, []string{"outcome"}),

		stageSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "kisan",
			Subsystem: "advisor",
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		}, []string{"stage"}),

		answerConfidence: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "kisan",
			Subsystem: "advisor",
			Name:      "answer_confidence",
			Help:      "Average citation confidence of answers that have citations.",
			Buckets:   []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		}),

		generationRetries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "kisan",
			Subsystem: "advisor",
			Name:      "generation_retries_total",
			Help:      "Answer generation attempts retried after a failure.",
		}),
	}
}
