package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "signedattach"
	subsystem = "signing"
)

// Metrics exposes Prometheus collectors describing signing activity.
type Metrics struct {
	requests        *prometheus.CounterVec
	signedObjects   prometheus.Counter
	requestDuration prometheus.Histogram
}

// MustNewMetrics constructs Metrics registered with reg. Registration errors
// other than an identical collector already being present panic, like the
// promauto helpers.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "requests_total",
			Help:      "Mails passed through the attachment signer, by outcome.",
		},
		[]string{"status"},
	)
	signedObjects := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "objects_signed_total",
			Help:      "Object-store references replaced with signed URLs.",
		},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "request_duration_seconds",
			Help:      "Time spent signing all attachments of a mail.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	requests = register(reg, requests).(*prometheus.CounterVec)
	signedObjects = register(reg, signedObjects).(prometheus.Counter)
	requestDuration = register(reg, requestDuration).(prometheus.Histogram)

	return &Metrics{
		requests:        requests,
		signedObjects:   signedObjects,
		requestDuration: requestDuration,
	}
}

func register(reg prometheus.Registerer, collector prometheus.Collector) prometheus.Collector {
	if err := reg.Register(collector); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return already.ExistingCollector
		}
		panic(err)
	}
	return collector
}

// ObserveRequest records one signing request.
func (m *Metrics) ObserveRequest(status string, signedCount int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(status).Inc()
	m.signedObjects.Add(float64(signedCount))
	m.requestDuration.Observe(duration.Seconds())
}
