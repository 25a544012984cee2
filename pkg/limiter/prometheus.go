package limiter

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder exports Limiter metrics as Prometheus collectors.
type PrometheusRecorder struct {
	Checks  *prometheus.CounterVec
	Errors  *prometheus.CounterVec
	Latency *prometheus.HistogramVec
}

// NewPrometheusRecorder creates the collectors under namespace and registers
// them with reg.
func NewPrometheusRecorder(reg prometheus.Registerer, namespace string) *PrometheusRecorder {
	r := &PrometheusRecorder{
		Checks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ratelimit_checks_total",
				Help:      "Admission checks by strategy and result",
			},
			[]string{"strategy", "result"},
		),
		Errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ratelimit_errors_total",
				Help:      "Admission checks that failed to reach the store",
			},
			[]string{"strategy"},
		),
		Latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "ratelimit_check_duration_seconds",
				Help:      "Store round trip duration of admission checks",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"strategy"},
		),
	}

	reg.MustRegister(r.Checks, r.Errors, r.Latency)
	return r
}

func (r *PrometheusRecorder) Add(name string, value float64, tags map[string]string) {
	switch name {
	case MetricCheck:
		r.Checks.WithLabelValues(tags["strategy"], tags["result"]).Add(value)
	case MetricError:
		r.Errors.WithLabelValues(tags["strategy"]).Add(value)
	}
}

func (r *PrometheusRecorder) Observe(name string, value float64, tags map[string]string) {
	if name == MetricLatency {
		r.Latency.WithLabelValues(tags["strategy"]).Observe(value)
	}
}
