package limiter

// Metric names emitted by Limiter.
const (
	MetricCheck   = "ratelimit.check"
	MetricError   = "ratelimit.error"
	MetricLatency = "ratelimit.latency"
)

// MetricsRecorder receives counters and observations from a Limiter. Tags
// always carry "strategy"; MetricCheck also carries "result" ("allowed" or
// "denied").
type MetricsRecorder interface {
	Add(name string, value float64, tags map[string]string)
	Observe(name string, value float64, tags map[string]string)
}

// NoOpMetricsRecorder discards every metric. New installs it unless
// WithRecorder supplies another recorder.
type NoOpMetricsRecorder struct{}

func (n *NoOpMetricsRecorder) Add(name string, value float64, tags map[string]string)     {}
func (n *NoOpMetricsRecorder) Observe(name string, value float64, tags map[string]string) {}
