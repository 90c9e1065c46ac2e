package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/goliatone/go-approvals/core"
)

// operationLabels is the closed label schema every service metric shares. The
// core emits a subset of these per observation; absent labels record as "".
// A closed schema keeps registration stable across calls, which Prometheus
// requires per metric name.
var operationLabels = []string{"operation", "status", "tenant", "object_type", "action", "outcome"}

// durationBuckets covers the module's operation latencies in milliseconds,
// from local rejections (~1ms) to slow ERP round trips.
var durationBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000}

type RecorderConfig struct {
	Registerer prometheus.Registerer
	Namespace  string
	Logger     core.Logger
}

func DefaultRecorderConfig() RecorderConfig {
	return RecorderConfig{
		Registerer: prometheus.DefaultRegisterer,
	}
}

// Recorder implements the core metrics contract on Prometheus collectors.
// Collectors are created and registered on first use of each metric name,
// because the core composes names per operation at call time.
type Recorder struct {
	registerer prometheus.Registerer
	namespace  string
	logger     core.Logger

	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
}

func NewRecorder(cfg RecorderConfig) *Recorder {
	defaults := DefaultRecorderConfig()
	if cfg.Registerer == nil {
		cfg.Registerer = defaults.Registerer
	}
	return &Recorder{
		registerer: cfg.Registerer,
		namespace:  strings.TrimSpace(cfg.Namespace),
		logger:     cfg.Logger,
		counters:   map[string]*prometheus.CounterVec{},
		histograms: map[string]*prometheus.HistogramVec{},
	}
}

func (r *Recorder) IncCounter(_ context.Context, name string, value int64, tags map[string]string) {
	if r == nil || value <= 0 {
		return
	}
	counter := r.counter(name)
	if counter == nil {
		return
	}
	counter.WithLabelValues(projectLabels(tags)...).Add(float64(value))
}

func (r *Recorder) ObserveHistogram(_ context.Context, name string, value float64, tags map[string]string) {
	if r == nil {
		return
	}
	histogram := r.histogram(name)
	if histogram == nil {
		return
	}
	histogram.WithLabelValues(projectLabels(tags)...).Observe(value)
}

func (r *Recorder) counter(name string) *prometheus.CounterVec {
	metricName := r.metricName(name)
	if metricName == "" {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.counters[metricName]; ok {
		return existing
	}

	vec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: metricName,
		Help: "Counter emitted by the approvals service",
	}, operationLabels)
	registered := r.register(vec)
	if resolved, ok := registered.(*prometheus.CounterVec); ok {
		vec = resolved
	}
	r.counters[metricName] = vec
	return vec
}

func (r *Recorder) histogram(name string) *prometheus.HistogramVec {
	metricName := r.metricName(name)
	if metricName == "" {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.histograms[metricName]; ok {
		return existing
	}

	vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    metricName,
		Help:    "Histogram emitted by the approvals service",
		Buckets: durationBuckets,
	}, operationLabels)
	registered := r.register(vec)
	if resolved, ok := registered.(*prometheus.HistogramVec); ok {
		vec = resolved
	}
	r.histograms[metricName] = vec
	return vec
}

// register registers the collector, reusing the already-registered one when
// another recorder instance got there first.
func (r *Recorder) register(collector prometheus.Collector) prometheus.Collector {
	if r.registerer == nil {
		return collector
	}
	err := r.registerer.Register(collector)
	if err == nil {
		return collector
	}
	var already prometheus.AlreadyRegisteredError
	if errors.As(err, &already) {
		return already.ExistingCollector
	}
	if r.logger != nil {
		r.logger.Warn("metrics registration failed", "error", err.Error())
	}
	return collector
}

func (r *Recorder) metricName(name string) string {
	sanitized := sanitizeMetricName(name)
	if sanitized == "" {
		return ""
	}
	if r.namespace == "" {
		return sanitized
	}
	return sanitizeMetricName(r.namespace) + "_" + sanitized
}

func projectLabels(tags map[string]string) []string {
	values := make([]string, len(operationLabels))
	for i, label := range operationLabels {
		values[i] = strings.TrimSpace(tags[label])
	}
	return values
}

// sanitizeMetricName folds the core's dotted metric names into the Prometheus
// name alphabet, e.g. "approvals.decide.duration_ms" becomes
// "approvals_decide_duration_ms".
func sanitizeMetricName(name string) string {
	name = strings.TrimSpace(strings.ToLower(name))
	if name == "" {
		return ""
	}
	var builder strings.Builder
	builder.Grow(len(name))
	for _, char := range name {
		switch {
		case char >= 'a' && char <= 'z', char >= '0' && char <= '9', char == '_':
			builder.WriteRune(char)
		default:
			builder.WriteRune('_')
		}
	}
	sanitized := strings.Trim(builder.String(), "_")
	if sanitized == "" {
		return ""
	}
	if sanitized[0] >= '0' && sanitized[0] <= '9' {
		sanitized = "_" + sanitized
	}
	return sanitized
}

var _ core.MetricsRecorder = (*Recorder)(nil)
