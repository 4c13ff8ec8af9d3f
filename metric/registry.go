package metric

import (
	stderrors "errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/c360/flowkit/errors"
)

// MetricsRegistrar defines the interface for registering scope-specific
// metrics, such as the ones a node-type package exports.
type MetricsRegistrar interface {
	RegisterCounter(scope, metricName string, counter prometheus.Counter) error
	RegisterGauge(scope, metricName string, gauge prometheus.Gauge) error
	RegisterHistogram(scope, metricName string, histogram prometheus.Histogram) error
	RegisterCounterVec(scope, metricName string, counterVec *prometheus.CounterVec) error
	RegisterGaugeVec(scope, metricName string, gaugeVec *prometheus.GaugeVec) error
	RegisterHistogramVec(scope, metricName string, histogramVec *prometheus.HistogramVec) error
	Unregister(scope, metricName string) bool
}

// MetricsRegistry manages the registration and lifecycle of metrics.
type MetricsRegistry struct {
	prometheusRegistry *prometheus.Registry
	Metrics            *Metrics
	registeredMetrics  map[string]prometheus.Collector
	mu                 sync.RWMutex
}

// NewMetricsRegistry creates a metrics registry with the runtime metrics
// and the Go runtime collectors registered.
func NewMetricsRegistry() *MetricsRegistry {
	prometheusRegistry := prometheus.NewRegistry()

	registry := &MetricsRegistry{
		prometheusRegistry: prometheusRegistry,
		registeredMetrics:  make(map[string]prometheus.Collector),
	}

	registry.Metrics = NewMetrics()
	registry.registerMetrics()

	registry.prometheusRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return registry
}

// PrometheusRegistry returns the underlying Prometheus registry.
func (r *MetricsRegistry) PrometheusRegistry() *prometheus.Registry {
	return r.prometheusRegistry
}

// CoreMetrics returns the runtime metrics.
func (r *MetricsRegistry) CoreMetrics() *Metrics {
	return r.Metrics
}

func (r *MetricsRegistry) register(method, scope, metricName string, collector prometheus.Collector) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := fmt.Sprintf("%s.%s", scope, metricName)

	if _, exists := r.registeredMetrics[key]; exists {
		return errors.WrapInvalid(errors.ErrAlreadyExists, "MetricsRegistry", method,
			fmt.Sprintf("metric %s already registered for scope %s", metricName, scope))
	}

	if err := r.prometheusRegistry.Register(collector); err != nil {
		var alreadyRegErr prometheus.AlreadyRegisteredError
		if stderrors.As(err, &alreadyRegErr) {
			return errors.WrapInvalid(err, "MetricsRegistry", method,
				fmt.Sprintf("prometheus conflict for metric %s", metricName))
		}
		return errors.WrapFatal(err, "MetricsRegistry", method,
			"failed to register collector with prometheus")
	}

	r.registeredMetrics[key] = collector
	return nil
}

// RegisterCounter registers a counter metric under a scope.
func (r *MetricsRegistry) RegisterCounter(scope, metricName string, counter prometheus.Counter) error {
	return r.register("RegisterCounter", scope, metricName, counter)
}

// RegisterGauge registers a gauge metric under a scope.
func (r *MetricsRegistry) RegisterGauge(scope, metricName string, gauge prometheus.Gauge) error {
	return r.register("RegisterGauge", scope, metricName, gauge)
}

// RegisterHistogram registers a histogram metric under a scope.
func (r *MetricsRegistry) RegisterHistogram(scope, metricName string, histogram prometheus.Histogram) error {
	return r.register("RegisterHistogram", scope, metricName, histogram)
}

// RegisterCounterVec registers a counter vector metric under a scope.
func (r *MetricsRegistry) RegisterCounterVec(scope, metricName string, counterVec *prometheus.CounterVec) error {
	return r.register("RegisterCounterVec", scope, metricName, counterVec)
}

// RegisterGaugeVec registers a gauge vector metric under a scope.
func (r *MetricsRegistry) RegisterGaugeVec(scope, metricName string, gaugeVec *prometheus.GaugeVec) error {
	return r.register("RegisterGaugeVec", scope, metricName, gaugeVec)
}

// RegisterHistogramVec registers a histogram vector metric under a scope.
func (r *MetricsRegistry) RegisterHistogramVec(
	scope, metricName string, histogramVec *prometheus.HistogramVec) error {
	return r.register("RegisterHistogramVec", scope, metricName, histogramVec)
}

// Unregister removes a metric from the registry.
func (r *MetricsRegistry) Unregister(scope, metricName string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := fmt.Sprintf("%s.%s", scope, metricName)

	collector, exists := r.registeredMetrics[key]
	if !exists {
		return false
	}

	success := r.prometheusRegistry.Unregister(collector)
	if success {
		delete(r.registeredMetrics, key)
	}

	return success
}

// registerMetrics registers all runtime metrics.
func (r *MetricsRegistry) registerMetrics() {
	r.prometheusRegistry.MustRegister(
		r.Metrics.NodesOpen,
		r.Metrics.NodesOpened,
		r.Metrics.NodesClosed,
		r.Metrics.PacketsSent,
		r.Metrics.PacketsDelivered,
		r.Metrics.ErrorPackets,
		r.Metrics.DispatchDuration,
		r.Metrics.ConnectionsActive,
		r.Metrics.TimersActive,
		r.Metrics.IdlersActive,
		r.Metrics.WorkersActive,
	)
}
