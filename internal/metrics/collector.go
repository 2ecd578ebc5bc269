// Package metrics provides internal metrics collection for the plugin
// runtime. This package is internal and should not be imported by external
// projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector records plugin lifecycle and command metrics. A nil *Collector is
// a no-op, so callers never need to guard instrumentation sites.
type Collector struct {
	registrationsTotal *prometheus.CounterVec
	lifecycleOpsTotal  *prometheus.CounterVec
	activationFailures *prometheus.CounterVec
	activationDuration *prometheus.HistogramVec
	commandsTotal      *prometheus.CounterVec

	logger *zap.Logger
}

// NewCollector creates a metrics collector registered against reg. A nil
// registerer creates the metrics without registering them; a nil logger is
// replaced with a no-op.
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := promauto.With(reg)

	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.registrationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plugin_registrations_total",
			Help:      "Total number of plugin registrations and unregistrations",
		},
		[]string{"op"},
	)

	c.lifecycleOpsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plugin_lifecycle_ops_total",
			Help:      "Total number of plugin enable and disable transitions",
		},
		[]string{"plugin", "op"},
	)

	c.activationFailures = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plugin_activation_failures_total",
			Help:      "Total number of failed plugin activations",
		},
		[]string{"plugin"},
	)

	c.activationDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "plugin_activation_duration_seconds",
			Help:      "Plugin activation hook duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"plugin"},
	)

	c.commandsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plugin_command_executions_total",
			Help:      "Total number of plugin command executions",
		},
		[]string{"plugin", "command", "status"},
	)

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))
	return c
}

// RecordRegistration records a register or unregister operation.
func (c *Collector) RecordRegistration(op string) {
	if c == nil {
		return
	}
	c.registrationsTotal.WithLabelValues(op).Inc()
}

// RecordLifecycleOp records an enable or disable transition.
func (c *Collector) RecordLifecycleOp(pluginID, op string) {
	if c == nil {
		return
	}
	c.lifecycleOpsTotal.WithLabelValues(pluginID, op).Inc()
}

// RecordActivation records an activation attempt and its duration.
func (c *Collector) RecordActivation(pluginID string, duration time.Duration, err error) {
	if c == nil {
		return
	}
	c.activationDuration.WithLabelValues(pluginID).Observe(duration.Seconds())
	if err != nil {
		c.activationFailures.WithLabelValues(pluginID).Inc()
	}
}

// RecordCommand records a command execution outcome.
func (c *Collector) RecordCommand(pluginID, command string, err error) {
	if c == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.commandsTotal.WithLabelValues(pluginID, command, status).Inc()
}
