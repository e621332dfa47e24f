package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"conductor-hq/tollbooth/pkg/config"
	"conductor-hq/tollbooth/pkg/load"
)

// Collector owns the Prometheus metrics for the decision core. All
// instruments are pre-registered at construction; recording is lock-free
// counter and gauge updates. A cardinality limiter bounds the per-unit
// gauges so an unbounded action space cannot grow the label set without
// limit.
type Collector struct {
	config   config.MetricsConfig
	registry *prometheus.Registry

	decisionsTotal   *prometheus.CounterVec
	decisionDuration prometheus.Histogram
	ruleToggles      *prometheus.CounterVec
	receiptsWritten  prometheus.Counter
	verifications    *prometheus.CounterVec

	unitUtilization *prometheus.GaugeVec
	protectionLevel *prometheus.GaugeVec

	unitLimiter *cardinalityLimiter
}

// NewCollector creates a collector and registers all instruments on the
// given registry. A nil registry gets a fresh private one.
func NewCollector(cfg config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "tollbooth"
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = "core"
	}

	c := &Collector{
		config:      cfg,
		registry:    registry,
		unitLimiter: newCardinalityLimiter(1000),
	}

	c.decisionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: cfg.Namespace,
		Subsystem: cfg.Subsystem,
		Name:      "decisions_total",
		Help:      "Total decisions by outcome.",
	}, []string{"outcome"})

	c.decisionDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: cfg.Namespace,
		Subsystem: cfg.Subsystem,
		Name:      "decision_duration_seconds",
		Help:      "Time to evaluate one decision, including receipt persistence.",
		Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
	})

	c.ruleToggles = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: cfg.Namespace,
		Subsystem: cfg.Subsystem,
		Name:      "rule_toggles_total",
		Help:      "Total rule state changes by rule key.",
	}, []string{"rule"})

	c.receiptsWritten = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: cfg.Namespace,
		Subsystem: cfg.Subsystem,
		Name:      "receipts_written_total",
		Help:      "Total receipts persisted.",
	})

	c.verifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: cfg.Namespace,
		Subsystem: cfg.Subsystem,
		Name:      "signature_verifications_total",
		Help:      "Total receipt signature verifications by result.",
	}, []string{"result"})

	c.unitUtilization = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: cfg.Namespace,
		Subsystem: cfg.Subsystem,
		Name:      "unit_utilization",
		Help:      "Current utilization estimate (rho) per unit.",
	}, []string{"unit"})

	c.protectionLevel = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: cfg.Namespace,
		Subsystem: cfg.Subsystem,
		Name:      "protection_level",
		Help:      "Current protection level per unit (0=permissive, 1=require_approval, 2=read_only).",
	}, []string{"unit"})

	registry.MustRegister(
		c.decisionsTotal,
		c.decisionDuration,
		c.ruleToggles,
		c.receiptsWritten,
		c.verifications,
		c.unitUtilization,
		c.protectionLevel,
	)

	return c
}

// Registry returns the underlying Prometheus registry for exposition.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// RecordDecision records one decision outcome and its evaluation latency.
func (c *Collector) RecordDecision(outcome string, duration time.Duration) {
	c.decisionsTotal.WithLabelValues(outcome).Inc()
	c.decisionDuration.Observe(duration.Seconds())
	c.receiptsWritten.Inc()
}

// RecordRuleToggle records one rule state change.
func (c *Collector) RecordRuleToggle(rule string) {
	c.ruleToggles.WithLabelValues(rule).Inc()
	c.receiptsWritten.Inc()
}

// RecordVerification records one signature verification result.
func (c *Collector) RecordVerification(valid bool) {
	result := "valid"
	if !valid {
		result = "invalid"
	}
	c.verifications.WithLabelValues(result).Inc()
}

// RecordFeature updates the per-unit utilization and protection gauges.
// Units beyond the cardinality limit are dropped.
func (c *Collector) RecordFeature(f load.Feature, level load.ProtectionLevel) {
	if !c.unitLimiter.admit(f.Unit) {
		return
	}
	c.unitUtilization.WithLabelValues(f.Unit).Set(f.Rho)
	c.protectionLevel.WithLabelValues(f.Unit).Set(levelValue(level))
}

// levelValue maps a protection level onto a stable numeric scale.
func levelValue(level load.ProtectionLevel) float64 {
	switch level {
	case load.LevelRequireApproval:
		return 1
	case load.LevelReadOnly:
		return 2
	}
	return 0
}
