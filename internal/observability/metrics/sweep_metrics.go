package metrics

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	SweepPassRenewal      = "renewal"
	SweepPassCancellation = "cancellation"
)

// Config carries the constant labels stamped on every metric.
type Config struct {
	ServiceName string
	Environment string
}

// SweepMetrics captures nightly sweep health signals.
type SweepMetrics struct {
	runs        prometheus.Counter
	runDuration prometheus.Histogram
	renewed     prometheus.Counter
	autoPaid    prometheus.Counter
	cancelled   prometheus.Counter
	itemErrors  *prometheus.CounterVec
}

var (
	sweepMetricsOnce sync.Once
	sweepMetrics     *SweepMetrics
)

// Sweep returns the singleton sweep metrics registry.
func Sweep() *SweepMetrics {
	return SweepWithConfig(Config{})
}

// SweepWithConfig returns the singleton sweep metrics registry using config labels.
func SweepWithConfig(cfg Config) *SweepMetrics {
	sweepMetricsOnce.Do(func() {
		sweepMetrics = newSweepMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return sweepMetrics
}

// ResetSweepMetricsForTest resets the sweep metrics singleton for tests.
func ResetSweepMetricsForTest() {
	sweepMetricsOnce = sync.Once{}
	sweepMetrics = nil
}

func newSweepMetrics(registerer prometheus.Registerer, cfg Config) *SweepMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "suscribo"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	runs := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "suscribo_sweep_runs_total",
		Help:        "Nightly sweep executions.",
		ConstLabels: constLabels,
	})
	runDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "suscribo_sweep_duration_seconds",
		Help:        "Nightly sweep latency to keep the renewal window inside its slot.",
		Buckets:     []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		ConstLabels: constLabels,
	})
	renewed := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "suscribo_sweep_renewed_total",
		Help:        "Subscriptions renewed by the sweep.",
		ConstLabels: constLabels,
	})
	autoPaid := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "suscribo_sweep_autopaid_total",
		Help:        "Renewal invoices settled automatically by the sweep.",
		ConstLabels: constLabels,
	})
	cancelled := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "suscribo_sweep_cancelled_total",
		Help:        "Subscriptions cancelled after the unpaid grace window.",
		ConstLabels: constLabels,
	})
	itemErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "suscribo_sweep_item_errors_total",
		Help:        "Per-subscription sweep failures by pass.",
		ConstLabels: constLabels,
	}, []string{"pass"})

	registerer.MustRegister(
		runs,
		runDuration,
		renewed,
		autoPaid,
		cancelled,
		itemErrors,
	)

	return &SweepMetrics{
		runs:        runs,
		runDuration: runDuration,
		renewed:     renewed,
		autoPaid:    autoPaid,
		cancelled:   cancelled,
		itemErrors:  itemErrors,
	}
}

// IncRun increments the sweep run counter.
func (m *SweepMetrics) IncRun() {
	if m == nil || m.runs == nil {
		return
	}
	m.runs.Inc()
}

// ObserveRunDuration records sweep latency in seconds.
func (m *SweepMetrics) ObserveRunDuration(duration time.Duration) {
	if m == nil || m.runDuration == nil {
		return
	}
	m.runDuration.Observe(duration.Seconds())
}

// AddRenewed increments the renewed counter by count.
func (m *SweepMetrics) AddRenewed(count int) {
	if m == nil || m.renewed == nil || count <= 0 {
		return
	}
	m.renewed.Add(float64(count))
}

// AddAutoPaid increments the auto-paid counter by count.
func (m *SweepMetrics) AddAutoPaid(count int) {
	if m == nil || m.autoPaid == nil || count <= 0 {
		return
	}
	m.autoPaid.Add(float64(count))
}

// AddCancelled increments the cancelled counter by count.
func (m *SweepMetrics) AddCancelled(count int) {
	if m == nil || m.cancelled == nil || count <= 0 {
		return
	}
	m.cancelled.Add(float64(count))
}

// IncItemError increments the per-subscription failure counter for a pass.
func (m *SweepMetrics) IncItemError(pass string) {
	if m == nil || m.itemErrors == nil {
		return
	}
	m.itemErrors.WithLabelValues(pass).Inc()
}
