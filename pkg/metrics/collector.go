// Package metrics exposes Prometheus instrumentation for the compile and run
// pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "stackc"

// Result labels.
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// Collector owns every stackc metric and the registry they live in. A nil
// *Collector is valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	compilations  *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	folds         prometheus.Counter
	simplified    prometheus.Counter
	divByZero     prometheus.Counter
	runs          *prometheus.CounterVec
	vmSteps       prometheus.Counter
}

// NewCollector registers the stackc metrics with registry, or with a fresh
// registry when registry is nil.
func NewCollector(registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	c := &Collector{
		registry: registry,
		compilations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compilations_total",
			Help:      "Compilations by outcome.",
		}, []string{"result"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Time spent in each pipeline stage.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}, []string{"stage"}),
		folds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "optimizer",
			Name:      "folds_total",
			Help:      "Constant subexpressions evaluated at compile time.",
		}),
		simplified: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "optimizer",
			Name:      "simplifications_total",
			Help:      "Neutral or annihilating operands removed.",
		}),
		divByZero: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "optimizer",
			Name:      "division_by_zero_total",
			Help:      "Constant divisions by zero folded to 0.",
		}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "vm",
			Name:      "runs_total",
			Help:      "Program executions by outcome.",
		}, []string{"result"}),
		vmSteps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "vm",
			Name:      "steps_total",
			Help:      "Instructions executed by the stack machine.",
		}),
	}
	registry.MustRegister(
		c.compilations,
		c.stageDuration,
		c.folds,
		c.simplified,
		c.divByZero,
		c.runs,
		c.vmSteps,
	)
	return c
}

// Registry returns the registry the collector registered with.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// RecordCompilation counts one compilation by outcome.
func (c *Collector) RecordCompilation(result string) {
	if c == nil {
		return
	}
	c.compilations.WithLabelValues(result).Inc()
}

// ObserveStage records the duration of one stage. Zero durations are skipped
// so that disabled stages do not skew the histogram.
func (c *Collector) ObserveStage(stage string, d time.Duration) {
	if c == nil || d <= 0 {
		return
	}
	c.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordOptimizer adds the counts of one optimizer run.
func (c *Collector) RecordOptimizer(folds, simplified, divByZero int) {
	if c == nil {
		return
	}
	c.folds.Add(float64(folds))
	c.simplified.Add(float64(simplified))
	c.divByZero.Add(float64(divByZero))
}

// RecordRun counts one VM execution and the instructions it took.
func (c *Collector) RecordRun(result string, steps int) {
	if c == nil {
		return
	}
	c.runs.WithLabelValues(result).Inc()
	c.vmSteps.Add(float64(steps))
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}
