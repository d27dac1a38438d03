// Package telemetry emits structured pipeline events to the log stream and
// a Prometheus registry. Emission is best-effort and fire-and-forget: a
// telemetry failure must never fail the pipeline, so every path here
// swallows its own errors.
package telemetry

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tiervault/tiervault/pkg/types"
)

// Event is one structured telemetry record.
type Event struct {
	Name      string
	Timestamp time.Time
	Fields    map[string]interface{}
}

// Sink accepts structured telemetry events.
type Sink interface {
	// Emit records one event. Best-effort; never returns an error.
	Emit(event Event)

	// RecordOutcome records one per-object task outcome.
	RecordOutcome(outcome types.TaskOutcome)

	// RecordRun records the summary of one batch run.
	RecordRun(summary types.BatchSummary)
}

// Config represents telemetry settings.
type Config struct {
	Enabled   bool              `yaml:"enabled"`
	Namespace string            `yaml:"namespace"`
	Labels    map[string]string `yaml:"labels"`
}

// Collector is the default Sink: slog for the event stream, Prometheus for
// aggregates.
type Collector struct {
	logger   *slog.Logger
	registry *prometheus.Registry
	enabled  bool

	eventCounter   *prometheus.CounterVec
	outcomeCounter *prometheus.CounterVec
	runDuration    prometheus.Histogram
	runCounter     *prometheus.CounterVec
}

// NewCollector creates a telemetry collector with its own registry.
func NewCollector(cfg *Config) *Collector {
	if cfg == nil {
		cfg = &Config{Enabled: true, Namespace: "tiervault"}
	}

	c := &Collector{
		logger:  slog.Default().With("component", "telemetry"),
		enabled: cfg.Enabled,
	}
	if !cfg.Enabled {
		return c
	}

	registry := prometheus.NewRegistry()
	constLabels := prometheus.Labels(cfg.Labels)

	c.registry = registry
	c.eventCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   cfg.Namespace,
		Name:        "events_total",
		Help:        "Total telemetry events by name",
		ConstLabels: constLabels,
	}, []string{"event"})
	c.outcomeCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   cfg.Namespace,
		Name:        "task_outcomes_total",
		Help:        "Per-object task outcomes by stage and status",
		ConstLabels: constLabels,
	}, []string{"stage", "status"})
	c.runDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace:   cfg.Namespace,
		Name:        "batch_run_duration_seconds",
		Help:        "Duration of batch runs",
		ConstLabels: constLabels,
		Buckets:     prometheus.ExponentialBuckets(0.1, 2, 12),
	})
	c.runCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   cfg.Namespace,
		Name:        "batch_runs_total",
		Help:        "Batch runs by result",
		ConstLabels: constLabels,
	}, []string{"result"})

	registry.MustRegister(c.eventCounter, c.outcomeCounter, c.runDuration, c.runCounter)

	return c
}

// Registry exposes the Prometheus registry for the metrics endpoint.
// Nil when telemetry is disabled.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Emit records one structured event.
func (c *Collector) Emit(event Event) {
	defer func() { _ = recover() }()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	args := make([]interface{}, 0, 2*len(event.Fields)+2)
	args = append(args, "event", event.Name)
	for k, v := range event.Fields {
		args = append(args, k, v)
	}
	c.logger.Info("telemetry", args...)

	if c.enabled {
		c.eventCounter.WithLabelValues(event.Name).Inc()
	}
}

// RecordOutcome records one per-object task outcome.
func (c *Collector) RecordOutcome(outcome types.TaskOutcome) {
	defer func() { _ = recover() }()

	if outcome.Status == types.StatusFailed {
		c.logger.Warn("task failed",
			"key", outcome.Key, "stage", outcome.Stage,
			"error_code", outcome.ErrorCode, "detail", outcome.ErrorDetail)
	}

	if c.enabled {
		c.outcomeCounter.WithLabelValues(string(outcome.Stage), string(outcome.Status)).Inc()
	}
}

// RecordRun records the summary of one batch run.
func (c *Collector) RecordRun(summary types.BatchSummary) {
	defer func() { _ = recover() }()

	result := "completed"
	if summary.Aborted {
		result = "aborted"
	}

	c.logger.Info("batch run finished",
		"result", result,
		"duration", summary.FinishedAt.Sub(summary.StartedAt),
		"outcomes", len(summary.Outcomes))

	if c.enabled {
		c.runCounter.WithLabelValues(result).Inc()
		c.runDuration.Observe(summary.FinishedAt.Sub(summary.StartedAt).Seconds())
	}
}

// Nop is a Sink that discards everything, for tests and disabled setups.
type Nop struct{}

func (Nop) Emit(Event)                      {}
func (Nop) RecordOutcome(types.TaskOutcome) {}
func (Nop) RecordRun(types.BatchSummary)    {}
