package workflow

import (
	"log/slog"

	"github.com/opsbuddy/bob/pkg/workflow/observability"
)

// runConfig holds configuration for graph execution.
type runConfig struct {
	maxSteps       int
	logger         *slog.Logger
	metrics        observability.MetricsRecorder
	spans          observability.SpanManager
	tracingEnabled bool

	// snapshot holds a func(S) S installed by WithSnapshot. Stored as any
	// because run options are shared across state types; Stream asserts it
	// back to the concrete signature.
	snapshot any
}

// defaultRunConfig returns the default execution configuration.
func defaultRunConfig() runConfig {
	return runConfig{
		maxSteps: 1000,
		metrics:  observability.NoopMetrics{},
		spans:    observability.NoopSpanManager{},
	}
}

// RunOption configures execution behavior.
type RunOption func(*runConfig)

// WithMaxSteps sets the maximum number of node executions per run.
// Default: 1000.
//
// This prevents looping graphs from running forever. If a run exceeds
// this limit, Run returns a MaxStepsError carrying the state at the point
// of termination, so callers can treat the ceiling as terminal rather
// than fatal.
func WithMaxSteps(n int) RunOption {
	return func(c *runConfig) {
		if n > 0 {
			c.maxSteps = n
		}
	}
}

// WithSnapshot sets a copy function applied to the state before Stream
// hands it to the consumer. Required when S is a pointer type and nodes
// mutate in place: the engine keeps executing after an update is
// delivered, so without a snapshot the consumer and the next node would
// share one state value. Run ignores this option.
func WithSnapshot[S any](fn func(S) S) RunOption {
	return func(c *runConfig) {
		if fn != nil {
			c.snapshot = fn
		}
	}
}

// WithRunLogger sets the logger used for run- and node-level log records.
// When unset, the logger from the execution Context is used.
func WithRunLogger(logger *slog.Logger) RunOption {
	return func(c *runConfig) {
		c.logger = logger
	}
}

// WithMetrics sets the metrics recorder for this run.
// Default: observability.NoopMetrics.
func WithMetrics(m observability.MetricsRecorder) RunOption {
	return func(c *runConfig) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithTracing enables OpenTelemetry span creation for the run and each
// node visit, using the given span manager.
func WithTracing(spans observability.SpanManager) RunOption {
	return func(c *runConfig) {
		if spans != nil {
			c.spans = spans
			c.tracingEnabled = true
		}
	}
}
