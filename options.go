package edgeport

import (
	"log/slog"
	"time"
)

const (
	// DefaultLockName is the host object name of the metadata lock.
	DefaultLockName = "edgefs_lock"

	// DefaultLockRetryPause is the wait between failed metadata lock attempts.
	DefaultLockRetryPause = 10 * time.Millisecond
)

type options struct {
	metricsCollector MetricsCollector
	logger           *Logger
	lockName         string
	lockRetryPause   time.Duration
}

// Option configures the block device adapter and the metadata lock.
type Option func(*options)

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &edgeport.BasicMetricsCollector{}
//	bd := edgeport.New(table, edgeport.WithMetricsCollector(metrics))
//	// ... use bd ...
//	stats := metrics.GetStats()
//	fmt.Printf("Reads: %d, Avg latency: %dns\n", stats.ReadCount, stats.ReadAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := edgeport.NewJSONLogger(slog.LevelInfo)
//	bd := edgeport.New(table, edgeport.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithLockName sets the host object name of the metadata lock.
// Hosts that share one lock service between file systems (see osal/ddblock)
// use it to give every mounted volume set its own lock.
func WithLockName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.lockName = name
		}
	}
}

// WithLockRetryPause sets how long Acquire waits after a failed host lock
// call before trying again. Zero retries immediately.
func WithLockRetryPause(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.lockRetryPause = d
		}
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
		lockName:         DefaultLockName,
		lockRetryPause:   DefaultLockRetryPause,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.metricsCollector == nil {
		o.metricsCollector = NoopMetricsCollector{}
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	return o
}
