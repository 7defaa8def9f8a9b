package edgeport

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
type MetricsCollector interface {
	// RecordOpen is called after each Open.
	RecordOpen(vol uint8, err error)

	// RecordRead is called after each Read. sectors is the requested count.
	RecordRead(vol uint8, sectors uint32, duration time.Duration, err error)

	// RecordWrite is called after each Write.
	RecordWrite(vol uint8, sectors uint32, duration time.Duration, err error)

	// RecordFlush is called after each Flush.
	RecordFlush(vol uint8, duration time.Duration, err error)

	// RecordAcquire is called after each metadata lock Acquire. attempts is
	// the number of host lock calls it took, wait the time spent blocked.
	RecordAcquire(attempts int, wait time.Duration)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordOpen(uint8, error)                         {}
func (NoopMetricsCollector) RecordRead(uint8, uint32, time.Duration, error)  {}
func (NoopMetricsCollector) RecordWrite(uint8, uint32, time.Duration, error) {}
func (NoopMetricsCollector) RecordFlush(uint8, time.Duration, error)         {}
func (NoopMetricsCollector) RecordAcquire(int, time.Duration)                {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	OpenCount       atomic.Int64
	OpenErrors      atomic.Int64
	ReadCount       atomic.Int64
	ReadErrors      atomic.Int64
	ReadSectors     atomic.Int64
	ReadTotalNanos  atomic.Int64
	WriteCount      atomic.Int64
	WriteErrors     atomic.Int64
	WriteSectors    atomic.Int64
	WriteTotalNanos atomic.Int64
	FlushCount      atomic.Int64
	FlushErrors     atomic.Int64
	AcquireCount    atomic.Int64
	AcquireRetries  atomic.Int64
	AcquireWaitNs   atomic.Int64
}

// RecordOpen implements MetricsCollector.
func (b *BasicMetricsCollector) RecordOpen(_ uint8, err error) {
	b.OpenCount.Add(1)
	if err != nil {
		b.OpenErrors.Add(1)
	}
}

// RecordRead implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRead(_ uint8, sectors uint32, duration time.Duration, err error) {
	b.ReadCount.Add(1)
	b.ReadTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.ReadErrors.Add(1)
		return
	}
	b.ReadSectors.Add(int64(sectors))
}

// RecordWrite implements MetricsCollector.
func (b *BasicMetricsCollector) RecordWrite(_ uint8, sectors uint32, duration time.Duration, err error) {
	b.WriteCount.Add(1)
	b.WriteTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.WriteErrors.Add(1)
		return
	}
	b.WriteSectors.Add(int64(sectors))
}

// RecordFlush implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFlush(_ uint8, _ time.Duration, err error) {
	b.FlushCount.Add(1)
	if err != nil {
		b.FlushErrors.Add(1)
	}
}

// RecordAcquire implements MetricsCollector.
func (b *BasicMetricsCollector) RecordAcquire(attempts int, wait time.Duration) {
	b.AcquireCount.Add(1)
	if attempts > 1 {
		b.AcquireRetries.Add(int64(attempts - 1))
	}
	b.AcquireWaitNs.Add(wait.Nanoseconds())
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		OpenCount:      b.OpenCount.Load(),
		OpenErrors:     b.OpenErrors.Load(),
		ReadCount:      b.ReadCount.Load(),
		ReadErrors:     b.ReadErrors.Load(),
		ReadSectors:    b.ReadSectors.Load(),
		ReadAvgNanos:   avg(b.ReadTotalNanos.Load(), b.ReadCount.Load()),
		WriteCount:     b.WriteCount.Load(),
		WriteErrors:    b.WriteErrors.Load(),
		WriteSectors:   b.WriteSectors.Load(),
		WriteAvgNanos:  avg(b.WriteTotalNanos.Load(), b.WriteCount.Load()),
		FlushCount:     b.FlushCount.Load(),
		FlushErrors:    b.FlushErrors.Load(),
		AcquireCount:   b.AcquireCount.Load(),
		AcquireRetries: b.AcquireRetries.Load(),
		AcquireAvgWait: time.Duration(avg(b.AcquireWaitNs.Load(), b.AcquireCount.Load())),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	OpenCount      int64
	OpenErrors     int64
	ReadCount      int64
	ReadErrors     int64
	ReadSectors    int64
	ReadAvgNanos   int64
	WriteCount     int64
	WriteErrors    int64
	WriteSectors   int64
	WriteAvgNanos  int64
	FlushCount     int64
	FlushErrors    int64
	AcquireCount   int64
	AcquireRetries int64
	AcquireAvgWait time.Duration
}
