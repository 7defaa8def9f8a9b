// Package promcollector exports edgeport adapter metrics to Prometheus.
//
//	reg := prometheus.NewRegistry()
//	bd := edgeport.New(table, edgeport.WithMetricsCollector(promcollector.New(reg)))
//	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
package promcollector

import (
	"strconv"
	"time"

	"github.com/hupe1980/edgeport"
	"github.com/prometheus/client_golang/prometheus"
)

var _ edgeport.MetricsCollector = (*Collector)(nil)

// Collector implements edgeport.MetricsCollector with Prometheus metrics
// labelled by volume and outcome.
type Collector struct {
	opens       *prometheus.CounterVec
	opLatency   *prometheus.HistogramVec
	sectors     *prometheus.CounterVec
	acquires    prometheus.Counter
	lockRetries prometheus.Counter
	lockWait    prometheus.Histogram
}

// New creates a collector and registers its metrics with reg.
// A nil reg uses prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c := &Collector{
		opens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "edgeport_volume_opens_total",
			Help: "Volume opens by outcome",
		}, []string{"volume", "status"}),
		opLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "edgeport_operation_latency_seconds",
			Help:    "Latency of block device operations",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
		}, []string{"op", "volume", "status"}),
		sectors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "edgeport_sectors_total",
			Help: "Sectors transferred by successful reads and writes",
		}, []string{"op", "volume"}),
		acquires: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "edgeport_metadata_lock_acquires_total",
			Help: "Metadata lock acquisitions",
		}),
		lockRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "edgeport_metadata_lock_retries_total",
			Help: "Failed host lock calls retried by Acquire",
		}),
		lockWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "edgeport_metadata_lock_wait_seconds",
			Help:    "Time spent blocked in Acquire",
			Buckets: prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(c.opens, c.opLatency, c.sectors, c.acquires, c.lockRetries, c.lockWait)
	return c
}

func status(err error) string {
	if err == nil {
		return "ok"
	}
	return edgeport.StatusOf(err).String()
}

func volume(vol uint8) string { return strconv.Itoa(int(vol)) }

// RecordOpen implements edgeport.MetricsCollector.
func (c *Collector) RecordOpen(vol uint8, err error) {
	c.opens.WithLabelValues(volume(vol), status(err)).Inc()
}

// RecordRead implements edgeport.MetricsCollector.
func (c *Collector) RecordRead(vol uint8, sectors uint32, d time.Duration, err error) {
	c.recordIO("read", vol, sectors, d, err)
}

// RecordWrite implements edgeport.MetricsCollector.
func (c *Collector) RecordWrite(vol uint8, sectors uint32, d time.Duration, err error) {
	c.recordIO("write", vol, sectors, d, err)
}

func (c *Collector) recordIO(op string, vol uint8, sectors uint32, d time.Duration, err error) {
	c.opLatency.WithLabelValues(op, volume(vol), status(err)).Observe(d.Seconds())
	if err == nil {
		c.sectors.WithLabelValues(op, volume(vol)).Add(float64(sectors))
	}
}

// RecordFlush implements edgeport.MetricsCollector.
func (c *Collector) RecordFlush(vol uint8, d time.Duration, err error) {
	c.opLatency.WithLabelValues("flush", volume(vol), status(err)).Observe(d.Seconds())
}

// RecordAcquire implements edgeport.MetricsCollector.
func (c *Collector) RecordAcquire(attempts int, wait time.Duration) {
	c.acquires.Inc()
	if attempts > 1 {
		c.lockRetries.Add(float64(attempts - 1))
	}
	c.lockWait.Observe(wait.Seconds())
}
