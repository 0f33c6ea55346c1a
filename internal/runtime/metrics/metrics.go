// Package metrics holds the Prometheus collectors for the publish and consume
// paths. A nil *Collector is valid and records nothing.
package metrics

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "chatflow"

const (
	OutcomeAcked   = "acked"
	OutcomeFailed  = "failed"
	OutcomePending = "pending"
)

// Collector groups the chatflow collectors.
type Collector struct {
	mu sync.Mutex

	publishedTotal  *prometheus.CounterVec
	publishDuration *prometheus.HistogramVec
	decodedTotal    *prometheus.CounterVec
	batchesTotal    *prometheus.CounterVec
	batchSize       prometheus.Histogram

	registerer prometheus.Registerer
	registered bool
}

// New creates the collectors. A nil registerer selects prometheus.DefaultRegisterer.
func New(registerer prometheus.Registerer) *Collector {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &Collector{
		registerer: registerer,
		publishedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "published_total",
			Help:      "Envelopes submitted to the stream, by delivery outcome",
		}, []string{"stream", "outcome"}),
		publishDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "publish_duration_seconds",
			Help:      "Time spent waiting for the stream to acknowledge a submission",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stream"}),
		decodedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_decoded_total",
			Help:      "Stream records decoded, by decode status",
		}, []string{"status"}),
		batchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Record batches handled, by batch status",
		}, []string{"status"}),
		batchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size_records",
			Help:      "Number of records per handled batch",
			Buckets:   []float64{0, 1, 10, 50, 100, 500, 1000, 10000},
		}),
	}
}

// Register registers every collector. Safe to call multiple times.
func (c *Collector) Register() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.registered {
		return nil
	}

	collectors := []prometheus.Collector{
		c.publishedTotal,
		c.publishDuration,
		c.decodedTotal,
		c.batchesTotal,
		c.batchSize,
	}
	for _, col := range collectors {
		if err := c.registerer.Register(col); err != nil {
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				return err
			}
		}
	}

	c.registered = true
	return nil
}

// ObservePublish records one submission outcome. Pending submissions carry no
// duration yet.
func (c *Collector) ObservePublish(stream, outcome string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.publishedTotal.WithLabelValues(stream, outcome).Inc()
	if outcome != OutcomePending {
		c.publishDuration.WithLabelValues(stream).Observe(elapsed.Seconds())
	}
}

// ObserveRecord counts one decoded record.
func (c *Collector) ObserveRecord(status string) {
	if c == nil {
		return
	}
	c.decodedTotal.WithLabelValues(status).Inc()
}

// ObserveBatch counts one handled batch.
func (c *Collector) ObserveBatch(status string, records int) {
	if c == nil {
		return
	}
	c.batchesTotal.WithLabelValues(status).Inc()
	c.batchSize.Observe(float64(records))
}
