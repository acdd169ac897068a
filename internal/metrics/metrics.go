// Package metrics provides Prometheus metrics for the Object Store.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/softkave/fimidx-sub001/internal/objstore"
)

// Status label values.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Collector holds the store metrics and implements objstore.Observer.
type Collector struct {
	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	BulkItemsTotal    *prometheus.CounterVec
}

var _ objstore.Observer = (*Collector)(nil)

// New creates the metrics and registers them with reg. A nil reg uses
// prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Collector{
		OperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "objstore_operations_total",
				Help: "Total number of store operations",
			},
			[]string{"backend", "operation", "status"},
		),
		OperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "objstore_operation_duration_seconds",
				Help:    "Duration of store operations in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"backend", "operation"},
		),
		BulkItemsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "objstore_bulk_items_total",
				Help: "Total number of items handled by store operations, by outcome",
			},
			[]string{"backend", "operation", "outcome"},
		),
	}
}

// ObserveOperation implements objstore.Observer.
func (c *Collector) ObserveOperation(backend, op string, err error, elapsed time.Duration) {
	status := StatusOK
	if err != nil {
		status = StatusError
	}
	c.OperationsTotal.WithLabelValues(backend, op, status).Inc()
	c.OperationDuration.WithLabelValues(backend, op).Observe(elapsed.Seconds())
}

// AddItems implements objstore.Observer. Zero counts are not recorded.
func (c *Collector) AddItems(backend, op, outcome string, n int) {
	if n <= 0 {
		return
	}
	c.BulkItemsTotal.WithLabelValues(backend, op, outcome).Add(float64(n))
}
