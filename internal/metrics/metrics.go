package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Rejection reasons recorded by OrdersRejected
const (
	ReasonValidation  = "validation"
	ReasonStock       = "stock"
	ReasonContention  = "contention"
	ReasonPersistence = "persistence"
)

// Sync row outcomes recorded by SyncRows
const (
	OutcomeCreated = "created"
	OutcomeUpdated = "updated"
	OutcomeSkipped = "skipped"
	OutcomeErrored = "errored"
	OutcomePushed  = "pushed"
)

type Registry struct {
	reg *prometheus.Registry

	OrdersPlaced     prometheus.Counter
	OrdersRejected   *prometheus.CounterVec
	LockContention   prometheus.Counter
	PlacementSeconds prometheus.Histogram
	SyncRows         *prometheus.CounterVec
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()

	placed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orders_placed_total",
		Help: "Orders committed to the sale ledger.",
	})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_rejected_total",
		Help: "Orders that were rolled back, by reason.",
	}, []string{"reason"})
	contention := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "order_lock_contention_total",
		Help: "Placements that timed out waiting for a product row lock.",
	})
	latency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "order_placement_seconds",
		Help:    "Wall time of the placement transaction.",
		Buckets: prometheus.DefBuckets,
	})
	syncRows := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_sync_rows_total",
		Help: "Inventory rows processed by sync, by outcome.",
	}, []string{"outcome"})

	r.MustRegister(placed, rejected, contention, latency, syncRows)
	r.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return &Registry{
		reg:              r,
		OrdersPlaced:     placed,
		OrdersRejected:   rejected,
		LockContention:   contention,
		PlacementSeconds: latency,
		SyncRows:         syncRows,
	}
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }
