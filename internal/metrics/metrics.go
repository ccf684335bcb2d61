// Package metrics provides Prometheus metrics for the catalog service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ProductsVersionedTotal counts forks created because an edited product
	// was referenced by an order.
	ProductsVersionedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "catalog",
			Subsystem: "versioning",
			Name:      "products_versioned_total",
			Help:      "Total number of product versions forked on update",
		},
	)

	// GraphRejectionsTotal counts component edges rejected by the graph rules.
	GraphRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "catalog",
			Subsystem: "graph",
			Name:      "rejections_total",
			Help:      "Total number of rejected component edges by reason",
		},
		[]string{"reason"},
	)

	// OrdersCreatedTotal counts committed orders.
	OrdersCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "catalog",
			Subsystem: "orders",
			Name:      "created_total",
			Help:      "Total number of orders created",
		},
	)

	// TxRetriesTotal counts transactions retried after a transient failure.
	TxRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "catalog",
			Subsystem: "store",
			Name:      "tx_retries_total",
			Help:      "Total number of transaction retries by operation",
		},
		[]string{"operation"},
	)

	// EventsPublishedTotal counts outbox events by publish outcome.
	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "catalog",
			Subsystem: "outbox",
			Name:      "events_published_total",
			Help:      "Total number of outbox events by publish status",
		},
		[]string{"status"},
	)

	// SnapshotBuildDuration tracks the time to freeze one line item.
	SnapshotBuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "catalog",
			Subsystem: "snapshot",
			Name:      "build_seconds",
			Help:      "Duration of snapshot builds in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
	)

	// HTTPRequestDuration tracks inbound HTTP request duration.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "catalog",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of inbound HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)
