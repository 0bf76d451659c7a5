package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "deliveries_orders_created_total",
		Help: "Total number of delivery orders successfully created.",
	})

	OrdersUpdatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "deliveries_orders_updated_total",
		Help: "Total number of delivery orders successfully edited.",
	})

	OrdersDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "deliveries_orders_deleted_total",
		Help: "Total number of delete requests successfully applied.",
	})

	StatusTogglesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "deliveries_status_toggles_total",
		Help: "Total number of status toggles, by resulting status.",
	},
		[]string{"status"},
	)

	OperationErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "deliveries_operation_errors_total",
		Help: "Total number of errors encountered during specific operations.",
	},
		[]string{"operation"},
	)

	OrderCacheItems = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "deliveries_order_cache_items",
		Help: "Current number of orders in the in-memory collection.",
	})

	AuditEntriesDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "deliveries_audit_entries_dropped_total",
		Help: "Audit entries that could not be delivered to the audit sink.",
	})
)
