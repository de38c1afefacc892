package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RefreshCallsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lockerclient_refresh_calls_total",
		Help: "Total number of refresh-token exchanges sent to the backend.",
	})

	RefreshFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lockerclient_refresh_failures_total",
		Help: "Total number of refresh-token exchanges that failed.",
	})

	RequestRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lockerclient_request_retries_total",
		Help: "Requests replayed after an authentication failure, by outcome.",
	},
		[]string{"outcome"},
	)

	OrderTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lockerclient_order_transitions_total",
		Help: "Order status transitions applied, by target status.",
	},
		[]string{"status"},
	)

	OperationErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lockerclient_operation_errors_total",
		Help: "Total number of errors encountered during specific operations.",
	},
		[]string{"operation"},
	)

	AllocationFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lockerclient_allocation_failures_total",
		Help: "Box reservations rejected for lack of capacity.",
	})

	EventsConsumedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lockerclient_events_consumed_total",
		Help: "Payment confirmation events consumed, by result.",
	},
		[]string{"result"},
	)

	OrderCacheItems = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lockerclient_order_cache_items",
		Help: "Current number of items in the order cache.",
	})
)
