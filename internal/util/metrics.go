package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CartItemsAddedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cart_items_added_total",
		Help: "Total number of items added to carts",
	})

	CartItemsRemovedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cart_items_removed_total",
		Help: "Total number of cart line removals",
	})

	CartsClearedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "carts_cleared_total",
		Help: "Total number of cart clears",
	}, []string{"reason"})

	CheckoutsStartedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkouts_started_total",
		Help: "Total number of checkout attempts started",
	})

	CheckoutsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkouts_failed_total",
		Help: "Total number of failed checkout attempts",
	}, []string{"reason"})

	ShippingRecalcTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shipping_recalculations_total",
		Help: "Total number of successful shipping recalculations",
	})

	ShippingRecalcFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shipping_recalculations_failed_total",
		Help: "Total number of failed shipping recalculations",
	})

	ShippingRecalcLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "shipping_recalculation_latency_seconds",
		Help:    "Latency of shipping recalculation round trips",
		Buckets: prometheus.DefBuckets,
	})

	ConfirmAttemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payment_confirm_attempts_total",
		Help: "Total number of payment confirmation attempts",
	})

	ConfirmSucceededTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payment_confirm_success_total",
		Help: "Total number of successful payment confirmations",
	})

	ConfirmFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payment_confirm_failed_total",
		Help: "Total number of failed payment confirmations",
	})

	OrdersCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_completed_total",
		Help: "Total number of completed orders recorded",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
