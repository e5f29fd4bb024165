package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WebhooksReceivedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paystack_webhooks_received_total",
		Help: "Total number of verified webhook notifications by event type",
	}, []string{"event"})

	WebhooksRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paystack_webhooks_rejected_total",
		Help: "Total number of rejected webhook notifications",
	}, []string{"reason"})

	DuplicateDeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paystack_duplicate_deliveries_total",
		Help: "Total number of deliveries for an already known reference",
	}, []string{"detected_by"})

	OrdersFulfilledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_fulfilled_total",
		Help: "Total number of orders completed from a payment notification",
	})

	OrdersFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_failed_total",
		Help: "Total number of notifications that could not create an order",
	}, []string{"reason"})

	FulfillmentItemFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fulfillment_item_failures_total",
		Help: "Total number of cart lines skipped or partially fulfilled",
	}, []string{"reason"})

	StockFloorClampedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stock_floor_clamped_total",
		Help: "Total number of decrements that would have taken stock below zero",
	})

	RevenueLogFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "revenue_log_failures_total",
		Help: "Total number of orders completed without a revenue log",
	})

	FulfillmentLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fulfillment_latency_seconds",
		Help:    "Latency of order fulfillment from a verified notification",
		Buckets: prometheus.DefBuckets,
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
