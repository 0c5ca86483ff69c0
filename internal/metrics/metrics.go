// Package metrics exposes Prometheus collectors for the pipeline's
// observability sink. Transient failures on the hot path are counted here
// instead of failing the caller.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SamplesIngested counts accepted occupancy samples by source
	SamplesIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crowd_samples_ingested_total",
			Help: "Total number of occupancy samples accepted by the gateway",
		},
		[]string{"source"},
	)

	// SamplesRejected counts samples refused at the gateway boundary
	SamplesRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "crowd_samples_rejected_total",
			Help: "Total number of samples rejected by input validation",
		},
	)

	// StoreWriteFailures counts failed handoffs to the sample store
	StoreWriteFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "crowd_store_write_failures_total",
			Help: "Total number of failed sample publishes to the store queue",
		},
	)

	// PollFailures counts failed pulls from the counting source
	PollFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "crowd_poll_failures_total",
			Help: "Total number of failed counting-source polls",
		},
	)

	// AlertNotificationsSent counts delivered crowd alert notifications
	AlertNotificationsSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "crowd_alert_notifications_sent_total",
			Help: "Total number of crowd alert notifications delivered",
		},
	)

	// AlertNotificationsFailed counts alert notifications abandoned after retries
	AlertNotificationsFailed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "crowd_alert_notifications_failed_total",
			Help: "Total number of crowd alert notifications abandoned after retries",
		},
	)

	// ReportsDelivered counts daily report broadcasts by status
	ReportsDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crowd_reports_delivered_total",
			Help: "Total number of daily report delivery attempts by status",
		},
		[]string{"status"},
	)

	// CurrentOccupancy mirrors the live reading for dashboards
	CurrentOccupancy = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "crowd_current_occupancy",
			Help: "Latest known occupancy count",
		},
	)
)
