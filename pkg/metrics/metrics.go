package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "attendance_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// Scans counts scan validations by outcome (recorded|already_recorded|...).
	Scans = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attendance_scans_total",
			Help: "Total number of QR scan validations",
		},
		[]string{"result"},
	)

	// TokenRotations counts per-session token rotations performed by the scheduler.
	TokenRotations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "attendance_token_rotations_total",
			Help: "Total number of session token rotations",
		},
	)

	// RotationErrors counts per-session rotation failures. A failed session never
	// aborts the tick for the others, so this is the only trace some failures leave.
	RotationErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "attendance_rotation_errors_total",
			Help: "Total number of failed session token rotations",
		},
	)

	// ConnectedDisplays tracks currently streaming classroom displays.
	ConnectedDisplays = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "attendance_connected_displays",
			Help: "Number of connected display clients",
		},
	)
)
