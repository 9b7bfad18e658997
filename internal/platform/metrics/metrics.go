package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the registry.
type Metrics struct {
	ManufacturersRegistered prometheus.Counter
	BatchesRegistered       prometheus.Counter
	BatchesNearExpiry       prometheus.Counter
	StatusUpdates           *prometheus.CounterVec
	BatchesExpired          prometheus.Counter
	Verifications           *prometheus.CounterVec
	RequestLatency          *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		ManufacturersRegistered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "medledger_manufacturers_registered_total",
			Help: "Total number of manufacturers registered",
		}),
		BatchesRegistered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "medledger_batches_registered_total",
			Help: "Total number of batches registered",
		}),
		BatchesNearExpiry: promauto.NewCounter(prometheus.CounterOpts{
			Name: "medledger_batches_registered_near_expiry_total",
			Help: "Batches accepted with 30 days or less to expiry",
		}),
		StatusUpdates: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "medledger_batch_status_updates_total",
			Help: "Explicit batch status transitions by target status",
		}, []string{"new_status"}),
		BatchesExpired: promauto.NewCounter(prometheus.CounterOpts{
			Name: "medledger_batches_expired_total",
			Help: "Batches moved to Expired by the expiry check",
		}),
		Verifications: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "medledger_batch_verifications_total",
			Help: "Verification reads by outcome",
		}, []string{"valid"}),
		RequestLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "medledger_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "status"}),
	}
}
