package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_orders_created_total",
		Help: "Gateway orders created, by payment type and outcome.",
	}, []string{"type", "outcome"})

	Verifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_verifications_total",
		Help: "Payment verification attempts by outcome.",
	}, []string{"outcome"})

	CertificatesIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "certificates_issued_total",
		Help: "Certificate issuance attempts by kind and outcome.",
	}, []string{"kind", "outcome"})

	RenderDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "certificate_render_duration_seconds",
		Help:    "Time spent rendering a single certificate document.",
		Buckets: prometheus.DefBuckets,
	})

	RendersInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "certificate_renders_in_flight",
		Help: "Certificate renders currently holding a renderer slot.",
	})
)
