package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	promNamespace = "webp2png"
	promSubsystem = "http"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: promNamespace,
			Subsystem: promSubsystem,
			Name:      "requests_total",
			Help:      "Requests handled, by route and status code",
		},
		[]string{"route", "code"},
	)

	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: promNamespace,
			Subsystem: promSubsystem,
			Name:      "request_duration_seconds",
			Help:      "Request latency, by route",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		},
		[]string{"route"},
	)

	conversionErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: promNamespace,
			Subsystem: promSubsystem,
			Name:      "conversion_errors_total",
			Help:      "Failed conversions, by error kind",
		},
		[]string{"kind"},
	)

	bytesIn = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Subsystem: promSubsystem,
		Name:      "input_bytes_total",
		Help:      "Encoded input bytes accepted for conversion",
	})

	bytesOut = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Subsystem: promSubsystem,
		Name:      "output_bytes_total",
		Help:      "PNG bytes returned",
	})

	inFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: promNamespace,
		Subsystem: promSubsystem,
		Name:      "conversions_in_flight",
		Help:      "Conversions currently holding a limiter slot",
	})

	rejected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Subsystem: promSubsystem,
		Name:      "rejected_busy_total",
		Help:      "Requests rejected because no conversion slot freed in time",
	})

	rateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Subsystem: promSubsystem,
		Name:      "rate_limited_total",
		Help:      "Requests rejected by the rate limiter",
	})
)
