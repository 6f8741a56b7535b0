package metrics

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	PredictionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mediassist_prediction_duration_seconds",
			Help:    "Classifier call duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"transport"},
	)

	PredictionTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediassist_prediction_total",
			Help: "Classifier calls by outcome",
		},
		[]string{"outcome"},
	)

	PredictionConfidence = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mediassist_prediction_confidence_percent",
			Help:    "Confidence of stored reports, in percent",
			Buckets: []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		},
	)

	CacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mediassist_prediction_cache_hits_total",
			Help: "Predictions served from cache",
		},
	)

	CacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mediassist_prediction_cache_misses_total",
			Help: "Predictions not found in cache",
		},
	)

	BreakerState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "mediassist_classifier_breaker_open",
			Help: "1 while the classifier circuit breaker is open",
		},
	)

	ReportsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mediassist_reports_created_total",
			Help: "Reports stored",
		},
	)

	ReportsDeleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mediassist_reports_deleted_total",
			Help: "Reports deleted",
		},
	)

	AccountsRegistered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mediassist_accounts_registered_total",
			Help: "Accounts created",
		},
	)

	LoginAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediassist_login_attempts_total",
			Help: "Login attempts by result",
		},
		[]string{"result"},
	)
)

var registerOnce sync.Once

func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			PredictionDuration,
			PredictionTotal,
			PredictionConfidence,
			CacheHits,
			CacheMisses,
			BreakerState,
			ReportsCreated,
			ReportsDeleted,
			AccountsRegistered,
			LoginAttempts,
		)
	})
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
