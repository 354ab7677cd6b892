package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Search metrics
	evaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "optimizer_evaluations_total",
			Help: "Total number of fitness evaluations",
		},
		[]string{"operator", "outcome"},
	)

	evaluationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "optimizer_evaluation_duration_seconds",
			Help:    "Duration of one backtest evaluation",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		},
	)

	bestBalance = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "optimizer_best_balance",
			Help: "Net balance of the best accepted configuration of each running optimization",
		},
		[]string{"run_id"},
	)

	// Run metrics
	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "optimizer_runs_total",
			Help: "Total number of optimization runs by final status",
		},
		[]string{"status"},
	)

	// Error metrics
	errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "optimizer_errors_total",
			Help: "Total number of errors",
		},
		[]string{"category"},
	)
)

func init() {
	// Register metrics
	prometheus.MustRegister(evaluationsTotal)
	prometheus.MustRegister(evaluationDuration)
	prometheus.MustRegister(bestBalance)
	prometheus.MustRegister(runsTotal)
	prometheus.MustRegister(errorsTotal)
}

// MetricsHandler handles Prometheus metrics endpoint
type MetricsHandler struct{}

// NewMetricsHandler creates a new metrics handler
func NewMetricsHandler() *MetricsHandler {
	return &MetricsHandler{}
}

// ServeHTTP serves the Prometheus metrics endpoint
func (m *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// RecordEvaluation records one oracle call and its accept/reject outcome
func RecordEvaluation(operator string, accepted bool, duration time.Duration) {
	outcome := "rejected"
	if accepted {
		outcome = "accepted"
	}
	evaluationsTotal.WithLabelValues(operator, outcome).Inc()
	evaluationDuration.Observe(duration.Seconds())
}

// UpdateBestBalance updates the best balance gauge of one run
func UpdateBestBalance(runID string, balance float64) {
	bestBalance.WithLabelValues(runID).Set(balance)
}

// ClearBestBalance drops the series of a finished run
func ClearBestBalance(runID string) {
	bestBalance.DeleteLabelValues(runID)
}

// RecordRun records a finished run
func RecordRun(status string) {
	runsTotal.WithLabelValues(status).Inc()
}

// RecordError records an error metric
func RecordError(category string) {
	errorsTotal.WithLabelValues(category).Inc()
}
