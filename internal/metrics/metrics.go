// Package metrics exposes Prometheus instrumentation for the risk
// engine.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	tradesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "risk_engine_trades_total",
			Help: "Trades submitted to the brokerage",
		},
		[]string{"symbol", "side"},
	)

	rejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "risk_engine_rejections_total",
			Help: "Trade intents rejected by the validator",
		},
		[]string{"reason"},
	)

	cycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "risk_engine_cycle_duration_seconds",
			Help:    "Wall time of one full trading cycle",
			Buckets: prometheus.DefBuckets,
		},
	)

	equityGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "risk_engine_equity",
			Help: "Account equity at the last snapshot",
		},
	)

	drawdownGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "risk_engine_drawdown_pct",
			Help: "Decline of equity from its observed peak",
		},
	)

	maxPositionSizeGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "risk_engine_max_position_size",
			Help: "Current tuner-owned position size limit",
		},
	)

	errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "risk_engine_errors_total",
			Help: "Errors by category",
		},
		[]string{"type"},
	)
)

func init() {
	prometheus.MustRegister(tradesTotal)
	prometheus.MustRegister(rejectionsTotal)
	prometheus.MustRegister(cycleDuration)
	prometheus.MustRegister(equityGauge)
	prometheus.MustRegister(drawdownGauge)
	prometheus.MustRegister(maxPositionSizeGauge)
	prometheus.MustRegister(errorsTotal)
}

// RecordTrade counts a submitted trade.
func RecordTrade(symbol, side string) {
	tradesTotal.WithLabelValues(symbol, side).Inc()
}

// RecordRejection counts a validator rejection by reason code.
func RecordRejection(reason string) {
	rejectionsTotal.WithLabelValues(reason).Inc()
}

// RecordCycle observes the duration of a completed trading cycle.
func RecordCycle(d time.Duration) {
	cycleDuration.Observe(d.Seconds())
}

// UpdateEquity sets the equity and drawdown gauges. Drawdown is the
// fractional decline from the given peak; a zero peak reports zero.
func UpdateEquity(equity, peak float64) {
	equityGauge.Set(equity)
	if peak > 0 && equity < peak {
		drawdownGauge.Set((peak - equity) / peak)
	} else {
		drawdownGauge.Set(0)
	}
}

// UpdateMaxPositionSize sets the position limit gauge.
func UpdateMaxPositionSize(size float64) {
	maxPositionSizeGauge.Set(size)
}

// RecordError counts an error by category.
func RecordError(errorType string) {
	errorsTotal.WithLabelValues(errorType).Inc()
}

// Handler returns the Prometheus exposition handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve starts the exposition endpoint on addr. It blocks; run it in a
// goroutine.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	return http.ListenAndServe(addr, mux)
}
