package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type DBMetrics struct {
	QueryDuration *prometheus.HistogramVec
}

type LedgerMetrics struct {
	LoansCreatedTotal prometheus.Counter
	PaymentsTotal     *prometheus.CounterVec
	LoansDefaulted    prometheus.Counter
}

var (
	DB = DBMetrics{
		QueryDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lending_ledger_db_query_duration_seconds",
				Help:    "Histogram of database query latencies.",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"query_name", "status"},
		),
	}

	Ledger = LedgerMetrics{
		LoansCreatedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "lending_ledger_loans_created_total",
				Help: "Total number of loans originated.",
			},
		),
		PaymentsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lending_ledger_payments_total",
				Help: "Total number of payment applications by outcome.",
			},
			[]string{"status"},
		),
		LoansDefaulted: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "lending_ledger_loans_defaulted_total",
				Help: "Total number of loans moved to DEFAULTED by the batch job.",
			},
		),
	}
)

func RecordDBQuery(queryName, status string, duration time.Duration) {
	DB.QueryDuration.WithLabelValues(queryName, status).Observe(duration.Seconds())
}

func RecordLoanCreated() {
	Ledger.LoansCreatedTotal.Inc()
}

func RecordPayment(status string) {
	Ledger.PaymentsTotal.WithLabelValues(status).Inc()
}

func RecordLoanDefaulted() {
	Ledger.LoansDefaulted.Inc()
}
