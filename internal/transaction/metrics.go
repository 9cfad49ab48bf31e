// internal/transaction/metrics.go
package transaction

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Transaction outcomes.
const (
	OutcomeConfirmed = "confirmed"
	OutcomeFailed    = "failed"
	OutcomeRejected  = "rejected"
	OutcomeTimeout   = "timeout"
	OutcomeError     = "error"
)

var (
	transactions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sniper_transactions_total",
		Help: "Swap transactions by side and outcome",
	}, []string{"side", "outcome"})

	confirmationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sniper_confirmation_seconds",
		Help:    "Time from submission to confirmation",
		Buckets: prometheus.LinearBuckets(0.5, 2.5, 12),
	})
)

// RegisterMetrics registers the pipeline collectors with reg.
func RegisterMetrics(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{transactions, confirmationDuration} {
		if err := reg.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				return err
			}
		}
	}
	return nil
}

// TrackConfirmation records the time since start.
func TrackConfirmation(start time.Time) {
	confirmationDuration.Observe(time.Since(start).Seconds())
}
