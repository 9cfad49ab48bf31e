// internal/sniping/metrics.go
package sniping

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	rejections = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sniper_strategy_rejections_total",
		Help: "Triggers rejected by the strategy engine",
	}, []string{"stage"})
	decisions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sniper_strategy_decisions_total",
		Help: "Entry and exit decisions handed to the executor",
	}, []string{"kind"})
)

// RegisterMetrics registers the strategy collectors with reg.
func RegisterMetrics(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{rejections, decisions} {
		if err := reg.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				return err
			}
		}
	}
	return nil
}
