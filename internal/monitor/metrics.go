// internal/monitor/metrics.go
package monitor

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	sweeps = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sniper_monitor_sweeps_total",
		Help: "Completed exit monitor sweeps",
	})
	openPositions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sniper_monitor_open_positions",
		Help: "Open positions seen by the last sweep",
	})
	priceFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sniper_monitor_price_failures_total",
		Help: "Positions skipped because no price was available",
	})
	exitsTriggered = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sniper_monitor_exits_total",
		Help: "Exit decisions by reason",
	}, []string{"reason"})
)

// RegisterMetrics registers the monitor collectors with reg.
func RegisterMetrics(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{sweeps, openPositions, priceFailures, exitsTriggered} {
		if err := reg.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				return err
			}
		}
	}
	return nil
}
