// internal/eventlistener/metrics.go
package eventlistener

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	wsReconnects = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sniper_ws_reconnects_total",
		Help: "WebSocket reconnect attempts",
	})
	triggersEmitted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sniper_triggers_total",
		Help: "Triggers emitted by the listeners",
	}, []string{"kind"})
	notificationsDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sniper_listener_skipped_total",
		Help: "Notifications that did not produce a trigger",
	}, []string{"source", "reason"})
)

// RegisterMetrics registers the listener collectors with reg.
func RegisterMetrics(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{wsReconnects, triggersEmitted, notificationsDropped} {
		if err := reg.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				return err
			}
		}
	}
	return nil
}
