// Package metrics defines the Prometheus collectors exported by the
// Causerie server. Gauges reflecting gateway state (connections, online
// users, rooms) are refreshed by the stats reporter; counters are
// incremented at the event sites in the gateway.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Set bundles all collectors so they can be injected as one dependency.
type Set struct {
	// ConnectionsActive is the number of admitted websocket connections.
	ConnectionsActive prometheus.Gauge

	// OnlineUsers is the number of distinct users with at least one live
	// connection (multi-tab users count once).
	OnlineUsers prometheus.Gauge

	// RoomsActive is the number of materialized rooms in the directory,
	// including retained empty ones.
	RoomsActive prometheus.Gauge

	// MessagesTotal counts chat messages persisted and broadcast.
	MessagesTotal prometheus.Counter

	// MessageErrorsTotal counts message submissions refused or failed
	// (validation errors and store failures alike).
	MessageErrorsTotal prometheus.Counter

	// SignalsRelayedTotal counts signaling envelopes forwarded to a
	// resolved target.
	SignalsRelayedTotal prometheus.Counter

	// SignalsDroppedTotal counts signaling envelopes dropped because the
	// target could not be resolved.
	SignalsDroppedTotal prometheus.Counter
}

// New registers all collectors with reg and returns the Set.
// Pass prometheus.DefaultRegisterer in production; tests use a fresh
// prometheus.NewRegistry to avoid duplicate registration.
func New(reg prometheus.Registerer) *Set {
	factory := promauto.With(reg)

	return &Set{
		ConnectionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "causerie_connections_active",
			Help: "Number of admitted websocket connections.",
		}),
		OnlineUsers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "causerie_online_users",
			Help: "Number of distinct users with at least one live connection.",
		}),
		RoomsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "causerie_rooms_active",
			Help: "Number of materialized rooms in the directory.",
		}),
		MessagesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "causerie_messages_total",
			Help: "Total chat messages persisted and broadcast.",
		}),
		MessageErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "causerie_message_errors_total",
			Help: "Total message submissions refused or failed.",
		}),
		SignalsRelayedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "causerie_signals_relayed_total",
			Help: "Total signaling envelopes forwarded to a resolved target.",
		}),
		SignalsDroppedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "causerie_signals_dropped_total",
			Help: "Total signaling envelopes dropped due to an unresolved target.",
		}),
	}
}
