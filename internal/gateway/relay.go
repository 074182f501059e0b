package gateway

import (
	"encoding/json"

	"go.uber.org/zap"
)

// Relay forwards opaque call-setup payloads between peers. It is stateless:
// no interpretation, no validation, no storage — the payload goes out the
// way it came in, annotated with the sender's connection id.
type Relay struct {
	registry *Registry
	presence *Presence
	logger   *zap.Logger
}

// NewRelay creates a Relay resolving targets through the registry and the
// presence tracker.
func NewRelay(registry *Registry, presence *Presence, logger *zap.Logger) *Relay {
	return &Relay{
		registry: registry,
		presence: presence,
		logger:   logger.Named("relay"),
	}
}

// Relay forwards the signal to the target, which may be a connection id or
// a user key (in which case every connection of that user receives it).
//
// An unresolvable target drops the signal silently and reports false. This
// is deliberate best-effort semantics: the peer may have disconnected
// between the sender reading the member list and the signal arriving, and
// surfacing that race to the sender would only produce noise.
func (r *Relay) Relay(fromConnID, target string, signal json.RawMessage) bool {
	ev := Event{
		Name:    EventSignal,
		Payload: SignalForward{UserID: fromConnID, Signal: signal},
	}

	if conn, ok := r.registry.Get(target); ok {
		if err := conn.Enqueue(ev); err != nil {
			r.logger.Debug("signal enqueue failed",
				zap.String("target", target),
				zap.Error(err),
			)
		}
		return true
	}

	if connIDs := r.presence.ConnectionsOf(target); len(connIDs) > 0 {
		for _, id := range connIDs {
			if conn, ok := r.registry.Get(id); ok {
				if err := conn.Enqueue(ev); err != nil {
					r.logger.Debug("signal enqueue failed",
						zap.String("target", target),
						zap.String("conn_id", id),
						zap.Error(err),
					)
				}
			}
		}
		return true
	}

	r.logger.Debug("signal target not resolved, dropping",
		zap.String("from", fromConnID),
		zap.String("target", target),
	)
	return false
}
