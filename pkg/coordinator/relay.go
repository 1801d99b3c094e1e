package coordinator

import (
	"github.com/teamvoice/relay/pkg/api"
	"github.com/teamvoice/relay/pkg/logger"
)

// Outcome is the result of one relay attempt.
// Drops are expected results of the relay policy, not errors.
type Outcome uint8

const (
	Delivered Outcome = iota
	DropRateLimited
	DropDenied
	DropNotConnected
	DropUndeliverable
)

func (o Outcome) String() string {
	switch o {
	case Delivered:
		return "delivered"
	case DropRateLimited:
		return "rate_limited"
	case DropDenied:
		return "denied"
	case DropNotConnected:
		return "not_connected"
	case DropUndeliverable:
		return "undeliverable"
	default:
		return "unknown"
	}
}

func (o Outcome) reason() string {
	switch o {
	case DropRateLimited:
		return "rate limited"
	case DropDenied:
		return "access denied"
	case DropNotConnected:
		return "target not connected"
	default:
		return "target not writable"
	}
}

// Limiter admits or rejects calls per key.
type Limiter interface {
	Allow(key string) bool
}

// Policy decides whether the listener may receive from the speaker.
type Policy interface {
	CanListen(listenerId, speakerId string) bool
}

// Relay forwards signaling envelopes between connected players.
// Nothing is queued or retried, a dropped message is gone.
type Relay struct {
	hub     *Hub
	policy  Policy
	metrics *Metrics
	log     *logger.Logger
}

func NewRelay(hub *Hub, log *logger.Logger) *Relay {
	return &Relay{hub: hub, policy: hub.Players(), metrics: hub.metrics, log: log}
}

// Relay passes the signal from the sender to the signal target.
// The checks go in order: sender rate limit, target access to the sender, target binding.
func (r *Relay) Relay(limiter Limiter, from string, s *api.Signal) Outcome {
	o := r.relay(limiter, from, s)
	r.metrics.Signals.WithLabelValues(o.String()).Inc()
	if o != Delivered {
		r.log.Debug().
			Str(logger.PlayerField, from).
			Str("to", s.To).
			Str("action", s.Action).
			Str(logger.ReasonField, o.reason()).
			Msg("signal dropped")
	}
	return o
}

func (r *Relay) relay(limiter Limiter, from string, s *api.Signal) Outcome {
	if !limiter.Allow(from) {
		return DropRateLimited
	}
	if !r.policy.CanListen(s.To, from) {
		return DropDenied
	}
	t, ok := r.hub.Lookup(s.To)
	if !ok {
		return DropNotConnected
	}
	if !Send(t, api.NewSignal(from, s)) {
		return DropUndeliverable
	}
	return Delivered
}
