package coordinator

import (
	"sync"

	"github.com/teamvoice/relay/pkg/api"
	"github.com/teamvoice/relay/pkg/com"
	"github.com/teamvoice/relay/pkg/logger"
	"github.com/teamvoice/relay/pkg/player"
)

// Transport is the outbound half of a client connection.
// Send must not block, it reports false when the frame could not be queued.
type Transport interface {
	Send(data []byte) bool
	Close()
}

// Hub binds player ids to their transports and fans out the player list.
//
// Register, Unregister and Broadcast are serialized, so every transport sees
// the snapshots in the same order and a stale teardown never removes a newer binding.
type Hub struct {
	mu      sync.Mutex
	conns   *com.Map[string, Transport]
	players *player.Registry
	metrics *Metrics
	log     *logger.Logger
}

func NewHub(players *player.Registry, metrics *Metrics, log *logger.Logger) *Hub {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Hub{
		conns:   com.NewMap[string, Transport](),
		players: players,
		metrics: metrics,
		log:     log,
	}
}

func (h *Hub) Players() *player.Registry { return h.players }

// Register creates or updates the player and binds the transport to its id.
// A transport previously bound to the same id is returned, the hub does not close it.
func (h *Hub) Register(id string, t Transport, p player.Patch) (player.Player, Transport) {
	h.mu.Lock()
	defer h.mu.Unlock()
	pl := h.players.AddOrUpdate(id, p)
	prev, replaced := h.conns.Swap(id, t)
	h.metrics.Players.Set(float64(h.players.Len()))
	if !replaced || prev == t {
		return pl, nil
	}
	h.log.Debug().Str(logger.PlayerField, id).Msg("binding superseded")
	return pl, prev
}

// Unregister removes the binding and the player, but only while the id
// is still bound to the given transport.
func (h *Hub) Unregister(id string, t Transport) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.conns.RemoveIf(id, func(v Transport) bool { return v == t }) {
		return false
	}
	h.players.Remove(id)
	h.metrics.Players.Set(float64(h.players.Len()))
	return true
}

func (h *Hub) Lookup(id string) (Transport, bool) {
	t, err := h.conns.Find(id)
	return t, err == nil
}

func (h *Hub) Len() int { return h.conns.Len() }

// Broadcast offers the current player list to every bound transport.
// Transports that can't take the frame are skipped.
func (h *Hub) Broadcast() {
	h.mu.Lock()
	defer h.mu.Unlock()
	data, err := api.Encode(api.NewPlayers(h.players.GetAll()))
	if err != nil {
		h.log.Error().Err(err).Msg("players encode")
		return
	}
	skipped := 0
	h.conns.ForEach(func(_ string, t Transport) {
		if !t.Send(data) {
			skipped++
		}
	})
	h.metrics.Broadcasts.Inc()
	if skipped > 0 {
		h.log.Debug().Int("skipped", skipped).Msg("broadcast")
	}
}

// Send encodes the message and queues it to the transport.
func Send(t Transport, v any) bool {
	data, err := api.Encode(v)
	if err != nil {
		return false
	}
	return t.Send(data)
}
