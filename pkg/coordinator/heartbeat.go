package coordinator

import (
	"math/rand/v2"
	"time"
)

// Heartbeat produces synthetic latency samples on a fixed interval.
// It belongs to one session and is not safe for concurrent use.
type Heartbeat struct {
	interval time.Duration
	min, max int
	ticker   *time.Ticker
}

func NewHeartbeat(interval time.Duration, minMs, maxMs int) *Heartbeat {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if minMs < 0 {
		minMs = 0
	}
	if maxMs < minMs {
		maxMs = minMs
	}
	return &Heartbeat{interval: interval, min: minMs, max: maxMs}
}

func (h *Heartbeat) Start() {
	if h.ticker == nil {
		h.ticker = time.NewTicker(h.interval)
	}
}

func (h *Heartbeat) Stop() {
	if h.ticker != nil {
		h.ticker.Stop()
		h.ticker = nil
	}
}

func (h *Heartbeat) Running() bool { return h.ticker != nil }

// C fires on every beat, it is nil while stopped so a select on it blocks.
func (h *Heartbeat) C() <-chan time.Time {
	if h.ticker == nil {
		return nil
	}
	return h.ticker.C
}

// Sample returns a value in [min, max] ms.
func (h *Heartbeat) Sample() int { return h.min + rand.IntN(h.max-h.min+1) }
