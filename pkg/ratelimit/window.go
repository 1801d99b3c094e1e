// Package ratelimit provides fixed-window admission control for signaling traffic.
package ratelimit

import "time"

const (
	DefaultLimit  = 50
	DefaultWindow = 10 * time.Second
)

type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

type window struct {
	start time.Time
	count int
}

// Window counts calls per key in fixed windows.
//
// A rejected call is counted as well, so a sender above the limit stays
// rejected until its window rolls over. Rejected calls are not queued.
//
// Window is owned by a single connection and is not safe for concurrent use.
type Window struct {
	clock  Clock
	limit  int
	period time.Duration
	keys   map[string]*window
}

type Option func(*Window)

func WithClock(c Clock) Option { return func(w *Window) { w.clock = c } }

// New creates a limiter that admits up to limit calls per key every period.
// A limit <= 0 disables the limiter, a period <= 0 falls back to DefaultWindow.
func New(limit int, period time.Duration, opts ...Option) *Window {
	if period <= 0 {
		period = DefaultWindow
	}
	w := &Window{clock: RealClock{}, limit: limit, period: period, keys: make(map[string]*window, 1)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Allow registers one call for the key and reports whether it fits into the current window.
func (w *Window) Allow(key string) bool {
	if w.limit <= 0 {
		return true
	}
	now := w.clock.Now()
	win, ok := w.keys[key]
	if !ok {
		win = &window{start: now}
		w.keys[key] = win
	}
	if now.After(win.start.Add(w.period)) || now.Before(win.start) {
		win.start, win.count = now, 0
	}
	win.count++
	return win.count <= w.limit
}

// Count returns the number of calls counted for the key in its current window.
func (w *Window) Count(key string) int {
	if win, ok := w.keys[key]; ok {
		return win.count
	}
	return 0
}

func (w *Window) Limit() int            { return w.limit }
func (w *Window) Period() time.Duration { return w.period }
