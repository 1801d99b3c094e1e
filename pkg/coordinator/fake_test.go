package coordinator

import (
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"
	"github.com/teamvoice/relay/pkg/logger"
	"github.com/teamvoice/relay/pkg/player"
)

// fakeConn records outbound frames and feeds inbound ones to a session.
type fakeConn struct {
	mu     sync.Mutex
	recv   chan []byte
	out    [][]byte
	closed bool
	full   bool
	// onSend sees every outbound frame before it is recorded.
	onSend func(data []byte)
}

func newFakeConn() *fakeConn { return &fakeConn{recv: make(chan []byte, 64)} }

func (f *fakeConn) Send(data []byte) bool {
	if f.onSend != nil {
		f.onSend(data)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed || f.full {
		return false
	}
	f.out = append(f.out, data)
	return true
}

func (f *fakeConn) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.recv)
	}
}

func (f *fakeConn) Receive() <-chan []byte { return f.recv }

func (f *fakeConn) push(data string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.recv <- []byte(data)
	}
}

func (f *fakeConn) setFull(full bool) { f.mu.Lock(); f.full = full; f.mu.Unlock() }

func (f *fakeConn) isClosed() bool { f.mu.Lock(); defer f.mu.Unlock(); return f.closed }

func (f *fakeConn) reset() { f.mu.Lock(); f.out = nil; f.mu.Unlock() }

// frames returns the decoded outbound frames of the type, all of them when typ is empty.
func (f *fakeConn) frames(t *testing.T, typ string) []map[string]any {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	var list []map[string]any
	for _, data := range f.out {
		var m map[string]any
		require.NoError(t, json.Unmarshal(data, &m))
		if typ == "" || m["type"] == typ {
			list = append(list, m)
		}
	}
	return list
}

// lastPlayers returns the ids from the latest players frame.
func (f *fakeConn) lastPlayers(t *testing.T) []string {
	t.Helper()
	frames := f.frames(t, "players")
	require.NotEmpty(t, frames, "no players frame")
	var ids []string
	for _, p := range frames[len(frames)-1]["players"].([]any) {
		ids = append(ids, p.(map[string]any)["id"].(string))
	}
	return ids
}

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestHub() *Hub {
	return NewHub(player.NewRegistry(player.DefaultNameMaxLength), NewMetrics(nil), logger.Nop())
}

func testSettings() Settings {
	return Settings{
		Room:              "room-1",
		RateLimit:         50,
		RateWindow:        10 * time.Second,
		HeartbeatInterval: time.Hour,
		HeartbeatMinMs:    15,
		HeartbeatMaxMs:    60,
	}
}
