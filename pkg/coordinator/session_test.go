package coordinator

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teamvoice/relay/pkg/logger"
	"github.com/teamvoice/relay/pkg/player"
)

type sessionFixture struct {
	hub   *Hub
	relay *Relay
}

func newSessionFixture() *sessionFixture {
	hub := newTestHub()
	return &sessionFixture{hub: hub, relay: NewRelay(hub, logger.Nop())}
}

func (f *sessionFixture) session(settings Settings) (*Session, *fakeConn) {
	conn := newFakeConn()
	return NewSession(conn, f.hub, f.relay, settings, logger.Nop()), conn
}

// registered returns a session that went through the handshake with a clean output.
func (f *sessionFixture) registered(t *testing.T, hello string) (*Session, *fakeConn) {
	t.Helper()
	s, conn := f.session(testSettings())
	s.handle([]byte(hello))
	require.Equal(t, Registered, s.State())
	conn.reset()
	return s, conn
}

// run starts the session loop and returns a channel closed on its exit.
func run(ctx context.Context, s *Session) <-chan struct{} {
	done := make(chan struct{})
	go func() { s.Run(ctx); close(done) }()
	return done
}

func wait(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("session is still running")
	}
}

func TestHandshakeWeb(t *testing.T) {
	f := newSessionFixture()
	s, conn := f.session(testSettings())

	s.handle([]byte(`{"type":"hello_web","clientId":"web-1"}`))

	assert.Equal(t, Registered, s.State())
	assert.Equal(t, "web-1", s.Id())
	assert.True(t, s.IsWeb())
	assert.True(t, s.heartbeat.Running())

	frames := conn.frames(t, "")
	require.Len(t, frames, 2)
	assert.Equal(t, map[string]any{"type": "room", "room": "room-1", "id": "web-1"}, frames[0])
	assert.Equal(t, "players", frames[1]["type"])
	assert.Equal(t, []string{"web-1"}, conn.lastPlayers(t))

	p, ok := f.hub.Players().Get("web-1")
	require.True(t, ok)
	assert.Equal(t, player.Player{Id: "web-1", Name: "web-1", Team: player.NoTeam, Mode: player.ModeGlobal}, p)
	s.heartbeat.Stop()
}

func TestHandshakeGame(t *testing.T) {
	f := newSessionFixture()
	s, _ := f.session(testSettings())

	s.handle([]byte(`{"player":"Steve","data":{"team":"dark_red","mode":"global"},"state":{"mode":"team","muted":true}}`))

	require.Equal(t, Registered, s.State())
	assert.Equal(t, "mc:Steve", s.Id())
	assert.False(t, s.IsWeb())
	p, _ := f.hub.Players().Get("mc:Steve")
	assert.Equal(t, "Steve", p.Name)
	assert.Equal(t, player.Red, p.Team)
	assert.Equal(t, player.ModeTeam, p.Mode)
	assert.True(t, p.Muted)
	s.heartbeat.Stop()
}

func TestHandshakeGameTrimsPlayer(t *testing.T) {
	f := newSessionFixture()
	s, _ := f.session(testSettings())
	defer s.heartbeat.Stop()

	s.handle([]byte(`{"player":"  Steve "}`))

	require.Equal(t, Registered, s.State())
	assert.Equal(t, "mc:Steve", s.Id())
	p, ok := f.hub.Players().Get("mc:Steve")
	require.True(t, ok)
	assert.Equal(t, "Steve", p.Name)
	_, ok = f.hub.Lookup("mc:Steve")
	assert.True(t, ok)
}

func TestRoomBeforeBinding(t *testing.T) {
	f := newSessionFixture()
	s, conn := f.session(testSettings())
	defer s.heartbeat.Stop()

	var boundAtRoom []bool
	conn.onSend = func(data []byte) {
		if strings.Contains(string(data), `"type":"room"`) {
			_, ok := f.hub.Lookup("mc:Steve")
			boundAtRoom = append(boundAtRoom, ok)
		}
	}
	s.handle([]byte(`{"player":"Steve"}`))

	assert.Equal(t, []bool{false}, boundAtRoom, "the room frame is queued while the id is still unbound")
	frames := conn.frames(t, "")
	require.Len(t, frames, 2)
	assert.Equal(t, "room", frames[0]["type"])
	assert.Equal(t, "players", frames[1]["type"])
}

func TestHandshakeIgnored(t *testing.T) {
	for _, in := range []string{
		`{"type":"mic","on":true}`,
		`{"type":"signal","to":"x","action":"offer"}`,
		`{"type":"hello_web","clientId":""}`,
		`{"type":"hello_web","clientId":"mc:Steve"}`,
		`{"player":"   "}`,
		`{"type":"dance"}`,
		`not json`,
	} {
		t.Run(in, func(t *testing.T) {
			f := newSessionFixture()
			s, conn := f.session(testSettings())
			s.handle([]byte(in))
			assert.Equal(t, Unregistered, s.State())
			assert.Empty(t, conn.frames(t, ""))
			assert.Zero(t, f.hub.Players().Len())
			assert.False(t, s.heartbeat.Running())
		})
	}
}

func TestDispatch(t *testing.T) {
	tests := []struct {
		name      string
		in        string
		broadcast bool
		check     func(t *testing.T, p player.Player)
	}{
		{
			name: "state", in: `{"type":"state","mode":"team","data":{"team":"aqua","muted":true}}`, broadcast: true,
			check: func(t *testing.T, p player.Player) {
				assert.Equal(t, player.ModeTeam, p.Mode)
				assert.Equal(t, player.Blue, p.Team)
				assert.True(t, p.Muted)
			},
		},
		{
			name: "state with a bad mode", in: `{"type":"state","mode":"shout"}`,
			check: func(t *testing.T, p player.Player) { assert.Equal(t, player.ModeGlobal, p.Mode) },
		},
		{
			name: "mic off", in: `{"type":"mic","on":false}`, broadcast: true,
			check: func(t *testing.T, p player.Player) { assert.True(t, p.Muted) },
		},
		{
			name: "mic on", in: `{"type":"mic","on":true}`,
			check: func(t *testing.T, p player.Player) { assert.False(t, p.Muted) },
		},
		{
			name: "name", in: `{"type":"set_name","name":"  Alexandria Ocasio Smithson Jones "}`, broadcast: true,
			check: func(t *testing.T, p player.Player) { assert.Equal(t, "Alexandria Ocasio Smiths", p.Name) },
		},
		{
			name: "team voice", in: `{"type":"teamv","enabled":true}`, broadcast: true,
			check: func(t *testing.T, p player.Player) { assert.Equal(t, player.ModeTeam, p.Mode) },
		},
		{
			name: "team", in: `{"type":"team","color":"Gold"}`, broadcast: true,
			check: func(t *testing.T, p player.Player) { assert.Equal(t, player.Yellow, p.Team) },
		},
		{
			name: "unknown team", in: `{"type":"team","color":"purple"}`,
			check: func(t *testing.T, p player.Player) { assert.Equal(t, player.NoTeam, p.Team) },
		},
		{
			name: "pos", in: `{"type":"pos","x":1.5,"y":-2,"z":300}`, broadcast: true,
			check: func(t *testing.T, p player.Player) { assert.Equal(t, player.Position{X: 1.5, Y: -2, Z: 300}, p.Pos) },
		},
		{
			name: "blank name", in: `{"type":"set_name","name":"   "}`,
			check: func(t *testing.T, p player.Player) { assert.Equal(t, "Steve", p.Name) },
		},
		{name: "malformed", in: `{"type":"pos","x":"far"}`},
		{name: "unknown", in: `{"type":"dance"}`},
		{name: "second handshake", in: `{"type":"hello_web","clientId":"other"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newSessionFixture()
			s, conn := f.registered(t, `{"player":"Steve"}`)
			defer s.heartbeat.Stop()

			s.handle([]byte(tt.in))

			assert.Equal(t, Registered, s.State())
			if tt.broadcast {
				assert.Len(t, conn.frames(t, "players"), 1)
			} else {
				assert.Empty(t, conn.frames(t, ""))
			}
			p, ok := f.hub.Players().Get("mc:Steve")
			require.True(t, ok)
			if tt.check != nil {
				tt.check(t, p)
			}
			assert.Equal(t, 1, f.hub.Players().Len())
		})
	}
}

func TestTeamVoiceEcho(t *testing.T) {
	f := newSessionFixture()
	web, webConn := f.registered(t, `{"type":"hello_web","clientId":"w"}`)
	game, gameConn := f.registered(t, `{"player":"Steve"}`)
	defer web.heartbeat.Stop()
	defer game.heartbeat.Stop()
	webConn.reset()

	web.handle([]byte(`{"type":"teamv","enabled":true}`))
	game.handle([]byte(`{"type":"teamv","enabled":false}`))

	echo := webConn.frames(t, "teamv")
	require.Len(t, echo, 1)
	assert.Equal(t, true, echo[0]["enabled"])
	assert.Empty(t, gameConn.frames(t, "teamv"), "game clients get no echo")
}

func TestPing(t *testing.T) {
	f := newSessionFixture()
	s, conn := f.registered(t, `{"type":"hello_web","clientId":"w"}`)
	defer s.heartbeat.Stop()

	s.handle([]byte(`{"type":"ping","t":1700000000123}`))
	s.handle([]byte(`{"type":"ping"}`))

	assert.Equal(t, []map[string]any{
		{"type": "pong", "t": 1700000000123.0},
		{"type": "pong"},
	}, conn.frames(t, ""))
}

func TestSessionSignal(t *testing.T) {
	f := newSessionFixture()
	a, _ := f.registered(t, `{"player":"A"}`)
	b, bConn := f.registered(t, `{"type":"hello_web","clientId":"b"}`)
	defer a.heartbeat.Stop()
	defer b.heartbeat.Stop()

	a.handle([]byte(`{"type":"signal","to":"b","action":"ice","payload":{"candidate":"c"}}`))

	got := bConn.frames(t, "signal")
	require.Len(t, got, 1)
	assert.Equal(t, "mc:A", got[0]["from"])
	assert.Equal(t, "ice", got[0]["action"])
	assert.Empty(t, bConn.frames(t, "players"), "signals do not broadcast")
}

func TestSessionRateLimit(t *testing.T) {
	f := newSessionFixture()
	settings := testSettings()
	settings.RateLimit = 2

	a, _ := f.session(settings)
	a.handle([]byte(`{"player":"A"}`))
	b, bConn := f.registered(t, `{"type":"hello_web","clientId":"b"}`)
	defer a.heartbeat.Stop()
	defer b.heartbeat.Stop()

	for range 5 {
		a.handle([]byte(`{"type":"signal","to":"b","action":"offer"}`))
	}
	assert.Len(t, bConn.frames(t, "signal"), 2)
	assert.Equal(t, 3.0, testutil.ToFloat64(f.hub.metrics.Signals.WithLabelValues("rate_limited")))
}

func TestSessionTeardown(t *testing.T) {
	f := newSessionFixture()
	other, otherConn := f.registered(t, `{"type":"hello_web","clientId":"other"}`)
	defer other.heartbeat.Stop()

	s, conn := f.session(testSettings())
	done := run(context.Background(), s)
	conn.push(`{"player":"Steve"}`)
	require.Eventually(t, func() bool { return f.hub.Len() == 2 }, 5*time.Second, 5*time.Millisecond)

	conn.Close()
	wait(t, done)

	assert.Equal(t, Closed, s.State())
	assert.False(t, s.heartbeat.Running())
	_, ok := f.hub.Players().Get("mc:Steve")
	assert.False(t, ok)
	_, ok = f.hub.Lookup("mc:Steve")
	assert.False(t, ok)
	assert.Equal(t, []string{"other"}, otherConn.lastPlayers(t), "final broadcast")
}

func TestSessionContextCancel(t *testing.T) {
	f := newSessionFixture()
	s, conn := f.session(testSettings())
	ctx, cancel := context.WithCancel(context.Background())
	done := run(ctx, s)
	conn.push(`{"type":"hello_web","clientId":"w"}`)
	require.Eventually(t, func() bool { return f.hub.Len() == 1 }, 5*time.Second, 5*time.Millisecond)

	cancel()
	wait(t, done)

	assert.True(t, conn.isClosed())
	assert.Zero(t, f.hub.Players().Len())
}

func TestSessionUnregisteredClose(t *testing.T) {
	f := newSessionFixture()
	s, conn := f.session(testSettings())
	done := run(context.Background(), s)
	conn.Close()
	wait(t, done)
	assert.Equal(t, Closed, s.State())
	assert.Zero(t, f.hub.Len())
}

func TestSupersede(t *testing.T) {
	for _, keep := range []bool{false, true} {
		t.Run(map[bool]string{false: "close", true: "keep"}[keep], func(t *testing.T) {
			f := newSessionFixture()
			settings := testSettings()
			settings.KeepSuperseded = keep

			first, firstConn := f.session(settings)
			firstDone := run(context.Background(), first)
			firstConn.push(`{"player":"Steve","data":{"team":"red"}}`)
			require.Eventually(t, func() bool { return f.hub.Len() == 1 }, 5*time.Second, 5*time.Millisecond)

			second, secondConn := f.session(settings)
			secondDone := run(context.Background(), second)
			secondConn.push(`{"player":"Steve"}`)
			require.Eventually(t, func() bool {
				bound, _ := f.hub.Lookup("mc:Steve")
				return bound == Transport(secondConn)
			}, 5*time.Second, 5*time.Millisecond)

			if keep {
				assert.False(t, firstConn.isClosed())
				firstConn.Close()
			} else {
				assert.Eventually(t, firstConn.isClosed, 5*time.Second, 5*time.Millisecond)
			}
			wait(t, firstDone)

			p, ok := f.hub.Players().Get("mc:Steve")
			require.True(t, ok, "the stale teardown keeps the new player")
			assert.Equal(t, player.Red, p.Team, "state carries over")
			bound, _ := f.hub.Lookup("mc:Steve")
			assert.Equal(t, Transport(secondConn), bound)

			secondConn.Close()
			wait(t, secondDone)
			assert.Zero(t, f.hub.Players().Len())
		})
	}
}

func TestHeartbeatPings(t *testing.T) {
	f := newSessionFixture()
	settings := testSettings()
	settings.HeartbeatInterval = 5 * time.Millisecond
	settings.HeartbeatMinMs, settings.HeartbeatMaxMs = 7, 7

	s, conn := f.session(settings)
	done := run(context.Background(), s)
	conn.push(`{"type":"hello_web","clientId":"w"}`)

	require.Eventually(t, func() bool { return len(conn.frames(t, "ping")) >= 2 }, 5*time.Second, 5*time.Millisecond)
	for _, p := range conn.frames(t, "ping") {
		assert.Equal(t, 7.0, p["ms"])
	}
	conn.Close()
	wait(t, done)
	assert.False(t, s.heartbeat.Running())
}

func TestHeartbeatSample(t *testing.T) {
	h := NewHeartbeat(time.Second, 15, 60)
	for range 1000 {
		v := h.Sample()
		if v < 15 || v > 60 {
			t.Fatalf("sample %v is out of [15, 60]", v)
		}
	}
	assert.Nil(t, h.C(), "stopped heartbeat never fires")
	h.Start()
	assert.NotNil(t, h.C())
	h.Stop()
	h.Stop()
	assert.Nil(t, h.C())

	assert.Equal(t, 5, NewHeartbeat(0, 5, 1).Sample(), "inverted range collapses to min")
}
