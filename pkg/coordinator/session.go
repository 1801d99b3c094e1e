package coordinator

import (
	"context"
	"strings"
	"time"

	"github.com/pion/webrtc/v3"
	"github.com/teamvoice/relay/pkg/api"
	"github.com/teamvoice/relay/pkg/logger"
	"github.com/teamvoice/relay/pkg/player"
	"github.com/teamvoice/relay/pkg/ratelimit"
)

// GamePrefix marks the ids of players connected from the game.
const GamePrefix = "mc:"

// Conn is a client connection as seen by a session.
type Conn interface {
	Transport
	Receive() <-chan []byte
}

type State uint8

const (
	Unregistered State = iota
	Registered
	Closed
)

func (s State) String() string {
	switch s {
	case Unregistered:
		return "unregistered"
	case Registered:
		return "registered"
	case Closed:
		return "closed"
	default:
		return "?"
	}
}

// Settings are the per-session parameters, captured when the session is created.
type Settings struct {
	Room              string
	Ice               []webrtc.ICEServer
	RateLimit         int
	RateWindow        time.Duration
	HeartbeatInterval time.Duration
	HeartbeatMinMs    int
	HeartbeatMaxMs    int
	KeepSuperseded    bool
}

// Session drives one client connection from the handshake to the teardown.
// All of its state is owned by the Run goroutine.
type Session struct {
	conn      Conn
	hub       *Hub
	relay     *Relay
	limiter   *ratelimit.Window
	heartbeat *Heartbeat
	settings  Settings

	id    string
	web   bool
	state State

	log *logger.Logger
}

func NewSession(conn Conn, hub *Hub, relay *Relay, settings Settings, log *logger.Logger) *Session {
	return &Session{
		conn:      conn,
		hub:       hub,
		relay:     relay,
		limiter:   ratelimit.New(settings.RateLimit, settings.RateWindow),
		heartbeat: NewHeartbeat(settings.HeartbeatInterval, settings.HeartbeatMinMs, settings.HeartbeatMaxMs),
		settings:  settings,
		log:       log,
	}
}

func (s *Session) Id() string   { return s.id }
func (s *Session) State() State { return s.state }
func (s *Session) IsWeb() bool  { return s.web }

// Run processes inbound frames one at a time until the connection
// or the context is gone, then tears the session down.
func (s *Session) Run(ctx context.Context) {
	defer func() {
		if err := recover(); err != nil {
			s.log.Error().Interface("panic", err).Msg("session crashed")
		}
		s.close()
	}()
	recv := s.conn.Receive()
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-recv:
			if !ok {
				return
			}
			s.handle(data)
		case <-s.heartbeat.C():
			s.send(api.NewPing(s.heartbeat.Sample()))
		}
	}
}

func (s *Session) handle(data []byte) {
	m, err := api.Decode(data)
	if err != nil {
		s.ignore("malformed", err.Error())
		return
	}
	switch s.state {
	case Unregistered:
		s.handshake(m)
	case Registered:
		s.dispatch(m)
	}
}

func (s *Session) handshake(m api.Message) {
	switch m := m.(type) {
	case *api.HelloWeb:
		if m.ClientId == "" || strings.HasPrefix(m.ClientId, GamePrefix) {
			s.ignore("bad_handshake", m.ClientId)
			return
		}
		s.register(m.ClientId, true, player.Patch{})
	case *api.HelloGame:
		name := strings.TrimSpace(m.Player)
		if name == "" {
			s.ignore("bad_handshake", "empty player")
			return
		}
		patch := voicePatch(m.Bundle())
		patch.Name = &name
		s.register(GamePrefix+name, false, patch)
	case *api.Unknown:
		s.ignore("unknown", m.Type)
	default:
		s.ignore("unregistered", m.Kind().String())
	}
}

// register queues the room frame first, so that no broadcast reaches
// the client ahead of it once the transport is bound.
func (s *Session) register(id string, web bool, p player.Patch) {
	s.send(api.NewRoom(s.settings.Room, id, s.settings.Ice))
	_, prev := s.hub.Register(id, s.conn, p)
	s.id, s.web, s.state = id, web, Registered
	s.log = s.log.Extend(s.log.With().Str(logger.PlayerField, id))
	s.log.Info().Bool("web", web).Msg("registered")

	if prev != nil && !s.settings.KeepSuperseded {
		prev.Close()
	}
	s.hub.Broadcast()
	s.heartbeat.Start()
}

func (s *Session) dispatch(m api.Message) {
	players := s.hub.Players()
	changed := false
	switch m := m.(type) {
	case *api.StateUpdate:
		changed = players.Update(s.id, voicePatch(m.Bundle()))
	case *api.Mic:
		changed = players.SetMuted(s.id, !m.On)
	case *api.Ping:
		s.send(api.NewPong(m.T))
	case *api.SetName:
		changed = players.SetName(s.id, m.Name)
	case *api.TeamVoice:
		mode := player.ModeGlobal
		if m.Enabled {
			mode = player.ModeTeam
		}
		changed = players.SetVoiceMode(s.id, mode)
		if s.web {
			s.send(api.NewTeamVoice(m.Enabled))
		}
	case *api.Team:
		changed = players.SetTeam(s.id, player.Team(m.Color))
	case *api.Pos:
		changed = players.SetPlayerPos(s.id, player.Position{X: m.X, Y: m.Y, Z: m.Z})
	case *api.Signal:
		s.relay.Relay(s.limiter, s.id, m)
	case *api.HelloWeb, *api.HelloGame:
		s.ignore("registered", m.Kind().String())
	case *api.Unknown:
		s.ignore("unknown", m.Type)
	}
	if changed {
		s.hub.Broadcast()
	}
}

func (s *Session) close() {
	if s.state == Closed {
		return
	}
	s.heartbeat.Stop()
	if s.state == Registered && s.hub.Unregister(s.id, s.conn) {
		s.hub.Broadcast()
	}
	s.state = Closed
	s.conn.Close()
	s.log.Info().Msg("closed")
}

func (s *Session) send(v any) {
	if !Send(s.conn, v) {
		s.log.Debug().Str(logger.ReasonField, "not writable").Msg("frame skipped")
	}
}

func (s *Session) ignore(reason, detail string) {
	s.hub.metrics.Dropped.WithLabelValues(reason).Inc()
	s.log.Debug().Str(logger.ReasonField, reason).Str("detail", detail).Msg("frame ignored")
}

// voicePatch converts a client voice state bundle into a registry patch,
// values that can't be parsed are left out.
func voicePatch(v api.VoiceState) player.Patch {
	var p player.Patch
	if v.Mode != nil {
		if mode, ok := player.ParseMode(*v.Mode); ok {
			p.Mode = &mode
		}
	}
	if v.Team != nil {
		team := player.Team(*v.Team)
		p.Team = &team
	}
	p.Muted = v.Muted
	return p
}
