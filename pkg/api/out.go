package api

import (
	"github.com/goccy/go-json"
	"github.com/pion/webrtc/v3"
	"github.com/teamvoice/relay/pkg/player"
)

// Outbound type tags.
const (
	TypePlayers = "players"
	TypeRoom    = "room"
	TypePong    = "pong"
)

type (
	PlayersOut struct {
		Type    string          `json:"type"`
		Players []player.Player `json:"players"`
	}
	// RoomOut is sent once right after a successful handshake.
	RoomOut struct {
		Type string             `json:"type"`
		Room string             `json:"room"`
		Id   string             `json:"id"`
		Ice  []webrtc.ICEServer `json:"ice,omitempty"`
	}
	PingOut struct {
		Type string `json:"type"`
		Ms   int    `json:"ms"`
	}
	PongOut struct {
		Type string          `json:"type"`
		T    json.RawMessage `json:"t,omitempty"`
	}
	TeamVoiceOut struct {
		Type    string `json:"type"`
		Enabled bool   `json:"enabled"`
	}
	// SignalOut is the relayed signaling envelope, the payload is passed as is.
	SignalOut struct {
		Type    string          `json:"type"`
		From    string          `json:"from"`
		Action  string          `json:"action"`
		Payload json.RawMessage `json:"payload"`
	}
)

func NewPlayers(list []player.Player) PlayersOut {
	if list == nil {
		list = []player.Player{}
	}
	return PlayersOut{Type: TypePlayers, Players: list}
}

func NewRoom(room, id string, ice []webrtc.ICEServer) RoomOut {
	return RoomOut{Type: TypeRoom, Room: room, Id: id, Ice: ice}
}

func NewPing(ms int) PingOut                 { return PingOut{Type: TypePing, Ms: ms} }
func NewPong(t json.RawMessage) PongOut      { return PongOut{Type: TypePong, T: t} }
func NewTeamVoice(enabled bool) TeamVoiceOut { return TeamVoiceOut{Type: TypeTeamVoice, Enabled: enabled} }

func NewSignal(from string, s *Signal) SignalOut {
	payload := s.Payload
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	return SignalOut{Type: TypeSignal, From: from, Action: s.Action, Payload: payload}
}

func Encode(v any) ([]byte, error) { return json.Marshal(v) }
