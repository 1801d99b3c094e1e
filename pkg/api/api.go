// Package api defines the messages exchanged with game and web clients.
//
// Every message is a JSON object with a "type" field naming one of the predefined
// message types, the rest of the object is the type-specific payload.
// The only exception is the game client handshake which has no type and is
// recognized by its "player" field.
//
// Example:
//
//	{"type":"signal","to":"mc:Steve","action":"offer","payload":{"sdp":"v=0..."}}
package api

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"
)

// Kind enumerates the inbound message vocabulary.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindHelloWeb
	KindHelloGame
	KindState
	KindMic
	KindPing
	KindSetName
	KindTeamVoice
	KindTeam
	KindPos
	KindSignal
)

func (k Kind) String() string {
	switch k {
	case KindHelloWeb:
		return "HelloWeb"
	case KindHelloGame:
		return "HelloGame"
	case KindState:
		return "State"
	case KindMic:
		return "Mic"
	case KindPing:
		return "Ping"
	case KindSetName:
		return "SetName"
	case KindTeamVoice:
		return "TeamVoice"
	case KindTeam:
		return "Team"
	case KindPos:
		return "Pos"
	case KindSignal:
		return "Signal"
	default:
		return "Unknown"
	}
}

// Inbound type tags.
const (
	TypeHelloWeb  = "hello_web"
	TypeState     = "state"
	TypeMic       = "mic"
	TypePing      = "ping"
	TypeSetName   = "set_name"
	TypeTeamVoice = "teamv"
	TypeTeam      = "team"
	TypePos       = "pos"
	TypeSignal    = "signal"
)

var ErrMalformed = errors.New("malformed")

// Message is one decoded inbound message.
type Message interface {
	Kind() Kind
}

type (
	HelloWeb struct {
		ClientId string `json:"clientId"`
	}
	HelloGame struct {
		Player string      `json:"player"`
		Data   *VoiceState `json:"data,omitempty"`
		State  *VoiceState `json:"state,omitempty"`
	}
	// VoiceState is the voice settings bundle a client may send at once.
	VoiceState struct {
		Mode  *string `json:"mode,omitempty"`
		Team  *string `json:"team,omitempty"`
		Muted *bool   `json:"muted,omitempty"`
	}
	StateUpdate struct {
		VoiceState
		Data  *VoiceState `json:"data,omitempty"`
		State *VoiceState `json:"state,omitempty"`
	}
	Mic struct {
		On bool `json:"on"`
	}
	Ping struct {
		T json.RawMessage `json:"t,omitempty"`
	}
	SetName struct {
		Name string `json:"name"`
	}
	TeamVoice struct {
		Enabled bool `json:"enabled"`
	}
	Team struct {
		Color string `json:"color"`
	}
	Pos struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
		Z float64 `json:"z"`
	}
	Signal struct {
		To      string          `json:"to"`
		Action  string          `json:"action"`
		Payload json.RawMessage `json:"payload,omitempty"`
	}
	// Unknown is any message with an unrecognized type, it is ignored.
	Unknown struct {
		Type string
	}
)

func (*HelloWeb) Kind() Kind    { return KindHelloWeb }
func (*HelloGame) Kind() Kind   { return KindHelloGame }
func (*StateUpdate) Kind() Kind { return KindState }
func (*Mic) Kind() Kind         { return KindMic }
func (*Ping) Kind() Kind        { return KindPing }
func (*SetName) Kind() Kind     { return KindSetName }
func (*TeamVoice) Kind() Kind   { return KindTeamVoice }
func (*Team) Kind() Kind        { return KindTeam }
func (*Pos) Kind() Kind         { return KindPos }
func (*Signal) Kind() Kind      { return KindSignal }
func (*Unknown) Kind() Kind     { return KindUnknown }

// Bundle merges the nested data/state bundles, later ones win.
func (h *HelloGame) Bundle() VoiceState { return merge(VoiceState{}, h.Data, h.State) }

// Bundle merges the nested bundles with the top-level fields, top-level fields win.
func (s *StateUpdate) Bundle() VoiceState { return merge(VoiceState{}, s.Data, s.State, &s.VoiceState) }

func merge(dst VoiceState, src ...*VoiceState) VoiceState {
	for _, s := range src {
		if s == nil {
			continue
		}
		if s.Mode != nil {
			dst.Mode = s.Mode
		}
		if s.Team != nil {
			dst.Team = s.Team
		}
		if s.Muted != nil {
			dst.Muted = s.Muted
		}
	}
	return dst
}

type header struct {
	Type   string  `json:"type"`
	Player *string `json:"player"`
}

// Decode parses one inbound frame.
// Frames that are not valid JSON objects of a known shape return ErrMalformed,
// frames with an unrecognized type decode into *Unknown.
func Decode(data []byte) (Message, error) {
	var h header
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var m Message
	switch {
	case h.Type == "" && h.Player != nil:
		m = &HelloGame{}
	case h.Type == TypeHelloWeb:
		m = &HelloWeb{}
	case h.Type == TypeState:
		m = &StateUpdate{}
	case h.Type == TypeMic:
		m = &Mic{}
	case h.Type == TypePing:
		m = &Ping{}
	case h.Type == TypeSetName:
		m = &SetName{}
	case h.Type == TypeTeamVoice:
		m = &TeamVoice{}
	case h.Type == TypeTeam:
		m = &Team{}
	case h.Type == TypePos:
		m = &Pos{}
	case h.Type == TypeSignal:
		m = &Signal{}
	default:
		return &Unknown{Type: h.Type}, nil
	}

	if err := json.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("%w: %v: %v", ErrMalformed, m.Kind(), err)
	}
	return m, nil
}
