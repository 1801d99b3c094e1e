// Package player keeps the authoritative in-memory state of every connected player
// and decides who may hear whom.
package player

import (
	"strings"
	"unicode/utf8"
)

// DefaultNameMaxLength is the display name cap in characters.
const DefaultNameMaxLength = 24

// VoiceMode is the audience scope of a player's outbound voice.
type VoiceMode uint8

const (
	ModeGlobal VoiceMode = iota
	ModeTeam
)

func (m VoiceMode) Valid() bool { return m == ModeGlobal || m == ModeTeam }

func (m VoiceMode) String() string {
	switch m {
	case ModeGlobal:
		return "global"
	case ModeTeam:
		return "team"
	default:
		return "unknown"
	}
}

func (m VoiceMode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// ParseMode converts a client value into a voice mode.
// The bool result is false for anything but "global" or "team".
func ParseMode(s string) (VoiceMode, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "global", "all":
		return ModeGlobal, true
	case "team":
		return ModeTeam, true
	}
	return ModeGlobal, false
}

type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Player is the public state of one connected identity.
type Player struct {
	Id    string    `json:"id"`
	Name  string    `json:"name"`
	Team  Team      `json:"team"`
	Mode  VoiceMode `json:"mode"`
	Muted bool      `json:"muted"`
	Pos   Position  `json:"pos"`
}

// Patch holds a partial player update, nil fields are left as they are.
type Patch struct {
	Name  *string
	Team  *Team
	Mode  *VoiceMode
	Muted *bool
	Pos   *Position
}

// SanitizeName trims surrounding whitespace and cuts the name to at most max characters.
func SanitizeName(name string, max int) string {
	name = strings.TrimSpace(name)
	if max <= 0 || utf8.RuneCountInString(name) <= max {
		return name
	}
	runes := []rune(name)
	return strings.TrimSpace(string(runes[:max]))
}
