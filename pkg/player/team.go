package player

import "strings"

// Team is one of the canonical team colors or NoTeam.
type Team string

const (
	NoTeam Team = "none"
	Red    Team = "red"
	Blue   Team = "blue"
	Green  Team = "green"
	Yellow Team = "yellow"
)

var Teams = []Team{NoTeam, Red, Blue, Green, Yellow}

// game clients report scoreboard colors, these fold into the canonical set
var teamAliases = map[string]Team{
	"":           NoTeam,
	"none":       NoTeam,
	"no":         NoTeam,
	"red":        Red,
	"dark_red":   Red,
	"blue":       Blue,
	"dark_blue":  Blue,
	"aqua":       Blue,
	"green":      Green,
	"dark_green": Green,
	"lime":       Green,
	"yellow":     Yellow,
	"gold":       Yellow,
}

// NormalizeTeam maps any client input to a canonical team, unknown values become NoTeam.
func NormalizeTeam(s string) Team {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.ReplaceAll(key, " ", "_")
	if t, ok := teamAliases[key]; ok {
		return t
	}
	return NoTeam
}

func (t Team) IsNone() bool { return t == NoTeam }
