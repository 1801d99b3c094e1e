package player

import (
	"sort"
	"sync"
	"sync/atomic"
)

// Registry is the concurrent-safe store of player state keyed by player id.
// Setters on an unknown id do nothing and report false.
type Registry struct {
	mu      sync.RWMutex
	players map[string]*Player
	nameMax atomic.Int64
}

func NewRegistry(nameMax int) *Registry {
	r := &Registry{players: make(map[string]*Player, 16)}
	r.SetNameMaxLength(nameMax)
	return r
}

// SetNameMaxLength changes the name cap for later updates, stored names are not touched.
func (r *Registry) SetNameMaxLength(n int) {
	if n <= 0 {
		n = DefaultNameMaxLength
	}
	r.nameMax.Store(int64(n))
}

func (r *Registry) NameMaxLength() int { return int(r.nameMax.Load()) }

// AddOrUpdate merges the patch into the player with the id or creates a new one
// with default values (no team, global voice, unmuted, at the origin).
func (r *Registry) AddOrUpdate(id string, p Patch) Player {
	r.mu.Lock()
	defer r.mu.Unlock()
	pl, ok := r.players[id]
	if !ok {
		pl = &Player{Id: id, Name: SanitizeName(id, r.NameMaxLength()), Team: NoTeam, Mode: ModeGlobal}
		r.players[id] = pl
	}
	r.apply(pl, p)
	return *pl
}

// apply merges the patch and reports whether the player changed.
func (r *Registry) apply(pl *Player, p Patch) bool {
	before := *pl
	if p.Name != nil {
		if name := SanitizeName(*p.Name, r.NameMaxLength()); name != "" {
			pl.Name = name
		}
	}
	if p.Team != nil {
		pl.Team = NormalizeTeam(string(*p.Team))
	}
	if p.Mode != nil && p.Mode.Valid() {
		pl.Mode = *p.Mode
	}
	if p.Muted != nil {
		pl.Muted = *p.Muted
	}
	if p.Pos != nil {
		pl.Pos = *p.Pos
	}
	return *pl != before
}

// Update applies the patch only when the player exists and reports
// whether any of its values changed.
func (r *Registry) Update(id string, p Patch) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	pl, ok := r.players[id]
	if !ok {
		return false
	}
	return r.apply(pl, p)
}

func (r *Registry) SetName(id string, name string) bool { return r.Update(id, Patch{Name: &name}) }
func (r *Registry) SetTeam(id string, team Team) bool   { return r.Update(id, Patch{Team: &team}) }
func (r *Registry) SetMuted(id string, muted bool) bool { return r.Update(id, Patch{Muted: &muted}) }

func (r *Registry) SetPlayerPos(id string, pos Position) bool { return r.Update(id, Patch{Pos: &pos}) }

// SetVoiceMode stores the mode for a known player, invalid modes are dropped
// and the previous value stays.
func (r *Registry) SetVoiceMode(id string, mode VoiceMode) bool {
	if !mode.Valid() {
		return false
	}
	return r.Update(id, Patch{Mode: &mode})
}

// Remove deletes the player, removing an absent id is fine.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.players[id]
	delete(r.players, id)
	return ok
}

func (r *Registry) Get(id string) (Player, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if pl, ok := r.players[id]; ok {
		return *pl, true
	}
	return Player{}, false
}

// GetAll returns a copy of every player sorted by id.
func (r *Registry) GetAll() []Player {
	r.mu.RLock()
	list := make([]Player, 0, len(r.players))
	for _, pl := range r.players {
		list = append(list, *pl)
	}
	r.mu.RUnlock()
	sort.Slice(list, func(i, j int) bool { return list[i].Id < list[j].Id })
	return list
}

func (r *Registry) Len() int { r.mu.RLock(); defer r.mu.RUnlock(); return len(r.players) }
