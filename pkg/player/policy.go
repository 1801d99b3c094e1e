package player

// CanListen reports whether the listener may receive voice signaling from the speaker.
//
// Evaluation order:
//  1. Unknown speaker: deny
//  2. Muted speaker: deny
//  3. Global speaker: allow
//  4. Team speaker: allow only a known listener on the same team, never on NoTeam
//
// The decision reads the current state, so it has to be made again for every message.
func (r *Registry) CanListen(listenerId, speakerId string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	speaker, ok := r.players[speakerId]
	if !ok || speaker.Muted {
		return false
	}
	switch speaker.Mode {
	case ModeGlobal:
		return true
	case ModeTeam:
		listener, ok := r.players[listenerId]
		return ok && !speaker.Team.IsNone() && listener.Team == speaker.Team
	default:
		return false
	}
}
