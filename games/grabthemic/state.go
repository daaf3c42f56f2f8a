/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package grabthemic

import (
	"github.com/google/uuid"
)

// Phase is the current stage of a round.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseWordDisplay
	PhaseSinging
	PhaseScoring
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseWordDisplay:
		return "word_display"
	case PhaseSinging:
		return "singing"
	case PhaseScoring:
		return "scoring"
	default:
		return "unknown"
	}
}

// Player is a member of the fixed roster. Players are never removed
// during a session; only their score changes.
type Player struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Score int    `json:"score"`
}

func newPlayers(names []string) []Player {
	players := make([]Player, 0, len(names))
	for _, name := range names {
		players = append(players, Player{
			ID:   uuid.NewString(),
			Name: name,
		})
	}
	return players
}

// Snapshot is a read-only copy of the game state, safe to hand to
// renderers on other goroutines.
type Snapshot struct {
	Phase       Phase
	CurrentWord string
	Countdown   int
	Singing     int
	Players     []Player
	Round       int
}

// Player returns the roster entry with the given id.
func (s Snapshot) Player(id string) (Player, bool) {
	for _, p := range s.Players {
		if p.ID == id {
			return p, true
		}
	}
	return Player{}, false
}
