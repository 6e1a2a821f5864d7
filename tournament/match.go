package tournament

import "github.com/vgmr/pongcourt/ponggame"

// Status is shared by matches and tournaments. Transitions are monotonic:
// pending -> active -> completed, never backward.
type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

// Match is one bracket pairing. It owns its room by ID only; the room holds
// a weak link back for terminal-event routing. Once completed, a match is
// immutable apart from the resolved winner and loser.
type Match struct {
	ID     int64
	Round  int
	RoomID string

	P1 *ponggame.Player
	P2 *ponggame.Player

	WinnerID string
	LoserID  string
	Status   Status
}

// has reports whether playerID is one of the two registered players.
func (m *Match) has(playerID string) bool {
	return (m.P1 != nil && m.P1.ID == playerID) ||
		(m.P2 != nil && m.P2.ID == playerID)
}

// opponent returns the other registered player's ID, or "".
func (m *Match) opponent(playerID string) string {
	if m.P1 != nil && m.P1.ID == playerID && m.P2 != nil {
		return m.P2.ID
	}
	if m.P2 != nil && m.P2.ID == playerID && m.P1 != nil {
		return m.P1.ID
	}
	return ""
}
