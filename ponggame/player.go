package ponggame

import "sync"

// Player is one attached participant. Identity is the stable connection ID
// generated by the transport adapter, never the raw transport handle.
type Player struct {
	sync.RWMutex
	ID   string
	Nick string

	Side  Side
	Ready bool
	// Score counts won tournament matches for this player.
	Score int

	Conn Conn

	// Non-owning back-references for command routing.
	RoomID       string
	TournamentID string
}

// Snapshot returns a lock-free copy of the broadcastable player fields.
func (p *Player) Snapshot() PlayerInfo {
	if p == nil {
		return PlayerInfo{}
	}
	p.RLock()
	defer p.RUnlock()
	return PlayerInfo{
		ID:    p.ID,
		Nick:  p.Nick,
		Score: p.Score,
		Ready: p.Ready,
	}
}

// PlayerInfo is the broadcast form of a player.
type PlayerInfo struct {
	ID    string
	Nick  string
	Score int
	Ready bool
}

// PlayerSessions maps connection IDs to players.
type PlayerSessions struct {
	sync.RWMutex
	Sessions map[string]*Player
}

func NewPlayerSessions() *PlayerSessions {
	return &PlayerSessions{Sessions: make(map[string]*Player)}
}

// CreateSession returns the existing player for connID or creates one.
func (ps *PlayerSessions) CreateSession(connID, nick string, conn Conn) *Player {
	ps.Lock()
	defer ps.Unlock()

	player := ps.Sessions[connID]
	if player == nil {
		player = &Player{
			ID:   connID,
			Nick: nick,
			Conn: conn,
		}
		ps.Sessions[connID] = player
	}
	return player
}

func (ps *PlayerSessions) GetPlayer(connID string) *Player {
	ps.RLock()
	defer ps.RUnlock()
	return ps.Sessions[connID]
}

func (ps *PlayerSessions) RemovePlayer(connID string) {
	ps.Lock()
	defer ps.Unlock()
	delete(ps.Sessions, connID)
}
