package tournament

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/decred/slog"

	"github.com/vgmr/pongcourt/ponggame"
)

var (
	ErrAlreadyRegistered = errors.New("player already registered")
	ErrBracketFull       = errors.New("bracket is full")
	ErrAlreadyStarted    = errors.New("tournament already started")
	ErrUnknownMatch      = errors.New("unknown match")
	ErrMatchCompleted    = errors.New("match already completed")
	ErrInvalidWinner     = errors.New("winner is not a registered player of this match")
	ErrBadSize           = errors.New("bracket size must be 4, 8 or 16")
)

// recordTimeout bounds the fire-and-forget stats write.
const recordTimeout = 5 * time.Second

// MatchRecord is the persisted outcome of one completed match. The storage
// layer owns the write; the manager never awaits it.
type MatchRecord struct {
	TournamentID string
	MatchID      int64
	Round        int
	WinnerID     string
	LoserID      string
	Final        bool
}

// ResultRecorder is the storage collaborator boundary for win/loss/level
// updates.
type ResultRecorder interface {
	RecordMatch(ctx context.Context, rec MatchRecord) error
}

// Update is the connection-free tournament snapshot pushed to every
// registered player.
type Update struct {
	ID      string
	Status  Status
	Round   int
	Players []ponggame.PlayerInfo
}

// Manager runs one single-elimination bracket: it creates rooms for
// matches, records results, retires losers and advances rounds.
type Manager struct {
	mu sync.RWMutex

	ID   string
	Size int

	// players is the active pool; waiting holds advancing winners until
	// the round is paired.
	players []*ponggame.Player
	waiting []*ponggame.Player
	matches map[int64]*Match

	round     int
	status    Status
	nextMatch int64
	registry  *ponggame.Registry
	recorder  ResultRecorder
	shuffle   func([]*ponggame.Player)
	log       slog.Logger
}

// NewManager creates a pending bracket of the given fixed size.
func NewManager(id string, size int, registry *ponggame.Registry, recorder ResultRecorder, log slog.Logger) (*Manager, error) {
	if size != 4 && size != 8 && size != 16 {
		return nil, ErrBadSize
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &Manager{
		ID:       id,
		Size:     size,
		matches:  make(map[int64]*Match),
		status:   StatusPending,
		registry: registry,
		recorder: recorder,
		shuffle:  fisherYates(rng),
		log:      log,
	}, nil
}

// fisherYates returns a uniform in-place shuffle backed by rng.
func fisherYates(rng *rand.Rand) func([]*ponggame.Player) {
	return func(ps []*ponggame.Player) {
		for i := len(ps) - 1; i > 0; i-- {
			j := rng.Intn(i + 1)
			ps[i], ps[j] = ps[j], ps[i]
		}
	}
}

// State returns the bracket's lifecycle state.
func (m *Manager) State() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// Round returns the current round counter (0 before the bracket starts).
func (m *Manager) Round() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.round
}

// PlayerCount returns the size of the active pool.
func (m *Manager) PlayerCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.players)
}

// Open reports whether the bracket still accepts entrants.
func (m *Manager) Open() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status == StatusPending && len(m.players) < m.Size
}

// Match returns a match by ID, or nil.
func (m *Manager) Match(id int64) *Match {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.matches[id]
}

// AddPlayer registers an entrant. Reaching capacity starts the tournament:
// the pool is shuffled uniformly and consecutive entries become the round-1
// pairings.
func (m *Manager) AddPlayer(p *ponggame.Player) error {
	m.mu.Lock()
	if m.status != StatusPending {
		m.mu.Unlock()
		return ErrAlreadyStarted
	}
	for _, existing := range m.players {
		if existing.ID == p.ID {
			m.mu.Unlock()
			return ErrAlreadyRegistered
		}
	}
	if len(m.players) >= m.Size {
		m.mu.Unlock()
		return ErrBracketFull
	}

	m.players = append(m.players, p)
	p.Lock()
	p.TournamentID = m.ID
	p.Score = 0
	p.Unlock()

	if len(m.players) == m.Size {
		m.startLocked()
	}
	m.mu.Unlock()

	m.Broadcast()
	return nil
}

// startLocked shuffles the pool and pairs round 1. Caller holds m.mu.
func (m *Manager) startLocked() {
	m.shuffle(m.players)
	m.status = StatusActive
	m.round = 1
	m.log.Infof("tournament %s: started with %d players", m.ID, len(m.players))
	for i := 0; i+1 < len(m.players); i += 2 {
		m.createMatchLocked(m.players[i], m.players[i+1], m.round)
	}
}

// createMatchLocked allocates a room via the registry, seats both players
// (the room's own side alternation applies), stamps the room for
// terminal-event routing and notifies connected occupants of the join.
// Caller holds m.mu.
func (m *Manager) createMatchLocked(p1, p2 *ponggame.Player, round int) *Match {
	m.nextMatch++
	room := m.registry.Create()

	match := &Match{
		ID:     m.nextMatch,
		Round:  round,
		RoomID: room.ID,
		P1:     p1,
		P2:     p2,
		Status: StatusActive,
	}
	m.matches[match.ID] = match
	room.AttachMatch(match.ID, m)

	for _, p := range []*ponggame.Player{p1, p2} {
		p.Lock()
		p.Ready = false
		conn := p.Conn
		p.Unlock()

		side := room.AddPlayer(p)
		if conn != nil {
			err := conn.Send(ponggame.Message{Type: ponggame.MsgJoin, Payload: ponggame.JoinInfo{
				RoomID: room.ID,
				Side:   side,
				Config: room.Cfg,
				State:  room.Snapshot(),
			}})
			if err != nil {
				m.log.Debugf("tournament %s: join notice to %s failed: %v", m.ID, p.ID, err)
			}
		}
	}

	m.log.Debugf("tournament %s: match %d created (round %d, room %s)", m.ID, match.ID, round, room.ID)
	return match
}

// MatchEnded implements ponggame.ResultSink; rooms report their terminal
// score outcome through it.
func (m *Manager) MatchEnded(matchID int64, winnerID, _ string) {
	if err := m.RecordMatchResult(matchID, winnerID); err != nil {
		// Stale reports after a forfeit resolve as no-ops.
		m.log.Debugf("tournament %s: result for match %d dropped: %v", m.ID, matchID, err)
	}
}

// RecordMatchResult resolves a match: the loser is evicted and retired, the
// winner advances to the waiting area, and the round advances once every
// match of the current round is completed.
func (m *Manager) RecordMatchResult(matchID int64, winnerID string) error {
	m.mu.Lock()
	match := m.matches[matchID]
	if match == nil {
		m.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrUnknownMatch, matchID)
	}
	if match.Status == StatusCompleted {
		m.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrMatchCompleted, matchID)
	}
	if !match.has(winnerID) {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrInvalidWinner, winnerID)
	}

	winner, loser := match.P1, match.P2
	if loser.ID == winnerID {
		winner, loser = loser, winner
	}
	match.Status = StatusCompleted
	match.WinnerID = winner.ID
	match.LoserID = loser.ID

	// Tear down the match's room. StopLoop is idempotent against the
	// room's own terminal stop.
	if room := m.registry.FindByID(match.RoomID); room != nil {
		room.StopLoop()
		room.RemovePlayer(loser.ID)
		room.RemovePlayer(winner.ID)
		m.registry.Remove(room.ID)
	}

	m.retireLocked(loser)

	winner.Lock()
	winner.Score++
	winner.Unlock()
	m.waiting = append(m.waiting, winner)

	m.log.Infof("tournament %s: match %d won by %s", m.ID, matchID, winner.ID)
	m.recordResult(MatchRecord{
		TournamentID: m.ID,
		MatchID:      matchID,
		Round:        match.Round,
		WinnerID:     winner.ID,
		LoserID:      loser.ID,
	})

	m.checkRoundReadyLocked()
	m.mu.Unlock()

	m.Broadcast()
	return nil
}

// retireLocked drops a loser from the active pool and tells the connection
// it is out, immediately before the forced close. Caller holds m.mu.
func (m *Manager) retireLocked(loser *ponggame.Player) {
	for i, p := range m.players {
		if p.ID == loser.ID {
			m.players = append(m.players[:i], m.players[i+1:]...)
			break
		}
	}

	loser.Lock()
	loser.TournamentID = ""
	conn := loser.Conn
	loser.Unlock()
	if conn != nil {
		if err := conn.Send(ponggame.Message{Type: ponggame.MsgTournamentEliminated}); err != nil {
			m.log.Debugf("tournament %s: eliminated notice to %s failed: %v", m.ID, loser.ID, err)
		}
		_ = conn.Close()
	}
}

// checkRoundReadyLocked advances only once every match in the current round
// is completed. A single waiting entrant means the bracket is done. Caller
// holds m.mu.
func (m *Manager) checkRoundReadyLocked() {
	for _, match := range m.matches {
		if match.Round == m.round && match.Status != StatusCompleted {
			return
		}
	}

	if len(m.waiting) == 1 {
		m.status = StatusCompleted
		// Release the champion too, so they can enter the next bracket.
		champion := m.waiting[0]
		champion.Lock()
		champion.TournamentID = ""
		champion.Unlock()
		m.log.Infof("tournament %s: completed, champion %s", m.ID, champion.ID)
		return
	}
	m.advanceRoundLocked()
}

// advanceRoundLocked consumes the waiting area by consecutive pairing,
// preserving the original seeding order (no reshuffle). The effective
// bracket size halves each round; an odd entrant stays in the waiting area
// as a bye. Caller holds m.mu.
func (m *Manager) advanceRoundLocked() {
	m.round++
	advancing := m.waiting
	m.waiting = nil
	for i := 0; i+1 < len(advancing); i += 2 {
		m.createMatchLocked(advancing[i], advancing[i+1], m.round)
	}
	if len(advancing)%2 == 1 {
		m.waiting = append(m.waiting, advancing[len(advancing)-1])
	}
	m.log.Infof("tournament %s: round %d, %d players remain", m.ID, m.round, len(m.players))
}

// HandleDeparture resolves a departing player: an active match becomes a
// forfeit loss; otherwise the player just leaves the pool. Explicit leave
// and passive disconnect are treated identically.
func (m *Manager) HandleDeparture(playerID string) {
	m.mu.Lock()
	var forfeitMatch int64
	var opponent string
	for _, match := range m.matches {
		if match.Status == StatusActive && match.has(playerID) {
			forfeitMatch = match.ID
			opponent = match.opponent(playerID)
			break
		}
	}
	if opponent == "" {
		// No active match: drop from the pending pool and waiting area.
		for i, p := range m.players {
			if p.ID == playerID {
				m.players = append(m.players[:i], m.players[i+1:]...)
				p.Lock()
				p.TournamentID = ""
				p.Unlock()
				break
			}
		}
		for i, p := range m.waiting {
			if p.ID == playerID {
				m.waiting = append(m.waiting[:i], m.waiting[i+1:]...)
				break
			}
		}
		m.mu.Unlock()
		m.Broadcast()
		return
	}
	m.mu.Unlock()

	m.log.Infof("tournament %s: %s departed mid-match, forfeiting match %d", m.ID, playerID, forfeitMatch)
	if err := m.RecordMatchResult(forfeitMatch, opponent); err != nil {
		m.log.Debugf("tournament %s: forfeit of match %d dropped: %v", m.ID, forfeitMatch, err)
	}
}

// recordResult issues the fire-and-forget stats write. Caller may hold
// m.mu; the write itself runs detached.
func (m *Manager) recordResult(rec MatchRecord) {
	if m.recorder == nil {
		return
	}
	rec.Final = m.statusAfter()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()
		if err := m.recorder.RecordMatch(ctx, rec); err != nil {
			m.log.Warnf("tournament %s: stats write for match %d failed: %v", m.ID, rec.MatchID, err)
		}
	}()
}

// statusAfter reports whether this result ends the bracket. Caller holds
// m.mu.
func (m *Manager) statusAfter() bool {
	return len(m.players) == 1
}

// Broadcast emits the connection-free snapshot to every registered
// player's live connection. A failed send skips that recipient only.
func (m *Manager) Broadcast() {
	m.mu.RLock()
	update := Update{
		ID:      m.ID,
		Status:  m.status,
		Round:   m.round,
		Players: make([]ponggame.PlayerInfo, 0, len(m.players)),
	}
	conns := make([]ponggame.Conn, 0, len(m.players))
	for _, p := range m.players {
		update.Players = append(update.Players, p.Snapshot())
		p.RLock()
		if p.Conn != nil {
			conns = append(conns, p.Conn)
		}
		p.RUnlock()
	}
	m.mu.RUnlock()

	msg := ponggame.Message{Type: ponggame.MsgTournamentUpdate, Payload: update}
	for _, c := range conns {
		if err := c.Send(msg); err != nil {
			m.log.Debugf("tournament %s: update to %s failed: %v", m.ID, c.ID(), err)
		}
	}
}
