package ponggame

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/decred/slog"
)

// Phase is a room's lifecycle state.
type Phase string

const (
	PhaseEmpty             Phase = "empty"
	PhaseWaitingForPlayers Phase = "waitingForPlayers"
	PhaseWaitingForReady   Phase = "waitingForReady"
	PhaseRunning           Phase = "running"
	PhaseFinished          Phase = "finished"
)

// maxQueuedInputs bounds a side's input queue between ticks. The queue
// collapses to the latest value anyway, so older entries are droppable.
const maxQueuedInputs = 64

// Room owns one match's simulation: the at-most-two player slots, per-side
// input queues and the fixed-interval tick driver. All mutable simulation
// state belongs exclusively to this room.
type Room struct {
	mu sync.RWMutex

	ID  string
	Cfg Config

	state   SimulationState
	players map[Side]*Player
	queues  map[Side][]int
	phase   Phase

	// Terminal-event routing for tournament matches. Non-owning.
	matchID int64
	sink    ResultSink

	cancel   context.CancelFunc
	rng      *rand.Rand
	lastSent StateUpdate
	hasSent  bool

	createdAt time.Time
	log       slog.Logger

	// onTick, when set, observes every tick and whether it changed the
	// snapshot. Used for metrics; never blocks the tick.
	onTick func(changed bool)
}

// NewRoom creates an empty room with the given derived config.
func NewRoom(id string, cfg Config, log slog.Logger) *Room {
	return &Room{
		ID:        id,
		Cfg:       cfg,
		players:   make(map[Side]*Player),
		queues:    map[Side][]int{SideLeft: nil, SideRight: nil},
		phase:     PhaseEmpty,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		createdAt: time.Now(),
		log:       log,
	}
}

// SetTickHook installs a per-tick observer. Call before StartLoop.
func (r *Room) SetTickHook(fn func(changed bool)) {
	r.mu.Lock()
	r.onTick = fn
	r.mu.Unlock()
}

// AttachMatch stamps the room with its match context so the terminal
// outcome can be routed back. The sink is a weak link, not ownership.
func (r *Room) AttachMatch(matchID int64, sink ResultSink) {
	r.mu.Lock()
	r.matchID = matchID
	r.sink = sink
	r.mu.Unlock()
}

// SetResultSink installs a sink for casual rooms (matchID stays zero).
func (r *Room) SetResultSink(sink ResultSink) {
	r.mu.Lock()
	r.sink = sink
	r.mu.Unlock()
}

// AddPlayer attaches a player, assigning the free side by current
// occupancy (left first). Re-adding a member is a no-op. Callers enforce
// the two-player capacity before calling.
func (r *Room) AddPlayer(p *Player) Side {
	r.mu.Lock()
	defer r.mu.Unlock()

	for side, member := range r.players {
		if member.ID == p.ID {
			return side
		}
	}

	side := SideLeft
	if r.players[SideLeft] != nil {
		side = SideRight
	}
	r.players[side] = p

	p.Lock()
	p.Side = side
	p.RoomID = r.ID
	p.Unlock()

	switch len(r.players) {
	case 1:
		r.phase = PhaseWaitingForPlayers
	case 2:
		r.phase = PhaseWaitingForReady
	}
	return side
}

// RemovePlayer detaches a player's membership. Idempotent; it does not stop
// an active loop by itself.
func (r *Room) RemovePlayer(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for side, member := range r.players {
		if member.ID == connID {
			delete(r.players, side)
			member.Lock()
			if member.RoomID == r.ID {
				member.RoomID = ""
			}
			member.Unlock()
			break
		}
	}

	if !r.state.Started && r.phase != PhaseFinished {
		if len(r.players) == 0 {
			r.phase = PhaseEmpty
		} else {
			r.phase = PhaseWaitingForPlayers
		}
	}
}

// MarkReady flags the member ready and starts the loop once both occupants
// are ready. Returns whether the loop started on this call.
func (r *Room) MarkReady(connID string) bool {
	r.mu.Lock()
	for _, member := range r.players {
		if member.ID == connID {
			member.Lock()
			member.Ready = true
			member.Unlock()
			break
		}
	}
	r.mu.Unlock()
	return r.StartLoop()
}

// SubmitInput appends a direction to the side's queue. The queue collapses
// to the most recent value at the next tick boundary.
func (r *Room) SubmitInput(side Side, dir int) {
	if dir < -1 || dir > 1 {
		return
	}
	if side != SideLeft && side != SideRight {
		return
	}
	r.mu.Lock()
	q := r.queues[side]
	if len(q) >= maxQueuedInputs {
		q = q[1:]
	}
	r.queues[side] = append(q, dir)
	r.mu.Unlock()
}

// StartLoop begins ticking when exactly two occupants are present and both
// are ready. Idempotent; a running loop is left alone.
func (r *Room) StartLoop() bool {
	r.mu.Lock()
	if r.cancel != nil || len(r.players) != 2 {
		r.mu.Unlock()
		return false
	}
	for _, member := range r.players {
		member.RLock()
		ready := member.Ready
		member.RUnlock()
		if !ready {
			r.mu.Unlock()
			return false
		}
	}

	now := time.Now()
	r.state = SimulationState{Started: true, StartedAt: now}
	r.state.BallVX, r.state.BallVY = ResetBall(r.rng)
	r.queues = map[Side][]int{SideLeft: nil, SideRight: nil}
	r.phase = PhaseRunning
	r.hasSent = false

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	recipients := r.recipientsLocked()
	interval := r.Cfg.TickInterval
	r.mu.Unlock()

	r.log.Debugf("room %s: loop started", r.ID)
	send(recipients, Message{Type: MsgStart, Payload: StartInfo{Timestamp: now}}, r.log)

	go r.run(ctx, interval)
	return true
}

// StopLoop cancels the tick driver, clears the input queues and ready flags
// and marks the simulation not-started. Safe to call multiple times and
// concurrently with connection-close races.
func (r *Room) StopLoop() {
	r.mu.Lock()
	r.stopLocked()
	r.mu.Unlock()
}

func (r *Room) stopLocked() {
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.state.Started = false
	r.queues = map[Side][]int{SideLeft: nil, SideRight: nil}
	// A rematch needs a fresh confirmation from both occupants.
	for _, member := range r.players {
		member.Lock()
		member.Ready = false
		member.Unlock()
	}
	if r.phase == PhaseRunning {
		r.phase = PhaseFinished
	}
}

func (r *Room) run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if r.Tick() {
				r.broadcastState()
			}
		}
	}
}

// Tick advances the simulation one step: collapse queued inputs, move
// paddles then ball, refresh the public snapshot, and resolve a finished
// match. Returns whether the snapshot changed since the previous tick. A
// tick on a stopped room is a no-op.
func (r *Room) Tick() bool {
	r.mu.Lock()
	if !r.state.Started {
		r.mu.Unlock()
		return false
	}

	left := collapse(r.queues[SideLeft])
	right := collapse(r.queues[SideRight])
	r.queues[SideLeft] = r.queues[SideLeft][:0]
	r.queues[SideRight] = r.queues[SideRight][:0]

	MovePaddles(&r.state, left, right, r.Cfg)
	MoveBall(&r.state, r.Cfg, r.rng)

	snap := r.snapshotLocked()
	changed := !r.hasSent || !snap.equalsIgnoringTime(r.lastSent)
	if changed {
		r.lastSent = snap
		r.hasSent = true
	}

	var (
		finished          bool
		matchID           int64
		sink              ResultSink
		winnerID, loserID string
	)
	if r.state.ScoreL >= r.Cfg.MaxScore || r.state.ScoreR >= r.Cfg.MaxScore {
		finished = true
		winSide := SideLeft
		if r.state.ScoreR >= r.Cfg.MaxScore {
			winSide = SideRight
		}
		if w := r.players[winSide]; w != nil {
			winnerID = w.ID
		}
		if l := r.players[winSide.Opposite()]; l != nil {
			loserID = l.ID
		}
		matchID, sink = r.matchID, r.sink
		r.stopLocked()
		r.state = SimulationState{}
	}
	hook := r.onTick
	r.mu.Unlock()

	if hook != nil {
		hook(changed)
	}
	if finished {
		r.log.Infof("room %s: match over, winner %s", r.ID, winnerID)
		if sink != nil {
			sink.MatchEnded(matchID, winnerID, loserID)
		}
	}
	return changed
}

// collapse reduces a queue to its most recent direction; an empty queue
// holds the paddle (0).
func collapse(q []int) int {
	if len(q) == 0 {
		return 0
	}
	return q[len(q)-1]
}

// Snapshot returns the current public state.
func (r *Room) Snapshot() StateUpdate {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked()
}

func (r *Room) snapshotLocked() StateUpdate {
	return StateUpdate{
		P1Y:       r.state.P1Y,
		P2Y:       r.state.P2Y,
		BallX:     r.state.BallX,
		BallY:     r.state.BallY,
		ScoreL:    r.state.ScoreL,
		ScoreR:    r.state.ScoreR,
		Started:   r.state.Started,
		Timestamp: time.Now(),
	}
}

func (r *Room) broadcastState() {
	r.mu.RLock()
	snap := r.lastSent
	recipients := r.recipientsLocked()
	r.mu.RUnlock()
	send(recipients, Message{Type: MsgState, Payload: snap}, r.log)
}

// recipientsLocked snapshots the attached connections. Caller holds r.mu.
func (r *Room) recipientsLocked() []Conn {
	conns := make([]Conn, 0, len(r.players))
	for _, member := range r.players {
		member.RLock()
		if member.Conn != nil {
			conns = append(conns, member.Conn)
		}
		member.RUnlock()
	}
	return conns
}

// send delivers a message to each recipient; a failed send skips that
// recipient only.
func send(conns []Conn, msg Message, log slog.Logger) {
	for _, c := range conns {
		if err := c.Send(msg); err != nil {
			log.Debugf("dropping %s to %s: %v", msg.Type, c.ID(), err)
		}
	}
}

// PlayerBySide returns the occupant of a side, or nil.
func (r *Room) PlayerBySide(side Side) *Player {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.players[side]
}

// Players returns the current occupants.
func (r *Room) Players() []*Player {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Player, 0, len(r.players))
	for _, p := range r.players {
		out = append(out, p)
	}
	return out
}

// PlayerCount returns the current occupancy.
func (r *Room) PlayerCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.players)
}

// Phase returns the room's lifecycle state.
func (r *Room) Phase() Phase {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.phase
}

// Active reports whether the tick driver is running.
func (r *Room) Active() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cancel != nil
}

// Started reports whether the simulation has begun.
func (r *Room) Started() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state.Started
}

// CreatedAt returns the room's creation time.
func (r *Room) CreatedAt() time.Time {
	return r.createdAt
}
