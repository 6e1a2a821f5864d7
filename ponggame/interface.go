package ponggame

import "time"

// Side is a paddle assignment within a room.
type Side string

const (
	SideLeft  Side = "left"
	SideRight Side = "right"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideLeft {
		return SideRight
	}
	return SideLeft
}

// Conn is the transport-neutral view of a player connection. The transport
// layer owns framing and authentication; the core only needs a stable
// identifier, a best-effort send and a forced close.
type Conn interface {
	ID() string
	Send(msg Message) error
	Close() error
}

// Message event types pushed to connections.
const (
	MsgJoin                 = "join"
	MsgStart                = "start"
	MsgState                = "state"
	MsgTournamentUpdate     = "tournamentUpdate"
	MsgTournamentEliminated = "tournamentEliminated"
)

// Message is a typed event envelope. Serialization is the transport's
// concern; the core hands over plain structs.
type Message struct {
	Type    string
	Payload any
}

// JoinInfo is sent to a connection right after it is attached to a room.
type JoinInfo struct {
	RoomID string
	Side   Side
	Config Config
	State  StateUpdate
}

// StartInfo is sent when a room's loop begins ticking.
type StartInfo struct {
	Timestamp time.Time
}

// StateUpdate is the public per-tick snapshot of a room. It is only sent
// when it differs from the previously broadcast snapshot.
type StateUpdate struct {
	P1Y       float64
	P2Y       float64
	BallX     float64
	BallY     float64
	ScoreL    int
	ScoreR    int
	Started   bool
	Timestamp time.Time
}

// equalsIgnoringTime reports whether two snapshots carry the same visible
// state. The timestamp alone never forces a broadcast.
func (s StateUpdate) equalsIgnoringTime(o StateUpdate) bool {
	return s.P1Y == o.P1Y && s.P2Y == o.P2Y &&
		s.BallX == o.BallX && s.BallY == o.BallY &&
		s.ScoreL == o.ScoreL && s.ScoreR == o.ScoreR &&
		s.Started == o.Started
}

// SimulationState holds one room's mutable simulation fields. It is owned
// exclusively by its room and mutated only under the room's lock.
type SimulationState struct {
	P1Y, P2Y     float64
	P1Vel, P2Vel float64
	BallX, BallY float64
	BallVX       float64
	BallVY       float64
	ScoreL       int
	ScoreR       int
	Started      bool
	StartedAt    time.Time
}

// ResultSink receives the terminal outcome of a room's match. Rooms hold it
// as a non-owning back-reference; a zero matchID means a casual match.
type ResultSink interface {
	MatchEnded(matchID int64, winnerID, loserID string)
}
