package tournament

import (
	"context"
	"sync"
	"testing"

	"github.com/decred/slog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vgmr/pongcourt/ponggame"
)

// fakeConn records sent messages and whether the core force-closed it.
type fakeConn struct {
	mu     sync.Mutex
	id     string
	msgs   []ponggame.Message
	closed bool
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(msg ponggame.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msg)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.msgs))
	for _, m := range c.msgs {
		out = append(out, m.Type)
	}
	return out
}

func (c *fakeConn) wasClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// fakeRecorder collects the fire-and-forget result writes.
type fakeRecorder struct {
	mu   sync.Mutex
	recs []MatchRecord
	done chan struct{}
}

func newFakeRecorder(expected int) *fakeRecorder {
	return &fakeRecorder{done: make(chan struct{}, expected)}
}

func (r *fakeRecorder) RecordMatch(_ context.Context, rec MatchRecord) error {
	r.mu.Lock()
	r.recs = append(r.recs, rec)
	r.mu.Unlock()
	r.done <- struct{}{}
	return nil
}

func newTestManager(t *testing.T, size int) *Manager {
	t.Helper()
	registry := ponggame.NewRegistry(ponggame.BuildConfig(ponggame.DefaultBaseConfig()), slog.Disabled)
	m, err := NewManager("test-tournament", size, registry, nil, slog.Disabled)
	require.NoError(t, err)
	// Seed in registration order so pairings are predictable.
	m.shuffle = func([]*ponggame.Player) {}
	return m
}

func entrant(id string) *ponggame.Player {
	return &ponggame.Player{ID: id, Nick: id, Conn: &fakeConn{id: id}}
}

func fillBracket(t *testing.T, m *Manager, ids ...string) map[string]*ponggame.Player {
	t.Helper()
	players := make(map[string]*ponggame.Player, len(ids))
	for _, id := range ids {
		p := entrant(id)
		players[id] = p
		require.NoError(t, m.AddPlayer(p))
	}
	return players
}

func TestNewManager_SizeValidation(t *testing.T) {
	registry := ponggame.NewRegistry(ponggame.BuildConfig(ponggame.DefaultBaseConfig()), slog.Disabled)

	for _, size := range []int{4, 8, 16} {
		m, err := NewManager("t", size, registry, nil, slog.Disabled)
		assert.NoError(t, err)
		assert.NotNil(t, m)
	}
	for _, size := range []int{0, 2, 3, 5, 32} {
		_, err := NewManager("t", size, registry, nil, slog.Disabled)
		assert.ErrorIs(t, err, ErrBadSize)
	}
}

func TestManager_AddPlayerValidation(t *testing.T) {
	m := newTestManager(t, 4)

	a := entrant("a")
	require.NoError(t, m.AddPlayer(a))
	assert.Equal(t, "test-tournament", a.TournamentID)

	// Duplicate registration is rejected.
	assert.ErrorIs(t, m.AddPlayer(a), ErrAlreadyRegistered)

	fillBracket(t, m, "b", "c", "d")
	assert.Equal(t, StatusActive, m.State())

	// A started bracket accepts nobody.
	assert.ErrorIs(t, m.AddPlayer(entrant("e")), ErrAlreadyStarted)
}

func TestManager_StartsAtCapacity(t *testing.T) {
	m := newTestManager(t, 4)

	players := fillBracket(t, m, "a", "b", "c")
	assert.Equal(t, StatusPending, m.State())
	assert.Equal(t, 0, m.Round())
	assert.True(t, m.Open())

	for id, p := range fillBracket(t, m, "d") {
		players[id] = p
	}
	assert.Equal(t, StatusActive, m.State())
	assert.Equal(t, 1, m.Round())
	assert.False(t, m.Open())

	// Round 1 pairs consecutive seeds: a-b and c-d.
	m1, m2 := m.Match(1), m.Match(2)
	require.NotNil(t, m1)
	require.NotNil(t, m2)
	assert.Equal(t, "a", m1.P1.ID)
	assert.Equal(t, "b", m1.P2.ID)
	assert.Equal(t, "c", m2.P1.ID)
	assert.Equal(t, "d", m2.P2.ID)
	assert.Equal(t, StatusActive, m1.Status)

	// Every entrant was seated in a fresh, stamped room.
	assert.NotEqual(t, m1.RoomID, m2.RoomID)
	room := m.registry.FindByID(m1.RoomID)
	require.NotNil(t, room)
	assert.Equal(t, 2, room.PlayerCount())
	assert.Equal(t, m1.RoomID, players["a"].RoomID)

	// Everyone got a join notice for their round-1 room.
	for _, p := range players {
		assert.Contains(t, p.Conn.(*fakeConn).types(), ponggame.MsgJoin)
	}
}

func TestManager_FullBracketRun(t *testing.T) {
	m := newTestManager(t, 4)
	players := fillBracket(t, m, "a", "b", "c", "d")

	require.NoError(t, m.RecordMatchResult(1, "a"))
	assert.Equal(t, 1, m.Round()) // round 2 waits for the other match
	assert.Equal(t, 3, m.PlayerCount())
	assert.Equal(t, 1, players["a"].Score)
	assert.True(t, players["b"].Conn.(*fakeConn).wasClosed())
	assert.Contains(t, players["b"].Conn.(*fakeConn).types(), ponggame.MsgTournamentEliminated)

	// The match's room is torn down with it.
	assert.Nil(t, m.registry.FindByID(m.Match(1).RoomID))

	require.NoError(t, m.RecordMatchResult(2, "c"))
	assert.Equal(t, 2, m.Round())
	assert.Equal(t, 2, m.PlayerCount())

	// The final pairs the two advancing winners in seed order.
	final := m.Match(3)
	require.NotNil(t, final)
	assert.Equal(t, 2, final.Round)
	assert.Equal(t, "a", final.P1.ID)
	assert.Equal(t, "c", final.P2.ID)

	require.NoError(t, m.RecordMatchResult(3, "a"))
	assert.Equal(t, StatusCompleted, m.State())
	assert.Equal(t, 1, m.PlayerCount())
	assert.Equal(t, 2, players["a"].Score)
	assert.False(t, players["a"].Conn.(*fakeConn).wasClosed())

	// The champion is released with the bracket and free to enter another.
	assert.Equal(t, "", players["a"].TournamentID)
}

func TestManager_ResultValidation(t *testing.T) {
	m := newTestManager(t, 4)
	fillBracket(t, m, "a", "b", "c", "d")

	assert.ErrorIs(t, m.RecordMatchResult(99, "a"), ErrUnknownMatch)
	assert.ErrorIs(t, m.RecordMatchResult(1, "c"), ErrInvalidWinner)

	require.NoError(t, m.RecordMatchResult(1, "a"))

	// Completed matches are immutable; no double-advance.
	assert.ErrorIs(t, m.RecordMatchResult(1, "b"), ErrMatchCompleted)
	assert.Equal(t, 1, m.Round())
	assert.Equal(t, 3, m.PlayerCount())
	assert.Equal(t, "a", m.Match(1).WinnerID)
}

func TestManager_DepartureBeforeStart(t *testing.T) {
	m := newTestManager(t, 4)
	players := fillBracket(t, m, "a", "b")

	m.HandleDeparture("a")
	assert.Equal(t, 1, m.PlayerCount())
	assert.Equal(t, "", players["a"].TournamentID)
	assert.True(t, m.Open())

	// The freed seat can be taken again.
	require.NoError(t, m.AddPlayer(entrant("e")))
	assert.Equal(t, 2, m.PlayerCount())
}

func TestManager_DepartureForfeitsActiveMatch(t *testing.T) {
	m := newTestManager(t, 4)
	players := fillBracket(t, m, "a", "b", "c", "d")

	// b walks out mid-match: a wins by forfeit.
	m.HandleDeparture("b")

	match := m.Match(1)
	assert.Equal(t, StatusCompleted, match.Status)
	assert.Equal(t, "a", match.WinnerID)
	assert.Equal(t, "b", match.LoserID)
	assert.Equal(t, 3, m.PlayerCount())
	assert.Equal(t, 1, players["a"].Score)

	// A stale score report for the forfeited match resolves as a no-op.
	m.MatchEnded(1, "b", "a")
	assert.Equal(t, "a", m.Match(1).WinnerID)
	assert.Equal(t, 3, m.PlayerCount())
}

func TestManager_RecordsResults(t *testing.T) {
	registry := ponggame.NewRegistry(ponggame.BuildConfig(ponggame.DefaultBaseConfig()), slog.Disabled)
	recorder := newFakeRecorder(3)
	m, err := NewManager("test-tournament", 4, registry, recorder, slog.Disabled)
	require.NoError(t, err)
	m.shuffle = func([]*ponggame.Player) {}
	fillBracket(t, m, "a", "b", "c", "d")

	require.NoError(t, m.RecordMatchResult(1, "a"))
	require.NoError(t, m.RecordMatchResult(2, "d"))
	require.NoError(t, m.RecordMatchResult(3, "a"))

	for i := 0; i < 3; i++ {
		<-recorder.done
	}

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	require.Len(t, recorder.recs, 3)
	var finals int
	for _, rec := range recorder.recs {
		assert.Equal(t, "test-tournament", rec.TournamentID)
		if rec.Final {
			finals++
			assert.Equal(t, "a", rec.WinnerID)
		}
	}
	assert.Equal(t, 1, finals)
}

func TestManager_BroadcastReachesPool(t *testing.T) {
	m := newTestManager(t, 4)
	players := fillBracket(t, m, "a", "b")

	m.Broadcast()

	types := players["a"].Conn.(*fakeConn).types()
	assert.Contains(t, types, ponggame.MsgTournamentUpdate)
}
