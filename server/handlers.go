package server

import (
	"errors"
	"fmt"

	"github.com/vgmr/pongcourt/ponggame"
)

var (
	ErrUnknownRoom  = errors.New("unknown room")
	ErrRoomFull     = errors.New("room is full")
	ErrNotInRoom    = errors.New("not attached to a room")
	ErrInvalidInput = errors.New("input direction must be -1, 0 or 1")
	ErrInTournament = errors.New("already in a tournament")
)

// HandleJoin attaches the caller to an existing room (by ID) or to casual
// matchmaking, and replies with the side, config and initial snapshot.
func (s *Server) HandleJoin(conn ponggame.Conn, nick, roomID string) error {
	player := s.sessions.CreateSession(conn.ID(), nick, conn)

	s.joinMu.Lock()
	var room *ponggame.Room
	if roomID != "" {
		room = s.registry.FindByID(roomID)
		if room == nil {
			s.joinMu.Unlock()
			return fmt.Errorf("%w: %s", ErrUnknownRoom, roomID)
		}
	} else {
		room = s.registry.GetOrCreate()
		room.SetResultSink(s)
	}

	player.RLock()
	prevRoomID := player.RoomID
	player.RUnlock()
	if prevRoomID != room.ID {
		// Seats never stack: switching rooms parts the old one first so
		// it stays reclaimable. A re-join of the current room is an
		// idempotent no-op, even when the room is full.
		s.partRoom(player)
		if room.PlayerCount() >= 2 {
			s.joinMu.Unlock()
			return fmt.Errorf("%w: %s", ErrRoomFull, room.ID)
		}
	}
	side := room.AddPlayer(player)
	s.joinMu.Unlock()

	UpdateRooms(s.registry.Len())

	err := conn.Send(ponggame.Message{Type: ponggame.MsgJoin, Payload: ponggame.JoinInfo{
		RoomID: room.ID,
		Side:   side,
		Config: room.Cfg,
		State:  room.Snapshot(),
	}})
	if err != nil {
		s.log.Debugf("join reply to %s failed: %v", conn.ID(), err)
	}
	return nil
}

// HandleReady marks the caller ready; the room auto-starts at 2/2 ready.
func (s *Server) HandleReady(conn ponggame.Conn) error {
	player := s.sessions.GetPlayer(conn.ID())
	if player == nil {
		return ErrNotInRoom
	}
	player.RLock()
	roomID := player.RoomID
	player.RUnlock()

	room := s.registry.FindByID(roomID)
	if room == nil {
		return ErrNotInRoom
	}
	if room.MarkReady(player.ID) {
		s.log.Debugf("room %s started", room.ID)
	}
	return nil
}

// HandleInput queues a direction for the caller's side at the next tick.
// Oversupplied input is dropped, not errored: last-write-wins anyway.
func (s *Server) HandleInput(conn ponggame.Conn, dir int) error {
	if dir < -1 || dir > 1 {
		return ErrInvalidInput
	}
	if !s.limiter.Allow(conn.ID()) {
		RecordInputRejected()
		return nil
	}

	player := s.sessions.GetPlayer(conn.ID())
	if player == nil {
		return nil
	}
	player.RLock()
	roomID, side := player.RoomID, player.Side
	player.RUnlock()

	if room := s.registry.FindByID(roomID); room != nil {
		room.SubmitInput(side, dir)
	}
	return nil
}

// HandleLeave detaches the caller. A departure during an active tournament
// match resolves as a forfeit loss for the caller.
func (s *Server) HandleLeave(conn ponggame.Conn) error {
	player := s.sessions.GetPlayer(conn.ID())
	if player == nil {
		return nil
	}

	player.RLock()
	tournamentID := player.TournamentID
	player.RUnlock()
	if tournamentID != "" {
		if mgr := s.directory.Find(tournamentID); mgr != nil {
			mgr.HandleDeparture(player.ID)
		}
	}

	// Any remaining casual membership; forfeit handling above already tore
	// down a tournament room.
	s.partRoom(player)

	UpdateRooms(s.registry.Len())
	UpdateTournaments(s.directory.Len())
	return nil
}

// HandleDisconnect is the passive-departure path; it follows the same
// forfeit policy as an explicit leave, then drops the session.
func (s *Server) HandleDisconnect(conn ponggame.Conn) {
	_ = s.HandleLeave(conn)
	s.sessions.RemovePlayer(conn.ID())
	s.limiter.Forget(conn.ID())
}

// HandleJoinTournament enters the caller into an open bracket, creating one
// when none is pending.
func (s *Server) HandleJoinTournament(conn ponggame.Conn, nick string) error {
	player := s.sessions.CreateSession(conn.ID(), nick, conn)
	player.RLock()
	already := player.TournamentID != ""
	player.RUnlock()
	if already {
		return ErrInTournament
	}

	// Entering a bracket vacates any casual seat first.
	s.partRoom(player)

	mgr, err := s.directory.GetOrCreateOpen()
	if err != nil {
		return err
	}
	if err := mgr.AddPlayer(player); err != nil {
		return err
	}
	UpdateTournaments(s.directory.Len())
	return nil
}

// partRoom detaches the player from its current room, stopping a loop that
// goes short-handed. No-op when the player holds no seat.
func (s *Server) partRoom(player *ponggame.Player) {
	player.RLock()
	roomID := player.RoomID
	player.RUnlock()

	room := s.registry.FindByID(roomID)
	if room == nil {
		return
	}
	wasRunning := room.Started()
	room.RemovePlayer(player.ID)
	if wasRunning && room.PlayerCount() < 2 {
		room.StopLoop()
	}
}
