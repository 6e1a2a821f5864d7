package statsdb

import (
	"context"
	"errors"
	"time"
)

var (
	ErrPlayerNotFound = errors.New("player stats not found")
)

// WriteTimeout bounds a fire-and-forget result write.
const WriteTimeout = 5 * time.Second

// MatchRecord is one completed match between two registered accounts.
// TournamentID is empty for casual matches.
type MatchRecord struct {
	WinnerID     string
	LoserID      string
	TournamentID string
	MatchID      int64
	Round        int
}

// PlayerStats is the aggregated win/loss/level record for one player.
type PlayerStats struct {
	PlayerID  string
	Wins      int
	Losses    int
	Level     int
	UpdatedAt time.Time
}

// StatsDB is the storage collaborator boundary. The game core issues
// fire-and-forget writes through it and never awaits them on a tick path.
type StatsDB interface {
	RecordMatch(ctx context.Context, rec MatchRecord) error
	PlayerStats(ctx context.Context, playerID string) (*PlayerStats, error)
	Close() error
}
