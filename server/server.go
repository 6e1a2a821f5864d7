package server

import (
	"context"
	"sync"
	"time"

	"github.com/decred/slog"

	"github.com/vgmr/pongcourt/ponggame"
	"github.com/vgmr/pongcourt/server/statsdb"
	"github.com/vgmr/pongcourt/tournament"
)

// Config tunes the command layer.
type Config struct {
	Game        ponggame.BaseConfig
	BracketSize int
	// Input rate limiting per connection.
	InputPerSec float64
	InputBurst  int
}

func DefaultConfig() Config {
	return Config{
		Game:        ponggame.DefaultBaseConfig(),
		BracketSize: tournament.DefaultBracketSize,
		InputPerSec: 120,
		InputBurst:  240,
	}
}

// Server routes already-authenticated commands into rooms and tournaments.
// Transport framing lives outside; connections arrive as ponggame.Conn.
type Server struct {
	cfg ponggame.Config
	log slog.Logger

	sessions  *ponggame.PlayerSessions
	registry  *ponggame.Registry
	directory *tournament.Directory
	db        statsdb.StatsDB
	limiter   *InputLimiter

	// joinMu serializes the capacity check with the seat assignment;
	// rooms do not self-enforce the two-player cap.
	joinMu sync.Mutex
}

// New wires a server. db may be nil to disable stats persistence.
func New(cfg Config, db statsdb.StatsDB, log slog.Logger) *Server {
	gameCfg := ponggame.BuildConfig(cfg.Game)
	registry := ponggame.NewRegistry(gameCfg, log)
	registry.SetTickHook(RecordTick)

	var recorder tournament.ResultRecorder
	if db != nil {
		recorder = statsRecorder{db: db}
	}

	return &Server{
		cfg:       gameCfg,
		log:       log,
		sessions:  ponggame.NewPlayerSessions(),
		registry:  registry,
		directory: tournament.NewDirectory(registry, recorder, cfg.BracketSize, log),
		db:        db,
		limiter:   NewInputLimiter(cfg.InputPerSec, cfg.InputBurst),
	}
}

// Registry exposes the room registry (sweep loop, tests).
func (s *Server) Registry() *ponggame.Registry { return s.registry }

// Directory exposes the tournament directory.
func (s *Server) Directory() *tournament.Directory { return s.directory }

// Run drives the periodic maintenance loops until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	go s.registry.Run(ctx)

	ticker := time.NewTicker(ponggame.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.sweepTournaments()
		}
	}
}

// sweepTournaments reclaims completed brackets and refreshes the gauge.
func (s *Server) sweepTournaments() {
	if s.directory.SweepCompleted() > 0 {
		UpdateTournaments(s.directory.Len())
	}
}

// MatchEnded implements ponggame.ResultSink for casual rooms: the score
// outcome only feeds the fire-and-forget stats write.
func (s *Server) MatchEnded(_ int64, winnerID, loserID string) {
	if s.db == nil || winnerID == "" || loserID == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), statsdb.WriteTimeout)
		defer cancel()
		err := s.db.RecordMatch(ctx, statsdb.MatchRecord{WinnerID: winnerID, LoserID: loserID})
		if err != nil {
			s.log.Warnf("stats write for casual match failed: %v", err)
		}
	}()
}

// statsRecorder adapts the stats store to the tournament recorder boundary.
type statsRecorder struct {
	db statsdb.StatsDB
}

func (r statsRecorder) RecordMatch(ctx context.Context, rec tournament.MatchRecord) error {
	return r.db.RecordMatch(ctx, statsdb.MatchRecord{
		WinnerID:     rec.WinnerID,
		LoserID:      rec.LoserID,
		TournamentID: rec.TournamentID,
		MatchID:      rec.MatchID,
		Round:        rec.Round,
	})
}
