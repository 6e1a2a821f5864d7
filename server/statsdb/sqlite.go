// Package statsdb persists win/loss/level updates from completed matches.
// The sqlite implementation uses the pure-Go modernc.org/sqlite driver to
// avoid CGO dependencies.
package statsdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// levelStep is how many wins advance a player one level.
const levelStep = 5

// SQLiteDB implements StatsDB on a local sqlite file.
type SQLiteDB struct {
	db *sql.DB
}

var _ StatsDB = (*SQLiteDB)(nil)

// OpenSQLite creates or opens the database at path, creating parent
// directories and running migrations.
func OpenSQLite(path string) (*SQLiteDB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("statsdb: cannot create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("statsdb: cannot open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("statsdb: cannot connect to database: %w", err)
	}

	s := &SQLiteDB{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("statsdb: migration failed: %w", err)
	}
	return s, nil
}

func (s *SQLiteDB) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS players (
			id TEXT PRIMARY KEY,
			wins INTEGER NOT NULL DEFAULT 0,
			losses INTEGER NOT NULL DEFAULT 0,
			level INTEGER NOT NULL DEFAULT 1,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS matches (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			winner_id TEXT NOT NULL,
			loser_id TEXT NOT NULL,
			tournament_id TEXT,
			match_id INTEGER,
			round INTEGER,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_matches_winner ON matches(winner_id);
		CREATE INDEX IF NOT EXISTS idx_matches_loser ON matches(loser_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteDB) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// RecordMatch logs the match and applies the win/loss/level update to both
// players in one transaction.
func (s *SQLiteDB) RecordMatch(ctx context.Context, rec MatchRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("statsdb: cannot begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO matches (winner_id, loser_id, tournament_id, match_id, round)
		 VALUES (?, ?, ?, ?, ?)`,
		rec.WinnerID, rec.LoserID, nullable(rec.TournamentID), rec.MatchID, rec.Round,
	)
	if err != nil {
		return fmt.Errorf("statsdb: cannot log match: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO players (id, wins, level) VALUES (?, 1, 1)
		 ON CONFLICT(id) DO UPDATE SET
			wins = wins + 1,
			level = (wins + 1) / ? + 1,
			updated_at = CURRENT_TIMESTAMP`,
		rec.WinnerID, levelStep,
	)
	if err != nil {
		return fmt.Errorf("statsdb: cannot update winner: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO players (id, losses) VALUES (?, 1)
		 ON CONFLICT(id) DO UPDATE SET
			losses = losses + 1,
			updated_at = CURRENT_TIMESTAMP`,
		rec.LoserID,
	)
	if err != nil {
		return fmt.Errorf("statsdb: cannot update loser: %w", err)
	}

	return tx.Commit()
}

// PlayerStats returns the aggregated record for one player.
func (s *SQLiteDB) PlayerStats(ctx context.Context, playerID string) (*PlayerStats, error) {
	var stats PlayerStats
	var updatedAt any
	err := s.db.QueryRowContext(ctx,
		`SELECT id, wins, losses, level, updated_at FROM players WHERE id = ?`,
		playerID,
	).Scan(&stats.PlayerID, &stats.Wins, &stats.Losses, &stats.Level, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrPlayerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("statsdb: cannot query player %s: %w", playerID, err)
	}
	stats.UpdatedAt = parseTime(updatedAt)
	return &stats, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// parseTime handles both time.Time and string datetime columns.
func parseTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		if parsed, err := time.Parse("2006-01-02 15:04:05", t); err == nil {
			return parsed
		}
	}
	return time.Time{}
}
