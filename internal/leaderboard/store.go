package leaderboard

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

// Store persists raw per-player counters in SQLite, one row per
// (uid, season). It is the slow collaborator behind the cache; reads honor
// the caller's context deadline.
type Store struct {
	db       *sql.DB
	seasonID string
}

// OpenStore opens (creating if needed) the counters database at path.
func OpenStore(path, seasonID string) (*Store, error) {
	if seasonID == "" {
		seasonID = DefaultSeasonID
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(err, "create data directory")
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open counters database")
	}
	// SQLite tolerates exactly one writer.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, seasonID: seasonID}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) createTables() error {
	const schema = `CREATE TABLE IF NOT EXISTS leaderboard (
		uid TEXT NOT NULL,
		player_name TEXT NOT NULL,
		season_id TEXT NOT NULL,
		now_length INTEGER NOT NULL DEFAULT 0,
		max_length INTEGER NOT NULL DEFAULT 0,
		kills INTEGER NOT NULL DEFAULT 0,
		deaths INTEGER NOT NULL DEFAULT 0,
		games_played INTEGER NOT NULL DEFAULT 0,
		total_food INTEGER NOT NULL DEFAULT 0,
		last_round INTEGER NOT NULL DEFAULT 0,
		timestamp INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (uid, season_id)
	)`
	if _, err := s.db.Exec(schema); err != nil {
		return errors.Wrap(err, "create leaderboard table")
	}
	_, err := s.db.Exec(
		`CREATE INDEX IF NOT EXISTS idx_leaderboard_season_ts ON leaderboard (season_id, timestamp)`)
	return errors.Wrap(err, "create leaderboard index")
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func nowMs() int64 {
	return time.Now().UnixMilli()
}

func (s *Store) ensurePlayer(uid, name string) error {
	// A missing name never clobbers one we already know.
	if name == "" {
		_, err := s.db.Exec(
			`INSERT INTO leaderboard (uid, player_name, season_id, timestamp) VALUES (?, ?, ?, ?)
			 ON CONFLICT (uid, season_id) DO NOTHING`,
			uid, uid, s.seasonID, nowMs())
		return errors.Wrapf(err, "ensure player %s", uid)
	}
	_, err := s.db.Exec(
		`INSERT INTO leaderboard (uid, player_name, season_id, timestamp) VALUES (?, ?, ?, ?)
		 ON CONFLICT (uid, season_id) DO UPDATE SET player_name = excluded.player_name`,
		uid, name, s.seasonID, nowMs())
	return errors.Wrapf(err, "ensure player %s", uid)
}

// UpdateOnRound applies a per-round counter delta: the current length (also
// a max_length candidate), food eaten this round and kills this round.
func (s *Store) UpdateOnRound(uid, name string, round, currentLength, foodDelta, killsDelta int) error {
	if err := s.ensurePlayer(uid, name); err != nil {
		return err
	}
	if foodDelta < 0 {
		foodDelta = 0
	}
	if killsDelta < 0 {
		killsDelta = 0
	}
	_, err := s.db.Exec(
		`UPDATE leaderboard
		 SET now_length = ?, max_length = MAX(max_length, ?),
		     kills = kills + ?, total_food = total_food + ?,
		     last_round = ?, timestamp = ?
		 WHERE uid = ? AND season_id = ?`,
		currentLength, currentLength, killsDelta, foodDelta, round, nowMs(),
		uid, s.seasonID)
	return errors.Wrapf(err, "update round counters for %s", uid)
}

// UpdateOnDeath closes out a life: one death, one game played, and the
// final length as a max_length candidate.
func (s *Store) UpdateOnDeath(uid, name string, round, finalLength int) error {
	if err := s.ensurePlayer(uid, name); err != nil {
		return err
	}
	_, err := s.db.Exec(
		`UPDATE leaderboard
		 SET now_length = ?, max_length = MAX(max_length, ?),
		     deaths = deaths + 1, games_played = games_played + 1,
		     last_round = ?, timestamp = ?
		 WHERE uid = ? AND season_id = ?`,
		finalLength, finalLength, round, nowMs(), uid, s.seasonID)
	return errors.Wrapf(err, "update death counters for %s", uid)
}

// IncrementKills credits one kill to uid. Called by the physics engine,
// which is the only component that can attribute kills.
func (s *Store) IncrementKills(uid string) error {
	if err := s.ensurePlayer(uid, ""); err != nil {
		return err
	}
	_, err := s.db.Exec(
		`UPDATE leaderboard SET kills = kills + 1, timestamp = ? WHERE uid = ? AND season_id = ?`,
		nowMs(), uid, s.seasonID)
	return errors.Wrapf(err, "increment kills for %s", uid)
}

const countersColumns = `uid, player_name, season_id, now_length, max_length,
	kills, deaths, games_played, total_food, last_round, timestamp`

func scanCounters(rows *sql.Rows) (PlayerCounters, error) {
	var c PlayerCounters
	err := rows.Scan(&c.UID, &c.Name, &c.SeasonID, &c.NowLength, &c.MaxLength,
		&c.Kills, &c.Deaths, &c.GamesPlayed, &c.TotalFood, &c.LastRound, &c.Timestamp)
	return c, err
}

// ReadCounters returns every row of the active season whose activity
// timestamp falls inside the window. The read respects ctx, so the cache
// can bound its latency.
func (s *Store) ReadCounters(ctx context.Context, window Window) ([]PlayerCounters, error) {
	query := `SELECT ` + countersColumns + ` FROM leaderboard WHERE season_id = ?`
	args := []any{s.seasonID}
	if window.Start > 0 {
		query += ` AND timestamp >= ?`
		args = append(args, window.Start)
	}
	if window.End > 0 {
		query += ` AND timestamp <= ?`
		args = append(args, window.End)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "read counters")
	}
	defer rows.Close()

	var counters []PlayerCounters
	for rows.Next() {
		c, err := scanCounters(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan counters row")
		}
		counters = append(counters, c)
	}
	return counters, errors.Wrap(rows.Err(), "iterate counters")
}

// PlayerCounters returns the raw row for one uid. found is false for
// players that never recorded activity this season.
func (s *Store) PlayerCounters(ctx context.Context, uid string) (c PlayerCounters, found bool, err error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+countersColumns+` FROM leaderboard WHERE uid = ? AND season_id = ?`,
		uid, s.seasonID)
	if err != nil {
		return c, false, errors.Wrapf(err, "read counters for %s", uid)
	}
	defer rows.Close()

	if !rows.Next() {
		return c, false, errors.Wrap(rows.Err(), "iterate counters")
	}
	c, err = scanCounters(rows)
	return c, err == nil, errors.Wrapf(err, "scan counters for %s", uid)
}

// Reset drops every row of the active season.
func (s *Store) Reset() error {
	_, err := s.db.Exec(`DELETE FROM leaderboard WHERE season_id = ?`, s.seasonID)
	return errors.Wrap(err, "reset leaderboard")
}
