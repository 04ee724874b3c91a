// Package leaderboard maintains ranked, time-windowed player statistics:
// a SQLite-backed counters store, a pure ranking aggregator and a
// bounded-staleness cache with single-flight recomputation.
package leaderboard

import "github.com/pkg/errors"

// Type selects the ranking metric.
type Type string

const (
	TypeKD               Type = "kd"
	TypeMaxLength        Type = "max_length"
	TypeAvgLengthPerGame Type = "avg_length_per_game"
)

// ParseType normalizes a query string into a Type.
func ParseType(s string) (Type, error) {
	switch Type(s) {
	case TypeKD, TypeMaxLength, TypeAvgLengthPerGame:
		return Type(s), nil
	case "":
		return TypeKD, nil
	}
	return "", errors.Wrapf(ErrUnknownType, "%q", s)
}

// DefaultSeasonID scopes counters when no season rotation is configured.
const DefaultSeasonID = "all_time"

var (
	// ErrInvalidRange rejects non-positive limits and negative offsets.
	ErrInvalidRange = errors.New("leaderboard: invalid limit/offset range")
	// ErrUnknownType rejects metrics outside the three supported ones.
	ErrUnknownType = errors.New("leaderboard: unknown type")
	// ErrAggregationTimeout marks a counters read that exceeded its bound.
	ErrAggregationTimeout = errors.New("leaderboard: aggregation timed out")
)

// PlayerCounters is one raw per-player row as stored. Derived metrics (kd,
// average length) are intentionally absent; they are computed at
// aggregation time so they can never drift from the raw counters.
type PlayerCounters struct {
	UID         string
	Name        string
	SeasonID    string
	NowLength   int
	MaxLength   int
	Kills       int
	Deaths      int
	GamesPlayed int
	TotalFood   int
	LastRound   int
	Timestamp   int64 // last activity, unix milliseconds
}

// Window is a [Start, End] activity-timestamp filter in unix milliseconds.
// A zero bound is unbounded on that side.
type Window struct {
	Start int64
	End   int64
}

// Contains reports whether ts falls inside the window (inclusive).
func (w Window) Contains(ts int64) bool {
	if w.Start > 0 && ts < w.Start {
		return false
	}
	if w.End > 0 && ts > w.End {
		return false
	}
	return true
}

// Entry is one ranked row on the wire.
type Entry struct {
	UID              string  `json:"uid"`
	Name             string  `json:"name"`
	SeasonID         string  `json:"season_id"`
	NowLength        int     `json:"now_length"`
	MaxLength        int     `json:"max_length"`
	Kills            int     `json:"kills"`
	Deaths           int     `json:"deaths"`
	KD               float64 `json:"kd"`
	GamesPlayed      int     `json:"games_played"`
	AvgLengthPerGame float64 `json:"avg_length_per_game"`
	TotalFood        int     `json:"total_food"`
	LastRound        int     `json:"last_round"`
	Timestamp        int64   `json:"timestamp"`
	Rank             int     `json:"rank"`
}

// Data is the full leaderboard response payload.
type Data struct {
	Type                  Type    `json:"type"`
	Limit                 int     `json:"limit"`
	Offset                int     `json:"offset"`
	StartTime             int64   `json:"start_time"`
	EndTime               int64   `json:"end_time"`
	RefreshIntervalRounds int     `json:"refresh_interval_rounds"`
	CacheTTLSeconds       int     `json:"cache_ttl_seconds"`
	Entries               []Entry `json:"entries"`

	// Stale marks a last-known-good fallback served after an aggregation
	// timeout. Not part of the wire payload; the API surfaces it in msg.
	Stale bool `json:"-"`
}

// Query is a leaderboard request. All fields are optional; zero values take
// server defaults at the API boundary.
type Query struct {
	Type      Type
	Limit     int
	Offset    int
	StartTime int64
	EndTime   int64
}
