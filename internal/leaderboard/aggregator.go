package leaderboard

import (
	"context"
	"sort"

	"github.com/pkg/errors"
)

// DefaultInitialLength is the spawn length of a snake; the average-length
// metric counts it on top of food eaten per game.
const DefaultInitialLength = 3

// Aggregator turns raw counters into ranked entries.
type Aggregator struct {
	initialLength int
}

// NewAggregator creates an aggregator. initialLength <= 0 falls back to
// DefaultInitialLength.
func NewAggregator(initialLength int) *Aggregator {
	if initialLength <= 0 {
		initialLength = DefaultInitialLength
	}
	return &Aggregator{initialLength: initialLength}
}

// kd is kills per death, or plain kills while still undefeated.
func (a *Aggregator) kd(c PlayerCounters) float64 {
	if c.Deaths > 0 {
		return float64(c.Kills) / float64(c.Deaths)
	}
	return float64(c.Kills)
}

// avgLength is spawn length plus food per game; zero before the first
// completed game.
func (a *Aggregator) avgLength(c PlayerCounters) float64 {
	if c.GamesPlayed > 0 {
		return float64(a.initialLength) + float64(c.TotalFood)/float64(c.GamesPlayed)
	}
	return 0
}

// EntryFor derives a single wire entry from raw counters. Rank stays 0
// (unranked) until a full ranking pass assigns it.
func (a *Aggregator) EntryFor(c PlayerCounters) Entry {
	return Entry{
		UID:              c.UID,
		Name:             c.Name,
		SeasonID:         c.SeasonID,
		NowLength:        c.NowLength,
		MaxLength:        c.MaxLength,
		Kills:            c.Kills,
		Deaths:           c.Deaths,
		KD:               a.kd(c),
		GamesPlayed:      c.GamesPlayed,
		AvgLengthPerGame: a.avgLength(c),
		TotalFood:        c.TotalFood,
		LastRound:        c.LastRound,
		Timestamp:        c.Timestamp,
	}
}

// Rank filters counters to the window, derives kd and average length, and
// returns the complete sequence sorted descending by the metric with ties
// broken by ascending uid. Ranks are dense and 1-based.
func (a *Aggregator) Rank(counters []PlayerCounters, typ Type, window Window) []Entry {
	entries := make([]Entry, 0, len(counters))
	for _, c := range counters {
		if !window.Contains(c.Timestamp) {
			continue
		}
		entries = append(entries, a.EntryFor(c))
	}

	metric := func(e Entry) float64 {
		switch typ {
		case TypeMaxLength:
			return float64(e.MaxLength)
		case TypeAvgLengthPerGame:
			return e.AvgLengthPerGame
		default:
			return e.KD
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		mi, mj := metric(entries[i]), metric(entries[j])
		if mi != mj {
			return mi > mj
		}
		return entries[i].UID < entries[j].UID
	})

	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}

// Paginate slices a ranked sequence. Rank values are preserved, so page two
// of a cached sequence still starts at offset+1.
func Paginate(entries []Entry, limit, offset int) ([]Entry, error) {
	if limit <= 0 || offset < 0 {
		return nil, errors.Wrapf(ErrInvalidRange, "limit=%d offset=%d", limit, offset)
	}
	if offset >= len(entries) {
		return []Entry{}, nil
	}
	end := offset + limit
	if end > len(entries) {
		end = len(entries)
	}
	page := make([]Entry, end-offset)
	copy(page, entries[offset:end])
	return page, nil
}

// Aggregate is the one-shot contract: rank the counters for the window and
// apply pagination.
func (a *Aggregator) Aggregate(counters []PlayerCounters, typ Type, window Window, limit, offset int) ([]Entry, error) {
	return Paginate(a.Rank(counters, typ, window), limit, offset)
}

// PlayerLookup answers single-player stat queries with derived metrics.
type PlayerLookup struct {
	store *Store
	agg   *Aggregator
}

// NewPlayerLookup wires a lookup over the counters store.
func NewPlayerLookup(store *Store, agg *Aggregator) *PlayerLookup {
	return &PlayerLookup{store: store, agg: agg}
}

// PlayerEntry returns the wire entry for one uid, rank 0 (unranked).
func (l *PlayerLookup) PlayerEntry(ctx context.Context, uid string) (Entry, bool, error) {
	c, found, err := l.store.PlayerCounters(ctx, uid)
	if err != nil || !found {
		return Entry{}, false, err
	}
	return l.agg.EntryFor(c), true, nil
}
