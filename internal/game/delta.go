package game

import (
	"sort"

	"github.com/pkg/errors"
)

// ErrOutOfOrderRound is returned when the current snapshot does not have a
// strictly larger round than the previous one. The dispatcher reacts by
// falling back to a full-state push instead of retrying the diff.
var ErrOutOfOrderRound = errors.New("game: out-of-order round")

// ComputeDelta diffs two consecutive snapshots into a DeltaState.
//
// Persisted players always get a PlayerDelta, changed or not; suppressing
// unchanged entries would complicate the client for little gain at 1s
// rounds. All output sequences are deterministically ordered: players by
// ascending id, foods by (x, y).
func ComputeDelta(previous, current *MapState) (*DeltaState, error) {
	if current.Round <= previous.Round {
		return nil, errors.Wrapf(ErrOutOfOrderRound,
			"previous round %d, current round %d", previous.Round, current.Round)
	}

	delta := &DeltaState{
		Round:              current.Round,
		Timestamp:          current.Timestamp,
		NextRoundTimestamp: current.NextRoundTimestamp,
		Players:            []PlayerDelta{},
		JoinedPlayers:      []Player{},
		DiedPlayers:        []string{},
		AddedFoods:         []Point{},
		RemovedFoods:       []Point{},
	}

	prevIDs := make(map[string]struct{}, len(previous.Players))
	for i := range previous.Players {
		prevIDs[previous.Players[i].ID] = struct{}{}
	}

	currIDs := make(map[string]struct{}, len(current.Players))
	for i := range current.Players {
		p := &current.Players[i]
		currIDs[p.ID] = struct{}{}

		if _, ok := prevIDs[p.ID]; ok {
			delta.Players = append(delta.Players, PlayerDelta{
				ID:               p.ID,
				Head:             p.Head,
				Direction:        p.Direction,
				Length:           p.Length,
				InvincibleRounds: p.InvincibleRounds,
			})
		} else {
			delta.JoinedPlayers = append(delta.JoinedPlayers, p.Clone())
		}
	}

	for i := range previous.Players {
		id := previous.Players[i].ID
		if _, ok := currIDs[id]; !ok {
			delta.DiedPlayers = append(delta.DiedPlayers, id)
		}
	}

	prevFoods := make(map[Point]struct{}, len(previous.Foods))
	for _, f := range previous.Foods {
		prevFoods[f] = struct{}{}
	}
	currFoods := make(map[Point]struct{}, len(current.Foods))
	for _, f := range current.Foods {
		currFoods[f] = struct{}{}
		if _, ok := prevFoods[f]; !ok {
			delta.AddedFoods = append(delta.AddedFoods, f)
		}
	}
	for _, f := range previous.Foods {
		if _, ok := currFoods[f]; !ok {
			delta.RemovedFoods = append(delta.RemovedFoods, f)
		}
	}

	sort.Slice(delta.Players, func(i, j int) bool {
		return delta.Players[i].ID < delta.Players[j].ID
	})
	sort.Slice(delta.JoinedPlayers, func(i, j int) bool {
		return delta.JoinedPlayers[i].ID < delta.JoinedPlayers[j].ID
	})
	sort.Strings(delta.DiedPlayers)
	sortPoints(delta.AddedFoods)
	sortPoints(delta.RemovedFoods)

	return delta, nil
}

// Apply reconstructs the successor state by applying a delta to a base
// snapshot. Clients do the same with extruded bodies; server-side it backs
// the delta-completeness tests.
func (d *DeltaState) Apply(base *MapState) MapState {
	next := MapState{
		Round:              d.Round,
		Timestamp:          d.Timestamp,
		NextRoundTimestamp: d.NextRoundTimestamp,
	}

	died := make(map[string]struct{}, len(d.DiedPlayers))
	for _, id := range d.DiedPlayers {
		died[id] = struct{}{}
	}
	updates := make(map[string]PlayerDelta, len(d.Players))
	for _, pd := range d.Players {
		updates[pd.ID] = pd
	}

	for i := range base.Players {
		p := base.Players[i].Clone()
		if _, gone := died[p.ID]; gone {
			continue
		}
		if pd, ok := updates[p.ID]; ok {
			p.Head = pd.Head
			p.Direction = pd.Direction
			p.Length = pd.Length
			p.InvincibleRounds = pd.InvincibleRounds
		}
		next.Players = append(next.Players, p)
	}
	for _, joined := range d.JoinedPlayers {
		next.Players = append(next.Players, joined.Clone())
	}

	removed := make(map[Point]struct{}, len(d.RemovedFoods))
	for _, f := range d.RemovedFoods {
		removed[f] = struct{}{}
	}
	for _, f := range base.Foods {
		if _, gone := removed[f]; !gone {
			next.Foods = append(next.Foods, f)
		}
	}
	next.Foods = append(next.Foods, d.AddedFoods...)

	return next
}
