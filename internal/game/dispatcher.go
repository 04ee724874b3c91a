package game

import (
	"log"
	"sync"

	"github.com/pkg/errors"
)

// CacheInvalidator is the refresh signal the dispatcher sends to the
// leaderboard cache on its round cadence.
type CacheInvalidator interface {
	InvalidateAll()
}

// StatsRecorder receives per-player counter updates derived from round
// transitions. Kill attribution needs collision context the dispatcher does
// not have, so kills are written by the physics engine directly and the
// killsDelta here is always zero.
type StatsRecorder interface {
	UpdateOnRound(uid, name string, round, currentLength, foodDelta, killsDelta int) error
	UpdateOnDeath(uid, name string, round, finalLength int) error
}

// RoundListener is notified after each accepted round. delta is nil when
// the round was published as a full snapshot (round 1 or fallback).
type RoundListener func(state *MapState, delta *DeltaState)

// DispatcherConfig configures the sync dispatcher.
type DispatcherConfig struct {
	// RefreshIntervalRounds is how often (in rounds) the leaderboard cache
	// is proactively invalidated. Zero disables the signal.
	RefreshIntervalRounds int

	// Cache is the invalidation target. Optional.
	Cache CacheInvalidator

	// Stats receives join/food/death counter updates. Optional.
	Stats StatsRecorder
}

// Dispatcher orchestrates round boundaries: it owns the snapshot rotation,
// runs the delta engine, feeds the stats recorder and signals the
// leaderboard cache. One round fully transitions before the next is
// accepted.
type Dispatcher struct {
	mu        sync.Mutex
	store     *SnapshotStore
	cfg       DispatcherConfig
	delta     *DeltaState
	needsFull bool
	listeners []RoundListener
}

// NewDispatcher creates a dispatcher around the given snapshot store.
func NewDispatcher(store *SnapshotStore, cfg DispatcherConfig) *Dispatcher {
	return &Dispatcher{store: store, cfg: cfg, needsFull: true}
}

// OnRound registers a listener invoked after each accepted round, outside
// of hot per-request paths but inside the round transition. Listeners must
// be fast; anything slow belongs on the listener's own goroutine.
func (d *Dispatcher) OnRound(fn RoundListener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = append(d.listeners, fn)
}

// PublishRound accepts a new authoritative MapState from the game loop.
// The swap and the diff run as one atomic unit. An out-of-order round is
// rejected and flips the dispatcher into full-state mode so clients
// re-synchronize from a complete snapshot instead of a broken delta chain.
func (d *Dispatcher) PublishRound(state MapState) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	prevState := d.store.Current()
	if prevState != nil && state.Round <= prevState.Round {
		d.delta = nil
		d.needsFull = true
		return errors.Wrapf(ErrOutOfOrderRound,
			"round %d published after round %d", state.Round, prevState.Round)
	}

	previous, current := d.store.Swap(state)

	if previous == nil || d.needsFull {
		// Round 1, or recovering from an out-of-order publish: there is no
		// usable base to diff against, transport serves the full snapshot.
		d.delta = nil
		d.needsFull = false
		d.recordStatsFull(current)
		d.afterRound(current, nil)
		return nil
	}

	delta, err := ComputeDelta(previous, current)
	if err != nil {
		d.delta = nil
		d.needsFull = true
		return err
	}
	d.delta = delta

	d.recordStatsDelta(previous, delta)
	d.afterRound(current, delta)
	return nil
}

// CurrentDelta returns the delta for the latest round. ok is false when
// transport must serve the full snapshot instead (round 1, or after an
// out-of-order fallback).
func (d *Dispatcher) CurrentDelta() (delta *DeltaState, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.delta == nil {
		return nil, false
	}
	return d.delta, true
}

// FullState returns the current authoritative snapshot, or nil before the
// first round.
func (d *Dispatcher) FullState() *MapState {
	return d.store.Current()
}

func (d *Dispatcher) afterRound(state *MapState, delta *DeltaState) {
	for _, fn := range d.listeners {
		fn(state, delta)
	}

	interval := d.cfg.RefreshIntervalRounds
	if d.cfg.Cache != nil && interval > 0 && state.Round%interval == 0 {
		d.cfg.Cache.InvalidateAll()
	}
}

// recordStatsFull seeds counters for every player in a full-snapshot round.
func (d *Dispatcher) recordStatsFull(state *MapState) {
	if d.cfg.Stats == nil {
		return
	}
	for i := range state.Players {
		p := &state.Players[i]
		if err := d.cfg.Stats.UpdateOnRound(p.ID, p.Name, state.Round, p.Length, 0, 0); err != nil {
			log.Printf("stats update failed for %s: %v", p.ID, err)
		}
	}
}

// recordStatsDelta converts a round delta into counter updates: joins seed
// a row, growth counts as food eaten, deaths close out with the final
// length from the previous snapshot.
func (d *Dispatcher) recordStatsDelta(previous *MapState, delta *DeltaState) {
	if d.cfg.Stats == nil {
		return
	}
	for i := range delta.JoinedPlayers {
		p := &delta.JoinedPlayers[i]
		if err := d.cfg.Stats.UpdateOnRound(p.ID, p.Name, delta.Round, p.Length, 0, 0); err != nil {
			log.Printf("stats update failed for %s: %v", p.ID, err)
		}
	}
	for _, pd := range delta.Players {
		prev := previous.PlayerByID(pd.ID)
		if prev == nil {
			continue
		}
		if grown := pd.Length - prev.Length; grown > 0 {
			if err := d.cfg.Stats.UpdateOnRound(pd.ID, prev.Name, delta.Round, pd.Length, grown, 0); err != nil {
				log.Printf("stats update failed for %s: %v", pd.ID, err)
			}
		}
	}
	for _, id := range delta.DiedPlayers {
		prev := previous.PlayerByID(id)
		if prev == nil {
			continue
		}
		if err := d.cfg.Stats.UpdateOnDeath(id, prev.Name, delta.Round, prev.Length); err != nil {
			log.Printf("stats update failed for %s: %v", id, err)
		}
	}
}
