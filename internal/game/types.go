// Package game holds the authoritative map state types, the round delta
// engine and the sync dispatcher that drives them.
//
// The JSON field names on these types are the wire contract with the web
// client and the bots. Do not rename them.
package game

import "sort"

// Point is an integer grid coordinate.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Direction is a snake heading as transmitted on the wire.
type Direction string

const (
	DirectionNone  Direction = ""
	DirectionUp    Direction = "up"
	DirectionDown  Direction = "down"
	DirectionLeft  Direction = "left"
	DirectionRight Direction = "right"
)

// Valid reports whether d is one of the four headings.
func (d Direction) Valid() bool {
	switch d {
	case DirectionUp, DirectionDown, DirectionLeft, DirectionRight:
		return true
	}
	return false
}

// Player is the full per-player record inside a MapState.
// Blocks are ordered head to tail.
type Player struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Color            string    `json:"color"`
	Head             Point     `json:"head"`
	Blocks           []Point   `json:"blocks"`
	Length           int       `json:"length"`
	InvincibleRounds int       `json:"invincible_rounds"`
	Direction        Direction `json:"direction,omitempty"`
}

// Clone returns a deep copy, so snapshots never alias each other's bodies.
func (p Player) Clone() Player {
	cp := p
	cp.Blocks = make([]Point, len(p.Blocks))
	copy(cp.Blocks, p.Blocks)
	return cp
}

// PlayerDelta carries the round-to-round mutable subset of Player.
// Body blocks are deliberately absent: the client extrudes the body from
// head and length, which is the main bandwidth saving of the protocol.
type PlayerDelta struct {
	ID               string    `json:"id"`
	Head             Point     `json:"head"`
	Direction        Direction `json:"direction"`
	Length           int       `json:"length"`
	InvincibleRounds int       `json:"invincible_rounds"`
}

// MapState is one complete authoritative snapshot of the map.
type MapState struct {
	Players            []Player `json:"players"`
	Foods              []Point  `json:"foods"`
	Round              int      `json:"round"`
	Timestamp          int64    `json:"timestamp"`
	NextRoundTimestamp int64    `json:"next_round_timestamp"`
}

// Clone returns a deep copy of the state.
func (s MapState) Clone() MapState {
	cp := s
	cp.Players = make([]Player, len(s.Players))
	for i, p := range s.Players {
		cp.Players[i] = p.Clone()
	}
	cp.Foods = make([]Point, len(s.Foods))
	copy(cp.Foods, s.Foods)
	return cp
}

// PlayerByID returns the player with the given id, or nil.
func (s *MapState) PlayerByID(id string) *Player {
	for i := range s.Players {
		if s.Players[i].ID == id {
			return &s.Players[i]
		}
	}
	return nil
}

// DeltaState is the minimal change description between two consecutive
// snapshots. Persisted players appear in Players, new ids in JoinedPlayers
// (full records, the client has no body for them yet), vanished ids in
// DiedPlayers.
type DeltaState struct {
	Round              int           `json:"round"`
	Timestamp          int64         `json:"timestamp"`
	NextRoundTimestamp int64         `json:"next_round_timestamp"`
	Players            []PlayerDelta `json:"players"`
	JoinedPlayers      []Player      `json:"joined_players"`
	DiedPlayers        []string      `json:"died_players"`
	AddedFoods         []Point       `json:"added_foods"`
	RemovedFoods       []Point       `json:"removed_foods"`
}

// sortPoints orders points by x, then y.
func sortPoints(pts []Point) {
	sort.Slice(pts, func(i, j int) bool {
		if pts[i].X != pts[j].X {
			return pts[i].X < pts[j].X
		}
		return pts[i].Y < pts[j].Y
	})
}
