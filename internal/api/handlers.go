package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/xk2013awa/CodingSnake/internal/game"
	"github.com/xk2013awa/CodingSnake/internal/leaderboard"

	"github.com/pkg/errors"
)

// StateSource is the dispatcher surface the transport layer consumes.
// The interface keeps handlers testable without a running game loop.
type StateSource interface {
	// FullState returns the current snapshot, nil before round 1.
	FullState() *game.MapState
	// CurrentDelta returns the latest delta; ok is false when clients must
	// re-synchronize from the full snapshot.
	CurrentDelta() (*game.DeltaState, bool)
	// PublishRound ingests a new authoritative state from the game loop.
	PublishRound(game.MapState) error
}

// LeaderboardSource serves ranked leaderboard queries.
type LeaderboardSource interface {
	Get(ctx context.Context, q leaderboard.Query) (leaderboard.Data, error)
}

// PlayerStatsSource reads a single player's stats row.
type PlayerStatsSource interface {
	PlayerEntry(ctx context.Context, uid string) (leaderboard.Entry, bool, error)
}

// StatusInfo is static deployment metadata for the status endpoint.
type StatusInfo struct {
	MapWidth    int
	MapHeight   int
	RoundTimeMs int
}

type routerHandlers struct {
	state      StateSource
	board      LeaderboardSource
	stats      PlayerStatsSource
	status     StatusInfo
	maxEntries int
}

type statusData struct {
	Status      string  `json:"status"`
	PlayerCount int     `json:"player_count"`
	MapSize     mapSize `json:"map_size"`
	RoundTime   int     `json:"round_time"`
}

type mapSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (h *routerHandlers) handleStatus(w http.ResponseWriter, r *http.Request) {
	playerCount := 0
	if state := h.state.FullState(); state != nil {
		playerCount = len(state.Players)
	}
	writeOK(w, statusData{
		Status:      "ok",
		PlayerCount: playerCount,
		MapSize:     mapSize{Width: h.status.MapWidth, Height: h.status.MapHeight},
		RoundTime:   h.status.RoundTimeMs,
	})
}

func (h *routerHandlers) handleGetMap(w http.ResponseWriter, r *http.Request) {
	state := h.state.FullState()
	if state == nil {
		writeError(w, http.StatusServiceUnavailable, "game not started")
		return
	}
	writeOK(w, state)
}

// handleGetMapDelta serves the latest round delta. Before round 2, and
// after an out-of-order fallback, it serves the full snapshot with
// msg "full" so the client knows to rebuild rather than patch.
func (h *routerHandlers) handleGetMapDelta(w http.ResponseWriter, r *http.Request) {
	if delta, ok := h.state.CurrentDelta(); ok {
		writeOK(w, delta)
		return
	}
	state := h.state.FullState()
	if state == nil {
		writeError(w, http.StatusServiceUnavailable, "game not started")
		return
	}
	writeOKMsg(w, "full", state)
}

// handlePublishRound is the collaborator ingest: the physics engine posts
// each authoritative MapState here, exactly once per round.
func (h *routerHandlers) handlePublishRound(w http.ResponseWriter, r *http.Request) {
	var state game.MapState
	if err := json.NewDecoder(r.Body).Decode(&state); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json format")
		return
	}
	if state.Round <= 0 {
		writeError(w, http.StatusBadRequest, "round must be positive")
		return
	}

	start := time.Now()
	err := h.state.PublishRound(state)
	ObserveRoundDuration(time.Since(start))
	if err != nil {
		if errors.Is(err, game.ErrOutOfOrderRound) {
			writeError(w, http.StatusConflict, "out-of-order round")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to publish round")
		return
	}
	writeOK(w, nil)
}

func (h *routerHandlers) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	q := leaderboard.Query{Limit: 50}

	typ, err := leaderboard.ParseType(r.URL.Query().Get("type"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid type")
		return
	}
	q.Type = typ

	parseInt := func(name string, out *int) bool {
		raw := r.URL.Query().Get(name)
		if raw == "" {
			return true
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid "+name)
			return false
		}
		*out = v
		return true
	}
	parseInt64 := func(name string, out *int64) bool {
		raw := r.URL.Query().Get(name)
		if raw == "" {
			return true
		}
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid "+name)
			return false
		}
		*out = v
		return true
	}

	if !parseInt("limit", &q.Limit) || !parseInt("offset", &q.Offset) ||
		!parseInt64("start_time", &q.StartTime) || !parseInt64("end_time", &q.EndTime) {
		return
	}

	// Clamp rather than reject: public clients send whatever they like.
	if q.Limit < 1 {
		q.Limit = 1
	}
	if q.Limit > h.maxEntries {
		q.Limit = h.maxEntries
	}
	if q.Offset < 0 {
		q.Offset = 0
	}

	data, err := h.board.Get(r.Context(), q)
	if err != nil {
		if errors.Is(err, leaderboard.ErrInvalidRange) {
			writeError(w, http.StatusBadRequest, "invalid limit/offset")
			return
		}
		if errors.Is(err, context.Canceled) {
			// Client went away; nothing sensible to write.
			return
		}
		writeError(w, http.StatusInternalServerError, "leaderboard unavailable")
		return
	}

	if data.Stale {
		writeOKMsg(w, "stale", data)
		return
	}
	writeOK(w, data)
}

func (h *routerHandlers) handlePlayerStats(w http.ResponseWriter, r *http.Request) {
	uid := r.URL.Query().Get("uid")
	if uid == "" {
		writeError(w, http.StatusBadRequest, "missing uid parameter")
		return
	}

	entry, found, err := h.stats.PlayerEntry(r.Context(), uid)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "stats unavailable")
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "player not found")
		return
	}
	writeOK(w, entry)
}
