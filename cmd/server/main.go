package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/xk2013awa/CodingSnake/internal/api"
	"github.com/xk2013awa/CodingSnake/internal/config"
	"github.com/xk2013awa/CodingSnake/internal/game"
	"github.com/xk2013awa/CodingSnake/internal/leaderboard"

	"github.com/joho/godotenv"
)

func main() {
	// Load .env file from parent directory
	if err := godotenv.Load("../.env"); err != nil {
		// Try current directory as fallback
		if err := godotenv.Load(".env"); err != nil {
			log.Println("💡 No .env file found, using environment variables only")
		}
	} else {
		log.Println("✅ Loaded environment from ../.env")
	}

	log.Println("🐍 ================================")
	log.Println("🐍  CODING SNAKE - SYNC SERVER")
	log.Println("🐍  Delta Sync + Leaderboard")
	log.Println("🐍 ================================")

	// Load centralized configuration (SSOT - Single Source of Truth)
	appConfig := config.Load()
	gameCfg := appConfig.Game
	boardCfg := appConfig.Leaderboard
	serverCfg := appConfig.Server
	dbCfg := appConfig.Database
	rlCfg := appConfig.RateLimit

	log.Printf("🗺️  Map: %dx%d, round time %dms", gameCfg.MapWidth, gameCfg.MapHeight, gameCfg.RoundTimeMs)
	log.Printf("🏆 Leaderboard: refresh every %d rounds, TTL %ds, max %d entries",
		boardCfg.RefreshIntervalRounds, boardCfg.CacheTTLSeconds, boardCfg.MaxEntries)

	// Counters store (SQLite). Parent directory is created on open.
	store, err := leaderboard.OpenStore(dbCfg.Path, dbCfg.SeasonID)
	if err != nil {
		log.Fatalf("❌ Failed to open leaderboard store: %v", err)
	}
	defer store.Close()
	log.Printf("💾 Leaderboard store ready at %s (season %q)", dbCfg.Path, dbCfg.SeasonID)

	// Ranking pipeline: aggregator derives metrics, cache bounds staleness.
	agg := leaderboard.NewAggregator(gameCfg.InitialSnakeLength)
	cache := leaderboard.NewCache(store, agg, leaderboard.CacheConfig{
		TTL:                   time.Duration(boardCfg.CacheTTLSeconds) * time.Second,
		ReadTimeout:           time.Duration(boardCfg.ReadTimeoutMs) * time.Millisecond,
		RefreshIntervalRounds: boardCfg.RefreshIntervalRounds,
		Hooks: leaderboard.CacheHooks{
			Hit:       api.RecordCacheHit,
			Miss:      api.RecordCacheMiss,
			Recompute: api.RecordCacheRecompute,
		},
	})

	// Sync dispatcher: rotates snapshots, computes deltas, feeds counters.
	snapshots := game.NewSnapshotStore()
	dispatcher := game.NewDispatcher(snapshots, game.DispatcherConfig{
		RefreshIntervalRounds: boardCfg.RefreshIntervalRounds,
		Cache:                 cache,
		Stats:                 store,
	})

	server := api.NewServer(api.RouterConfig{
		State: dispatcher,
		Board: cache,
		Stats: leaderboard.NewPlayerLookup(store, agg),
		Status: api.StatusInfo{
			MapWidth:    gameCfg.MapWidth,
			MapHeight:   gameCfg.MapHeight,
			RoundTimeMs: gameCfg.RoundTimeMs,
		},
		MaxEntries: boardCfg.MaxEntries,
		RateLimitConfig: &api.RateLimitConfig{
			RequestsPerSecond: rlCfg.RequestsPerSecond,
			Burst:             rlCfg.Burst,
			CleanupInterval:   5 * time.Minute,
		},
	})

	// Every round fans out to metrics and connected WebSocket clients.
	dispatcher.OnRound(api.ObserveRound)
	dispatcher.OnRound(server.Hub().BroadcastRound)

	addr := fmt.Sprintf("%s:%d", serverCfg.BindAddress, serverCfg.Port)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(addr)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("🛑 Received %v, shutting down", sig)
	case err := <-errCh:
		log.Printf("❌ Server error: %v", err)
	}

	server.Stop()
	log.Println("👋 Shutdown complete")
}
