// Package config provides centralized configuration management.
// This is the SINGLE SOURCE OF TRUTH for all game and server settings.
//
// IMPORTANT: When changing values, only modify this file.
// All other parts of the codebase should reference these values.
package config

import (
	"os"
	"strconv"
)

// =============================================================================
// GAME CONFIGURATION
// =============================================================================

// GameConfig holds the map and round settings the physics engine runs with.
// These values are echoed to clients through the status endpoint so they can
// size their canvas and schedule polling.
type GameConfig struct {
	MapWidth           int // Grid width in cells
	MapHeight          int // Grid height in cells
	RoundTimeMs        int // Milliseconds per round
	InitialSnakeLength int // Body blocks a snake spawns with
	InvincibleRounds   int // Rounds a fresh snake cannot be killed
	FoodDensity        float64
}

// DefaultGame returns the default game configuration.
func DefaultGame() GameConfig {
	return GameConfig{
		MapWidth:           50,
		MapHeight:          50,
		RoundTimeMs:        1000,
		InitialSnakeLength: 3,
		InvincibleRounds:   5,
		FoodDensity:        0.05,
	}
}

// GameFromEnv returns game configuration with environment variable overrides.
// Environment variables take precedence over defaults.
func GameFromEnv() GameConfig {
	cfg := DefaultGame()

	if w := getEnvInt("MAP_WIDTH", 0); w > 0 {
		cfg.MapWidth = w
	}
	if h := getEnvInt("MAP_HEIGHT", 0); h > 0 {
		cfg.MapHeight = h
	}
	if rt := getEnvInt("ROUND_TIME_MS", 0); rt > 0 {
		cfg.RoundTimeMs = rt
	}
	if l := getEnvInt("INITIAL_SNAKE_LENGTH", 0); l > 0 {
		cfg.InitialSnakeLength = l
	}
	if r := getEnvInt("INVINCIBLE_ROUNDS", -1); r >= 0 {
		cfg.InvincibleRounds = r
	}
	if d := getEnvFloat("FOOD_DENSITY", 0); d > 0 {
		cfg.FoodDensity = d
	}

	return cfg
}

// =============================================================================
// LEADERBOARD CONFIGURATION
// =============================================================================

// LeaderboardConfig controls ranking refresh cadence and cache staleness.
type LeaderboardConfig struct {
	RefreshIntervalRounds int // Rounds between cache invalidations
	MaxEntries            int // Upper bound on a single page size
	CacheTTLSeconds       int // Seconds a cached ranking stays fresh
	ReadTimeoutMs         int // Bound on a counters read before fallback
}

// DefaultLeaderboard returns the default leaderboard configuration.
func DefaultLeaderboard() LeaderboardConfig {
	return LeaderboardConfig{
		RefreshIntervalRounds: 5,
		MaxEntries:            200,
		CacheTTLSeconds:       5,
		ReadTimeoutMs:         2000,
	}
}

// LeaderboardFromEnv returns leaderboard configuration with environment
// variable overrides.
func LeaderboardFromEnv() LeaderboardConfig {
	cfg := DefaultLeaderboard()

	if v := getEnvInt("LEADERBOARD_REFRESH_ROUNDS", 0); v > 0 {
		cfg.RefreshIntervalRounds = v
	}
	if v := getEnvInt("LEADERBOARD_MAX_ENTRIES", 0); v > 0 {
		cfg.MaxEntries = v
	}
	if v := getEnvInt("LEADERBOARD_CACHE_TTL_SECONDS", 0); v > 0 {
		cfg.CacheTTLSeconds = v
	}
	if v := getEnvInt("LEADERBOARD_READ_TIMEOUT_MS", 0); v > 0 {
		cfg.ReadTimeoutMs = v
	}

	return cfg
}

// =============================================================================
// SERVER CONFIGURATION
// =============================================================================

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port        int
	BindAddress string
}

// DefaultServer returns the default server configuration.
func DefaultServer() ServerConfig {
	return ServerConfig{
		Port:        18080,
		BindAddress: "0.0.0.0",
	}
}

// ServerFromEnv returns server configuration with environment variable
// overrides.
func ServerFromEnv() ServerConfig {
	cfg := DefaultServer()

	if p := getEnvInt("PORT", 0); p > 0 {
		cfg.Port = p
	}
	if addr := os.Getenv("BIND_ADDRESS"); addr != "" {
		cfg.BindAddress = addr
	}

	return cfg
}

// =============================================================================
// DATABASE CONFIGURATION
// =============================================================================

// DatabaseConfig locates the leaderboard counters store.
type DatabaseConfig struct {
	Path     string // SQLite file path, parent dir created on open
	SeasonID string // Scope for counter rows, "all_time" by default
}

// DefaultDatabase returns the default database configuration.
func DefaultDatabase() DatabaseConfig {
	return DatabaseConfig{
		Path:     "./data/snake.db",
		SeasonID: "all_time",
	}
}

// DatabaseFromEnv returns database configuration with environment variable
// overrides.
func DatabaseFromEnv() DatabaseConfig {
	cfg := DefaultDatabase()

	if p := os.Getenv("DATABASE_PATH"); p != "" {
		cfg.Path = p
	}
	if s := os.Getenv("SEASON_ID"); s != "" {
		cfg.SeasonID = s
	}

	return cfg
}

// =============================================================================
// RATE LIMIT CONFIGURATION
// =============================================================================

// RateLimitConfig throttles public endpoints per source IP.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// DefaultRateLimit returns the default rate limit configuration.
func DefaultRateLimit() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 10,
		Burst:             20,
	}
}

// RateLimitFromEnv returns rate limit configuration with environment variable
// overrides.
func RateLimitFromEnv() RateLimitConfig {
	cfg := DefaultRateLimit()

	if v := getEnvFloat("RATE_LIMIT_RPS", 0); v > 0 {
		cfg.RequestsPerSecond = v
	}
	if v := getEnvInt("RATE_LIMIT_BURST", 0); v > 0 {
		cfg.Burst = v
	}

	return cfg
}

// =============================================================================
// AGGREGATE CONFIGURATION
// =============================================================================

// AppConfig is the complete application configuration.
type AppConfig struct {
	Game        GameConfig
	Leaderboard LeaderboardConfig
	Server      ServerConfig
	Database    DatabaseConfig
	RateLimit   RateLimitConfig
}

// Load returns the complete application configuration with environment
// variable overrides applied.
func Load() AppConfig {
	return AppConfig{
		Game:        GameFromEnv(),
		Leaderboard: LeaderboardFromEnv(),
		Server:      ServerFromEnv(),
		Database:    DatabaseFromEnv(),
		RateLimit:   RateLimitFromEnv(),
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
