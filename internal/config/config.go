package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultArenaWidth is the battlefield width in world units.
	DefaultArenaWidth = 800
	// DefaultArenaHeight is the battlefield height in world units.
	DefaultArenaHeight = 600
	// DefaultRoughness controls midpoint-displacement jaggedness in [0,1].
	DefaultRoughness = 0.55
	// DefaultTankCount is the number of combatants fielded per match.
	DefaultTankCount = 4
	// DefaultDifficulty selects the computer players' skill tier.
	DefaultDifficulty = 2
	// DefaultRounds is the number of rounds played per match.
	DefaultRounds = 3
	// DefaultStartingBalance is each combatant's opening credit balance.
	DefaultStartingBalance = 1000
	// DefaultMaxWind bounds the per-round horizontal wind magnitude.
	DefaultMaxWind = 40.0
	// DefaultAnimationSpeed scales wall-clock time into physics time.
	DefaultAnimationSpeed = 1.0
	// DefaultTickInterval is the fixed simulation step cadence.
	DefaultTickInterval = 16 * time.Millisecond

	// DefaultSpectatorAddr is the TCP address the spectator feed listens on.
	DefaultSpectatorAddr = ":43180"
	// DefaultReplayDir is where match journals are written.
	DefaultReplayDir = "replays"
	// DefaultReplayRetention limits how many finished journals are kept.
	DefaultReplayRetention = 20

	// DefaultLogLevel controls verbosity for simulation logs.
	DefaultLogLevel = "info"
	// DefaultLogPath is where structured logs are written.
	DefaultLogPath = "simcore.log"
	// DefaultLogMaxSizeMB caps the size of a single log file before rotation.
	DefaultLogMaxSizeMB = 50
	// DefaultLogMaxBackups limits retained rotated log files.
	DefaultLogMaxBackups = 5
	// DefaultLogCompress toggles gzip compression for rotated log files.
	DefaultLogCompress = true
)

// Config captures all runtime tunables for the simulation service.
type Config struct {
	ArenaWidth      int
	ArenaHeight     int
	Roughness       float64
	TerrainSeed     *int64
	TankCount       int
	Difficulty      int
	Rounds          int
	StartingBalance int
	MaxWind         float64
	AnimationSpeed  float64
	TickInterval    time.Duration
	SpectatorAddr   string
	ReplayDir       string
	ReplayRetention int
	Logging         LoggingConfig
}

// LoggingConfig captures structured logging configuration options.
type LoggingConfig struct {
	Level      string
	Path       string
	MaxSizeMB  int
	MaxBackups int
	Compress   bool
}

// Load reads the simulation configuration from environment variables, applying
// sane defaults and returning descriptive errors for invalid overrides.
func Load() (*Config, error) {
	cfg := &Config{
		ArenaWidth:      DefaultArenaWidth,
		ArenaHeight:     DefaultArenaHeight,
		Roughness:       DefaultRoughness,
		TankCount:       DefaultTankCount,
		Difficulty:      DefaultDifficulty,
		Rounds:          DefaultRounds,
		StartingBalance: DefaultStartingBalance,
		MaxWind:         DefaultMaxWind,
		AnimationSpeed:  DefaultAnimationSpeed,
		TickInterval:    DefaultTickInterval,
		SpectatorAddr:   getString("STEELRAIN_SPECTATOR_ADDR", DefaultSpectatorAddr),
		ReplayDir:       getString("STEELRAIN_REPLAY_DIR", DefaultReplayDir),
		ReplayRetention: DefaultReplayRetention,
		Logging: LoggingConfig{
			Level:      strings.TrimSpace(getString("STEELRAIN_LOG_LEVEL", DefaultLogLevel)),
			Path:       strings.TrimSpace(getString("STEELRAIN_LOG_PATH", DefaultLogPath)),
			MaxSizeMB:  DefaultLogMaxSizeMB,
			MaxBackups: DefaultLogMaxBackups,
			Compress:   DefaultLogCompress,
		},
	}

	var problems []string

	if raw := strings.TrimSpace(os.Getenv("STEELRAIN_ARENA_WIDTH")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 2 {
			problems = append(problems, fmt.Sprintf("STEELRAIN_ARENA_WIDTH must be an integer of at least 2, got %q", raw))
		} else {
			cfg.ArenaWidth = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("STEELRAIN_ARENA_HEIGHT")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("STEELRAIN_ARENA_HEIGHT must be a positive integer, got %q", raw))
		} else {
			cfg.ArenaHeight = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("STEELRAIN_ROUGHNESS")); raw != "" {
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil || value < 0 || value > 1 {
			problems = append(problems, fmt.Sprintf("STEELRAIN_ROUGHNESS must be a number in [0,1], got %q", raw))
		} else {
			cfg.Roughness = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("STEELRAIN_TERRAIN_SEED")); raw != "" {
		value, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			problems = append(problems, fmt.Sprintf("STEELRAIN_TERRAIN_SEED must be a 64-bit integer, got %q", raw))
		} else {
			cfg.TerrainSeed = &value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("STEELRAIN_TANK_COUNT")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 2 {
			problems = append(problems, fmt.Sprintf("STEELRAIN_TANK_COUNT must be an integer of at least 2, got %q", raw))
		} else {
			cfg.TankCount = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("STEELRAIN_DIFFICULTY")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 || value > 4 {
			problems = append(problems, fmt.Sprintf("STEELRAIN_DIFFICULTY must be an integer in [0,4], got %q", raw))
		} else {
			cfg.Difficulty = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("STEELRAIN_ROUNDS")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("STEELRAIN_ROUNDS must be a positive integer, got %q", raw))
		} else {
			cfg.Rounds = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("STEELRAIN_STARTING_BALANCE")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			problems = append(problems, fmt.Sprintf("STEELRAIN_STARTING_BALANCE must be a non-negative integer, got %q", raw))
		} else {
			cfg.StartingBalance = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("STEELRAIN_MAX_WIND")); raw != "" {
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil || value < 0 {
			problems = append(problems, fmt.Sprintf("STEELRAIN_MAX_WIND must be a non-negative number, got %q", raw))
		} else {
			cfg.MaxWind = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("STEELRAIN_ANIMATION_SPEED")); raw != "" {
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("STEELRAIN_ANIMATION_SPEED must be a positive number, got %q", raw))
		} else {
			cfg.AnimationSpeed = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("STEELRAIN_TICK_INTERVAL")); raw != "" {
		duration, err := time.ParseDuration(raw)
		if err != nil || duration <= 0 {
			problems = append(problems, fmt.Sprintf("STEELRAIN_TICK_INTERVAL must be a positive duration, got %q", raw))
		} else {
			cfg.TickInterval = duration
		}
	}

	if raw := strings.TrimSpace(os.Getenv("STEELRAIN_REPLAY_RETENTION")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			problems = append(problems, fmt.Sprintf("STEELRAIN_REPLAY_RETENTION must be a non-negative integer, got %q", raw))
		} else {
			cfg.ReplayRetention = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("STEELRAIN_LOG_MAX_SIZE_MB")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("STEELRAIN_LOG_MAX_SIZE_MB must be a positive integer, got %q", raw))
		} else {
			cfg.Logging.MaxSizeMB = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("STEELRAIN_LOG_MAX_BACKUPS")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			problems = append(problems, fmt.Sprintf("STEELRAIN_LOG_MAX_BACKUPS must be a non-negative integer, got %q", raw))
		} else {
			cfg.Logging.MaxBackups = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("STEELRAIN_LOG_COMPRESS")); raw != "" {
		value, err := strconv.ParseBool(raw)
		if err != nil {
			problems = append(problems, fmt.Sprintf("STEELRAIN_LOG_COMPRESS must be a boolean value, got %q", raw))
		} else {
			cfg.Logging.Compress = value
		}
	}

	if len(problems) > 0 {
		return nil, errors.New(strings.Join(problems, "; "))
	}

	return cfg, nil
}

func getString(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}
