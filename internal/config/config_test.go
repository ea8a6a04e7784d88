package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected defaults to load, got %v", err)
	}
	//1.- Spot-check the battlefield and pacing defaults.
	if cfg.ArenaWidth != DefaultArenaWidth || cfg.ArenaHeight != DefaultArenaHeight {
		t.Fatalf("unexpected arena defaults: %dx%d", cfg.ArenaWidth, cfg.ArenaHeight)
	}
	if cfg.TankCount != DefaultTankCount || cfg.Difficulty != DefaultDifficulty {
		t.Fatalf("unexpected match defaults: %d tanks, tier %d", cfg.TankCount, cfg.Difficulty)
	}
	if cfg.TickInterval != DefaultTickInterval {
		t.Fatalf("unexpected tick interval %v", cfg.TickInterval)
	}
	//2.- The terrain seed is absent unless explicitly provided.
	if cfg.TerrainSeed != nil {
		t.Fatalf("expected no terrain seed by default")
	}
	if cfg.Logging.Level != DefaultLogLevel || cfg.Logging.Path != DefaultLogPath {
		t.Fatalf("unexpected logging defaults: %+v", cfg.Logging)
	}
}

func TestLoadAppliesOverrides(t *testing.T) {
	t.Setenv("STEELRAIN_ARENA_WIDTH", "1200")
	t.Setenv("STEELRAIN_ROUGHNESS", "0.8")
	t.Setenv("STEELRAIN_TERRAIN_SEED", "-42")
	t.Setenv("STEELRAIN_TANK_COUNT", "6")
	t.Setenv("STEELRAIN_DIFFICULTY", "4")
	t.Setenv("STEELRAIN_TICK_INTERVAL", "20ms")
	t.Setenv("STEELRAIN_SPECTATOR_ADDR", ":9000")
	t.Setenv("STEELRAIN_LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected overrides to load, got %v", err)
	}
	if cfg.ArenaWidth != 1200 || cfg.Roughness != 0.8 {
		t.Fatalf("terrain overrides not applied: %+v", cfg)
	}
	if cfg.TerrainSeed == nil || *cfg.TerrainSeed != -42 {
		t.Fatalf("terrain seed override not applied")
	}
	if cfg.TankCount != 6 || cfg.Difficulty != 4 {
		t.Fatalf("match overrides not applied: %+v", cfg)
	}
	if cfg.TickInterval != 20*time.Millisecond {
		t.Fatalf("tick interval override not applied: %v", cfg.TickInterval)
	}
	if cfg.SpectatorAddr != ":9000" || cfg.Logging.Level != "debug" {
		t.Fatalf("service overrides not applied: %+v", cfg)
	}
}

func TestLoadAggregatesProblems(t *testing.T) {
	t.Setenv("STEELRAIN_ARENA_WIDTH", "1")
	t.Setenv("STEELRAIN_ROUGHNESS", "2.5")
	t.Setenv("STEELRAIN_DIFFICULTY", "9")
	t.Setenv("STEELRAIN_TICK_INTERVAL", "soon")

	_, err := Load()
	if err == nil {
		t.Fatalf("expected invalid overrides to fail")
	}
	//1.- Every invalid variable is reported in a single aggregated error.
	message := err.Error()
	for _, key := range []string{
		"STEELRAIN_ARENA_WIDTH",
		"STEELRAIN_ROUGHNESS",
		"STEELRAIN_DIFFICULTY",
		"STEELRAIN_TICK_INTERVAL",
	} {
		if !strings.Contains(message, key) {
			t.Fatalf("error missing %s: %s", key, message)
		}
	}
}

func TestLoadRejectsBadNumbers(t *testing.T) {
	t.Setenv("STEELRAIN_TANK_COUNT", "one")
	if _, err := Load(); err == nil {
		t.Fatalf("expected non-numeric tank count to fail")
	}
}
