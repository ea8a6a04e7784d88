package simulation

import (
	"context"
	"encoding/json"
	"math"
	"math/rand"
	"testing"

	"steelrain/sim/internal/ai"
	"steelrain/sim/internal/config"
	"steelrain/sim/internal/events"
	"steelrain/sim/internal/logging"
	"steelrain/sim/internal/physics"
	"steelrain/sim/internal/replay"
	"steelrain/sim/internal/session"
	"steelrain/sim/internal/tank"
	"steelrain/sim/internal/weapons"
)

func testConfig(tanks, rounds int) *config.Config {
	seed := int64(99)
	return &config.Config{
		ArenaWidth:      800,
		ArenaHeight:     600,
		Roughness:       0.5,
		TerrainSeed:     &seed,
		TankCount:       tanks,
		Difficulty:      2,
		Rounds:          rounds,
		StartingBalance: 1000,
		MaxWind:         0,
		AnimationSpeed:  4,
	}
}

func newTestMatch(t *testing.T, cfg *config.Config, journal *replay.Journal) (*Match, *events.Stream, *session.Session) {
	t.Helper()
	sess, err := session.NewSession(
		session.WithEnvLookup(func(string) string { return "" }),
		session.WithMatchID("test-duel"),
		session.WithCapacity(session.Capacity{MinTanks: 2, MaxTanks: cfg.TankCount}),
		session.WithStartingBalance(cfg.StartingBalance),
	)
	if err != nil {
		t.Fatalf("session construction failed: %v", err)
	}
	stream := events.NewStream(events.Config{Retain: 4096})
	engine := ai.NewEngine(rand.New(rand.NewSource(7)), logging.NewTestLogger())
	match, err := NewMatch(cfg, sess, stream, journal, engine, rand.New(rand.NewSource(7)), logging.NewTestLogger())
	if err != nil {
		t.Fatalf("match construction failed: %v", err)
	}
	return match, stream, sess
}

func TestNewMatchValidatesInputs(t *testing.T) {
	cfg := testConfig(2, 1)
	//1.- A one-tank duel is not a duel.
	cfg.TankCount = 1
	if _, _, err := func() (*Match, *events.Stream, error) {
		sess, _ := session.NewSession(session.WithEnvLookup(func(string) string { return "" }))
		stream := events.NewStream(events.Config{})
		engine := ai.NewEngine(rand.New(rand.NewSource(1)), logging.NewTestLogger())
		m, err := NewMatch(cfg, sess, stream, nil, engine, nil, logging.NewTestLogger())
		return m, stream, err
	}(); err == nil {
		t.Fatalf("expected single-tank match to fail")
	}
	if _, err := NewMatch(nil, nil, nil, nil, nil, nil, nil); err == nil {
		t.Fatalf("expected nil config to fail")
	}
}

func TestStartRoundPlacesRoster(t *testing.T) {
	cfg := testConfig(4, 1)
	match, _, sess := newTestMatch(t, cfg, nil)
	if err := match.StartRound(1); err != nil {
		t.Fatalf("start round failed: %v", err)
	}

	roster := match.Tanks().Snapshot()
	if len(roster) != 4 {
		t.Fatalf("expected 4 tanks, got %d", len(roster))
	}
	width := float64(cfg.ArenaWidth)
	for _, state := range roster {
		//1.- Every tank spawns alive, fuelled and inside the arena.
		if !state.Alive || state.Health != tank.MaxHealth || state.Fuel != tank.MaxFuel {
			t.Fatalf("bad spawn state: %+v", state)
		}
		if state.X < 0 || state.X > width {
			t.Fatalf("tank outside arena: %+v", state)
		}
		//2.- The hull anchor rests just below the terrain surface sample.
		surface, ok := match.Terrain().InterpolatedHeightAt(state.X)
		if !ok || math.Abs(state.Y-(surface+tankAnchorDepth)) > 1e-9 {
			t.Fatalf("tank not anchored to terrain: %+v", state)
		}
	}
	//3.- Wind stays inside the configured bound and the session tracks it.
	if w := sess.Wind(); math.Abs(w) > cfg.MaxWind {
		t.Fatalf("wind %v outside bound", w)
	}
	if sess.Round() != 1 {
		t.Fatalf("session round not advanced")
	}
}

func TestPlayTurnFiresAndPublishes(t *testing.T) {
	cfg := testConfig(2, 1)
	match, stream, _ := newTestMatch(t, cfg, nil)
	sub, err := stream.Subscribe(context.Background(), "observer", 256)
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	defer sub.Close()

	if err := match.StartRound(1); err != nil {
		t.Fatalf("start round failed: %v", err)
	}
	if _, _, err := match.PlayTurn("tank-1"); err != nil {
		t.Fatalf("turn failed: %v", err)
	}

	//1.- The stream carries the round start, then the shot, then any results.
	first := <-sub.Events()
	if first.Kind != events.KindLifecycle || first.Lifecycle.Phase != events.PhaseRoundStarted {
		t.Fatalf("expected round start, got %+v", first)
	}
	sawShot := false
	for i := 0; i < 8 && !sawShot; i++ {
		select {
		case env := <-sub.Events():
			if env.Kind == events.KindShot {
				if env.Shot.Shooter != "tank-1" || env.Shot.WeaponID == "" {
					t.Fatalf("malformed shot event: %+v", env.Shot)
				}
				sawShot = true
			}
		default:
			i = 8
		}
	}
	if !sawShot {
		t.Fatalf("no shot event published")
	}
}

func TestApplyBlastDamagesAndDestroys(t *testing.T) {
	cfg := testConfig(2, 1)
	match, _, _ := newTestMatch(t, cfg, nil)
	if err := match.StartRound(1); err != nil {
		t.Fatalf("start round failed: %v", err)
	}
	victim, _ := match.Tanks().Get("tank-2")
	heavy, err := weapons.Resolve("heavy")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	//1.- A direct hit applies full damage.
	report := match.applyBlast("tank-1", heavy, physics.Point{X: victim.X, Y: victim.Y})
	if len(report.Victims) != 1 || report.Victims[0].TankID != "tank-2" {
		t.Fatalf("unexpected blast report: %+v", report)
	}
	if report.Victims[0].Amount != heavy.Damage {
		t.Fatalf("direct hit dealt %v, want %v", report.Victims[0].Amount, heavy.Damage)
	}
	//2.- A second direct hit finishes the tank.
	report = match.applyBlast("tank-1", heavy, physics.Point{X: victim.X, Y: victim.Y})
	if !report.Victims[0].Destroyed {
		t.Fatalf("tank survived two direct heavy hits")
	}
	updated, _ := match.Tanks().Get("tank-2")
	if updated.Alive || updated.Health != 0 {
		t.Fatalf("store not updated after destruction: %+v", updated)
	}
	//3.- Dead tanks take no further damage.
	report = match.applyBlast("tank-1", heavy, physics.Point{X: victim.X, Y: victim.Y})
	if len(report.Victims) != 0 {
		t.Fatalf("dead tank damaged again: %+v", report)
	}
}

func TestMatchRunFinishesAndSettles(t *testing.T) {
	cfg := testConfig(2, 2)
	match, stream, sess := newTestMatch(t, cfg, nil)
	sub, err := stream.Subscribe(context.Background(), "observer", 4096)
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	defer sub.Close()

	winner, err := match.Run()
	if err != nil {
		t.Fatalf("match run failed: %v", err)
	}
	if winner != "" && winner != "tank-1" && winner != "tank-2" {
		t.Fatalf("impossible winner %q", winner)
	}

	//1.- The stream terminates with a match end carrying the same winner.
	var last *events.Envelope
	for {
		select {
		case env := <-sub.Events():
			last = env
			continue
		default:
		}
		break
	}
	if last == nil || last.Kind != events.KindLifecycle || last.Lifecycle.Phase != events.PhaseMatchEnded {
		t.Fatalf("missing match end event: %+v", last)
	}
	if last.Lifecycle.WinnerID != winner {
		t.Fatalf("winner mismatch: %q vs %q", last.Lifecycle.WinnerID, winner)
	}
	//2.- Round awards landed in the economy when somebody won a round.
	total := 0
	for _, id := range []string{"tank-1", "tank-2"} {
		balance, ok := sess.Balance(id)
		if !ok {
			t.Fatalf("missing balance for %s", id)
		}
		total += balance
	}
	if total < 0 {
		t.Fatalf("economy went negative: %d", total)
	}
}

func TestMatchRunWritesJournal(t *testing.T) {
	cfg := testConfig(2, 1)
	journal, _, err := replay.NewJournal(t.TempDir(), "journal-duel", nil)
	if err != nil {
		t.Fatalf("journal creation failed: %v", err)
	}
	journal.SetHeaderMetadata("99", cfg.Rounds, cfg.Difficulty, replay.TerrainParameters{
		"width":     float64(cfg.ArenaWidth),
		"roughness": cfg.Roughness,
	})
	match, _, _ := newTestMatch(t, cfg, journal)

	if _, err := match.Run(); err != nil {
		t.Fatalf("match run failed: %v", err)
	}
	if err := journal.Close(); err != nil {
		t.Fatalf("journal close failed: %v", err)
	}

	bundle, err := replay.OpenBundle(journal.Directory())
	if err != nil {
		t.Fatalf("open bundle failed: %v", err)
	}
	recorded, err := bundle.Events()
	if err != nil {
		t.Fatalf("decode events failed: %v", err)
	}
	//1.- The journal brackets the round with lifecycle markers and carries shots.
	kinds := map[string]bool{}
	for _, event := range recorded {
		kinds[event.Type] = true
	}
	for _, required := range []string{"round_started", "shot_fired", "round_ended", "match_ended"} {
		if !kinds[required] {
			t.Fatalf("journal missing %q events: %v", required, kinds)
		}
	}
	//2.- Battlefield snapshots decode back into tank states.
	snapshots, err := bundle.Snapshots()
	if err != nil {
		t.Fatalf("decode snapshots failed: %v", err)
	}
	if len(snapshots) == 0 {
		t.Fatalf("no snapshots journaled")
	}
	var roster []tank.State
	if err := json.Unmarshal(snapshots[0].Payload, &roster); err != nil {
		t.Fatalf("snapshot payload not a roster: %v", err)
	}
	if len(roster) != cfg.TankCount {
		t.Fatalf("snapshot roster has %d tanks", len(roster))
	}
}
