package ai

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"steelrain/sim/internal/logging"
	"steelrain/sim/internal/tank"
	"steelrain/sim/internal/terrain"
	"steelrain/sim/internal/weapons"
)

func testEngine(seed int64) *Engine {
	return NewEngine(rand.New(rand.NewSource(seed)), logging.NewTestLogger())
}

func flatTerrain(t *testing.T, width int, surfaceY float64) *terrain.Terrain {
	t.Helper()
	seed := int64(1)
	terr, err := terrain.Generate(terrain.Config{
		Width: width, Height: 600, Roughness: 0.5,
		MinHeight: surfaceY, MaxHeight: surfaceY, Seed: &seed,
	})
	if err != nil {
		t.Fatalf("terrain generation failed: %v", err)
	}
	return terr
}

func mustTier(t *testing.T, level int) Tier {
	t.Helper()
	tier, err := TierAt(level)
	if err != nil {
		t.Fatalf("tier lookup failed: %v", err)
	}
	return tier
}

func TestOptimalShotLeftwardScenario(t *testing.T) {
	//1.- Flat arena, shooter on the right firing at a target far to the left.
	terr := flatTerrain(t, 800, 100)
	shooter := tank.State{ID: "s", X: 680, Y: 120, Health: 100, Alive: true}
	target := tank.State{ID: "t", X: 120, Y: 120, Health: 100, Alive: true}

	angle, power := testEngine(1).OptimalShot(shooter, target, terr, 0)
	//2.- Leftward fire maps to a positive UI angle in (0,120].
	if angle <= 0 || angle > 120 {
		t.Fatalf("UI angle %v outside (0,120]", angle)
	}
	if power < tank.MinPower || power > tank.MaxPower {
		t.Fatalf("power %v outside [10,100]", power)
	}
}

func TestOptimalShotLandsNearTarget(t *testing.T) {
	terr := flatTerrain(t, 800, 450)
	shooter := tank.State{ID: "s", X: 120, Y: 430, Health: 100, Alive: true}
	target := tank.State{ID: "t", X: 560, Y: 430, Health: 100, Alive: true}

	engine := testEngine(1)
	angle, power := engine.OptimalShot(shooter, target, terr, 0)
	//1.- Re-simulate the chosen shot and check the landing error is small.
	miss := engine.missDistance(shooter, target.X, physicsSearchAngle(angle), power, true, terr, 0)
	if miss > 15 {
		t.Fatalf("optimal shot misses by %v", miss)
	}
	//2.- Rightward fire maps to a negative UI angle.
	if angle >= 0 {
		t.Fatalf("expected a negative UI angle for rightward fire, got %v", angle)
	}
}

// physicsSearchAngle undoes the UI conversion for a rightward shot so the
// test can reuse the scoring helper.
func physicsSearchAngle(uiAngle float64) float64 {
	return uiAngle + 90
}

func TestApplyVarianceStaysWithinBounds(t *testing.T) {
	engine := testEngine(7)
	tier := mustTier(t, 0)
	base := Decision{AngleDeg: 40, Power: 60}
	for i := 0; i < 500; i++ {
		got := engine.ApplyVariance(base, tier, 0)
		//1.- Errors never exceed the configured variance bounds.
		if math.Abs(got.AngleDeg-base.AngleDeg) > tier.AngleVarianceDeg+1e-9 {
			t.Fatalf("angle error %v exceeds bound", got.AngleDeg-base.AngleDeg)
		}
		if math.Abs(got.Power-base.Power) > tier.PowerVariance+1e-9 {
			t.Fatalf("power error %v exceeds bound", got.Power-base.Power)
		}
	}
	//2.- The input decision is never mutated.
	if base.AngleDeg != 40 || base.Power != 60 {
		t.Fatalf("input decision mutated: %+v", base)
	}
}

func TestApplyVarianceClampsToLegalRanges(t *testing.T) {
	engine := testEngine(3)
	tier := mustTier(t, 0)
	//1.- A decision at the edge of the range may only move inward.
	edge := Decision{AngleDeg: 120, Power: 100}
	for i := 0; i < 200; i++ {
		got := engine.ApplyVariance(edge, tier, 0)
		if got.AngleDeg > tank.MaxAngleDeg || got.AngleDeg < tank.MinAngleDeg {
			t.Fatalf("angle %v escaped the UI range", got.AngleDeg)
		}
		if got.Power > tank.MaxPower || got.Power < tank.MinPower {
			t.Fatalf("power %v escaped the legal range", got.Power)
		}
	}
}

func sampleAngleSD(t *testing.T, engine *Engine, tier Tier, shots, trials int) float64 {
	t.Helper()
	base := Decision{AngleDeg: 0, Power: 55}
	sum, sumSq := 0.0, 0.0
	for i := 0; i < trials; i++ {
		got := engine.ApplyVariance(base, tier, shots)
		err := got.AngleDeg - base.AngleDeg
		sum += err
		sumSq += err * err
	}
	mean := sum / float64(trials)
	return math.Sqrt(sumSq/float64(trials) - mean*mean)
}

func TestVarianceShrinksWithDifficultyAndBracketing(t *testing.T) {
	engine := testEngine(11)
	const trials = 2000
	//1.- Standard deviation strictly decreases as difficulty increases.
	previous := math.MaxFloat64
	for level := 0; level < 5; level++ {
		sd := sampleAngleSD(t, engine, mustTier(t, level), 0, trials)
		if sd >= previous {
			t.Fatalf("variance did not shrink at level %d: %v >= %v", level, sd, previous)
		}
		previous = sd
	}
	//2.- Consecutive shots at the same target zero in.
	tier := mustTier(t, 1)
	sd0 := sampleAngleSD(t, engine, tier, 0, trials)
	sd2 := sampleAngleSD(t, engine, tier, 2, trials)
	sd4 := sampleAngleSD(t, engine, tier, 4, trials)
	if !(sd0 > sd2 && sd2 > sd4) {
		t.Fatalf("bracketing not monotonic: %v, %v, %v", sd0, sd2, sd4)
	}
	//3.- Reduction is capped so the AI never becomes perfectly accurate.
	sd5 := sampleAngleSD(t, engine, tier, 5, trials)
	sd50 := sampleAngleSD(t, engine, tier, 50, trials)
	if sd5 <= 0 || sd50 <= 0 {
		t.Fatalf("variance collapsed to zero: %v, %v", sd5, sd50)
	}
	if math.Abs(sd5-sd50)/sd5 > 0.2 {
		t.Fatalf("cap not applied: %v vs %v", sd5, sd50)
	}
}

func TestEnsureSafeShotSubstitutesAlternative(t *testing.T) {
	terr := flatTerrain(t, 800, 450)
	shooter := tank.State{ID: "s", X: 400, Y: 430, Health: 100, Alive: true}
	dart, err := weapons.Resolve("dart")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	engine := testEngine(5)
	//1.- A near-vertical minimum-power lob lands on the shooter's own head.
	suicidal := Decision{AngleDeg: 0, Power: 10}
	if engine.isSafe(shooter, suicidal, dart, terr, 0) {
		t.Fatalf("test premise broken: lob should be unsafe")
	}
	got := engine.EnsureSafeShot(shooter, suicidal, dart, terr, 0)
	//2.- The substituted shot differs from the original and clears the blast zone.
	if got == suicidal {
		t.Fatalf("no alternative substituted")
	}
	if !engine.isSafe(shooter, got, dart, terr, 0) {
		t.Fatalf("substituted shot is still unsafe: %+v", got)
	}
}

func TestEnsureSafeShotFiresAnywayWhenTrapped(t *testing.T) {
	terr := flatTerrain(t, 800, 450)
	shooter := tank.State{ID: "s", X: 400, Y: 430, Health: 100, Alive: true}
	//1.- The heavy shell's huge blast radius defeats every delta in the list.
	heavy, err := weapons.Resolve("heavy")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	engine := testEngine(5)
	suicidal := Decision{AngleDeg: 0, Power: 10}
	got := engine.EnsureSafeShot(shooter, suicidal, heavy, terr, 0)
	//2.- Policy: with no safe alternative the original shot is fired anyway.
	if got != suicidal {
		if engine.isSafe(shooter, got, heavy, terr, 0) {
			return
		}
		t.Fatalf("substituted an unsafe alternative: %+v", got)
	}
}

func TestDecideFullTurn(t *testing.T) {
	terr := flatTerrain(t, 800, 450)
	session := NewSessionState()
	engine := testEngine(9)
	tier := mustTier(t, 3)
	shooter := tank.State{ID: "s", X: 120, Y: 430, Health: 100, Alive: true}
	tanks := []tank.State{
		shooter,
		{ID: "a", X: 560, Y: 430, Health: 90, Alive: true},
		{ID: "b", X: 700, Y: 430, Health: 60, Alive: true},
	}

	decision, ok := engine.Decide(shooter, tanks, terr, 2.0, tier, session, nil)
	if !ok {
		t.Fatalf("expected a decision")
	}
	//1.- The decision carries a live target, legal aim values and a weapon.
	if decision.TargetID != "a" && decision.TargetID != "b" {
		t.Fatalf("unexpected target %q", decision.TargetID)
	}
	if decision.Power < tank.MinPower || decision.Power > tank.MaxPower {
		t.Fatalf("power %v out of range", decision.Power)
	}
	if decision.WeaponID == "" {
		t.Fatalf("weapon missing")
	}
	//2.- Thinking time is advisory and drawn from the tier's bounds.
	if decision.ThinkingTime < time.Duration(tier.ThinkingMsMin)*time.Millisecond ||
		decision.ThinkingTime > time.Duration(tier.ThinkingMsMax)*time.Millisecond {
		t.Fatalf("thinking time %v outside tier bounds", decision.ThinkingTime)
	}
	//3.- The shot was recorded for bracketing.
	if session.ConsecutiveShots(shooter.ID, decision.TargetID) != 1 {
		t.Fatalf("shot history not recorded")
	}
}

func TestDecideWithNoLivingTargets(t *testing.T) {
	terr := flatTerrain(t, 800, 450)
	engine := testEngine(2)
	shooter := tank.State{ID: "s", X: 120, Y: 430, Health: 100, Alive: true}
	tanks := []tank.State{shooter, {ID: "a", X: 560, Y: 430, Health: 0, Alive: false}}
	//1.- An empty battlefield is a normal outcome, reported via ok=false.
	if _, ok := engine.Decide(shooter, tanks, terr, 0, mustTier(t, 0), NewSessionState(), nil); ok {
		t.Fatalf("expected no decision without living targets")
	}
}
