package ai

import (
	"math"
	"math/rand"
	"time"

	"steelrain/sim/internal/logging"
	"steelrain/sim/internal/physics"
	"steelrain/sim/internal/tank"
	"steelrain/sim/internal/terrain"
	"steelrain/sim/internal/weapons"
)

const (
	// Coarse search grid over the physics angle and power space.
	coarseAngleMin  = 20.0
	coarseAngleMax  = 70.0
	coarseAngleStep = 2.0
	coarsePowerMin  = 30.0
	coarsePowerMax  = 100.0
	coarsePowerStep = 5.0

	// Local refinement window around the coarse best.
	refineAngleWindow = 5.0
	refineAngleStep   = 1.0
	refinePowerWindow = 10.0
	refinePowerStep   = 2.0

	// Forward integration parameters for landing estimation.
	simTimeStep = 0.05
	simCutoff   = 20.0

	// Bracketing: every consecutive shot at the same target shaves 15% off
	// the variance, capped at 75% so the AI never becomes literally perfect.
	perShotReduction = 0.15
	maxReduction     = 0.75

	// safetyMargin is added to the blast radius for self-preservation checks.
	safetyMargin = 10.0
)

// Decision is the engine's answer for one turn.
type Decision struct {
	TargetID string
	// AngleDeg follows the UI convention (-120..120, 0 up).
	AngleDeg float64
	Power    float64
	WeaponID string
	// ThinkingTime is advisory pacing for the UI; the engine never sleeps.
	ThinkingTime time.Duration
}

// Engine makes shot, target, weapon and purchase decisions for computer
// players. The random source is injected so tests can be deterministic.
type Engine struct {
	rng *rand.Rand
	log *logging.Logger
}

// NewEngine constructs a decision engine around the provided random source.
// A nil rng falls back to an unseeded source for gameplay variance.
func NewEngine(rng *rand.Rand, log *logging.Logger) *Engine {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if log == nil {
		log = logging.L()
	}
	return &Engine{rng: rng, log: log}
}

// selfPreservationDeltas is the fixed list of (angle, power) adjustments
// tried, in order, when a planned shot would land inside the shooter's own
// blast zone.
var selfPreservationDeltas = [][2]float64{
	{5, 0}, {-5, 0}, {0, 10}, {10, 5}, {-10, 5},
	{5, 15}, {-5, 15}, {15, 20}, {-15, 20}, {0, -10},
}

// OptimalShot searches for the (UI angle, power) pair that lands closest to
// the target, using a coarse grid then a local refinement.
func (e *Engine) OptimalShot(shooter, target tank.State, terr *terrain.Terrain, wind float64) (float64, float64) {
	rightward := target.X >= shooter.X

	bestAngle, bestPower := coarseAngleMin, coarsePowerMin
	bestMiss := math.MaxFloat64
	evaluate := func(angle, power float64) {
		miss := e.missDistance(shooter, target.X, angle, power, rightward, terr, wind)
		if miss < bestMiss {
			bestMiss = miss
			bestAngle, bestPower = angle, power
		}
	}

	//1.- Coarse pass over the full firing envelope.
	for angle := coarseAngleMin; angle <= coarseAngleMax; angle += coarseAngleStep {
		for power := coarsePowerMin; power <= coarsePowerMax; power += coarsePowerStep {
			evaluate(angle, power)
		}
	}
	//2.- Refine around the coarse best with power clamped to the legal range.
	loAngle, hiAngle := bestAngle-refineAngleWindow, bestAngle+refineAngleWindow
	loPower := math.Max(tank.MinPower, bestPower-refinePowerWindow)
	hiPower := math.Min(tank.MaxPower, bestPower+refinePowerWindow)
	for angle := loAngle; angle <= hiAngle; angle += refineAngleStep {
		for power := loPower; power <= hiPower; power += refinePowerStep {
			evaluate(angle, power)
		}
	}

	//3.- Mirror leftward shots across 180 and convert to the UI convention.
	physAngle := bestAngle
	if !rightward {
		physAngle = 180 - bestAngle
	}
	uiAngle := clamp(physAngle-90, tank.MinAngleDeg, tank.MaxAngleDeg)
	return uiAngle, clamp(bestPower, tank.MinPower, tank.MaxPower)
}

// missDistance forward-integrates a candidate and scores its landing error.
func (e *Engine) missDistance(shooter tank.State, targetX, searchAngle, power float64, rightward bool, terr *terrain.Terrain, wind float64) float64 {
	physAngle := searchAngle
	if !rightward {
		physAngle = 180 - searchAngle
	}
	cfg := physics.LaunchConfig{
		Origin:     physics.Point{X: shooter.X, Y: shooter.Y},
		AngleDeg:   physAngle,
		Power:      power,
		ArenaWidth: arenaWidth(terr),
		Wind:       wind,
	}
	landing, ok := simulateLanding(cfg, terr)
	if !ok {
		return math.MaxFloat64
	}
	return math.Abs(landing - targetX)
}

// simulateLanding steps the arc forward until it descends into the terrain,
// returns to the launch height, or leaves the arena.
func simulateLanding(cfg physics.LaunchConfig, terr *terrain.Terrain) (float64, bool) {
	width := arenaWidth(terr)
	apex := cfg.ApexTime()
	for t := simTimeStep; t <= simCutoff; t += simTimeStep {
		pos := cfg.PositionAt(t)
		//1.- Leaving the arena sideways means the candidate cannot land at all.
		if pos.X < -1 || pos.X > width+1 {
			return pos.X, true
		}
		if t <= apex {
			continue
		}
		//2.- Past apex, a descent crossing of the surface is the landing.
		if surface, ok := terr.InterpolatedHeightAt(pos.X); ok && pos.Y >= surface {
			return pos.X, true
		}
		//3.- Outside the heightmap, falling back past the launch height counts.
		if pos.Y >= cfg.Origin.Y {
			return pos.X, true
		}
	}
	return 0, false
}

// ApplyVariance perturbs a decision by difficulty-scaled noise, reduced as
// consecutive shots bracket the target. The input decision is not mutated.
func (e *Engine) ApplyVariance(decision Decision, tier Tier, consecutiveShots int) Decision {
	reduction := math.Min(float64(consecutiveShots)*perShotReduction, maxReduction)
	scale := 1 - reduction

	result := decision
	//1.- Draw independent symmetric errors for angle and power.
	result.AngleDeg += (e.rng.Float64()*2 - 1) * tier.AngleVarianceDeg * scale
	result.Power += (e.rng.Float64()*2 - 1) * tier.PowerVariance * scale
	//2.- Clamp back into the legal UI ranges.
	result.AngleDeg = clamp(result.AngleDeg, tank.MinAngleDeg, tank.MaxAngleDeg)
	result.Power = clamp(result.Power, tank.MinPower, tank.MaxPower)
	return result
}

// EnsureSafeShot vetoes decisions that would land inside the shooter's own
// blast zone, substituting the first safe alternative from a fixed delta
// list. When nothing safe exists the original shot is fired anyway.
func (e *Engine) EnsureSafeShot(shooter tank.State, decision Decision, weapon weapons.Spec, terr *terrain.Terrain, wind float64) Decision {
	if e.isSafe(shooter, decision, weapon, terr, wind) {
		return decision
	}
	//1.- Walk the fixed adjustment list and take the first non-suicidal shot.
	for _, delta := range selfPreservationDeltas {
		candidate := decision
		candidate.AngleDeg = clamp(decision.AngleDeg+delta[0], tank.MinAngleDeg, tank.MaxAngleDeg)
		candidate.Power = clamp(decision.Power+delta[1], tank.MinPower, tank.MaxPower)
		if e.isSafe(shooter, candidate, weapon, terr, wind) {
			e.log.Debug("substituted self-damaging shot",
				logging.String("shooter", shooter.ID))
			return candidate
		}
	}
	//2.- Documented policy: with no safe alternative, fire anyway.
	return decision
}

func (e *Engine) isSafe(shooter tank.State, decision Decision, weapon weapons.Spec, terr *terrain.Terrain, wind float64) bool {
	cfg := physics.LaunchConfig{
		Origin:     physics.Point{X: shooter.X, Y: shooter.Y},
		AngleDeg:   decision.AngleDeg + 90,
		Power:      decision.Power,
		ArenaWidth: arenaWidth(terr),
		Wind:       wind,
	}
	landing, ok := simulateLanding(cfg, terr)
	if !ok {
		//1.- A shot that never lands cannot hurt the shooter.
		return true
	}
	return math.Abs(landing-shooter.X) >= weapon.BlastRadius+safetyMargin
}

// Decide produces the full turn decision for a computer-controlled shooter.
func (e *Engine) Decide(shooter tank.State, tanks []tank.State, terr *terrain.Terrain, wind float64, tier Tier, session *SessionState, inventory Inventory) (Decision, bool) {
	targetID, ok := e.SelectTargetPersistent(session, shooter, tanks)
	if !ok {
		//1.- No living opponent is a normal end-of-game condition, not an error.
		return Decision{}, false
	}
	var target tank.State
	for _, candidate := range tanks {
		if candidate.ID == targetID {
			target = candidate
			break
		}
	}

	//2.- Compensate the true wind by the tier's factor before searching.
	perceivedWind := wind * tier.WindCompensation
	angle, power := e.OptimalShot(shooter, target, terr, perceivedWind)

	decision := Decision{
		TargetID: targetID,
		AngleDeg: angle,
		Power:    power,
		WeaponID: e.SelectWeapon(shooter, target, tier, inventory),
	}

	//3.- Bracketing: consecutive shots at an unchanged target zero in.
	shots := session.ConsecutiveShots(shooter.ID, targetID)
	decision = e.ApplyVariance(decision, tier, shots)
	session.RecordShot(shooter.ID, targetID)

	//4.- All but the two lowest tiers refuse obviously self-damaging shots.
	if tier.SelfPreservation {
		weapon, err := weapons.Resolve(decision.WeaponID)
		if err != nil {
			weapon = weapons.Default()
		}
		decision = e.EnsureSafeShot(shooter, decision, weapon, terr, wind)
	}

	decision.ThinkingTime = e.thinkingTime(tier)
	e.log.Debug("turn decided",
		logging.String("shooter", shooter.ID),
		logging.String("target", targetID),
		logging.String("weapon", decision.WeaponID))
	return decision, true
}

// thinkingTime draws the advisory UI pacing hint from the tier's bounds.
func (e *Engine) thinkingTime(tier Tier) time.Duration {
	lo, hi := tier.ThinkingMsMin, tier.ThinkingMsMax
	if hi <= lo {
		return time.Duration(lo) * time.Millisecond
	}
	ms := lo + e.rng.Intn(hi-lo)
	return time.Duration(ms) * time.Millisecond
}

func arenaWidth(terr *terrain.Terrain) float64 {
	if terr == nil {
		return physics.ReferenceArenaWidth
	}
	return float64(terr.Width())
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
