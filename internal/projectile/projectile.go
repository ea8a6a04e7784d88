package projectile

import (
	"math"

	"steelrain/sim/internal/physics"
	"steelrain/sim/internal/terrain"
	"steelrain/sim/internal/weapons"
)

const (
	// OutOfBoundsMargin is how far beyond the arena edges a shot may fly
	// before it is disposed of without an explosion.
	OutOfBoundsMargin = 200.0
	// skyDisposalY is the y-down ceiling; anything this far above the arena
	// top is gone for good.
	skyDisposalY = -5000.0
	// MaxLifetimeSeconds bounds a single flight so stray shots always resolve.
	MaxLifetimeSeconds = 60.0
	// splitProgressFraction is the share of the estimated flight time at
	// which cluster weapons break apart.
	splitProgressFraction = 0.85
	// minEstimatedFlight guards the split trigger against degenerate
	// downward launches whose estimated flight time collapses to zero.
	minEstimatedFlight = 0.2
)

// TransitionKind labels the outcome of a simulation step.
type TransitionKind int

const (
	// TransitionNone means the projectile is still flying.
	TransitionNone TransitionKind = iota
	// TransitionBounce re-enters flight from the impact point.
	TransitionBounce
	// TransitionSplit retires the parent and emits child projectiles.
	TransitionSplit
	// TransitionExplode is a terminal terrain impact.
	TransitionExplode
	// TransitionOutOfBounds is a terminal off-screen disposal with no effect.
	TransitionOutOfBounds
)

// State is one projectile's immutable snapshot. Transitions return new values
// rather than mutating in place so flight history stays inspectable.
type State struct {
	Active bool
	Config physics.LaunchConfig
	// StartTime is the real-time second at which this flight segment began.
	StartTime float64
	Weapon    weapons.Spec

	BounceCount int

	// EstimatedFlightTime is the physics-time estimate for the full arc,
	// valid only when EstimatedFlightValid is set.
	EstimatedFlightTime  float64
	EstimatedFlightValid bool

	// HasSplit blocks a second break-up; Sub marks children, which never
	// bounce or split again.
	HasSplit bool
	Sub      bool
}

// Transition bundles the next parent state with any side products of a step.
type Transition struct {
	Kind     TransitionKind
	Next     State
	Children []State
	// Impact is the terrain contact point for bounces and explosions.
	Impact *physics.Point
}

// New creates a Flying state for the given shot at the given real start time.
func New(cfg physics.LaunchConfig, weapon weapons.Spec, startTime float64) State {
	state := State{Active: true, Config: cfg, StartTime: startTime, Weapon: weapon}
	state.EstimatedFlightTime, state.EstimatedFlightValid = estimateFlightTime(cfg)
	return state
}

// estimateFlightTime solves for the descending crossing of the launch height,
// falling back to the symmetric apex approximation when the solve fails.
func estimateFlightTime(cfg physics.LaunchConfig) (float64, bool) {
	if t, ok := cfg.FindTimeAtY(cfg.Origin.Y, true, 1e-3); ok && t > minEstimatedFlight {
		return t, true
	}
	//1.- A flat-ground arc is symmetric around the apex.
	if fallback := 2 * cfg.ApexTime(); fallback > minEstimatedFlight {
		return fallback, true
	}
	return 0, false
}

// PhysicsTime converts real elapsed seconds into physics seconds, decoupling
// visual pacing from range: the same power lands at the same distance at any
// playback speed.
func (s State) PhysicsTime(now, animSpeed float64) float64 {
	elapsed := now - s.StartTime
	if elapsed < 0 {
		elapsed = 0
	}
	return elapsed * animSpeed * s.Weapon.SpeedMultiplier
}

// PositionAt reports the projectile's world position at the given real time.
// Collaborators (renderer, tank hit-testing) sample this every step.
func (s State) PositionAt(now, animSpeed float64) physics.Point {
	return s.Config.PositionAt(s.PhysicsTime(now, animSpeed))
}

// Step evaluates the projectile at the given real time against the terrain
// and returns the applicable transition.
func (s State) Step(now, animSpeed float64, terr *terrain.Terrain) Transition {
	if !s.Active {
		return Transition{Kind: TransitionNone, Next: s}
	}
	t := s.PhysicsTime(now, animSpeed)
	pos := s.Config.PositionAt(t)
	vx, vy := s.Config.VelocityAt(t)

	//1.- Off-screen shots are disposed of quietly, explosion-free.
	if s.outOfBounds(pos, terr) || t > MaxLifetimeSeconds {
		next := s
		next.Active = false
		return Transition{Kind: TransitionOutOfBounds, Next: next}
	}

	//2.- Cluster weapons break apart once the arc is nearly spent.
	if s.shouldSplit(t) {
		return s.split(now, pos, vx, vy)
	}

	//3.- Terrain contact only counts on descent so a shot can clear its own tank.
	if vy < 0 {
		if surface, ok := terr.InterpolatedHeightAt(pos.X); ok && pos.Y >= surface {
			impact := physics.Point{X: pos.X, Y: surface}
			if s.Weapon.CanBounce() && !s.Sub && s.BounceCount < s.Weapon.MaxBounces {
				return s.bounce(now, impact, vx, vy)
			}
			next := s
			next.Active = false
			return Transition{Kind: TransitionExplode, Next: next, Impact: &impact}
		}
	}
	return Transition{Kind: TransitionNone, Next: s}
}

func (s State) outOfBounds(pos physics.Point, terr *terrain.Terrain) bool {
	width := s.Config.ArenaWidth
	if terr != nil {
		width = float64(terr.Width())
	}
	return pos.X < -OutOfBoundsMargin || pos.X > width+OutOfBoundsMargin || pos.Y < skyDisposalY
}

func (s State) shouldSplit(t float64) bool {
	if !s.Weapon.CanSplit() || s.HasSplit || s.Sub {
		return false
	}
	if !s.EstimatedFlightValid {
		return false
	}
	return t >= splitProgressFraction*s.EstimatedFlightTime
}

// split retires the parent and spawns children that inherit its velocity,
// fanned across a symmetric angular spread at reduced power.
func (s State) split(now float64, pos physics.Point, vx, vy float64) Transition {
	parent := s
	parent.Active = false
	parent.HasSplit = true

	speed := math.Hypot(vx, vy)
	baseAngle := math.Atan2(vy, vx) * 180 / math.Pi
	basePower := powerFromSpeed(speed, s.Config) * s.Weapon.ClusterPowerScale

	count := s.Weapon.ClusterCount
	children := make([]State, 0, count)
	for i := 0; i < count; i++ {
		//1.- Fan the children evenly across [-spread, +spread] around the parent heading.
		offset := 0.0
		if count > 1 {
			offset = s.Weapon.ClusterSpreadDeg * (2*float64(i)/float64(count-1) - 1)
		}
		cfg := physics.LaunchConfig{
			Origin:     pos,
			AngleDeg:   baseAngle + offset,
			Power:      basePower,
			ArenaWidth: s.Config.ArenaWidth,
			Wind:       s.Config.Wind,
		}
		child := New(cfg, s.Weapon, now)
		//2.- Children are terminal projectiles: no further splits, no bounces.
		child.Sub = true
		children = append(children, child)
	}
	return Transition{Kind: TransitionSplit, Next: parent, Children: children}
}

// bounce reflects the vertical velocity at the impact point and restarts the
// flight with the energy-scaled remainder.
func (s State) bounce(now float64, impact physics.Point, vx, vy float64) Transition {
	retention := s.Weapon.EnergyRetention
	//1.- Reflect the vertical component and bleed energy from both axes.
	rvx := vx * retention
	rvy := -vy * retention

	speed := math.Hypot(rvx, rvy)
	cfg := physics.LaunchConfig{
		Origin:     impact,
		AngleDeg:   math.Atan2(rvy, rvx) * 180 / math.Pi,
		Power:      powerFromSpeed(speed, s.Config),
		ArenaWidth: s.Config.ArenaWidth,
		Wind:       s.Config.Wind,
	}
	next := s
	next.Config = cfg
	next.StartTime = now
	next.BounceCount = s.BounceCount + 1
	next.EstimatedFlightTime, next.EstimatedFlightValid = estimateFlightTime(cfg)
	return Transition{Kind: TransitionBounce, Next: next, Impact: &impact}
}

// powerFromSpeed inverts the power-to-velocity scaling for the shot's arena.
func powerFromSpeed(speed float64, cfg physics.LaunchConfig) float64 {
	width := cfg.ArenaWidth
	if width <= 0 {
		width = physics.ReferenceArenaWidth
	}
	scale := physics.PowerScale * math.Sqrt(width/physics.ReferenceArenaWidth)
	if scale <= 0 {
		return 0
	}
	return speed / scale
}
