package movement

import (
	"math"

	"steelrain/sim/internal/physics"
	"steelrain/sim/internal/tank"
	"steelrain/sim/internal/terrain"
)

const (
	// DistancePerFuel is how many arena units one fuel point buys on the
	// reference arena; wider arenas scale proportionally so the play-feel of
	// a full tank is constant.
	DistancePerFuel = 3.0
	// TankBodyWidth is the collision footprint used for path blocking and
	// edge clamping.
	TankBodyWidth = 24.0
	// SpeedArenaFractionPerSecond sets movement pace as a share of the
	// arena width covered per second.
	SpeedArenaFractionPerSecond = 0.08
)

// arenaScale normalizes conversions against the reference arena width.
func arenaScale(arenaWidth float64) float64 {
	if arenaWidth <= 0 {
		arenaWidth = physics.ReferenceArenaWidth
	}
	return arenaWidth / physics.ReferenceArenaWidth
}

// DistanceForFuel converts a fuel budget into lateral travel distance.
func DistanceForFuel(fuel, arenaWidth float64) float64 {
	if fuel <= 0 {
		return 0
	}
	return fuel * DistancePerFuel * arenaScale(arenaWidth)
}

// FuelForDistance converts a travel distance into fuel, rounded up so no
// movement is ever free.
func FuelForDistance(distance, arenaWidth float64) int {
	if distance <= 0 {
		return 0
	}
	perFuel := DistancePerFuel * arenaScale(arenaWidth)
	return int(math.Ceil(distance / perFuel))
}

// Duration derives the animation length for a move of the given distance.
func Duration(distance, arenaWidth float64) float64 {
	if distance <= 0 {
		return 0
	}
	if arenaWidth <= 0 {
		arenaWidth = physics.ReferenceArenaWidth
	}
	speed := arenaWidth * SpeedArenaFractionPerSecond
	return distance / speed
}

// ResolveTarget clamps the requested destination to arena bounds and to the
// nearest blocking living tank along the straight-line path.
func ResolveTarget(mover tank.State, requestedX, arenaWidth float64, others []tank.State) float64 {
	//1.- Keep half a tank body inside the arena on both edges.
	margin := TankBodyWidth / 2
	target := clamp(requestedX, margin, arenaWidth-margin)

	lo, hi := math.Min(mover.X, target), math.Max(mover.X, target)
	for _, other := range others {
		if !other.Alive || other.ID == mover.ID {
			continue
		}
		if other.X < lo-TankBodyWidth || other.X > hi+TankBodyWidth {
			continue
		}
		//2.- Stop one body width short of the blocker, on the mover's side.
		var stop float64
		if other.X >= mover.X {
			stop = other.X - TankBodyWidth
		} else {
			stop = other.X + TankBodyWidth
		}
		//3.- Only clamp when the stop point actually shortens the move.
		if (target > mover.X && stop < target && stop >= mover.X) ||
			(target < mover.X && stop > target && stop <= mover.X) {
			target = stop
		}
	}
	return target
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

// EaseInOutQuad is the interpolation curve used for move animation.
func EaseInOutQuad(progress float64) float64 {
	if progress <= 0 {
		return 0
	}
	if progress >= 1 {
		return 1
	}
	if progress < 0.5 {
		return 2 * progress * progress
	}
	return 1 - math.Pow(-2*progress+2, 2)/2
}

// PositionAt interpolates a move animation at the given progress in [0,1].
// The y coordinate is re-derived from the terrain each step so the tank
// follows the surface.
func PositionAt(startX, targetX, progress float64, terr *terrain.Terrain) physics.Point {
	eased := EaseInOutQuad(progress)
	x := startX + (targetX-startX)*eased
	y := 0.0
	if surface, ok := terr.InterpolatedHeightAt(x); ok {
		y = surface
	}
	return physics.Point{X: x, Y: y}
}
