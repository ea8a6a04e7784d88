package physics

import (
	"fmt"
	"math"
)

const (
	// Gravity is the downward acceleration in arena units per second squared.
	// The world uses a y-down frame so gravity increases y over time.
	Gravity = 98.1
	// PowerScale converts one unit of power into launch speed.
	PowerScale = 2.5
	// ReferenceArenaWidth normalizes power so a fixed power covers a
	// proportionally similar share of any arena.
	ReferenceArenaWidth = 800.0
	// WindScale converts a signed wind speed into horizontal acceleration.
	WindScale = 1.5

	// findTimeMaxIterations bounds the binary search so it always terminates.
	findTimeMaxIterations = 64
	// findTimeHorizon is the far end of the crossing-time search window.
	findTimeHorizon = 120.0
)

// ErrInvalidArgument wraps every argument failure raised by the sampling helpers.
var ErrInvalidArgument = fmt.Errorf("invalid physics argument")

// Point is a world position in the y-down frame.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// LaunchConfig captures a single shot. Angle follows the physics convention:
// 0 points along +x and 90 points straight up. Instances are created per shot
// and never mutated.
type LaunchConfig struct {
	Origin     Point
	AngleDeg   float64
	Power      float64
	ArenaWidth float64
	Wind       float64
}

// Sample is one trajectory observation.
type Sample struct {
	X float64
	Y float64
	T float64
}

// Velocity reports the launch speed derived from power and arena scaling.
func (c LaunchConfig) Velocity() float64 {
	width := c.ArenaWidth
	if width <= 0 {
		width = ReferenceArenaWidth
	}
	//1.- Scale power by the square root of the arena ratio for range parity.
	return c.Power * PowerScale * math.Sqrt(width/ReferenceArenaWidth)
}

// components splits the launch velocity into axis-aligned parts.
func (c LaunchConfig) components() (vx, vy float64) {
	v := c.Velocity()
	radians := c.AngleDeg * math.Pi / 180
	return v * math.Cos(radians), v * math.Sin(radians)
}

// windAccel converts the configured wind into horizontal acceleration.
func (c LaunchConfig) windAccel() float64 {
	return c.Wind * WindScale
}

// PositionAt evaluates the closed-form trajectory at elapsed time t.
func (c LaunchConfig) PositionAt(t float64) Point {
	vx, vy := c.components()
	//1.- Wind contributes a purely horizontal, time-quadratic displacement.
	x := c.Origin.X + vx*t + 0.5*c.windAccel()*t*t
	//2.- Vertical motion is unaffected by wind; gravity pulls toward +y.
	y := c.Origin.Y - vy*t + 0.5*Gravity*t*t
	return Point{X: x, Y: y}
}

// VelocityAt evaluates the instantaneous velocity at elapsed time t. The
// vertical component is positive while ascending (y shrinking).
func (c LaunchConfig) VelocityAt(t float64) (vx, vy float64) {
	vx0, vy0 := c.components()
	//1.- Wind grows the horizontal velocity linearly; gravity decays the vertical.
	return vx0 + c.windAccel()*t, vy0 - Gravity*t
}

// ApexTime reports when the projectile stops ascending; never negative.
func (c LaunchConfig) ApexTime() float64 {
	_, vy := c.components()
	if vy <= 0 {
		return 0
	}
	return vy / Gravity
}

// MaxHeight reports the y coordinate at the apex (smallest y on the arc).
func (c LaunchConfig) MaxHeight() float64 {
	return c.PositionAt(c.ApexTime()).Y
}

// Trajectory samples the arc at fixed timeStep up to and including maxTime.
func (c LaunchConfig) Trajectory(timeStep, maxTime float64) ([]Sample, error) {
	if timeStep <= 0 {
		return nil, fmt.Errorf("%w: timeStep must be positive, got %v", ErrInvalidArgument, timeStep)
	}
	if maxTime < 0 {
		return nil, fmt.Errorf("%w: maxTime must be non-negative, got %v", ErrInvalidArgument, maxTime)
	}
	//1.- A zero horizon still yields the launch point so callers can seed traces.
	samples := make([]Sample, 0, int(maxTime/timeStep)+1)
	for t := 0.0; t <= maxTime+timeStep/2; t += timeStep {
		pos := c.PositionAt(t)
		samples = append(samples, Sample{X: pos.X, Y: pos.Y, T: t})
	}
	return samples, nil
}

// TrajectoryUntilY samples like Trajectory but stops once the projectile is
// past apex and has descended to or past targetY.
func (c LaunchConfig) TrajectoryUntilY(targetY, timeStep, maxTime float64) ([]Sample, error) {
	if timeStep <= 0 {
		return nil, fmt.Errorf("%w: timeStep must be positive, got %v", ErrInvalidArgument, timeStep)
	}
	if maxTime < 0 {
		return nil, fmt.Errorf("%w: maxTime must be non-negative, got %v", ErrInvalidArgument, maxTime)
	}
	apex := c.ApexTime()
	samples := make([]Sample, 0, int(maxTime/timeStep)+1)
	for t := 0.0; t <= maxTime+timeStep/2; t += timeStep {
		pos := c.PositionAt(t)
		samples = append(samples, Sample{X: pos.X, Y: pos.Y, T: t})
		//1.- In the y-down frame "descended to targetY" means y grew to or past it.
		if t > apex && pos.Y >= targetY {
			break
		}
	}
	return samples, nil
}

// FindTimeAtY binary-searches for the time the arc crosses targetY. When
// afterApex is set the search covers the descending branch only and reports
// false if targetY sits above the apex (unreachable on descent).
func (c LaunchConfig) FindTimeAtY(targetY float64, afterApex bool, precision float64) (float64, bool) {
	if precision <= 0 {
		precision = 1e-3
	}
	apex := c.ApexTime()
	lo, hi := 0.0, apex
	if afterApex {
		//1.- Heights above the apex can never be reached while descending.
		if targetY < c.MaxHeight() {
			return 0, false
		}
		lo, hi = apex, apex+findTimeHorizon
	} else {
		//2.- The ascending branch cannot reach below the launch height or above apex.
		if targetY > c.Origin.Y || targetY < c.MaxHeight() {
			return 0, false
		}
	}
	//3.- Bisect on the monotonic branch with a hard iteration bound.
	for i := 0; i < findTimeMaxIterations && hi-lo > precision; i++ {
		mid := (lo + hi) / 2
		y := c.PositionAt(mid).Y
		descending := afterApex
		if (descending && y < targetY) || (!descending && y > targetY) {
			lo = mid
		} else {
			hi = mid
		}
	}
	return (lo + hi) / 2, true
}
