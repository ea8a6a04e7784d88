package ai

import (
	"math"

	"steelrain/sim/internal/tank"
)

const (
	// criticalHealth is the threshold at which a wounded tank becomes an
	// easy-kill priority for persistent targeting.
	criticalHealth = 25.0

	// Weights for combining proximity and weakness into one score.
	distanceWeight = 100.0
	healthWeight   = 25.0
)

// SelectTarget picks a living non-self tank with one uniform draw over a
// distribution favouring close and weakened opponents. The second return is
// false when no target exists, which is a normal end-of-game condition.
func (e *Engine) SelectTarget(shooter tank.State, tanks []tank.State) (string, bool) {
	type weighted struct {
		id     string
		weight float64
	}
	candidates := make([]weighted, 0, len(tanks))
	total := 0.0
	for _, candidate := range tanks {
		if !candidate.Alive || candidate.ID == shooter.ID {
			continue
		}
		distance := math.Max(math.Abs(candidate.X-shooter.X), 1)
		health := math.Max(candidate.Health, 1)
		//1.- Combine inverse distance and inverse health into one weight.
		weight := distanceWeight/distance + healthWeight/health
		candidates = append(candidates, weighted{id: candidate.ID, weight: weight})
		total += weight
	}
	if len(candidates) == 0 || total <= 0 {
		return "", false
	}
	//2.- Sample the normalized distribution with a single uniform draw.
	draw := e.rng.Float64() * total
	for _, candidate := range candidates {
		draw -= candidate.weight
		if draw <= 0 {
			return candidate.id, true
		}
	}
	return candidates[len(candidates)-1].id, true
}

// SelectTargetPersistent keeps the shooter's existing lock unless the target
// died or another living tank has dropped to critical health, in which case
// it switches to the lowest-health critical tank to secure the kill. Any
// switch clears the shooter's bracketing history.
func (e *Engine) SelectTargetPersistent(session *SessionState, shooter tank.State, tanks []tank.State) (string, bool) {
	current, locked := session.TargetFor(shooter.ID)
	if locked && !isAlive(current, tanks) {
		locked = false
	}

	//1.- Hunt for the weakest critically wounded opponent.
	criticalID := ""
	criticalHealthSeen := math.MaxFloat64
	for _, candidate := range tanks {
		if !candidate.Alive || candidate.ID == shooter.ID {
			continue
		}
		if candidate.Health <= criticalHealth && candidate.Health < criticalHealthSeen {
			criticalID = candidate.ID
			criticalHealthSeen = candidate.Health
		}
	}
	if criticalID != "" {
		session.SetTarget(shooter.ID, criticalID)
		return criticalID, true
	}

	//2.- A surviving lock persists so bracketing keeps zeroing in.
	if locked {
		return current, true
	}

	//3.- Otherwise fall back to the stateless weighted selection.
	fresh, ok := e.SelectTarget(shooter, tanks)
	if !ok {
		return "", false
	}
	session.SetTarget(shooter.ID, fresh)
	return fresh, true
}

func isAlive(id string, tanks []tank.State) bool {
	for _, candidate := range tanks {
		if candidate.ID == id {
			return candidate.Alive
		}
	}
	return false
}
