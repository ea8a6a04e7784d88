package events

// ShotEvent records one projectile launch.
type ShotEvent struct {
	Shooter  string  `json:"shooter"`
	Target   string  `json:"target,omitempty"`
	WeaponID string  `json:"weapon_id"`
	AngleDeg float64 `json:"angle_deg"`
	Power    float64 `json:"power"`
	Wind     float64 `json:"wind"`
}

// DamageDetail captures the effect of one blast on one tank.
type DamageDetail struct {
	TankID    string  `json:"tank_id"`
	Amount    float64 `json:"amount"`
	Destroyed bool    `json:"destroyed"`
}

// ImpactEvent records a projectile detonation and its splash results.
type ImpactEvent struct {
	Shooter  string         `json:"shooter"`
	WeaponID string         `json:"weapon_id"`
	X        float64        `json:"x"`
	Y        float64        `json:"y"`
	Victims  []DamageDetail `json:"victims,omitempty"`
}

// Clone duplicates the impact so subscribers can mutate their copy safely.
func (e *ImpactEvent) Clone() *ImpactEvent {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Victims = append([]DamageDetail(nil), e.Victims...)
	return &clone
}

// MovementEvent records one completed tank move.
type MovementEvent struct {
	TankID    string  `json:"tank_id"`
	FromX     float64 `json:"from_x"`
	ToX       float64 `json:"to_x"`
	FuelSpent float64 `json:"fuel_spent"`
}

// PurchaseEvent records one between-rounds weapon purchase.
type PurchaseEvent struct {
	TankID   string `json:"tank_id"`
	WeaponID string `json:"weapon_id"`
	Cost     int    `json:"cost"`
	Balance  int    `json:"balance"`
}

// Phase enumerates the match lifecycle transitions carried by the stream.
type Phase string

const (
	PhaseRoundStarted Phase = "round_started"
	PhaseRoundEnded   Phase = "round_ended"
	PhaseMatchEnded   Phase = "match_ended"
)

// LifecycleEvent records a round or match boundary.
type LifecycleEvent struct {
	Phase    Phase  `json:"phase"`
	Round    int    `json:"round"`
	WinnerID string `json:"winner_id,omitempty"`
}
