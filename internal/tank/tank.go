package tank

// State is one tank's turn-visible condition. Damage application itself is
// owned by an external collaborator; this core only reads health and alive.
type State struct {
	ID     string  `json:"id"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Health float64 `json:"health"`
	// AngleDeg follows the UI convention: -120..120 with 0 pointing up.
	AngleDeg float64 `json:"angle_deg"`
	Power    float64 `json:"power"`
	Fuel     float64 `json:"fuel"`
	Color    string  `json:"color"`
	Alive    bool    `json:"alive"`
}

// Clamp bounds used by turn mutation and the AI decision clamps.
const (
	MinAngleDeg = -120.0
	MaxAngleDeg = 120.0
	MinPower    = 10.0
	MaxPower    = 100.0
	MaxHealth   = 100.0
	MaxFuel     = 100.0
)
