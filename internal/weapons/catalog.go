package weapons

import (
	"encoding/json"
	"sync"

	_ "embed"
)

// Archetype enumerates the projectile behaviour families.
type Archetype string

const (
	// ArchetypeShell is a plain ballistic round that explodes on first contact.
	ArchetypeShell Archetype = "shell"
	// ArchetypeBouncer rebounds off terrain until its bounce budget is spent.
	ArchetypeBouncer Archetype = "bouncer"
	// ArchetypeCluster splits into sub-projectiles near the end of its arc.
	ArchetypeCluster Archetype = "cluster"
)

// VariantConfig holds the per-weapon balance values mirrored from weapon_balance.json.
type VariantConfig struct {
	Archetype         Archetype `json:"archetype"`
	Damage            float64   `json:"damage"`
	BlastRadius       float64   `json:"blastRadius"`
	SpeedMultiplier   float64   `json:"speedMultiplier"`
	MaxBounces        int       `json:"maxBounces,omitempty"`
	EnergyRetention   float64   `json:"energyRetention,omitempty"`
	ClusterCount      int       `json:"clusterCount,omitempty"`
	ClusterSpreadDeg  float64   `json:"clusterSpreadDeg,omitempty"`
	ClusterPowerScale float64   `json:"clusterPowerScale,omitempty"`
	FalloffExponent   float64   `json:"falloffExponent,omitempty"`
	Cost              int       `json:"cost"`
	MinTier           int       `json:"minTier"`
}

// Catalog mirrors the structure of weapon_balance.json.
type Catalog struct {
	Default string                   `json:"default"`
	Weapons map[string]VariantConfig `json:"weapons"`
}

// Clone produces a defensive copy to protect the cached catalog from mutation.
func (c Catalog) Clone() Catalog {
	clone := Catalog{Default: c.Default, Weapons: make(map[string]VariantConfig, len(c.Weapons))}
	for key, value := range c.Weapons {
		clone.Weapons[key] = value
	}
	return clone
}

var (
	balanceOnce sync.Once
	balanceData Catalog
	balanceErr  error
)

//go:embed weapon_balance.json
var balancePayload []byte

// Balance exposes the parsed weapon catalog shared across the simulation.
func Balance() Catalog {
	balanceOnce.Do(func() {
		//1.- Parse the embedded JSON payload once so concurrent callers share the same data.
		balanceErr = json.Unmarshal(balancePayload, &balanceData)
	})
	//2.- Surface configuration errors immediately; a broken table is unrecoverable.
	if balanceErr != nil {
		panic(balanceErr)
	}
	//3.- Return a clone so tests cannot accidentally mutate the cached catalog.
	return balanceData.Clone()
}
