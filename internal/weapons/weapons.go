package weapons

import (
	"errors"
	"math"
	"sort"
)

// DefaultWeaponID names the always-available fallback weapon.
const DefaultWeaponID = "standard"

// ErrUnknownWeapon reports a lookup for an identifier missing from the catalog.
var ErrUnknownWeapon = errors.New("unknown weapon identifier")

// Spec is the resolved behaviour for a weapon identifier.
type Spec struct {
	ID                string
	Archetype         Archetype
	Damage            float64
	BlastRadius       float64
	SpeedMultiplier   float64
	MaxBounces        int
	EnergyRetention   float64
	ClusterCount      int
	ClusterSpreadDeg  float64
	ClusterPowerScale float64
	FalloffExponent   float64
	Cost              int
	MinTier           int
}

// Resolve returns the runtime spec for the provided weapon identifier.
func Resolve(weaponID string) (Spec, error) {
	catalog := Balance()
	variant, ok := catalog.Weapons[weaponID]
	if !ok {
		return Spec{}, ErrUnknownWeapon
	}
	spec := Spec{
		ID:                weaponID,
		Archetype:         variant.Archetype,
		Damage:            variant.Damage,
		BlastRadius:       variant.BlastRadius,
		SpeedMultiplier:   variant.SpeedMultiplier,
		MaxBounces:        variant.MaxBounces,
		EnergyRetention:   variant.EnergyRetention,
		ClusterCount:      variant.ClusterCount,
		ClusterSpreadDeg:  variant.ClusterSpreadDeg,
		ClusterPowerScale: variant.ClusterPowerScale,
		FalloffExponent:   variant.FalloffExponent,
		Cost:              variant.Cost,
		MinTier:           variant.MinTier,
	}
	//1.- Backfill neutral defaults so downstream math never divides by zero.
	if spec.SpeedMultiplier <= 0 {
		spec.SpeedMultiplier = 1
	}
	if spec.FalloffExponent <= 0 {
		spec.FalloffExponent = 1
	}
	return spec, nil
}

// Default returns the spec for the always-available weapon.
func Default() Spec {
	spec, err := Resolve(DefaultWeaponID)
	if err != nil {
		//1.- A missing default means the embedded catalog is corrupt.
		panic(err)
	}
	return spec
}

// CanBounce reports whether the weapon rebounds off terrain.
func (s Spec) CanBounce() bool {
	return s.Archetype == ArchetypeBouncer && s.MaxBounces > 0
}

// CanSplit reports whether the weapon emits sub-projectiles.
func (s Spec) CanSplit() bool {
	return s.Archetype == ArchetypeCluster && s.ClusterCount > 0
}

// SplashDamageAt evaluates the radial damage shape at the given distance from
// the blast centre. Damage fades to zero at the blast radius.
func (s Spec) SplashDamageAt(distance float64) float64 {
	if distance < 0 {
		distance = 0
	}
	if s.BlastRadius <= 0 || distance >= s.BlastRadius {
		return 0
	}
	//1.- Normalise the distance and apply the configured falloff exponent.
	fraction := 1 - distance/s.BlastRadius
	return s.Damage * math.Pow(fraction, s.FalloffExponent)
}

// UnlockedAt lists the weapon identifiers available at the given tier,
// sorted for deterministic iteration.
func UnlockedAt(tier int) []string {
	catalog := Balance()
	ids := make([]string, 0, len(catalog.Weapons))
	for id, variant := range catalog.Weapons {
		if variant.MinTier <= tier {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}
