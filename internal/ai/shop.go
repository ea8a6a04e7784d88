package ai

import (
	"math"

	"steelrain/sim/internal/tank"
	"steelrain/sim/internal/weapons"
)

// Inventory exposes the externally persisted weapon stock. The economy store
// itself is a collaborator; this core only reads counts.
type Inventory interface {
	Count(weaponID string) int
}

// Purchase is one planned between-rounds buy.
type Purchase struct {
	WeaponID string
	Cost     int
}

// Range buckets for tactical weapon choice, in reference-arena units.
const (
	closeRange  = 150.0
	mediumRange = 400.0
)

// weaponPreference is one weighted entry of a range bucket's table.
type weaponPreference struct {
	id     string
	weight float64
}

// rangeTables bias each distance bucket toward a different weapon subset:
// close shots avoid self-splash, long shots favour area coverage.
var rangeTables = map[string][]weaponPreference{
	"close":  {{"dart", 0.5}, {"standard", 0.5}},
	"medium": {{"heavy", 0.4}, {"bouncer", 0.3}, {"standard", 0.3}},
	"long":   {{"cluster", 0.45}, {"heavy", 0.3}, {"standard", 0.25}},
}

// SelectWeapon makes the tactical pick for the shot, restricted to weapons
// unlocked at the tier and owned in inventory, with the default weapon as the
// unconditional fallback.
func (e *Engine) SelectWeapon(shooter, target tank.State, tier Tier, inventory Inventory) string {
	distance := math.Abs(target.X - shooter.X)
	bucket := "long"
	switch {
	case distance < closeRange:
		bucket = "close"
	case distance < mediumRange:
		bucket = "medium"
	}

	//1.- Filter the bucket table down to unlocked, owned candidates.
	usable := make([]weaponPreference, 0, len(rangeTables[bucket]))
	total := 0.0
	for _, pref := range rangeTables[bucket] {
		spec, err := weapons.Resolve(pref.id)
		if err != nil || spec.MinTier > tier.Level {
			continue
		}
		if spec.Cost > 0 && (inventory == nil || inventory.Count(pref.id) <= 0) {
			continue
		}
		usable = append(usable, pref)
		total += pref.weight
	}
	if len(usable) == 0 || total <= 0 {
		return weapons.DefaultWeaponID
	}
	//2.- One uniform draw over the renormalized table.
	draw := e.rng.Float64() * total
	for _, pref := range usable {
		draw -= pref.weight
		if draw <= 0 {
			return pref.id
		}
	}
	return usable[len(usable)-1].id
}

// PlanPurchases decides the between-rounds shopping list. An empty plan is a
// normal outcome, not an error.
func (e *Engine) PlanPurchases(tier Tier, balance int, inventory Inventory) []Purchase {
	//1.- The per-tier probability gate keeps low tiers frugal.
	if e.rng.Float64() >= tier.PurchaseProbability {
		return nil
	}

	plan := make([]Purchase, 0, tier.TargetInventory)
	planned := make(map[string]int)
	spendable := func(cost int) bool {
		return balance-cost >= tier.ReserveBalance
	}

	//2.- Fill the preferred list up to the tier's target stock per weapon,
	// never dipping below the reserve.
	for _, id := range tier.PreferredWeapons {
		spec, err := weapons.Resolve(id)
		if err != nil || spec.MinTier > tier.Level || spec.Cost <= 0 {
			continue
		}
		owned := planned[id]
		if inventory != nil {
			owned += inventory.Count(id)
		}
		for owned < tier.TargetInventory && spendable(spec.Cost) {
			plan = append(plan, Purchase{WeaponID: id, Cost: spec.Cost})
			planned[id]++
			balance -= spec.Cost
			owned++
		}
	}

	//3.- High tiers grab one opportunistic cheap extra when affordable.
	if tier.OpportunisticBuy {
		cheapestID, cheapestCost := "", math.MaxInt
		for _, id := range weapons.UnlockedAt(tier.Level) {
			spec, err := weapons.Resolve(id)
			if err != nil || spec.Cost <= 0 {
				continue
			}
			if spec.Cost < cheapestCost && spendable(spec.Cost) {
				cheapestID, cheapestCost = id, spec.Cost
			}
		}
		if cheapestID != "" {
			plan = append(plan, Purchase{WeaponID: cheapestID, Cost: cheapestCost})
		}
	}
	return plan
}
