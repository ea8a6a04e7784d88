package ai

import (
	"encoding/json"
	"fmt"
	"sync"

	_ "embed"
)

// Tier captures one difficulty level's tuning. One fixed instance exists per
// level; the table lives in difficulty_tiers.json.
type Tier struct {
	Name             string  `json:"name"`
	Level            int     `json:"level"`
	AngleVarianceDeg float64 `json:"angleVarianceDeg"`
	PowerVariance    float64 `json:"powerVariance"`
	// Thinking bounds are a UI pacing hint only; this core never sleeps on them.
	ThinkingMsMin       int      `json:"thinkingMsMin"`
	ThinkingMsMax       int      `json:"thinkingMsMax"`
	WindCompensation    float64  `json:"windCompensation"`
	SelfPreservation    bool     `json:"selfPreservation"`
	PurchaseProbability float64  `json:"purchaseProbability"`
	ReserveBalance      int      `json:"reserveBalance"`
	TargetInventory     int      `json:"targetInventory"`
	OpportunisticBuy    bool     `json:"opportunisticBuy"`
	PreferredWeapons    []string `json:"preferredWeapons"`
}

// Clone returns a defensive copy so callers cannot mutate the cached table.
func (t Tier) Clone() Tier {
	clone := t
	clone.PreferredWeapons = append([]string(nil), t.PreferredWeapons...)
	return clone
}

type tierTable struct {
	Tiers []Tier `json:"tiers"`
}

var (
	tiersOnce sync.Once
	tiersData tierTable
	tiersErr  error
)

//go:embed difficulty_tiers.json
var tiersPayload []byte

// Tiers returns the full difficulty ladder ordered by level.
func Tiers() []Tier {
	tiersOnce.Do(func() {
		//1.- Parse the embedded table once so concurrent callers share the data.
		tiersErr = json.Unmarshal(tiersPayload, &tiersData)
	})
	//2.- A broken embedded table is unrecoverable configuration corruption.
	if tiersErr != nil {
		panic(tiersErr)
	}
	clones := make([]Tier, len(tiersData.Tiers))
	for i, tier := range tiersData.Tiers {
		clones[i] = tier.Clone()
	}
	return clones
}

// TierAt resolves the tier for the given level.
func TierAt(level int) (Tier, error) {
	for _, tier := range Tiers() {
		if tier.Level == level {
			return tier, nil
		}
	}
	return Tier{}, fmt.Errorf("unknown difficulty level %d", level)
}
