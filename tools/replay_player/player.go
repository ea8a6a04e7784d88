package replayplayer

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"steelrain/sim/internal/replay"
)

// RoundSummary aggregates one round of a decoded journal for inspection.
type RoundSummary struct {
	Round     int    `json:"round"`
	Events    int    `json:"events"`
	Shots     int    `json:"shots"`
	Impacts   int    `json:"impacts"`
	Snapshots int    `json:"snapshots"`
	FirstTurn uint64 `json:"first_turn"`
	LastTurn  uint64 `json:"last_turn"`
}

// Load opens a journal bundle and decodes its full event and snapshot streams.
// The path may point at the bundle directory or at its manifest.json.
func Load(path string) (replay.Manifest, []replay.Event, []replay.Snapshot, error) {
	if path == "" {
		return replay.Manifest{}, nil, nil, fmt.Errorf("path is required")
	}

	//1.- Resolve the bundle directory so relative manifest paths keep working.
	dir := path
	info, err := os.Stat(path)
	if err != nil {
		return replay.Manifest{}, nil, nil, err
	}
	if !info.IsDir() {
		dir = filepath.Dir(path)
	}

	bundle, err := replay.OpenBundle(dir)
	if err != nil {
		return replay.Manifest{}, nil, nil, err
	}

	//2.- Decode events first so validation tools can reconstruct the timeline.
	events, err := bundle.Events()
	if err != nil {
		return replay.Manifest{}, nil, nil, err
	}

	//3.- Snapshots follow because they can be replayed incrementally.
	snapshots, err := bundle.Snapshots()
	if err != nil {
		return replay.Manifest{}, nil, nil, err
	}

	return bundle.Manifest(), events, snapshots, nil
}

// Summarize folds decoded streams into per-round statistics.
func Summarize(events []replay.Event, snapshots []replay.Snapshot) []RoundSummary {
	byRound := map[int]*RoundSummary{}
	touch := func(round int) *RoundSummary {
		summary, ok := byRound[round]
		if !ok {
			summary = &RoundSummary{Round: round}
			byRound[round] = summary
		}
		return summary
	}

	//1.- Events carry the turn span and the per-kind counters.
	for _, event := range events {
		summary := touch(event.Round)
		summary.Events++
		switch event.Type {
		case "shot_fired":
			summary.Shots++
		case "impact":
			summary.Impacts++
		}
		if summary.Events == 1 || event.Turn < summary.FirstTurn {
			summary.FirstTurn = event.Turn
		}
		if event.Turn > summary.LastTurn {
			summary.LastTurn = event.Turn
		}
	}
	//2.- Snapshots only contribute their count per round.
	for _, snapshot := range snapshots {
		touch(snapshot.Round).Snapshots++
	}

	summaries := make([]RoundSummary, 0, len(byRound))
	for _, summary := range byRound {
		summaries = append(summaries, *summary)
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].Round < summaries[j].Round })
	return summaries
}
