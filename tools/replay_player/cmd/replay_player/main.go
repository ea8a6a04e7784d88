package main

import (
	"flag"
	"fmt"
	"os"

	replayplayer "steelrain/sim/tools/replay_player"
)

func main() {
	bundle := flag.String("bundle", "", "journal bundle directory or manifest.json path")
	showEvents := flag.Bool("events", false, "print every decoded event instead of the summary")
	flag.Parse()

	if *bundle == "" {
		fmt.Fprintln(os.Stderr, "usage: replay_player -bundle <dir> [-events]")
		os.Exit(1)
	}

	manifest, events, snapshots, err := replayplayer.Load(*bundle)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if *showEvents {
		for _, event := range events {
			fmt.Printf("round %d turn %d %s %s %s\n", event.Round, event.Turn, event.CapturedAt, event.Type, string(event.Payload))
		}
		return
	}

	fmt.Printf("bundle created %s, snapshot cadence %dms\n", manifest.CreatedAt, manifest.SnapshotIntervalMs)
	for _, summary := range replayplayer.Summarize(events, snapshots) {
		fmt.Printf("round %d: %d events (%d shots, %d impacts), %d snapshots, turns %d-%d\n",
			summary.Round, summary.Events, summary.Shots, summary.Impacts,
			summary.Snapshots, summary.FirstTurn, summary.LastTurn)
	}
}
