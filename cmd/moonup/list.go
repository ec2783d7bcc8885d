package main

import (
	"context"
	"fmt"
	"time"

	"github.com/moonup-dev/moonup/internal/history"
	"github.com/moonup-dev/moonup/internal/index"
)

// recentLimit caps list output unless --all is given.
const recentLimit = 20

// runList handles the `moonup list` subcommand
func runList(args []string) error {
	showHelp := false
	showAll := false
	for _, arg := range args {
		switch arg {
		case "--help", "-h":
			showHelp = true
		case "--all", "-a":
			showAll = true
		}
	}

	if showHelp {
		printListHelp()
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	cfg, configDir, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	hist := history.NewStore(configDir)
	current, hasCurrent, err := hist.Current()
	if err != nil {
		return err
	}

	snap, err := index.NewResolver().Fetch(ctx, cfg.Mirror.IndexURL)
	if err != nil {
		// Degraded: show what history knows instead of failing.
		fmt.Println("Notice: release index unreachable, showing installed versions from history")
		return listFromHistory(hist)
	}

	limit := recentLimit
	if showAll {
		limit = 0
	}
	records := snap.List(limit)

	fmt.Printf("Available MoonBit versions (%d of %d):\n", len(records), len(snap.Records))
	for _, rec := range records {
		marker := " "
		if hasCurrent && rec.Version == current.Version {
			marker = "*"
		}
		fmt.Printf("  %s %s  (%s)\n", marker, rec.Version, rec.ReleasedAt.Format("2006-01-02"))
	}
	if snap.Skipped > 0 {
		fmt.Printf("Notice: %d malformed index entries skipped\n", snap.Skipped)
	}
	if !showAll && len(snap.Records) > len(records) {
		fmt.Println("Use --all to list every version")
	}
	return nil
}

// listFromHistory prints previously installed versions, newest last.
func listFromHistory(hist *history.Store) error {
	entries, err := hist.All()
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("No versions installed yet")
		return nil
	}

	fmt.Println("Previously installed versions:")
	for _, entry := range entries {
		fmt.Printf("    %s  (%s %s)\n", entry.Version, entry.Action, entry.Timestamp.Format("2006-01-02"))
	}
	return nil
}

func printListHelp() {
	fmt.Println("Usage: moonup list [options]")
	fmt.Println()
	fmt.Println("List available MoonBit versions from the release index.")
	fmt.Println("The currently installed version is marked with *.")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --all, -a      Show all versions, not just the recent 20")
	fmt.Println("  --help, -h     Show this help")
}
