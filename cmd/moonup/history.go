package main

import (
	"fmt"

	"github.com/moonup-dev/moonup/internal/history"
)

// runHistory handles the `moonup history` subcommand
func runHistory(args []string) error {
	for _, arg := range args {
		if arg == "--help" || arg == "-h" {
			fmt.Println("Usage: moonup history")
			fmt.Println()
			fmt.Println("Show the install, update and rollback history, oldest first.")
			return nil
		}
	}

	configDir, err := getConfigDir()
	if err != nil {
		return err
	}

	entries, err := history.NewStore(configDir).All()
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("No installation history yet")
		return nil
	}

	fmt.Println("Installation history:")
	for _, entry := range entries {
		fmt.Printf("  %s  %-8s  %s  (from %s)\n",
			entry.Timestamp.Format("2006-01-02 15:04"),
			entry.Action,
			entry.Version,
			entry.Source)
	}
	return nil
}
