package main

import (
	"fmt"

	"github.com/moonup-dev/moonup/internal/history"
)

// runCurrent handles the `moonup current` subcommand
func runCurrent(args []string) error {
	for _, arg := range args {
		if arg == "--help" || arg == "-h" {
			fmt.Println("Usage: moonup current")
			fmt.Println()
			fmt.Println("Show the currently installed MoonBit version.")
			return nil
		}
	}

	configDir, err := getConfigDir()
	if err != nil {
		return err
	}

	current, ok, err := history.NewStore(configDir).Current()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("MoonBit is not currently installed; run 'moonup update' to install it")
	}

	fmt.Printf("Current MoonBit version: %s\n", current.Version)
	fmt.Printf("Installed %s (%s)\n", current.Timestamp.Format("2006-01-02 15:04"), current.Action)
	return nil
}
