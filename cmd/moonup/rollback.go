package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/moonup-dev/moonup/internal/backup"
)

// runRollback handles the `moonup rollback` subcommand
func runRollback(args []string) error {
	for _, arg := range args {
		if arg == "--help" || arg == "-h" {
			fmt.Println("Usage: moonup rollback")
			fmt.Println()
			fmt.Println("Restore the most recent backup of the MoonBit installation.")
			return nil
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	cfg, configDir, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	eng, err := newEngine(ctx, cfg, configDir)
	if err != nil {
		return err
	}

	result, err := eng.Rollback(ctx)
	if err != nil {
		if errors.Is(err, backup.ErrNoBackup) {
			return fmt.Errorf("nothing to roll back: no backup exists")
		}
		return err
	}

	for _, notice := range result.Notices {
		fmt.Printf("Notice: %s\n", notice)
	}
	fmt.Printf("Rolled back to MoonBit %s\n", result.Version)
	return nil
}
