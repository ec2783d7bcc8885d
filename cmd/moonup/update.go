package main

import (
	"context"
	"fmt"
	"time"

	"github.com/moonup-dev/moonup/internal/history"
	"github.com/moonup-dev/moonup/internal/installer"
)

// runUpdate handles the `moonup update` subcommand
func runUpdate(args []string) error {
	// Parse flags
	showHelp := false
	noBackup := false
	version := installer.Latest
	for _, arg := range args {
		switch arg {
		case "--help", "-h":
			showHelp = true
		case "--no-backup":
			noBackup = true
		default:
			version = arg
		}
	}

	if showHelp {
		printUpdateHelp()
		return nil
	}

	// Downloads can be large; allow a generous overall deadline.
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
	defer cancel()

	cfg, configDir, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	if noBackup {
		cfg.Installation.BackupEnabled = false
	}

	eng, err := newEngine(ctx, cfg, configDir)
	if err != nil {
		return err
	}

	result, err := eng.Update(ctx, version)
	if err != nil {
		return err
	}

	if result.Degraded {
		fmt.Println("Notice: release index unreachable, used local history")
	}
	for _, notice := range result.Notices {
		fmt.Printf("Notice: %s\n", notice)
	}

	if result.UpToDate {
		fmt.Printf("MoonBit %s is already installed\n", result.Version)
		return nil
	}

	switch result.Action {
	case history.ActionInstall:
		fmt.Printf("Installed MoonBit %s\n", result.Version)
	default:
		fmt.Printf("Updated to MoonBit %s\n", result.Version)
	}
	if result.BackupPath != "" {
		fmt.Printf("Previous installation backed up to %s\n", result.BackupPath)
	}
	fmt.Println("Run 'moon version' to verify the installation")
	return nil
}

func printUpdateHelp() {
	fmt.Println("Usage: moonup update [version] [options]")
	fmt.Println()
	fmt.Println("Install or update the MoonBit toolchain. With no version argument")
	fmt.Println("the latest release is installed.")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --no-backup    Skip the pre-update backup")
	fmt.Println("  --help, -h     Show this help")
}
