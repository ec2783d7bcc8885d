package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/moonup-dev/moonup/internal/config"
)

// runConfig handles the `moonup config` subcommand
func runConfig(args []string) error {
	action := "show"
	if len(args) > 0 {
		action = args[0]
	}

	switch action {
	case "show":
		return runConfigShow()
	case "path":
		configDir, err := getConfigDir()
		if err != nil {
			return err
		}
		fmt.Println(filepath.Join(configDir, config.FileName))
		return nil
	case "set-mirror":
		return runConfigSetMirror(args[1:])
	case "reset":
		return runConfigReset()
	case "--help", "-h":
		printConfigHelp()
		return nil
	default:
		printConfigHelp()
		return fmt.Errorf("unknown config action: %s", action)
	}
}

func runConfigShow() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cfg, configDir, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Configuration (%s):\n", filepath.Join(configDir, config.FileName))
	fmt.Println()
	fmt.Println("  mirror:")
	fmt.Printf("    index_url:          %s\n", cfg.Mirror.IndexURL)
	fmt.Printf("    download_base_url:  %s\n", cfg.Mirror.DownloadBaseURL)
	fmt.Println("  installation:")
	fmt.Printf("    backup_enabled:     %t\n", cfg.Installation.BackupEnabled)
	fmt.Printf("    verify_checksums:   %t\n", cfg.Installation.VerifyChecksums)
	fmt.Printf("    backup_retention:   %d", cfg.Installation.BackupRetention)
	if cfg.Installation.BackupRetention == 0 {
		fmt.Print("  (keep all)")
	}
	fmt.Println()
	return nil
}

func runConfigSetMirror(args []string) error {
	var indexURL, downloadURL string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--index-url":
			if i+1 >= len(args) {
				return fmt.Errorf("--index-url requires a value")
			}
			i++
			indexURL = args[i]
		case "--download-url":
			if i+1 >= len(args) {
				return fmt.Errorf("--download-url requires a value")
			}
			i++
			downloadURL = args[i]
		case "--help", "-h":
			fmt.Println("Usage: moonup config set-mirror [--index-url <url>] [--download-url <url>]")
			return nil
		default:
			return fmt.Errorf("unknown flag: %s", args[i])
		}
	}
	if indexURL == "" && downloadURL == "" {
		return fmt.Errorf("set-mirror requires --index-url or --download-url")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cfg, configDir, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	if indexURL != "" {
		cfg.Mirror.IndexURL = indexURL
	}
	if downloadURL != "" {
		cfg.Mirror.DownloadBaseURL = downloadURL
	}

	path := filepath.Join(configDir, config.FileName)
	if err := config.Save(path, cfg); err != nil {
		return err
	}
	fmt.Printf("Mirror configuration written to %s\n", path)
	return nil
}

func runConfigReset() error {
	configDir, err := getConfigDir()
	if err != nil {
		return err
	}

	path := filepath.Join(configDir, config.FileName)
	if err := config.Save(path, config.Default()); err != nil {
		return err
	}
	fmt.Printf("Configuration reset to defaults at %s\n", path)
	return nil
}

func printConfigHelp() {
	fmt.Println("Usage: moonup config [action]")
	fmt.Println()
	fmt.Println("Actions:")
	fmt.Println("  show                 Show the effective configuration (default)")
	fmt.Println("  path                 Print the config file path")
	fmt.Println("  set-mirror           Set mirror index/download URLs")
	fmt.Println("  reset                Reset the config file to defaults")
}
