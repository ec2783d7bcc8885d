package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/moonup-dev/moonup/internal/mirror"
)

// runMirrorCreate handles `moonup mirror create`
func runMirrorCreate(args []string) error {
	mode := mirror.ModeLatest
	version := ""
	path := ""
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--all", "-a":
			mode = mirror.ModeAll
		case "--version":
			if i+1 >= len(args) {
				return fmt.Errorf("--version requires a value")
			}
			i++
			mode = mirror.ModeSpecific
			version = args[i]
		case "--help", "-h":
			fmt.Println("Usage: moonup mirror create <path> [--all | --version <v>]")
			fmt.Println()
			fmt.Println("Build a local mirror of the release index and artifacts.")
			fmt.Println("By default only the latest release is mirrored.")
			return nil
		default:
			if path != "" {
				return fmt.Errorf("unexpected argument: %s", args[i])
			}
			path = args[i]
		}
	}
	if path == "" {
		return fmt.Errorf("mirror create requires a target path")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	cfg, _, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	stats, err := mirror.NewManager(cfg, nil).Create(ctx, path, mode, version)
	if err != nil {
		return err
	}

	fmt.Printf("Mirror created at %s\n", path)
	fmt.Printf("  versions:   %d\n", stats.Versions)
	fmt.Printf("  downloaded: %d\n", stats.Downloaded)
	if stats.Skipped > 0 {
		fmt.Printf("  skipped:    %d (already present)\n", stats.Skipped)
	}
	return nil
}

// runMirrorInfo handles `moonup mirror info`
func runMirrorInfo(args []string) error {
	path := ""
	for _, arg := range args {
		switch arg {
		case "--help", "-h":
			fmt.Println("Usage: moonup mirror info <path>")
			return nil
		default:
			path = arg
		}
	}
	if path == "" {
		return fmt.Errorf("mirror info requires a path")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg, _, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	info, err := mirror.NewManager(cfg, nil).Stat(ctx, path)
	if err != nil {
		return err
	}
	if !info.Initialized {
		fmt.Printf("Mirror at %s is not set up\n", path)
		fmt.Println("Run 'moonup mirror create' to build it")
		return nil
	}

	fmt.Printf("Mirror at %s:\n", path)
	fmt.Printf("  versions:   %d\n", info.Versions)
	fmt.Printf("  disk usage: %s\n", formatBytes(info.DiskUsage))
	return nil
}

// runMirrorSync handles `moonup mirror sync`
func runMirrorSync(args []string) error {
	path := ""
	for _, arg := range args {
		switch arg {
		case "--help", "-h":
			fmt.Println("Usage: moonup mirror sync <path>")
			fmt.Println()
			fmt.Println("Download versions the upstream index has and the mirror lacks.")
			fmt.Println("Sync never removes local versions.")
			return nil
		default:
			path = arg
		}
	}
	if path == "" {
		return fmt.Errorf("mirror sync requires a path")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	cfg, _, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	stats, err := mirror.NewManager(cfg, nil).Sync(ctx, path)
	if err != nil {
		return err
	}
	if stats.UpToDate {
		fmt.Printf("Mirror at %s is up to date\n", path)
		return nil
	}
	fmt.Printf("Mirror synced: %d new versions added\n", stats.Additions)
	return nil
}

// runMirrorServe handles `moonup mirror serve`
func runMirrorServe(args []string) error {
	path := ""
	addr := "127.0.0.1:8000"
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--addr":
			if i+1 >= len(args) {
				return fmt.Errorf("--addr requires a value")
			}
			i++
			addr = args[i]
		case "--help", "-h":
			fmt.Println("Usage: moonup mirror serve <path> [--addr <host:port>]")
			return nil
		default:
			path = args[i]
		}
	}
	if path == "" {
		return fmt.Errorf("mirror serve requires a path")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cfg, _, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Serving mirror %s on http://%s (Ctrl-C to stop)\n", path, addr)
	if err := mirror.NewManager(cfg, nil).Serve(ctx, path, addr); err != nil && err != context.Canceled {
		return err
	}
	return nil
}

// formatBytes renders a byte count in a human-readable unit.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
