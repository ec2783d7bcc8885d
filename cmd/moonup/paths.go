package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/moonup-dev/moonup/internal/config"
	"github.com/moonup-dev/moonup/internal/installer"
	"github.com/moonup-dev/moonup/internal/platform"
	"github.com/moonup-dev/moonup/internal/wrapper"
)

// Environment variables overriding the default locations.
const (
	EnvConfigDir = "MOONUP_CONFIG_DIR"
	EnvMoonHome  = "MOON_HOME"
)

// getConfigDir returns the moonup configuration directory.
func getConfigDir() (string, error) {
	// Check environment variable
	if dir := os.Getenv(EnvConfigDir); dir != "" {
		return dir, nil
	}

	// Default to ~/.config/moonup
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}

	return filepath.Join(homeDir, ".config", "moonup"), nil
}

// getInstallDir returns the toolchain install directory.
func getInstallDir() (string, error) {
	if dir := os.Getenv(EnvMoonHome); dir != "" {
		return dir, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}

	return filepath.Join(homeDir, ".moon"), nil
}

// loadConfig reads the user configuration, falling back to defaults
// when no config file exists.
func loadConfig(ctx context.Context) (*config.Config, string, error) {
	configDir, err := getConfigDir()
	if err != nil {
		return nil, "", err
	}

	cfg, err := config.Load(ctx, filepath.Join(configDir, config.FileName), platform.NewDetector())
	if err != nil {
		return nil, "", err
	}
	return cfg, configDir, nil
}

// newEngine builds an installer engine with the wrapper-setup hook.
func newEngine(ctx context.Context, cfg *config.Config, configDir string) (*installer.Engine, error) {
	installDir, err := getInstallDir()
	if err != nil {
		return nil, err
	}

	info, err := platform.NewDetector().Detect(ctx)
	if err != nil {
		return nil, fmt.Errorf("detect platform: %w", err)
	}

	return installer.New(installer.Options{
		Config:     cfg,
		ConfigDir:  configDir,
		InstallDir: installDir,
		Platform:   info.Key(),
		Hook: func(installDir string) error {
			_, err := wrapper.Setup(installDir)
			return err
		},
	})
}
