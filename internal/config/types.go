// Package config provides Lua configuration parsing and generation for
// moonup.
//
// It uses gopher-lua for safe, sandboxed Lua execution with platform
// detection integration, so configuration values can vary by host
// platform. The core never reads configuration globally: cmd loads one
// immutable Config value and threads it through every component.
package config

import (
	"fmt"
	"strings"
)

// Config is the complete moonup configuration.
type Config struct {
	// Mirror holds index and artifact source settings
	Mirror MirrorConfig `json:"mirror"`

	// Installation holds install lifecycle settings
	Installation InstallationConfig `json:"installation"`
}

// MirrorConfig holds index and artifact source settings.
type MirrorConfig struct {
	// IndexURL is the release index location (URL or local path)
	IndexURL string `json:"index_url"`

	// DownloadBaseURL is the base URL artifacts are downloaded from when
	// an index entry does not carry a full URL
	DownloadBaseURL string `json:"download_base_url"`
}

// InstallationConfig holds install lifecycle settings.
type InstallationConfig struct {
	// BackupEnabled controls the pre-update snapshot
	BackupEnabled bool `json:"backup_enabled"`

	// VerifyChecksums controls artifact verification
	VerifyChecksums bool `json:"verify_checksums"`

	// BackupRetention is the number of backups to keep; 0 keeps all
	BackupRetention int `json:"backup_retention"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Mirror: MirrorConfig{
			IndexURL:        "https://raw.githubusercontent.com/chawyehsu/moonbit-binaries/gh-pages/index.json",
			DownloadBaseURL: "https://github.com/chawyehsu/moonbit-binaries/releases/download",
		},
		Installation: InstallationConfig{
			BackupEnabled:   true,
			VerifyChecksums: true,
			BackupRetention: 0,
		},
	}
}

// Validate performs basic validation on a Config.
func (c *Config) Validate() error {
	if c.Mirror.IndexURL == "" {
		return &ValidationError{Field: "mirror.index_url", Message: "must not be empty"}
	}
	if c.Mirror.DownloadBaseURL == "" {
		return &ValidationError{Field: "mirror.download_base_url", Message: "must not be empty"}
	}
	if strings.ContainsAny(c.Mirror.IndexURL, " \t\n") {
		return &ValidationError{Field: "mirror.index_url", Message: "must not contain whitespace"}
	}
	if strings.ContainsAny(c.Mirror.DownloadBaseURL, " \t\n") {
		return &ValidationError{Field: "mirror.download_base_url", Message: "must not contain whitespace"}
	}
	if c.Installation.BackupRetention < 0 {
		return &ValidationError{Field: "installation.backup_retention", Message: "must not be negative"}
	}
	return nil
}

// ValidationError describes a config field that failed validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config field %s: %s", e.Field, e.Message)
}
