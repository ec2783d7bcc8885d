// Package testutil provides utilities for testing moonup in isolation.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// SetupTestEnv creates isolated test directories for each test.
// This ensures moonup tests never touch:
// - The user's real MoonBit installation under ~/.moon
// - The user's moonup configuration and history
//
// The cleanup function is automatically handled by t.TempDir(),
// so callers don't need to manually clean up.
func SetupTestEnv(t *testing.T) {
	t.Helper()

	// Create temp directory (auto-cleaned by testing framework)
	tmpDir := t.TempDir()

	// Point moonup paths at the temp location
	t.Setenv("MOONUP_CONFIG_DIR", filepath.Join(tmpDir, "config"))
	t.Setenv("MOON_HOME", filepath.Join(tmpDir, ".moon"))

	// Mark as test mode
	t.Setenv("MOONUP_TEST_MODE", "1")

	if err := os.MkdirAll(filepath.Join(tmpDir, "config"), 0o750); err != nil {
		t.Fatalf("failed to create test config directory: %v", err)
	}
}
