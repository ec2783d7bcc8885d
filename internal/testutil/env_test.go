package testutil_test

import (
	"os"
	"strings"
	"testing"

	"github.com/moonup-dev/moonup/internal/testutil"
)

func TestSetupTestEnv(t *testing.T) {
	testutil.SetupTestEnv(t)

	configDir := os.Getenv("MOONUP_CONFIG_DIR")
	if configDir == "" {
		t.Error("MOONUP_CONFIG_DIR not set")
	}
	if _, err := os.Stat(configDir); os.IsNotExist(err) {
		t.Errorf("config directory %s does not exist", configDir)
	}

	moonHome := os.Getenv("MOON_HOME")
	if moonHome == "" {
		t.Error("MOON_HOME not set")
	}

	if os.Getenv("MOONUP_TEST_MODE") != "1" {
		t.Errorf("MOONUP_TEST_MODE = %q, want \"1\"", os.Getenv("MOONUP_TEST_MODE"))
	}

	home, err := os.UserHomeDir()
	if err == nil {
		if strings.HasPrefix(configDir, home+"/.config") {
			t.Errorf("config dir %s points at the real user config", configDir)
		}
	}
}
