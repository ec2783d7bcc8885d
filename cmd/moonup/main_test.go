package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/moonup-dev/moonup/internal/config"
	"github.com/moonup-dev/moonup/internal/history"
	"github.com/moonup-dev/moonup/internal/testutil"
)

func TestGetConfigDirFromEnv(t *testing.T) {
	testutil.SetupTestEnv(t)

	dir, err := getConfigDir()
	if err != nil {
		t.Fatalf("getConfigDir failed: %v", err)
	}
	if dir != os.Getenv(EnvConfigDir) {
		t.Errorf("getConfigDir = %q, want %q", dir, os.Getenv(EnvConfigDir))
	}
}

func TestGetInstallDirFromEnv(t *testing.T) {
	testutil.SetupTestEnv(t)

	dir, err := getInstallDir()
	if err != nil {
		t.Fatalf("getInstallDir failed: %v", err)
	}
	if dir != os.Getenv(EnvMoonHome) {
		t.Errorf("getInstallDir = %q, want %q", dir, os.Getenv(EnvMoonHome))
	}
}

func TestRunCurrentNotInstalled(t *testing.T) {
	testutil.SetupTestEnv(t)

	err := runCurrent(nil)
	if err == nil {
		t.Fatal("expected error when nothing is installed")
	}
	if !strings.Contains(err.Error(), "not currently installed") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestRunCurrentAfterRecord(t *testing.T) {
	testutil.SetupTestEnv(t)

	store := history.NewStore(os.Getenv(EnvConfigDir))
	if err := store.Record(history.Entry{
		Version: "0.1.1",
		Action:  history.ActionInstall,
		Source:  history.SourceRemote,
	}); err != nil {
		t.Fatal(err)
	}

	if err := runCurrent(nil); err != nil {
		t.Errorf("runCurrent failed: %v", err)
	}
}

func TestRunHistoryEmpty(t *testing.T) {
	testutil.SetupTestEnv(t)

	if err := runHistory(nil); err != nil {
		t.Errorf("runHistory on empty store failed: %v", err)
	}
}

func TestRunConfigReset(t *testing.T) {
	testutil.SetupTestEnv(t)

	if err := runConfig([]string{"reset"}); err != nil {
		t.Fatalf("config reset failed: %v", err)
	}

	path := filepath.Join(os.Getenv(EnvConfigDir), config.FileName)
	if _, err := os.Stat(path); err != nil {
		t.Errorf("config file not written: %v", err)
	}
}

func TestRunConfigSetMirror(t *testing.T) {
	testutil.SetupTestEnv(t)

	err := runConfig([]string{"set-mirror", "--index-url", "https://mirror.internal/index.json"})
	if err != nil {
		t.Fatalf("set-mirror failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(os.Getenv(EnvConfigDir), config.FileName))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "https://mirror.internal/index.json") {
		t.Errorf("written config missing new index URL:\n%s", data)
	}
}

func TestRunConfigSetMirrorRequiresValue(t *testing.T) {
	testutil.SetupTestEnv(t)

	if err := runConfig([]string{"set-mirror"}); err == nil {
		t.Error("expected error for set-mirror without flags")
	}
	if err := runConfig([]string{"set-mirror", "--index-url"}); err == nil {
		t.Error("expected error for --index-url without a value")
	}
}

func TestRunConfigUnknownAction(t *testing.T) {
	testutil.SetupTestEnv(t)

	if err := runConfig([]string{"frobnicate"}); err == nil {
		t.Error("expected error for unknown action")
	}
}

func TestRunMirrorCreateRequiresPath(t *testing.T) {
	testutil.SetupTestEnv(t)

	if err := runMirrorCreate(nil); err == nil {
		t.Error("expected error for mirror create without a path")
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{2048, "2.0 KiB"},
		{3 * 1024 * 1024, "3.0 MiB"},
		{5 * 1024 * 1024 * 1024, "5.0 GiB"},
	}

	for _, tt := range tests {
		if got := formatBytes(tt.in); got != tt.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
