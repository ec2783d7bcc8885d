package installer

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/moonup-dev/moonup/internal/backup"
	"github.com/moonup-dev/moonup/internal/config"
	"github.com/moonup-dev/moonup/internal/history"
	"github.com/moonup-dev/moonup/internal/verify"
)

const testPlatform = "linux-x64"

// makeArchive builds an in-memory tar.gz with the given files.
func makeArchive(t *testing.T, files map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, content := range files {
		hdr := &tar.Header{
			Name: name,
			Mode: 0755,
			Size: int64(len(content)),
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// upstream is a fake release server: an index document plus archives.
// Setting frozenIndex pins the served index so archives can be tampered
// with after their checksums were published.
type upstream struct {
	t           *testing.T
	server      *httptest.Server
	releases    map[string][]byte // version -> archive
	order       []string          // versions, oldest first
	frozenIndex []byte
}

func newUpstream(t *testing.T) *upstream {
	t.Helper()
	u := &upstream{t: t, releases: make(map[string][]byte)}
	mux := http.NewServeMux()
	mux.HandleFunc("/index.json", func(w http.ResponseWriter, r *http.Request) {
		if u.frozenIndex != nil {
			w.Write(u.frozenIndex)
			return
		}
		w.Write(u.indexJSON())
	})
	mux.HandleFunc("/releases/", func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/releases/"), "/")
		if len(parts) != 2 {
			http.NotFound(w, r)
			return
		}
		version, name := parts[0], parts[1]
		archive, ok := u.releases[version]
		if !ok || name != archiveName(version) {
			http.NotFound(w, r)
			return
		}
		w.Write(archive)
	})
	u.server = httptest.NewServer(mux)
	t.Cleanup(u.server.Close)
	return u
}

func archiveName(version string) string {
	return "moonbit-" + version + "-" + testPlatform + ".tar.gz"
}

// addRelease registers a version with one file tree. Later calls are
// newer releases.
func (u *upstream) addRelease(version string, files map[string]string) {
	u.releases[version] = makeArchive(u.t, files)
	u.order = append(u.order, version)
}

func (u *upstream) indexJSON() []byte {
	type artifact struct {
		Name   string `json:"name"`
		URL    string `json:"url"`
		SHA256 string `json:"sha256"`
	}
	type record struct {
		Version    string              `json:"version"`
		ReleasedAt string              `json:"released_at"`
		Artifacts  map[string]artifact `json:"artifacts"`
	}

	var records []record
	for i, version := range u.order {
		sum := sha256.Sum256(u.releases[version])
		records = append(records, record{
			Version:    version,
			ReleasedAt: fmt.Sprintf("2024-01-%02dT00:00:00Z", i+1),
			Artifacts: map[string]artifact{
				testPlatform: {
					Name:   archiveName(version),
					URL:    u.server.URL + "/releases/" + version + "/" + archiveName(version),
					SHA256: hex.EncodeToString(sum[:]),
				},
			},
		})
	}
	data, err := json.Marshal(records)
	if err != nil {
		u.t.Fatal(err)
	}
	return data
}

func (u *upstream) indexURL() string {
	return u.server.URL + "/index.json"
}

func newTestEngine(t *testing.T, indexURL string) *Engine {
	t.Helper()

	cfg := config.Default()
	cfg.Mirror.IndexURL = indexURL

	root := t.TempDir()
	eng, err := New(Options{
		Config:     cfg,
		ConfigDir:  filepath.Join(root, "config"),
		InstallDir: filepath.Join(root, ".moon"),
		Platform:   testPlatform,
	})
	if err != nil {
		t.Fatal(err)
	}
	return eng
}

func readInstalled(t *testing.T, eng *Engine, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(eng.installDir, name))
	if err != nil {
		t.Fatalf("read installed file %s: %v", name, err)
	}
	return string(data)
}

func TestUpdateFreshInstall(t *testing.T) {
	up := newUpstream(t)
	up.addRelease("0.1.1", map[string]string{"bin/moon": "moon v1"})
	eng := newTestEngine(t, up.indexURL())

	result, err := eng.Update(context.Background(), Latest)
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	if result.Version != "0.1.1" {
		t.Errorf("Version = %q, want 0.1.1", result.Version)
	}
	if result.Action != history.ActionInstall {
		t.Errorf("Action = %q, want install", result.Action)
	}
	if result.Degraded || result.UpToDate {
		t.Errorf("unexpected degraded/up-to-date flags: %+v", result)
	}
	if result.BackupPath != "" {
		t.Errorf("first install should not create a backup, got %q", result.BackupPath)
	}
	if eng.State() != StateDone {
		t.Errorf("state = %v, want done", eng.State())
	}
	if got := readInstalled(t, eng, "bin/moon"); got != "moon v1" {
		t.Errorf("installed bin/moon = %q", got)
	}

	current, ok, err := eng.History().Current()
	if err != nil || !ok {
		t.Fatalf("Current: ok=%v err=%v", ok, err)
	}
	if current.Version != "0.1.1" || current.Action != history.ActionInstall {
		t.Errorf("current entry = %+v", current)
	}
	if current.Source != history.SourceRemote {
		t.Errorf("Source = %q, want remote", current.Source)
	}
}

func TestUpdateCreatesBackupAndRecordsUpdate(t *testing.T) {
	up := newUpstream(t)
	up.addRelease("0.1.1", map[string]string{"bin/moon": "moon v1"})
	eng := newTestEngine(t, up.indexURL())

	if _, err := eng.Update(context.Background(), "0.1.1"); err != nil {
		t.Fatal(err)
	}

	up.addRelease("0.1.2", map[string]string{"bin/moon": "moon v2"})
	result, err := eng.Update(context.Background(), Latest)
	if err != nil {
		t.Fatalf("second Update failed: %v", err)
	}

	if result.Action != history.ActionUpdate {
		t.Errorf("Action = %q, want update", result.Action)
	}
	if result.BackupPath == "" {
		t.Fatal("expected a backup before the update")
	}
	if _, err := os.Stat(result.BackupPath); err != nil {
		t.Errorf("backup path missing: %v", err)
	}
	if got := readInstalled(t, eng, "bin/moon"); got != "moon v2" {
		t.Errorf("installed bin/moon = %q", got)
	}

	entries, err := eng.History().All()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("history has %d entries, want 2", len(entries))
	}
}

func TestUpdateAlreadyCurrent(t *testing.T) {
	up := newUpstream(t)
	up.addRelease("0.1.1", map[string]string{"bin/moon": "moon v1"})
	eng := newTestEngine(t, up.indexURL())

	if _, err := eng.Update(context.Background(), Latest); err != nil {
		t.Fatal(err)
	}

	result, err := eng.Update(context.Background(), Latest)
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if !result.UpToDate {
		t.Error("expected up-to-date result")
	}

	entries, err := eng.History().All()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("up-to-date run should not append history, got %d entries", len(entries))
	}
}

func TestUpdateVersionNotFound(t *testing.T) {
	up := newUpstream(t)
	up.addRelease("0.1.1", map[string]string{"bin/moon": "moon v1"})
	eng := newTestEngine(t, up.indexURL())

	_, err := eng.Update(context.Background(), "9.9.9")
	if !errors.Is(err, ErrVersionNotFound) {
		t.Fatalf("err = %v, want ErrVersionNotFound", err)
	}

	var stateErr *StateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("expected StateError, got %T", err)
	}
	if stateErr.State != StateResolving {
		t.Errorf("failing state = %v, want resolving", stateErr.State)
	}
	if stateErr.BackupCreated {
		t.Error("no backup should exist for a resolve failure")
	}
}

func TestUpdateChecksumMismatchLeavesInstallUntouched(t *testing.T) {
	up := newUpstream(t)
	up.addRelease("0.1.1", map[string]string{"bin/moon": "moon v1"})
	eng := newTestEngine(t, up.indexURL())
	if _, err := eng.Update(context.Background(), Latest); err != nil {
		t.Fatal(err)
	}

	// Corrupt the stored archive after the index (with its checksum)
	// was published.
	up.addRelease("0.1.2", map[string]string{"bin/moon": "moon v2"})
	up.frozenIndex = up.indexJSON()
	up.releases["0.1.2"] = makeArchive(t, map[string]string{"bin/moon": "tampered"})

	_, err := eng.Update(context.Background(), "0.1.2")
	if !errors.Is(err, verify.ErrChecksumMismatch) {
		t.Fatalf("err = %v, want ErrChecksumMismatch", err)
	}

	var stateErr *StateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("expected StateError, got %T", err)
	}
	if stateErr.State != StateVerifying {
		t.Errorf("failing state = %v, want verifying", stateErr.State)
	}
	if got := readInstalled(t, eng, "bin/moon"); got != "moon v1" {
		t.Errorf("install dir mutated by failed verification: %q", got)
	}
}

func TestUpdateOfflineDegraded(t *testing.T) {
	up := newUpstream(t)
	up.addRelease("0.1.1", map[string]string{"bin/moon": "moon v1"})
	eng := newTestEngine(t, up.indexURL())
	if _, err := eng.Update(context.Background(), Latest); err != nil {
		t.Fatal(err)
	}

	// Index gone: resolving latest falls back to history.
	eng.cfg.Mirror.IndexURL = "http://127.0.0.1:0/index.json"

	result, err := eng.Update(context.Background(), Latest)
	if err != nil {
		t.Fatalf("degraded Update failed: %v", err)
	}
	if !result.Degraded {
		t.Error("expected degraded result")
	}
	if !result.UpToDate {
		t.Error("expected up-to-date result")
	}
	if result.Version != "0.1.1" {
		t.Errorf("Version = %q, want 0.1.1", result.Version)
	}
}

func TestUpdateOfflineUnknownVersionFails(t *testing.T) {
	eng := newTestEngine(t, "http://127.0.0.1:0/index.json")

	_, err := eng.Update(context.Background(), "0.1.5")
	if err == nil {
		t.Fatal("expected failure: offline with no matching history")
	}
	var stateErr *StateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("expected StateError, got %T", err)
	}
	if stateErr.State != StateResolving {
		t.Errorf("failing state = %v, want resolving", stateErr.State)
	}
}

func TestRollbackRestoresPreviousVersion(t *testing.T) {
	up := newUpstream(t)
	up.addRelease("0.1.1", map[string]string{"bin/moon": "moon v1", "lib/core": "core v1"})
	eng := newTestEngine(t, up.indexURL())
	if _, err := eng.Update(context.Background(), "0.1.1"); err != nil {
		t.Fatal(err)
	}

	up.addRelease("0.1.2", map[string]string{"bin/moon": "moon v2"})
	if _, err := eng.Update(context.Background(), "0.1.2"); err != nil {
		t.Fatal(err)
	}

	result, err := eng.Rollback(context.Background())
	if err != nil {
		t.Fatalf("Rollback failed: %v", err)
	}
	if result.Version != "0.1.1" {
		t.Errorf("restored version = %q, want 0.1.1", result.Version)
	}
	if got := readInstalled(t, eng, "bin/moon"); got != "moon v1" {
		t.Errorf("bin/moon = %q after rollback", got)
	}
	if got := readInstalled(t, eng, "lib/core"); got != "core v1" {
		t.Errorf("lib/core = %q after rollback", got)
	}

	current, ok, err := eng.History().Current()
	if err != nil || !ok {
		t.Fatalf("Current: ok=%v err=%v", ok, err)
	}
	if current.Version != "0.1.1" || current.Action != history.ActionRollback {
		t.Errorf("current entry = %+v, want rollback to 0.1.1", current)
	}
}

func TestRollbackWithoutBackup(t *testing.T) {
	eng := newTestEngine(t, "http://127.0.0.1:0/index.json")

	_, err := eng.Rollback(context.Background())
	if !errors.Is(err, backup.ErrNoBackup) {
		t.Fatalf("err = %v, want ErrNoBackup", err)
	}
	if _, statErr := os.Stat(eng.installDir); !os.IsNotExist(statErr) {
		t.Error("failed rollback should not create the install dir")
	}
}

func TestUpdateHeldLock(t *testing.T) {
	up := newUpstream(t)
	up.addRelease("0.1.1", map[string]string{"bin/moon": "moon v1"})
	eng := newTestEngine(t, up.indexURL())

	lock, err := AcquireLock(eng.configDir)
	if err != nil {
		t.Fatal(err)
	}
	defer lock.Release()

	_, err = eng.Update(context.Background(), Latest)
	if !errors.Is(err, ErrLockExists) {
		t.Fatalf("err = %v, want ErrLockExists", err)
	}
	var stateErr *StateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("expected StateError, got %T", err)
	}
	if stateErr.State != StateBackingUp {
		t.Errorf("failing state = %v, want backing-up", stateErr.State)
	}
}

func TestUpdateRunsHook(t *testing.T) {
	up := newUpstream(t)
	up.addRelease("0.1.1", map[string]string{"bin/moon": "moon v1"})
	eng := newTestEngine(t, up.indexURL())

	var hookDir string
	eng.hook = func(installDir string) error {
		hookDir = installDir
		return nil
	}

	if _, err := eng.Update(context.Background(), Latest); err != nil {
		t.Fatal(err)
	}
	if hookDir != eng.installDir {
		t.Errorf("hook received %q, want %q", hookDir, eng.installDir)
	}
}

func TestUpdateHookFailureIsAdvisory(t *testing.T) {
	up := newUpstream(t)
	up.addRelease("0.1.1", map[string]string{"bin/moon": "moon v1"})
	eng := newTestEngine(t, up.indexURL())
	eng.hook = func(string) error { return errors.New("wrapper generation broke") }

	result, err := eng.Update(context.Background(), Latest)
	if err != nil {
		t.Fatalf("hook failure should not fail the update: %v", err)
	}
	if len(result.Notices) == 0 {
		t.Error("expected an advisory notice for the failed hook")
	}

	current, ok, err := eng.History().Current()
	if err != nil || !ok {
		t.Fatalf("Current: ok=%v err=%v", ok, err)
	}
	if current.Version != "0.1.1" {
		t.Errorf("install should still be recorded, got %+v", current)
	}
}
