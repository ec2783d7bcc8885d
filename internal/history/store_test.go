package history

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestRecordAndAll(t *testing.T) {
	store := NewStore(t.TempDir())

	versions := []string{"v1", "v2", "v3"}
	for i, v := range versions {
		action := ActionUpdate
		if i == 0 {
			action = ActionInstall
		}
		if err := store.Record(Entry{Version: v, Action: action, Source: SourceRemote}); err != nil {
			t.Fatalf("Record(%s) failed: %v", v, err)
		}
	}

	entries, err := store.All()
	if err != nil {
		t.Fatalf("All failed: %v", err)
	}
	if len(entries) != len(versions) {
		t.Fatalf("len(All()) = %d, want %d", len(entries), len(versions))
	}
	for i, e := range entries {
		if e.Version != versions[i] {
			t.Errorf("entry %d version = %s, want %s", i, e.Version, versions[i])
		}
		if e.ID == "" {
			t.Errorf("entry %d missing ID", i)
		}
		if e.Timestamp.IsZero() {
			t.Errorf("entry %d missing timestamp", i)
		}
	}

	current, ok, err := store.Current()
	if err != nil {
		t.Fatalf("Current failed: %v", err)
	}
	if !ok {
		t.Fatal("Current reported no entries")
	}
	if current.Version != "v3" {
		t.Errorf("Current version = %s, want v3", current.Version)
	}
}

func TestCurrentEmpty(t *testing.T) {
	store := NewStore(t.TempDir())

	_, ok, err := store.Current()
	if err != nil {
		t.Fatalf("Current failed: %v", err)
	}
	if ok {
		t.Error("Current should report no entries for an empty store")
	}

	entries, err := store.All()
	if err != nil {
		t.Fatalf("All failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("All returned %d entries for an empty store", len(entries))
	}
}

func TestCurrentAfterRollback(t *testing.T) {
	store := NewStore(t.TempDir())

	steps := []Entry{
		{Version: "v1", Action: ActionInstall, Source: SourceRemote},
		{Version: "v2", Action: ActionUpdate, Source: SourceRemote},
		{Version: "v1", Action: ActionRollback, Source: SourceRemote},
	}
	for _, e := range steps {
		if err := store.Record(e); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	current, ok, err := store.Current()
	if err != nil || !ok {
		t.Fatalf("Current failed: ok=%v err=%v", ok, err)
	}
	if current.Version != "v1" || current.Action != ActionRollback {
		t.Errorf("Current = %s/%s, want v1/rollback", current.Version, current.Action)
	}
}

func TestRecordValidation(t *testing.T) {
	store := NewStore(t.TempDir())

	if err := store.Record(Entry{Action: ActionInstall}); err == nil {
		t.Error("expected error for missing version")
	}
	if err := store.Record(Entry{Version: "v1"}); err == nil {
		t.Error("expected error for missing action")
	}
}

func TestFind(t *testing.T) {
	store := NewStore(t.TempDir())

	entries := []Entry{
		{Version: "v1", Action: ActionInstall, Source: SourceRemote},
		{Version: "v2", Action: ActionUpdate, Source: "/srv/mirror"},
	}
	for _, e := range entries {
		if err := store.Record(e); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	entry, ok, err := store.Find("v2")
	if err != nil || !ok {
		t.Fatalf("Find(v2) failed: ok=%v err=%v", ok, err)
	}
	if entry.Source != "/srv/mirror" {
		t.Errorf("Find(v2) source = %q, want /srv/mirror", entry.Source)
	}

	if _, ok, _ := store.Find("v9"); ok {
		t.Error("Find(v9) should not succeed")
	}
}

func TestSaveIsAtomic(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)

	if err := store.Record(Entry{Version: "v1", Action: ActionInstall, Source: SourceRemote}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	// A leftover temp file from a crashed write must not affect reads.
	if err := os.WriteFile(store.Path()+".tmp", []byte("{garbage"), 0o600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}

	entries, err := store.All()
	if err != nil {
		t.Fatalf("All failed with stray temp file: %v", err)
	}
	if len(entries) != 1 || entries[0].Version != "v1" {
		t.Errorf("unexpected entries: %+v", entries)
	}

	// The document on disk is always complete, valid JSON.
	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		t.Fatalf("read history file: %v", err)
	}
	var doc struct {
		Entries []Entry `json:"entries"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("history file is not valid JSON: %v", err)
	}
}

func TestRecordPreservesExplicitFields(t *testing.T) {
	store := NewStore(t.TempDir())

	ts := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	entry := Entry{ID: "fixed-id", Version: "v1", Action: ActionInstall, Source: SourceRemote, Timestamp: ts}
	if err := store.Record(entry); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	current, _, err := store.Current()
	if err != nil {
		t.Fatalf("Current failed: %v", err)
	}
	if current.ID != "fixed-id" {
		t.Errorf("ID = %q, want fixed-id", current.ID)
	}
	if !current.Timestamp.Equal(ts) {
		t.Errorf("Timestamp = %v, want %v", current.Timestamp, ts)
	}
}
