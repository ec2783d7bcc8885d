// Package history provides the durable, append-only record of install,
// update, and rollback events.
//
// The on-disk representation is a single JSON document written with the
// write-temp-then-atomic-replace discipline, so a crash mid-write never
// corrupts the previously persisted sequence.
package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Action is the kind of lifecycle event recorded.
type Action string

const (
	ActionInstall  Action = "install"
	ActionUpdate   Action = "update"
	ActionRollback Action = "rollback"
)

// SourceRemote marks entries installed from the upstream index; any other
// source value is the mirror path the artifact came from.
const SourceRemote = "remote"

// Entry is one recorded lifecycle event. For rollback entries, Version is
// the version that was restored, so the latest entry always names the
// version currently on disk.
type Entry struct {
	ID        string    `json:"id"`
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
	Action    Action    `json:"action"`
	Source    string    `json:"source"`
}

// document is the on-disk shape of the history file.
type document struct {
	Entries []Entry `json:"entries"`
}

// Store persists the event sequence at a fixed path.
type Store struct {
	path string
}

// FileName is the history document name inside the config directory.
const FileName = "history.json"

// NewStore creates a history store backed by the given config directory.
func NewStore(configDir string) *Store {
	return &Store{path: filepath.Join(configDir, FileName)}
}

// Record appends an entry durably. The entry is assigned an ID and a UTC
// timestamp if it has none.
func (s *Store) Record(entry Entry) error {
	if entry.Version == "" {
		return fmt.Errorf("record history entry: version is required")
	}
	if entry.Action == "" {
		return fmt.Errorf("record history entry: action is required")
	}
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	doc, err := s.load()
	if err != nil {
		return err
	}

	doc.Entries = append(doc.Entries, entry)
	return s.save(doc)
}

// Current returns the latest entry. The second return value is false when
// no event has been recorded yet.
func (s *Store) Current() (Entry, bool, error) {
	doc, err := s.load()
	if err != nil {
		return Entry{}, false, err
	}
	if len(doc.Entries) == 0 {
		return Entry{}, false, nil
	}
	return doc.Entries[len(doc.Entries)-1], true, nil
}

// All returns the full ordered sequence, oldest first.
func (s *Store) All() ([]Entry, error) {
	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	return doc.Entries, nil
}

// Find returns the most recent entry for a version identifier.
func (s *Store) Find(version string) (Entry, bool, error) {
	doc, err := s.load()
	if err != nil {
		return Entry{}, false, err
	}
	for i := len(doc.Entries) - 1; i >= 0; i-- {
		if doc.Entries[i].Version == version {
			return doc.Entries[i], true, nil
		}
	}
	return Entry{}, false, nil
}

// load reads the on-disk document. A missing file is an empty history.
func (s *Store) load() (*document, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &document{}, nil
		}
		return nil, fmt.Errorf("read history file: %w", err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal history file %s: %w", s.path, err)
	}
	return &doc, nil
}

// save writes the document atomically: temp file, fsync, rename, then a
// directory sync for durability.
func (s *Store) save(doc *document) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create history directory: %w", err)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}

	tmpPath := s.path + ".tmp"
	tmpFile, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("create temporary history file: %w", err)
	}

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temporary history file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync temporary history file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temporary history file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename history file: %w", err)
	}

	// Sync directory for durability
	df, err := os.Open(dir)
	if err == nil {
		if syncErr := df.Sync(); syncErr != nil {
			df.Close()
			return fmt.Errorf("sync history directory: %w", syncErr)
		}
		df.Close()
	}

	return nil
}

// Path returns the location of the on-disk history document.
func (s *Store) Path() string {
	return s.path
}
