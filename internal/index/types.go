// Package index fetches and parses toolchain release indexes.
//
// An index is a JSON array of version records, served over HTTP or read
// from a local file or mirror directory. Loosely-typed index documents are
// validated into strict VersionRecord values at this boundary; entries that
// fail validation are skipped and counted, never propagated inward.
package index

import (
	"sort"
	"time"
)

// Artifact is one platform-specific release file.
type Artifact struct {
	// Name is the artifact filename, e.g. "moonbit-v0.1.20241223+62b9a1a85-linux-x64.tar.gz"
	Name string `json:"name"`
	// URL is the full download URL. May be empty, in which case callers
	// construct it from the configured download base URL.
	URL string `json:"url,omitempty"`
	// SHA256 is the hex-encoded checksum of the artifact (optional).
	SHA256 string `json:"sha256,omitempty"`
}

// VersionRecord describes one toolchain release. Records are immutable
// once parsed.
type VersionRecord struct {
	// Version uniquely identifies the release, e.g. "0.1.20241223+62b9a1a85"
	Version string `json:"version"`
	// ReleasedAt is the release timestamp.
	ReleasedAt time.Time `json:"released_at"`
	// Artifacts maps platform keys ("linux-x64", "darwin-arm64", ...) to
	// release files.
	Artifacts map[string]Artifact `json:"artifacts"`
}

// Artifact returns the artifact for a platform key.
func (r *VersionRecord) Artifact(platformKey string) (Artifact, bool) {
	a, ok := r.Artifacts[platformKey]
	return a, ok
}

// Snapshot is an ordered set of version records from one index source.
// Records are unique by version, ordered by release timestamp descending
// with ties broken by version descending.
type Snapshot struct {
	// Records in snapshot order.
	Records []VersionRecord
	// Skipped counts entries dropped during parsing (malformed or duplicate).
	Skipped int
	// Source is the URL or path the snapshot was fetched from.
	Source string
}

// List returns the first limit records in snapshot order.
// A limit <= 0 returns all records.
func (s *Snapshot) List(limit int) []VersionRecord {
	if limit <= 0 || limit > len(s.Records) {
		limit = len(s.Records)
	}
	return s.Records[:limit]
}

// Latest returns the most recent record, or false if the snapshot is empty.
func (s *Snapshot) Latest() (VersionRecord, bool) {
	if len(s.Records) == 0 {
		return VersionRecord{}, false
	}
	return s.Records[0], true
}

// Find returns the record for an exact version identifier.
func (s *Snapshot) Find(version string) (VersionRecord, bool) {
	for _, r := range s.Records {
		if r.Version == version {
			return r, true
		}
	}
	return VersionRecord{}, false
}

// Versions returns the set of version identifiers in the snapshot.
func (s *Snapshot) Versions() map[string]struct{} {
	set := make(map[string]struct{}, len(s.Records))
	for _, r := range s.Records {
		set[r.Version] = struct{}{}
	}
	return set
}

// sortRecords orders records by release timestamp descending, ties broken
// by version descending. The tie-break keeps ordering deterministic for
// same-day releases.
func sortRecords(records []VersionRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].ReleasedAt.Equal(records[j].ReleasedAt) {
			return records[i].ReleasedAt.After(records[j].ReleasedAt)
		}
		return records[i].Version > records[j].Version
	})
}
