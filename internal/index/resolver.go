package index

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// DefaultTimeout is the HTTP request timeout for index fetches.
	DefaultTimeout = 30 * time.Second
	// DefaultUserAgent is the User-Agent header sent with requests.
	DefaultUserAgent = "moonup/1.0"
	// maxIndexSize caps how much index document is read (indexes are small).
	maxIndexSize = 16 << 20
)

// IndexFileName is the index document name inside a mirror directory.
const IndexFileName = "index.json"

// Resolver fetches version indexes from remote URLs or local paths.
type Resolver struct {
	client    *http.Client
	userAgent string
}

// NewResolver creates a new index resolver.
func NewResolver() *Resolver {
	return &Resolver{
		client: &http.Client{
			Timeout: DefaultTimeout,
		},
		userAgent: DefaultUserAgent,
	}
}

// Fetch retrieves and parses the index at source. Source is an http(s) URL,
// a local index file, or a mirror directory (in which case index.json inside
// it is read). Malformed entries are skipped individually and counted in the
// returned snapshot; only transport and document-level failures are errors.
func (r *Resolver) Fetch(ctx context.Context, source string) (*Snapshot, error) {
	var (
		data []byte
		err  error
	)

	if isRemote(source) {
		data, err = r.fetchRemote(ctx, source)
	} else {
		data, err = readLocal(source)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch index %s: %w", source, err)
	}

	snapshot, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse index %s: %w", source, err)
	}
	snapshot.Source = source

	return snapshot, nil
}

// fetchRemote retrieves the index document over HTTP.
func (r *Resolver) fetchRemote(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxIndexSize))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	return data, nil
}

// readLocal reads the index document from a file or mirror directory.
func readLocal(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat index path: %w", err)
	}

	if info.IsDir() {
		path = filepath.Join(path, IndexFileName)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read index file: %w", err)
	}

	return data, nil
}

// rawRecord is the loosely-typed wire form of a version record. Unknown
// fields are ignored so minor schema drift does not fail the whole fetch.
type rawRecord struct {
	Version    string              `json:"version"`
	ReleasedAt string              `json:"released_at"`
	Artifacts  map[string]Artifact `json:"artifacts"`
}

// Parse validates a raw index document into a Snapshot. Entries missing a
// version or all artifact locations are skipped and counted, as are
// duplicate versions.
func Parse(data []byte) (*Snapshot, error) {
	var raw []rawRecord
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode index document: %w", err)
	}

	snapshot := &Snapshot{}
	seen := make(map[string]struct{}, len(raw))

	for _, entry := range raw {
		record, ok := validate(entry)
		if !ok {
			snapshot.Skipped++
			continue
		}
		if _, dup := seen[record.Version]; dup {
			snapshot.Skipped++
			continue
		}
		seen[record.Version] = struct{}{}
		snapshot.Records = append(snapshot.Records, record)
	}

	sortRecords(snapshot.Records)
	return snapshot, nil
}

// validate converts one raw entry into a strict VersionRecord.
// It fails closed: entries without a version or a usable artifact location
// are rejected.
func validate(entry rawRecord) (VersionRecord, bool) {
	if entry.Version == "" {
		return VersionRecord{}, false
	}

	artifacts := make(map[string]Artifact, len(entry.Artifacts))
	for key, a := range entry.Artifacts {
		if a.Name == "" && a.URL == "" {
			continue
		}
		artifacts[key] = a
	}
	if len(artifacts) == 0 {
		return VersionRecord{}, false
	}

	record := VersionRecord{
		Version:   entry.Version,
		Artifacts: artifacts,
	}

	if entry.ReleasedAt != "" {
		ts, err := parseTimestamp(entry.ReleasedAt)
		if err != nil {
			return VersionRecord{}, false
		}
		record.ReleasedAt = ts
	}

	return record, true
}

// parseTimestamp accepts RFC 3339 timestamps with or without a zone offset.
// Upstream indexes have historically emitted both forms.
func parseTimestamp(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	return time.Parse("2006-01-02T15:04:05", s)
}

// Marshal serializes records back into the index document format. The
// output round-trips through Parse with the same version set.
func Marshal(records []VersionRecord) ([]byte, error) {
	out := make([]rawRecord, 0, len(records))
	for _, r := range records {
		raw := rawRecord{
			Version:   r.Version,
			Artifacts: r.Artifacts,
		}
		if !r.ReleasedAt.IsZero() {
			raw.ReleasedAt = r.ReleasedAt.UTC().Format(time.RFC3339)
		}
		out = append(out, raw)
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal index: %w", err)
	}
	return data, nil
}

// isRemote reports whether source is an HTTP or HTTPS URL.
func isRemote(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}
