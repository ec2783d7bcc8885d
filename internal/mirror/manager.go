// Package mirror builds and synchronizes a local copy of the release
// index and its artifacts.
//
// A mirror directory holds index.json plus releases/{version}/ artifact
// files. The index is only written after every referenced artifact has
// been downloaded, so a mirror's index never names an artifact that is
// not physically present. Sync only adds: entries absent upstream stay
// in the mirror, supporting offline and pinned use.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/moonup-dev/moonup/internal/config"
	"github.com/moonup-dev/moonup/internal/download"
	"github.com/moonup-dev/moonup/internal/index"
)

// ErrNotInitialized is returned by Sync when the mirror directory has no
// index document yet.
var ErrNotInitialized = errors.New("mirror not initialized: run 'moonup mirror create' first")

// ReleasesDirName is the artifact subdirectory inside a mirror.
const ReleasesDirName = "releases"

// DefaultWorkers bounds concurrent artifact downloads.
const DefaultWorkers = 4

// Mode selects which versions a mirror holds.
type Mode string

const (
	// ModeLatest mirrors only the newest release.
	ModeLatest Mode = "latest"
	// ModeAll mirrors every release in the upstream index.
	ModeAll Mode = "all"
	// ModeSpecific mirrors one named release.
	ModeSpecific Mode = "specific"
)

// Manager creates and synchronizes mirror directories.
type Manager struct {
	cfg        *config.Config
	resolver   *index.Resolver
	downloader *download.Downloader
	workers    int
	logger     config.Logger
}

// NewManager creates a mirror manager using the configured upstream.
func NewManager(cfg *config.Config, logger config.Logger) *Manager {
	if logger == nil {
		logger = config.NopLogger()
	}
	return &Manager{
		cfg:        cfg,
		resolver:   index.NewResolver(),
		downloader: download.NewDownloader(),
		workers:    DefaultWorkers,
		logger:     logger,
	}
}

// CreateStats reports what a Create call did.
type CreateStats struct {
	// Versions in the resulting mirror index.
	Versions int
	// Downloaded artifacts fetched in this run.
	Downloaded int
	// Skipped artifacts that were already present.
	Skipped int
}

// SyncStats reports what a Sync call did.
type SyncStats struct {
	// Additions is the number of index entries merged in.
	Additions int
	// Downloaded artifacts fetched in this run.
	Downloaded int
	// UpToDate is true when the upstream had nothing new.
	UpToDate bool
}

// Info describes a mirror directory.
type Info struct {
	// Initialized is false when the path holds no mirror index. That is
	// not an error: the caller reports "not set up".
	Initialized bool
	Path        string
	// Versions in the mirror index.
	Versions int
	// DiskUsage is the aggregate size in bytes of the mirror tree.
	DiskUsage int64
}

// Create builds a mirror at path containing the versions selected by
// mode. Re-running with the same mode is idempotent: artifacts already
// present are skipped without touching their modification timestamps.
func (m *Manager) Create(ctx context.Context, path string, mode Mode, version string) (*CreateStats, error) {
	if mode == ModeSpecific && version == "" {
		return nil, fmt.Errorf("mirror create: specific mode requires a version")
	}

	snap, err := m.resolver.Fetch(ctx, m.cfg.Mirror.IndexURL)
	if err != nil {
		return nil, fmt.Errorf("fetch upstream index: %w", err)
	}

	records, err := selectRecords(snap, mode, version)
	if err != nil {
		return nil, err
	}

	stats := &CreateStats{}
	downloaded, skipped, err := m.fetchArtifacts(ctx, path, records)
	stats.Downloaded = downloaded
	stats.Skipped = skipped
	if err != nil {
		return stats, err
	}

	if err := writeIndex(path, records); err != nil {
		return stats, err
	}
	stats.Versions = len(records)

	m.logger.Info("mirror created", "path", path, "versions", stats.Versions, "downloaded", stats.Downloaded, "skipped", stats.Skipped)
	return stats, nil
}

// Stat inspects the mirror at path. A missing mirror yields an
// uninitialized Info, not an error.
func (m *Manager) Stat(ctx context.Context, path string) (*Info, error) {
	info := &Info{Path: path}

	snap, err := m.resolver.Fetch(ctx, filepath.Join(path, index.IndexFileName))
	if err != nil {
		if isMissing(err) {
			return info, nil
		}
		return nil, fmt.Errorf("read mirror index: %w", err)
	}

	info.Initialized = true
	info.Versions = len(snap.Records)

	usage, err := diskUsage(path)
	if err != nil {
		return nil, fmt.Errorf("measure mirror %s: %w", path, err)
	}
	info.DiskUsage = usage
	return info, nil
}

// Sync brings the mirror at path up to date with the upstream index.
// Only new versions are added; the mirror never shrinks.
func (m *Manager) Sync(ctx context.Context, path string) (*SyncStats, error) {
	localPath := filepath.Join(path, index.IndexFileName)
	local, err := m.resolver.Fetch(ctx, localPath)
	if err != nil {
		if isMissing(err) {
			return nil, ErrNotInitialized
		}
		return nil, fmt.Errorf("read mirror index: %w", err)
	}

	upstream, err := m.resolver.Fetch(ctx, m.cfg.Mirror.IndexURL)
	if err != nil {
		return nil, fmt.Errorf("fetch upstream index: %w", err)
	}

	have := local.Versions()
	var additions []index.VersionRecord
	for _, rec := range upstream.Records {
		if _, ok := have[rec.Version]; !ok {
			additions = append(additions, rec)
		}
	}

	stats := &SyncStats{Additions: len(additions)}
	if len(additions) == 0 {
		stats.UpToDate = true
		m.logger.Info("mirror up to date", "path", path, "versions", len(local.Records))
		return stats, nil
	}

	downloaded, _, err := m.fetchArtifacts(ctx, path, additions)
	stats.Downloaded = downloaded
	if err != nil {
		return stats, err
	}

	merged := append(local.Records, additions...)
	if err := writeIndex(path, merged); err != nil {
		return stats, err
	}

	m.logger.Info("mirror synced", "path", path, "additions", stats.Additions)
	return stats, nil
}

// selectRecords filters the upstream snapshot by mode.
func selectRecords(snap *index.Snapshot, mode Mode, version string) ([]index.VersionRecord, error) {
	switch mode {
	case ModeLatest:
		rec, ok := snap.Latest()
		if !ok {
			return nil, fmt.Errorf("upstream index is empty")
		}
		return []index.VersionRecord{rec}, nil
	case ModeAll:
		return snap.List(0), nil
	case ModeSpecific:
		rec, ok := snap.Find(version)
		if !ok {
			return nil, fmt.Errorf("version %s not found in upstream index", version)
		}
		return []index.VersionRecord{rec}, nil
	default:
		return nil, fmt.Errorf("unknown mirror mode %q", mode)
	}
}

// artifactTask is one file to place in the mirror.
type artifactTask struct {
	url  string
	dest string
	name string
}

// fetchArtifacts downloads every artifact of every record into the
// mirror layout, skipping files that already exist. Downloads run on a
// bounded worker pool; destinations are unique per task, so no two
// workers ever write the same path.
func (m *Manager) fetchArtifacts(ctx context.Context, path string, records []index.VersionRecord) (downloaded, skipped int, err error) {
	var tasks []artifactTask
	for _, rec := range records {
		releaseDir := filepath.Join(path, ReleasesDirName, rec.Version)
		for _, artifact := range rec.Artifacts {
			name := artifact.Name
			if name == "" {
				name = filepath.Base(artifact.URL)
			}
			tasks = append(tasks, artifactTask{
				url:  m.artifactURL(rec, artifact),
				dest: filepath.Join(releaseDir, name),
				name: name,
			})
		}
	}

	taskCh := make(chan artifactTask)
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)

	workers := m.workers
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range taskCh {
				skip, err := m.downloader.FetchIfMissing(ctx, task.url, task.dest)
				mu.Lock()
				switch {
				case err != nil:
					if firstErr == nil {
						firstErr = fmt.Errorf("mirror artifact %s: %w", task.name, err)
					}
				case skip:
					skipped++
					m.logger.Debug("artifact already exists", "name", task.name)
				default:
					downloaded++
				}
				mu.Unlock()
			}
		}()
	}

	for _, task := range tasks {
		taskCh <- task
	}
	close(taskCh)
	wg.Wait()

	return downloaded, skipped, firstErr
}

// artifactURL mirrors the engine's URL construction for index entries
// that carry no full URL.
func (m *Manager) artifactURL(rec index.VersionRecord, artifact index.Artifact) string {
	if artifact.URL != "" {
		return artifact.URL
	}
	base := strings.TrimRight(m.cfg.Mirror.DownloadBaseURL, "/")
	return base + "/" + rec.Version + "/" + artifact.Name
}

// writeIndex serializes records to the mirror's index document with the
// write-temp-then-rename discipline.
func writeIndex(path string, records []index.VersionRecord) error {
	sorted := make([]index.VersionRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].ReleasedAt.Equal(sorted[j].ReleasedAt) {
			return sorted[i].ReleasedAt.After(sorted[j].ReleasedAt)
		}
		return sorted[i].Version > sorted[j].Version
	})

	data, err := index.Marshal(sorted)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(path, 0755); err != nil {
		return fmt.Errorf("create mirror dir: %w", err)
	}

	tmp, err := os.CreateTemp(path, ".index-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp index: %w", err)
	}
	tmpName := tmp.Name()
	cleanupNeeded := true
	defer func() {
		if cleanupNeeded {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("write temp index: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp index: %w", err)
	}
	if err := os.Rename(tmpName, filepath.Join(path, index.IndexFileName)); err != nil {
		return fmt.Errorf("rename temp index: %w", err)
	}
	cleanupNeeded = false
	return nil
}

// diskUsage sums file sizes under root.
func diskUsage(root string) (int64, error) {
	var total int64
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			info, err := d.Info()
			if err != nil {
				return err
			}
			total += info.Size()
		}
		return nil
	})
	return total, err
}

// isMissing reports whether err stems from a nonexistent index path.
func isMissing(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
