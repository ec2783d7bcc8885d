// Package backup snapshots and restores the toolchain install directory.
//
// Snapshots are full recursive copies: selective copies risk dropping
// registry or credential state that must survive a restore. Backups are
// tracked in an ordered manifest so "most recent" never depends on
// directory-listing order.
package backup

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// ErrNoBackup is returned by Restore when no backup has been recorded.
var ErrNoBackup = errors.New("no backup available: nothing to roll back")

// TimestampFormat tags backup directories with their creation time.
const TimestampFormat = "20060102_150405"

// ManifestFileName is the backup manifest inside the config directory.
const ManifestFileName = "backups.json"

// Backup describes one recorded snapshot of the install directory.
type Backup struct {
	// Path is the backup directory.
	Path string `json:"path"`
	// CreatedAt is the snapshot creation time.
	CreatedAt time.Time `json:"created_at"`
	// Version is the toolchain version installed when the snapshot was
	// taken, when known.
	Version string `json:"version,omitempty"`
}

// manifest is the on-disk list of backups in creation order.
type manifest struct {
	Backups []Backup `json:"backups"`
}

// Manager creates and restores install directory snapshots.
type Manager struct {
	manifestPath string
	// retention is the number of backups to keep; 0 keeps all.
	retention int
	now       func() time.Time
}

// NewManager creates a backup manager rooted at the given config directory.
// retention limits how many backups are kept after a snapshot; 0 keeps all.
func NewManager(configDir string, retention int) *Manager {
	return &Manager{
		manifestPath: filepath.Join(configDir, ManifestFileName),
		retention:    retention,
		now:          time.Now,
	}
}

// Snapshot copies installDir in full to a sibling backup directory and
// records it in the manifest. When installDir does not exist yet (first
// install) it succeeds as a no-op and returns nil.
func (m *Manager) Snapshot(installDir, version string) (*Backup, error) {
	if _, err := os.Stat(installDir); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("stat install directory %s: %w", installDir, err)
	}

	createdAt := m.now().UTC()
	backupPath := m.backupPath(installDir, createdAt)

	if err := CopyTree(installDir, backupPath); err != nil {
		os.RemoveAll(backupPath)
		return nil, fmt.Errorf("copy install directory to backup: %w", err)
	}

	b := Backup{Path: backupPath, CreatedAt: createdAt, Version: version}

	mf, err := m.loadManifest()
	if err != nil {
		os.RemoveAll(backupPath)
		return nil, err
	}
	mf.Backups = append(mf.Backups, b)

	pruned := m.prune(mf)
	if err := m.saveManifest(mf); err != nil {
		os.RemoveAll(backupPath)
		return nil, err
	}

	// Manifest no longer references pruned backups; now drop them from disk.
	for _, old := range pruned {
		os.RemoveAll(old.Path)
	}

	return &b, nil
}

// Latest returns the most recently created backup from the manifest.
func (m *Manager) Latest() (Backup, bool, error) {
	mf, err := m.loadManifest()
	if err != nil {
		return Backup{}, false, err
	}
	if len(mf.Backups) == 0 {
		return Backup{}, false, nil
	}
	return mf.Backups[len(mf.Backups)-1], true, nil
}

// All returns every recorded backup in creation order.
func (m *Manager) All() ([]Backup, error) {
	mf, err := m.loadManifest()
	if err != nil {
		return nil, err
	}
	return mf.Backups, nil
}

// Restore replaces installDir's contents with the most recent backup. The
// backup is staged into a temporary sibling first, then swapped in
// atomically; the backup itself stays on disk. Returns ErrNoBackup when
// the manifest is empty.
func (m *Manager) Restore(installDir string) (*Backup, error) {
	mf, err := m.loadManifest()
	if err != nil {
		return nil, err
	}
	if len(mf.Backups) == 0 {
		return nil, ErrNoBackup
	}

	b := mf.Backups[len(mf.Backups)-1]
	if _, err := os.Stat(b.Path); err != nil {
		return nil, fmt.Errorf("backup %s is not accessible: %w", b.Path, err)
	}

	staging := installDir + ".restore.tmp"
	os.RemoveAll(staging)
	if err := CopyTree(b.Path, staging); err != nil {
		os.RemoveAll(staging)
		return nil, fmt.Errorf("stage backup %s: %w", b.Path, err)
	}

	if err := SwapDir(staging, installDir); err != nil {
		os.RemoveAll(staging)
		return nil, fmt.Errorf("restore backup %s: %w", b.Path, err)
	}

	return &b, nil
}

// backupPath constructs the sibling backup directory path for installDir,
// e.g. /home/u/.moon -> /home/u/.moon.backup.20241223_101500.
func (m *Manager) backupPath(installDir string, createdAt time.Time) string {
	base := installDir + ".backup." + createdAt.Format(TimestampFormat)
	path := base
	// Same-second snapshots get a numeric suffix instead of colliding.
	for i := 1; ; i++ {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return path
		}
		path = fmt.Sprintf("%s_%d", base, i)
	}
}

// prune trims the manifest to the retention limit and returns the entries
// removed, oldest first. Retention 0 keeps everything.
func (m *Manager) prune(mf *manifest) []Backup {
	if m.retention <= 0 || len(mf.Backups) <= m.retention {
		return nil
	}
	cut := len(mf.Backups) - m.retention
	pruned := append([]Backup(nil), mf.Backups[:cut]...)
	mf.Backups = append([]Backup(nil), mf.Backups[cut:]...)
	return pruned
}

// loadManifest reads the manifest; a missing file is an empty manifest.
func (m *Manager) loadManifest() (*manifest, error) {
	data, err := os.ReadFile(m.manifestPath)
	if err != nil {
		if os.IsNotExist(err) {
			return &manifest{}, nil
		}
		return nil, fmt.Errorf("read backup manifest: %w", err)
	}

	var mf manifest
	if err := json.Unmarshal(data, &mf); err != nil {
		return nil, fmt.Errorf("unmarshal backup manifest %s: %w", m.manifestPath, err)
	}
	return &mf, nil
}

// saveManifest writes the manifest atomically (temp file then rename).
func (m *Manager) saveManifest(mf *manifest) error {
	dir := filepath.Dir(m.manifestPath)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create manifest directory: %w", err)
	}

	data, err := json.MarshalIndent(mf, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal backup manifest: %w", err)
	}

	tmpPath := m.manifestPath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return fmt.Errorf("write temporary backup manifest: %w", err)
	}
	if err := os.Rename(tmpPath, m.manifestPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename backup manifest: %w", err)
	}
	return nil
}

// CopyTree recursively copies src to dst, preserving file modes and
// symlinks. dst must not exist.
func CopyTree(src, dst string) error {
	srcInfo, err := os.Lstat(src)
	if err != nil {
		return fmt.Errorf("lstat %s: %w", src, err)
	}
	if !srcInfo.IsDir() {
		return fmt.Errorf("copy tree: %s is not a directory", src)
	}

	if err := os.MkdirAll(dst, srcInfo.Mode().Perm()); err != nil {
		return fmt.Errorf("create directory %s: %w", dst, err)
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		return fmt.Errorf("read directory %s: %w", src, err)
	}

	for _, entry := range entries {
		srcPath := filepath.Join(src, entry.Name())
		dstPath := filepath.Join(dst, entry.Name())

		info, err := entry.Info()
		if err != nil {
			return fmt.Errorf("stat %s: %w", srcPath, err)
		}

		switch {
		case info.Mode()&os.ModeSymlink != 0:
			target, err := os.Readlink(srcPath)
			if err != nil {
				return fmt.Errorf("read symlink %s: %w", srcPath, err)
			}
			if err := os.Symlink(target, dstPath); err != nil {
				return fmt.Errorf("create symlink %s: %w", dstPath, err)
			}
		case info.IsDir():
			if err := CopyTree(srcPath, dstPath); err != nil {
				return err
			}
		case info.Mode().IsRegular():
			if err := copyFile(srcPath, dstPath, info.Mode().Perm()); err != nil {
				return err
			}
		default:
			// Skip sockets, devices and other special files
			continue
		}
	}

	return nil
}

// copyFile copies one regular file preserving its permission bits.
func copyFile(src, dst string, perm os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy %s: %w", dst, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close %s: %w", dst, err)
	}
	return nil
}

// SwapDir atomically replaces liveDir with stagedDir. The old directory is
// moved aside before the staged one is renamed in, so an interrupted swap
// leaves either the fully-old or fully-new tree, never a mixture.
func SwapDir(stagedDir, liveDir string) error {
	oldDir := liveDir + ".old.tmp"
	os.RemoveAll(oldDir)

	hadLive := true
	if err := os.Rename(liveDir, oldDir); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("move live directory aside: %w", err)
		}
		hadLive = false
	}

	if err := os.Rename(stagedDir, liveDir); err != nil {
		// Put the old directory back so the live path stays valid.
		if hadLive {
			os.Rename(oldDir, liveDir)
		}
		return fmt.Errorf("move staged directory into place: %w", err)
	}

	if hadLive {
		if err := os.RemoveAll(oldDir); err != nil {
			return fmt.Errorf("remove old directory: %w", err)
		}
	}
	return nil
}
