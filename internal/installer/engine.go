// Package installer orchestrates the install/update/rollback lifecycle.
//
// An update runs through an explicit state machine: resolve the requested
// version against the index, download and verify the artifact, back up
// the live install, swap the staged tree into place atomically, and
// record the event in history. The live install directory is untouched
// until the backing-up state, so every earlier failure leaves the system
// exactly as it was. Mutating states are guarded by a lock file so two
// concurrent invocations cannot interleave writes to the same tree.
package installer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/moonup-dev/moonup/internal/backup"
	"github.com/moonup-dev/moonup/internal/config"
	"github.com/moonup-dev/moonup/internal/download"
	"github.com/moonup-dev/moonup/internal/history"
	"github.com/moonup-dev/moonup/internal/index"
	"github.com/moonup-dev/moonup/internal/verify"
)

// KeyringFileName is the trusted-keys file inside the config directory.
// When present, downloaded artifacts with a detached signature are
// verified against it.
const KeyringFileName = "keyring.gpg"

// Latest is the version identifier that resolves to the newest release.
const Latest = "latest"

// Hook runs after a successful swap, given the install path. A hook
// failure is advisory: the install itself already succeeded.
type Hook func(installDir string) error

// Options configures an Engine.
type Options struct {
	Config     *config.Config
	ConfigDir  string // lock, history, backup manifest, keyring
	InstallDir string // live toolchain tree
	Platform   string // artifact key, e.g. "linux-x64"
	Hook       Hook
	Logger     config.Logger
}

// Engine runs install lifecycle operations.
type Engine struct {
	cfg        *config.Config
	configDir  string
	installDir string
	platform   string
	hook       Hook
	logger     config.Logger

	resolver   *index.Resolver
	downloader *download.Downloader
	verifier   *verify.Verifier
	backups    *backup.Manager
	hist       *history.Store

	state State
}

// New creates an Engine from options. Config, ConfigDir, InstallDir and
// Platform are required.
func New(opts Options) (*Engine, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("installer: config is required")
	}
	if opts.ConfigDir == "" || opts.InstallDir == "" {
		return nil, fmt.Errorf("installer: config and install directories are required")
	}
	if opts.Platform == "" {
		return nil, fmt.Errorf("installer: platform key is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = config.NopLogger()
	}

	return &Engine{
		cfg:        opts.Config,
		configDir:  opts.ConfigDir,
		installDir: opts.InstallDir,
		platform:   opts.Platform,
		hook:       opts.Hook,
		logger:     logger,
		resolver:   index.NewResolver(),
		downloader: download.NewDownloader(),
		verifier:   verify.NewVerifier(filepath.Join(opts.ConfigDir, KeyringFileName)),
		backups:    backup.NewManager(opts.ConfigDir, opts.Config.Installation.BackupRetention),
		hist:       history.NewStore(opts.ConfigDir),
	}, nil
}

// State returns the engine's current lifecycle state.
func (e *Engine) State() State {
	return e.state
}

// History returns the engine's history store.
func (e *Engine) History() *history.Store {
	return e.hist
}

// Result describes a completed lifecycle operation.
type Result struct {
	// Version installed, updated to, or restored.
	Version string
	// Action recorded in history. Empty when UpToDate.
	Action history.Action
	// UpToDate is true when the requested version was already installed
	// and nothing was mutated.
	UpToDate bool
	// Degraded is true when the index was unreachable and the operation
	// fell back to history data.
	Degraded bool
	// BackupPath is the backup created before mutation, if any.
	BackupPath string
	// Notices are advisory messages (skipped verification, hook failure).
	Notices []string
}

// fail records the failing state and wraps err with it.
func (e *Engine) fail(backupCreated bool, err error) error {
	st := e.state
	e.state = StateFailed
	return &StateError{State: st, BackupCreated: backupCreated, Err: err}
}

// Update installs the requested version. version may be Latest or an
// explicit identifier. Installing the already-current version is a
// successful no-op.
func (e *Engine) Update(ctx context.Context, version string) (*Result, error) {
	if version == "" {
		version = Latest
	}
	result := &Result{}

	// Resolving
	e.state = StateResolving
	rec, resolvedVersion, degraded, err := e.resolve(ctx, version)
	if err != nil {
		return nil, e.fail(false, err)
	}
	result.Version = resolvedVersion
	result.Degraded = degraded

	current, hasCurrent, err := e.hist.Current()
	if err != nil {
		return nil, e.fail(false, err)
	}
	if hasCurrent && current.Version == resolvedVersion {
		e.logger.Info("already up to date", "version", resolvedVersion)
		result.UpToDate = true
		e.state = StateDone
		return result, nil
	}
	if rec == nil {
		// Degraded resolve can only satisfy the already-installed case.
		return nil, e.fail(false, fmt.Errorf("cannot install %s: index unreachable and version is not the current install", resolvedVersion))
	}

	artifact, ok := rec.Artifact(e.platform)
	if !ok {
		return nil, e.fail(false, fmt.Errorf("%w: version %s, platform %s", ErrNoArtifact, rec.Version, e.platform))
	}

	// Downloading
	e.state = StateDownloading
	tempDir, err := os.MkdirTemp("", "moonup-download-")
	if err != nil {
		return nil, e.fail(false, fmt.Errorf("create temp dir: %w", err))
	}
	defer os.RemoveAll(tempDir)

	archiveName := artifact.Name
	if archiveName == "" {
		archiveName = filepath.Base(artifact.URL)
	}
	archivePath := filepath.Join(tempDir, archiveName)
	if err := e.fetchArtifact(ctx, *rec, artifact, archivePath); err != nil {
		return nil, e.fail(false, err)
	}

	// Verifying
	e.state = StateVerifying
	if e.cfg.Installation.VerifyChecksums {
		if notice, err := e.verifyArtifact(ctx, *rec, artifact, archivePath); err != nil {
			return nil, e.fail(false, err)
		} else if notice != "" {
			result.Notices = append(result.Notices, notice)
		}
	}

	// Mutating states are guarded by the install lock.
	e.state = StateBackingUp
	lock, err := AcquireLock(e.configDir)
	if err != nil {
		return nil, e.fail(false, err)
	}
	defer lock.Release()

	backupCreated := false
	if e.cfg.Installation.BackupEnabled {
		b, err := e.backups.Snapshot(e.installDir, current.Version)
		if err != nil {
			return nil, e.fail(false, fmt.Errorf("backup %s: %w", e.installDir, err))
		}
		if b != nil {
			backupCreated = true
			result.BackupPath = b.Path
			e.logger.Info("backup created", "path", b.Path)
		}
	}

	// Swapping
	e.state = StateSwapping
	stagingDir := e.installDir + ".staged.tmp"
	os.RemoveAll(stagingDir)
	if err := extractTarGz(archivePath, stagingDir); err != nil {
		os.RemoveAll(stagingDir)
		return nil, e.fail(backupCreated, fmt.Errorf("extract %s: %w", artifact.Name, err))
	}
	if err := backup.SwapDir(stagingDir, e.installDir); err != nil {
		os.RemoveAll(stagingDir)
		return nil, e.fail(backupCreated, fmt.Errorf("swap install dir %s: %w", e.installDir, err))
	}

	if e.hook != nil {
		if err := e.hook(e.installDir); err != nil {
			e.logger.Warn("post-install hook failed", "error", err)
			result.Notices = append(result.Notices, fmt.Sprintf("post-install hook failed: %v", err))
		}
	}

	// Recording
	e.state = StateRecording
	action := history.ActionUpdate
	if !hasCurrent {
		action = history.ActionInstall
	}
	result.Action = action
	if err := e.hist.Record(history.Entry{
		Version: rec.Version,
		Action:  action,
		Source:  e.source(),
	}); err != nil {
		return nil, e.fail(backupCreated, fmt.Errorf("record history: %w", err))
	}

	e.state = StateDone
	e.logger.Info("install complete", "version", rec.Version, "action", string(action))
	return result, nil
}

// Rollback restores the most recent backup and records the event.
func (e *Engine) Rollback(ctx context.Context) (*Result, error) {
	lock, err := AcquireLock(e.configDir)
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	b, err := e.backups.Restore(e.installDir)
	if err != nil {
		// ErrNoBackup passes through untouched so callers can test for it.
		return nil, err
	}

	result := &Result{Version: b.Version, Action: history.ActionRollback}

	if e.hook != nil {
		if err := e.hook(e.installDir); err != nil {
			e.logger.Warn("post-rollback hook failed", "error", err)
			result.Notices = append(result.Notices, fmt.Sprintf("post-rollback hook failed: %v", err))
		}
	}

	// Rollback entries record the restored version, so the latest
	// history entry always names the version on disk.
	version := b.Version
	if version == "" {
		version = "unknown"
	}
	result.Version = version

	source := history.SourceRemote
	if prior, ok, err := e.hist.Find(version); err == nil && ok {
		source = prior.Source
	}
	if err := e.hist.Record(history.Entry{
		Version: version,
		Action:  history.ActionRollback,
		Source:  source,
	}); err != nil {
		return nil, fmt.Errorf("record rollback: %w", err)
	}

	e.logger.Info("rollback complete", "version", version, "backup", b.Path)
	return result, nil
}

// resolve maps a requested identifier to a version record. When the
// index is unreachable it falls back to history: a previously installed
// identifier resolves degraded, with a nil record.
func (e *Engine) resolve(ctx context.Context, version string) (*index.VersionRecord, string, bool, error) {
	snap, fetchErr := e.resolver.Fetch(ctx, e.cfg.Mirror.IndexURL)
	if fetchErr == nil {
		var rec index.VersionRecord
		var found bool
		if version == Latest {
			rec, found = snap.Latest()
			if !found {
				return nil, "", false, fmt.Errorf("index %s has no versions", e.cfg.Mirror.IndexURL)
			}
		} else {
			rec, found = snap.Find(version)
			if !found {
				return nil, "", false, fmt.Errorf("%w: %s", ErrVersionNotFound, version)
			}
		}
		if snap.Skipped > 0 {
			e.logger.Warn("index entries skipped", "count", snap.Skipped)
		}
		return &rec, rec.Version, false, nil
	}

	e.logger.Warn("index unreachable, falling back to history", "source", e.cfg.Mirror.IndexURL, "error", fetchErr)

	var entry history.Entry
	var found bool
	var err error
	if version == Latest {
		entry, found, err = e.hist.Current()
	} else {
		entry, found, err = e.hist.Find(version)
	}
	if err != nil {
		return nil, "", false, err
	}
	if !found {
		return nil, "", false, fmt.Errorf("resolve %s: %w", version, fetchErr)
	}
	return nil, entry.Version, true, nil
}

// fetchArtifact places the artifact at destPath, downloading from the
// network or copying from a local mirror depending on the index source.
func (e *Engine) fetchArtifact(ctx context.Context, rec index.VersionRecord, artifact index.Artifact, destPath string) error {
	if isRemoteSource(e.cfg.Mirror.IndexURL) {
		url := e.artifactURL(rec, artifact)
		if err := e.downloader.Fetch(ctx, url, destPath); err != nil {
			return fmt.Errorf("download %s: %w", url, err)
		}
		return nil
	}

	// Local mirror layout: {mirror}/releases/{version}/{name}
	mirrorDir := e.cfg.Mirror.IndexURL
	if strings.HasSuffix(mirrorDir, index.IndexFileName) {
		mirrorDir = filepath.Dir(mirrorDir)
	}
	src := filepath.Join(mirrorDir, "releases", rec.Version, artifact.Name)
	if err := copyLocalArtifact(src, destPath); err != nil {
		return fmt.Errorf("copy %s from mirror: %w", artifact.Name, err)
	}
	return nil
}

// artifactURL returns the download URL for an artifact, constructing it
// from the configured download base when the index entry has none.
func (e *Engine) artifactURL(rec index.VersionRecord, artifact index.Artifact) string {
	if artifact.URL != "" {
		return artifact.URL
	}
	base := strings.TrimRight(e.cfg.Mirror.DownloadBaseURL, "/")
	return base + "/" + rec.Version + "/" + artifact.Name
}

// verifyArtifact checks the artifact checksum and, when a keyring is
// configured, its detached signature. A missing checksum or signature
// is advisory; a present one that fails is fatal.
func (e *Engine) verifyArtifact(ctx context.Context, rec index.VersionRecord, artifact index.Artifact, archivePath string) (notice string, err error) {
	if artifact.SHA256 != "" {
		if err := e.verifier.VerifySHA256(archivePath, artifact.SHA256); err != nil {
			return "", fmt.Errorf("verify %s: %w", artifact.Name, err)
		}
	} else {
		notice = fmt.Sprintf("no checksum published for %s, skipping verification", artifact.Name)
	}

	if !e.verifier.HasKeyring() || !isRemoteSource(e.cfg.Mirror.IndexURL) {
		return notice, nil
	}
	url := e.artifactURL(rec, artifact)
	sigPath := archivePath + ".asc"
	if err := e.downloader.Fetch(ctx, url+".asc", sigPath); err != nil {
		e.logger.Debug("no detached signature available", "artifact", artifact.Name, "error", err)
		return notice, nil
	}
	if err := e.verifier.VerifySignature(archivePath, sigPath); err != nil {
		return "", fmt.Errorf("verify signature of %s: %w", artifact.Name, err)
	}
	return notice, nil
}

// source returns the history source for the configured index.
func (e *Engine) source() string {
	if isRemoteSource(e.cfg.Mirror.IndexURL) {
		return history.SourceRemote
	}
	return e.cfg.Mirror.IndexURL
}

func isRemoteSource(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

// copyLocalArtifact copies a single mirror artifact file.
func copyLocalArtifact(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("artifact not present in mirror: %w", err)
		}
		return err
	}
	return os.WriteFile(dst, data, 0644)
}
