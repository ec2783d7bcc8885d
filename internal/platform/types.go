// Package platform provides host platform detection and Lua integration
// for moonup's toolchain management.
//
// It detects OS, architecture, and Linux distribution details, then maps
// them to the artifact keys used by release indexes (e.g. "linux-x64").
// The package uses gopsutil for Linux distribution detection and provides
// graceful fallback behavior when detection fails.
package platform

import "context"

// Info contains platform detection information.
type Info struct {
	OS      string // "linux", "darwin", "windows"
	Arch    string // "amd64", "arm64" (normalized)
	ArchRaw string // original GOARCH (e.g., "x86_64", "aarch64")
	Distro  string // distro ID (Linux only, e.g., "ubuntu", "arch")
	Version string // distro version (Linux only, e.g., "22.04")
}

// Key returns the artifact key used by release indexes for this platform,
// e.g. "linux-x64", "darwin-arm64", "windows-x64".
func (i *Info) Key() string {
	arch := i.Arch
	if arch == "amd64" {
		arch = "x64"
	}
	return i.OS + "-" + arch
}

// IsLinux returns true if the platform is Linux.
func (i *Info) IsLinux() bool {
	return i.OS == "linux"
}

// IsMacOS returns true if the platform is macOS.
func (i *Info) IsMacOS() bool {
	return i.OS == "darwin"
}

// IsWindows returns true if the platform is Windows.
func (i *Info) IsWindows() bool {
	return i.OS == "windows"
}

// IsAMD64 returns true if the architecture is amd64.
func (i *Info) IsAMD64() bool {
	return i.Arch == "amd64"
}

// IsARM64 returns true if the architecture is arm64.
func (i *Info) IsARM64() bool {
	return i.Arch == "arm64"
}

// IsAppleSilicon returns true if running on Apple Silicon (macOS + arm64).
func (i *Info) IsAppleSilicon() bool {
	return i.OS == "darwin" && i.Arch == "arm64"
}

// Detector is the interface for platform detection.
type Detector interface {
	Detect(ctx context.Context) (*Info, error)
}

// Static is a Detector returning a fixed Info, for tests and for callers
// that already know their platform key.
type Static struct {
	Info Info
}

// Detect returns the fixed platform info.
func (s Static) Detect(ctx context.Context) (*Info, error) {
	info := s.Info
	return &info, nil
}
