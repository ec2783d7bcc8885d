// Package wrapper manages shell wrapper scripts around the installed
// toolchain binaries.
//
// Each binary in bin/ is renamed to <name>.real and replaced by a small
// bash script that sets up the runtime environment before exec'ing the
// real binary. Setup is idempotent: already wrapped binaries are left
// alone, so it is safe to run after every install or rollback.
package wrapper

import (
	"fmt"
	"os"
	"path/filepath"
)

// Binaries lists the toolchain binaries that get wrapped when present.
var Binaries = []string{
	"moon", "moonc", "moonfmt", "mooninfo", "mooncake",
	"moon_cove_report", "moonbit-lsp", "moondoc", "moonrun", "moon-ide",
}

// realSuffix is appended to a binary's name when it is moved aside.
const realSuffix = ".real"

const scriptTemplate = `#!/bin/bash
SCRIPT_DIR="$(cd "$(dirname "${BASH_SOURCE[0]}")" && pwd)"
BINARY_NAME="$(basename "${BASH_SOURCE[0]}")"
export QEMU_LD_PREFIX="$HOME/moonbit-amd64-libs"
exec "$SCRIPT_DIR/$BINARY_NAME%s" "$@"
`

// Setup wraps every known binary under installDir/bin that is not
// already wrapped. It returns the names of binaries wrapped in this
// call. Missing binaries are skipped, not errors: not every release
// ships every tool.
func Setup(installDir string) ([]string, error) {
	binDir := filepath.Join(installDir, "bin")

	var wrapped []string
	for _, name := range Binaries {
		binaryPath := filepath.Join(binDir, name)
		realPath := binaryPath + realSuffix

		// Skip if already wrapped
		if _, err := os.Lstat(realPath); err == nil {
			continue
		}

		// Skip if binary doesn't exist
		if _, err := os.Lstat(binaryPath); err != nil {
			continue
		}

		if err := os.Rename(binaryPath, realPath); err != nil {
			return wrapped, fmt.Errorf("move %s aside: %w", name, err)
		}

		if err := writeScript(binaryPath); err != nil {
			// Put the binary back so a failed wrap leaves it usable.
			if renameErr := os.Rename(realPath, binaryPath); renameErr != nil {
				return wrapped, fmt.Errorf("write wrapper for %s: %w (restore failed: %v)", name, err, renameErr)
			}
			return wrapped, fmt.Errorf("write wrapper for %s: %w", name, err)
		}
		wrapped = append(wrapped, name)
	}

	return wrapped, nil
}

// writeScript writes the wrapper script at path with execute permissions.
func writeScript(path string) error {
	content := fmt.Sprintf(scriptTemplate, realSuffix)
	if err := os.WriteFile(path, []byte(content), 0755); err != nil {
		return err
	}
	return nil
}
