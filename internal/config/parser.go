package config

import (
	"context"
	"fmt"
	"strings"

	"github.com/moonup-dev/moonup/internal/platform"
	lua "github.com/yuin/gopher-lua"
)

// Parser represents a Lua config parser with platform detection.
type Parser struct {
	detector platform.Detector
}

// NewParser creates a new config parser with the given platform detector.
func NewParser(detector platform.Detector) *Parser {
	return &Parser{detector: detector}
}

// ParseString parses a Lua config from a string.
// Fields missing from the Lua source keep their built-in defaults.
func (p *Parser) ParseString(ctx context.Context, luaCode string) (*Config, error) {
	L := newSandboxedVM()
	defer L.Close()

	// Detect platform and inject platform table
	if p.detector != nil {
		platformInfo, err := p.detector.Detect(ctx)
		if err != nil {
			return nil, fmt.Errorf("platform detection failed: %w", err)
		}
		if err := platform.InjectPlatformTable(L, platformInfo); err != nil {
			return nil, fmt.Errorf("inject platform table: %w", err)
		}
	}

	// Execute Lua code
	if err := L.DoString(luaCode); err != nil {
		return nil, &ParseError{
			Message: "Lua syntax error",
			Detail:  err.Error(),
		}
	}

	// Extract config from the Lua state
	return extractConfig(L)
}

// ParseError represents a config parsing error with friendly message.
type ParseError struct {
	Message string // User-friendly message
	Detail  string // Technical details (raw Lua error)
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Message, e.Detail)
}

// extractConfig extracts the config from a Lua state.
// It expects a global "moonup" table with the config structure.
// Extraction starts from Default() so partial configs stay usable.
func extractConfig(L *lua.LState) (*Config, error) {
	moonupTable := L.GetGlobal("moonup")
	if moonupTable.Type() != lua.LTTable {
		return nil, &ParseError{
			Message: "missing or invalid 'moonup' table",
			Detail:  fmt.Sprintf("expected table, got %s", moonupTable.Type()),
		}
	}

	config := Default()
	table := moonupTable.(*lua.LTable)

	// Extract mirror
	if mirrorVal := table.RawGetString("mirror"); mirrorVal.Type() == lua.LTTable {
		extractMirror(mirrorVal.(*lua.LTable), &config.Mirror)
	}

	// Extract installation
	if instVal := table.RawGetString("installation"); instVal.Type() == lua.LTTable {
		extractInstallation(instVal.(*lua.LTable), &config.Installation)
	}

	// Validate the extracted config
	if err := config.Validate(); err != nil {
		return nil, &ParseError{
			Message: "config validation failed",
			Detail:  err.Error(),
		}
	}

	return config, nil
}

// extractMirror extracts mirror settings from a Lua table.
func extractMirror(table *lua.LTable, mirror *MirrorConfig) {
	if urlVal := table.RawGetString("index_url"); urlVal.Type() == lua.LTString {
		mirror.IndexURL = urlVal.String()
	}

	if baseVal := table.RawGetString("download_base_url"); baseVal.Type() == lua.LTString {
		mirror.DownloadBaseURL = baseVal.String()
	}
}

// extractInstallation extracts installation settings from a Lua table.
func extractInstallation(table *lua.LTable, inst *InstallationConfig) {
	if backupVal := table.RawGetString("backup_enabled"); backupVal.Type() == lua.LTBool {
		inst.BackupEnabled = bool(backupVal.(lua.LBool))
	}

	if verifyVal := table.RawGetString("verify_checksums"); verifyVal.Type() == lua.LTBool {
		inst.VerifyChecksums = bool(verifyVal.(lua.LBool))
	}

	if retentionVal := table.RawGetString("backup_retention"); retentionVal.Type() == lua.LTNumber {
		inst.BackupRetention = int(lua.LVAsNumber(retentionVal))
	}
}

// FormatError formats a ParseError for user display.
// In verbose mode, show the raw Lua error. Otherwise, show friendly message.
func FormatError(err error, verbose bool) string {
	if parseErr, ok := err.(*ParseError); ok {
		if verbose {
			return fmt.Sprintf("%s\n\nDetails:\n%s", parseErr.Message, parseErr.Detail)
		}
		// Extract the most relevant part of the error
		detail := parseErr.Detail
		if idx := strings.Index(detail, "stack traceback"); idx > 0 {
			detail = strings.TrimSpace(detail[:idx])
		}
		return fmt.Sprintf("%s: %s", parseErr.Message, detail)
	}
	return err.Error()
}
