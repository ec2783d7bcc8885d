package config

import (
	"bytes"
	"fmt"
	"strings"
	"time"
)

// Generator generates Lua configuration code from Go structs.
type Generator struct {
	indent string // Indentation string (default: two spaces)
}

// NewGenerator creates a new Lua config generator.
func NewGenerator() *Generator {
	return &Generator{
		indent: "  ", // Two spaces
	}
}

// Generate generates Lua code from a Config struct.
// The output is formatted and human-readable.
func (g *Generator) Generate(config *Config) (string, error) {
	var buf bytes.Buffer

	// Write header comment
	buf.WriteString("-- moonup configuration\n")
	buf.WriteString("-- Generated: ")
	buf.WriteString(time.Now().Format(time.RFC3339))
	buf.WriteString("\n\n")

	// Write moonup table
	buf.WriteString("moonup = {\n")

	g.writeMirror(&buf, config.Mirror)
	g.writeInstallation(&buf, config.Installation)

	buf.WriteString("}\n")

	return buf.String(), nil
}

// writeMirror writes the mirror section to the buffer.
func (g *Generator) writeMirror(buf *bytes.Buffer, mirror MirrorConfig) {
	buf.WriteString(g.indent)
	buf.WriteString("mirror = {\n")

	buf.WriteString(g.indent)
	buf.WriteString(g.indent)
	buf.WriteString("index_url = ")
	buf.WriteString(g.quoteLuaString(mirror.IndexURL))
	buf.WriteString(",\n")

	buf.WriteString(g.indent)
	buf.WriteString(g.indent)
	buf.WriteString("download_base_url = ")
	buf.WriteString(g.quoteLuaString(mirror.DownloadBaseURL))
	buf.WriteString(",\n")

	buf.WriteString(g.indent)
	buf.WriteString("},\n\n")
}

// writeInstallation writes the installation section to the buffer.
func (g *Generator) writeInstallation(buf *bytes.Buffer, inst InstallationConfig) {
	buf.WriteString(g.indent)
	buf.WriteString("installation = {\n")

	buf.WriteString(g.indent)
	buf.WriteString(g.indent)
	buf.WriteString(fmt.Sprintf("backup_enabled = %t,\n", inst.BackupEnabled))

	buf.WriteString(g.indent)
	buf.WriteString(g.indent)
	buf.WriteString(fmt.Sprintf("verify_checksums = %t,\n", inst.VerifyChecksums))

	buf.WriteString(g.indent)
	buf.WriteString(g.indent)
	buf.WriteString(fmt.Sprintf("backup_retention = %d,\n", inst.BackupRetention))

	buf.WriteString(g.indent)
	buf.WriteString("},\n")
}

// quoteLuaString quotes a string for Lua, handling special characters.
func (g *Generator) quoteLuaString(s string) string {
	// Use double quotes and escape special characters
	s = strings.ReplaceAll(s, "\\", "\\\\") // Escape backslashes first
	s = strings.ReplaceAll(s, "\"", "\\\"") // Escape double quotes
	s = strings.ReplaceAll(s, "\n", "\\n")  // Escape newlines
	s = strings.ReplaceAll(s, "\r", "\\r")  // Escape carriage returns
	s = strings.ReplaceAll(s, "\t", "\\t")  // Escape tabs
	return "\"" + s + "\""
}
