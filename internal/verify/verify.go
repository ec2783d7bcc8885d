// Package verify performs cryptographic verification of downloaded
// toolchain artifacts: SHA256 checksums from the release index, and
// optional GPG detached signatures against a local keyring.
package verify

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp" //nolint:staticcheck // Using ProtonMail's maintained fork
)

// ErrChecksumMismatch is returned when an artifact's checksum does not
// match the value the index declared for it.
var ErrChecksumMismatch = errors.New("checksum mismatch")

// Method indicates how an artifact was verified
type Method int

const (
	// MethodNone indicates no verification was performed
	MethodNone Method = iota
	// MethodSHA256 indicates SHA256 checksum verification
	MethodSHA256
	// MethodGPG indicates GPG signature verification
	MethodGPG
)

// String returns the string representation of the verification method
func (m Method) String() string {
	switch m {
	case MethodSHA256:
		return "SHA256"
	case MethodGPG:
		return "GPG"
	case MethodNone:
		return "None"
	default:
		return "Unknown"
	}
}

// Verifier checks artifact integrity and authenticity.
type Verifier struct {
	keyringPath string
}

// NewVerifier creates a verifier. keyringPath locates an optional GPG
// keyring used for signature verification; it may be empty.
func NewVerifier(keyringPath string) *Verifier {
	return &Verifier{keyringPath: keyringPath}
}

// VerifySHA256 compares the artifact's SHA256 against the hex checksum
// declared by the index. Comparison is case-insensitive. A mismatch
// returns an error wrapping ErrChecksumMismatch.
func (v *Verifier) VerifySHA256(artifactPath, expected string) error {
	if expected == "" {
		return fmt.Errorf("no expected checksum for %s", artifactPath)
	}

	actual, err := SHA256File(artifactPath)
	if err != nil {
		return fmt.Errorf("calculate checksum of %s: %w", artifactPath, err)
	}

	if !strings.EqualFold(actual, expected) {
		return fmt.Errorf("verify %s: %w:\nactual:   %s\nexpected: %s",
			artifactPath, ErrChecksumMismatch, actual, expected)
	}

	return nil
}

// VerifySignature checks a GPG detached signature over the artifact
// against the configured keyring. Armored signatures are tried first,
// then binary.
func (v *Verifier) VerifySignature(artifactPath, signaturePath string) error {
	keyring, err := v.loadKeyring()
	if err != nil {
		return fmt.Errorf("load keyring: %w", err)
	}

	artifactFile, err := os.Open(artifactPath)
	if err != nil {
		return fmt.Errorf("open artifact: %w", err)
	}
	defer artifactFile.Close()

	sigFile, err := os.Open(signaturePath)
	if err != nil {
		return fmt.Errorf("open signature: %w", err)
	}
	defer sigFile.Close()

	_, err = openpgp.CheckArmoredDetachedSignature(keyring, artifactFile, sigFile, nil)
	if err != nil {
		// Try non-armored signature
		artifactFile.Seek(0, io.SeekStart)
		sigFile.Seek(0, io.SeekStart)
		_, err = openpgp.CheckDetachedSignature(keyring, artifactFile, sigFile, nil)
	}
	if err != nil {
		return fmt.Errorf("verify signature of %s: %w", artifactPath, err)
	}

	return nil
}

// HasKeyring reports whether a keyring is configured and present on disk.
func (v *Verifier) HasKeyring() bool {
	if v.keyringPath == "" {
		return false
	}
	info, err := os.Stat(v.keyringPath)
	return err == nil && info.Mode().IsRegular()
}

// loadKeyring reads the keyring, accepting armored or binary form.
func (v *Verifier) loadKeyring() (openpgp.EntityList, error) {
	if v.keyringPath == "" {
		return nil, fmt.Errorf("no keyring configured")
	}

	keyringFile, err := os.Open(v.keyringPath)
	if err != nil {
		return nil, fmt.Errorf("open keyring: %w", err)
	}
	defer keyringFile.Close()

	keyring, err := openpgp.ReadArmoredKeyRing(keyringFile)
	if err != nil {
		keyringFile.Seek(0, io.SeekStart)
		keyring, err = openpgp.ReadKeyRing(keyringFile)
		if err != nil {
			return nil, fmt.Errorf("read keyring: %w", err)
		}
	}

	if len(keyring) == 0 {
		return nil, fmt.Errorf("keyring is empty")
	}

	return keyring, nil
}

// SHA256File calculates the hex-encoded SHA256 checksum of a file.
func SHA256File(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", err
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}
