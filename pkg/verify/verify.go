// Package verify checks downloaded artifacts against expected content
// digests.
package verify

import (
	// Register the hash implementations go-digest dispatches to.
	_ "crypto/sha256"
	_ "crypto/sha512"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/opencontainers/go-digest"
)

// ErrChecksumMismatch indicates a downloaded file failed digest verification.
var ErrChecksumMismatch = errors.New("checksum mismatch")

// MismatchError carries the expected and computed digests of a failed
// verification.
type MismatchError struct {
	Path string
	Want digest.Digest
	Got  digest.Digest
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("checksum mismatch for %q: want %s, got %s", e.Path, e.Want, e.Got)
}

// Is implements error matching against ErrChecksumMismatch.
func (e *MismatchError) Is(target error) bool {
	return target == ErrChecksumMismatch
}

// File streams the file at path through the declared digest algorithm and
// compares the result with expected. An empty expected digest skips
// verification. Bare hex strings are treated as sha256, matching the
// dominant artifact checksum convention.
func File(path, expected string) error {
	if expected == "" {
		return nil
	}
	want, err := parseExpected(expected)
	if err != nil {
		return fmt.Errorf("parsing expected checksum: %w", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %q for verification: %w", path, err)
	}
	defer f.Close()

	// io.Copy reads in bounded chunks, so arbitrarily large artifacts are
	// never loaded into memory at once.
	digester := want.Algorithm().Digester()
	if _, err := io.Copy(digester.Hash(), f); err != nil {
		return fmt.Errorf("reading %q for verification: %w", path, err)
	}

	if got := digester.Digest(); got != want {
		return &MismatchError{Path: path, Want: want, Got: got}
	}
	return nil
}

func parseExpected(expected string) (digest.Digest, error) {
	if strings.Contains(expected, ":") {
		d, err := digest.Parse(expected)
		if err != nil {
			return "", err
		}
		if !d.Algorithm().Available() {
			return "", fmt.Errorf("unavailable digest algorithm %q", d.Algorithm())
		}
		return d, nil
	}
	d := digest.NewDigestFromEncoded(digest.SHA256, strings.ToLower(expected))
	if err := d.Validate(); err != nil {
		return "", err
	}
	return d, nil
}
