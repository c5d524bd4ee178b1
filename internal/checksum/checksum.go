package checksum

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"
)

// DefaultBufferSize is the read buffer used when hashing.
// Most game files are around 256 KiB.
const DefaultBufferSize = 256 * 1024

// Size is the length of a hex-encoded digest.
const Size = sha1.Size * 2

// MismatchError is returned when content does not hash to the expected digest.
type MismatchError struct {
	Expected string
	Actual   string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("checksum mismatch: expected %s, got %s", e.Expected, e.Actual)
}

// New returns the hash used for all digests.
func New() hash.Hash {
	return sha1.New()
}

// Encode formats a finished hash as lowercase hex.
func Encode(h hash.Hash) string {
	return hex.EncodeToString(h.Sum(nil))
}

// Sum hashes r with the default buffer size.
func Sum(r io.Reader) (string, error) {
	return SumBuffer(r, DefaultBufferSize)
}

// SumBuffer hashes r reading bufSize bytes at a time.
func SumBuffer(r io.Reader, bufSize int) (string, error) {
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}
	h := New()
	if _, err := io.CopyBuffer(h, r, make([]byte, bufSize)); err != nil {
		return "", err
	}
	return Encode(h), nil
}

// File hashes the file at path.
func File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	sum, err := Sum(f)
	if err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return sum, nil
}

// Matches reports whether the file at path hashes to expected.
func Matches(path, expected string) (bool, error) {
	sum, err := File(path)
	if err != nil {
		return false, err
	}
	return Equal(sum, expected), nil
}

// Equal compares two hex digests ignoring case.
func Equal(a, b string) bool {
	return strings.EqualFold(a, b)
}

// Verify returns a *MismatchError when actual differs from expected.
// An empty expected digest always verifies.
func Verify(expected, actual string) error {
	if expected == "" || Equal(expected, actual) {
		return nil
	}
	return &MismatchError{Expected: strings.ToLower(expected), Actual: actual}
}

// Valid reports whether s looks like a hex digest.
func Valid(s string) bool {
	if len(s) != Size {
		return false
	}
	for _, ch := range s {
		if (ch < '0' || ch > '9') && (ch < 'a' || ch > 'f') && (ch < 'A' || ch > 'F') {
			return false
		}
	}
	return true
}
