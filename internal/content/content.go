package content

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"github.com/h2non/filetype"
)

const (
	// FingerprintLength is the length of a hex encoded SHA-256 digest.
	FingerprintLength = 64

	// HeadSize is how many leading bytes DetectMIME needs.
	HeadSize = 261

	// DefaultMIME is the generic binary content type.
	DefaultMIME = "application/octet-stream"

	chunkSize       = 32 * 1024
	maxFilenameSize = 255
)

var (
	ErrHashing = errors.New("error while hashing")

	fingerprintRegex = regexp.MustCompile(`^[0-9a-f]{64}$`)
)

// Fingerprint streams r through SHA-256 in fixed size chunks and returns
// the lowercase hex digest. r is consumed to EOF.
func Fingerprint(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.CopyBuffer(h, r, make([]byte, chunkSize)); err != nil {
		return "", fmt.Errorf("%w: %w", ErrHashing, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ValidFingerprint checks that s looks like a Fingerprint result.
func ValidFingerprint(s string) bool {
	return fingerprintRegex.MatchString(s)
}

// HashingReader hashes everything read through it and keeps the first
// HeadSize bytes for MIME detection.
type HashingReader struct {
	r    io.Reader
	h    hash.Hash
	head []byte
	n    int64
}

func NewHashingReader(r io.Reader) *HashingReader {
	return &HashingReader{r: r, h: sha256.New()}
}

func (hr *HashingReader) Read(p []byte) (int, error) {
	n, err := hr.r.Read(p)
	if n > 0 {
		hr.h.Write(p[:n])
		hr.n += int64(n)
		if missing := HeadSize - len(hr.head); missing > 0 {
			hr.head = append(hr.head, p[:min(n, missing)]...)
		}
	}
	if err != nil && err != io.EOF {
		return n, fmt.Errorf("%w: %w", ErrHashing, err)
	}
	return n, err
}

// Sum returns the hex digest of what has been read so far.
func (hr *HashingReader) Sum() string {
	return hex.EncodeToString(hr.h.Sum(nil))
}

// Head returns up to HeadSize leading bytes of the stream.
func (hr *HashingReader) Head() []byte {
	return hr.head
}

// Size returns the number of bytes read.
func (hr *HashingReader) Size() int64 {
	return hr.n
}

// DetectMIME guesses a content type from the leading bytes of a file.
func DetectMIME(head []byte) string {
	kind, err := filetype.Match(head)
	if err != nil || kind == filetype.Unknown {
		return DefaultMIME
	}
	return kind.MIME.Value
}

// ValidateFilename checks that a client supplied name can be stored and
// later sent back in a Content-Disposition header.
func ValidateFilename(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("filename cannot be empty")
	}
	if len(name) > maxFilenameSize {
		return fmt.Errorf("filename longer than %d bytes", maxFilenameSize)
	}
	if name == "." || name == ".." || filepath.Base(name) != name || strings.ContainsAny(name, `/\`) {
		return errors.New("filename must not contain path separators")
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return errors.New("filename contains control characters")
		}
	}
	return nil
}
