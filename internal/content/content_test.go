package content

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type failingReader struct {
	after int
	read  int
}

func (f *failingReader) Read(p []byte) (int, error) {
	if f.read >= f.after {
		return 0, errors.New("connection reset")
	}
	n := min(len(p), f.after-f.read)
	for i := range n {
		p[i] = 'x'
	}
	f.read += n
	return n, nil
}

func TestFingerprint(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
	}{
		{"Empty", nil},
		{"Short", []byte("content")},
		{"Larger than chunk", bytes.Repeat([]byte("abcdefgh"), 3*chunkSize/8+7)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			want := sha256.Sum256(tt.input)
			got, err := Fingerprint(bytes.NewReader(tt.input))
			require.NoError(t, err)
			require.Equal(t, hex.EncodeToString(want[:]), got)
			require.Len(t, got, FingerprintLength)
			require.True(t, ValidFingerprint(got))

			again, err := Fingerprint(bytes.NewReader(tt.input))
			require.NoError(t, err)
			require.Equal(t, got, again)
		})
	}

	t.Run("Known vector", func(t *testing.T) {
		got, err := Fingerprint(strings.NewReader(""))
		require.NoError(t, err)
		require.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", got)
	})

	t.Run("Read failure", func(t *testing.T) {
		got, err := Fingerprint(&failingReader{after: 100})
		require.ErrorIs(t, err, ErrHashing)
		require.Empty(t, got)
	})
}

func TestHashingReader(t *testing.T) {
	data := bytes.Repeat([]byte("0123456789"), 100)
	hr := NewHashingReader(bytes.NewReader(data))

	n, err := io.Copy(io.Discard, hr)
	require.NoError(t, err)
	require.Equal(t, int64(len(data)), n)
	require.Equal(t, int64(len(data)), hr.Size())
	require.Len(t, hr.Head(), HeadSize)
	require.Equal(t, data[:HeadSize], hr.Head())

	want, err := Fingerprint(bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, want, hr.Sum())

	t.Run("Read failure", func(t *testing.T) {
		hr := NewHashingReader(&failingReader{after: 10})
		_, err := io.Copy(io.Discard, hr)
		require.ErrorIs(t, err, ErrHashing)
	})
}

func TestDetectMIME(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	require.Equal(t, "image/png", DetectMIME(png))
	require.Equal(t, DefaultMIME, DetectMIME([]byte("content")))
	require.Equal(t, DefaultMIME, DetectMIME(nil))
}

func TestValidFingerprint(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"Valid", strings.Repeat("ab", 32), true},
		{"Upper case", strings.Repeat("AB", 32), false},
		{"Short", "abc", false},
		{"Non hex", strings.Repeat("zz", 32), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidFingerprint(tt.input); got != tt.want {
				t.Errorf("ValidFingerprint() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidateFilename(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"Plain", "test.txt", false},
		{"Spaces", "my report.pdf", false},
		{"Unicode", "отчёт.pdf", false},
		{"Empty", "", true},
		{"Blank", "   ", true},
		{"Slash", "a/b.txt", true},
		{"Backslash", `a\b.txt`, true},
		{"Dot dot", "..", true},
		{"Newline", "a\nb.txt", true},
		{"Too long", strings.Repeat("a", 256), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateFilename(tt.input); (err != nil) != tt.wantErr {
				t.Errorf("ValidateFilename() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
