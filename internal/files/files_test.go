package files

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"dedupstore/internal/content"
	"dedupstore/internal/filestore"
	"dedupstore/internal/models"
	"dedupstore/internal/storage"

	"github.com/stretchr/testify/require"
)

// countingStore counts blob writes and can be told to fail them.
type countingStore struct {
	filestore.FileStore
	puts    int
	failPut bool
}

func (c *countingStore) Put(ctx context.Context, id string, r io.Reader) (string, error) {
	c.puts++
	if c.failPut {
		return "", errors.New("disk full")
	}
	return c.FileStore.Put(ctx, id, r)
}

// streamOnly hides the Seek method of the wrapped reader.
type streamOnly struct{ r io.Reader }

func (s streamOnly) Read(p []byte) (int, error) { return s.r.Read(p) }

type brokenStream struct{}

func (brokenStream) Read([]byte) (int, error) { return 0, errors.New("unexpected EOF from client") }

type fixture struct {
	svc   *FileService
	index *storage.BboltStorage
	blobs *countingStore
	root  string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()

	index, err := storage.NewBboltStorage(filepath.Join(dir, "files.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	root := filepath.Join(dir, "uploads")
	local, err := filestore.NewLocalFileStore(root)
	require.NoError(t, err)

	spool := filepath.Join(dir, "spool")
	require.NoError(t, os.MkdirAll(spool, 0755))

	blobs := &countingStore{FileStore: local}
	return &fixture{
		svc:   NewFileService(index, blobs, Config{SpoolDir: spool}),
		index: index,
		blobs: blobs,
		root:  root,
	}
}

func download(t *testing.T, svc *FileService, id string) (string, *models.Download) {
	t.Helper()
	d, err := svc.Download(context.Background(), id)
	require.NoError(t, err)
	defer func() { _ = d.Body.Close() }()
	data, err := io.ReadAll(d.Body)
	require.NoError(t, err)
	return string(data), d
}

func TestUploadDownload(t *testing.T) {
	ctx := context.Background()

	t.Run("Scenario", func(t *testing.T) {
		f := newFixture(t)

		rec, err := f.svc.Upload(ctx, "test.txt", strings.NewReader("content"))
		require.NoError(t, err)
		require.Equal(t, "test.txt", rec.Name)
		require.Len(t, rec.Hash, 64)
		require.True(t, content.ValidFingerprint(rec.Hash))
		require.NotEmpty(t, rec.Location)
		require.NotEmpty(t, rec.ID)
		require.Equal(t, int64(7), rec.Size)
		require.Equal(t, 1, f.blobs.puts)

		dup, err := f.svc.Upload(ctx, "dup.txt", strings.NewReader("content"))
		require.NoError(t, err)
		require.Equal(t, rec.ID, dup.ID)
		require.Equal(t, rec.Hash, dup.Hash)
		require.Equal(t, "test.txt", dup.Name, "original name is kept")
		require.Equal(t, 1, f.blobs.puts, "dedup must not write a blob")

		body, d := download(t, f.svc, rec.ID)
		require.Equal(t, "content", body)
		require.Equal(t, "test.txt", d.Name)
		require.Equal(t, int64(7), d.Size)
		require.Equal(t, "application/octet-stream", d.ContentType)

		disposition, params, err := mime.ParseMediaType(d.Disposition)
		require.NoError(t, err)
		require.Equal(t, "attachment", disposition)
		require.Equal(t, "test.txt", params["filename"])
	})

	t.Run("Distinct", func(t *testing.T) {
		f := newFixture(t)

		a, err := f.svc.Upload(ctx, "a.bin", bytes.NewReader([]byte("alpha")))
		require.NoError(t, err)
		b, err := f.svc.Upload(ctx, "b.bin", bytes.NewReader([]byte("beta")))
		require.NoError(t, err)

		require.NotEqual(t, a.ID, b.ID)
		require.NotEqual(t, a.Hash, b.Hash)
		require.Equal(t, 2, f.blobs.puts)

		body, _ := download(t, f.svc, a.ID)
		require.Equal(t, "alpha", body)
		body, _ = download(t, f.svc, b.ID)
		require.Equal(t, "beta", body)
	})

	t.Run("NonSeekableStream", func(t *testing.T) {
		f := newFixture(t)
		data := bytes.Repeat([]byte("streamed-bytes "), 10000)

		rec, err := f.svc.Upload(ctx, "big.log", streamOnly{bytes.NewReader(data)})
		require.NoError(t, err)
		require.Equal(t, int64(len(data)), rec.Size)

		want, err := content.Fingerprint(bytes.NewReader(data))
		require.NoError(t, err)
		require.Equal(t, want, rec.Hash)

		body, _ := download(t, f.svc, rec.ID)
		require.Equal(t, string(data), body)

		// Spool files are removed after the upload.
		entries, err := os.ReadDir(f.svc.spoolDir)
		require.NoError(t, err)
		require.Empty(t, entries)

		// Same content through the seekable path dedups against the streamed one.
		again, err := f.svc.Upload(ctx, "again.log", bytes.NewReader(data))
		require.NoError(t, err)
		require.Equal(t, rec.ID, again.ID)
	})

	t.Run("SeekableMidStream", func(t *testing.T) {
		f := newFixture(t)
		r := strings.NewReader("headerpayload")
		_, err := r.Seek(int64(len("header")), io.SeekStart)
		require.NoError(t, err)

		rec, err := f.svc.Upload(ctx, "payload.txt", r)
		require.NoError(t, err)

		body, _ := download(t, f.svc, rec.ID)
		require.Equal(t, "payload", body)
	})

	t.Run("EmptyContent", func(t *testing.T) {
		f := newFixture(t)

		rec, err := f.svc.Upload(ctx, "empty.txt", strings.NewReader(""))
		require.NoError(t, err)
		require.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", rec.Hash)

		body, d := download(t, f.svc, rec.ID)
		require.Empty(t, body)
		require.Zero(t, d.Size)
	})

	t.Run("MimeSniffed", func(t *testing.T) {
		f := newFixture(t)
		png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01")

		rec, err := f.svc.Upload(ctx, "pixel.png", bytes.NewReader(png))
		require.NoError(t, err)
		require.Equal(t, "image/png", rec.MimeType)

		_, d := download(t, f.svc, rec.ID)
		require.Equal(t, "application/octet-stream", d.ContentType)
	})
}

func TestUploadFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("InvalidName", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Upload(ctx, "../etc/passwd", strings.NewReader("x"))
		require.Error(t, err)
		require.True(t, models.IsClientError(err))
		require.Zero(t, f.blobs.puts)
	})

	t.Run("HashingFailure", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Upload(ctx, "broken.txt", brokenStream{})
		require.ErrorIs(t, err, content.ErrHashing)
		require.False(t, models.IsClientError(err))

		records, err := f.index.ListFiles(ctx)
		require.NoError(t, err)
		require.Empty(t, records, "no record is created when hashing fails")
		require.Zero(t, f.blobs.puts)
	})

	t.Run("BlobWriteFailure", func(t *testing.T) {
		f := newFixture(t)
		f.blobs.failPut = true

		_, err := f.svc.Upload(ctx, "test.txt", strings.NewReader("content"))
		require.Error(t, err)
		require.False(t, models.IsClientError(err))

		records, err := f.index.ListFiles(ctx)
		require.NoError(t, err)
		require.Len(t, records, 1)
		require.False(t, records[0].Finalized(), "record is left without a location")

		report, err := f.svc.Audit(ctx)
		require.NoError(t, err)
		require.Len(t, report.Incomplete, 1)
		require.Equal(t, records[0].ID, report.Incomplete[0].ID)

		// Downloading the orphan is a server-side inconsistency.
		_, err = f.svc.Download(ctx, records[0].ID)
		require.ErrorIs(t, err, models.ErrInconsistent)

		// The orphan does not shadow a later upload of the same content.
		f.blobs.failPut = false
		rec, err := f.svc.Upload(ctx, "retry.txt", strings.NewReader("content"))
		require.NoError(t, err)
		require.NotEqual(t, records[0].ID, rec.ID)
		body, _ := download(t, f.svc, rec.ID)
		require.Equal(t, "content", body)
	})
}

func TestDownloadFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("UnknownID", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Download(ctx, "never-issued")
		require.ErrorIs(t, err, models.ErrUnknownID)
		require.True(t, models.IsClientError(err))
	})

	t.Run("BlobRemovedOutOfBand", func(t *testing.T) {
		f := newFixture(t)
		rec, err := f.svc.Upload(ctx, "test.txt", strings.NewReader("content"))
		require.NoError(t, err)

		require.NoError(t, os.Remove(filepath.Join(f.root, filepath.FromSlash(rec.Location))))

		_, err = f.svc.Download(ctx, rec.ID)
		require.ErrorIs(t, err, models.ErrInconsistent)
		require.False(t, models.IsClientError(err))
		require.NotErrorIs(t, err, models.ErrUnknownID)

		report, err := f.svc.Audit(ctx)
		require.NoError(t, err)
		require.Equal(t, 1, report.Checked)
		require.Len(t, report.MissingBlob, 1)
		require.False(t, report.Healthy())
	})
}

func TestLookupAndStats(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	a, err := f.svc.Upload(ctx, "a.txt", strings.NewReader("aaaa"))
	require.NoError(t, err)
	_, err = f.svc.Upload(ctx, "b.txt", strings.NewReader("bb"))
	require.NoError(t, err)

	got, err := f.svc.Lookup(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, a, got)

	_, err = f.svc.Lookup(ctx, "missing")
	require.ErrorIs(t, err, models.ErrUnknownID)

	stats, err := f.svc.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, models.Stats{Records: 2, Finalized: 2, Bytes: 6}, stats)

	report, err := f.svc.Audit(ctx)
	require.NoError(t, err)
	require.True(t, report.Healthy())
	require.Equal(t, 2, report.Checked)

	list, err := f.svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
}
