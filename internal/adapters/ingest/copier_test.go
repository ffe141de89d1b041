package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mikey/torrent-hook/internal/core"
)

func writeSource(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	src := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(src, content, 0o640))
	return src
}

func TestIngestCopiesFile(t *testing.T) {
	srcDir := t.TempDir()
	folder := filepath.Join(t.TempDir(), "ingest", "nested")
	content := []byte("epub bytes \x00\x01\x02")
	src := writeSource(t, srcDir, "Book Title.epub", content)

	mtime := time.Date(2020, 5, 17, 10, 30, 0, 0, time.UTC)
	require.NoError(t, os.Chtimes(src, mtime, mtime))

	c := NewCopier(Config{Folder: folder, Overwrite: true}, zaptest.NewLogger(t))
	dst, err := c.Ingest(context.Background(), src)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(folder, "Book Title.epub"), dst)

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, content, got)

	info, err := os.Stat(dst)
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(mtime), "mtime %v, want %v", info.ModTime(), mtime)
	assert.Equal(t, os.FileMode(0o640), info.Mode().Perm())

	// the source stays where it was
	_, err = os.Stat(src)
	assert.NoError(t, err)
}

func TestIngestIsIdempotent(t *testing.T) {
	src := writeSource(t, t.TempDir(), "book.mobi", []byte("new content"))
	folder := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(folder, "book.mobi"), []byte("a much longer old content"), 0o644))

	c := NewCopier(Config{Folder: folder, Overwrite: true}, zaptest.NewLogger(t))
	for i := 0; i < 2; i++ {
		dst, err := c.Ingest(context.Background(), src)
		require.NoError(t, err)

		got, err := os.ReadFile(dst)
		require.NoError(t, err)
		assert.Equal(t, "new content", string(got))
	}

	entries, err := os.ReadDir(folder)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestIngestReadOnlySourceTwice(t *testing.T) {
	src := writeSource(t, t.TempDir(), "book.azw3", []byte("first"))
	require.NoError(t, os.Chmod(src, 0o444))
	t.Cleanup(func() { os.Chmod(src, 0o644) })
	folder := t.TempDir()

	c := NewCopier(Config{Folder: folder, Overwrite: true}, zaptest.NewLogger(t))
	dst, err := c.Ingest(context.Background(), src)
	require.NoError(t, err)

	info, err := os.Stat(dst)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o444), info.Mode().Perm())

	require.NoError(t, os.Chmod(src, 0o644))
	require.NoError(t, os.WriteFile(src, []byte("second"), 0o644))
	require.NoError(t, os.Chmod(src, 0o444))

	dst, err = c.Ingest(context.Background(), src)
	require.NoError(t, err)

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))
}

func TestIngestWithoutOverwrite(t *testing.T) {
	src := writeSource(t, t.TempDir(), "book.pdf", []byte("new"))
	folder := t.TempDir()
	existing := filepath.Join(folder, "book.pdf")
	require.NoError(t, os.WriteFile(existing, []byte("old"), 0o644))

	c := NewCopier(Config{Folder: folder, Overwrite: false}, zaptest.NewLogger(t))
	_, err := c.Ingest(context.Background(), src)

	var ioErr *core.IOError
	require.True(t, errors.As(err, &ioErr))
	assert.Equal(t, existing, ioErr.Path)

	got, err := os.ReadFile(existing)
	require.NoError(t, err)
	assert.Equal(t, "old", string(got))
}

func TestIngestMissingSource(t *testing.T) {
	c := NewCopier(Config{Folder: t.TempDir(), Overwrite: true}, zaptest.NewLogger(t))
	_, err := c.Ingest(context.Background(), filepath.Join(t.TempDir(), "gone.epub"))

	var ioErr *core.IOError
	require.True(t, errors.As(err, &ioErr))
	assert.True(t, errors.Is(err, os.ErrNotExist))
	assert.True(t, core.IsExpected(err))
}

func TestIngestOntoItself(t *testing.T) {
	folder := t.TempDir()
	src := writeSource(t, folder, "book.epub", []byte("content"))

	c := NewCopier(Config{Folder: folder, Overwrite: true}, zaptest.NewLogger(t))
	_, err := c.Ingest(context.Background(), src)

	var ioErr *core.IOError
	require.True(t, errors.As(err, &ioErr))

	got, err := os.ReadFile(src)
	require.NoError(t, err)
	assert.Equal(t, "content", string(got))
}

func TestIngestCancelledContext(t *testing.T) {
	src := writeSource(t, t.TempDir(), "book.epub", []byte("content"))
	folder := t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewCopier(Config{Folder: folder, Overwrite: true}, zaptest.NewLogger(t))
	_, err := c.Ingest(ctx, src)
	assert.ErrorIs(t, err, context.Canceled)

	_, err = os.Stat(filepath.Join(folder, "book.epub"))
	assert.True(t, os.IsNotExist(err))
}

func TestFolder(t *testing.T) {
	c := NewCopier(Config{Folder: "/data/ingest"}, zaptest.NewLogger(t))
	assert.Equal(t, "/data/ingest", c.Folder())
}
