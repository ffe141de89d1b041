package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/mikey/torrent-hook/internal/core"
)

// Config holds the settings of the ingest copier
type Config struct {
	Folder    string
	Overwrite bool
}

// Copier copies delivered files into the media library ingest folder
type Copier struct {
	cfg    Config
	logger *zap.Logger
}

// NewCopier creates a new ingest copier
func NewCopier(cfg Config, logger *zap.Logger) *Copier {
	return &Copier{
		cfg:    cfg,
		logger: logger,
	}
}

// Folder returns the ingest folder
func (c *Copier) Folder() string {
	return c.cfg.Folder
}

// Ingest copies the file at src into the ingest folder under its own base
// name and returns the destination path
func (c *Copier) Ingest(ctx context.Context, src string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	dst := filepath.Join(c.cfg.Folder, filepath.Base(src))

	srcInfo, err := os.Stat(src)
	if err != nil {
		return "", &core.IOError{Op: "copy", Path: src, Err: err}
	}

	if err := os.MkdirAll(c.cfg.Folder, 0o755); err != nil {
		return "", &core.IOError{Op: "mkdir", Path: c.cfg.Folder, Err: err}
	}

	if dstInfo, err := os.Stat(dst); err == nil && os.SameFile(srcInfo, dstInfo) {
		return "", &core.IOError{Op: "copy", Path: dst, Err: errors.New("source and destination are the same file")}
	}

	written, err := c.copyFile(src, dst, srcInfo.Mode().Perm())
	if err != nil {
		return "", err
	}

	c.preserveMetadata(dst, srcInfo)

	c.logger.Info("Copied file to ingest folder",
		zap.String("source", src),
		zap.String("destination", dst),
		zap.String("size", humanize.Bytes(uint64(written))))

	return dst, nil
}

// copyFile streams src to dst. An existing dst is replaced unless
// overwriting is disabled.
func (c *Copier) copyFile(src, dst string, mode os.FileMode) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, &core.IOError{Op: "open", Path: src, Err: err}
	}
	defer in.Close()

	flags := os.O_CREATE | os.O_WRONLY | os.O_EXCL
	if c.cfg.Overwrite {
		// A previous copy may carry read-only bits from its source
		if err := os.Remove(dst); err != nil && !errors.Is(err, os.ErrNotExist) {
			return 0, &core.IOError{Op: "remove", Path: dst, Err: err}
		}
		flags = os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	}

	out, err := os.OpenFile(dst, flags, mode)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return 0, &core.IOError{Op: "copy", Path: dst, Err: fmt.Errorf("destination exists and overwrite is disabled: %w", err)}
		}
		return 0, &core.IOError{Op: "create", Path: dst, Err: err}
	}
	defer out.Close()

	written, err := io.Copy(out, in)
	if err != nil {
		return written, &core.IOError{Op: "copy", Path: dst, Err: err}
	}
	if err := out.Close(); err != nil {
		return written, &core.IOError{Op: "close", Path: dst, Err: err}
	}

	return written, nil
}

// preserveMetadata carries permission bits and modification time over to dst
func (c *Copier) preserveMetadata(dst string, srcInfo os.FileInfo) {
	if err := os.Chmod(dst, srcInfo.Mode().Perm()); err != nil {
		c.logger.Warn("Failed to preserve file mode",
			zap.String("file", dst),
			zap.Error(err))
	}

	mtime := srcInfo.ModTime()
	if err := os.Chtimes(dst, time.Now(), mtime); err != nil {
		c.logger.Warn("Failed to preserve modification time",
			zap.String("file", dst),
			zap.Error(err))
	}
}
