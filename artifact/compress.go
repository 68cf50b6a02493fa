package artifact

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
)

// CompressedExt is appended to compressed artifacts.
const CompressedExt = ".gz"

// Compress gzips src into src+".gz" and removes src.
//
// Output goes to a hidden temp file in the same directory, is fsynced and
// renamed over the destination, and only then is src deleted. On any error
// before the rename src is untouched and the temp file is removed.
func Compress(src string, level int) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return "", fmt.Errorf("stat source: %w", err)
	}

	dir, base := filepath.Split(src)
	if dir == "" {
		dir = "."
	}
	dst := src + CompressedExt

	tmp, err := os.CreateTemp(dir, "."+base+CompressedExt+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	zw, err := gzip.NewWriterLevel(tmp, level)
	if err != nil {
		return "", fmt.Errorf("create gzip writer: %w", err)
	}
	zw.Name = base
	zw.ModTime = info.ModTime()

	if _, err := io.Copy(zw, in); err != nil {
		return "", fmt.Errorf("compress %s: %w", base, err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("finish gzip stream: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return "", fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", fmt.Errorf("rename into place: %w", err)
	}
	committed = true

	if err := syncDir(dir); err != nil {
		return dst, fmt.Errorf("sync directory: %w", err)
	}

	in.Close()
	if err := os.Remove(src); err != nil {
		return dst, fmt.Errorf("remove source: %w", err)
	}
	return dst, nil
}

// PartialPath returns the hidden scratch path a dump writes to before it is
// published as final. Partial names never match an artifact set.
func PartialPath(final string) string {
	dir, base := filepath.Split(final)
	return filepath.Join(dir, "."+base+".partial")
}

// Publish renames partial over final and syncs the directory.
func Publish(partial, final string) error {
	if err := os.Rename(partial, final); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	if err := syncDir(filepath.Dir(final)); err != nil {
		return fmt.Errorf("sync directory: %w", err)
	}
	return nil
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}
