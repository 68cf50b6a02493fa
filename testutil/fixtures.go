// Package testutil provides fixtures shared by the backupflow tests.
package testutil

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/randalmurphal/backupflow/artifact"
)

// Day returns local midnight for the given date.
func Day(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.Local)
}

// Payload returns size bytes of deterministic, mildly compressible content.
func Payload(size int) []byte {
	const line = "INSERT INTO backups VALUES (1, 'payload');\n"
	return bytes.Repeat([]byte(line), size/len(line)+1)[:size]
}

// WriteArtifact writes size bytes to dir/name and sets its modification
// time. Returns the full path.
func WriteArtifact(t *testing.T, dir, name string, size int, modTime time.Time) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create directory for %s: %v", name, err)
	}
	if err := os.WriteFile(path, Payload(size), 0o600); err != nil {
		t.Fatalf("failed to write artifact %s: %v", name, err)
	}
	if !modTime.IsZero() {
		if err := os.Chtimes(path, modTime, modTime); err != nil {
			t.Fatalf("failed to set mtime on %s: %v", name, err)
		}
	}
	return path
}

// SeedDaily writes count artifacts of set, one per day ending the day
// before end, each modified on its own date. Returns paths oldest first.
func SeedDaily(t *testing.T, dir string, set artifact.Name, count int, end time.Time) []string {
	t.Helper()

	paths := make([]string, 0, count)
	for i := count; i >= 1; i-- {
		day := end.AddDate(0, 0, -i)
		n := set
		n.Date = day
		paths = append(paths, WriteArtifact(t, dir, n.String(), 1024, day.Add(3*time.Hour)))
	}
	return paths
}

// Names returns the base names of the regular files in dir, sorted.
func Names(t *testing.T, dir string) []string {
	t.Helper()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("failed to read %s: %v", dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	return names
}

// ReadGzip returns the decompressed content of a .gz file.
func ReadGzip(t *testing.T, path string) []byte {
	t.Helper()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("failed to open %s: %v", path, err)
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		t.Fatalf("failed to read gzip header of %s: %v", path, err)
	}
	defer zr.Close()

	data, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("failed to decompress %s: %v", path, err)
	}
	return data
}

// TempFile creates a temporary file with the given content.
// Returns the file path. File is automatically cleaned up when the test ends.
func TempFile(t *testing.T, name string, content []byte) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, name)

	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("failed to create temp file %s: %v", name, err)
	}

	return path
}
