package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// SortKey selects what "newest" means for a set.
type SortKey string

// Sort keys.
const (
	// SortByDate orders by the date in the file name, then modification
	// time, then file name.
	SortByDate SortKey = "date"

	// SortByModTime orders by modification time, then file name.
	SortByModTime SortKey = "mtime"
)

// Entry is one artifact found on disk.
type Entry struct {
	Path    string    `json:"path"`
	Name    string    `json:"name"`
	Date    time.Time `json:"date"`
	ModTime time.Time `json:"modTime"`
	Size    int64     `json:"size"`
}

// List returns the artifacts in dir that belong to set, newest first.
// A missing directory is an empty set.
func List(dir string, set Name, key SortKey) ([]Entry, error) {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}

	var entries []Entry
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		date, ok := set.Match(de.Name())
		if !ok {
			continue
		}
		info, err := de.Info()
		if err != nil {
			// Vanished between ReadDir and Info.
			continue
		}
		entries = append(entries, Entry{
			Path:    filepath.Join(dir, de.Name()),
			Name:    de.Name(),
			Date:    date,
			ModTime: info.ModTime(),
			Size:    info.Size(),
		})
	}

	SortNewestFirst(entries, key)
	return entries, nil
}

// SortNewestFirst orders entries in place, newest first. SortByDate compares
// the filename date, then mtime; SortByModTime compares mtime only. Remaining
// ties go to the lexically greater name, so the order never depends on
// directory order.
func SortNewestFirst(entries []Entry, key SortKey) {
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if key != SortByModTime && !a.Date.Equal(b.Date) {
			return a.Date.After(b.Date)
		}
		if !a.ModTime.Equal(b.ModTime) {
			return a.ModTime.After(b.ModTime)
		}
		return a.Name > b.Name
	})
}
