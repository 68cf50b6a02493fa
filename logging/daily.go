package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// DayLayout is the date format embedded in log file names.
const DayLayout = "2006-01-02"

// DailyWriter writes to <Dir>/<Prefix>_<date>.log and switches files at midnight.
// It is safe for concurrent use.
type DailyWriter struct {
	Dir        string
	Prefix     string
	MaxSizeMB  int // Rollover size per file
	MaxBackups int
	MaxAgeDays int
	Now        func() time.Time

	mu      sync.Mutex
	day     string
	current *lumberjack.Logger
}

// NewDailyWriter creates a writer rooted at dir. The directory is created on first write.
func NewDailyWriter(dir, prefix string) *DailyWriter {
	return &DailyWriter{
		Dir:        dir,
		Prefix:     prefix,
		MaxSizeMB:  50,
		MaxBackups: 10,
		MaxAgeDays: 30,
		Now:        time.Now,
	}
}

// Path returns the file the writer would use at t.
func (w *DailyWriter) Path(t time.Time) string {
	return filepath.Join(w.Dir, fmt.Sprintf("%s_%s.log", w.Prefix, t.Format(DayLayout)))
}

// Write implements io.Writer.
func (w *DailyWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	out, err := w.writerFor(w.now())
	if err != nil {
		return 0, err
	}
	return out.Write(p)
}

// Sync implements zapcore.WriteSyncer. lumberjack writes unbuffered.
func (w *DailyWriter) Sync() error {
	return nil
}

// Close closes the current file.
func (w *DailyWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.current == nil {
		return nil
	}
	err := w.current.Close()
	w.current = nil
	w.day = ""
	return err
}

func (w *DailyWriter) now() time.Time {
	if w.Now != nil {
		return w.Now()
	}
	return time.Now()
}

func (w *DailyWriter) writerFor(t time.Time) (*lumberjack.Logger, error) {
	day := t.Format(DayLayout)
	if w.current != nil && w.day == day {
		return w.current, nil
	}

	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	if w.current != nil {
		w.current.Close()
	}

	w.current = &lumberjack.Logger{
		Filename:   w.Path(t),
		MaxSize:    w.MaxSizeMB,
		MaxBackups: w.MaxBackups,
		MaxAge:     w.MaxAgeDays,
		LocalTime:  true,
	}
	w.day = day
	return w.current, nil
}
