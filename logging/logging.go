package logging

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// TimeLayout is the timestamp format of every log line.
const TimeLayout = "2006-01-02 15:04:05,000"

// Options configures New.
type Options struct {
	Dir    string // Log directory; empty disables the file sink
	Prefix string // File name prefix, "backup" if empty
	Level  string // debug, info, warn or error
	Stderr bool   // Mirror to stderr
	Now    func() time.Time
}

// Logger pairs a zap logger with the file writer behind it.
type Logger struct {
	*zap.Logger
	Writer *DailyWriter
}

// Close flushes the logger and closes the current log file.
func (l *Logger) Close() error {
	l.Logger.Sync()
	if l.Writer != nil {
		return l.Writer.Close()
	}
	return nil
}

// EncoderConfig returns the "time - LEVEL - message" console encoding.
func EncoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:          "T",
		LevelKey:         "L",
		MessageKey:       "M",
		NameKey:          "N",
		StacktraceKey:    "S",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeLevel:      zapcore.CapitalLevelEncoder,
		EncodeTime:       zapcore.TimeEncoderOfLayout(TimeLayout),
		EncodeDuration:   zapcore.StringDurationEncoder,
		ConsoleSeparator: " - ",
	}
}

// ParseLevel maps a level name to a zap level. Empty means info.
func ParseLevel(s string) (zapcore.Level, error) {
	if s == "" {
		return zapcore.InfoLevel, nil
	}
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return level, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}

// New builds a logger from opts. With neither a directory nor stderr the
// logger discards everything.
func New(opts Options) (*Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}

	encoder := zapcore.NewConsoleEncoder(EncoderConfig())

	var cores []zapcore.Core
	var writer *DailyWriter
	if opts.Dir != "" {
		prefix := opts.Prefix
		if prefix == "" {
			prefix = "backup"
		}
		writer = NewDailyWriter(opts.Dir, prefix)
		if opts.Now != nil {
			writer.Now = opts.Now
		}
		if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		cores = append(cores, zapcore.NewCore(encoder, writer, level))
	}
	if opts.Stderr {
		cores = append(cores, zapcore.NewCore(encoder.Clone(), zapcore.Lock(os.Stderr), level))
	}

	if len(cores) == 0 {
		return &Logger{Logger: zap.NewNop()}, nil
	}
	return &Logger{
		Logger: zap.New(zapcore.NewTee(cores...)),
		Writer: writer,
	}, nil
}

// Output logs captured subprocess output line by line at debug level,
// and at warn level when the command failed.
func Output(log *zap.Logger, command string, output []byte, failed bool) {
	if len(output) == 0 {
		return
	}
	level := zapcore.DebugLevel
	if failed {
		level = zapcore.WarnLevel
	}
	if ce := log.Check(level, command+" output"); ce != nil {
		ce.Write(zap.ByteString("output", output))
	}
}
