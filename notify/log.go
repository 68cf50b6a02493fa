package notify

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// =============================================================================
// LogNotifier
// =============================================================================

// LogNotifier writes notifications to a zap logger.
type LogNotifier struct {
	Logger *zap.Logger
}

// NewLogNotifier creates a notifier that logs to the given logger.
// If logger is nil, uses zap's global logger.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.L()
	}
	return &LogNotifier{Logger: logger}
}

// Notify implements Notifier.
func (n *LogNotifier) Notify(ctx context.Context, event Event) error {
	level := zapcore.InfoLevel
	switch event.Severity {
	case SeverityWarning:
		level = zapcore.WarnLevel
	case SeverityError:
		level = zapcore.ErrorLevel
	}

	fields := []zap.Field{
		zap.String("type", string(event.Type)),
		zap.String("run_id", event.RunID),
		zap.String("host", event.Host),
		zap.String("job", event.Job),
	}
	if event.Stage != "" {
		fields = append(fields, zap.String("stage", event.Stage))
	}
	if len(event.Metadata) > 0 {
		fields = append(fields, zap.Any("metadata", event.Metadata))
	}

	n.Logger.Log(level, event.Message, fields...)
	return nil
}
