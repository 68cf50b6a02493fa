package command

import (
	"go.uber.org/zap"

	"github.com/randalmurphal/backupflow/logging"
)

// LoggedRunner logs every command it runs together with its captured output.
type LoggedRunner struct {
	Runner Runner
	Logger *zap.Logger
}

// Logged wraps r with logging.
func Logged(r Runner, log *zap.Logger) *LoggedRunner {
	if log == nil {
		log = zap.NewNop()
	}
	return &LoggedRunner{Runner: r, Logger: log}
}

// Run implements Runner.
func (l *LoggedRunner) Run(c Cmd) (Result, error) {
	l.Logger.Info("Running: " + c.String())

	res, err := l.Runner.Run(c)

	logging.Output(l.Logger, c.Name, []byte(res.Stdout), err != nil)
	logging.Output(l.Logger, c.Name, []byte(res.Stderr), err != nil)

	if err != nil {
		l.Logger.Error(c.Name+" failed",
			zap.Int("exit_code", res.ExitCode),
			zap.Duration("duration", res.Duration),
			zap.Error(err),
		)
		return res, err
	}
	l.Logger.Info(c.Name+" finished", zap.Duration("duration", res.Duration))
	return res, nil
}
