package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/randalmurphal/backupflow"
	"github.com/randalmurphal/backupflow/config"
	bferrors "github.com/randalmurphal/backupflow/errors"
)

func (a *App) newRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the backup job once",
		Long: `Run dumps the configured job, verifies and compresses the artifacts,
uploads them if S3 is configured and rotates old artifacts. A failure in any
stage before rotation sends a notification and exits with status 1.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.execute(cmd, false)
		},
	}
}

func (a *App) newRotateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rotate",
		Short: "Delete artifacts beyond the retention count",
		Long: `Rotate applies the retention count to the existing artifacts of the
configured job without dumping anything.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.execute(cmd, true)
		},
	}
}

// execute builds a pipeline from the resolved settings and runs it once.
func (a *App) execute(cmd *cobra.Command, rotateOnly bool) error {
	s, err := a.settings(cmd)
	if err != nil {
		return err
	}

	log, err := openLogger(s, a.Now)
	if err != nil {
		return &exitError{code: 1, err: err}
	}
	defer log.Close()

	p, err := a.pipeline(s, log.Logger)
	if err != nil {
		return &exitError{code: 1, err: err}
	}

	var result *backupflow.RunResult
	if rotateOnly {
		result = p.Rotate(cmd.Context())
	} else {
		result = p.Run(cmd.Context())
		recordMetrics(nil, s, p.Config().Job.Kind(), result, log.Logger)
	}

	fmt.Fprintln(cmd.OutOrStdout(), result.Summary())
	return runResultError(result)
}

func (a *App) pipeline(s config.Settings, log *zap.Logger) (*backupflow.Pipeline, error) {
	cfg, err := BuildPipelineConfig(s, a.NewRunner(), log)
	if err != nil {
		return nil, err
	}
	cfg.Now = a.Now
	return backupflow.New(cfg), nil
}

// runResultError converts a failed run into an error carrying its exit status.
func runResultError(result *backupflow.RunResult) error {
	if result.Succeeded() {
		return nil
	}
	err := bferrors.WrapRunError(result.Err)
	if err == nil {
		err = fmt.Errorf("run %s ended in %s", result.RunID, result.State)
	}
	return &exitError{code: result.ExitCode(), err: err}
}
