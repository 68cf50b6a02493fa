package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/randalmurphal/backupflow/metrics"
	"github.com/randalmurphal/backupflow/schedule"
)

func (a *App) newScheduleCommand() *cobra.Command {
	var spec string

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the backup job on a cron schedule until interrupted",
		Long: `Schedule keeps the process running and starts a backup on every tick of
the configured cron expression (the schedule key, or --cron). A tick that
arrives while a backup is still running is skipped. SIGINT or SIGTERM stops
the scheduler after the current backup finishes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.settings(cmd)
			if err != nil {
				return err
			}
			if spec == "" {
				spec = s.Schedule
			}
			if spec == "" {
				return &exitError{code: 1, err: fmt.Errorf("no schedule configured; set the schedule key or pass --cron")}
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

			var m *metrics.Metrics
			sched, err := schedule.New(spec, func(ctx context.Context) {
				result := p.Run(ctx)
				m = recordMetrics(m, s, p.Config().Job.Kind(), result, log.Logger)
				log.Info("Scheduled run finished", zap.String("summary", result.Summary()))
			}, schedule.WithLogger(log.Logger))
			if err != nil {
				return &exitError{code: 1, err: err}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return sched.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&spec, "cron", "", "cron expression, overrides the schedule key")
	return cmd
}
