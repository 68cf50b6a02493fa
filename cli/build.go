package cli

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/randalmurphal/backupflow"
	"github.com/randalmurphal/backupflow/artifact"
	"github.com/randalmurphal/backupflow/command"
	"github.com/randalmurphal/backupflow/config"
	"github.com/randalmurphal/backupflow/dump"
	"github.com/randalmurphal/backupflow/logging"
	"github.com/randalmurphal/backupflow/metrics"
	"github.com/randalmurphal/backupflow/notify"
	"github.com/randalmurphal/backupflow/offsite"
)

// BuildJob returns the dump job selected by s.
func BuildJob(s config.Settings, runner command.Runner) (dump.Job, error) {
	switch s.Job {
	case "directory":
		return dump.NewDirectory(s.IncludePaths, s.ExcludePaths, runner), nil
	case "mariadb":
		return &dump.MariaDB{
			DefaultsFile: s.MariaDBDefaultsFile,
			Databases:    s.Databases,
			Compress:     s.Compress,
			Runner:       runner,
		}, nil
	case "postgresql":
		return &dump.PostgreSQL{
			Host:      s.PGHost,
			User:      s.PGUser,
			DSN:       s.PGDSN,
			Databases: s.Databases,
			Discover:  s.PGDiscover,
			Globals:   s.PGGlobals,
			Compress:  s.Compress,
			Runner:    runner,
		}, nil
	default:
		return nil, fmt.Errorf("unknown job %q", s.Job)
	}
}

// BuildNotifier returns the failure notifier for s. Failures are always
// logged; the webhook is added when one is configured.
func BuildNotifier(s config.Settings, log *zap.Logger) notify.Notifier {
	sinks := []notify.Notifier{notify.NewLogNotifier(log)}
	if wh := BuildWebhook(s); wh != nil {
		sinks = append(sinks, wh)
	}

	multi := notify.NewMultiNotifier(sinks...)
	multi.Logger = log
	return multi
}

// BuildWebhook returns the webhook sink for s, or nil when no webhook URL
// is configured.
func BuildWebhook(s config.Settings) notify.Notifier {
	if s.WebhookURL == "" {
		return nil
	}
	if s.WebhookKind == "generic" {
		return notify.NewWebhookNotifier(s.WebhookURL, nil).WithSecret(s.WebhookSecret)
	}
	var opts []notify.SlackOption
	if s.WebhookText != "" {
		opts = append(opts, notify.WithSlackText(s.WebhookText))
	}
	return notify.NewSlackNotifier(s.WebhookURL, opts...)
}

// BuildUploader returns the offsite uploader, or nil when upload is off.
func BuildUploader(s config.Settings) (backupflow.Uploader, error) {
	if !s.UploadEnabled() {
		return nil, nil
	}
	up, err := offsite.New(offsite.Config{
		Endpoint:  s.S3Endpoint,
		Bucket:    s.S3Bucket,
		AccessKey: s.S3AccessKey,
		SecretKey: s.S3SecretKey,
		UseSSL:    s.S3UseSSL,
		Prefix:    s.S3Prefix,
	})
	if err != nil {
		return nil, err
	}
	return up, nil
}

// BuildPipelineConfig assembles the immutable pipeline configuration.
func BuildPipelineConfig(s config.Settings, runner command.Runner, log *zap.Logger) (backupflow.Config, error) {
	job, err := BuildJob(s, command.Logged(runner, log))
	if err != nil {
		return backupflow.Config{}, err
	}
	uploader, err := BuildUploader(s)
	if err != nil {
		return backupflow.Config{}, err
	}

	return backupflow.Config{
		Host:          s.Hostname,
		BackupDir:     s.BackupDir,
		Retention:     s.Retention,
		SortBy:        artifact.SortKey(s.SortBy),
		CompressLevel: s.CompressLvl,
		Job:           job,
		Notifier:      BuildNotifier(s, log),
		Uploader:      uploader,
		Logger:        log,
	}, nil
}

// openLogger opens the daily log file for s.
func openLogger(s config.Settings, now func() time.Time) (*logging.Logger, error) {
	return logging.New(logging.Options{
		Dir:    s.LogDir,
		Level:  s.LogLevel,
		Stderr: s.LogStderr,
		Now:    now,
	})
}

// recordMetrics writes the node_exporter textfile when one is configured.
// A nil m is created and primed from the existing file.
func recordMetrics(m *metrics.Metrics, s config.Settings, job string, result *backupflow.RunResult, log *zap.Logger) *metrics.Metrics {
	if s.MetricsTextfile == "" {
		return m
	}
	if m == nil {
		m = metrics.New(job, artifact.SanitizeHost(s.Hostname))
		if err := m.LoadTextfile(s.MetricsTextfile); err != nil {
			log.Warn("Could not read previous metrics", zap.Error(err))
		}
	}
	m.Observe(result)
	if err := m.WriteTextfile(s.MetricsTextfile); err != nil {
		log.Error("Could not write metrics", zap.String("path", s.MetricsTextfile), zap.Error(err))
	}
	return m
}

// fileExists is used by verify to tell a missing file from an empty one.
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
