// Package backupflow runs one backup job end to end.
//
// A run is a fixed sequence of stages:
//
//	START → PREFLIGHT → DUMPING → VERIFYING → (COMPRESSING) → (UPLOADING) → ROTATING → DONE
//
// Any stage before ROTATING can end the run in FAILED. Rotation never fails
// a run: deletion problems are collected in a RotationReport and logged.
//
// The packages underneath do the work:
//
//   - dump: job variants that produce artifacts through external tools
//   - artifact: naming, verification, compression and rotation of artifacts
//   - command: argument-array process execution and a mock runner
//   - notify: Slack, generic webhook and log notifiers
//   - offsite: S3-compatible upload
//   - config: layered settings resolution and validation
//   - logging: daily log files in "time - LEVEL - message" form
//   - metrics: node_exporter textfile output
//   - schedule: in-process cron scheduling
//   - errors: failure classes and CLI error formatting
//   - http: single-attempt JSON webhook client
//   - cli: the cobra command tree behind cmd/backupflow
//
// # Quick Start
//
//	job := &dump.PostgreSQL{Host: "localhost", User: "postgres", Compress: true, Runner: runner}
//	p := backupflow.New(backupflow.Config{
//	    Host:      "db01",
//	    BackupDir: "/backup",
//	    Retention: 7,
//	    Job:       job,
//	    Notifier:  notify.NewSlackNotifier(webhookURL),
//	    Logger:    log,
//	})
//	result := p.Run(ctx)
//	os.Exit(result.ExitCode())
package backupflow
