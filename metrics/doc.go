/*
Package metrics exports the outcome of backup runs for node_exporter.

After each run the gauges are updated from the RunResult and the registry is
written atomically to a textfile, which node_exporter's textfile collector
picks up:

	m := metrics.New("postgresql", "db01")
	m.Observe(result)
	err := m.WriteTextfile("/var/lib/node_exporter/textfile/backupflow.prom")

# Available Metrics

All metrics carry the const labels job and host.

  - backupflow_last_run_timestamp_seconds: when the last run finished
  - backupflow_last_run_success: 1 if the last run reached DONE, else 0
  - backupflow_last_success_timestamp_seconds: when a run last succeeded
  - backupflow_last_run_duration_seconds: wall time of the last run
  - backupflow_last_run_artifact_bytes: total size of the last run's artifacts
  - backupflow_last_run_rotated_files: old artifacts deleted by the last run
  - backupflow_last_run_deletion_failures: deletions that failed in the last run
  - backupflow_runs_total: runs since the process started, by result

A one-shot process starts with a fresh registry, so the last success
timestamp is carried over from the previous textfile with LoadTextfile.
*/
package metrics
