// Package errors defines the failure taxonomy of a backup run.
//
// Sentinel errors classify every failure the pipeline can hit:
//   - ErrExternalTool: a dump, archive or check command exited non-zero
//   - ErrEmptyArtifact: a dump succeeded but its output is missing or empty
//   - ErrPreflight: the readiness check before dumping failed
//   - ErrUpload: copying an artifact to offsite storage failed
//   - ErrFileDeletion: removing an old artifact during rotation failed (non-fatal)
//   - ErrNotificationDelivery: the webhook could not be reached (non-fatal)
//   - ErrInvalidConfig: settings failed validation
//
// StageError attaches the pipeline stage and host to an underlying error, and
// CLIError carries a user-facing message and suggestion for the command line.
//
// Example usage:
//
//	err := errors.NewStageError("dump", host, "pg_dump exited 1", errors.ErrExternalTool)
//	if errors.IsExternalToolFailure(err) {
//	    // notify and exit 1
//	}
package errors
