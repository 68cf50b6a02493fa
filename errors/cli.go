package errors

import (
	"errors"
	"fmt"
	"strings"
)

// CLIError wraps an error with user-friendly context and suggestions.
type CLIError struct {
	// Err is the underlying error
	Err error

	// Message is a user-friendly description of what went wrong
	Message string

	// Suggestion is an actionable hint for the user
	Suggestion string

	// Details provides additional context (optional)
	Details string
}

func (e *CLIError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Message)

	if e.Details != "" {
		sb.WriteString("\n")
		sb.WriteString(e.Details)
	}

	if e.Suggestion != "" {
		sb.WriteString("\n\n")
		sb.WriteString(e.Suggestion)
	}

	return sb.String()
}

func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewConfigError wraps a validation failure for display on the command line.
func NewConfigError(details string) error {
	return &CLIError{
		Err:        ErrInvalidConfig,
		Message:    "The backup configuration is invalid.",
		Details:    details,
		Suggestion: "Check /etc/backupflow/config.yaml, the --config file and BACKUPFLOW_* variables.\nRun 'backupflow config' to see where each value came from.",
	}
}

// WrapRunError turns a fatal run error into a CLIError naming the failed stage.
func WrapRunError(err error) error {
	if err == nil {
		return nil
	}
	stage := StageOf(err)
	if stage == "" {
		return err
	}

	suggestion := "Inspect today's log file in the log directory for the full tool output."
	switch {
	case IsEmptyArtifact(err):
		suggestion = "The dump tool reported success but wrote nothing. Check its credentials and the database list."
	case errors.Is(err, ErrPreflight):
		suggestion = "The server did not pass its readiness check. Make sure it is running and reachable."
	case errors.Is(err, ErrUpload):
		suggestion = "Check the S3 endpoint, bucket and credentials."
	}

	return &CLIError{
		Err:        err,
		Message:    fmt.Sprintf("Backup aborted during the %s stage.", stage),
		Details:    err.Error(),
		Suggestion: suggestion,
	}
}
