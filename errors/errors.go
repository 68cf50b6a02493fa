package errors

import (
	"errors"
	"fmt"
)

// Failure classes.
var (
	// ErrExternalTool indicates an external command returned a non-zero exit status.
	ErrExternalTool = errors.New("external tool failure")

	// ErrEmptyArtifact indicates a dump produced no output file or an empty one.
	ErrEmptyArtifact = errors.New("artifact is empty or missing")

	// ErrPreflight indicates the readiness check failed before any dump ran.
	ErrPreflight = errors.New("preflight check failed")

	// ErrUpload indicates an artifact could not be copied to offsite storage.
	ErrUpload = errors.New("upload failed")

	// ErrFileDeletion indicates an old artifact could not be removed.
	ErrFileDeletion = errors.New("file deletion failed")

	// ErrNotificationDelivery indicates a notification could not be delivered.
	ErrNotificationDelivery = errors.New("notification delivery failed")

	// ErrInvalidConfig indicates the resolved settings are unusable.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// StageError wraps a fatal failure with the stage and host it happened on.
type StageError struct {
	Stage  string // Pipeline stage (e.g., "dump", "verify")
	Host   string // Hostname the run was for
	Detail string // Human-readable detail (command stderr, file path, ...)
	Err    error  // Underlying error, usually one of the sentinels
}

// NewStageError creates a StageError.
func NewStageError(stage, host, detail string, err error) *StageError {
	return &StageError{Stage: stage, Host: host, Detail: detail, Err: err}
}

func (e *StageError) Error() string {
	msg := e.Stage + " failed"
	if e.Host != "" {
		msg += " on " + e.Host
	}
	if e.Detail != "" {
		return msg + ": " + e.Detail
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// DeletionError records a single failed removal during rotation.
type DeletionError struct {
	Path string
	Err  error
}

func (e *DeletionError) Error() string {
	return fmt.Sprintf("delete %s: %v", e.Path, e.Err)
}

// Unwrap returns both the class and the cause so errors.Is matches either.
func (e *DeletionError) Unwrap() []error {
	return []error{ErrFileDeletion, e.Err}
}
