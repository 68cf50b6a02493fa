package errors

import "errors"

// IsExternalToolFailure reports whether err came from a failed external command.
func IsExternalToolFailure(err error) bool {
	return err != nil && errors.Is(err, ErrExternalTool)
}

// IsEmptyArtifact reports whether err is a failed post-dump verification.
func IsEmptyArtifact(err error) bool {
	return err != nil && errors.Is(err, ErrEmptyArtifact)
}

// IsFileDeletionFailure reports whether err is a rotation deletion failure.
func IsFileDeletionFailure(err error) bool {
	return err != nil && errors.Is(err, ErrFileDeletion)
}

// IsNotificationDeliveryFailure reports whether err is a failed notification.
func IsNotificationDeliveryFailure(err error) bool {
	return err != nil && errors.Is(err, ErrNotificationDelivery)
}

// IsConfigError reports whether err is a configuration problem.
func IsConfigError(err error) bool {
	return err != nil && errors.Is(err, ErrInvalidConfig)
}

// Fatal reports whether err should abort a run.
// Deletion and notification failures are isolated and never abort.
func Fatal(err error) bool {
	if err == nil {
		return false
	}
	return !IsFileDeletionFailure(err) && !IsNotificationDeliveryFailure(err)
}

// StageOf returns the stage recorded in err, or "" if there is none.
func StageOf(err error) string {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}
