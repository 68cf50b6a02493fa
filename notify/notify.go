package notify

import (
	"context"
	"fmt"
	"time"

	bferrors "github.com/randalmurphal/backupflow/errors"
)

// =============================================================================
// Notification Types
// =============================================================================

// EventType represents the type of run event.
type EventType string

const (
	// EventRunFailed is sent when a run aborts on a fatal error.
	EventRunFailed EventType = "run_failed"

	// EventTest is sent by "backupflow notify" to check the webhook.
	EventTest EventType = "test"
)

// Severity constants for notifications.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
	SeverityInfo    = "info"
)

// Event describes a backup run event for notification.
type Event struct {
	Type      EventType      `json:"type"`
	RunID     string         `json:"run_id"`
	Host      string         `json:"host"`
	Job       string         `json:"job"`
	Stage     string         `json:"stage,omitempty"`
	Message   string         `json:"message"`
	Severity  string         `json:"severity"` // SeverityInfo, SeverityWarning, SeverityError
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// =============================================================================
// Notifier Interface
// =============================================================================

// Notifier sends notifications about run events.
type Notifier interface {
	// Notify sends a notification. A returned error is informational;
	// callers log it and never abort on it.
	Notify(ctx context.Context, event Event) error
}

// deliveryError marks err as a notification delivery failure.
func deliveryError(sink string, err error) error {
	return fmt.Errorf("%w: %s: %w", bferrors.ErrNotificationDelivery, sink, err)
}
