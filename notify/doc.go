// Package notify delivers backup run events to people and systems.
//
// Core types:
//   - Notifier: Interface for sending notifications
//   - Event: A run event with host, job, stage, message and severity
//   - EventType: Type of event (run failed, deletion failed, ...)
//
// Implementations:
//   - SlackNotifier: Posts Slack-compatible attachment payloads to a webhook
//   - WebhookNotifier: Posts the raw event as JSON, optionally signed with a JWT
//   - LogNotifier: Writes events to a zap logger
//   - MultiNotifier: Fans out to several notifiers
//   - NopNotifier: Discards everything
//
// Delivery failures are returned wrapped in errors.ErrNotificationDelivery.
// Callers log them and carry on; a failed notification never fails a run.
//
// Example usage:
//
//	notifier := notify.NewSlackNotifier(webhookURL,
//	    notify.WithSlackText("<!here>"),
//	)
//	err := notifier.Notify(ctx, notify.Event{
//	    Type:     notify.EventRunFailed,
//	    Host:     "db01",
//	    Job:      "postgresql",
//	    Stage:    "dump",
//	    Severity: notify.SeverityError,
//	    Message:  "Postgresql error: Dump failed on db01: pg_dump exited 1",
//	})
package notify
