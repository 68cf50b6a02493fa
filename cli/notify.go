package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	bferrors "github.com/randalmurphal/backupflow/errors"
	bfhttp "github.com/randalmurphal/backupflow/http"
	"github.com/randalmurphal/backupflow/notify"
)

func (a *App) newNotifyCommand() *cobra.Command {
	var message string

	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Send a test notification to the configured webhook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.settings(cmd)
			if err != nil {
				return err
			}
			sink := BuildWebhook(s)
			if sink == nil {
				return &exitError{code: 1, err: bferrors.NewConfigError("no webhook configured; set webhook_url")}
			}
			job, err := BuildJob(s, a.NewRunner())
			if err != nil {
				return &exitError{code: 1, err: bferrors.NewConfigError(err.Error())}
			}

			if message == "" {
				message = fmt.Sprintf("%s test notification from %s", job.Title(), s.Hostname)
			}
			event := notify.Event{
				Type:      notify.EventTest,
				Host:      s.Hostname,
				Job:       job.Title(),
				Message:   message,
				Severity:  notify.SeverityInfo,
				Timestamp: a.now(),
			}

			endpoint := bfhttp.Endpoint(s.WebhookURL)
			if err := sink.Notify(cmd.Context(), event); err != nil {
				return &exitError{code: 1, err: deliveryFailure(endpoint, err)}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Sent %s notification to %s\n", s.WebhookKind, endpoint)
			return nil
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "message text (default: a short test line)")
	return cmd
}

// deliveryFailure turns a webhook error into a CLIError with an operator hint.
func deliveryFailure(endpoint string, err error) error {
	cliErr := &bferrors.CLIError{
		Err:     err,
		Message: "notification to " + endpoint + " failed",
	}
	if hint := bfhttp.Hint(err); hint != "" {
		cliErr.Suggestion = hint
	}
	var apiErr *bfhttp.APIError
	if errors.As(err, &apiErr) {
		cliErr.Details = apiErr.Message
	}
	return cliErr
}
