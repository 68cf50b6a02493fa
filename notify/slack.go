package notify

import (
	"context"
	"net/http"
	"time"

	bfhttp "github.com/randalmurphal/backupflow/http"
)

// =============================================================================
// SlackNotifier
// =============================================================================

// DefaultSlackText pings everyone in the channel.
const DefaultSlackText = "<!channel>"

// SlackNotifier sends notifications to a Slack incoming webhook.
type SlackNotifier struct {
	WebhookURL string
	Text       string // Top-level message text, DefaultSlackText if empty
	Channel    string
	Username   string
	Client     *http.Client
}

// NewSlackNotifier creates a Slack webhook notifier.
func NewSlackNotifier(webhookURL string, opts ...SlackOption) *SlackNotifier {
	n := &SlackNotifier{
		WebhookURL: webhookURL,
		Text:       DefaultSlackText,
		Client:     &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// SlackOption configures SlackNotifier.
type SlackOption func(*SlackNotifier)

// WithSlackText overrides the top-level message text.
func WithSlackText(text string) SlackOption {
	return func(n *SlackNotifier) { n.Text = text }
}

// WithSlackChannel sets the channel to post to.
func WithSlackChannel(channel string) SlackOption {
	return func(n *SlackNotifier) { n.Channel = channel }
}

// WithSlackUsername sets the bot username.
func WithSlackUsername(username string) SlackOption {
	return func(n *SlackNotifier) { n.Username = username }
}

// WithSlackClient replaces the HTTP client.
func WithSlackClient(client *http.Client) SlackOption {
	return func(n *SlackNotifier) { n.Client = client }
}

// Notify implements Notifier.
func (n *SlackNotifier) Notify(ctx context.Context, event Event) error {
	c := bfhttp.NewClient(bfhttp.ClientConfig{Client: n.Client, ServiceName: "slack"})
	if err := c.PostJSON(ctx, n.WebhookURL, n.payload(event), nil); err != nil {
		return deliveryError("slack", err)
	}
	return nil
}

func (n *SlackNotifier) payload(event Event) slackPayload {
	text := n.Text
	if text == "" {
		text = DefaultSlackText
	}

	ts := event.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	return slackPayload{
		Text:     text,
		Channel:  n.Channel,
		Username: n.Username,
		Attachments: []slackAttachment{
			{
				Color:     colorForSeverity(event.Severity),
				Text:      event.Message,
				Footer:    event.Job,
				Timestamp: ts.Unix(),
			},
		},
	}
}

func colorForSeverity(severity string) string {
	switch severity {
	case SeverityError:
		return "#FF0000"
	case SeverityWarning:
		return "#FFA500"
	default:
		return "#36A64F"
	}
}

// Slack webhook payload types
type slackPayload struct {
	Text        string            `json:"text"`
	Channel     string            `json:"channel,omitempty"`
	Username    string            `json:"username,omitempty"`
	Attachments []slackAttachment `json:"attachments"`
}

type slackAttachment struct {
	Color     string `json:"color"`
	Text      string `json:"text"`
	Footer    string `json:"footer"`
	Timestamp int64  `json:"ts"`
}
