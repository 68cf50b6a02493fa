package notify

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	bfhttp "github.com/randalmurphal/backupflow/http"
)

// =============================================================================
// WebhookNotifier
// =============================================================================

// tokenTTL bounds how long a signed notification stays acceptable.
const tokenTTL = 5 * time.Minute

// WebhookNotifier sends the raw event as JSON to a generic HTTP webhook.
// When Secret is set each request carries an HS256 bearer token.
type WebhookNotifier struct {
	URL     string
	Headers map[string]string
	Secret  []byte
	Client  *http.Client
	Now     func() time.Time
}

// NewWebhookNotifier creates a webhook notifier.
func NewWebhookNotifier(url string, headers map[string]string) *WebhookNotifier {
	return &WebhookNotifier{
		URL:     url,
		Headers: headers,
		Client:  &http.Client{Timeout: 10 * time.Second},
		Now:     time.Now,
	}
}

// WithSecret enables request signing and returns n.
func (n *WebhookNotifier) WithSecret(secret string) *WebhookNotifier {
	if secret != "" {
		n.Secret = []byte(secret)
	}
	return n
}

// Notify implements Notifier.
func (n *WebhookNotifier) Notify(ctx context.Context, event Event) error {
	headers := make(map[string]string, len(n.Headers)+1)
	for k, v := range n.Headers {
		headers[k] = v
	}
	if len(n.Secret) > 0 {
		token, err := n.sign(event)
		if err != nil {
			return deliveryError("webhook", fmt.Errorf("sign event: %w", err))
		}
		headers["Authorization"] = "Bearer " + token
	}

	c := bfhttp.NewClient(bfhttp.ClientConfig{Client: n.Client, ServiceName: "webhook"})
	if err := c.PostJSON(ctx, n.URL, event, headers); err != nil {
		return deliveryError("webhook", err)
	}
	return nil
}

// EventClaims are the JWT claims attached to a signed notification.
type EventClaims struct {
	Type  EventType `json:"type"`
	Stage string    `json:"stage,omitempty"`
	jwt.RegisteredClaims
}

func (n *WebhookNotifier) sign(event Event) (string, error) {
	now := time.Now
	if n.Now != nil {
		now = n.Now
	}
	issued := now()

	claims := EventClaims{
		Type:  event.Type,
		Stage: event.Stage,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "backupflow",
			Subject:   event.Host,
			ID:        event.RunID,
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(issued.Add(tokenTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(n.Secret)
}

// ParseEventToken validates a bearer token produced by a WebhookNotifier.
// Receivers can use it to authenticate incoming notifications.
func ParseEventToken(token string, secret []byte) (*EventClaims, error) {
	claims := &EventClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer("backupflow"))
	if err != nil {
		return nil, err
	}
	return claims, nil
}
