package notifier

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/slack-go/slack"

	"basegraph.app/nudge/internal/audit"
)

// Notifier delivers a composed report. Delivery is best effort: callers log
// a failure and move on.
type Notifier interface {
	Notify(ctx context.Context, webhookURL string, payload audit.Payload) error
}

type webhookNotifier struct {
	httpClient *http.Client
}

// NewWebhookNotifier posts reports to Slack incoming webhooks.
func NewWebhookNotifier(timeout time.Duration) Notifier {
	return &webhookNotifier{httpClient: &http.Client{Timeout: timeout}}
}

func (n *webhookNotifier) Notify(ctx context.Context, webhookURL string, payload audit.Payload) error {
	if webhookURL == "" {
		return fmt.Errorf("webhook url is required")
	}

	msg := &slack.WebhookMessage{
		Text:        payload.Text,
		Attachments: make([]slack.Attachment, len(payload.Attachments)),
	}
	for i, a := range payload.Attachments {
		msg.Attachments[i] = slack.Attachment{Text: a.Text}
	}

	if err := slack.PostWebhookCustomHTTPContext(ctx, webhookURL, n.httpClient, msg); err != nil {
		return fmt.Errorf("posting webhook: %w", err)
	}
	return nil
}
