package delivery

import (
	"context"
	"fmt"

	"CoinPulse/internal/domain/models"
	xhttp "CoinPulse/pkg/http"
)

// WebhookPush posts push notifications as JSON to a single gateway URL.
type WebhookPush struct {
	url    string
	client *xhttp.Client
}

func NewWebhookPush(url string, client *xhttp.Client) *WebhookPush {
	return &WebhookPush{url: url, client: client}
}

func (w *WebhookPush) Name() string { return models.ChannelPush }

func (w *WebhookPush) Send(ctx context.Context, userID string, msg models.DeliveryMessage) error {
	err := w.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodPost,
		URL:     w.url,
		Headers: map[string]string{"Content-Type": "application/json"},
		Body: map[string]interface{}{
			"user_id":      userID,
			"notification": msg,
		},
	}, nil)
	if err != nil {
		return fmt.Errorf("webhook push: %w", err)
	}
	return nil
}
