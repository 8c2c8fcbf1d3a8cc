package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"alertcore/internal/config"
	"alertcore/internal/domain"
)

// WebhookChannel posts the alert JSON to a configured HTTP endpoint.
// Params: destination URL and shared HTTP client with timeout.
// Returns: webhook notification channel.
type WebhookChannel struct {
	url    string
	client *http.Client
}

// NewWebhookChannel creates a webhook channel from config.
// Params: webhook notify config with URL and timeout.
// Returns: initialized channel.
func NewWebhookChannel(cfg config.WebhookNotifyConfig) *WebhookChannel {
	return &WebhookChannel{
		url: cfg.URL,
		client: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSec) * time.Second,
		},
	}
}

// Name returns the channel name.
// Params: none.
// Returns: static channel key.
func (c *WebhookChannel) Name() string {
	return "webhook"
}

// Send posts one alert document to the endpoint.
// Params: context and alert payload.
// Returns: transport error or non-2xx status error.
func (c *WebhookChannel) Send(ctx context.Context, alert domain.Alert) error {
	body, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("encode alert: %w", err)
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := c.client.Do(request)
	if err != nil {
		return fmt.Errorf("webhook post: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, response.Body)
		_ = response.Body.Close()
	}()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return fmt.Errorf("webhook responded %d", response.StatusCode)
	}
	return nil
}
