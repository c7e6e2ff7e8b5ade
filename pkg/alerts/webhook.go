package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"
)

// WebhookAlerter posts alert messages to a Slack or Discord webhook URL.
type WebhookAlerter struct {
	kind       Kind
	webhookURL string
	title      string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewWebhookAlerter creates an alerter for a Slack or Discord webhook.
func NewWebhookAlerter(cfg *Config, logger zerolog.Logger) (*WebhookAlerter, error) {
	if cfg.Kind != KindSlack && cfg.Kind != KindDiscord {
		return nil, fmt.Errorf("webhook alerter does not support kind %s", cfg.Kind)
	}
	if cfg.WebhookURL == "" {
		return nil, errors.New("webhook URL cannot be empty")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &WebhookAlerter{
		kind:       cfg.Kind,
		webhookURL: cfg.WebhookURL,
		title:      cfg.Title,
		httpClient: httpClient,
		logger:     logger.With().Str("component", "WebhookAlerter").Str("kind", string(cfg.Kind)).Logger(),
	}, nil
}

func (w *WebhookAlerter) Kind() Kind { return w.kind }

// Send posts the message to the webhook. A non-2xx response is an error.
func (w *WebhookAlerter) Send(ctx context.Context, message string) error {
	payload, err := json.Marshal(w.payload(message))
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, string(body))
	}

	w.logger.Debug().Msg("Alert delivered.")
	return nil
}

// payload builds the channel-specific message body. Slack expects "text",
// Discord expects "content" with an optional embed title.
func (w *WebhookAlerter) payload(message string) map[string]any {
	if w.kind == KindSlack {
		return map[string]any{"text": message}
	}
	if w.title != "" {
		return map[string]any{
			"embeds": []map[string]any{{"title": w.title, "description": message}},
		}
	}
	return map[string]any{"content": message}
}
