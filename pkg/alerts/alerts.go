// Package alerts delivers operational alert messages to external channels:
// Slack and Discord webhooks, or a Google Pub/Sub topic.
package alerts

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"
)

// Kind identifies an alert delivery channel.
type Kind string

const (
	KindSlack   Kind = "slack"
	KindDiscord Kind = "discord"
	KindPubSub  Kind = "pubsub"
	KindMock    Kind = "mock"
)

// Alerter delivers a single alert message to its channel.
type Alerter interface {
	Kind() Kind
	Send(ctx context.Context, message string) error
}

// Config holds the settings for constructing an Alerter via New.
type Config struct {
	Kind       Kind
	WebhookURL string       // Slack and Discord.
	Title      string       // Optional Discord embed title.
	HTTPClient *http.Client // Optional; defaults to http.DefaultClient.
}

// New constructs an Alerter for the configured kind. Pub/Sub alerters carry a
// client dependency and are constructed directly via NewPubSubAlerter.
func New(cfg *Config, logger zerolog.Logger) (Alerter, error) {
	switch cfg.Kind {
	case KindSlack, KindDiscord:
		return NewWebhookAlerter(cfg, logger)
	case KindMock:
		return &MockAlerter{}, nil
	default:
		return nil, fmt.Errorf("unsupported alerter kind: %s", cfg.Kind)
	}
}

// MockAlerter captures sent messages through a callback. It is intended for
// tests and dry runs.
type MockAlerter struct {
	Callback func(message string)
}

func (m *MockAlerter) Kind() Kind { return KindMock }

func (m *MockAlerter) Send(_ context.Context, message string) error {
	if m.Callback != nil {
		m.Callback(message)
	}
	return nil
}
