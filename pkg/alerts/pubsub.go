package alerts

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/rs/zerolog"
)

// PubSubAlerterConfig holds configuration for the Pub/Sub alert channel.
type PubSubAlerterConfig struct {
	TopicID string
	// Source labels alert messages with their origin service. Optional.
	Source string

	TopicExistsTimeout         time.Duration
	PublishConfirmationTimeout time.Duration
}

// NewPubSubAlerterDefaults provides a config with sensible timeouts.
func NewPubSubAlerterDefaults(topicID string) *PubSubAlerterConfig {
	return &PubSubAlerterConfig{
		TopicID:                    topicID,
		TopicExistsTimeout:         15 * time.Second,
		PublishConfirmationTimeout: 20 * time.Second,
	}
}

// alertMessage is the published form of an alert.
type alertMessage struct {
	Message    string    `json:"message"`
	Source     string    `json:"source,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// PubSubAlerter publishes alert messages to a Google Pub/Sub topic. Each Send
// waits for publish confirmation so delivery failures surface to the caller.
type PubSubAlerter struct {
	config *PubSubAlerterConfig
	topic  *pubsub.Topic
	logger zerolog.Logger
}

// NewPubSubAlerter creates the alerter and validates that the topic exists.
func NewPubSubAlerter(ctx context.Context, cfg *PubSubAlerterConfig, client *pubsub.Client, logger zerolog.Logger) (*PubSubAlerter, error) {
	if client == nil {
		return nil, fmt.Errorf("pubsub client cannot be nil")
	}

	topic := client.Topic(cfg.TopicID)
	existsCtx, cancel := context.WithTimeout(ctx, cfg.TopicExistsTimeout)
	defer cancel()
	exists, err := topic.Exists(existsCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to check for topic %s: %w", cfg.TopicID, err)
	}
	if !exists {
		return nil, fmt.Errorf("pubsub topic %s does not exist", cfg.TopicID)
	}

	logger.Info().Str("topic_id", cfg.TopicID).Msg("PubSubAlerter initialized successfully.")
	return &PubSubAlerter{
		config: cfg,
		topic:  topic,
		logger: logger.With().Str("component", "PubSubAlerter").Str("topic_id", cfg.TopicID).Logger(),
	}, nil
}

func (p *PubSubAlerter) Kind() Kind { return KindPubSub }

// Send publishes the alert and blocks until the publish is confirmed or the
// confirmation timeout elapses.
func (p *PubSubAlerter) Send(ctx context.Context, message string) error {
	payload, err := json.Marshal(alertMessage{
		Message:    message,
		Source:     p.config.Source,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	res := p.topic.Publish(ctx, &pubsub.Message{Data: payload})

	getCtx, cancel := context.WithTimeout(ctx, p.config.PublishConfirmationTimeout)
	defer cancel()
	msgID, err := res.Get(getCtx)
	if err != nil {
		return fmt.Errorf("failed to confirm alert publish: %w", err)
	}

	p.logger.Debug().Str("pubsub_msg_id", msgID).Msg("Alert published successfully.")
	return nil
}

// Close flushes any buffered messages and stops the topic's publisher.
func (p *PubSubAlerter) Close() error {
	p.topic.Stop()
	return nil
}
