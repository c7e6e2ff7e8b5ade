package sms

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
)

const twilioAPIBase = "https://api.twilio.com"

// TwilioConfig holds credentials and settings for the Twilio Messages API.
type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	FromNumber string
	// BaseURL overrides the Twilio API endpoint. Empty uses the production API.
	BaseURL string
	// DryRun logs messages instead of sending them.
	DryRun bool
}

// TwilioSender sends SMS messages through the Twilio Messages API.
type TwilioSender struct {
	config     *TwilioConfig
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewTwilioSender creates a sender. A nil httpClient falls back to
// http.DefaultClient.
func NewTwilioSender(cfg *TwilioConfig, httpClient *http.Client, logger zerolog.Logger) (*TwilioSender, error) {
	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, errors.New("twilio account SID and auth token are required")
	}
	if cfg.FromNumber == "" {
		return nil, errors.New("twilio from number is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = twilioAPIBase
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	logger = logger.With().Str("component", "TwilioSender").Logger()
	if cfg.DryRun {
		logger.Warn().Msg("TwilioSender in dry run mode; no messages will be sent.")
	}

	return &TwilioSender{config: cfg, httpClient: httpClient, logger: logger}, nil
}

// Send posts the message to the Twilio Messages API.
func (s *TwilioSender) Send(ctx context.Context, to, body string) error {
	if s.config.DryRun {
		s.logger.Info().Str("to", to).Str("body", body).Msg("Dry run; skipping SMS send.")
		return nil
	}

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", s.config.FromNumber)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", s.config.BaseURL, s.config.AccountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to build twilio request: %w", err)
	}
	req.SetBasicAuth(s.config.AccountSID, s.config.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("twilio request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("twilio returned status %d: %s", resp.StatusCode, string(respBody))
	}

	s.logger.Debug().Str("to", to).Msg("SMS sent.")
	return nil
}
