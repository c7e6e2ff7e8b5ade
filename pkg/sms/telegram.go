package sms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/illmade-knight/go-integrations/pkg/requestcache"
	"github.com/rs/zerolog"
)

const telegramAPIBase = "https://api.telegram.org"

// TelegramConfig holds settings for the Telegram Bot API.
type TelegramConfig struct {
	Token string
	// BaseURL overrides the Bot API endpoint. Empty uses the production API.
	BaseURL string
	// ChatCachePath is a small JSON file mapping channel titles to chat IDs,
	// so titles resolve even when the bot's update history has rolled over.
	ChatCachePath string
	// ResponseCacheTTLSeconds enables read caching of Bot API lookups
	// (getMe, getUpdates). Zero disables it.
	ResponseCacheTTLSeconds int
	// ResponseCachePath is required when ResponseCacheTTLSeconds is set.
	ResponseCachePath string
	// DryRun logs messages instead of sending them.
	DryRun bool
}

// TelegramSender sends messages through the Telegram Bot API. Recipients are
// numeric chat IDs, or channel titles which are resolved via getUpdates and
// remembered in the chat cache file.
type TelegramSender struct {
	config *TelegramConfig
	client *requestcache.Client
	logger zerolog.Logger
}

// telegram API envelope and payload shapes.
type telegramResponse struct {
	OK     bool            `json:"ok"`
	Result json.RawMessage `json:"result"`
}

type telegramUpdate struct {
	ChannelPost *struct {
		Chat struct {
			ID    int64  `json:"id"`
			Title string `json:"title"`
		} `json:"chat"`
	} `json:"channel_post"`
}

type telegramUser struct {
	Username string `json:"username"`
}

// NewTelegramSender creates a sender. Bot API calls go through a caching
// client so repeated lookups within a session stay local.
func NewTelegramSender(cfg *TelegramConfig, logger zerolog.Logger) (*TelegramSender, error) {
	if cfg.Token == "" {
		return nil, errors.New("telegram bot token is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = telegramAPIBase
	}

	client, err := requestcache.NewDefaultClient(&requestcache.ClientConfig{
		BaseURL:         fmt.Sprintf("%s/bot%s", cfg.BaseURL, cfg.Token),
		CacheTTLSeconds: cfg.ResponseCacheTTLSeconds,
		CachePath:       cfg.ResponseCachePath,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create telegram client: %w", err)
	}

	return &TelegramSender{
		config: cfg,
		client: client,
		logger: logger.With().Str("component", "TelegramSender").Logger(),
	}, nil
}

// CheckToken verifies the bot token against the getMe endpoint.
func (s *TelegramSender) CheckToken(ctx context.Context) (bool, error) {
	if s.config.DryRun {
		return true, nil
	}

	body, err := s.client.Get(ctx, "/getMe", nil)
	if err != nil {
		return false, fmt.Errorf("telegram getMe failed: %w", err)
	}

	var envelope telegramResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return false, fmt.Errorf("failed to parse getMe response: %w", err)
	}
	if !envelope.OK {
		return false, nil
	}

	var me telegramUser
	if err := json.Unmarshal(envelope.Result, &me); err == nil && me.Username != "" {
		s.logger.Info().Str("username", me.Username).Msg("Telegram bot token verified.")
	}
	return true, nil
}

// ChatID resolves a channel title to its chat ID. Fresh results come from
// getUpdates and are written to the chat cache file; when the title is absent
// from the update history the cache file is consulted instead.
func (s *TelegramSender) ChatID(ctx context.Context, title string) (int64, error) {
	body, err := s.client.Get(ctx, "/getUpdates", nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("getUpdates failed; falling back to chat cache.")
		return s.cachedChatID(title)
	}

	var envelope telegramResponse
	if err := json.Unmarshal(body, &envelope); err != nil || !envelope.OK {
		return s.cachedChatID(title)
	}

	var updates []telegramUpdate
	if err := json.Unmarshal(envelope.Result, &updates); err != nil {
		return s.cachedChatID(title)
	}

	for _, update := range updates {
		if update.ChannelPost == nil {
			continue
		}
		if update.ChannelPost.Chat.Title == title {
			id := update.ChannelPost.Chat.ID
			s.rememberChatID(title, id)
			return id, nil
		}
	}
	return s.cachedChatID(title)
}

func (s *TelegramSender) rememberChatID(title string, id int64) {
	if s.config.ChatCachePath == "" {
		return
	}
	data, err := json.Marshal(map[string]int64{title: id})
	if err != nil {
		return
	}
	if err := os.WriteFile(s.config.ChatCachePath, data, 0o644); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to write chat cache file.")
	}
}

func (s *TelegramSender) cachedChatID(title string) (int64, error) {
	if s.config.ChatCachePath == "" {
		return 0, fmt.Errorf("chat %q not found", title)
	}
	data, err := os.ReadFile(s.config.ChatCachePath)
	if err != nil {
		return 0, fmt.Errorf("chat %q not found", title)
	}
	var cache map[string]int64
	if err := json.Unmarshal(data, &cache); err != nil {
		return 0, fmt.Errorf("failed to parse chat cache file: %w", err)
	}
	id, ok := cache[title]
	if !ok {
		return 0, fmt.Errorf("chat %q not found", title)
	}
	return id, nil
}

// SendMessage sends a message to a chat by its numeric ID.
func (s *TelegramSender) SendMessage(ctx context.Context, chatID int64, text string) error {
	if s.config.DryRun {
		s.logger.Info().Int64("chat_id", chatID).Str("text", text).Msg("Dry run; skipping Telegram send.")
		return nil
	}

	_, err := s.client.Post(ctx, "/sendMessage", map[string]any{
		"chat_id": chatID,
		"text":    text,
	}, "")
	if err != nil {
		return fmt.Errorf("telegram sendMessage failed: %w", err)
	}
	return nil
}

// Send implements Sender. to is a numeric chat ID, or a channel title which
// is resolved first.
func (s *TelegramSender) Send(ctx context.Context, to, body string) error {
	chatID, err := strconv.ParseInt(to, 10, 64)
	if err != nil {
		chatID, err = s.ChatID(ctx, to)
		if err != nil {
			return err
		}
	}
	return s.SendMessage(ctx, chatID, body)
}
