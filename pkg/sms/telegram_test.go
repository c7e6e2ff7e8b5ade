package sms_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/illmade-knight/go-integrations/pkg/sms"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTelegramServer(t *testing.T, updates string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/bottest-token/getMe", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":true,"result":{"username":"monitor_bot"}}`))
	})
	mux.HandleFunc("/bottest-token/getUpdates", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(updates))
	})
	mux.HandleFunc("/bottest-token/sendMessage", func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		_, _ = w.Write([]byte(`{"ok":true,"result":{}}`))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newTelegramSender(t *testing.T, serverURL, chatCachePath string) *sms.TelegramSender {
	t.Helper()
	sender, err := sms.NewTelegramSender(&sms.TelegramConfig{
		Token:         "test-token",
		BaseURL:       serverURL,
		ChatCachePath: chatCachePath,
	}, zerolog.Nop())
	require.NoError(t, err)
	return sender
}

func TestTelegramSender_CheckToken(t *testing.T) {
	server := newTelegramServer(t, `{"ok":true,"result":[]}`)
	sender := newTelegramSender(t, server.URL, "")

	ok, err := sender.CheckToken(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTelegramSender_ChatIDFromUpdates(t *testing.T) {
	updates := `{"ok":true,"result":[
		{"channel_post":{"chat":{"id":-100123,"title":"alerts"}}},
		{"channel_post":{"chat":{"id":-100456,"title":"ops"}}}
	]}`
	server := newTelegramServer(t, updates)
	cachePath := filepath.Join(t.TempDir(), "chats.json")
	sender := newTelegramSender(t, server.URL, cachePath)

	id, err := sender.ChatID(context.Background(), "ops")
	require.NoError(t, err)
	assert.Equal(t, int64(-100456), id)

	// The resolution is remembered in the chat cache file.
	data, err := os.ReadFile(cachePath)
	require.NoError(t, err)
	var cached map[string]int64
	require.NoError(t, json.Unmarshal(data, &cached))
	assert.Equal(t, int64(-100456), cached["ops"])
}

func TestTelegramSender_ChatIDFallsBackToCacheFile(t *testing.T) {
	server := newTelegramServer(t, `{"ok":true,"result":[]}`)
	cachePath := filepath.Join(t.TempDir(), "chats.json")
	require.NoError(t, os.WriteFile(cachePath, []byte(`{"alerts":-100789}`), 0o644))
	sender := newTelegramSender(t, server.URL, cachePath)

	id, err := sender.ChatID(context.Background(), "alerts")
	require.NoError(t, err)
	assert.Equal(t, int64(-100789), id, "an empty update history resolves from the cache file")

	_, err = sender.ChatID(context.Background(), "unknown")
	require.Error(t, err)
}

func TestTelegramSender_SendResolvesTitle(t *testing.T) {
	updates := `{"ok":true,"result":[{"channel_post":{"chat":{"id":-100123,"title":"alerts"}}}]}`
	server := newTelegramServer(t, updates)
	sender := newTelegramSender(t, server.URL, filepath.Join(t.TempDir(), "chats.json"))

	require.NoError(t, sender.Send(context.Background(), "alerts", "deploy finished"))
	require.NoError(t, sender.Send(context.Background(), "-100123", "numeric id works too"))
}

func TestTelegramSender_RequiresToken(t *testing.T) {
	_, err := sms.NewTelegramSender(&sms.TelegramConfig{}, zerolog.Nop())
	require.Error(t, err)
}
