package notifier

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTelegram_Send(t *testing.T) {
	var got sendMessageRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botsecret/sendMessage", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		b, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(b, &got))
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	tg := NewTelegram(TelegramConfig{APIBase: srv.URL, Token: "secret"})
	require.NoError(t, tg.Send(context.Background(), "42", "*hi*", "Markdown"))

	assert.Equal(t, sendMessageRequest{ChatID: "42", Text: "*hi*", ParseMode: "Markdown"}, got)
}

func TestTelegram_SendNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"description":"Bad Request: chat not found"}`))
	}))
	defer srv.Close()

	tg := NewTelegram(TelegramConfig{APIBase: srv.URL, Token: "secret"})
	err := tg.Send(context.Background(), "42", "hi", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
}

func TestTelegram_NoToken(t *testing.T) {
	tg := NewTelegram(TelegramConfig{})
	assert.Error(t, tg.Send(context.Background(), "42", "hi", ""))
}
