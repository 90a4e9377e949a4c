package notifier

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/NordCoder/opsmonitor/internal/domain/monitor"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var _ monitor.ChatSender = (*Telegram)(nil)

const defaultTelegramAPI = "https://api.telegram.org"

type TelegramConfig struct {
	APIBase string
	Token   string
	Timeout time.Duration
}

// Telegram posts messages through the Bot API sendMessage method.
type Telegram struct {
	base   string
	token  string
	client *http.Client
	log    *zap.Logger
}

func NewTelegram(cfg TelegramConfig) *Telegram {
	base := strings.TrimRight(cfg.APIBase, "/")
	if base == "" {
		base = defaultTelegramAPI
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Telegram{
		base:   base,
		token:  cfg.Token,
		client: &http.Client{Timeout: timeout},
		log:    zap.L().With(zap.String("component", "notifier.telegram")),
	}
}

func (t *Telegram) WithLogger(l *zap.Logger) *Telegram {
	if l == nil {
		return t
	}
	cp := *t
	cp.log = l.With(zap.String("component", "notifier.telegram"))
	return &cp
}

type sendMessageRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode,omitempty"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (t *Telegram) Send(ctx context.Context, chatID, message, format string) error {
	if t.token == "" {
		return fmt.Errorf("telegram: bot token is not configured")
	}
	body, err := json.Marshal(sendMessageRequest{ChatID: chatID, Text: message, ParseMode: format})
	if err != nil {
		return fmt.Errorf("encode sendMessage: %w", err)
	}

	url := t.base + "/bot" + t.token + "/sendMessage"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		t.log.Warn("sendMessage failed", zap.String("chat_id", chatID), zap.Error(err))
		return fmt.Errorf("telegram sendMessage: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var ar apiResponse
		_ = json.Unmarshal(raw, &ar)
		t.log.Warn("sendMessage rejected",
			zap.String("chat_id", chatID),
			zap.Int("code", resp.StatusCode),
			zap.String("description", ar.Description),
		)
		return fmt.Errorf("telegram sendMessage: status %d: %s", resp.StatusCode, ar.Description)
	}
	t.log.Debug("message sent", zap.String("chat_id", chatID))
	return nil
}
