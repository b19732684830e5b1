package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/safetrackhq/safetrack-backend/pkg/config"
)

// MessageSender delivers one rendered message to a chat.
type MessageSender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// TelegramSender delivers messages through the Telegram Bot HTTP API.
type TelegramSender struct {
	botToken string
	apiBase  string
	client   *http.Client
}

func NewTelegramSender(cfg config.TelegramConfig) (*TelegramSender, error) {
	if strings.TrimSpace(cfg.BotToken) == "" {
		return nil, fmt.Errorf("telegram bot token is required")
	}
	apiBase := strings.TrimRight(cfg.APIBase, "/")
	if apiBase == "" {
		return nil, fmt.Errorf("telegram api base is required")
	}
	return &TelegramSender{
		botToken: cfg.BotToken,
		apiBase:  apiBase,
		client:   &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type sendMessageRequest struct {
	ChatID    int64  `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode,omitempty"`
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description,omitempty"`
}

func (s *TelegramSender) SendMessage(ctx context.Context, chatID int64, text string) error {
	body, err := json.Marshal(sendMessageRequest{ChatID: chatID, Text: text, ParseMode: "HTML"})
	if err != nil {
		return fmt.Errorf("encoding sendMessage request: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.apiBase, s.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building sendMessage request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("calling telegram: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return fmt.Errorf("reading telegram response: %w", err)
	}

	var decoded sendMessageResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return fmt.Errorf("decoding telegram response (status %d): %w", resp.StatusCode, err)
	}
	if !decoded.OK {
		return fmt.Errorf("telegram sendMessage failed (status %d): %s", resp.StatusCode, decoded.Description)
	}
	return nil
}
