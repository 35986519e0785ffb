package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// WebhookSender 通过 incoming webhook 投递消息（Mattermost / Slack 兼容格式）。
type WebhookSender struct {
	url      string
	username string
	client   *http.Client
}

type webhookPayload struct {
	Channel  string `json:"channel,omitempty"`
	Text     string `json:"text"`
	Username string `json:"username,omitempty"`
}

// NewWebhookSender 创建 webhook 投递器。
func NewWebhookSender(url, username string, timeout time.Duration) *WebhookSender {
	return &WebhookSender{
		url:      url,
		username: username,
		client:   &http.Client{Timeout: timeout},
	}
}

// Send 发送一条消息，非 2xx 响应视为失败。
func (s *WebhookSender) Send(ctx context.Context, channel, text string) error {
	body, err := json.Marshal(webhookPayload{Channel: channel, Text: text, Username: s.username})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook 请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook 返回 HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

// Close 无需释放资源。
func (s *WebhookSender) Close() error { return nil }
