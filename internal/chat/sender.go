// Package chat 负责把文本消息投递到聊天频道。
package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/iabetor/feedbot/internal/config"
)

// Sender 向频道发送文本消息。
type Sender interface {
	Send(ctx context.Context, channel, text string) error
	Close() error
}

// New 按配置创建 Sender。
func New(cfg config.ChatConfig) (Sender, error) {
	switch cfg.Driver {
	case "webhook":
		return NewWebhookSender(cfg.WebhookURL, cfg.Username, 10*time.Second), nil
	case "nats":
		return NewNATSSender(cfg.NATSURL, cfg.SubjectPrefix)
	case "log":
		return LogSender{}, nil
	default:
		return nil, fmt.Errorf("不支持的消息投递方式: %s", cfg.Driver)
	}
}
