package chat

import (
	"context"

	"github.com/iabetor/feedbot/internal/logger"
)

// LogSender 只把消息写进日志，用于本地调试。
type LogSender struct{}

func (LogSender) Send(ctx context.Context, channel, text string) error {
	logger.Infof("[chat] -> #%s: %s", channel, text)
	return nil
}

func (LogSender) Close() error { return nil }
