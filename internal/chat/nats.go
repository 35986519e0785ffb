package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/iabetor/feedbot/internal/logger"
)

const natsFlushTimeout = 5 * time.Second

// NATSSender 把消息发布到 <prefix>.<channel>，由订阅该主题的聊天网关转发。
type NATSSender struct {
	nc     *nats.Conn
	prefix string
}

// NewNATSSender 连接 NATS 服务器。断线后无限重连。
func NewNATSSender(url, prefix string) (*NATSSender, error) {
	nc, err := nats.Connect(
		url,
		nats.Name("feedbot"),
		nats.Timeout(5*time.Second),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warnf("[chat] NATS 连接断开: %v", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Infof("[chat] NATS 已重连: %s", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("连接 NATS 失败: %w", err)
	}
	logger.Infof("[chat] NATS 已连接: %s", url)
	return &NATSSender{nc: nc, prefix: prefix}, nil
}

// Subject 返回频道对应的主题。
func (s *NATSSender) Subject(channel string) string {
	if s.prefix == "" {
		return channel
	}
	return s.prefix + "." + channel
}

// Send 发布消息并等待服务器确认收到。
func (s *NATSSender) Send(ctx context.Context, channel, text string) error {
	if err := s.nc.Publish(s.Subject(channel), []byte(text)); err != nil {
		return fmt.Errorf("发布到 NATS 失败: %w", err)
	}
	// FlushWithContext 要求 ctx 带超时
	ctx, cancel := context.WithTimeout(ctx, natsFlushTimeout)
	defer cancel()
	if err := s.nc.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("NATS flush 失败: %w", err)
	}
	return nil
}

// Close 断开连接。
func (s *NATSSender) Close() error {
	s.nc.Close()
	return nil
}
