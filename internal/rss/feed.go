// Package rss 提供 RSS/Atom 订阅管理、定时轮询和新消息推送。
package rss

import (
	"context"
	"time"
)

// Subscription 订阅信息。
type Subscription struct {
	Name     string    `json:"name"`
	URL      string    `json:"url"`
	LastSeen time.Time `json:"last_seen"` // 已推送过的最新条目发布时间，零值表示从未推送
}

// FeedItem 订阅源条目。
type FeedItem struct {
	Title     string    `json:"title"`
	Summary   string    `json:"summary"` // 原始摘要，可能含 HTML
	Link      string    `json:"link"`
	Published time.Time `json:"published"` // 零值表示条目没有时间信息
}

// Fetcher 抓取订阅源条目。
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]FeedItem, error)
}

// Sanitizer 把条目摘要转换为纯文本。
type Sanitizer func(html string) string

// Store 持久化键值存储。Get 在 key 不存在时返回 (false, nil)。
type Store interface {
	Get(key string, v interface{}) (bool, error)
	Set(key string, v interface{}) error
}

// Sender 向聊天频道发送文本。
type Sender interface {
	Send(ctx context.Context, channel, text string) error
}
