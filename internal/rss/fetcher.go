package rss

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"
)

const (
	defaultFetchTimeout = 10 * time.Second
	userAgent           = "feedbot/1.0 RSS Reader"
)

// HTTPFetcher 通过 HTTP 抓取并解析 RSS/Atom/JSON Feed。
type HTTPFetcher struct {
	parser  *gofeed.Parser
	client  *http.Client
	timeout time.Duration
}

// NewHTTPFetcher 创建抓取器，timeout <= 0 时使用默认的 10 秒。
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	return &HTTPFetcher{
		parser:  gofeed.NewParser(),
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
	}
}

// Fetch 抓取 url 并返回全部条目，保持订阅源中的顺序。
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]FeedItem, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	feed, err := f.parseFeed(ctx, url)
	if err != nil {
		return nil, err
	}
	return convertItems(feed), nil
}

// parseFeed 解析 Feed URL。
func (f *HTTPFetcher) parseFeed(ctx context.Context, url string) (*gofeed.Feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	feed, err := f.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("解析订阅源失败: %w", err)
	}
	return feed, nil
}

// convertItems 将 gofeed 条目转换为 FeedItem。
// 发布时间缺失时退回更新时间，两者都没有则为零值。
func convertItems(feed *gofeed.Feed) []FeedItem {
	items := make([]FeedItem, 0, len(feed.Items))
	for _, gItem := range feed.Items {
		summary := gItem.Description
		if summary == "" {
			summary = gItem.Content
		}

		var published time.Time
		if gItem.PublishedParsed != nil {
			published = *gItem.PublishedParsed
		} else if gItem.UpdatedParsed != nil {
			published = *gItem.UpdatedParsed
		}

		items = append(items, FeedItem{
			Title:     gItem.Title,
			Summary:   summary,
			Link:      gItem.Link,
			Published: published,
		})
	}
	return items
}
