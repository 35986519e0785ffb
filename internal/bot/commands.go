package bot

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/iabetor/feedbot/internal/rss"
)

const lastSeenLayout = "2006-01-02 15:04:05"

// Subscriptions 是命令操作的订阅表，由 *rss.Poller 实现。
type Subscriptions interface {
	Add(url, name string) error
	Remove(name string) error
	Clear() error
	List() []rss.Subscription
	PollOnce(ctx context.Context) rss.PollResult
}

// RegisterRSSCommands 注册全部订阅管理命令。
func RegisterRSSCommands(r *Registry, subs Subscriptions) {
	r.Register(&AddFeedCommand{subs: subs})
	r.Register(&RemoveFeedCommand{subs: subs})
	r.Register(&ListFeedsCommand{subs: subs})
	r.Register(&ClearFeedsCommand{subs: subs})
	r.Register(&NewsCommand{subs: subs})
	r.Register(&HelpCommand{registry: r})
}

// ---- AddFeedCommand ----

// AddFeedCommand 添加订阅：rss add <url> <名称>
type AddFeedCommand struct {
	subs Subscriptions
}

func (c *AddFeedCommand) Name() string        { return "add" }
func (c *AddFeedCommand) Usage() string       { return "add <url> <名称>" }
func (c *AddFeedCommand) Description() string { return "添加订阅源，名称可以包含空格" }
func (c *AddFeedCommand) AdminOnly() bool     { return false }

func (c *AddFeedCommand) Execute(ctx context.Context, msg Message, args []string) (string, error) {
	if len(args) < 2 {
		return "请提供订阅源地址和名称，例如: rss add https://example.com/feed.xml 科技新闻", nil
	}

	feedURL := strings.TrimSpace(args[0])
	name := strings.Join(args[1:], " ")
	if u, err := url.Parse(feedURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Sprintf("无效的订阅源地址: %s", feedURL), nil
	}

	if err := c.subs.Add(feedURL, name); err != nil {
		if errors.Is(err, rss.ErrFeedExists) {
			return fmt.Sprintf("订阅 %s 已存在", name), nil
		}
		return "", err
	}
	return fmt.Sprintf("已添加订阅源 %s，名称: %s", feedURL, name), nil
}

// ---- RemoveFeedCommand ----

// RemoveFeedCommand 删除订阅：rss remove <名称>
type RemoveFeedCommand struct {
	subs Subscriptions
}

func (c *RemoveFeedCommand) Name() string        { return "remove" }
func (c *RemoveFeedCommand) Usage() string       { return "remove <名称>" }
func (c *RemoveFeedCommand) Description() string { return "删除订阅源" }
func (c *RemoveFeedCommand) AdminOnly() bool     { return false }

func (c *RemoveFeedCommand) Execute(ctx context.Context, msg Message, args []string) (string, error) {
	if len(args) == 0 {
		return "请提供订阅名称", nil
	}
	name := strings.Join(args, " ")

	if err := c.subs.Remove(name); err != nil {
		if errors.Is(err, rss.ErrFeedNotFound) {
			return fmt.Sprintf("未找到订阅 %s", name), nil
		}
		return "", err
	}
	return fmt.Sprintf("已删除订阅 %s", name), nil
}

// ---- ListFeedsCommand ----

// ListFeedsCommand 列出全部订阅及最近更新时间。
type ListFeedsCommand struct {
	subs Subscriptions
}

func (c *ListFeedsCommand) Name() string        { return "feeds" }
func (c *ListFeedsCommand) Usage() string       { return "feeds" }
func (c *ListFeedsCommand) Description() string { return "查看所有订阅及最近更新时间" }
func (c *ListFeedsCommand) AdminOnly() bool     { return false }

func (c *ListFeedsCommand) Execute(ctx context.Context, msg Message, args []string) (string, error) {
	subs := c.subs.List()
	if len(subs) == 0 {
		return "当前没有任何订阅。", nil
	}

	var sb strings.Builder
	for _, s := range subs {
		sb.WriteString(fmt.Sprintf("%s  最近更新: %s (来自 %s)\n", s.Name, s.LastSeen.Format(lastSeenLayout), s.URL))
	}
	return sb.String(), nil
}

// ---- ClearFeedsCommand ----

// ClearFeedsCommand 删除全部订阅，仅管理员可用。
type ClearFeedsCommand struct {
	subs Subscriptions
}

func (c *ClearFeedsCommand) Name() string        { return "clearfeeds" }
func (c *ClearFeedsCommand) Usage() string       { return "clearfeeds" }
func (c *ClearFeedsCommand) Description() string { return "警告：删除全部订阅" }
func (c *ClearFeedsCommand) AdminOnly() bool     { return true }

func (c *ClearFeedsCommand) Execute(ctx context.Context, msg Message, args []string) (string, error) {
	if err := c.subs.Clear(); err != nil {
		return "", err
	}
	return "已删除全部订阅。", nil
}

// ---- NewsCommand ----

// NewsCommand 立即检查一次所有订阅。
type NewsCommand struct {
	subs Subscriptions
}

func (c *NewsCommand) Name() string        { return "news" }
func (c *NewsCommand) Usage() string       { return "news" }
func (c *NewsCommand) Description() string { return "立即检查所有订阅的新消息" }
func (c *NewsCommand) AdminOnly() bool     { return false }

func (c *NewsCommand) Execute(ctx context.Context, msg Message, args []string) (string, error) {
	res := c.subs.PollOnce(ctx)
	if res.Checked == 0 {
		return "没有需要检查的订阅。", nil
	}
	reply := fmt.Sprintf("已检查 %d 个订阅，%d 个有新消息", res.Checked, res.Announced)
	if res.Failed > 0 {
		reply += fmt.Sprintf("，%d 个抓取失败", res.Failed)
	}
	return reply + "。", nil
}

// ---- HelpCommand ----

// HelpCommand 显示命令列表。
type HelpCommand struct {
	registry *Registry
}

func (c *HelpCommand) Name() string        { return "help" }
func (c *HelpCommand) Usage() string       { return "help" }
func (c *HelpCommand) Description() string { return "显示本帮助" }
func (c *HelpCommand) AdminOnly() bool     { return false }

func (c *HelpCommand) Execute(ctx context.Context, msg Message, args []string) (string, error) {
	return c.registry.Help(), nil
}
