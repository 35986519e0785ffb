package rss

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iabetor/feedbot/internal/logger"
)

// 存储中使用的 key。
const (
	keySubscriptionNames = "subscription_names"    // name -> url
	keyLastSeen          = "subscriptions_last_ts" // name -> 最近推送时间
	keyOrder             = "subscription_order"    // 添加顺序
)

const headerTimeLayout = "2006-01-02 15:04:05"

var (
	ErrFeedExists   = errors.New("该订阅已存在")
	ErrFeedNotFound = errors.New("未找到该订阅")
)

// PollResult 一次轮询的统计。
type PollResult struct {
	Checked   int // 实际抓取的订阅数
	Announced int // 推送了新消息的订阅数
	Failed    int // 抓取失败的订阅数
}

// Poller 管理订阅表并检查更新。
// 订阅表和最近推送时间表始终拥有相同的 key，每次修改后立即写入存储。
type Poller struct {
	mu       sync.Mutex // 保护下面三个表及其持久化
	names    map[string]string
	lastSeen map[string]time.Time
	order    []string

	pollMu sync.Mutex // 同一时间只允许一次轮询

	store    Store
	fetcher  Fetcher
	sender   Sender
	sanitize Sanitizer
	channel  string
	now      func() time.Time
}

// NewPoller 从 store 加载订阅表并创建轮询器。新消息推送到 channel。
func NewPoller(store Store, fetcher Fetcher, sender Sender, channel string) (*Poller, error) {
	p := &Poller{
		names:    make(map[string]string),
		lastSeen: make(map[string]time.Time),
		store:    store,
		fetcher:  fetcher,
		sender:   sender,
		sanitize: StripMarkup,
		channel:  channel,
		now:      time.Now,
	}
	if err := p.load(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Poller) load() error {
	if _, err := p.store.Get(keySubscriptionNames, &p.names); err != nil {
		return fmt.Errorf("加载订阅表失败: %w", err)
	}
	if _, err := p.store.Get(keyLastSeen, &p.lastSeen); err != nil {
		return fmt.Errorf("加载推送时间表失败: %w", err)
	}
	if _, err := p.store.Get(keyOrder, &p.order); err != nil {
		return fmt.Errorf("加载订阅顺序失败: %w", err)
	}
	if p.names == nil {
		p.names = make(map[string]string)
	}
	if p.lastSeen == nil {
		p.lastSeen = make(map[string]time.Time)
	}

	// 修复不一致的数据：两张表 key 必须相同，顺序表只保留存在的订阅
	repaired := false
	for name := range p.names {
		if _, ok := p.lastSeen[name]; !ok {
			p.lastSeen[name] = time.Time{}
			repaired = true
		}
	}
	for name := range p.lastSeen {
		if _, ok := p.names[name]; !ok {
			delete(p.lastSeen, name)
			repaired = true
		}
	}
	seen := make(map[string]bool, len(p.order))
	order := make([]string, 0, len(p.names))
	for _, name := range p.order {
		if _, ok := p.names[name]; ok && !seen[name] {
			seen[name] = true
			order = append(order, name)
		}
	}
	var missing []string
	for name := range p.names {
		if !seen[name] {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	order = append(order, missing...)
	if !slices.Equal(order, p.order) {
		repaired = true
	}
	p.order = order

	if repaired {
		logger.Warnf("[rss] 订阅数据不一致，已修复 (%d 个订阅)", len(p.names))
		return p.persist()
	}
	logger.Infof("[rss] 已加载 %d 个订阅", len(p.names))
	return nil
}

// persist 写入全部三张表，调用方必须持有 mu。
func (p *Poller) persist() error {
	if err := p.store.Set(keySubscriptionNames, p.names); err != nil {
		return err
	}
	if err := p.store.Set(keyLastSeen, p.lastSeen); err != nil {
		return err
	}
	return p.store.Set(keyOrder, p.order)
}

// snapshot 复制当前状态，用于持久化失败时回滚。调用方必须持有 mu。
func (p *Poller) snapshot() (map[string]string, map[string]time.Time, []string) {
	names := make(map[string]string, len(p.names))
	for k, v := range p.names {
		names[k] = v
	}
	lastSeen := make(map[string]time.Time, len(p.lastSeen))
	for k, v := range p.lastSeen {
		lastSeen[k] = v
	}
	order := append([]string(nil), p.order...)
	return names, lastSeen, order
}

// Add 添加订阅，name 已存在时返回 ErrFeedExists。
func (p *Poller) Add(url, name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.names[name]; ok {
		return ErrFeedExists
	}

	names, lastSeen, order := p.snapshot()
	p.names[name] = url
	p.lastSeen[name] = time.Time{}
	p.order = append(p.order, name)
	if err := p.persist(); err != nil {
		p.names, p.lastSeen, p.order = names, lastSeen, order
		return fmt.Errorf("保存订阅失败: %w", err)
	}

	logger.Infof("[rss] 已添加订阅 %s (%s)", name, url)
	return nil
}

// Remove 删除订阅，name 不存在时返回 ErrFeedNotFound。
func (p *Poller) Remove(name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.names[name]; !ok {
		return ErrFeedNotFound
	}

	names, lastSeen, order := p.snapshot()
	delete(p.names, name)
	delete(p.lastSeen, name)
	for i, n := range p.order {
		if n == name {
			p.order = append(p.order[:i:i], p.order[i+1:]...)
			break
		}
	}
	if err := p.persist(); err != nil {
		p.names, p.lastSeen, p.order = names, lastSeen, order
		return fmt.Errorf("保存订阅失败: %w", err)
	}

	logger.Infof("[rss] 已删除订阅 %s", name)
	return nil
}

// Clear 删除全部订阅。
func (p *Poller) Clear() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	names, lastSeen, order := p.snapshot()
	p.names = make(map[string]string)
	p.lastSeen = make(map[string]time.Time)
	p.order = nil
	if err := p.persist(); err != nil {
		p.names, p.lastSeen, p.order = names, lastSeen, order
		return fmt.Errorf("清空订阅失败: %w", err)
	}

	logger.Info("[rss] 已清空全部订阅")
	return nil
}

// List 按添加顺序列出所有订阅。
func (p *Poller) List() []Subscription {
	p.mu.Lock()
	defer p.mu.Unlock()

	result := make([]Subscription, 0, len(p.order))
	for _, name := range p.order {
		result = append(result, Subscription{
			Name:     name,
			URL:      p.names[name],
			LastSeen: p.lastSeen[name],
		})
	}
	return result
}

// PollOnce 检查所有订阅，把比最近推送时间更新的条目发到频道。
// 单个订阅抓取或发送失败只记录日志，不影响其余订阅。
func (p *Poller) PollOnce(ctx context.Context) PollResult {
	p.pollMu.Lock()
	defer p.pollMu.Unlock()

	tick := uuid.NewString()
	subs := p.List()
	logger.Debugf("[rss] 开始轮询 tick=%s (%d 个订阅)", tick, len(subs))

	var res PollResult
	for _, sub := range subs {
		if ctx.Err() != nil {
			logger.Debugf("[rss] 轮询被取消 tick=%s", tick)
			break
		}
		// 最近推送时间在未来（订阅源给出了未来时间），等到那之后再检查
		if sub.LastSeen.After(p.now()) {
			continue
		}

		res.Checked++
		items, err := p.fetcher.Fetch(ctx, sub.URL)
		if err != nil {
			res.Failed++
			logger.Warnf("[rss] 抓取 %s 失败 tick=%s: %v", sub.Name, tick, err)
			continue
		}

		item, ok := newestItem(items)
		if !ok {
			continue
		}
		if !p.advance(sub, item.Published) {
			continue
		}

		res.Announced++
		p.announce(ctx, sub.Name, item)
	}

	logger.Infof("[rss] 轮询完成 tick=%s: 检查 %d, 新消息 %d, 失败 %d",
		tick, res.Checked, res.Announced, res.Failed)
	return res
}

// advance 在 ts 严格晚于最近推送时间时更新并持久化，返回是否更新。
// 抓取期间订阅可能已被删除或替换，此时放弃。
func (p *Poller) advance(sub Subscription, ts time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if url, ok := p.names[sub.Name]; !ok || url != sub.URL {
		return false
	}
	if !ts.After(p.lastSeen[sub.Name]) {
		return false
	}
	p.lastSeen[sub.Name] = ts
	// 写入失败时仍保留内存中的新时间，避免每轮重复推送同一条
	if err := p.store.Set(keyLastSeen, p.lastSeen); err != nil {
		logger.Errorf("[rss] 保存 %s 的推送时间失败: %v", sub.Name, err)
	}
	return true
}

func (p *Poller) announce(ctx context.Context, name string, item FeedItem) {
	text := p.sanitize(item.Summary)
	if text == "" {
		text = p.sanitize(item.Title)
	}
	header := fmt.Sprintf("%s 来自 %s 的新消息:\n%s", item.Published.Format(headerTimeLayout), name, text)

	logger.Infof("[rss] %s 有新消息: %s", name, item.Link)
	// 推送时间已经更新，标题行失败也照常发送链接
	if err := p.sender.Send(ctx, p.channel, header); err != nil {
		logger.Warnf("[rss] 推送 %s 失败: %v", name, err)
	}
	if item.Link == "" {
		return
	}
	if err := p.sender.Send(ctx, p.channel, item.Link); err != nil {
		logger.Warnf("[rss] 推送 %s 链接失败: %v", name, err)
	}
}

// newestItem 返回发布时间最晚的条目，没有带时间的条目时返回 false。
func newestItem(items []FeedItem) (FeedItem, bool) {
	var newest FeedItem
	found := false
	for _, item := range items {
		if item.Published.IsZero() {
			continue
		}
		if !found || item.Published.After(newest.Published) {
			newest = item
			found = true
		}
	}
	return newest, found
}
