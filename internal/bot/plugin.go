package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/iabetor/feedbot/internal/config"
	"github.com/iabetor/feedbot/internal/logger"
	"github.com/iabetor/feedbot/internal/rss"
)

var ErrAlreadyActive = errors.New("插件已激活")

// Plugin 是宿主看到的插件生命周期：配置、激活、停用，以及处理聊天命令。
type Plugin struct {
	poller   Subscriptions
	sender   rss.Sender
	channel  string
	registry *Registry

	mu         sync.Mutex
	configured *config.PluginConfig // nil 表示未配置，使用默认间隔
	scheduler  *rss.Scheduler
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

// NewPlugin 创建插件并注册 rss 命令。
func NewPlugin(poller Subscriptions, sender rss.Sender, channel string, botCfg config.BotConfig) *Plugin {
	registry := NewRegistry(botCfg.Trigger, botCfg.Admins)
	RegisterRSSCommands(registry, poller)
	return &Plugin{
		poller:   poller,
		sender:   sender,
		channel:  channel,
		registry: registry,
	}
}

// Registry 返回命令注册表。
func (p *Plugin) Registry() *Registry {
	return p.registry
}

// Configure 校验并应用插件配置。配置无效时返回错误，不会回退到默认值。
// 已激活时立即调整轮询间隔。
func (p *Plugin) Configure(raw map[string]interface{}) error {
	pc, err := config.ParsePluginConfig(raw)
	if err != nil {
		return fmt.Errorf("插件配置无效: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.configured = pc
	if p.scheduler != nil {
		p.scheduler.SetInterval(pc.Interval())
	}
	logger.Infof("[bot] 轮询间隔: %v", pc.Interval())
	return nil
}

// Interval 返回当前生效的轮询间隔。
func (p *Plugin) Interval() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.configured.Interval()
}

// Activate 立即轮询一次，然后按间隔定时轮询，直到 Deactivate 或 ctx 取消。
// 未配置时向频道发送一条提示。
func (p *Plugin) Activate(ctx context.Context) error {
	p.mu.Lock()
	if p.cancel != nil {
		p.mu.Unlock()
		return ErrAlreadyActive
	}
	unconfigured := p.configured == nil

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.scheduler = rss.NewScheduler(p.poller, p.configured.Interval())

	scheduler := p.scheduler
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.poller.PollOnce(runCtx)
		scheduler.Run(runCtx)
	}()
	p.mu.Unlock()

	logger.Infof("[bot] 插件已激活，轮询间隔 %v", scheduler.Interval())

	// 发送可能耗时较长，不能持有 mu
	if unconfigured {
		hint := fmt.Sprintf("本插件可以配置，当前使用默认轮询间隔 %.0f 秒。修改配置文件中的 plugin.%s 即可调整。",
			config.DefaultPollInterval.Seconds(), config.PollIntervalKey)
		if err := p.sender.Send(ctx, p.channel, hint); err != nil {
			logger.Warnf("[bot] 发送配置提示失败: %v", err)
		}
	}
	return nil
}

// Deactivate 停止定时轮询并等待进行中的轮询退出。
func (p *Plugin) Deactivate() {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.scheduler = nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	p.wg.Wait()
	logger.Info("[bot] 插件已停用")
}

// HandleMessage 处理一条聊天消息，返回回复（不是命令时为空）。
func (p *Plugin) HandleMessage(ctx context.Context, msg Message) string {
	return p.registry.Dispatch(ctx, msg)
}
