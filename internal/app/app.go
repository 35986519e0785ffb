// Package app 把存储、消息投递、订阅轮询和命令服务串联起来。
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iabetor/feedbot/internal/bot"
	"github.com/iabetor/feedbot/internal/chat"
	"github.com/iabetor/feedbot/internal/config"
	"github.com/iabetor/feedbot/internal/database"
	"github.com/iabetor/feedbot/internal/logger"
	"github.com/iabetor/feedbot/internal/rss"
	"github.com/iabetor/feedbot/internal/storage"
)

// storeNamespace 是订阅数据在 plugin_store 中的命名空间。
const storeNamespace = "rss"

// App 是主编排器。
type App struct {
	cfg        *config.Config
	configPath string

	db     *database.DB
	sender chat.Sender
	poller *rss.Poller
	plugin *bot.Plugin
	server *bot.Server
}

// New 根据配置创建并初始化全部组件。插件配置无效时直接返回错误。
// configPath 非空时 Run 会监听该文件并热加载。
func New(cfg *config.Config, configPath string) (*App, error) {
	a := &App{cfg: cfg, configPath: configPath}

	source := cfg.Store.Path
	if cfg.Store.Driver == database.DriverPostgres {
		source = cfg.Store.DSN
	}
	db, err := database.Open(cfg.Store.Driver, source)
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}
	a.db = db
	if err := db.Migrate(); err != nil {
		a.Close()
		return nil, fmt.Errorf("初始化数据表失败: %w", err)
	}

	a.sender, err = chat.New(cfg.Chat)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("初始化消息投递失败: %w", err)
	}

	fetcher := rss.NewHTTPFetcher(time.Duration(cfg.Bot.FetchTimeout) * time.Second)
	a.poller, err = rss.NewPoller(storage.NewKV(db, storeNamespace), fetcher, a.sender, cfg.Chat.Channel)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("加载订阅失败: %w", err)
	}

	a.plugin = bot.NewPlugin(a.poller, a.sender, cfg.Chat.Channel, cfg.Bot)
	if err := a.plugin.Configure(cfg.Plugin); err != nil {
		a.Close()
		return nil, err
	}
	a.server = bot.NewServer(cfg.HTTP, a.plugin)

	logger.Infof("[app] 初始化完成: 存储=%s 投递=%s 频道=%s 订阅数=%d",
		a.db.Driver(), cfg.Chat.Driver, cfg.Chat.Channel, len(a.poller.List()))
	return a, nil
}

// Run 激活插件并启动命令服务，阻塞直到 ctx 取消或服务出错。
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := a.plugin.Activate(ctx); err != nil {
		return err
	}
	defer a.plugin.Deactivate()

	if a.configPath != "" {
		if err := config.Watch(ctx, a.configPath, a.reload); err != nil {
			logger.Warnf("[app] 配置热加载不可用: %v", err)
		}
	}

	err := a.server.ListenAndServe(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("命令服务出错: %w", err)
	}
	return nil
}

// reload 应用热加载的配置。只有日志级别和插件配置可以在运行时生效。
func (a *App) reload(cfg *config.Config) {
	if err := logger.SetLevel(cfg.Log.Level); err != nil {
		logger.Warnf("[app] 日志级别无效: %v", err)
	}
	if err := a.plugin.Configure(cfg.Plugin); err != nil {
		logger.Errorf("[app] 新插件配置无效，保持原配置: %v", err)
		return
	}
	logger.Infof("[app] 配置已重新加载，轮询间隔 %v", a.plugin.Interval())
}

// Plugin 返回插件实例。
func (a *App) Plugin() *bot.Plugin {
	return a.plugin
}

// Close 释放所有资源。
func (a *App) Close() {
	if a.sender != nil {
		if err := a.sender.Close(); err != nil {
			logger.Warnf("[app] 关闭消息投递失败: %v", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			logger.Warnf("[app] 关闭数据库失败: %v", err)
		}
	}
}
