package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/iabetor/feedbot/internal/app"
	"github.com/iabetor/feedbot/internal/config"
	"github.com/iabetor/feedbot/internal/logger"
)

type cliArgs struct {
	ConfigFile string
	LogLevel   string
}

var cmdArgs cliArgs

func main() {
	a := &cli.App{
		Name:        "feedbot",
		Usage:       "RSS 订阅推送机器人",
		Description: "定时轮询 RSS/Atom 订阅源，把新消息推送到聊天频道",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Usage:       "配置文件路径",
				Aliases:     []string{"c"},
				EnvVars:     []string{"FEEDBOT_CONFIG"},
				Value:       "configs/feedbot.yaml",
				Destination: &cmdArgs.ConfigFile,
			},
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "覆盖配置文件中的日志级别: [debug info warn error]",
				Aliases:     []string{"l"},
				EnvVars:     []string{"FEEDBOT_LOG_LEVEL"},
				Destination: &cmdArgs.LogLevel,
			},
		},
		Action: runBot,
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "启动机器人（默认）",
				Action: runBot,
			},
			{
				Name:   "check",
				Usage:  "校验配置文件后退出",
				Action: checkConfig,
			},
		},
	}

	if err := a.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

// loadConfig 读取配置并应用命令行覆盖项。
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cmdArgs.ConfigFile)
	if err != nil {
		return nil, fmt.Errorf("加载配置失败: %w", err)
	}
	if cmdArgs.LogLevel != "" {
		if _, err := logger.ParseLevel(cmdArgs.LogLevel); err != nil {
			return nil, err
		}
		cfg.Log.Level = cmdArgs.LogLevel
	}
	return cfg, nil
}

func checkConfig(c *cli.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	pc, err := config.ParsePluginConfig(cfg.Plugin)
	if err != nil {
		return fmt.Errorf("插件配置无效: %w", err)
	}
	fmt.Printf("配置有效: 存储=%s 投递=%s 频道=%s 轮询间隔=%v\n",
		cfg.Store.Driver, cfg.Chat.Driver, cfg.Chat.Channel, pc.Interval())
	return nil
}

func runBot(c *cli.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := logger.Init(cfg.Log); err != nil {
		return fmt.Errorf("初始化日志失败: %w", err)
	}
	defer logger.Sync()

	logger.Infof("[main] feedbot 启动中 (log_level=%s)", cfg.Log.Level)

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	// 监听系统信号，优雅关闭
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Infof("[main] 收到信号 %v，正在关闭...", sig)
		cancel()
	}()

	bot, err := app.New(cfg, cmdArgs.ConfigFile)
	if err != nil {
		return fmt.Errorf("初始化失败: %w", err)
	}
	defer bot.Close()

	if err := bot.Run(ctx); err != nil {
		return err
	}
	logger.Info("[main] feedbot 已停止")
	return nil
}
