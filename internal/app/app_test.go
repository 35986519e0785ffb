package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/iabetor/feedbot/internal/bot"
	"github.com/iabetor/feedbot/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Store: config.StoreConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "feedbot.db")},
		Chat:  config.ChatConfig{Driver: "log", Channel: "news"},
		HTTP:  config.HTTPConfig{Listen: "127.0.0.1:0", ReadTimeout: 5},
		Bot:   config.BotConfig{Trigger: "rss", FetchTimeout: 1},
	}
}

func TestNewDefaultInterval(t *testing.T) {
	a, err := New(testConfig(t), "")
	if err != nil {
		t.Fatalf("New 失败: %v", err)
	}
	defer a.Close()

	if got := a.Plugin().Interval(); got != config.DefaultPollInterval {
		t.Errorf("轮询间隔 = %v, 期望 %v", got, config.DefaultPollInterval)
	}
}

func TestNewRejectsInvalidPluginConfig(t *testing.T) {
	for _, v := range []interface{}{"never", 1e-10, "0.0000000001"} {
		cfg := testConfig(t)
		cfg.Plugin = map[string]interface{}{"POLL_INTERVAL": v}
		if a, err := New(cfg, ""); err == nil {
			a.Close()
			t.Fatalf("POLL_INTERVAL=%v 应返回错误", v)
		}
	}
}

func TestNewRejectsUnknownStoreDriver(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store.Driver = "mysql"
	if _, err := New(cfg, ""); err == nil {
		t.Fatal("未知存储驱动应返回错误")
	}
}

func TestSubscriptionsSurviveRestart(t *testing.T) {
	cfg := testConfig(t)
	msg := bot.Message{UserName: "bob", ChannelID: "news", Text: "rss add https://example.com/feed.xml tech"}

	a, err := New(cfg, "")
	if err != nil {
		t.Fatalf("New 失败: %v", err)
	}
	a.Plugin().HandleMessage(context.Background(), msg)
	a.Close()

	a, err = New(cfg, "")
	if err != nil {
		t.Fatalf("重新打开失败: %v", err)
	}
	defer a.Close()

	reply := a.Plugin().HandleMessage(context.Background(), bot.Message{UserName: "bob", Text: "rss feeds"})
	want := "tech  最近更新: 0001-01-01 00:00:00 (来自 https://example.com/feed.xml)\n"
	if reply != want {
		t.Errorf("feeds = %q, 期望 %q", reply, want)
	}
}

func TestReload(t *testing.T) {
	cfg := testConfig(t)
	cfg.Plugin = map[string]interface{}{"POLL_INTERVAL": 60}
	a, err := New(cfg, "")
	if err != nil {
		t.Fatalf("New 失败: %v", err)
	}
	defer a.Close()

	next := testConfig(t)
	next.Log.Level = "debug"
	next.Plugin = map[string]interface{}{"POLL_INTERVAL": 120}
	a.reload(next)
	if got := a.Plugin().Interval(); got != 2*time.Minute {
		t.Errorf("热加载后间隔 = %v, 期望 2m", got)
	}

	bad := testConfig(t)
	bad.Plugin = map[string]interface{}{"POLL_INTERVAL": -1}
	a.reload(bad)
	if got := a.Plugin().Interval(); got != 2*time.Minute {
		t.Errorf("无效配置不应生效，间隔 = %v", got)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	a, err := New(testConfig(t), "")
	if err != nil {
		t.Fatalf("New 失败: %v", err)
	}
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run 返回错误: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run 未在取消后退出")
	}
}
