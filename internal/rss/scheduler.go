package rss

import (
	"context"
	"sync"
	"time"

	"github.com/iabetor/feedbot/internal/config"
	"github.com/iabetor/feedbot/internal/logger"
)

// Runner 执行一次完整轮询。
type Runner interface {
	PollOnce(ctx context.Context) PollResult
}

// Scheduler 按固定间隔驱动轮询。
// 轮询在调度 goroutine 内同步执行，上一轮结束前不会开始下一轮，错过的 tick 直接丢弃。
type Scheduler struct {
	runner Runner

	mu       sync.Mutex
	interval time.Duration
	reset    chan struct{} // 关闭表示间隔已变化，需要重建 ticker
}

// NewScheduler 创建调度器。interval 非正数时使用默认间隔。
func NewScheduler(runner Runner, interval time.Duration) *Scheduler {
	if interval <= 0 {
		logger.Warnf("[rss] 非法轮询间隔 %v，使用默认值 %v", interval, config.DefaultPollInterval)
		interval = config.DefaultPollInterval
	}
	return &Scheduler{
		runner:   runner,
		interval: interval,
		reset:    make(chan struct{}),
	}
}

// Interval 返回当前轮询间隔。
func (s *Scheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// SetInterval 运行时调整轮询间隔，从调整时刻重新计时。
func (s *Scheduler) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if d == s.interval {
		return
	}
	s.interval = d
	close(s.reset)
	s.reset = make(chan struct{})
	logger.Infof("[rss] 轮询间隔已调整为 %v", d)
}

// Run 阻塞运行直到 ctx 被取消。
func (s *Scheduler) Run(ctx context.Context) {
	for {
		s.mu.Lock()
		interval := s.interval
		reset := s.reset
		s.mu.Unlock()

		if !s.runTicker(ctx, interval, reset) {
			return
		}
	}
}

// runTicker 按 interval 轮询，间隔变化时返回 true，ctx 取消时返回 false。
func (s *Scheduler) runTicker(ctx context.Context, interval time.Duration, reset <-chan struct{}) bool {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Debugf("[rss] 调度器启动，间隔 %v", interval)
	for {
		select {
		case <-ctx.Done():
			return false
		case <-reset:
			return true
		case <-ticker.C:
			s.runner.PollOnce(ctx)
		}
	}
}
