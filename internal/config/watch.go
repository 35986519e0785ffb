package config

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/iabetor/feedbot/internal/logger"
)

// Watch 监听配置文件变化，每次写入后重新加载并回调 onChange。
// 重新加载失败只记录日志，保留旧配置。ctx 取消后停止监听。
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("创建配置文件监听失败: %w", err)
	}

	// 监听目录而不是文件：很多编辑器保存时会先删除再重建文件。
	target := filepath.Clean(path)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		watcher.Close()
		return fmt.Errorf("监听配置目录失败: %w", err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				cfg, err := Load(path)
				if err != nil {
					logger.Errorf("[config] 重新加载配置失败（保留旧配置）: %v", err)
					continue
				}
				logger.Infof("[config] 配置文件已重新加载: %s", path)
				onChange(cfg)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warnf("[config] 配置文件监听出错: %v", err)
			}
		}
	}()
	return nil
}
